// Wargame facilitator server.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/ashureev/wargame/internal/api"
	"github.com/ashureev/wargame/internal/checkpoint"
	"github.com/ashureev/wargame/internal/config"
	"github.com/ashureev/wargame/internal/feed"
	"github.com/ashureev/wargame/internal/health"
	"github.com/ashureev/wargame/internal/identity"
	"github.com/ashureev/wargame/internal/llm"
	"github.com/ashureev/wargame/internal/middleware"
	"github.com/ashureev/wargame/internal/session"
	"github.com/ashureev/wargame/internal/turnlog"
	"github.com/ashureev/wargame/internal/wargame"
	"github.com/ashureev/wargame/web"
)

func main() {
	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if l, err := cfg.SlogLevel(); err == nil {
		level.Set(l)
	}

	slog.Info("Starting server",
		"port", cfg.Port,
		"grpc_port", cfg.GRPCPort,
		"provider", cfg.LLM.Provider,
		"model", cfg.LLM.Model,
		"dev", cfg.IsDevelopment())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize dependencies.
	backend, err := llm.New(cfg.Backend())
	if err != nil {
		slog.Error("Failed to initialize model backend", "error", err)
		os.Exit(1)
	}
	slog.Info("Model backend ready", "structured_outcomes", backend.Capabilities().StructuredOutcomes)

	checkpoints, pingers, err := openCheckpoints(ctx, cfg.CheckpointDBPath)
	if err != nil {
		slog.Error("Failed to initialize checkpoint store", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := checkpoints.Close(); closeErr != nil {
			slog.Error("Failed to close checkpoint store", "error", closeErr)
		}
	}()

	turnLog, err := turnlog.New(turnlog.Config{
		Enabled:   cfg.TurnLog.Enabled,
		Dir:       cfg.TurnLog.Dir,
		QueueSize: cfg.TurnLog.QueueSize,
	}, logger)
	if err != nil {
		slog.Error("Failed to initialize turn log", "error", err)
		os.Exit(1)
	}

	// Initialize services.
	hub := feed.NewHub(cfg.FrontendURL, cfg.IsDevelopment(), logger)
	publishers := []session.Publisher{hub}
	if turnLog != nil {
		defer func() { _ = turnLog.Close() }()
		publishers = append(publishers, turnLog)
	}

	engine := wargame.NewEngine(backend, cfg.EngineOptions(logger))
	svc := session.NewService(engine, session.NewStore(), checkpoints, logger, publishers...)
	svc.StartSweeper(ctx, 0, cfg.SessionTTL, hub.CloseSession)

	limiter := api.NewRateLimiter(ctx, cfg.RateLimit.RequestsPerWindow, cfg.RateLimit.Window)
	handler := api.NewHandler(svc, hub, limiter, logger)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(allowedOrigins(cfg)))
	r.Use(identity.Middleware)

	r.Method(http.MethodGet, "/ready", health.ReadyHandler(pingers...))
	handler.Routes(r)
	r.Handle("/*", web.ObserverHandler())

	// Turns can wait minutes on the model, so there is no write timeout.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	var grpcDone chan error
	if cfg.GRPCPort != "" {
		healthSrv, err := health.NewServer(net.JoinHostPort("", cfg.GRPCPort), logger)
		if err != nil {
			slog.Error("Failed to start gRPC health server", "error", err)
			os.Exit(1)
		}
		grpcDone = make(chan error, 1)
		go func() { grpcDone <- healthSrv.Serve(ctx) }()
		healthSrv.SetServing(true)
	}

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}
	if grpcDone != nil {
		if err := <-grpcDone; err != nil {
			slog.Error("gRPC health server stopped with error", "error", err)
		}
	}

	slog.Info("Server stopped successfully")
}

// openCheckpoints returns the sqlite store when a path is configured and
// the in-memory store otherwise.
func openCheckpoints(ctx context.Context, path string) (checkpoint.Store, []health.Pinger, error) {
	if path == "" {
		slog.Info("Using in-memory checkpoints")
		return checkpoint.NewMemoryStore(), nil, nil
	}
	store, err := checkpoint.NewSQLiteStore(path)
	if err != nil {
		return nil, nil, err
	}
	if err := store.Ping(ctx); err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	slog.Info("Checkpoint database connected", "path", path)
	return store, []health.Pinger{store}, nil
}

func allowedOrigins(cfg *config.Config) []string {
	if cfg.IsDevelopment() {
		return []string{"*"}
	}
	return []string{cfg.FrontendURL}
}
