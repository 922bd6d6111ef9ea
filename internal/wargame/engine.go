package wargame

import (
	"log/slog"
	"time"

	"github.com/ashureev/wargame/internal/llm"
)

const (
	defaultConcurrency      = 4
	defaultForecastTimeout  = 90 * time.Second
	defaultNarrationTimeout = 180 * time.Second
)

// Options tunes an Engine.
type Options struct {
	// Concurrency caps simultaneous forecast requests. Excess requests wait.
	Concurrency      int
	ForecastTimeout  time.Duration
	NarrationTimeout time.Duration
	// Seed fixes outcome sampling for reproducible runs. Zero means random.
	Seed   int64
	Logger *slog.Logger
}

// Engine runs scenario initialization and turn processing against a Backend.
// It holds no session state and is safe for concurrent use.
type Engine struct {
	backend          llm.Backend
	rng              Float64Source
	concurrency      int
	forecastTimeout  time.Duration
	narrationTimeout time.Duration
	logger           *slog.Logger
}

// NewEngine creates an engine bound to backend.
func NewEngine(backend llm.Backend, opts Options) *Engine {
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.ForecastTimeout <= 0 {
		opts.ForecastTimeout = defaultForecastTimeout
	}
	if opts.NarrationTimeout <= 0 {
		opts.NarrationTimeout = defaultNarrationTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Engine{
		backend:          backend,
		rng:              newLockedRand(opts.Seed),
		concurrency:      opts.Concurrency,
		forecastTimeout:  opts.ForecastTimeout,
		narrationTimeout: opts.NarrationTimeout,
		logger:           opts.Logger,
	}
}
