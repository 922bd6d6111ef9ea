// Package config provides application configuration.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/ashureev/wargame/internal/llm"
	"github.com/ashureev/wargame/internal/wargame"
)

// Config holds all application configuration.
type Config struct {
	Port        string        `env:"PORT" envDefault:"8080"`
	GRPCPort    string        `env:"GRPC_PORT" envDefault:"9090"`
	LogLevel    string        `env:"LOG_LEVEL" envDefault:"info"`
	FrontendURL string        `env:"FRONTEND_URL"`
	SessionTTL  time.Duration `env:"SESSION_IDLE_TTL" envDefault:"24h"`

	CheckpointDBPath string `env:"CHECKPOINT_DB_PATH"`

	LLM       LLMConfig
	Engine    EngineConfig
	RateLimit RateLimitConfig
	TurnLog   TurnLogConfig
}

// LLMConfig selects and tunes the model backend. An unset temperature is
// left to the provider; 0 is sent as is.
type LLMConfig struct {
	Provider    string   `env:"LLM_PROVIDER" envDefault:"openai"`
	Model       string   `env:"LLM_MODEL" envDefault:"gpt-4o"`
	APIKey      string   `env:"LLM_API_KEY"`
	BaseURL     string   `env:"LLM_BASE_URL"`
	Seed        int64    `env:"LLM_SEED" envDefault:"0"`
	Temperature *float64 `env:"LLM_TEMPERATURE"`
	MaxTokens   int      `env:"LLM_MAX_TOKENS" envDefault:"4096"`
}

// EngineConfig bounds turn processing.
type EngineConfig struct {
	ForecastConcurrency int           `env:"FORECAST_CONCURRENCY" envDefault:"4"`
	ForecastTimeout     time.Duration `env:"FORECAST_TIMEOUT" envDefault:"90s"`
	NarrationTimeout    time.Duration `env:"NARRATION_TIMEOUT" envDefault:"180s"`
}

// RateLimitConfig limits interaction submissions per player.
type RateLimitConfig struct {
	RequestsPerWindow int           `env:"RATE_LIMIT_REQUESTS" envDefault:"30"`
	Window            time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1m"`
}

// TurnLogConfig controls the ndjson turn journal.
type TurnLogConfig struct {
	Enabled   bool   `env:"TURN_LOG_ENABLED" envDefault:"false"`
	Dir       string `env:"TURN_LOG_DIR" envDefault:"./data/turns"`
	QueueSize int    `env:"TURN_LOG_QUEUE_SIZE" envDefault:"256"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	switch c.LLM.Provider {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("LLM_PROVIDER must be openai or anthropic, got %q", c.LLM.Provider)
	}
	if c.LLM.APIKey == "" {
		return fmt.Errorf("LLM_API_KEY cannot be empty")
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("LLM_MODEL cannot be empty")
	}
	if c.LLM.MaxTokens <= 0 {
		return fmt.Errorf("LLM_MAX_TOKENS must be > 0")
	}
	if t := c.LLM.Temperature; t != nil && *t < 0 {
		return fmt.Errorf("LLM_TEMPERATURE must be >= 0")
	}
	if c.Engine.ForecastConcurrency <= 0 {
		return fmt.Errorf("FORECAST_CONCURRENCY must be > 0")
	}
	if c.Engine.ForecastTimeout <= 0 || c.Engine.NarrationTimeout <= 0 {
		return fmt.Errorf("FORECAST_TIMEOUT and NARRATION_TIMEOUT must be > 0")
	}
	if c.RateLimit.RequestsPerWindow <= 0 || c.RateLimit.Window <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS and RATE_LIMIT_WINDOW must be > 0")
	}
	if c.TurnLog.Enabled {
		if c.TurnLog.Dir == "" {
			return fmt.Errorf("TURN_LOG_DIR cannot be empty")
		}
		if c.TurnLog.QueueSize <= 0 {
			return fmt.Errorf("TURN_LOG_QUEUE_SIZE must be > 0")
		}
	}
	return nil
}

// SlogLevel parses LOG_LEVEL.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(c.LogLevel))); err != nil {
		return 0, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return level, nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// Backend returns the model backend settings.
func (c *Config) Backend() llm.Config {
	return llm.Config{
		Provider:    c.LLM.Provider,
		Model:       c.LLM.Model,
		APIKey:      c.LLM.APIKey,
		BaseURL:     c.LLM.BaseURL,
		Seed:        c.LLM.Seed,
		Temperature: c.LLM.Temperature,
		MaxTokens:   c.LLM.MaxTokens,
	}
}

// EngineOptions returns the turn engine settings.
func (c *Config) EngineOptions(logger *slog.Logger) wargame.Options {
	return wargame.Options{
		Concurrency:      c.Engine.ForecastConcurrency,
		ForecastTimeout:  c.Engine.ForecastTimeout,
		NarrationTimeout: c.Engine.NarrationTimeout,
		Seed:             c.LLM.Seed,
		Logger:           logger,
	}
}
