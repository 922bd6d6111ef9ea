package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("LLM_API_KEY", "sk-test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != "8080" || cfg.GRPCPort != "9090" {
		t.Errorf("ports = %q/%q, want 8080/9090", cfg.Port, cfg.GRPCPort)
	}
	if cfg.LLM.Provider != "openai" || cfg.LLM.Model != "gpt-4o" {
		t.Errorf("backend = %s/%s, want openai/gpt-4o", cfg.LLM.Provider, cfg.LLM.Model)
	}
	if cfg.Engine.ForecastConcurrency != 4 {
		t.Errorf("ForecastConcurrency = %d, want 4", cfg.Engine.ForecastConcurrency)
	}
	if cfg.Engine.ForecastTimeout != 90*time.Second || cfg.Engine.NarrationTimeout != 180*time.Second {
		t.Errorf("timeouts = %v/%v", cfg.Engine.ForecastTimeout, cfg.Engine.NarrationTimeout)
	}
	if cfg.SessionTTL != 24*time.Hour {
		t.Errorf("SessionTTL = %v, want 24h", cfg.SessionTTL)
	}
	if cfg.RateLimit.RequestsPerWindow != 30 || cfg.RateLimit.Window != time.Minute {
		t.Errorf("rate limit = %d per %v", cfg.RateLimit.RequestsPerWindow, cfg.RateLimit.Window)
	}
	if cfg.LLM.Temperature != nil {
		t.Errorf("Temperature = %v, want unset", *cfg.LLM.Temperature)
	}
	if cfg.CheckpointDBPath != "" {
		t.Errorf("CheckpointDBPath = %q, want empty", cfg.CheckpointDBPath)
	}
	if level, _ := cfg.SlogLevel(); level != slog.LevelInfo {
		t.Errorf("SlogLevel = %v, want info", level)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("LLM_API_KEY", "sk-test")
	t.Setenv("LLM_PROVIDER", "anthropic")
	t.Setenv("LLM_SEED", "42")
	t.Setenv("FORECAST_CONCURRENCY", "2")
	t.Setenv("FORECAST_TIMEOUT", "5s")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LLM_TEMPERATURE", "0")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Backend().Provider != "anthropic" || cfg.Backend().Seed != 42 {
		t.Errorf("Backend() = %+v", cfg.Backend())
	}
	if temp := cfg.Backend().Temperature; temp == nil || *temp != 0 {
		t.Errorf("Backend().Temperature = %v, want explicit 0", temp)
	}
	opts := cfg.EngineOptions(nil)
	if opts.Concurrency != 2 || opts.ForecastTimeout != 5*time.Second || opts.Seed != 42 {
		t.Errorf("EngineOptions() = %+v", opts)
	}
	if level, _ := cfg.SlogLevel(); level != slog.LevelDebug {
		t.Errorf("SlogLevel = %v, want debug", level)
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Port:     "8080",
			LogLevel: "info",
			LLM:      LLMConfig{Provider: "openai", Model: "gpt-4o", APIKey: "k", MaxTokens: 10},
			Engine:   EngineConfig{ForecastConcurrency: 1, ForecastTimeout: time.Second, NarrationTimeout: time.Second},
			RateLimit: RateLimitConfig{
				RequestsPerWindow: 1,
				Window:            time.Second,
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing key", func(c *Config) { c.LLM.APIKey = "" }, "LLM_API_KEY"},
		{"unknown provider", func(c *Config) { c.LLM.Provider = "llama" }, "LLM_PROVIDER"},
		{"negative temperature", func(c *Config) { neg := -0.5; c.LLM.Temperature = &neg }, "LLM_TEMPERATURE"},
		{"zero concurrency", func(c *Config) { c.Engine.ForecastConcurrency = 0 }, "FORECAST_CONCURRENCY"},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "LOG_LEVEL"},
		{"turn log without dir", func(c *Config) { c.TurnLog = TurnLogConfig{Enabled: true, QueueSize: 1} }, "TURN_LOG_DIR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() error = %v, want mention of %s", err, tt.wantErr)
			}
		})
	}
}
