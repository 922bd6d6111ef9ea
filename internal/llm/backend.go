// Package llm abstracts the language-model backend behind one interface
// with vendor-specific adapters.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ashureev/wargame/internal/domain"
)

// ErrToolsUnsupported is returned when a request carries tools but the
// backend cannot honour them.
var ErrToolsUnsupported = errors.New("backend does not support tool calls")

// Tool describes a function the model may call to return structured output.
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]any // JSON schema
}

// ToolCall is a structured function call returned by the model.
type ToolCall struct {
	Name      string
	Arguments string // raw JSON
}

// Request is one completion request.
type Request struct {
	System   string
	Messages []domain.Message
	Tools    []Tool
	// RequireTool forces the model to call the named tool.
	RequireTool string
}

// Response is the model's reply.
type Response struct {
	Text      string
	ToolCalls []ToolCall
}

// ToolCall returns the first call to the named tool.
func (r Response) ToolCall(name string) (ToolCall, bool) {
	for _, tc := range r.ToolCalls {
		if tc.Name == name {
			return tc, true
		}
	}
	return ToolCall{}, false
}

// Capabilities advertises optional backend features.
type Capabilities struct {
	// StructuredOutcomes is true when the backend can be forced to return
	// a tool call with machine-parseable arguments.
	StructuredOutcomes bool
}

// Backend is the capability every vendor adapter implements.
type Backend interface {
	Complete(ctx context.Context, req Request) (Response, error)
	Capabilities() Capabilities
}

// Config selects and configures a vendor adapter.
type Config struct {
	Provider    string
	Model       string
	APIKey      string
	BaseURL     string
	Seed        int64
	// Temperature is left to the provider default when nil.
	Temperature *float64
	MaxTokens   int
}

// New builds the adapter named by cfg.Provider.
func New(cfg Config) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "openai":
		return NewOpenAIBackend(OpenAIConfig{
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Seed:        cfg.Seed,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			MaxRetries:  2,
		})
	case "anthropic":
		return NewAnthropicBackend(AnthropicConfig{
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			MaxRetries:  2,
		})
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
