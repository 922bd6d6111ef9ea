package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/ashureev/wargame/internal/domain"
)

const defaultAnthropicMaxTokens = 4096

// AnthropicConfig configures the AnthropicBackend.
type AnthropicConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature *float64
	MaxTokens   int
	MaxRetries  int
	HTTPClient  *http.Client
}

// AnthropicBackend implements Backend with the Messages API. It has no
// structured-outcome support, so forecasts use the text-marker path.
type AnthropicBackend struct {
	client anthropic.Client
	cfg    AnthropicConfig
}

// NewAnthropicBackend constructs an Anthropic-backed adapter.
func NewAnthropicBackend(cfg AnthropicConfig) (*AnthropicBackend, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic api key must be provided")
	}
	if cfg.Model == "" {
		return nil, errors.New("anthropic model must be provided")
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultAnthropicMaxTokens
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		opts = append(opts, option.WithBaseURL(base))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}

	return &AnthropicBackend{client: anthropic.NewClient(opts...), cfg: cfg}, nil
}

// Capabilities implements Backend.
func (b *AnthropicBackend) Capabilities() Capabilities {
	return Capabilities{StructuredOutcomes: false}
}

// Complete implements Backend.
func (b *AnthropicBackend) Complete(ctx context.Context, req Request) (Response, error) {
	if len(req.Messages) == 0 {
		return Response{}, errors.New("at least one message must be provided")
	}
	if len(req.Tools) > 0 || req.RequireTool != "" {
		return Response{}, ErrToolsUnsupported
	}

	messages := make([]anthropic.MessageParam, 0, len(req.Messages))
	for _, msg := range req.Messages {
		block := anthropic.NewTextBlock(msg.Content)
		switch msg.Role {
		case domain.RoleAssistant:
			messages = append(messages, anthropic.NewAssistantMessage(block))
		default:
			messages = append(messages, anthropic.NewUserMessage(block))
		}
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(b.cfg.Model),
		MaxTokens: int64(b.cfg.MaxTokens),
		Messages:  messages,
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if b.cfg.Temperature != nil {
		params.Temperature = anthropic.Float(*b.cfg.Temperature)
	}

	msg, err := b.client.Messages.New(ctx, params)
	if err != nil {
		return Response{}, fmt.Errorf("anthropic messages: %w", err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return Response{Text: text.String()}, nil
}

var _ Backend = (*AnthropicBackend)(nil)
