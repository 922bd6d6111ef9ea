package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/ashureev/wargame/internal/domain"
)

// OpenAIConfig configures the OpenAIBackend.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Seed        int64
	Temperature *float64
	MaxTokens   int
	MaxRetries  int
	HTTPClient  *http.Client
}

// OpenAIBackend implements Backend with the Chat Completions API.
// It supports forced tool calls and a fixed sampling seed.
type OpenAIBackend struct {
	client openai.Client
	cfg    OpenAIConfig
}

// NewOpenAIBackend constructs an OpenAI-backed adapter.
func NewOpenAIBackend(cfg OpenAIConfig) (*OpenAIBackend, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai api key must be provided")
	}
	if cfg.Model == "" {
		return nil, errors.New("openai model must be provided")
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

	return &OpenAIBackend{client: openai.NewClient(opts...), cfg: cfg}, nil
}

// Capabilities implements Backend.
func (b *OpenAIBackend) Capabilities() Capabilities {
	return Capabilities{StructuredOutcomes: true}
}

// Complete implements Backend.
func (b *OpenAIBackend) Complete(ctx context.Context, req Request) (Response, error) {
	if len(req.Messages) == 0 {
		return Response{}, errors.New("at least one message must be provided")
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	for _, msg := range req.Messages {
		switch msg.Role {
		case domain.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(msg.Content))
		default:
			messages = append(messages, openai.UserMessage(msg.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(b.cfg.Model),
		Messages: messages,
	}
	if b.cfg.Seed != 0 {
		params.Seed = openai.Int(b.cfg.Seed)
	}
	if b.cfg.Temperature != nil {
		params.Temperature = openai.Float(*b.cfg.Temperature)
	}
	if b.cfg.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(b.cfg.MaxTokens))
	}
	for _, tool := range req.Tools {
		params.Tools = append(params.Tools, openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        tool.Name,
				Description: openai.String(tool.Description),
				Parameters:  openai.FunctionParameters(tool.Parameters),
			},
		})
	}
	if req.RequireTool != "" {
		params.ToolChoice = openai.ChatCompletionToolChoiceOptionUnionParam{
			OfChatCompletionNamedToolChoice: &openai.ChatCompletionNamedToolChoiceParam{
				Function: openai.ChatCompletionNamedToolChoiceFunctionParam{Name: req.RequireTool},
			},
		}
	}

	completion, err := b.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return Response{}, fmt.Errorf("openai chat completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return Response{}, errors.New("openai returned no choices")
	}

	msg := completion.Choices[0].Message
	resp := Response{Text: msg.Content}
	for _, tc := range msg.ToolCalls {
		resp.ToolCalls = append(resp.ToolCalls, ToolCall{
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return resp, nil
}

var _ Backend = (*OpenAIBackend)(nil)
