package wargame

import (
	"context"
	"strings"

	"github.com/ashureev/wargame/internal/domain"
	"github.com/ashureev/wargame/internal/llm"
)

// Narrate issues exactly one model request that merges the turn's
// world-truth updates and resolved outcomes into a world update. It returns
// a new transcript two messages longer than history. Any failure is fatal
// for the turn and history is left untouched.
func (e *Engine) Narrate(ctx context.Context, history []domain.Message, worldTruth []domain.Interaction, outcomes []domain.OutcomeRecord) ([]domain.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, e.narrationTimeout)
	defer cancel()

	turn := domain.Message{Role: domain.RoleUser, Content: CombineOutcomes(worldTruth, outcomes)}

	messages := make([]domain.Message, 0, len(history)+2)
	messages = append(messages, history...)
	messages = append(messages, turn)

	resp, err := e.backend.Complete(ctx, llm.Request{
		System:   narratorPrompt,
		Messages: messages,
	})
	if err != nil {
		return nil, &BackendError{Stage: "narrate", Err: err}
	}
	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return nil, &ParseError{Stage: "narrate", Reason: "empty reply"}
	}

	return append(messages, domain.Message{Role: domain.RoleAssistant, Content: text}), nil
}
