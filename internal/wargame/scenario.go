package wargame

import (
	"context"
	"strings"

	"github.com/ashureev/wargame/internal/domain"
	"github.com/ashureev/wargame/internal/llm"
)

// InitialOffset is the time offset of the opening narration.
const InitialOffset = "T+0"

// InitializeScenario opens a scenario from seed text. On success it returns
// exactly two messages: the seed as a user message and the opening
// narration, whose time offset is forced to T+0.
func (e *Engine) InitializeScenario(ctx context.Context, seed string, players []domain.Player) ([]domain.Message, error) {
	seed = strings.TrimSpace(seed)
	if seed == "" {
		return nil, UserInputf("scenario text is required")
	}
	if len(players) == 0 {
		return nil, UserInputf("assign roles before starting the scenario")
	}

	ctx, cancel := context.WithTimeout(ctx, e.narrationTimeout)
	defer cancel()

	opening := domain.Message{Role: domain.RoleUser, Content: seed}
	resp, err := e.backend.Complete(ctx, llm.Request{
		System:   facilitatorPrompt(players),
		Messages: []domain.Message{opening},
	})
	if err != nil {
		return nil, &BackendError{Stage: "initialize", Err: err}
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return nil, &ParseError{Stage: "initialize", Reason: "empty reply"}
	}
	if offset, ok := ParseTimeOffset(text); !ok || offset != InitialOffset {
		e.logger.Debug("Normalizing opening time offset", "offset", offset)
		text = withTimeOffset(text, InitialOffset)
	}

	return []domain.Message{
		opening,
		{Role: domain.RoleAssistant, Content: text},
	}, nil
}
