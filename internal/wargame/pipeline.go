package wargame

import (
	"context"
	"fmt"
	"time"

	"github.com/ashureev/wargame/internal/domain"
)

// DroppedForecast records a forecast that failed and was left out of the
// narration.
type DroppedForecast struct {
	Interaction domain.Interaction `json:"interaction"`
	Reason      string             `json:"reason"`
}

// TurnResult is the outcome of one processed turn.
type TurnResult struct {
	Messages []domain.Message       `json:"-"`
	Outcomes []domain.OutcomeRecord `json:"outcomes"`
	Dropped  []DroppedForecast      `json:"dropped,omitempty"`
	Duration time.Duration          `json:"-"`
}

// Narration returns the assistant message appended by the turn.
func (r TurnResult) Narration() domain.Message {
	if len(r.Messages) == 0 {
		return domain.Message{}
	}
	return r.Messages[len(r.Messages)-1]
}

// ProcessActions runs one full turn: partition, forecast, narrate. It fails
// only when narration fails; forecast failures are reported in Dropped.
func (e *Engine) ProcessActions(ctx context.Context, history []domain.Message, queue domain.Queue) (TurnResult, error) {
	start := time.Now()
	if len(history) == 0 {
		return TurnResult{}, fmt.Errorf("process actions: %w", ErrInactive)
	}

	worldTruth, _ := Partition(queue)
	results := e.ForecastOutcomes(ctx, history, queue)

	var result TurnResult
	for _, r := range results {
		if r.Err != nil {
			e.logger.Warn("Forecast dropped",
				"kind", r.Interaction.Kind,
				"player_id", r.Interaction.Player.ID,
				"error", r.Err,
			)
			result.Dropped = append(result.Dropped, DroppedForecast{Interaction: r.Interaction, Reason: r.Err.Error()})
			continue
		}
		result.Outcomes = append(result.Outcomes, r.Record)
	}

	messages, err := e.Narrate(ctx, history, worldTruth, result.Outcomes)
	if err != nil {
		return TurnResult{}, err
	}
	result.Messages = messages
	result.Duration = time.Since(start)

	e.logger.Info("Turn processed",
		"world_truth", len(worldTruth),
		"outcomes", len(result.Outcomes),
		"dropped", len(result.Dropped),
		"duration_ms", result.Duration.Milliseconds(),
	)
	return result, nil
}
