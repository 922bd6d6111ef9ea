package domain

import (
	"fmt"
	"strings"
)

// Kind categorizes a player interaction.
type Kind string

const (
	// KindInfo is a query about existing world state. It never advances time.
	KindInfo Kind = "INFO"
	// KindFeed asserts new ground truth. It is trusted as fact and never advances time.
	KindFeed Kind = "FEED"
	// KindAction is an attempt to change the world and may advance time.
	KindAction Kind = "ACTION"
)

// ParseKind parses a kind name case-insensitively.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToUpper(strings.TrimSpace(s))); k {
	case KindInfo, KindFeed, KindAction:
		return k, nil
	default:
		return "", fmt.Errorf("unknown interaction kind %q", s)
	}
}

// IsWorldTruth reports whether interactions of this kind bypass forecasting.
func (k Kind) IsWorldTruth() bool {
	return k == KindFeed
}

// Interaction is a single player-submitted message. It is an immutable value.
type Interaction struct {
	ID      string `json:"id"`
	Kind    Kind   `json:"kind"`
	Player  Player `json:"player"`
	Content string `json:"content"`
}

// String renders the interaction line used in prompts and outcome blocks.
func (i Interaction) String() string {
	return fmt.Sprintf("%s from %s: %s", i.Kind, i.Player, i.Content)
}

// Queue is the ordered list of pending interactions. Order is display
// order only; every entry is treated as concurrent within one turn.
type Queue []Interaction

// Remove returns a copy of q without the element at index.
func (q Queue) Remove(index int) (Queue, Interaction, error) {
	if index < 0 || index >= len(q) {
		return q, Interaction{}, fmt.Errorf("index %d out of range [0, %d)", index, len(q))
	}
	removed := q[index]
	out := make(Queue, 0, len(q)-1)
	out = append(out, q[:index]...)
	out = append(out, q[index+1:]...)
	return out, removed, nil
}

// OutcomeCandidate is one weighted possibility produced while forecasting.
type OutcomeCandidate struct {
	Description string  `json:"description"`
	Weight      float64 `json:"weight"`
}

// OutcomeRecord ties a chosen outcome to the interaction it resolves.
type OutcomeRecord struct {
	Interaction Interaction `json:"interaction"`
	Outcome     string      `json:"outcome"`
}
