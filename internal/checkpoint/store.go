// Package checkpoint provides content-addressed snapshots of scenario state.
package checkpoint

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ashureev/wargame/internal/domain"
)

// ErrNotFound is returned when a checkpoint key is absent.
var ErrNotFound = errors.New("checkpoint not found")

// Key identifies a checkpoint. It is the hex SHA-256 of the state's
// canonical JSON encoding, so identical states share a key.
type Key string

// Info describes a stored checkpoint.
type Info struct {
	Key       Key       `json:"key"`
	Messages  int       `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists checkpoints per session. Implementations store and return
// deep copies so callers never alias stored state.
type Store interface {
	// Save stores state and returns its key. Saving identical content twice
	// returns the same key and does not grow the store.
	Save(ctx context.Context, sessionID string, state domain.ScenarioState) (Key, error)

	// Load returns a copy of the state stored under key, or ErrNotFound.
	Load(ctx context.Context, sessionID string, key Key) (domain.ScenarioState, error)

	// List returns the session's checkpoints, oldest first.
	List(ctx context.Context, sessionID string) ([]Info, error)

	// DeleteSession drops every checkpoint of a session.
	DeleteSession(ctx context.Context, sessionID string) error

	// Close releases resources.
	Close() error
}

// Hash returns the content key of state.
func Hash(state domain.ScenarioState) (Key, error) {
	data, err := encode(state)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return Key(hex.EncodeToString(sum[:])), nil
}

func encode(state domain.ScenarioState) ([]byte, error) {
	if state.Messages == nil {
		state.Messages = []domain.Message{}
	}
	data, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("encode scenario state: %w", err)
	}
	return data, nil
}

func decode(data []byte) (domain.ScenarioState, error) {
	var state domain.ScenarioState
	if err := json.Unmarshal(data, &state); err != nil {
		return domain.ScenarioState{}, fmt.Errorf("decode scenario state: %w", err)
	}
	return state, nil
}
