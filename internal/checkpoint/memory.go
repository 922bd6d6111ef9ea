package checkpoint

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ashureev/wargame/internal/domain"
)

type memoryEntry struct {
	state     domain.ScenarioState
	createdAt time.Time
}

// MemoryStore keeps checkpoints for the lifetime of the process.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]map[Key]memoryEntry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]map[Key]memoryEntry)}
}

// Save implements Store.
func (m *MemoryStore) Save(_ context.Context, sessionID string, state domain.ScenarioState) (Key, error) {
	key, err := Hash(state)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	entries, ok := m.sessions[sessionID]
	if !ok {
		entries = make(map[Key]memoryEntry)
		m.sessions[sessionID] = entries
	}
	if _, exists := entries[key]; !exists {
		entries[key] = memoryEntry{state: state.Clone(), createdAt: time.Now()}
	}
	return key, nil
}

// Load implements Store.
func (m *MemoryStore) Load(_ context.Context, sessionID string, key Key) (domain.ScenarioState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.sessions[sessionID][key]
	if !ok {
		return domain.ScenarioState{}, ErrNotFound
	}
	return entry.state.Clone(), nil
}

// List implements Store.
func (m *MemoryStore) List(_ context.Context, sessionID string) ([]Info, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	infos := make([]Info, 0, len(m.sessions[sessionID]))
	for key, entry := range m.sessions[sessionID] {
		infos = append(infos, Info{Key: key, Messages: len(entry.state.Messages), CreatedAt: entry.createdAt})
	}
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].CreatedAt.Equal(infos[j].CreatedAt) {
			return infos[i].Messages < infos[j].Messages
		}
		return infos[i].CreatedAt.Before(infos[j].CreatedAt)
	})
	return infos, nil
}

// DeleteSession implements Store.
func (m *MemoryStore) DeleteSession(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error { return nil }

var _ Store = (*MemoryStore)(nil)
