// Package session owns per-game state and exposes the operations the
// command layer calls: role assignment, queueing, turn processing and
// checkpoint/rollback.
package session

import (
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ashureev/wargame/internal/domain"
)

// ErrSessionNotFound is returned for unknown session IDs.
var ErrSessionNotFound = errors.New("session not found")

// Snapshot is an immutable view of one session. Writers replace it; they
// never modify the slices of a published snapshot.
type Snapshot struct {
	ID        string               `json:"id"`
	Players   []domain.Player      `json:"players"`
	State     domain.ScenarioState `json:"state"`
	Queue     domain.Queue         `json:"queue"`
	CreatedAt time.Time            `json:"created_at"`
	UpdatedAt time.Time            `json:"updated_at"`
}

// Player returns the assigned player with the given ID.
func (s Snapshot) Player(id string) (domain.Player, bool) {
	for _, p := range s.Players {
		if p.ID == id {
			return p, true
		}
	}
	return domain.Player{}, false
}

type entry struct {
	mu      sync.Mutex
	busy    atomic.Bool
	removed atomic.Bool
	snap    Snapshot
}

// view returns the current snapshot.
func (e *entry) view() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snap
}

// update applies fn to the current snapshot under the entry lock and
// publishes the result when fn succeeds. A removed entry rejects updates.
func (e *entry) update(fn func(Snapshot) (Snapshot, error)) (Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed.Load() {
		return e.snap, ErrSessionNotFound
	}
	next, err := fn(e.snap)
	if err != nil {
		return e.snap, err
	}
	next.UpdatedAt = time.Now()
	e.snap = next
	return next, nil
}

// acquire claims the session for one turn. It fails instead of waiting,
// and fails for good once the session has been deleted.
func (e *entry) acquire() error {
	if e.busy.CompareAndSwap(false, true) {
		return nil
	}
	if e.removed.Load() {
		return ErrSessionNotFound
	}
	return errBusy
}

func (e *entry) release() {
	e.busy.Store(false)
}

// Store holds sessions keyed by ID.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*entry
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{sessions: make(map[string]*entry)}
}

// Create registers a new inactive session.
func (s *Store) Create() Snapshot {
	now := time.Now()
	snap := Snapshot{ID: uuid.NewString(), CreatedAt: now, UpdatedAt: now}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[snap.ID] = &entry{snap: snap}
	return snap
}

// Get returns the current snapshot of a session.
func (s *Store) Get(id string) (Snapshot, error) {
	e, err := s.entry(id)
	if err != nil {
		return Snapshot{}, err
	}
	return e.view(), nil
}

// IDs returns every session ID in sorted order.
func (s *Store) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Delete removes a session unless a turn is running on it. The entry keeps
// its claim forever, so callers that looked it up earlier cannot start a
// turn on it afterwards.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	if !e.busy.CompareAndSwap(false, true) {
		return errBusy
	}
	e.removed.Store(true)
	delete(s.sessions, id)
	return nil
}

// Idle returns sessions not updated since cutoff and not running a turn.
func (s *Store) Idle(cutoff time.Time) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []string
	for id, e := range s.sessions {
		if e.busy.Load() {
			continue
		}
		if e.view().UpdatedAt.Before(cutoff) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *Store) entry(id string) (*entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return e, nil
}
