package session

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ashureev/wargame/internal/checkpoint"
	"github.com/ashureev/wargame/internal/domain"
	"github.com/ashureev/wargame/internal/wargame"
)

var errBusy = wargame.ErrTurnInProgress

// EventType names a session event.
type EventType string

const (
	EventScenarioStarted EventType = "scenario_started"
	EventTurnProcessed   EventType = "turn_processed"
	EventRolledBack      EventType = "rolled_back"
)

// Event is published after every change to a session's transcript.
type Event struct {
	Type          EventType                 `json:"type"`
	SessionID     string                    `json:"session_id"`
	Messages      []domain.Message          `json:"messages,omitempty"`
	Dropped       []wargame.DroppedForecast `json:"dropped,omitempty"`
	CheckpointKey checkpoint.Key            `json:"checkpoint_key,omitempty"`
	Timestamp     time.Time                 `json:"timestamp"`
}

// Publisher receives session events. Publish must not block.
type Publisher interface {
	Publish(Event)
}

// Turn is the result of one processed turn.
type Turn struct {
	Narration     domain.Message            `json:"narration"`
	Outcomes      []domain.OutcomeRecord    `json:"outcomes"`
	Dropped       []wargame.DroppedForecast `json:"dropped,omitempty"`
	CheckpointKey checkpoint.Key            `json:"checkpoint_key"`
	HistoryLength int                       `json:"history_length"`
}

// Service implements the session operations on top of the engine.
type Service struct {
	engine      *wargame.Engine
	sessions    *Store
	checkpoints checkpoint.Store
	publishers  []Publisher
	logger      *slog.Logger
}

// NewService wires a service. Publishers are notified in order.
func NewService(engine *wargame.Engine, sessions *Store, checkpoints checkpoint.Store, logger *slog.Logger, publishers ...Publisher) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		engine:      engine,
		sessions:    sessions,
		checkpoints: checkpoints,
		publishers:  publishers,
		logger:      logger,
	}
}

// List returns every session ID in sorted order.
func (s *Service) List() []string {
	return s.sessions.IDs()
}

// Create opens a new inactive session.
func (s *Service) Create() Snapshot {
	snap := s.sessions.Create()
	s.logger.Info("Session created", "session_id", snap.ID)
	return snap
}

// Get returns a session snapshot.
func (s *Service) Get(id string) (Snapshot, error) {
	return s.sessions.Get(id)
}

// AssignRoles replaces the player list. Roles are fixed once the scenario
// starts, and cannot change while the opening is being generated.
func (s *Service) AssignRoles(id, text string) ([]domain.Player, error) {
	e, err := s.sessions.entry(id)
	if err != nil {
		return nil, err
	}
	if err := e.acquire(); err != nil {
		return nil, err
	}
	defer e.release()

	players, err := domain.ParseRoles(text)
	if err != nil {
		return nil, wargame.UserInputf("%v", err)
	}
	snap, err := e.update(func(cur Snapshot) (Snapshot, error) {
		if cur.State.IsActive {
			return cur, wargame.ErrAlreadyActive
		}
		cur.Players = players
		return cur, nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Roles assigned", "session_id", id, "players", len(snap.Players))
	return snap.Players, nil
}

// StartScenario initializes the scenario from seed text and activates the
// session. The opening state is checkpointed.
func (s *Service) StartScenario(ctx context.Context, id, seed string) ([]domain.Message, checkpoint.Key, error) {
	e, err := s.sessions.entry(id)
	if err != nil {
		return nil, "", err
	}
	if err := e.acquire(); err != nil {
		return nil, "", err
	}
	defer e.release()

	cur := e.view()
	if cur.State.IsActive {
		return nil, "", wargame.ErrAlreadyActive
	}

	history, err := s.engine.InitializeScenario(ctx, seed, cur.Players)
	if err != nil {
		return nil, "", err
	}

	state := domain.ScenarioState{IsActive: true, Messages: history}
	if _, err := e.update(func(snap Snapshot) (Snapshot, error) {
		if !slices.Equal(snap.Players, cur.Players) {
			return snap, wargame.UserInputf("roles changed while the scenario was starting")
		}
		snap.State = state
		return snap, nil
	}); err != nil {
		return nil, "", err
	}
	key := s.checkpoint(ctx, id, state)

	s.logger.Info("Scenario started", "session_id", id, "checkpoint", key)
	s.publish(Event{Type: EventScenarioStarted, SessionID: id, Messages: history, CheckpointKey: key})
	return history, key, nil
}

// Enqueue appends an interaction to the pending queue.
func (s *Service) Enqueue(id string, kind domain.Kind, playerID, content string) (domain.Interaction, error) {
	e, err := s.sessions.entry(id)
	if err != nil {
		return domain.Interaction{}, err
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return domain.Interaction{}, wargame.UserInputf("interaction content is required")
	}

	var in domain.Interaction
	_, err = e.update(func(cur Snapshot) (Snapshot, error) {
		if !cur.State.IsActive {
			return cur, wargame.ErrInactive
		}
		player, ok := cur.Player(playerID)
		if !ok {
			return cur, wargame.UserInputf("player %q has no assigned role", playerID)
		}
		in = domain.Interaction{ID: uuid.NewString(), Kind: kind, Player: player, Content: content}
		queue := make(domain.Queue, 0, len(cur.Queue)+1)
		cur.Queue = append(append(queue, cur.Queue...), in)
		return cur, nil
	})
	if err != nil {
		return domain.Interaction{}, err
	}
	s.logger.Debug("Interaction queued", "session_id", id, "kind", kind, "player_id", playerID)
	return in, nil
}

// Dequeue removes the interaction at index.
func (s *Service) Dequeue(id string, index int) (domain.Interaction, error) {
	e, err := s.sessions.entry(id)
	if err != nil {
		return domain.Interaction{}, err
	}
	var removed domain.Interaction
	_, err = e.update(func(cur Snapshot) (Snapshot, error) {
		queue, in, err := cur.Queue.Remove(index)
		if err != nil {
			return cur, wargame.UserInputf("%v", err)
		}
		removed = in
		cur.Queue = queue
		return cur, nil
	})
	return removed, err
}

// Queue returns the pending interactions.
func (s *Service) Queue(id string) (domain.Queue, error) {
	snap, err := s.sessions.Get(id)
	if err != nil {
		return nil, err
	}
	return snap.Queue, nil
}

// History returns the canonical transcript.
func (s *Service) History(id string) ([]domain.Message, error) {
	snap, err := s.sessions.Get(id)
	if err != nil {
		return nil, err
	}
	return snap.State.Messages, nil
}

// Process runs one turn over the current queue. Only one turn runs per
// session at a time; a concurrent call fails with ErrTurnInProgress.
// On failure the transcript and queue are left unchanged.
func (s *Service) Process(ctx context.Context, id string) (Turn, error) {
	e, err := s.sessions.entry(id)
	if err != nil {
		return Turn{}, err
	}
	if err := e.acquire(); err != nil {
		return Turn{}, err
	}
	defer e.release()

	cur := e.view()
	if !cur.State.IsActive {
		return Turn{}, wargame.ErrInactive
	}
	if len(cur.Queue) == 0 {
		return Turn{}, wargame.UserInputf("queue is empty")
	}

	log := s.logger.With("session_id", id)
	log.Info("Processing turn", "interactions", len(cur.Queue))

	result, err := s.engine.ProcessActions(ctx, cur.State.Messages, cur.Queue)
	if err != nil {
		log.Error("Turn failed", "error", err)
		return Turn{}, fmt.Errorf("process turn: %w", err)
	}

	processed := make(map[string]bool, len(cur.Queue))
	for _, in := range cur.Queue {
		processed[in.ID] = true
	}
	state := domain.ScenarioState{IsActive: true, Messages: result.Messages}
	if _, err := e.update(func(snap Snapshot) (Snapshot, error) {
		snap.State = state
		var remaining domain.Queue
		for _, in := range snap.Queue {
			if !processed[in.ID] {
				remaining = append(remaining, in)
			}
		}
		snap.Queue = remaining
		return snap, nil
	}); err != nil {
		return Turn{}, err
	}

	key := s.checkpoint(ctx, id, state)
	added := result.Messages[len(cur.State.Messages):]
	s.publish(Event{Type: EventTurnProcessed, SessionID: id, Messages: added, Dropped: result.Dropped, CheckpointKey: key})

	return Turn{
		Narration:     result.Narration(),
		Outcomes:      result.Outcomes,
		Dropped:       result.Dropped,
		CheckpointKey: key,
		HistoryLength: len(result.Messages),
	}, nil
}

// Checkpoint stores the current scenario state and returns its key.
func (s *Service) Checkpoint(ctx context.Context, id string) (checkpoint.Key, error) {
	snap, err := s.sessions.Get(id)
	if err != nil {
		return "", err
	}
	if !snap.State.IsActive {
		return "", wargame.ErrInactive
	}
	key, err := s.checkpoints.Save(ctx, id, snap.State)
	if err != nil {
		return "", fmt.Errorf("save checkpoint: %w", err)
	}
	if _, err := s.sessions.Get(id); err != nil {
		// Removed while saving; drop what was just written.
		_ = s.checkpoints.DeleteSession(ctx, id)
		return "", err
	}
	return key, nil
}

// Checkpoints lists the session's stored checkpoints.
func (s *Service) Checkpoints(ctx context.Context, id string) ([]checkpoint.Info, error) {
	if _, err := s.sessions.Get(id); err != nil {
		return nil, err
	}
	return s.checkpoints.List(ctx, id)
}

// Rollback restores the scenario state stored under key. The session stays
// active and its queue is kept. On failure nothing changes.
func (s *Service) Rollback(ctx context.Context, id string, key checkpoint.Key) ([]domain.Message, error) {
	e, err := s.sessions.entry(id)
	if err != nil {
		return nil, err
	}
	if err := e.acquire(); err != nil {
		return nil, err
	}
	defer e.release()

	if !e.view().State.IsActive {
		return nil, wargame.ErrInactive
	}
	restored, err := s.checkpoints.Load(ctx, id, key)
	if err != nil {
		return nil, fmt.Errorf("rollback to %s: %w", key, err)
	}
	restored.IsActive = true

	if _, err := e.update(func(snap Snapshot) (Snapshot, error) {
		snap.State = restored
		return snap, nil
	}); err != nil {
		return nil, err
	}

	s.logger.Info("Rolled back", "session_id", id, "checkpoint", key, "messages", len(restored.Messages))
	s.publish(Event{Type: EventRolledBack, SessionID: id, Messages: restored.Messages, CheckpointKey: key})
	return restored.Messages, nil
}

// Remove deletes a session and its checkpoints.
func (s *Service) Remove(ctx context.Context, id string) error {
	if err := s.sessions.Delete(id); err != nil {
		return err
	}
	if err := s.checkpoints.DeleteSession(ctx, id); err != nil {
		s.logger.Warn("Failed to delete checkpoints", "session_id", id, "error", err)
	}
	return nil
}

// checkpoint saves state, logging instead of failing: the turn already
// committed and the caller can checkpoint again explicitly.
func (s *Service) checkpoint(ctx context.Context, id string, state domain.ScenarioState) checkpoint.Key {
	key, err := s.checkpoints.Save(ctx, id, state)
	if err != nil {
		s.logger.Error("Automatic checkpoint failed", "session_id", id, "error", err)
		return ""
	}
	return key
}

func (s *Service) publish(ev Event) {
	ev.Timestamp = time.Now().UTC()
	for _, p := range s.publishers {
		p.Publish(ev)
	}
}
