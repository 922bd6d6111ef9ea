// Package turnlog journals every scenario change to one ndjson file per
// session.
package turnlog

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ashureev/wargame/internal/session"
)

// Config controls the journal.
type Config struct {
	Enabled   bool
	Dir       string
	QueueSize int
}

// Record is one journal line.
type Record struct {
	Timestamp     time.Time `json:"ts"`
	SessionID     string    `json:"session_id"`
	EventType     string    `json:"event_type"`
	Role          string    `json:"role,omitempty"`
	Content       string    `json:"content,omitempty"`
	Player        string    `json:"player,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	CheckpointKey string    `json:"checkpoint_key,omitempty"`
}

// Logger writes session events in the background. Publish never blocks;
// when the queue is full the event is dropped and counted.
type Logger struct {
	dir     string
	queue   chan session.Event
	logger  *slog.Logger
	wg      sync.WaitGroup
	once    sync.Once
	mu      sync.Mutex
	closed  bool
	dropped int
}

// New starts a journal. It returns nil when the journal is disabled.
func New(cfg Config, logger *slog.Logger) (*Logger, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Dir == "" {
		return nil, errors.New("turn log directory is required")
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create turn log dir: %w", err)
	}

	l := &Logger{
		dir:    cfg.Dir,
		queue:  make(chan session.Event, cfg.QueueSize),
		logger: logger,
	}
	l.wg.Add(1)
	go l.run()
	return l, nil
}

// Publish queues an event for writing.
func (l *Logger) Publish(ev session.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	select {
	case l.queue <- ev:
	default:
		l.dropped++
		l.logger.Warn("Turn log queue full, dropping event", "session_id", ev.SessionID, "dropped", l.dropped)
	}
}

// Close drains the queue and stops the writer.
func (l *Logger) Close() error {
	l.once.Do(func() {
		l.mu.Lock()
		l.closed = true
		close(l.queue)
		l.mu.Unlock()
	})
	l.wg.Wait()
	return nil
}

func (l *Logger) run() {
	defer l.wg.Done()
	for ev := range l.queue {
		if err := l.write(ev); err != nil {
			l.logger.Error("Failed to write turn log", "session_id", ev.SessionID, "error", err)
		}
	}
}

func (l *Logger) write(ev session.Event) error {
	path, err := l.path(ev.SessionID)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open turn log: %w", err)
	}
	defer func() { _ = f.Close() }()

	enc := json.NewEncoder(f)
	for _, rec := range records(ev) {
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("encode turn log record: %w", err)
		}
	}
	return nil
}

func (l *Logger) path(sessionID string) (string, error) {
	name := filepath.Base(filepath.Clean(sessionID))
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("invalid session id %q", sessionID)
	}
	return filepath.Join(l.dir, name+".ndjson"), nil
}

// records flattens an event into journal lines: one per message, then one
// per dropped forecast.
func records(ev session.Event) []Record {
	base := Record{
		Timestamp:     ev.Timestamp,
		SessionID:     ev.SessionID,
		EventType:     string(ev.Type),
		CheckpointKey: string(ev.CheckpointKey),
	}
	if ev.Type == session.EventRolledBack {
		return []Record{base}
	}

	out := make([]Record, 0, len(ev.Messages)+len(ev.Dropped))
	for _, m := range ev.Messages {
		rec := base
		rec.Role = string(m.Role)
		rec.Content = m.Content
		out = append(out, rec)
	}
	for _, d := range ev.Dropped {
		rec := base
		rec.EventType = "forecast_dropped"
		rec.Player = d.Interaction.Player.Name
		rec.Content = d.Interaction.Content
		rec.Reason = d.Reason
		out = append(out, rec)
	}
	if len(out) == 0 {
		out = append(out, base)
	}
	return out
}
