package checkpoint

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ashureev/wargame/internal/domain"
	"github.com/ashureev/wargame/internal/shared"
	_ "modernc.org/sqlite"
)

const (
	sqliteRetryAttempts = 3
	sqliteRetryDelay    = 50 * time.Millisecond
)

// SQLiteStore implements Store on a SQLite file so checkpoints survive restarts.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and if needed creates) the checkpoint database.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS checkpoints (
		session_id TEXT NOT NULL,
		key TEXT NOT NULL,
		state_json TEXT NOT NULL,
		message_count INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		PRIMARY KEY (session_id, key)
	);
	CREATE INDEX IF NOT EXISTS idx_checkpoints_created ON checkpoints(session_id, created_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Save implements Store.
func (s *SQLiteStore) Save(ctx context.Context, sessionID string, state domain.ScenarioState) (Key, error) {
	data, err := encode(state)
	if err != nil {
		return "", err
	}
	key, err := Hash(state)
	if err != nil {
		return "", err
	}

	query := `
		INSERT INTO checkpoints (session_id, key, state_json, message_count, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(session_id, key) DO NOTHING`

	err = shared.RetryOnConflict(ctx, "save checkpoint", sqliteRetryAttempts, sqliteRetryDelay, func() error {
		_, execErr := s.db.ExecContext(ctx, query, sessionID, string(key), string(data), len(state.Messages), time.Now().UnixNano())
		return execErr
	})
	if err != nil {
		return "", fmt.Errorf("insert checkpoint: %w", err)
	}
	return key, nil
}

// Load implements Store.
func (s *SQLiteStore) Load(ctx context.Context, sessionID string, key Key) (domain.ScenarioState, error) {
	query := `SELECT state_json FROM checkpoints WHERE session_id = ? AND key = ?`

	var data string
	err := s.db.QueryRowContext(ctx, query, sessionID, string(key)).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ScenarioState{}, ErrNotFound
	}
	if err != nil {
		return domain.ScenarioState{}, fmt.Errorf("scan checkpoint row: %w", err)
	}
	return decode([]byte(data))
}

// List implements Store.
func (s *SQLiteStore) List(ctx context.Context, sessionID string) ([]Info, error) {
	query := `
		SELECT key, message_count, created_at
		FROM checkpoints WHERE session_id = ?
		ORDER BY created_at, message_count`

	rows, err := s.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query checkpoints: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close checkpoint rows", "error", closeErr)
		}
	}()

	var infos []Info
	for rows.Next() {
		var info Info
		var key string
		var createdAt int64
		if err := rows.Scan(&key, &info.Messages, &createdAt); err != nil {
			return nil, fmt.Errorf("scan checkpoint info: %w", err)
		}
		info.Key = Key(key)
		info.CreatedAt = time.Unix(0, createdAt)
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate checkpoints: %w", err)
	}
	return infos, nil
}

// DeleteSession implements Store.
func (s *SQLiteStore) DeleteSession(ctx context.Context, sessionID string) error {
	err := shared.RetryOnConflict(ctx, "delete checkpoints", sqliteRetryAttempts, sqliteRetryDelay, func() error {
		_, execErr := s.db.ExecContext(ctx, `DELETE FROM checkpoints WHERE session_id = ?`, sessionID)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("delete checkpoints for %s: %w", sessionID, err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

var _ Store = (*SQLiteStore)(nil)
