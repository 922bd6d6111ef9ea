package session

import (
	"context"
	"time"
)

const sweepInterval = 5 * time.Minute

// CleanupCallback is called for every session removed by the sweeper.
type CleanupCallback func(sessionID string)

// StartSweeper runs a background goroutine that periodically removes
// sessions idle for longer than ttl, together with their checkpoints.
func (s *Service) StartSweeper(ctx context.Context, interval, ttl time.Duration, onCleanup CleanupCallback) {
	if ttl <= 0 {
		return
	}
	if interval <= 0 {
		interval = sweepInterval
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		s.logger.Info("Session sweeper started", "interval", interval, "ttl", ttl)

		for {
			select {
			case <-ticker.C:
				s.sweep(ctx, time.Now().Add(-ttl), onCleanup)
			case <-ctx.Done():
				s.logger.Info("Session sweeper shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

// sweep removes idle sessions and returns how many were removed.
func (s *Service) sweep(ctx context.Context, cutoff time.Time, onCleanup CleanupCallback) int {
	expired := s.sessions.Idle(cutoff)
	if len(expired) == 0 {
		return 0
	}
	s.logger.Info("Sweeper found idle sessions", "count", len(expired))

	removed := 0
	for _, id := range expired {
		if err := s.Remove(ctx, id); err != nil {
			// A turn may have started after Idle returned.
			s.logger.Debug("Sweeper skipped session", "session_id", id, "error", err)
			continue
		}
		removed++
		if onCleanup != nil {
			onCleanup(id)
		}
	}
	s.logger.Info("Sweeper cleanup completed", "cleaned", removed, "remaining", s.sessions.Len())
	return removed
}
