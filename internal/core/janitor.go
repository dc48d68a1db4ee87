package core

// janitor.go expires abandoned import sessions.
//
// Staged records live only in memory, so a session nobody touches for the
// TTL is dropped. Sessions mid-parse or mid-commit are never expired.

import (
	"context"
	"log/slog"
	"time"
)

// DefaultJanitorInterval is how often idle sessions are swept.
const DefaultJanitorInterval = 5 * time.Minute

// StartJanitor sweeps idle sessions every interval until ctx is cancelled.
func (s *Service) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultJanitorInterval
	}
	slog.Info("session janitor started", "interval", interval, "ttl", s.cfg.SessionTTL)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("session janitor stopped")
			return
		case now := <-ticker.C:
			if n := s.ExpireIdle(now); n > 0 {
				slog.Info("expired idle import sessions", "count", n, "remaining", s.SessionCount())
			}
		}
	}
}

// ExpireIdle removes sessions idle for longer than the TTL as of now and
// returns how many were removed.
func (s *Service) ExpireIdle(now time.Time) int {
	cutoff := now.Add(-s.cfg.SessionTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	expired := 0
	for id, sess := range s.sessions {
		switch sess.State() {
		case StateParsing, StateCommitting:
			continue
		}
		if sess.LastActive().Before(cutoff) {
			delete(s.sessions, id)
			expired++
			slog.Debug("import session expired", "session_id", id)
		}
	}
	return expired
}
