package core

// import_log.go records one entry per commit attempt. A store that also
// implements ImportRecorder gets every commit result, with the actor and
// client address taken from the request context.

import (
	"context"
	"log/slog"
	"time"
)

// ImportRecord is one commit attempt as written to the import log.
type ImportRecord struct {
	SessionID    string    `json:"sessionId"`
	FileName     string    `json:"fileName"`
	Organization string    `json:"organization,omitempty"`
	Actor        string    `json:"actor,omitempty"`
	IPAddress    string    `json:"ipAddress,omitempty"`
	Successful   int       `json:"successful"`
	Failed       int       `json:"failed"`
	Skipped      int       `json:"skipped"`
	CommittedAt  time.Time `json:"committedAt"`
}

// ImportRecorder persists import log entries.
type ImportRecorder interface {
	RecordImport(ctx context.Context, rec ImportRecord) error
}

// ImportHistory lists recent import log entries, newest first.
type ImportHistory interface {
	RecentImports(ctx context.Context, limit int) ([]ImportRecord, error)
}

func (s *Service) recordImport(ctx context.Context, snap Snapshot, res CommitResult) {
	rec, ok := s.store.(ImportRecorder)
	if !ok {
		return
	}

	entry := ImportRecord{
		SessionID:    snap.ID,
		FileName:     snap.FileName,
		Organization: snap.DefaultOrganization,
		Actor:        ActorFromContext(ctx),
		IPAddress:    IPAddressFromContext(ctx),
		Successful:   res.Successful,
		Failed:       res.Failed,
		Skipped:      res.Skipped,
		CommittedAt:  time.Now().UTC(),
	}

	// Best effort: the rows are already committed.
	if err := rec.RecordImport(context.WithoutCancel(ctx), entry); err != nil {
		slog.Warn("failed to record import", "session_id", snap.ID, "error", err)
	}
}

// RecentImports returns the latest import log entries, or nil when the store
// keeps no log.
func (s *Service) RecentImports(ctx context.Context, limit int) ([]ImportRecord, error) {
	h, ok := s.store.(ImportHistory)
	if !ok {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}
	return h.RecentImports(ctx, limit)
}
