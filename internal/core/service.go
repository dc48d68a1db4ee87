package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

// ErrSessionNotFound is returned for an unknown or expired session id.
var ErrSessionNotFound = errors.New("import session not found")

// Default timeouts and lifetimes.
var (
	ParseTimeout  = 2 * time.Minute
	CommitTimeout = 10 * time.Minute
	SessionTTL    = 2 * time.Hour
)

// Directory supplies the district and organization reference lists.
type Directory interface {
	LoadReferenceData(ctx context.Context) (ReferenceData, error)
}

// Store is the persistence the service needs: a committer and a directory.
type Store interface {
	Committer
	Directory
}

// ServiceConfig tunes the service. Zero values take package defaults.
type ServiceConfig struct {
	MaxFileSize         int64
	MaxConcurrentParses int
	ParseWait           time.Duration
	ParseTimeout        time.Duration
	CommitTimeout       time.Duration
	SessionTTL          time.Duration
}

// Service owns the live import sessions and the persistence they commit to.
type Service struct {
	store   Store
	cfg     ServiceConfig
	limiter *ParseLimiter

	mu       sync.RWMutex
	sessions map[string]*ImportSession
}

// NewService creates a Service backed by store.
func NewService(store Store, cfg ServiceConfig) *Service {
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = DefaultMaxFileSize
	}
	if cfg.ParseTimeout <= 0 {
		cfg.ParseTimeout = ParseTimeout
	}
	if cfg.CommitTimeout <= 0 {
		cfg.CommitTimeout = CommitTimeout
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = SessionTTL
	}

	return &Service{
		store:    store,
		cfg:      cfg,
		limiter:  NewParseLimiter(cfg.MaxConcurrentParses, cfg.ParseWait),
		sessions: make(map[string]*ImportSession),
	}
}

// Limiter exposes the parse limiter for health reporting.
func (s *Service) Limiter() *ParseLimiter {
	return s.limiter
}

// MaxFileSize is the configured upload ceiling.
func (s *Service) MaxFileSize() int64 {
	return s.cfg.MaxFileSize
}

// ReferenceData loads the district and organization directory.
func (s *Service) ReferenceData(ctx context.Context) (ReferenceData, error) {
	refs, err := s.store.LoadReferenceData(ctx)
	if err != nil {
		return ReferenceData{}, fmt.Errorf("load reference data: %w", err)
	}
	return refs, nil
}

// CreateSession starts an empty import. defaultOrg (id or name) is applied
// at commit to rows without an organization.
func (s *Service) CreateSession(ctx context.Context, defaultOrg string) (*ImportSession, error) {
	refs, err := s.ReferenceData(ctx)
	if err != nil {
		return nil, err
	}

	if defaultOrg != "" && len(refs.Organizations) > 0 {
		if _, ok := refs.ResolveOrganization("", defaultOrg); !ok {
			if _, ok := refs.ResolveOrganization(defaultOrg, ""); !ok {
				return nil, fmt.Errorf("%w %q", ErrUnresolvedOrganization, defaultOrg)
			}
		}
	}

	sess := NewImportSession(SessionOptions{
		MaxFileSize:         s.cfg.MaxFileSize,
		Validator:           Validator{Refs: refs},
		DefaultOrganization: defaultOrg,
	})

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	slog.Info("import session created", "session_id", sess.ID, "organization", defaultOrg)
	return sess, nil
}

// Session returns a live session.
func (s *Service) Session(id string) (*ImportSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return sess, nil
}

// DeleteSession abandons a session and its staged records. A session that
// is committing is refused with ErrSessionBusy and stays registered.
func (s *Service) DeleteSession(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if err := sess.RemoveFile(); err != nil {
		return fmt.Errorf("discard session %s: %w", id, err)
	}
	delete(s.sessions, id)
	slog.Info("import session discarded", "session_id", id)
	return nil
}

// SessionCount returns the number of live sessions.
func (s *Service) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Upload selects file on the session and parses it.
//
// Parsing holds a limiter slot and runs under the parse timeout. Reference
// data is refreshed first so validation sees the current directory.
func (s *Service) Upload(ctx context.Context, sessionID string, file FileInput) (Snapshot, error) {
	sess, err := s.Session(sessionID)
	if err != nil {
		return Snapshot{}, err
	}

	if err := sess.SetFile(file); err != nil {
		return Snapshot{}, err
	}
	if err := s.refresh(ctx, sess); err != nil {
		return Snapshot{}, err
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return Snapshot{}, err
	}
	defer s.limiter.Release()

	parseCtx, cancel := context.WithTimeout(ctx, s.cfg.ParseTimeout)
	defer cancel()

	start := time.Now()
	if err := sess.Parse(parseCtx); err != nil {
		slog.Warn("parse failed",
			"session_id", sessionID,
			"file", file.Name,
			"size", file.Size(),
			"error", err,
		)
		return sess.Snapshot(), err
	}

	snap := sess.Snapshot()
	slog.Info("file parsed",
		"session_id", sessionID,
		"file", file.Name,
		"farmers", snap.Stats.Farmers,
		"valid", snap.Stats.ValidFarmers,
		"farms", snap.Stats.Farms,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return snap, nil
}

// Commit refreshes reference data and commits the session's eligible rows.
func (s *Service) Commit(ctx context.Context, sessionID string) (CommitResult, error) {
	sess, err := s.Session(sessionID)
	if err != nil {
		return CommitResult{}, err
	}
	if err := s.refresh(ctx, sess); err != nil {
		return CommitResult{}, err
	}

	commitCtx, cancel := context.WithTimeout(ctx, s.cfg.CommitTimeout)
	defer cancel()

	start := time.Now()
	res, err := sess.Commit(commitCtx, s.store)
	if err != nil {
		return res, err
	}
	s.recordImport(ctx, sess.Snapshot(), res)

	slog.Info("import committed",
		"session_id", sessionID,
		"successful", res.Successful,
		"failed", res.Failed,
		"skipped", res.Skipped,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

func (s *Service) refresh(ctx context.Context, sess *ImportSession) error {
	refs, err := s.ReferenceData(ctx)
	if err != nil {
		return err
	}
	sess.SetReferenceData(refs)
	return nil
}

// ManualEntryResult reports a single-farmer create.
type ManualEntryResult struct {
	Farmer  ValidationResult   `json:"farmer"`
	Farms   []ValidationResult `json:"farms"`
	Created *CreatedFarmer     `json:"created,omitempty"`
}

// CreateFarmer validates and commits one farmer entered by hand. When
// validation fails nothing is written and the result carries the errors.
func (s *Service) CreateFarmer(ctx context.Context, data FarmerData, farms []FarmData) (ManualEntryResult, error) {
	refs, err := s.ReferenceData(ctx)
	if err != nil {
		return ManualEntryResult{}, err
	}

	data = NormalizeFarmer(data)
	farms = append([]FarmData(nil), farms...)
	for i := range farms {
		farms[i] = NormalizeFarm(farms[i])
	}

	farmerRes, farmRes := ValidateManualEntry(refs, data, farms)
	res := ManualEntryResult{Farmer: farmerRes, Farms: farmRes}
	if !farmerRes.IsValid {
		return res, nil
	}
	for _, r := range farmRes {
		if !r.IsValid {
			return res, nil
		}
	}

	nf, err := Resolve(refs, data, "")
	if err != nil {
		return res, err
	}
	created, err := s.store.CreateFarmerWithFarms(ctx, nf, farms)
	if err != nil {
		return res, err
	}
	res.Created = &created

	slog.Info("farmer created", "farmer_id", created.FarmerID, "farms", len(created.FarmIDs))
	return res, nil
}

// WriteTemplate writes the import template with the current directory lists.
func (s *Service) WriteTemplate(ctx context.Context, w io.Writer) error {
	refs, err := s.ReferenceData(ctx)
	if err != nil {
		return err
	}
	return WriteTemplate(w, refs)
}

// Shutdown waits for in-flight parses to finish.
func (s *Service) Shutdown(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}
