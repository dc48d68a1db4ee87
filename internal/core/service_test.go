package core

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"
)

func newTestService(t *testing.T) (*Service, *fakeStore) {
	t.Helper()
	store := &fakeStore{fakeCommitter: newFakeCommitter(), refs: testRefs()}
	return NewService(store, ServiceConfig{}), store
}

func TestService_CreateSession(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for _, org := range []string{"", "Akim Cocoa Cooperative", "o-union"} {
		if _, err := svc.CreateSession(ctx, org); err != nil {
			t.Errorf("CreateSession(%q): %v", org, err)
		}
	}
	if _, err := svc.CreateSession(ctx, "Nobody Inc"); !errors.Is(err, ErrUnresolvedOrganization) {
		t.Errorf("unknown default org err = %v", err)
	}
	if n := svc.SessionCount(); n != 3 {
		t.Errorf("SessionCount = %d, want 3", n)
	}
}

func TestService_SessionLookup(t *testing.T) {
	svc, _ := newTestService(t)

	if _, err := svc.Session("missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("err = %v, want ErrSessionNotFound", err)
	}

	sess, _ := svc.CreateSession(context.Background(), "")
	got, err := svc.Session(sess.ID)
	if err != nil || got != sess {
		t.Errorf("Session(%s) = %v, %v", sess.ID, got, err)
	}

	if err := svc.DeleteSession(sess.ID); err != nil {
		t.Fatal(err)
	}
	if err := svc.DeleteSession(sess.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("second delete err = %v", err)
	}
}

func TestService_UploadAndCommit(t *testing.T) {
	svc, store := newTestService(t)
	ctx := ContextWithIPAddress(ContextWithActor(context.Background(), "field-team"), "10.0.0.7")

	sess, err := svc.CreateSession(ctx, "Akim Cocoa Cooperative")
	if err != nil {
		t.Fatal(err)
	}

	snap, err := svc.Upload(ctx, sess.ID, scenarioWorkbook(t))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if snap.State != StateStaged || snap.Stats.ValidFarmers != 2 {
		t.Errorf("snapshot = state %s, stats %+v", snap.State, snap.Stats)
	}
	if svc.Limiter().Active() != 0 {
		t.Error("limiter slot not released after upload")
	}

	res, err := svc.Commit(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if res.Successful != 2 {
		t.Errorf("result = %+v", res)
	}

	if len(store.records) != 1 {
		t.Fatalf("import records = %d, want 1", len(store.records))
	}
	rec := store.records[0]
	if rec.SessionID != sess.ID || rec.FileName != "farmers.xlsx" || rec.Successful != 2 {
		t.Errorf("record = %+v", rec)
	}
	if rec.Actor != "field-team" || rec.IPAddress != "10.0.0.7" || rec.Organization != "Akim Cocoa Cooperative" {
		t.Errorf("record context = %+v", rec)
	}
}

func TestService_UploadParseError(t *testing.T) {
	svc, _ := newTestService(t)
	sess, _ := svc.CreateSession(context.Background(), "")

	bad := FileInput{Name: "farmers.xlsx", Data: []byte("not a spreadsheet at all")}
	snap, err := svc.Upload(context.Background(), sess.ID, bad)
	if !errors.Is(err, ErrUnsupportedFileType) {
		t.Fatalf("err = %v, want ErrUnsupportedFileType", err)
	}
	if snap.State != StateFailed || snap.Error == "" {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestService_UploadPicksUpDirectoryChanges(t *testing.T) {
	svc, store := newTestService(t)
	sess, _ := svc.CreateSession(context.Background(), "")

	// West Akim disappears from the directory after the session opened.
	store.refs = ReferenceData{Districts: []Ref{{ID: "d-birim", Name: "Birim Central"}}}

	snap, err := svc.Upload(context.Background(), sess.ID, scenarioWorkbook(t))
	if err != nil {
		t.Fatal(err)
	}
	if snap.Stats.InvalidFarmers != 1 {
		t.Errorf("InvalidFarmers = %d, want 1 (Ama's district)", snap.Stats.InvalidFarmers)
	}
}

func TestService_CommitNotReady(t *testing.T) {
	svc, store := newTestService(t)
	sess, _ := svc.CreateSession(context.Background(), "")

	if _, err := svc.Commit(context.Background(), sess.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("commit of empty session err = %v", err)
	}
	if len(store.records) != 0 {
		t.Error("refused commit was recorded")
	}
}

func TestService_CreateFarmer(t *testing.T) {
	svc, store := newTestService(t)

	d := validFarmer()
	res, err := svc.CreateFarmer(context.Background(), d, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Farmer.IsValid || res.Created != nil {
		t.Errorf("farmer without organization accepted: %+v", res)
	}

	d.OrganizationName = "Eastern Farmers Union"
	res, err = svc.CreateFarmer(context.Background(), d, []FarmData{{Name: "Home Farm"}})
	if err != nil {
		t.Fatalf("CreateFarmer: %v", err)
	}
	if res.Created == nil || len(res.Created.FarmIDs) != 1 {
		t.Fatalf("Created = %+v", res.Created)
	}
	if got := store.calls[len(store.calls)-1]; got.OrganizationID != "o-union" || got.DistrictID != "d-birim" {
		t.Errorf("resolved = %s/%s", got.DistrictID, got.OrganizationID)
	}

	store.fail[d.Phone] = ErrDuplicatePhone
	if _, err := svc.CreateFarmer(context.Background(), d, nil); !errors.Is(err, ErrDuplicatePhone) {
		t.Errorf("duplicate err = %v", err)
	}
}

func TestService_WriteTemplate(t *testing.T) {
	svc, _ := newTestService(t)

	var buf bytes.Buffer
	if err := svc.WriteTemplate(context.Background(), &buf); err != nil {
		t.Fatal(err)
	}
	if buf.Len() == 0 {
		t.Error("empty template")
	}
}

// ============================================================================
// Janitor
// ============================================================================

func TestService_ExpireIdle(t *testing.T) {
	svc, _ := newTestService(t)
	svc.cfg.SessionTTL = time.Hour

	idle, _ := svc.CreateSession(context.Background(), "")
	fresh, _ := svc.CreateSession(context.Background(), "")

	idle.mu.Lock()
	idle.touchedAt = time.Now().Add(-2 * time.Hour)
	idle.mu.Unlock()

	if n := svc.ExpireIdle(time.Now()); n != 1 {
		t.Errorf("expired = %d, want 1", n)
	}
	if _, err := svc.Session(idle.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Error("idle session survived")
	}
	if _, err := svc.Session(fresh.ID); err != nil {
		t.Error("fresh session expired")
	}
}

func TestService_ExpireIdleSkipsBusySessions(t *testing.T) {
	svc, _ := newTestService(t)
	svc.cfg.SessionTTL = time.Minute

	sess, _ := svc.CreateSession(context.Background(), "")
	sess.mu.Lock()
	sess.state = StateCommitting
	sess.touchedAt = time.Now().Add(-time.Hour)
	sess.mu.Unlock()

	if n := svc.ExpireIdle(time.Now()); n != 0 {
		t.Errorf("expired = %d, want 0 for a committing session", n)
	}
}

func TestService_DeleteSession(t *testing.T) {
	tests := []struct {
		name    string
		state   State
		wantErr error
		kept    bool
	}{
		{name: "empty", state: StateEmpty},
		{name: "staged", state: StateStaged},
		{name: "failed", state: StateFailed},
		{name: "committing", state: StateCommitting, wantErr: ErrSessionBusy, kept: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestService(t)
			sess, _ := svc.CreateSession(context.Background(), "")
			sess.mu.Lock()
			sess.state = tt.state
			sess.mu.Unlock()

			err := svc.DeleteSession(sess.ID)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("DeleteSession err = %v, want %v", err, tt.wantErr)
			}
			_, lookupErr := svc.Session(sess.ID)
			if kept := lookupErr == nil; kept != tt.kept {
				t.Errorf("session kept = %v, want %v", kept, tt.kept)
			}
			if tt.kept && sess.State() != tt.state {
				t.Errorf("state = %s, want %s", sess.State(), tt.state)
			}
		})
	}
}

func TestService_StartJanitorStops(t *testing.T) {
	svc, _ := newTestService(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		svc.StartJanitor(ctx, 10*time.Millisecond)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop on cancel")
	}
}
