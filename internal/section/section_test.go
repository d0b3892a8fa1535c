package section

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"boldx.dev/intake/internal/draft"
	"boldx.dev/intake/internal/intake"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

// failingStore wraps an InMemory store and fails SaveSection on demand.
type failingStore struct {
	intake.Store
	mu   sync.Mutex
	fail error
}

func (f *failingStore) setFail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = err
}

func (f *failingStore) SaveSection(ctx context.Context, appID string, key intake.SectionKey, data intake.SectionData) (intake.Section, error) {
	f.mu.Lock()
	err := f.fail
	f.mu.Unlock()
	if err != nil {
		return intake.Section{}, err
	}
	return f.Store.SaveSection(ctx, appID, key, data)
}

func TestOpenSelectsMode(t *testing.T) {
	ctx := context.Background()
	drafts := draft.New(draft.NewMemStorage())
	backend := intake.NewInMemory()
	app, _ := backend.CreateApplication(ctx, intake.NewApplication{UserID: "u-1"})

	local, err := Open(ctx, backend, drafts, "", intake.SectionCompany, Options{})
	if err != nil {
		t.Fatalf("Open local: %v", err)
	}
	if _, ok := local.(*Local); !ok {
		t.Fatalf("empty application id should yield Local, got %T", local)
	}

	remote, err := Open(ctx, backend, drafts, app.ID, intake.SectionCompany, Options{})
	if err != nil {
		t.Fatalf("Open remote: %v", err)
	}
	if _, ok := remote.(*Remote); !ok {
		t.Fatalf("application id should yield Remote, got %T", remote)
	}
}

func TestOpenRemoteUnknownApplication(t *testing.T) {
	ctx := context.Background()
	backend := intake.NewInMemory()
	if _, err := Open(ctx, backend, nil, "missing", intake.SectionCompany, Options{}); err != intake.ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestLocalRoundTrip(t *testing.T) {
	ctx := context.Background()
	drafts := draft.New(draft.NewMemStorage(), draft.WithDebounce(time.Millisecond))
	s := newLocal(drafts, intake.SectionCompany)

	s.SaveField("legal_name", "Acme")
	if err := s.SaveNow(ctx); err != nil {
		t.Fatalf("SaveNow: %v", err)
	}
	if got := s.Data()["legal_name"]; got != "Acme" {
		t.Fatalf("data = %v", got)
	}
	if s.Status() != intake.SectionInProgress {
		t.Fatalf("status = %q", s.Status())
	}

	if err := s.Submit(ctx); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if s.Status() != intake.SectionSubmitted {
		t.Fatalf("status after submit = %q", s.Status())
	}
}

func TestRemoteDebouncedFlush(t *testing.T) {
	ctx := context.Background()
	backend := intake.NewInMemory()
	app, _ := backend.CreateApplication(ctx, intake.NewApplication{UserID: "u-1"})

	s, err := Open(ctx, backend, nil, app.ID, intake.SectionCompany, Options{Debounce: 20 * time.Millisecond})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	s.SaveField("legal_name", "A")
	s.SaveField("legal_name", "Acme")
	if !s.Saving() {
		t.Fatal("saving should be pending")
	}

	waitFor(t, func() bool { return !s.Saving() })
	sec, _ := backend.GetSection(ctx, app.ID, intake.SectionCompany)
	if sec.Data["legal_name"] != "Acme" {
		t.Fatalf("persisted = %v, want final edit", sec.Data)
	}
	if sec.Status != intake.SectionInProgress {
		t.Fatalf("status = %q", sec.Status)
	}
	if s.LastSaved() == nil {
		t.Fatal("lastSaved not updated")
	}
}

func TestRemoteTimerFiresAfterNavigation(t *testing.T) {
	// A pending edit still lands even if the step is no longer current,
	// as long as the store was not closed.
	ctx := context.Background()
	backend := intake.NewInMemory()
	app, _ := backend.CreateApplication(ctx, intake.NewApplication{UserID: "u-1"})

	s, _ := Open(ctx, backend, nil, app.ID, intake.SectionKPIs, Options{Debounce: 20 * time.Millisecond})
	s.SaveField("kpis", []any{map[string]any{"current_value": "10"}})

	waitFor(t, func() bool {
		sec, _ := backend.GetSection(ctx, app.ID, intake.SectionKPIs)
		return len(sec.Data) > 0
	})
}

func TestRemoteCloseCancelsPendingWrite(t *testing.T) {
	ctx := context.Background()
	backend := intake.NewInMemory()
	app, _ := backend.CreateApplication(ctx, intake.NewApplication{UserID: "u-1"})

	s, _ := Open(ctx, backend, nil, app.ID, intake.SectionCompany, Options{Debounce: 20 * time.Millisecond})
	s.SaveField("legal_name", "Acme")
	s.Close()

	time.Sleep(60 * time.Millisecond)
	sec, _ := backend.GetSection(ctx, app.ID, intake.SectionCompany)
	if len(sec.Data) != 0 {
		t.Fatalf("closed store still wrote: %v", sec.Data)
	}
}

func TestRemoteSaveNowAuditsWithFieldCount(t *testing.T) {
	ctx := context.Background()
	backend := intake.NewInMemory()
	app, _ := backend.CreateApplication(ctx, intake.NewApplication{UserID: "u-1"})

	s, _ := Open(ctx, backend, nil, app.ID, intake.SectionCompany, Options{UserID: "u-1"})
	s.SaveField("legal_name", "Acme")
	s.SaveField("industry", "saas")
	if err := s.SaveNow(ctx); err != nil {
		t.Fatalf("SaveNow: %v", err)
	}

	entries, _ := backend.ListAudit(ctx, app.ID)
	if len(entries) != 1 {
		t.Fatalf("audit entries = %d, want 1", len(entries))
	}
	e := entries[0]
	if e.Action != "section_saved" || e.SectionKey != intake.SectionCompany || e.UserID != "u-1" {
		t.Fatalf("audit entry = %+v", e)
	}
	if e.Details["field_count"] != 2 {
		t.Fatalf("field_count = %v, want 2", e.Details["field_count"])
	}
}

func TestRemoteAnonymousSaveNowSkipsAudit(t *testing.T) {
	ctx := context.Background()
	backend := intake.NewInMemory()
	app, _ := backend.CreateApplication(ctx, intake.NewApplication{UserID: "u-1"})

	s, _ := Open(ctx, backend, nil, app.ID, intake.SectionCompany, Options{})
	s.SaveField("legal_name", "Acme")
	s.SaveNow(ctx)

	entries, _ := backend.ListAudit(ctx, app.ID)
	if len(entries) != 0 {
		t.Fatalf("audit entries = %d, want 0", len(entries))
	}
}

func TestRemoteFailureKeepsWorkingCopy(t *testing.T) {
	ctx := context.Background()
	backend := &failingStore{Store: intake.NewInMemory()}
	app, _ := backend.Store.CreateApplication(ctx, intake.NewApplication{UserID: "u-1"})

	s, _ := Open(ctx, backend, nil, app.ID, intake.SectionCompany, Options{})
	backend.setFail(errors.New("backend down"))

	s.SaveField("legal_name", "Acme")
	if err := s.SaveNow(ctx); err == nil {
		t.Fatal("expected save error")
	}
	if s.Err() == nil {
		t.Fatal("Err should report the failure")
	}
	if got := s.Data()["legal_name"]; got != "Acme" {
		t.Fatalf("working copy lost on failure: %v", got)
	}

	// Recovery clears the error.
	backend.setFail(nil)
	if err := s.SaveNow(ctx); err != nil {
		t.Fatalf("SaveNow after recovery: %v", err)
	}
	if s.Err() != nil {
		t.Fatalf("Err not cleared: %v", s.Err())
	}
}

func TestRemoteSubmit(t *testing.T) {
	ctx := context.Background()
	backend := intake.NewInMemory()
	app, _ := backend.CreateApplication(ctx, intake.NewApplication{UserID: "u-1"})

	s, _ := Open(ctx, backend, nil, app.ID, intake.SectionSummary, Options{})
	s.SaveBulk(intake.SectionData{"attested": true, "attested_name": "J", "attested_title": "CEO"})
	if err := s.Submit(ctx); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	sec, _ := backend.GetSection(ctx, app.ID, intake.SectionSummary)
	if sec.Status != intake.SectionSubmitted || sec.SubmittedAt == nil {
		t.Fatalf("submitted section = %+v", sec)
	}
	if s.Status() != intake.SectionSubmitted {
		t.Fatalf("facade status = %q", s.Status())
	}
}
