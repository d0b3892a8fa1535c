package wizard

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"boldx.dev/intake/internal/blob"
	"boldx.dev/intake/internal/draft"
	"boldx.dev/intake/internal/identity"
	"boldx.dev/intake/internal/intake"
	"boldx.dev/intake/internal/notify"
)

func seedDrafts(t *testing.T) (*draft.Store, *draft.MemStorage) {
	t.Helper()
	mem := draft.NewMemStorage()
	drafts := draft.New(mem)
	drafts.SaveBulk(intake.SectionCompany, validCompanyData())
	drafts.SaveBulk(intake.SectionTransaction, intake.SectionData{
		"path": "priced_round", "investment_amount": "5000000", "security_type": "preferred",
	})
	drafts.SaveBulk(intake.SectionSummary, intake.SectionData{
		"attested": true, "attested_name": "Jordan Lee", "attested_title": "CEO",
	})
	drafts.Flush()
	return drafts, mem
}

func TestMigrate(t *testing.T) {
	ctx := context.Background()
	drafts, mem := seedDrafts(t)
	store := intake.NewInMemory()
	blobs := blob.NewMemory()
	m := NewMigrator(store, blobs, drafts, nil)

	user := identity.User{ID: "u-1", Email: "jordan@acme.example"}
	files := []BufferedFile{
		{SectionKey: intake.SectionCompany, Name: "deck.pdf", Size: 4, Type: "application/pdf", Content: []byte("pdf!")},
		{SectionKey: intake.SectionFinancialsHist, Name: "pl.xlsx", Size: 3, Type: "application/vnd.ms-excel", Content: []byte("xls")},
	}

	app, err := m.Migrate(ctx, user, files)
	if err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	if app.Status != intake.StatusSubmitted || app.SubmittedAt == nil {
		t.Fatalf("application = %+v", app)
	}
	if app.CompanyName != "Acme Inc" {
		t.Fatalf("company name not denormalized: %q", app.CompanyName)
	}
	if app.CurrentSection != len(intake.Sections) {
		t.Fatalf("current_section = %d", app.CurrentSection)
	}

	secs, _ := store.ListSections(ctx, app.ID)
	if len(secs) != len(intake.Sections) {
		t.Fatalf("sections = %d", len(secs))
	}
	submitted, notStarted := 0, 0
	for _, sec := range secs {
		switch sec.Status {
		case intake.SectionSubmitted:
			submitted++
		case intake.SectionNotStarted:
			notStarted++
		}
	}
	if submitted != 3 || notStarted != 7 {
		t.Fatalf("statuses = %d submitted / %d not_started, want 3/7", submitted, notStarted)
	}

	docs, _ := store.ListDocuments(ctx, app.ID)
	if len(docs) != 2 {
		t.Fatalf("documents = %d", len(docs))
	}
	for _, doc := range docs {
		if doc.ScanStatus != "pending" || doc.UploadedBy != "u-1" {
			t.Fatalf("document = %+v", doc)
		}
		rc, err := blobs.Open(ctx, doc.StoragePath)
		if err != nil {
			t.Fatalf("blob missing for %s: %v", doc.FileName, err)
		}
		rc.Close()
	}

	entries, _ := store.ListAudit(ctx, app.ID)
	if len(entries) != 1 || entries[0].Action != "application_submitted" {
		t.Fatalf("audit = %+v", entries)
	}
	details := entries[0].Details
	if details["sections_with_data"] != 3 || details["files_uploaded"] != 2 || details["source"] != "public_form" {
		t.Fatalf("audit details = %v", details)
	}

	if mem.Len() != 0 {
		t.Fatalf("drafts not cleared, %d keys left", mem.Len())
	}
}

func TestMigrateContinuesPastFileFailure(t *testing.T) {
	ctx := context.Background()
	drafts, mem := seedDrafts(t)
	store := intake.NewInMemory()
	m := NewMigrator(store, blob.NewMemory(), drafts, nil)

	files := []BufferedFile{
		{SectionKey: "bogus_section", Name: "bad.pdf", Size: 1, Type: "application/pdf", Content: []byte("x")},
		{SectionKey: intake.SectionCompany, Name: "good.pdf", Size: 1, Type: "application/pdf", Content: []byte("y")},
	}
	app, err := m.Migrate(ctx, identity.User{ID: "u-1"}, files)
	if err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	docs, _ := store.ListDocuments(ctx, app.ID)
	if len(docs) != 1 || docs[0].FileName != "good.pdf" {
		t.Fatalf("documents = %+v", docs)
	}
	if mem.Len() != 0 {
		t.Fatal("drafts should clear despite a failed file")
	}
}

// createFailStore fails CreateApplication.
type createFailStore struct {
	intake.Store
}

func (s *createFailStore) CreateApplication(ctx context.Context, app intake.NewApplication) (intake.Application, error) {
	return intake.Application{}, errors.New("db down")
}

func TestMigrateKeepsDraftsOnCreateFailure(t *testing.T) {
	ctx := context.Background()
	drafts, mem := seedDrafts(t)
	m := NewMigrator(&createFailStore{Store: intake.NewInMemory()}, blob.NewMemory(), drafts, nil)

	if _, err := m.Migrate(ctx, identity.User{ID: "u-1"}, nil); err == nil {
		t.Fatal("expected error")
	}
	if mem.Len() == 0 {
		t.Fatal("drafts must survive a failed migration for retry")
	}
}

func TestMigrateSendsNotification(t *testing.T) {
	received := make(chan notify.Summary, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var s notify.Summary
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &s)
		received <- s
	}))
	defer srv.Close()

	drafts, _ := seedDrafts(t)
	m := NewMigrator(intake.NewInMemory(), blob.NewMemory(), drafts, notify.New(srv.URL))

	app, err := m.Migrate(context.Background(), identity.User{ID: "u-1", Email: "jordan@acme.example"}, nil)
	if err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	select {
	case s := <-received:
		if s.ApplicationID != app.ID || s.ApplicantEmail != "jordan@acme.example" {
			t.Fatalf("summary = %+v", s)
		}
		if s.ApplicantName != "Jordan Lee" {
			t.Fatalf("applicant name = %q, want founder fallback", s.ApplicantName)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("notification never arrived")
	}
}

func TestSubmitOnAuth(t *testing.T) {
	drafts, mem := seedDrafts(t)
	m := NewMigrator(intake.NewInMemory(), blob.NewMemory(), drafts, nil)
	broker := identity.NewBroker()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	type result struct {
		app intake.Application
		err error
	}
	done := make(chan result, 1)
	go func() {
		app, err := m.SubmitOnAuth(ctx, broker, nil)
		done <- result{app, err}
	}()

	// Give the subscriber time to register before publishing.
	time.Sleep(20 * time.Millisecond)
	broker.Publish(identity.Event{Kind: identity.EventSignedIn, User: identity.User{ID: "u-1"}})

	res := <-done
	if res.err != nil {
		t.Fatalf("SubmitOnAuth: %v", res.err)
	}
	if res.app.Status != intake.StatusSubmitted {
		t.Fatalf("application = %+v", res.app)
	}
	if mem.Len() != 0 {
		t.Fatal("drafts not cleared")
	}
}
