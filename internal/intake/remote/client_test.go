package remote_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"boldx.dev/intake/internal/httpapi"
	"boldx.dev/intake/internal/identity"
	"boldx.dev/intake/internal/intake"
	"boldx.dev/intake/internal/intake/remote"
)

func newClient(t *testing.T, userID, email string) (*remote.Client, *intake.InMemory) {
	t.Helper()
	identity.ResetSecretForTests()
	t.Setenv("INTAKE_AUTH_SECRET", strings.Repeat("0123456789abcdef", 4))
	t.Cleanup(identity.ResetSecretForTests)

	store := intake.NewInMemory()
	api := httpapi.New(store, httpapi.Options{Version: "test"})
	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	token, err := identity.GenerateToken(userID, email, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	return remote.Dial(srv.URL, token), store
}

func TestClientApplicationRoundTrip(t *testing.T) {
	c, _ := newClient(t, "u-1", "founder@acme.example")
	ctx := context.Background()

	app, err := c.CreateApplication(ctx, intake.NewApplication{CompanyName: "Acme Robotics"})
	if err != nil {
		t.Fatalf("CreateApplication: %v", err)
	}
	if app.UserID != "u-1" || app.Status != intake.StatusDraft {
		t.Fatalf("application = %+v", app)
	}

	got, err := c.GetApplication(ctx, app.ID)
	if err != nil {
		t.Fatalf("GetApplication: %v", err)
	}
	if got.ID != app.ID || got.CompanyName != "Acme Robotics" {
		t.Fatalf("got = %+v", got)
	}

	apps, err := c.ListApplications(ctx, intake.ApplicationFilter{CompanySearch: "acme"})
	if err != nil {
		t.Fatalf("ListApplications: %v", err)
	}
	if len(apps) != 1 {
		t.Fatalf("apps = %+v", apps)
	}

	if err := c.SetCompanyName(ctx, app.ID, "Acme Robotics Inc."); err != nil {
		t.Fatalf("SetCompanyName: %v", err)
	}
	if err := c.SetCurrentSection(ctx, app.ID, 3); err != nil {
		t.Fatalf("SetCurrentSection: %v", err)
	}
	got, _ = c.GetApplication(ctx, app.ID)
	if got.CompanyName != "Acme Robotics Inc." || got.CurrentSection != 3 {
		t.Fatalf("after updates = %+v", got)
	}
}

func TestClientSectionRoundTrip(t *testing.T) {
	c, _ := newClient(t, "u-1", "founder@acme.example")
	ctx := context.Background()

	app, err := c.CreateApplication(ctx, intake.NewApplication{})
	if err != nil {
		t.Fatalf("CreateApplication: %v", err)
	}

	sec, err := c.SaveSection(ctx, app.ID, intake.SectionCompany, intake.SectionData{"legal_name": "Acme"})
	if err != nil {
		t.Fatalf("SaveSection: %v", err)
	}
	if sec.Status != intake.SectionInProgress || sec.Data["legal_name"] != "Acme" {
		t.Fatalf("section = %+v", sec)
	}

	sec, err = c.SubmitSection(ctx, app.ID, intake.SectionCompany, sec.Data)
	if err != nil {
		t.Fatalf("SubmitSection: %v", err)
	}
	if sec.Status != intake.SectionSubmitted || sec.SubmittedAt == nil {
		t.Fatalf("submitted = %+v", sec)
	}

	secs, err := c.ListSections(ctx, app.ID)
	if err != nil {
		t.Fatalf("ListSections: %v", err)
	}
	if len(secs) != len(intake.Sections) {
		t.Fatalf("sections = %d", len(secs))
	}
}

func TestClientSentinelMapping(t *testing.T) {
	c, store := newClient(t, "u-1", "founder@acme.example")
	ctx := context.Background()

	if _, err := c.GetApplication(ctx, "missing"); err != intake.ErrNotFound {
		t.Fatalf("missing app err = %v", err)
	}

	app, _ := c.CreateApplication(ctx, intake.NewApplication{})
	if _, err := c.GetSection(ctx, app.ID, "bogus"); err != intake.ErrUnknownSection {
		t.Fatalf("unknown section err = %v", err)
	}

	// Writes against a submitted application surface ErrReadOnly.
	store.UpdateApplicationStatus(ctx, app.ID, intake.StatusSubmitted)
	if _, err := c.SaveSection(ctx, app.ID, intake.SectionCompany, intake.SectionData{"a": "b"}); err != intake.ErrReadOnly {
		t.Fatalf("read-only err = %v", err)
	}
}

func TestClientDocumentsAndAudit(t *testing.T) {
	c, _ := newClient(t, "u-1", "founder@acme.example")
	ctx := context.Background()

	app, _ := c.CreateApplication(ctx, intake.NewApplication{})
	doc, err := c.InsertDocument(ctx, intake.Document{
		ApplicationID: app.ID,
		SectionKey:    intake.SectionDocuments,
		ChecklistItem: "pitch_deck",
		FileName:      "deck.pdf",
		FileSize:      1024,
		FileType:      "application/pdf",
		StoragePath:   app.ID + "/documents/1_deck.pdf",
	})
	if err != nil {
		t.Fatalf("InsertDocument: %v", err)
	}
	if doc.ID == "" || doc.ScanStatus != "pending" || doc.UploadedBy != "u-1" {
		t.Fatalf("document = %+v", doc)
	}

	docs, err := c.ListDocuments(ctx, app.ID)
	if err != nil || len(docs) != 1 {
		t.Fatalf("ListDocuments = %+v, %v", docs, err)
	}

	if err := c.SoftDeleteDocument(ctx, doc.ID); err != nil {
		t.Fatalf("SoftDeleteDocument: %v", err)
	}
	if _, err := c.GetDocument(ctx, doc.ID); err != intake.ErrNotFound {
		t.Fatalf("deleted doc err = %v", err)
	}

	entry, err := c.AppendAudit(ctx, intake.AuditEntry{
		ApplicationID: app.ID,
		Action:        "application_submitted",
		Details:       map[string]any{"source": "public_form"},
	})
	if err != nil {
		t.Fatalf("AppendAudit: %v", err)
	}
	if entry.UserID != "u-1" {
		t.Fatalf("entry = %+v", entry)
	}

	entries, err := c.ListAudit(ctx, app.ID)
	if err != nil {
		t.Fatalf("ListAudit: %v", err)
	}
	// application_created, document_deleted, then the explicit append.
	if len(entries) != 3 || entries[0].Action != "application_submitted" {
		t.Fatalf("entries = %+v", entries)
	}
}
