package intake

import (
	"context"
	"testing"
	"time"
)

func TestCreateApplicationSeedsTenSections(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	app, err := s.CreateApplication(ctx, NewApplication{UserID: "u-1", CompanyName: "Acme"})
	if err != nil {
		t.Fatalf("CreateApplication: %v", err)
	}
	if app.Status != StatusDraft {
		t.Fatalf("status = %q, want draft", app.Status)
	}
	if app.CurrentSection != 1 {
		t.Fatalf("current_section = %d, want 1", app.CurrentSection)
	}
	if got := app.ExpiresAt.Sub(app.CreatedAt); got != ApplicationLifetime {
		t.Fatalf("lifetime = %v, want %v", got, ApplicationLifetime)
	}

	secs, err := s.ListSections(ctx, app.ID)
	if err != nil {
		t.Fatalf("ListSections: %v", err)
	}
	if len(secs) != len(Sections) {
		t.Fatalf("sections = %d, want %d", len(secs), len(Sections))
	}
	for i, sec := range secs {
		if sec.Key != Sections[i].Key {
			t.Fatalf("section %d key = %q, want %q", i, sec.Key, Sections[i].Key)
		}
		if sec.Status != SectionNotStarted {
			t.Fatalf("section %q status = %q, want not_started", sec.Key, sec.Status)
		}
	}
}

func TestCreateApplicationWithSeeds(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	now := time.Now().UTC()

	app, err := s.CreateApplication(ctx, NewApplication{
		UserID:      "u-1",
		CompanyName: "Acme",
		Status:      StatusSubmitted,
		SubmittedAt: &now,
		SectionData: map[SectionKey]SectionData{
			SectionCompany: {"legal_name": "Acme Inc"},
		},
		SectionStatus: map[SectionKey]string{
			SectionCompany: SectionSubmitted,
		},
	})
	if err != nil {
		t.Fatalf("CreateApplication: %v", err)
	}

	sec, err := s.GetSection(ctx, app.ID, SectionCompany)
	if err != nil {
		t.Fatalf("GetSection: %v", err)
	}
	if sec.Status != SectionSubmitted {
		t.Fatalf("seeded status = %q, want submitted", sec.Status)
	}
	if sec.Data["legal_name"] != "Acme Inc" {
		t.Fatalf("seeded data missing: %v", sec.Data)
	}
	if sec.SubmittedAt == nil || sec.LastSavedAt == nil {
		t.Fatal("submitted create must stamp section timestamps")
	}

	other, err := s.GetSection(ctx, app.ID, SectionKPIs)
	if err != nil {
		t.Fatalf("GetSection: %v", err)
	}
	if other.Status != SectionNotStarted {
		t.Fatalf("unseeded status = %q, want not_started", other.Status)
	}
}

func TestSaveSectionTransitionsAndReadOnly(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	app, err := s.CreateApplication(ctx, NewApplication{UserID: "u-1"})
	if err != nil {
		t.Fatalf("CreateApplication: %v", err)
	}

	sec, err := s.SaveSection(ctx, app.ID, SectionCompany, SectionData{"legal_name": "Acme"})
	if err != nil {
		t.Fatalf("SaveSection: %v", err)
	}
	if sec.Status != SectionInProgress {
		t.Fatalf("status after save = %q, want in_progress", sec.Status)
	}
	if sec.LastSavedAt == nil {
		t.Fatal("save must stamp last_saved_at")
	}

	if _, err := s.SaveSection(ctx, app.ID, "bogus", SectionData{}); err != ErrUnknownSection {
		t.Fatalf("unknown key err = %v, want ErrUnknownSection", err)
	}

	if err := s.UpdateApplicationStatus(ctx, app.ID, StatusSubmitted); err != nil {
		t.Fatalf("UpdateApplicationStatus: %v", err)
	}
	if _, err := s.SaveSection(ctx, app.ID, SectionCompany, SectionData{}); err != ErrReadOnly {
		t.Fatalf("save on submitted err = %v, want ErrReadOnly", err)
	}
}

func TestSaveSectionAfterExpiry(t *testing.T) {
	now := time.Now().UTC()
	s := NewInMemory(WithClock(func() time.Time { return now }))
	ctx := context.Background()

	app, err := s.CreateApplication(ctx, NewApplication{UserID: "u-1"})
	if err != nil {
		t.Fatalf("CreateApplication: %v", err)
	}
	now = now.Add(ApplicationLifetime + time.Hour)
	if _, err := s.SaveSection(ctx, app.ID, SectionCompany, SectionData{}); err != ErrReadOnly {
		t.Fatalf("save past expiry err = %v, want ErrReadOnly", err)
	}
}

func TestSubmitSection(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	app, _ := s.CreateApplication(ctx, NewApplication{UserID: "u-1"})
	sec, err := s.SubmitSection(ctx, app.ID, SectionSummary, SectionData{"attested": true})
	if err != nil {
		t.Fatalf("SubmitSection: %v", err)
	}
	if sec.Status != SectionSubmitted {
		t.Fatalf("status = %q, want submitted", sec.Status)
	}
	if sec.SubmittedAt == nil || sec.LastSavedAt == nil {
		t.Fatal("submit must stamp both timestamps")
	}
}

func TestListApplicationsFilter(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	a1, _ := s.CreateApplication(ctx, NewApplication{UserID: "u-1", CompanyName: "Acme Robotics"})
	s.CreateApplication(ctx, NewApplication{UserID: "u-2", CompanyName: "Globex"})
	s.UpdateApplicationStatus(ctx, a1.ID, StatusUnderReview)

	byUser, err := s.ListApplications(ctx, ApplicationFilter{UserID: "u-2"})
	if err != nil {
		t.Fatalf("ListApplications: %v", err)
	}
	if len(byUser) != 1 || byUser[0].CompanyName != "Globex" {
		t.Fatalf("user filter = %+v", byUser)
	}

	byStatus, _ := s.ListApplications(ctx, ApplicationFilter{Status: StatusUnderReview})
	if len(byStatus) != 1 || byStatus[0].ID != a1.ID {
		t.Fatalf("status filter = %+v", byStatus)
	}

	bySearch, _ := s.ListApplications(ctx, ApplicationFilter{CompanySearch: "robot"})
	if len(bySearch) != 1 || bySearch[0].ID != a1.ID {
		t.Fatalf("search filter = %+v", bySearch)
	}
}

func TestInvalidStatusRejected(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	app, _ := s.CreateApplication(ctx, NewApplication{UserID: "u-1"})
	if err := s.UpdateApplicationStatus(ctx, app.ID, "on_fire"); err != ErrInvalidStatus {
		t.Fatalf("err = %v, want ErrInvalidStatus", err)
	}
}

func TestDocumentsSoftDelete(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	app, _ := s.CreateApplication(ctx, NewApplication{UserID: "u-1"})
	doc, err := s.InsertDocument(ctx, Document{
		ApplicationID: app.ID,
		SectionKey:    SectionDocuments,
		ChecklistItem: "pitch_deck",
		FileName:      "deck.pdf",
		FileSize:      1024,
		FileType:      "application/pdf",
		StoragePath:   app.ID + "/documents/1_deck.pdf",
	})
	if err != nil {
		t.Fatalf("InsertDocument: %v", err)
	}
	if doc.ScanStatus != "pending" {
		t.Fatalf("scan_status = %q, want pending", doc.ScanStatus)
	}

	if err := s.SoftDeleteDocument(ctx, doc.ID); err != nil {
		t.Fatalf("SoftDeleteDocument: %v", err)
	}
	docs, _ := s.ListDocuments(ctx, app.ID)
	if len(docs) != 0 {
		t.Fatalf("soft-deleted doc still listed: %+v", docs)
	}
	if _, err := s.GetDocument(ctx, doc.ID); err != ErrNotFound {
		t.Fatalf("get deleted err = %v, want ErrNotFound", err)
	}
}

func TestAuditOrder(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	app, _ := s.CreateApplication(ctx, NewApplication{UserID: "u-1"})
	s.AppendAudit(ctx, AuditEntry{ApplicationID: app.ID, Action: "first"})
	s.AppendAudit(ctx, AuditEntry{ApplicationID: app.ID, Action: "second"})

	entries, err := s.ListAudit(ctx, app.ID)
	if err != nil {
		t.Fatalf("ListAudit: %v", err)
	}
	if len(entries) != 2 || entries[0].Action != "second" {
		t.Fatalf("audit order = %+v", entries)
	}
	if entries[0].ID == "" {
		t.Fatal("audit entry must get an id")
	}
}
