// Package admin is the review-side service: listing and inspecting
// applications, moving them through statuses, annotating sections, and
// minting download URLs for uploaded documents.
package admin

import (
	"context"
	"fmt"

	"boldx.dev/intake/internal/audit"
	"boldx.dev/intake/internal/blob"
	"boldx.dev/intake/internal/intake"
)

// Service bundles the store operations reviewers use. All callers must be
// behind the admin-domain check; the service itself does not re-check.
type Service struct {
	store  intake.Store
	signer *blob.Signer
	audit  *audit.Recorder
}

// New wires the review service. signer may be nil when document downloads
// are not served.
func New(store intake.Store, signer *blob.Signer) *Service {
	return &Service{store: store, signer: signer, audit: audit.NewRecorder(store)}
}

// List returns applications matching the filter, newest first.
func (s *Service) List(ctx context.Context, f intake.ApplicationFilter) ([]intake.Application, error) {
	if f.Status != "" && !intake.ValidStatus(f.Status) {
		return nil, intake.ErrInvalidStatus
	}
	return s.store.ListApplications(ctx, f)
}

// Get returns one application.
func (s *Service) Get(ctx context.Context, id string) (intake.Application, error) {
	return s.store.GetApplication(ctx, id)
}

// UpdateStatus moves an application to any known status and records the
// transition on the audit trail. Reviewers may move freely between
// statuses; there is no transition table.
func (s *Service) UpdateStatus(ctx context.Context, id, status string) error {
	if !intake.ValidStatus(status) {
		return intake.ErrInvalidStatus
	}
	app, err := s.store.GetApplication(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.UpdateApplicationStatus(ctx, id, status); err != nil {
		return err
	}
	_, err = s.audit.Record(ctx, intake.AuditEntry{
		ApplicationID: id,
		Action:        "status_changed",
		Details:       map[string]any{"from": app.Status, "to": status},
	})
	if err != nil {
		return fmt.Errorf("record status change: %w", err)
	}
	return nil
}

// Sections returns the application's ten sections in order.
func (s *Service) Sections(ctx context.Context, appID string) ([]intake.Section, error) {
	return s.store.ListSections(ctx, appID)
}

// SetReviewerNotes attaches reviewer commentary to a section.
func (s *Service) SetReviewerNotes(ctx context.Context, appID string, key intake.SectionKey, notes string) error {
	if !intake.KnownSection(key) {
		return intake.ErrUnknownSection
	}
	if err := s.store.SetReviewerNotes(ctx, appID, key, notes); err != nil {
		return err
	}
	_, err := s.audit.Record(ctx, intake.AuditEntry{
		ApplicationID: appID,
		Action:        "reviewer_notes_updated",
		SectionKey:    key,
	})
	return err
}

// SetSectionStatus moves one section through the review vocabulary, e.g. to
// needs_update when the applicant must revise it.
func (s *Service) SetSectionStatus(ctx context.Context, appID string, key intake.SectionKey, status string) error {
	switch status {
	case intake.SectionAccepted, intake.SectionNeedsUpdate, intake.SectionAdditionalInfo, intake.SectionLocked:
	default:
		return intake.ErrInvalidStatus
	}
	if err := s.store.SetSectionStatus(ctx, appID, key, status); err != nil {
		return err
	}
	_, err := s.audit.Record(ctx, intake.AuditEntry{
		ApplicationID: appID,
		Action:        "section_status_changed",
		SectionKey:    key,
		Details:       map[string]any{"to": status},
	})
	return err
}

// Documents lists the application's live uploads.
func (s *Service) Documents(ctx context.Context, appID string) ([]intake.Document, error) {
	return s.store.ListDocuments(ctx, appID)
}

// DocumentURL mints a signed, time-limited download URL for one document.
func (s *Service) DocumentURL(ctx context.Context, docID string) (string, error) {
	if s.signer == nil {
		return "", fmt.Errorf("document downloads are not configured")
	}
	doc, err := s.store.GetDocument(ctx, docID)
	if err != nil {
		return "", err
	}
	return s.signer.SignedURL(doc.StoragePath)
}

// AuditTrail returns the application's audit entries, newest first.
func (s *Service) AuditTrail(ctx context.Context, appID string) ([]intake.AuditEntry, error) {
	return s.store.ListAudit(ctx, appID)
}
