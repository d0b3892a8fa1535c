package wizard

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"boldx.dev/intake/internal/blob"
	"boldx.dev/intake/internal/draft"
	"boldx.dev/intake/internal/identity"
	"boldx.dev/intake/internal/intake"
	"boldx.dev/intake/internal/notify"
	"boldx.dev/intake/internal/obs"
)

// BufferedFile is a file attached during the anonymous flow. Contents stay
// in memory until migration because there is nowhere durable to put them
// before an application exists.
type BufferedFile struct {
	SectionKey intake.SectionKey
	Name       string
	Size       int64
	Type       string
	Content    []byte
}

// Migrator turns anonymous drafts into a submitted application.
type Migrator struct {
	store    intake.Store
	blobs    blob.Store
	drafts   *draft.Store
	notifier *notify.Client
	now      func() time.Time
}

// NewMigrator wires the migration path. notifier may be nil.
func NewMigrator(store intake.Store, blobs blob.Store, drafts *draft.Store, notifier *notify.Client) *Migrator {
	return &Migrator{store: store, blobs: blobs, drafts: drafts, notifier: notifier, now: time.Now}
}

// Migrate runs the post-sign-in sequence: create the submitted application
// seeded from the drafts, upload the buffered files, record the audit row,
// fire the notification, and clear the drafts. The whole sequence is
// at-least-once: a failure before ClearAll leaves the drafts in place so a
// retry can run again, at the cost of a possible duplicate application.
//
// File uploads are continue-on-failure: one bad file never sinks the
// submission. Drafts are cleared only when the application itself was
// created.
func (m *Migrator) Migrate(ctx context.Context, user identity.User, files []BufferedFile) (intake.Application, error) {
	localData := m.drafts.LoadAll()
	companyData := localData[intake.SectionCompany]

	companyName, _ := companyData["legal_name"].(string)
	if companyName == "" {
		companyName, _ = companyData["dba"].(string)
	}
	website, _ := companyData["website"].(string)

	now := m.now().UTC()
	newApp := intake.NewApplication{
		UserID:         user.ID,
		CompanyName:    companyName,
		CompanyWebsite: website,
		Status:         intake.StatusSubmitted,
		SubmittedAt:    &now,
		CurrentSection: len(intake.Sections),
		SectionData:    localData,
		SectionStatus:  make(map[intake.SectionKey]string, len(intake.Sections)),
	}
	for _, info := range intake.Sections {
		if len(localData[info.Key]) > 0 {
			newApp.SectionStatus[info.Key] = intake.SectionSubmitted
		} else {
			newApp.SectionStatus[info.Key] = intake.SectionNotStarted
		}
	}

	app, err := m.store.CreateApplication(ctx, newApp)
	if err != nil {
		obs.MigrationsTotal.WithLabelValues("failed").Inc()
		return intake.Application{}, fmt.Errorf("create application: %w", err)
	}
	obs.ApplicationsCreated.Inc()
	obs.ApplicationsSubmitted.Inc()

	uploaded := m.uploadFiles(ctx, app.ID, user.ID, files)

	if _, err := m.store.AppendAudit(ctx, intake.AuditEntry{
		ApplicationID: app.ID,
		UserID:        user.ID,
		Action:        "application_submitted",
		Details: map[string]any{
			"source":             "public_form",
			"sections_with_data": len(localData),
			"files_uploaded":     len(files),
		},
	}); err != nil {
		obs.LogRequest(map[string]any{
			"level":          "error",
			"msg":            "audit append failed",
			"application_id": app.ID,
			"error":          err.Error(),
		})
	}

	m.notifier.SendAsync(notify.Summary{
		ApplicationID:  app.ID,
		CompanyName:    companyName,
		ApplicantName:  applicantName(user, companyData),
		ApplicantEmail: user.Email,
		SectionsFilled: len(localData),
		FilesUploaded:  uploaded,
	})

	if err := m.drafts.ClearAll(); err != nil {
		obs.LogRequest(map[string]any{
			"level":          "error",
			"msg":            "draft clear failed",
			"application_id": app.ID,
			"error":          err.Error(),
		})
	}
	obs.MigrationsTotal.WithLabelValues("ok").Inc()
	return app, nil
}

// uploadFiles stores each buffered file and records its document row,
// skipping failures. Returns the number of files fully landed.
func (m *Migrator) uploadFiles(ctx context.Context, appID, userID string, files []BufferedFile) int {
	uploaded := 0
	for _, f := range files {
		if len(f.Content) == 0 || !intake.KnownSection(f.SectionKey) {
			continue
		}
		path := fmt.Sprintf("%s/%s/%d_%s", appID, f.SectionKey, m.now().UnixMilli(), f.Name)
		if _, err := m.blobs.Put(ctx, path, bytes.NewReader(f.Content)); err != nil {
			obs.LogRequest(map[string]any{
				"level":          "error",
				"msg":            "file upload failed",
				"application_id": appID,
				"file":           f.Name,
				"error":          err.Error(),
			})
			continue
		}
		if _, err := m.store.InsertDocument(ctx, intake.Document{
			ApplicationID: appID,
			SectionKey:    f.SectionKey,
			FileName:      f.Name,
			FileSize:      f.Size,
			FileType:      f.Type,
			StoragePath:   path,
			ScanStatus:    "pending",
			UploadedBy:    userID,
		}); err != nil {
			obs.LogRequest(map[string]any{
				"level":          "error",
				"msg":            "document insert failed",
				"application_id": appID,
				"file":           f.Name,
				"error":          err.Error(),
			})
			continue
		}
		obs.DocumentsUploaded.Inc()
		uploaded++
	}
	return uploaded
}

func applicantName(user identity.User, companyData intake.SectionData) string {
	if user.Name != "" {
		return user.Name
	}
	name, _ := companyData["founder_name"].(string)
	return name
}

// SubmitOnAuth waits for the next sign-in event and runs Migrate for it.
// It returns when a migration ran, the context ended, or the broker closed.
func (m *Migrator) SubmitOnAuth(ctx context.Context, broker *identity.Broker, files []BufferedFile) (intake.Application, error) {
	events := broker.Subscribe(ctx)
	for {
		select {
		case <-ctx.Done():
			return intake.Application{}, ctx.Err()
		case evt, ok := <-events:
			if !ok {
				return intake.Application{}, ctx.Err()
			}
			if evt.Kind != identity.EventSignedIn {
				continue
			}
			return m.Migrate(ctx, evt.User, files)
		}
	}
}
