package intake

import (
	"context"
	"time"
)

// NewApplication carries everything needed to create an application together
// with its ten section rows. Zero values produce a fresh draft; the
// migration path seeds section data and statuses and submits in one shot.
type NewApplication struct {
	UserID         string
	CompanyName    string
	CompanyWebsite string
	Status         string // defaults to StatusDraft
	SubmittedAt    *time.Time
	CurrentSection int // defaults to 1

	// Optional per-section seeds. Missing keys start empty/not_started.
	SectionData   map[SectionKey]SectionData
	SectionStatus map[SectionKey]string
}

// ApplicationFilter narrows ListApplications.
type ApplicationFilter struct {
	UserID        string // exact match when set
	Status        string // exact match when set
	CompanySearch string // case-insensitive substring on company name
}

// Store is the record CRUD contract over the four persisted kinds. The
// backing service guarantees one Section row per (application, key) pair;
// callers rely on that invariant but do not enforce it.
type Store interface {
	// Applications.
	CreateApplication(ctx context.Context, app NewApplication) (Application, error)
	GetApplication(ctx context.Context, id string) (Application, error)
	ListApplications(ctx context.Context, f ApplicationFilter) ([]Application, error)
	UpdateApplicationStatus(ctx context.Context, id, status string) error
	SetCompanyName(ctx context.Context, id, name string) error
	SetCurrentSection(ctx context.Context, id string, number int) error

	// Sections.
	GetSection(ctx context.Context, appID string, key SectionKey) (Section, error)
	ListSections(ctx context.Context, appID string) ([]Section, error)
	SaveSection(ctx context.Context, appID string, key SectionKey, data SectionData) (Section, error)
	SubmitSection(ctx context.Context, appID string, key SectionKey, data SectionData) (Section, error)
	SetReviewerNotes(ctx context.Context, appID string, key SectionKey, notes string) error
	SetSectionStatus(ctx context.Context, appID string, key SectionKey, status string) error

	// Documents.
	InsertDocument(ctx context.Context, doc Document) (Document, error)
	ListDocuments(ctx context.Context, appID string) ([]Document, error)
	SoftDeleteDocument(ctx context.Context, docID string) error
	GetDocument(ctx context.Context, docID string) (Document, error)

	// Audit log.
	AppendAudit(ctx context.Context, entry AuditEntry) (AuditEntry, error)
	ListAudit(ctx context.Context, appID string) ([]AuditEntry, error)
}
