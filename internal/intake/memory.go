package intake

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"boldx.dev/intake/internal/ids"
)

// InMemory implements Store with in-process concurrency safety. It backs
// tests and local development; production uses the Postgres store.
type InMemory struct {
	mu    sync.RWMutex
	now   func() time.Time
	apps  map[string]*Application
	secs  map[string][]*Section // appID -> ordered by Number
	docs  map[string]*Document
	audit []AuditEntry
}

var _ Store = (*InMemory)(nil)

// MemOption configures InMemory.
type MemOption func(*InMemory)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) MemOption {
	return func(s *InMemory) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewInMemory creates an empty store.
func NewInMemory(opts ...MemOption) *InMemory {
	s := &InMemory{
		now:  time.Now,
		apps: make(map[string]*Application),
		secs: make(map[string][]*Section),
		docs: make(map[string]*Document),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *InMemory) CreateApplication(ctx context.Context, app NewApplication) (Application, error) {
	if app.Status == "" {
		app.Status = StatusDraft
	}
	if !ValidStatus(app.Status) {
		return Application{}, ErrInvalidStatus
	}
	if app.CurrentSection <= 0 {
		app.CurrentSection = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	rec := &Application{
		ID:             uuid.NewString(),
		UserID:         app.UserID,
		CompanyName:    app.CompanyName,
		CompanyWebsite: app.CompanyWebsite,
		Status:         app.Status,
		CreatedAt:      now,
		UpdatedAt:      now,
		SubmittedAt:    app.SubmittedAt,
		ExpiresAt:      now.Add(ApplicationLifetime),
		CurrentSection: app.CurrentSection,
	}
	s.apps[rec.ID] = rec

	// Exactly one section row per registered key, created in bulk.
	rows := make([]*Section, 0, len(Sections))
	for _, info := range Sections {
		sec := &Section{
			ID:            uuid.NewString(),
			ApplicationID: rec.ID,
			Key:           info.Key,
			Number:        info.Number,
			Status:        SectionNotStarted,
			Data:          SectionData{},
			UpdatedAt:     now,
		}
		if data, ok := app.SectionData[info.Key]; ok && len(data) > 0 {
			sec.Data = data.Clone()
		}
		if st, ok := app.SectionStatus[info.Key]; ok && st != "" {
			sec.Status = st
		}
		if app.SubmittedAt != nil {
			ts := now
			sec.LastSavedAt = &ts
			sec.SubmittedAt = &ts
		}
		rows = append(rows, sec)
	}
	s.secs[rec.ID] = rows

	return *rec, nil
}

func (s *InMemory) GetApplication(ctx context.Context, id string) (Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	app, ok := s.apps[id]
	if !ok {
		return Application{}, ErrNotFound
	}
	return *app, nil
}

func (s *InMemory) ListApplications(ctx context.Context, f ApplicationFilter) ([]Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []Application
	for _, app := range s.apps {
		if f.UserID != "" && app.UserID != f.UserID {
			continue
		}
		if f.Status != "" && app.Status != f.Status {
			continue
		}
		if f.CompanySearch != "" &&
			!strings.Contains(strings.ToLower(app.CompanyName), strings.ToLower(f.CompanySearch)) {
			continue
		}
		res = append(res, *app)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	return res, nil
}

func (s *InMemory) UpdateApplicationStatus(ctx context.Context, id, status string) error {
	if !ValidStatus(status) {
		return ErrInvalidStatus
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	app, ok := s.apps[id]
	if !ok {
		return ErrNotFound
	}
	now := s.now().UTC()
	app.Status = status
	app.UpdatedAt = now
	if status == StatusSubmitted && app.SubmittedAt == nil {
		app.SubmittedAt = &now
	}
	return nil
}

func (s *InMemory) SetCompanyName(ctx context.Context, id, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	app, ok := s.apps[id]
	if !ok {
		return ErrNotFound
	}
	app.CompanyName = name
	app.UpdatedAt = s.now().UTC()
	return nil
}

func (s *InMemory) SetCurrentSection(ctx context.Context, id string, number int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	app, ok := s.apps[id]
	if !ok {
		return ErrNotFound
	}
	app.CurrentSection = number
	app.UpdatedAt = s.now().UTC()
	return nil
}

func (s *InMemory) GetSection(ctx context.Context, appID string, key SectionKey) (Section, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sec, err := s.findSection(appID, key)
	if err != nil {
		return Section{}, err
	}
	out := *sec
	out.Data = sec.Data.Clone()
	return out, nil
}

func (s *InMemory) ListSections(ctx context.Context, appID string) ([]Section, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, ok := s.secs[appID]
	if !ok {
		return nil, ErrNotFound
	}
	res := make([]Section, 0, len(rows))
	for _, sec := range rows {
		out := *sec
		out.Data = sec.Data.Clone()
		res = append(res, out)
	}
	return res, nil
}

func (s *InMemory) SaveSection(ctx context.Context, appID string, key SectionKey, data SectionData) (Section, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	app, ok := s.apps[appID]
	if !ok {
		return Section{}, ErrNotFound
	}
	now := s.now().UTC()
	if app.ReadOnly(now) {
		return Section{}, ErrReadOnly
	}
	sec, err := s.findSection(appID, key)
	if err != nil {
		return Section{}, err
	}
	sec.Data = data.Clone()
	if sec.Status == SectionNotStarted {
		sec.Status = SectionInProgress
	}
	sec.LastSavedAt = &now
	sec.UpdatedAt = now
	out := *sec
	out.Data = sec.Data.Clone()
	return out, nil
}

func (s *InMemory) SubmitSection(ctx context.Context, appID string, key SectionKey, data SectionData) (Section, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.apps[appID]; !ok {
		return Section{}, ErrNotFound
	}
	sec, err := s.findSection(appID, key)
	if err != nil {
		return Section{}, err
	}
	now := s.now().UTC()
	sec.Data = data.Clone()
	sec.Status = SectionSubmitted
	sec.LastSavedAt = &now
	sec.SubmittedAt = &now
	sec.UpdatedAt = now
	out := *sec
	out.Data = sec.Data.Clone()
	return out, nil
}

func (s *InMemory) SetReviewerNotes(ctx context.Context, appID string, key SectionKey, notes string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sec, err := s.findSection(appID, key)
	if err != nil {
		return err
	}
	sec.ReviewerNotes = notes
	sec.UpdatedAt = s.now().UTC()
	return nil
}

func (s *InMemory) SetSectionStatus(ctx context.Context, appID string, key SectionKey, status string) error {
	if !ValidSectionStatus(status) {
		return ErrInvalidStatus
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sec, err := s.findSection(appID, key)
	if err != nil {
		return err
	}
	sec.Status = status
	sec.UpdatedAt = s.now().UTC()
	return nil
}

func (s *InMemory) InsertDocument(ctx context.Context, doc Document) (Document, error) {
	if !KnownSection(doc.SectionKey) {
		return Document{}, ErrUnknownSection
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.apps[doc.ApplicationID]; !ok {
		return Document{}, ErrNotFound
	}
	doc.ID = uuid.NewString()
	doc.UploadedAt = s.now().UTC()
	if doc.ScanStatus == "" {
		doc.ScanStatus = "pending"
	}
	copy := doc
	s.docs[doc.ID] = &copy
	return doc, nil
}

func (s *InMemory) ListDocuments(ctx context.Context, appID string) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []Document
	for _, doc := range s.docs {
		if doc.ApplicationID != appID || doc.DeletedAt != nil {
			continue
		}
		res = append(res, *doc)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].UploadedAt.After(res[j].UploadedAt) })
	return res, nil
}

func (s *InMemory) SoftDeleteDocument(ctx context.Context, docID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[docID]
	if !ok {
		return ErrNotFound
	}
	now := s.now().UTC()
	doc.DeletedAt = &now
	return nil
}

func (s *InMemory) GetDocument(ctx context.Context, docID string) (Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[docID]
	if !ok || doc.DeletedAt != nil {
		return Document{}, ErrNotFound
	}
	return *doc, nil
}

func (s *InMemory) AppendAudit(ctx context.Context, entry AuditEntry) (AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry.ID = ids.New()
	entry.CreatedAt = s.now().UTC()
	s.audit = append(s.audit, entry)
	return entry, nil
}

func (s *InMemory) ListAudit(ctx context.Context, appID string) ([]AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []AuditEntry
	for i := len(s.audit) - 1; i >= 0; i-- {
		if s.audit[i].ApplicationID == appID {
			res = append(res, s.audit[i])
		}
	}
	return res, nil
}

// findSection assumes the caller holds the lock.
func (s *InMemory) findSection(appID string, key SectionKey) (*Section, error) {
	rows, ok := s.secs[appID]
	if !ok {
		return nil, ErrNotFound
	}
	for _, sec := range rows {
		if sec.Key == key {
			return sec, nil
		}
	}
	return nil, ErrUnknownSection
}
