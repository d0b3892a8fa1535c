// Package pg is the Postgres-backed record store.
package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"boldx.dev/intake/internal/ids"
	"boldx.dev/intake/internal/intake"
)

type Store struct {
	db *sql.DB
}

var _ intake.Store = (*Store)(nil)

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewWithDB wraps an existing handle; used by tests.
func NewWithDB(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

const appColumns = `id, user_id, coalesce(company_name,''), coalesce(company_website,''), status, created_at, updated_at, submitted_at, expires_at, current_section`

func scanApplication(row interface{ Scan(...any) error }) (intake.Application, error) {
	var app intake.Application
	var submitted sql.NullTime
	err := row.Scan(&app.ID, &app.UserID, &app.CompanyName, &app.CompanyWebsite,
		&app.Status, &app.CreatedAt, &app.UpdatedAt, &submitted, &app.ExpiresAt, &app.CurrentSection)
	if errors.Is(err, sql.ErrNoRows) {
		return intake.Application{}, intake.ErrNotFound
	}
	if err != nil {
		return intake.Application{}, err
	}
	if submitted.Valid {
		t := submitted.Time
		app.SubmittedAt = &t
	}
	return app, nil
}

func (s *Store) CreateApplication(ctx context.Context, app intake.NewApplication) (intake.Application, error) {
	if app.Status == "" {
		app.Status = intake.StatusDraft
	}
	if !intake.ValidStatus(app.Status) {
		return intake.Application{}, intake.ErrInvalidStatus
	}
	if app.CurrentSection <= 0 {
		app.CurrentSection = 1
	}

	now := time.Now().UTC()
	expires := now.Add(intake.ApplicationLifetime)
	id := uuid.NewString()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return intake.Application{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var submitted sql.NullTime
	if app.SubmittedAt != nil {
		submitted = sql.NullTime{Time: app.SubmittedAt.UTC(), Valid: true}
	}
	if _, err := tx.ExecContext(ctx, `
		insert into intake_applications(id, user_id, company_name, company_website, status, created_at, updated_at, submitted_at, expires_at, current_section)
		values ($1,$2,$3,$4,$5,$6,$6,$7,$8,$9)
	`, id, app.UserID, app.CompanyName, app.CompanyWebsite, app.Status, now, submitted, expires, app.CurrentSection); err != nil {
		return intake.Application{}, err
	}

	for _, info := range intake.Sections {
		data := intake.SectionData{}
		if seed, ok := app.SectionData[info.Key]; ok {
			data = seed
		}
		status := intake.SectionNotStarted
		if st, ok := app.SectionStatus[info.Key]; ok && st != "" {
			status = st
		}
		payload, err := json.Marshal(data)
		if err != nil {
			return intake.Application{}, fmt.Errorf("marshal %s data: %w", info.Key, err)
		}
		var stamp sql.NullTime
		if app.SubmittedAt != nil {
			stamp = sql.NullTime{Time: now, Valid: true}
		}
		if _, err := tx.ExecContext(ctx, `
			insert into intake_sections(id, application_id, section_key, section_number, status, data, last_saved_at, submitted_at, updated_at)
			values ($1,$2,$3,$4,$5,$6,$7,$7,$8)
		`, uuid.NewString(), id, string(info.Key), info.Number, status, payload, stamp, now); err != nil {
			return intake.Application{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return intake.Application{}, err
	}

	out := intake.Application{
		ID:             id,
		UserID:         app.UserID,
		CompanyName:    app.CompanyName,
		CompanyWebsite: app.CompanyWebsite,
		Status:         app.Status,
		CreatedAt:      now,
		UpdatedAt:      now,
		SubmittedAt:    app.SubmittedAt,
		ExpiresAt:      expires,
		CurrentSection: app.CurrentSection,
	}
	return out, nil
}

func (s *Store) GetApplication(ctx context.Context, id string) (intake.Application, error) {
	row := s.db.QueryRowContext(ctx, `select `+appColumns+` from intake_applications where id=$1`, id)
	return scanApplication(row)
}

func (s *Store) ListApplications(ctx context.Context, f intake.ApplicationFilter) ([]intake.Application, error) {
	query := `select ` + appColumns + ` from intake_applications`
	var conds []string
	var args []any
	if f.UserID != "" {
		args = append(args, f.UserID)
		conds = append(conds, fmt.Sprintf("user_id=$%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		conds = append(conds, fmt.Sprintf("status=$%d", len(args)))
	}
	if f.CompanySearch != "" {
		args = append(args, "%"+f.CompanySearch+"%")
		conds = append(conds, fmt.Sprintf("company_name ilike $%d", len(args)))
	}
	if len(conds) > 0 {
		query += " where " + strings.Join(conds, " and ")
	}
	query += " order by created_at desc"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var apps []intake.Application
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		apps = append(apps, app)
	}
	return apps, rows.Err()
}

func (s *Store) UpdateApplicationStatus(ctx context.Context, id, status string) error {
	if !intake.ValidStatus(status) {
		return intake.ErrInvalidStatus
	}
	res, err := s.db.ExecContext(ctx, `
		update intake_applications
		set status=$2,
		    updated_at=now(),
		    submitted_at=case when $2='submitted' and submitted_at is null then now() else submitted_at end
		where id=$1
	`, id, status)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *Store) SetCompanyName(ctx context.Context, id, name string) error {
	res, err := s.db.ExecContext(ctx, `
		update intake_applications set company_name=$2, updated_at=now() where id=$1
	`, id, name)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *Store) SetCurrentSection(ctx context.Context, id string, number int) error {
	res, err := s.db.ExecContext(ctx, `
		update intake_applications set current_section=$2, updated_at=now() where id=$1
	`, id, number)
	if err != nil {
		return err
	}
	return requireRow(res)
}

const sectionColumns = `id, application_id, section_key, section_number, status, data, coalesce(reviewer_notes,''), last_saved_at, submitted_at, updated_at`

func scanSection(row interface{ Scan(...any) error }) (intake.Section, error) {
	var sec intake.Section
	var key string
	var payload []byte
	var lastSaved, submitted sql.NullTime
	err := row.Scan(&sec.ID, &sec.ApplicationID, &key, &sec.Number, &sec.Status,
		&payload, &sec.ReviewerNotes, &lastSaved, &submitted, &sec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return intake.Section{}, intake.ErrNotFound
	}
	if err != nil {
		return intake.Section{}, err
	}
	sec.Key = intake.SectionKey(key)
	sec.Data = intake.SectionData{}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &sec.Data); err != nil {
			return intake.Section{}, fmt.Errorf("decode section data: %w", err)
		}
	}
	if lastSaved.Valid {
		t := lastSaved.Time
		sec.LastSavedAt = &t
	}
	if submitted.Valid {
		t := submitted.Time
		sec.SubmittedAt = &t
	}
	return sec, nil
}

func (s *Store) GetSection(ctx context.Context, appID string, key intake.SectionKey) (intake.Section, error) {
	if !intake.KnownSection(key) {
		return intake.Section{}, intake.ErrUnknownSection
	}
	row := s.db.QueryRowContext(ctx, `
		select `+sectionColumns+` from intake_sections where application_id=$1 and section_key=$2
	`, appID, string(key))
	return scanSection(row)
}

func (s *Store) ListSections(ctx context.Context, appID string) ([]intake.Section, error) {
	rows, err := s.db.QueryContext(ctx, `
		select `+sectionColumns+` from intake_sections where application_id=$1 order by section_number
	`, appID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var secs []intake.Section
	for rows.Next() {
		sec, err := scanSection(rows)
		if err != nil {
			return nil, err
		}
		secs = append(secs, sec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(secs) == 0 {
		return nil, intake.ErrNotFound
	}
	return secs, nil
}

// guardWritable rejects section writes on read-only applications.
func (s *Store) guardWritable(ctx context.Context, appID string) error {
	app, err := s.GetApplication(ctx, appID)
	if err != nil {
		return err
	}
	if app.ReadOnly(time.Now().UTC()) {
		return intake.ErrReadOnly
	}
	return nil
}

func (s *Store) SaveSection(ctx context.Context, appID string, key intake.SectionKey, data intake.SectionData) (intake.Section, error) {
	if !intake.KnownSection(key) {
		return intake.Section{}, intake.ErrUnknownSection
	}
	if err := s.guardWritable(ctx, appID); err != nil {
		return intake.Section{}, err
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return intake.Section{}, err
	}
	if _, err := s.db.ExecContext(ctx, `
		update intake_sections
		set data=$3,
		    status=case when status='not_started' then 'in_progress' else status end,
		    last_saved_at=now(),
		    updated_at=now()
		where application_id=$1 and section_key=$2
	`, appID, string(key), payload); err != nil {
		return intake.Section{}, err
	}
	return s.GetSection(ctx, appID, key)
}

func (s *Store) SubmitSection(ctx context.Context, appID string, key intake.SectionKey, data intake.SectionData) (intake.Section, error) {
	if !intake.KnownSection(key) {
		return intake.Section{}, intake.ErrUnknownSection
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return intake.Section{}, err
	}
	if _, err := s.db.ExecContext(ctx, `
		update intake_sections
		set data=$3, status='submitted', last_saved_at=now(), submitted_at=now(), updated_at=now()
		where application_id=$1 and section_key=$2
	`, appID, string(key), payload); err != nil {
		return intake.Section{}, err
	}
	return s.GetSection(ctx, appID, key)
}

func (s *Store) SetReviewerNotes(ctx context.Context, appID string, key intake.SectionKey, notes string) error {
	res, err := s.db.ExecContext(ctx, `
		update intake_sections set reviewer_notes=$3, updated_at=now()
		where application_id=$1 and section_key=$2
	`, appID, string(key), notes)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *Store) SetSectionStatus(ctx context.Context, appID string, key intake.SectionKey, status string) error {
	if !intake.ValidSectionStatus(status) {
		return intake.ErrInvalidStatus
	}
	res, err := s.db.ExecContext(ctx, `
		update intake_sections set status=$3, updated_at=now()
		where application_id=$1 and section_key=$2
	`, appID, string(key), status)
	if err != nil {
		return err
	}
	return requireRow(res)
}

const docColumns = `id, application_id, section_key, coalesce(checklist_item,''), file_name, file_size, file_type, storage_path, scan_status, coalesce(uploaded_by,''), uploaded_at, deleted_at`

func scanDocument(row interface{ Scan(...any) error }) (intake.Document, error) {
	var doc intake.Document
	var key string
	var deleted sql.NullTime
	err := row.Scan(&doc.ID, &doc.ApplicationID, &key, &doc.ChecklistItem, &doc.FileName,
		&doc.FileSize, &doc.FileType, &doc.StoragePath, &doc.ScanStatus, &doc.UploadedBy,
		&doc.UploadedAt, &deleted)
	if errors.Is(err, sql.ErrNoRows) {
		return intake.Document{}, intake.ErrNotFound
	}
	if err != nil {
		return intake.Document{}, err
	}
	doc.SectionKey = intake.SectionKey(key)
	if deleted.Valid {
		t := deleted.Time
		doc.DeletedAt = &t
	}
	return doc, nil
}

func (s *Store) InsertDocument(ctx context.Context, doc intake.Document) (intake.Document, error) {
	if !intake.KnownSection(doc.SectionKey) {
		return intake.Document{}, intake.ErrUnknownSection
	}
	doc.ID = uuid.NewString()
	doc.UploadedAt = time.Now().UTC()
	if doc.ScanStatus == "" {
		doc.ScanStatus = "pending"
	}
	_, err := s.db.ExecContext(ctx, `
		insert into intake_documents(id, application_id, section_key, checklist_item, file_name, file_size, file_type, storage_path, scan_status, uploaded_by, uploaded_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, doc.ID, doc.ApplicationID, string(doc.SectionKey), doc.ChecklistItem, doc.FileName,
		doc.FileSize, doc.FileType, doc.StoragePath, doc.ScanStatus, doc.UploadedBy, doc.UploadedAt)
	if err != nil {
		return intake.Document{}, err
	}
	return doc, nil
}

func (s *Store) ListDocuments(ctx context.Context, appID string) ([]intake.Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		select `+docColumns+` from intake_documents
		where application_id=$1 and deleted_at is null
		order by uploaded_at desc
	`, appID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []intake.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (s *Store) SoftDeleteDocument(ctx context.Context, docID string) error {
	res, err := s.db.ExecContext(ctx, `
		update intake_documents set deleted_at=now() where id=$1 and deleted_at is null
	`, docID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *Store) GetDocument(ctx context.Context, docID string) (intake.Document, error) {
	row := s.db.QueryRowContext(ctx, `
		select `+docColumns+` from intake_documents where id=$1 and deleted_at is null
	`, docID)
	return scanDocument(row)
}

func (s *Store) AppendAudit(ctx context.Context, entry intake.AuditEntry) (intake.AuditEntry, error) {
	entry.ID = ids.New()
	entry.CreatedAt = time.Now().UTC()
	details, err := json.Marshal(entry.Details)
	if err != nil {
		return intake.AuditEntry{}, err
	}
	_, err = s.db.ExecContext(ctx, `
		insert into intake_audit_log(id, application_id, user_id, action, section_key, details, created_at)
		values ($1,$2,$3,$4,$5,$6,$7)
	`, entry.ID, entry.ApplicationID, entry.UserID, entry.Action, string(entry.SectionKey), details, entry.CreatedAt)
	if err != nil {
		return intake.AuditEntry{}, err
	}
	return entry, nil
}

func (s *Store) ListAudit(ctx context.Context, appID string) ([]intake.AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, application_id, coalesce(user_id,''), action, coalesce(section_key,''), details, created_at
		from intake_audit_log where application_id=$1 order by created_at desc
	`, appID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []intake.AuditEntry
	for rows.Next() {
		var e intake.AuditEntry
		var key string
		var details []byte
		if err := rows.Scan(&e.ID, &e.ApplicationID, &e.UserID, &e.Action, &key, &details, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.SectionKey = intake.SectionKey(key)
		if len(details) > 0 {
			if err := json.Unmarshal(details, &e.Details); err != nil {
				return nil, fmt.Errorf("decode audit details: %w", err)
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return intake.ErrNotFound
	}
	return nil
}
