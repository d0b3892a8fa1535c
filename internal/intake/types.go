package intake

import (
	"errors"
	"time"
)

// SectionKey names one of the ten fixed wizard sections.
type SectionKey string

const (
	SectionCompany        SectionKey = "company"
	SectionTransaction    SectionKey = "transaction"
	SectionFinancialsHist SectionKey = "financials_hist"
	SectionFinancialsProj SectionKey = "financials_proj"
	SectionCapTable       SectionKey = "cap_table"
	SectionValuation      SectionKey = "valuation"
	SectionUseOfProceeds  SectionKey = "use_of_proceeds"
	SectionKPIs           SectionKey = "kpis"
	SectionDocuments      SectionKey = "documents"
	SectionSummary        SectionKey = "summary"
)

// SectionInfo describes a wizard step.
type SectionInfo struct {
	Key         SectionKey
	Number      int
	Label       string
	Description string
}

// Sections is the fixed, ordered registry of wizard steps (numbers 1-10).
var Sections = []SectionInfo{
	{SectionCompany, 1, "Company", "Entity profile, ownership, ecosystem fit"},
	{SectionTransaction, 2, "Transaction", "Investment path, structure, terms"},
	{SectionFinancialsHist, 3, "Historical Financials", "Monthly/TTM financial inputs"},
	{SectionFinancialsProj, 4, "Projected Financials", "Driver-based projections"},
	{SectionCapTable, 5, "Cap Table", "Ownership, dilution, instruments"},
	{SectionValuation, 6, "Valuation", "DCF, comps, reconciliation"},
	{SectionUseOfProceeds, 7, "Use of Proceeds", "Investment allocation & milestones"},
	{SectionKPIs, 8, "KPIs & Operations", "Operational metrics & evidence"},
	{SectionDocuments, 9, "Documents", "Diligence checklist & uploads"},
	{SectionSummary, 10, "Summary & Attestation", "Review & certification"},
}

// SectionNumber returns the 1-based ordinal of a key, or 0 when unknown.
func SectionNumber(key SectionKey) int {
	for _, s := range Sections {
		if s.Key == key {
			return s.Number
		}
	}
	return 0
}

// KnownSection reports whether key is one of the ten registered sections.
func KnownSection(key SectionKey) bool { return SectionNumber(key) > 0 }

// Application statuses.
const (
	StatusDraft               = "draft"
	StatusInProgress          = "in_progress"
	StatusSubmitted           = "submitted"
	StatusUnderReview         = "under_review"
	StatusConditionalApproval = "conditional_approval"
	StatusApproved            = "approved"
	StatusDeclined            = "declined"
	StatusExpired             = "expired"
	StatusDisqualified        = "disqualified"
)

// ApplicationStatuses lists every admin-settable application status. No
// transition table is enforced; keep any future restriction in ValidStatus.
var ApplicationStatuses = []string{
	StatusDraft, StatusInProgress, StatusSubmitted, StatusUnderReview,
	StatusConditionalApproval, StatusApproved, StatusDeclined,
	StatusExpired, StatusDisqualified,
}

// ValidStatus reports whether s is a known application status.
func ValidStatus(s string) bool {
	for _, known := range ApplicationStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Section statuses.
const (
	SectionNotStarted     = "not_started"
	SectionInProgress     = "in_progress"
	SectionSubmitted      = "submitted"
	SectionAccepted       = "accepted"
	SectionNeedsUpdate    = "needs_update"
	SectionAdditionalInfo = "additional_info_requested"
	SectionLocked         = "locked"
)

// SectionStatuses lists every valid section status.
var SectionStatuses = []string{
	SectionNotStarted, SectionInProgress, SectionSubmitted, SectionAccepted,
	SectionNeedsUpdate, SectionAdditionalInfo, SectionLocked,
}

// ValidSectionStatus reports whether s is a known section status.
func ValidSectionStatus(s string) bool {
	for _, known := range SectionStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// ApplicationLifetime is how long an application stays editable after
// creation.
const ApplicationLifetime = 45 * 24 * time.Hour

// SectionData is a section's free-form payload. The persistence layer treats
// it as opaque; validators and calculators interpret it per section key.
type SectionData map[string]any

// Clone returns a shallow copy, never nil.
func (d SectionData) Clone() SectionData {
	out := make(SectionData, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Application is one intake submission.
type Application struct {
	ID             string     `json:"id"`
	UserID         string     `json:"user_id,omitempty"`
	CompanyName    string     `json:"company_name,omitempty"`
	CompanyWebsite string     `json:"company_website,omitempty"`
	Status         string     `json:"status"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	SubmittedAt    *time.Time `json:"submitted_at,omitempty"`
	ExpiresAt      time.Time  `json:"expires_at"`
	CurrentSection int        `json:"current_section"`
}

// ReadOnly reports whether the application no longer accepts section writes.
func (a Application) ReadOnly(now time.Time) bool {
	switch a.Status {
	case StatusSubmitted, StatusExpired, StatusDisqualified:
		return true
	}
	return now.After(a.ExpiresAt)
}

// Section is one of the ten named slots of an application.
type Section struct {
	ID            string      `json:"id"`
	ApplicationID string      `json:"application_id"`
	Key           SectionKey  `json:"section_key"`
	Number        int         `json:"section_number"`
	Status        string      `json:"status"`
	Data          SectionData `json:"data"`
	ReviewerNotes string      `json:"reviewer_notes,omitempty"`
	LastSavedAt   *time.Time  `json:"last_saved_at,omitempty"`
	SubmittedAt   *time.Time  `json:"submitted_at,omitempty"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// Document is an uploaded file attached to an application.
type Document struct {
	ID            string     `json:"id"`
	ApplicationID string     `json:"application_id"`
	SectionKey    SectionKey `json:"section_key"`
	ChecklistItem string     `json:"checklist_item,omitempty"`
	FileName      string     `json:"file_name"`
	FileSize      int64      `json:"file_size"`
	FileType      string     `json:"file_type"`
	StoragePath   string     `json:"storage_path"`
	ScanStatus    string     `json:"scan_status"`
	UploadedBy    string     `json:"uploaded_by,omitempty"`
	UploadedAt    time.Time  `json:"uploaded_at"`
	DeletedAt     *time.Time `json:"deleted_at,omitempty"`
}

// AuditEntry is an append-only record of a significant action.
type AuditEntry struct {
	ID            string         `json:"id"`
	ApplicationID string         `json:"application_id"`
	UserID        string         `json:"user_id,omitempty"`
	Action        string         `json:"action"`
	SectionKey    SectionKey     `json:"section_key,omitempty"`
	Details       map[string]any `json:"details,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

var (
	ErrNotFound       = errors.New("not found")
	ErrReadOnly       = errors.New("application is read-only")
	ErrUnknownSection = errors.New("unknown section key")
	ErrInvalidStatus  = errors.New("invalid status")
)
