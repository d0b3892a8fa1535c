package intake

// ChecklistItem is one entry of the diligence document checklist.
type ChecklistItem struct {
	Key      string
	Label    string
	Required bool
}

// DocumentChecklist is the fixed diligence checklist shown on the documents
// step. The nine required items gate the documents validator.
var DocumentChecklist = []ChecklistItem{
	{"pitch_deck", "Pitch Deck", true},
	{"executive_summary", "Executive Summary", true},
	{"financial_statements_2y", "Financial Statements (2 years)", true},
	{"tax_returns_2y", "Tax Returns (2 years)", true},
	{"balance_sheet", "Current Balance Sheet", true},
	{"pl_statement", "P&L Statement", true},
	{"cash_flow_statement", "Cash Flow Statement", true},
	{"cap_table_doc", "Cap Table Document", true},
	{"articles_incorporation", "Articles of Incorporation", true},
	{"operating_agreement", "Operating Agreement", false},
	{"bylaws", "Corporate Bylaws", false},
	{"shareholder_agreement", "Shareholder Agreement", false},
	{"ip_documentation", "IP Documentation (Patents/Trademarks)", false},
	{"customer_contracts", "Key Customer Contracts", false},
	{"vendor_contracts", "Key Vendor Contracts", false},
	{"employee_agreements", "Employee/Contractor Agreements", false},
	{"insurance_policies", "Insurance Policies", false},
	{"litigation_summary", "Litigation Summary", false},
	{"org_chart", "Organization Chart", false},
	{"brand_guidelines", "Brand Guidelines / Assets", false},
	{"market_research", "Market Research / TAM Analysis", false},
	{"other", "Other Supporting Documents", false},
}

// RequiredChecklistKeys returns the keys every application must document.
func RequiredChecklistKeys() []string {
	var keys []string
	for _, item := range DocumentChecklist {
		if item.Required {
			keys = append(keys, item.Key)
		}
	}
	return keys
}

// Upload constraints.
const MaxFileSize = 50 << 20 // 50MB

var allowedFileTypes = map[string]bool{
	"application/pdf": true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": true,
	"application/vnd.ms-excel": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"image/png":  true,
	"image/jpeg": true,
}

// AllowedFileType reports whether the MIME type may be uploaded.
func AllowedFileType(mime string) bool { return allowedFileTypes[mime] }
