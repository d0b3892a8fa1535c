// Package validate holds the per-section completeness rules. Each validator
// returns human-readable messages; an empty slice means the section passes.
package validate

import (
	"fmt"
	"regexp"
	"strings"

	"boldx.dev/intake/internal/intake"
)

var (
	emailRe   = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	websiteRe = regexp.MustCompile(`^https?://.+`)
)

// ForSection dispatches to the validator registered for key. The documents
// slice is only consulted for the documents step; pass nil elsewhere.
// Unknown keys validate clean.
func ForSection(key intake.SectionKey, data intake.SectionData, docs []intake.Document) []string {
	switch key {
	case intake.SectionCompany:
		return Company(data)
	case intake.SectionTransaction:
		return Transaction(data)
	case intake.SectionFinancialsHist:
		return FinancialsHist(data)
	case intake.SectionFinancialsProj:
		return FinancialsProj(data)
	case intake.SectionCapTable:
		return CapTable(data)
	case intake.SectionValuation:
		return Valuation(data)
	case intake.SectionUseOfProceeds:
		return UseOfProceeds(data)
	case intake.SectionKPIs:
		return KPIs(data)
	case intake.SectionDocuments:
		return Documents(docs)
	case intake.SectionSummary:
		return Summary(data)
	}
	return nil
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

// present reports whether a field was entered at all. An explicit zero
// counts; nil and empty string do not.
func present(v any) bool { return v != nil && v != "" }

func truthy(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		return b != "" && b != "false"
	default:
		return false
	}
}

func num(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case string:
		var f float64
		fmt.Sscanf(strings.TrimSpace(n), "%g", &f)
		return f
	default:
		return 0
	}
}

func Company(data intake.SectionData) []string {
	var errs []string
	if strings.TrimSpace(str(data["legal_name"])) == "" {
		errs = append(errs, "Legal name is required")
	}
	if !present(data["industry"]) {
		errs = append(errs, "Industry is required")
	}
	if !present(data["business_model"]) {
		errs = append(errs, "Business model is required")
	}
	if !present(data["stage"]) {
		errs = append(errs, "Company stage is required")
	}
	if strings.TrimSpace(str(data["founder_name"])) == "" {
		errs = append(errs, "Founder / CEO name is required")
	}
	email := str(data["founder_email"])
	if strings.TrimSpace(email) == "" {
		errs = append(errs, "Founder / CEO email is required")
	} else if !emailRe.MatchString(email) {
		errs = append(errs, "Founder email is not valid")
	}
	if site := str(data["website"]); strings.TrimSpace(site) != "" && !websiteRe.MatchString(site) {
		errs = append(errs, "Website must start with http:// or https://")
	}
	return errs
}

func Transaction(data intake.SectionData) []string {
	var errs []string
	path := str(data["path"])
	if path == "" {
		errs = append(errs, "Transaction path is required")
	}
	// M&A deals carry no round terms.
	if !present(data["investment_amount"]) && path != "ma" {
		errs = append(errs, "Investment amount is required")
	}
	if !present(data["security_type"]) && path != "ma" {
		errs = append(errs, "Security type is required")
	}
	return errs
}

func FinancialsHist(data intake.SectionData) []string {
	rows, _ := data["monthly_data"].([]any)
	for _, row := range rows {
		if m, ok := row.(map[string]any); ok && present(m["revenue"]) {
			return nil
		}
	}
	return []string{"At least one month of historical financials is required"}
}

func FinancialsProj(data intake.SectionData) []string {
	var errs []string
	if !present(data["revenue_cagr"]) {
		errs = append(errs, "Revenue CAGR is required")
	}
	if !present(data["gross_margin_target"]) {
		errs = append(errs, "Gross margin target is required")
	}
	return errs
}

func CapTable(data intake.SectionData) []string {
	var errs []string
	if !present(data["common_shares"]) {
		errs = append(errs, "Common shares outstanding is required")
	}
	if !present(data["pre_money_valuation"]) {
		errs = append(errs, "Pre-money valuation is required")
	}
	return errs
}

func Valuation(data intake.SectionData) []string {
	var errs []string
	if !present(data["wacc"]) {
		errs = append(errs, "WACC / discount rate is required")
	}
	if !present(data["terminal_growth_rate"]) {
		errs = append(errs, "Terminal growth rate is required")
	}
	total := num(data["dcf_weight"]) + num(data["comps_weight"]) + num(data["precedent_weight"])
	if total > 100.01 || total < 99.99 {
		errs = append(errs, "Valuation weights must sum to 100%")
	}
	return errs
}

func UseOfProceeds(data intake.SectionData) []string {
	cats, _ := data["categories"].([]any)
	for _, row := range cats {
		if c, ok := row.(map[string]any); ok && present(c["category"]) && present(c["amount"]) {
			return nil
		}
	}
	return []string{"At least one use of proceeds category is required"}
}

func KPIs(data intake.SectionData) []string {
	kpis, _ := data["kpis"].([]any)
	for _, row := range kpis {
		if k, ok := row.(map[string]any); ok && strings.TrimSpace(str(k["current_value"])) != "" {
			return nil
		}
	}
	return []string{"At least one KPI with a current value is required"}
}

// Documents checks every required checklist item against the non-deleted
// uploads.
func Documents(docs []intake.Document) []string {
	var errs []string
	for _, key := range intake.RequiredChecklistKeys() {
		found := false
		for _, d := range docs {
			if d.ChecklistItem == key && d.DeletedAt == nil {
				found = true
				break
			}
		}
		if !found {
			errs = append(errs, fmt.Sprintf("Required document missing: %s", titleCase(key)))
		}
	}
	return errs
}

func Summary(data intake.SectionData) []string {
	var errs []string
	if !truthy(data["attested"]) {
		errs = append(errs, "You must check the attestation box")
	}
	if strings.TrimSpace(str(data["attested_name"])) == "" {
		errs = append(errs, "Your full name is required for attestation")
	}
	if strings.TrimSpace(str(data["attested_title"])) == "" {
		errs = append(errs, "Your title is required for attestation")
	}
	return errs
}

func titleCase(key string) string {
	words := strings.Split(strings.ReplaceAll(key, "_", " "), " ")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
