// Package finance holds the deterministic calculators behind the wizard's
// financial previews. All helpers are pure functions over the loosely typed
// section payloads; missing or malformed inputs coerce to zero rather than
// erroring, so a half-filled form still renders a preview.
package finance

import (
	"math"
	"strconv"
	"strings"
)

// Num coerces a JSON-decoded value to float64. Strings may carry currency
// formatting ("$1,200.50"); anything unparseable is zero.
func Num(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case string:
		s := strings.TrimSpace(n)
		s = strings.ReplaceAll(s, "$", "")
		s = strings.ReplaceAll(s, ",", "")
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

func round(f float64) int64 { return int64(math.Round(f)) }

// GrossProfit is revenue minus cost of goods sold.
func GrossProfit(revenue, cogs any) float64 { return Num(revenue) - Num(cogs) }

// EBITDA is gross profit minus operating expenses.
func EBITDA(grossProfit, opex any) float64 { return Num(grossProfit) - Num(opex) }

// Month is one row of monthly historical input. Revenue keeps its raw value
// so an untouched row can be told apart from an explicit zero.
type Month struct {
	Revenue any
	COGS    any
	OpEx    any
}

// HasRevenue reports whether the row was actually filled in.
func (m Month) HasRevenue() bool { return m.Revenue != nil && m.Revenue != "" }

// MonthsFrom decodes the historical-financials "monthly" payload, a JSON
// array of objects with revenue/cogs/opex keys. Non-object rows are skipped.
func MonthsFrom(v any) []Month {
	rows, ok := v.([]any)
	if !ok {
		return nil
	}
	months := make([]Month, 0, len(rows))
	for _, row := range rows {
		obj, ok := row.(map[string]any)
		if !ok {
			continue
		}
		months = append(months, Month{
			Revenue: obj["revenue"],
			COGS:    obj["cogs"],
			OpEx:    obj["opex"],
		})
	}
	return months
}

// TTMSummary is the trailing-twelve-month rollup. Margins are percentages.
type TTMSummary struct {
	Revenue      float64 `json:"revenue"`
	COGS         float64 `json:"cogs"`
	GrossProfit  float64 `json:"gross_profit"`
	OpEx         float64 `json:"opex"`
	EBITDA       float64 `json:"ebitda"`
	GrossMargin  float64 `json:"gross_margin"`
	EBITDAMargin float64 `json:"ebitda_margin"`
}

// TTM rolls up the last twelve filled-in months. The second return is false
// when no month has revenue entered.
func TTM(months []Month) (TTMSummary, bool) {
	var filled []Month
	for _, m := range months {
		if m.HasRevenue() {
			filled = append(filled, m)
		}
	}
	if len(filled) == 0 {
		return TTMSummary{}, false
	}
	if len(filled) > 12 {
		filled = filled[len(filled)-12:]
	}

	var sum TTMSummary
	for _, m := range filled {
		sum.Revenue += Num(m.Revenue)
		sum.COGS += Num(m.COGS)
		sum.OpEx += Num(m.OpEx)
	}
	sum.GrossProfit = sum.Revenue - sum.COGS
	sum.EBITDA = sum.GrossProfit - sum.OpEx
	if sum.Revenue > 0 {
		sum.GrossMargin = sum.GrossProfit / sum.Revenue * 100
		sum.EBITDAMargin = sum.EBITDA / sum.Revenue * 100
	}
	return sum, true
}

// ProjectedYear is one row of the five-year driver-based projection. Values
// are rounded to whole currency units.
type ProjectedYear struct {
	Year        int   `json:"year"`
	Revenue     int64 `json:"revenue"`
	COGS        int64 `json:"cogs"`
	GrossProfit int64 `json:"gross_profit"`
	OpEx        int64 `json:"opex"`
	EBITDA      int64 `json:"ebitda"`
	DA          int64 `json:"da"`
	CapEx       int64 `json:"capex"`
	NWCChange   int64 `json:"nwc_change"`
	FCF         int64 `json:"fcf"`
}

// Projections builds five years of financials from a base revenue and the
// driver percentages (revenue_cagr, gross_margin_target, opex_pct_revenue,
// da_pct, capex_pct, nwc_change_pct, tax_rate; all whole percents). Year one
// keeps the base revenue; later years compound by the CAGR.
func Projections(baseRevenue any, drivers map[string]any) []ProjectedYear {
	cagr := Num(drivers["revenue_cagr"]) / 100
	grossMargin := Num(drivers["gross_margin_target"]) / 100
	opexPct := Num(drivers["opex_pct_revenue"]) / 100
	daPct := Num(drivers["da_pct"]) / 100
	capexPct := Num(drivers["capex_pct"]) / 100
	nwcPct := Num(drivers["nwc_change_pct"]) / 100
	taxRate := Num(drivers["tax_rate"]) / 100

	years := make([]ProjectedYear, 0, 5)
	rev := Num(baseRevenue)
	for i := 0; i < 5; i++ {
		if i > 0 {
			rev *= 1 + cagr
		}
		cogs := rev * (1 - grossMargin)
		grossProfit := rev - cogs
		opex := rev * opexPct
		ebitda := grossProfit - opex
		da := rev * daPct
		ebit := ebitda - da
		taxes := math.Max(0, ebit*taxRate)
		nopat := ebit - taxes
		capex := rev * capexPct
		nwcChange := rev * nwcPct
		fcf := nopat + da - capex - nwcChange

		years = append(years, ProjectedYear{
			Year:        i + 1,
			Revenue:     round(rev),
			COGS:        round(cogs),
			GrossProfit: round(grossProfit),
			OpEx:        round(opex),
			EBITDA:      round(ebitda),
			DA:          round(da),
			CapEx:       round(capex),
			NWCChange:   round(nwcChange),
			FCF:         round(fcf),
		})
	}
	return years
}

// CapTableSummary is the dilution preview for the cap-table step.
type CapTableSummary struct {
	FullyDiluted      int64   `json:"fully_diluted"`
	PricePerShare     float64 `json:"price_per_share"`
	NewShares         int64   `json:"new_shares"`
	PostMoney         int64   `json:"post_money"`
	InvestorOwnership float64 `json:"investor_ownership"`
}

// CapTable computes the fully diluted share count and the round math from
// the cap-table inputs (common_shares, options_outstanding,
// option_pool_authorized, warrants, safe_note_conversion_shares,
// pre_money_valuation, investment_amount). Price per share and ownership
// percent round to two decimals.
func CapTable(inputs map[string]any) CapTableSummary {
	common := Num(inputs["common_shares"])
	options := Num(inputs["options_outstanding"])
	pool := Num(inputs["option_pool_authorized"])
	warrants := Num(inputs["warrants"])
	safe := Num(inputs["safe_note_conversion_shares"])
	preMoney := Num(inputs["pre_money_valuation"])
	investment := Num(inputs["investment_amount"])

	fullyDiluted := common + options + pool + warrants + safe
	var pricePerShare float64
	if fullyDiluted > 0 {
		pricePerShare = preMoney / fullyDiluted
	}
	var newShares float64
	if pricePerShare > 0 {
		newShares = investment / pricePerShare
	}
	postMoney := preMoney + investment
	var ownership float64
	if postMoney > 0 {
		ownership = investment / postMoney * 100
	}

	return CapTableSummary{
		FullyDiluted:      round(fullyDiluted),
		PricePerShare:     math.Round(pricePerShare*100) / 100,
		NewShares:         round(newShares),
		PostMoney:         round(postMoney),
		InvestorOwnership: math.Round(ownership*100) / 100,
	}
}

// DCFResult is the discounted-cash-flow output. TerminalValue is the present
// value of the terminal year.
type DCFResult struct {
	EnterpriseValue int64 `json:"enterprise_value"`
	TerminalValue   int64 `json:"terminal_value"`
}

// DCF discounts the free cash flows at the WACC and adds a Gordon-growth
// terminal value. A non-positive rate, or a rate at or below the terminal
// growth, yields a zero result instead of a blow-up.
func DCF(fcf []float64, waccPct, terminalGrowthPct any) DCFResult {
	r := Num(waccPct) / 100
	g := Num(terminalGrowthPct) / 100
	if r <= 0 || r <= g || len(fcf) == 0 {
		return DCFResult{}
	}

	var pvSum float64
	for i, cash := range fcf {
		pvSum += cash / math.Pow(1+r, float64(i+1))
	}
	terminal := fcf[len(fcf)-1] * (1 + g) / (r - g)
	pvTerminal := terminal / math.Pow(1+r, float64(len(fcf)))

	return DCFResult{
		EnterpriseValue: round(pvSum + pvTerminal),
		TerminalValue:   round(pvTerminal),
	}
}

// Blended mixes the three valuation methods by the given whole-percent
// weights (keys dcf, comps, precedent).
func Blended(dcfValue, compsValue, precedentValue any, weights map[string]any) int64 {
	dcfW := Num(weights["dcf"]) / 100
	compsW := Num(weights["comps"]) / 100
	precW := Num(weights["precedent"]) / 100
	return round(Num(dcfValue)*dcfW + Num(compsValue)*compsW + Num(precedentValue)*precW)
}
