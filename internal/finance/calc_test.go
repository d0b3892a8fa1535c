package finance

import (
	"math"
	"testing"
)

func TestNum(t *testing.T) {
	cases := []struct {
		in   any
		want float64
	}{
		{nil, 0},
		{"", 0},
		{"abc", 0},
		{"42", 42},
		{"$1,200.50", 1200.5},
		{float64(7.5), 7.5},
		{int(3), 3},
	}
	for _, c := range cases {
		if got := Num(c.in); got != c.want {
			t.Fatalf("Num(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestTTMEmpty(t *testing.T) {
	if _, ok := TTM(nil); ok {
		t.Fatal("TTM(nil) should report no data")
	}
	months := []Month{{Revenue: ""}, {Revenue: nil}}
	if _, ok := TTM(months); ok {
		t.Fatal("rows without revenue should report no data")
	}
}

func TestTTMRollsUpLastTwelve(t *testing.T) {
	// 14 filled months; only the last 12 count.
	var months []Month
	for i := 0; i < 14; i++ {
		months = append(months, Month{Revenue: 100.0, COGS: 40.0, OpEx: 30.0})
	}
	sum, ok := TTM(months)
	if !ok {
		t.Fatal("expected data")
	}
	if sum.Revenue != 1200 {
		t.Fatalf("revenue = %v, want 1200", sum.Revenue)
	}
	if sum.GrossProfit != 720 || sum.EBITDA != 360 {
		t.Fatalf("gp = %v, ebitda = %v", sum.GrossProfit, sum.EBITDA)
	}
	if sum.GrossMargin != 60 || sum.EBITDAMargin != 30 {
		t.Fatalf("margins = %v / %v", sum.GrossMargin, sum.EBITDAMargin)
	}
}

func TestTTMZeroRevenueMargins(t *testing.T) {
	months := []Month{{Revenue: "0", COGS: 10.0, OpEx: 5.0}}
	sum, ok := TTM(months)
	if !ok {
		t.Fatal("explicit zero revenue is still data")
	}
	if sum.GrossMargin != 0 || sum.EBITDAMargin != 0 {
		t.Fatalf("margins with zero revenue = %v / %v, want 0", sum.GrossMargin, sum.EBITDAMargin)
	}
}

func TestTTMSkipsUnfilledRows(t *testing.T) {
	months := []Month{
		{Revenue: 100.0, COGS: 50.0},
		{Revenue: ""},
		{Revenue: 200.0, COGS: 80.0},
	}
	sum, _ := TTM(months)
	if sum.Revenue != 300 || sum.COGS != 130 {
		t.Fatalf("rollup = %+v", sum)
	}
}

func TestMonthsFrom(t *testing.T) {
	payload := []any{
		map[string]any{"revenue": "100", "cogs": "40", "opex": "10"},
		"junk",
		map[string]any{"revenue": nil},
	}
	months := MonthsFrom(payload)
	if len(months) != 2 {
		t.Fatalf("months = %d, want 2", len(months))
	}
	if !months[0].HasRevenue() || months[1].HasRevenue() {
		t.Fatalf("HasRevenue wrong: %+v", months)
	}
	if MonthsFrom("not a list") != nil {
		t.Fatal("non-list payload should yield nil")
	}
}

func TestProjectionsFirstYearKeepsBase(t *testing.T) {
	drivers := map[string]any{
		"revenue_cagr":        "20",
		"gross_margin_target": "60",
		"opex_pct_revenue":    "30",
		"da_pct":              "5",
		"capex_pct":           "4",
		"nwc_change_pct":      "2",
		"tax_rate":            "25",
	}
	years := Projections("1000000", drivers)
	if len(years) != 5 {
		t.Fatalf("years = %d, want 5", len(years))
	}
	if years[0].Revenue != 1000000 {
		t.Fatalf("year 1 revenue = %d, want base unchanged", years[0].Revenue)
	}
	if years[1].Revenue != 1200000 {
		t.Fatalf("year 2 revenue = %d, want 1200000", years[1].Revenue)
	}
	// Year 1: gp=600000, opex=300000, ebitda=300000, da=50000, ebit=250000,
	// taxes=62500, nopat=187500, capex=40000, nwc=20000, fcf=177500.
	if years[0].FCF != 177500 {
		t.Fatalf("year 1 fcf = %d, want 177500", years[0].FCF)
	}
}

func TestProjectionsNegativeEBITNoTaxCredit(t *testing.T) {
	drivers := map[string]any{
		"gross_margin_target": "10",
		"opex_pct_revenue":    "50",
		"tax_rate":            "30",
	}
	years := Projections(1000.0, drivers)
	// ebit = 100 - 500 = -400; taxes clamp to 0, so fcf = nopat = ebit.
	if years[0].FCF != -400 {
		t.Fatalf("fcf = %d, want -400", years[0].FCF)
	}
}

func TestCapTable(t *testing.T) {
	got := CapTable(map[string]any{
		"common_shares":               "8000000",
		"options_outstanding":         "1000000",
		"option_pool_authorized":      "500000",
		"warrants":                    "250000",
		"safe_note_conversion_shares": "250000",
		"pre_money_valuation":         "20000000",
		"investment_amount":           "5000000",
	})
	if got.FullyDiluted != 10000000 {
		t.Fatalf("fully diluted = %d", got.FullyDiluted)
	}
	if got.PricePerShare != 2 {
		t.Fatalf("price per share = %v", got.PricePerShare)
	}
	if got.NewShares != 2500000 {
		t.Fatalf("new shares = %d", got.NewShares)
	}
	if got.PostMoney != 25000000 {
		t.Fatalf("post money = %d", got.PostMoney)
	}
	if got.InvestorOwnership != 20 {
		t.Fatalf("ownership = %v", got.InvestorOwnership)
	}
}

func TestCapTableZeroShares(t *testing.T) {
	got := CapTable(map[string]any{
		"pre_money_valuation": "1000000",
		"investment_amount":   "0",
	})
	if got.PricePerShare != 0 || got.NewShares != 0 || got.InvestorOwnership != 0 {
		t.Fatalf("zero inputs should stay zero: %+v", got)
	}
}

func TestDCFDegenerateRates(t *testing.T) {
	fcf := []float64{100, 110, 121}
	if got := DCF(fcf, "0", "2"); got != (DCFResult{}) {
		t.Fatalf("zero rate = %+v, want zero result", got)
	}
	if got := DCF(fcf, "3", "5"); got != (DCFResult{}) {
		t.Fatalf("growth above rate = %+v, want zero result", got)
	}
	if got := DCF(nil, "10", "2"); got != (DCFResult{}) {
		t.Fatalf("no cash flows = %+v, want zero result", got)
	}
}

func TestDCF(t *testing.T) {
	fcf := []float64{100, 100, 100}
	got := DCF(fcf, "10", "2")

	r, g := 0.10, 0.02
	pv := 100/1.1 + 100/(1.1*1.1) + 100/(1.1*1.1*1.1)
	terminal := 100 * (1 + g) / (r - g) / math.Pow(1.1, 3)
	if got.EnterpriseValue != int64(math.Round(pv+terminal)) {
		t.Fatalf("ev = %d, want %d", got.EnterpriseValue, int64(math.Round(pv+terminal)))
	}
	if got.TerminalValue != int64(math.Round(terminal)) {
		t.Fatalf("terminal = %d, want %d", got.TerminalValue, int64(math.Round(terminal)))
	}
}

func TestBlended(t *testing.T) {
	weights := map[string]any{"dcf": "50", "comps": "30", "precedent": "20"}
	got := Blended("1000000", "2000000", "1500000", weights)
	if got != 1400000 {
		t.Fatalf("blended = %d, want 1400000", got)
	}
}
