package termsheet

import (
	"fmt"
	"strings"

	"deal-eval/backend/internal/deal"
)

// FromDecision prefills a term sheet input from the gate's investment terms.
// A priced-round summary, when present, supplies the investor name, share
// counts and preference.
func FromDecision(company string, params deal.InvestmentParams, summary *deal.InvestmentSummary) Input {
	in := Input{
		CompanyName:        strings.TrimSpace(company),
		InvestorName:       defaultInvestor,
		Instrument:         params.Instrument,
		InvestmentAmount:   params.CheckSize,
		PreMoneyValuation:  params.PreMoneyValuation,
		PostMoneyValuation: params.PostMoneyValuation,
	}
	if in.CompanyName == "" {
		in.CompanyName = defaultCompany
	}
	if summary != nil {
		if name := strings.TrimSpace(summary.InvestorName); name != "" {
			in.InvestorName = name
		}
		in.SharesOutstanding = summary.TotalSharesBefore + summary.PoolExpansionShares
		in.NewSharesIssued = summary.NewSharesIssued
		in.LiquidationPreference = summary.LiquidationPreference
		in.AntiDilution = summary.AntiDilution
	}
	return in
}

// Comparison is one drafted scenario. Invalid scenarios carry Error instead
// of a sheet.
type Comparison struct {
	Name      string     `json:"name"`
	TermSheet *TermSheet `json:"term_sheet,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// Compare drafts each scenario independently. Unnamed scenarios are numbered.
func Compare(scenarios []Input) []Comparison {
	out := make([]Comparison, 0, len(scenarios))
	for i, in := range scenarios {
		name := strings.TrimSpace(in.Name)
		if name == "" {
			name = fmt.Sprintf("Scenario %d", i+1)
		}
		row := Comparison{Name: name}
		sheet, err := Draft(in)
		if err != nil {
			row.Error = err.Error()
		} else {
			row.TermSheet = &sheet
		}
		out = append(out, row)
	}
	return out
}
