package captable

import (
	"strings"

	"deal-eval/backend/internal/deal"
)

// Metrics derives the ownership distribution and dilution analysis of a round.
func Metrics(pre, post deal.CapTable) deal.CapTableMetrics {
	var dist deal.OwnershipDistribution
	for _, e := range post {
		switch {
		case e.Class == deal.ClassOptions:
			dist.OptionPool += e.Ownership
		case e.Class == deal.ClassPreferred:
			dist.Investors += e.Ownership
		case isFounder(e.Holder):
			dist.Founders += e.Ownership
		default:
			dist.Other += e.Ownership
		}
	}

	dilution := make([]deal.HolderDilution, 0, len(pre))
	for i, before := range pre {
		if i >= len(post) {
			break
		}
		after := post[i].Ownership
		row := deal.HolderDilution{
			Holder:          before.Holder,
			OwnershipBefore: before.Ownership,
			OwnershipAfter:  after,
			Dilution:        before.Ownership - after,
		}
		if before.Ownership > 0 {
			row.RelativePercent = (before.Ownership - after) / before.Ownership * 100
		}
		dilution = append(dilution, row)
	}

	return deal.CapTableMetrics{
		Distribution: dist,
		Dilution:     dilution,
		HolderCount:  len(post),
	}
}

func isFounder(holder string) bool {
	name := strings.ToLower(holder)
	return strings.Contains(name, "founder") || strings.Contains(name, "ceo") || strings.Contains(name, "cto")
}

// ScenarioImpact summarizes one scenario of a comparison.
type ScenarioImpact struct {
	Name            string                     `json:"name"`
	Scenario        deal.InvestmentScenario    `json:"scenario"`
	Summary         deal.InvestmentSummary     `json:"summary"`
	Distribution    deal.OwnershipDistribution `json:"distribution"`
	FounderDilution float64                    `json:"founder_dilution"`
	Error           string                     `json:"error,omitempty"`
}

// NamedScenario labels a scenario for comparison output.
type NamedScenario struct {
	Name     string                  `json:"name"`
	Scenario deal.InvestmentScenario `json:"scenario"`
}

// CompareScenarios applies each scenario independently to the same table.
// Scenario-level input errors are reported per row; an invalid table fails the call.
func CompareScenarios(pre deal.CapTable, scenarios []NamedScenario) ([]ScenarioImpact, error) {
	if err := pre.Validate(); err != nil {
		return nil, err
	}
	founderBefore := 0.0
	for _, e := range pre {
		if e.Class != deal.ClassOptions && e.Class != deal.ClassPreferred && isFounder(e.Holder) {
			founderBefore += e.Ownership
		}
	}

	out := make([]ScenarioImpact, 0, len(scenarios))
	for _, named := range scenarios {
		impact := ScenarioImpact{Name: named.Name, Scenario: named.Scenario}
		res, err := ApplyInvestment(pre, named.Scenario)
		if err != nil {
			if !deal.IsCallerError(err) {
				return nil, err
			}
			impact.Error = err.Error()
			out = append(out, impact)
			continue
		}
		impact.Summary = res.Summary
		impact.Distribution = res.Metrics.Distribution
		impact.FounderDilution = founderBefore - res.Metrics.Distribution.Founders
		out = append(out, impact)
	}
	return out, nil
}
