package deal

// RiskCategory is one of the six fixed risk groupings.
type RiskCategory string

const (
	RiskMarket        RiskCategory = "market"
	RiskTeam          RiskCategory = "team"
	RiskTechnical     RiskCategory = "technical"
	RiskRegulatory    RiskCategory = "regulatory"
	RiskConcentration RiskCategory = "concentration"
	RiskExecution     RiskCategory = "execution"
)

// RiskCategories lists the categories in report order.
var RiskCategories = []RiskCategory{RiskMarket, RiskTeam, RiskTechnical, RiskRegulatory, RiskConcentration, RiskExecution}

// Severity labels a score band.
type Severity string

const (
	SeverityLow      Severity = "Low"
	SeverityMedium   Severity = "Medium"
	SeverityHigh     Severity = "High"
	SeverityCritical Severity = "Critical"
)

// Severity thresholds on the 0..3 scale.
const (
	CriticalThreshold = 2.5
	HighThreshold     = 1.5
	MediumThreshold   = 0.5
)

// SeverityFor maps a score on the 0..3 scale to its label.
func SeverityFor(score float64) Severity {
	switch {
	case score >= CriticalThreshold:
		return SeverityCritical
	case score >= HighThreshold:
		return SeverityHigh
	case score >= MediumThreshold:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// AtLeastHigh reports whether s is High or Critical.
func (s Severity) AtLeastHigh() bool {
	return s == SeverityHigh || s == SeverityCritical
}

// RiskEntry is one scored sub-risk.
type RiskEntry struct {
	Category      RiskCategory `json:"category"`
	Key           string       `json:"key"`
	Description   string       `json:"description"`
	Weight        float64      `json:"weight"`
	Score         int          `json:"score"`
	WeightedScore float64      `json:"weighted_score"`
	Severity      Severity     `json:"severity"`
	Likelihood    string       `json:"likelihood"`
	Mitigation    string       `json:"mitigation"`
	OwnerRole     string       `json:"owner_role"`
}

// CategoryResult aggregates a category's entries.
type CategoryResult struct {
	Category     RiskCategory `json:"category"`
	AverageScore float64      `json:"average_score"`
	Severity     Severity     `json:"severity"`
	Entries      []RiskEntry  `json:"entries"`
	Insight      string       `json:"insight"`
}

// RiskReport is the output of a risk assessment.
type RiskReport struct {
	Categories          []CategoryResult `json:"categories"`
	OverallScore        float64          `json:"overall_score"`
	OverallSeverity     Severity         `json:"overall_severity"`
	SeverityCounts      map[Severity]int `json:"severity_counts"`
	TopRisks            []RiskEntry      `json:"top_risks"`
	Recommendations     []string         `json:"recommendations"`
	HighestRiskCategory RiskCategory     `json:"highest_risk_category"`
	TotalRisks          int              `json:"total_risks"`
}

// Entries flattens every category's entries in report order.
func (r RiskReport) Entries() []RiskEntry {
	out := make([]RiskEntry, 0, r.TotalRisks)
	for _, c := range r.Categories {
		out = append(out, c.Entries...)
	}
	return out
}

// EntriesWithSeverity returns entries carrying exactly the given label.
func (r RiskReport) EntriesWithSeverity(s Severity) []RiskEntry {
	var out []RiskEntry
	for _, c := range r.Categories {
		for _, e := range c.Entries {
			if e.Severity == s {
				out = append(out, e)
			}
		}
	}
	return out
}
