package risk

import "deal-eval/backend/internal/deal"

// SubRisk is one catalogue entry with its default weight inside its category.
type SubRisk struct {
	Key         string  `json:"key"`
	Description string  `json:"description"`
	Weight      float64 `json:"weight"`
}

var catalogue = map[deal.RiskCategory][]SubRisk{
	deal.RiskMarket: {
		{"market_size_risk", "Market too small or declining", 0.3},
		{"competition_risk", "Intense competition or market saturation", 0.3},
		{"timing_risk", "Market timing issues", 0.2},
		{"regulatory_risk", "Regulatory changes or compliance issues", 0.2},
	},
	deal.RiskTeam: {
		{"founder_experience_risk", "Lack of relevant founder experience", 0.4},
		{"team_gaps_risk", "Missing key team members or skills", 0.3},
		{"execution_risk", "Poor execution track record", 0.3},
	},
	deal.RiskTechnical: {
		{"technology_risk", "Technology not scalable or outdated", 0.4},
		{"development_risk", "Development delays or technical debt", 0.3},
		{"security_risk", "Security vulnerabilities or data breaches", 0.3},
	},
	deal.RiskRegulatory: {
		{"compliance_risk", "Regulatory compliance issues", 0.4},
		{"legal_risk", "Legal disputes or IP issues", 0.3},
		{"policy_risk", "Policy changes affecting business model", 0.3},
	},
	deal.RiskConcentration: {
		{"customer_concentration_risk", "Over-reliance on few customers", 0.4},
		{"revenue_concentration_risk", "Single revenue stream dependency", 0.3},
		{"geographic_concentration_risk", "Limited geographic diversification", 0.3},
	},
	deal.RiskExecution: {
		{"cash_flow_risk", "Cash flow management issues", 0.3},
		{"scaling_risk", "Scaling challenges or operational issues", 0.3},
		{"partnership_risk", "Key partnership dependencies", 0.2},
		{"talent_risk", "Hiring and retention challenges", 0.2},
	},
}

var recommendations = map[deal.RiskCategory]string{
	deal.RiskMarket:        "Conduct detailed market analysis and competitive landscape assessment",
	deal.RiskTeam:          "Strengthen team composition and consider key hires",
	deal.RiskTechnical:     "Review technical architecture and development roadmap",
	deal.RiskRegulatory:    "Engage legal counsel for compliance review",
	deal.RiskConcentration: "Develop customer diversification strategy",
	deal.RiskExecution:     "Create detailed execution plan with milestones",
}

// Catalogue returns a copy of the sub-risks of a category in catalogue order.
func Catalogue(category deal.RiskCategory) []SubRisk {
	return append([]SubRisk(nil), catalogue[category]...)
}

// CategoryOf resolves the category a sub-risk key belongs to.
func CategoryOf(key string) (deal.RiskCategory, bool) {
	for _, category := range deal.RiskCategories {
		for _, sr := range catalogue[category] {
			if sr.Key == key {
				return category, true
			}
		}
	}
	return "", false
}

// Recommendation is the category's standard remediation text.
func Recommendation(category deal.RiskCategory) string {
	return recommendations[category]
}
