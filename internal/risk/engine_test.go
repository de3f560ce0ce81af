package risk

import (
	"errors"
	"reflect"
	"testing"

	"deal-eval/backend/internal/deal"
)

func zeroScores() map[string]int {
	scores := make(map[string]int)
	for _, category := range deal.RiskCategories {
		for _, sr := range Catalogue(category) {
			scores[sr.Key] = 0
		}
	}
	return scores
}

func TestCatalogueWeightsSumToOne(t *testing.T) {
	for _, category := range deal.RiskCategories {
		subs := Catalogue(category)
		if len(subs) < 3 || len(subs) > 4 {
			t.Fatalf("%s: expected 3-4 sub-risks got %d", category, len(subs))
		}
		sum := 0.0
		for _, sr := range subs {
			sum += sr.Weight
		}
		if sum < 1-weightTolerance || sum > 1+weightTolerance {
			t.Fatalf("%s: expected weights to sum to 1 got %f", category, sum)
		}
	}
}

func TestAssessDefaultsToMedium(t *testing.T) {
	report, err := Assess(Input{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.TotalRisks != 20 {
		t.Fatalf("expected 20 risks got %d", report.TotalRisks)
	}
	if report.SeverityCounts[deal.SeverityHigh] != 20 {
		t.Fatalf("expected every default entry High got %v", report.SeverityCounts)
	}
	if report.OverallSeverity != deal.SeverityHigh {
		t.Fatalf("expected High overall got %s", report.OverallSeverity)
	}
	if len(report.TopRisks) != 5 {
		t.Fatalf("expected 5 top risks got %d", len(report.TopRisks))
	}
	wantTop := []string{"founder_experience_risk", "technology_risk", "compliance_risk", "customer_concentration_risk", "market_size_risk"}
	for i, key := range wantTop {
		if report.TopRisks[i].Key != key {
			t.Fatalf("top risk %d: expected %s got %s", i, key, report.TopRisks[i].Key)
		}
	}
	last := report.Recommendations[len(report.Recommendations)-1]
	if len(report.Recommendations) != 7 || last != delayRecommendation {
		t.Fatalf("expected six category recommendations plus delay got %v", report.Recommendations)
	}
	for _, e := range report.Entries() {
		if e.OwnerRole != "analyst" || e.Likelihood != "medium" {
			t.Fatalf("unexpected defaults on %s: %+v", e.Key, e)
		}
	}
}

func TestAssessLowRiskProfile(t *testing.T) {
	report, err := Assess(Input{Scores: zeroScores()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.OverallScore != 0 || report.OverallSeverity != deal.SeverityLow {
		t.Fatalf("expected zero Low got %f %s", report.OverallScore, report.OverallSeverity)
	}
	if report.HighestRiskCategory != "" {
		t.Fatalf("expected no highest category got %s", report.HighestRiskCategory)
	}
	if len(report.Recommendations) != 1 || report.Recommendations[0] != manageableRecommendation {
		t.Fatalf("unexpected recommendations %v", report.Recommendations)
	}
	if len(report.TopRisks) != 0 {
		t.Fatalf("expected no top risks got %d", len(report.TopRisks))
	}
}

func TestAssessSingleCriticalEntry(t *testing.T) {
	scores := zeroScores()
	scores["security_risk"] = 3
	report, err := Assess(Input{
		Scores:      scores,
		Mitigations: map[string]string{"security_risk": "Commission a penetration test"},
		Owners:      map[string]string{"security_risk": "cto"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	critical := report.EntriesWithSeverity(deal.SeverityCritical)
	if len(critical) != 1 || critical[0].Key != "security_risk" {
		t.Fatalf("expected security_risk critical got %+v", critical)
	}
	if critical[0].Mitigation != "Commission a penetration test" || critical[0].OwnerRole != "cto" {
		t.Fatalf("mitigation or owner not carried: %+v", critical[0])
	}
	if report.HighestRiskCategory != deal.RiskTechnical {
		t.Fatalf("expected technical got %s", report.HighestRiskCategory)
	}
	tech := report.Categories[2]
	if tech.Severity != deal.SeverityMedium {
		t.Fatalf("expected technical Medium got %s (%f)", tech.Severity, tech.AverageScore)
	}
	if report.SeverityCounts[deal.SeverityCritical] != 1 || report.SeverityCounts[deal.SeverityLow] != 19 {
		t.Fatalf("unexpected counts %v", report.SeverityCounts)
	}
}

func TestAssessCustomWeights(t *testing.T) {
	scores := zeroScores()
	scores["technology_risk"] = 3
	report, err := Assess(Input{
		Scores:  scores,
		Weights: map[deal.RiskCategory]map[string]float64{deal.RiskTechnical: {"technology_risk": 1}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tech := report.Categories[2]
	if tech.AverageScore != 3 || tech.Severity != deal.SeverityCritical {
		t.Fatalf("expected critical technical category got %f %s", tech.AverageScore, tech.Severity)
	}
	if report.Recommendations[0] != Recommendation(deal.RiskTechnical) {
		t.Fatalf("unexpected recommendations %v", report.Recommendations)
	}
}

func TestAssessRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name  string
		in    Input
		field string
	}{
		{"unknown key", Input{Scores: map[string]int{"weather_risk": 1}}, "scores.weather_risk"},
		{"score above range", Input{Scores: map[string]int{"talent_risk": 4}}, "scores.talent_risk"},
		{"negative score", Input{Scores: map[string]int{"talent_risk": -1}}, "scores.talent_risk"},
		{"weights off", Input{Weights: map[deal.RiskCategory]map[string]float64{deal.RiskTeam: {"founder_experience_risk": 0.5, "team_gaps_risk": 0.4}}}, "weights.team"},
		{"foreign key", Input{Weights: map[deal.RiskCategory]map[string]float64{deal.RiskTeam: {"talent_risk": 1}}}, "weights.team.talent_risk"},
		{"unknown category", Input{Weights: map[deal.RiskCategory]map[string]float64{"weather": {"x": 1}}}, "weights.weather"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Assess(tc.in)
			var inputErr *deal.InvalidInputError
			if !errors.As(err, &inputErr) {
				t.Fatalf("expected InvalidInputError got %v", err)
			}
			if inputErr.Field != tc.field {
				t.Fatalf("expected field %s got %s", tc.field, inputErr.Field)
			}
		})
	}
}

func TestAssessIsDeterministic(t *testing.T) {
	in := Input{Scores: map[string]int{"cash_flow_risk": 3, "timing_risk": 1, "legal_risk": 2}}
	first, err := Assess(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, _ := Assess(in)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical reports")
	}
}
