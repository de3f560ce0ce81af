package decision

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deal-eval/backend/internal/captable"
	"deal-eval/backend/internal/deal"
	"deal-eval/backend/internal/risk"
)

func valuations() []deal.ValuationResult {
	return []deal.ValuationResult{
		{Method: deal.MethodScorecard, Low: 5_600_000, Base: 8_000_000, High: 10_400_000, Confidence: deal.ConfidenceMedium},
		{Method: deal.MethodBerkus, Low: 8_400_000, Base: 12_000_000, High: 18_000_000, Confidence: deal.ConfidenceHigh},
	}
}

func riskReport(t *testing.T, scores map[string]int) *deal.RiskReport {
	t.Helper()
	report, err := risk.Assess(risk.Input{Scores: scores})
	if err != nil {
		t.Fatalf("assess: %v", err)
	}
	return &report
}

func lowRiskScores() map[string]int {
	scores := map[string]int{}
	for _, category := range deal.RiskCategories {
		for _, sr := range risk.Catalogue(category) {
			scores[sr.Key] = 0
		}
	}
	return scores
}

func postTable(t *testing.T) *deal.CapTableResult {
	t.Helper()
	res, err := captable.ApplyInvestment(captable.DefaultTable(), deal.InvestmentScenario{
		PreMoneyValuation: 8_000_000,
		InvestmentAmount:  2_000_000,
		TargetOwnership:   0.2,
	})
	if err != nil {
		t.Fatalf("apply investment: %v", err)
	}
	return &res
}

func TestEvaluateBlocksOnCriticalRisk(t *testing.T) {
	scores := lowRiskScores()
	scores["security_risk"] = 3
	d, err := NewGate().Evaluate(Input{
		Valuations:      valuations(),
		Risk:            riskReport(t, scores),
		CapTable:        postTable(t),
		Instrument:      deal.InstrumentEquity,
		TargetOwnership: 0.2,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.State != deal.StateBlocked || d.Recommendation != deal.RecommendNo {
		t.Fatalf("expected Blocked/No got %s/%s", d.State, d.Recommendation)
	}
	if d.Investment != nil {
		t.Fatalf("expected no investment params got %+v", d.Investment)
	}
	if len(d.Gate.BlockingReasons) != 1 || !strings.Contains(d.Gate.BlockingReasons[0], "critical") {
		t.Fatalf("expected a critical risk reason got %v", d.Gate.BlockingReasons)
	}
	if d.Summary.CriticalRiskCount != 1 {
		t.Fatalf("expected critical count 1 got %d", d.Summary.CriticalRiskCount)
	}
}

func TestEvaluateCollectsEveryViolation(t *testing.T) {
	d, err := NewGate().Evaluate(Input{
		Instrument: deal.InstrumentEquity,
		StageFailures: []deal.StageFailure{
			{Stage: "valuation", Error: "invalid input years=0: must be > 0"},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{
		"valuation stage failed: invalid input years=0: must be > 0",
		"No valuations available",
		"Risk assessment not completed",
		"Cap table simulation required for equity investments",
	}
	if len(d.Gate.BlockingReasons) != len(want) {
		t.Fatalf("expected %d reasons got %v", len(want), d.Gate.BlockingReasons)
	}
	for i, reason := range want {
		if d.Gate.BlockingReasons[i] != reason {
			t.Fatalf("reason %d: expected %q got %q", i, reason, d.Gate.BlockingReasons[i])
		}
	}
	if d.Confidence != 0 {
		t.Fatalf("expected zero confidence got %f", d.Confidence)
	}
}

func TestEvaluateBlocksOnZeroValuation(t *testing.T) {
	d, err := NewGate().Evaluate(Input{
		Valuations: []deal.ValuationResult{{Method: deal.MethodRFS}},
		Risk:       riskReport(t, lowRiskScores()),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Gate.Passed || !strings.HasPrefix(d.Gate.BlockingReasons[0], "Valuations are invalid or zero") {
		t.Fatalf("expected zero valuation block got %v", d.Gate.BlockingReasons)
	}
}

func TestEvaluateApprovesSAFE(t *testing.T) {
	d, err := NewGate().Evaluate(Input{
		Valuations: valuations(),
		Risk:       riskReport(t, lowRiskScores()),
		CheckSize:  1_000_000,
		Rationale:  strings.Repeat("strong team ", 30),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.State != deal.StateApproved || d.Recommendation != deal.RecommendYes {
		t.Fatalf("expected Approved/Yes got %s/%s", d.State, d.Recommendation)
	}
	inv := d.Investment
	if inv.Instrument != deal.InstrumentSAFE || inv.PreMoneyValuation != 10_000_000 || inv.PostMoneyValuation != 11_000_000 {
		t.Fatalf("unexpected terms %+v", inv)
	}
	if math.Abs(inv.Ownership-1.0/11) > 1e-12 {
		t.Fatalf("expected ownership 1/11 got %f", inv.Ownership)
	}
	if d.Confidence != 100 {
		t.Fatalf("expected confidence 100 got %f", d.Confidence)
	}
	if got := len([]rune(d.Summary.RationaleExcerpt)); got != rationaleLimit+3 {
		t.Fatalf("expected truncated rationale got %d runes", got)
	}
	if d.Summary.ValuationMin != 5_600_000 || d.Summary.ValuationMax != 18_000_000 {
		t.Fatalf("unexpected valuation range %f..%f", d.Summary.ValuationMin, d.Summary.ValuationMax)
	}
}

func TestEvaluateEquityIsConditionalWithHighRisks(t *testing.T) {
	d, err := NewGate().Evaluate(Input{
		Valuations:      valuations(),
		Risk:            riskReport(t, nil),
		CapTable:        postTable(t),
		Instrument:      "equity",
		PreMoney:        8_000_000,
		TargetOwnership: 0.2,
		Conditions:      []string{"Board seat", "Board seat", "  "},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.State != deal.StateConditionallyApproved || d.Recommendation != deal.RecommendConditional {
		t.Fatalf("expected ConditionallyApproved got %s/%s", d.State, d.Recommendation)
	}
	if math.Abs(d.Investment.CheckSize-2_000_000) > 1e-6 || math.Abs(d.Investment.PostMoneyValuation-10_000_000) > 1e-6 {
		t.Fatalf("unexpected terms %+v", d.Investment)
	}
	if math.Abs(d.Investment.Ownership-0.2) > 1e-12 {
		t.Fatalf("expected ownership 0.2 got %f", d.Investment.Ownership)
	}
	if len(d.Conditions) != 4 || d.Conditions[0] != "Board seat" {
		t.Fatalf("expected panel condition plus three generated got %v", d.Conditions)
	}
	if !strings.Contains(d.Conditions[1], "founder_experience_risk") {
		t.Fatalf("expected top risk mitigation got %s", d.Conditions[1])
	}
	if len(d.Summary.KeyConditions) != 3 {
		t.Fatalf("expected three key conditions got %d", len(d.Summary.KeyConditions))
	}
	if math.Abs(d.Confidence-200.0/3) > 1e-9 {
		t.Fatalf("expected two of three factors got %f", d.Confidence)
	}
}

func TestEvaluateRejectsInvalidTerms(t *testing.T) {
	tests := []struct {
		name  string
		in    Input
		field string
	}{
		{"negative check", Input{CheckSize: -1}, "check_size"},
		{"ownership of one", Input{TargetOwnership: 1}, "target_ownership"},
		{"unknown instrument", Input{Instrument: "bond"}, "instrument"},
		{"nan pre-money", Input{PreMoney: math.NaN()}, "pre_money"},
		{"infinite check", Input{CheckSize: math.Inf(1)}, "decision_terms"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewGate().Evaluate(tc.in)
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

func TestMachineRejectsSecondTransition(t *testing.T) {
	m := newMachine()
	if err := m.transition(deal.StateEvaluating); err == nil {
		t.Fatalf("expected error moving to a non-terminal state")
	}
	if err := m.transition(deal.StateApproved); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var inconsistency *deal.ComputationInconsistencyError
	if err := m.transition(deal.StateBlocked); !errors.As(err, &inconsistency) {
		t.Fatalf("expected inconsistency error got %v", err)
	}
}

func TestEvaluateIsDeterministic(t *testing.T) {
	in := Input{
		Valuations:      valuations(),
		Risk:            riskReport(t, nil),
		CapTable:        postTable(t),
		Instrument:      deal.InstrumentEquity,
		PreMoney:        8_000_000,
		TargetOwnership: 0.2,
		Conditions:      []string{"Pro-rata rights", "Board seat", "Pro-rata rights"},
		Rationale:       "Repeat founders in a growing market",
	}
	first, err := NewGate().Evaluate(in)
	require.NoError(t, err)
	second, err := NewGate().Evaluate(in)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, []string{"Pro-rata rights", "Board seat"}, first.Conditions[:2])

	blocked := in
	blocked.Valuations = nil
	blocked.StageFailures = []deal.StageFailure{{Stage: "valuation", Error: "no methods"}}
	a, err := NewGate().Evaluate(blocked)
	require.NoError(t, err)
	b, err := NewGate().Evaluate(blocked)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, deal.StateBlocked, a.State)
}
