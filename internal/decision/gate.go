package decision

import (
	"fmt"
	"strings"

	"deal-eval/backend/internal/deal"
)

const (
	// DefaultTargetOwnership is used for equity deals that supply neither a
	// target nor a check size.
	DefaultTargetOwnership = 0.10

	rationaleLimit         = 200
	keyConditionLimit      = 3
	lowRiskScore           = 1.5
	confidenceFactorCount  = 3
	defaultGeneratedLimit  = 3
	defaultCriticalCeiling = deal.CriticalThreshold
)

// Input gathers the upstream reports and caller terms.
type Input struct {
	Valuations      []deal.ValuationResult `json:"valuations"`
	Risk            *deal.RiskReport       `json:"risk,omitempty"`
	CapTable        *deal.CapTableResult   `json:"cap_table,omitempty"`
	Instrument      deal.Instrument        `json:"instrument"`
	CheckSize       float64                `json:"check_size" validate:"gte=0"`
	PreMoney        float64                `json:"pre_money" validate:"gte=0"`
	TargetOwnership float64                `json:"target_ownership" validate:"gte=0,lt=1"`
	Conditions      []string               `json:"conditions,omitempty"`
	Rationale       string                 `json:"rationale,omitempty"`
	StageFailures   []deal.StageFailure    `json:"stage_failures,omitempty"`
}

// Gate applies the gating rules and derives the investment terms.
type Gate struct {
	// RiskCeiling is the highest overall risk score that may pass.
	RiskCeiling float64
	// GeneratedConditions caps the mitigation conditions added for High risks.
	GeneratedConditions int
}

// NewGate returns a gate with the standard thresholds.
func NewGate() *Gate {
	return &Gate{RiskCeiling: defaultCriticalCeiling, GeneratedConditions: defaultGeneratedLimit}
}

// Evaluate runs every rule, collecting all violations before deciding.
// A blocked deal is a valid outcome and is returned without error.
func (g *Gate) Evaluate(in Input) (deal.Decision, error) {
	instrument, err := normalize(&in)
	if err != nil {
		return deal.Decision{}, err
	}

	m := newMachine()
	reasons := g.blockingReasons(in, instrument)
	decision := deal.Decision{
		Gate:       deal.GateOutcome{Passed: len(reasons) == 0, BlockingReasons: reasons},
		Conditions: []string{},
	}

	if !decision.Gate.Passed {
		if err := m.transition(deal.StateBlocked); err != nil {
			return deal.Decision{}, err
		}
		decision.Recommendation = deal.RecommendNo
		decision.State = m.state
		decision.Summary = summarize(in, nil, nil)
		decision.Confidence = confidence(decision.Summary)
		return decision, nil
	}

	params := investmentParams(in, instrument)
	conditions := g.conditions(in)
	next := deal.StateApproved
	decision.Recommendation = deal.RecommendYes
	if len(conditions) > 0 || hasHighRisk(in.Risk) {
		next = deal.StateConditionallyApproved
		decision.Recommendation = deal.RecommendConditional
	}
	if err := m.transition(next); err != nil {
		return deal.Decision{}, err
	}

	decision.State = m.state
	decision.Investment = &params
	decision.Conditions = conditions
	decision.Summary = summarize(in, &params, conditions)
	decision.Confidence = confidence(decision.Summary)
	return decision, nil
}

func normalize(in *Input) (deal.Instrument, error) {
	if err := deal.ValidateStruct(in); err != nil {
		return "", err
	}
	if err := deal.RequireFinite("decision_terms", in.CheckSize, in.PreMoney, in.TargetOwnership); err != nil {
		return "", err
	}
	if in.Instrument == "" {
		return deal.InstrumentSAFE, nil
	}
	instrument, ok := deal.ParseInstrument(string(in.Instrument))
	if !ok {
		return "", deal.NewInvalidInput("instrument", in.Instrument, "must be SAFE or Equity")
	}
	return instrument, nil
}

func (g *Gate) blockingReasons(in Input, instrument deal.Instrument) []string {
	reasons := []string{}
	for _, f := range in.StageFailures {
		reasons = append(reasons, fmt.Sprintf("%s stage failed: %s", f.Stage, f.Error))
	}

	if len(in.Valuations) == 0 {
		reasons = append(reasons, "No valuations available")
	} else if mean := deal.MeanBase(in.Valuations); mean <= 0 {
		reasons = append(reasons, fmt.Sprintf("Valuations are invalid or zero (mean base %.2f)", mean))
	}

	if in.Risk == nil {
		reasons = append(reasons, "Risk assessment not completed")
	} else {
		if critical := len(in.Risk.EntriesWithSeverity(deal.SeverityCritical)); critical > 0 {
			reasons = append(reasons, fmt.Sprintf("Found %d critical risks that must be addressed", critical))
		}
		if in.Risk.OverallScore > g.RiskCeiling {
			reasons = append(reasons, fmt.Sprintf("Overall risk score too high: %.2f", in.Risk.OverallScore))
		}
	}

	if instrument == deal.InstrumentEquity && (in.CapTable == nil || len(in.CapTable.PostTable) == 0) {
		reasons = append(reasons, "Cap table simulation required for equity investments")
	}
	return reasons
}

func investmentParams(in Input, instrument deal.Instrument) deal.InvestmentParams {
	pre := in.PreMoney
	if pre == 0 {
		pre = deal.MeanBase(in.Valuations)
	}
	params := deal.InvestmentParams{Instrument: instrument, PreMoneyValuation: pre}

	switch instrument {
	case deal.InstrumentEquity:
		target := in.TargetOwnership
		if target == 0 && in.CheckSize == 0 {
			target = DefaultTargetOwnership
		}
		check := in.CheckSize
		if target > 0 {
			check = pre * target / (1 - target)
		}
		params.CheckSize = check
		params.PostMoneyValuation = pre + check
		if params.PostMoneyValuation > 0 {
			params.Ownership = check / params.PostMoneyValuation
		}
	default:
		params.CheckSize = in.CheckSize
		params.PostMoneyValuation = pre + in.CheckSize
		switch {
		case pre > 0:
			params.Ownership = in.CheckSize / params.PostMoneyValuation
		default:
			params.Ownership = in.TargetOwnership
		}
	}
	return params
}

// conditions keeps the panel's conditions and appends mitigation conditions
// for the top High risks, without duplicates.
func (g *Gate) conditions(in Input) []string {
	out := []string{}
	seen := make(map[string]struct{})
	add := func(c string) {
		c = strings.TrimSpace(c)
		if c == "" {
			return
		}
		if _, ok := seen[c]; ok {
			return
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	for _, c := range in.Conditions {
		add(c)
	}
	if in.Risk == nil {
		return out
	}
	generated := 0
	for _, entry := range in.Risk.TopRisks {
		if generated >= g.GeneratedConditions {
			break
		}
		if entry.Severity != deal.SeverityHigh {
			continue
		}
		add(mitigationCondition(entry))
		generated++
	}
	return out
}

func mitigationCondition(entry deal.RiskEntry) string {
	if entry.Mitigation != "" {
		return fmt.Sprintf("Mitigate %s risk (%s): %s", entry.Category, entry.Key, entry.Mitigation)
	}
	return fmt.Sprintf("Mitigate %s risk (%s): %s", entry.Category, entry.Key, strings.ToLower(entry.Description))
}

func hasHighRisk(r *deal.RiskReport) bool {
	return r != nil && len(r.EntriesWithSeverity(deal.SeverityHigh)) > 0
}
