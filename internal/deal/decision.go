package deal

// Recommendation is the final investment call.
type Recommendation string

const (
	RecommendYes         Recommendation = "Yes"
	RecommendNo          Recommendation = "No"
	RecommendConditional Recommendation = "Conditional"
)

// DecisionState is a gate state. Only Evaluating is non-terminal.
type DecisionState string

const (
	StateEvaluating            DecisionState = "Evaluating"
	StateBlocked               DecisionState = "Blocked"
	StateApproved              DecisionState = "Approved"
	StateConditionallyApproved DecisionState = "ConditionallyApproved"
)

// Terminal reports whether no further transition is allowed.
func (s DecisionState) Terminal() bool {
	return s == StateBlocked || s == StateApproved || s == StateConditionallyApproved
}

// Instrument is the investment vehicle.
type Instrument string

const (
	InstrumentSAFE   Instrument = "SAFE"
	InstrumentEquity Instrument = "Equity"
)

// ParseInstrument normalizes user supplied instrument names.
func ParseInstrument(value string) (Instrument, bool) {
	switch value {
	case "SAFE", "safe", "Safe":
		return InstrumentSAFE, true
	case "Equity", "equity", "EQUITY", "priced":
		return InstrumentEquity, true
	}
	return "", false
}

// GateOutcome records whether every gating rule held.
type GateOutcome struct {
	Passed          bool     `json:"passed"`
	BlockingReasons []string `json:"blocking_reasons"`
}

// InvestmentParams are the computed terms of an approved deal.
type InvestmentParams struct {
	Instrument         Instrument `json:"instrument"`
	CheckSize          float64    `json:"check_size"`
	PreMoneyValuation  float64    `json:"pre_money_valuation"`
	PostMoneyValuation float64    `json:"post_money_valuation"`
	Ownership          float64    `json:"ownership"`
}

// DecisionSummary condenses the inputs behind a decision for reporting.
type DecisionSummary struct {
	ValuationMin       float64  `json:"valuation_min"`
	ValuationMax       float64  `json:"valuation_max"`
	ValuationMean      float64  `json:"valuation_mean"`
	MethodsUsed        []Method `json:"methods_used"`
	OverallRiskScore   float64  `json:"overall_risk_score"`
	OverallRiskLevel   Severity `json:"overall_risk_level,omitempty"`
	CriticalRiskCount  int      `json:"critical_risk_count"`
	KeyConditions      []string `json:"key_conditions"`
	ConfidenceFactors  []string `json:"confidence_factors"`
	RationaleExcerpt   string   `json:"rationale_excerpt,omitempty"`
	PostInvestmentRows int      `json:"post_investment_rows"`
}

// Decision is the terminal record emitted by the gate.
type Decision struct {
	Recommendation Recommendation    `json:"recommendation"`
	State          DecisionState     `json:"state"`
	Gate           GateOutcome       `json:"gate"`
	Investment     *InvestmentParams `json:"investment,omitempty"`
	Conditions     []string          `json:"conditions"`
	Confidence     float64           `json:"confidence"`
	Summary        DecisionSummary   `json:"summary"`
}

// StageFailure records an upstream stage that returned an error.
type StageFailure struct {
	Stage string `json:"stage"`
	Error string `json:"error"`
}
