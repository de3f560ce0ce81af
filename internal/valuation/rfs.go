package valuation

import (
	"math"

	"deal-eval/backend/internal/deal"
)

const (
	rfsDefaultBase          = 1_000_000.0
	rfsMinScore             = -2
	rfsMaxScore             = 2
	rfsLowFactor            = 0.8
	rfsHighFactor           = 1.3
	rfsLowConfidenceDefault = 0.5
)

// RFSFactors lists the twelve risk factors in summation order.
var RFSFactors = []string{
	"management",
	"stage_of_business",
	"legislation_political_risk",
	"manufacturing_risk",
	"sales_marketing_risk",
	"funding_capital_raising_risk",
	"competition_risk",
	"technology_risk",
	"litigation_risk",
	"international_risk",
	"reputation_risk",
	"exit_value_risk",
}

// DefaultRFSWeights returns the dollar value of one point per factor.
func DefaultRFSWeights() map[string]float64 {
	return map[string]float64{
		"management":                   300_000,
		"stage_of_business":            250_000,
		"legislation_political_risk":   200_000,
		"manufacturing_risk":           200_000,
		"sales_marketing_risk":         200_000,
		"funding_capital_raising_risk": 250_000,
		"competition_risk":             200_000,
		"technology_risk":              300_000,
		"litigation_risk":              100_000,
		"international_risk":           150_000,
		"reputation_risk":              100_000,
		"exit_value_risk":              100_000,
	}
}

// RFSInputs score each factor from -2 (very high risk) to +2 (very low risk).
// Missing factors score 0. A zero base value means the $1M default.
type RFSInputs struct {
	BaseValue float64        `json:"base_value" validate:"gte=0"`
	Factors   map[string]int `json:"factors"`
}

// RFS adjusts a base value by the weighted sum of factor scores, floored at zero.
func (e *Engine) RFS(in RFSInputs) (deal.ValuationResult, error) {
	if err := deal.ValidateStruct(in); err != nil {
		return deal.ValuationResult{}, err
	}
	if err := deal.RequireFinite("base_value", in.BaseValue); err != nil {
		return deal.ValuationResult{}, err
	}
	weights := e.RFSWeights
	if len(weights) == 0 {
		weights = DefaultRFSWeights()
	}
	for _, name := range sortedKeys(in.Factors) {
		if _, ok := weights[name]; !ok {
			return deal.ValuationResult{}, deal.NewInvalidInput("factors."+name, nil, "unknown risk factor")
		}
		if score := in.Factors[name]; score < rfsMinScore || score > rfsMaxScore {
			return deal.ValuationResult{}, deal.NewInvalidInput("factors."+name, score, "must be between -2 and 2")
		}
	}

	base := in.BaseValue
	if base == 0 {
		base = rfsDefaultBase
	}
	assumptions := map[string]float64{"base_value": base}
	adjustment := 0.0
	for _, name := range RFSFactors {
		w, ok := weights[name]
		if !ok {
			continue
		}
		score := in.Factors[name]
		adjustment += float64(score) * w
		assumptions[name] = float64(score)
	}
	assumptions["total_adjustment"] = adjustment

	value := base + adjustment
	var notes []string
	if value < 0 {
		notes = append(notes, "risk adjustments exceed base value; floored at zero")
		value = 0
	}

	threshold := e.RFSLowConfidenceFraction
	if threshold <= 0 {
		threshold = rfsLowConfidenceDefault
	}
	confidence := deal.ConfidenceMedium
	if math.Abs(adjustment) > threshold*base {
		confidence = deal.ConfidenceLow
	}

	return finalize(deal.ValuationResult{
		Method:      deal.MethodRFS,
		Low:         value * rfsLowFactor,
		Base:        value,
		High:        value * rfsHighFactor,
		Confidence:  confidence,
		Assumptions: assumptions,
		DataQuality: notes,
	})
}
