package valuation

import "deal-eval/backend/internal/deal"

const (
	berkusDefaultBase      = 500_000.0
	berkusDefaultIncrement = 500_000.0
	berkusLowFactor        = 0.7
	berkusHighFactor       = 1.5
)

// BerkusInputs flags the five qualitative milestones. Zero base or increment
// means the $500k default.
type BerkusInputs struct {
	WorkingPrototype       bool    `json:"working_prototype"`
	QualityTeam            bool    `json:"quality_team"`
	QualityBoard           bool    `json:"quality_board"`
	StrategicRelationships bool    `json:"strategic_relationships"`
	Sales                  bool    `json:"sales"`
	BaseValue              float64 `json:"base_value,omitempty" validate:"gte=0"`
	Increment              float64 `json:"increment,omitempty" validate:"gte=0"`
}

func (in BerkusInputs) criteria() map[string]bool {
	return map[string]bool{
		"working_prototype":       in.WorkingPrototype,
		"quality_team":            in.QualityTeam,
		"quality_board":           in.QualityBoard,
		"strategic_relationships": in.StrategicRelationships,
		"sales":                   in.Sales,
	}
}

// Berkus adds a fixed increment per milestone met on top of a base value.
func (e *Engine) Berkus(in BerkusInputs) (deal.ValuationResult, error) {
	if err := deal.ValidateStruct(in); err != nil {
		return deal.ValuationResult{}, err
	}
	if err := deal.RequireFinite("berkus", in.BaseValue, in.Increment); err != nil {
		return deal.ValuationResult{}, err
	}
	base := in.BaseValue
	if base == 0 {
		base = berkusDefaultBase
	}
	increment := in.Increment
	if increment == 0 {
		increment = berkusDefaultIncrement
	}

	criteria := in.criteria()
	assumptions := map[string]float64{"base_value": base, "increment": increment}
	met := 0
	for _, name := range sortedKeys(criteria) {
		value := 0.0
		if criteria[name] {
			met++
			value = increment
		}
		assumptions[name] = value
	}
	assumptions["criteria_met"] = float64(met)

	total := base + float64(met)*increment
	confidence := deal.ConfidenceMedium
	if met == len(criteria) {
		confidence = deal.ConfidenceHigh
	}

	return finalize(deal.ValuationResult{
		Method:      deal.MethodBerkus,
		Low:         total * berkusLowFactor,
		Base:        total,
		High:        total * berkusHighFactor,
		Confidence:  confidence,
		Assumptions: assumptions,
	})
}
