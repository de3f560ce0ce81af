package valuation

import (
	"math"

	"deal-eval/backend/internal/deal"
)

// VCInputs drive the venture capital method.
type VCInputs struct {
	ExitValue          float64 `json:"exit_value" validate:"gte=0"`
	TargetOwnership    float64 `json:"target_ownership" validate:"gte=0,lte=1"`
	IRR                float64 `json:"irr" validate:"gte=0"`
	SuccessProbability float64 `json:"success_probability" validate:"gte=0,lte=1"`
	Years              float64 `json:"years" validate:"gt=0"`
}

// DefaultVCInputs fills the conventional seed-stage assumptions around an exit value.
func DefaultVCInputs(exitValue float64) VCInputs {
	return VCInputs{
		ExitValue:          exitValue,
		TargetOwnership:    0.10,
		IRR:                0.25,
		SuccessProbability: 0.10,
		Years:              7,
	}
}

const (
	vcProbabilitySpread = 0.5
	vcIRRSpread         = 0.2
)

// VC discounts the probability-weighted exit proceeds at the target IRR.
// Bands move probability by 50% and IRR by 20% in opposite directions.
func (e *Engine) VC(in VCInputs) (deal.ValuationResult, error) {
	if err := deal.ValidateStruct(in); err != nil {
		return deal.ValuationResult{}, err
	}
	if err := deal.RequireFinite("irr", in.IRR); err != nil {
		return deal.ValuationResult{}, err
	}
	if err := deal.RequireFinite("exit_value", in.ExitValue); err != nil {
		return deal.ValuationResult{}, err
	}
	if err := deal.RequireFinite("years", in.Years); err != nil {
		return deal.ValuationResult{}, err
	}

	pv := func(probability, irr float64) float64 {
		return in.ExitValue * in.TargetOwnership * probability / math.Pow(1+irr, in.Years)
	}

	highProbability := in.SuccessProbability * (1 + vcProbabilitySpread)
	var notes []string
	if highProbability > 1 {
		highProbability = 1
		notes = append(notes, "upside success probability capped at 1")
	}

	base := pv(in.SuccessProbability, in.IRR)
	low := pv(in.SuccessProbability*(1-vcProbabilitySpread), in.IRR*(1+vcIRRSpread))
	high := pv(highProbability, in.IRR*(1-vcIRRSpread))

	return finalize(deal.ValuationResult{
		Method:     deal.MethodVC,
		Low:        low,
		Base:       base,
		High:       high,
		Confidence: deal.ConfidenceMedium,
		Assumptions: map[string]float64{
			"exit_value":          in.ExitValue,
			"target_ownership":    in.TargetOwnership,
			"irr":                 in.IRR,
			"success_probability": in.SuccessProbability,
			"years":               in.Years,
			"discount_factor":     1 / math.Pow(1+in.IRR, in.Years),
		},
		DataQuality: notes,
	})
}
