package valuation

import (
	"fmt"
	"math"
	"sort"

	"deal-eval/backend/internal/deal"
)

// Engine computes valuations. The zero value uses the default RFS weights and threshold.
type Engine struct {
	// RFSWeights overrides the dollar-per-point weight of each risk factor.
	RFSWeights map[string]float64
	// RFSLowConfidenceFraction is the share of the base value the total RFS
	// adjustment may reach before confidence drops to Low.
	RFSLowConfidenceFraction float64
}

// NewEngine returns an engine with default settings.
func NewEngine() *Engine {
	return &Engine{}
}

// Inputs bundles the per-method inputs of a multi-method run. Nil methods are skipped.
type Inputs struct {
	Scorecard *ScorecardInputs `json:"scorecard,omitempty"`
	VC        *VCInputs        `json:"vc_method,omitempty"`
	Comps     *CompsInputs     `json:"comps,omitempty"`
	Berkus    *BerkusInputs    `json:"berkus,omitempty"`
	RFS       *RFSInputs       `json:"rfs,omitempty"`
}

// Requested lists the methods with inputs present, in reporting order.
func (in Inputs) Requested() []deal.Method {
	var out []deal.Method
	if in.Scorecard != nil {
		out = append(out, deal.MethodScorecard)
	}
	if in.VC != nil {
		out = append(out, deal.MethodVC)
	}
	if in.Comps != nil {
		out = append(out, deal.MethodComps)
	}
	if in.Berkus != nil {
		out = append(out, deal.MethodBerkus)
	}
	if in.RFS != nil {
		out = append(out, deal.MethodRFS)
	}
	return out
}

// Run dispatches to a single method.
func (e *Engine) Run(method deal.Method, in Inputs) (deal.ValuationResult, error) {
	switch method {
	case deal.MethodScorecard:
		if in.Scorecard == nil {
			return deal.ValuationResult{}, deal.NewInvalidInput("scorecard", nil, "inputs missing")
		}
		return e.Scorecard(*in.Scorecard)
	case deal.MethodVC:
		if in.VC == nil {
			return deal.ValuationResult{}, deal.NewInvalidInput("vc_method", nil, "inputs missing")
		}
		return e.VC(*in.VC)
	case deal.MethodComps:
		if in.Comps == nil {
			return deal.ValuationResult{}, deal.NewInvalidInput("comps", nil, "inputs missing")
		}
		return e.Comps(*in.Comps)
	case deal.MethodBerkus:
		if in.Berkus == nil {
			return deal.ValuationResult{}, deal.NewInvalidInput("berkus", nil, "inputs missing")
		}
		return e.Berkus(*in.Berkus)
	case deal.MethodRFS:
		if in.RFS == nil {
			return deal.ValuationResult{}, deal.NewInvalidInput("rfs", nil, "inputs missing")
		}
		return e.RFS(*in.RFS)
	default:
		return deal.ValuationResult{}, deal.NewInvalidInput("method", string(method), "unknown valuation method")
	}
}

// RunAll evaluates every requested method and stops at the first failure.
func (e *Engine) RunAll(in Inputs) ([]deal.ValuationResult, error) {
	methods := in.Requested()
	if len(methods) == 0 {
		return nil, deal.NewInvalidInput("valuations", nil, "no valuation method requested")
	}
	results := make([]deal.ValuationResult, 0, len(methods))
	for _, m := range methods {
		res, err := e.Run(m, in)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", m, err)
		}
		results = append(results, res)
	}
	return results, nil
}

// finalize enforces low <= base <= high. Ordering violations are clamped and
// noted; non-finite values are defects.
func finalize(r deal.ValuationResult) (deal.ValuationResult, error) {
	names := []string{"low", "base", "high"}
	for i, v := range []float64{r.Low, r.Base, r.High} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return deal.ValuationResult{}, &deal.ComputationInconsistencyError{
				Stage:  string(r.Method),
				Reason: fmt.Sprintf("%s estimate is not finite", names[i]),
			}
		}
	}
	if r.Low > r.Base {
		r.DataQuality = append(r.DataQuality, fmt.Sprintf("low estimate %.2f exceeded base %.2f; clamped to base", r.Low, r.Base))
		r.Low = r.Base
	}
	if r.High < r.Base {
		r.DataQuality = append(r.DataQuality, fmt.Sprintf("high estimate %.2f fell below base %.2f; clamped to base", r.High, r.Base))
		r.High = r.Base
	}
	if !(r.Low <= r.Base && r.Base <= r.High) {
		return deal.ValuationResult{}, &deal.ComputationInconsistencyError{
			Stage:  string(r.Method),
			Reason: "low <= base <= high does not hold",
		}
	}
	return r, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
