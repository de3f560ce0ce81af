package deal

// Method identifies a valuation approach.
type Method string

const (
	MethodScorecard Method = "scorecard"
	MethodVC        Method = "vc_method"
	MethodComps     Method = "comps"
	MethodBerkus    Method = "berkus"
	MethodRFS       Method = "rfs"
)

// Methods lists every supported method in reporting order.
var Methods = []Method{MethodScorecard, MethodVC, MethodComps, MethodBerkus, MethodRFS}

// ParseMethod accepts the canonical identifiers plus a few common spellings.
func ParseMethod(value string) (Method, bool) {
	switch value {
	case "scorecard", "Scorecard":
		return MethodScorecard, true
	case "vc_method", "vc", "VCMethod":
		return MethodVC, true
	case "comps", "comparables", "Comps":
		return MethodComps, true
	case "berkus", "Berkus":
		return MethodBerkus, true
	case "rfs", "risk_factor_summation", "RFS":
		return MethodRFS, true
	}
	return "", false
}

// Confidence is a coarse reliability tier.
type Confidence string

const (
	ConfidenceLow    Confidence = "Low"
	ConfidenceMedium Confidence = "Medium"
	ConfidenceHigh   Confidence = "High"
)

// ValuationResult is the low/base/high estimate produced by one method.
type ValuationResult struct {
	Method      Method             `json:"method"`
	Low         float64            `json:"low"`
	Base        float64            `json:"base"`
	High        float64            `json:"high"`
	Confidence  Confidence         `json:"confidence"`
	Assumptions map[string]float64 `json:"assumptions"`
	DataQuality []string           `json:"data_quality,omitempty"`
}

// MeanBase averages the base estimate across results. Zero when empty.
func MeanBase(results []ValuationResult) float64 {
	if len(results) == 0 {
		return 0
	}
	sum := 0.0
	for _, r := range results {
		sum += r.Base
	}
	return sum / float64(len(results))
}
