package valuation

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"deal-eval/backend/internal/deal"
)

// Comparable is a peer company with an observable EV/Revenue multiple.
type Comparable struct {
	Name            string  `json:"name"`
	EnterpriseValue float64 `json:"enterprise_value" validate:"gte=0"`
	Revenue         float64 `json:"revenue" validate:"gte=0"`
	SimilarSize     bool    `json:"similar_size"`
}

// Percentiles are pre-computed EV/Revenue multiples for a peer group.
type Percentiles struct {
	P10    float64 `json:"p10" validate:"gte=0"`
	P50    float64 `json:"p50" validate:"gte=0"`
	P90    float64 `json:"p90" validate:"gte=0"`
	Sample int     `json:"sample_size" validate:"gte=0"`
}

// CompsInputs value revenue against either a raw peer list or percentile data.
// Sector, Stage and Geo let a collaborator resolve peers when neither is given.
type CompsInputs struct {
	Revenue     float64      `json:"revenue" validate:"gte=0"`
	Comparables []Comparable `json:"comparables,omitempty"`
	Percentiles *Percentiles `json:"percentiles,omitempty"`
	Sector      string       `json:"sector,omitempty"`
	Stage       string       `json:"stage,omitempty"`
	Geo         string       `json:"geo,omitempty"`
}

const (
	compsHighConfidencePeers  = 5
	compsHighConfidenceSample = 30
)

// Comps values revenue at the mean EV/Revenue multiple of similar-size peers.
func (e *Engine) Comps(in CompsInputs) (deal.ValuationResult, error) {
	if err := deal.ValidateStruct(in); err != nil {
		return deal.ValuationResult{}, err
	}
	if err := deal.RequireFinite("revenue", in.Revenue); err != nil {
		return deal.ValuationResult{}, err
	}
	if len(in.Comparables) > 0 {
		return compsFromPeers(in)
	}
	if in.Percentiles != nil {
		return compsFromPercentiles(in.Revenue, *in.Percentiles)
	}
	return deal.ValuationResult{}, deal.NewInvalidInput("comparables", nil, "comparable set is empty")
}

func compsFromPeers(in CompsInputs) (deal.ValuationResult, error) {
	var all, similar []float64
	var notes []string
	for i, c := range in.Comparables {
		field := fmt.Sprintf("comparables[%d]", i)
		if err := deal.ValidateStruct(c); err != nil {
			if inputErr, ok := err.(*deal.InvalidInputError); ok {
				inputErr.Field = field + "." + inputErr.Field
			}
			return deal.ValuationResult{}, err
		}
		if err := deal.RequireFinite(field, c.EnterpriseValue, c.Revenue); err != nil {
			return deal.ValuationResult{}, err
		}
		if c.Revenue == 0 {
			notes = append(notes, fmt.Sprintf("skipped %s: zero revenue", displayName(c, i)))
			continue
		}
		ratio := c.EnterpriseValue / c.Revenue
		all = append(all, ratio)
		if c.SimilarSize {
			similar = append(similar, ratio)
		}
	}
	if len(all) == 0 {
		return deal.ValuationResult{}, deal.NewInvalidInput("comparables", len(in.Comparables), "no comparable has positive revenue")
	}

	confidence := deal.ConfidenceMedium
	ratios := similar
	if len(similar) == 0 {
		ratios = all
		confidence = deal.ConfidenceLow
		notes = append(notes, "no similar-size comparables; using full set")
	} else if len(similar) >= compsHighConfidencePeers {
		confidence = deal.ConfidenceHigh
	}

	sorted := append([]float64(nil), ratios...)
	sort.Float64s(sorted)
	mean := 0.0
	for _, r := range ratios {
		mean += r
	}
	mean /= float64(len(ratios))
	p10 := percentile(sorted, 0.10)
	p90 := percentile(sorted, 0.90)

	return finalize(deal.ValuationResult{
		Method:     deal.MethodComps,
		Low:        in.Revenue * p10,
		Base:       in.Revenue * mean,
		High:       in.Revenue * p90,
		Confidence: confidence,
		Assumptions: map[string]float64{
			"revenue":         in.Revenue,
			"mean_multiple":   mean,
			"p10_multiple":    p10,
			"p90_multiple":    p90,
			"peers_used":      float64(len(ratios)),
			"peers_available": float64(len(all)),
		},
		DataQuality: notes,
	})
}

func compsFromPercentiles(revenue float64, p Percentiles) (deal.ValuationResult, error) {
	if err := deal.ValidateStruct(p); err != nil {
		return deal.ValuationResult{}, err
	}
	if err := deal.RequireFinite("percentiles", p.P10, p.P50, p.P90); err != nil {
		return deal.ValuationResult{}, err
	}
	confidence := deal.ConfidenceMedium
	if p.Sample >= compsHighConfidenceSample {
		confidence = deal.ConfidenceHigh
	}
	return finalize(deal.ValuationResult{
		Method:     deal.MethodComps,
		Low:        revenue * p.P10,
		Base:       revenue * p.P50,
		High:       revenue * p.P90,
		Confidence: confidence,
		Assumptions: map[string]float64{
			"revenue":      revenue,
			"p10_multiple": p.P10,
			"p50_multiple": p.P50,
			"p90_multiple": p.P90,
			"sample_size":  float64(p.Sample),
		},
	})
}

// percentile interpolates linearly over an ascending slice.
func percentile(sorted []float64, q float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

func displayName(c Comparable, idx int) string {
	if name := strings.TrimSpace(c.Name); name != "" {
		return name
	}
	return fmt.Sprintf("comparable %d", idx)
}

type libraryKey struct {
	sector, stage, geo string
}

var defaultLibrary = map[libraryKey]Percentiles{
	{"saas", "seed", "us"}:       {P10: 5, P50: 15, P90: 30, Sample: 50},
	{"fintech", "seed", "us"}:    {P10: 8, P50: 20, P90: 40, Sample: 30},
	{"healthtech", "seed", "us"}: {P10: 6, P50: 18, P90: 35, Sample: 25},
}

var fallbackPercentiles = Percentiles{P10: 5, P50: 15, P90: 30, Sample: 10}

// DefaultPercentiles returns the built-in multiples for a peer group. The
// second result is false when the generic fallback was used.
func DefaultPercentiles(sector, stage, geo string) (Percentiles, bool) {
	key := libraryKey{
		sector: strings.ToLower(strings.TrimSpace(sector)),
		stage:  strings.ToLower(strings.TrimSpace(stage)),
		geo:    strings.ToLower(strings.TrimSpace(geo)),
	}
	if p, ok := defaultLibrary[key]; ok {
		return p, true
	}
	return fallbackPercentiles, false
}
