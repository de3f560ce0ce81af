package valuation

import (
	"fmt"

	"deal-eval/backend/internal/deal"
)

const (
	scorecardMinMultiple  = 0.5
	scorecardMaxMultiple  = 10.0
	scorecardMaxScore     = 10.0
	scorecardDefaultScore = 5.0
	scorecardLowFactor    = 0.7
	scorecardHighFactor   = 1.3
)

// ScorecardCategories are the default scorecard categories.
var ScorecardCategories = []string{"team", "market", "product", "traction", "competition", "defensibility", "gtm"}

// DefaultScorecardWeights returns the default category weights in percent.
func DefaultScorecardWeights() map[string]float64 {
	return map[string]float64{
		"team":          25,
		"market":        25,
		"product":       15,
		"traction":      15,
		"competition":   10,
		"defensibility": 5,
		"gtm":           5,
	}
}

// ScorecardInputs scores categories 0..10 against ARR.
type ScorecardInputs struct {
	ARR     float64            `json:"arr" validate:"gte=0"`
	Scores  map[string]float64 `json:"scores"`
	Weights map[string]float64 `json:"weights,omitempty"`
}

// Scorecard maps the weighted category score linearly onto a 0.5x..10x ARR multiple.
func (e *Engine) Scorecard(in ScorecardInputs) (deal.ValuationResult, error) {
	if err := deal.ValidateStruct(in); err != nil {
		return deal.ValuationResult{}, err
	}
	if err := deal.RequireFinite("arr", in.ARR); err != nil {
		return deal.ValuationResult{}, err
	}
	weights := in.Weights
	if len(weights) == 0 {
		weights = DefaultScorecardWeights()
	}
	for _, k := range sortedKeys(in.Scores) {
		s := in.Scores[k]
		if _, ok := weights[k]; !ok {
			return deal.ValuationResult{}, deal.NewInvalidInput("scores."+k, s, "unknown scorecard category")
		}
		if err := deal.RequireFinite("scores."+k, s); err != nil {
			return deal.ValuationResult{}, err
		}
		if s < 0 || s > scorecardMaxScore {
			return deal.ValuationResult{}, deal.NewInvalidInput("scores."+k, s, "must be between 0 and 10")
		}
	}

	assumptions := map[string]float64{"arr": in.ARR}
	totalWeight, weighted := 0.0, 0.0
	defaulted := 0
	for _, k := range sortedKeys(weights) {
		w := weights[k]
		if err := deal.RequireFinite("weights."+k, w); err != nil {
			return deal.ValuationResult{}, err
		}
		if w < 0 {
			return deal.ValuationResult{}, deal.NewInvalidInput("weights."+k, w, "must be >= 0")
		}
		s, ok := in.Scores[k]
		if !ok {
			s = scorecardDefaultScore
			defaulted++
		}
		totalWeight += w
		weighted += s * w
		assumptions["weight_"+k] = w
		assumptions["score_"+k] = s
	}
	if totalWeight == 0 {
		return deal.ValuationResult{}, deal.NewInvalidInput("weights", totalWeight, "total weight must be positive")
	}

	score := weighted / totalWeight
	multiple := scorecardMinMultiple + score/scorecardMaxScore*(scorecardMaxMultiple-scorecardMinMultiple)
	base := in.ARR * multiple
	assumptions["weighted_score"] = score
	assumptions["base_multiple"] = multiple

	confidence := deal.ConfidenceMedium
	var notes []string
	if defaulted > 0 {
		confidence = deal.ConfidenceLow
		notes = append(notes, fmt.Sprintf("%d categories unscored; defaulted to %.0f", defaulted, scorecardDefaultScore))
	}
	if in.ARR == 0 {
		confidence = deal.ConfidenceLow
		notes = append(notes, "zero ARR produces a zero valuation")
	}

	return finalize(deal.ValuationResult{
		Method:      deal.MethodScorecard,
		Low:         base * scorecardLowFactor,
		Base:        base,
		High:        base * scorecardHighFactor,
		Confidence:  confidence,
		Assumptions: assumptions,
		DataQuality: notes,
	})
}
