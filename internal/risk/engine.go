package risk

import (
	"fmt"
	"math"
	"sort"

	"deal-eval/backend/internal/deal"
)

const (
	// DefaultScore is applied to sub-risks the caller did not score.
	DefaultScore = 2
	MaxScore     = 3

	defaultOwner    = "analyst"
	weightTolerance = 1e-6
	topRiskLimit    = 5
	delayThreshold  = 5
)

const (
	delayRecommendation      = "Consider delaying investment until key risks are mitigated"
	manageableRecommendation = "Risk profile appears manageable, proceed with standard due diligence"
)

// Input carries caller scores and overrides, keyed by sub-risk key.
// A category present in Weights replaces that category's default weights;
// sub-risks it omits get weight zero.
type Input struct {
	Scores      map[string]int                           `json:"scores"`
	Weights     map[deal.RiskCategory]map[string]float64 `json:"weights,omitempty"`
	Mitigations map[string]string                        `json:"mitigations,omitempty"`
	Owners      map[string]string                        `json:"owners,omitempty"`
}

// Assess scores every catalogue sub-risk and aggregates the report.
func Assess(in Input) (deal.RiskReport, error) {
	if err := validateInput(in); err != nil {
		return deal.RiskReport{}, err
	}

	report := deal.RiskReport{
		Categories: make([]deal.CategoryResult, 0, len(deal.RiskCategories)),
		SeverityCounts: map[deal.Severity]int{
			deal.SeverityLow:      0,
			deal.SeverityMedium:   0,
			deal.SeverityHigh:     0,
			deal.SeverityCritical: 0,
		},
	}

	var flagged []deal.RiskEntry
	highestScore := 0.0
	totalAverage := 0.0
	for _, category := range deal.RiskCategories {
		weights := categoryWeights(category, in.Weights)
		result := deal.CategoryResult{Category: category}
		highCount := 0
		for _, sr := range catalogue[category] {
			entry := scoreEntry(category, sr, weights[sr.Key], in)
			result.Entries = append(result.Entries, entry)
			result.AverageScore += entry.WeightedScore
			report.SeverityCounts[entry.Severity]++
			if entry.Severity.AtLeastHigh() {
				highCount++
				flagged = append(flagged, entry)
			}
		}
		result.Severity = deal.SeverityFor(result.AverageScore)
		result.Insight = fmt.Sprintf("%s risk is %s (%.2f); %d of %d sub-risks rated High or above",
			category, result.Severity, result.AverageScore, highCount, len(result.Entries))

		if result.AverageScore > highestScore {
			highestScore = result.AverageScore
			report.HighestRiskCategory = category
		}
		totalAverage += result.AverageScore
		report.TotalRisks += len(result.Entries)
		report.Categories = append(report.Categories, result)
	}

	report.OverallScore = totalAverage / float64(len(deal.RiskCategories))
	report.OverallSeverity = deal.SeverityFor(report.OverallScore)
	report.TopRisks = topRisks(flagged)
	report.Recommendations = buildRecommendations(report.Categories, len(flagged))
	return report, nil
}

func validateInput(in Input) error {
	for _, key := range sortedKeys(in.Scores) {
		score := in.Scores[key]
		if _, ok := CategoryOf(key); !ok {
			return deal.NewInvalidInput("scores."+key, score, "unknown risk key")
		}
		if score < 0 || score > MaxScore {
			return deal.NewInvalidInput("scores."+key, score, fmt.Sprintf("must be between 0 and %d", MaxScore))
		}
	}
	for _, category := range sortedKeys(in.Weights) {
		weights := in.Weights[category]
		if _, ok := catalogue[category]; !ok {
			return deal.NewInvalidInput("weights."+string(category), nil, "unknown risk category")
		}
		sum := 0.0
		for _, key := range sortedKeys(weights) {
			w := weights[key]
			field := fmt.Sprintf("weights.%s.%s", category, key)
			if owner, ok := CategoryOf(key); !ok || owner != category {
				return deal.NewInvalidInput(field, w, "not a sub-risk of this category")
			}
			if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 || w > 1 {
				return deal.NewInvalidInput(field, w, "must be between 0 and 1")
			}
			sum += w
		}
		if math.Abs(sum-1) > weightTolerance {
			return deal.NewInvalidInput("weights."+string(category), sum, "weights must sum to 1")
		}
	}
	return nil
}

func sortedKeys[K ~string, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func categoryWeights(category deal.RiskCategory, overrides map[deal.RiskCategory]map[string]float64) map[string]float64 {
	if custom, ok := overrides[category]; ok {
		return custom
	}
	out := make(map[string]float64, len(catalogue[category]))
	for _, sr := range catalogue[category] {
		out[sr.Key] = sr.Weight
	}
	return out
}

func scoreEntry(category deal.RiskCategory, sr SubRisk, weight float64, in Input) deal.RiskEntry {
	score, ok := in.Scores[sr.Key]
	if !ok {
		score = DefaultScore
	}
	owner := in.Owners[sr.Key]
	if owner == "" {
		owner = defaultOwner
	}
	return deal.RiskEntry{
		Category:      category,
		Key:           sr.Key,
		Description:   sr.Description,
		Weight:        weight,
		Score:         score,
		WeightedScore: float64(score) * weight,
		Severity:      deal.SeverityFor(float64(score)),
		Likelihood:    likelihood(score),
		Mitigation:    in.Mitigations[sr.Key],
		OwnerRole:     owner,
	}
}

func likelihood(score int) string {
	switch s := float64(score); {
	case s >= deal.CriticalThreshold:
		return "high"
	case s >= deal.HighThreshold:
		return "medium"
	default:
		return "low"
	}
}

// topRisks orders High and Critical entries by weighted score. Ties keep
// catalogue order.
func topRisks(flagged []deal.RiskEntry) []deal.RiskEntry {
	sorted := append([]deal.RiskEntry(nil), flagged...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].WeightedScore > sorted[j].WeightedScore
	})
	if len(sorted) > topRiskLimit {
		sorted = sorted[:topRiskLimit]
	}
	return sorted
}

func buildRecommendations(categories []deal.CategoryResult, flaggedCount int) []string {
	var out []string
	for _, c := range categories {
		if c.Severity.AtLeastHigh() {
			out = append(out, recommendations[c.Category])
		}
	}
	if flaggedCount > delayThreshold {
		out = append(out, delayRecommendation)
	}
	if len(out) == 0 {
		out = append(out, manageableRecommendation)
	}
	return out
}
