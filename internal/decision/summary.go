package decision

import (
	"math"

	"deal-eval/backend/internal/deal"
)

func summarize(in Input, params *deal.InvestmentParams, conditions []string) deal.DecisionSummary {
	s := deal.DecisionSummary{
		MethodsUsed:       make([]deal.Method, 0, len(in.Valuations)),
		KeyConditions:     []string{},
		ConfidenceFactors: []string{},
	}

	if len(in.Valuations) > 0 {
		s.ValuationMin = math.Inf(1)
		s.ValuationMax = math.Inf(-1)
		for _, v := range in.Valuations {
			s.ValuationMin = math.Min(s.ValuationMin, v.Low)
			s.ValuationMax = math.Max(s.ValuationMax, v.High)
			s.MethodsUsed = append(s.MethodsUsed, v.Method)
		}
		s.ValuationMean = deal.MeanBase(in.Valuations)
	}

	if in.Risk != nil {
		s.OverallRiskScore = in.Risk.OverallScore
		s.OverallRiskLevel = in.Risk.OverallSeverity
		s.CriticalRiskCount = len(in.Risk.EntriesWithSeverity(deal.SeverityCritical))
	}
	if in.CapTable != nil {
		s.PostInvestmentRows = len(in.CapTable.PostTable)
	}

	if len(conditions) > keyConditionLimit {
		s.KeyConditions = append(s.KeyConditions, conditions[:keyConditionLimit]...)
	} else {
		s.KeyConditions = append(s.KeyConditions, conditions...)
	}

	if len(in.Valuations) >= 2 {
		s.ConfidenceFactors = append(s.ConfidenceFactors, "Multiple valuation methods")
	}
	if in.Risk != nil && in.Risk.OverallScore < lowRiskScore {
		s.ConfidenceFactors = append(s.ConfidenceFactors, "Low risk profile")
	}
	if params != nil && params.CheckSize > 0 {
		s.ConfidenceFactors = append(s.ConfidenceFactors, "Clear investment terms")
	}

	s.RationaleExcerpt = excerpt(in.Rationale)
	return s
}

// confidence is the share of satisfied factors on a 0..100 scale.
func confidence(s deal.DecisionSummary) float64 {
	return float64(len(s.ConfidenceFactors)) / confidenceFactorCount * 100
}

func excerpt(text string) string {
	runes := []rune(text)
	if len(runes) <= rationaleLimit {
		return text
	}
	return string(runes[:rationaleLimit]) + "..."
}
