// Package finance derives unit economics and market sizing from normalized
// pitch metrics.
package finance

import (
	"deal-eval/backend/internal/deal"
)

// Metrics are the normalized pitch metrics. GrossMargin and GrowthRate are
// percentages; ChurnRate is a monthly fraction. BurnRate is net burn over the
// same period as GrowthRate.
type Metrics struct {
	ARR         float64 `json:"arr" validate:"gte=0"`
	MRR         float64 `json:"mrr" validate:"gte=0"`
	CAC         float64 `json:"cac" validate:"gte=0"`
	ChurnRate   float64 `json:"churn_rate" validate:"gte=0,lte=1"`
	GrossMargin float64 `json:"gross_margin" validate:"gte=-100,lte=100"`
	BurnRate    float64 `json:"burn_rate" validate:"gte=0"`
	GrowthRate  float64 `json:"growth_rate"`
}

// UnitEconomics holds the derived ratios. A nil pointer means the ratio is
// undefined for the supplied metrics.
type UnitEconomics struct {
	MRR           float64  `json:"mrr"`
	ARR           float64  `json:"arr"`
	LTV           *float64 `json:"ltv"`
	LTVToCAC      *float64 `json:"ltv_cac_ratio"`
	PaybackMonths *float64 `json:"payback_months"`
	BurnMultiple  *float64 `json:"burn_multiple"`
	MagicNumber   *float64 `json:"magic_number"`
	RuleOf40      float64  `json:"rule_of_40"`
	Notes         []string `json:"notes,omitempty"`
}

// Normalize fills MRR from ARR (and the reverse) when only one is known.
func (m Metrics) Normalize() Metrics {
	switch {
	case m.MRR == 0 && m.ARR > 0:
		m.MRR = m.ARR / 12
	case m.ARR == 0 && m.MRR > 0:
		m.ARR = m.MRR * 12
	}
	return m
}

// Compute derives LTV, LTV/CAC, CAC payback, burn multiple, magic number and
// the rule of 40.
func Compute(metrics Metrics) (UnitEconomics, error) {
	if err := deal.ValidateStruct(metrics); err != nil {
		return UnitEconomics{}, err
	}
	if err := deal.RequireFinite("metrics", metrics.ARR, metrics.MRR, metrics.CAC, metrics.ChurnRate,
		metrics.GrossMargin, metrics.BurnRate, metrics.GrowthRate); err != nil {
		return UnitEconomics{}, err
	}
	m := metrics.Normalize()
	margin := m.GrossMargin / 100
	out := UnitEconomics{MRR: m.MRR, ARR: m.ARR, RuleOf40: m.GrowthRate + m.GrossMargin}

	if m.ChurnRate > 0 {
		out.LTV = ptr(m.MRR * margin / m.ChurnRate)
	} else {
		out.Notes = append(out.Notes, "ltv undefined without churn")
	}
	if out.LTV != nil && m.CAC > 0 {
		out.LTVToCAC = ptr(*out.LTV / m.CAC)
	}
	if monthly := m.MRR * margin; monthly > 0 {
		out.PaybackMonths = ptr(m.CAC / monthly)
	} else {
		out.Notes = append(out.Notes, "payback undefined without positive gross profit")
	}
	if netNew := m.ARR * m.GrowthRate / 100; netNew > 0 {
		out.BurnMultiple = ptr(m.BurnRate / netNew)
	} else {
		out.Notes = append(out.Notes, "burn multiple undefined without net new ARR")
	}
	if m.BurnRate > 0 {
		out.MagicNumber = ptr(m.GrowthRate / 100 / m.BurnRate)
	}
	return out, nil
}

func ptr(v float64) *float64 { return &v }
