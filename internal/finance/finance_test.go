package finance

import (
	"errors"
	"math"
	"testing"

	"deal-eval/backend/internal/deal"
)

func TestComputeUnitEconomics(t *testing.T) {
	ue, err := Compute(Metrics{
		ARR:         1_200_000,
		CAC:         5_000,
		ChurnRate:   0.02,
		GrossMargin: 80,
		BurnRate:    600_000,
		GrowthRate:  100,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ue.MRR != 100_000 {
		t.Fatalf("expected mrr derived from arr got %f", ue.MRR)
	}
	checks := []struct {
		name     string
		got      *float64
		expected float64
	}{
		{"ltv", ue.LTV, 4_000_000},
		{"ltv/cac", ue.LTVToCAC, 800},
		{"payback", ue.PaybackMonths, 0.0625},
		{"burn multiple", ue.BurnMultiple, 0.5},
	}
	for _, c := range checks {
		if c.got == nil {
			t.Fatalf("%s: expected a value", c.name)
		}
		if math.Abs(*c.got-c.expected) > 1e-9*math.Max(1, c.expected) {
			t.Fatalf("%s: expected %f got %f", c.name, c.expected, *c.got)
		}
	}
	if ue.RuleOf40 != 180 {
		t.Fatalf("expected rule of 40 score 180 got %f", ue.RuleOf40)
	}
}

func TestComputeLeavesUndefinedRatiosEmpty(t *testing.T) {
	ue, err := Compute(Metrics{MRR: 10_000})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ue.ARR != 120_000 {
		t.Fatalf("expected arr derived from mrr got %f", ue.ARR)
	}
	if ue.LTV != nil || ue.LTVToCAC != nil || ue.PaybackMonths != nil || ue.BurnMultiple != nil || ue.MagicNumber != nil {
		t.Fatalf("expected undefined ratios got %+v", ue)
	}
	if len(ue.Notes) != 3 {
		t.Fatalf("expected three notes got %v", ue.Notes)
	}
}

func TestComputeRejectsBadMetrics(t *testing.T) {
	tests := []struct {
		name    string
		metrics Metrics
		field   string
	}{
		{"negative arr", Metrics{ARR: -1}, "arr"},
		{"churn above one", Metrics{ChurnRate: 1.5}, "churn_rate"},
		{"infinite growth", Metrics{GrowthRate: math.Inf(1)}, "metrics"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Compute(tc.metrics)
			var inputErr *deal.InvalidInputError
			if !errors.As(err, &inputErr) || inputErr.Field != tc.field {
				t.Fatalf("expected invalid %s got %v", tc.field, err)
			}
		})
	}
}

func TestSizeMarket(t *testing.T) {
	in := MarketInputs{
		TotalMarketSize:    10_000_000_000,
		TargetSegmentPct:   10,
		ObtainablePct:      5,
		Segments:           []Segment{{Name: "smb", Count: 40_000}, {Name: "mid-market", Count: 10_000}},
		RevenuePerCustomer: 12_000,
		AdoptionPct:        10,
	}

	td, err := SizeMarket(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if td.Approach != TopDown || td.SAM != 1_000_000_000 || td.SOM != 50_000_000 {
		t.Fatalf("unexpected top-down result %+v", td)
	}

	in.Approach = BottomUp
	bu, err := SizeMarket(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bu.SOM != 60_000_000 || bu.SAM != 180_000_000 || bu.TAM != 900_000_000 {
		t.Fatalf("unexpected bottom-up result %+v", bu)
	}

	in.Approach = Hybrid
	hy, err := SizeMarket(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hy.SOM != 55_000_000 || hy.TopDown == nil || hy.BottomUp == nil {
		t.Fatalf("unexpected hybrid result %+v", hy)
	}

	in.Segments = nil
	fallback, err := SizeMarket(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fallback.SOM != td.SOM || fallback.Approach != Hybrid {
		t.Fatalf("expected top-down numbers under hybrid got %+v", fallback)
	}

	in.Approach = "sideways"
	if _, err := SizeMarket(in); err == nil {
		t.Fatalf("expected error for unknown approach")
	}
}
