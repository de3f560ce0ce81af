package finance

import (
	"deal-eval/backend/internal/deal"
)

// Approach selects how the market is sized.
type Approach string

const (
	TopDown  Approach = "top_down"
	BottomUp Approach = "bottom_up"
	Hybrid   Approach = "hybrid"
)

// Bottom-up sizing extrapolates SAM and TAM from SOM with fixed ratios.
const (
	samPerSOM = 3
	tamPerSAM = 5
)

// Segment is a customer segment for bottom-up sizing.
type Segment struct {
	Name  string `json:"name"`
	Count int64  `json:"count" validate:"gte=0"`
}

// MarketInputs carries both top-down and bottom-up parameters. Percentages
// are 0..100.
type MarketInputs struct {
	Approach           Approach  `json:"approach"`
	TotalMarketSize    float64   `json:"total_market_size" validate:"gte=0"`
	TargetSegmentPct   float64   `json:"target_segment_percentage" validate:"gte=0,lte=100"`
	ObtainablePct      float64   `json:"obtainable_percentage" validate:"gte=0,lte=100"`
	Segments           []Segment `json:"customer_segments" validate:"dive"`
	RevenuePerCustomer float64   `json:"avg_revenue_per_customer" validate:"gte=0"`
	AdoptionPct        float64   `json:"adoption_rate" validate:"gte=0,lte=100"`
}

// MarketSize is a TAM/SAM/SOM estimate.
type MarketSize struct {
	Approach   Approach        `json:"approach"`
	TAM        float64         `json:"tam"`
	SAM        float64         `json:"sam"`
	SOM        float64         `json:"som"`
	Confidence deal.Confidence `json:"confidence"`
	Customers  int64           `json:"customers,omitempty"`
	TopDown    *MarketSize     `json:"top_down,omitempty"`
	BottomUp   *MarketSize     `json:"bottom_up,omitempty"`
}

// SizeMarket computes the estimate for the requested approach, top-down when
// unset. Hybrid averages both estimates, or uses whichever one has data.
func SizeMarket(in MarketInputs) (MarketSize, error) {
	if err := deal.ValidateStruct(in); err != nil {
		return MarketSize{}, err
	}
	if err := deal.RequireFinite("market", in.TotalMarketSize, in.TargetSegmentPct, in.ObtainablePct,
		in.RevenuePerCustomer, in.AdoptionPct); err != nil {
		return MarketSize{}, err
	}

	switch in.Approach {
	case "", TopDown:
		return topDown(in), nil
	case BottomUp:
		return bottomUp(in), nil
	case Hybrid:
		td, bu := topDown(in), bottomUp(in)
		switch {
		case in.TotalMarketSize == 0:
			bu.Approach = Hybrid
			return bu, nil
		case bu.Customers == 0:
			td.Approach = Hybrid
			return td, nil
		}
		return MarketSize{
			Approach:   Hybrid,
			TAM:        (td.TAM + bu.TAM) / 2,
			SAM:        (td.SAM + bu.SAM) / 2,
			SOM:        (td.SOM + bu.SOM) / 2,
			Confidence: deal.ConfidenceHigh,
			Customers:  bu.Customers,
			TopDown:    &td,
			BottomUp:   &bu,
		}, nil
	default:
		return MarketSize{}, deal.NewInvalidInput("approach", in.Approach, "must be top_down, bottom_up or hybrid")
	}
}

func topDown(in MarketInputs) MarketSize {
	sam := in.TotalMarketSize * in.TargetSegmentPct / 100
	return MarketSize{
		Approach:   TopDown,
		TAM:        in.TotalMarketSize,
		SAM:        sam,
		SOM:        sam * in.ObtainablePct / 100,
		Confidence: deal.ConfidenceMedium,
	}
}

func bottomUp(in MarketInputs) MarketSize {
	var customers int64
	for _, s := range in.Segments {
		customers += s.Count
	}
	som := float64(customers) * in.RevenuePerCustomer * in.AdoptionPct / 100
	sam := som * samPerSOM
	return MarketSize{
		Approach:   BottomUp,
		TAM:        sam * tamPerSAM,
		SAM:        sam,
		SOM:        som,
		Confidence: deal.ConfidenceHigh,
		Customers:  customers,
	}
}
