package deal

// ExitScenario names an exit value to run through the waterfall.
type ExitScenario struct {
	Name      string  `json:"name"`
	Multiple  float64 `json:"multiple,omitempty"`
	ExitValue float64 `json:"exit_value"`
}

// HolderPayout is one holder's share of an exit.
type HolderPayout struct {
	Holder           string     `json:"holder"`
	Class            ShareClass `json:"class"`
	Shares           int64      `json:"shares"`
	Rank             int        `json:"rank"`
	LiquidationClaim float64    `json:"liquidation_claim"`
	Payout           float64    `json:"payout"`
	PercentOfExit    float64    `json:"percent_of_exit"`
}

// WaterfallResult is the distribution of one exit value.
type WaterfallResult struct {
	Scenario       string         `json:"scenario,omitempty"`
	ExitValue      float64        `json:"exit_value"`
	Payouts        []HolderPayout `json:"payouts"`
	PreferredPaid  float64        `json:"preferred_paid"`
	ResidualPaid   float64        `json:"residual_paid"`
	ResidualPolicy string         `json:"residual_policy"`
}

// ByHolder collapses the payouts into a holder to amount mapping.
func (w WaterfallResult) ByHolder() map[string]float64 {
	out := make(map[string]float64, len(w.Payouts))
	for _, p := range w.Payouts {
		out[p.Holder] += p.Payout
	}
	return out
}

// TotalPaid sums every payout.
func (w WaterfallResult) TotalPaid() float64 {
	total := 0.0
	for _, p := range w.Payouts {
		total += p.Payout
	}
	return total
}
