package waterfall

import (
	"fmt"
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"deal-eval/backend/internal/deal"
)

// Residual policies, recorded on each result.
const (
	PolicyCommon           = "common_and_vested_options"
	PolicyPreferredConvert = "preferred_as_converted"
	PolicyAllOptions       = "all_options"
	PolicyNone             = "fully_absorbed_by_preferences"
)

const defaultMultiple = 1.0

// Distribute pays an exit value through a stacked, non-participating
// preference stack. Preferred claims are paid in descending multiple order;
// any remainder goes pro rata to Common and vested Options. Unvested Options
// receive nothing while any other residual holder exists.
//
// liquidationMultiple applies to Preferred entries whose own multiple is zero.
func Distribute(table deal.CapTable, exitValue, liquidationMultiple float64) (deal.WaterfallResult, error) {
	if err := deal.RequireFinite("exit_value", exitValue); err != nil {
		return deal.WaterfallResult{}, err
	}
	if exitValue < 0 {
		return deal.WaterfallResult{}, deal.NewInvalidInput("exit_value", exitValue, "must be >= 0")
	}
	if err := deal.RequireFinite("liquidation_multiple", liquidationMultiple); err != nil {
		return deal.WaterfallResult{}, err
	}
	if liquidationMultiple < 0 {
		return deal.WaterfallResult{}, deal.NewInvalidInput("liquidation_multiple", liquidationMultiple, "must be >= 0")
	}
	if liquidationMultiple == 0 {
		liquidationMultiple = defaultMultiple
	}
	if err := table.Validate(); err != nil {
		return deal.WaterfallResult{}, err
	}

	order := payoutOrder(table, liquidationMultiple)
	payouts := make([]decimal.Decimal, len(table))
	claims := make([]decimal.Decimal, len(table))
	remaining := decimal.NewFromFloat(exitValue)

	preferredPaid := decimal.Zero
	for _, idx := range order {
		entry := table[idx]
		if entry.Class != deal.ClassPreferred {
			continue
		}
		multiple := effectiveMultiple(entry, liquidationMultiple)
		claim := decimal.NewFromInt(entry.Shares).
			Mul(decimal.NewFromFloat(entry.PricePerShare)).
			Mul(decimal.NewFromFloat(multiple))
		claims[idx] = claim
		pay := decimal.Min(claim, remaining)
		payouts[idx] = pay
		remaining = remaining.Sub(pay)
		preferredPaid = preferredPaid.Add(pay)
	}

	residual := remaining
	pool, policy := residualPool(table)
	if residual.IsPositive() && len(pool) > 0 {
		allocateProRata(table, pool, residual, payouts)
	} else if len(pool) == 0 {
		policy = PolicyNone
	}

	result := deal.WaterfallResult{
		ExitValue:      exitValue,
		Payouts:        make([]deal.HolderPayout, 0, len(table)),
		PreferredPaid:  preferredPaid.InexactFloat64(),
		ResidualPaid:   residual.InexactFloat64(),
		ResidualPolicy: policy,
	}
	for rank, idx := range order {
		entry := table[idx]
		amount := payouts[idx].InexactFloat64()
		hp := deal.HolderPayout{
			Holder:           entry.Holder,
			Class:            entry.Class,
			Shares:           entry.Shares,
			Rank:             rank + 1,
			LiquidationClaim: claims[idx].InexactFloat64(),
			Payout:           amount,
		}
		if exitValue > 0 {
			hp.PercentOfExit = amount / exitValue * 100
		}
		result.Payouts = append(result.Payouts, hp)
	}

	if err := verify(result); err != nil {
		return deal.WaterfallResult{}, err
	}
	return result, nil
}

// RunScenarios distributes each exit scenario against the same table using
// each Preferred entry's own multiple (1x when unset).
func RunScenarios(table deal.CapTable, scenarios []deal.ExitScenario) ([]deal.WaterfallResult, error) {
	results := make([]deal.WaterfallResult, 0, len(scenarios))
	for i, sc := range scenarios {
		res, err := Distribute(table, sc.ExitValue, defaultMultiple)
		if err != nil {
			return nil, fmt.Errorf("scenario %d (%s): %w", i, sc.Name, err)
		}
		res.Scenario = sc.Name
		results = append(results, res)
	}
	return results, nil
}

// DefaultExitScenarios returns exits at 0.5x, 1x, 2x and 5x of a valuation.
func DefaultExitScenarios(valuation float64) []deal.ExitScenario {
	multiples := []struct {
		name string
		mul  float64
	}{
		{"downside", 0.5},
		{"flat", 1},
		{"base", 2},
		{"upside", 5},
	}
	out := make([]deal.ExitScenario, 0, len(multiples))
	for _, m := range multiples {
		out = append(out, deal.ExitScenario{Name: m.name, Multiple: m.mul, ExitValue: valuation * m.mul})
	}
	return out
}

// ExitValues wraps plain exit values as unnamed scenarios.
func ExitValues(values []float64) []deal.ExitScenario {
	out := make([]deal.ExitScenario, 0, len(values))
	for _, v := range values {
		out = append(out, deal.ExitScenario{Name: fmt.Sprintf("exit %.0f", v), ExitValue: v})
	}
	return out
}

func effectiveMultiple(entry deal.CapTableEntry, fallback float64) float64 {
	if entry.LiquidationPreference > 0 {
		return entry.LiquidationPreference
	}
	return fallback
}

// payoutOrder sorts by class rank, then by descending multiple for Preferred.
// The sort is stable so equal entries keep table order.
func payoutOrder(table deal.CapTable, fallback float64) []int {
	order := make([]int, len(table))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ea, eb := table[order[a]], table[order[b]]
		if ea.Class.Rank() != eb.Class.Rank() {
			return ea.Class.Rank() < eb.Class.Rank()
		}
		if ea.Class == deal.ClassPreferred {
			return effectiveMultiple(ea, fallback) > effectiveMultiple(eb, fallback)
		}
		return false
	})
	return order
}

func residualPool(table deal.CapTable) ([]int, string) {
	collect := func(keep func(deal.CapTableEntry) bool) []int {
		var idx []int
		for i, e := range table {
			if e.Shares > 0 && keep(e) {
				idx = append(idx, i)
			}
		}
		return idx
	}
	if pool := collect(func(e deal.CapTableEntry) bool {
		return e.Class == deal.ClassCommon || (e.Class == deal.ClassOptions && e.Vested)
	}); len(pool) > 0 {
		return pool, PolicyCommon
	}
	if pool := collect(func(e deal.CapTableEntry) bool { return e.Class == deal.ClassPreferred }); len(pool) > 0 {
		return pool, PolicyPreferredConvert
	}
	return collect(func(e deal.CapTableEntry) bool { return e.Class == deal.ClassOptions }), PolicyAllOptions
}

// allocateProRata splits amount by shares; the last holder takes the exact
// remainder so the pieces sum to amount.
func allocateProRata(table deal.CapTable, pool []int, amount decimal.Decimal, payouts []decimal.Decimal) {
	var totalShares int64
	for _, idx := range pool {
		totalShares += table[idx].Shares
	}
	total := decimal.NewFromInt(totalShares)
	allocated := decimal.Zero
	for i, idx := range pool {
		var share decimal.Decimal
		if i == len(pool)-1 {
			share = amount.Sub(allocated)
		} else {
			share = amount.Mul(decimal.NewFromInt(table[idx].Shares)).Div(total)
		}
		payouts[idx] = payouts[idx].Add(share)
		allocated = allocated.Add(share)
	}
}

func verify(result deal.WaterfallResult) error {
	for _, p := range result.Payouts {
		if p.Payout < 0 || math.IsNaN(p.Payout) {
			return &deal.ComputationInconsistencyError{
				Stage:  "waterfall",
				Reason: fmt.Sprintf("negative payout %.6f for %s", p.Payout, p.Holder),
			}
		}
	}
	tolerance := math.Max(1e-6, result.ExitValue*1e-13)
	if diff := math.Abs(result.TotalPaid() - result.ExitValue); diff > tolerance {
		return &deal.ComputationInconsistencyError{
			Stage:  "waterfall",
			Reason: fmt.Sprintf("payouts sum differs from exit value by %.9f", diff),
		}
	}
	return nil
}
