package deal

import (
	"fmt"
	"math"
)

// OwnershipTolerance is the allowed drift of a table's ownership sum from 1.
const OwnershipTolerance = 1e-6

// ShareClass ranks holders in a liquidation.
type ShareClass string

const (
	ClassCommon    ShareClass = "Common"
	ClassPreferred ShareClass = "Preferred"
	ClassOptions   ShareClass = "Options"
)

// Valid reports whether c is a known share class.
func (c ShareClass) Valid() bool {
	switch c {
	case ClassCommon, ClassPreferred, ClassOptions:
		return true
	}
	return false
}

// Rank orders classes for payout: Preferred, then Common, then Options.
func (c ShareClass) Rank() int {
	switch c {
	case ClassPreferred:
		return 0
	case ClassCommon:
		return 1
	default:
		return 2
	}
}

// CapTableEntry is one line of the ownership ledger.
type CapTableEntry struct {
	Holder                string     `json:"holder" validate:"required"`
	Shares                int64      `json:"shares" validate:"gte=0"`
	Ownership             float64    `json:"ownership" validate:"gte=0,lte=1"`
	Class                 ShareClass `json:"class" validate:"oneof=Common Preferred Options"`
	PricePerShare         float64    `json:"price_per_share" validate:"gte=0"`
	LiquidationPreference float64    `json:"liquidation_preference" validate:"gte=0"`
	TotalValue            float64    `json:"total_value"`
	Dilution              float64    `json:"dilution"`
	Vested                bool       `json:"vested,omitempty"`
	AntiDilution          bool       `json:"anti_dilution,omitempty"`
}

// CapTable is an ordered ownership ledger.
type CapTable []CapTableEntry

// TotalShares sums shares across all entries.
func (t CapTable) TotalShares() int64 {
	var total int64
	for _, e := range t {
		total += e.Shares
	}
	return total
}

// OwnershipSum sums the ownership fractions.
func (t CapTable) OwnershipSum() float64 {
	sum := 0.0
	for _, e := range t {
		sum += e.Ownership
	}
	return sum
}

// SharesOf sums shares held in the given class.
func (t CapTable) SharesOf(class ShareClass) int64 {
	var total int64
	for _, e := range t {
		if e.Class == class {
			total += e.Shares
		}
	}
	return total
}

// Validate checks entry ranges and the ownership invariant.
func (t CapTable) Validate() error {
	if len(t) == 0 {
		return &InvalidCapTableError{Reason: "table has no entries"}
	}
	for i, e := range t {
		if err := ValidateStruct(e); err != nil {
			if inputErr, ok := err.(*InvalidInputError); ok {
				return &InvalidCapTableError{Reason: fmt.Sprintf("entry %d (%s): %s %s", i, e.Holder, inputErr.Field, inputErr.Reason)}
			}
			return err
		}
		if math.IsNaN(e.Ownership) || math.IsNaN(e.PricePerShare) || math.IsInf(e.PricePerShare, 0) ||
			math.IsNaN(e.LiquidationPreference) || math.IsInf(e.LiquidationPreference, 0) {
			return &InvalidCapTableError{Reason: fmt.Sprintf("entry %d (%s) has non-finite values", i, e.Holder)}
		}
	}
	if t.TotalShares() <= 0 {
		return &InvalidCapTableError{Reason: "table has no outstanding shares"}
	}
	sum := t.OwnershipSum()
	if math.Abs(sum-1) > OwnershipTolerance {
		return &InvalidCapTableError{Reason: "ownership fractions must sum to 1", OwnershipSum: sum}
	}
	return nil
}

// InvestmentScenario describes a proposed priced round.
type InvestmentScenario struct {
	PreMoneyValuation     float64 `json:"pre_money_valuation" validate:"gte=0"`
	InvestmentAmount      float64 `json:"investment_amount" validate:"gte=0"`
	TargetOwnership       float64 `json:"target_ownership" validate:"gte=0,lt=1"`
	OptionPoolTarget      float64 `json:"option_pool_target" validate:"gte=0,lt=1"`
	AntiDilution          bool    `json:"anti_dilution"`
	LiquidationPreference float64 `json:"liquidation_preference" validate:"gte=0"`
	InvestorName          string  `json:"investor_name,omitempty"`
}

// InvestmentSummary reports the round mechanics behind a post-investment table.
type InvestmentSummary struct {
	InvestorName          string  `json:"investor_name"`
	PreMoneyValuation     float64 `json:"pre_money_valuation"`
	InvestmentAmount      float64 `json:"investment_amount"`
	PostMoneyValuation    float64 `json:"post_money_valuation"`
	NewSharesIssued       int64   `json:"new_shares_issued"`
	PoolExpansionShares   int64   `json:"pool_expansion_shares"`
	TotalSharesBefore     int64   `json:"total_shares_before"`
	TotalSharesAfter      int64   `json:"total_shares_after"`
	PricePerShare         float64 `json:"price_per_share"`
	PreMoneyPricePerShare float64 `json:"pre_money_price_per_share"`
	EffectivePreMoney     float64 `json:"effective_pre_money"`
	NewInvestorOwnership  float64 `json:"new_investor_ownership"`
	OptionPoolOwnership   float64 `json:"option_pool_ownership"`
	LiquidationPreference float64 `json:"liquidation_preference"`
	AntiDilution          bool    `json:"anti_dilution"`
}

// OwnershipDistribution groups post-round ownership by holder type.
type OwnershipDistribution struct {
	Founders   float64 `json:"founders"`
	Investors  float64 `json:"investors"`
	OptionPool float64 `json:"option_pool"`
	Other      float64 `json:"other"`
}

// HolderDilution is one row of the dilution analysis.
type HolderDilution struct {
	Holder          string  `json:"holder"`
	OwnershipBefore float64 `json:"ownership_before"`
	OwnershipAfter  float64 `json:"ownership_after"`
	Dilution        float64 `json:"dilution"`
	RelativePercent float64 `json:"relative_percent"`
}

// CapTableMetrics are derived figures for reporting.
type CapTableMetrics struct {
	Distribution OwnershipDistribution `json:"distribution"`
	Dilution     []HolderDilution      `json:"dilution"`
	HolderCount  int                   `json:"holder_count"`
}

// CapTableResult is the full output of applying an investment.
type CapTableResult struct {
	PreTable  CapTable          `json:"pre_table"`
	PostTable CapTable          `json:"post_table"`
	Summary   InvestmentSummary `json:"summary"`
	Metrics   CapTableMetrics   `json:"metrics"`
}
