package captable

import (
	"fmt"
	"math"
	"strings"

	"deal-eval/backend/internal/deal"
)

const (
	defaultInvestorName  = "New Investor"
	defaultPoolName      = "Option Pool"
	defaultPreferenceMul = 1.0

	// maxShareCount keeps share counts exact in float64 and far from int64 overflow.
	maxShareCount = 1 << 53
)

// DefaultTable is the two-line founders plus pool ledger used when a pitch
// carries no cap table.
func DefaultTable() deal.CapTable {
	return deal.CapTable{
		{Holder: "Founders", Shares: 8_000_000, Ownership: 0.8, Class: deal.ClassCommon, PricePerShare: 0.001, TotalValue: 8_000},
		{Holder: defaultPoolName, Shares: 2_000_000, Ownership: 0.2, Class: deal.ClassOptions, PricePerShare: 0.001, TotalValue: 2_000},
	}
}

// ApplyInvestment issues new shares for a priced round. The option pool is
// topped up to its post-money target before the round (pre-money shuffle),
// so the expansion dilutes existing holders only.
func ApplyInvestment(pre deal.CapTable, scenario deal.InvestmentScenario) (deal.CapTableResult, error) {
	if err := deal.ValidateStruct(scenario); err != nil {
		return deal.CapTableResult{}, err
	}
	if err := deal.RequireFinite("investment_scenario", scenario.PreMoneyValuation, scenario.InvestmentAmount,
		scenario.TargetOwnership, scenario.OptionPoolTarget, scenario.LiquidationPreference); err != nil {
		return deal.CapTableResult{}, err
	}
	if err := pre.Validate(); err != nil {
		return deal.CapTableResult{}, err
	}

	postMoney := scenario.PreMoneyValuation + scenario.InvestmentAmount
	target := scenario.TargetOwnership
	if target == 0 && scenario.InvestmentAmount > 0 {
		if postMoney == 0 {
			return deal.CapTableResult{}, deal.NewInvalidInput("pre_money_valuation", scenario.PreMoneyValuation, "post-money valuation is zero")
		}
		target = scenario.InvestmentAmount / postMoney
	}
	if target+scenario.OptionPoolTarget >= 1 {
		return deal.CapTableResult{}, deal.NewInvalidInput("option_pool_target", scenario.OptionPoolTarget,
			fmt.Sprintf("pool target plus investor ownership %.4f must be below 1", target))
	}

	sharesBefore := pre.TotalShares()
	poolBefore := pre.SharesOf(deal.ClassOptions)

	// T = S0/(1-t) without expansion; with expansion the pool holds p*T, so
	// T = (S0 - P)/(1 - p - t).
	totalAfter := float64(sharesBefore) / (1 - target)
	expansion := 0.0
	if p := scenario.OptionPoolTarget; p > 0 && p*totalAfter > float64(poolBefore) {
		totalAfter = float64(sharesBefore-poolBefore) / (1 - p - target)
		expansion = p*totalAfter - float64(poolBefore)
	}
	if math.IsNaN(totalAfter) || totalAfter > maxShareCount {
		return deal.CapTableResult{}, deal.NewInvalidInput("target_ownership", target, "implies an unrepresentable share count")
	}
	newShares := int64(math.Round(target * totalAfter))
	poolShares := int64(math.Round(expansion))
	if scenario.InvestmentAmount > 0 && newShares == 0 {
		return deal.CapTableResult{}, deal.NewInvalidInput("investment_amount", scenario.InvestmentAmount, "too small to issue a whole share")
	}
	sharesAfter := sharesBefore + poolShares + newShares

	roundPrice := 0.0
	switch {
	case newShares > 0:
		roundPrice = scenario.InvestmentAmount / float64(newShares)
	case sharesBefore > 0:
		roundPrice = scenario.PreMoneyValuation / float64(sharesBefore)
	}

	post := make(deal.CapTable, 0, len(pre)+2)
	poolIdx := -1
	for _, entry := range pre {
		next := entry
		if next.Class == deal.ClassOptions && poolIdx < 0 {
			poolIdx = len(post)
		}
		if next.Class != deal.ClassPreferred || next.PricePerShare == 0 {
			next.PricePerShare = roundPrice
		}
		post = append(post, next)
	}
	if poolShares > 0 {
		if poolIdx < 0 {
			post = append(post, deal.CapTableEntry{Holder: defaultPoolName, Class: deal.ClassOptions})
			poolIdx = len(post) - 1
			post[poolIdx].PricePerShare = roundPrice
		}
		post[poolIdx].Shares += poolShares
	}

	investorName := strings.TrimSpace(scenario.InvestorName)
	if investorName == "" {
		investorName = defaultInvestorName
	}
	preference := scenario.LiquidationPreference
	if preference == 0 {
		preference = defaultPreferenceMul
	}
	if newShares > 0 {
		post = append(post, deal.CapTableEntry{
			Holder:                investorName,
			Shares:                newShares,
			Class:                 deal.ClassPreferred,
			PricePerShare:         roundPrice,
			LiquidationPreference: preference,
			AntiDilution:          scenario.AntiDilution,
		})
	}

	for i := range post {
		entry := &post[i]
		previous := 0.0
		if i < len(pre) {
			previous = pre[i].Ownership
		}
		entry.Ownership = float64(entry.Shares) / float64(sharesAfter)
		entry.TotalValue = float64(entry.Shares) * entry.PricePerShare
		entry.Dilution = previous - entry.Ownership
	}

	if sum := post.OwnershipSum(); math.Abs(sum-1) > deal.OwnershipTolerance {
		return deal.CapTableResult{}, &deal.ComputationInconsistencyError{
			Stage:  "cap_table",
			Reason: fmt.Sprintf("post-investment ownership sums to %.9f", sum),
		}
	}

	preMoneyPrice := 0.0
	if sharesBefore > 0 {
		preMoneyPrice = scenario.PreMoneyValuation / float64(sharesBefore)
	}
	summary := deal.InvestmentSummary{
		InvestorName:          investorName,
		PreMoneyValuation:     scenario.PreMoneyValuation,
		InvestmentAmount:      scenario.InvestmentAmount,
		PostMoneyValuation:    postMoney,
		NewSharesIssued:       newShares,
		PoolExpansionShares:   poolShares,
		TotalSharesBefore:     sharesBefore,
		TotalSharesAfter:      sharesAfter,
		PricePerShare:         roundPrice,
		PreMoneyPricePerShare: preMoneyPrice,
		EffectivePreMoney:     roundPrice * float64(sharesBefore),
		NewInvestorOwnership:  float64(newShares) / float64(sharesAfter),
		OptionPoolOwnership:   float64(post.SharesOf(deal.ClassOptions)) / float64(sharesAfter),
		LiquidationPreference: preference,
		AntiDilution:          scenario.AntiDilution,
	}

	return deal.CapTableResult{
		PreTable:  append(deal.CapTable(nil), pre...),
		PostTable: post,
		Summary:   summary,
		Metrics:   Metrics(pre, post),
	}, nil
}
