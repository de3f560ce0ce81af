package captable

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deal-eval/backend/internal/deal"
)

func TestApplyInvestmentDefaultTable(t *testing.T) {
	res, err := ApplyInvestment(DefaultTable(), deal.InvestmentScenario{
		PreMoneyValuation: 8_000_000,
		InvestmentAmount:  2_000_000,
		TargetOwnership:   0.20,
	})
	require.NoError(t, err)

	assert.Equal(t, 10_000_000.0, res.Summary.PostMoneyValuation)
	assert.InDelta(t, 0.20, res.Summary.NewInvestorOwnership, 1e-6)
	assert.Equal(t, int64(2_500_000), res.Summary.NewSharesIssued)
	assert.Equal(t, int64(0), res.Summary.PoolExpansionShares)
	assert.InDelta(t, 1.0, res.PostTable.OwnershipSum(), 1e-6)

	require.Len(t, res.PostTable, 3)
	investor := res.PostTable[2]
	assert.Equal(t, "New Investor", investor.Holder)
	assert.Equal(t, deal.ClassPreferred, investor.Class)
	assert.Equal(t, 1.0, investor.LiquidationPreference)
	assert.InDelta(t, 2_000_000, investor.TotalValue, 1e-6)

	founders := res.PostTable[0]
	assert.Equal(t, int64(8_000_000), founders.Shares)
	assert.InDelta(t, 0.64, founders.Ownership, 1e-9)
	assert.InDelta(t, 0.16, founders.Dilution, 1e-9)
	assert.InDelta(t, 0.64, res.Metrics.Distribution.Founders, 1e-9)
}

func TestApplyInvestmentExpandsPoolBeforeRound(t *testing.T) {
	res, err := ApplyInvestment(DefaultTable(), deal.InvestmentScenario{
		PreMoneyValuation: 8_000_000,
		InvestmentAmount:  2_000_000,
		TargetOwnership:   0.20,
		OptionPoolTarget:  0.20,
	})
	require.NoError(t, err)

	// (10M - 2M) / (1 - 0.2 - 0.2) post-round shares, pool grows to a fifth of that
	assert.Equal(t, int64(666_667), res.Summary.PoolExpansionShares)
	assert.Equal(t, int64(2_666_667), res.Summary.NewSharesIssued)
	assert.Equal(t, int64(13_333_334), res.Summary.TotalSharesAfter)
	assert.InDelta(t, 0.20, res.Summary.NewInvestorOwnership, 1e-6)
	assert.InDelta(t, 0.20, res.Summary.OptionPoolOwnership, 1e-6)
	assert.InDelta(t, 1.0, res.PostTable.OwnershipSum(), 1e-6)
	assert.Less(t, res.Summary.EffectivePreMoney, res.Summary.PreMoneyValuation)
}

func TestApplyInvestmentDerivesTargetFromAmount(t *testing.T) {
	res, err := ApplyInvestment(DefaultTable(), deal.InvestmentScenario{
		PreMoneyValuation: 6_000_000,
		InvestmentAmount:  1_500_000,
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.20, res.Summary.NewInvestorOwnership, 1e-6)
}

func TestApplyInvestmentOwnershipSumProperty(t *testing.T) {
	tables := []deal.CapTable{
		DefaultTable(),
		{
			{Holder: "Alice (Founder)", Shares: 3_333_333, Ownership: 3_333_333.0 / 7_777_777, Class: deal.ClassCommon},
			{Holder: "Seed Fund", Shares: 1_111_111, Ownership: 1_111_111.0 / 7_777_777, Class: deal.ClassPreferred, PricePerShare: 0.9, LiquidationPreference: 1},
			{Holder: "Pool", Shares: 3_333_333, Ownership: 3_333_333.0 / 7_777_777, Class: deal.ClassOptions},
		},
		{
			{Holder: "Solo", Shares: 7, Ownership: 1, Class: deal.ClassCommon},
		},
	}
	for _, table := range tables {
		for _, target := range []float64{0, 0.05, 0.2, 0.33, 0.5} {
			for _, pool := range []float64{0, 0.1, 0.25} {
				res, err := ApplyInvestment(table, deal.InvestmentScenario{
					PreMoneyValuation: 5_000_000,
					InvestmentAmount:  1_000_000,
					TargetOwnership:   target,
					OptionPoolTarget:  pool,
				})
				if err != nil {
					var inputErr *deal.InvalidInputError
					require.True(t, errors.As(err, &inputErr), "unexpected error %v", err)
					continue
				}
				assert.InDelta(t, 1.0, res.PostTable.OwnershipSum(), 1e-6)
			}
		}
	}
}

func TestApplyInvestmentErrors(t *testing.T) {
	badTable := deal.CapTable{
		{Holder: "A", Shares: 10, Ownership: 0.5, Class: deal.ClassCommon},
		{Holder: "B", Shares: 10, Ownership: 0.4, Class: deal.ClassCommon},
	}
	_, err := ApplyInvestment(badTable, deal.InvestmentScenario{PreMoneyValuation: 1, InvestmentAmount: 1})
	var tableErr *deal.InvalidCapTableError
	require.ErrorAs(t, err, &tableErr)
	assert.InDelta(t, 0.9, tableErr.OwnershipSum, 1e-9)

	_, err = ApplyInvestment(deal.CapTable{}, deal.InvestmentScenario{})
	require.ErrorAs(t, err, &tableErr)

	tests := []struct {
		name     string
		scenario deal.InvestmentScenario
		field    string
	}{
		{"negative investment", deal.InvestmentScenario{PreMoneyValuation: 1, InvestmentAmount: -1}, "investment_amount"},
		{"negative pre-money", deal.InvestmentScenario{PreMoneyValuation: -1}, "pre_money_valuation"},
		{"target of one", deal.InvestmentScenario{PreMoneyValuation: 1, TargetOwnership: 1}, "target_ownership"},
		{"pool plus target", deal.InvestmentScenario{PreMoneyValuation: 1, TargetOwnership: 0.6, OptionPoolTarget: 0.5}, "option_pool_target"},
		{"target near one", deal.InvestmentScenario{PreMoneyValuation: 8_000_000, InvestmentAmount: 2_000_000, TargetOwnership: 0.999999999999}, "target_ownership"},
		{"target near one with pool", deal.InvestmentScenario{PreMoneyValuation: 8_000_000, InvestmentAmount: 2_000_000, TargetOwnership: 0.999999999, OptionPoolTarget: 0.000000000999}, "target_ownership"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ApplyInvestment(DefaultTable(), tc.scenario)
			var inputErr *deal.InvalidInputError
			require.ErrorAs(t, err, &inputErr)
			assert.Equal(t, tc.field, inputErr.Field)
		})
	}
}

func TestApplyInvestmentIsDeterministic(t *testing.T) {
	scenario := deal.InvestmentScenario{PreMoneyValuation: 12_000_000, InvestmentAmount: 3_000_000, OptionPoolTarget: 0.15, AntiDilution: true}
	first, err := ApplyInvestment(DefaultTable(), scenario)
	require.NoError(t, err)
	second, err := ApplyInvestment(DefaultTable(), scenario)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.True(t, first.PostTable[len(first.PostTable)-1].AntiDilution)
}

func TestCompareScenarios(t *testing.T) {
	impacts, err := CompareScenarios(DefaultTable(), []NamedScenario{
		{Name: "seed", Scenario: deal.InvestmentScenario{PreMoneyValuation: 8_000_000, InvestmentAmount: 2_000_000}},
		{Name: "bigger seed", Scenario: deal.InvestmentScenario{PreMoneyValuation: 8_000_000, InvestmentAmount: 4_000_000}},
		{Name: "broken", Scenario: deal.InvestmentScenario{PreMoneyValuation: -1}},
	})
	require.NoError(t, err)
	require.Len(t, impacts, 3)
	assert.Less(t, impacts[0].FounderDilution, impacts[1].FounderDilution)
	assert.NotEmpty(t, impacts[2].Error)
}
