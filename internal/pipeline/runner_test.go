package pipeline

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deal-eval/backend/internal/deal"
	"deal-eval/backend/internal/finance"
	"deal-eval/backend/internal/panel"
	"deal-eval/backend/internal/risk"
	"deal-eval/backend/internal/termsheet"
	"deal-eval/backend/internal/valuation"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []Event
}

func (n *recordingNotifier) Publish(e Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
}

func (n *recordingNotifier) types() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.events))
	for _, e := range n.events {
		out = append(out, e.Type)
	}
	return out
}

type scriptedPanel struct {
	mu       sync.Mutex
	calls    int
	failures []error
	reply    panel.Transcript
	brief    panel.Brief
}

func (p *scriptedPanel) Enabled() bool { return true }

func (p *scriptedPanel) Deliberate(_ context.Context, brief panel.Brief) (panel.Transcript, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.brief = brief
	p.calls++
	if p.calls <= len(p.failures) {
		return panel.Transcript{}, p.failures[p.calls-1]
	}
	return p.reply, nil
}

type staticComps struct {
	peers []valuation.Comparable
	asked []string
}

func (s *staticComps) Comparables(sector, stage, geo string) ([]valuation.Comparable, error) {
	s.asked = append(s.asked, sector+"/"+stage+"/"+geo)
	return s.peers, nil
}

func lowRisk() *risk.Input {
	scores := map[string]int{}
	for _, category := range deal.RiskCategories {
		for _, sr := range risk.Catalogue(category) {
			scores[sr.Key] = 0
		}
	}
	return &risk.Input{Scores: scores}
}

func allMilestones() *valuation.BerkusInputs {
	return &valuation.BerkusInputs{
		WorkingPrototype:       true,
		QualityTeam:            true,
		QualityBoard:           true,
		StrategicRelationships: true,
		Sales:                  true,
	}
}

func TestRunApprovesCleanSAFE(t *testing.T) {
	notifier := &recordingNotifier{}
	runner := NewRunner(WithNotifier(notifier))

	res, err := runner.Run(context.Background(), Request{
		PitchID:    "pitch-1",
		Valuation:  valuation.Inputs{Berkus: allMilestones()},
		Risk:       lowRisk(),
		Instrument: deal.InstrumentSAFE,
		CheckSize:  500_000,
		PreMoney:   3_000_000,
	})
	require.NoError(t, err)

	assert.Equal(t, "pitch-1", res.PitchID)
	assert.NotEmpty(t, res.RunID)
	assert.Empty(t, res.StageFailures)
	require.Len(t, res.Valuations, 1)
	assert.Equal(t, deal.RecommendYes, res.Decision.Recommendation)
	assert.Equal(t, deal.StateApproved, res.Decision.State)
	require.NotNil(t, res.Decision.Investment)
	assert.InDelta(t, 3_500_000, res.Decision.Investment.PostMoneyValuation, 1e-6)
	assert.Contains(t, res.StageTimings, StageValuation)
	assert.Contains(t, res.StageTimings, StageRisk)

	require.NotNil(t, res.TermSheet)
	assert.Equal(t, deal.InstrumentSAFE, res.TermSheet.Instrument)
	assert.InDelta(t, 0.3, res.TermSheet.Investment.ConversionPrice, 1e-12)
	assert.Equal(t, []string{"Due diligence completion", "Legal documentation"}, res.TermSheet.Closing.ConditionsPrecedent)

	types := notifier.types()
	require.NotEmpty(t, types)
	assert.Equal(t, EventStarted, types[0])
	assert.Equal(t, EventDecision, types[len(types)-1])
}

func TestRunEquityWithPanelConditions(t *testing.T) {
	p := &scriptedPanel{reply: panel.Transcript{Conditions: []string{"Board seat for lead investor"}, Rationale: "Strong team"}}
	runner := NewRunner(WithPanel(p))

	res, err := runner.Run(context.Background(), Request{
		PitchID: "pitch-2",
		Metrics: &finance.Metrics{MRR: 100_000, CAC: 5_000, ChurnRate: 0.02, GrossMargin: 80},
		Valuation: valuation.Inputs{
			Scorecard: &valuation.ScorecardInputs{Scores: map[string]float64{"team": 8, "market": 7}},
			Berkus:    allMilestones(),
		},
		Investment: &deal.InvestmentScenario{
			PreMoneyValuation: 8_000_000,
			InvestmentAmount:  2_000_000,
			TargetOwnership:   0.2,
		},
		Risk:            lowRisk(),
		Instrument:      deal.InstrumentEquity,
		PreMoney:        8_000_000,
		TargetOwnership: 0.2,
	})
	require.NoError(t, err)

	assert.Empty(t, res.StageFailures)
	require.NotNil(t, res.UnitEconomics)
	assert.InDelta(t, 1_200_000, res.UnitEconomics.ARR, 1e-6)
	require.Len(t, res.Valuations, 2)
	assert.Equal(t, deal.MethodScorecard, res.Valuations[0].Method)

	require.NotNil(t, res.CapTable)
	require.Len(t, res.Waterfalls, 4)
	for _, w := range res.Waterfalls {
		assert.InDelta(t, w.ExitValue, w.TotalPaid(), 1e-3, w.Scenario)
	}

	assert.Equal(t, 1, p.calls)
	assert.Equal(t, "pitch-2", p.brief.PitchID)
	assert.InDelta(t, 10_000_000, p.brief.PostMoney, 1e-3)
	assert.Equal(t, deal.RecommendConditional, res.Decision.Recommendation)
	assert.Equal(t, deal.StateConditionallyApproved, res.Decision.State)
	assert.Contains(t, res.Decision.Conditions, "Board seat for lead investor")
	assert.Equal(t, "Strong team", res.Decision.Summary.RationaleExcerpt)

	require.NotNil(t, res.TermSheet)
	assert.Equal(t, res.CapTable.Summary.NewSharesIssued, res.TermSheet.Investment.SharesIssued)
	assert.Equal(t, res.Decision.Conditions, res.TermSheet.Closing.ConditionsPrecedent)
	assert.Contains(t, res.StageTimings, StageTermSheet)
}

func TestRunDraftsTermSheetWithCallerTerms(t *testing.T) {
	res, err := NewRunner().Run(context.Background(), Request{
		CompanyName: "Acme",
		Valuation:   valuation.Inputs{Berkus: allMilestones()},
		Investment: &deal.InvestmentScenario{
			PreMoneyValuation: 8_000_000,
			InvestmentAmount:  2_000_000,
			TargetOwnership:   0.2,
		},
		Risk:            lowRisk(),
		Instrument:      deal.InstrumentEquity,
		PreMoney:        8_000_000,
		TargetOwnership: 0.2,
		Terms: &termsheet.Input{
			InvestorName:         "Lead VC",
			BoardSeats:           2,
			ProtectiveProvisions: []string{"Sale of company"},
			ClosingDate:          "2026-12-15",
		},
	})
	require.NoError(t, err)

	require.NotNil(t, res.TermSheet)
	sheet := res.TermSheet
	assert.Equal(t, "Series A Term Sheet - Acme", sheet.Title)
	assert.Equal(t, "Lead VC", sheet.Investor)
	assert.Equal(t, 2, sheet.KeyTerms.BoardSeats)
	assert.Equal(t, []string{"Sale of company"}, sheet.KeyTerms.ProtectiveProvisions)
	assert.Equal(t, "2026-12-15", sheet.Closing.ClosingDate)
	assert.InDelta(t, 2_000_000, sheet.Investment.InvestmentAmount, 1e-6)
	assert.Equal(t, int64(2_500_000), sheet.Investment.SharesIssued)

	bad, err := NewRunner().Run(context.Background(), Request{
		Valuation:  valuation.Inputs{Berkus: allMilestones()},
		Risk:       lowRisk(),
		Instrument: deal.InstrumentSAFE,
		CheckSize:  500_000,
		PreMoney:   3_000_000,
		Terms:      &termsheet.Input{ClosingDate: "next week"},
	})
	require.NoError(t, err)
	assert.Equal(t, deal.RecommendYes, bad.Decision.Recommendation)
	assert.Nil(t, bad.TermSheet)
}

func TestRunRecordsStageFailureAndBlocks(t *testing.T) {
	bad := lowRisk()
	bad.Scores["security_risk"] = 7

	res, err := NewRunner().Run(context.Background(), Request{
		Valuation:  valuation.Inputs{Berkus: allMilestones()},
		Risk:       bad,
		Instrument: deal.InstrumentSAFE,
	})
	require.NoError(t, err)

	require.Len(t, res.StageFailures, 1)
	assert.Equal(t, StageRisk, res.StageFailures[0].Stage)
	assert.Nil(t, res.Risk)
	assert.Equal(t, deal.RecommendNo, res.Decision.Recommendation)
	assert.Equal(t, deal.StateBlocked, res.Decision.State)

	reasons := res.Decision.Gate.BlockingReasons
	require.Len(t, reasons, 2)
	assert.True(t, strings.HasPrefix(reasons[0], "risk stage failed: "), reasons[0])
	assert.Equal(t, "Risk assessment not completed", reasons[1])
	assert.Nil(t, res.TermSheet)
	assert.Equal(t, res.RunID, res.PitchID)
}

func TestRunRetriesTransientPanelFailures(t *testing.T) {
	p := &scriptedPanel{
		failures: []error{
			&panel.StatusError{Code: http.StatusServiceUnavailable},
			&panel.StatusError{Code: http.StatusTooManyRequests},
		},
		reply: panel.Transcript{Conditions: []string{"Audited financials before close"}},
	}
	runner := NewRunner(WithPanel(p), WithPanelBackoff(time.Millisecond))

	res, err := runner.Run(context.Background(), Request{
		Valuation:  valuation.Inputs{Berkus: allMilestones()},
		Risk:       lowRisk(),
		Instrument: deal.InstrumentSAFE,
		Conditions: []string{"Pro-rata rights"},
	})
	require.NoError(t, err)

	assert.Equal(t, 3, p.calls)
	assert.Equal(t, []string{"Pro-rata rights", "Audited financials before close"}, res.Decision.Conditions)
}

func TestRunFallsBackOnPermanentPanelFailure(t *testing.T) {
	p := &scriptedPanel{failures: []error{&panel.StatusError{Code: http.StatusBadRequest}}}
	runner := NewRunner(WithPanel(p), WithPanelBackoff(time.Millisecond))

	res, err := runner.Run(context.Background(), Request{
		Valuation:  valuation.Inputs{Berkus: allMilestones()},
		Risk:       lowRisk(),
		Instrument: deal.InstrumentSAFE,
		Conditions: []string{"Pro-rata rights"},
		Rationale:  "Analyst notes",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, p.calls)
	require.NotNil(t, res.Panel)
	assert.Equal(t, "request", res.Panel.Source)
	assert.Equal(t, []string{"Pro-rata rights"}, res.Decision.Conditions)
	assert.Equal(t, "Analyst notes", res.Decision.Summary.RationaleExcerpt)
}

func TestRunResolvesCompsFromLibrary(t *testing.T) {
	src := &staticComps{peers: []valuation.Comparable{
		{Name: "A", EnterpriseValue: 100_000_000, Revenue: 10_000_000, SimilarSize: true},
		{Name: "B", EnterpriseValue: 60_000_000, Revenue: 5_000_000, SimilarSize: true},
	}}
	runner := NewRunner(WithComps(src))

	res, err := runner.Run(context.Background(), Request{
		Sector:     "SaaS",
		Stage:      "seed",
		Geo:        "us",
		Metrics:    &finance.Metrics{ARR: 1_000_000},
		Valuation:  valuation.Inputs{Comps: &valuation.CompsInputs{}},
		Risk:       lowRisk(),
		Instrument: deal.InstrumentSAFE,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"SaaS/seed/us"}, src.asked)
	require.Len(t, res.Valuations, 1)
	assert.Equal(t, deal.MethodComps, res.Valuations[0].Method)
	assert.InDelta(t, 11_000_000, res.Valuations[0].Base, 1e-3)
}

func TestRunFallsBackToDefaultPercentiles(t *testing.T) {
	runner := NewRunner(WithComps(&staticComps{}))

	res, err := runner.Run(context.Background(), Request{
		Sector:     "fintech",
		Stage:      "seed",
		Geo:        "us",
		Valuation:  valuation.Inputs{Comps: &valuation.CompsInputs{Revenue: 1_000_000}},
		Risk:       lowRisk(),
		Instrument: deal.InstrumentSAFE,
	})
	require.NoError(t, err)
	require.Len(t, res.Valuations, 1)
	assert.InDelta(t, 20_000_000, res.Valuations[0].Base, 1e-3)
}

func TestRunRejectsInvalidTerms(t *testing.T) {
	_, err := NewRunner().Run(context.Background(), Request{CheckSize: -1})
	require.Error(t, err)
	assert.True(t, deal.IsCallerError(err))

	_, err = NewRunner().Run(context.Background(), Request{Instrument: "convertible"})
	require.Error(t, err)
	var invalid *deal.InvalidInputError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, "instrument", invalid.Field)
}

func TestRunHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewRunner().Run(ctx, Request{Valuation: valuation.Inputs{Berkus: allMilestones()}})
	assert.ErrorIs(t, err, context.Canceled)
}
