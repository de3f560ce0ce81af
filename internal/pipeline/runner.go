// Package pipeline runs a pitch through valuation, cap table, waterfall and
// risk in parallel, asks the panel for conditions, and gates the result.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"deal-eval/backend/internal/captable"
	"deal-eval/backend/internal/deal"
	"deal-eval/backend/internal/decision"
	"deal-eval/backend/internal/finance"
	"deal-eval/backend/internal/panel"
	"deal-eval/backend/internal/risk"
	"deal-eval/backend/internal/util"
	"deal-eval/backend/internal/valuation"
	"deal-eval/backend/internal/waterfall"
)

const (
	defaultStageTimeout = 30 * time.Second
	panelMaxRetries     = 3
	panelInitialBackoff = 2 * time.Second
	panelMaxBackoff     = 10 * time.Second
	topRisksInBrief     = 5
)

// Stage names used in failures, timings and metrics.
const (
	StageFinance   = "finance"
	StageMarket    = "market"
	StageValuation = "valuation"
	StageCapTable  = "cap_table"
	StageWaterfall = "waterfall"
	StageRisk      = "risk"
	StagePanel     = "panel"
	StageDecision  = "decision"
	StageTermSheet = "term_sheet"
)

// Runner evaluates deals. It is safe for concurrent use.
type Runner struct {
	engine       *valuation.Engine
	gate         *decision.Gate
	comps        CompsSource
	panel        panel.Panel
	notifier     Notifier
	stageTimeout time.Duration
	backoff      time.Duration
}

// Option configures a Runner.
type Option func(*Runner)

// WithComps sets the peer library used for comps requests without peers.
func WithComps(src CompsSource) Option { return func(r *Runner) { r.comps = src } }

// WithPanel sets the panel collaborator.
func WithPanel(p panel.Panel) Option { return func(r *Runner) { r.panel = p } }

// WithNotifier sets the progress sink.
func WithNotifier(n Notifier) Option { return func(r *Runner) { r.notifier = n } }

// WithStageTimeout bounds each stage's wall-clock time.
func WithStageTimeout(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.stageTimeout = d
		}
	}
}

// WithPanelBackoff sets the initial retry delay for transient panel failures.
func WithPanelBackoff(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.backoff = d
		}
	}
}

// WithGate replaces the default decision gate.
func WithGate(g *decision.Gate) Option {
	return func(r *Runner) {
		if g != nil {
			r.gate = g
		}
	}
}

// NewRunner constructs a runner with default engine and gate.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		engine:       valuation.NewEngine(),
		gate:         decision.NewGate(),
		stageTimeout: defaultStageTimeout,
		backoff:      panelInitialBackoff,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type run struct {
	id      string
	req     Request
	mu      sync.Mutex
	result  Result
	failure []deal.StageFailure
}

func (rn *run) fail(stage string, err error) {
	rn.mu.Lock()
	rn.failure = append(rn.failure, deal.StageFailure{Stage: stage, Error: err.Error()})
	rn.mu.Unlock()
}

func (rn *run) timing(stage string, ms int64) {
	rn.mu.Lock()
	rn.result.StageTimings[stage] = ms
	rn.mu.Unlock()
}

// Run evaluates one pitch. Stage failures are recorded on the result and
// block the decision; only invalid decision terms or cancellation return an error.
func (r *Runner) Run(ctx context.Context, req Request) (Result, error) {
	if err := deal.ValidateStruct(req); err != nil {
		return Result{}, err
	}
	if err := deal.RequireFinite("decision_terms", req.CheckSize, req.PreMoney, req.TargetOwnership); err != nil {
		return Result{}, err
	}
	if req.Instrument != "" {
		if _, ok := deal.ParseInstrument(string(req.Instrument)); !ok {
			return Result{}, deal.NewInvalidInput("instrument", req.Instrument, "must be SAFE or Equity")
		}
	}

	timer := util.StartTimer()
	rn := &run{
		id:  uuid.NewString(),
		req: req,
		result: Result{
			PitchID:      req.PitchID,
			CompanyName:  req.CompanyName,
			StageTimings: make(map[string]int64),
			CreatedAt:    time.Now().UTC(),
		},
	}
	if rn.result.PitchID == "" {
		rn.result.PitchID = rn.id
	}
	rn.result.RunID = rn.id
	log := logrus.WithFields(logrus.Fields{"run_id": rn.id, "pitch_id": rn.result.PitchID})
	log.Info("evaluation started")
	r.publish(Event{Type: EventStarted, RunID: rn.id, PitchID: rn.result.PitchID})

	r.runFinance(ctx, rn)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r.runValuation(gctx, rn)
		return nil
	})
	g.Go(func() error {
		r.runCapTable(gctx, rn)
		return nil
	})
	g.Go(func() error {
		r.runRisk(gctx, rn)
		return nil
	})
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		r.publish(Event{Type: EventError, RunID: rn.id, PitchID: rn.result.PitchID, Message: err.Error()})
		return Result{}, err
	}

	transcript := r.deliberate(ctx, rn)
	rn.result.Panel = &transcript

	conditions := append(append([]string(nil), req.Conditions...), transcript.Conditions...)
	rationale := transcript.Rationale
	if rationale == "" {
		rationale = req.Rationale
	}

	stageTimer := util.StartTimer()
	result, err := r.gate.Evaluate(decision.Input{
		Valuations:      rn.result.Valuations,
		Risk:            rn.result.Risk,
		CapTable:        rn.result.CapTable,
		Instrument:      req.Instrument,
		CheckSize:       req.CheckSize,
		PreMoney:        req.PreMoney,
		TargetOwnership: req.TargetOwnership,
		Conditions:      conditions,
		Rationale:       rationale,
		StageFailures:   rn.failure,
	})
	rn.timing(StageDecision, stageTimer.ElapsedMs())
	if err != nil {
		log.WithError(err).Error("decision gate rejected terms")
		r.publish(Event{Type: EventError, RunID: rn.id, PitchID: rn.result.PitchID, Message: err.Error()})
		return Result{}, fmt.Errorf("decision: %w", err)
	}

	rn.result.Decision = result
	rn.result.StageFailures = rn.failure
	r.draftTermSheet(rn, log)
	rn.result.ProcessingTimeMs = timer.ElapsedMs()
	decisionsTotal.WithLabelValues(string(result.Recommendation)).Inc()

	log.WithFields(logrus.Fields{
		"recommendation": result.Recommendation,
		"state":          result.State,
		"confidence":     result.Confidence,
		"blocking":       len(result.Gate.BlockingReasons),
		"duration_ms":    rn.result.ProcessingTimeMs,
	}).Info("evaluation completed")
	r.publish(Event{
		Type:           EventDecision,
		RunID:          rn.id,
		PitchID:        rn.result.PitchID,
		Recommendation: result.Recommendation,
		DurationMs:     rn.result.ProcessingTimeMs,
	})
	return rn.result, nil
}

func (r *Runner) runFinance(ctx context.Context, rn *run) {
	if m := rn.req.Metrics; m != nil {
		metrics := *m
		ue, err := runStage(ctx, r, rn, StageFinance, func() (finance.UnitEconomics, error) {
			return finance.Compute(metrics)
		})
		if err == nil {
			rn.result.UnitEconomics = &ue
		}
	}
	if m := rn.req.Market; m != nil {
		inputs := *m
		size, err := runStage(ctx, r, rn, StageMarket, func() (finance.MarketSize, error) {
			return finance.SizeMarket(inputs)
		})
		if err == nil {
			rn.result.Market = &size
		}
	}
}

func (r *Runner) runValuation(ctx context.Context, rn *run) {
	inputs := r.resolveValuationInputs(rn)
	methods := inputs.Requested()
	if len(methods) == 0 {
		r.skip(rn, StageValuation)
		return
	}
	results, err := runStage(ctx, r, rn, StageValuation, func() ([]deal.ValuationResult, error) {
		out := make([]deal.ValuationResult, 0, len(methods))
		var errs []error
		for _, m := range methods {
			res, err := r.engine.Run(m, inputs)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", m, err))
				continue
			}
			out = append(out, res)
		}
		if len(errs) > 0 {
			return out, errors.Join(errs...)
		}
		return out, nil
	})
	rn.mu.Lock()
	rn.result.Valuations = results
	rn.mu.Unlock()
	if err != nil && len(results) > 0 {
		logrus.WithError(err).WithField("run_id", rn.id).Warn("some valuation methods failed")
	}
}

// resolveValuationInputs fills ARR and comps revenue from pitch metrics and
// resolves a comps peer group through the library. Request pointers are not mutated.
func (r *Runner) resolveValuationInputs(rn *run) valuation.Inputs {
	in := rn.req.Valuation
	arr := 0.0
	if rn.req.Metrics != nil {
		arr = rn.req.Metrics.Normalize().ARR
	}

	if in.Scorecard != nil {
		sc := *in.Scorecard
		if sc.ARR == 0 {
			sc.ARR = arr
		}
		in.Scorecard = &sc
	}
	if in.Comps != nil {
		c := *in.Comps
		if c.Revenue == 0 {
			c.Revenue = arr
		}
		if c.Sector == "" {
			c.Sector = rn.req.Sector
		}
		if c.Stage == "" {
			c.Stage = rn.req.Stage
		}
		if c.Geo == "" {
			c.Geo = rn.req.Geo
		}
		c = ResolveComps(r.comps, c)
		in.Comps = &c
	}
	return in
}

// ResolveComps fills an empty peer set from the library, then from the
// built-in percentile multiples for the sector, stage and geo.
func ResolveComps(src CompsSource, c valuation.CompsInputs) valuation.CompsInputs {
	if len(c.Comparables) > 0 || c.Percentiles != nil {
		return c
	}
	if src != nil && c.Sector != "" {
		peers, err := src.Comparables(c.Sector, c.Stage, c.Geo)
		if err != nil {
			logrus.WithError(err).WithField("sector", c.Sector).Warn("comparables lookup failed")
		}
		c.Comparables = peers
	}
	if len(c.Comparables) == 0 {
		p, _ := valuation.DefaultPercentiles(c.Sector, c.Stage, c.Geo)
		c.Percentiles = &p
	}
	return c
}

func (r *Runner) runCapTable(ctx context.Context, rn *run) {
	if rn.req.Investment == nil {
		r.skip(rn, StageCapTable)
		return
	}
	pre := rn.req.CapTable
	if len(pre) == 0 {
		pre = captable.DefaultTable()
	}
	pre = append(deal.CapTable(nil), pre...)
	scenario := *rn.req.Investment

	result, err := runStage(ctx, r, rn, StageCapTable, func() (deal.CapTableResult, error) {
		return captable.ApplyInvestment(pre, scenario)
	})
	if err != nil {
		return
	}
	rn.mu.Lock()
	rn.result.CapTable = &result
	rn.mu.Unlock()

	scenarios := waterfall.DefaultExitScenarios(result.Summary.PostMoneyValuation)
	if len(rn.req.ExitValues) > 0 {
		scenarios = waterfall.ExitValues(rn.req.ExitValues)
	}
	post := result.PostTable
	waterfalls, err := runStage(ctx, r, rn, StageWaterfall, func() ([]deal.WaterfallResult, error) {
		return waterfall.RunScenarios(post, scenarios)
	})
	if err != nil {
		return
	}
	rn.mu.Lock()
	rn.result.Waterfalls = waterfalls
	rn.mu.Unlock()
}

func (r *Runner) runRisk(ctx context.Context, rn *run) {
	if rn.req.Risk == nil {
		r.skip(rn, StageRisk)
		return
	}
	input := *rn.req.Risk
	report, err := runStage(ctx, r, rn, StageRisk, func() (deal.RiskReport, error) {
		return risk.Assess(input)
	})
	if err != nil {
		return
	}
	rn.mu.Lock()
	rn.result.Risk = &report
	rn.mu.Unlock()
}

type stageOutcome[T any] struct {
	value T
	err   error
}

// runStage executes fn under the stage timeout, records failure, timing and
// metrics, and publishes a stage event. An abandoned fn finishes in the background.
func runStage[T any](ctx context.Context, r *Runner, rn *run, stage string, fn func() (T, error)) (T, error) {
	timer := util.StartTimer()
	stageCtx, cancel := context.WithTimeout(ctx, r.stageTimeout)
	defer cancel()

	done := make(chan stageOutcome[T], 1)
	go func() {
		v, err := fn()
		done <- stageOutcome[T]{value: v, err: err}
	}()

	var out stageOutcome[T]
	select {
	case out = <-done:
	case <-stageCtx.Done():
		out.err = fmt.Errorf("stage timed out after %s: %w", r.stageTimeout, stageCtx.Err())
	}

	took := timer.Elapsed()
	elapsed := took.Milliseconds()
	status := "ok"
	if out.err != nil {
		status = "failed"
		rn.fail(stage, out.err)
	}
	rn.timing(stage, elapsed)
	stageDuration.WithLabelValues(stage, status).Observe(took.Seconds())

	entry := logrus.WithFields(logrus.Fields{"run_id": rn.id, "stage": stage, "duration_ms": elapsed})
	if out.err != nil {
		entry.WithError(out.err).Warn("stage failed")
	} else {
		entry.Debug("stage completed")
	}
	event := Event{Type: EventStage, RunID: rn.id, PitchID: rn.result.PitchID, Stage: stage, Status: status, DurationMs: elapsed}
	if out.err != nil {
		event.Message = out.err.Error()
	}
	r.publish(event)
	return out.value, out.err
}

func (r *Runner) skip(rn *run, stage string) {
	stageDuration.WithLabelValues(stage, "skipped").Observe(0)
	r.publish(Event{Type: EventStage, RunID: rn.id, PitchID: rn.result.PitchID, Stage: stage, Status: "skipped"})
}

func (r *Runner) publish(event Event) {
	if r.notifier == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	r.notifier.Publish(event)
}
