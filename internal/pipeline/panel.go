package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"deal-eval/backend/internal/deal"
	"deal-eval/backend/internal/panel"
	"deal-eval/backend/internal/util"
)

// deliberate asks the panel for conditions. A disabled or failing panel yields
// an empty transcript so only the request's own conditions reach the gate.
func (r *Runner) deliberate(ctx context.Context, rn *run) panel.Transcript {
	if r.panel == nil || !r.panel.Enabled() {
		return panel.Transcript{Source: "request"}
	}

	timer := util.StartTimer()
	transcript, err := r.callPanelWithRetry(ctx, buildBrief(rn))
	elapsed := timer.ElapsedMs()
	rn.timing(StagePanel, elapsed)

	if err != nil {
		panelCalls.WithLabelValues("fallback").Inc()
		logrus.WithError(err).WithField("run_id", rn.id).Warn("panel unavailable, using supplied conditions")
		r.publish(Event{Type: EventStage, RunID: rn.id, PitchID: rn.result.PitchID, Stage: StagePanel, Status: "fallback", DurationMs: elapsed, Message: err.Error()})
		return panel.Transcript{Source: "request"}
	}

	panelCalls.WithLabelValues("remote").Inc()
	logrus.WithFields(logrus.Fields{
		"run_id":      rn.id,
		"conditions":  len(transcript.Conditions),
		"turns":       len(transcript.Turns),
		"duration_ms": elapsed,
	}).Debug("panel deliberation completed")
	r.publish(Event{Type: EventStage, RunID: rn.id, PitchID: rn.result.PitchID, Stage: StagePanel, Status: "ok", DurationMs: elapsed})
	return transcript
}

func (r *Runner) callPanelWithRetry(ctx context.Context, brief panel.Brief) (panel.Transcript, error) {
	delay := r.backoff
	var lastErr error
	for attempt := 0; attempt < panelMaxRetries; attempt++ {
		transcript, err := r.panel.Deliberate(ctx, brief)
		if err == nil {
			return transcript, nil
		}

		lastErr = err
		if ctx.Err() != nil {
			return panel.Transcript{}, ctx.Err()
		}

		if !panel.Retryable(err) || errors.Is(err, panel.ErrDisabled) {
			break
		}
		panelCalls.WithLabelValues("retried").Inc()

		select {
		case <-ctx.Done():
			return panel.Transcript{}, ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
		if delay > panelMaxBackoff {
			delay = panelMaxBackoff
		}
	}

	return panel.Transcript{}, lastErr
}

func buildBrief(rn *run) panel.Brief {
	res := rn.result
	brief := panel.Brief{
		PitchID:       res.PitchID,
		CompanyName:   rn.req.CompanyName,
		Sector:        rn.req.Sector,
		Stage:         rn.req.Stage,
		Instrument:    rn.req.Instrument,
		Valuations:    res.Valuations,
		MeanValuation: deal.MeanBase(res.Valuations),
	}
	if res.Risk != nil {
		brief.OverallRisk = res.Risk.OverallScore
		brief.OverallSeverity = res.Risk.OverallSeverity
		for i, entry := range res.Risk.TopRisks {
			if i == topRisksInBrief {
				break
			}
			brief.TopRisks = append(brief.TopRisks, entry.Key)
		}
	}
	if res.CapTable != nil {
		brief.PostMoney = res.CapTable.Summary.PostMoneyValuation
	}
	return brief
}
