package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// stageDuration measures each pipeline stage.
	// Labels: stage, status (ok, failed, skipped)
	stageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "deal_eval",
		Subsystem: "pipeline",
		Name:      "stage_duration_seconds",
		Help:      "Duration of evaluation pipeline stages in seconds",
		Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 15},
	}, []string{"stage", "status"})

	// decisionsTotal counts gate outcomes by recommendation.
	decisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "deal_eval",
		Subsystem: "pipeline",
		Name:      "decisions_total",
		Help:      "Total investment decisions by recommendation",
	}, []string{"recommendation"})

	// panelCalls counts panel deliberations.
	// Labels: outcome (remote, retried, fallback)
	panelCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "deal_eval",
		Subsystem: "panel",
		Name:      "calls_total",
		Help:      "Total panel deliberation attempts by outcome",
	}, []string{"outcome"})
)
