package pipeline

import (
	"time"

	"deal-eval/backend/internal/deal"
	"deal-eval/backend/internal/finance"
	"deal-eval/backend/internal/panel"
	"deal-eval/backend/internal/risk"
	"deal-eval/backend/internal/termsheet"
	"deal-eval/backend/internal/valuation"
)

// Request is everything known about a pitch at evaluation time. Nil sections
// skip their stage; the gate then reports what is missing.
type Request struct {
	PitchID     string `json:"pitch_id"`
	CompanyName string `json:"company_name,omitempty"`
	Sector      string `json:"sector,omitempty"`
	Stage       string `json:"stage,omitempty"`
	Geo         string `json:"geo,omitempty"`

	Metrics *finance.Metrics      `json:"metrics,omitempty"`
	Market  *finance.MarketInputs `json:"market,omitempty"`

	Valuation  valuation.Inputs         `json:"valuation"`
	CapTable   deal.CapTable            `json:"cap_table,omitempty"`
	Investment *deal.InvestmentScenario `json:"investment,omitempty"`
	ExitValues []float64                `json:"exit_values,omitempty"`
	Risk       *risk.Input              `json:"risk,omitempty"`

	Instrument      deal.Instrument `json:"instrument,omitempty"`
	CheckSize       float64         `json:"check_size" validate:"gte=0"`
	PreMoney        float64         `json:"pre_money" validate:"gte=0"`
	TargetOwnership float64         `json:"target_ownership" validate:"gte=0,lt=1"`
	Conditions      []string        `json:"conditions,omitempty"`
	Rationale       string          `json:"rationale,omitempty"`

	// Terms adds governance terms to the drafted term sheet; economics come
	// from the decision.
	Terms *termsheet.Input `json:"terms,omitempty" validate:"-"`
}

// Result is the full record of one evaluation run.
type Result struct {
	RunID            string                 `json:"run_id"`
	PitchID          string                 `json:"pitch_id"`
	CompanyName      string                 `json:"company_name,omitempty"`
	Valuations       []deal.ValuationResult `json:"valuations"`
	CapTable         *deal.CapTableResult   `json:"cap_table,omitempty"`
	Waterfalls       []deal.WaterfallResult `json:"waterfalls,omitempty"`
	Risk             *deal.RiskReport       `json:"risk,omitempty"`
	UnitEconomics    *finance.UnitEconomics `json:"unit_economics,omitempty"`
	Market           *finance.MarketSize    `json:"market,omitempty"`
	Panel            *panel.Transcript      `json:"panel,omitempty"`
	Decision         deal.Decision          `json:"decision"`
	TermSheet        *termsheet.TermSheet   `json:"term_sheet,omitempty"`
	StageFailures    []deal.StageFailure    `json:"stage_failures,omitempty"`
	StageTimings     map[string]int64       `json:"stage_timings_ms"`
	ProcessingTimeMs int64                  `json:"processing_time_ms"`
	CreatedAt        time.Time              `json:"created_at"`
}

// Event is a progress notification for a run.
type Event struct {
	Type           string              `json:"type"`
	RunID          string              `json:"run_id"`
	PitchID        string              `json:"pitch_id,omitempty"`
	Stage          string              `json:"stage,omitempty"`
	Status         string              `json:"status,omitempty"`
	DurationMs     int64               `json:"duration_ms,omitempty"`
	Message        string              `json:"message,omitempty"`
	Recommendation deal.Recommendation `json:"recommendation,omitempty"`
	Timestamp      time.Time           `json:"timestamp"`
}

// Event types.
const (
	EventStarted  = "started"
	EventStage    = "stage"
	EventDecision = "decision"
	EventError    = "error"
)

// Notifier receives run progress.
type Notifier interface {
	Publish(Event)
}

// CompsSource resolves peer companies when a comps request names only a peer group.
type CompsSource interface {
	Comparables(sector, stage, geo string) ([]valuation.Comparable, error)
}
