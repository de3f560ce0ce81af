package api

import (
	"math"
	"time"

	"deal-eval/backend/internal/captable"
	"deal-eval/backend/internal/deal"
	"deal-eval/backend/internal/pipeline"
	"deal-eval/backend/internal/store"
	"deal-eval/backend/internal/termsheet"
)

// SimulateRequest applies one investment to a cap table. An empty table uses the default.
type SimulateRequest struct {
	CapTable deal.CapTable           `json:"cap_table"`
	Scenario deal.InvestmentScenario `json:"scenario"`
}

// CompareRequest applies several investments to the same cap table.
type CompareRequest struct {
	CapTable  deal.CapTable            `json:"cap_table"`
	Scenarios []captable.NamedScenario `json:"scenarios"`
}

// WaterfallRequest distributes one exit value, or each of ExitValues when given.
type WaterfallRequest struct {
	CapTable            deal.CapTable `json:"cap_table"`
	ExitValue           float64       `json:"exit_value"`
	LiquidationMultiple float64       `json:"liquidation_multiple"`
	ExitValues          []float64     `json:"exit_values,omitempty"`
}

// TermSheetCompareRequest drafts several term sheet scenarios side by side.
type TermSheetCompareRequest struct {
	Scenarios []termsheet.Input `json:"scenarios"`
}

// EvaluationDTO is the API representation for a persisted evaluation.
type EvaluationDTO struct {
	ID               string    `json:"id"`
	PitchID          string    `json:"pitch_id"`
	CompanyName      string    `json:"company_name"`
	Recommendation   string    `json:"recommendation"`
	State            string    `json:"state"`
	Instrument       string    `json:"instrument"`
	Confidence       float64   `json:"confidence"`
	OverallRiskScore float64   `json:"overall_risk_score"`
	OverallSeverity  string    `json:"overall_severity"`
	MeanValuation    float64   `json:"mean_valuation"`
	CheckSize        float64   `json:"check_size"`
	PostMoney        float64   `json:"post_money"`
	BlockingReasons  []string  `json:"blocking_reasons"`
	ProcessingTimeMs int64     `json:"processing_time_ms"`
	CreatedAt        time.Time `json:"created_at"`
}

// EvaluationsResponse is the paginated list of evaluations.
type EvaluationsResponse struct {
	Items []EvaluationDTO `json:"items"`
	Total int64           `json:"total"`
}

// EvaluationDetail pairs the stored summary with the full run document.
type EvaluationDetail struct {
	Evaluation EvaluationDTO   `json:"evaluation"`
	Result     pipeline.Result `json:"result"`
}

// FromModel converts a store.Evaluation into the DTO representation.
func FromModel(e store.Evaluation) EvaluationDTO {
	reasons := e.BlockingReasons()
	if reasons == nil {
		reasons = []string{}
	}
	return EvaluationDTO{
		ID:               e.ID,
		PitchID:          e.PitchID,
		CompanyName:      e.CompanyName,
		Recommendation:   e.Recommendation,
		State:            e.State,
		Instrument:       e.Instrument,
		Confidence:       round2(e.Confidence),
		OverallRiskScore: round2(e.OverallRiskScore),
		OverallSeverity:  e.OverallSeverity,
		MeanValuation:    round2(e.MeanValuation),
		CheckSize:        round2(e.CheckSize),
		PostMoney:        round2(e.PostMoney),
		BlockingReasons:  reasons,
		ProcessingTimeMs: e.ProcessingTimeMs,
		CreatedAt:        e.CreatedAt,
	}
}

// ToModel flattens a pipeline result into its storage row.
func ToModel(res pipeline.Result) (store.Evaluation, error) {
	row := store.Evaluation{
		ID:               res.RunID,
		PitchID:          res.PitchID,
		CompanyName:      res.CompanyName,
		Recommendation:   string(res.Decision.Recommendation),
		State:            string(res.Decision.State),
		Confidence:       res.Decision.Confidence,
		MeanValuation:    deal.MeanBase(res.Valuations),
		ProcessingTimeMs: res.ProcessingTimeMs,
		CreatedAt:        res.CreatedAt,
	}
	if res.Risk != nil {
		row.OverallRiskScore = res.Risk.OverallScore
		row.OverallSeverity = string(res.Risk.OverallSeverity)
	}
	if inv := res.Decision.Investment; inv != nil {
		row.Instrument = string(inv.Instrument)
		row.CheckSize = inv.CheckSize
		row.PostMoney = inv.PostMoneyValuation
	}
	row.SetBlockingReasons(res.Decision.Gate.BlockingReasons)
	if err := row.SetResult(res); err != nil {
		return store.Evaluation{}, err
	}
	return row, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
