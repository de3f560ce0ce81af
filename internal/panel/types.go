package panel

import (
	"context"
	"errors"
	"fmt"

	"deal-eval/backend/internal/deal"
)

// Panel produces a debate transcript and the investment conditions drawn from it.
type Panel interface {
	Enabled() bool
	Deliberate(ctx context.Context, brief Brief) (Transcript, error)
}

var ErrDisabled = errors.New("panel disabled")

// Brief is what the panel is told about the deal.
type Brief struct {
	PitchID         string                 `json:"pitch_id"`
	CompanyName     string                 `json:"company_name,omitempty"`
	Sector          string                 `json:"sector,omitempty"`
	Stage           string                 `json:"stage,omitempty"`
	Instrument      deal.Instrument        `json:"instrument"`
	Valuations      []deal.ValuationResult `json:"valuations"`
	MeanValuation   float64                `json:"mean_valuation"`
	OverallRisk     float64                `json:"overall_risk_score"`
	OverallSeverity deal.Severity          `json:"overall_severity,omitempty"`
	TopRisks        []string               `json:"top_risks,omitempty"`
	PostMoney       float64                `json:"post_money,omitempty"`
}

// Turn is one statement in the debate.
type Turn struct {
	Speaker   string `json:"speaker"`
	AgentType string `json:"agent_type,omitempty"`
	Content   string `json:"content"`
}

// Transcript is the panel's output. Only Conditions and Rationale reach the decision.
type Transcript struct {
	Turns      []Turn   `json:"transcript"`
	Conditions []string `json:"conditions"`
	Rationale  string   `json:"rationale,omitempty"`
	Source     string   `json:"source,omitempty"`
}

// StatusError is a non-200 response from the panel service.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("panel status %d", e.Code)
	}
	return fmt.Sprintf("panel status %d: %s", e.Code, e.Body)
}
