package store

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Evaluation is one pipeline run persisted for querying/exporting.
type Evaluation struct {
	ID                  string `gorm:"primaryKey;size:36"`
	PitchID             string `gorm:"size:128;index"`
	CompanyName         string `gorm:"size:255"`
	Recommendation      string `gorm:"size:16;index"`
	State               string `gorm:"size:32;index"`
	Instrument          string `gorm:"size:16"`
	Confidence          float64
	OverallRiskScore    float64
	OverallSeverity     string `gorm:"size:16"`
	MeanValuation       float64
	CheckSize           float64
	PostMoney           float64
	BlockingReasonsJSON string `gorm:"type:text"`
	ResultJSON          string `gorm:"type:text"`
	ProcessingTimeMs    int64
	CreatedAt           time.Time `gorm:"autoCreateTime"`
}

// SetBlockingReasons persists the gate's blocking reasons as JSON.
func (e *Evaluation) SetBlockingReasons(reasons []string) {
	if reasons == nil {
		e.BlockingReasonsJSON = "[]"
		return
	}
	payload, _ := json.Marshal(reasons)
	e.BlockingReasonsJSON = string(payload)
}

// BlockingReasons returns the decoded blocking reasons.
func (e *Evaluation) BlockingReasons() []string {
	if strings.TrimSpace(e.BlockingReasonsJSON) == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(e.BlockingReasonsJSON), &out); err != nil {
		return nil
	}
	return out
}

// SetResult stores the full pipeline result document.
func (e *Evaluation) SetResult(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode evaluation result: %w", err)
	}
	e.ResultJSON = string(payload)
	return nil
}

// DecodeResult unmarshals the stored result document into v.
func (e *Evaluation) DecodeResult(v any) error {
	if strings.TrimSpace(e.ResultJSON) == "" {
		return fmt.Errorf("evaluation %s has no stored result", e.ID)
	}
	if err := json.Unmarshal([]byte(e.ResultJSON), v); err != nil {
		return fmt.Errorf("decode evaluation result: %w", err)
	}
	return nil
}

// Comparable is a peer company in the comparables library.
type Comparable struct {
	ID              uint   `gorm:"primaryKey"`
	Name            string `gorm:"size:255"`
	Sector          string `gorm:"size:64;index"`
	Stage           string `gorm:"size:64;index"`
	Geo             string `gorm:"size:64;index"`
	EnterpriseValue float64
	Revenue         float64
	SimilarSize     bool
	CreatedAt       time.Time `gorm:"autoCreateTime"`
}
