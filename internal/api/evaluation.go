package api

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"deal-eval/backend/internal/deal"
	"deal-eval/backend/internal/pipeline"
	"deal-eval/backend/internal/store"
)

const defaultPageSize = 50

var riskCSVHeaders = []string{"Category", "Risk", "Description", "Severity", "Likelihood", "Score", "Weight", "Weighted Score", "Mitigation", "Owner"}

func (s *Server) handleCreateEvaluation(c *gin.Context) {
	var req pipeline.Request
	if !s.bindJSON(c, &req) {
		return
	}

	result, err := s.runner.Run(c.Request.Context(), req)
	if err != nil {
		s.renderFailure(c, err)
		return
	}

	row, err := ToModel(result)
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	if err := s.db.SaveEvaluation(&row); err != nil {
		logrus.WithError(err).WithField("run_id", result.RunID).Error("persist evaluation")
		s.renderError(c, http.StatusInternalServerError, fmt.Errorf("persist evaluation: %w", err))
		return
	}
	c.JSON(http.StatusCreated, EvaluationDetail{Evaluation: FromModel(row), Result: result})
}

func (s *Server) handleListEvaluations(c *gin.Context) {
	page, _ := strconv.Atoi(c.Query("page"))
	if page < 0 {
		page = 0
	}
	pageSize, _ := strconv.Atoi(c.Query("pageSize"))
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	rows, total, err := s.db.ListEvaluations(store.EvaluationQuery{
		Query:          strings.TrimSpace(c.Query("q")),
		PitchID:        strings.TrimSpace(c.Query("pitch_id")),
		Recommendation: strings.TrimSpace(c.Query("recommendation")),
		State:          strings.TrimSpace(c.Query("state")),
		Sort:           strings.TrimSpace(c.Query("sort")),
		Offset:         page * pageSize,
		Limit:          pageSize,
	})
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	dtos := make([]EvaluationDTO, 0, len(rows))
	for _, row := range rows {
		dtos = append(dtos, FromModel(row))
	}
	c.JSON(http.StatusOK, EvaluationsResponse{Items: dtos, Total: total})
}

func (s *Server) handleGetEvaluation(c *gin.Context) {
	row, result, ok := s.loadEvaluation(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, EvaluationDetail{Evaluation: FromModel(*row), Result: result})
}

func (s *Server) handleExportRisksCSV(c *gin.Context) {
	row, result, ok := s.loadEvaluation(c)
	if !ok {
		return
	}
	if result.Risk == nil {
		s.renderError(c, http.StatusNotFound, errors.New("evaluation has no risk assessment"))
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=risk-register-%s.csv", row.ID))
	c.Header("Content-Type", "text/csv")

	if err := writeRiskRegister(c.Writer, result.Risk); err != nil {
		logrus.WithError(err).WithField("evaluation_id", row.ID).Error("write risk register")
	}
}

// writeRiskRegister streams the register rows and reports any write or flush failure.
func writeRiskRegister(w io.Writer, report *deal.RiskReport) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(riskCSVHeaders); err != nil {
		return err
	}
	for _, entry := range report.Entries() {
		line := []string{
			string(entry.Category),
			entry.Key,
			entry.Description,
			string(entry.Severity),
			entry.Likelihood,
			strconv.Itoa(entry.Score),
			fmt.Sprintf("%.2f", entry.Weight),
			fmt.Sprintf("%.2f", entry.WeightedScore),
			entry.Mitigation,
			entry.OwnerRole,
		}
		if err := writer.Write(line); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func (s *Server) handleExportJSON(c *gin.Context) {
	row, result, ok := s.loadEvaluation(c)
	if !ok {
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=evaluation-%s.json", row.ID))
	c.JSON(http.StatusOK, result)
}

func (s *Server) loadEvaluation(c *gin.Context) (*store.Evaluation, pipeline.Result, bool) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		s.renderError(c, http.StatusBadRequest, errors.New("evaluation id required"))
		return nil, pipeline.Result{}, false
	}
	row, err := s.db.GetEvaluation(id)
	if err != nil {
		s.renderFailure(c, err)
		return nil, pipeline.Result{}, false
	}
	var result pipeline.Result
	if err := row.DecodeResult(&result); err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return nil, pipeline.Result{}, false
	}
	return row, result, true
}

func (s *Server) handleCompsUpload(c *gin.Context) {
	if s.comps == nil {
		s.renderError(c, http.StatusServiceUnavailable, errors.New("comparables library unavailable"))
		return
	}
	header, err := c.FormFile("file")
	if err != nil {
		s.renderError(c, http.StatusBadRequest, fmt.Errorf("file is required: %w", err))
		return
	}
	src, err := header.Open()
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	defer src.Close()

	count, err := s.comps.LoadFromReader(src)
	if err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}
	logrus.WithFields(logrus.Fields{"file": header.Filename, "comparables": count}).Info("comparables library replaced")
	c.JSON(http.StatusOK, gin.H{"loaded": count, "total": s.comps.Count()})
}

func (s *Server) handleListComps(c *gin.Context) {
	if s.comps == nil {
		s.renderError(c, http.StatusServiceUnavailable, errors.New("comparables library unavailable"))
		return
	}
	sector := strings.TrimSpace(c.Query("sector"))
	if sector == "" {
		c.JSON(http.StatusOK, gin.H{"total": s.comps.Count()})
		return
	}
	peers, err := s.comps.Comparables(sector, c.Query("stage"), c.Query("geo"))
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": peers, "total": len(peers)})
}
