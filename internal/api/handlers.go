package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"deal-eval/backend/internal/captable"
	"deal-eval/backend/internal/deal"
	"deal-eval/backend/internal/decision"
	"deal-eval/backend/internal/finance"
	"deal-eval/backend/internal/pipeline"
	"deal-eval/backend/internal/risk"
	"deal-eval/backend/internal/termsheet"
	"deal-eval/backend/internal/valuation"
	"deal-eval/backend/internal/waterfall"
)

func (s *Server) handleValuation(c *gin.Context) {
	method, ok := deal.ParseMethod(c.Param("method"))
	if !ok {
		s.renderError(c, http.StatusBadRequest, fmt.Errorf("unknown valuation method: %s", c.Param("method")))
		return
	}

	var inputs valuation.Inputs
	switch method {
	case deal.MethodScorecard:
		in := valuation.ScorecardInputs{}
		if !s.bindJSON(c, &in) {
			return
		}
		inputs.Scorecard = &in
	case deal.MethodVC:
		in := valuation.DefaultVCInputs(0)
		if !s.bindJSON(c, &in) {
			return
		}
		inputs.VC = &in
	case deal.MethodComps:
		in := valuation.CompsInputs{}
		if !s.bindJSON(c, &in) {
			return
		}
		var src pipeline.CompsSource
		if s.comps != nil {
			src = s.comps
		}
		in = pipeline.ResolveComps(src, in)
		inputs.Comps = &in
	case deal.MethodBerkus:
		in := valuation.BerkusInputs{}
		if !s.bindJSON(c, &in) {
			return
		}
		inputs.Berkus = &in
	case deal.MethodRFS:
		in := valuation.RFSInputs{}
		if !s.bindJSON(c, &in) {
			return
		}
		inputs.RFS = &in
	}

	result, err := s.engine.Run(method, inputs)
	if err != nil {
		s.renderFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleCapTableSimulate(c *gin.Context) {
	var req SimulateRequest
	if !s.bindJSON(c, &req) {
		return
	}
	table := req.CapTable
	if len(table) == 0 {
		table = captable.DefaultTable()
	}
	result, err := captable.ApplyInvestment(table, req.Scenario)
	if err != nil {
		s.renderFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleCapTableCompare(c *gin.Context) {
	var req CompareRequest
	if !s.bindJSON(c, &req) {
		return
	}
	if len(req.Scenarios) == 0 {
		s.renderError(c, http.StatusBadRequest, fmt.Errorf("at least one scenario is required"))
		return
	}
	table := req.CapTable
	if len(table) == 0 {
		table = captable.DefaultTable()
	}
	impacts, err := captable.CompareScenarios(table, req.Scenarios)
	if err != nil {
		s.renderFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"scenarios": impacts})
}

func (s *Server) handleWaterfall(c *gin.Context) {
	var req WaterfallRequest
	if !s.bindJSON(c, &req) {
		return
	}
	if len(req.ExitValues) > 0 {
		results, err := waterfall.RunScenarios(req.CapTable, waterfall.ExitValues(req.ExitValues))
		if err != nil {
			s.renderFailure(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"scenarios": results})
		return
	}
	result, err := waterfall.Distribute(req.CapTable, req.ExitValue, req.LiquidationMultiple)
	if err != nil {
		s.renderFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleRiskAssess(c *gin.Context) {
	var in risk.Input
	if !s.bindJSON(c, &in) {
		return
	}
	report, err := risk.Assess(in)
	if err != nil {
		s.renderFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) handleDecision(c *gin.Context) {
	var in decision.Input
	if !s.bindJSON(c, &in) {
		return
	}
	result, err := s.gate.Evaluate(in)
	if err != nil {
		s.renderFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleUnitEconomics(c *gin.Context) {
	var in finance.Metrics
	if !s.bindJSON(c, &in) {
		return
	}
	result, err := finance.Compute(in)
	if err != nil {
		s.renderFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleMarketSize(c *gin.Context) {
	var in finance.MarketInputs
	if !s.bindJSON(c, &in) {
		return
	}
	result, err := finance.SizeMarket(in)
	if err != nil {
		s.renderFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleTermSheet(c *gin.Context) {
	var in termsheet.Input
	if !s.bindJSON(c, &in) {
		return
	}
	sheet, err := termsheet.Draft(in)
	if err != nil {
		s.renderFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, sheet)
}

func (s *Server) handleTermSheetCompare(c *gin.Context) {
	var req TermSheetCompareRequest
	if !s.bindJSON(c, &req) {
		return
	}
	if len(req.Scenarios) == 0 {
		s.renderError(c, http.StatusBadRequest, fmt.Errorf("at least one scenario is required"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"scenarios": termsheet.Compare(req.Scenarios)})
}
