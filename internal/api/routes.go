package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"deal-eval/backend/internal/comps"
	"deal-eval/backend/internal/deal"
	"deal-eval/backend/internal/decision"
	"deal-eval/backend/internal/panel"
	"deal-eval/backend/internal/pipeline"
	"deal-eval/backend/internal/store"
	"deal-eval/backend/internal/valuation"
)

// Config defines server dependencies.
type Config struct {
	DBPath         string
	CompsPath      string
	AllowedOrigins []string
	SilentDB       bool
	PanelConfig    panel.Config
	DisablePanel   bool
	StageTimeout   time.Duration
}

// EvaluationStore persists pipeline runs; *store.Database satisfies it.
type EvaluationStore interface {
	SaveEvaluation(e *store.Evaluation) error
	GetEvaluation(id string) (*store.Evaluation, error)
	ListEvaluations(opts store.EvaluationQuery) ([]store.Evaluation, int64, error)
}

// Server wires HTTP handlers with persistence and the evaluation pipeline.
type Server struct {
	db             EvaluationStore
	closer         io.Closer
	comps          *comps.Service
	compsPath      string
	engine         *valuation.Engine
	gate           *decision.Gate
	runner         *pipeline.Runner
	panel          panel.Panel
	allowedOrigins []string
	evalNotifier   *EvaluationNotifier
	stageTimeout   time.Duration
}

// NewServer constructs the API server.
func NewServer(cfg Config) (*Server, error) {
	if cfg.DBPath == "" {
		return nil, errors.New("db path required")
	}
	db, err := store.Open(cfg.DBPath, cfg.SilentDB)
	if err != nil {
		return nil, err
	}

	var p panel.Panel
	if cfg.DisablePanel {
		logrus.Info("panel disabled via configuration")
	} else if client, err := panel.NewClient(cfg.PanelConfig); err == nil {
		p = client
		logrus.WithFields(logrus.Fields{
			"url":     cfg.PanelConfig.URL,
			"timeout": cfg.PanelConfig.Timeout,
		}).Info("panel enabled")
	} else if errors.Is(err, panel.ErrDisabled) {
		logrus.Info("panel disabled - no URL configured")
	} else {
		return nil, fmt.Errorf("panel client: %w", err)
	}

	server := newServer(db, comps.NewService(db), p, cfg.AllowedOrigins, cfg.StageTimeout)
	server.closer = db
	server.compsPath = strings.TrimSpace(cfg.CompsPath)

	if server.compsPath != "" {
		if count, err := server.comps.LoadFromCSV(server.compsPath); err != nil {
			logrus.WithError(err).Warn("load comparables library")
		} else {
			logrus.WithField("comparables", count).Info("loaded comparables library")
		}
	}
	return server, nil
}

func newServer(db EvaluationStore, library *comps.Service, p panel.Panel, origins []string, stageTimeout time.Duration) *Server {
	notifier := NewEvaluationNotifier()
	opts := []pipeline.Option{
		pipeline.WithNotifier(notifier),
		pipeline.WithStageTimeout(stageTimeout),
	}
	if library != nil {
		opts = append(opts, pipeline.WithComps(library))
	}
	if p != nil {
		opts = append(opts, pipeline.WithPanel(p))
	}
	return &Server{
		db:             db,
		comps:          library,
		engine:         valuation.NewEngine(),
		gate:           decision.NewGate(),
		runner:         pipeline.NewRunner(opts...),
		panel:          p,
		allowedOrigins: origins,
		evalNotifier:   notifier,
		stageTimeout:   stageTimeout,
	}
}

// Close releases the database handle.
func (s *Server) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// Router configures gin routes.
func (s *Server) Router() (*gin.Engine, error) {
	r := gin.Default()

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowCredentials = true
	if len(s.allowedOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = s.allowedOrigins
	}
	corsCfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
	corsCfg.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	r.Use(cors.New(corsCfg))

	r.GET("/api/healthz", s.handleHealth)
	r.GET("/api/config", s.handleConfig)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		api.POST("/valuations/:method", s.handleValuation)
		api.POST("/captable/simulate", s.handleCapTableSimulate)
		api.POST("/captable/compare", s.handleCapTableCompare)
		api.POST("/waterfall", s.handleWaterfall)
		api.POST("/risk/assess", s.handleRiskAssess)
		api.POST("/decision", s.handleDecision)
		api.POST("/finance/unit-economics", s.handleUnitEconomics)
		api.POST("/finance/market-size", s.handleMarketSize)
		api.POST("/termsheet", s.handleTermSheet)
		api.POST("/termsheet/compare", s.handleTermSheetCompare)

		api.POST("/evaluations", s.handleCreateEvaluation)
		api.GET("/evaluations", s.handleListEvaluations)
		api.GET("/evaluations/stream", s.handleEvaluateStream)
		api.GET("/evaluations/:id", s.handleGetEvaluation)
		api.GET("/evaluations/:id/risks.csv", s.handleExportRisksCSV)
		api.GET("/evaluations/:id/export.json", s.handleExportJSON)

		api.POST("/comps/upload", s.handleCompsUpload)
		api.GET("/comps", s.handleListComps)
	}
	return r, nil
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleConfig(c *gin.Context) {
	compsRecords := 0
	if s.comps != nil {
		compsRecords = s.comps.Count()
	}

	c.JSON(http.StatusOK, gin.H{
		"valuation_methods":     deal.Methods,
		"risk_categories":       deal.RiskCategories,
		"panel_enabled":         s.panel != nil && s.panel.Enabled(),
		"comps_path":            s.compsPath,
		"comparables_records":   compsRecords,
		"stage_timeout_seconds": s.stageTimeout.Seconds(),
	})
}

func (s *Server) renderError(c *gin.Context, status int, err error) {
	c.JSON(status, gin.H{"error": err.Error()})
}

// renderFailure maps the error taxonomy onto HTTP status codes.
func (s *Server) renderFailure(c *gin.Context, err error) {
	s.renderError(c, statusForError(err), err)
}

// Computation inconsistencies and storage failures are server errors.
func statusForError(err error) int {
	switch {
	case deal.IsCallerError(err):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// bindJSON decodes the body and renders a 400 on failure.
func (s *Server) bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		s.renderError(c, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return false
	}
	return true
}
