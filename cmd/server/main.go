package main

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/sirupsen/logrus"

	"deal-eval/backend/internal/api"
	"deal-eval/backend/internal/panel"
)

type config struct {
	Port           string        `env:"PORT"               envDefault:"2000"`
	DBPath         string        `env:"DEAL_EVAL_DB_PATH"`
	DataDir        string        `env:"DEAL_EVAL_DATA_DIR" envDefault:"data"`
	CompsPath      string        `env:"COMPS_PATH"`
	AllowedOrigins []string      `env:"ALLOWED_ORIGINS"    envDefault:"http://localhost:1000,http://127.0.0.1:1000"`
	PanelURL       string        `env:"PANEL_URL"`
	PanelAPIKey    string        `env:"PANEL_API_KEY"`
	PanelTimeout   time.Duration `env:"PANEL_TIMEOUT"      envDefault:"60s"`
	DisablePanel   bool          `env:"DISABLE_PANEL"`
	StageTimeout   time.Duration `env:"STAGE_TIMEOUT"      envDefault:"30s"`
	LogLevel       string        `env:"LOG_LEVEL"          envDefault:"info"`
	LogFormat      string        `env:"LOG_FORMAT"         envDefault:"text"`
}

func main() {
	var cfg config
	if err := env.Parse(&cfg); err != nil {
		logrus.Fatalf("parse env: %v", err)
	}
	configureLogging(cfg.LogLevel, cfg.LogFormat)

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		logrus.Fatalf("create data directory: %v", err)
	}
	dbPath := strings.TrimSpace(cfg.DBPath)
	if dbPath == "" {
		dbPath = filepath.Join(cfg.DataDir, "deal-eval.db")
	}

	server, err := api.NewServer(api.Config{
		DBPath:         dbPath,
		CompsPath:      cfg.CompsPath,
		AllowedOrigins: cfg.AllowedOrigins,
		PanelConfig: panel.Config{
			URL:     cfg.PanelURL,
			APIKey:  cfg.PanelAPIKey,
			Timeout: cfg.PanelTimeout,
		},
		DisablePanel: cfg.DisablePanel,
		StageTimeout: cfg.StageTimeout,
	})
	if err != nil {
		logrus.Fatalf("create server: %v", err)
	}
	defer func() {
		if cerr := server.Close(); cerr != nil {
			logrus.WithError(cerr).Warn("close database")
		}
	}()

	router, err := server.Router()
	if err != nil {
		logrus.Fatalf("configure router: %v", err)
	}

	logrus.Infof("starting deal-eval backend on :%s", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		logrus.Fatalf("server exited: %v", err)
	}
}

func configureLogging(level, format string) {
	if parsed, err := logrus.ParseLevel(level); err == nil {
		logrus.SetLevel(parsed)
	} else {
		logrus.WithField("level", level).Warn("unknown log level, using info")
	}
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}
}
