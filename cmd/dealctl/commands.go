package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"deal-eval/backend/internal/api"
	"deal-eval/backend/internal/comps"
	"deal-eval/backend/internal/panel"
	"deal-eval/backend/internal/pipeline"
	"deal-eval/backend/internal/store"
)

type evaluateFlags struct {
	dbPath    string
	compsPath string
	panelURL  string
	timeout   time.Duration
	save      bool
	compact   bool
}

func newEvaluateCmd() *cobra.Command {
	var flags evaluateFlags
	cmd := &cobra.Command{
		Use:   "evaluate <deal.yaml|deal.json>",
		Short: "Run a deal file through the evaluation pipeline and print the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvaluate(cmd.Context(), cmd.OutOrStdout(), args[0], flags)
		},
	}
	cmd.Flags().StringVar(&flags.dbPath, "db", "", "SQLite database for the comparables library and saved runs")
	cmd.Flags().StringVar(&flags.compsPath, "comps", "", "Comparables CSV to load before evaluating")
	cmd.Flags().StringVar(&flags.panelURL, "panel-url", os.Getenv("PANEL_URL"), "Panel service URL (env PANEL_URL)")
	cmd.Flags().DurationVar(&flags.timeout, "timeout", 2*time.Minute, "Overall evaluation timeout")
	cmd.Flags().BoolVar(&flags.save, "save", false, "Persist the run to --db")
	cmd.Flags().BoolVar(&flags.compact, "compact", false, "Print compact JSON")
	return cmd
}

func runEvaluate(ctx context.Context, out io.Writer, path string, flags evaluateFlags) error {
	req, err := loadRequest(path)
	if err != nil {
		return err
	}
	if flags.save && flags.dbPath == "" {
		return errors.New("--save requires --db")
	}

	var opts []pipeline.Option
	var db *store.Database
	if flags.dbPath != "" {
		db, err = store.Open(flags.dbPath, true)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := db.Close(); cerr != nil {
				logrus.WithError(cerr).Warn("close database")
			}
		}()
		library := comps.NewService(db)
		if flags.compsPath != "" {
			if _, err := library.LoadFromCSV(flags.compsPath); err != nil {
				return err
			}
		}
		opts = append(opts, pipeline.WithComps(library))
	} else if flags.compsPath != "" {
		return errors.New("--comps requires --db")
	}

	if client, err := panel.NewClient(panel.Config{URL: flags.panelURL, APIKey: os.Getenv("PANEL_API_KEY")}); err == nil {
		opts = append(opts, pipeline.WithPanel(client))
	} else if !errors.Is(err, panel.ErrDisabled) {
		return fmt.Errorf("panel client: %w", err)
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, flags.timeout)
	defer cancel()

	result, err := pipeline.NewRunner(opts...).Run(ctx, req)
	if err != nil {
		return err
	}

	if flags.save {
		row, err := api.ToModel(result)
		if err != nil {
			return err
		}
		if err := db.SaveEvaluation(&row); err != nil {
			return fmt.Errorf("save evaluation: %w", err)
		}
	}

	enc := json.NewEncoder(out)
	if !flags.compact {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(result)
}

// loadRequest reads a deal file. YAML documents are re-encoded as JSON so a
// single set of struct tags serves both formats.
func loadRequest(path string) (pipeline.Request, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return pipeline.Request{}, fmt.Errorf("read deal file: %w", err)
	}
	return decodeRequest(raw, strings.ToLower(filepath.Ext(path)))
}

func decodeRequest(raw []byte, ext string) (pipeline.Request, error) {
	payload := raw
	var err error
	if ext == ".yaml" || ext == ".yml" {
		var doc any
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return pipeline.Request{}, fmt.Errorf("parse yaml: %w", err)
		}
		payload, err = json.Marshal(doc)
		if err != nil {
			return pipeline.Request{}, fmt.Errorf("convert yaml: %w", err)
		}
	}

	var req pipeline.Request
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return pipeline.Request{}, fmt.Errorf("decode deal: %w", err)
	}
	return req, nil
}

func newCompsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "comps",
		Short: "Manage the comparables library",
	}

	var dbPath string
	importCmd := &cobra.Command{
		Use:   "import <comparables.csv>",
		Short: "Replace the comparables library with a CSV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := store.Open(dbPath, true)
			if err != nil {
				return err
			}
			defer func() {
				if cerr := db.Close(); cerr != nil {
					logrus.WithError(cerr).Warn("close database")
				}
			}()
			count, err := comps.NewService(db).LoadFromCSV(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "loaded %d comparables into %s\n", count, dbPath)
			return nil
		},
	}
	importCmd.Flags().StringVar(&dbPath, "db", filepath.Join("data", "deal-eval.db"), "SQLite database path")
	cmd.AddCommand(importCmd)
	return cmd
}
