// Package main is the entry point for the one-shot scoring and report tool.
// It runs a full computation pass over every known model, appends the
// resulting trust snapshots, and writes a leaderboard report file.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	_ "github.com/lib/pq"

	"github.com/trustswarm/prophetrank/internal/config"
	"github.com/trustswarm/prophetrank/internal/export"
	"github.com/trustswarm/prophetrank/internal/ingest"
	"github.com/trustswarm/prophetrank/internal/leaderboard"
	"github.com/trustswarm/prophetrank/internal/middleware"
	"github.com/trustswarm/prophetrank/internal/scoring"
	"github.com/trustswarm/prophetrank/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file (optional)")
	importPath := flag.String("import", "", "JSON file of scraped event documents to load before scoring")
	category := flag.String("category", "", "leaderboard category to export (default all categories)")
	format := flag.String("format", "csv", "report format: csv or json")
	outDir := flag.String("out", "", "report directory (default from config)")
	help := flag.Bool("help", false, "display help message")
	flag.Parse()

	if *help {
		fmt.Println("ProphetRank Scorer")
		fmt.Println()
		fmt.Println("Usage: scorer [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configPath)
	if cfg == nil {
		for _, err := range errs {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)

	if len(errs) > 0 {
		for _, err := range errs {
			logger.Error("configuration error", "error", err)
		}
		os.Exit(1)
	}

	reportFormat, err := export.ParseFormat(*format)
	if err != nil {
		logger.Error("invalid format flag", "error", err)
		os.Exit(1)
	}
	dir := *outDir
	if dir == "" {
		dir = cfg.ExportDir
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), leaderboard.DefaultRecomputeTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		logger.Error("failed to reach database", "error", err)
		os.Exit(1)
	}

	st := store.NewPostgresStore(db, logger)

	if *importPath != "" {
		importer := ingest.NewImporter(st, logger)
		summary, err := importer.ImportFile(ctx, *importPath)
		if err != nil {
			logger.Error("import failed", "path", *importPath, "error", err)
			os.Exit(1)
		}
		logger.Info("import finished",
			"path", *importPath,
			"events", summary.Events,
			"predictions", summary.Predictions,
			"duplicates", summary.Duplicates,
			"skipped", summary.Skipped)
	}

	calc := scoring.NewCalculator(scoring.CalculatorConfig{
		CalibrationBins: cfg.CalibrationBins,
		RecencyWindow:   cfg.RecencyWindow(),
		Logger:          logger,
	})
	engine, err := leaderboard.NewEngine(leaderboard.EngineConfig{
		Store:      st,
		Calculator: calc,
		Weights:    cfg.Weights,
		Workers:    cfg.ComputeWorkers,
		Logger:     logger,
	})
	if err != nil {
		logger.Error("failed to create engine", "error", err)
		os.Exit(1)
	}

	asOf := time.Now().UTC()

	// All-categories scope first, then each configured category
	scopes := append([]string{""}, cfg.Categories...)
	for _, scope := range scopes {
		snapshots, err := engine.ComputeAll(ctx, scope, asOf)
		if err != nil {
			// Per-model failures: the run continues with the models that scored
			logger.Warn("some models failed to score", "category", scope, "error", err)
		}
		logger.Info("computation pass complete", "category", scope, "models", len(snapshots))
	}

	entries, err := engine.Leaderboard(ctx, *category, cfg.LeaderboardLimit)
	if err != nil {
		logger.Error("failed to build leaderboard", "error", err)
		os.Exit(1)
	}

	data, err := export.ExportLeaderboard(*category, entries, reportFormat, asOf)
	if err != nil {
		logger.Error("failed to render report", "error", err)
		os.Exit(1)
	}

	name := "trust_leaderboard"
	if *category != "" {
		name += "_" + *category
	}
	path, err := export.WriteReport(dir, name, reportFormat, data, asOf)
	if err != nil {
		logger.Error("failed to write report", "error", err)
		os.Exit(1)
	}

	logger.Info("report written", "path", path, "entries", len(entries))
}
