// Package main is the entry point for the ProphetRank API server.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/trustswarm/prophetrank/internal/api"
	"github.com/trustswarm/prophetrank/internal/auth"
	"github.com/trustswarm/prophetrank/internal/config"
	"github.com/trustswarm/prophetrank/internal/health"
	"github.com/trustswarm/prophetrank/internal/leaderboard"
	"github.com/trustswarm/prophetrank/internal/middleware"
	"github.com/trustswarm/prophetrank/internal/scoring"
	"github.com/trustswarm/prophetrank/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file (optional)")
	memory := flag.Bool("memory", false, "run with the in-memory store, for local development")
	help := flag.Bool("help", false, "display help message")
	flag.Parse()

	if *help {
		fmt.Println("ProphetRank API Server")
		fmt.Println()
		fmt.Println("Usage: api [options]")
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

	// The in-memory mode runs without a database
	if *memory {
		filtered := errs[:0]
		for _, err := range errs {
			if !errors.Is(err, config.ErrMissingDatabaseURL) {
				filtered = append(filtered, err)
			}
		}
		errs = filtered
	}
	if len(errs) > 0 {
		for _, err := range errs {
			logger.Error("configuration error", "error", err)
		}
		os.Exit(1)
	}
	logger.Info("configuration loaded", "config", cfg.LogSummary())

	// Storage: Postgres when configured, in-memory otherwise
	var st store.Store
	var db *sql.DB
	if !*memory && cfg.DatabaseURL != "" {
		var err error
		db, err = sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := db.PingContext(pingCtx); err != nil {
			cancel()
			logger.Error("failed to reach database", "error", err)
			os.Exit(1)
		}
		cancel()
		defer func() {
			if err := db.Close(); err != nil {
				logger.Error("failed to close database", "error", err)
			}
		}()
		st = store.NewPostgresStore(db, logger)
	} else {
		logger.Warn("running with in-memory store; data will not survive restarts")
		st = store.NewInMemoryStore(logger)
	}

	// Optional Redis rank cache
	var rankCache leaderboard.RankCache
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Error("invalid REDIS_URL", "error", err)
			os.Exit(1)
		}
		redisClient = redis.NewClient(opts)
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Error("failed to close redis client", "error", err)
			}
		}()
		rankCache = leaderboard.NewRankCache(redisClient, "global")
	}

	// Metrics
	registry := prometheus.NewRegistry()
	httpMetrics := middleware.NewMetrics()
	if err := httpMetrics.Register(registry); err != nil {
		logger.Error("failed to register HTTP metrics", "error", err)
		os.Exit(1)
	}
	trustMetrics := leaderboard.NewMetrics()
	if err := trustMetrics.Register(registry); err != nil {
		logger.Error("failed to register trust metrics", "error", err)
		os.Exit(1)
	}

	// Scoring engine
	calc := scoring.NewCalculator(scoring.CalculatorConfig{
		CalibrationBins: cfg.CalibrationBins,
		RecencyWindow:   cfg.RecencyWindow(),
		Logger:          logger,
		Anomalies:       trustMetrics,
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

	// Periodic recompute
	job := leaderboard.NewRecomputeJob(leaderboard.RecomputeJobConfig{
		Interval:   cfg.RecomputeInterval(),
		Categories: cfg.Categories,
		Logger:     logger,
		Metrics:    trustMetrics,
		Cache:      rankCache,
	}, engine)
	if err := job.Start(context.Background()); err != nil {
		logger.Error("failed to start recompute job", "error", err)
		os.Exit(1)
	}
	defer job.Stop()

	jwtService := auth.NewJWTServiceWithRotation(cfg.JWTSecret, cfg.PreviousJWTSecret)

	// Handlers
	leaderboardHandlers := api.NewLeaderboardHandlers(engine, cfg.LeaderboardLimit)
	modelHandlers := api.NewModelHandlers(engine, st)
	weightsHandlers := api.NewWeightsHandlers(engine, jwtService)
	statusHandlers := api.NewStatusHandlers(st, engine, job)

	healthConfig := api.HealthHandlersConfig{}
	if db != nil {
		healthConfig.DBChecker = health.NewDBChecker(db)
	}
	if redisClient != nil {
		healthConfig.CacheChecker = health.NewRedisChecker(redisClient)
	}
	healthHandlers := api.NewHealthHandlers(healthConfig)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandlers.Health)
	mux.HandleFunc("/ready", healthHandlers.Ready)
	mux.HandleFunc("/status", statusHandlers.Status)
	mux.HandleFunc("/leaderboard", leaderboardHandlers.GetLeaderboard)
	mux.HandleFunc("/models", modelHandlers.ListModels)
	mux.HandleFunc("/models/", modelHandlers.ModelRoutes)
	mux.HandleFunc("/weights", weightsHandlers.Weights)
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		// Only handle exact root path, everything else returns 404
		if r.URL.Path != "/" {
			ctx := middleware.SetErrorCode(r.Context(), api.ErrCodeNotFound)
			api.WriteError(w, ctx, http.StatusNotFound, api.ErrCodeNotFound, "The requested resource was not found")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`{"service":"prophetrank-api","version":"0.1.0"}`)); err != nil {
			slog.Error("failed to write response", "error", err)
		}
	})

	// Apply middleware: RequestID -> Logging -> HTTPMetrics
	handler := middleware.RequestID(middleware.Logging(logger)(middleware.HTTPMetrics(httpMetrics)(mux)))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting server", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
