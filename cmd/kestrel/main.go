// Kestrel - Workflow orchestration and fraud scoring for financial automation.
// Copyright (c) 2026 opensource.finance
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/opensource-finance/kestrel/internal/anomaly"
	"github.com/opensource-finance/kestrel/internal/api"
	"github.com/opensource-finance/kestrel/internal/bus"
	"github.com/opensource-finance/kestrel/internal/cache"
	"github.com/opensource-finance/kestrel/internal/collab"
	"github.com/opensource-finance/kestrel/internal/config"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/profile"
	"github.com/opensource-finance/kestrel/internal/repository"
	"github.com/opensource-finance/kestrel/internal/rules"
	"github.com/opensource-finance/kestrel/internal/scoring"
	"github.com/opensource-finance/kestrel/internal/velocity"
	"github.com/opensource-finance/kestrel/internal/worker"
	"github.com/opensource-finance/kestrel/internal/workflow"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Optional .env for local development; real deployments use the
	// environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	slog.Info("starting kestrel",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)
	slog.Info("configuration loaded",
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Initialize signal and profile services
	velocitySvc := velocity.NewService(repo, cacheImpl, velocity.Config{
		Velocity1hCeiling:  cfg.Scoring.Velocity1hCeiling,
		Velocity24hCeiling: cfg.Scoring.Velocity24hCeiling,
		GeoDistanceCapKm:   cfg.Scoring.GeoDistanceCapKm,
	})
	profiles := profile.NewStore(repo)

	// Initialize Rule Engine with the built-in rule set. Additional rules
	// can be hot-loaded via POST /rules.
	ruleEngine, err := rules.NewEngine(cfg.Scoring.MaxRuleWorkers)
	if err != nil {
		slog.Error("failed to initialize rule engine", "error", err)
		os.Exit(1)
	}
	defer ruleEngine.Close()
	if err := ruleEngine.LoadRules(rules.BuiltinRules()); err != nil {
		slog.Error("failed to load builtin rules", "error", err)
		os.Exit(1)
	}
	slog.Info("rule engine initialized", "rules_count", ruleEngine.RulesCount())

	// Initialize the analysis pipeline
	analyzer := scoring.NewAnalyzer(profiles, velocitySvc, ruleEngine, anomaly.NewBaselineScorer(), repo, busImpl, logger)

	// Bundled collaborator implementations; production deployments swap
	// these for real services behind the same interfaces.
	collaborators := workflow.Collaborators{
		Classifier: collab.NewDemoClassifier(),
		Invoicer:   collab.NewSimpleInvoicer(logger),
		Forecaster: collab.NewStaticForecaster(logger),
		Notifier:   collab.NewLogNotifier(logger),
		Gate:       collab.NewLogGate(logger),
		CRM:        collab.NewLogCRM(logger),
		Dashboard:  collab.NewLogDashboard(logger),
		Webhook:    collab.NewHTTPWebhook(10*time.Second, logger),
	}

	supervisor := workflow.NewSupervisor(logger)
	wfEngine := workflow.NewEngine(analyzer, collaborators, repo, busImpl, supervisor, workflow.Config{
		CollaboratorTimeout:  time.Duration(cfg.Workflow.CollaboratorTimeout) * time.Second,
		MaterialityThreshold: cfg.Workflow.MaterialityThreshold,
		ReviewConfidence:     cfg.Workflow.ReviewConfidence,
	}, logger)
	slog.Info("workflow engine initialized")

	// Periodic forecast refresh for recently active users
	if cfg.Workflow.ForecastRefreshInterval > 0 {
		interval := time.Duration(cfg.Workflow.ForecastRefreshInterval) * time.Second
		supervisor.Every("forecast_refresh", interval, func(taskCtx context.Context) error {
			return refreshForecasts(taskCtx, repo, collaborators.Forecaster)
		})
		slog.Info("periodic forecast refresh enabled", "interval", interval)
	}

	// Initialize async Worker
	asyncWorker := worker.NewWorker(busImpl, wfEngine, logger)
	if err := asyncWorker.Start(); err != nil {
		slog.Error("failed to start async worker", "error", err)
		os.Exit(1)
	}
	slog.Info("async worker started")

	// Initialize Server
	srv := api.NewServer(cfg.Server, repo, cacheImpl, busImpl, ruleEngine, analyzer, wfEngine, Version)

	// Start server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("kestrel is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop intake first, then drain background work
	if err := asyncWorker.Stop(); err != nil {
		slog.Error("failed to stop async worker", "error", err)
	}
	if err := supervisor.Shutdown(10 * time.Second); err != nil {
		slog.Error("background tasks did not drain", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("kestrel shutdown complete")
}

func newLogger(cfg domain.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

// refreshForecasts regenerates projections for users active in the last day.
func refreshForecasts(ctx context.Context, repo domain.Repository, forecaster domain.Forecaster) error {
	users, err := repo.ListActiveUsers(ctx, time.Now().UTC().Add(-24*time.Hour))
	if err != nil {
		return err
	}

	for _, userID := range users {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := forecaster.RefreshForecast(ctx, userID, nil); err != nil {
			slog.Warn("forecast refresh failed", "user_id", userID, "error", err)
		}
	}

	slog.Debug("forecasts refreshed", "users", len(users))
	return nil
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════╗")
	fmt.Println("  ║               🪶 KESTREL                  ║")
	fmt.Println("  ║   Financial Workflow & Fraud Engine       ║")
	fmt.Println("  ║     Small bird, sharp eyes.               ║")
	fmt.Println("  ╚═══════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /workflows         - Execute a workflow")
	fmt.Println("    GET  /workflows/{id}    - Get workflow status")
	fmt.Println("    POST /analyze           - Score a transaction")
	fmt.Println("    POST /analyze/batch     - Score a batch")
	fmt.Println("    POST /observations      - Queue async analysis")
	fmt.Println("    GET  /assessments/{id}  - Get assessment by ID")
	fmt.Println("    GET  /alerts            - List alerts for a user")
	fmt.Println("    GET  /rules             - List fraud rules")
	fmt.Println("    POST /rules             - Hot-load a fraud rule")
	fmt.Println("    POST /rules/reload      - Restore builtin rules")
	fmt.Println("    GET  /health            - Health check")
	fmt.Println("    GET  /metrics           - Prometheus metrics")
	fmt.Println()
}
