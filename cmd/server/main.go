/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the NOTA payroll engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (environment, optional .env)
  2. Build the zap logger
  3. Open the SQLite store and run migrations
  4. Seed an empty store (SEED_PATH, or the demo seed outside production)
  5. Create the payroll service, API handler and router
  6. Start the recompute scheduler
  7. Start the server with graceful shutdown

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the recompute scheduler (waits for a running job)
  2. Stop accepting new connections
  3. Wait for active requests to complete (SHUTDOWN_TIMEOUT)
  4. Close the database connection

EXAMPLES:
  # Run with file database
  DB_PATH=./data/nota.db ./server

  # Run with in-memory database and demo scenarios
  DB_PATH=":memory:" ENABLE_SCENARIOS=true ./server

SEE ALSO:
  - config/config.go: Environment keys
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/warp/nota-engine/api"
	"github.com/warp/nota-engine/config"
	"github.com/warp/nota-engine/factory"
	"github.com/warp/nota-engine/logger"
	"github.com/warp/nota-engine/metrics"
	"github.com/warp/nota-engine/nota"
	"github.com/warp/nota-engine/payroll"
	"github.com/warp/nota-engine/store/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	// Initialize store
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer store.Close()

	var rec *metrics.Recorder
	if cfg.MetricsEnabled {
		rec = metrics.New()
	}

	svc := payroll.NewService(store, nil, log,
		payroll.WithMetrics(rec),
		payroll.WithStrictTransitions(cfg.Payroll.StrictTransitions),
		payroll.WithDefaultTimeZone(cfg.Payroll.DefaultTimeZone),
	)

	if err := seedIfEmpty(context.Background(), cfg, svc, log); err != nil {
		return err
	}

	// Initialize handler
	handler := api.NewHandler(svc, log)
	handler.Configs = factory.NewPayConfigFactory(cfg.Payroll.DefaultTimeZone)
	handler.Health = store.Ping

	scheduler := api.NewRecomputeScheduler(svc, cfg.Recompute.Cron, log)
	scheduler.Enabled = cfg.Recompute.Enabled
	if err := scheduler.Start(); err != nil {
		return err
	}
	defer scheduler.Stop()
	handler.Scheduler = scheduler

	router := api.NewRouter(handler, api.RouterOptions{
		Logger:           log,
		Metrics:          rec,
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		ScenariosEnabled: cfg.ScenariosEnabled,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		log.Info("server starting",
			zap.Int("port", cfg.Port),
			zap.String("env", cfg.Env),
			zap.String("db", cfg.DBPath),
			zap.Bool("scenarios", cfg.ScenariosEnabled),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serverErr:
		if err != nil {
			return err
		}
	case sig := <-quit:
		log.Info("shutting down server", zap.String("signal", sig.String()))
	}

	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}

	log.Info("server stopped")
	return nil
}

// seedIfEmpty imports SEED_PATH, or the demo seed outside production, when
// the store has no pay config yet.
func seedIfEmpty(ctx context.Context, cfg *config.Config, svc *payroll.Service, log *zap.Logger) error {
	_, err := svc.CurrentConfig(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, nota.ErrConfigNotFound) {
		return err
	}

	var seed *factory.Seed
	switch {
	case cfg.SeedPath != "":
		f, err := os.Open(cfg.SeedPath)
		if err != nil {
			return fmt.Errorf("open seed: %w", err)
		}
		defer f.Close()
		if seed, err = factory.ParseSeed(f); err != nil {
			return fmt.Errorf("parse seed %s: %w", cfg.SeedPath, err)
		}
	case !cfg.IsProduction():
		if seed, err = factory.ParseSeed(strings.NewReader(factory.DemoSeedJSON())); err != nil {
			return err
		}
	default:
		log.Warn("store has no pay config and SEED_PATH is empty")
		return nil
	}

	return svc.Import(ctx, seed)
}
