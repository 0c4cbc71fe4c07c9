package main

import (
	"context"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/finance-planner/internal/api"
	"github.com/dvloznov/finance-planner/internal/app"
	"github.com/dvloznov/finance-planner/internal/config"
	"github.com/dvloznov/finance-planner/internal/goals"
	"github.com/dvloznov/finance-planner/internal/insights"
	"github.com/dvloznov/finance-planner/internal/jobs"
	"github.com/dvloznov/finance-planner/internal/jobs/inmemory"
	"github.com/dvloznov/finance-planner/internal/logger"
	"github.com/dvloznov/finance-planner/internal/planner"
)

func main() {
	// Parse command-line flags
	var (
		envFile = flag.String("env", ".env", "Path to a .env file")
		port    = flag.String("port", "", "HTTP server port (overrides HTTP_PORT)")
	)
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		log := logger.New()
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	if *port != "" {
		cfg.HTTPPort = *port
	}

	// Initialize logger
	log := logger.WithFields(logger.NewWithLevel(cfg.LogLevel), map[string]any{
		"service": "api",
		"backend": cfg.LedgerBackend,
	})
	ctx := logger.WithContext(context.Background(), log)

	// Initialize ledger
	store, closeStore, err := app.OpenLedger(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open ledger")
	}
	defer closeStore()

	// Initialize reminder infrastructure
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(cfg.ReminderQueueSize, cfg.ReminderWorkers, jobStore)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	log.Info().Int("workers", cfg.ReminderWorkers).Msg("Starting reminder workers")
	if err := jobQueue.Start(workerCtx, jobs.ReminderHandler(jobs.LogDelivery)); err != nil {
		log.Fatal().Err(err).Msg("Failed to start reminder workers")
	}

	svc := planner.NewService(store, planner.WithNotifier(jobs.NewQueueNotifier(jobQueue)))
	engine := insights.NewEngine(store, app.NewTipGenerator(ctx, cfg))

	// Create HTTP server
	server := &http.Server{
		Addr: ":" + cfg.HTTPPort,
		Handler: api.NewRouter(api.Deps{
			Store:    store,
			Service:  svc,
			Insights: engine,
			Goals:    goals.NewService(store),
			Jobs:     jobStore,
		}, log),
		BaseContext:  func(net.Listener) context.Context { return ctx },
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", cfg.HTTPPort).Str("backend", cfg.LedgerBackend).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	cancelWorker()

	// Stop job queue and wait for in-flight reminders
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping reminder queue")
	}
	if err := jobQueue.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close reminder queue")
	}

	log.Info().Msg("Server exited")
}
