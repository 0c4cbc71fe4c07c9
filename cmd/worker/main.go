package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/finance-planner/internal/app"
	"github.com/dvloznov/finance-planner/internal/config"
	"github.com/dvloznov/finance-planner/internal/insights"
	"github.com/dvloznov/finance-planner/internal/jobs"
	"github.com/dvloznov/finance-planner/internal/jobs/inmemory"
	"github.com/dvloznov/finance-planner/internal/logger"
	"github.com/dvloznov/finance-planner/internal/planner"
)

func main() {
	envFile := flag.String("env", ".env", "Path to a .env file")
	once := flag.Bool("once", false, "Run every sweep once and exit")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		log := logger.New()
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	// Initialize logger
	log := logger.WithFields(logger.NewWithLevel(cfg.LogLevel), map[string]any{
		"service": "worker",
		"backend": cfg.LedgerBackend,
	})

	// Create context that cancels on interrupt
	ctx, cancel := context.WithCancel(logger.WithContext(context.Background(), log))
	defer cancel()

	store, closeStore, err := app.OpenLedger(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open ledger")
	}
	defer closeStore()

	// Initialize reminder queue
	// In production, this would be replaced with Cloud Tasks or Pub/Sub
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(cfg.ReminderQueueSize, cfg.ReminderWorkers, jobStore)

	svc := planner.NewService(store, planner.WithNotifier(jobs.NewQueueNotifier(jobQueue)))
	engine := insights.NewEngine(store, app.NewTipGenerator(ctx, cfg))

	sweeps := map[string]jobs.SweepFunc{
		"due-recurring": func(ctx context.Context, now time.Time) error {
			due, err := svc.ProcessDueRecurring(ctx, now)
			if err != nil {
				return err
			}
			log := logger.FromContext(ctx)
			log.Info().Int("due_count", len(due)).Msg("Checked recurring payments")
			return nil
		},
		"insights": func(ctx context.Context, now time.Time) error {
			d, err := engine.Refresh(ctx, now)
			if err != nil {
				return err
			}
			log := logger.FromContext(ctx)
			log.Info().
				Str("balance", d.Balance.StringFixed(2)).
				Int("unpaid_overdue", len(d.UnpaidOverdue)).
				Msg("Dashboard refreshed")
			return nil
		},
	}

	sweeper := jobs.NewSweeper(ctx, log)
	if *once {
		for name, fn := range sweeps {
			sweeper.RunNow(name, fn)
		}
		return
	}

	for name, fn := range sweeps {
		if err := sweeper.Add(name, cfg.SweepSchedule, fn); err != nil {
			log.Fatal().Err(err).Msg("Failed to schedule sweep")
		}
	}

	log.Info().Msg("Starting worker service")

	// Start consuming reminders
	if err := jobQueue.Start(ctx, jobs.ReminderHandler(jobs.LogDelivery)); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}
	sweeper.Start()

	log.Info().Str("schedule", cfg.SweepSchedule).Msg("Worker service started, waiting for jobs...")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down worker service...")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := sweeper.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Sweeps did not finish in time")
	}

	// Cancel context to stop workers
	cancel()

	// Stop the queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during graceful shutdown")
	}
	if err := jobQueue.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close job queue")
	}

	log.Info().Msg("Worker service exited")
}
