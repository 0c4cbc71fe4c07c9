package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-planner/internal/logger"
)

// SweepFunc is a periodic task. now is the scheduled run time.
type SweepFunc func(ctx context.Context, now time.Time) error

// Sweeper runs periodic ledger tasks such as the due recurring payment scan
// and the insight refresh. A run that is still going when its next tick
// arrives makes that tick a no-op.
type Sweeper struct {
	cron *cron.Cron
	log  zerolog.Logger
	ctx  context.Context
}

// NewSweeper creates a stopped sweeper. Every run gets ctx with log attached.
func NewSweeper(ctx context.Context, log zerolog.Logger) *Sweeper {
	cl := cronLogger{log: log}
	return &Sweeper{
		cron: cron.New(cron.WithLogger(cl), cron.WithChain(
			cron.Recover(cl),
			cron.SkipIfStillRunning(cl),
		)),
		log: log,
		ctx: logger.WithContext(ctx, log),
	}
}

// Add registers fn under a cron spec ("@daily", "0 7 * * *", "@every 1h").
func (s *Sweeper) Add(name, spec string, fn SweepFunc) error {
	_, err := s.cron.AddFunc(spec, func() {
		s.run(name, fn)
	})
	if err != nil {
		return fmt.Errorf("Add: sweep %s: %w", name, err)
	}
	s.log.Info().Str("sweep", name).Str("schedule", spec).Msg("Registered sweep")
	return nil
}

// RunNow runs fn once, synchronously, outside the schedule.
func (s *Sweeper) RunNow(name string, fn SweepFunc) {
	s.run(name, fn)
}

func (s *Sweeper) run(name string, fn SweepFunc) {
	start := time.Now()
	log := s.log.With().Str("sweep", name).Logger()
	ctx := logger.WithContext(s.ctx, log)

	if err := fn(ctx, start); err != nil {
		log.Error().Err(err).Dur("duration", time.Since(start)).Msg("Sweep failed")
		return
	}
	log.Debug().Dur("duration", time.Since(start)).Msg("Sweep finished")
}

// Start begins the schedule in the background.
func (s *Sweeper) Start() {
	s.cron.Start()
}

// Stop halts the schedule and waits for running sweeps, or for ctx.
func (s *Sweeper) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("Stop: %w", ctx.Err())
	}
}

// cronLogger routes the cron library's own messages to zerolog.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
