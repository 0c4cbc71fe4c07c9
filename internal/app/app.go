// Package app builds the shared dependencies of the commands from Config.
package app

import (
	"context"
	"fmt"

	"github.com/dvloznov/finance-planner/internal/assistant"
	"github.com/dvloznov/finance-planner/internal/config"
	infraBQ "github.com/dvloznov/finance-planner/internal/infra/bigquery"
	"github.com/dvloznov/finance-planner/internal/insights"
	"github.com/dvloznov/finance-planner/internal/ledger"
	"github.com/dvloznov/finance-planner/internal/ledger/inmemory"
	"github.com/dvloznov/finance-planner/internal/logger"
)

// OpenLedger opens the configured ledger backend. The returned close
// function is never nil.
func OpenLedger(ctx context.Context, cfg config.Config) (ledger.Store, func() error, error) {
	log := logger.FromContext(ctx)

	switch cfg.LedgerBackend {
	case config.BackendMemory:
		log.Warn().Msg("Using in-memory ledger, data is lost on exit")
		return inmemory.NewStore(), func() error { return nil }, nil
	case config.BackendBigQuery:
		store, err := infraBQ.NewStore(ctx, cfg.GCPProject, cfg.BQDataset)
		if err != nil {
			return nil, nil, fmt.Errorf("OpenLedger: %w", err)
		}
		log.Info().
			Str("project", cfg.GCPProject).
			Str("dataset", cfg.BQDataset).
			Msg("Using BigQuery ledger")
		return store, store.Close, nil
	}
	return nil, nil, fmt.Errorf("OpenLedger: unknown ledger backend %q", cfg.LedgerBackend)
}

// NewTipGenerator returns Gemini backed by the static rules, or only the
// static rules when the genai client cannot be created.
func NewTipGenerator(ctx context.Context, cfg config.Config) insights.TipGenerator {
	log := logger.FromContext(ctx)

	gemini, err := assistant.NewGeminiTipGenerator(ctx, cfg.GeminiModel)
	if err != nil {
		log.Warn().Err(err).Msg("Gemini unavailable, using static saving tips")
		return assistant.StaticTipGenerator{}
	}
	return assistant.FallbackTipGenerator{
		Primary:   gemini,
		Secondary: assistant.StaticTipGenerator{},
	}
}
