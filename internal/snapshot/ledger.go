package snapshot

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/finance-planner/internal/domain"
	"github.com/dvloznov/finance-planner/internal/insights"
	"github.com/dvloznov/finance-planner/internal/ledger"
	"github.com/dvloznov/finance-planner/internal/logger"
)

// ImportReport summarises an import.
type ImportReport struct {
	Transactions    int `json:"transactions"`
	PlannedPayments int `json:"planned_payments"`
	Goals           int `json:"goals,omitempty"`

	// Unlinked counts payments that were marked paid in the backup but
	// carried no transaction reference; they are imported as unpaid.
	Unlinked int `json:"unlinked"`
}

// Export reads the whole ledger and builds a snapshot. Category budgets are
// computed for asOf's month.
func Export(ctx context.Context, store ledger.Store, asOf time.Time, opts EncodeOptions) (Snapshot, error) {
	txs, err := store.FetchTransactions(ctx, ledger.TransactionFilter{})
	if err != nil {
		return Snapshot{}, fmt.Errorf("Export: fetching transactions: %w", err)
	}
	payments, err := store.FetchPlannedPayments(ctx, ledger.PaymentFilter{})
	if err != nil {
		return Snapshot{}, fmt.Errorf("Export: fetching planned payments: %w", err)
	}
	goals, err := store.FetchGoals(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("Export: fetching goals: %w", err)
	}

	_, budgets := insights.ComputeBudgetInsights(txs, asOf)
	return FromLedger(Ledger{
		Transactions:    txs,
		PlannedPayments: payments,
		CategoryBudgets: budgets,
		Goals:           goals,
	}, asOf, opts), nil
}

// Import replaces the whole ledger with the snapshot's content in one batch.
// If the snapshot is invalid or the write fails the existing ledger is kept.
func Import(ctx context.Context, store ledger.Store, snap Snapshot) (ImportReport, error) {
	log := logger.FromContext(ctx)

	unlinked := 0
	for _, p := range snap.PlannedPayments {
		if p.IsPaid && p.LinkedTransactionID == "" && !hasMarker(p.Note) {
			unlinked++
		}
	}

	l, err := snap.ToLedger()
	if err != nil {
		return ImportReport{}, fmt.Errorf("Import: %w", err)
	}

	batch := ledger.Batch{
		ReplaceAll:      true,
		Transactions:    l.Transactions,
		PlannedPayments: l.PlannedPayments,
		Goals:           l.Goals,
	}
	if err := store.Save(ctx, batch); err != nil {
		return ImportReport{}, fmt.Errorf("Import: %w", err)
	}

	report := ImportReport{
		Transactions:    len(l.Transactions),
		PlannedPayments: len(l.PlannedPayments),
		Goals:           len(l.Goals),
		Unlinked:        unlinked,
	}
	log.Info().
		Int("transactions", report.Transactions).
		Int("planned_payments", report.PlannedPayments).
		Int("goals", report.Goals).
		Int("unlinked", report.Unlinked).
		Msg("Imported snapshot")
	return report, nil
}

// Reset deletes every transaction, planned payment and goal.
func Reset(ctx context.Context, store ledger.Store) error {
	if err := store.Save(ctx, ledger.Batch{ReplaceAll: true}); err != nil {
		return fmt.Errorf("Reset: %w", err)
	}
	return nil
}

func hasMarker(note *string) bool {
	if note == nil {
		return false
	}
	_, _, ok := domain.DecodeMarker(*note)
	return ok
}
