package planner

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/finance-planner/internal/domain"
	"github.com/dvloznov/finance-planner/internal/ledger"
	"github.com/dvloznov/finance-planner/internal/logger"
)

// RepairMode selects what happens to a paid payment whose transaction is gone.
type RepairMode string

const (
	// RepairClearStale resets broken payments to unpaid.
	RepairClearStale RepairMode = "clear"
	// RepairRecreate records a new transaction for broken payments.
	RepairRecreate RepairMode = "recreate"
)

// ParseRepairMode accepts "clear" and "recreate". Empty means clear.
func ParseRepairMode(s string) (RepairMode, error) {
	switch RepairMode(s) {
	case "", RepairClearStale:
		return RepairClearStale, nil
	case RepairRecreate:
		return RepairRecreate, nil
	}
	return "", domain.NewValidationError("mode", "unknown repair mode: "+s)
}

// RepairOptions configures a repair pass.
type RepairOptions struct {
	Mode RepairMode

	// DryRun reports what would change without writing.
	DryRun bool
}

// RepairReport summarises a repair pass.
type RepairReport struct {
	Scanned   int            `json:"scanned"`
	Healthy   int            `json:"healthy"`
	Migrated  int            `json:"migrated"`
	Cleared   int            `json:"cleared"`
	Recreated int            `json:"recreated"`
	Orphans   int            `json:"orphans"`
	DryRun    bool           `json:"dry_run"`
	Issues    []LinkageIssue `json:"issues"`
}

// Repair checks every planned payment's link and fixes the broken ones.
// Legacy note markers are moved into LinkedTransactionID. All fixes are
// written in a single batch. Planned-payment transactions that no payment
// references are reported but left in the ledger.
func (l *Linker) Repair(ctx context.Context, opts RepairOptions) (RepairReport, error) {
	log := logger.FromContext(ctx)
	l.mu.Lock()
	defer l.mu.Unlock()

	if opts.Mode == "" {
		opts.Mode = RepairClearStale
	}
	report := RepairReport{DryRun: opts.DryRun, Issues: []LinkageIssue{}}

	payments, err := l.store.FetchPlannedPayments(ctx, ledger.PaymentFilter{})
	if err != nil {
		return report, fmt.Errorf("Repair: fetching planned payments: %w", err)
	}

	var batch ledger.Batch
	for _, p := range payments {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("Repair: %w", err)
		}
		report.Scanned++

		note, markerID, hasMarker := domain.DecodeMarker(p.Note)
		fixed := p
		fixed.Note = note
		migrated := hasMarker
		if fixed.LinkedTransactionID == "" && hasMarker {
			fixed.LinkedTransactionID = markerID
		}

		if !p.IsPaid {
			if fixed.LinkedTransactionID != "" {
				report.Issues = append(report.Issues, LinkageIssue{
					PaymentID: p.ID, TransactionID: fixed.LinkedTransactionID, Kind: IssueStaleLink,
				})
				fixed.LinkedTransactionID = ""
				report.Cleared++
				batch.PlannedPayments = append(batch.PlannedPayments, fixed)
				continue
			}
			if migrated {
				report.Migrated++
				batch.PlannedPayments = append(batch.PlannedPayments, fixed)
				continue
			}
			report.Healthy++
			continue
		}

		issue, err := l.checkLink(ctx, fixed)
		if err != nil {
			return report, fmt.Errorf("Repair: %w", err)
		}
		if issue == nil {
			if migrated {
				report.Migrated++
				batch.PlannedPayments = append(batch.PlannedPayments, fixed)
			} else {
				report.Healthy++
			}
			continue
		}

		report.Issues = append(report.Issues, *issue)
		switch opts.Mode {
		case RepairRecreate:
			tx := PaymentTransaction(fixed, l.newID(), l.now())
			fixed.LinkedTransactionID = tx.ID
			batch.Transactions = append(batch.Transactions, tx)
			report.Recreated++
		default:
			fixed.IsPaid = false
			fixed.LinkedTransactionID = ""
			report.Cleared++
		}
		batch.PlannedPayments = append(batch.PlannedPayments, fixed)
	}

	orphans, err := l.orphanTransactions(ctx, payments, batch.PlannedPayments)
	if err != nil {
		return report, fmt.Errorf("Repair: %w", err)
	}
	for _, tx := range orphans {
		report.Issues = append(report.Issues, LinkageIssue{TransactionID: tx.ID, Kind: IssueOrphanTransaction})
		report.Orphans++
		log.Warn().
			Str("transaction_id", tx.ID).
			Str("amount", tx.Amount.String()).
			Msg("Planned payment transaction is not linked to any payment")
	}

	log.Info().
		Int("scanned", report.Scanned).
		Int("healthy", report.Healthy).
		Int("migrated", report.Migrated).
		Int("cleared", report.Cleared).
		Int("recreated", report.Recreated).
		Int("orphans", report.Orphans).
		Bool("dry_run", opts.DryRun).
		Msg("Repair pass finished scanning")

	if opts.DryRun {
		return report, nil
	}
	if !batch.Empty() {
		if err := l.store.Save(context.WithoutCancel(ctx), batch); err != nil {
			return report, fmt.Errorf("Repair: saving fixes: %w", err)
		}
	}
	l.issues.Add(int64(len(report.Issues)))
	return report, nil
}

// orphanTransactions returns the planned-payment transactions that none of
// the payments links to once fixed has been applied.
func (l *Linker) orphanTransactions(ctx context.Context, payments, fixed []domain.PlannedPayment) ([]domain.Transaction, error) {
	final := make(map[string]domain.PlannedPayment, len(payments))
	for _, p := range payments {
		final[p.ID] = p
	}
	for _, p := range fixed {
		final[p.ID] = p
	}
	linked := make(map[string]bool, len(final))
	for _, p := range final {
		if p.IsPaid && p.LinkedTransactionID != "" {
			linked[p.LinkedTransactionID] = true
		}
	}

	txs, err := l.store.FetchTransactions(ctx, ledger.TransactionFilter{Category: domain.PlannedPaymentCategory})
	if err != nil {
		return nil, fmt.Errorf("fetching planned payment transactions: %w", err)
	}
	var orphans []domain.Transaction
	for _, tx := range txs {
		if !linked[tx.ID] {
			orphans = append(orphans, tx)
		}
	}
	return orphans, nil
}

func (l *Linker) checkLink(ctx context.Context, p domain.PlannedPayment) (*LinkageIssue, error) {
	if p.LinkedTransactionID == "" {
		return &LinkageIssue{PaymentID: p.ID, Kind: IssueMissingLink}, nil
	}
	_, err := l.store.GetTransaction(ctx, p.LinkedTransactionID)
	if errors.Is(err, domain.ErrNotFound) {
		return &LinkageIssue{PaymentID: p.ID, TransactionID: p.LinkedTransactionID, Kind: IssueDanglingLink}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading transaction %s: %w", p.LinkedTransactionID, err)
	}
	return nil, nil
}
