package planner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dvloznov/finance-planner/internal/domain"
	"github.com/dvloznov/finance-planner/internal/ledger"
	"github.com/dvloznov/finance-planner/internal/logger"
)

// IssueKind classifies a broken payment-to-transaction link.
type IssueKind string

const (
	// IssueMissingLink means a paid payment carries no transaction reference.
	IssueMissingLink IssueKind = "missing_link"
	// IssueDanglingLink means the referenced transaction no longer exists.
	IssueDanglingLink IssueKind = "dangling_link"
	// IssueStaleLink means an unpaid payment still references a transaction.
	IssueStaleLink IssueKind = "stale_link"
	// IssueOrphanTransaction means a planned-payment transaction is not
	// referenced by any payment.
	IssueOrphanTransaction IssueKind = "orphan_transaction"
)

// LinkageIssue reports a link that could not be followed. The payment's paid
// flag is still updated; the issue only records what was missing.
type LinkageIssue struct {
	PaymentID     string    `json:"payment_id,omitempty"`
	TransactionID string    `json:"transaction_id,omitempty"`
	Kind          IssueKind `json:"kind"`
}

func (i LinkageIssue) String() string {
	if i.PaymentID == "" {
		return fmt.Sprintf("transaction %s: %s", i.TransactionID, i.Kind)
	}
	if i.TransactionID == "" {
		return fmt.Sprintf("payment %s: %s", i.PaymentID, i.Kind)
	}
	return fmt.Sprintf("payment %s: %s (transaction %s)", i.PaymentID, i.Kind, i.TransactionID)
}

// LinkResult is the outcome of MarkPaid or UnmarkPaid.
type LinkResult struct {
	// Payment is the payment as stored after the call.
	Payment domain.PlannedPayment `json:"payment"`

	// Transaction is the transaction created by MarkPaid or removed by
	// UnmarkPaid. Nil when the call was a no-op or the link was broken.
	Transaction *domain.Transaction `json:"transaction,omitempty"`

	// Changed is false when the payment was already in the requested state.
	Changed bool `json:"changed"`

	Issue *LinkageIssue `json:"issue,omitempty"`
}

// Linker moves planned payments between paid and unpaid, keeping exactly one
// expense transaction per paid payment. Link changes made through one Linker
// are serialized; several processes writing the same store are not.
type Linker struct {
	store ledger.Store
	now   func() time.Time
	newID func() string

	// mu is held from loading a payment until its batch is saved.
	mu     sync.Mutex
	issues atomic.Int64
}

// NewLinker creates a linker. Nil now and newID default to time.Now and
// uuid.NewString.
func NewLinker(store ledger.Store, now func() time.Time, newID func() string) *Linker {
	if now == nil {
		now = time.Now
	}
	if newID == nil {
		newID = uuid.NewString
	}
	return &Linker{store: store, now: now, newID: newID}
}

// IssueCount returns how many linkage issues this linker has reported.
func (l *Linker) IssueCount() int64 {
	return l.issues.Load()
}

// PaymentTransaction builds the expense transaction recorded when p is paid.
func PaymentTransaction(p domain.PlannedPayment, id string, date time.Time) domain.Transaction {
	return domain.Transaction{
		ID:       id,
		Title:    p.Title,
		Amount:   p.Amount,
		Kind:     domain.KindExpense,
		Category: domain.PlannedPaymentCategory,
		Date:     date,
		Note:     "Planned payment: " + p.Title,
	}
}

// MarkPaid records paymentID as paid. The payment is re-read from the store,
// so a second call on an already paid payment changes nothing.
func (l *Linker) MarkPaid(ctx context.Context, paymentID string) (LinkResult, error) {
	log := logger.FromContext(ctx)
	l.mu.Lock()
	defer l.mu.Unlock()

	// 1. Load the stored state.
	payment, err := l.store.GetPlannedPayment(ctx, paymentID)
	if err != nil {
		return LinkResult{}, fmt.Errorf("MarkPaid: loading payment %s: %w", paymentID, err)
	}
	if payment.IsPaid {
		log.Debug().Str("payment_id", paymentID).Msg("Payment already paid, nothing to do")
		return LinkResult{Payment: *payment}, nil
	}

	// 2. Build the transaction and the linked payment.
	tx := PaymentTransaction(*payment, l.newID(), l.now())
	updated := *payment
	updated.IsPaid = true
	updated.LinkedTransactionID = tx.ID

	// 3. Persist both together.
	batch := ledger.Batch{
		Transactions:    []domain.Transaction{tx},
		PlannedPayments: []domain.PlannedPayment{updated},
	}
	if err := l.store.Save(context.WithoutCancel(ctx), batch); err != nil {
		return LinkResult{}, fmt.Errorf("MarkPaid: saving payment %s: %w", paymentID, err)
	}

	log.Info().
		Str("payment_id", paymentID).
		Str("transaction_id", tx.ID).
		Str("amount", tx.Amount.String()).
		Msg("Payment marked as paid")

	return LinkResult{Payment: updated, Transaction: &tx, Changed: true}, nil
}

// UnmarkPaid reverts paymentID to unpaid and deletes its linked transaction.
// A link that cannot be followed is reported in the result and the flag is
// cleared anyway.
func (l *Linker) UnmarkPaid(ctx context.Context, paymentID string) (LinkResult, error) {
	log := logger.FromContext(ctx)
	l.mu.Lock()
	defer l.mu.Unlock()

	// 1. Load the stored state.
	payment, err := l.store.GetPlannedPayment(ctx, paymentID)
	if err != nil {
		return LinkResult{}, fmt.Errorf("UnmarkPaid: loading payment %s: %w", paymentID, err)
	}
	if !payment.IsPaid {
		log.Debug().Str("payment_id", paymentID).Msg("Payment already unpaid, nothing to do")
		return LinkResult{Payment: *payment}, nil
	}

	// 2. Resolve the link, falling back to a legacy note marker.
	note, markerID, hasMarker := domain.DecodeMarker(payment.Note)
	txID := payment.LinkedTransactionID
	if txID == "" && hasMarker {
		txID = markerID
	}

	updated := *payment
	updated.IsPaid = false
	updated.LinkedTransactionID = ""
	updated.Note = note

	result := LinkResult{Payment: updated, Changed: true}
	batch := ledger.Batch{PlannedPayments: []domain.PlannedPayment{updated}}

	if txID == "" {
		result.Issue = &LinkageIssue{PaymentID: paymentID, Kind: IssueMissingLink}
	} else {
		tx, err := l.store.GetTransaction(ctx, txID)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			result.Issue = &LinkageIssue{PaymentID: paymentID, TransactionID: txID, Kind: IssueDanglingLink}
		case err != nil:
			return LinkResult{}, fmt.Errorf("UnmarkPaid: loading transaction %s: %w", txID, err)
		default:
			batch.DeleteTransactionIDs = []string{tx.ID}
			result.Transaction = tx
		}
	}

	// 3. Persist both together.
	if err := l.store.Save(context.WithoutCancel(ctx), batch); err != nil {
		return LinkResult{}, fmt.Errorf("UnmarkPaid: saving payment %s: %w", paymentID, err)
	}

	if result.Issue != nil {
		l.issues.Add(1)
		log.Warn().
			Str("payment_id", paymentID).
			Str("transaction_id", result.Issue.TransactionID).
			Str("issue", string(result.Issue.Kind)).
			Msg("Linked transaction not found, cleared paid flag only")
	} else {
		log.Info().
			Str("payment_id", paymentID).
			Str("transaction_id", txID).
			Msg("Payment marked as unpaid")
	}

	return result, nil
}
