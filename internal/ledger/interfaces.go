// Package ledger defines the storage contract the planning engine relies on.
// Implementations live in ledger/inmemory and infra/bigquery.
package ledger

import (
	"context"

	"github.com/dvloznov/finance-planner/internal/domain"
)

// Store provides durable storage for transactions, planned payments and
// savings goals.
type Store interface {
	// GetTransaction returns the transaction with the given id or an error
	// matching domain.ErrNotFound.
	GetTransaction(ctx context.Context, id string) (*domain.Transaction, error)

	// GetPlannedPayment returns the planned payment with the given id or an
	// error matching domain.ErrNotFound.
	GetPlannedPayment(ctx context.Context, id string) (*domain.PlannedPayment, error)

	// FetchTransactions returns every transaction matching the filter,
	// newest first.
	FetchTransactions(ctx context.Context, filter TransactionFilter) ([]domain.Transaction, error)

	// FetchPlannedPayments returns every planned payment matching the filter,
	// earliest due date first.
	FetchPlannedPayments(ctx context.Context, filter PaymentFilter) ([]domain.PlannedPayment, error)

	// GetGoal returns the savings goal with the given id or an error
	// matching domain.ErrNotFound.
	GetGoal(ctx context.Context, id string) (*domain.Goal, error)

	// FetchGoals returns every savings goal, earliest due date first.
	FetchGoals(ctx context.Context) ([]domain.Goal, error)

	// Save applies the batch atomically: either every write and delete in it
	// is persisted or none is.
	Save(ctx context.Context, batch Batch) error

	// DeleteTransaction removes one transaction by id.
	DeleteTransaction(ctx context.Context, id string) error

	// DeletePlannedPayment removes one planned payment by id. It does not
	// touch the transaction the payment may be linked to.
	DeletePlannedPayment(ctx context.Context, id string) error
}

// Batch groups writes that must be applied together.
type Batch struct {
	// ReplaceAll clears the ledger before the rest of the batch is applied.
	ReplaceAll bool

	Transactions         []domain.Transaction
	PlannedPayments      []domain.PlannedPayment
	Goals                []domain.Goal
	DeleteTransactionIDs []string
	DeletePaymentIDs     []string
	DeleteGoalIDs        []string
}

// Empty reports whether the batch would change nothing.
func (b Batch) Empty() bool {
	return !b.ReplaceAll &&
		len(b.Transactions) == 0 &&
		len(b.PlannedPayments) == 0 &&
		len(b.Goals) == 0 &&
		len(b.DeleteTransactionIDs) == 0 &&
		len(b.DeletePaymentIDs) == 0 &&
		len(b.DeleteGoalIDs) == 0
}

// Validate checks every entity in the batch. Stores call it before applying
// anything so an invalid entity rejects the whole batch.
func (b Batch) Validate() error {
	for _, tx := range b.Transactions {
		if tx.ID == "" {
			return domain.NewValidationError("id", "transaction id is required")
		}
		if err := tx.Validate(); err != nil {
			return err
		}
	}
	for _, p := range b.PlannedPayments {
		if p.ID == "" {
			return domain.NewValidationError("id", "planned payment id is required")
		}
		if err := p.Validate(); err != nil {
			return err
		}
	}
	for _, g := range b.Goals {
		if g.ID == "" {
			return domain.NewValidationError("id", "goal id is required")
		}
		if err := g.Validate(); err != nil {
			return err
		}
	}
	return nil
}
