package inmemory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/dvloznov/finance-planner/internal/domain"
	"github.com/dvloznov/finance-planner/internal/ledger"
)

// Store is an in-memory implementation of ledger.Store.
// It is safe for concurrent use. Data is lost on restart; use the BigQuery
// store for persistence.
type Store struct {
	mu           sync.RWMutex
	transactions map[string]domain.Transaction
	payments     map[string]domain.PlannedPayment
	goals        map[string]domain.Goal

	// beforeSave, when set, runs under the write lock before a batch is
	// applied. A non-nil error rejects the batch.
	beforeSave func(ledger.Batch) error
}

// NewStore creates an empty in-memory ledger.
func NewStore() *Store {
	return &Store{
		transactions: make(map[string]domain.Transaction),
		payments:     make(map[string]domain.PlannedPayment),
		goals:        make(map[string]domain.Goal),
	}
}

// SetBeforeSave installs a hook that can reject batches. Tests use it to
// simulate store failures.
func (s *Store) SetBeforeSave(hook func(ledger.Batch) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.beforeSave = hook
}

// GetTransaction implements ledger.Store.
func (s *Store) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.transactions[id]
	if !ok {
		return nil, fmt.Errorf("transaction %s: %w", id, domain.ErrNotFound)
	}
	return &tx, nil
}

// GetPlannedPayment implements ledger.Store.
func (s *Store) GetPlannedPayment(ctx context.Context, id string) (*domain.PlannedPayment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.payments[id]
	if !ok {
		return nil, fmt.Errorf("planned payment %s: %w", id, domain.ErrNotFound)
	}
	return &p, nil
}

// GetGoal implements ledger.Store.
func (s *Store) GetGoal(ctx context.Context, id string) (*domain.Goal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.goals[id]
	if !ok {
		return nil, fmt.Errorf("goal %s: %w", id, domain.ErrNotFound)
	}
	g = cloneGoal(g)
	return &g, nil
}

// FetchTransactions implements ledger.Store.
func (s *Store) FetchTransactions(ctx context.Context, filter ledger.TransactionFilter) ([]domain.Transaction, error) {
	s.mu.RLock()
	result := make([]domain.Transaction, 0, len(s.transactions))
	for _, tx := range s.transactions {
		if filter.Matches(tx) {
			result = append(result, tx)
		}
	}
	s.mu.RUnlock()

	ledger.SortTransactions(result)
	return ledger.Page(result, filter.Offset, filter.Limit), nil
}

// FetchPlannedPayments implements ledger.Store.
func (s *Store) FetchPlannedPayments(ctx context.Context, filter ledger.PaymentFilter) ([]domain.PlannedPayment, error) {
	s.mu.RLock()
	result := make([]domain.PlannedPayment, 0, len(s.payments))
	for _, p := range s.payments {
		if filter.Matches(p) {
			result = append(result, p)
		}
	}
	s.mu.RUnlock()

	ledger.SortPayments(result)
	return ledger.Page(result, filter.Offset, filter.Limit), nil
}

// FetchGoals implements ledger.Store.
func (s *Store) FetchGoals(ctx context.Context) ([]domain.Goal, error) {
	s.mu.RLock()
	result := make([]domain.Goal, 0, len(s.goals))
	for _, g := range s.goals {
		result = append(result, cloneGoal(g))
	}
	s.mu.RUnlock()

	ledger.SortGoals(result)
	return result, nil
}

// Save implements ledger.Store. The batch is validated and applied under a
// single lock so readers never observe part of it.
func (s *Store) Save(ctx context.Context, batch ledger.Batch) error {
	if err := ctx.Err(); err != nil {
		return &domain.StoreError{Op: "save", Err: err}
	}
	if err := batch.Validate(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrBatchRejected, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.beforeSave != nil {
		if err := s.beforeSave(batch); err != nil {
			return &domain.StoreError{Op: "save", Err: fmt.Errorf("%w: %w", domain.ErrBatchRejected, err)}
		}
	}

	if batch.ReplaceAll {
		s.transactions = make(map[string]domain.Transaction)
		s.payments = make(map[string]domain.PlannedPayment)
		s.goals = make(map[string]domain.Goal)
	}
	for _, id := range batch.DeleteTransactionIDs {
		delete(s.transactions, id)
	}
	for _, id := range batch.DeletePaymentIDs {
		delete(s.payments, id)
	}
	for _, id := range batch.DeleteGoalIDs {
		delete(s.goals, id)
	}
	for _, tx := range batch.Transactions {
		s.transactions[tx.ID] = tx
	}
	for _, p := range batch.PlannedPayments {
		s.payments[p.ID] = p
	}
	for _, g := range batch.Goals {
		s.goals[g.ID] = cloneGoal(g)
	}
	return nil
}

// DeleteTransaction implements ledger.Store.
func (s *Store) DeleteTransaction(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.transactions[id]; !ok {
		return fmt.Errorf("transaction %s: %w", id, domain.ErrNotFound)
	}
	delete(s.transactions, id)
	return nil
}

// DeletePlannedPayment implements ledger.Store.
func (s *Store) DeletePlannedPayment(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.payments[id]; !ok {
		return fmt.Errorf("planned payment %s: %w", id, domain.ErrNotFound)
	}
	delete(s.payments, id)
	return nil
}

// cloneGoal copies the contributions so callers never share the stored slice.
func cloneGoal(g domain.Goal) domain.Goal {
	g.Contributions = slices.Clone(g.Contributions)
	return g
}

// Ensure Store implements ledger.Store.
var _ ledger.Store = (*Store)(nil)
