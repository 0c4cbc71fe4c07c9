package planner

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/finance-planner/internal/domain"
	"github.com/dvloznov/finance-planner/internal/ledger"
	"github.com/dvloznov/finance-planner/internal/ledger/inmemory"
)

var fixedNow = time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

// sequentialIDs returns an id generator producing valid, predictable UUIDs.
func sequentialIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("00000000-0000-4000-8000-%012d", n)
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func balance(txs []domain.Transaction) decimal.Decimal {
	total := decimal.Zero
	for _, tx := range txs {
		total = total.Add(tx.SignedAmount())
	}
	return total
}

func newTestService(opts ...Option) (*Service, *inmemory.Store) {
	store := inmemory.NewStore()
	base := []Option{WithClock(fixedClock), WithIDGenerator(sequentialIDs())}
	return NewService(store, append(base, opts...)...), store
}

func allTransactions(store ledger.Store) []domain.Transaction {
	txs, err := store.FetchTransactions(context.Background(), ledger.TransactionFilter{})
	if err != nil {
		panic(err)
	}
	return txs
}

func allPayments(store ledger.Store) []domain.PlannedPayment {
	ps, err := store.FetchPlannedPayments(context.Background(), ledger.PaymentFilter{})
	if err != nil {
		panic(err)
	}
	return ps
}

// MockNotifier is a mock implementation of Notifier for testing.
type MockNotifier struct {
	mu        sync.Mutex
	Scheduled []Reminder
	Cancelled []string

	ScheduleFunc func(ctx context.Context, reminders []Reminder) error
	CancelFunc   func(ctx context.Context, paymentID string) error
}

func (m *MockNotifier) Schedule(ctx context.Context, reminders []Reminder) error {
	m.mu.Lock()
	m.Scheduled = append(m.Scheduled, reminders...)
	m.mu.Unlock()
	if m.ScheduleFunc != nil {
		return m.ScheduleFunc(ctx, reminders)
	}
	return nil
}

func (m *MockNotifier) Cancel(ctx context.Context, paymentID string) error {
	m.mu.Lock()
	m.Cancelled = append(m.Cancelled, paymentID)
	m.mu.Unlock()
	if m.CancelFunc != nil {
		return m.CancelFunc(ctx, paymentID)
	}
	return nil
}

// slowStore delays payment reads to widen the gap between load and save.
type slowStore struct {
	*inmemory.Store
	delay time.Duration
}

func (s *slowStore) GetPlannedPayment(ctx context.Context, id string) (*domain.PlannedPayment, error) {
	time.Sleep(s.delay)
	return s.Store.GetPlannedPayment(ctx, id)
}

// unlinkedPaidStore serves the listed payments as paid with no link and no
// marker, as a hand-edited BigQuery row would read back. Writes go to the
// wrapped store unchanged.
type unlinkedPaidStore struct {
	*inmemory.Store
	ids map[string]bool
}

func (s *unlinkedPaidStore) unlink(p domain.PlannedPayment) domain.PlannedPayment {
	if s.ids[p.ID] {
		p.IsPaid = true
		p.LinkedTransactionID = ""
	}
	return p
}

func (s *unlinkedPaidStore) GetPlannedPayment(ctx context.Context, id string) (*domain.PlannedPayment, error) {
	p, err := s.Store.GetPlannedPayment(ctx, id)
	if err != nil {
		return nil, err
	}
	unlinked := s.unlink(*p)
	return &unlinked, nil
}

func (s *unlinkedPaidStore) FetchPlannedPayments(ctx context.Context, filter ledger.PaymentFilter) ([]domain.PlannedPayment, error) {
	ps, err := s.Store.FetchPlannedPayments(ctx, filter)
	if err != nil {
		return nil, err
	}
	for i := range ps {
		ps[i] = s.unlink(ps[i])
	}
	return ps, nil
}

// newUnlinkedService seeds p unpaid and serves it back as paid without a link.
func newUnlinkedService(t *testing.T, p domain.PlannedPayment) (*Service, *inmemory.Store) {
	t.Helper()
	inner := inmemory.NewStore()
	seedPayment(t, inner, p)
	store := &unlinkedPaidStore{Store: inner, ids: map[string]bool{p.ID: true}}
	return NewService(store, WithClock(fixedClock), WithIDGenerator(sequentialIDs())), inner
}
