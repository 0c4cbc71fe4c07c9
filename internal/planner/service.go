// Package planner implements the planned-payment lifecycle: recurring series
// expansion, paid/unpaid transitions with their linked transactions, overdue
// detection, reminders and the link repair pass.
package planner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/finance-planner/internal/domain"
	"github.com/dvloznov/finance-planner/internal/ledger"
	"github.com/dvloznov/finance-planner/internal/logger"
)

// NewPayment is the input for AddPlannedPayment.
type NewPayment struct {
	Title             string                    `json:"title"`
	Amount            decimal.Decimal           `json:"amount"`
	DueDate           time.Time                 `json:"due_date"`
	Note              string                    `json:"note,omitempty"`
	IsRecurring       bool                      `json:"is_recurring"`
	RecurringInterval domain.Interval           `json:"recurring_interval,omitempty"`
	Reminders         domain.ReminderPreference `json:"reminders"`
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator overrides uuid.NewString.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

// WithNotifier sets where reminders are delivered.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// Service is the entry point for every ledger mutation. Callers re-read the
// store after a call instead of keeping their own copy of the ledger.
type Service struct {
	store    ledger.Store
	notifier Notifier
	now      func() time.Time
	newID    func() string
	linker   *Linker
}

// NewService creates a planner service over store.
func NewService(store ledger.Store, opts ...Option) *Service {
	s := &Service{
		store:    store,
		notifier: NopNotifier{},
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.linker = NewLinker(store, s.now, s.newID)
	return s
}

// Linker exposes the service's linker, e.g. for its issue counter.
func (s *Service) Linker() *Linker {
	return s.linker
}

// AddPlannedPayment stores a one-off payment, or a full recurring series
// when in.IsRecurring is set.
func (s *Service) AddPlannedPayment(ctx context.Context, in NewPayment) ([]domain.PlannedPayment, error) {
	if in.IsRecurring {
		return s.CreateRecurringSeries(ctx, RecurringSpec{
			Title:     in.Title,
			Amount:    in.Amount,
			StartDate: in.DueDate,
			Interval:  in.RecurringInterval,
			Note:      in.Note,
			Reminders: in.Reminders,
		})
	}

	p := domain.PlannedPayment{
		ID:                s.newID(),
		Title:             strings.TrimSpace(in.Title),
		Amount:            in.Amount,
		DueDate:           in.DueDate,
		Note:              in.Note,
		RecurringInterval: in.RecurringInterval,
		Reminders:         in.Reminders,
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.Save(ctx, ledger.Batch{PlannedPayments: []domain.PlannedPayment{p}}); err != nil {
		return nil, fmt.Errorf("AddPlannedPayment: %w", err)
	}

	s.schedule(ctx, []domain.PlannedPayment{p})
	return []domain.PlannedPayment{p}, nil
}

// CreateRecurringSeries expands spec and stores all instances in one batch.
// On failure none of them are kept.
func (s *Service) CreateRecurringSeries(ctx context.Context, spec RecurringSpec) ([]domain.PlannedPayment, error) {
	log := logger.FromContext(ctx)

	series, err := ExpandRecurringSeries(spec, s.newID)
	if err != nil {
		return nil, err
	}
	if err := s.store.Save(ctx, ledger.Batch{PlannedPayments: series}); err != nil {
		if !errors.Is(err, domain.ErrBatchRejected) {
			err = fmt.Errorf("%w: %w", domain.ErrBatchRejected, err)
		}
		return nil, fmt.Errorf("CreateRecurringSeries: %w", err)
	}

	log.Info().
		Str("title", spec.Title).
		Str("interval", string(spec.Interval)).
		Int("instances", len(series)).
		Msg("Created recurring payment series")

	s.schedule(ctx, series)
	return series, nil
}

// UpdatePlannedPayment edits the user-facing fields of a stored payment.
// Paid state, link and recurrence are kept from the stored copy.
func (s *Service) UpdatePlannedPayment(ctx context.Context, p domain.PlannedPayment) (domain.PlannedPayment, error) {
	updated, err := s.updatePayment(ctx, p)
	if err != nil {
		return domain.PlannedPayment{}, err
	}

	s.cancel(ctx, updated.ID)
	s.schedule(ctx, []domain.PlannedPayment{updated})
	return updated, nil
}

// updatePayment holds the linker lock so an edit cannot undo a concurrent
// paid transition.
func (s *Service) updatePayment(ctx context.Context, p domain.PlannedPayment) (domain.PlannedPayment, error) {
	s.linker.mu.Lock()
	defer s.linker.mu.Unlock()

	stored, err := s.store.GetPlannedPayment(ctx, p.ID)
	if err != nil {
		return domain.PlannedPayment{}, fmt.Errorf("UpdatePlannedPayment: %w", err)
	}

	updated := *stored
	updated.Title = strings.TrimSpace(p.Title)
	updated.Amount = p.Amount
	updated.DueDate = p.DueDate
	updated.Note = p.Note
	updated.Reminders = p.Reminders
	if err := updated.Validate(); err != nil {
		return domain.PlannedPayment{}, err
	}
	if err := s.store.Save(ctx, ledger.Batch{PlannedPayments: []domain.PlannedPayment{updated}}); err != nil {
		return domain.PlannedPayment{}, fmt.Errorf("UpdatePlannedPayment: %w", err)
	}
	return updated, nil
}

// DeletePlannedPayment removes a payment. A linked transaction stays in the
// ledger as an ordinary expense.
func (s *Service) DeletePlannedPayment(ctx context.Context, id string) error {
	if err := s.store.DeletePlannedPayment(ctx, id); err != nil {
		return fmt.Errorf("DeletePlannedPayment: %w", err)
	}
	s.cancel(ctx, id)
	return nil
}

// MarkPaid records the payment as paid and cancels its reminders.
func (s *Service) MarkPaid(ctx context.Context, paymentID string) (LinkResult, error) {
	res, err := s.linker.MarkPaid(ctx, paymentID)
	if err != nil {
		return res, err
	}
	if res.Changed {
		s.cancel(ctx, paymentID)
	}
	return res, nil
}

// UnmarkPaid reverts the payment to unpaid and reschedules its reminders.
func (s *Service) UnmarkPaid(ctx context.Context, paymentID string) (LinkResult, error) {
	res, err := s.linker.UnmarkPaid(ctx, paymentID)
	if err != nil {
		return res, err
	}
	if res.Changed {
		s.schedule(ctx, []domain.PlannedPayment{res.Payment})
	}
	return res, nil
}

// Repair runs the link repair pass.
func (s *Service) Repair(ctx context.Context, opts RepairOptions) (RepairReport, error) {
	return s.linker.Repair(ctx, opts)
}

// PlannedPayments lists payments in due date order.
func (s *Service) PlannedPayments(ctx context.Context, filter ledger.PaymentFilter) ([]domain.PlannedPayment, error) {
	payments, err := s.store.FetchPlannedPayments(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("PlannedPayments: %w", err)
	}
	return payments, nil
}

// OverduePayments returns every payment due on or before asOf, paid or not.
func (s *Service) OverduePayments(ctx context.Context, asOf time.Time) ([]domain.PlannedPayment, error) {
	payments, err := s.store.FetchPlannedPayments(ctx, ledger.PaymentFilter{})
	if err != nil {
		return nil, fmt.Errorf("OverduePayments: %w", err)
	}
	return Overdue(payments, asOf), nil
}

// ProcessDueRecurring reports the unpaid recurring instances that are due by
// asOf. It never marks anything as paid; that stays a user action.
func (s *Service) ProcessDueRecurring(ctx context.Context, asOf time.Time) ([]domain.PlannedPayment, error) {
	log := logger.FromContext(ctx)

	payments, err := s.store.FetchPlannedPayments(ctx, ledger.PaymentFilter{
		Paid:      ledger.Bool(false),
		Recurring: ledger.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("ProcessDueRecurring: %w", err)
	}

	due := UnpaidOverdue(payments, asOf)
	if len(due) > 0 {
		log.Info().Int("due_count", len(due)).Time("as_of", asOf).Msg("Recurring payments are due")
	}
	return due, nil
}

// RecordTransaction stores a new user transaction.
func (s *Service) RecordTransaction(ctx context.Context, tx domain.Transaction) (domain.Transaction, error) {
	tx.ID = s.newID()
	tx.Normalize()
	if err := tx.Validate(); err != nil {
		return domain.Transaction{}, err
	}
	if err := s.store.Save(ctx, ledger.Batch{Transactions: []domain.Transaction{tx}}); err != nil {
		return domain.Transaction{}, fmt.Errorf("RecordTransaction: %w", err)
	}
	return tx, nil
}

// UpdateTransaction edits title, amount, kind, category, date and note of a
// stored transaction. The id never changes.
func (s *Service) UpdateTransaction(ctx context.Context, tx domain.Transaction) (domain.Transaction, error) {
	if _, err := s.store.GetTransaction(ctx, tx.ID); err != nil {
		return domain.Transaction{}, fmt.Errorf("UpdateTransaction: %w", err)
	}
	tx.Normalize()
	if err := tx.Validate(); err != nil {
		return domain.Transaction{}, err
	}
	if err := s.store.Save(ctx, ledger.Batch{Transactions: []domain.Transaction{tx}}); err != nil {
		return domain.Transaction{}, fmt.Errorf("UpdateTransaction: %w", err)
	}
	return tx, nil
}

// DeleteTransaction removes a transaction. A payment linked to it keeps its
// paid flag until the repair pass runs.
func (s *Service) DeleteTransaction(ctx context.Context, id string) error {
	if err := s.store.DeleteTransaction(ctx, id); err != nil {
		return fmt.Errorf("DeleteTransaction: %w", err)
	}
	return nil
}

// Transactions lists transactions newest first.
func (s *Service) Transactions(ctx context.Context, filter ledger.TransactionFilter) ([]domain.Transaction, error) {
	txs, err := s.store.FetchTransactions(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("Transactions: %w", err)
	}
	return txs, nil
}

func (s *Service) schedule(ctx context.Context, payments []domain.PlannedPayment) {
	now := s.now()
	var reminders []Reminder
	for _, p := range payments {
		reminders = append(reminders, PlanReminders(p, now)...)
	}
	if len(reminders) == 0 {
		return
	}
	if err := s.notifier.Schedule(ctx, reminders); err != nil {
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Int("reminders", len(reminders)).Msg("Failed to schedule reminders")
	}
}

func (s *Service) cancel(ctx context.Context, paymentID string) {
	if err := s.notifier.Cancel(ctx, paymentID); err != nil {
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Str("payment_id", paymentID).Msg("Failed to cancel reminders")
	}
}
