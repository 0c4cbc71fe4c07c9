// Package goals manages savings goals: creation, contributions, progress
// totals and suggestions for reaching a goal on time.
package goals

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/finance-planner/internal/domain"
	"github.com/dvloznov/finance-planner/internal/ledger"
	"github.com/dvloznov/finance-planner/internal/logger"
)

// NewGoal is the input for AddGoal.
type NewGoal struct {
	Title        string              `json:"title"`
	TargetAmount decimal.Decimal     `json:"target_amount"`
	SavedAmount  decimal.Decimal     `json:"saved_amount"`
	DueDate      time.Time           `json:"due_date"`
	Category     domain.GoalCategory `json:"category"`
	Note         string              `json:"note,omitempty"`
}

// Summary totals every goal.
type Summary struct {
	Count       int             `json:"count"`
	TotalTarget decimal.Decimal `json:"total_target"`
	TotalSaved  decimal.Decimal `json:"total_saved"`
	Progress    decimal.Decimal `json:"progress"`
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

// Service stores goals in the ledger.
type Service struct {
	store ledger.Store
	now   func() time.Time
	newID func() string

	// mu is held across read-modify-write of a stored goal.
	mu sync.Mutex
}

// NewService creates a goal service over store.
func NewService(store ledger.Store, opts ...Option) *Service {
	s := &Service{store: store, now: time.Now, newID: uuid.NewString}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddGoal stores a new goal. An empty category means domain.GoalOther.
func (s *Service) AddGoal(ctx context.Context, in NewGoal) (domain.Goal, error) {
	g := domain.Goal{
		ID:            s.newID(),
		Title:         strings.TrimSpace(in.Title),
		TargetAmount:  in.TargetAmount,
		SavedAmount:   in.SavedAmount,
		DueDate:       in.DueDate,
		Note:          in.Note,
		Category:      in.Category,
		Contributions: []decimal.Decimal{},
	}
	if g.Category == "" {
		g.Category = domain.GoalOther
	}
	if err := g.Validate(); err != nil {
		return domain.Goal{}, err
	}
	if err := s.store.Save(ctx, ledger.Batch{Goals: []domain.Goal{g}}); err != nil {
		return domain.Goal{}, fmt.Errorf("AddGoal: %w", err)
	}

	log := logger.FromContext(ctx)
	log.Info().
		Str("goal_id", g.ID).
		Str("target", g.TargetAmount.String()).
		Msg("Goal added")
	return g, nil
}

// UpdateGoal edits title, target, due date, category and note. Saved amount
// and contributions are kept from the stored copy.
func (s *Service) UpdateGoal(ctx context.Context, g domain.Goal) (domain.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, err := s.store.GetGoal(ctx, g.ID)
	if err != nil {
		return domain.Goal{}, fmt.Errorf("UpdateGoal: %w", err)
	}

	updated := *stored
	updated.Title = strings.TrimSpace(g.Title)
	updated.TargetAmount = g.TargetAmount
	updated.DueDate = g.DueDate
	updated.Note = g.Note
	if g.Category != "" {
		updated.Category = g.Category
	}
	if err := updated.Validate(); err != nil {
		return domain.Goal{}, err
	}
	if err := s.store.Save(ctx, ledger.Batch{Goals: []domain.Goal{updated}}); err != nil {
		return domain.Goal{}, fmt.Errorf("UpdateGoal: %w", err)
	}
	return updated, nil
}

// AddContribution adds amount to the goal's saved amount and records it in
// the contribution history.
func (s *Service) AddContribution(ctx context.Context, id string, amount decimal.Decimal) (domain.Goal, error) {
	if !amount.IsPositive() {
		return domain.Goal{}, domain.NewValidationError("amount", "contribution must be positive: "+amount.String())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// 1. Load the stored goal.
	stored, err := s.store.GetGoal(ctx, id)
	if err != nil {
		return domain.Goal{}, fmt.Errorf("AddContribution: %w", err)
	}

	// 2. Apply the contribution.
	updated := *stored
	updated.SavedAmount = updated.SavedAmount.Add(amount)
	updated.Contributions = append(updated.Contributions, amount)
	updated.LastContributionAt = s.now()

	// 3. Persist.
	if err := s.store.Save(context.WithoutCancel(ctx), ledger.Batch{Goals: []domain.Goal{updated}}); err != nil {
		return domain.Goal{}, fmt.Errorf("AddContribution: %w", err)
	}

	log := logger.FromContext(ctx)
	log.Info().
		Str("goal_id", id).
		Str("amount", amount.String()).
		Str("saved", updated.SavedAmount.String()).
		Msg("Goal contribution recorded")
	if updated.Reached() && !stored.Reached() {
		log.Info().Str("goal_id", id).Msg("Goal reached")
	}
	return updated, nil
}

// DeleteGoal removes a goal.
func (s *Service) DeleteGoal(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.store.GetGoal(ctx, id); err != nil {
		return fmt.Errorf("DeleteGoal: %w", err)
	}
	if err := s.store.Save(ctx, ledger.Batch{DeleteGoalIDs: []string{id}}); err != nil {
		return fmt.Errorf("DeleteGoal: %w", err)
	}
	return nil
}

// Goal returns one goal.
func (s *Service) Goal(ctx context.Context, id string) (domain.Goal, error) {
	g, err := s.store.GetGoal(ctx, id)
	if err != nil {
		return domain.Goal{}, fmt.Errorf("Goal: %w", err)
	}
	return *g, nil
}

// Goals lists goals by due date.
func (s *Service) Goals(ctx context.Context) ([]domain.Goal, error) {
	gs, err := s.store.FetchGoals(ctx)
	if err != nil {
		return nil, fmt.Errorf("Goals: %w", err)
	}
	return gs, nil
}

// Summary totals target and saved amounts over every goal.
func (s *Service) Summary(ctx context.Context) (Summary, error) {
	gs, err := s.Goals(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("Summary: %w", err)
	}
	return Summarize(gs), nil
}

// Suggestion builds the saving suggestion for one goal from the whole
// transaction history. It returns nil when the goal needs no action.
func (s *Service) Suggestion(ctx context.Context, id string) (*Suggestion, error) {
	g, err := s.Goal(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("Suggestion: %w", err)
	}
	txs, err := s.store.FetchTransactions(ctx, ledger.TransactionFilter{Kind: domain.KindExpense})
	if err != nil {
		return nil, fmt.Errorf("Suggestion: fetching expenses: %w", err)
	}
	return SavingSuggestion(g, txs, s.now()), nil
}

// Summarize totals gs. Progress is zero when there is no target at all.
func Summarize(gs []domain.Goal) Summary {
	sum := Summary{Count: len(gs), TotalTarget: decimal.Zero, TotalSaved: decimal.Zero, Progress: decimal.Zero}
	for _, g := range gs {
		sum.TotalTarget = sum.TotalTarget.Add(g.TargetAmount)
		sum.TotalSaved = sum.TotalSaved.Add(g.SavedAmount)
	}
	if sum.TotalTarget.IsPositive() {
		sum.Progress = sum.TotalSaved.Div(sum.TotalTarget)
	}
	return sum
}
