package insights

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/finance-planner/internal/domain"
	"github.com/dvloznov/finance-planner/internal/ledger"
	"github.com/dvloznov/finance-planner/internal/logger"
	"github.com/dvloznov/finance-planner/internal/planner"
)

// TipGenerator writes a short saving tip from the category insights.
type TipGenerator interface {
	SavingTip(ctx context.Context, insights []domain.CategoryInsight) (string, error)
}

// Dashboard is every derived view of the ledger at one point in time.
type Dashboard struct {
	AsOf             time.Time                `json:"as_of"`
	Balance          decimal.Decimal          `json:"balance"`
	TotalIncome      decimal.Decimal          `json:"total_income"`
	TotalExpense     decimal.Decimal          `json:"total_expense"`
	Insights         []domain.CategoryInsight `json:"insights"`
	Budgets          []domain.CategoryBudget  `json:"budgets"`
	CategoryExpenses []CategoryExpense        `json:"category_expenses"`
	Overdue          []domain.PlannedPayment  `json:"overdue"`
	UnpaidOverdue    []domain.PlannedPayment  `json:"unpaid_overdue"`
	Tip              string                   `json:"tip,omitempty"`
}

// Engine recomputes the dashboard from the store on demand.
type Engine struct {
	store ledger.Store
	tips  TipGenerator

	mu     sync.RWMutex
	latest *Dashboard
}

// NewEngine creates an engine. tips may be nil.
func NewEngine(store ledger.Store, tips TipGenerator) *Engine {
	return &Engine{store: store, tips: tips}
}

// Refresh reads a fresh snapshot and recomputes the dashboard. It may run on
// a background goroutine; if ctx is cancelled the partial result is dropped
// and the previous dashboard stays current.
func (e *Engine) Refresh(ctx context.Context, asOf time.Time) (*Dashboard, error) {
	log := logger.FromContext(ctx)

	txs, err := e.store.FetchTransactions(ctx, ledger.TransactionFilter{})
	if err != nil {
		return nil, fmt.Errorf("Refresh: fetching transactions: %w", err)
	}
	payments, err := e.store.FetchPlannedPayments(ctx, ledger.PaymentFilter{})
	if err != nil {
		return nil, fmt.Errorf("Refresh: fetching planned payments: %w", err)
	}

	income, expense := Totals(txs)
	insights, budgets := ComputeBudgetInsights(txs, asOf)
	d := &Dashboard{
		AsOf:             asOf,
		Balance:          income.Sub(expense),
		TotalIncome:      income,
		TotalExpense:     expense,
		Insights:         insights,
		Budgets:          budgets,
		CategoryExpenses: CategoryExpenses(txs),
		Overdue:          planner.Overdue(payments, asOf),
		UnpaidOverdue:    planner.UnpaidOverdue(payments, asOf),
	}

	if e.tips != nil && len(insights) > 0 {
		tip, err := e.tips.SavingTip(ctx, insights)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to generate saving tip")
		} else {
			d.Tip = tip
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("Refresh: %w", err)
	}

	e.mu.Lock()
	e.latest = d
	e.mu.Unlock()

	log.Debug().
		Int("transactions", len(txs)).
		Int("planned_payments", len(payments)).
		Int("categories", len(insights)).
		Msg("Dashboard refreshed")
	return d, nil
}

// Latest returns the last successfully computed dashboard, or nil.
func (e *Engine) Latest() *Dashboard {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.latest
}
