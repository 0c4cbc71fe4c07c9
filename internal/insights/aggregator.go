// Package insights derives read-only views from a ledger snapshot: month over
// month category trends, suggested budgets, balance and expense breakdowns.
package insights

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/finance-planner/internal/calendar"
	"github.com/dvloznov/finance-planner/internal/domain"
)

// Trend messages shown next to each category insight.
const (
	MessageIncreased = "You spent more this month than last month."
	MessageDecreased = "You saved compared to last month."
	MessageStable    = "Your spending is similar to last month."
)

var limitFactor = decimal.RequireFromString("0.9")

// ComputeBudgetInsights compares each category's expenses in asOf's month
// with the month before. Only categories with spending in the current month
// are reported, one entry each, sorted by category. Transactions are placed
// in a month using asOf's location.
func ComputeBudgetInsights(txs []domain.Transaction, asOf time.Time) ([]domain.CategoryInsight, []domain.CategoryBudget) {
	loc := asOf.Location()
	current := calendar.MonthOf(asOf)
	previous := current.Previous()

	currentByCategory := make(map[string]decimal.Decimal)
	previousByCategory := make(map[string]decimal.Decimal)
	for _, tx := range txs {
		if tx.Kind != domain.KindExpense {
			continue
		}
		switch {
		case current.Contains(tx.Date, loc):
			currentByCategory[tx.Category] = currentByCategory[tx.Category].Add(tx.Amount)
		case previous.Contains(tx.Date, loc):
			previousByCategory[tx.Category] = previousByCategory[tx.Category].Add(tx.Amount)
		}
	}

	categories := make([]string, 0, len(currentByCategory))
	for c := range currentByCategory {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	insights := make([]domain.CategoryInsight, 0, len(categories))
	budgets := make([]domain.CategoryBudget, 0, len(categories))
	for _, c := range categories {
		cur := currentByCategory[c]
		prev := previousByCategory[c]
		trend := TrendOf(cur, prev)
		limit := SuggestedLimit(cur, prev)

		insights = append(insights, domain.CategoryInsight{
			Category:         c,
			CurrentSpending:  cur,
			PreviousSpending: prev,
			Trend:            trend,
			Message:          Message(trend),
			SuggestedLimit:   limit,
		})
		budgets = append(budgets, domain.CategoryBudget{
			Category:        c,
			SuggestedAmount: limit,
			CurrentAmount:   cur,
			Progress:        Progress(cur, limit),
		})
	}
	return insights, budgets
}

// TrendOf classifies current spending against previous spending.
func TrendOf(current, previous decimal.Decimal) domain.Trend {
	switch current.Cmp(previous) {
	case 1:
		return domain.TrendIncreased
	case -1:
		return domain.TrendDecreased
	}
	return domain.TrendStable
}

// Message returns the fixed text for a trend.
func Message(t domain.Trend) string {
	switch t {
	case domain.TrendIncreased:
		return MessageIncreased
	case domain.TrendDecreased:
		return MessageDecreased
	}
	return MessageStable
}

// SuggestedLimit is 90% of last month's spending, or of this month's when
// there was none last month. Never negative.
func SuggestedLimit(current, previous decimal.Decimal) decimal.Decimal {
	base := current
	if previous.IsPositive() {
		base = previous
	}
	return decimal.Max(base.Mul(limitFactor), decimal.Zero)
}

// Progress is current/limit clamped to [0, 1], or 0 without a limit.
func Progress(current, limit decimal.Decimal) decimal.Decimal {
	if !limit.IsPositive() {
		return decimal.Zero
	}
	p := current.DivRound(limit, 4)
	if p.IsNegative() {
		return decimal.Zero
	}
	if p.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.NewFromInt(1)
	}
	return p
}
