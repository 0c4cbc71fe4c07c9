package goals

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/finance-planner/internal/domain"
)

// SuggestionKind says what the user should do about a goal.
type SuggestionKind string

const (
	// SuggestReviewSpending means the monthly amount needed is large
	// compared with a typical expense.
	SuggestReviewSpending SuggestionKind = "review_spending"
	// SuggestContributeMore means contributions so far fall short of the
	// monthly amount needed.
	SuggestContributeMore SuggestionKind = "contribute_more"
)

var heavyShare = decimal.RequireFromString("0.5")

// Suggestion advises how to reach a goal on time.
type Suggestion struct {
	Kind          SuggestionKind  `json:"kind"`
	Message       string          `json:"message"`
	MonthlyNeeded decimal.Decimal `json:"monthly_needed"`

	// HighestExpense is the title of the largest expense, set for
	// SuggestReviewSpending.
	HighestExpense string `json:"highest_expense,omitempty"`
}

// SavingSuggestion compares what g still needs per month with the user's
// expenses. When more than half of the average expense is needed each month
// it suggests reviewing spending, starting with the largest expense. When
// the goal is merely behind schedule it states the monthly amount needed.
// It returns nil for reached goals and goals that are on track.
func SavingSuggestion(g domain.Goal, txs []domain.Transaction, now time.Time) *Suggestion {
	if g.Reached() {
		return nil
	}
	needed := g.RequiredMonthlyContribution(now)

	average, highest, ok := expenseStats(txs)
	if ok && needed.GreaterThan(average.Mul(heavyShare)) {
		return &Suggestion{
			Kind:           SuggestReviewSpending,
			MonthlyNeeded:  needed,
			HighestExpense: highest.Title,
			Message: fmt.Sprintf("Review your monthly spending to reach this goal, starting with %s.",
				highest.Title),
		}
	}
	if !g.OnTrack(now) {
		return &Suggestion{
			Kind:          SuggestContributeMore,
			MonthlyNeeded: needed,
			Message: fmt.Sprintf("Save %s a month to reach this goal on time. Keep contributing regularly.",
				needed.StringFixed(2)),
		}
	}
	return nil
}

// expenseStats returns the mean expense amount and the largest expense. ok
// is false when txs holds no expenses.
func expenseStats(txs []domain.Transaction) (average decimal.Decimal, highest domain.Transaction, ok bool) {
	total := decimal.Zero
	n := 0
	for _, tx := range txs {
		if tx.Kind != domain.KindExpense {
			continue
		}
		if n == 0 || tx.Amount.GreaterThan(highest.Amount) {
			highest = tx
		}
		total = total.Add(tx.Amount)
		n++
	}
	if n == 0 {
		return decimal.Zero, domain.Transaction{}, false
	}
	return total.Div(decimal.NewFromInt(int64(n))), highest, true
}
