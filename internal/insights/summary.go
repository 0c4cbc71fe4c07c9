package insights

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/finance-planner/internal/domain"
)

// CategoryExpense is one category's share of all-time expenses.
type CategoryExpense struct {
	Category   string          `json:"category"`
	Amount     decimal.Decimal `json:"amount"`
	Percentage decimal.Decimal `json:"percentage"`
}

// Balance is total income minus total expense.
func Balance(txs []domain.Transaction) decimal.Decimal {
	total := decimal.Zero
	for _, tx := range txs {
		total = total.Add(tx.SignedAmount())
	}
	return total
}

// Totals returns total income and total expense.
func Totals(txs []domain.Transaction) (income, expense decimal.Decimal) {
	for _, tx := range txs {
		switch tx.Kind {
		case domain.KindIncome:
			income = income.Add(tx.Amount)
		case domain.KindExpense:
			expense = expense.Add(tx.Amount)
		}
	}
	return income, expense
}

// CategoryExpenses breaks expenses down by category, largest first.
// Percentages are of total expense, rounded to two places.
func CategoryExpenses(txs []domain.Transaction) []CategoryExpense {
	byCategory := make(map[string]decimal.Decimal)
	total := decimal.Zero
	for _, tx := range txs {
		if tx.Kind != domain.KindExpense {
			continue
		}
		byCategory[tx.Category] = byCategory[tx.Category].Add(tx.Amount)
		total = total.Add(tx.Amount)
	}

	hundred := decimal.NewFromInt(100)
	result := make([]CategoryExpense, 0, len(byCategory))
	for c, amount := range byCategory {
		pct := decimal.Zero
		if total.IsPositive() {
			pct = decimal.Min(amount.Mul(hundred).DivRound(total, 2), hundred)
		}
		result = append(result, CategoryExpense{Category: c, Amount: amount, Percentage: pct})
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Amount.Equal(result[j].Amount) {
			return result[i].Amount.GreaterThan(result[j].Amount)
		}
		return result[i].Category < result[j].Category
	})
	return result
}

// Search returns the transactions whose title or category contains query,
// ignoring case. An empty query matches everything.
func Search(txs []domain.Transaction, query string) []domain.Transaction {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return txs
	}
	var result []domain.Transaction
	for _, tx := range txs {
		if strings.Contains(strings.ToLower(tx.Title), q) || strings.Contains(strings.ToLower(tx.Category), q) {
			result = append(result, tx)
		}
	}
	return result
}
