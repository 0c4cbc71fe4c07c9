package domain

import "github.com/shopspring/decimal"

// Trend compares the current month's spending with the previous month's.
type Trend string

const (
	TrendIncreased Trend = "increased"
	TrendDecreased Trend = "decreased"
	TrendStable    Trend = "stable"
)

// CategoryInsight is the derived month-over-month view of one category.
// It is recomputed from the ledger and never persisted.
type CategoryInsight struct {
	Category         string          `json:"category"`
	CurrentSpending  decimal.Decimal `json:"current_spending"`
	PreviousSpending decimal.Decimal `json:"previous_spending"`
	Trend            Trend           `json:"trend"`
	Message          string          `json:"message"`
	SuggestedLimit   decimal.Decimal `json:"suggested_limit"`
}

// CategoryBudget tracks the current month's spending against the suggested limit.
type CategoryBudget struct {
	Category        string          `json:"category"`
	SuggestedAmount decimal.Decimal `json:"suggested_amount"`
	CurrentAmount   decimal.Decimal `json:"current_amount"`
	Progress        decimal.Decimal `json:"progress"`
}
