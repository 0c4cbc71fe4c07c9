package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Kind carries the sign of a transaction. Amounts are always stored as
// non-negative magnitudes.
type Kind string

const (
	KindIncome  Kind = "income"
	KindExpense Kind = "expense"
)

// Valid reports whether k is a known transaction kind.
func (k Kind) Valid() bool {
	return k == KindIncome || k == KindExpense
}

const (
	// DefaultCategory is used when a transaction is recorded without one.
	DefaultCategory = "Other"

	// PlannedPaymentCategory is the category of transactions created when a
	// planned payment is marked as paid.
	PlannedPaymentCategory = "Planned Payment"
)

// Transaction is one income or expense entry in the ledger.
type Transaction struct {
	ID       string          `json:"id"`
	Title    string          `json:"title"`
	Amount   decimal.Decimal `json:"amount"`
	Kind     Kind            `json:"kind"`
	Category string          `json:"category"`
	Date     time.Time       `json:"date"`
	Note     string          `json:"note,omitempty"`
}

// SignedAmount returns the amount's contribution to the balance:
// positive for income, negative for expense.
func (t Transaction) SignedAmount() decimal.Decimal {
	if t.Kind == KindExpense {
		return t.Amount.Neg()
	}
	return t.Amount
}

// Normalize fills defaults that the data model allows to be absent.
func (t *Transaction) Normalize() {
	t.Title = strings.TrimSpace(t.Title)
	t.Category = strings.TrimSpace(t.Category)
	if t.Category == "" {
		t.Category = DefaultCategory
	}
}

// Validate checks the transaction invariants before any store write.
func (t Transaction) Validate() error {
	var errs ValidationErrors
	if strings.TrimSpace(t.Title) == "" {
		errs.Add("title", "title must not be empty")
	}
	if t.Amount.IsNegative() {
		errs.Add("amount", "amount must not be negative: "+t.Amount.String())
	}
	if !t.Kind.Valid() {
		errs.Add("kind", "unknown transaction kind: "+string(t.Kind))
	}
	if t.Date.IsZero() {
		errs.Add("date", "date is required")
	}
	return errs.Err()
}
