package ledger

import (
	"sort"
	"strings"
	"time"

	"github.com/dvloznov/finance-planner/internal/domain"
)

// TransactionFilter selects transactions. Zero values match everything.
type TransactionFilter struct {
	Kind     domain.Kind
	Category string

	// From is inclusive, To is exclusive.
	From time.Time
	To   time.Time

	Limit  int
	Offset int
}

// Matches reports whether tx satisfies the filter. Limit and Offset are
// applied separately by Page.
func (f TransactionFilter) Matches(tx domain.Transaction) bool {
	if f.Kind != "" && tx.Kind != f.Kind {
		return false
	}
	if f.Category != "" && !strings.EqualFold(tx.Category, f.Category) {
		return false
	}
	if !f.From.IsZero() && tx.Date.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !tx.Date.Before(f.To) {
		return false
	}
	return true
}

// PaymentFilter selects planned payments. Nil pointers and zero times match
// everything.
type PaymentFilter struct {
	Paid      *bool
	Recurring *bool

	// DueFrom is inclusive, DueBefore is exclusive.
	DueFrom   time.Time
	DueBefore time.Time

	Limit  int
	Offset int
}

// Matches reports whether p satisfies the filter.
func (f PaymentFilter) Matches(p domain.PlannedPayment) bool {
	if f.Paid != nil && p.IsPaid != *f.Paid {
		return false
	}
	if f.Recurring != nil && p.IsRecurring != *f.Recurring {
		return false
	}
	if !f.DueFrom.IsZero() && p.DueDate.Before(f.DueFrom) {
		return false
	}
	if !f.DueBefore.IsZero() && !p.DueDate.Before(f.DueBefore) {
		return false
	}
	return true
}

// Bool returns a pointer for use in filters.
func Bool(v bool) *bool {
	return &v
}

// SortTransactions orders transactions newest first, breaking ties by id.
func SortTransactions(txs []domain.Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		if !txs[i].Date.Equal(txs[j].Date) {
			return txs[i].Date.After(txs[j].Date)
		}
		return txs[i].ID < txs[j].ID
	})
}

// SortPayments orders planned payments by due date ascending, breaking ties by id.
func SortPayments(ps []domain.PlannedPayment) {
	sort.SliceStable(ps, func(i, j int) bool {
		if !ps[i].DueDate.Equal(ps[j].DueDate) {
			return ps[i].DueDate.Before(ps[j].DueDate)
		}
		return ps[i].ID < ps[j].ID
	})
}

// SortGoals orders goals by due date ascending, breaking ties by id.
func SortGoals(gs []domain.Goal) {
	sort.SliceStable(gs, func(i, j int) bool {
		if !gs[i].DueDate.Equal(gs[j].DueDate) {
			return gs[i].DueDate.Before(gs[j].DueDate)
		}
		return gs[i].ID < gs[j].ID
	})
}

// Page applies offset and limit to an already sorted slice.
func Page[T any](items []T, offset, limit int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return []T{}
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
