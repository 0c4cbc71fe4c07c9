package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Interval is the repeat period of a recurring planned payment.
type Interval string

const (
	IntervalWeek  Interval = "week"
	IntervalMonth Interval = "month"
	IntervalYear  Interval = "year"
)

// Valid reports whether i is one of the supported intervals.
func (i Interval) Valid() bool {
	switch i {
	case IntervalWeek, IntervalMonth, IntervalYear:
		return true
	}
	return false
}

// ParseInterval accepts the interval names case-insensitively.
func ParseInterval(s string) (Interval, error) {
	i := Interval(strings.ToLower(strings.TrimSpace(s)))
	if !i.Valid() {
		return "", NewValidationError("recurring_interval", "unknown interval: "+s)
	}
	return i, nil
}

// ReminderPreference selects which reminders are sent ahead of a due date.
type ReminderPreference struct {
	OneDay    bool `json:"one_day"`
	ThreeDays bool `json:"three_days"`
	OneWeek   bool `json:"one_week"`
}

// Any reports whether at least one reminder is enabled.
func (r ReminderPreference) Any() bool {
	return r.OneDay || r.ThreeDays || r.OneWeek
}

// PlannedPayment is a payment the user expects to make on DueDate.
//
// IsPaid is true only while LinkedTransactionID references the transaction
// that was recorded when the payment was marked as paid.
type PlannedPayment struct {
	ID                  string             `json:"id"`
	Title               string             `json:"title"`
	Amount              decimal.Decimal    `json:"amount"`
	DueDate             time.Time          `json:"due_date"`
	Note                string             `json:"note,omitempty"`
	IsPaid              bool               `json:"is_paid"`
	IsRecurring         bool               `json:"is_recurring"`
	RecurringInterval   Interval           `json:"recurring_interval,omitempty"`
	LinkedTransactionID string             `json:"linked_transaction_id,omitempty"`
	Reminders           ReminderPreference `json:"reminders"`
}

// Validate checks the planned payment invariants before any store write.
func (p PlannedPayment) Validate() error {
	var errs ValidationErrors
	if strings.TrimSpace(p.Title) == "" {
		errs.Add("title", "title must not be empty")
	}
	if p.Amount.IsNegative() {
		errs.Add("amount", "amount must not be negative: "+p.Amount.String())
	}
	if p.DueDate.IsZero() {
		errs.Add("due_date", "due date is required")
	}
	switch {
	case p.IsRecurring && !p.RecurringInterval.Valid():
		errs.Add("recurring_interval", "recurring payments need a week, month or year interval")
	case !p.IsRecurring && p.RecurringInterval != "":
		errs.Add("recurring_interval", "interval set on a one-off payment")
	}
	if p.IsPaid && p.LinkedTransactionID == "" {
		errs.Add("linked_transaction_id", "paid payment has no linked transaction")
	}
	return errs.Err()
}
