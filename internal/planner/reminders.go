package planner

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/finance-planner/internal/domain"
)

// ReminderOffset is how long before the due date a reminder fires.
type ReminderOffset string

const (
	OffsetOneWeek   ReminderOffset = "one-week"
	OffsetThreeDays ReminderOffset = "three-days"
	OffsetOneDay    ReminderOffset = "one-day"
)

// Days returns the offset length in days.
func (o ReminderOffset) Days() int {
	switch o {
	case OffsetOneWeek:
		return 7
	case OffsetThreeDays:
		return 3
	case OffsetOneDay:
		return 1
	}
	return 0
}

// Reminder is one notification to deliver ahead of a payment's due date.
type Reminder struct {
	// ID is unique per payment and offset so rescheduling replaces the
	// previous reminder.
	ID        string         `json:"id"`
	PaymentID string         `json:"payment_id"`
	Offset    ReminderOffset `json:"offset"`
	FireAt    time.Time      `json:"fire_at"`
	Title     string         `json:"title"`
	Body      string         `json:"body"`
}

// Notifier delivers reminders. Implementations are best effort: a failure
// is logged by the caller and never undoes a ledger write.
type Notifier interface {
	// Schedule queues reminders, replacing any with the same ID.
	Schedule(ctx context.Context, reminders []Reminder) error

	// Cancel drops every pending reminder of a payment.
	Cancel(ctx context.Context, paymentID string) error
}

// NopNotifier discards reminders.
type NopNotifier struct{}

func (NopNotifier) Schedule(context.Context, []Reminder) error { return nil }
func (NopNotifier) Cancel(context.Context, string) error       { return nil }

// PlanReminders returns the reminders enabled on p whose fire time is still
// after now. Paid payments get none.
func PlanReminders(p domain.PlannedPayment, now time.Time) []Reminder {
	if p.IsPaid || !p.Reminders.Any() {
		return nil
	}

	var offsets []ReminderOffset
	if p.Reminders.OneWeek {
		offsets = append(offsets, OffsetOneWeek)
	}
	if p.Reminders.ThreeDays {
		offsets = append(offsets, OffsetThreeDays)
	}
	if p.Reminders.OneDay {
		offsets = append(offsets, OffsetOneDay)
	}

	var reminders []Reminder
	for _, o := range offsets {
		fireAt := p.DueDate.AddDate(0, 0, -o.Days())
		if !fireAt.After(now) {
			continue
		}
		reminders = append(reminders, Reminder{
			ID:        p.ID + "-" + string(o),
			PaymentID: p.ID,
			Offset:    o,
			FireAt:    fireAt,
			Title:     "Payment reminder",
			Body:      reminderBody(p, o),
		})
	}
	return reminders
}

func reminderBody(p domain.PlannedPayment, o ReminderOffset) string {
	amount := p.Amount.StringFixed(2)
	switch o {
	case OffsetOneWeek:
		return fmt.Sprintf("%s is due in one week.\n\nAmount: %s", p.Title, amount)
	case OffsetThreeDays:
		return fmt.Sprintf("%s is due in 3 days.\n\nAmount: %s", p.Title, amount)
	default:
		return fmt.Sprintf("%s is due tomorrow.\n\nAmount: %s\nDon't forget to pay it.", p.Title, amount)
	}
}
