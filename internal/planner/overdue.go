package planner

import (
	"time"

	"github.com/dvloznov/finance-planner/internal/calendar"
	"github.com/dvloznov/finance-planner/internal/domain"
)

// IsOverdue reports whether p's due day is on or before asOf's day. Days are
// compared in asOf's location.
func IsOverdue(p domain.PlannedPayment, asOf time.Time) bool {
	return calendar.SameOrBeforeDay(p.DueDate, asOf)
}

// Overdue returns the payments due on or before asOf, preserving input order.
// Paid payments are included; use UnpaidOverdue for the actionable subset.
func Overdue(payments []domain.PlannedPayment, asOf time.Time) []domain.PlannedPayment {
	result := make([]domain.PlannedPayment, 0)
	for _, p := range payments {
		if IsOverdue(p, asOf) {
			result = append(result, p)
		}
	}
	return result
}

// UnpaidOverdue returns the unpaid payments due on or before asOf.
func UnpaidOverdue(payments []domain.PlannedPayment, asOf time.Time) []domain.PlannedPayment {
	result := make([]domain.PlannedPayment, 0)
	for _, p := range payments {
		if !p.IsPaid && IsOverdue(p, asOf) {
			result = append(result, p)
		}
	}
	return result
}
