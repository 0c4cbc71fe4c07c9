package planner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/finance-planner/internal/domain"
)

func TestPlanReminders(t *testing.T) {
	p := domain.PlannedPayment{
		ID:        "p1",
		Title:     "Rent",
		Amount:    dec("950"),
		DueDate:   time.Date(2024, 3, 25, 9, 0, 0, 0, time.UTC),
		Reminders: domain.ReminderPreference{OneDay: true, ThreeDays: true, OneWeek: true},
	}

	tests := []struct {
		name    string
		now     time.Time
		wantIDs []string
	}{
		{name: "all in the future", now: date(2024, 3, 1), wantIDs: []string{"p1-one-week", "p1-three-days", "p1-one-day"}},
		{name: "week already passed", now: date(2024, 3, 20), wantIDs: []string{"p1-three-days", "p1-one-day"}},
		{name: "fire time equal to now is skipped", now: time.Date(2024, 3, 24, 9, 0, 0, 0, time.UTC), wantIDs: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reminders := PlanReminders(p, tt.now)
			var ids []string
			for _, r := range reminders {
				ids = append(ids, r.ID)
				assert.Equal(t, "p1", r.PaymentID)
				assert.True(t, r.FireAt.Equal(p.DueDate.AddDate(0, 0, -r.Offset.Days())))
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestPlanReminders_Bodies(t *testing.T) {
	p := domain.PlannedPayment{
		ID: "p1", Title: "Rent", Amount: dec("950"), DueDate: date(2024, 3, 25),
		Reminders: domain.ReminderPreference{OneDay: true, ThreeDays: true, OneWeek: true},
	}
	reminders := PlanReminders(p, date(2024, 3, 1))
	require.Len(t, reminders, 3)
	assert.Equal(t, "Rent is due in one week.\n\nAmount: 950.00", reminders[0].Body)
	assert.Equal(t, "Rent is due in 3 days.\n\nAmount: 950.00", reminders[1].Body)
	assert.Contains(t, reminders[2].Body, "due tomorrow")
}

func TestPlanReminders_NoneForPaidOrDisabled(t *testing.T) {
	p := domain.PlannedPayment{ID: "p1", Title: "Rent", DueDate: date(2024, 3, 25)}
	assert.Empty(t, PlanReminders(p, date(2024, 3, 1)))

	p.Reminders.OneDay = true
	p.IsPaid = true
	p.LinkedTransactionID = "t"
	assert.Empty(t, PlanReminders(p, date(2024, 3, 1)))
}
