package planner

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/finance-planner/internal/calendar"
	"github.com/dvloznov/finance-planner/internal/domain"
)

// SeriesLength is the number of instances materialised for a recurring payment.
const SeriesLength = 12

// RecurringSpec describes a recurring payment before it is expanded.
type RecurringSpec struct {
	Title     string                    `json:"title"`
	Amount    decimal.Decimal           `json:"amount"`
	StartDate time.Time                 `json:"start_date"`
	Interval  domain.Interval           `json:"interval"`
	Note      string                    `json:"note,omitempty"`
	Reminders domain.ReminderPreference `json:"reminders"`
}

// template returns the payment every instance is derived from.
func (s RecurringSpec) template() domain.PlannedPayment {
	return domain.PlannedPayment{
		Title:             strings.TrimSpace(s.Title),
		Amount:            s.Amount,
		DueDate:           s.StartDate,
		Note:              s.Note,
		IsRecurring:       true,
		RecurringInterval: s.Interval,
		Reminders:         s.Reminders,
	}
}

// Validate checks the spec the same way the resulting payments are checked.
func (s RecurringSpec) Validate() error {
	return s.template().Validate()
}

// ExpandRecurringSeries materialises SeriesLength unpaid instances of spec.
// Instance k is due k intervals after StartDate. Month and year steps are
// taken from the start date, so a series starting on the 31st returns to the
// 31st whenever the month allows it.
func ExpandRecurringSeries(spec RecurringSpec, newID func() string) ([]domain.PlannedPayment, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	tmpl := spec.template()
	series := make([]domain.PlannedPayment, 0, SeriesLength)
	for k := 0; k < SeriesLength; k++ {
		p := tmpl
		p.ID = newID()
		p.DueDate = calendar.AddIntervals(spec.StartDate, spec.Interval, k)
		series = append(series, p)
	}
	return series, nil
}
