package bigquery

import (
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/finance-planner/internal/domain"
)

// numericScale is the number of fractional digits a NUMERIC column keeps.
const numericScale = 9

// TransactionRow mirrors one row of the transactions table.
type TransactionRow struct {
	TransactionID   string              `bigquery:"transaction_id"`   // REQUIRED
	Title           string              `bigquery:"title"`            // REQUIRED
	Amount          *big.Rat            `bigquery:"amount"`           // REQUIRED NUMERIC, non-negative
	Kind            string              `bigquery:"kind"`             // REQUIRED income|expense
	Category        string              `bigquery:"category"`         // REQUIRED
	TransactionTS   time.Time           `bigquery:"transaction_ts"`   // REQUIRED
	TransactionDate civil.Date          `bigquery:"transaction_date"` // REQUIRED, local calendar day
	Note            bigquery.NullString `bigquery:"note"`             // NULLABLE
	UpdatedTS       time.Time           `bigquery:"updated_ts"`       // REQUIRED
}

// PlannedPaymentRow mirrors one row of the planned_payments table.
type PlannedPaymentRow struct {
	PaymentID           string              `bigquery:"payment_id"`            // REQUIRED
	Title               string              `bigquery:"title"`                 // REQUIRED
	Amount              *big.Rat            `bigquery:"amount"`                // REQUIRED NUMERIC
	DueTS               time.Time           `bigquery:"due_ts"`                // REQUIRED
	DueDate             civil.Date          `bigquery:"due_date"`              // REQUIRED, local calendar day
	Note                bigquery.NullString `bigquery:"note"`                  // NULLABLE
	IsPaid              bool                `bigquery:"is_paid"`               // REQUIRED
	IsRecurring         bool                `bigquery:"is_recurring"`          // REQUIRED
	RecurringInterval   bigquery.NullString `bigquery:"recurring_interval"`    // NULLABLE week|month|year
	LinkedTransactionID bigquery.NullString `bigquery:"linked_transaction_id"` // NULLABLE
	RemindOneDay        bool                `bigquery:"remind_one_day"`
	RemindThreeDays     bool                `bigquery:"remind_three_days"`
	RemindOneWeek       bool                `bigquery:"remind_one_week"`
	UpdatedTS           time.Time           `bigquery:"updated_ts"` // REQUIRED
}

// GoalRow mirrors one row of the goals table.
type GoalRow struct {
	GoalID             string                 `bigquery:"goal_id"`              // REQUIRED
	Title              string                 `bigquery:"title"`                // REQUIRED
	TargetAmount       *big.Rat               `bigquery:"target_amount"`        // REQUIRED NUMERIC, positive
	SavedAmount        *big.Rat               `bigquery:"saved_amount"`         // REQUIRED NUMERIC
	DueTS              time.Time              `bigquery:"due_ts"`               // REQUIRED
	DueDate            civil.Date             `bigquery:"due_date"`             // REQUIRED, local calendar day
	Note               bigquery.NullString    `bigquery:"note"`                 // NULLABLE
	Category           string                 `bigquery:"category"`             // REQUIRED
	Contributions      []*big.Rat             `bigquery:"contributions"`        // REPEATED NUMERIC, oldest first
	LastContributionTS bigquery.NullTimestamp `bigquery:"last_contribution_ts"` // NULLABLE
	UpdatedTS          time.Time              `bigquery:"updated_ts"`           // REQUIRED
}

// NewTransactionRow converts a domain transaction for writing.
func NewTransactionRow(tx domain.Transaction, updated time.Time) TransactionRow {
	return TransactionRow{
		TransactionID:   tx.ID,
		Title:           tx.Title,
		Amount:          tx.Amount.Rat(),
		Kind:            string(tx.Kind),
		Category:        tx.Category,
		TransactionTS:   tx.Date,
		TransactionDate: civil.DateOf(tx.Date),
		Note:            nullString(tx.Note),
		UpdatedTS:       updated,
	}
}

// Transaction converts the row back, placing the timestamp in loc.
func (r TransactionRow) Transaction(loc *time.Location) domain.Transaction {
	return domain.Transaction{
		ID:       r.TransactionID,
		Title:    r.Title,
		Amount:   fromNumeric(r.Amount),
		Kind:     domain.Kind(r.Kind),
		Category: r.Category,
		Date:     r.TransactionTS.In(loc),
		Note:     r.Note.StringVal,
	}
}

// NewPlannedPaymentRow converts a domain planned payment for writing.
func NewPlannedPaymentRow(p domain.PlannedPayment, updated time.Time) PlannedPaymentRow {
	return PlannedPaymentRow{
		PaymentID:           p.ID,
		Title:               p.Title,
		Amount:              p.Amount.Rat(),
		DueTS:               p.DueDate,
		DueDate:             civil.DateOf(p.DueDate),
		Note:                nullString(p.Note),
		IsPaid:              p.IsPaid,
		IsRecurring:         p.IsRecurring,
		RecurringInterval:   nullString(string(p.RecurringInterval)),
		LinkedTransactionID: nullString(p.LinkedTransactionID),
		RemindOneDay:        p.Reminders.OneDay,
		RemindThreeDays:     p.Reminders.ThreeDays,
		RemindOneWeek:       p.Reminders.OneWeek,
		UpdatedTS:           updated,
	}
}

// PlannedPayment converts the row back, placing the due time in loc.
func (r PlannedPaymentRow) PlannedPayment(loc *time.Location) domain.PlannedPayment {
	return domain.PlannedPayment{
		ID:                  r.PaymentID,
		Title:               r.Title,
		Amount:              fromNumeric(r.Amount),
		DueDate:             r.DueTS.In(loc),
		Note:                r.Note.StringVal,
		IsPaid:              r.IsPaid,
		IsRecurring:         r.IsRecurring,
		RecurringInterval:   domain.Interval(r.RecurringInterval.StringVal),
		LinkedTransactionID: r.LinkedTransactionID.StringVal,
		Reminders: domain.ReminderPreference{
			OneDay:    r.RemindOneDay,
			ThreeDays: r.RemindThreeDays,
			OneWeek:   r.RemindOneWeek,
		},
	}
}

// NewGoalRow converts a domain goal for writing.
func NewGoalRow(g domain.Goal, updated time.Time) GoalRow {
	contributions := make([]*big.Rat, len(g.Contributions))
	for i, c := range g.Contributions {
		contributions[i] = c.Rat()
	}
	return GoalRow{
		GoalID:             g.ID,
		Title:              g.Title,
		TargetAmount:       g.TargetAmount.Rat(),
		SavedAmount:        g.SavedAmount.Rat(),
		DueTS:              g.DueDate,
		DueDate:            civil.DateOf(g.DueDate),
		Note:               nullString(g.Note),
		Category:           string(g.Category),
		Contributions:      contributions,
		LastContributionTS: bigquery.NullTimestamp{Timestamp: g.LastContributionAt, Valid: !g.LastContributionAt.IsZero()},
		UpdatedTS:          updated,
	}
}

// Goal converts the row back, placing timestamps in loc.
func (r GoalRow) Goal(loc *time.Location) domain.Goal {
	g := domain.Goal{
		ID:            r.GoalID,
		Title:         r.Title,
		TargetAmount:  fromNumeric(r.TargetAmount),
		SavedAmount:   fromNumeric(r.SavedAmount),
		DueDate:       r.DueTS.In(loc),
		Note:          r.Note.StringVal,
		Category:      domain.GoalCategory(r.Category),
		Contributions: make([]decimal.Decimal, len(r.Contributions)),
	}
	for i, c := range r.Contributions {
		g.Contributions[i] = fromNumeric(c)
	}
	if r.LastContributionTS.Valid {
		g.LastContributionAt = r.LastContributionTS.Timestamp.In(loc)
	}
	return g
}

func nullString(s string) bigquery.NullString {
	return bigquery.NullString{StringVal: s, Valid: s != ""}
}

func fromNumeric(r *big.Rat) decimal.Decimal {
	if r == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigRat(r, numericScale)
}
