package snapshot

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/finance-planner/internal/calendar"
	"github.com/dvloznov/finance-planner/internal/domain"
)

// SpendingCSVHeader is the column layout of WriteSpendingCSV.
var SpendingCSVHeader = []string{"previousSpending", "category", "month", "income", "recurringPayments", "actualSpendings"}

// WriteSpendingCSV writes one row per transaction in date order. Each row
// carries the previous month's total spending, the unpaid planned payments
// due in the transaction's month, and the transaction's income or spending.
func WriteSpendingCSV(w io.Writer, txs []domain.Transaction, payments []domain.PlannedPayment) error {
	sorted := make([]domain.Transaction, len(txs))
	copy(sorted, txs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	unpaidByMonth := make(map[calendar.Month]decimal.Decimal)
	for _, p := range payments {
		if p.IsPaid {
			continue
		}
		m := calendar.MonthOf(p.DueDate)
		unpaidByMonth[m] = unpaidByMonth[m].Add(p.Amount)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(SpendingCSVHeader); err != nil {
		return fmt.Errorf("WriteSpendingCSV: writing header: %w", err)
	}

	var (
		month    calendar.Month
		current  = decimal.Zero
		previous = decimal.Zero
	)
	for i, tx := range sorted {
		m := calendar.MonthOf(tx.Date)
		if i == 0 {
			month = m
		}
		if m != month {
			previous = current
			current = decimal.Zero
			month = m
		}

		income, spending := decimal.Zero, decimal.Zero
		if tx.Kind == domain.KindIncome {
			income = tx.Amount
		} else {
			spending = tx.Amount
			current = current.Add(spending)
		}

		record := []string{
			previous.StringFixed(2),
			tx.Category,
			strconv.Itoa(int(m.Month)),
			income.StringFixed(2),
			unpaidByMonth[m].StringFixed(2),
			spending.StringFixed(2),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("WriteSpendingCSV: writing row %d: %w", i, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("WriteSpendingCSV: %w", err)
	}
	return nil
}
