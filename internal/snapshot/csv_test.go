package snapshot

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/finance-planner/internal/domain"
)

func TestWriteSpendingCSV(t *testing.T) {
	day := func(m time.Month, d int) time.Time { return time.Date(2024, m, d, 12, 0, 0, 0, time.UTC) }
	txs := []domain.Transaction{
		{ID: "3", Title: "Market", Amount: dec("40"), Kind: domain.KindExpense, Category: "Market", Date: day(2, 3)},
		{ID: "1", Title: "Salary", Amount: dec("2000"), Kind: domain.KindIncome, Category: "Salary", Date: day(1, 1)},
		{ID: "2", Title: "Rent", Amount: dec("900"), Kind: domain.KindExpense, Category: "Rent", Date: day(1, 5)},
	}
	payments := []domain.PlannedPayment{
		{ID: "p1", Title: "Gym", Amount: dec("30"), DueDate: day(2, 10)},
		{ID: "p2", Title: "Tax", Amount: dec("100"), DueDate: day(2, 20), IsPaid: true, LinkedTransactionID: "x"},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteSpendingCSV(&buf, txs, payments))

	want := "previousSpending,category,month,income,recurringPayments,actualSpendings\n" +
		"0.00,Salary,1,2000.00,0.00,0.00\n" +
		"0.00,Rent,1,0.00,0.00,900.00\n" +
		"900.00,Market,2,0.00,30.00,40.00\n"
	assert.Equal(t, want, buf.String())
}

func TestWriteSpendingCSV_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSpendingCSV(&buf, nil, nil))
	assert.Equal(t, "previousSpending,category,month,income,recurringPayments,actualSpendings\n", buf.String())
}
