package bigquery

import (
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/finance-planner/internal/domain"
	"github.com/dvloznov/finance-planner/internal/ledger"
)

var london = time.FixedZone("BST", 3600)

func TestTransactionRowRoundTrip(t *testing.T) {
	tx := domain.Transaction{
		ID:       "tx-1",
		Title:    "Groceries",
		Amount:   decimal.RequireFromString("42.19"),
		Kind:     domain.KindExpense,
		Category: "Food",
		Date:     time.Date(2024, 4, 1, 0, 30, 0, 0, london),
	}

	row := NewTransactionRow(tx, time.Unix(0, 0))
	assert.Equal(t, civil.Date{Year: 2024, Month: time.April, Day: 1}, row.TransactionDate)
	assert.False(t, row.Note.Valid)

	got := row.Transaction(london)
	assert.True(t, tx.Amount.Equal(got.Amount))
	got.Amount = tx.Amount
	assert.Equal(t, tx, got)
}

func TestPlannedPaymentRowRoundTrip(t *testing.T) {
	p := domain.PlannedPayment{
		ID:                  "p-1",
		Title:               "Rent",
		Amount:              decimal.RequireFromString("950.50"),
		DueDate:             time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		Note:                "flat",
		IsPaid:              true,
		IsRecurring:         true,
		RecurringInterval:   domain.IntervalMonth,
		LinkedTransactionID: "tx-9",
		Reminders:           domain.ReminderPreference{ThreeDays: true},
	}

	row := NewPlannedPaymentRow(p, time.Unix(0, 0))
	assert.True(t, row.RecurringInterval.Valid)
	assert.True(t, row.LinkedTransactionID.Valid)

	got := row.PlannedPayment(time.UTC)
	assert.True(t, p.Amount.Equal(got.Amount))
	got.Amount = p.Amount
	assert.Equal(t, p, got)
}

func TestFromNumeric_Nil(t *testing.T) {
	assert.True(t, fromNumeric(nil).IsZero())
}

func TestBuildTransactionQuery(t *testing.T) {
	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	sql, params := buildTransactionQuery("`p.d.transactions`", ledger.TransactionFilter{
		Kind:     domain.KindExpense,
		Category: "Food",
		From:     from,
		Limit:    10,
		Offset:   20,
	})

	assert.Contains(t, sql, "FROM `p.d.transactions` WHERE kind = @kind AND LOWER(category) = LOWER(@category) AND transaction_ts >= @from_ts")
	assert.True(t, strings.HasSuffix(sql, "ORDER BY transaction_ts DESC, transaction_id LIMIT 10 OFFSET 20"), sql)
	require.Len(t, params, 3)
	assert.Equal(t, from, params[2].Value)
}

func TestBuildPaymentQuery(t *testing.T) {
	tests := []struct {
		name       string
		filter     ledger.PaymentFilter
		wantWhere  string
		wantSuffix string
		wantParams int
	}{
		{
			name:       "no filter",
			filter:     ledger.PaymentFilter{},
			wantSuffix: "ORDER BY due_ts, payment_id",
		},
		{
			name:       "unpaid due before",
			filter:     ledger.PaymentFilter{Paid: ledger.Bool(false), DueBefore: time.Now()},
			wantWhere:  "WHERE is_paid = @is_paid AND due_ts < @due_before",
			wantSuffix: "ORDER BY due_ts, payment_id",
			wantParams: 2,
		},
		{
			name:       "offset without limit",
			filter:     ledger.PaymentFilter{Recurring: ledger.Bool(true), Offset: 5},
			wantWhere:  "WHERE is_recurring = @is_recurring",
			wantSuffix: "OFFSET 5",
			wantParams: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, params := buildPaymentQuery("`p.d.planned_payments`", tt.filter)
			if tt.wantWhere == "" {
				assert.NotContains(t, sql, "WHERE")
			} else {
				assert.Contains(t, sql, tt.wantWhere)
			}
			assert.True(t, strings.HasSuffix(sql, tt.wantSuffix), sql)
			assert.Len(t, params, tt.wantParams)
		})
	}

	sql, _ := buildPaymentQuery("t", ledger.PaymentFilter{Offset: 5})
	assert.Contains(t, sql, fmt.Sprintf("LIMIT %d OFFSET 5", int64(math.MaxInt64)))
}

func TestBuildSaveScript(t *testing.T) {
	now := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	batch := ledger.Batch{
		Transactions: []domain.Transaction{{
			ID: "tx-1", Title: "Rent", Amount: decimal.NewFromInt(900),
			Kind: domain.KindExpense, Category: domain.PlannedPaymentCategory, Date: now,
		}},
		PlannedPayments: []domain.PlannedPayment{{
			ID: "p-1", Title: "Rent", Amount: decimal.NewFromInt(900),
			DueDate: now, IsPaid: true, LinkedTransactionID: "tx-1",
		}},
		DeletePaymentIDs: []string{"p-0"},
	}

	tables := saveTables{transactions: "`p.d.transactions`", payments: "`p.d.planned_payments`", goals: "`p.d.goals`"}
	sql, params := buildSaveScript(tables, batch, now)

	assert.True(t, strings.HasPrefix(sql, "BEGIN\n  BEGIN TRANSACTION;"), sql)
	assert.Contains(t, sql, "COMMIT TRANSACTION;")
	assert.Contains(t, sql, "ROLLBACK TRANSACTION;")
	assert.NotContains(t, sql, "WHERE TRUE")
	assert.NotContains(t, sql, "@delete_transaction_ids")

	del := strings.Index(sql, "DELETE FROM `p.d.planned_payments`")
	mergeTx := strings.Index(sql, "MERGE `p.d.transactions`")
	mergeP := strings.Index(sql, "MERGE `p.d.planned_payments`")
	require.True(t, del >= 0 && mergeTx >= 0 && mergeP >= 0, sql)
	assert.Less(t, del, mergeTx)
	assert.Less(t, mergeTx, mergeP)

	require.Len(t, params, 3)
	assert.Equal(t, "delete_payment_ids", params[0].Name)
	rows := params[2].Value.([]PlannedPaymentRow)
	assert.Equal(t, "tx-1", rows[0].LinkedTransactionID.StringVal)
	assert.Equal(t, now, rows[0].UpdatedTS)
}

func TestBuildSaveScript_ReplaceAll(t *testing.T) {
	sql, params := buildSaveScript(saveTables{"tx", "pp", "gl"}, ledger.Batch{ReplaceAll: true}, time.Now())
	assert.Contains(t, sql, "DELETE FROM tx WHERE TRUE;")
	assert.Contains(t, sql, "DELETE FROM pp WHERE TRUE;")
	assert.Contains(t, sql, "DELETE FROM gl WHERE TRUE;")
	assert.Empty(t, params)
}

func TestBuildSaveScript_Goals(t *testing.T) {
	now := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	batch := ledger.Batch{
		Goals: []domain.Goal{{
			ID: "g-1", Title: "Holiday", TargetAmount: decimal.NewFromInt(2000),
			SavedAmount: decimal.NewFromInt(250), DueDate: now, Category: domain.GoalHoliday,
			Contributions: []decimal.Decimal{decimal.NewFromInt(250)},
		}},
		DeleteGoalIDs: []string{"g-0"},
	}

	sql, params := buildSaveScript(saveTables{"tx", "pp", "gl"}, batch, now)

	del := strings.Index(sql, "DELETE FROM gl WHERE goal_id IN UNNEST(@delete_goal_ids);")
	merge := strings.Index(sql, "MERGE gl T USING UNNEST(@goals) S ON T.goal_id = S.goal_id")
	require.True(t, del >= 0 && merge >= 0, sql)
	assert.Less(t, del, merge)

	require.Len(t, params, 2)
	assert.Equal(t, "delete_goal_ids", params[0].Name)
	rows := params[1].Value.([]GoalRow)
	require.Len(t, rows[0].Contributions, 1)
	assert.False(t, rows[0].LastContributionTS.Valid)
}

func TestGoalRowRoundTrip(t *testing.T) {
	g := domain.Goal{
		ID: "g-1", Title: "Car", TargetAmount: decimal.RequireFromString("9000.50"),
		SavedAmount: decimal.NewFromInt(300), DueDate: time.Date(2025, 6, 1, 9, 0, 0, 0, london),
		Note: "second hand", Category: domain.GoalCar,
		Contributions:      []decimal.Decimal{decimal.NewFromInt(100), decimal.NewFromInt(200)},
		LastContributionAt: time.Date(2024, 3, 10, 12, 0, 0, 0, london),
	}

	row := NewGoalRow(g, time.Now())
	assert.Equal(t, civil.Date{Year: 2025, Month: time.June, Day: 1}, row.DueDate)
	assert.True(t, row.LastContributionTS.Valid)

	back := row.Goal(london)
	assert.Equal(t, g.ID, back.ID)
	assert.True(t, back.TargetAmount.Equal(g.TargetAmount))
	assert.True(t, back.SavedAmount.Equal(g.SavedAmount))
	assert.True(t, back.DueDate.Equal(g.DueDate))
	assert.True(t, back.LastContributionAt.Equal(g.LastContributionAt))
	assert.Equal(t, g.Category, back.Category)
	require.Len(t, back.Contributions, 2)
	assert.True(t, back.Contributions[1].Equal(decimal.NewFromInt(200)))
}

func TestMergeStatement(t *testing.T) {
	stmt := mergeStatement("tbl", "rows", "id", "id, a,\n\t\tb")
	assert.Equal(t,
		"MERGE tbl T USING UNNEST(@rows) S ON T.id = S.id "+
			"WHEN MATCHED THEN UPDATE SET a = S.a, b = S.b "+
			"WHEN NOT MATCHED THEN INSERT (id, a, b) VALUES (S.id, S.a, S.b);",
		stmt)
}
