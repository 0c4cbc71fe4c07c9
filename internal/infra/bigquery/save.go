package bigquery

import (
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"

	"github.com/dvloznov/finance-planner/internal/ledger"
)

// saveTables holds the qualified names of the tables a batch writes to.
type saveTables struct {
	transactions string
	payments     string
	goals        string
}

// buildSaveScript renders a batch as one multi-statement transaction.
// Statements run in the same order the in-memory store applies them:
// reset, deletes, then upserts. Any failing statement rolls the whole
// transaction back and re-raises the error.
func buildSaveScript(tables saveTables, batch ledger.Batch, now time.Time) (string, []bigquery.QueryParameter) {
	txTable, paymentTable, goalTable := tables.transactions, tables.payments, tables.goals
	var stmts []string
	var params []bigquery.QueryParameter

	if batch.ReplaceAll {
		stmts = append(stmts,
			fmt.Sprintf("DELETE FROM %s WHERE TRUE;", txTable),
			fmt.Sprintf("DELETE FROM %s WHERE TRUE;", paymentTable),
			fmt.Sprintf("DELETE FROM %s WHERE TRUE;", goalTable),
		)
	}

	if len(batch.DeleteTransactionIDs) > 0 {
		stmts = append(stmts, fmt.Sprintf(
			"DELETE FROM %s WHERE transaction_id IN UNNEST(@delete_transaction_ids);", txTable))
		params = append(params, bigquery.QueryParameter{Name: "delete_transaction_ids", Value: batch.DeleteTransactionIDs})
	}
	if len(batch.DeletePaymentIDs) > 0 {
		stmts = append(stmts, fmt.Sprintf(
			"DELETE FROM %s WHERE payment_id IN UNNEST(@delete_payment_ids);", paymentTable))
		params = append(params, bigquery.QueryParameter{Name: "delete_payment_ids", Value: batch.DeletePaymentIDs})
	}
	if len(batch.DeleteGoalIDs) > 0 {
		stmts = append(stmts, fmt.Sprintf(
			"DELETE FROM %s WHERE goal_id IN UNNEST(@delete_goal_ids);", goalTable))
		params = append(params, bigquery.QueryParameter{Name: "delete_goal_ids", Value: batch.DeleteGoalIDs})
	}

	if len(batch.Transactions) > 0 {
		rows := make([]TransactionRow, len(batch.Transactions))
		for i, tx := range batch.Transactions {
			rows[i] = NewTransactionRow(tx, now)
		}
		stmts = append(stmts, mergeStatement(txTable, "transactions", "transaction_id", transactionColumns))
		params = append(params, bigquery.QueryParameter{Name: "transactions", Value: rows})
	}
	if len(batch.PlannedPayments) > 0 {
		rows := make([]PlannedPaymentRow, len(batch.PlannedPayments))
		for i, p := range batch.PlannedPayments {
			rows[i] = NewPlannedPaymentRow(p, now)
		}
		stmts = append(stmts, mergeStatement(paymentTable, "payments", "payment_id", paymentColumns))
		params = append(params, bigquery.QueryParameter{Name: "payments", Value: rows})
	}
	if len(batch.Goals) > 0 {
		rows := make([]GoalRow, len(batch.Goals))
		for i, g := range batch.Goals {
			rows[i] = NewGoalRow(g, now)
		}
		stmts = append(stmts, mergeStatement(goalTable, "goals", "goal_id", goalColumns))
		params = append(params, bigquery.QueryParameter{Name: "goals", Value: rows})
	}

	var b strings.Builder
	b.WriteString("BEGIN\n  BEGIN TRANSACTION;\n")
	for _, s := range stmts {
		b.WriteString("  ")
		b.WriteString(s)
		b.WriteString("\n")
	}
	b.WriteString("  COMMIT TRANSACTION;\n")
	b.WriteString("EXCEPTION WHEN ERROR THEN\n")
	b.WriteString("  ROLLBACK TRANSACTION;\n")
	b.WriteString("  RAISE USING MESSAGE = @@error.message;\n")
	b.WriteString("END;")
	return b.String(), params
}

// mergeStatement upserts every element of the @param array into table,
// keyed on key.
func mergeStatement(table, param, key, columnList string) string {
	columns := splitColumns(columnList)

	sets := make([]string, 0, len(columns)-1)
	values := make([]string, len(columns))
	for i, c := range columns {
		values[i] = "S." + c
		if c != key {
			sets = append(sets, fmt.Sprintf("%s = S.%s", c, c))
		}
	}

	return fmt.Sprintf(
		"MERGE %s T USING UNNEST(@%s) S ON T.%s = S.%s "+
			"WHEN MATCHED THEN UPDATE SET %s "+
			"WHEN NOT MATCHED THEN INSERT (%s) VALUES (%s);",
		table, param, key, key,
		strings.Join(sets, ", "),
		strings.Join(columns, ", "), strings.Join(values, ", "),
	)
}

func splitColumns(list string) []string {
	parts := strings.Split(list, ",")
	columns := make([]string, 0, len(parts))
	for _, p := range parts {
		if c := strings.TrimSpace(p); c != "" {
			columns = append(columns, c)
		}
	}
	return columns
}
