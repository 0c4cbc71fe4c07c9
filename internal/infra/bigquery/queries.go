package bigquery

import (
	"fmt"
	"math"
	"strings"

	"cloud.google.com/go/bigquery"

	"github.com/dvloznov/finance-planner/internal/ledger"
)

const (
	transactionsTable    = "transactions"
	plannedPaymentsTable = "planned_payments"
	goalsTable           = "goals"

	transactionColumns = `transaction_id, title, amount, kind, category,
		transaction_ts, transaction_date, note, updated_ts`

	paymentColumns = `payment_id, title, amount, due_ts, due_date, note,
		is_paid, is_recurring, recurring_interval, linked_transaction_id,
		remind_one_day, remind_three_days, remind_one_week, updated_ts`

	goalColumns = `goal_id, title, target_amount, saved_amount, due_ts, due_date,
		note, category, contributions, last_contribution_ts, updated_ts`
)

// tableName returns the fully qualified, backquoted table reference.
func tableName(projectID, datasetID, table string) string {
	return fmt.Sprintf("`%s.%s.%s`", projectID, datasetID, table)
}

// buildTransactionQuery renders the SELECT for a transaction filter.
// Ordering matches ledger.SortTransactions.
func buildTransactionQuery(table string, f ledger.TransactionFilter) (string, []bigquery.QueryParameter) {
	var where []string
	var params []bigquery.QueryParameter

	if f.Kind != "" {
		where = append(where, "kind = @kind")
		params = append(params, bigquery.QueryParameter{Name: "kind", Value: string(f.Kind)})
	}
	if f.Category != "" {
		where = append(where, "LOWER(category) = LOWER(@category)")
		params = append(params, bigquery.QueryParameter{Name: "category", Value: f.Category})
	}
	if !f.From.IsZero() {
		where = append(where, "transaction_ts >= @from_ts")
		params = append(params, bigquery.QueryParameter{Name: "from_ts", Value: f.From})
	}
	if !f.To.IsZero() {
		where = append(where, "transaction_ts < @to_ts")
		params = append(params, bigquery.QueryParameter{Name: "to_ts", Value: f.To})
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", transactionColumns, table)
	writeWhere(&b, where)
	b.WriteString(" ORDER BY transaction_ts DESC, transaction_id")
	writePage(&b, f.Limit, f.Offset)
	return b.String(), params
}

// buildPaymentQuery renders the SELECT for a payment filter.
// Ordering matches ledger.SortPayments.
func buildPaymentQuery(table string, f ledger.PaymentFilter) (string, []bigquery.QueryParameter) {
	var where []string
	var params []bigquery.QueryParameter

	if f.Paid != nil {
		where = append(where, "is_paid = @is_paid")
		params = append(params, bigquery.QueryParameter{Name: "is_paid", Value: *f.Paid})
	}
	if f.Recurring != nil {
		where = append(where, "is_recurring = @is_recurring")
		params = append(params, bigquery.QueryParameter{Name: "is_recurring", Value: *f.Recurring})
	}
	if !f.DueFrom.IsZero() {
		where = append(where, "due_ts >= @due_from")
		params = append(params, bigquery.QueryParameter{Name: "due_from", Value: f.DueFrom})
	}
	if !f.DueBefore.IsZero() {
		where = append(where, "due_ts < @due_before")
		params = append(params, bigquery.QueryParameter{Name: "due_before", Value: f.DueBefore})
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", paymentColumns, table)
	writeWhere(&b, where)
	b.WriteString(" ORDER BY due_ts, payment_id")
	writePage(&b, f.Limit, f.Offset)
	return b.String(), params
}

func writeWhere(b *strings.Builder, where []string) {
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
}

// writePage appends LIMIT/OFFSET. BigQuery only accepts OFFSET after LIMIT.
func writePage(b *strings.Builder, limit, offset int) {
	switch {
	case limit > 0:
		fmt.Fprintf(b, " LIMIT %d", limit)
	case offset > 0:
		fmt.Fprintf(b, " LIMIT %d", math.MaxInt64)
	}
	if offset > 0 {
		fmt.Fprintf(b, " OFFSET %d", offset)
	}
}
