package bigquery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/finance-planner/internal/domain"
	"github.com/dvloznov/finance-planner/internal/ledger"
	"github.com/dvloznov/finance-planner/internal/logger"
)

// Store is the BigQuery implementation of ledger.Store. It holds a shared
// client; call Close when done.
type Store struct {
	client    *bigquery.Client
	projectID string
	datasetID string

	// loc is the location timestamps are converted to when read back.
	loc *time.Location
	now func() time.Time
}

var _ ledger.Store = (*Store)(nil)

// NewStore creates a Store with its own BigQuery client.
func NewStore(ctx context.Context, projectID, datasetID string) (*Store, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewStore: creating client: %w", err)
	}
	return NewStoreWithClient(client, projectID, datasetID), nil
}

// NewStoreWithClient creates a Store on an existing client.
func NewStoreWithClient(client *bigquery.Client, projectID, datasetID string) *Store {
	return &Store{
		client:    client,
		projectID: projectID,
		datasetID: datasetID,
		loc:       time.Local,
		now:       time.Now,
	}
}

// Close closes the BigQuery client connection.
func (s *Store) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

func (s *Store) table(name string) string {
	return tableName(s.projectID, s.datasetID, name)
}

func (s *Store) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	q := s.client.Query(fmt.Sprintf("SELECT %s FROM %s WHERE transaction_id = @id LIMIT 1",
		transactionColumns, s.table(transactionsTable)))
	q.Parameters = []bigquery.QueryParameter{{Name: "id", Value: id}}

	rows, err := readRows[TransactionRow](ctx, q)
	if err != nil {
		return nil, &domain.StoreError{Op: "get transaction", Err: err}
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("transaction %s: %w", id, domain.ErrNotFound)
	}
	tx := rows[0].Transaction(s.loc)
	return &tx, nil
}

func (s *Store) GetPlannedPayment(ctx context.Context, id string) (*domain.PlannedPayment, error) {
	q := s.client.Query(fmt.Sprintf("SELECT %s FROM %s WHERE payment_id = @id LIMIT 1",
		paymentColumns, s.table(plannedPaymentsTable)))
	q.Parameters = []bigquery.QueryParameter{{Name: "id", Value: id}}

	rows, err := readRows[PlannedPaymentRow](ctx, q)
	if err != nil {
		return nil, &domain.StoreError{Op: "get planned payment", Err: err}
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("planned payment %s: %w", id, domain.ErrNotFound)
	}
	p := rows[0].PlannedPayment(s.loc)
	return &p, nil
}

func (s *Store) GetGoal(ctx context.Context, id string) (*domain.Goal, error) {
	q := s.client.Query(fmt.Sprintf("SELECT %s FROM %s WHERE goal_id = @id LIMIT 1",
		goalColumns, s.table(goalsTable)))
	q.Parameters = []bigquery.QueryParameter{{Name: "id", Value: id}}

	rows, err := readRows[GoalRow](ctx, q)
	if err != nil {
		return nil, &domain.StoreError{Op: "get goal", Err: err}
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("goal %s: %w", id, domain.ErrNotFound)
	}
	g := rows[0].Goal(s.loc)
	return &g, nil
}

func (s *Store) FetchTransactions(ctx context.Context, filter ledger.TransactionFilter) ([]domain.Transaction, error) {
	sql, params := buildTransactionQuery(s.table(transactionsTable), filter)
	q := s.client.Query(sql)
	q.Parameters = params

	rows, err := readRows[TransactionRow](ctx, q)
	if err != nil {
		return nil, &domain.StoreError{Op: "fetch transactions", Err: err}
	}
	txs := make([]domain.Transaction, len(rows))
	for i, r := range rows {
		txs[i] = r.Transaction(s.loc)
	}
	return txs, nil
}

func (s *Store) FetchPlannedPayments(ctx context.Context, filter ledger.PaymentFilter) ([]domain.PlannedPayment, error) {
	sql, params := buildPaymentQuery(s.table(plannedPaymentsTable), filter)
	q := s.client.Query(sql)
	q.Parameters = params

	rows, err := readRows[PlannedPaymentRow](ctx, q)
	if err != nil {
		return nil, &domain.StoreError{Op: "fetch planned payments", Err: err}
	}
	ps := make([]domain.PlannedPayment, len(rows))
	for i, r := range rows {
		ps[i] = r.PlannedPayment(s.loc)
	}
	return ps, nil
}

// FetchGoals orders goals the same way as ledger.SortGoals.
func (s *Store) FetchGoals(ctx context.Context) ([]domain.Goal, error) {
	q := s.client.Query(fmt.Sprintf("SELECT %s FROM %s ORDER BY due_ts, goal_id",
		goalColumns, s.table(goalsTable)))

	rows, err := readRows[GoalRow](ctx, q)
	if err != nil {
		return nil, &domain.StoreError{Op: "fetch goals", Err: err}
	}
	gs := make([]domain.Goal, len(rows))
	for i, r := range rows {
		gs[i] = r.Goal(s.loc)
	}
	return gs, nil
}

// Save runs the batch as a single multi-statement transaction.
func (s *Store) Save(ctx context.Context, batch ledger.Batch) error {
	if err := batch.Validate(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrBatchRejected, err)
	}
	if batch.Empty() {
		return nil
	}

	log := logger.FromContext(ctx)
	tables := saveTables{
		transactions: s.table(transactionsTable),
		payments:     s.table(plannedPaymentsTable),
		goals:        s.table(goalsTable),
	}
	sql, params := buildSaveScript(tables, batch, s.now().UTC())
	q := s.client.Query(sql)
	q.Parameters = params

	if _, err := runQuery(ctx, q); err != nil {
		log.Error().Err(err).
			Int("transactions", len(batch.Transactions)).
			Int("planned_payments", len(batch.PlannedPayments)).
			Msg("Ledger batch rolled back")
		return &domain.StoreError{Op: "save", Err: fmt.Errorf("%w: %w", domain.ErrBatchRejected, err)}
	}

	log.Debug().
		Bool("replace_all", batch.ReplaceAll).
		Int("transactions", len(batch.Transactions)).
		Int("planned_payments", len(batch.PlannedPayments)).
		Int("goals", len(batch.Goals)).
		Int("deleted_transactions", len(batch.DeleteTransactionIDs)).
		Int("deleted_payments", len(batch.DeletePaymentIDs)).
		Int("deleted_goals", len(batch.DeleteGoalIDs)).
		Msg("Ledger batch committed")
	return nil
}

func (s *Store) DeleteTransaction(ctx context.Context, id string) error {
	return s.deleteByID(ctx, transactionsTable, "transaction_id", "transaction", id)
}

func (s *Store) DeletePlannedPayment(ctx context.Context, id string) error {
	return s.deleteByID(ctx, plannedPaymentsTable, "payment_id", "planned payment", id)
}

func (s *Store) deleteByID(ctx context.Context, table, column, entity, id string) error {
	q := s.client.Query(fmt.Sprintf("DELETE FROM %s WHERE %s = @id", s.table(table), column))
	q.Parameters = []bigquery.QueryParameter{{Name: "id", Value: id}}

	status, err := runQuery(ctx, q)
	if err != nil {
		return &domain.StoreError{Op: "delete " + entity, Err: err}
	}
	if affectedRows(status) == 0 {
		return fmt.Errorf("%s %s: %w", entity, id, domain.ErrNotFound)
	}
	return nil
}

// runQuery runs a statement and waits for it to finish.
func runQuery(ctx context.Context, q *bigquery.Query) (*bigquery.JobStatus, error) {
	job, err := q.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("run query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return nil, fmt.Errorf("wait for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return nil, fmt.Errorf("job error: %w", err)
	}
	return status, nil
}

func readRows[T any](ctx context.Context, q *bigquery.Query) ([]T, error) {
	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("query read: %w", err)
	}

	var rows []T
	for {
		var r T
		err := it.Next(&r)
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iter next: %w", err)
		}
		rows = append(rows, r)
	}
	return rows, nil
}

// affectedRows returns the DML row count of a finished job, or -1 when the
// job carries no query statistics.
func affectedRows(status *bigquery.JobStatus) int64 {
	if status == nil || status.Statistics == nil {
		return -1
	}
	if qs, ok := status.Statistics.Details.(*bigquery.QueryStatistics); ok {
		return qs.NumDMLAffectedRows
	}
	return -1
}
