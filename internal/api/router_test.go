package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/finance-planner/internal/domain"
	"github.com/dvloznov/finance-planner/internal/goals"
	"github.com/dvloznov/finance-planner/internal/insights"
	jobsmem "github.com/dvloznov/finance-planner/internal/jobs/inmemory"
	"github.com/dvloznov/finance-planner/internal/ledger"
	"github.com/dvloznov/finance-planner/internal/ledger/inmemory"
	"github.com/dvloznov/finance-planner/internal/logger"
	"github.com/dvloznov/finance-planner/internal/planner"
)

var fixedNow = time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)

type testServer struct {
	handler http.Handler
	store   *inmemory.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	var mu sync.Mutex
	n := 0
	newID := func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("00000000-0000-4000-8000-%012d", n)
	}
	now := func() time.Time { return fixedNow }

	store := inmemory.NewStore()
	svc := planner.NewService(store, planner.WithClock(now), planner.WithIDGenerator(newID))
	h := NewRouter(Deps{
		Store:    store,
		Service:  svc,
		Insights: insights.NewEngine(store, nil),
		Goals:    goals.NewService(store, goals.WithClock(now), goals.WithIDGenerator(newID)),
		Jobs:     jobsmem.NewStore(),
		Now:      now,
	}, logger.NewWithWriter(io.Discard))

	return &testServer{handler: h, store: store}
}

func (s *testServer) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, httptest.NewRequest(method, target, r))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

type paymentsResponse struct {
	Payments []domain.PlannedPayment `json:"payments"`
	Count    int                     `json:"count"`
}

func (s *testServer) createPayment(t *testing.T, title, amount, due string) domain.PlannedPayment {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/payments", map[string]any{
		"title": title, "amount": amount, "due_date": due,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decode[paymentsResponse](t, rec)
	require.Len(t, resp.Payments, 1)
	return resp.Payments[0]
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)
}

func TestCreatePayment_Validation(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name     string
		body     any
		wantCode int
		wantMsg  string
	}{
		{"malformed json", "{", http.StatusBadRequest, "Invalid request body"},
		{"empty title", map[string]any{"title": " ", "amount": "10", "due_date": "2024-04-01T00:00:00Z"}, http.StatusBadRequest, "title"},
		{"negative amount", map[string]any{"title": "Rent", "amount": "-1", "due_date": "2024-04-01T00:00:00Z"}, http.StatusBadRequest, "amount"},
		{"bad date", map[string]any{"title": "Rent", "amount": "1", "due_date": "first of april"}, http.StatusBadRequest, "due_date"},
		{"bad interval", map[string]any{"title": "Rent", "amount": "1", "due_date": "2024-04-01", "is_recurring": true, "recurring_interval": "daily"}, http.StatusBadRequest, "recurring_interval"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/api/payments", tt.body)
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantMsg)
		})
	}

	list := decode[paymentsResponse](t, s.do(t, http.MethodGet, "/api/payments", nil))
	assert.Zero(t, list.Count)
}

func TestCreateRecurringSeries(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/payments/recurring", map[string]any{
		"title": "Gym", "amount": "30", "due_date": "2024-01-31T09:00:00Z", "recurring_interval": "month",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decode[paymentsResponse](t, rec)
	require.Equal(t, planner.SeriesLength, resp.Count)
	assert.Equal(t, time.Date(2024, 2, 29, 9, 0, 0, 0, time.UTC), resp.Payments[1].DueDate.UTC())

	rec = s.do(t, http.MethodGet, "/api/payments?recurring=true&limit=5", nil)
	assert.Equal(t, 5, decode[paymentsResponse](t, rec).Count)

	rec = s.do(t, http.MethodPost, "/api/payments/recurring", map[string]any{"title": "Gym", "amount": "30", "due_date": "2024-01-31"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMarkAndUnmarkPaid(t *testing.T) {
	s := newTestServer(t)
	p := s.createPayment(t, "Rent", "950.00", "2024-03-01T00:00:00Z")

	rec := s.do(t, http.MethodPost, "/api/payments/"+p.ID+"/paid", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[planner.LinkResult](t, rec)
	assert.True(t, res.Changed)
	require.NotNil(t, res.Transaction)
	assert.Equal(t, res.Transaction.ID, res.Payment.LinkedTransactionID)

	txs := decode[struct {
		Transactions []domain.Transaction `json:"transactions"`
	}](t, s.do(t, http.MethodGet, "/api/transactions?category=planned+payment", nil))
	require.Len(t, txs.Transactions, 1)
	assert.Equal(t, domain.KindExpense, txs.Transactions[0].Kind)

	again := decode[planner.LinkResult](t, s.do(t, http.MethodPost, "/api/payments/"+p.ID+"/paid", nil))
	assert.False(t, again.Changed)

	rec = s.do(t, http.MethodDelete, "/api/payments/"+p.ID+"/paid", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	undone := decode[planner.LinkResult](t, rec)
	assert.False(t, undone.Payment.IsPaid)

	all, err := s.store.FetchTransactions(t.Context(), ledger.TransactionFilter{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestMarkPaid_UnknownPayment(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodPost, "/api/payments/nope/paid", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMarkPaid_StoreFailure(t *testing.T) {
	s := newTestServer(t)
	p := s.createPayment(t, "Rent", "950", "2024-03-01T00:00:00Z")
	s.store.SetBeforeSave(func(ledger.Batch) error { return errors.New("disk full") })

	rec := s.do(t, http.MethodPost, "/api/payments/"+p.ID+"/paid", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Failed to mark payment as paid"}`, rec.Body.String())

	stored, err := s.store.GetPlannedPayment(t.Context(), p.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsPaid)
}

func TestDeletePayment(t *testing.T) {
	s := newTestServer(t)
	p := s.createPayment(t, "Rent", "950", "2024-03-01T00:00:00Z")

	assert.Equal(t, http.StatusNoContent, s.do(t, http.MethodDelete, "/api/payments/"+p.ID, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodDelete, "/api/payments/"+p.ID, nil).Code)
}

func TestListOverdue(t *testing.T) {
	s := newTestServer(t)
	late := s.createPayment(t, "Phone", "20", "2024-03-10T12:00:00Z")
	s.createPayment(t, "Insurance", "80", "2024-05-01T12:00:00Z")
	paid := s.createPayment(t, "Water", "15", "2024-03-05T12:00:00Z")
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/payments/"+paid.ID+"/paid", nil).Code)

	resp := decode[paymentsResponse](t, s.do(t, http.MethodGet, "/api/payments/overdue?as_of=2024-03-20T00:00:00Z", nil))
	assert.Equal(t, 2, resp.Count)

	resp = decode[paymentsResponse](t, s.do(t, http.MethodGet, "/api/payments/overdue?as_of=2024-03-20T00:00:00Z&unpaid=true", nil))
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, late.ID, resp.Payments[0].ID)

	rec := s.do(t, http.MethodGet, "/api/payments/overdue?as_of=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "as_of")
}

func TestTransactions(t *testing.T) {
	s := newTestServer(t)

	for _, body := range []map[string]any{
		{"title": "Salary", "amount": "3000", "kind": "income", "category": "Salary", "date": "2024-03-01T09:00:00Z"},
		{"title": "Coffee beans", "amount": "12.50", "kind": "expense", "category": "Food", "date": "2024-03-02T09:00:00Z"},
		{"title": "Cinema", "amount": "9", "kind": "expense", "date": "2024-03-03T09:00:00Z"},
	} {
		rec := s.do(t, http.MethodPost, "/api/transactions", body)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	type listResponse struct {
		Transactions []domain.Transaction `json:"transactions"`
		Count        int                  `json:"count"`
	}

	all := decode[listResponse](t, s.do(t, http.MethodGet, "/api/transactions", nil))
	require.Equal(t, 3, all.Count)
	assert.Equal(t, "Cinema", all.Transactions[0].Title, "newest first")
	assert.Equal(t, domain.DefaultCategory, all.Transactions[0].Category)

	expenses := decode[listResponse](t, s.do(t, http.MethodGet, "/api/transactions?kind=expense", nil))
	assert.Equal(t, 2, expenses.Count)

	search := decode[listResponse](t, s.do(t, http.MethodGet, "/api/transactions?q=COFFEE", nil))
	require.Equal(t, 1, search.Count)
	assert.Equal(t, "Coffee beans", search.Transactions[0].Title)

	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/api/transactions?kind=refund", nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/api/transactions",
		map[string]any{"title": "X", "amount": "1", "kind": "gift", "date": "2024-03-03"}).Code)

	id := search.Transactions[0].ID
	assert.Equal(t, http.StatusNoContent, s.do(t, http.MethodDelete, "/api/transactions/"+id, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodDelete, "/api/transactions/"+id, nil).Code)
}

func TestInsights(t *testing.T) {
	s := newTestServer(t)
	for _, body := range []map[string]any{
		{"title": "Groceries", "amount": "100", "kind": "expense", "category": "Food", "date": "2024-02-10T12:00:00Z"},
		{"title": "Groceries", "amount": "150", "kind": "expense", "category": "Food", "date": "2024-03-10T12:00:00Z"},
	} {
		require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/transactions", body).Code)
	}

	rec := s.do(t, http.MethodGet, "/api/insights?as_of=2024-03-15T12:00:00Z", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	d := decode[insights.Dashboard](t, rec)
	require.Len(t, d.Insights, 1)
	assert.Equal(t, domain.TrendIncreased, d.Insights[0].Trend)
	assert.Equal(t, "90", d.Insights[0].SuggestedLimit.String())
	assert.Equal(t, "-250", d.Balance.String())
}

func TestExportImport(t *testing.T) {
	s := newTestServer(t)
	p := s.createPayment(t, "Rent", "950", "2024-03-01T00:00:00Z")
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/payments/"+p.ID+"/paid", nil).Code)

	rec := s.do(t, http.MethodGet, "/api/export?legacy_markers=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "finance-planner_2024-03-15_10-30.json")
	body := rec.Body.String()
	assert.Contains(t, body, `"plannedPayments"`)
	assert.Contains(t, body, domain.PaymentMarkerPrefix)

	csvRec := s.do(t, http.MethodGet, "/api/export?format=csv", nil)
	require.Equal(t, http.StatusOK, csvRec.Code)
	assert.True(t, strings.HasPrefix(csvRec.Body.String(), "previousSpending,category,month"))

	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/api/export?format=xml", nil).Code)

	// Wipe, then restore from the export.
	require.NoError(t, s.store.Save(t.Context(), ledger.Batch{ReplaceAll: true}))
	rec = s.do(t, http.MethodPost, "/api/import", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"transactions":1,"planned_payments":1,"unlinked":0}`, rec.Body.String())

	restored, err := s.store.GetPlannedPayment(t.Context(), p.ID)
	require.NoError(t, err)
	assert.True(t, restored.IsPaid)
	assert.NotContains(t, restored.Note, domain.PaymentMarkerPrefix)

	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/api/import", "not json").Code)
}

func TestRepair(t *testing.T) {
	s := newTestServer(t)
	p := s.createPayment(t, "Rent", "950", "2024-03-01T00:00:00Z")
	res := decode[planner.LinkResult](t, s.do(t, http.MethodPost, "/api/payments/"+p.ID+"/paid", nil))
	require.NoError(t, s.store.DeleteTransaction(t.Context(), res.Transaction.ID))

	rec := s.do(t, http.MethodPost, "/api/repair?mode=clear&dry_run=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	report := decode[planner.RepairReport](t, rec)
	assert.True(t, report.DryRun)
	assert.Equal(t, 1, report.Cleared)

	report = decode[planner.RepairReport](t, s.do(t, http.MethodPost, "/api/repair", nil))
	assert.Equal(t, 1, report.Cleared)
	stored, err := s.store.GetPlannedPayment(t.Context(), p.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsPaid)

	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/api/repair?mode=nuke", nil).Code)
}

func TestJobs(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/jobs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"jobs":[],"count":0}`, rec.Body.String())

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/jobs/missing", nil).Code)
}

func TestMethodNotAllowed(t *testing.T) {
	s := newTestServer(t)
	assert.Equal(t, http.StatusMethodNotAllowed, s.do(t, http.MethodPut, "/api/payments", nil).Code)
}

func TestUpdatePayment(t *testing.T) {
	s := newTestServer(t)
	p := s.createPayment(t, "Rent", "950", "2024-03-01T00:00:00Z")

	rec := s.do(t, http.MethodPut, "/api/payments/"+p.ID, map[string]any{
		"title": "Rent (new flat)", "amount": "1100", "due_date": "2024-03-02T00:00:00Z", "note": "deposit paid",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[domain.PlannedPayment](t, rec)
	assert.Equal(t, p.ID, updated.ID)
	assert.Equal(t, "1100", updated.Amount.String())
	assert.Equal(t, "deposit paid", updated.Note)

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodPut, "/api/payments/missing", map[string]any{
		"title": "x", "amount": "1", "due_date": "2024-03-02T00:00:00Z",
	}).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPut, "/api/payments/"+p.ID, map[string]any{
		"title": "", "amount": "1", "due_date": "2024-03-02T00:00:00Z",
	}).Code)
}

func TestUpdateTransaction(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodPost, "/api/transactions", map[string]any{
		"title": "Lunch", "amount": "12", "kind": "expense", "category": "Food", "date": "2024-03-02T12:00:00Z",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	tx := decode[domain.Transaction](t, rec)

	rec = s.do(t, http.MethodPut, "/api/transactions/"+tx.ID, map[string]any{
		"title": "Lunch with team", "amount": "48", "kind": "expense", "category": "Food", "date": "2024-03-02T12:00:00Z",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Lunch with team", decode[domain.Transaction](t, rec).Title)

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodPut, "/api/transactions/missing", map[string]any{
		"title": "x", "amount": "1", "kind": "expense", "date": "2024-03-02",
	}).Code)
}

func TestInsights_Cached(t *testing.T) {
	s := newTestServer(t)

	first := decode[insights.Dashboard](t, s.do(t, http.MethodGet, "/api/insights?as_of=2024-03-15T12:00:00Z", nil))
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/transactions", map[string]any{
		"title": "Bonus", "amount": "500", "kind": "income", "date": "2024-03-14T12:00:00Z",
	}).Code)

	cached := decode[insights.Dashboard](t, s.do(t, http.MethodGet, "/api/insights?cached=true", nil))
	assert.True(t, first.Balance.Equal(cached.Balance), "cached dashboard is not recomputed")

	fresh := decode[insights.Dashboard](t, s.do(t, http.MethodGet, "/api/insights?as_of=2024-03-15T12:00:00Z", nil))
	assert.Equal(t, "500", fresh.Balance.String())
}

func TestHealth_ReportsLinkIssues(t *testing.T) {
	s := newTestServer(t)
	p := s.createPayment(t, "Rent", "950", "2024-03-01T00:00:00Z")
	res := decode[planner.LinkResult](t, s.do(t, http.MethodPost, "/api/payments/"+p.ID+"/paid", nil))
	require.NoError(t, s.store.DeleteTransaction(t.Context(), res.Transaction.ID))
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/repair", nil).Code)

	body := decode[map[string]any](t, s.do(t, http.MethodGet, "/health", nil))
	assert.EqualValues(t, 1, body["link_issues"])
}

func TestGoals(t *testing.T) {
	s := newTestServer(t)

	type goalResponse struct {
		domain.Goal
		DaysLeft      int             `json:"days_left"`
		MonthlyNeeded decimal.Decimal `json:"monthly_needed"`
		OnTrack       bool            `json:"on_track"`
		Urgent        bool            `json:"urgent"`
	}

	rec := s.do(t, http.MethodPost, "/api/goals", map[string]any{
		"title": "Holiday", "target_amount": "1000", "saved_amount": "400",
		"due_date": "2024-06-15T00:00:00Z", "category": "Holiday",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	g := decode[goalResponse](t, rec)
	assert.Equal(t, domain.GoalHoliday, g.Category)
	assert.Equal(t, 92, g.DaysLeft)
	assert.True(t, g.MonthlyNeeded.Equal(decimal.NewFromInt(200)))
	assert.False(t, g.OnTrack)
	assert.False(t, g.Urgent)

	rec = s.do(t, http.MethodPost, "/api/goals", map[string]any{
		"title": "Boat", "target_amount": "10", "due_date": "2024-06-15", "category": "yacht",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "category")

	rec = s.do(t, http.MethodPost, "/api/transactions", map[string]any{
		"title": "Coffee beans", "amount": "12.50", "kind": "expense", "category": "Food", "date": "2024-03-02T09:00:00Z",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	type suggestionResponse struct {
		Suggestion *goals.Suggestion `json:"suggestion"`
	}
	sug := decode[suggestionResponse](t, s.do(t, http.MethodGet, "/api/goals/"+g.ID+"/suggestion", nil))
	require.NotNil(t, sug.Suggestion)
	assert.Equal(t, goals.SuggestReviewSpending, sug.Suggestion.Kind)
	assert.Equal(t, "Coffee beans", sug.Suggestion.HighestExpense)

	rec = s.do(t, http.MethodPost, "/api/goals/"+g.ID+"/contributions", map[string]any{"amount": "600"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	g = decode[goalResponse](t, rec)
	assert.True(t, g.Reached())
	assert.Len(t, g.Contributions, 1)

	sug = decode[suggestionResponse](t, s.do(t, http.MethodGet, "/api/goals/"+g.ID+"/suggestion", nil))
	assert.Nil(t, sug.Suggestion)

	assert.Equal(t, http.StatusBadRequest,
		s.do(t, http.MethodPost, "/api/goals/"+g.ID+"/contributions", map[string]any{"amount": "-5"}).Code)

	sum := decode[goals.Summary](t, s.do(t, http.MethodGet, "/api/goals/summary", nil))
	assert.Equal(t, 1, sum.Count)
	assert.True(t, sum.Progress.Equal(decimal.NewFromInt(1)))

	rec = s.do(t, http.MethodPut, "/api/goals/"+g.ID, map[string]any{
		"title": "Long holiday", "target_amount": "2000", "due_date": "2024-09-01T00:00:00Z",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	g = decode[goalResponse](t, rec)
	assert.Equal(t, "Long holiday", g.Title)
	assert.True(t, g.SavedAmount.Equal(decimal.NewFromInt(1000)))

	assert.Equal(t, http.StatusNoContent, s.do(t, http.MethodDelete, "/api/goals/"+g.ID, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/goals/"+g.ID, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodDelete, "/api/goals/"+g.ID, nil).Code)
}
