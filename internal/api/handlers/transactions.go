package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/finance-planner/internal/api/middleware"
	"github.com/dvloznov/finance-planner/internal/domain"
	"github.com/dvloznov/finance-planner/internal/insights"
	"github.com/dvloznov/finance-planner/internal/ledger"
	"github.com/dvloznov/finance-planner/internal/planner"
)

// TransactionsHandler handles transaction endpoints.
type TransactionsHandler struct {
	svc *planner.Service
	log zerolog.Logger
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(svc *planner.Service, log zerolog.Logger) *TransactionsHandler {
	return &TransactionsHandler{svc: svc, log: log}
}

type transactionRequest struct {
	Title    string          `json:"title"`
	Amount   decimal.Decimal `json:"amount"`
	Kind     domain.Kind     `json:"kind"`
	Category string          `json:"category"`
	Date     string          `json:"date"`
	Note     string          `json:"note"`
}

// ListTransactions handles GET /api/transactions
// Query: kind, category, from, to (YYYY-MM-DD, to exclusive), q, limit, offset.
func (h *TransactionsHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := ledger.TransactionFilter{
		Kind:     domain.Kind(query.Get("kind")),
		Category: query.Get("category"),
	}

	var errs domain.ValidationErrors
	if v := query.Get("from"); v != "" {
		t, err := parseTime(v, time.Local)
		if err != nil {
			errs.Add("from", "expected YYYY-MM-DD or RFC3339: "+v)
		}
		filter.From = t
	}
	if v := query.Get("to"); v != "" {
		t, err := parseTime(v, time.Local)
		if err != nil {
			errs.Add("to", "expected YYYY-MM-DD or RFC3339: "+v)
		}
		filter.To = t
	}
	if filter.Kind != "" && !filter.Kind.Valid() {
		errs.Add("kind", "unknown transaction kind: "+string(filter.Kind))
	}
	if err := errs.Err(); err != nil {
		writeServiceError(w, h.log, err, "")
		return
	}

	limit, offset := pageParams(r)
	search := query.Get("q")
	if search == "" {
		filter.Limit, filter.Offset = limit, offset
	}

	txs, err := h.svc.Transactions(r.Context(), filter)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to list transactions")
		return
	}
	if search != "" {
		txs = ledger.Page(insights.Search(txs, search), offset, limit)
	}
	if txs == nil {
		txs = []domain.Transaction{}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": txs,
		"count":        len(txs),
	})
}

func (req transactionRequest) toTransaction(id string) (domain.Transaction, error) {
	date, err := parseTime(req.Date, time.Local)
	if err != nil {
		return domain.Transaction{}, domain.NewValidationError("date", "expected YYYY-MM-DD or RFC3339: "+req.Date)
	}
	return domain.Transaction{
		ID:       id,
		Title:    req.Title,
		Amount:   req.Amount,
		Kind:     req.Kind,
		Category: req.Category,
		Date:     date,
		Note:     req.Note,
	}, nil
}

// CreateTransaction handles POST /api/transactions
func (h *TransactionsHandler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	in, err := req.toTransaction("")
	if err != nil {
		writeServiceError(w, h.log, err, "")
		return
	}

	tx, err := h.svc.RecordTransaction(r.Context(), in)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to record transaction")
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, tx)
}

// UpdateTransaction handles PUT /api/transactions/{id}
func (h *TransactionsHandler) UpdateTransaction(w http.ResponseWriter, r *http.Request, transactionID string) {
	var req transactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	in, err := req.toTransaction(transactionID)
	if err != nil {
		writeServiceError(w, h.log, err, "")
		return
	}

	tx, err := h.svc.UpdateTransaction(r.Context(), in)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to update transaction")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, tx)
}

// DeleteTransaction handles DELETE /api/transactions/{id}
func (h *TransactionsHandler) DeleteTransaction(w http.ResponseWriter, r *http.Request, transactionID string) {
	if err := h.svc.DeleteTransaction(r.Context(), transactionID); err != nil {
		writeServiceError(w, h.log, err, "Failed to delete transaction")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
