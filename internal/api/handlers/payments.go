package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/finance-planner/internal/api/middleware"
	"github.com/dvloznov/finance-planner/internal/domain"
	"github.com/dvloznov/finance-planner/internal/ledger"
	"github.com/dvloznov/finance-planner/internal/planner"
)

// PaymentsHandler handles planned payment endpoints.
type PaymentsHandler struct {
	svc *planner.Service
	now func() time.Time
	log zerolog.Logger
}

// NewPaymentsHandler creates a new payments handler.
func NewPaymentsHandler(svc *planner.Service, now func() time.Time, log zerolog.Logger) *PaymentsHandler {
	return &PaymentsHandler{svc: svc, now: now, log: log}
}

// paymentRequest is the body of POST /api/payments and
// POST /api/payments/recurring. Dates may be plain YYYY-MM-DD.
type paymentRequest struct {
	Title             string                    `json:"title"`
	Amount            decimal.Decimal           `json:"amount"`
	DueDate           string                    `json:"due_date"`
	Note              string                    `json:"note"`
	IsRecurring       bool                      `json:"is_recurring"`
	RecurringInterval string                    `json:"recurring_interval"`
	Reminders         domain.ReminderPreference `json:"reminders"`
}

func (req paymentRequest) toNewPayment() (planner.NewPayment, error) {
	var errs domain.ValidationErrors
	due, err := parseTime(req.DueDate, time.Local)
	if err != nil {
		errs.Add("due_date", "expected YYYY-MM-DD or RFC3339: "+req.DueDate)
	}

	var interval domain.Interval
	if strings.TrimSpace(req.RecurringInterval) != "" {
		interval, err = domain.ParseInterval(req.RecurringInterval)
		if err != nil {
			errs.Add("recurring_interval", "unknown interval: "+req.RecurringInterval)
		}
	}
	if err := errs.Err(); err != nil {
		return planner.NewPayment{}, err
	}

	return planner.NewPayment{
		Title:             req.Title,
		Amount:            req.Amount,
		DueDate:           due,
		Note:              req.Note,
		IsRecurring:       req.IsRecurring,
		RecurringInterval: interval,
		Reminders:         req.Reminders,
	}, nil
}

// ListPayments handles GET /api/payments
func (h *PaymentsHandler) ListPayments(w http.ResponseWriter, r *http.Request) {
	paid, err := boolParam(r, "paid")
	if err != nil {
		writeServiceError(w, h.log, err, "")
		return
	}
	recurring, err := boolParam(r, "recurring")
	if err != nil {
		writeServiceError(w, h.log, err, "")
		return
	}
	filter := ledger.PaymentFilter{Paid: paid, Recurring: recurring}
	filter.Limit, filter.Offset = pageParams(r)

	payments, err := h.svc.PlannedPayments(r.Context(), filter)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to list planned payments")
		return
	}
	if payments == nil {
		payments = []domain.PlannedPayment{}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"payments": payments,
		"count":    len(payments),
	})
}

// CreatePayment handles POST /api/payments. A recurring request creates the
// whole series.
func (h *PaymentsHandler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	in, err := req.toNewPayment()
	if err != nil {
		writeServiceError(w, h.log, err, "")
		return
	}

	created, err := h.svc.AddPlannedPayment(r.Context(), in)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to create planned payment")
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"payments": created,
		"count":    len(created),
	})
}

// CreateRecurring handles POST /api/payments/recurring
func (h *PaymentsHandler) CreateRecurring(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.RecurringInterval == "" {
		middleware.WriteError(w, http.StatusBadRequest, "invalid recurring_interval: interval is required")
		return
	}
	req.IsRecurring = true

	in, err := req.toNewPayment()
	if err != nil {
		writeServiceError(w, h.log, err, "")
		return
	}

	series, err := h.svc.CreateRecurringSeries(r.Context(), planner.RecurringSpec{
		Title:     in.Title,
		Amount:    in.Amount,
		StartDate: in.DueDate,
		Interval:  in.RecurringInterval,
		Note:      in.Note,
		Reminders: in.Reminders,
	})
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to create recurring series")
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"payments": series,
		"count":    len(series),
	})
}

// MarkPaid handles POST /api/payments/{id}/paid
func (h *PaymentsHandler) MarkPaid(w http.ResponseWriter, r *http.Request, paymentID string) {
	res, err := h.svc.MarkPaid(r.Context(), paymentID)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to mark payment as paid")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, res)
}

// UnmarkPaid handles DELETE /api/payments/{id}/paid
func (h *PaymentsHandler) UnmarkPaid(w http.ResponseWriter, r *http.Request, paymentID string) {
	res, err := h.svc.UnmarkPaid(r.Context(), paymentID)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to mark payment as unpaid")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, res)
}

// UpdatePayment handles PUT /api/payments/{id}. Paid state, link and
// recurrence cannot be changed here.
func (h *PaymentsHandler) UpdatePayment(w http.ResponseWriter, r *http.Request, paymentID string) {
	var req paymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.RecurringInterval = ""

	in, err := req.toNewPayment()
	if err != nil {
		writeServiceError(w, h.log, err, "")
		return
	}

	updated, err := h.svc.UpdatePlannedPayment(r.Context(), domain.PlannedPayment{
		ID:        paymentID,
		Title:     in.Title,
		Amount:    in.Amount,
		DueDate:   in.DueDate,
		Note:      in.Note,
		Reminders: in.Reminders,
	})
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to update planned payment")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, updated)
}

// DeletePayment handles DELETE /api/payments/{id}
func (h *PaymentsHandler) DeletePayment(w http.ResponseWriter, r *http.Request, paymentID string) {
	if err := h.svc.DeletePlannedPayment(r.Context(), paymentID); err != nil {
		writeServiceError(w, h.log, err, "Failed to delete planned payment")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListOverdue handles GET /api/payments/overdue?as_of=&unpaid=
func (h *PaymentsHandler) ListOverdue(w http.ResponseWriter, r *http.Request) {
	asOf, err := asOfParam(r, h.now)
	if err != nil {
		writeServiceError(w, h.log, err, "")
		return
	}
	unpaid, err := boolParam(r, "unpaid")
	if err != nil {
		writeServiceError(w, h.log, err, "")
		return
	}

	overdue, err := h.svc.OverduePayments(r.Context(), asOf)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to list overdue payments")
		return
	}
	if unpaid != nil && *unpaid {
		overdue = planner.UnpaidOverdue(overdue, asOf)
	}
	if overdue == nil {
		overdue = []domain.PlannedPayment{}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"as_of":    asOf,
		"payments": overdue,
		"count":    len(overdue),
	})
}

// Repair handles POST /api/repair?mode=clear|recreate&dry_run=true
func (h *PaymentsHandler) Repair(w http.ResponseWriter, r *http.Request) {
	mode, err := planner.ParseRepairMode(r.URL.Query().Get("mode"))
	if err != nil {
		writeServiceError(w, h.log, err, "")
		return
	}
	dryRun, err := boolParam(r, "dry_run")
	if err != nil {
		writeServiceError(w, h.log, err, "")
		return
	}

	report, err := h.svc.Repair(r.Context(), planner.RepairOptions{Mode: mode, DryRun: dryRun != nil && *dryRun})
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to repair payment links")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, report)
}
