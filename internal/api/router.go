// Package api wires the HTTP handlers into a router.
package api

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-planner/internal/api/handlers"
	"github.com/dvloznov/finance-planner/internal/api/middleware"
	"github.com/dvloznov/finance-planner/internal/goals"
	"github.com/dvloznov/finance-planner/internal/insights"
	"github.com/dvloznov/finance-planner/internal/jobs"
	"github.com/dvloznov/finance-planner/internal/ledger"
	"github.com/dvloznov/finance-planner/internal/planner"
)

// Deps are the services the router exposes.
type Deps struct {
	Store    ledger.Store
	Service  *planner.Service
	Insights *insights.Engine
	Goals    *goals.Service
	Jobs     jobs.JobStore

	// Now defaults to time.Now.
	Now func() time.Time
}

// NewRouter builds the API handler with the standard middleware chain.
func NewRouter(deps Deps, log zerolog.Logger) http.Handler {
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	payments := handlers.NewPaymentsHandler(deps.Service, now, log)
	transactions := handlers.NewTransactionsHandler(deps.Service, log)
	insightsHandler := handlers.NewInsightsHandler(deps.Insights, now, log)
	export := handlers.NewExportHandler(deps.Store, now, log)
	jobsHandler := handlers.NewJobsHandler(deps.Jobs, log)
	goalsHandler := handlers.NewGoalsHandler(deps.Goals, now, log)

	mux := http.NewServeMux()

	// Planned payments
	mux.HandleFunc("GET /api/payments", payments.ListPayments)
	mux.HandleFunc("POST /api/payments", payments.CreatePayment)
	mux.HandleFunc("POST /api/payments/recurring", payments.CreateRecurring)
	mux.HandleFunc("GET /api/payments/overdue", payments.ListOverdue)
	mux.HandleFunc("POST /api/payments/{id}/paid", func(w http.ResponseWriter, r *http.Request) {
		payments.MarkPaid(w, r, r.PathValue("id"))
	})
	mux.HandleFunc("DELETE /api/payments/{id}/paid", func(w http.ResponseWriter, r *http.Request) {
		payments.UnmarkPaid(w, r, r.PathValue("id"))
	})
	mux.HandleFunc("PUT /api/payments/{id}", func(w http.ResponseWriter, r *http.Request) {
		payments.UpdatePayment(w, r, r.PathValue("id"))
	})
	mux.HandleFunc("DELETE /api/payments/{id}", func(w http.ResponseWriter, r *http.Request) {
		payments.DeletePayment(w, r, r.PathValue("id"))
	})
	mux.HandleFunc("POST /api/repair", payments.Repair)

	// Transactions
	mux.HandleFunc("GET /api/transactions", transactions.ListTransactions)
	mux.HandleFunc("POST /api/transactions", transactions.CreateTransaction)
	mux.HandleFunc("PUT /api/transactions/{id}", func(w http.ResponseWriter, r *http.Request) {
		transactions.UpdateTransaction(w, r, r.PathValue("id"))
	})
	mux.HandleFunc("DELETE /api/transactions/{id}", func(w http.ResponseWriter, r *http.Request) {
		transactions.DeleteTransaction(w, r, r.PathValue("id"))
	})

	// Savings goals
	mux.HandleFunc("GET /api/goals", goalsHandler.ListGoals)
	mux.HandleFunc("POST /api/goals", goalsHandler.CreateGoal)
	mux.HandleFunc("GET /api/goals/summary", goalsHandler.GetSummary)
	mux.HandleFunc("GET /api/goals/{id}", func(w http.ResponseWriter, r *http.Request) {
		goalsHandler.GetGoal(w, r, r.PathValue("id"))
	})
	mux.HandleFunc("PUT /api/goals/{id}", func(w http.ResponseWriter, r *http.Request) {
		goalsHandler.UpdateGoal(w, r, r.PathValue("id"))
	})
	mux.HandleFunc("DELETE /api/goals/{id}", func(w http.ResponseWriter, r *http.Request) {
		goalsHandler.DeleteGoal(w, r, r.PathValue("id"))
	})
	mux.HandleFunc("POST /api/goals/{id}/contributions", func(w http.ResponseWriter, r *http.Request) {
		goalsHandler.AddContribution(w, r, r.PathValue("id"))
	})
	mux.HandleFunc("GET /api/goals/{id}/suggestion", func(w http.ResponseWriter, r *http.Request) {
		goalsHandler.GetSuggestion(w, r, r.PathValue("id"))
	})

	// Insights and snapshots
	mux.HandleFunc("GET /api/insights", insightsHandler.GetInsights)
	mux.HandleFunc("GET /api/export", export.Export)
	mux.HandleFunc("POST /api/import", export.Import)

	// Reminder jobs
	mux.HandleFunc("GET /api/jobs", jobsHandler.ListJobs)
	mux.HandleFunc("GET /api/jobs/{id}", func(w http.ResponseWriter, r *http.Request) {
		jobsHandler.GetJob(w, r, r.PathValue("id"))
	})

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"status":      "healthy",
			"time":        now().Format(time.RFC3339),
			"link_issues": deps.Service.Linker().IssueCount(),
		})
	})

	return middleware.Chain(mux,
		middleware.Recovery(log),
		middleware.RequestID,
		middleware.Logger(log),
		middleware.CORS,
	)
}
