package handlers

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-planner/internal/api/middleware"
	"github.com/dvloznov/finance-planner/internal/insights"
)

// InsightsHandler serves the budget dashboard.
type InsightsHandler struct {
	engine *insights.Engine
	now    func() time.Time
	log    zerolog.Logger
}

// NewInsightsHandler creates a new insights handler.
func NewInsightsHandler(engine *insights.Engine, now func() time.Time, log zerolog.Logger) *InsightsHandler {
	return &InsightsHandler{engine: engine, now: now, log: log}
}

// GetInsights handles GET /api/insights?as_of=&cached=
// The dashboard is recomputed from the store unless cached=true and an
// earlier dashboard exists.
func (h *InsightsHandler) GetInsights(w http.ResponseWriter, r *http.Request) {
	cached, err := boolParam(r, "cached")
	if err != nil {
		writeServiceError(w, h.log, err, "")
		return
	}
	if cached != nil && *cached {
		if latest := h.engine.Latest(); latest != nil {
			middleware.WriteJSON(w, http.StatusOK, latest)
			return
		}
	}

	asOf, err := asOfParam(r, h.now)
	if err != nil {
		writeServiceError(w, h.log, err, "")
		return
	}

	dashboard, err := h.engine.Refresh(r.Context(), asOf)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to compute insights")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, dashboard)
}
