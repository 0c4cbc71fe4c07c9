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
	"github.com/dvloznov/finance-planner/internal/goals"
)

// GoalsHandler handles savings goal endpoints.
type GoalsHandler struct {
	svc *goals.Service
	now func() time.Time
	log zerolog.Logger
}

// NewGoalsHandler creates a new goals handler.
func NewGoalsHandler(svc *goals.Service, now func() time.Time, log zerolog.Logger) *GoalsHandler {
	return &GoalsHandler{svc: svc, now: now, log: log}
}

// goalRequest is the body of POST /api/goals and PUT /api/goals/{id}.
type goalRequest struct {
	Title        string          `json:"title"`
	TargetAmount decimal.Decimal `json:"target_amount"`
	SavedAmount  decimal.Decimal `json:"saved_amount"`
	DueDate      string          `json:"due_date"`
	Category     string          `json:"category"`
	Note         string          `json:"note"`
}

func (req goalRequest) toNewGoal() (goals.NewGoal, error) {
	var errs domain.ValidationErrors
	due, err := parseTime(req.DueDate, time.Local)
	if err != nil {
		errs.Add("due_date", "expected YYYY-MM-DD or RFC3339: "+req.DueDate)
	}
	// Empty stays empty: new goals default to other, updates keep theirs.
	var category domain.GoalCategory
	if strings.TrimSpace(req.Category) != "" {
		category, err = domain.ParseGoalCategory(req.Category)
		if err != nil {
			errs.Add("category", "unknown goal category: "+req.Category)
		}
	}
	if err := errs.Err(); err != nil {
		return goals.NewGoal{}, err
	}
	return goals.NewGoal{
		Title:        req.Title,
		TargetAmount: req.TargetAmount,
		SavedAmount:  req.SavedAmount,
		DueDate:      due,
		Category:     category,
		Note:         req.Note,
	}, nil
}

// goalView adds the figures a goal card shows.
type goalView struct {
	domain.Goal
	Progress      decimal.Decimal `json:"progress"`
	Remaining     decimal.Decimal `json:"remaining"`
	DaysLeft      int             `json:"days_left"`
	MonthlyNeeded decimal.Decimal `json:"monthly_needed"`
	OnTrack       bool            `json:"on_track"`
	Urgent        bool            `json:"urgent"`
}

func (h *GoalsHandler) view(g domain.Goal) goalView {
	now := h.now()
	return goalView{
		Goal:          g,
		Progress:      g.Progress().Round(4),
		Remaining:     g.Remaining(),
		DaysLeft:      g.DaysLeft(now),
		MonthlyNeeded: g.RequiredMonthlyContribution(now),
		OnTrack:       g.OnTrack(now),
		Urgent:        g.Urgent(now),
	}
}

// ListGoals handles GET /api/goals
func (h *GoalsHandler) ListGoals(w http.ResponseWriter, r *http.Request) {
	gs, err := h.svc.Goals(r.Context())
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to list goals")
		return
	}

	views := make([]goalView, 0, len(gs))
	for _, g := range gs {
		views = append(views, h.view(g))
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"goals":   views,
		"count":   len(views),
		"summary": goals.Summarize(gs),
	})
}

// GetGoal handles GET /api/goals/{id}
func (h *GoalsHandler) GetGoal(w http.ResponseWriter, r *http.Request, goalID string) {
	g, err := h.svc.Goal(r.Context(), goalID)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to get goal")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, h.view(g))
}

// CreateGoal handles POST /api/goals
func (h *GoalsHandler) CreateGoal(w http.ResponseWriter, r *http.Request) {
	var req goalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	in, err := req.toNewGoal()
	if err != nil {
		writeServiceError(w, h.log, err, "")
		return
	}

	g, err := h.svc.AddGoal(r.Context(), in)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to create goal")
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, h.view(g))
}

// UpdateGoal handles PUT /api/goals/{id}. Saved amount and contributions
// only change through contributions.
func (h *GoalsHandler) UpdateGoal(w http.ResponseWriter, r *http.Request, goalID string) {
	var req goalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	in, err := req.toNewGoal()
	if err != nil {
		writeServiceError(w, h.log, err, "")
		return
	}

	g, err := h.svc.UpdateGoal(r.Context(), domain.Goal{
		ID:           goalID,
		Title:        in.Title,
		TargetAmount: in.TargetAmount,
		DueDate:      in.DueDate,
		Category:     in.Category,
		Note:         in.Note,
	})
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to update goal")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, h.view(g))
}

// DeleteGoal handles DELETE /api/goals/{id}
func (h *GoalsHandler) DeleteGoal(w http.ResponseWriter, r *http.Request, goalID string) {
	if err := h.svc.DeleteGoal(r.Context(), goalID); err != nil {
		writeServiceError(w, h.log, err, "Failed to delete goal")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddContribution handles POST /api/goals/{id}/contributions
func (h *GoalsHandler) AddContribution(w http.ResponseWriter, r *http.Request, goalID string) {
	var req struct {
		Amount decimal.Decimal `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	g, err := h.svc.AddContribution(r.Context(), goalID, req.Amount)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to record contribution")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, h.view(g))
}

// GetSuggestion handles GET /api/goals/{id}/suggestion. The suggestion is
// null when the goal needs no action.
func (h *GoalsHandler) GetSuggestion(w http.ResponseWriter, r *http.Request, goalID string) {
	s, err := h.svc.Suggestion(r.Context(), goalID)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to build saving suggestion")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"goal_id":    goalID,
		"suggestion": s,
	})
}

// GetSummary handles GET /api/goals/summary
func (h *GoalsHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := h.svc.Summary(r.Context())
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to summarize goals")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, sum)
}
