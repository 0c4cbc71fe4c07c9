package domain

import (
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// GoalCategory groups savings goals.
type GoalCategory string

const (
	GoalSavings    GoalCategory = "savings"
	GoalInvestment GoalCategory = "investment"
	GoalHoliday    GoalCategory = "holiday"
	GoalEducation  GoalCategory = "education"
	GoalHome       GoalCategory = "home"
	GoalCar        GoalCategory = "car"
	GoalOther      GoalCategory = "other"
)

// Valid reports whether c is a known goal category.
func (c GoalCategory) Valid() bool {
	switch c {
	case GoalSavings, GoalInvestment, GoalHoliday, GoalEducation, GoalHome, GoalCar, GoalOther:
		return true
	}
	return false
}

// ParseGoalCategory accepts category names case-insensitively. Empty means
// GoalOther.
func ParseGoalCategory(s string) (GoalCategory, error) {
	c := GoalCategory(strings.ToLower(strings.TrimSpace(s)))
	if c == "" {
		return GoalOther, nil
	}
	if !c.Valid() {
		return "", NewValidationError("category", "unknown goal category: "+s)
	}
	return c, nil
}

// urgentDays is how close to its due date an unfinished goal becomes urgent.
const urgentDays = 7

// Goal is a savings target the user contributes towards.
//
// SavedAmount includes the starting balance plus every entry of
// Contributions.
type Goal struct {
	ID                 string            `json:"id"`
	Title              string            `json:"title"`
	TargetAmount       decimal.Decimal   `json:"target_amount"`
	SavedAmount        decimal.Decimal   `json:"saved_amount"`
	DueDate            time.Time         `json:"due_date"`
	Note               string            `json:"note,omitempty"`
	Category           GoalCategory      `json:"category"`
	Contributions      []decimal.Decimal `json:"contributions"`
	LastContributionAt time.Time         `json:"last_contribution_at,omitzero"`
}

// Validate checks the goal invariants before any store write.
func (g Goal) Validate() error {
	var errs ValidationErrors
	if strings.TrimSpace(g.Title) == "" {
		errs.Add("title", "title must not be empty")
	}
	if !g.TargetAmount.IsPositive() {
		errs.Add("target_amount", "target amount must be positive: "+g.TargetAmount.String())
	}
	if g.SavedAmount.IsNegative() {
		errs.Add("saved_amount", "saved amount must not be negative: "+g.SavedAmount.String())
	}
	if g.DueDate.IsZero() {
		errs.Add("due_date", "due date is required")
	}
	if !g.Category.Valid() {
		errs.Add("category", "unknown goal category: "+string(g.Category))
	}
	for _, c := range g.Contributions {
		if !c.IsPositive() {
			errs.Add("contributions", "contributions must be positive: "+c.String())
			break
		}
	}
	return errs.Err()
}

// Progress is SavedAmount / TargetAmount. It passes 1 once the target is
// exceeded.
func (g Goal) Progress() decimal.Decimal {
	if !g.TargetAmount.IsPositive() {
		return decimal.Zero
	}
	return g.SavedAmount.Div(g.TargetAmount)
}

// Reached reports whether the target has been saved.
func (g Goal) Reached() bool {
	return g.SavedAmount.GreaterThanOrEqual(g.TargetAmount)
}

// Remaining is what is still missing to reach the target, never negative.
func (g Goal) Remaining() decimal.Decimal {
	return decimal.Max(g.TargetAmount.Sub(g.SavedAmount), decimal.Zero)
}

// DaysLeft counts calendar days from now to the due date in now's location.
// It is negative once the due date has passed.
func (g Goal) DaysLeft(now time.Time) int {
	return civil.DateOf(g.DueDate.In(now.Location())).DaysSince(civil.DateOf(now))
}

// MonthsLeft counts whole months from now to the due date, never negative.
func (g Goal) MonthsLeft(now time.Time) int {
	from := civil.DateOf(now)
	to := civil.DateOf(g.DueDate.In(now.Location()))
	months := (to.Year-from.Year)*12 + int(to.Month-from.Month)
	if to.Day < from.Day {
		months--
	}
	return max(months, 0)
}

// AverageContribution is the mean of Contributions, zero when there are none.
func (g Goal) AverageContribution() decimal.Decimal {
	if len(g.Contributions) == 0 {
		return decimal.Zero
	}
	return decimal.Sum(decimal.Zero, g.Contributions...).
		Div(decimal.NewFromInt(int64(len(g.Contributions)))).
		Round(2)
}

// RequiredMonthlyContribution spreads Remaining over the months left, with
// at least one month.
func (g Goal) RequiredMonthlyContribution(now time.Time) decimal.Decimal {
	months := max(g.MonthsLeft(now), 1)
	return g.Remaining().Div(decimal.NewFromInt(int64(months))).Round(2)
}

// OnTrack reports whether the average contribution covers the required
// monthly contribution.
func (g Goal) OnTrack(now time.Time) bool {
	return g.AverageContribution().GreaterThanOrEqual(g.RequiredMonthlyContribution(now))
}

// Urgent reports whether an unfinished goal is due within a week.
func (g Goal) Urgent(now time.Time) bool {
	return !g.Reached() && g.DaysLeft(now) <= urgentDays
}
