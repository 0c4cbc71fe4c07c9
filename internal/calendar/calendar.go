// Package calendar implements the date arithmetic used for planned payments
// and monthly aggregation. Every function is pure and never fails: dates
// that do not exist in the target month are clamped to its last day.
package calendar

import (
	"time"

	"github.com/dvloznov/finance-planner/internal/domain"
)

// NextDueDate returns the due date that follows from by one interval.
//
//   - week:  seven calendar days later
//   - month: same day of the following month, clamped to the month's last day
//   - year:  same day and month of the following year, clamped (Feb 29 -> Feb 28)
//
// The wall-clock time and location of from are preserved. An unknown
// interval returns from unchanged.
func NextDueDate(from time.Time, interval domain.Interval) time.Time {
	return AddIntervals(from, interval, 1)
}

// AddIntervals advances start by n intervals, clamping against start's own
// day of month. Because every step is anchored on start, a monthly series
// starting on the 31st lands on the last day of short months and returns to
// the 31st whenever the month has one.
func AddIntervals(start time.Time, interval domain.Interval, n int) time.Time {
	if n == 0 {
		return start
	}
	switch interval {
	case domain.IntervalWeek:
		return start.AddDate(0, 0, 7*n)
	case domain.IntervalMonth:
		return addMonthsClamped(start, n)
	case domain.IntervalYear:
		return addMonthsClamped(start, 12*n)
	default:
		return start
	}
}

func addMonthsClamped(t time.Time, months int) time.Time {
	year, month, day := t.Date()

	// Normalise to a zero-based month index so negative offsets also work.
	idx := int(month) - 1 + months
	year += floorDiv(idx, 12)
	month = time.Month(floorMod(idx, 12) + 1)

	if last := DaysInMonth(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// DaysInMonth returns the number of days in the given month.
func DaysInMonth(year int, month time.Month) int {
	// Day 0 of the next month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// StartOfDay truncates t to midnight in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// SameOrBeforeDay reports whether a falls on the same calendar day as b or
// earlier. a is converted into b's location first.
func SameOrBeforeDay(a, b time.Time) bool {
	return !StartOfDay(a.In(b.Location())).After(StartOfDay(b))
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func floorMod(a, b int) int {
	return a - floorDiv(a, b)*b
}
