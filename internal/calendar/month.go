package calendar

import (
	"fmt"
	"time"
)

// Month identifies a calendar month by year and month number. Two dates
// from the same month number in different years are different Months.
type Month struct {
	Year  int
	Month time.Month
}

// MonthOf returns the month t falls in, using t's location.
func MonthOf(t time.Time) Month {
	return Month{Year: t.Year(), Month: t.Month()}
}

// Previous returns the month before m, wrapping January to December of the
// previous year.
func (m Month) Previous() Month {
	if m.Month == time.January {
		return Month{Year: m.Year - 1, Month: time.December}
	}
	return Month{Year: m.Year, Month: m.Month - 1}
}

// Contains reports whether t, viewed in loc, falls inside m.
func (m Month) Contains(t time.Time, loc *time.Location) bool {
	if loc != nil {
		t = t.In(loc)
	}
	return MonthOf(t) == m
}

// Start returns the first instant of m in loc.
func (m Month) Start(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, loc)
}

func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}
