// Package hours gates date selection on the business's weekly opening hours.
// A weekday with no row is closed; a business with no rows at all has not
// configured hours yet and every day is open.
package hours

import (
	"strings"
	"time"

	"github.com/md-rashed-zaman/apptremind-calendar/services/calendar-app/internal/model"
)

type Window struct {
	Open  string
	Close string
}

type Schedule struct {
	byWeekday map[time.Weekday][]Window
	rows      int
}

func NewSchedule(rows []model.BusinessHour) Schedule {
	s := Schedule{byWeekday: map[time.Weekday][]Window{}}
	for _, r := range rows {
		if r.Weekday < 0 || r.Weekday > 6 {
			continue
		}
		wd := time.Weekday(r.Weekday)
		s.byWeekday[wd] = append(s.byWeekday[wd], Window{
			Open:  strings.TrimSpace(r.Open),
			Close: strings.TrimSpace(r.Close),
		})
		s.rows++
	}
	return s
}

// Configured is false when the business has no hours at all.
func (s Schedule) Configured() bool {
	return s.rows > 0
}

// IsWeekdayClosed reports whether wd has no opening row.
func (s Schedule) IsWeekdayClosed(wd time.Weekday) bool {
	if !s.Configured() {
		return false
	}
	return len(s.byWeekday[wd]) == 0
}

// IsDayClosed uses the calendar date of day as given (callers pass a date
// already projected into the business zone, e.g. from clock.ParseDateKey).
func (s Schedule) IsDayClosed(day time.Time) bool {
	return s.IsWeekdayClosed(day.Weekday())
}

// Windows returns the open windows for wd, nil when closed or unconfigured.
func (s Schedule) Windows(wd time.Weekday) []Window {
	return s.byWeekday[wd]
}
