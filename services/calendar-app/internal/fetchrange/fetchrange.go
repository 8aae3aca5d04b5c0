// Package fetchrange picks the window of appointments to request for a view.
// Day, week and month views all request the same 42-day month-grid superset so
// switching views or paging inside a month is served from cache.
package fetchrange

import (
	"fmt"
	"strings"
	"time"

	"github.com/md-rashed-zaman/apptremind-calendar/services/calendar-app/internal/clock"
)

type ViewMode string

const (
	ViewMonth ViewMode = "month"
	ViewWeek  ViewMode = "week"
	ViewDay   ViewMode = "day"
	ViewList  ViewMode = "list"
)

const listWindowMonths = 3

func ParseViewMode(raw string) (ViewMode, error) {
	switch m := ViewMode(strings.ToLower(strings.TrimSpace(raw))); m {
	case ViewMonth, ViewWeek, ViewDay, ViewList:
		return m, nil
	case "":
		return ViewMonth, nil
	default:
		return "", fmt.Errorf("unknown view mode %q", raw)
	}
}

// Range is half-open: [Start, End).
type Range struct {
	Start time.Time
	End   time.Time
}

// Key is stable for equal ranges and is used as the cache key.
func (r Range) Key() string {
	return r.Start.UTC().Format(time.RFC3339) + ".." + r.End.UTC().Format(time.RFC3339)
}

func (r Range) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

// Select returns the fetch window for anchor under mode, with day boundaries
// taken in loc.
func Select(anchor time.Time, mode ViewMode, loc *time.Location) Range {
	if loc == nil {
		loc = time.UTC
	}
	local := anchor.In(loc)
	switch mode {
	case ViewList:
		day := clock.StartOfDay(local, loc)
		return Range{
			Start: day.AddDate(0, -listWindowMonths, 0),
			End:   day.AddDate(0, listWindowMonths, 0),
		}
	default:
		days := clock.MonthGridDays(local)
		return Range{
			Start: days[0],
			End:   days[len(days)-1].AddDate(0, 0, 1),
		}
	}
}
