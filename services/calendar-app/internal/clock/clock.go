// Package clock answers "what day and hour is this instant" for a business
// timezone. Every same-day decision in the app goes through DateKey: the
// business timezone and the device timezone may disagree about the date of an
// instant near midnight.
package clock

import (
	"fmt"
	"os"
	"strings"
	"time"
)

const DateKeyLayout = "2006-01-02"

// ResolveTimeZone returns tz when it names a loadable zone, else the device
// zone, else "UTC". It never fails.
func ResolveTimeZone(tz string) string {
	if name := strings.TrimSpace(tz); name != "" {
		if _, err := time.LoadLocation(name); err == nil {
			return name
		}
	}
	if name := deviceZone(); name != "" {
		return name
	}
	return "UTC"
}

func deviceZone() string {
	if name := strings.TrimPrefix(strings.TrimSpace(os.Getenv("TZ")), ":"); name != "" {
		if _, err := time.LoadLocation(name); err == nil {
			return name
		}
	}
	if name := time.Local.String(); name != "" && name != "Local" {
		if _, err := time.LoadLocation(name); err == nil {
			return name
		}
	}
	return ""
}

// Location loads the resolved zone for tz, falling back to UTC.
func Location(tz string) *time.Location {
	loc, err := time.LoadLocation(ResolveTimeZone(tz))
	if err != nil {
		return time.UTC
	}
	return loc
}

// DateKey is the calendar date of t in loc as YYYY-MM-DD.
func DateKey(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(DateKeyLayout)
}

// HoursMinutes is the wall-clock time of t in loc.
func HoursMinutes(t time.Time, loc *time.Location) (hours, minutes int) {
	if loc == nil {
		loc = time.UTC
	}
	lt := t.In(loc)
	return lt.Hour(), lt.Minute()
}

// SameDay compares calendar dates in loc.
func SameDay(a, b time.Time, loc *time.Location) bool {
	return DateKey(a, loc) == DateKey(b, loc)
}

// ParseDateKey returns local midnight of key in loc.
func ParseDateKey(key string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(DateKeyLayout, strings.TrimSpace(key), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", key, err)
	}
	return t, nil
}

// StartOfDay is local midnight of t's calendar date in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
}

// ParseInstant parses an API timestamp. Values with an offset are absolute;
// naive values ("2006-01-02T15:04:05") are business-local wall time in loc.
func ParseInstant(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if loc == nil {
		loc = time.UTC
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t.UTC(), nil
	}
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02 15:04:05"} {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse time %q", raw)
}
