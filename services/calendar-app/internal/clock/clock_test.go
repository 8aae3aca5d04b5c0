package clock

import (
	"testing"
	"time"
)

func mustLoad(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	if err != nil {
		t.Fatalf("load %s: %v", name, err)
	}
	return loc
}

func TestResolveTimeZone(t *testing.T) {
	if got := ResolveTimeZone("America/New_York"); got != "America/New_York" {
		t.Fatalf("expected given zone, got %q", got)
	}
	t.Setenv("TZ", "Europe/Berlin")
	if got := ResolveTimeZone("Not/AZone"); got != "Europe/Berlin" {
		t.Fatalf("expected device zone, got %q", got)
	}
	if got := ResolveTimeZone(""); got != "Europe/Berlin" {
		t.Fatalf("expected device zone for empty input, got %q", got)
	}
}

func TestDateKeyUsesBusinessZone(t *testing.T) {
	ny := mustLoad(t, "America/New_York")
	// 23:30 in New York is already the next day in UTC.
	instant := time.Date(2026, 10, 19, 23, 30, 0, 0, ny)
	if got := DateKey(instant, ny); got != "2026-10-19" {
		t.Fatalf("expected 2026-10-19, got %s", got)
	}
	if got := DateKey(instant, time.UTC); got != "2026-10-20" {
		t.Fatalf("expected 2026-10-20 in UTC, got %s", got)
	}
	if DateKey(instant, ny) != DateKey(instant, ny) {
		t.Fatal("DateKey must be stable")
	}
}

func TestDateKeySplitsAtLocalMidnight(t *testing.T) {
	tokyo := mustLoad(t, "Asia/Tokyo")
	midnight := time.Date(2026, 3, 1, 0, 0, 0, 0, tokyo)
	before := midnight.Add(-time.Millisecond)
	if DateKey(before, tokyo) == DateKey(midnight, tokyo) {
		t.Fatal("instants 1ms apart across local midnight must have different keys")
	}
	if DateKey(before, tokyo) != "2026-02-28" || DateKey(midnight, tokyo) != "2026-03-01" {
		t.Fatalf("unexpected keys %s / %s", DateKey(before, tokyo), DateKey(midnight, tokyo))
	}
}

func TestHoursMinutes(t *testing.T) {
	la := mustLoad(t, "America/Los_Angeles")
	h, m := HoursMinutes(time.Date(2026, 10, 19, 17, 45, 0, 0, time.UTC), la)
	if h != 10 || m != 45 {
		t.Fatalf("expected 10:45, got %02d:%02d", h, m)
	}
}

func TestMonthGridDays(t *testing.T) {
	loc := mustLoad(t, "America/New_York")
	for year := 2024; year <= 2027; year++ {
		for month := time.January; month <= time.December; month++ {
			anchor := time.Date(year, month, 15, 12, 0, 0, 0, loc)
			days := MonthGridDays(anchor)
			if days[0].Weekday() != time.Monday {
				t.Fatalf("%d-%02d: first day is %s", year, month, days[0].Weekday())
			}
			if days[41].Weekday() != time.Sunday {
				t.Fatalf("%d-%02d: last day is %s", year, month, days[41].Weekday())
			}
			seen := map[string]bool{}
			for _, d := range days {
				seen[DateKey(d, loc)] = true
			}
			if len(seen) != 42 {
				t.Fatalf("%d-%02d: expected 42 distinct days, got %d", year, month, len(seen))
			}
			last := time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
			for d := 1; d <= last; d++ {
				key := DateKey(time.Date(year, month, d, 0, 0, 0, 0, loc), loc)
				if !seen[key] {
					t.Fatalf("%d-%02d: grid missing %s", year, month, key)
				}
			}
		}
	}
}

func TestMonthGridStartsOnTheFirstWhenMonday(t *testing.T) {
	// June 2026 starts on a Monday.
	days := MonthGridDays(time.Date(2026, 6, 20, 0, 0, 0, 0, time.UTC))
	if got := DateKey(days[0], time.UTC); got != "2026-06-01" {
		t.Fatalf("expected grid to start on 2026-06-01, got %s", got)
	}
}

func TestWeekDays(t *testing.T) {
	days := WeekDays(time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)) // Sunday
	if DateKey(days[0], time.UTC) != "2026-10-12" || DateKey(days[6], time.UTC) != "2026-10-18" {
		t.Fatalf("unexpected week %s..%s", DateKey(days[0], time.UTC), DateKey(days[6], time.UTC))
	}
}

func TestParseInstant(t *testing.T) {
	ny := mustLoad(t, "America/New_York")
	got, err := ParseInstant("2026-10-19T10:00:00", ny)
	if err != nil {
		t.Fatalf("ParseInstant: %v", err)
	}
	if !got.Equal(time.Date(2026, 10, 19, 14, 0, 0, 0, time.UTC)) {
		t.Fatalf("naive time should be business-local, got %s", got)
	}
	got, err = ParseInstant("2026-10-19T10:00:00Z", ny)
	if err != nil || !got.Equal(time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("offset time should be absolute, got %s (%v)", got, err)
	}
	if _, err := ParseInstant("tomorrow", ny); err == nil {
		t.Fatal("expected error")
	}
}

func TestClockTodayAndIsPast(t *testing.T) {
	ny := mustLoad(t, "America/New_York")
	fixed := time.Date(2026, 10, 20, 2, 0, 0, 0, time.UTC) // 22:00 on the 19th in New York
	c := New(ny, func() time.Time { return fixed })
	if c.Today() != "2026-10-19" {
		t.Fatalf("expected business today 2026-10-19, got %s", c.Today())
	}
	if !c.IsPast("2026-10-18") || c.IsPast("2026-10-19") || c.IsPast("2026-10-20") {
		t.Fatal("IsPast compares against business today")
	}
	if got := DateKey(c.WithDeviceLocation(time.UTC).DeviceNow(), time.UTC); got != "2026-10-20" {
		t.Fatalf("device clock should read its own zone, got %s", got)
	}
}
