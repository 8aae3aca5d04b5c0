package hours

import (
	"testing"
	"time"

	"github.com/md-rashed-zaman/apptremind-calendar/services/calendar-app/internal/model"
)

func weekdayRows() []model.BusinessHour {
	var rows []model.BusinessHour
	for wd := 1; wd <= 5; wd++ {
		rows = append(rows, model.BusinessHour{Weekday: wd, Open: "09:00", Close: "17:00"})
	}
	return rows
}

func TestWeekendClosedForAnyDate(t *testing.T) {
	s := NewSchedule(weekdayRows())
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 366; i++ {
		day := start.AddDate(0, 0, i)
		wantClosed := day.Weekday() == time.Saturday || day.Weekday() == time.Sunday
		if got := s.IsDayClosed(day); got != wantClosed {
			t.Fatalf("%s (%s): closed=%v, want %v", day.Format("2006-01-02"), day.Weekday(), got, wantClosed)
		}
	}
}

func TestUnconfiguredBusinessIsAlwaysOpen(t *testing.T) {
	s := NewSchedule(nil)
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		if s.IsWeekdayClosed(wd) {
			t.Fatalf("%s should be open when no hours are configured", wd)
		}
	}
}

func TestSplitShiftsKeepBothWindows(t *testing.T) {
	s := NewSchedule([]model.BusinessHour{
		{Weekday: 6, Open: "09:00", Close: "12:00"},
		{Weekday: 6, Open: "13:00", Close: "16:00"},
		{Weekday: 9, Open: "00:00", Close: "01:00"},
	})
	if got := len(s.Windows(time.Saturday)); got != 2 {
		t.Fatalf("expected 2 windows, got %d", got)
	}
	if !s.IsWeekdayClosed(time.Monday) {
		t.Fatal("Monday has no row and should be closed")
	}
}
