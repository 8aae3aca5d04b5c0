package clock

import "time"

// MonthGridDays returns the 42 consecutive days (6 weeks, Monday first) that
// cover anchor's month, starting on the Monday on or before the 1st. Values are
// midnight in anchor's location.
func MonthGridDays(anchor time.Time) [42]time.Time {
	loc := anchor.Location()
	first := time.Date(anchor.Year(), anchor.Month(), 1, 0, 0, 0, 0, loc)
	start := first.AddDate(0, 0, -daysSinceMonday(first.Weekday()))

	var days [42]time.Time
	for i := range days {
		days[i] = start.AddDate(0, 0, i)
	}
	return days
}

// WeekDays returns Monday..Sunday of the week containing anchor.
func WeekDays(anchor time.Time) [7]time.Time {
	loc := anchor.Location()
	day := time.Date(anchor.Year(), anchor.Month(), anchor.Day(), 0, 0, 0, 0, loc)
	start := day.AddDate(0, 0, -daysSinceMonday(day.Weekday()))

	var days [7]time.Time
	for i := range days {
		days[i] = start.AddDate(0, 0, i)
	}
	return days
}

func daysSinceMonday(wd time.Weekday) int {
	return (int(wd) + 6) % 7
}
