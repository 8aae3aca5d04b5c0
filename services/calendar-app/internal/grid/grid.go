// Package grid projects appointments onto day, week and month calendar
// layouts. Appointment positions use the business zone; the "today" highlight
// and the live time marker use the device zone, so the marker always shows the
// viewer's real time even when the business is elsewhere.
package grid

import (
	"math"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/md-rashed-zaman/apptremind-calendar/services/calendar-app/internal/clock"
	"github.com/md-rashed-zaman/apptremind-calendar/services/calendar-app/internal/hours"
	"github.com/md-rashed-zaman/apptremind-calendar/services/calendar-app/internal/lanes"
	"github.com/md-rashed-zaman/apptremind-calendar/services/calendar-app/internal/model"
)

type Config struct {
	HourHeight     float64 `json:"hour_height"`
	MinBlockHeight float64 `json:"min_block_height"`
	ColumnWidth    float64 `json:"column_width"`
	MaxChips       int     `json:"max_chips"`
	// StartHour is the first hour row drawn; 0 draws from midnight.
	StartHour int `json:"start_hour"`
}

func DefaultConfig() Config {
	return Config{
		HourHeight:     60,
		MinBlockHeight: 24,
		ColumnWidth:    320,
		MaxChips:       3,
	}
}

func (c Config) normalized() Config {
	d := DefaultConfig()
	if c.HourHeight <= 0 {
		c.HourHeight = d.HourHeight
	}
	if c.MinBlockHeight < 0 {
		c.MinBlockHeight = 0
	}
	if c.ColumnWidth <= 0 {
		c.ColumnWidth = d.ColumnWidth
	}
	if c.MaxChips <= 0 {
		c.MaxChips = d.MaxChips
	}
	if c.StartHour < 0 || c.StartHour > 23 {
		c.StartHour = 0
	}
	return c
}

// Input is everything a projection depends on.
type Input struct {
	Appointments []model.Appointment
	Anchor       time.Time
	Location     *time.Location
	DeviceNow    time.Time
	// Schedule marks closed days when set.
	Schedule *hours.Schedule
}

func (in Input) loc() *time.Location {
	if in.Location == nil {
		return time.UTC
	}
	return in.Location
}

type Block struct {
	AppointmentID string       `json:"appointment_id"`
	Title         string       `json:"title"`
	Status        model.Status `json:"status"`
	Color         string       `json:"color"`
	StartLabel    string       `json:"start_label"`
	Top           float64      `json:"top"`
	Height        float64      `json:"height"`
	Left          float64      `json:"left"`
	Width         float64      `json:"width"`
	Lane          int          `json:"lane"`
	TotalLanes    int          `json:"total_lanes"`
}

type DayColumn struct {
	DateKey string  `json:"date"`
	X       float64 `json:"x"`
	IsToday bool    `json:"is_today"`
	Closed  bool    `json:"closed"`
	Blocks  []Block `json:"blocks"`
}

type Marker struct {
	DateKey string  `json:"date"`
	Top     float64 `json:"top"`
}

type DayView struct {
	Column DayColumn `json:"column"`
	Now    Marker    `json:"now"`
}

type WeekView struct {
	Columns []DayColumn `json:"columns"`
	Now     Marker      `json:"now"`
}

type Chip struct {
	AppointmentID string       `json:"appointment_id"`
	Initial       string       `json:"initial"`
	Status        model.Status `json:"status"`
	Color         string       `json:"color"`
}

type MonthCell struct {
	DateKey  string `json:"date"`
	Day      int    `json:"day"`
	InMonth  bool   `json:"in_month"`
	IsToday  bool   `json:"is_today"`
	Closed   bool   `json:"closed"`
	Chips    []Chip `json:"chips"`
	Overflow int    `json:"overflow"`
}

type MonthView struct {
	Month string      `json:"month"`
	Cells []MonthCell `json:"cells"`
}

var statusColors = map[model.Status]string{
	model.StatusPending:   "#F59E0B",
	model.StatusConfirmed: "#10B981",
	model.StatusCancelled: "#EF4444",
	model.StatusNoShow:    "#6B7280",
	model.StatusCompleted: "#3B82F6",
}

func StatusColor(s model.Status) string {
	if c, ok := statusColors[s]; ok {
		return c
	}
	return "#9CA3AF"
}

// Day lays out the anchor's business-local date.
func Day(in Input, cfg Config) DayView {
	cfg = cfg.normalized()
	loc := in.loc()
	key := clock.DateKey(in.Anchor, loc)
	byDay := groupByDay(in.Appointments, loc)
	return DayView{
		Column: column(key, 0, byDay[key], in, cfg),
		Now:    NowMarker(in.DeviceNow, cfg),
	}
}

// Week lays out Monday..Sunday of the anchor's week, one column each.
func Week(in Input, cfg Config) WeekView {
	cfg = cfg.normalized()
	loc := in.loc()
	byDay := groupByDay(in.Appointments, loc)
	days := clock.WeekDays(in.Anchor.In(loc))
	cols := make([]DayColumn, 0, len(days))
	for i, d := range days {
		key := clock.DateKey(d, loc)
		cols = append(cols, column(key, float64(i)*cfg.ColumnWidth, byDay[key], in, cfg))
	}
	return WeekView{Columns: cols, Now: NowMarker(in.DeviceNow, cfg)}
}

// Month returns the fixed 42-cell grid with up to MaxChips chips per day.
func Month(in Input, cfg Config) MonthView {
	cfg = cfg.normalized()
	loc := in.loc()
	anchor := in.Anchor.In(loc)
	byDay := groupByDay(in.Appointments, loc)
	today := deviceDateKey(in.DeviceNow)

	days := clock.MonthGridDays(anchor)
	cells := make([]MonthCell, 0, len(days))
	for _, d := range days {
		key := clock.DateKey(d, loc)
		appts := byDay[key]
		cell := MonthCell{
			DateKey: key,
			Day:     d.Day(),
			InMonth: d.Month() == anchor.Month(),
			IsToday: key == today,
			Closed:  in.Schedule != nil && in.Schedule.IsDayClosed(d),
			Chips:   []Chip{},
		}
		for i, a := range appts {
			if i >= cfg.MaxChips {
				cell.Overflow = len(appts) - cfg.MaxChips
				break
			}
			cell.Chips = append(cell.Chips, Chip{
				AppointmentID: a.ID,
				Initial:       initial(a.DisplayName()),
				Status:        a.Status,
				Color:         StatusColor(a.Status),
			})
		}
		cells = append(cells, cell)
	}
	return MonthView{Month: anchor.Format("2006-01"), Cells: cells}
}

// NowMarker places the live time line using the device's own wall clock.
func NowMarker(deviceNow time.Time, cfg Config) Marker {
	cfg = cfg.normalized()
	if deviceNow.IsZero() {
		return Marker{}
	}
	h, m := deviceNow.Hour(), deviceNow.Minute()
	return Marker{
		DateKey: deviceDateKey(deviceNow),
		Top:     verticalOffset(h, m, cfg),
	}
}

func column(key string, x float64, appts []model.Appointment, in Input, cfg Config) DayColumn {
	loc := in.loc()
	col := DayColumn{
		DateKey: key,
		X:       x,
		IsToday: key == deviceDateKey(in.DeviceNow),
		Blocks:  []Block{},
	}
	if in.Schedule != nil {
		if day, err := clock.ParseDateKey(key, loc); err == nil {
			col.Closed = in.Schedule.IsDayClosed(day)
		}
	}

	intervals := make([]lanes.Interval, 0, len(appts))
	for _, a := range appts {
		intervals = append(intervals, lanes.Interval{ID: a.ID, Start: a.StartTime, End: a.EndTime})
	}
	placements := lanes.AllocateByID(intervals)

	for _, a := range appts {
		p := placements[a.ID]
		if p.TotalLanes == 0 {
			p.TotalLanes = 1
		}
		h, m := clock.HoursMinutes(a.StartTime, loc)
		width := cfg.ColumnWidth / float64(p.TotalLanes)
		col.Blocks = append(col.Blocks, Block{
			AppointmentID: a.ID,
			Title:         a.DisplayName(),
			Status:        a.Status,
			Color:         StatusColor(a.Status),
			StartLabel:    a.StartTime.In(loc).Format("15:04"),
			Top:           verticalOffset(h, m, cfg),
			Height:        math.Max(a.Duration().Minutes()/60*cfg.HourHeight, cfg.MinBlockHeight),
			Left:          float64(p.Lane) * width,
			Width:         width,
			Lane:          p.Lane,
			TotalLanes:    p.TotalLanes,
		})
	}
	return col
}

func verticalOffset(h, m int, cfg Config) float64 {
	return float64(h-cfg.StartHour)*cfg.HourHeight + float64(m)/60*cfg.HourHeight
}

// groupByDay buckets appointments by business-local start date, each bucket
// ordered by start then id.
func groupByDay(appts []model.Appointment, loc *time.Location) map[string][]model.Appointment {
	out := map[string][]model.Appointment{}
	for _, a := range appts {
		key := clock.DateKey(a.StartTime, loc)
		out[key] = append(out[key], a)
	}
	for _, list := range out {
		sortByStart(list)
	}
	return out
}

func sortByStart(list []model.Appointment) {
	sort.SliceStable(list, func(i, j int) bool {
		if !list[i].StartTime.Equal(list[j].StartTime) {
			return list[i].StartTime.Before(list[j].StartTime)
		}
		return list[i].ID < list[j].ID
	})
}

func deviceDateKey(deviceNow time.Time) string {
	if deviceNow.IsZero() {
		return ""
	}
	return clock.DateKey(deviceNow, deviceNow.Location())
}

func initial(name string) string {
	for _, r := range strings.TrimSpace(name) {
		return string(unicode.ToUpper(r))
	}
	return "?"
}
