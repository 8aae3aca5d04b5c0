package grid

import (
	"github.com/md-rashed-zaman/apptremind-calendar/services/calendar-app/internal/clock"
	"github.com/md-rashed-zaman/apptremind-calendar/services/calendar-app/internal/model"
)

type AgendaItem struct {
	AppointmentID string       `json:"appointment_id"`
	Title         string       `json:"title"`
	ServiceName   string       `json:"service_name,omitempty"`
	StaffName     string       `json:"staff_name,omitempty"`
	Start         string       `json:"start"`
	End           string       `json:"end"`
	Status        model.Status `json:"status"`
	Color         string       `json:"color"`
}

type AgendaDay struct {
	DateKey string       `json:"date"`
	IsToday bool         `json:"is_today"`
	Items   []AgendaItem `json:"items"`
}

// Agenda is the list view: days that have appointments, in date order.
func Agenda(in Input) []AgendaDay {
	loc := in.loc()
	sorted := make([]model.Appointment, len(in.Appointments))
	copy(sorted, in.Appointments)
	sortByStart(sorted)

	today := deviceDateKey(in.DeviceNow)
	var out []AgendaDay
	for _, a := range sorted {
		key := clock.DateKey(a.StartTime, loc)
		if len(out) == 0 || out[len(out)-1].DateKey != key {
			out = append(out, AgendaDay{DateKey: key, IsToday: key == today})
		}
		last := &out[len(out)-1]
		last.Items = append(last.Items, AgendaItem{
			AppointmentID: a.ID,
			Title:         a.DisplayName(),
			ServiceName:   a.ServiceName,
			StaffName:     a.StaffName,
			Start:         a.StartTime.In(loc).Format("15:04"),
			End:           a.EndTime.In(loc).Format("15:04"),
			Status:        a.Status,
			Color:         StatusColor(a.Status),
		})
	}
	return out
}
