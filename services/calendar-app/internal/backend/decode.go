package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/md-rashed-zaman/apptremind-calendar/services/calendar-app/internal/clock"
	"github.com/md-rashed-zaman/apptremind-calendar/services/calendar-app/internal/model"
)

// decodeList accepts a bare JSON array or an object carrying the array under
// one of keys (then "items", then "data"). Envelopes may nest.
func decodeList[T any](body []byte, keys ...string) ([]T, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var out []T
		if err := json.Unmarshal(trimmed, &out); err != nil {
			return nil, fmt.Errorf("decode list: %w", err)
		}
		return out, nil
	}
	if trimmed[0] != '{' {
		return nil, fmt.Errorf("%w: expected array or object", ErrUnexpectedShape)
	}
	var env map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	for _, k := range append(keys, "items", "data") {
		if raw, ok := env[k]; ok {
			return decodeList[T](raw, keys...)
		}
	}
	return nil, fmt.Errorf("%w: no list under %s", ErrUnexpectedShape, strings.Join(keys, "|"))
}

// decodeObject accepts a bare object or one wrapped under key or "data".
func decodeObject[T any](body []byte, key string) (T, error) {
	var out T
	trimmed := bytes.TrimSpace(body)
	var env map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return out, fmt.Errorf("decode object: %w", err)
	}
	for _, k := range []string{key, "data"} {
		if raw, ok := env[k]; ok && len(raw) > 0 && raw[0] == '{' {
			trimmed = raw
			break
		}
	}
	if err := json.Unmarshal(trimmed, &out); err != nil {
		return out, fmt.Errorf("decode object: %w", err)
	}
	return out, nil
}

type namedRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type wireAppointment struct {
	ID            string              `json:"id"`
	AppointmentID string              `json:"appointment_id"`
	StartTime     string              `json:"start_time"`
	EndTime       string              `json:"end_time"`
	Status        string              `json:"status"`
	ServiceID     string              `json:"service_id"`
	StaffID       string              `json:"staff_id"`
	Service       *namedRef           `json:"service"`
	Staff         *namedRef           `json:"staff"`
	CustomerName  *string             `json:"customer_name"`
	CustomerEmail *string             `json:"customer_email"`
	CustomerPhone *string             `json:"customer_phone"`
	Price         decimal.NullDecimal `json:"price"`
	Tax           decimal.NullDecimal `json:"tax"`
	CreatedAt     string              `json:"created_at"`
}

// parseTime reads an API timestamp; naive values are wall time in loc. An
// empty value is the zero time.
func parseTime(raw string, loc *time.Location) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return time.Time{}, nil
	}
	return clock.ParseInstant(raw, loc)
}

func (w wireAppointment) normalize(loc *time.Location) (model.Appointment, error) {
	a := model.Appointment{
		ID:            w.ID,
		ServiceID:     w.ServiceID,
		StaffID:       w.StaffID,
		CustomerName:  model.StringPtr(deref(w.CustomerName)),
		CustomerEmail: model.StringPtr(deref(w.CustomerEmail)),
		CustomerPhone: model.StringPtr(deref(w.CustomerPhone)),
	}
	if a.ID == "" {
		a.ID = w.AppointmentID
	}
	var err error
	if a.StartTime, err = parseTime(w.StartTime, loc); err != nil {
		return model.Appointment{}, fmt.Errorf("appointment %s: start_time: %w", a.ID, err)
	}
	if a.EndTime, err = parseTime(w.EndTime, loc); err != nil {
		return model.Appointment{}, fmt.Errorf("appointment %s: end_time: %w", a.ID, err)
	}
	if created, err := parseTime(w.CreatedAt, loc); err == nil {
		a.CreatedAt = created
	}
	if w.Service != nil {
		if a.ServiceID == "" {
			a.ServiceID = w.Service.ID
		}
		a.ServiceName = w.Service.Name
	}
	if w.Staff != nil {
		if a.StaffID == "" {
			a.StaffID = w.Staff.ID
		}
		a.StaffName = w.Staff.Name
	}
	if w.Price.Valid {
		a.Price = w.Price.Decimal
	}
	if w.Tax.Valid {
		a.Tax = w.Tax.Decimal
	}
	status, err := model.ParseStatus(w.Status)
	if err != nil {
		return model.Appointment{}, fmt.Errorf("appointment %s: %w", a.ID, err)
	}
	a.Status = status
	if err := a.Valid(); err != nil {
		return model.Appointment{}, err
	}
	return a, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// decodeAppointments skips rows that fail normalization so one bad record
// does not blank the calendar; the list shape itself must be valid.
func decodeAppointments(body []byte, loc *time.Location, logger *slog.Logger) ([]model.Appointment, error) {
	wire, err := decodeList[wireAppointment](body, "appointments")
	if err != nil {
		return nil, fmt.Errorf("appointments: %w", err)
	}
	out := make([]model.Appointment, 0, len(wire))
	for _, w := range wire {
		a, err := w.normalize(loc)
		if err != nil {
			logger.Warn("skipping malformed appointment", "err", err)
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func decodeAppointment(body []byte, loc *time.Location) (model.Appointment, error) {
	w, err := decodeObject[wireAppointment](body, "appointment")
	if err != nil {
		return model.Appointment{}, err
	}
	return w.normalize(loc)
}

type wireSlot struct {
	StartTime           string     `json:"start_time"`
	EndTime             string     `json:"end_time"`
	Available           *bool      `json:"available"`
	AvailableStaffCount *int       `json:"available_staff_count"`
	StaffIDs            []string   `json:"staff_ids"`
	AvailableStaff      []namedRef `json:"available_staff"`
}

// decodeSlots fills end times from the service duration and treats a slot
// without an explicit flag as available.
func decodeSlots(body []byte, duration time.Duration, loc *time.Location) ([]model.AvailabilitySlot, error) {
	wire, err := decodeList[wireSlot](body, "slots")
	if err != nil {
		return nil, fmt.Errorf("slots: %w", err)
	}
	out := make([]model.AvailabilitySlot, 0, len(wire))
	for _, w := range wire {
		start, err := parseTime(w.StartTime, loc)
		if err != nil || start.IsZero() {
			return nil, fmt.Errorf("%w: slot start_time %q", ErrUnexpectedShape, w.StartTime)
		}
		end, err := parseTime(w.EndTime, loc)
		if err != nil {
			return nil, fmt.Errorf("%w: slot end_time %q", ErrUnexpectedShape, w.EndTime)
		}
		s := model.AvailabilitySlot{
			StartTime: start,
			EndTime:   end,
			Available: true,
			StaffIDs:  w.StaffIDs,
		}
		if len(s.StaffIDs) == 0 {
			for _, ref := range w.AvailableStaff {
				s.StaffIDs = append(s.StaffIDs, ref.ID)
			}
		}
		s.AvailableStaffCount = len(s.StaffIDs)
		if w.AvailableStaffCount != nil {
			s.AvailableStaffCount = *w.AvailableStaffCount
		}
		if w.Available != nil {
			s.Available = *w.Available
		}
		out = append(out, s.WithDuration(duration))
	}
	return out, nil
}

func decodeServices(body []byte) ([]model.Service, error) {
	out, err := decodeList[model.Service](body, "services")
	if err != nil {
		return nil, fmt.Errorf("services: %w", err)
	}
	return out, nil
}

func decodeStaff(body []byte) ([]model.Staff, error) {
	out, err := decodeList[model.Staff](body, "staff")
	if err != nil {
		return nil, fmt.Errorf("staff: %w", err)
	}
	return out, nil
}

func decodeBusinessHours(body []byte) ([]model.BusinessHour, error) {
	out, err := decodeList[model.BusinessHour](body, "business_hours", "hours")
	if err != nil {
		return nil, fmt.Errorf("business hours: %w", err)
	}
	return out, nil
}

type Created struct {
	AppointmentID   string
	AssignedStaffID string
}

type wireCreated struct {
	AppointmentID   string `json:"appointment_id"`
	ID              string `json:"id"`
	AssignedStaffID string `json:"assigned_staff_id"`
	StaffID         string `json:"staff_id"`
}

func decodeCreated(body []byte) (Created, error) {
	w, err := decodeObject[wireCreated](body, "appointment")
	if err != nil {
		return Created{}, err
	}
	c := Created{AppointmentID: w.AppointmentID, AssignedStaffID: w.AssignedStaffID}
	if c.AppointmentID == "" {
		c.AppointmentID = w.ID
	}
	if c.AssignedStaffID == "" {
		c.AssignedStaffID = w.StaffID
	}
	if c.AppointmentID == "" {
		return Created{}, fmt.Errorf("%w: create response without appointment id", ErrUnexpectedShape)
	}
	return c, nil
}
