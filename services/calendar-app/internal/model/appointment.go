package model

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusCancelled Status = "CANCELLED"
	StatusNoShow    Status = "NO_SHOW"
	StatusCompleted Status = "COMPLETED"
)

var ErrUnknownStatus = errors.New("unknown appointment status")

// ParseStatus accepts any case and the "no-show"/"noshow" spellings the API has used.
func ParseStatus(raw string) (Status, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, "-", "_")
	if s == "NOSHOW" {
		s = string(StatusNoShow)
	}
	switch Status(s) {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusNoShow, StatusCompleted:
		return Status(s), nil
	}
	return "", ErrUnknownStatus
}

const WalkInName = "Walk-in"

type Appointment struct {
	ID            string          `json:"id"`
	StartTime     time.Time       `json:"start_time"`
	EndTime       time.Time       `json:"end_time"`
	Status        Status          `json:"status"`
	ServiceID     string          `json:"service_id"`
	StaffID       string          `json:"staff_id"`
	ServiceName   string          `json:"service_name,omitempty"`
	StaffName     string          `json:"staff_name,omitempty"`
	CustomerName  *string         `json:"customer_name"`
	CustomerEmail *string         `json:"customer_email"`
	CustomerPhone *string         `json:"customer_phone"`
	Price         decimal.Decimal `json:"price"`
	Tax           decimal.Decimal `json:"tax"`
	CreatedAt     time.Time       `json:"created_at,omitempty"`
}

// DisplayName is the customer name, or "Walk-in" when none was captured.
func (a Appointment) DisplayName() string {
	if a.CustomerName != nil {
		if n := strings.TrimSpace(*a.CustomerName); n != "" {
			return n
		}
	}
	return WalkInName
}

func (a Appointment) Duration() time.Duration {
	return a.EndTime.Sub(a.StartTime)
}

// Total is the price snapshot with its tax percentage applied.
func (a Appointment) Total() decimal.Decimal {
	return a.Price.Add(a.Price.Mul(a.Tax).Div(decimal.NewFromInt(100))).Round(2)
}

func (a Appointment) Valid() error {
	if strings.TrimSpace(a.ID) == "" {
		return errors.New("appointment id required")
	}
	if !a.EndTime.After(a.StartTime) {
		return errors.New("appointment end_time must be after start_time")
	}
	return nil
}

// Clone returns a copy that shares no mutable pointers with a.
func (a Appointment) Clone() Appointment {
	a.CustomerName = clonePtr(a.CustomerName)
	a.CustomerEmail = clonePtr(a.CustomerEmail)
	a.CustomerPhone = clonePtr(a.CustomerPhone)
	return a
}

func CloneAppointments(in []Appointment) []Appointment {
	if in == nil {
		return nil
	}
	out := make([]Appointment, len(in))
	for i, a := range in {
		out[i] = a.Clone()
	}
	return out
}

func clonePtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// StringPtr returns nil for blank input.
func StringPtr(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
