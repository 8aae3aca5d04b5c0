package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Service struct {
	ID              string           `json:"id"`
	Name            string           `json:"name"`
	DurationMinutes int              `json:"duration_minutes"`
	Price           *decimal.Decimal `json:"price,omitempty"`
	Tax             *decimal.Decimal `json:"tax,omitempty"`
	DepositRequired bool             `json:"deposit_required"`
	DepositAmount   *decimal.Decimal `json:"deposit_amount,omitempty"`
	IsActive        bool             `json:"is_active"`
}

func (s Service) Duration() time.Duration {
	return time.Duration(s.DurationMinutes) * time.Minute
}

func (s Service) Validate() error {
	if s.ID == "" {
		return errors.New("service id required")
	}
	if s.DurationMinutes <= 0 {
		return fmt.Errorf("service %s: duration_minutes must be > 0", s.ID)
	}
	if s.DepositRequired && (s.DepositAmount == nil || !s.DepositAmount.IsPositive()) {
		return fmt.Errorf("service %s: deposit_amount required when deposit_required", s.ID)
	}
	return nil
}

type Staff struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	IsActive bool   `json:"is_active"`
}

type AvailabilitySlot struct {
	StartTime           time.Time `json:"start_time"`
	EndTime             time.Time `json:"end_time"`
	Available           bool      `json:"available"`
	AvailableStaffCount int       `json:"available_staff_count"`
	StaffIDs            []string  `json:"staff_ids"`
}

// WithDuration fills EndTime from the service duration when the API omitted it.
func (s AvailabilitySlot) WithDuration(d time.Duration) AvailabilitySlot {
	if s.EndTime.IsZero() || !s.EndTime.After(s.StartTime) {
		s.EndTime = s.StartTime.Add(d)
	}
	return s
}

// BusinessHour is one open window; Weekday follows time.Weekday (0=Sunday).
type BusinessHour struct {
	Weekday int    `json:"weekday"`
	Open    string `json:"open_time"`
	Close   string `json:"close_time"`
}

// Settings is the business configuration the client gates behaviour on.
type Settings struct {
	Timezone         string `json:"timezone"`
	AllowStaffChoice bool   `json:"allow_staff_choice"`
	AutoConfirm      bool   `json:"auto_confirm"`
}
