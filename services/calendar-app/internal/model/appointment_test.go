package model

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestParseStatus(t *testing.T) {
	cases := map[string]Status{
		"pending":    StatusPending,
		"CONFIRMED":  StatusConfirmed,
		"no-show":    StatusNoShow,
		"noshow":     StatusNoShow,
		" Completed": StatusCompleted,
	}
	for in, want := range cases {
		got, err := ParseStatus(in)
		if err != nil || got != want {
			t.Fatalf("ParseStatus(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseStatus("booked"); err == nil {
		t.Fatal("expected error for unknown status")
	}
}

func TestDisplayNameDefaultsToWalkIn(t *testing.T) {
	if got := (Appointment{}).DisplayName(); got != WalkInName {
		t.Fatalf("expected walk-in, got %q", got)
	}
	if got := (Appointment{CustomerName: StringPtr("  Jane ")}).DisplayName(); got != "Jane" {
		t.Fatalf("expected Jane, got %q", got)
	}
}

func TestTotalAppliesTaxPercentage(t *testing.T) {
	a := Appointment{Price: decimal.RequireFromString("80.00"), Tax: decimal.RequireFromString("12.5")}
	if got := a.Total().StringFixed(2); got != "90.00" {
		t.Fatalf("expected 90.00, got %s", got)
	}
}

func TestCloneDoesNotShareCustomerFields(t *testing.T) {
	a := Appointment{ID: "a1", CustomerName: StringPtr("Jane")}
	b := a.Clone()
	*b.CustomerName = "John"
	if *a.CustomerName != "Jane" {
		t.Fatal("clone shares customer name pointer")
	}
}

func TestServiceValidate(t *testing.T) {
	if err := (Service{ID: "s1", DurationMinutes: 0}).Validate(); err == nil {
		t.Fatal("expected duration error")
	}
	if err := (Service{ID: "s1", DurationMinutes: 30, DepositRequired: true}).Validate(); err == nil {
		t.Fatal("expected deposit error")
	}
	amt := decimal.NewFromInt(20)
	if err := (Service{ID: "s1", DurationMinutes: 30, DepositRequired: true, DepositAmount: &amt}).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSlotWithDuration(t *testing.T) {
	start := time.Date(2026, 10, 19, 14, 0, 0, 0, time.UTC)
	s := AvailabilitySlot{StartTime: start}.WithDuration(30 * time.Minute)
	if !s.EndTime.Equal(start.Add(30 * time.Minute)) {
		t.Fatalf("unexpected end %s", s.EndTime)
	}
}
