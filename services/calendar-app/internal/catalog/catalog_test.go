package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/md-rashed-zaman/apptremind-calendar/services/calendar-app/internal/fetchrange"
	"github.com/md-rashed-zaman/apptremind-calendar/services/calendar-app/internal/model"
)

type fakeAPI struct {
	services     []model.Service
	serviceCalls int
	toggleErr    error
	toggled      map[string]bool
	staff        []model.Staff
	staffErr     error
	hours        []model.BusinessHour
	settings     model.Settings
	appointments []model.Appointment
	apptCalls    int
	apptRanges   []fetchrange.Range
}

func (f *fakeAPI) ListServices(_ context.Context, includeInactive bool) ([]model.Service, error) {
	f.serviceCalls++
	out := make([]model.Service, len(f.services))
	copy(out, f.services)
	return out, nil
}

func (f *fakeAPI) SetServiceActive(_ context.Context, id string, active bool) error {
	if f.toggleErr != nil {
		return f.toggleErr
	}
	if f.toggled == nil {
		f.toggled = map[string]bool{}
	}
	f.toggled[id] = active
	for i := range f.services {
		if f.services[i].ID == id {
			f.services[i].IsActive = active
		}
	}
	return nil
}

func (f *fakeAPI) ListStaff(context.Context) ([]model.Staff, error) {
	return f.staff, f.staffErr
}

func (f *fakeAPI) ListBusinessHours(context.Context) ([]model.BusinessHour, error) {
	return f.hours, nil
}

func (f *fakeAPI) GetSettings(context.Context) (model.Settings, error) {
	return f.settings, nil
}

func (f *fakeAPI) ListAppointments(_ context.Context, r fetchrange.Range) ([]model.Appointment, error) {
	f.apptCalls++
	f.apptRanges = append(f.apptRanges, r)
	return f.appointments, nil
}

func newFake() *fakeAPI {
	return &fakeAPI{
		services: []model.Service{
			{ID: "s1", Name: "Cut", DurationMinutes: 30, IsActive: true},
			{ID: "s2", Name: "Colour", DurationMinutes: 90, IsActive: false},
		},
		staff:    []model.Staff{{ID: "st1", Name: "Ana", IsActive: true}},
		hours:    []model.BusinessHour{{Weekday: 1, Open: "09:00", Close: "17:00"}},
		settings: model.Settings{Timezone: "Europe/Berlin", AllowStaffChoice: true},
	}
}

func TestServicesFiltersInactiveAndCaches(t *testing.T) {
	api := newFake()
	c := New(api, Options{StaleTime: time.Minute})
	ctx := context.Background()
	active, err := c.Services(ctx, false)
	if err != nil || len(active) != 1 || active[0].ID != "s1" {
		t.Fatalf("expected only active services, got %v %v", active, err)
	}
	all, _ := c.Services(ctx, true)
	if len(all) != 2 {
		t.Fatalf("expected all services, got %d", len(all))
	}
	_, _ = c.Services(ctx, true)
	if api.serviceCalls != 2 {
		t.Fatalf("expected cached reads, got %d calls", api.serviceCalls)
	}
	if _, err := c.Service(ctx, "nope"); !errors.Is(err, ErrServiceNotFound) {
		t.Fatalf("expected ErrServiceNotFound, got %v", err)
	}
}

func TestToggleServiceCommitsAndRollsBack(t *testing.T) {
	api := newFake()
	c := New(api, Options{StaleTime: time.Minute})
	ctx := context.Background()

	active, err := c.ToggleService(ctx, "s2")
	if err != nil || !active || !api.toggled["s2"] {
		t.Fatalf("toggle on: active=%v err=%v", active, err)
	}
	svc, _ := c.Service(ctx, "s2")
	if !svc.IsActive {
		t.Fatalf("cache should show the service active")
	}

	api.toggleErr = errors.New("forbidden")
	before, _ := c.Services(ctx, true)
	active, err = c.ToggleService(ctx, "s1")
	if err == nil || !active {
		t.Fatalf("expected failure keeping s1 active, got active=%v err=%v", active, err)
	}
	after, _, _ := c.services.Get(keyServicesAll)
	for i := range before {
		if before[i] != after[i] {
			t.Fatalf("rollback mismatch: %+v vs %+v", before[i], after[i])
		}
	}
}

func TestSettingsTimezoneOverride(t *testing.T) {
	c := New(newFake(), Options{Timezone: "Asia/Dhaka"})
	s, err := c.Settings(context.Background())
	if err != nil || s.Timezone != "Asia/Dhaka" || !s.AllowStaffChoice {
		t.Fatalf("unexpected settings %+v %v", s, err)
	}
}

func TestScheduleFromHours(t *testing.T) {
	c := New(newFake(), Options{})
	s, err := c.Schedule(context.Background())
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if s.IsWeekdayClosed(time.Monday) || !s.IsWeekdayClosed(time.Tuesday) {
		t.Fatalf("only monday is configured")
	}
}

func TestJoinFillsMissingNames(t *testing.T) {
	c := New(newFake(), Options{StaleTime: time.Minute})
	in := []model.Appointment{
		{ID: "a1", ServiceID: "s1", StaffID: "st1"},
		{ID: "a2", ServiceID: "s2", StaffID: "st1", ServiceName: "Embedded"},
	}
	out := c.Join(context.Background(), in)
	if out[0].ServiceName != "Cut" || out[0].StaffName != "Ana" {
		t.Fatalf("names not joined: %+v", out[0])
	}
	if out[1].ServiceName != "Embedded" {
		t.Fatalf("embedded name should win: %+v", out[1])
	}
	if in[0].ServiceName != "" {
		t.Fatalf("join must not mutate its input")
	}
}

func TestJoinToleratesLookupFailure(t *testing.T) {
	api := newFake()
	api.staffErr = errors.New("offline")
	c := New(api, Options{})
	out := c.Join(context.Background(), []model.Appointment{{ID: "a1", ServiceID: "s1", StaffID: "st1"}})
	if out[0].ServiceName != "Cut" || out[0].StaffName != "" {
		t.Fatalf("unexpected join result %+v", out[0])
	}
}

func TestAppointmentsLoadAndRefresh(t *testing.T) {
	api := newFake()
	start := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	api.appointments = []model.Appointment{{ID: "a1", StartTime: start, EndTime: start.Add(time.Hour), Status: model.StatusPending}}
	appts := NewAppointments(api, time.Minute, nil)
	ctx := context.Background()

	if err := appts.Refresh(ctx); err != nil || api.apptCalls != 0 {
		t.Fatalf("refresh without an active range should do nothing")
	}
	r := fetchrange.Select(start, fetchrange.ViewMonth, time.UTC)
	list, meta, err := appts.Load(ctx, r)
	if err != nil || len(list) != 1 || meta.Stale {
		t.Fatalf("load: %v %+v %v", list, meta, err)
	}
	// other view modes in the same month hit the same range and the cache
	_, _, _ = appts.Load(ctx, fetchrange.Select(start.AddDate(0, 0, 3), fetchrange.ViewWeek, time.UTC))
	if api.apptCalls != 1 {
		t.Fatalf("expected one request across views, got %d", api.apptCalls)
	}
	if err := appts.Refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if api.apptCalls != 2 {
		t.Fatalf("refresh should refetch the active range")
	}
	if active, ok := appts.Active(); !ok || active != r {
		t.Fatalf("unexpected active range %+v", active)
	}
	appts.Reset()
	if _, ok := appts.Active(); ok || len(appts.Cache().Keys()) != 0 {
		t.Fatalf("reset should clear state")
	}
}
