package wizard

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/md-rashed-zaman/apptremind-calendar/services/calendar-app/internal/backend"
	"github.com/md-rashed-zaman/apptremind-calendar/services/calendar-app/internal/hours"
	"github.com/md-rashed-zaman/apptremind-calendar/services/calendar-app/internal/model"
)

type fakeBackend struct {
	mu         sync.Mutex
	slots      []model.AvailabilitySlot
	slotErr    error
	slotGate   chan struct{}
	queries    []backend.SlotQuery
	created    []backend.CreateRequest
	keys       []string
	createErr  error
	createGate chan struct{}
}

func (f *fakeBackend) Slots(ctx context.Context, q backend.SlotQuery) ([]model.AvailabilitySlot, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	gate := f.slotGate
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.slotErr != nil {
		return nil, f.slotErr
	}
	out := make([]model.AvailabilitySlot, len(f.slots))
	copy(out, f.slots)
	return out, nil
}

func (f *fakeBackend) CreateAppointment(_ context.Context, req backend.CreateRequest, key string) (backend.Created, error) {
	f.mu.Lock()
	f.created = append(f.created, req)
	f.keys = append(f.keys, key)
	gate, createErr := f.createGate, f.createErr
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if createErr != nil {
		return backend.Created{}, createErr
	}
	return backend.Created{AppointmentID: "appt-1"}, nil
}

var newYork = mustLoad("America/New_York")

func mustLoad(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

// Saturday 2026-10-17, noon in New York.
var testNow = time.Date(2026, 10, 17, 12, 0, 0, 0, newYork)

func weekdaysNineToFive() hours.Schedule {
	var rows []model.BusinessHour
	for wd := 1; wd <= 5; wd++ {
		rows = append(rows, model.BusinessHour{Weekday: wd, Open: "09:00", Close: "17:00"})
	}
	return hours.NewSchedule(rows)
}

func serviceX() model.Service {
	price := decimal.NewFromInt(40)
	return model.Service{ID: "svc-x", Name: "Service X", DurationMinutes: 30, Price: &price, IsActive: true}
}

func newTestWizard(be *fakeBackend, allowStaff, autoConfirm bool) *Wizard {
	w := New(Config{Backend: be, Now: func() time.Time { return testNow }})
	w.Open(Business{
		Settings: model.Settings{Timezone: "America/New_York", AllowStaffChoice: allowStaff, AutoConfirm: autoConfirm},
		Schedule: weekdaysNineToFive(),
	}, nil)
	return w
}

func mondaySlots() []model.AvailabilitySlot {
	nine := time.Date(2026, 10, 19, 9, 0, 0, 0, newYork)
	ten := time.Date(2026, 10, 19, 10, 0, 0, 0, newYork)
	return []model.AvailabilitySlot{
		{StartTime: ten.UTC(), EndTime: ten.Add(30 * time.Minute).UTC(), Available: true, AvailableStaffCount: 2, StaffIDs: []string{"staff-2", "staff-1"}},
		{StartTime: nine.UTC(), EndTime: nine.Add(30 * time.Minute).UTC(), Available: false},
	}
}

// mustStep fails the test on a step error and returns the view.
func mustStep(t *testing.T) func(View, error) View {
	return func(v View, err error) View {
		t.Helper()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return v
	}
}

func TestEndToEndBooking(t *testing.T) {
	step := mustStep(t)
	be := &fakeBackend{slots: mondaySlots()}
	var booked []Booking
	w := New(Config{Backend: be, Now: func() time.Time { return testNow }, OnBooked: func(b Booking) { booked = append(booked, b) }})
	w.Open(Business{
		Settings: model.Settings{Timezone: "America/New_York", AllowStaffChoice: true},
		Schedule: weekdaysNineToFive(),
	}, nil)
	ctx := context.Background()

	v := step(w.SelectService(serviceX()))
	v = step(w.Next())
	if v.Step != StepStaff {
		t.Fatalf("expected staff step, got %s", v.Step)
	}
	step(w.ChooseStaff(NoPreference()))
	step(w.Next())
	step(w.SelectDate("2026-10-19"))
	step(w.Next())

	slots, err := w.LoadSlots(ctx)
	if err != nil {
		t.Fatalf("load slots: %v", err)
	}
	if len(slots) != 2 || !slots[0].StartTime.Before(slots[1].StartTime) {
		t.Fatalf("slots should be sorted by start: %+v", slots)
	}
	if q := be.queries[0]; q.ServiceID != "svc-x" || q.Date != "2026-10-19" || q.StaffID != "" || q.Duration != 30*time.Minute {
		t.Fatalf("unexpected slot query %+v", q)
	}

	ten := time.Date(2026, 10, 19, 10, 0, 0, 0, newYork)
	step(w.SelectSlot(ten))
	step(w.Next())
	step(w.SetDetails(Details{Name: "Jane", Email: "jane@x.com"}))

	b, err := w.Submit(ctx)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if b.Status != model.StatusPending {
		t.Fatalf("expected PENDING, got %s", b.Status)
	}
	if b.StaffID != "staff-2" {
		t.Fatalf("expected first candidate staff, got %s", b.StaffID)
	}
	wantStart := time.Date(2026, 10, 19, 14, 0, 0, 0, time.UTC)
	if !b.StartTime.Equal(wantStart) || b.StartTime.Location() != time.UTC {
		t.Fatalf("expected start %s UTC, got %s", wantStart, b.StartTime)
	}
	if b.EndTime.Sub(b.StartTime) != 30*time.Minute {
		t.Fatalf("expected 30 minute booking, got %s", b.EndTime.Sub(b.StartTime))
	}
	req := be.created[0]
	if req.StaffID != "staff-2" || req.CustomerName != "Jane" || req.CustomerEmail != "jane@x.com" {
		t.Fatalf("unexpected create request %+v", req)
	}
	if be.keys[0] == "" || be.keys[0] != b.IdempotencyKey {
		t.Fatalf("idempotency key not propagated")
	}
	if snap := w.Snapshot(); snap.Step != StepConfirmation || snap.Booking == nil {
		t.Fatalf("expected confirmation step, got %+v", snap)
	}
	if len(booked) != 1 {
		t.Fatalf("OnBooked not called")
	}
}

func TestAutoConfirmBookingIsConfirmed(t *testing.T) {
	be := &fakeBackend{slots: mondaySlots()}
	w := newTestWizard(be, false, true)
	walkToDetails(t, w)
	b, err := w.Submit(context.Background())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if b.Status != model.StatusConfirmed {
		t.Fatalf("expected CONFIRMED, got %s", b.Status)
	}
}

func walkToDetails(t *testing.T, w *Wizard) {
	t.Helper()
	step := mustStep(t)
	step(w.SelectService(serviceX()))
	step(w.Next())
	if w.Snapshot().Step == StepStaff {
		step(w.ChooseStaff(NoPreference()))
		step(w.Next())
	}
	step(w.SelectDate("2026-10-19"))
	step(w.Next())
	if _, err := w.LoadSlots(context.Background()); err != nil {
		t.Fatalf("load slots: %v", err)
	}
	step(w.SelectSlot(time.Date(2026, 10, 19, 10, 0, 0, 0, newYork)))
	step(w.Next())
	step(w.SetDetails(Details{Name: "Jane", Email: "jane@x.com"}))
}

func TestStaffStepSkippedBothWays(t *testing.T) {
	step := mustStep(t)
	w := newTestWizard(&fakeBackend{}, false, false)
	step(w.SelectService(serviceX()))
	v := step(w.Next())
	if v.Step != StepDate {
		t.Fatalf("expected 1 -> 3 when staff choice disabled, got %s", v.Step)
	}
	if _, err := w.ChooseStaff(NoPreference()); !errors.Is(err, ErrStaffNotAllowed) {
		t.Fatalf("expected ErrStaffNotAllowed, got %v", err)
	}
	v = step(w.Back())
	if v.Step != StepService {
		t.Fatalf("expected 3 -> 1 when staff choice disabled, got %s", v.Step)
	}
}

func TestBackWithStaffStep(t *testing.T) {
	step := mustStep(t)
	w := newTestWizard(&fakeBackend{}, true, false)
	step(w.SelectService(serviceX()))
	step(w.Next())
	if _, err := w.Next(); !errors.Is(err, ErrStepIncomplete) {
		t.Fatalf("next without a staff choice should fail, got %v", err)
	}
	step(w.ChooseStaff(Staff("staff-1")))
	step(w.Next())
	v := step(w.Back())
	if v.Step != StepStaff {
		t.Fatalf("expected 3 -> 2, got %s", v.Step)
	}
	v = step(w.Back())
	if v.Step != StepService {
		t.Fatalf("expected 2 -> 1, got %s", v.Step)
	}
	if _, err := w.Back(); !errors.Is(err, ErrInvalidStep) {
		t.Fatalf("back from first step should fail, got %v", err)
	}
}

func TestDownstreamReset(t *testing.T) {
	step := mustStep(t)
	be := &fakeBackend{slots: mondaySlots()}
	w := newTestWizard(be, true, false)
	step(w.SelectService(serviceX()))
	step(w.Next())
	step(w.ChooseStaff(Staff("staff-1")))
	step(w.Next())
	step(w.SelectDate("2026-10-19"))
	step(w.Next())
	if _, err := w.LoadSlots(context.Background()); err != nil {
		t.Fatalf("load slots: %v", err)
	}
	if be.queries[0].StaffID != "staff-1" {
		t.Fatalf("specific staff should filter slots")
	}
	step(w.SelectSlot(time.Date(2026, 10, 19, 10, 0, 0, 0, newYork)))

	// new date clears the slot
	step(w.Back())
	v := step(w.SelectDate("2026-10-20"))
	if v.Slot != nil || v.Slots != nil || v.Date != "2026-10-20" || !v.Staff.Chosen() {
		t.Fatalf("date change should clear only slot: %+v", v)
	}

	// reload and pick a slot again
	step(w.Next())
	if _, err := w.LoadSlots(context.Background()); err != nil {
		t.Fatalf("load slots: %v", err)
	}
	step(w.SelectSlot(time.Date(2026, 10, 19, 10, 0, 0, 0, newYork)))

	// new staff clears date and slot
	step(w.Back())
	step(w.Back())
	v = step(w.ChooseStaff(NoPreference()))
	if v.Date != "" || v.Slot != nil {
		t.Fatalf("staff change should clear date and slot: %+v", v)
	}

	// new service clears staff, date and slot
	step(w.Next())
	step(w.SelectDate("2026-10-21"))
	step(w.Back())
	step(w.Back())
	other := serviceX()
	other.ID = "svc-y"
	v = step(w.SelectService(other))
	if v.Staff.Chosen() || v.Date != "" || v.Slot != nil {
		t.Fatalf("service change should clear staff, date and slot: %+v", v)
	}
}

func TestSelectDateRejectsClosedAndPastDays(t *testing.T) {
	step := mustStep(t)
	w := newTestWizard(&fakeBackend{}, false, false)
	step(w.SelectService(serviceX()))
	step(w.Next())
	if _, err := w.SelectDate("2026-10-18"); !errors.Is(err, ErrDayClosed) {
		t.Fatalf("sunday should be closed, got %v", err)
	}
	if _, err := w.SelectDate("2026-10-16"); !errors.Is(err, ErrDateInPast) {
		t.Fatalf("friday before today should be past, got %v", err)
	}
	if _, err := w.SelectDate("10/19/2026"); err == nil {
		t.Fatalf("malformed date should fail")
	}
}

func TestSuggestedDatePrefillsDateStep(t *testing.T) {
	step := mustStep(t)
	w := New(Config{Backend: &fakeBackend{}, Now: func() time.Time { return testNow }})
	biz := Business{Settings: model.Settings{Timezone: "America/New_York"}, Schedule: weekdaysNineToFive()}
	monday := time.Date(2026, 10, 19, 15, 0, 0, 0, newYork)
	v := w.Open(biz, &monday)
	if v.SuggestedDate != "2026-10-19" || v.Date != "" {
		t.Fatalf("unexpected suggestion state %+v", v)
	}
	step(w.SelectService(serviceX()))
	v = step(w.Next())
	if v.Step != StepDate || v.Date != "2026-10-19" {
		t.Fatalf("date step should open already dated, got %+v", v)
	}

	past := time.Date(2026, 10, 16, 15, 0, 0, 0, newYork)
	if v := w.Open(biz, &past); v.SuggestedDate != "" {
		t.Fatalf("past suggestion must be ignored, got %q", v.SuggestedDate)
	}
}

func TestSuggestedDateUsesBusinessZone(t *testing.T) {
	w := New(Config{Backend: &fakeBackend{}, Now: func() time.Time { return testNow }})
	biz := Business{Settings: model.Settings{Timezone: "America/New_York"}, Schedule: weekdaysNineToFive()}
	// 02:00 UTC Tuesday is still Monday evening in New York
	late := time.Date(2026, 10, 20, 2, 0, 0, 0, time.UTC)
	if v := w.Open(biz, &late); v.SuggestedDate != "2026-10-19" {
		t.Fatalf("expected business-local date, got %q", v.SuggestedDate)
	}
}

func TestSubmitWithoutCandidateStaffFails(t *testing.T) {
	slots := mondaySlots()
	slots[0].StaffIDs = nil
	be := &fakeBackend{slots: slots}
	w := newTestWizard(be, false, false)
	walkToDetails(t, w)
	_, err := w.Submit(context.Background())
	if !errors.Is(err, ErrNoStaffAvailable) {
		t.Fatalf("expected ErrNoStaffAvailable, got %v", err)
	}
	v := w.Snapshot()
	if v.Step != StepDetails || v.Error == "" {
		t.Fatalf("failed submit should stay on details with an error, got %+v", v)
	}
	if len(be.created) != 0 {
		t.Fatalf("no request should be sent")
	}
}

func TestSubmitFailureStaysOnDetailsAndUsesFreshKeys(t *testing.T) {
	be := &fakeBackend{slots: mondaySlots(), createErr: &backend.APIError{Status: 409, Message: "slot no longer available"}}
	w := newTestWizard(be, false, false)
	walkToDetails(t, w)
	for i := 0; i < 2; i++ {
		if _, err := w.Submit(context.Background()); !errors.Is(err, backend.ErrConflict) {
			t.Fatalf("expected conflict, got %v", err)
		}
	}
	v := w.Snapshot()
	if v.Step != StepDetails || v.Error != "slot no longer available" {
		t.Fatalf("unexpected state after failure %+v", v)
	}
	if be.keys[0] == be.keys[1] {
		t.Fatalf("each attempt needs a fresh idempotency key")
	}
}

func TestDetailsValidation(t *testing.T) {
	w := newTestWizard(&fakeBackend{slots: mondaySlots()}, false, false)
	walkToDetails(t, w)
	v, err := w.SetDetails(Details{Name: "  ", Email: "not-an-email"})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if verr.Fields["name"] != "Name is required" || !strings.Contains(verr.Fields["email"], "valid email") {
		t.Fatalf("unexpected field errors %v", verr.Fields)
	}
	if len(v.FieldErrors) != 2 {
		t.Fatalf("view should expose field errors, got %v", v.FieldErrors)
	}
	if _, err := w.Submit(context.Background()); !errors.As(err, &verr) {
		t.Fatalf("submit must validate before sending, got %v", err)
	}
}

func TestStepsLockedWhileSubmitting(t *testing.T) {
	be := &fakeBackend{slots: mondaySlots(), createGate: make(chan struct{})}
	w := newTestWizard(be, false, false)
	walkToDetails(t, w)

	done := make(chan error, 1)
	go func() {
		_, err := w.Submit(context.Background())
		done <- err
	}()
	for {
		be.mu.Lock()
		n := len(be.created)
		be.mu.Unlock()
		if n > 0 {
			break
		}
		time.Sleep(time.Millisecond)
	}

	if v, err := w.Back(); !errors.Is(err, ErrSubmitInFlight) || v.Step != StepDetails {
		t.Fatalf("back during submit: step=%v err=%v", v.Step, err)
	}
	if _, err := w.SetDetails(Details{Name: "Other", Email: "other@example.com"}); !errors.Is(err, ErrSubmitInFlight) {
		t.Fatalf("details during submit: %v", err)
	}
	if _, err := w.SelectSlot(mondaySlots()[0].StartTime); !errors.Is(err, ErrSubmitInFlight) {
		t.Fatalf("slot during submit: %v", err)
	}
	if _, err := w.Submit(context.Background()); !errors.Is(err, ErrSubmitInFlight) {
		t.Fatalf("second submit: %v", err)
	}

	close(be.createGate)
	if err := <-done; err != nil {
		t.Fatalf("submit: %v", err)
	}
	if v := w.Snapshot(); v.Step != StepConfirmation {
		t.Fatalf("expected confirmation, got %v", v.Step)
	}
	if _, err := w.Back(); !errors.Is(err, ErrInvalidStep) {
		t.Fatalf("back from confirmation: %v", err)
	}
}

func TestDismissDiscardsInFlightSlots(t *testing.T) {
	step := mustStep(t)
	be := &fakeBackend{slots: mondaySlots(), slotGate: make(chan struct{})}
	w := newTestWizard(be, false, false)
	step(w.SelectService(serviceX()))
	step(w.Next())
	step(w.SelectDate("2026-10-19"))
	step(w.Next())

	done := make(chan error, 1)
	go func() {
		_, err := w.LoadSlots(context.Background())
		done <- err
	}()
	for {
		be.mu.Lock()
		n := len(be.queries)
		be.mu.Unlock()
		if n > 0 {
			break
		}
		time.Sleep(time.Millisecond)
	}
	v := w.Dismiss()
	if err := <-done; !errors.Is(err, ErrStale) {
		t.Fatalf("expected ErrStale, got %v", err)
	}
	if v.Step != StepService || v.Service != nil {
		t.Fatalf("dismiss should reset, got %+v", v)
	}
	if snap := w.Snapshot(); snap.Slots != nil {
		t.Fatalf("stale slots leaked into state")
	}
}

func TestBookAnotherOnlyAfterConfirmation(t *testing.T) {
	step := mustStep(t)
	w := newTestWizard(&fakeBackend{slots: mondaySlots()}, false, false)
	if _, err := w.BookAnother(); !errors.Is(err, ErrInvalidStep) {
		t.Fatalf("expected ErrInvalidStep, got %v", err)
	}
	walkToDetails(t, w)
	if _, err := w.Submit(context.Background()); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := w.Next(); !errors.Is(err, ErrInvalidStep) {
		t.Fatalf("confirmation is terminal, got %v", err)
	}
	if _, err := w.Back(); !errors.Is(err, ErrInvalidStep) {
		t.Fatalf("confirmation is terminal, got %v", err)
	}
	v := step(w.BookAnother())
	if v.Step != StepService || v.Booking != nil || v.Service != nil {
		t.Fatalf("book another should reset, got %+v", v)
	}
}

func TestSelectSlotRejectsUnavailable(t *testing.T) {
	step := mustStep(t)
	w := newTestWizard(&fakeBackend{slots: mondaySlots()}, false, false)
	step(w.SelectService(serviceX()))
	step(w.Next())
	step(w.SelectDate("2026-10-19"))
	step(w.Next())
	if _, err := w.LoadSlots(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := w.SelectSlot(time.Date(2026, 10, 19, 9, 0, 0, 0, newYork)); !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("expected ErrSlotUnavailable, got %v", err)
	}
	if _, err := w.SelectSlot(time.Date(2026, 10, 19, 11, 0, 0, 0, newYork)); !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("unknown slot should be unavailable, got %v", err)
	}
}

func TestIdempotencyKeyShape(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	a, b := NewIdempotencyKey(now), NewIdempotencyKey(now)
	if a == b {
		t.Fatalf("keys must differ")
	}
	prefix, _, ok := strings.Cut(a, "-")
	if !ok || prefix != "loyw3v28" {
		t.Fatalf("unexpected key %q", a)
	}
}

func TestStaffChoiceJSON(t *testing.T) {
	for _, c := range []StaffChoice{{}, NoPreference(), Staff("s1")} {
		raw, err := c.MarshalJSON()
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		var back StaffChoice
		if err := back.UnmarshalJSON(raw); err != nil || back != c {
			t.Fatalf("round trip %s -> %+v (%v)", raw, back, err)
		}
	}
	var c StaffChoice
	if err := c.UnmarshalJSON([]byte(`{"kind":"specific"}`)); err == nil {
		t.Fatalf("specific without id should fail")
	}
}
