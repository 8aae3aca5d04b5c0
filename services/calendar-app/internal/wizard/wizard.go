// Package wizard is the booking flow: service, staff, date, time, customer
// details and confirmation. One Wizard is open at a time; opening it again
// resets it.
package wizard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/md-rashed-zaman/apptremind-calendar/libs/runtime"
	"github.com/md-rashed-zaman/apptremind-calendar/services/calendar-app/internal/backend"
	"github.com/md-rashed-zaman/apptremind-calendar/services/calendar-app/internal/clock"
	"github.com/md-rashed-zaman/apptremind-calendar/services/calendar-app/internal/hours"
	"github.com/md-rashed-zaman/apptremind-calendar/services/calendar-app/internal/model"
)

type Step int

const (
	StepService Step = iota + 1
	StepStaff
	StepDate
	StepTime
	StepDetails
	StepConfirmation
)

func (s Step) String() string {
	switch s {
	case StepService:
		return "service"
	case StepStaff:
		return "staff"
	case StepDate:
		return "date"
	case StepTime:
		return "time"
	case StepDetails:
		return "details"
	case StepConfirmation:
		return "confirmation"
	}
	return "step(" + strconv.Itoa(int(s)) + ")"
}

var (
	ErrInvalidStep      = errors.New("action not available at this step")
	ErrStepIncomplete   = errors.New("current step is incomplete")
	ErrServiceInactive  = errors.New("service is not bookable")
	ErrStaffNotAllowed  = errors.New("this business does not allow choosing staff")
	ErrDayClosed        = errors.New("the business is closed on that day")
	ErrDateInPast       = errors.New("that date is in the past")
	ErrSlotUnavailable  = errors.New("that time is no longer available")
	ErrNoStaffAvailable = errors.New("no staff available for that time")
	ErrSubmitInFlight   = errors.New("booking is already being submitted")
	// ErrStale is returned for results of requests the wizard no longer
	// waits for (dismissed, or the selection changed meanwhile).
	ErrStale = errors.New("result discarded")
)

// Backend is what the flow needs from the API.
type Backend interface {
	Slots(ctx context.Context, q backend.SlotQuery) ([]model.AvailabilitySlot, error)
	CreateAppointment(ctx context.Context, req backend.CreateRequest, idempotencyKey string) (backend.Created, error)
}

// Business is the configuration the flow gates on.
type Business struct {
	Settings model.Settings
	Schedule hours.Schedule
	// Location overrides Settings.Timezone when set.
	Location *time.Location
}

func (b Business) location() *time.Location {
	if b.Location != nil {
		return b.Location
	}
	return clock.Location(b.Settings.Timezone)
}

type Config struct {
	Backend Backend
	Logger  *slog.Logger
	Now     func() time.Time
	// NewKey generates idempotency keys; defaults to NewIdempotencyKey.
	NewKey func(now time.Time) string
	// OnBooked runs after a successful submission, outside the wizard lock.
	OnBooked func(Booking)
}

type Booking struct {
	AppointmentID  string       `json:"appointment_id"`
	ServiceID      string       `json:"service_id"`
	StaffID        string       `json:"staff_id"`
	StartTime      time.Time    `json:"start_time"`
	EndTime        time.Time    `json:"end_time"`
	Status         model.Status `json:"status"`
	IdempotencyKey string       `json:"idempotency_key"`
}

type state struct {
	step      Step
	service   *model.Service
	staff     StaffChoice
	date      string
	suggested string
	slots     []model.AvailabilitySlot
	slot      *model.AvailabilitySlot
	details   Details
	fieldErrs map[string]string
	lastError string
	booking   *Booking
}

func initialState() state { return state{step: StepService} }

type Wizard struct {
	cfg    Config
	logger *slog.Logger

	mu         sync.Mutex
	biz        Business
	clk        clock.Clock
	st         state
	gen        uint64
	cancel     context.CancelFunc
	submitting bool
}

func New(cfg Config) *Wizard {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewKey == nil {
		cfg.NewKey = NewIdempotencyKey
	}
	w := &Wizard{cfg: cfg, logger: runtime.OrDiscard(cfg.Logger), st: initialState()}
	w.clk = clock.New(time.UTC, cfg.Now)
	return w
}

// NewIdempotencyKey is the base-36 millisecond time plus a random UUID, fresh
// for every submission attempt.
func NewIdempotencyKey(now time.Time) string {
	return strconv.FormatInt(now.UnixMilli(), 36) + "-" + uuid.NewString()
}

// Open resets the flow for biz. A suggested date that is not in the past
// becomes the date picked when the date step is first reached.
func (w *Wizard) Open(biz Business, suggested *time.Time) View {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.biz = biz
	w.clk = clock.New(biz.location(), w.cfg.Now)
	w.resetLocked()
	if suggested != nil {
		key := w.clk.DateKey(*suggested)
		if !w.clk.IsPast(key) {
			w.st.suggested = key
		}
	}
	return w.viewLocked()
}

// Dismiss abandons the flow at any step.
func (w *Wizard) Dismiss() View {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.resetLocked()
	return w.viewLocked()
}

// BookAnother starts over after a completed booking.
func (w *Wizard) BookAnother() (View, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.st.step != StepConfirmation {
		return w.viewLocked(), ErrInvalidStep
	}
	w.resetLocked()
	return w.viewLocked(), nil
}

func (w *Wizard) resetLocked() {
	w.cancelLoadLocked()
	w.st = initialState()
	w.submitting = false
}

// cancelLoadLocked drops interest in any in-flight request.
func (w *Wizard) cancelLoadLocked() {
	w.gen++
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
}

func (w *Wizard) staffStepEnabled() bool {
	return w.biz.Settings.AllowStaffChoice
}

func (w *Wizard) SelectService(svc model.Service) (View, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.st.step != StepService {
		return w.viewLocked(), ErrInvalidStep
	}
	if err := svc.Validate(); err != nil {
		return w.viewLocked(), fmt.Errorf("%w: %v", ErrServiceInactive, err)
	}
	if !svc.IsActive {
		return w.viewLocked(), ErrServiceInactive
	}
	if w.st.service == nil || w.st.service.ID != svc.ID {
		w.st.staff = StaffChoice{}
		w.clearDateLocked()
	}
	w.st.service = &svc
	return w.viewLocked(), nil
}

func (w *Wizard) ChooseStaff(choice StaffChoice) (View, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.staffStepEnabled() {
		return w.viewLocked(), ErrStaffNotAllowed
	}
	if w.st.step != StepStaff {
		return w.viewLocked(), ErrInvalidStep
	}
	if !choice.Chosen() || !choice.valid() {
		return w.viewLocked(), ErrStepIncomplete
	}
	if choice != w.st.staff {
		w.clearDateLocked()
	}
	w.st.staff = choice
	return w.viewLocked(), nil
}

func (w *Wizard) clearDateLocked() {
	w.st.date = ""
	w.clearSlotLocked()
}

func (w *Wizard) clearSlotLocked() {
	w.cancelLoadLocked()
	w.st.slots = nil
	w.st.slot = nil
}

// SelectDate takes a business-local day, YYYY-MM-DD.
func (w *Wizard) SelectDate(dateKey string) (View, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.st.step != StepDate {
		return w.viewLocked(), ErrInvalidStep
	}
	day, err := clock.ParseDateKey(dateKey, w.clk.Location())
	if err != nil {
		return w.viewLocked(), err
	}
	if err := w.checkDateLocked(day); err != nil {
		return w.viewLocked(), err
	}
	key := w.clk.DateKey(day)
	if key != w.st.date {
		w.clearSlotLocked()
	}
	w.st.date = key
	return w.viewLocked(), nil
}

func (w *Wizard) checkDateLocked(day time.Time) error {
	if w.clk.IsPast(w.clk.DateKey(day)) {
		return ErrDateInPast
	}
	if w.biz.Schedule.IsDayClosed(day) {
		return ErrDayClosed
	}
	return nil
}

// LoadSlots fetches availability for the current service, staff and date.
// If the selection changes or the wizard is dismissed while the request is in
// flight, the request is cancelled and ErrStale returned.
func (w *Wizard) LoadSlots(ctx context.Context) ([]model.AvailabilitySlot, error) {
	w.mu.Lock()
	if w.st.step != StepTime {
		w.mu.Unlock()
		return nil, ErrInvalidStep
	}
	if w.st.service == nil || w.st.date == "" {
		w.mu.Unlock()
		return nil, ErrStepIncomplete
	}
	w.cancelLoadLocked()
	gen := w.gen
	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	q := backend.SlotQuery{
		ServiceID: w.st.service.ID,
		Date:      w.st.date,
		Duration:  w.st.service.Duration(),
	}
	if w.st.staff.Kind() == SpecificStaff {
		q.StaffID = w.st.staff.StaffID()
	}
	w.mu.Unlock()

	slots, err := w.cfg.Backend.Slots(ctx, q)
	cancel()

	w.mu.Lock()
	defer w.mu.Unlock()
	if gen != w.gen {
		return nil, ErrStale
	}
	w.cancel = nil
	if err != nil {
		w.st.lastError = backend.UserMessage(err)
		return nil, err
	}
	slices.SortStableFunc(slots, func(a, b model.AvailabilitySlot) int {
		return a.StartTime.Compare(b.StartTime)
	})
	w.st.slots = slots
	w.st.lastError = ""
	return cloneSlots(slots), nil
}

func (w *Wizard) SelectSlot(start time.Time) (View, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.submitting {
		return w.viewLocked(), ErrSubmitInFlight
	}
	if w.st.step != StepTime {
		return w.viewLocked(), ErrInvalidStep
	}
	for _, s := range w.st.slots {
		if !s.StartTime.Equal(start) {
			continue
		}
		if !s.Available {
			return w.viewLocked(), ErrSlotUnavailable
		}
		s := cloneSlot(s)
		w.st.slot = &s
		return w.viewLocked(), nil
	}
	return w.viewLocked(), ErrSlotUnavailable
}

// SetDetails stores the customer fields and validates them. Invalid fields are
// reported per field and kept so the form can show them.
func (w *Wizard) SetDetails(d Details) (View, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.submitting {
		return w.viewLocked(), ErrSubmitInFlight
	}
	if w.st.step != StepDetails {
		return w.viewLocked(), ErrInvalidStep
	}
	w.st.details = d.normalized()
	w.st.fieldErrs = nil
	if err := validateDetails(w.st.details); err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			w.st.fieldErrs = verr.Fields
		}
		return w.viewLocked(), err
	}
	return w.viewLocked(), nil
}

func (w *Wizard) Next() (View, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	switch w.st.step {
	case StepService:
		if w.st.service == nil {
			return w.viewLocked(), ErrStepIncomplete
		}
		if w.staffStepEnabled() {
			w.st.step = StepStaff
		} else {
			w.enterDateLocked()
		}
	case StepStaff:
		if !w.st.staff.Chosen() {
			return w.viewLocked(), ErrStepIncomplete
		}
		w.enterDateLocked()
	case StepDate:
		if w.st.date == "" {
			return w.viewLocked(), ErrStepIncomplete
		}
		w.st.step = StepTime
	case StepTime:
		if w.st.slot == nil {
			return w.viewLocked(), ErrStepIncomplete
		}
		w.cancelLoadLocked()
		w.st.step = StepDetails
	default:
		return w.viewLocked(), ErrInvalidStep
	}
	return w.viewLocked(), nil
}

// enterDateLocked applies the suggested date when no date is picked yet and
// the suggestion is still bookable.
func (w *Wizard) enterDateLocked() {
	w.st.step = StepDate
	if w.st.date != "" || w.st.suggested == "" {
		return
	}
	day, err := clock.ParseDateKey(w.st.suggested, w.clk.Location())
	if err != nil || w.checkDateLocked(day) != nil {
		return
	}
	w.st.date = w.st.suggested
}

// Back is refused while a booking is being submitted; Dismiss is the only
// way out of an in-flight submit.
func (w *Wizard) Back() (View, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.submitting {
		return w.viewLocked(), ErrSubmitInFlight
	}
	switch w.st.step {
	case StepStaff:
		w.st.step = StepService
	case StepDate:
		if w.staffStepEnabled() {
			w.st.step = StepStaff
		} else {
			w.st.step = StepService
		}
	case StepTime:
		w.cancelLoadLocked()
		w.st.step = StepDate
	case StepDetails:
		w.st.step = StepTime
	default:
		return w.viewLocked(), ErrInvalidStep
	}
	return w.viewLocked(), nil
}

// Submit books the selection. On failure the wizard stays on the details step
// with the error recorded; on success it moves to confirmation.
func (w *Wizard) Submit(ctx context.Context) (Booking, error) {
	w.mu.Lock()
	if w.st.step != StepDetails {
		w.mu.Unlock()
		return Booking{}, ErrInvalidStep
	}
	if w.submitting {
		w.mu.Unlock()
		return Booking{}, ErrSubmitInFlight
	}
	req, err := w.buildRequestLocked()
	if err != nil {
		w.recordErrorLocked(err)
		w.mu.Unlock()
		return Booking{}, err
	}
	key := w.cfg.NewKey(w.cfg.Now())
	gen := w.gen
	w.submitting = true
	autoConfirm := w.biz.Settings.AutoConfirm
	w.mu.Unlock()

	created, err := w.cfg.Backend.CreateAppointment(ctx, req, key)

	w.mu.Lock()
	if gen != w.gen {
		// dismissed while the request was in flight
		w.mu.Unlock()
		if err != nil {
			return Booking{}, err
		}
		return Booking{}, ErrStale
	}
	w.submitting = false
	if err != nil {
		w.recordErrorLocked(err)
		w.mu.Unlock()
		w.logger.Warn("booking failed", "service_id", req.ServiceID, "err", err)
		return Booking{}, err
	}
	b := Booking{
		AppointmentID:  created.AppointmentID,
		ServiceID:      req.ServiceID,
		StaffID:        req.StaffID,
		StartTime:      req.StartTime,
		EndTime:        req.EndTime,
		Status:         model.StatusPending,
		IdempotencyKey: key,
	}
	if created.AssignedStaffID != "" {
		b.StaffID = created.AssignedStaffID
	}
	if autoConfirm {
		b.Status = model.StatusConfirmed
	}
	w.st.booking = &b
	w.st.lastError = ""
	w.st.step = StepConfirmation
	w.mu.Unlock()

	w.logger.Info("booking created", "appointment_id", b.AppointmentID, "status", b.Status)
	if w.cfg.OnBooked != nil {
		w.cfg.OnBooked(b)
	}
	return b, nil
}

func (w *Wizard) recordErrorLocked(err error) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		w.st.fieldErrs = verr.Fields
	}
	w.st.lastError = backend.UserMessage(err)
}

func (w *Wizard) buildRequestLocked() (backend.CreateRequest, error) {
	if w.st.service == nil || w.st.date == "" || w.st.slot == nil {
		return backend.CreateRequest{}, ErrStepIncomplete
	}
	d := w.st.details.normalized()
	if err := validateDetails(d); err != nil {
		return backend.CreateRequest{}, err
	}
	staffID, err := resolveStaff(w.st.staff, *w.st.slot)
	if err != nil {
		return backend.CreateRequest{}, err
	}
	return backend.CreateRequest{
		ServiceID:     w.st.service.ID,
		StaffID:       staffID,
		StartTime:     w.st.slot.StartTime.UTC(),
		EndTime:       w.st.slot.StartTime.Add(w.st.service.Duration()).UTC(),
		CustomerName:  d.Name,
		CustomerEmail: d.Email,
		CustomerPhone: d.Phone,
		Notes:         d.Notes,
	}, nil
}

// resolveStaff picks the first candidate of the slot unless a specific staff
// member was chosen.
func resolveStaff(choice StaffChoice, slot model.AvailabilitySlot) (string, error) {
	if choice.Kind() == SpecificStaff {
		return choice.StaffID(), nil
	}
	for _, id := range slot.StaffIDs {
		if id != "" {
			return id, nil
		}
	}
	return "", ErrNoStaffAvailable
}

func cloneSlot(s model.AvailabilitySlot) model.AvailabilitySlot {
	s.StaffIDs = slices.Clone(s.StaffIDs)
	return s
}

func cloneSlots(in []model.AvailabilitySlot) []model.AvailabilitySlot {
	out := make([]model.AvailabilitySlot, len(in))
	for i, s := range in {
		out[i] = cloneSlot(s)
	}
	return out
}
