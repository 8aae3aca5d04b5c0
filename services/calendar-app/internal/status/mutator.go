package status

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/apptremind-calendar/libs/metrics"
	"github.com/md-rashed-zaman/apptremind-calendar/libs/runtime"
	"github.com/md-rashed-zaman/apptremind-calendar/services/calendar-app/internal/backend"
	"github.com/md-rashed-zaman/apptremind-calendar/services/calendar-app/internal/model"
	"github.com/md-rashed-zaman/apptremind-calendar/services/calendar-app/internal/querycache"
)

var (
	ErrInvalidTransition    = errors.New("status change not allowed")
	ErrConfirmationRequired = errors.New("status change needs confirmation")
	ErrTerminal             = errors.New("appointment is completed")
	ErrNotCached            = errors.New("appointment not loaded")
	ErrInvalidTimes         = errors.New("end time must be after start time")
)

type API interface {
	UpdateStatus(ctx context.Context, id string, status model.Status) (model.Appointment, error)
	Reschedule(ctx context.Context, id string, req backend.RescheduleRequest) error
}

type Config struct {
	API   API
	Cache *querycache.Cache[[]model.Appointment]
	// Refetch reconciles the cache with the server after every mutation.
	Refetch func(ctx context.Context)
	Metrics *metrics.ClientMetrics
	Logger  *slog.Logger
}

type Mutator struct {
	cfg    Config
	logger *slog.Logger
}

func NewMutator(cfg Config) *Mutator {
	return &Mutator{cfg: cfg, logger: runtime.OrDiscard(cfg.Logger)}
}

// Find returns the cached copy of id from any loaded range.
func (m *Mutator) Find(id string) (model.Appointment, bool) {
	for _, key := range m.cfg.Cache.Keys() {
		list, _, ok := m.cfg.Cache.Get(key)
		if !ok {
			continue
		}
		for _, a := range list {
			if a.ID == id {
				return a, true
			}
		}
	}
	return model.Appointment{}, false
}

// Transition moves id to the target status. The cached lists show the new
// status while the request runs; a rejected request restores them exactly.
func (m *Mutator) Transition(ctx context.Context, id string, to model.Status, confirmed bool) error {
	cur, ok := m.Find(id)
	if !ok {
		return ErrNotCached
	}
	if IsTerminal(cur.Status) {
		return ErrTerminal
	}
	if !CanTransition(cur.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, cur.Status, to)
	}
	if RequiresConfirmation(to) && !confirmed {
		return ErrConfirmationRequired
	}

	apply := updateByID(id, func(a *model.Appointment) { a.Status = to })
	commit := func(ctx context.Context) error {
		_, err := m.cfg.API.UpdateStatus(ctx, id, to)
		return err
	}
	err := querycache.Optimistic(ctx, m.cfg.Cache, apply, commit, m.refetch)
	m.cfg.Metrics.ObserveMutation("status", err == nil)
	if err != nil {
		m.logger.Warn("status change rolled back", "appointment_id", id, "from", cur.Status, "to", to, "err", err)
		return err
	}
	m.logger.Info("status changed", "appointment_id", id, "from", cur.Status, "to", to)
	return nil
}

// Reschedule moves id to new times (and optionally another staff member)
// without touching its status.
func (m *Mutator) Reschedule(ctx context.Context, id string, start, end time.Time, staffID string) error {
	cur, ok := m.Find(id)
	if !ok {
		return ErrNotCached
	}
	if !CanReschedule(cur.Status) {
		return ErrTerminal
	}
	if !end.After(start) {
		return ErrInvalidTimes
	}
	start, end = start.UTC(), end.UTC()

	apply := updateByID(id, func(a *model.Appointment) {
		a.StartTime, a.EndTime = start, end
		if staffID != "" && staffID != a.StaffID {
			a.StaffID = staffID
			a.StaffName = ""
		}
	})
	commit := func(ctx context.Context) error {
		return m.cfg.API.Reschedule(ctx, id, backend.RescheduleRequest{StartTime: start, EndTime: end, StaffID: staffID})
	}
	err := querycache.Optimistic(ctx, m.cfg.Cache, apply, commit, m.refetch)
	m.cfg.Metrics.ObserveMutation("reschedule", err == nil)
	if err != nil {
		m.logger.Warn("reschedule rolled back", "appointment_id", id, "err", err)
		return err
	}
	return nil
}

func (m *Mutator) refetch(ctx context.Context) {
	if m.cfg.Refetch != nil {
		m.cfg.Refetch(ctx)
	}
}

func updateByID(id string, fn func(*model.Appointment)) func(string, []model.Appointment) ([]model.Appointment, bool) {
	return func(_ string, list []model.Appointment) ([]model.Appointment, bool) {
		changed := false
		for i := range list {
			if list[i].ID == id {
				fn(&list[i])
				changed = true
			}
		}
		return list, changed
	}
}
