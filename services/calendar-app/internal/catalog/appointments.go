package catalog

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/md-rashed-zaman/apptremind-calendar/libs/runtime"
	"github.com/md-rashed-zaman/apptremind-calendar/services/calendar-app/internal/fetchrange"
	"github.com/md-rashed-zaman/apptremind-calendar/services/calendar-app/internal/model"
	"github.com/md-rashed-zaman/apptremind-calendar/services/calendar-app/internal/querycache"
)

type AppointmentsAPI interface {
	ListAppointments(ctx context.Context, r fetchrange.Range) ([]model.Appointment, error)
}

// Appointments caches appointment lists per fetch range and remembers the
// range the calendar is showing so it can be polled.
type Appointments struct {
	api    AppointmentsAPI
	cache  *querycache.Cache[[]model.Appointment]
	logger *slog.Logger

	mu     sync.Mutex
	active *fetchrange.Range
}

func NewAppointments(api AppointmentsAPI, staleTime time.Duration, logger *slog.Logger) *Appointments {
	return &Appointments{
		api:    api,
		cache:  querycache.New(staleTime, querycache.WithClone(model.CloneAppointments)),
		logger: runtime.OrDiscard(logger),
	}
}

func (a *Appointments) Cache() *querycache.Cache[[]model.Appointment] { return a.cache }

// Load returns the appointments in r and makes r the active range.
func (a *Appointments) Load(ctx context.Context, r fetchrange.Range) ([]model.Appointment, querycache.Meta, error) {
	a.mu.Lock()
	a.active = &r
	a.mu.Unlock()
	list, err := a.cache.Fetch(ctx, r.Key(), a.fetcher(r))
	if err != nil {
		return nil, querycache.Meta{}, err
	}
	_, meta, _ := a.cache.Get(r.Key())
	return list, meta, nil
}

func (a *Appointments) fetcher(r fetchrange.Range) func(context.Context) ([]model.Appointment, error) {
	return func(ctx context.Context) ([]model.Appointment, error) {
		return a.api.ListAppointments(ctx, r)
	}
}

func (a *Appointments) Active() (fetchrange.Range, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.active == nil {
		return fetchrange.Range{}, false
	}
	return *a.active, true
}

// Refresh marks every loaded range stale and refetches the active one.
func (a *Appointments) Refresh(ctx context.Context) error {
	a.cache.Invalidate("")
	r, ok := a.Active()
	if !ok {
		return nil
	}
	if _, err := a.cache.Refetch(ctx, r.Key(), a.fetcher(r)); err != nil {
		a.logger.Warn("appointments refresh failed", "range", r.Key(), "err", err)
		return err
	}
	return nil
}

func (a *Appointments) Reset() {
	a.mu.Lock()
	a.active = nil
	a.mu.Unlock()
	a.cache.Clear()
}
