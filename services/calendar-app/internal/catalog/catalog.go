// Package catalog holds the business read models the calendar and the booking
// flow consume (services, staff, business hours, settings, appointment
// ranges), each behind its own typed cache.
package catalog

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"github.com/md-rashed-zaman/apptremind-calendar/libs/metrics"
	"github.com/md-rashed-zaman/apptremind-calendar/libs/runtime"
	"github.com/md-rashed-zaman/apptremind-calendar/services/calendar-app/internal/hours"
	"github.com/md-rashed-zaman/apptremind-calendar/services/calendar-app/internal/model"
	"github.com/md-rashed-zaman/apptremind-calendar/services/calendar-app/internal/querycache"
)

var ErrServiceNotFound = errors.New("service not found")

const (
	keyServicesAll    = "services:all"
	keyServicesActive = "services:active"
	keyStaff          = "staff"
	keyHours          = "hours"
	keySettings       = "settings"
)

type API interface {
	ListServices(ctx context.Context, includeInactive bool) ([]model.Service, error)
	SetServiceActive(ctx context.Context, id string, active bool) error
	ListStaff(ctx context.Context) ([]model.Staff, error)
	ListBusinessHours(ctx context.Context) ([]model.BusinessHour, error)
	GetSettings(ctx context.Context) (model.Settings, error)
}

type Options struct {
	StaleTime time.Duration
	// Timezone overrides the business settings zone when set.
	Timezone string
	Metrics  *metrics.ClientMetrics
	Logger   *slog.Logger
}

type Catalog struct {
	api      API
	opts     Options
	logger   *slog.Logger
	services *querycache.Cache[[]model.Service]
	staff    *querycache.Cache[[]model.Staff]
	hours    *querycache.Cache[[]model.BusinessHour]
	settings *querycache.Cache[model.Settings]
}

func New(api API, opts Options) *Catalog {
	return &Catalog{
		api:    api,
		opts:   opts,
		logger: runtime.OrDiscard(opts.Logger),
		services: querycache.New(opts.StaleTime, querycache.WithClone(func(v []model.Service) []model.Service {
			return slices.Clone(v)
		})),
		staff: querycache.New(opts.StaleTime, querycache.WithClone(func(v []model.Staff) []model.Staff {
			return slices.Clone(v)
		})),
		hours: querycache.New(opts.StaleTime, querycache.WithClone(func(v []model.BusinessHour) []model.BusinessHour {
			return slices.Clone(v)
		})),
		settings: querycache.New[model.Settings](opts.StaleTime),
	}
}

func (c *Catalog) Services(ctx context.Context, includeInactive bool) ([]model.Service, error) {
	key := keyServicesActive
	if includeInactive {
		key = keyServicesAll
	}
	return c.services.Fetch(ctx, key, func(ctx context.Context) ([]model.Service, error) {
		list, err := c.api.ListServices(ctx, includeInactive)
		if err != nil {
			return nil, err
		}
		if !includeInactive {
			list = slices.DeleteFunc(list, func(s model.Service) bool { return !s.IsActive })
		}
		return list, nil
	})
}

// Service looks id up among all services, active or not.
func (c *Catalog) Service(ctx context.Context, id string) (model.Service, error) {
	list, err := c.Services(ctx, true)
	if err != nil {
		return model.Service{}, err
	}
	for _, s := range list {
		if s.ID == id {
			return s, nil
		}
	}
	return model.Service{}, ErrServiceNotFound
}

func (c *Catalog) Staff(ctx context.Context) ([]model.Staff, error) {
	return c.staff.Fetch(ctx, keyStaff, c.api.ListStaff)
}

func (c *Catalog) Schedule(ctx context.Context) (hours.Schedule, error) {
	rows, err := c.hours.Fetch(ctx, keyHours, c.api.ListBusinessHours)
	if err != nil {
		return hours.Schedule{}, err
	}
	return hours.NewSchedule(rows), nil
}

// Settings applies the configured timezone override.
func (c *Catalog) Settings(ctx context.Context) (model.Settings, error) {
	s, err := c.settings.Fetch(ctx, keySettings, c.api.GetSettings)
	if err != nil {
		return model.Settings{}, err
	}
	if c.opts.Timezone != "" {
		s.Timezone = c.opts.Timezone
	}
	return s, nil
}

// ToggleService flips is_active. Cached service lists reflect the change
// immediately and are restored if the API rejects it.
func (c *Catalog) ToggleService(ctx context.Context, id string) (bool, error) {
	svc, err := c.Service(ctx, id)
	if err != nil {
		return false, err
	}
	next := !svc.IsActive
	apply := func(_ string, list []model.Service) ([]model.Service, bool) {
		changed := false
		for i := range list {
			if list[i].ID == id {
				list[i].IsActive = next
				changed = true
			}
		}
		return list, changed
	}
	commit := func(ctx context.Context) error {
		return c.api.SetServiceActive(ctx, id, next)
	}
	refetch := func(context.Context) {
		c.services.Invalidate("services:")
	}
	err = querycache.Optimistic(ctx, c.services, apply, commit, refetch)
	c.opts.Metrics.ObserveMutation("service_toggle", err == nil)
	if err != nil {
		return svc.IsActive, err
	}
	c.logger.Info("service toggled", "service_id", id, "is_active", next)
	return next, nil
}

// Join fills service and staff names the API left out. Lookup failures leave
// the appointments as they are.
func (c *Catalog) Join(ctx context.Context, appts []model.Appointment) []model.Appointment {
	needs := false
	for _, a := range appts {
		if a.ServiceName == "" || a.StaffName == "" {
			needs = true
			break
		}
	}
	if !needs {
		return appts
	}
	serviceNames := map[string]string{}
	if list, err := c.Services(ctx, true); err == nil {
		for _, s := range list {
			serviceNames[s.ID] = s.Name
		}
	} else {
		c.logger.Warn("join: services unavailable", "err", err)
	}
	staffNames := map[string]string{}
	if list, err := c.Staff(ctx); err == nil {
		for _, s := range list {
			staffNames[s.ID] = s.Name
		}
	} else {
		c.logger.Warn("join: staff unavailable", "err", err)
	}
	out := model.CloneAppointments(appts)
	for i := range out {
		if out[i].ServiceName == "" {
			out[i].ServiceName = serviceNames[out[i].ServiceID]
		}
		if out[i].StaffName == "" {
			out[i].StaffName = staffNames[out[i].StaffID]
		}
	}
	return out
}

// Reset drops every cached read model, e.g. after logout.
func (c *Catalog) Reset() {
	c.services.Clear()
	c.staff.Clear()
	c.hours.Clear()
	c.settings.Clear()
}
