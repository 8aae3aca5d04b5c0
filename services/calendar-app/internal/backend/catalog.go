package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/md-rashed-zaman/apptremind-calendar/services/calendar-app/internal/clock"
	"github.com/md-rashed-zaman/apptremind-calendar/services/calendar-app/internal/model"
)

type SlotQuery struct {
	ServiceID string
	// Date is the business-local day, YYYY-MM-DD.
	Date    string
	StaffID string
	// Duration fills slot end times the API leaves out.
	Duration time.Duration
}

func (c *Client) Slots(ctx context.Context, q SlotQuery) ([]model.AvailabilitySlot, error) {
	if _, err := time.Parse(clock.DateKeyLayout, q.Date); err != nil {
		return nil, fmt.Errorf("slots: invalid date %q", q.Date)
	}
	v := url.Values{}
	v.Set("service_id", q.ServiceID)
	v.Set("date", q.Date)
	if q.StaffID != "" {
		v.Set("staff_id", q.StaffID)
	}
	resp, err := c.do(ctx, call{endpoint: "availability.slots", method: http.MethodGet, path: "/api/v1/availability/slots", query: v})
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	return decodeSlots(resp.body, q.Duration, c.location())
}

func (c *Client) ListServices(ctx context.Context, includeInactive bool) ([]model.Service, error) {
	v := url.Values{}
	if includeInactive {
		v.Set("include_inactive", "true")
	}
	resp, err := c.do(ctx, call{endpoint: "services.list", method: http.MethodGet, path: "/api/v1/business/services", query: v})
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	return decodeServices(resp.body)
}

func (c *Client) SetServiceActive(ctx context.Context, id string, active bool) error {
	_, err := c.do(ctx, call{
		endpoint: "services.update",
		method:   http.MethodPatch,
		path:     "/api/v1/business/services/" + url.PathEscape(id),
		body:     map[string]bool{"is_active": active},
	})
	if err != nil {
		return fmt.Errorf("update service: %w", err)
	}
	return nil
}

func (c *Client) ListStaff(ctx context.Context) ([]model.Staff, error) {
	resp, err := c.do(ctx, call{endpoint: "staff.list", method: http.MethodGet, path: "/api/v1/business/staff"})
	if err != nil {
		return nil, fmt.Errorf("list staff: %w", err)
	}
	return decodeStaff(resp.body)
}

func (c *Client) ListBusinessHours(ctx context.Context) ([]model.BusinessHour, error) {
	resp, err := c.do(ctx, call{endpoint: "hours.list", method: http.MethodGet, path: "/api/v1/business/hours"})
	if err != nil {
		return nil, fmt.Errorf("list business hours: %w", err)
	}
	return decodeBusinessHours(resp.body)
}

func (c *Client) GetSettings(ctx context.Context) (model.Settings, error) {
	resp, err := c.do(ctx, call{endpoint: "settings.get", method: http.MethodGet, path: "/api/v1/business/settings"})
	if err != nil {
		return model.Settings{}, fmt.Errorf("get settings: %w", err)
	}
	s, err := decodeObject[model.Settings](resp.body, "settings")
	if err != nil {
		return model.Settings{}, err
	}
	c.SetLocation(clock.Location(s.Timezone))
	return s, nil
}
