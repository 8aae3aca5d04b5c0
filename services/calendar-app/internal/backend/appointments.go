package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/md-rashed-zaman/apptremind-calendar/services/calendar-app/internal/fetchrange"
	"github.com/md-rashed-zaman/apptremind-calendar/services/calendar-app/internal/model"
)

func (c *Client) ListAppointments(ctx context.Context, r fetchrange.Range) ([]model.Appointment, error) {
	q := url.Values{}
	q.Set("from", r.Start.UTC().Format(time.RFC3339))
	q.Set("to", r.End.UTC().Format(time.RFC3339))
	resp, err := c.do(ctx, call{endpoint: "appointments.list", method: http.MethodGet, path: "/api/v1/appointments", query: q})
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return decodeAppointments(resp.body, c.location(), c.logger)
}

type CreateRequest struct {
	ServiceID     string    `json:"service_id"`
	StaffID       string    `json:"staff_id,omitempty"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
	CustomerName  string    `json:"customer_name"`
	CustomerEmail string    `json:"customer_email,omitempty"`
	CustomerPhone string    `json:"customer_phone,omitempty"`
	Notes         string    `json:"notes,omitempty"`
}

// CreateAppointment books req. The idempotency key is sent as a header; the
// API replays the first response for a repeated key.
func (c *Client) CreateAppointment(ctx context.Context, req CreateRequest, idempotencyKey string) (Created, error) {
	body := req
	body.StartTime = req.StartTime.UTC()
	body.EndTime = req.EndTime.UTC()
	h := http.Header{}
	if idempotencyKey != "" {
		h.Set(IdempotencyKeyHeader, idempotencyKey)
	}
	resp, err := c.do(ctx, call{endpoint: "appointments.create", method: http.MethodPost, path: "/api/v1/appointments", body: body, header: h})
	if err != nil {
		return Created{}, fmt.Errorf("create appointment: %w", err)
	}
	return decodeCreated(resp.body)
}

type RescheduleRequest struct {
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	StaffID   string    `json:"staff_id,omitempty"`
}

func (c *Client) Reschedule(ctx context.Context, id string, req RescheduleRequest) error {
	req.StartTime = req.StartTime.UTC()
	req.EndTime = req.EndTime.UTC()
	_, err := c.do(ctx, call{
		endpoint: "appointments.reschedule",
		method:   http.MethodPost,
		path:     "/api/v1/appointments/" + url.PathEscape(id) + "/reschedule",
		body:     req,
	})
	if err != nil {
		return fmt.Errorf("reschedule appointment: %w", err)
	}
	return nil
}

// UpdateStatus returns the updated appointment. An empty 2xx body yields a
// zero Appointment and no error.
func (c *Client) UpdateStatus(ctx context.Context, id string, status model.Status) (model.Appointment, error) {
	resp, err := c.do(ctx, call{
		endpoint: "appointments.status",
		method:   http.MethodPatch,
		path:     "/api/v1/appointments/" + url.PathEscape(id),
		body:     map[string]string{"status": string(status)},
	})
	if err != nil {
		return model.Appointment{}, fmt.Errorf("update appointment status: %w", err)
	}
	if len(resp.body) == 0 {
		return model.Appointment{}, nil
	}
	return decodeAppointment(resp.body, c.location())
}
