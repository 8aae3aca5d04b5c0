package handlers

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/md-rashed-zaman/apptremind-calendar/libs/runtime"
	"github.com/md-rashed-zaman/apptremind-calendar/services/calendar-app/internal/catalog"
	"github.com/md-rashed-zaman/apptremind-calendar/services/calendar-app/internal/clock"
	"github.com/md-rashed-zaman/apptremind-calendar/services/calendar-app/internal/fetchrange"
	"github.com/md-rashed-zaman/apptremind-calendar/services/calendar-app/internal/grid"
	"github.com/md-rashed-zaman/apptremind-calendar/services/calendar-app/internal/model"
	"github.com/md-rashed-zaman/apptremind-calendar/services/calendar-app/internal/status"
)

type CalendarHandler struct {
	catalog *catalog.Catalog
	appts   *catalog.Appointments
	mutator *status.Mutator
	memo    *grid.Memo
	grid    grid.Config
	logger  *slog.Logger
	now     func() time.Time
	device  *time.Location
}

type CalendarConfig struct {
	Grid grid.Config
	Now  func() time.Time
	// DeviceLocation is the zone "today" and the now marker follow; time.Local when nil.
	DeviceLocation *time.Location
}

func NewCalendarHandler(cat *catalog.Catalog, appts *catalog.Appointments, mutator *status.Mutator, memo *grid.Memo, logger *slog.Logger, cfg CalendarConfig) *CalendarHandler {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if memo == nil {
		memo = grid.NewMemo(0)
	}
	return &CalendarHandler{
		catalog: cat,
		appts:   appts,
		mutator: mutator,
		memo:    memo,
		grid:    cfg.Grid,
		logger:  runtime.OrDiscard(logger),
		now:     cfg.Now,
		device:  cfg.DeviceLocation,
	}
}

type calendarResponse struct {
	View      fetchrange.ViewMode `json:"view"`
	Date      string              `json:"date"`
	Today     string              `json:"today"`
	Timezone  string              `json:"timezone"`
	From      string              `json:"from"`
	To        string              `json:"to"`
	Stale     bool                `json:"stale"`
	FetchedAt string              `json:"fetched_at,omitempty"`
	Day       *grid.DayView       `json:"day,omitempty"`
	Week      *grid.WeekView      `json:"week,omitempty"`
	Month     *grid.MonthView     `json:"month,omitempty"`
	Agenda    []grid.AgendaDay    `json:"agenda,omitempty"`
}

// Calendar serves GET /api/v1/calendar?view=month|week|day|list&date=YYYY-MM-DD.
func (h *CalendarHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode, err := fetchrange.ParseViewMode(q.Get("view"))
	if err != nil {
		writeError(w, h.logger, badRequest(err.Error()))
		return
	}

	ctx := r.Context()
	settings, err := h.catalog.Settings(ctx)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	clk := clock.New(clock.Location(settings.Timezone), h.now).WithDeviceLocation(h.device)
	loc := clk.Location()

	anchor := clk.Now()
	if raw := strings.TrimSpace(q.Get("date")); raw != "" {
		anchor, err = clock.ParseDateKey(raw, loc)
		if err != nil {
			writeError(w, h.logger, badRequest("invalid date"))
			return
		}
	}

	rng := fetchrange.Select(anchor, mode, loc)
	appts, meta, err := h.appts.Load(ctx, rng)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	appts = h.catalog.Join(ctx, appts)

	in := grid.Input{
		Appointments: appts,
		Anchor:       anchor,
		Location:     loc,
		DeviceNow:    clk.DeviceNow(),
	}
	if sched, err := h.catalog.Schedule(ctx); err == nil {
		in.Schedule = &sched
	} else {
		h.logger.Warn("business hours unavailable", "err", err)
	}

	resp := calendarResponse{
		View:     mode,
		Date:     clk.DateKey(anchor),
		Today:    clk.Today(),
		Timezone: loc.String(),
		From:     rng.Start.UTC().Format(time.RFC3339),
		To:       rng.End.UTC().Format(time.RFC3339),
		Stale:    meta.Stale,
	}
	if !meta.FetchedAt.IsZero() {
		resp.FetchedAt = meta.FetchedAt.UTC().Format(time.RFC3339)
	}
	switch mode {
	case fetchrange.ViewDay:
		v := h.memo.Day(in, h.grid)
		resp.Day = &v
	case fetchrange.ViewWeek:
		v := h.memo.Week(in, h.grid)
		resp.Week = &v
	case fetchrange.ViewMonth:
		v := h.memo.Month(in, h.grid)
		resp.Month = &v
	case fetchrange.ViewList:
		resp.Agenda = h.memo.Agenda(in)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Refresh serves POST /api/v1/calendar/refresh (pull to refresh).
func (h *CalendarHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.appts.Refresh(r.Context()); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type actionsResponse struct {
	AppointmentID string          `json:"appointment_id"`
	Status        model.Status    `json:"status"`
	Actions       []status.Action `json:"actions"`
	CanReschedule bool            `json:"can_reschedule"`
}

func (h *CalendarHandler) Actions(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	appt, ok := h.mutator.Find(id)
	if !ok {
		writeError(w, h.logger, status.ErrNotCached)
		return
	}
	actions := status.Actions(appt.Status)
	if actions == nil {
		actions = []status.Action{}
	}
	writeJSON(w, http.StatusOK, actionsResponse{
		AppointmentID: appt.ID,
		Status:        appt.Status,
		Actions:       actions,
		CanReschedule: status.CanReschedule(appt.Status),
	})
}

type statusRequest struct {
	Status    string `json:"status"`
	Confirmed bool   `json:"confirmed"`
}

func (h *CalendarHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	to, err := model.ParseStatus(req.Status)
	if err != nil {
		writeError(w, h.logger, badRequest("invalid status"))
		return
	}
	id := r.PathValue("id")
	if err := h.mutator.Transition(r.Context(), id, to, req.Confirmed); err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.writeAppointment(w, id)
}

type rescheduleRequest struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	StaffID   string `json:"staff_id"`
}

func (h *CalendarHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	var req rescheduleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	start, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		writeError(w, h.logger, badRequest("invalid start_time"))
		return
	}
	end, err := time.Parse(time.RFC3339, req.EndTime)
	if err != nil {
		writeError(w, h.logger, badRequest("invalid end_time"))
		return
	}
	id := r.PathValue("id")
	if err := h.mutator.Reschedule(r.Context(), id, start, end, strings.TrimSpace(req.StaffID)); err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.writeAppointment(w, id)
}

// writeAppointment answers with the reconciled cached copy, or 204 when the
// refetch dropped it from every loaded range.
func (h *CalendarHandler) writeAppointment(w http.ResponseWriter, id string) {
	appt, ok := h.mutator.Find(id)
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

func (h *CalendarHandler) Services(w http.ResponseWriter, r *http.Request) {
	includeInactive := r.URL.Query().Get("include_inactive") == "true"
	list, err := h.catalog.Services(r.Context(), includeInactive)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if list == nil {
		list = []model.Service{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *CalendarHandler) ToggleService(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	active, err := h.catalog.ToggleService(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"service_id": id, "is_active": active})
}

func (h *CalendarHandler) Staff(w http.ResponseWriter, r *http.Request) {
	list, err := h.catalog.Staff(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if list == nil {
		list = []model.Staff{}
	}
	writeJSON(w, http.StatusOK, list)
}
