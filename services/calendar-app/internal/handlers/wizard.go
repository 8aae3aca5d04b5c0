package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/md-rashed-zaman/apptremind-calendar/libs/runtime"
	"github.com/md-rashed-zaman/apptremind-calendar/services/calendar-app/internal/catalog"
	"github.com/md-rashed-zaman/apptremind-calendar/services/calendar-app/internal/clock"
	"github.com/md-rashed-zaman/apptremind-calendar/services/calendar-app/internal/wizard"
)

// WizardHandler exposes the single booking flow of this session.
type WizardHandler struct {
	wiz     *wizard.Wizard
	catalog *catalog.Catalog
	logger  *slog.Logger
}

func NewWizardHandler(wiz *wizard.Wizard, cat *catalog.Catalog, logger *slog.Logger) *WizardHandler {
	return &WizardHandler{wiz: wiz, catalog: cat, logger: runtime.OrDiscard(logger)}
}

// reply writes the view, or the error with the view attached.
func (h *WizardHandler) reply(w http.ResponseWriter, v wizard.View, err error) {
	if err != nil {
		writeErrorView(w, h.logger, err, &v)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

type openRequest struct {
	// SuggestedDate is a date key or an RFC3339 instant, e.g. the day the
	// user tapped on the calendar.
	SuggestedDate string `json:"suggested_date"`
}

func (h *WizardHandler) Open(w http.ResponseWriter, r *http.Request) {
	var req openRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, h.logger, err)
			return
		}
	}
	ctx := r.Context()
	settings, err := h.catalog.Settings(ctx)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	sched, err := h.catalog.Schedule(ctx)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	biz := wizard.Business{Settings: settings, Schedule: sched, Location: clock.Location(settings.Timezone)}

	var suggested *time.Time
	if raw := strings.TrimSpace(req.SuggestedDate); raw != "" {
		t, err := clock.ParseDateKey(raw, biz.Location)
		if err != nil {
			t, err = time.Parse(time.RFC3339, raw)
		}
		if err != nil {
			writeError(w, h.logger, badRequest("invalid suggested_date"))
			return
		}
		suggested = &t
	}
	writeJSON(w, http.StatusOK, h.wiz.Open(biz, suggested))
}

func (h *WizardHandler) State(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.wiz.Snapshot())
}

func (h *WizardHandler) SelectService(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ServiceID string `json:"service_id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	svc, err := h.catalog.Service(r.Context(), strings.TrimSpace(req.ServiceID))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	v, err := h.wiz.SelectService(svc)
	h.reply(w, v, err)
}

// ChooseStaff takes {"kind":"any"} or {"kind":"specific","staff_id":"..."}.
func (h *WizardHandler) ChooseStaff(w http.ResponseWriter, r *http.Request) {
	var choice wizard.StaffChoice
	if err := decodeJSON(r, &choice); err != nil {
		writeError(w, h.logger, err)
		return
	}
	v, err := h.wiz.ChooseStaff(choice)
	h.reply(w, v, err)
}

func (h *WizardHandler) SelectDate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Date string `json:"date"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	v, err := h.wiz.SelectDate(strings.TrimSpace(req.Date))
	h.reply(w, v, err)
}

func (h *WizardHandler) LoadSlots(w http.ResponseWriter, r *http.Request) {
	_, err := h.wiz.LoadSlots(r.Context())
	h.reply(w, h.wiz.Snapshot(), err)
}

func (h *WizardHandler) SelectSlot(w http.ResponseWriter, r *http.Request) {
	var req struct {
		StartTime string `json:"start_time"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	start, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		writeError(w, h.logger, badRequest("invalid start_time"))
		return
	}
	v, err := h.wiz.SelectSlot(start)
	h.reply(w, v, err)
}

func (h *WizardHandler) SetDetails(w http.ResponseWriter, r *http.Request) {
	var d wizard.Details
	if err := decodeJSON(r, &d); err != nil {
		writeError(w, h.logger, err)
		return
	}
	v, err := h.wiz.SetDetails(d)
	h.reply(w, v, err)
}

func (h *WizardHandler) Next(w http.ResponseWriter, _ *http.Request) {
	v, err := h.wiz.Next()
	h.reply(w, v, err)
}

func (h *WizardHandler) Back(w http.ResponseWriter, _ *http.Request) {
	v, err := h.wiz.Back()
	h.reply(w, v, err)
}

func (h *WizardHandler) Submit(w http.ResponseWriter, r *http.Request) {
	_, err := h.wiz.Submit(r.Context())
	if errors.Is(err, wizard.ErrStale) {
		// dismissed while submitting; the flow has already been reset
		writeError(w, h.logger, err)
		return
	}
	h.reply(w, h.wiz.Snapshot(), err)
}

func (h *WizardHandler) Dismiss(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.wiz.Dismiss())
}

func (h *WizardHandler) BookAnother(w http.ResponseWriter, _ *http.Request) {
	v, err := h.wiz.BookAnother()
	h.reply(w, v, err)
}
