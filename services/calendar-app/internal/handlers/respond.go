package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/md-rashed-zaman/apptremind-calendar/services/calendar-app/internal/backend"
	"github.com/md-rashed-zaman/apptremind-calendar/services/calendar-app/internal/catalog"
	"github.com/md-rashed-zaman/apptremind-calendar/services/calendar-app/internal/session"
	"github.com/md-rashed-zaman/apptremind-calendar/services/calendar-app/internal/status"
	"github.com/md-rashed-zaman/apptremind-calendar/services/calendar-app/internal/wizard"
)

// errBadRequest marks malformed input detected by the handler itself.
var errBadRequest = errors.New("bad request")

type badRequest string

func (e badRequest) Error() string { return string(e) }
func (e badRequest) Unwrap() error { return errBadRequest }

type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
	// View is the wizard state after a rejected wizard action.
	View *wizard.View `json:"view,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return badRequest("invalid json body")
	}
	return nil
}

func statusCode(err error) int {
	var verr *wizard.ValidationError
	var apiErr *backend.APIError
	switch {
	case errors.Is(err, errBadRequest), errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, backend.ErrNetwork),
		errors.Is(err, backend.ErrUnexpectedShape),
		errors.As(err, &apiErr) && apiErr.Status >= 500:
		return http.StatusBadGateway
	case errors.Is(err, backend.ErrUnauthorized),
		errors.Is(err, session.ErrNotAuthenticated),
		errors.Is(err, session.ErrRefreshFailed):
		return http.StatusUnauthorized
	case errors.Is(err, backend.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, backend.ErrNotFound),
		errors.Is(err, status.ErrNotCached),
		errors.Is(err, catalog.ErrServiceNotFound):
		return http.StatusNotFound
	case errors.Is(err, backend.ErrConflict),
		errors.Is(err, status.ErrInvalidTransition),
		errors.Is(err, status.ErrConfirmationRequired),
		errors.Is(err, status.ErrTerminal),
		errors.Is(err, wizard.ErrSlotUnavailable),
		errors.Is(err, wizard.ErrNoStaffAvailable),
		errors.Is(err, wizard.ErrSubmitInFlight),
		errors.Is(err, wizard.ErrStale):
		return http.StatusConflict
	case errors.Is(err, wizard.ErrInvalidStep),
		errors.Is(err, wizard.ErrStepIncomplete),
		errors.Is(err, wizard.ErrServiceInactive),
		errors.Is(err, wizard.ErrStaffNotAllowed),
		errors.Is(err, wizard.ErrDayClosed),
		errors.Is(err, wizard.ErrDateInPast),
		errors.Is(err, status.ErrInvalidTimes):
		return http.StatusUnprocessableEntity
	case errors.Is(err, backend.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	writeErrorView(w, logger, err, nil)
}

func writeErrorView(w http.ResponseWriter, logger *slog.Logger, err error, view *wizard.View) {
	code := statusCode(err)
	resp := errorResponse{Error: backend.UserMessage(err), View: view}
	var verr *wizard.ValidationError
	if errors.As(err, &verr) {
		resp.Fields = verr.Fields
	}
	if code >= http.StatusInternalServerError {
		logger.Error("request failed", "status", code, "err", err)
	}
	writeJSON(w, code, resp)
}
