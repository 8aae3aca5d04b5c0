package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/md-rashed-zaman/apptremind-calendar/libs/runtime"
	"github.com/md-rashed-zaman/apptremind-calendar/services/calendar-app/internal/backend"
	"github.com/md-rashed-zaman/apptremind-calendar/services/calendar-app/internal/deeplink"
	"github.com/md-rashed-zaman/apptremind-calendar/services/calendar-app/internal/session"
)

const minPasswordLength = 8

type PasswordResetter interface {
	ResetPassword(ctx context.Context, token, password string) error
}

type AuthHandler struct {
	session   *session.Manager
	passwords PasswordResetter
	logger    *slog.Logger
}

func NewAuthHandler(sess *session.Manager, passwords PasswordResetter, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{session: sess, passwords: passwords, logger: runtime.OrDiscard(logger)}
}

type sessionResponse struct {
	Authenticated bool   `json:"authenticated"`
	UserID        string `json:"user_id,omitempty"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req backend.Credentials
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		writeError(w, h.logger, badRequest("email and password are required"))
		return
	}
	st, err := h.session.Login(r.Context(), req)
	if err != nil {
		if errors.Is(err, backend.ErrUnauthorized) {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid email or password"})
			return
		}
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Authenticated: true, UserID: st.UserID})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.session.Logout(r.Context()); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) Session(w http.ResponseWriter, _ *http.Request) {
	st := h.session.State()
	writeJSON(w, http.StatusOK, sessionResponse{Authenticated: st.Authenticated(), UserID: st.UserID})
}

// ResetLink resolves the reset link opened from email. The app-scheme form
// can be passed whole in ?link=.
func (h *AuthHandler) ResetLink(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("link")
	if raw == "" {
		raw = r.URL.RequestURI()
	}
	route, err := deeplink.Parse(raw)
	if err != nil {
		writeError(w, h.logger, badRequest(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, route)
}

type resetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	req.Token = strings.TrimSpace(req.Token)
	if req.Token == "" {
		writeError(w, h.logger, badRequest("missing token"))
		return
	}
	if len(req.Password) < minPasswordLength {
		writeError(w, h.logger, badRequest("password must be at least 8 characters"))
		return
	}
	if err := h.passwords.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RequireSession rejects requests while signed out.
func (h *AuthHandler) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.session.Authenticated() {
			writeError(w, h.logger, session.ErrNotAuthenticated)
			return
		}
		next.ServeHTTP(w, r)
	})
}
