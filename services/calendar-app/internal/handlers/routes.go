package handlers

import "net/http"

type Handlers struct {
	Auth     *AuthHandler
	Calendar *CalendarHandler
	Wizard   *WizardHandler
}

// Register mounts the API on mux. Everything except sign-in and the
// password reset flow needs a session.
func Register(mux *http.ServeMux, h Handlers) {
	mux.HandleFunc("POST /api/v1/auth/login", h.Auth.Login)
	mux.HandleFunc("POST /api/v1/auth/logout", h.Auth.Logout)
	mux.HandleFunc("GET /api/v1/auth/session", h.Auth.Session)
	mux.HandleFunc("GET /reset-password", h.Auth.ResetLink)
	mux.HandleFunc("POST /api/v1/auth/reset-password", h.Auth.ResetPassword)

	authed := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, h.Auth.RequireSession(fn))
	}

	authed("GET /api/v1/calendar", h.Calendar.Calendar)
	authed("POST /api/v1/calendar/refresh", h.Calendar.Refresh)
	authed("GET /api/v1/appointments/{id}/actions", h.Calendar.Actions)
	authed("POST /api/v1/appointments/{id}/status", h.Calendar.UpdateStatus)
	authed("POST /api/v1/appointments/{id}/reschedule", h.Calendar.Reschedule)
	authed("GET /api/v1/services", h.Calendar.Services)
	authed("POST /api/v1/services/{id}/toggle", h.Calendar.ToggleService)
	authed("GET /api/v1/staff", h.Calendar.Staff)

	authed("GET /api/v1/wizard", h.Wizard.State)
	authed("POST /api/v1/wizard/open", h.Wizard.Open)
	authed("POST /api/v1/wizard/service", h.Wizard.SelectService)
	authed("POST /api/v1/wizard/staff", h.Wizard.ChooseStaff)
	authed("POST /api/v1/wizard/date", h.Wizard.SelectDate)
	authed("POST /api/v1/wizard/slots", h.Wizard.LoadSlots)
	authed("POST /api/v1/wizard/slot", h.Wizard.SelectSlot)
	authed("POST /api/v1/wizard/details", h.Wizard.SetDetails)
	authed("POST /api/v1/wizard/next", h.Wizard.Next)
	authed("POST /api/v1/wizard/back", h.Wizard.Back)
	authed("POST /api/v1/wizard/submit", h.Wizard.Submit)
	authed("POST /api/v1/wizard/dismiss", h.Wizard.Dismiss)
	authed("POST /api/v1/wizard/book-another", h.Wizard.BookAnother)
}
