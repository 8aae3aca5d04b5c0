// Package status holds the appointment status transitions offered to staff and
// applies them (and reschedules) optimistically against the request cache.
package status

import (
	"slices"

	"github.com/md-rashed-zaman/apptremind-calendar/services/calendar-app/internal/model"
)

// Action is one user-triggered transition. Confirm marks destructive ones.
type Action struct {
	Name    string       `json:"name"`
	Target  model.Status `json:"target"`
	Confirm bool         `json:"confirm"`
}

var transitions = map[model.Status][]Action{
	model.StatusPending: {
		{Name: "accept", Target: model.StatusConfirmed},
		{Name: "reject", Target: model.StatusCancelled, Confirm: true},
	},
	model.StatusConfirmed: {
		{Name: "complete", Target: model.StatusCompleted},
		{Name: "no_show", Target: model.StatusNoShow, Confirm: true},
		{Name: "cancel", Target: model.StatusCancelled, Confirm: true},
	},
	model.StatusCancelled: {
		{Name: "rebook", Target: model.StatusPending},
	},
	model.StatusNoShow: {
		{Name: "rebook", Target: model.StatusPending},
	},
	model.StatusCompleted: nil,
}

// Actions lists what can be done from s, in display order.
func Actions(s model.Status) []Action {
	return slices.Clone(transitions[s])
}

func Allowed(from model.Status) []model.Status {
	var out []model.Status
	for _, a := range transitions[from] {
		out = append(out, a.Target)
	}
	return out
}

func CanTransition(from, to model.Status) bool {
	return slices.Contains(Allowed(from), to)
}

// RequiresConfirmation is true for the destructive targets.
func RequiresConfirmation(to model.Status) bool {
	return to == model.StatusCancelled || to == model.StatusNoShow
}

func IsTerminal(s model.Status) bool {
	return s == model.StatusCompleted
}

// CanReschedule: any non-terminal status. Rescheduling keeps the status.
func CanReschedule(s model.Status) bool {
	_, known := transitions[s]
	return known && !IsTerminal(s)
}
