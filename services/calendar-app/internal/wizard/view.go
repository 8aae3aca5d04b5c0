package wizard

import (
	"github.com/md-rashed-zaman/apptremind-calendar/services/calendar-app/internal/model"
)

// View is a copy of the flow state for rendering.
type View struct {
	Step          Step                     `json:"step"`
	StepName      string                   `json:"step_name"`
	CanGoBack     bool                     `json:"can_go_back"`
	StaffStep     bool                     `json:"staff_step"`
	Service       *model.Service           `json:"service,omitempty"`
	Staff         StaffChoice              `json:"staff"`
	Date          string                   `json:"date,omitempty"`
	SuggestedDate string                   `json:"suggested_date,omitempty"`
	Slots         []model.AvailabilitySlot `json:"slots,omitempty"`
	Slot          *model.AvailabilitySlot  `json:"slot,omitempty"`
	Details       Details                  `json:"details"`
	FieldErrors   map[string]string        `json:"field_errors,omitempty"`
	Error         string                   `json:"error,omitempty"`
	Booking       *Booking                 `json:"booking,omitempty"`
	Submitting    bool                     `json:"submitting"`
	// Timezone is the business zone dates and slot times are shown in.
	Timezone string `json:"timezone"`
}

func (w *Wizard) Snapshot() View {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.viewLocked()
}

func (w *Wizard) viewLocked() View {
	st := w.st
	v := View{
		Step:          st.step,
		StepName:      st.step.String(),
		CanGoBack:     st.step > StepService && st.step < StepConfirmation,
		StaffStep:     w.staffStepEnabled(),
		Staff:         st.staff,
		Date:          st.date,
		SuggestedDate: st.suggested,
		Details:       st.details,
		Error:         st.lastError,
		Submitting:    w.submitting,
		Timezone:      w.clk.Location().String(),
	}
	if st.service != nil {
		svc := *st.service
		v.Service = &svc
	}
	if len(st.slots) > 0 {
		v.Slots = cloneSlots(st.slots)
	}
	if st.slot != nil {
		s := cloneSlot(*st.slot)
		v.Slot = &s
	}
	if len(st.fieldErrs) > 0 {
		v.FieldErrors = make(map[string]string, len(st.fieldErrs))
		for k, msg := range st.fieldErrs {
			v.FieldErrors[k] = msg
		}
	}
	if st.booking != nil {
		b := *st.booking
		v.Booking = &b
	}
	return v
}
