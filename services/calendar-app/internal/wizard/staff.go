package wizard

import (
	"encoding/json"
	"fmt"
	"strings"
)

type StaffChoiceKind int

const (
	NotChosen StaffChoiceKind = iota
	AnyStaff
	SpecificStaff
)

func (k StaffChoiceKind) String() string {
	switch k {
	case AnyStaff:
		return "any"
	case SpecificStaff:
		return "specific"
	default:
		return "not_chosen"
	}
}

// StaffChoice separates "not chosen yet" from an explicit "no preference".
type StaffChoice struct {
	kind StaffChoiceKind
	id   string
}

func NoPreference() StaffChoice { return StaffChoice{kind: AnyStaff} }

func Staff(id string) StaffChoice {
	return StaffChoice{kind: SpecificStaff, id: strings.TrimSpace(id)}
}

func (c StaffChoice) Kind() StaffChoiceKind { return c.kind }

func (c StaffChoice) StaffID() string { return c.id }

func (c StaffChoice) Chosen() bool { return c.kind != NotChosen }

func (c StaffChoice) valid() bool {
	return c.kind != SpecificStaff || c.id != ""
}

type staffChoiceJSON struct {
	Kind    string `json:"kind"`
	StaffID string `json:"staff_id,omitempty"`
}

func (c StaffChoice) MarshalJSON() ([]byte, error) {
	return json.Marshal(staffChoiceJSON{Kind: c.kind.String(), StaffID: c.id})
}

func (c *StaffChoice) UnmarshalJSON(b []byte) error {
	var raw staffChoiceJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	switch raw.Kind {
	case "any":
		*c = NoPreference()
	case "specific":
		if strings.TrimSpace(raw.StaffID) == "" {
			return fmt.Errorf("staff choice %q needs staff_id", raw.Kind)
		}
		*c = Staff(raw.StaffID)
	case "", "not_chosen":
		*c = StaffChoice{}
	default:
		return fmt.Errorf("unknown staff choice %q", raw.Kind)
	}
	return nil
}
