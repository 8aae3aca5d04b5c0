package wizard

import (
	"errors"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Details are the customer fields collected on the details step.
type Details struct {
	Name  string `json:"name" validate:"required,max=120"`
	Email string `json:"email" validate:"required,email,max=254"`
	Phone string `json:"phone,omitempty" validate:"omitempty,min=7,max=20"`
	Notes string `json:"notes,omitempty" validate:"max=500"`
}

func (d Details) normalized() Details {
	d.Name = strings.TrimSpace(d.Name)
	d.Email = strings.TrimSpace(d.Email)
	d.Phone = strings.TrimSpace(d.Phone)
	d.Notes = strings.TrimSpace(d.Notes)
	return d
}

// ValidationError carries one message per invalid field, keyed by JSON name.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	msgs := make([]string, 0, len(keys))
	for _, k := range keys {
		msgs = append(msgs, e.Fields[k])
	}
	return "invalid details: " + strings.Join(msgs, "; ")
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonFieldName)
	return v
}

func jsonFieldName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	switch name {
	case "-":
		return ""
	case "":
		return f.Name
	}
	return name
}

func validateDetails(d Details) error {
	err := validate.Struct(d)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	return &ValidationError{Fields: formatValidationErrors(verrs)}
}

func formatValidationErrors(verrs validator.ValidationErrors) map[string]string {
	out := make(map[string]string, len(verrs))
	for _, e := range verrs {
		field := e.Field()
		label := fieldLabel(field)
		switch e.Tag() {
		case "required":
			out[field] = label + " is required"
		case "email":
			out[field] = label + " must be a valid email address"
		case "min":
			out[field] = label + " must be at least " + e.Param() + " characters"
		case "max":
			out[field] = label + " must be at most " + e.Param() + " characters"
		default:
			out[field] = label + " is invalid"
		}
	}
	return out
}

func fieldLabel(field string) string {
	if field == "" {
		return field
	}
	return strings.ToUpper(field[:1]) + field[1:]
}
