// Package validation checks create and update payloads for todos. It is pure:
// no I/O, and identical input always yields the identical result.
//
// Payloads arrive as a map of raw JSON fields so that per-field type errors
// can be reported precisely and unknown fields ignored. Field rules (required,
// length, enum membership) run through go-playground/validator on the shaped
// payload; type and null handling happen before that, since tags cannot
// express them.
package validation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/mwerner/todo-api/models"
)

var validate = validator.New()

// FieldError names the field that failed and the rule it broke.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	return e.Message
}

// CreatePayload is a validated create request. Priority is always set
// (defaulted to medium), Title is trimmed.
type CreatePayload struct {
	Title       string
	Description *string
	Priority    models.Priority
	DueDate     *time.Time
}

// UpdatePayload is a validated partial update. Nil pointers mean the field was
// absent. DueDateSet distinguishes "due_date absent" from "due_date: null",
// which clears the stored date.
type UpdatePayload struct {
	Title       *string
	Description *string
	Completed   *bool
	Priority    *models.Priority
	DueDate     *time.Time
	DueDateSet  bool
}

// createRules carries the tag-checkable rules for a create payload. Title is
// trimmed before it lands here.
type createRules struct {
	Title    string `json:"title" validate:"required,max=255"`
	Priority string `json:"priority" validate:"omitempty,oneof=low medium high"`
}

type updateRules struct {
	Title    string `json:"title" validate:"omitempty,max=255"`
	Priority string `json:"priority" validate:"omitempty,oneof=low medium high"`
}

// updatableFields is the set of fields an update payload may carry. Anything
// else is ignored, and a payload carrying none of these is rejected.
var updatableFields = []string{"title", "description", "completed", "priority", "due_date"}

// ValidateCreate checks a decoded create payload. Unknown fields are ignored.
func ValidateCreate(fields map[string]json.RawMessage) (*CreatePayload, []FieldError) {
	var errs fieldErrors
	p := &CreatePayload{Priority: models.PriorityMedium}
	rules := createRules{}

	if raw, ok := fields["title"]; ok {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			errs.add("title", "title is required and must be a non-empty string")
		} else {
			rules.Title = strings.TrimSpace(s)
			if rules.Title == "" {
				errs.add("title", "title is required and must be a non-empty string")
			}
		}
	}
	if raw, ok := fields["description"]; ok {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			errs.add("description", "description must be a string")
		} else {
			p.Description = &s
		}
	}
	if raw, ok := fields["priority"]; ok {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			errs.add("priority", "priority must be one of: low, medium, high")
		} else {
			rules.Priority = s
		}
	}
	if raw, ok := fields["due_date"]; ok {
		t, err := parseDateField(raw)
		if err != nil {
			errs.add("due_date", "due_date must be a valid date")
		} else {
			p.DueDate = t
		}
	}

	for _, fe := range checkRules(&rules) {
		errs.add(fe.Field, fe.Message)
	}
	if len(errs) > 0 {
		return nil, errs
	}

	p.Title = rules.Title
	if rules.Priority != "" {
		p.Priority = models.Priority(rules.Priority)
	}
	return p, nil
}

// ValidateUpdate checks a decoded partial update. An empty payload and a
// payload with no recognized fields are both rejected, before any store
// access, with distinct messages.
func ValidateUpdate(fields map[string]json.RawMessage) (*UpdatePayload, []FieldError) {
	if len(fields) == 0 {
		return nil, []FieldError{{Field: "payload", Message: "No fields to update"}}
	}
	recognized := 0
	for _, f := range updatableFields {
		if _, ok := fields[f]; ok {
			recognized++
		}
	}
	if recognized == 0 {
		return nil, []FieldError{{Field: "payload", Message: "No valid fields to update"}}
	}

	var errs fieldErrors
	p := &UpdatePayload{}
	rules := updateRules{}

	if raw, ok := fields["title"]; ok {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			errs.add("title", "title is required and must be a non-empty string")
		} else {
			trimmed := strings.TrimSpace(s)
			if trimmed == "" {
				errs.add("title", "title is required and must be a non-empty string")
			} else {
				rules.Title = trimmed
				p.Title = &trimmed
			}
		}
	}
	if raw, ok := fields["description"]; ok {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			errs.add("description", "description must be a string")
		} else {
			p.Description = &s
		}
	}
	if raw, ok := fields["completed"]; ok {
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			errs.add("completed", "completed must be a boolean")
		} else {
			p.Completed = &b
		}
	}
	if raw, ok := fields["priority"]; ok {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			errs.add("priority", "priority must be one of: low, medium, high")
		} else {
			rules.Priority = s
		}
	}
	if raw, ok := fields["due_date"]; ok {
		p.DueDateSet = true
		if !isNull(raw) {
			t, err := parseDateField(raw)
			if err != nil || t == nil {
				errs.add("due_date", "due_date must be a valid date or null")
			} else {
				p.DueDate = t
			}
		}
	}

	for _, fe := range checkRules(&rules) {
		errs.add(fe.Field, fe.Message)
	}
	if len(errs) > 0 {
		return nil, errs
	}

	if rules.Priority != "" {
		pr := models.Priority(rules.Priority)
		p.Priority = &pr
	}
	return p, nil
}

// checkRules runs the tag rules and maps failures to json field names, so the
// client sees the wire name rather than the Go one.
func checkRules(s any) []FieldError {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []FieldError{{Field: "payload", Message: "invalid payload"}}
	}
	st := reflect.TypeOf(s).Elem()
	out := make([]FieldError, 0, len(verrs))
	for _, e := range verrs {
		name := e.StructField()
		if f, ok := st.FieldByName(e.StructField()); ok {
			if tag := strings.Split(f.Tag.Get("json"), ",")[0]; tag != "" {
				name = tag
			}
		}
		out = append(out, FieldError{Field: name, Message: ruleMessage(name, e)})
	}
	return out
}

func ruleMessage(field string, e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required and must be a non-empty string", field)
	case "max":
		return fmt.Sprintf("%s must be no longer than %s characters", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(e.Param(), " ", ", "))
	}
	return fmt.Sprintf("%s is invalid", field)
}

// parseDateField accepts RFC 3339 timestamps and bare dates.
func parseDateField(raw json.RawMessage) (*time.Time, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("invalid date %q", s)
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// fieldErrors collects at most one error per field; the type layer and the
// rule layer can both fire for the same field.
type fieldErrors []FieldError

func (fe *fieldErrors) add(field, message string) {
	for _, e := range *fe {
		if e.Field == field {
			return
		}
	}
	*fe = append(*fe, FieldError{Field: field, Message: message})
}
