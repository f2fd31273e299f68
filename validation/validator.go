package validation

import (
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/kbukum/runkit/errors"
)

// FieldError is one failed check.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Validator chains checks on request values that have no struct tags, such
// as the fields of a decoded request config.
//
//	err := validation.New().
//	    OptionalUUID("config.run_id", rc.RunID).
//	    Min("config.max_concurrency", rc.MaxConcurrency, 0).
//	    Validate()
type Validator struct {
	errs []FieldError
}

// New returns an empty Validator.
func New() *Validator {
	return &Validator{}
}

// Check records message against field unless ok.
func (v *Validator) Check(ok bool, field, message string) *Validator {
	if !ok {
		v.errs = append(v.errs, FieldError{Field: field, Message: message})
	}
	return v
}

// Custom is Check under the name the struct validator uses.
func (v *Validator) Custom(ok bool, field, message string) *Validator {
	return v.Check(ok, field, message)
}

// HasErrors reports whether any check failed.
func (v *Validator) HasErrors() bool { return len(v.errs) > 0 }

// Errors returns the failed checks in order.
func (v *Validator) Errors() []FieldError { return v.errs }

// Validate returns nil, or an invalid-input AppError listing every failed
// check under Details["fields"].
func (v *Validator) Validate() error {
	if !v.HasErrors() {
		return nil
	}
	msgs := make([]string, len(v.errs))
	for i, e := range v.errs {
		msgs[i] = e.Field + ": " + e.Message
	}
	return errors.Validation(strings.Join(msgs, "; ")).WithDetail("fields", v.errs)
}

// Required fails on a blank string.
func (v *Validator) Required(field, value string) *Validator {
	return v.Check(strings.TrimSpace(value) != "", field, "is required")
}

// RequiredUUID fails unless value is a non-nil UUID.
func (v *Validator) RequiredUUID(field, value string) *Validator {
	if strings.TrimSpace(value) == "" {
		return v.Check(false, field, "is required")
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return v.Check(false, field, "must be a valid UUID")
	}
	return v.Check(id != uuid.Nil, field, "must not be empty")
}

// OptionalUUID fails on a non-empty value that is not a UUID.
func (v *Validator) OptionalUUID(field, value string) *Validator {
	if value == "" {
		return v
	}
	_, err := uuid.Parse(value)
	return v.Check(err == nil, field, "must be a valid UUID")
}

// Min fails when value < minVal.
func (v *Validator) Min(field string, value, minVal int) *Validator {
	return v.Check(value >= minVal, field, fmt.Sprintf("must be at least %d", minVal))
}

// Range fails when value is outside [minVal, maxVal].
func (v *Validator) Range(field string, value, minVal, maxVal int) *Validator {
	return v.Check(value >= minVal && value <= maxVal, field,
		fmt.Sprintf("must be between %d and %d", minVal, maxVal))
}

// OneOf fails on a non-empty value outside allowed.
func (v *Validator) OneOf(field, value string, allowed []string) *Validator {
	return v.Check(value == "" || slices.Contains(allowed, value), field,
		"must be one of: "+strings.Join(allowed, ", "))
}

// Required checks a single field.
func Required(field, value string) error {
	return New().Required(field, value).Validate()
}
