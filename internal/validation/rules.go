// Package validation provides custom validation rules and the field-level
// violation error type used by the application.
package validation

import (
	"regexp"
	"strings"

	validation "github.com/jellydator/validation"

	apperrors "github.com/allisson/directory/internal/errors"
)

var (
	// emailRegex is a basic email validation pattern
	emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
)

// WrapValidationError wraps validation errors as domain ErrInvalidInput
func WrapValidationError(err error) error {
	if err == nil {
		return nil
	}
	return apperrors.Wrap(apperrors.ErrInvalidInput, err.Error())
}

// FieldErrors carries the full set of field-level violations produced by a
// validation pass. The zero-field case is never a FieldErrors value: use
// WrapFieldErrors to construct one so empty sets collapse to nil.
//
// FieldErrors matches errors.ErrInvalidInput through Unwrap, so callers can
// branch with errors.Is while handlers extract the per-field detail with
// errors.As.
type FieldErrors struct {
	fields validation.Errors
}

// WrapFieldErrors returns a *FieldErrors for a non-empty violation set and nil
// for an empty one.
func WrapFieldErrors(fields validation.Errors) error {
	if len(fields) == 0 {
		return nil
	}
	return &FieldErrors{fields: fields}
}

// Error returns the violations formatted as "field: reason; ..." sorted by field.
func (e *FieldErrors) Error() string {
	return e.fields.Error()
}

// Unwrap makes FieldErrors match errors.ErrInvalidInput.
func (e *FieldErrors) Unwrap() error {
	return apperrors.ErrInvalidInput
}

// Fields returns the violation set keyed by field name. Nested structures
// (e.g. address sub-fields) appear as nested validation.Errors values, which
// marshal to nested JSON objects.
func (e *FieldErrors) Fields() validation.Errors {
	return e.fields
}

// Email validates email format using regex
var Email = validation.NewStringRuleWithError(
	func(s string) bool {
		return emailRegex.MatchString(s)
	},
	validation.NewError("validation_email_format", "must be a valid email address"),
)

// NotBlank validates that a string is not empty after trimming whitespace
var NotBlank = validation.NewStringRuleWithError(
	func(s string) bool {
		return strings.TrimSpace(s) != ""
	},
	validation.NewError("validation_not_blank", "must not be blank"),
)
