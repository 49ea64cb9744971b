package validator

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	apperrors "github.com/jobeco/fairprice/pkg/errors"
)

// EmailPattern is the address shape accepted for registration and invitations.
var EmailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// DefaultPasswordMinLength applies when Password.Min is unset.
const DefaultPasswordMinLength = 6

// Rule validates one form value. Failures are *errors.AppError validation
// errors carrying the field name.
type Rule interface {
	Validate(field string, value any) error
}

// Check pairs a field with its value and rule for Fields.
type Check struct {
	Field string
	Value any
	Rule  Rule
}

// Fields runs checks in order and returns the first failure.
func Fields(checks ...Check) error {
	for _, check := range checks {
		if check.Rule == nil {
			continue
		}
		if err := check.Rule.Validate(check.Field, check.Value); err != nil {
			return err
		}
	}
	return nil
}

// String checks presence, length and an optional pattern on text input.
type String struct {
	Required       bool
	Min            int
	Max            int
	Pattern        *regexp.Regexp
	PatternMessage string
}

func (r String) Validate(field string, value any) error {
	text, ok := asString(value)
	if !ok {
		return invalid(field, "%s must be text", field)
	}
	text = strings.TrimSpace(text)

	if text == "" {
		if r.Required {
			return invalid(field, "%s is required", field)
		}
		return nil
	}

	length := len([]rune(text))
	if r.Min > 0 && length < r.Min {
		return invalid(field, "%s must be at least %d characters", field, r.Min)
	}
	if r.Max > 0 && length > r.Max {
		return invalid(field, "%s must be at most %d characters", field, r.Max)
	}
	if r.Pattern != nil && !r.Pattern.MatchString(text) {
		if r.PatternMessage != "" {
			return invalid(field, "%s %s", field, r.PatternMessage)
		}
		return invalid(field, "%s has an invalid format", field)
	}
	return nil
}

// Email checks an address against EmailPattern.
type Email struct {
	Required bool
}

func (r Email) Validate(field string, value any) error {
	text, ok := asString(value)
	if !ok {
		return invalid(field, "%s must be text", field)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		if r.Required {
			return invalid(field, "%s is required", field)
		}
		return nil
	}
	if len(text) > 254 || !EmailPattern.MatchString(text) {
		return invalid(field, "%s must be a valid email address", field)
	}
	return nil
}

// Password enforces a minimum length. Whitespace is significant.
type Password struct {
	Min int
}

func (r Password) Validate(field string, value any) error {
	text, ok := asString(value)
	if !ok {
		return invalid(field, "%s must be text", field)
	}
	if text == "" {
		return invalid(field, "%s is required", field)
	}
	min := r.Min
	if min <= 0 {
		min = DefaultPasswordMinLength
	}
	if len([]rune(text)) < min {
		return invalid(field, "%s must be at least %d characters", field, min)
	}
	return nil
}

// Number validates an optional numeric value against inclusive bounds.
// Accepted inputs are ints, floats and their pointers; a nil pointer is "absent".
// NaN and infinities are rejected.
type Number struct {
	Required bool
	Min      *float64
	Max      *float64
}

// Bound is a convenience for Number limits.
func Bound(v float64) *float64 { return &v }

func (r Number) Validate(field string, value any) error {
	number, present, ok := asFloat(value)
	if !ok {
		return invalid(field, "%s must be a number", field)
	}
	if !present {
		if r.Required {
			return invalid(field, "%s is required", field)
		}
		return nil
	}
	if math.IsNaN(number) || math.IsInf(number, 0) {
		return invalid(field, "%s must be a number", field)
	}

	switch {
	case r.Min != nil && r.Max != nil && (number < *r.Min || number > *r.Max):
		return invalid(field, "%s must be between %s and %s", field, formatBound(*r.Min), formatBound(*r.Max))
	case r.Min != nil && number < *r.Min:
		return invalid(field, "%s must be at least %s", field, formatBound(*r.Min))
	case r.Max != nil && number > *r.Max:
		return invalid(field, "%s must be at most %s", field, formatBound(*r.Max))
	}
	return nil
}

// Choice accepts only one of Options. Empty input passes unless Required.
type Choice struct {
	Required bool
	Options  []string
}

func (r Choice) Validate(field string, value any) error {
	text, ok := asString(value)
	if !ok {
		return invalid(field, "%s must be text", field)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		if r.Required {
			return invalid(field, "%s is required", field)
		}
		return nil
	}
	for _, option := range r.Options {
		if option == text {
			return nil
		}
	}
	return invalid(field, "%s must be one of: %s", field, strings.Join(r.Options, ", "))
}

func invalid(field, format string, args ...any) error {
	return apperrors.NewValidation(field, fmt.Sprintf(format, args...))
}

func asString(value any) (string, bool) {
	switch v := value.(type) {
	case nil:
		return "", true
	case string:
		return v, true
	case *string:
		if v == nil {
			return "", true
		}
		return *v, true
	default:
		return "", false
	}
}

func asFloat(value any) (number float64, present bool, ok bool) {
	switch v := value.(type) {
	case nil:
		return 0, false, true
	case int:
		return float64(v), true, true
	case int64:
		return float64(v), true, true
	case float64:
		return v, true, true
	case *int:
		if v == nil {
			return 0, false, true
		}
		return float64(*v), true, true
	case *float64:
		if v == nil {
			return 0, false, true
		}
		return *v, true, true
	default:
		return 0, false, false
	}
}

func formatBound(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%g", v)
}
