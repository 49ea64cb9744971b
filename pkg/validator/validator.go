package validator

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/jobeco/fairprice/pkg/errors"
)

var (
	once     sync.Once
	validate *validator.Validate
)

var (
	postcodePattern   = regexp.MustCompile(`^[A-Za-z0-9]+( [A-Za-z0-9]+)*$`)
	usernamePattern   = regexp.MustCompile(`^[A-Za-z0-9_]{3,50}$`)
	alphaSpacePattern = regexp.MustCompile(`^[\p{L}]+([ '\-][\p{L}]+)*$`)
)

// ValidationError represents a single field validation failure.
type ValidationError struct {
	Field string `json:"field"`
	Tag   string `json:"tag"`
	Param string `json:"param"`
}

// Message renders the failure the way form validators word it.
func (v ValidationError) Message() string {
	field := strings.ToLower(strings.ReplaceAll(v.Field, "_", " "))
	if field == "" {
		field = "field"
	}
	switch v.Tag {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email address"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, v.Param)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, v.Param)
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, v.Param)
	case "lte":
		return fmt.Sprintf("%s must be at most %s", field, v.Param)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(v.Param, " ", ", "))
	case "eqfield":
		return fmt.Sprintf("%s must match %s", field, strings.ToLower(strings.ReplaceAll(v.Param, "_", " ")))
	case "postcode":
		return field + " must be a valid postcode"
	case "username":
		return field + " must be 3-50 letters, numbers or underscores"
	case "alphaspace":
		return field + " may only contain letters"
	}
	if v.Param != "" {
		return fmt.Sprintf("%s failed validation: %s=%s", field, v.Tag, v.Param)
	}
	return fmt.Sprintf("%s failed validation: %s", field, v.Tag)
}

// ValidationErrors collects multiple validation failures in struct field order.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return "validation failed"
	}
	parts := make([]string, len(v))
	for i, failure := range v {
		parts[i] = failure.Message()
	}
	return strings.Join(parts, "; ")
}

// AppError reports the first failure, attributed to its field.
func (v ValidationErrors) AppError() *apperrors.AppError {
	if len(v) == 0 {
		return apperrors.ErrValidation
	}
	return apperrors.NewValidation(v[0].Field, v[0].Message())
}

// ValidateStruct validates a struct using registered rules.
func ValidateStruct(s any) error {
	err := getValidator().Struct(s)
	if err == nil {
		return nil
	}

	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		failures := make(ValidationErrors, 0, len(ve))
		for _, fe := range ve {
			failures = append(failures, ValidationError{
				Field: fe.Field(),
				Tag:   fe.Tag(),
				Param: fe.Param(),
			})
		}
		return failures
	}

	return err
}

// RegisterValidation exposes underlying validator custom rules.
func RegisterValidation(tag string, fn validator.Func) error {
	return getValidator().RegisterValidation(tag, fn)
}

func getValidator() *validator.Validate {
	once.Do(func() {
		validate = validator.New()
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := fld.Tag.Get("json")
			if name == "" {
				name = fld.Tag.Get("form")
			}
			if name == "" {
				return fld.Name
			}

			comma := strings.Index(name, ",")
			if comma != -1 {
				name = name[:comma]
			}

			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})

		_ = validate.RegisterValidation("postcode", matchString(postcodePattern))
		_ = validate.RegisterValidation("username", matchString(usernamePattern))
		_ = validate.RegisterValidation("alphaspace", matchString(alphaSpacePattern))
	})
	return validate
}

func matchString(pattern *regexp.Regexp) validator.Func {
	return func(fl validator.FieldLevel) bool {
		value := strings.TrimSpace(fl.Field().String())
		if value == "" {
			// emptiness is the job of "required"
			return true
		}
		return pattern.MatchString(value)
	}
}
