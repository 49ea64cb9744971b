package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError provides a structured error that can be rendered to API consumers.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Field      string `json:"field,omitempty"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e == nil {
		return "<nil>"
	}

	if e.Internal != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Internal)
	}

	return e.Message
}

// Unwrap exposes the internal error for errors.Is / errors.As compatibility.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Internal
}

// Is reports whether target carries the same code, so every not-found error
// matches ErrNotFound regardless of its message.
func (e *AppError) Is(target error) bool {
	if e == nil {
		return false
	}
	var other *AppError
	if !errors.As(target, &other) || other == nil {
		return false
	}
	return e.Code == other.Code
}

// WithInternal returns a copy of the AppError with an attached internal error.
func (e *AppError) WithInternal(err error) *AppError {
	if e == nil {
		return nil
	}

	cpy := *e
	cpy.Internal = err
	return &cpy
}

// WithField returns a copy of the AppError attributed to the named input field.
func (e *AppError) WithField(field string) *AppError {
	if e == nil {
		return nil
	}

	cpy := *e
	cpy.Field = field
	return &cpy
}

// WithMessage returns a copy of the AppError carrying a different message.
func (e *AppError) WithMessage(message string) *AppError {
	if e == nil {
		return nil
	}

	cpy := *e
	cpy.Message = message
	return &cpy
}

// Error codes shared across the taxonomy.
const (
	CodeValidation     = "VALIDATION_ERROR"
	CodeAuthentication = "UNAUTHORIZED"
	CodeAuthorization  = "FORBIDDEN"
	CodeNotFound       = "NOT_FOUND"
	CodeDuplicate      = "DUPLICATE_RESOURCE"
	CodeDatabase       = "DATABASE_ERROR"
	CodeRateLimit      = "RATE_LIMIT_EXCEEDED"
	CodeConfiguration  = "CONFIGURATION_ERROR"
)

// Common errors exposed to the rest of the application.
var (
	ErrUnauthorized = &AppError{
		Code:       CodeAuthentication,
		Message:    "Authentication required",
		StatusCode: http.StatusUnauthorized,
	}

	ErrInvalidCredentials = &AppError{
		Code:       "INVALID_CREDENTIALS",
		Message:    "Invalid username or password",
		StatusCode: http.StatusUnauthorized,
	}

	ErrForbidden = &AppError{
		Code:       CodeAuthorization,
		Message:    "Permission denied",
		StatusCode: http.StatusForbidden,
	}

	ErrNotFound = &AppError{
		Code:       CodeNotFound,
		Message:    "Resource not found",
		StatusCode: http.StatusNotFound,
	}

	ErrConflict = &AppError{
		Code:       CodeDuplicate,
		Message:    "Resource already exists",
		StatusCode: http.StatusConflict,
	}

	ErrBadRequest = &AppError{
		Code:       "BAD_REQUEST",
		Message:    "Invalid request",
		StatusCode: http.StatusBadRequest,
	}

	ErrValidation = &AppError{
		Code:       CodeValidation,
		Message:    "Validation failed",
		StatusCode: http.StatusBadRequest,
	}

	ErrDatabase = &AppError{
		Code:       CodeDatabase,
		Message:    "A database error occurred",
		StatusCode: http.StatusInternalServerError,
	}

	ErrConfiguration = &AppError{
		Code:       CodeConfiguration,
		Message:    "Service is not configured",
		StatusCode: http.StatusInternalServerError,
	}

	ErrInternalServer = &AppError{
		Code:       "INTERNAL_SERVER_ERROR",
		Message:    "Internal server error",
		StatusCode: http.StatusInternalServerError,
	}

	ErrRateLimit = &AppError{
		Code:       CodeRateLimit,
		Message:    "Too many requests, please slow down",
		StatusCode: http.StatusTooManyRequests,
	}
)

// New builds a new application error with the provided metadata.
func New(code, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Wrap turns any error into an AppError while keeping the original error for logging.
func Wrap(err error, message string) *AppError {
	return &AppError{
		Code:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Internal:   err,
	}
}

// FromError converts a generic error into an AppError, defaulting to ErrInternalServer.
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	return ErrInternalServer.WithInternal(err)
}

// NewBadRequest wraps validation errors with a helpful message.
func NewBadRequest(message string) *AppError {
	return ErrBadRequest.WithMessage(message)
}

// NewValidation reports bad user input attributed to a single field.
func NewValidation(field, message string) *AppError {
	return &AppError{
		Code:       CodeValidation,
		Message:    message,
		Field:      field,
		StatusCode: http.StatusBadRequest,
	}
}

// NewAuthentication reports a failed or missing login.
func NewAuthentication(message string) *AppError {
	return ErrUnauthorized.WithMessage(message)
}

// NewAuthorization reports an authenticated user lacking the required role.
func NewAuthorization(message string) *AppError {
	return ErrForbidden.WithMessage(message)
}

// NewNotFound reports a missing entity by its human name, e.g. "Group".
func NewNotFound(resource string) *AppError {
	return ErrNotFound.WithMessage(resource + " not found")
}

// NewDuplicate reports a unique-constraint style conflict.
func NewDuplicate(message string) *AppError {
	return ErrConflict.WithMessage(message)
}

// NewDatabase wraps an underlying storage failure.
func NewDatabase(err error) *AppError {
	return ErrDatabase.WithInternal(err)
}

// NewRateLimit reports throttling with a custom message.
func NewRateLimit(message string) *AppError {
	return ErrRateLimit.WithMessage(message)
}

// NewConfiguration reports a feature that cannot run until it is configured.
func NewConfiguration(message string) *AppError {
	return ErrConfiguration.WithMessage(message)
}
