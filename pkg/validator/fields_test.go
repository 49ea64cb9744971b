package validator

import (
	"errors"
	"math"
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"

	apperrors "github.com/jobeco/fairprice/pkg/errors"
)

func requireFieldError(t *testing.T, err error, field, message string) {
	t.Helper()
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, apperrors.CodeValidation, appErr.Code)
	require.Equal(t, field, appErr.Field)
	require.Equal(t, message, appErr.Message)
}

func TestStringRule(t *testing.T) {
	rule := String{Required: true, Min: 3, Max: 5}

	requireFieldError(t, rule.Validate("username", "  "), "username", "username is required")
	requireFieldError(t, rule.Validate("username", "ab"), "username", "username must be at least 3 characters")
	requireFieldError(t, rule.Validate("username", "abcdef"), "username", "username must be at most 5 characters")
	require.NoError(t, rule.Validate("username", "abcd"))

	require.NoError(t, String{Max: 3}.Validate("description", ""))

	pattern := String{Pattern: regexp.MustCompile(`^[0-9]+$`), PatternMessage: "must contain digits only"}
	requireFieldError(t, pattern.Validate("phone", "12a"), "phone", "phone must contain digits only")
}

func TestEmailRule(t *testing.T) {
	require.NoError(t, Email{Required: true}.Validate("email", "bob@example.co.uk"))
	requireFieldError(t, Email{Required: true}.Validate("email", ""), "email", "email is required")
	requireFieldError(t, Email{}.Validate("email", "bob@nowhere"), "email", "email must be a valid email address")
	require.NoError(t, Email{}.Validate("email", ""))
}

func TestPasswordRule(t *testing.T) {
	requireFieldError(t, Password{}.Validate("password", "12345"), "password", "password must be at least 6 characters")
	require.NoError(t, Password{}.Validate("password", "123456"))
	requireFieldError(t, Password{Min: 8}.Validate("password", "1234567"), "password", "password must be at least 8 characters")
}

func TestNumberRule(t *testing.T) {
	rating := Number{Min: Bound(1), Max: Bound(5)}

	five := 5
	six := 6
	require.NoError(t, rating.Validate("rating", &five))
	require.NoError(t, rating.Validate("rating", (*int)(nil)))
	requireFieldError(t, rating.Validate("rating", &six), "rating", "rating must be between 1 and 5")

	cost := Number{Min: Bound(0)}
	negative := -1.5
	requireFieldError(t, cost.Validate("total_cost", &negative), "total_cost", "total_cost must be at least 0")

	requireFieldError(t, Number{Required: true}.Validate("hours", nil), "hours", "hours is required")
	requireFieldError(t, Number{}.Validate("hours", "ten"), "hours", "hours must be a number")

	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		requireFieldError(t, cost.Validate("total_cost", &v), "total_cost", "total_cost must be a number")
	}
}

func TestChoiceRule(t *testing.T) {
	rule := Choice{Required: true, Options: []string{"accept", "reject"}}
	require.NoError(t, rule.Validate("action", "accept"))
	requireFieldError(t, rule.Validate("action", "maybe"), "action", "action must be one of: accept, reject")
}

func TestFieldsReturnsFirstFailure(t *testing.T) {
	err := Fields(
		Check{Field: "username", Value: "alice", Rule: String{Required: true, Min: 3}},
		Check{Field: "email", Value: "nope", Rule: Email{Required: true}},
		Check{Field: "password", Value: "1", Rule: Password{}},
	)
	requireFieldError(t, err, "email", "email must be a valid email address")

	require.NoError(t, Fields(Check{Field: "bio", Value: "", Rule: nil}))
}
