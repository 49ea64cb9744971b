package validator

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	apperrors "github.com/jobeco/fairprice/pkg/errors"
)

type testPayload struct {
	Username string `json:"username" validate:"required,username"`
	Email    string `json:"email" validate:"required,email"`
	Postcode string `json:"postcode" validate:"required,postcode"`
	Name     string `json:"firstname" validate:"omitempty,alphaspace"`
}

func TestValidateStructSuccess(t *testing.T) {
	payload := testPayload{
		Username: "alice_01",
		Email:    "alice@example.com",
		Postcode: "SW1A 1AA",
		Name:     "Mary-Ann",
	}

	require.NoError(t, ValidateStruct(payload))
}

func TestValidateStructFailures(t *testing.T) {
	payload := testPayload{
		Username: "al",
		Email:    "invalid",
		Postcode: "12-45",
		Name:     "R2D2",
	}

	err := ValidateStruct(payload)
	require.Error(t, err)

	vErrs, ok := err.(ValidationErrors)
	require.True(t, ok, "expected ValidationErrors, got %T", err)
	require.Len(t, vErrs, 4)

	fields := map[string]string{}
	for _, v := range vErrs {
		fields[v.Field] = v.Tag
	}
	require.Equal(t, "username", fields["username"])
	require.Equal(t, "email", fields["email"])
	require.Equal(t, "postcode", fields["postcode"])
	require.Equal(t, "alphaspace", fields["firstname"])
}

func TestRegisterValidation(t *testing.T) {
	err := RegisterValidation("trade_code", func(fl validator.FieldLevel) bool {
		return fl.Field().String() == "PLB"
	})
	require.NoError(t, err)

	type custom struct {
		Value string `validate:"trade_code"`
	}

	require.NoError(t, ValidateStruct(custom{Value: "PLB"}))
	require.Error(t, ValidateStruct(custom{Value: "other"}))
}

func TestValidationErrorsAppErrorUsesFirstFailure(t *testing.T) {
	err := ValidateStruct(testPayload{Email: "alice@example.com", Postcode: "SW1A 1AA"})
	require.Error(t, err)

	var failures ValidationErrors
	require.ErrorAs(t, err, &failures)

	appErr := failures.AppError()
	require.Equal(t, apperrors.CodeValidation, appErr.Code)
	require.Equal(t, "username", appErr.Field)
	require.Equal(t, "username is required", appErr.Message)
}

func TestValidationErrorMessages(t *testing.T) {
	cases := []struct {
		failure ValidationError
		want    string
	}{
		{ValidationError{Field: "password", Tag: "min", Param: "6"}, "password must be at least 6 characters"},
		{ValidationError{Field: "confirm_password", Tag: "eqfield", Param: "password"}, "confirm password must match password"},
		{ValidationError{Field: "kind", Tag: "oneof", Param: "jobs quotes"}, "kind must be one of: jobs, quotes"},
		{ValidationError{Field: "rating", Tag: "lte", Param: "5"}, "rating must be at most 5"},
		{ValidationError{Field: "postcode", Tag: "postcode"}, "postcode must be a valid postcode"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, tc.failure.Message())
	}
}
