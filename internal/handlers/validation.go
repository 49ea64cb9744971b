package handlers

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	appErrors "github.com/jobeco/fairprice/pkg/errors"
	"github.com/jobeco/fairprice/pkg/response"
	appValidator "github.com/jobeco/fairprice/pkg/validator"
)

const dateLayout = "2006-01-02"

// bindAndValidate binds the JSON payload into dest and runs struct validation rules.
// When validation fails, an error response is automatically written and false is returned.
func bindAndValidate[T any](c *gin.Context, dest *T) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.NewBadRequest("invalid JSON payload"))
		return false
	}
	return validatePayload(c, dest)
}

// bindFormOrJSON accepts multipart and urlencoded forms as well as JSON.
func bindFormOrJSON[T any](c *gin.Context, dest *T) bool {
	if strings.HasPrefix(c.ContentType(), "application/json") {
		return bindAndValidate(c, dest)
	}
	if err := c.ShouldBind(dest); err != nil {
		response.Error(c, appErrors.NewBadRequest("invalid form payload"))
		return false
	}
	return validatePayload(c, dest)
}

func validatePayload(c *gin.Context, dest any) bool {
	err := appValidator.ValidateStruct(dest)
	if err == nil {
		return true
	}
	var failures appValidator.ValidationErrors
	if errors.As(err, &failures) {
		response.Error(c, failures.AppError())
	} else {
		response.Error(c, appErrors.NewBadRequest("invalid request payload"))
	}
	return false
}

func parseIntQuery(c *gin.Context, key string, fallback int) int {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

// parseDate reads an optional YYYY-MM-DD value.
func parseDate(field, value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	parsed, err := time.Parse(dateLayout, value)
	if err != nil {
		return nil, appErrors.NewValidation(field, field+" must be a date in YYYY-MM-DD format")
	}
	return &parsed, nil
}

// parseAmount reads an optional non-negative number. Blank means unset.
func parseAmount(field, value string) (*float64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(parsed) || math.IsInf(parsed, 0) {
		return nil, appErrors.NewValidation(field, field+" must be a number")
	}
	return &parsed, nil
}

func parseRating(value string) (*int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return nil, appErrors.NewValidation("rating", "rating must be a whole number")
	}
	return &parsed, nil
}
