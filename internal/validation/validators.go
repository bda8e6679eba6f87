package validation

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/pmarkell/routine-scheduler/internal/models"
)

var (
	// Validate is a shared validator instance
	Validate *validator.Validate
)

func init() {
	Validate = validator.New()

	// Register custom validators for registry fields
	// These should never fail in normal operation, but panic loudly if they do
	if err := Validate.RegisterValidation("weekday", validateWeekday); err != nil {
		panic(fmt.Sprintf("failed to register weekday validator: %v", err))
	}
	if err := Validate.RegisterValidation("clock", validateClock); err != nil {
		panic(fmt.Sprintf("failed to register clock validator: %v", err))
	}
}

// validateWeekday validates that a string is one of the weekday short-codes
func validateWeekday(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	for _, code := range models.WeekdayCodes {
		if value == code {
			return true
		}
	}
	return false
}

// validateClock validates that a string is a parseable HH:MM wall-clock time
func validateClock(fl validator.FieldLevel) bool {
	_, _, err := models.ParseClock(fl.Field().String())
	return err == nil
}

// ValidateWeekday validates a weekday short-code value
func ValidateWeekday(value string) error {
	for _, code := range models.WeekdayCodes {
		if value == code {
			return nil
		}
	}
	return fmt.Errorf("invalid weekday: %s (must be one of %v)", value, models.WeekdayCodes)
}

// ValidateClock validates an HH:MM wall-clock value
func ValidateClock(value string) error {
	if _, _, err := models.ParseClock(value); err != nil {
		return fmt.Errorf("invalid time: %w", err)
	}
	return nil
}
