package rating

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// required only rejects the empty string.
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}

// Validate rejects outcomes that can never be applied.
func Validate(o Outcome) error {
	err := validate.Struct(o)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return fmt.Errorf("%w: %s", ErrValidation, describe(fieldErrs[0]))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return fmt.Sprintf("%s is required", fe.Field())
	case "nefield":
		return "a participant cannot play against themselves"
	case "gte":
		return fmt.Sprintf("%s must not be negative", fe.Field())
	case "max":
		return fmt.Sprintf("%s longer than %d characters", fe.Field(), MaxIdempotencyKeyLength)
	}
	return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
}
