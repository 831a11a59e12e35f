// Package validation holds the custom struct validation rules shared by the
// socket and HTTP boundaries.
package validation

import (
	"regexp"
	"slices"

	"github.com/go-playground/validator/v10"
)

var handlePattern = regexp.MustCompile(`^[A-Za-z0-9_]{1,20}$`)

// ReasonCodes are the accepted challenge reasons.
var ReasonCodes = []string{"too_harsh", "too_lenient", "off_topic", "other"}

// New returns a validator with the custom rules registered.
func New() (*validator.Validate, error) {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := Register(v); err != nil {
		return nil, err
	}
	return v, nil
}

// Register adds the "handle" rule (1-20 letters, digits or underscores) and
// the "reason" rule (one of ReasonCodes).
func Register(v *validator.Validate) error {
	if err := v.RegisterValidation("handle", func(fl validator.FieldLevel) bool {
		return handlePattern.MatchString(fl.Field().String())
	}); err != nil {
		return err
	}
	return v.RegisterValidation("reason", func(fl validator.FieldLevel) bool {
		return slices.Contains(ReasonCodes, fl.Field().String())
	})
}
