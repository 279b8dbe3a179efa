package models

import (
	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks a model value against its struct validation tags.
func Validate(v any) error {
	return validate.Struct(v)
}
