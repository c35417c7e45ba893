package binder

import (
	"regexp"

	"github.com/go-playground/validator/v10"
	"github.com/taletunes/taletunes/pkg/models"
)

var codeRE = regexp.MustCompile(`^[A-Z0-9]+$`)

// categoryValidator only accepts one of the fixed audiobook categories. An
// empty value passes so that optional fields can use it; pair it with
// `required` otherwise.
func categoryValidator(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	return models.IsValidCategory(value)
}

// codeValidator accepts uppercase alphanumeric share codes.
func codeValidator(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	return codeRE.MatchString(value)
}
