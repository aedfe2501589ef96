package validator

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

// PromptPlaceholder is the substitution point a base prompt template must
// contain exactly once.
const PromptPlaceholder = "{prompt}"

// hasPromptPlaceholder checks that a template string carries the prompt
// substitution point.
func hasPromptPlaceholder(fl validator.FieldLevel) bool {
	return strings.Count(fl.Field().String(), PromptPlaceholder) == 1
}

// RegisterCustomValidators registers custom validation functions with the validator.
func RegisterCustomValidators(validate *validator.Validate) error {
	return validate.RegisterValidation("prompttemplate", hasPromptPlaceholder)
}
