// Package validator wraps go-playground/validator with field names and
// messages suited to API error bodies.
package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

var validate = func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonName)
	// notblank rejects whitespace-only strings, which required accepts.
	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		panic(err)
	}
	return v
}()

// jsonName reports fields by their JSON key so error maps line up with the
// request payload. Untagged fields keep their Go name.
func jsonName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	switch name {
	case "-":
		return ""
	case "":
		return f.Name
	}
	return name
}

// Validate checks s against its `validate` tags. Rule violations come back
// as a *ValidationError; misuse (a non-struct argument) as the raw error.
func Validate(s any) error {
	err := validate.Struct(s)
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		return &ValidationError{Errors: fieldErrs}
	}
	return err
}

// ValidationError lists every rule a value broke.
type ValidationError struct {
	Errors validator.ValidationErrors
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fmt.Sprintf("field '%s' %s", fe.Field(), message(fe))
	}
	return strings.Join(parts, "; ")
}

// Fields maps each offending field to a readable message.
func (e *ValidationError) Fields() map[string]string {
	out := make(map[string]string, len(e.Errors))
	for _, fe := range e.Errors {
		out[fe.Field()] = message(fe)
	}
	return out
}

var messages = map[string]string{
	"required":  "is required",
	"notblank":  "must not be blank",
	"min":       "must be at least %s characters",
	"max":       "must be at most %s characters",
	"gte":       "must be greater than or equal to %s",
	"lte":       "must be less than or equal to %s",
	"oneof":     "must be one of: %s",
	"latitude":  "must be a valid latitude between -90 and 90",
	"longitude": "must be a valid longitude between -180 and 180",
}

func message(fe validator.FieldError) string {
	format, ok := messages[fe.Tag()]
	if !ok {
		return fmt.Sprintf("failed on '%s' validation", fe.Tag())
	}
	if strings.Contains(format, "%s") {
		return fmt.Sprintf(format, fe.Param())
	}
	return format
}
