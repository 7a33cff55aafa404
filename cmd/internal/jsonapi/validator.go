package jsonapi

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Messages maps "field.tag" (json field name) to a user-facing message.
type Messages map[string]string

// Validator wraps validator/v10 with JSON field names.
type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return strings.ToLower(fld.Name)
		}
		return name
	})

	return &Validator{validate: v}
}

// Struct validates s. It returns nil or a *ValidationError; other errors
// (a non-struct argument) are programming errors and are returned as-is.
func (v *Validator) Struct(s any, msgs Messages) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	out := &ValidationError{}
	seen := map[string]bool{}
	for _, fe := range verrs {
		field := fe.Field()
		// First failure per field, like a schema parser stopping at the first issue.
		if seen[field] {
			continue
		}
		seen[field] = true
		out.Add(field, message(fe, msgs))
	}
	return out
}

func message(fe validator.FieldError, msgs Messages) string {
	field := fe.Field()
	if m, ok := msgs[field+"."+fe.Tag()]; ok {
		return m
	}

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return "Invalid email format"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed validation for %s", field, fe.Tag())
	}
}

// Var validates a single value against tag and records the first failure on
// ve under field. It reports whether value passed.
func (v *Validator) Var(ve *ValidationError, field string, value any, tag string, msgs Messages) bool {
	err := v.validate.Var(value, tag)
	if err == nil {
		return true
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		ve.Add(field, fmt.Sprintf("%s is invalid", field))
		return false
	}
	ve.Add(field, message(namedFieldError{verrs[0], field}, msgs))
	return false
}

// namedFieldError supplies a field name for Var failures, which carry none.
type namedFieldError struct {
	validator.FieldError
	name string
}

func (n namedFieldError) Field() string { return n.name }
