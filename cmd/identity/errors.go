package identity

import (
	"errors"
	"strings"
)

// Error kinds, stable for errors.Is and for mapping to API status codes.
var (
	ErrInvalidInput = errors.New("invalid_input")
	ErrNotFound     = errors.New("not_found")
	ErrConflict     = errors.New("conflict")

	errRequired = errors.New("required")
)

// Error is the one error type the user stores return.
// Field names the offending input ("email", "password") when there is one;
// Err keeps the underlying cause, e.g. a password policy error.
type Error struct {
	Op    string
	Kind  error
	Field string
	Err   error
}

func (e *Error) Error() string {
	parts := []string{e.Op, e.Kind.Error()}
	if e.Field != "" {
		parts = append(parts, e.Field)
	}
	if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}
	return strings.Join(parts, ": ")
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func invalid(op, field string, cause error) error {
	return &Error{Op: op, Kind: ErrInvalidInput, Field: field, Err: cause}
}

func conflict(op, field string) error {
	return &Error{Op: op, Kind: ErrConflict, Field: field}
}

func userNotFound(op string) error {
	return &Error{Op: op, Kind: ErrNotFound, Field: "user"}
}

func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

func IsInvalidInput(err error) bool { return errors.Is(err, ErrInvalidInput) }

// FieldOf returns the offending field of an identity error, or "".
func FieldOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Field
	}
	return ""
}
