package session

import "errors"

var (
	// ErrInvalidToken is returned when a token fails signature, claim or expiry checks.
	ErrInvalidToken = errors.New("invalid token")

	// ErrSessionNotFound is returned when an update targets a missing session.
	ErrSessionNotFound = errors.New("session not found")

	// ErrUserNotFound aborts session creation for an unknown user.
	ErrUserNotFound = errors.New("user not found")

	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid config")
)
