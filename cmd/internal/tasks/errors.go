package tasks

import "errors"

// ErrNotFound covers missing, foreign, deleted and malformed ids alike.
var ErrNotFound = errors.New("tasks: not found")
