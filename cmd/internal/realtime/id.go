package realtime

import (
	"time"

	"taskmanager/cmd/identity/ids"
)

// NewConnID returns a ULID naming one websocket connection in logs.
func NewConnID(now time.Time) (string, error) {
	return ids.NewULID(now)
}
