package realtime

import (
	"time"

	"taskmanager/cmd/internal/tasks"
)

const (
	TypeHello = "hello"
	TypePing  = "ping"
	TypePong  = "pong"
	TypeError = "error"
)

// Envelope is one frame in either direction. Task events carry the task id
// and, except for deletions, the serialized task.
type Envelope struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Task    *tasks.Resource `json:"task,omitempty"`
	Code    string          `json:"code,omitempty"`
	Message string          `json:"message,omitempty"`
	At      time.Time       `json:"at"`
}

func taskEnvelope(ev tasks.Event) Envelope {
	env := Envelope{Type: ev.Type, ID: ev.TaskID, At: ev.At.UTC()}
	if ev.Task != nil {
		r := tasks.Serialize(*ev.Task)
		env.Task = &r
	}
	return env
}
