package tasks

import (
	"context"
	"time"
)

// Store persists tasks. Every method is scoped to one user and ignores
// soft-deleted rows; a task of another user is reported as ErrNotFound.
type Store interface {
	Insert(ctx context.Context, t Task) error
	Get(ctx context.Context, userID, id string) (Task, error)
	Update(ctx context.Context, userID, id string, ch Changes, now time.Time) (Task, error)
	SoftDelete(ctx context.Context, userID, id string, now time.Time) error
	// List returns one page ordered by created_at ascending plus the total
	// number of matching rows.
	List(ctx context.Context, f Filter) ([]Task, int, error)
	// Stats counts live tasks; overdue means open and due before today.
	Stats(ctx context.Context, userID string, today time.Time) (Stats, error)
}
