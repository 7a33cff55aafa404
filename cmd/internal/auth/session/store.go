package session

import (
	"context"
	"time"
)

// Row mirrors a sessions row.
type Row struct {
	ID               string
	UserID           string
	RefreshTokenHash string
	IP               string
	UserAgent        string
	ExpiresAt        time.Time
	RevokedAt        *time.Time
	CreatedAt        time.Time
}

// Valid reports revoked_at IS NULL AND now < expires_at.
func (r Row) Valid(now time.Time) bool {
	return r.RevokedAt == nil && now.Before(r.ExpiresAt)
}

// Tx is the unit of work used by session creation.
type Tx interface {
	// TouchLastLogin sets users.last_login_at; ErrUserNotFound if no such user.
	TouchLastLogin(ctx context.Context, now time.Time, userID string) error
	Insert(ctx context.Context, row Row) error
}

// Store abstracts persistence for session state.
type Store interface {
	// WithinTx runs fn in one transaction; any error rolls everything back.
	WithinTx(ctx context.Context, fn func(Tx) error) error

	GetByID(ctx context.Context, id string) (Row, error)

	// ListUnrevoked returns the user's sessions with revoked_at IS NULL,
	// newest first. Expired rows are included.
	ListUnrevoked(ctx context.Context, userID string) ([]Row, error)

	// Rotate overwrites hash, ip, user agent and expiry of one session.
	// It never touches revoked_at. ErrSessionNotFound if no row matched.
	Rotate(ctx context.Context, id string, hash, ip, userAgent string, expiresAt time.Time) error

	// Revoke sets revoked_at if still NULL and reports whether it did.
	Revoke(ctx context.Context, now time.Time, id string) (bool, error)
}
