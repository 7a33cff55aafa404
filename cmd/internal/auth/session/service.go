package session

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"taskmanager/cmd/identity/ids"
)

const (
	maxIPLen        = 45
	maxUserAgentLen = 500
)

// TokenHasher is the one-way hash used for stored refresh tokens.
type TokenHasher interface {
	Hash(token string) (string, error)
	Verify(token, hash string) bool
}

// ClientInfo is the request context recorded on a session.
type ClientInfo struct {
	IP        string
	UserAgent string
}

// Manager implements create, find, refresh and revoke over a Store.
type Manager struct {
	store  Store
	hasher TokenHasher
}

func NewManager(store Store, hasher TokenHasher) *Manager {
	return &Manager{store: store, hasher: hasher}
}

// CreateSession records a login: last_login_at and the new session row are
// written in one unit of work. Returns the new session id.
func (m *Manager) CreateSession(
	ctx context.Context,
	now time.Time,
	userID string,
	client ClientInfo,
	refreshToken string,
	ttl time.Duration,
) (string, error) {
	if ttl <= 0 {
		return "", fmt.Errorf("session: non-positive ttl")
	}

	hash, err := m.hasher.Hash(refreshToken)
	if err != nil {
		return "", err
	}
	id, err := ids.NewULID(now)
	if err != nil {
		return "", err
	}

	row := Row{
		ID:               id,
		UserID:           userID,
		RefreshTokenHash: hash,
		IP:               clip(client.IP, maxIPLen),
		UserAgent:        clip(client.UserAgent, maxUserAgentLen),
		ExpiresAt:        now.Add(ttl),
		CreatedAt:        now,
	}

	err = m.store.WithinTx(ctx, func(tx Tx) error {
		if err := tx.TouchLastLogin(ctx, now, userID); err != nil {
			return err
		}
		return tx.Insert(ctx, row)
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// FindValidSession returns the unrevoked, unexpired session of userID whose
// stored hash matches candidate. ok=false with a nil error means no match.
func (m *Manager) FindValidSession(ctx context.Context, now time.Time, userID, candidate string) (Row, bool, error) {
	if candidate == "" {
		return Row{}, false, nil
	}
	if _, err := uuid.Parse(userID); err != nil {
		return Row{}, false, nil
	}

	rows, err := m.store.ListUnrevoked(ctx, userID)
	if err != nil {
		return Row{}, false, err
	}
	for _, r := range rows {
		// Skip expired rows before paying for a hash comparison.
		if !r.Valid(now) {
			continue
		}
		if m.hasher.Verify(candidate, r.RefreshTokenHash) {
			return r, true, nil
		}
	}
	return Row{}, false, nil
}

// RefreshSession rotates the stored token of sessionID in place.
func (m *Manager) RefreshSession(
	ctx context.Context,
	now time.Time,
	sessionID string,
	client ClientInfo,
	newRefreshToken string,
	ttl time.Duration,
) error {
	if ttl <= 0 {
		return fmt.Errorf("session: non-positive ttl")
	}

	hash, err := m.hasher.Hash(newRefreshToken)
	if err != nil {
		return err
	}
	return m.store.Rotate(ctx, sessionID, hash,
		clip(client.IP, maxIPLen),
		clip(client.UserAgent, maxUserAgentLen),
		now.Add(ttl),
	)
}

// RevokeSession revokes the session matching token, if it is still valid.
// It reports whether a session was revoked by this call.
func (m *Manager) RevokeSession(ctx context.Context, now time.Time, userID, token string) (bool, error) {
	row, ok, err := m.FindValidSession(ctx, now, userID, token)
	if err != nil || !ok {
		return false, err
	}
	return m.store.Revoke(ctx, now, row.ID)
}

// clip trims s and cuts it to max runes to fit the column width.
func clip(s string, max int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max])
}
