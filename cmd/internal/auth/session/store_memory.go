package session

import (
	"context"
	"sort"
	"sync"
	"time"
)

// LastLoginRecorder is the account side of the memory unit of work.
type LastLoginRecorder interface {
	TouchLastLogin(userID string, now time.Time) bool
}

// MemoryStore is a process-local Store for development without a database.
type MemoryStore struct {
	users LastLoginRecorder

	mu   sync.Mutex
	rows map[string]Row
}

func NewMemoryStore(users LastLoginRecorder) *MemoryStore {
	return &MemoryStore{users: users, rows: make(map[string]Row)}
}

type memTouch struct {
	userID string
	now    time.Time
}

// memTx stages writes; they are applied only if fn succeeds.
type memTx struct {
	touches []memTouch
	inserts []Row
}

func (t *memTx) TouchLastLogin(ctx context.Context, now time.Time, userID string) error {
	t.touches = append(t.touches, memTouch{userID: userID, now: now})
	return ctx.Err()
}

func (t *memTx) Insert(ctx context.Context, row Row) error {
	t.inserts = append(t.inserts, row)
	return ctx.Err()
}

func (m *MemoryStore) WithinTx(ctx context.Context, fn func(Tx) error) error {
	tx := &memTx{}
	if err := fn(tx); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, tt := range tx.touches {
		if m.users == nil || !m.users.TouchLastLogin(tt.userID, tt.now) {
			return ErrUserNotFound
		}
	}
	for _, r := range tx.inserts {
		m.rows[r.ID] = r
	}
	return nil
}

func (m *MemoryStore) GetByID(ctx context.Context, id string) (Row, error) {
	if err := ctx.Err(); err != nil {
		return Row{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rows[id]
	if !ok {
		return Row{}, ErrSessionNotFound
	}
	return r, nil
}

func (m *MemoryStore) ListUnrevoked(ctx context.Context, userID string) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Row
	for _, r := range m.rows {
		if r.UserID == userID && r.RevokedAt == nil {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) Rotate(ctx context.Context, id string, hash, ip, userAgent string, expiresAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rows[id]
	if !ok {
		return ErrSessionNotFound
	}
	r.RefreshTokenHash = hash
	r.IP = ip
	r.UserAgent = userAgent
	r.ExpiresAt = expiresAt
	m.rows[id] = r
	return nil
}

func (m *MemoryStore) Revoke(ctx context.Context, now time.Time, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rows[id]
	if !ok || r.RevokedAt != nil {
		return false, nil
	}
	t := now
	r.RevokedAt = &t
	m.rows[id] = r
	return true, nil
}
