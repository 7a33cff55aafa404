package identity

import (
	"context"
	"sync"
	"time"

	"taskmanager/cmd/identity/ids"
)

// MemoryStore is a process-local Store for development without a database.
type MemoryStore struct {
	passwords *Passwords

	mu      sync.RWMutex
	byID    map[string]*User
	byEmail map[string]string
}

func NewMemoryStore(passwords *Passwords) *MemoryStore {
	return &MemoryStore{
		passwords: passwords,
		byID:      make(map[string]*User),
		byEmail:   make(map[string]string),
	}
}

func (m *MemoryStore) CreateUser(ctx context.Context, in CreateUserInput) (User, error) {
	const op = "identity.CreateUser"

	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	email := NormalizeEmail(in.Email)
	if email == "" {
		return User{}, invalid(op, "email", errRequired)
	}
	if in.Password == "" {
		return User{}, invalid(op, "password", errRequired)
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	// Hash outside the lock; Argon2id is deliberately slow.
	hash, err := m.passwords.Hash(in.Password)
	if err != nil {
		return User{}, invalid(op, "password", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byEmail[email]; exists {
		return User{}, conflict(op, "email")
	}

	u := &User{
		ID:           ids.NewUUID(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	m.byID[u.ID] = u
	m.byEmail[email] = u.ID
	return *u, nil
}

func (m *MemoryStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	const op = "identity.GetUserByEmail"

	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byEmail[NormalizeEmail(email)]
	if !ok {
		return User{}, userNotFound(op)
	}
	return *m.byID[id], nil
}

func (m *MemoryStore) GetUserByID(ctx context.Context, id string) (User, error) {
	const op = "identity.GetUserByID"

	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.byID[id]
	if !ok {
		return User{}, userNotFound(op)
	}
	return *u, nil
}

// TouchLastLogin records a successful login. The session memory store calls
// it so that both stores observe the same account state.
func (m *MemoryStore) TouchLastLogin(userID string, now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.byID[userID]
	if !ok {
		return false
	}
	t := now
	u.LastLoginAt = &t
	u.UpdatedAt = now
	return true
}
