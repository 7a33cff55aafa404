package identity

import (
	"context"
	"time"
)

// User is an account. Email is stored normalized.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	LastLoginAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CreateUserInput carries the plain password; stores hash it with their
// configured password policy and never persist the plain value.
type CreateUserInput struct {
	Email    string
	Password string
	Now      time.Time
}

// Store is the account persistence boundary.
type Store interface {
	CreateUser(ctx context.Context, in CreateUserInput) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	GetUserByID(ctx context.Context, id string) (User, error)
}
