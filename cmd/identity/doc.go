// Package identity owns user accounts: registration, lookup by email or id,
// and password hashing policy. Sessions live in cmd/internal/auth/session.
package identity
