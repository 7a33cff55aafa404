package identity

import (
	"testing"

	"taskmanager/cmd/security/password"
)

// fastPasswords keeps Argon2id cheap in tests.
func fastPasswords(t *testing.T) *Passwords {
	t.Helper()

	cfg := password.DefaultConfig()
	cfg.Params.MemoryKiB = 8 * 1024
	cfg.Params.Iterations = 1
	cfg.Params.Parallelism = 1
	return NewPasswords(cfg)
}
