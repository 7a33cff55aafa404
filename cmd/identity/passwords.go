package identity

import "taskmanager/cmd/security/password"

// Passwords binds a password.Config to account operations.
type Passwords struct {
	cfg   password.Config
	decoy *password.Decoy
}

func NewPasswords(cfg password.Config) *Passwords {
	return &Passwords{cfg: cfg, decoy: password.NewDecoy(cfg)}
}

// Validate enforces the registration policy.
func (p *Passwords) Validate(plain string) error {
	return p.cfg.Validate(plain)
}

func (p *Passwords) Hash(plain string) (string, error) {
	return p.cfg.Hash(plain)
}

// Verify reports a match. Malformed stored hashes never match.
func (p *Passwords) Verify(encoded, plain string) bool {
	return p.cfg.Matches(encoded, plain)
}

// VerifyDummy costs the same as a wrong password for an unknown email.
func (p *Passwords) VerifyDummy(plain string) {
	p.decoy.Burn(plain)
}
