package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// MinHMACKeyBytes is the shortest accepted HMAC key.
const MinHMACKeyBytes = 32

// HashSHA256Hex returns a SHA-256 hex digest of s.
func HashSHA256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// HashHMACSHA256Hex returns an HMAC-SHA256 hex digest of s using key.
func HashHMACSHA256Hex(s string, key []byte) string {
	m := hmac.New(sha256.New, key)
	_, _ = m.Write([]byte(s))
	return hex.EncodeToString(m.Sum(nil))
}

// Hasher produces and checks refresh-token hashes.
type Hasher struct {
	key  []byte
	cost int
}

type Option func(*Hasher)

// WithHMACKey enables keyed prehashing.
func WithHMACKey(key []byte) Option {
	return func(h *Hasher) { h.key = key }
}

// WithCost overrides the bcrypt cost (default 10).
func WithCost(cost int) Option {
	return func(h *Hasher) { h.cost = cost }
}

func NewHasher(opts ...Option) *Hasher {
	h := &Hasher{cost: 10}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	if h.cost < bcrypt.MinCost || h.cost > bcrypt.MaxCost {
		h.cost = bcrypt.DefaultCost
	}
	return h
}

// ValidateHMACKey trims raw and enforces presence and minimum length.
func ValidateHMACKey(raw string, minBytes int) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrHMACKeyMissing
	}
	b := []byte(raw)
	if minBytes > 0 && len(b) < minBytes {
		return nil, ErrHMACKeyTooShort
	}
	return b, nil
}

// Keyed reports whether HMAC prehashing is active.
func (h *Hasher) Keyed() bool { return len(h.key) > 0 }

func (h *Hasher) prehash(tok string) string {
	if h.Keyed() {
		return HashHMACSHA256Hex(tok, h.key)
	}
	return HashSHA256Hex(tok)
}

// Hash returns a salted one-way hash of tok.
func (h *Hasher) Hash(tok string) (string, error) {
	if tok == "" {
		return "", ErrEmptyToken
	}
	out, err := bcrypt.GenerateFromPassword([]byte(h.prehash(tok)), h.cost)
	if err != nil {
		return "", fmt.Errorf("bcrypt: %w", err)
	}
	return string(out), nil
}

// Verify reports whether tok matches hash. Malformed hashes never match.
func (h *Hasher) Verify(tok, hash string) bool {
	if tok == "" || hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(h.prehash(tok))) == nil
}
