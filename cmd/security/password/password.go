package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/argon2"
)

var b64 = base64.RawStdEncoding

// phc is one decoded $argon2id$v=19$m=..,t=..,p=..$salt$key string.
type phc struct {
	params Argon2idParams
	salt   []byte
	key    []byte
}

func (h phc) String() string {
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.MemoryKiB,
		h.params.Iterations,
		h.params.Parallelism,
		b64.EncodeToString(h.salt),
		b64.EncodeToString(h.key),
	)
}

func derive(plain string, salt []byte, p Argon2idParams, keyLen uint32) []byte {
	return argon2.IDKey([]byte(plain), salt, p.Iterations, p.MemoryKiB, p.Parallelism, keyLen)
}

// Hash applies the registration policy, then returns a PHC-encoded Argon2id hash.
func (c Config) Hash(plain string) (string, error) {
	if err := c.Validate(plain); err != nil {
		return "", err
	}
	return c.hash(plain)
}

func (c Config) hash(plain string) (string, error) {
	salt := make([]byte, c.Params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("password: salt: %w", err)
	}
	h := phc{
		params: c.Params,
		salt:   salt,
		key:    derive(plain, salt, c.Params, c.Params.KeyLength),
	}
	return h.String(), nil
}

// Verify reports whether plain matches encoded. A malformed hash, or one whose
// cost is far above the configured params, yields ErrInvalidHash.
func (c Config) Verify(encoded, plain string) (bool, error) {
	h, err := parsePHC(encoded)
	if err != nil {
		return false, err
	}
	if h.params.exceeds(c.Params) {
		return false, ErrInvalidHash
	}
	// #nosec G115 -- key length is bounded by parsePHC.
	got := derive(plain, h.salt, h.params, uint32(len(h.key)))
	return subtle.ConstantTimeCompare(got, h.key) == 1, nil
}

// Matches is Verify for login: a malformed stored hash never matches.
func (c Config) Matches(encoded, plain string) bool {
	ok, err := c.Verify(encoded, plain)
	return err == nil && ok
}

// exceeds reports a stored cost more than twice the configured one.
// Older, cheaper hashes stay verifiable.
func (p Argon2idParams) exceeds(limit Argon2idParams) bool {
	return p.MemoryKiB > limit.MemoryKiB*2 ||
		p.Iterations > limit.Iterations*2 ||
		p.Parallelism > limit.Parallelism*2
}

func parsePHC(encoded string) (phc, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return phc{}, ErrInvalidHash
	}
	if parts[2] != fmt.Sprintf("v=%d", argon2.Version) {
		return phc{}, ErrInvalidHash
	}

	var mem, iter, par uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &mem, &iter, &par); err != nil {
		return phc{}, ErrInvalidHash
	}
	if mem == 0 || iter == 0 || par == 0 || par > 255 {
		return phc{}, ErrInvalidHash
	}

	salt, err := b64.DecodeString(parts[4])
	if err != nil || len(salt) < 8 || len(salt) > 64 {
		return phc{}, ErrInvalidHash
	}
	key, err := b64.DecodeString(parts[5])
	if err != nil || len(key) < 16 || len(key) > 128 {
		return phc{}, ErrInvalidHash
	}

	return phc{
		params: Argon2idParams{
			MemoryKiB:   mem,
			Iterations:  iter,
			Parallelism: uint8(par),        // #nosec G115 -- checked <= 255 above.
			SaltLength:  uint32(len(salt)), // #nosec G115 -- at most 64.
			KeyLength:   uint32(len(key)),  // #nosec G115 -- at most 128.
		},
		salt: salt,
		key:  key,
	}, nil
}

// Decoy holds a throwaway hash used to make logins for unknown emails
// cost one full verification, like a wrong password does.
type Decoy struct {
	cfg  Config
	once sync.Once
	hash string
}

func NewDecoy(cfg Config) *Decoy {
	return &Decoy{cfg: cfg}
}

// Burn verifies plain against the decoy hash and discards the result.
func (d *Decoy) Burn(plain string) {
	d.once.Do(func() {
		// The decoy bypasses the policy; only its cost matters.
		if h, err := d.cfg.hash("decoy:unknown-account"); err == nil {
			d.hash = h
		}
	})
	if d.hash == "" {
		return
	}
	_ = d.cfg.Matches(d.hash, plain)
}
