package token

import (
	"strings"
	"testing"
)

func TestHasher_HashAndVerify(t *testing.T) {
	t.Parallel()

	h := NewHasher(WithCost(4))
	hash, err := h.Hash("refresh-token-value")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if strings.Contains(hash, "refresh-token-value") {
		t.Fatalf("hash leaks token")
	}
	if !h.Verify("refresh-token-value", hash) {
		t.Fatalf("expected match")
	}
	if h.Verify("other-token", hash) {
		t.Fatalf("expected mismatch")
	}
	if h.Verify("refresh-token-value", "not-a-bcrypt-hash") {
		t.Fatalf("malformed hash must not match")
	}
}

func TestHasher_SaltedHashesDiffer(t *testing.T) {
	t.Parallel()

	h := NewHasher(WithCost(4))
	a, _ := h.Hash("same")
	b, _ := h.Hash("same")
	if a == b {
		t.Fatalf("expected distinct salted hashes")
	}
}

func TestHasher_LongTokensDifferingAfter72Bytes(t *testing.T) {
	t.Parallel()

	h := NewHasher(WithCost(4))
	prefix := strings.Repeat("x", 100)
	hash, err := h.Hash(prefix + "A")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if h.Verify(prefix+"B", hash) {
		t.Fatalf("tokens sharing a long prefix must not collide")
	}
}

func TestHasher_KeyedDiffersFromUnkeyed(t *testing.T) {
	t.Parallel()

	keyed := NewHasher(WithCost(4), WithHMACKey([]byte(strings.Repeat("k", 32))))
	plain := NewHasher(WithCost(4))
	if !keyed.Keyed() || plain.Keyed() {
		t.Fatalf("Keyed() mismatch")
	}

	hash, err := keyed.Hash("tok")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if plain.Verify("tok", hash) {
		t.Fatalf("unkeyed hasher must not verify a keyed hash")
	}
	if !keyed.Verify("tok", hash) {
		t.Fatalf("keyed hasher must verify its own hash")
	}
}

func TestHasher_EmptyToken(t *testing.T) {
	t.Parallel()

	if _, err := NewHasher().Hash(""); err != ErrEmptyToken {
		t.Fatalf("expected ErrEmptyToken, got %v", err)
	}
}

func TestValidateHMACKey(t *testing.T) {
	t.Parallel()

	if _, err := ValidateHMACKey("  ", MinHMACKeyBytes); err != ErrHMACKeyMissing {
		t.Fatalf("expected ErrHMACKeyMissing, got %v", err)
	}
	if _, err := ValidateHMACKey("short", MinHMACKeyBytes); err != ErrHMACKeyTooShort {
		t.Fatalf("expected ErrHMACKeyTooShort, got %v", err)
	}
	k, err := ValidateHMACKey(" "+strings.Repeat("a", 32)+" ", MinHMACKeyBytes)
	if err != nil || len(k) != 32 {
		t.Fatalf("expected trimmed 32-byte key, got %d %v", len(k), err)
	}
}

func TestHashHex(t *testing.T) {
	t.Parallel()

	if got := HashSHA256Hex("abc"); got != "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad" {
		t.Fatalf("sha256 mismatch: %s", got)
	}
	if len(HashHMACSHA256Hex("abc", []byte("k"))) != 64 {
		t.Fatalf("hmac hex length mismatch")
	}
}
