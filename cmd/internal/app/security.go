package app

import (
	"errors"
	"fmt"

	"taskmanager/cmd/security/token"
)

// ValidateSecurityConfig fails fast on weak or missing secrets at startup.
// Signing secrets are checked by the same type that signs tokens.
func ValidateSecurityConfig(cfg Config) error {
	if err := cfg.SessionConfig().Validate(); err != nil {
		return fmt.Errorf("security policy: TASKS_JWT_ACCESS_SECRET/TASKS_JWT_REFRESH_SECRET: %w", err)
	}

	if cfg.Production() && !cfg.CookieSecure {
		return errors.New("security policy: TASKS_COOKIE_SECURE must be true when TASKS_ENV=production")
	}

	if !cfg.RequireTokenHMAC {
		return nil
	}

	// Bytes, not runes: the key is used raw.
	if _, err := token.ValidateHMACKey(cfg.TokenHMACKey, token.MinHMACKeyBytes); err != nil {
		switch {
		case errors.Is(err, token.ErrHMACKeyMissing):
			return errors.New("security policy: TASKS_REQUIRE_TOKEN_HMAC=true but TASKS_TOKEN_HMAC_KEY is missing")
		case errors.Is(err, token.ErrHMACKeyTooShort):
			return fmt.Errorf("security policy: TASKS_REQUIRE_TOKEN_HMAC=true but TASKS_TOKEN_HMAC_KEY is too short (min %d bytes)", token.MinHMACKeyBytes)
		default:
			return err
		}
	}
	return nil
}
