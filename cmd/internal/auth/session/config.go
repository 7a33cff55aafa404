package session

import (
	"fmt"
	"strings"
	"time"
)

// MinSecretBytes is the shortest accepted HS256 secret.
const MinSecretBytes = 32

// Config holds token signing and lifetime settings.
type Config struct {
	Issuer string `mapstructure:"issuer"`

	// AccessSecret and RefreshSecret must differ so that a refresh token can
	// never pass access verification and vice versa.
	AccessSecret  string `mapstructure:"access_secret"`
	RefreshSecret string `mapstructure:"refresh_secret"`

	AccessTokenTTL  time.Duration `mapstructure:"access_ttl"`
	RefreshTokenTTL time.Duration `mapstructure:"refresh_ttl"`

	// ClockSkew is tolerated on exp/iat checks.
	ClockSkew time.Duration `mapstructure:"clock_skew"`
}

func DefaultConfig() Config {
	return Config{
		Issuer:          "taskmanager",
		AccessTokenTTL:  900 * time.Second,
		RefreshTokenTTL: 604800 * time.Second,
	}
}

// Validate checks secrets and lifetimes. Errors wrap ErrConfig.
func (c Config) Validate() error {
	access := strings.TrimSpace(c.AccessSecret)
	refresh := strings.TrimSpace(c.RefreshSecret)

	switch {
	case access == "" || refresh == "":
		return fmt.Errorf("%w: access and refresh secrets are required", ErrConfig)
	case len(access) < MinSecretBytes || len(refresh) < MinSecretBytes:
		return fmt.Errorf("%w: secrets must be at least %d bytes", ErrConfig, MinSecretBytes)
	case access == refresh:
		return fmt.Errorf("%w: access and refresh secrets must differ", ErrConfig)
	case c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0:
		return fmt.Errorf("%w: token lifetimes must be positive", ErrConfig)
	case c.AccessTokenTTL >= c.RefreshTokenTTL:
		return fmt.Errorf("%w: access lifetime must be shorter than refresh lifetime", ErrConfig)
	case c.ClockSkew < 0:
		return fmt.Errorf("%w: clock skew must not be negative", ErrConfig)
	}
	return nil
}
