package authapi

import (
	"net/http"
	"strings"
)

// Config controls auth API transport behavior.
type Config struct {
	// TrustProxy honors X-Forwarded-For / X-Real-IP for client IPs.
	TrustProxy   bool
	MaxBodyBytes int64

	RefreshCookieName string
	CookiePath        string
	CookieDomain      string
	// CookieSecure marks the refresh cookie Secure (production).
	CookieSecure   bool
	CookieSameSite http.SameSite
}

func DefaultConfig() Config {
	return Config{
		MaxBodyBytes:      1 << 20,
		RefreshCookieName: "refreshToken",
		CookiePath:        "/",
		CookieSameSite:    http.SameSiteLaxMode,
	}
}

func (c Config) normalized() Config {
	def := DefaultConfig()
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = def.MaxBodyBytes
	}
	if strings.TrimSpace(c.RefreshCookieName) == "" {
		c.RefreshCookieName = def.RefreshCookieName
	}
	if strings.TrimSpace(c.CookiePath) == "" {
		c.CookiePath = def.CookiePath
	}
	if c.CookieSameSite == 0 {
		c.CookieSameSite = def.CookieSameSite
	}
	return c
}
