package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	authapi "taskmanager/cmd/internal/auth/api"
	"taskmanager/cmd/internal/auth/session"
	"taskmanager/cmd/internal/ratelimit"
	"taskmanager/cmd/internal/realtime"
	"taskmanager/cmd/security/password"
)

// EnvPrefix prefixes every environment key (TASKS_HTTP_ADDR, ...).
const EnvPrefix = "TASKS"

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	Env       string `mapstructure:"ENV"`
	HTTPAddr  string `mapstructure:"HTTP_ADDR"`
	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`

	ReadHeaderTimeout time.Duration `mapstructure:"HTTP_READ_HEADER_TIMEOUT"`
	ReadTimeout       time.Duration `mapstructure:"HTTP_READ_TIMEOUT"`
	WriteTimeout      time.Duration `mapstructure:"HTTP_WRITE_TIMEOUT"`
	IdleTimeout       time.Duration `mapstructure:"HTTP_IDLE_TIMEOUT"`
	MaxHeaderBytes    int           `mapstructure:"HTTP_MAX_HEADER_BYTES"`
	ShutdownTimeout   time.Duration `mapstructure:"HTTP_SHUTDOWN_TIMEOUT"`

	DatabaseURL   string `mapstructure:"DATABASE_URL"`
	DBMaxConns    int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns    int32  `mapstructure:"DB_MIN_CONNS"`
	DBAutoMigrate bool   `mapstructure:"DB_AUTO_MIGRATE"`

	// If true, /readyz returns 503 unless the DB is configured and reachable.
	ReadinessRequireDB bool `mapstructure:"READINESS_REQUIRE_DB"`

	JWTAccessSecret  string `mapstructure:"JWT_ACCESS_SECRET"`
	JWTRefreshSecret string `mapstructure:"JWT_REFRESH_SECRET"`
	JWTIssuer        string `mapstructure:"JWT_ISSUER"`
	// Token lifetimes are whole seconds.
	AccessTokenTTL  int `mapstructure:"ACCESS_TOKEN_TTL"`
	RefreshTokenTTL int `mapstructure:"REFRESH_TOKEN_TTL"`

	TokenHMACKey string `mapstructure:"TOKEN_HMAC_KEY"`
	// If true, TOKEN_HMAC_KEY must be set (>= 32 bytes) and refresh-token hashing is keyed.
	RequireTokenHMAC bool `mapstructure:"REQUIRE_TOKEN_HMAC"`
	BcryptCost       int  `mapstructure:"BCRYPT_COST"`

	CookieSecure bool  `mapstructure:"COOKIE_SECURE"`
	TrustProxy   bool  `mapstructure:"TRUST_PROXY"`
	MaxBodyBytes int64 `mapstructure:"MAX_BODY_BYTES"`

	CORSAllowedOrigins   []string `mapstructure:"CORS_ALLOWED_ORIGINS"`
	CORSAllowCredentials bool     `mapstructure:"CORS_ALLOW_CREDENTIALS"`
	CORSMaxAgeSeconds    int      `mapstructure:"CORS_MAX_AGE"`

	RedisURL        string        `mapstructure:"REDIS_URL"`
	LoginRateLimit  int           `mapstructure:"LOGIN_RATE_LIMIT"`
	LoginRateWindow time.Duration `mapstructure:"LOGIN_RATE_WINDOW"`

	WSAllowedOrigins []string `mapstructure:"WS_ALLOWED_ORIGINS"`
	WSOriginRequired bool     `mapstructure:"WS_ORIGIN_REQUIRED"`

	Argon2MemoryKiB   uint32 `mapstructure:"ARGON2_MEMORY_KIB"`
	Argon2Iterations  uint32 `mapstructure:"ARGON2_ITERATIONS"`
	Argon2Parallelism uint8  `mapstructure:"ARGON2_PARALLELISM"`

	PasswordMinLen     int  `mapstructure:"PASSWORD_MIN_LEN"`
	PasswordMaxLen     int  `mapstructure:"PASSWORD_MAX_LEN"`
	PasswordRejectWeak bool `mapstructure:"PASSWORD_REJECT_WEAK"`
}

func setDefaults(v *viper.Viper) {
	pw := password.DefaultConfig()
	sess := session.DefaultConfig()
	ws := realtime.DefaultConfig()

	v.SetDefault("ENV", "development")
	v.SetDefault("HTTP_ADDR", "0.0.0.0:8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("HTTP_READ_HEADER_TIMEOUT", 5*time.Second)
	v.SetDefault("HTTP_READ_TIMEOUT", 15*time.Second)
	v.SetDefault("HTTP_WRITE_TIMEOUT", 15*time.Second)
	v.SetDefault("HTTP_IDLE_TIMEOUT", 60*time.Second)
	v.SetDefault("HTTP_MAX_HEADER_BYTES", 1<<20)
	v.SetDefault("HTTP_SHUTDOWN_TIMEOUT", 10*time.Second)

	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 0)
	v.SetDefault("DB_AUTO_MIGRATE", true)
	v.SetDefault("READINESS_REQUIRE_DB", false)

	v.SetDefault("JWT_ACCESS_SECRET", "")
	v.SetDefault("JWT_REFRESH_SECRET", "")
	v.SetDefault("JWT_ISSUER", sess.Issuer)
	v.SetDefault("ACCESS_TOKEN_TTL", int(sess.AccessTokenTTL/time.Second))
	v.SetDefault("REFRESH_TOKEN_TTL", int(sess.RefreshTokenTTL/time.Second))

	v.SetDefault("TOKEN_HMAC_KEY", "")
	v.SetDefault("REQUIRE_TOKEN_HMAC", false)
	v.SetDefault("BCRYPT_COST", 10)

	v.SetDefault("COOKIE_SECURE", false)
	v.SetDefault("TRUST_PROXY", false)
	v.SetDefault("MAX_BODY_BYTES", authapi.DefaultConfig().MaxBodyBytes)

	v.SetDefault("CORS_ALLOWED_ORIGINS", "")
	v.SetDefault("CORS_ALLOW_CREDENTIALS", true)
	v.SetDefault("CORS_MAX_AGE", 600)

	v.SetDefault("REDIS_URL", "")
	v.SetDefault("LOGIN_RATE_LIMIT", 10)
	v.SetDefault("LOGIN_RATE_WINDOW", time.Minute)

	v.SetDefault("WS_ALLOWED_ORIGINS", strings.Join(ws.AllowedOrigins, ","))
	v.SetDefault("WS_ORIGIN_REQUIRED", ws.OriginRequired)

	v.SetDefault("ARGON2_MEMORY_KIB", pw.Params.MemoryKiB)
	v.SetDefault("ARGON2_ITERATIONS", pw.Params.Iterations)
	v.SetDefault("ARGON2_PARALLELISM", pw.Params.Parallelism)

	v.SetDefault("PASSWORD_MIN_LEN", pw.Policy.MinLength)
	v.SetDefault("PASSWORD_MAX_LEN", pw.Policy.MaxLength)
	v.SetDefault("PASSWORD_REJECT_WEAK", pw.Policy.RejectVeryWeak)
}

// LoadConfig builds Config from TASKS_* environment variables with defaults.
// Callers load .env files beforehand; real env vars win.
func LoadConfig() (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	cfg.CORSAllowedOrigins = splitList(cfg.CORSAllowedOrigins)
	cfg.WSAllowedOrigins = splitList(cfg.WSAllowedOrigins)

	if strings.TrimSpace(cfg.HTTPAddr) == "" {
		return Config{}, errors.New("config: TASKS_HTTP_ADDR must be set")
	}
	if cfg.Production() {
		cfg.CookieSecure = true
	}
	return cfg, nil
}

// splitList flattens comma-separated entries and drops blanks.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, p := range strings.Split(item, ",") {
			if s := strings.TrimSpace(p); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

// Production reports whether ENV=production.
func (c Config) Production() bool {
	return strings.EqualFold(strings.TrimSpace(c.Env), "production")
}

func (c Config) SessionConfig() session.Config {
	sc := session.DefaultConfig()
	if s := strings.TrimSpace(c.JWTIssuer); s != "" {
		sc.Issuer = s
	}
	sc.AccessSecret = c.JWTAccessSecret
	sc.RefreshSecret = c.JWTRefreshSecret
	if c.AccessTokenTTL > 0 {
		sc.AccessTokenTTL = time.Duration(c.AccessTokenTTL) * time.Second
	}
	if c.RefreshTokenTTL > 0 {
		sc.RefreshTokenTTL = time.Duration(c.RefreshTokenTTL) * time.Second
	}
	return sc
}

func (c Config) AuthConfig() authapi.Config {
	ac := authapi.DefaultConfig()
	ac.TrustProxy = c.TrustProxy
	ac.CookieSecure = c.CookieSecure
	if c.MaxBodyBytes > 0 {
		ac.MaxBodyBytes = c.MaxBodyBytes
	}
	return ac
}

func (c Config) PasswordConfig() password.Config {
	pc := password.DefaultConfig()
	if c.Argon2MemoryKiB > 0 {
		pc.Params.MemoryKiB = c.Argon2MemoryKiB
	}
	if c.Argon2Iterations > 0 {
		pc.Params.Iterations = c.Argon2Iterations
	}
	if c.Argon2Parallelism > 0 {
		pc.Params.Parallelism = c.Argon2Parallelism
	}
	if c.PasswordMinLen > 0 {
		pc.Policy.MinLength = c.PasswordMinLen
	}
	if c.PasswordMaxLen > 0 {
		pc.Policy.MaxLength = c.PasswordMaxLen
	}
	pc.Policy.RejectVeryWeak = c.PasswordRejectWeak
	return pc
}

func (c Config) WSConfig() realtime.Config {
	wc := realtime.DefaultConfig()
	wc.OriginRequired = c.WSOriginRequired
	if len(c.WSAllowedOrigins) > 0 {
		wc.AllowedOrigins = c.WSAllowedOrigins
	}
	return wc
}

func (c Config) LoginPolicy() ratelimit.Policy {
	return ratelimit.Policy{Limit: c.LoginRateLimit, Window: c.LoginRateWindow}
}
