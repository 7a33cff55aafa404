// Package app wires the taskmanager server runtime: config, logging, metrics,
// persistence, HTTP routes and the realtime gateway.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"taskmanager/cmd/identity"
	authapi "taskmanager/cmd/internal/auth/api"
	"taskmanager/cmd/internal/auth/session"
	"taskmanager/cmd/internal/migrations"
	"taskmanager/cmd/internal/ratelimit"
	"taskmanager/cmd/internal/realtime"
	"taskmanager/cmd/internal/tasks"
	"taskmanager/cmd/security/token"
)

// App is the server runtime: it owns the HTTP surface and the resources behind it.
type App struct {
	cfg     Config
	log     Logger
	metrics *Metrics
	now     func() time.Time

	dbPool *pgxpool.Pool
	redis  *redis.Client

	issuer *session.Issuer
	auth   *authapi.Handler
	tasks  *tasks.Handler
	hub    *realtime.Hub
	ws     *realtime.WSGateway
}

// Option customizes New (tests).
type Option func(*App)

// WithClock overrides time.Now for every time-dependent component.
func WithClock(now func() time.Time) Option {
	return func(a *App) {
		if now != nil {
			a.now = now
		}
	}
}

// New constructs a fully wired App. An empty DatabaseURL selects in-memory stores.
func New(ctx context.Context, cfg Config, log Logger, opts ...Option) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat)
	}
	if err := ValidateSecurityConfig(cfg); err != nil {
		return nil, err
	}

	a := &App{
		cfg:     cfg,
		log:     log,
		metrics: NewMetrics(),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}

	ok := false
	defer func() {
		if !ok {
			a.closeResources()
		}
	}()

	pwCfg := cfg.PasswordConfig()
	if err := pwCfg.Check(); err != nil {
		return nil, fmt.Errorf("password config: %w", err)
	}
	passwords := identity.NewPasswords(pwCfg)

	issuer, err := session.NewIssuer(cfg.SessionConfig())
	if err != nil {
		return nil, err
	}
	a.issuer = issuer

	hasher, err := newTokenHasher(cfg)
	if err != nil {
		return nil, err
	}

	var (
		users     identity.Store
		sessStore session.Store
		taskStore tasks.Store
		audit     authapi.AuditSink
	)

	if cfg.DatabaseURL == "" {
		log.Info("db.disabled.inmemory_store")
		mem := identity.NewMemoryStore(passwords)
		users = mem
		sessStore = session.NewMemoryStore(mem)
		taskStore = tasks.NewMemoryStore()
	} else {
		if cfg.DBAutoMigrate {
			if err := migrations.Run(cfg.DatabaseURL, "up"); err != nil {
				return nil, fmt.Errorf("auto-migrate: %w", err)
			}
			log.Info("db.migrate.ok")
		}

		pool, err := NewDBPool(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("db: %w", err)
		}
		a.dbPool = pool
		log.Info("db.enabled.postgres_store")

		pgUsers, err := identity.NewPostgresStore(pool, passwords)
		if err != nil {
			return nil, err
		}
		users = pgUsers
		sessStore = session.NewPostgresStore(pool)
		taskStore = tasks.NewPostgresStore(pool)
		audit = authapi.NewPostgresAudit(pool, log)
	}

	limiter, err := a.newLoginLimiter(ctx)
	if err != nil {
		return nil, err
	}

	authOpts := []authapi.HandlerOption{
		authapi.WithLimiter(limiter),
		authapi.WithEventRecorder(a.metrics),
		authapi.WithClock(a.now),
	}
	if audit != nil {
		authOpts = append(authOpts, authapi.WithAuditSink(audit))
	}
	a.auth, err = authapi.NewHandler(log, cfg.AuthConfig(), users, passwords, issuer,
		session.NewManager(sessStore, hasher), authOpts...)
	if err != nil {
		return nil, err
	}

	a.hub = realtime.NewHub(log, a.metrics)
	a.ws = realtime.NewWSGateway(log, a.hub, issuer, cfg.WSConfig())

	svc := tasks.NewService(log, taskStore,
		tasks.WithPublisher(a.hub),
		tasks.WithClock(a.now),
	)
	a.tasks = tasks.NewHandler(log, svc, cfg.AuthConfig().MaxBodyBytes)

	ok = true
	return a, nil
}

func newTokenHasher(cfg Config) (*token.Hasher, error) {
	opts := []token.Option{token.WithCost(cfg.BcryptCost)}
	if cfg.TokenHMACKey != "" {
		key, err := token.ValidateHMACKey(cfg.TokenHMACKey, token.MinHMACKeyBytes)
		if err != nil {
			return nil, fmt.Errorf("TASKS_TOKEN_HMAC_KEY: %w", err)
		}
		opts = append(opts, token.WithHMACKey(key))
	}
	h := token.NewHasher(opts...)
	if cfg.RequireTokenHMAC && !h.Keyed() {
		return nil, errors.New("security policy: refresh-token hasher is not keyed")
	}
	return h, nil
}

// newLoginLimiter picks Redis when configured, else the in-process limiter.
func (a *App) newLoginLimiter(ctx context.Context) (ratelimit.Limiter, error) {
	policy := a.cfg.LoginPolicy()
	if a.cfg.RedisURL == "" {
		return ratelimit.NewMemoryLimiter(policy), nil
	}

	opt, err := redis.ParseURL(a.cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("TASKS_REDIS_URL: %w", err)
	}
	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		// The limiter fails open, so an unreachable Redis is not fatal.
		a.log.Warn("redis.ping.fail", "err", err)
	}

	a.redis = client
	a.log.Info("ratelimit.redis.enabled")
	return ratelimit.NewRedisLimiter(client, "taskmanager:ratelimit:", policy), nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal server error.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	a.log.Info("server.start",
		"addr", a.cfg.HTTPAddr,
		"env", a.cfg.Env,
		"db_enabled", a.dbPool != nil,
		"redis_enabled", a.redis != nil,
		"access_ttl", a.issuer.AccessTTL().String(),
		"refresh_ttl", a.issuer.RefreshTTL().String(),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		a.closeResources()
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), nonZeroDuration(a.cfg.ShutdownTimeout, 10*time.Second))
	defer cancel()

	err := srv.Shutdown(shutdownCtx)
	if err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
	}
	a.closeResources()

	a.log.Info("server.stopped")
	return err
}

// closeResources releases the pool and Redis client; the app owns both.
func (a *App) closeResources() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warn("redis.close.fail", "err", err)
		}
		a.redis = nil
	}
	if a.dbPool != nil {
		a.dbPool.Close()
		a.dbPool = nil
	}
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
