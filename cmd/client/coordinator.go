package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// ErrRefreshFailed wraps the cause of a failed shared refresh.
var ErrRefreshFailed = errors.New("client: session refresh failed")

// DefaultRefreshTimeout bounds the shared refresh call.
const DefaultRefreshTimeout = 30 * time.Second

// flightKey names the refresh that replaces token. A caller rejected on a
// newer token never joins a flight that is still finishing for an older one.
func flightKey(token string) string { return "refresh:" + token }

// RequestFunc performs one authenticated attempt with token ("" when signed out).
// It must build a fresh request on every call.
type RequestFunc func(ctx context.Context, token string) (*http.Response, error)

// RefreshResult is what a successful refresh yields.
type RefreshResult struct {
	AccessToken string
	Email       string
	ExpiresIn   time.Duration
}

// RefreshFunc exchanges the refresh credential for a new access token.
type RefreshFunc func(ctx context.Context) (RefreshResult, error)

// RefreshCoordinator retries 401s once behind a single in-flight refresh.
type RefreshCoordinator struct {
	store   SessionStore
	refresh RefreshFunc
	log     *slog.Logger

	timeout  time.Duration
	onLogout func()

	// mu makes "token unchanged, join the flight" atomic with the
	// flight publishing its result.
	mu    sync.Mutex
	group singleflight.Group
}

type CoordinatorOption func(*RefreshCoordinator)

// WithRefreshTimeout bounds each shared refresh (default 30s).
func WithRefreshTimeout(d time.Duration) CoordinatorOption {
	return func(c *RefreshCoordinator) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogoutHook runs after the session is cleared by a failed refresh or retry.
// It must not call back into the coordinator.
func WithLogoutHook(fn func()) CoordinatorOption {
	return func(c *RefreshCoordinator) { c.onLogout = fn }
}

func WithLogger(log *slog.Logger) CoordinatorOption {
	return func(c *RefreshCoordinator) {
		if log != nil {
			c.log = log
		}
	}
}

func NewRefreshCoordinator(store SessionStore, refresh RefreshFunc, opts ...CoordinatorOption) *RefreshCoordinator {
	c := &RefreshCoordinator{
		store:   store,
		refresh: refresh,
		log:     slog.Default(),
		timeout: DefaultRefreshTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

func (c *RefreshCoordinator) token() string {
	if s, ok := c.store.Get(); ok {
		return s.Token
	}
	return ""
}

// Do runs req, and on 401 refreshes (or joins the running refresh) and
// retries exactly once. A second 401 signs the session out and is returned.
func (c *RefreshCoordinator) Do(ctx context.Context, req RequestFunc) (*http.Response, error) {
	used := c.token()
	resp, err := req(ctx, used)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	discard(resp)

	if err := c.awaitRefresh(ctx, used); err != nil {
		return nil, err
	}

	resp, err = req(ctx, c.token())
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		c.log.Warn("client.retry.unauthorized")
		c.logout()
	}
	return resp, nil
}

// awaitRefresh joins or starts the shared refresh. A token that already
// changed since the failed attempt means a refresh completed in between.
func (c *RefreshCoordinator) awaitRefresh(ctx context.Context, used string) error {
	c.mu.Lock()
	if cur := c.token(); cur != "" && cur != used {
		c.mu.Unlock()
		return nil
	}
	ch := c.group.DoChan(flightKey(used), func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()

		res, err := c.refresh(rctx)

		c.mu.Lock()
		defer c.mu.Unlock()
		if err != nil {
			c.log.Warn("client.refresh.fail", "err", err)
			c.logout()
			return nil, fmt.Errorf("%w: %w", ErrRefreshFailed, err)
		}
		c.store.Set(res.AccessToken, res.Email, res.ExpiresIn)
		return nil, nil
	})
	c.mu.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case r := <-ch:
		return r.Err
	}
}

func (c *RefreshCoordinator) logout() {
	c.store.Clear()
	if c.onLogout != nil {
		c.onLogout()
	}
}

// discard drains a small body so the connection can be reused.
func discard(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}
