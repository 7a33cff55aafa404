package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"
)

// Client talks to one server's /api/v1. It is safe for concurrent use.
type Client struct {
	base     *url.URL
	http     *http.Client
	sessions SessionStore
	coord    *RefreshCoordinator
	log      *slog.Logger
}

type options struct {
	http      *http.Client
	sessions  SessionStore
	log       *slog.Logger
	coordOpts []CoordinatorOption
}

type Option func(*options)

// WithHTTPClient replaces the transport. A cookie jar is attached when it has none.
func WithHTTPClient(h *http.Client) Option {
	return func(o *options) { o.http = h }
}

func WithSessionStore(s SessionStore) Option {
	return func(o *options) { o.sessions = s }
}

func WithClientLogger(log *slog.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithCoordinator passes options to the refresh coordinator.
func WithCoordinator(opts ...CoordinatorOption) Option {
	return func(o *options) { o.coordOpts = append(o.coordOpts, opts...) }
}

// New builds a client for baseURL, e.g. "http://localhost:8080/api/v1".
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("client: base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("client: base url must be http(s), got %q", baseURL)
	}

	o := options{log: slog.Default()}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.http == nil {
		o.http = &http.Client{Timeout: 30 * time.Second}
	}
	if o.http.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, err
		}
		hc := *o.http
		hc.Jar = jar
		o.http = &hc
	}
	if o.sessions == nil {
		o.sessions = NewMemorySessionStore(nil)
	}

	c := &Client{
		base:     u,
		http:     o.http,
		sessions: o.sessions,
		log:      o.log,
	}
	coordOpts := append([]CoordinatorOption{WithLogger(o.log)}, o.coordOpts...)
	c.coord = NewRefreshCoordinator(o.sessions, c.Refresh, coordOpts...)
	return c, nil
}

// Session returns the cached session, if any.
func (c *Client) Session() (Session, bool) { return c.sessions.Get() }

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenBody struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
	User        struct {
		Email string `json:"email"`
	} `json:"user"`
}

func (t tokenBody) result() RefreshResult {
	return RefreshResult{
		AccessToken: t.AccessToken,
		Email:       t.User.Email,
		ExpiresIn:   time.Duration(t.ExpiresIn) * time.Second,
	}
}

func (c *Client) Register(ctx context.Context, email, password string) error {
	return c.call(ctx, http.MethodPost, "/auth/register", credentials{email, password}, nil)
}

// Login stores the returned session; the refresh cookie lands in the jar.
func (c *Client) Login(ctx context.Context, email, password string) (Session, error) {
	var body tokenBody
	if err := c.call(ctx, http.MethodPost, "/auth/login", credentials{email, password}, &body); err != nil {
		return Session{}, err
	}
	return c.sessions.Set(body.AccessToken, body.User.Email, time.Duration(body.ExpiresIn)*time.Second), nil
}

// Refresh rotates the cookie and returns a new access token.
// It does not touch the session store; the coordinator does.
func (c *Client) Refresh(ctx context.Context) (RefreshResult, error) {
	var body tokenBody
	if err := c.call(ctx, http.MethodPost, "/auth/refresh", nil, &body); err != nil {
		return RefreshResult{}, err
	}
	if body.AccessToken == "" {
		return RefreshResult{}, errors.New("client: refresh returned no access token")
	}
	return body.result(), nil
}

// Logout is best effort: local state is cleared even when the call fails.
func (c *Client) Logout(ctx context.Context) error {
	defer c.sessions.Clear()
	err := c.call(ctx, http.MethodPost, "/auth/logout", nil, nil)
	if err != nil {
		c.log.Warn("client.logout.fail", "err", err)
	}
	return err
}

func (c *Client) ListTasks(ctx context.Context, q TaskQuery) (TaskList, error) {
	path := "/tasks"
	if v := q.values(); len(v) > 0 {
		path += "?" + v.Encode()
	}
	var doc taskListDocument
	if err := c.authed(ctx, http.MethodGet, path, nil, &doc); err != nil {
		return TaskList{}, err
	}
	out := TaskList{
		Tasks:      make([]Task, 0, len(doc.Data)),
		Pagination: doc.Meta.Pagination,
		Stats:      doc.Meta.Stats,
	}
	for _, r := range doc.Data {
		out.Tasks = append(out.Tasks, r.task())
	}
	return out, nil
}

func (c *Client) CreateTask(ctx context.Context, in TaskInput) (Task, error) {
	return c.taskCall(ctx, http.MethodPost, "/tasks", in)
}

func (c *Client) GetTask(ctx context.Context, id string) (Task, error) {
	return c.taskCall(ctx, http.MethodGet, taskPath(id), nil)
}

func (c *Client) ReplaceTask(ctx context.Context, id string, in TaskInput) (Task, error) {
	return c.taskCall(ctx, http.MethodPut, taskPath(id), in)
}

func (c *Client) PatchTask(ctx context.Context, id string, p TaskPatch) (Task, error) {
	return c.taskCall(ctx, http.MethodPatch, taskPath(id), p)
}

func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.authed(ctx, http.MethodDelete, taskPath(id), nil, nil)
}

func taskPath(id string) string { return "/tasks/" + url.PathEscape(id) }

func (c *Client) taskCall(ctx context.Context, method, path string, in any) (Task, error) {
	var doc taskDocument
	if err := c.authed(ctx, method, path, in, &doc); err != nil {
		return Task{}, err
	}
	return doc.Data.task(), nil
}

// call performs an unauthenticated request.
func (c *Client) call(ctx context.Context, method, path string, in, out any) error {
	body, err := encode(in)
	if err != nil {
		return err
	}
	resp, err := c.send(ctx, method, path, body, "")
	if err != nil {
		return err
	}
	return readResponse(resp, out)
}

// authed routes the request through the refresh coordinator.
func (c *Client) authed(ctx context.Context, method, path string, in, out any) error {
	body, err := encode(in)
	if err != nil {
		return err
	}
	resp, err := c.coord.Do(ctx, func(ctx context.Context, token string) (*http.Response, error) {
		return c.send(ctx, method, path, body, token)
	})
	if err != nil {
		return err
	}
	return readResponse(resp, out)
}

func encode(in any) ([]byte, error) {
	if in == nil {
		return nil, nil
	}
	b, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("client: encode: %w", err)
	}
	return b, nil
}

func (c *Client) send(ctx context.Context, method, path string, body []byte, token string) (*http.Response, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, rd)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return c.http.Do(req)
}

// readResponse decodes 2xx bodies into out and everything else into *APIError.
func readResponse(resp *http.Response, out any) error {
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("client: decode %s: %w", resp.Request.URL.Path, err)
	}
	return nil
}
