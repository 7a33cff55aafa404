package app

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

var testNow = time.Date(2026, 3, 11, 12, 0, 0, 0, time.UTC)

func testConfig() Config {
	return Config{
		Env:                "test",
		HTTPAddr:           "127.0.0.1:0",
		JWTAccessSecret:    strings.Repeat("a", 32),
		JWTRefreshSecret:   strings.Repeat("r", 32),
		AccessTokenTTL:     900,
		RefreshTokenTTL:    604800,
		BcryptCost:         4,
		LoginRateLimit:     100,
		LoginRateWindow:    time.Minute,
		Argon2MemoryKiB:    8 * 1024,
		Argon2Iterations:   1,
		Argon2Parallelism:  1,
		PasswordMinLen:     8,
		PasswordMaxLen:     256,
		CORSAllowedOrigins: []string{"http://localhost:*"},
		WSOriginRequired:   false,
	}
}

func newTestApp(t *testing.T, cfg Config) http.Handler {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	a, err := New(context.Background(), cfg, log, WithClock(func() time.Time { return testNow }))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(a.closeResources)
	return a.Handler()
}

func do(t *testing.T, h http.Handler, method, path, body, bearer string) *httptest.ResponseRecorder {
	t.Helper()

	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
}

func TestHandler_RegisterLoginAndTasks(t *testing.T) {
	t.Parallel()

	h := newTestApp(t, testConfig())
	creds := `{"email":"Ada@Example.com","password":"correct horse 1"}`

	if rr := do(t, h, http.MethodPost, "/api/v1/auth/register", creds, ""); rr.Code != http.StatusCreated {
		t.Fatalf("register status=%d body=%s", rr.Code, rr.Body.String())
	}

	rr := do(t, h, http.MethodPost, "/api/v1/auth/login", creds, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("login status=%d body=%s", rr.Code, rr.Body.String())
	}
	var login struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	decode(t, rr, &login)
	if login.AccessToken == "" || login.ExpiresIn != 900 {
		t.Fatalf("unexpected login body: %+v", login)
	}

	type listBody struct {
		Data []json.RawMessage `json:"data"`
		Meta struct {
			Pagination struct {
				Total      int `json:"total"`
				TotalPages int `json:"totalPages"`
			} `json:"pagination"`
		} `json:"meta"`
	}

	rr = do(t, h, http.MethodGet, "/api/v1/tasks", "", login.AccessToken)
	if rr.Code != http.StatusOK {
		t.Fatalf("list status=%d body=%s", rr.Code, rr.Body.String())
	}
	var empty listBody
	decode(t, rr, &empty)
	if len(empty.Data) != 0 || empty.Meta.Pagination.Total != 0 {
		t.Fatalf("expected empty list, got %s", rr.Body.String())
	}

	rr = do(t, h, http.MethodPost, "/api/v1/tasks", `{"title":"Ship it","due_date":"2026-03-20"}`, login.AccessToken)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", rr.Code, rr.Body.String())
	}

	rr = do(t, h, http.MethodGet, "/api/v1/tasks", "", login.AccessToken)
	var one listBody
	decode(t, rr, &one)
	if len(one.Data) != 1 || one.Meta.Pagination.Total != 1 || one.Meta.Pagination.TotalPages != 1 {
		t.Fatalf("expected one task, got %s", rr.Body.String())
	}

	if rr := do(t, h, http.MethodGet, "/api/v1/tasks", "", ""); rr.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated list status=%d", rr.Code)
	}
}

func TestHandler_Fallbacks(t *testing.T) {
	t.Parallel()

	h := newTestApp(t, testConfig())

	type errDoc struct {
		Errors []struct {
			Status string `json:"status"`
			Code   string `json:"code"`
		} `json:"errors"`
	}

	rr := do(t, h, http.MethodGet, "/api/v1/nope", "", "")
	var nf errDoc
	decode(t, rr, &nf)
	if rr.Code != http.StatusNotFound || len(nf.Errors) != 1 || nf.Errors[0].Code != "NOT_FOUND" {
		t.Fatalf("unknown route: status=%d body=%s", rr.Code, rr.Body.String())
	}

	rr = do(t, h, http.MethodDelete, "/healthz", "", "")
	var na errDoc
	decode(t, rr, &na)
	if rr.Code != http.StatusMethodNotAllowed || len(na.Errors) != 1 || na.Errors[0].Code != "METHOD_NOT_ALLOWED" {
		t.Fatalf("wrong method: status=%d body=%s", rr.Code, rr.Body.String())
	}
	if got := rr.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("security headers missing on fallback: %q", got)
	}
}

func TestHandler_HealthReadyMetrics(t *testing.T) {
	t.Parallel()

	h := newTestApp(t, testConfig())

	rr := do(t, h, http.MethodGet, "/healthz", "", "")
	var health healthResponse
	decode(t, rr, &health)
	if rr.Code != http.StatusOK || health.Status != "OK" || health.Service != ServiceName {
		t.Fatalf("healthz: status=%d body=%s", rr.Code, rr.Body.String())
	}
	if health.Timestamp != testNow.Format(time.RFC3339) {
		t.Fatalf("healthz timestamp=%q", health.Timestamp)
	}

	if rr := do(t, h, http.MethodGet, "/readyz", "", ""); rr.Code != http.StatusOK {
		t.Fatalf("readyz status=%d", rr.Code)
	}

	do(t, h, http.MethodPost, "/api/v1/auth/login", `{"email":"ghost@example.com","password":"whatever123"}`, "")

	rr = do(t, h, http.MethodGet, "/metrics", "", "")
	body := rr.Body.String()
	for _, want := range []string{
		`http_requests_total{method="GET",route="/healthz",status_class="2xx"} 1`,
		`auth_events_total{event="auth.login",result="fail"} 1`,
		"realtime_connections 0",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics missing %q", want)
		}
	}
}

func TestHandler_ReadyRequiresDB(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.ReadinessRequireDB = true
	h := newTestApp(t, cfg)

	if rr := do(t, h, http.MethodGet, "/readyz", "", ""); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz status=%d want 503", rr.Code)
	}
}

func TestRecoverJSON(t *testing.T) {
	t.Parallel()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := recoverJSON(log)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d want 500", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "An unexpected error occurred.") {
		t.Fatalf("unexpected body %s", rr.Body.String())
	}
}
