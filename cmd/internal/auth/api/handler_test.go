package authapi

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"taskmanager/cmd/identity"
	"taskmanager/cmd/internal/auth/session"
	"taskmanager/cmd/internal/jsonapi"
	"taskmanager/cmd/internal/ratelimit"
	"taskmanager/cmd/security/password"
	"taskmanager/cmd/security/token"
)

type testEnv struct {
	router   chi.Router
	users    *identity.MemoryStore
	sessions *session.MemoryStore
	issuer   *session.Issuer
	now      time.Time
}

func newTestEnv(t *testing.T, opts ...HandlerOption) *testEnv {
	t.Helper()

	pwCfg := password.DefaultConfig()
	pwCfg.Params.MemoryKiB = 8 * 1024
	pwCfg.Params.Iterations = 1
	pwCfg.Params.Parallelism = 1
	passwords := identity.NewPasswords(pwCfg)

	sessCfg := session.DefaultConfig()
	sessCfg.AccessSecret = strings.Repeat("a", 32)
	sessCfg.RefreshSecret = strings.Repeat("r", 32)
	issuer, err := session.NewIssuer(sessCfg)
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}

	env := &testEnv{
		users:  identity.NewMemoryStore(passwords),
		issuer: issuer,
		now:    time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
	}
	env.sessions = session.NewMemoryStore(env.users)
	manager := session.NewManager(env.sessions, token.NewHasher(token.WithCost(4)))

	opts = append([]HandlerOption{WithClock(func() time.Time { return env.now })}, opts...)
	h, err := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), DefaultConfig(), env.users, passwords, issuer, manager, opts...)
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}

	r := chi.NewRouter()
	r.Route("/api/v1", h.Routes)
	env.router = r
	return env
}

func (e *testEnv) do(t *testing.T, method, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "authapi-test")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) register(t *testing.T, email, pw string) {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/v1/auth/register", `{"email":"`+email+`","password":"`+pw+`"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status=%d body=%s", rec.Code, rec.Body.String())
	}
}

func (e *testEnv) login(t *testing.T, email, pw string) (tokenResponse, *http.Cookie) {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/v1/auth/login", `{"email":"`+email+`","password":"`+pw+`"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("login status=%d body=%s", rec.Code, rec.Body.String())
	}
	var out tokenResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	c := refreshCookie(rec)
	if c == nil {
		t.Fatalf("login did not set refresh cookie")
	}
	return out, c
}

func refreshCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == "refreshToken" {
			return c
		}
	}
	return nil
}

func decodeErrors(t *testing.T, rec *httptest.ResponseRecorder) []jsonapi.Error {
	t.Helper()
	var doc jsonapi.Document
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("decode error doc: %v (%s)", err, rec.Body.String())
	}
	if len(doc.Errors) == 0 {
		t.Fatalf("no errors in %s", rec.Body.String())
	}
	return doc.Errors
}

func TestRegister(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/auth/register", `{"email":"  Ada@Example.com ","password":"secret123"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	var out registerResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Message != "User registered successfully" || out.User.Email != "ada@example.com" {
		t.Fatalf("unexpected body: %+v", out)
	}

	rec = env.do(t, http.MethodPost, "/api/v1/auth/register", `{"email":"ada@example.com","password":"secret123"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("duplicate status=%d", rec.Code)
	}
	if errs := decodeErrors(t, rec); errs[0].Code != "user_already_exists" || errs[0].Title != "User already exists" {
		t.Fatalf("duplicate error: %+v", errs[0])
	}
}

func TestRegister_Validation(t *testing.T) {
	env := newTestEnv(t)

	cases := []struct {
		name    string
		body    string
		status  int
		pointer string
		detail  string
	}{
		{"bad email", `{"email":"nope","password":"secret123"}`, 422, "/data/attributes/email", "Invalid email format"},
		{"short password", `{"email":"a@b.io","password":"short"}`, 422, "/data/attributes/password", "Password is too short"},
		{"missing password", `{"email":"a@b.io"}`, 422, "/data/attributes/password", "Password is required"},
		{"unknown field", `{"email":"a@b.io","password":"secret123","admin":true}`, 400, "", ""},
		{"empty body", ``, 400, "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/v1/auth/register", tc.body)
			if rec.Code != tc.status {
				t.Fatalf("status=%d want %d body=%s", rec.Code, tc.status, rec.Body.String())
			}
			if tc.pointer == "" {
				return
			}
			e := decodeErrors(t, rec)[0]
			if e.Source == nil || e.Source.Pointer != tc.pointer {
				t.Fatalf("pointer: %+v", e.Source)
			}
			if e.Detail != tc.detail || e.Code != jsonapi.CodeValidation || e.Status != "422" {
				t.Fatalf("error: %+v", e)
			}
		})
	}
}

func TestLogin_SuccessSetsCookieAndLastLogin(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "ada@example.com", "secret123")

	out, c := env.login(t, "ADA@example.com", "secret123")
	if out.TokenType != "Bearer" || out.ExpiresIn != 900 || out.User.Email != "ada@example.com" {
		t.Fatalf("unexpected login body: %+v", out)
	}
	if !c.HttpOnly || c.SameSite != http.SameSiteLaxMode || c.Path != "/" {
		t.Fatalf("cookie attributes: %+v", c)
	}
	if c.MaxAge != 604800 {
		t.Fatalf("cookie max-age=%d", c.MaxAge)
	}

	claims, err := env.issuer.VerifyAccessToken(out.AccessToken, env.now)
	if err != nil {
		t.Fatalf("access token does not verify: %v", err)
	}
	u, err := env.users.GetUserByEmail(t.Context(), "ada@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if claims.UserID != u.ID {
		t.Fatalf("claims user=%q want %q", claims.UserID, u.ID)
	}
	if u.LastLoginAt == nil || !u.LastLoginAt.Equal(env.now) {
		t.Fatalf("last_login_at=%v", u.LastLoginAt)
	}
	rows, _ := env.sessions.ListUnrevoked(t.Context(), u.ID)
	if len(rows) != 1 {
		t.Fatalf("sessions=%d want 1", len(rows))
	}
}

func TestLogin_NoEnumeration(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "ada@example.com", "secret123")

	unknown := env.do(t, http.MethodPost, "/api/v1/auth/login", `{"email":"ghost@example.com","password":"secret123"}`)
	wrong := env.do(t, http.MethodPost, "/api/v1/auth/login", `{"email":"ada@example.com","password":"not-it-123"}`)

	if unknown.Code != http.StatusUnauthorized || wrong.Code != http.StatusUnauthorized {
		t.Fatalf("status unknown=%d wrong=%d", unknown.Code, wrong.Code)
	}
	if !bytes.Equal(unknown.Body.Bytes(), wrong.Body.Bytes()) {
		t.Fatalf("bodies differ:\n%s\n%s", unknown.Body.String(), wrong.Body.String())
	}
	if e := decodeErrors(t, unknown)[0]; e.Code != "invalid_credentials" || e.Title != "Invalid credentials" {
		t.Fatalf("error: %+v", e)
	}
	if refreshCookie(unknown) != nil || refreshCookie(wrong) != nil {
		t.Fatalf("failed login set a cookie")
	}
}

func TestLogin_Throttled(t *testing.T) {
	env := newTestEnv(t, WithLimiter(ratelimit.NewMemoryLimiter(ratelimit.Policy{Limit: 2, Window: time.Minute})))

	body := `{"email":"ghost@example.com","password":"secret123"}`
	for i := 0; i < 2; i++ {
		if rec := env.do(t, http.MethodPost, "/api/v1/auth/login", body); rec.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d status=%d", i, rec.Code)
		}
	}
	rec := env.do(t, http.MethodPost, "/api/v1/auth/login", body)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status=%d want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatalf("missing Retry-After")
	}
	if e := decodeErrors(t, rec)[0]; e.Code != "rate_limited" {
		t.Fatalf("error: %+v", e)
	}
}

func TestRefresh_Failures(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/auth/refresh", "")
	if rec.Code != http.StatusUnauthorized || decodeErrors(t, rec)[0].Code != "missing_refresh_token" {
		t.Fatalf("missing cookie: %d %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodPost, "/api/v1/auth/refresh", "", &http.Cookie{Name: "refreshToken", Value: "garbage"})
	if rec.Code != http.StatusUnauthorized || decodeErrors(t, rec)[0].Code != "invalid_refresh_token" {
		t.Fatalf("garbage cookie: %d %s", rec.Code, rec.Body.String())
	}

	// Well-signed but never stored.
	tok, _, err := env.issuer.IssueRefreshToken("0b8f3f1e-4c1a-4a8e-9f57-1b2f3c4d5e6f", "x@example.com", env.now)
	if err != nil {
		t.Fatalf("IssueRefreshToken: %v", err)
	}
	rec = env.do(t, http.MethodPost, "/api/v1/auth/refresh", "", &http.Cookie{Name: "refreshToken", Value: tok})
	if rec.Code != http.StatusUnauthorized || decodeErrors(t, rec)[0].Code != "invalid_session" {
		t.Fatalf("unknown session: %d %s", rec.Code, rec.Body.String())
	}
}

func TestRefresh_RotatesInPlace(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "ada@example.com", "secret123")
	_, oldCookie := env.login(t, "ada@example.com", "secret123")

	u, _ := env.users.GetUserByEmail(t.Context(), "ada@example.com")
	before, _ := env.sessions.ListUnrevoked(t.Context(), u.ID)

	env.now = env.now.Add(time.Minute)
	rec := env.do(t, http.MethodPost, "/api/v1/auth/refresh", "", oldCookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh status=%d body=%s", rec.Code, rec.Body.String())
	}
	var out tokenResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.User.Email != "ada@example.com" || out.AccessToken == "" {
		t.Fatalf("refresh body: %+v", out)
	}
	newCookie := refreshCookie(rec)
	if newCookie == nil || newCookie.Value == oldCookie.Value {
		t.Fatalf("refresh cookie not rotated")
	}

	after, _ := env.sessions.ListUnrevoked(t.Context(), u.ID)
	if len(after) != 1 || after[0].ID != before[0].ID {
		t.Fatalf("session not rotated in place: before=%v after=%v", before, after)
	}
	if after[0].RefreshTokenHash == before[0].RefreshTokenHash || !after[0].ExpiresAt.After(before[0].ExpiresAt) {
		t.Fatalf("hash/expiry unchanged")
	}

	// The previous token no longer matches any session.
	rec = env.do(t, http.MethodPost, "/api/v1/auth/refresh", "", oldCookie)
	if rec.Code != http.StatusUnauthorized || decodeErrors(t, rec)[0].Code != "invalid_session" {
		t.Fatalf("old token reuse: %d %s", rec.Code, rec.Body.String())
	}
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "ada@example.com", "secret123")
	_, c := env.login(t, "ada@example.com", "secret123")

	rec := env.do(t, http.MethodPost, "/api/v1/auth/logout", "", c)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("logout status=%d", rec.Code)
	}
	cleared := refreshCookie(rec)
	if cleared == nil || cleared.MaxAge >= 0 || cleared.Value != "" {
		t.Fatalf("cookie not cleared: %+v", cleared)
	}

	rec = env.do(t, http.MethodPost, "/api/v1/auth/refresh", "", c)
	if rec.Code != http.StatusUnauthorized || decodeErrors(t, rec)[0].Code != "invalid_session" {
		t.Fatalf("refresh after logout: %d %s", rec.Code, rec.Body.String())
	}

	for _, cookies := range [][]*http.Cookie{nil, {{Name: "refreshToken", Value: "garbage"}}} {
		rec = env.do(t, http.MethodPost, "/api/v1/auth/logout", "", cookies...)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("logout without valid cookie status=%d", rec.Code)
		}
	}
}
