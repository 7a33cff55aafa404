package app

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func TestRequestLogMeta(t *testing.T) {
	t.Parallel()

	cases := []struct {
		status     int
		wantLevel  slog.Level
		wantResult string
		wantClass  string
	}{
		{status: 200, wantLevel: slog.LevelInfo, wantResult: "success", wantClass: "2xx"},
		{status: 302, wantLevel: slog.LevelInfo, wantResult: "redirect", wantClass: "3xx"},
		{status: 404, wantLevel: slog.LevelWarn, wantResult: "client_error", wantClass: "4xx"},
		{status: 503, wantLevel: slog.LevelError, wantResult: "server_error", wantClass: "5xx"},
	}

	for _, tc := range cases {
		level, result := requestLogMeta(tc.status)
		if level != tc.wantLevel || result != tc.wantResult {
			t.Fatalf("status=%d level=%v result=%q; want level=%v result=%q", tc.status, level, result, tc.wantLevel, tc.wantResult)
		}
		if got := statusClass(tc.status); got != tc.wantClass {
			t.Fatalf("statusClass(%d)=%q want=%q", tc.status, got, tc.wantClass)
		}
	}
}

func TestWithCORS(t *testing.T) {
	t.Parallel()

	cfg := Config{
		CORSAllowedOrigins:   []string{"https://tasks.example.com", "http://127.0.0.1:*"},
		CORSAllowCredentials: true,
		CORSMaxAgeSeconds:    600,
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	cases := []struct {
		name       string
		method     string
		origin     string
		preflight  bool
		wantStatus int
		wantNext   bool
		wantHeader map[string]string
	}{
		{
			name: "same-origin request passes untouched", method: http.MethodGet,
			wantStatus: http.StatusOK, wantNext: true,
			wantHeader: map[string]string{"Access-Control-Allow-Origin": ""},
		},
		{
			name: "refresh preflight", method: http.MethodOptions, origin: "https://tasks.example.com", preflight: true,
			wantStatus: http.StatusNoContent,
			wantHeader: map[string]string{
				"Access-Control-Allow-Origin":      "https://tasks.example.com",
				"Access-Control-Allow-Credentials": "true",
				"Access-Control-Allow-Headers":     "Content-Type, Authorization",
				"Access-Control-Max-Age":           "600",
			},
		},
		{
			name: "task list from dev server on any port", method: http.MethodGet, origin: "http://127.0.0.1:5173",
			wantStatus: http.StatusOK, wantNext: true,
			wantHeader: map[string]string{
				"Access-Control-Allow-Origin":   "http://127.0.0.1:5173",
				"Access-Control-Expose-Headers": "Retry-After, X-Request-Id",
			},
		},
		{
			name: "port wildcard needs a numeric port", method: http.MethodGet, origin: "http://127.0.0.1",
			wantStatus: http.StatusForbidden,
		},
		{
			name: "foreign origin", method: http.MethodDelete, origin: "https://evil.example.com",
			wantStatus: http.StatusForbidden,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			called := false
			h := WithCORS(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				called = true
				w.WriteHeader(http.StatusOK)
			}), cfg, log)

			req := httptest.NewRequest(tc.method, "/api/v1/tasks", nil)
			if tc.origin != "" {
				req.Header.Set("Origin", tc.origin)
			}
			if tc.preflight {
				req.Header.Set("Access-Control-Request-Method", http.MethodPost)
				req.Header.Set("Access-Control-Request-Headers", "Content-Type, Authorization")
			}

			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			if rr.Code != tc.wantStatus {
				t.Fatalf("status=%d want %d", rr.Code, tc.wantStatus)
			}
			if called != tc.wantNext {
				t.Fatalf("next called=%v want %v", called, tc.wantNext)
			}
			for k, want := range tc.wantHeader {
				if got := rr.Header().Get(k); got != want {
					t.Fatalf("%s=%q want %q", k, got, want)
				}
			}
		})
	}
}

func TestWithCORS_DisabledWithoutOrigins(t *testing.T) {
	t.Parallel()

	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})
	h := WithCORS(next, Config{}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks", nil)
	req.Header.Set("Origin", "https://anything.example.com")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK || rr.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatalf("cors should be off: status=%d headers=%v", rr.Code, rr.Header())
	}
}

func TestWithSecurityHeaders(t *testing.T) {
	t.Parallel()

	h := WithSecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/tasks", nil))

	want := map[string]string{
		"X-Content-Type-Options":     "nosniff",
		"X-Frame-Options":            "DENY",
		"Referrer-Policy":            "no-referrer",
		"Cross-Origin-Opener-Policy": "same-origin",
	}
	for k, v := range want {
		if got := rr.Header().Get(k); got != v {
			t.Fatalf("%s=%q want %q", k, got, v)
		}
	}
	if rr.Code != http.StatusCreated {
		t.Fatalf("status=%d", rr.Code)
	}
}

func TestWithRequestLogging_RouteAndLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(WithRequestLogging(log, NewMetrics()))
	r.Get("/api/v1/tasks/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/tasks/abc", nil))

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}

	checks := map[string]any{
		"msg":          "http.request",
		"level":        "WARN",
		"route":        "/api/v1/tasks/{id}",
		"path":         "/api/v1/tasks/abc",
		"status_class": "4xx",
		"result":       "client_error",
	}
	for k, want := range checks {
		if line[k] != want {
			t.Fatalf("%s=%v want %v", k, line[k], want)
		}
	}
	if line["status"] != float64(http.StatusNotFound) {
		t.Fatalf("status=%v", line["status"])
	}
	if id, _ := line["request_id"].(string); id == "" {
		t.Fatalf("missing request_id in %v", line)
	}
}

func TestMetrics_RecordAuthEvent(t *testing.T) {
	t.Parallel()

	m := NewMetrics()
	m.RecordAuthEvent("auth.login")
	m.RecordAuthEvent("auth.login.fail")
	m.RecordAuthEvent("auth.login.rate_limited")
	m.Inc()

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rr.Body.String()

	for _, want := range []string{
		`auth_events_total{event="auth.login",result="success"} 1`,
		`auth_events_total{event="auth.login",result="fail"} 1`,
		`auth_events_total{event="auth.login",result="rate_limited"} 1`,
		"realtime_connections 1",
	} {
		if !bytes.Contains([]byte(body), []byte(want)) {
			t.Fatalf("metrics missing %q", want)
		}
	}
}
