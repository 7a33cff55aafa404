package app

import (
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	authapi "taskmanager/cmd/internal/auth/api"
	"taskmanager/cmd/internal/jsonapi"
)

// ServiceName is reported by /healthz.
const ServiceName = "taskmanager"

// APIPrefix is where every versioned route lives.
const APIPrefix = "/api/v1"

// Handler builds the full HTTP surface.
func (a *App) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(WithRequestLogging(a.log, a.metrics))
	r.Use(recoverJSON(a.log))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		jsonapi.WriteError(w, http.StatusNotFound, jsonapi.CodeNotFound, "Resource Not Found",
			"The requested resource was not found.")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		jsonapi.WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method Not Allowed",
			"Method "+r.Method+" is not allowed on this resource.")
	})

	r.Get("/healthz", a.handleHealth)
	r.Get("/readyz", a.handleReady)
	r.Method(http.MethodGet, "/metrics", a.metrics.Handler())

	r.Route(APIPrefix, func(r chi.Router) {
		a.auth.Routes(r)

		r.Group(func(r chi.Router) {
			r.Use(authapi.RequireAuth(a.issuer, a.now))
			a.tasks.Routes(r)
		})

		r.Get("/ws", a.ws.ServeHTTP)
	})

	return WithSecurityHeaders(WithCORS(r, a.cfg, a.log))
}

type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Service   string `json:"service"`
}

func (a *App) handleHealth(w http.ResponseWriter, _ *http.Request) {
	jsonapi.WriteJSON(w, http.StatusOK, healthResponse{
		Status:    "OK",
		Timestamp: a.now().UTC().Format(time.RFC3339),
		Service:   ServiceName,
	})
}

func (a *App) handleReady(w http.ResponseWriter, r *http.Request) {
	if a.cfg.ReadinessRequireDB && a.dbPool == nil {
		jsonapi.WriteError(w, http.StatusServiceUnavailable, "not_ready", "Service Unavailable", "Database is not configured.")
		return
	}

	if a.dbPool != nil {
		if err := pingDB(r.Context(), a.dbPool, dbReadyTimeout); err != nil {
			a.log.Info("readyz.db.not_ready", "err", err)
			jsonapi.WriteError(w, http.StatusServiceUnavailable, "not_ready", "Service Unavailable", "Database is not reachable.")
			return
		}
	}

	jsonapi.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// recoverJSON turns panics into the generic 500 document.
// http.ErrAbortHandler is re-raised so net/http can drop the connection.
func recoverJSON(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				log.Error("http.panic",
					"panic", rec,
					"path", r.URL.Path,
					"request_id", middleware.GetReqID(r.Context()),
					"stack", string(debug.Stack()),
				)
				if r.Header.Get("Connection") != "Upgrade" {
					jsonapi.WriteInternal(w)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
