package authapi

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"taskmanager/cmd/identity"
	"taskmanager/cmd/internal/auth/session"
	"taskmanager/cmd/internal/jsonapi"
	"taskmanager/cmd/internal/ratelimit"
	"taskmanager/cmd/security/password"
)

// EventRecorder counts auth outcomes (metrics).
type EventRecorder interface {
	RecordAuthEvent(event string)
}

type noopEvents struct{}

func (noopEvents) RecordAuthEvent(string) {}

// Handler wires HTTP auth endpoints to identity/session services.
type Handler struct {
	log *slog.Logger
	cfg Config

	users     identity.Store
	passwords *identity.Passwords
	issuer    *session.Issuer
	sessions  *session.Manager

	limiter   ratelimit.Limiter
	auditSink AuditSink
	events    EventRecorder
	validator *jsonapi.Validator
	now       func() time.Time
}

// HandlerOption configures optional auth handler dependencies.
type HandlerOption func(*Handler)

// WithLimiter enables login throttling keyed by client IP.
func WithLimiter(l ratelimit.Limiter) HandlerOption {
	return func(h *Handler) {
		if l != nil {
			h.limiter = l
		}
	}
}

// WithAuditSink overrides the default no-op audit sink.
func WithAuditSink(s AuditSink) HandlerOption {
	return func(h *Handler) {
		if s != nil {
			h.auditSink = s
		}
	}
}

func WithEventRecorder(r EventRecorder) HandlerOption {
	return func(h *Handler) {
		if r != nil {
			h.events = r
		}
	}
}

// WithClock overrides time.Now (tests).
func WithClock(now func() time.Time) HandlerOption {
	return func(h *Handler) {
		if now != nil {
			h.now = now
		}
	}
}

// NewHandler constructs an auth Handler.
func NewHandler(
	log *slog.Logger,
	cfg Config,
	users identity.Store,
	passwords *identity.Passwords,
	issuer *session.Issuer,
	sessions *session.Manager,
	opts ...HandlerOption,
) (*Handler, error) {
	if users == nil || passwords == nil {
		return nil, errors.New("auth: nil identity dependencies")
	}
	if issuer == nil || sessions == nil {
		return nil, errors.New("auth: nil session dependencies")
	}
	if log == nil {
		log = slog.Default()
	}

	h := &Handler{
		log:       log,
		cfg:       cfg.normalized(),
		users:     users,
		passwords: passwords,
		issuer:    issuer,
		sessions:  sessions,
		auditSink: noopAudit{},
		events:    noopEvents{},
		validator: jsonapi.NewValidator(),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(h)
	}
	return h, nil
}

// Routes mounts the auth endpoints on r (expected under /api/v1).
func (h *Handler) Routes(r chi.Router) {
	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.handleRegister)
		r.Post("/login", h.handleLogin)
		r.Post("/refresh", h.handleRefresh)
		r.Post("/logout", h.handleLogout)
	})
}

var credentialMessages = jsonapi.Messages{
	"email.required":    "Invalid email format",
	"email.email":       "Invalid email format",
	"email.max":         "Email must be 255 characters or less",
	"password.required": "Password is required",
}

// decodeCredentials reads and validates an {email,password} body. It writes
// the error response itself and reports ok=false on failure.
func (h *Handler) decodeCredentials(w http.ResponseWriter, r *http.Request) (credentialsRequest, bool) {
	var req credentialsRequest
	if err := jsonapi.DecodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		jsonapi.WriteBadJSON(w)
		return req, false
	}
	req.Email = identity.NormalizeEmail(req.Email)

	if err := h.validator.Struct(req, credentialMessages); err != nil {
		var ve *jsonapi.ValidationError
		if errors.As(err, &ve) {
			jsonapi.WriteValidation(w, ve, "attributes")
			return req, false
		}
		h.log.Error("auth.validate.fail", "err", err)
		jsonapi.WriteInternal(w)
		return req, false
	}
	return req, true
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeCredentials(w, r)
	if !ok {
		return
	}
	if err := h.passwords.Validate(req.Password); err != nil {
		jsonapi.WriteValidation(w, (&jsonapi.ValidationError{}).Add("password", password.Message(err)), "attributes")
		return
	}

	ctx := r.Context()
	now := h.now()
	client := h.clientInfo(r)

	if _, err := h.users.GetUserByEmail(ctx, req.Email); err == nil {
		writeUserExists(w)
		return
	} else if !identity.IsNotFound(err) {
		h.log.Error("auth.register.lookup.fail", "err", err)
		jsonapi.WriteInternal(w)
		return
	}

	u, err := h.users.CreateUser(ctx, identity.CreateUserInput{
		Email:    req.Email,
		Password: req.Password,
		Now:      now,
	})
	if err != nil {
		switch {
		case identity.IsConflict(err):
			writeUserExists(w)
		case identity.IsInvalidInput(err):
			jsonapi.WriteValidation(w, (&jsonapi.ValidationError{}).Add("password", password.Message(err)), "attributes")
		default:
			h.log.Error("auth.register.create.fail", "err", err)
			jsonapi.WriteInternal(w)
		}
		return
	}

	h.audit(ctx, AuditEvent{Action: "auth.register", UserID: u.ID, IP: client.IP, UserAgent: client.UserAgent})
	jsonapi.WriteJSON(w, http.StatusCreated, registerResponse{
		Message: "User registered successfully",
		User:    userResponse{Email: u.Email},
	})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeCredentials(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	now := h.now()
	client := h.clientInfo(r)

	// IP-based throttling before DB lookup.
	if blocked, retryAfter := h.checkLoginThrottle(ctx, client.IP); blocked {
		h.audit(ctx, AuditEvent{Action: "auth.login.rate_limited", IP: client.IP, UserAgent: client.UserAgent})
		writeRateLimited(w, retryAfter)
		return
	}

	u, err := h.users.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if !identity.IsNotFound(err) {
			h.log.Error("auth.login.lookup.fail", "err", err)
			jsonapi.WriteInternal(w)
			return
		}
		// Timing resistance: perform a dummy verify when user is missing.
		h.passwords.VerifyDummy(req.Password)
		h.audit(ctx, AuditEvent{Action: "auth.login.fail", IP: client.IP, UserAgent: client.UserAgent, Meta: map[string]any{"reason": "not_found"}})
		writeInvalidCredentials(w)
		return
	}
	if !h.passwords.Verify(u.PasswordHash, req.Password) {
		h.audit(ctx, AuditEvent{Action: "auth.login.fail", UserID: u.ID, IP: client.IP, UserAgent: client.UserAgent, Meta: map[string]any{"reason": "bad_password"}})
		writeInvalidCredentials(w)
		return
	}

	pair, err := h.issuer.IssuePair(u.ID, u.Email, now)
	if err != nil {
		h.log.Error("auth.login.issue_tokens.fail", "err", err)
		jsonapi.WriteInternal(w)
		return
	}
	sessionID, err := h.sessions.CreateSession(ctx, now, u.ID, client, pair.RefreshToken, h.issuer.RefreshTTL())
	if err != nil {
		h.log.Error("auth.login.issue_session.fail", "err", err)
		jsonapi.WriteInternal(w)
		return
	}

	h.audit(ctx, AuditEvent{Action: "auth.login", UserID: u.ID, SessionID: sessionID, IP: client.IP, UserAgent: client.UserAgent})
	h.setRefreshCookie(w, pair.RefreshToken, pair.RefreshExpiresIn)
	jsonapi.WriteJSON(w, http.StatusOK, tokenResponse{
		AccessToken: pair.AccessToken,
		ExpiresIn:   pair.AccessExpiresIn,
		TokenType:   "Bearer",
		User:        userResponse{Email: u.Email},
	})
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	token, ok := h.refreshTokenFromCookie(r)
	if !ok {
		jsonapi.WriteError(w, http.StatusUnauthorized, "missing_refresh_token", "Missing refresh token", "")
		return
	}

	ctx := r.Context()
	now := h.now()
	client := h.clientInfo(r)

	claims, err := h.issuer.VerifyRefreshToken(token, now)
	if err != nil {
		h.audit(ctx, AuditEvent{Action: "auth.refresh.fail", IP: client.IP, UserAgent: client.UserAgent, Meta: map[string]any{"reason": "invalid_token"}})
		jsonapi.WriteError(w, http.StatusUnauthorized, "invalid_refresh_token", "Invalid refresh token", "")
		return
	}

	row, found, err := h.sessions.FindValidSession(ctx, now, claims.UserID, token)
	if err != nil {
		h.log.Error("auth.refresh.lookup.fail", "err", err)
		jsonapi.WriteInternal(w)
		return
	}
	if !found {
		h.audit(ctx, AuditEvent{Action: "auth.refresh.fail", UserID: claims.UserID, IP: client.IP, UserAgent: client.UserAgent, Meta: map[string]any{"reason": "invalid_session"}})
		jsonapi.WriteError(w, http.StatusUnauthorized, "invalid_session", "Invalid session", "")
		return
	}

	pair, err := h.issuer.IssuePair(claims.UserID, claims.Email, now)
	if err != nil {
		h.log.Error("auth.refresh.issue_tokens.fail", "err", err)
		jsonapi.WriteInternal(w)
		return
	}
	if err := h.sessions.RefreshSession(ctx, now, row.ID, client, pair.RefreshToken, h.issuer.RefreshTTL()); err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			jsonapi.WriteError(w, http.StatusUnauthorized, "invalid_session", "Invalid session", "")
			return
		}
		h.log.Error("auth.refresh.rotate.fail", "err", err)
		jsonapi.WriteInternal(w)
		return
	}

	h.audit(ctx, AuditEvent{Action: "auth.refresh", UserID: claims.UserID, SessionID: row.ID, IP: client.IP, UserAgent: client.UserAgent})
	h.setRefreshCookie(w, pair.RefreshToken, pair.RefreshExpiresIn)
	jsonapi.WriteJSON(w, http.StatusOK, tokenResponse{
		AccessToken: pair.AccessToken,
		ExpiresIn:   pair.AccessExpiresIn,
		TokenType:   "Bearer",
		User:        userResponse{Email: claims.Email},
	})
}

// handleLogout always succeeds; revocation is best effort.
func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	now := h.now()

	if token, ok := h.refreshTokenFromCookie(r); ok {
		if claims, err := h.issuer.VerifyRefreshToken(token, now); err == nil {
			revoked, err := h.sessions.RevokeSession(ctx, now, claims.UserID, token)
			switch {
			case err != nil:
				h.log.Warn("auth.logout.revoke.fail", "err", err)
			case revoked:
				client := h.clientInfo(r)
				h.audit(ctx, AuditEvent{Action: "auth.logout", UserID: claims.UserID, IP: client.IP, UserAgent: client.UserAgent})
			}
		}
	}

	h.clearRefreshCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) clientInfo(r *http.Request) session.ClientInfo {
	return session.ClientInfo{
		IP:        ClientIP(r, h.cfg.TrustProxy),
		UserAgent: userAgent(r),
	}
}

func writeInvalidCredentials(w http.ResponseWriter) {
	jsonapi.WriteError(w, http.StatusUnauthorized, "invalid_credentials", "Invalid credentials", "")
}

func writeUserExists(w http.ResponseWriter) {
	jsonapi.WriteError(w, http.StatusBadRequest, "user_already_exists", "User already exists", "")
}
