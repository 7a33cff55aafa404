package authapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"taskmanager/cmd/internal/auth/session"
	"taskmanager/cmd/internal/jsonapi"
)

// Principal is the authenticated caller attached by RequireAuth.
type Principal struct {
	UserID string
	Email  string
}

type principalKey struct{}

// WithPrincipal returns ctx carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the principal attached by RequireAuth.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok && p.UserID != ""
}

// AccessVerifier checks access tokens.
type AccessVerifier interface {
	VerifyAccessToken(tok string, now time.Time) (session.Claims, error)
}

// RequireAuth gates next on a valid "Authorization: Bearer <token>" header.
// Verification is stateless: sessions are not consulted.
func RequireAuth(verifier AccessVerifier, now func() time.Time) func(http.Handler) http.Handler {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.TrimSpace(r.Header.Get("Authorization")) == "" {
				writeUnauthorized(w, "unauthorized", "Authorization header is required")
				return
			}
			tok := bearerToken(r)
			if tok == "" {
				writeUnauthorized(w, "unauthorized", "Authorization header must be in format: Bearer <token>")
				return
			}
			claims, err := verifier.VerifyAccessToken(tok, now())
			if err != nil {
				writeUnauthorized(w, "invalid_token", "Invalid or expired access token")
				return
			}
			ctx := WithPrincipal(r.Context(), Principal{UserID: claims.UserID, Email: claims.Email})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, code, detail string) {
	w.Header().Set("WWW-Authenticate", `Bearer`)
	jsonapi.WriteError(w, http.StatusUnauthorized, code, "Unauthorized", detail)
}
