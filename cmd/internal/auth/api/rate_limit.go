package authapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"taskmanager/cmd/internal/jsonapi"
)

// checkLoginThrottle fails open when the limiter backend errors.
func (h *Handler) checkLoginThrottle(ctx context.Context, ip string) (bool, time.Duration) {
	if h.limiter == nil {
		return false, 0
	}
	d, err := h.limiter.Allow(ctx, "login:"+ip)
	if err != nil {
		h.log.Warn("auth.login.throttle.fail", "err", err)
		return false, 0
	}
	if d.Allowed {
		return false, 0
	}
	return true, d.RetryAfter
}

func writeRateLimited(w http.ResponseWriter, retryAfter time.Duration) {
	if retryAfter > 0 {
		secs := int64((retryAfter + time.Second - 1) / time.Second)
		w.Header().Set("Retry-After", strconv.FormatInt(secs, 10))
	}
	jsonapi.WriteError(w, http.StatusTooManyRequests, "rate_limited", "Too many requests", "Too many login attempts. Please retry later.")
}
