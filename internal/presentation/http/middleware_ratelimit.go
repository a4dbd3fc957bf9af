package httppresentation

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Zhima-Mochi/kitchenledger/internal/observability"
	"github.com/Zhima-Mochi/kitchenledger/internal/observability/logctx"
)

var errRateLimited = errors.New("rate limit exceeded")

// Limiter counts requests per key inside a fixed window.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Window() time.Duration
}

// withRateLimit rejects callers over their budget with 429. Limiter errors fail open.
func (h *Handler) withRateLimit(next http.Handler) http.Handler {
	if h.limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := clientKey(r)
		allowed, err := h.limiter.Allow(r.Context(), key)
		if err != nil {
			logctx.FromOr(r.Context(), h.log).Warn("rate_limit_unavailable",
				observability.F("error", err.Error()),
			)
			next.ServeHTTP(w, r)
			return
		}
		if !allowed {
			w.Header().Set("Retry-After", strconv.Itoa(int(h.limiter.Window().Seconds())))
			writeError(w, http.StatusTooManyRequests, errRateLimited)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientKey prefers the tenant header, then the first forwarded address, then the peer address.
func clientKey(r *http.Request) string {
	if tid := r.Header.Get(headerTenantID); tid != "" {
		return "tenant:" + tid
	}
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			fwd = fwd[:i]
		}
		return "ip:" + strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}
