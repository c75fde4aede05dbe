package middleware

import (
	"net"
	"net/http"
	"time"

	"github.com/pulmoscan/pulmoscan/internal/api/response"
	"github.com/pulmoscan/pulmoscan/internal/cache"
)

// RateLimit enforces a per-client request budget using Redis counters keyed
// by remote address. A cache failure fails open: limiting is a guard, not a
// correctness requirement.
type RateLimit struct {
	cache     cache.Cache
	perMinute int64
}

func NewRateLimit(c cache.Cache, perMinute int64) *RateLimit {
	return &RateLimit{cache: c, perMinute: perMinute}
}

func (rl *RateLimit) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}

		count, err := rl.cache.IncrWithExpiry(r.Context(), cache.RateLimitKey(host), time.Minute)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		if count > rl.perMinute {
			response.Error(w, http.StatusTooManyRequests, "RATE_LIMITED",
				"Too many requests, slow down", nil)
			return
		}

		next.ServeHTTP(w, r)
	})
}
