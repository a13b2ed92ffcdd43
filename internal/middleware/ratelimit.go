package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"server/internal/ratelimit"
)

// RateLimit applies an IP-keyed fixed-window limit across the whole API
// using the injected limiter. The metered translate endpoint runs its own
// per-user check on top of this one; this layer only caps raw throughput
// per client.
func RateLimit(limiter *ratelimit.Limiter, limit int, per time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := "api:" + ClientIPForRateLimit(r)
			res := limiter.Check(key, limit, per)
			if !res.Allowed {
				w.Header().Set("X-RateLimit-Remaining", "0")
				w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.UnixMilli(), 10))
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIPForRateLimit extracts the best-effort caller IP: the first valid
// X-Forwarded-For hop, then the remote address.
func ClientIPForRateLimit(r *http.Request) string {
	if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
		for _, part := range strings.Split(xf, ",") {
			ip := strings.TrimSpace(part)
			if ip == "" {
				continue
			}
			if net.ParseIP(ip) != nil {
				return ip
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		if net.ParseIP(host) != nil {
			return host
		}
	} else if net.ParseIP(r.RemoteAddr) != nil {
		return r.RemoteAddr
	}

	return r.RemoteAddr
}
