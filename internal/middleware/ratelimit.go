package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/natours/natours-backend/internal/httputil"
	"github.com/natours/natours-backend/internal/metrics"
	"github.com/natours/natours-backend/internal/ratelimit"
	"github.com/sirupsen/logrus"
)

const tooManyRequests = "Too many requests from this IP, please try again in an hour!"

// RealIP rewrites RemoteAddr from X-Forwarded-For / X-Real-IP when trusted.
// Untrusted deployments keep the socket address, so clients cannot pick their
// own rate-limit key.
func RealIP(trusted bool) func(http.Handler) http.Handler {
	if trusted {
		return chimw.RealIP
	}
	return func(next http.Handler) http.Handler { return next }
}

// RateLimit throttles per client IP as seen in RemoteAddr. A limiter backend
// error lets the request through.
func RateLimit(l ratelimit.Limiter, m *metrics.Metrics, log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientIP(r)
			res, err := l.Allow(r.Context(), key)
			if err != nil {
				log.WithError(err).WithField("client_ip", key).Warn("rate limiter unavailable")
				next.ServeHTTP(w, r)
				return
			}
			if !res.Allowed {
				m.RateLimited()
				secs := int(math.Ceil(res.RetryAfter.Seconds()))
				w.Header().Set("Retry-After", strconv.Itoa(max(secs, 1)))
				httputil.WriteErrorMessage(w, http.StatusTooManyRequests, tooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
