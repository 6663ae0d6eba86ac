package middleware

import (
	"net/http"
	"strings"

	"github.com/natours/natours-backend/internal/apperr"
	"github.com/natours/natours-backend/internal/httputil"
	"github.com/natours/natours-backend/internal/users"
	"github.com/natours/natours-backend/internal/utils"
	"github.com/sirupsen/logrus"
)

// Authenticator resolves the caller of a request. Authenticate fails with a
// NotAuthenticated error; Identify never fails and returns nil for anonymous.
type Authenticator interface {
	Authenticate(r *http.Request) (*users.User, error)
	Identify(r *http.Request) *users.User
}

// Protect rejects requests without a valid, fresh session token and puts the
// resolved user on the context.
func Protect(authn Authenticator, log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, err := authn.Authenticate(r)
			if err != nil {
				httputil.WriteError(w, log, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(utils.WithUser(r.Context(), u)))
		})
	}
}

// Identify is the soft variant of Protect: the user is attached when one can
// be resolved and the request always continues.
func Identify(authn Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if u := authn.Identify(r); u != nil {
				r = r.WithContext(utils.WithUser(r.Context(), u))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RestrictTo lets through only users whose role is in allowed. It must run
// after Protect.
func RestrictTo(allowed users.RoleSet, log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, _ := utils.UserFromContext(r.Context())
			d := users.Authorize(u, allowed)
			if !d.Allowed {
				if u == nil {
					httputil.WriteError(w, log, apperr.NotAuthenticated(d.Reason))
					return
				}
				httputil.WriteError(w, log, apperr.Forbidden(d.Reason))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CORS echoes the Origin back only when it is on the allow-list.
func CORS(origins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[strings.TrimRight(strings.TrimSpace(o), "/")] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			if _, ok := allowed[origin]; ok {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Vary", "Origin") // important for caches
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Set("Access-Control-Allow-Methods",
					"GET, POST, PUT, PATCH, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers",
					"Content-Type, Authorization")
			}

			w.Header().Set("Access-Control-Expose-Headers", "Retry-After")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
