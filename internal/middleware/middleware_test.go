package middleware_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/natours/natours-backend/internal/apperr"
	"github.com/natours/natours-backend/internal/logging"
	"github.com/natours/natours-backend/internal/metrics"
	"github.com/natours/natours-backend/internal/middleware"
	"github.com/natours/natours-backend/internal/ratelimit"
	"github.com/natours/natours-backend/internal/users"
	"github.com/natours/natours-backend/internal/utils"
)

// mockAuthenticator implements middleware.Authenticator without any token or
// database dependency.
type mockAuthenticator struct {
	user *users.User
	err  error
}

func (m mockAuthenticator) Authenticate(*http.Request) (*users.User, error) {
	return m.user, m.err
}

func (m mockAuthenticator) Identify(*http.Request) *users.User {
	if m.err != nil {
		return nil
	}
	return m.user
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func serve(t *testing.T, h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	if req == nil {
		req = httptest.NewRequest(http.MethodGet, "/test", nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// TestProtect_Rejects verifies that an authentication failure becomes a 401
// with the failure message in the body.
func TestProtect_Rejects(t *testing.T) {
	authn := mockAuthenticator{err: apperr.NotAuthenticated("You are not logged in! Please login to get access")}
	h := middleware.Protect(authn, logging.Discard())(okHandler)

	rec := serve(t, h, nil)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "You are not logged in!") {
		t.Errorf("unexpected body: %q", rec.Body.String())
	}
}

// TestProtect_StoreFailure verifies that an infrastructure error is not
// reported as an authentication failure.
func TestProtect_StoreFailure(t *testing.T) {
	h := middleware.Protect(mockAuthenticator{err: errors.New("db down")}, logging.Discard())(okHandler)

	rec := serve(t, h, nil)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "db down") {
		t.Errorf("internal error leaked: %q", rec.Body.String())
	}
}

// TestProtect_InjectsUser verifies that the resolved user reaches the handler.
func TestProtect_InjectsUser(t *testing.T) {
	want := &users.User{ID: "test-user-123", Role: users.RoleUser}

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, ok := utils.UserFromContext(r.Context())
		if !ok || got.ID != want.ID {
			http.Error(w, "user not in context", http.StatusInternalServerError)
			return
		}
		if id, _ := utils.GetUserIDFromContext(r.Context()); id != want.ID {
			http.Error(w, "wrong userID in context: "+id, http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	rec := serve(t, middleware.Protect(mockAuthenticator{user: want}, logging.Discard())(inner), nil)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d; body: %s", rec.Code, rec.Body.String())
	}
}

// TestIdentify_NeverBlocks verifies the soft gate passes anonymous callers
// through untouched.
func TestIdentify_NeverBlocks(t *testing.T) {
	var sawUser bool
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, sawUser = utils.UserFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	rec := serve(t, middleware.Identify(mockAuthenticator{err: errors.New("bad token")})(inner), nil)
	if rec.Code != http.StatusOK || sawUser {
		t.Errorf("expected anonymous 200, got %d (user=%v)", rec.Code, sawUser)
	}

	rec = serve(t, middleware.Identify(mockAuthenticator{user: &users.User{ID: "u"}})(inner), nil)
	if rec.Code != http.StatusOK || !sawUser {
		t.Errorf("expected identified 200, got %d (user=%v)", rec.Code, sawUser)
	}
}

func TestRestrictTo(t *testing.T) {
	tests := []struct {
		name    string
		user    *users.User
		allowed users.RoleSet
		want    int
	}{
		{"guide on admin-only", &users.User{Role: users.RoleGuide}, users.Roles(users.RoleAdmin), http.StatusForbidden},
		{"guide on guide or admin", &users.User{Role: users.RoleGuide}, users.Roles(users.RoleGuide, users.RoleAdmin), http.StatusOK},
		{"no user on context", nil, users.Roles(users.RoleAdmin), http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			if tt.user != nil {
				req = req.WithContext(utils.WithUser(req.Context(), tt.user))
			}

			rec := serve(t, middleware.RestrictTo(tt.allowed, logging.Discard())(okHandler), req)

			if rec.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, rec.Code)
			}
			if tt.want == http.StatusForbidden && !strings.Contains(rec.Body.String(), "You do not have permission") {
				t.Errorf("unexpected body: %q", rec.Body.String())
			}
		})
	}
}

func TestCORS(t *testing.T) {
	h := middleware.CORS([]string{"http://localhost:3000/"})(okHandler)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/users/login", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := serve(t, h, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204 preflight, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("expected origin echoed, got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = serve(t, h, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("unlisted origin must not be echoed, got %q", got)
	}
}

type stubLimiter struct {
	res ratelimit.Result
	err error
}

func (s stubLimiter) Allow(context.Context, string) (ratelimit.Result, error) { return s.res, s.err }

func TestRateLimit(t *testing.T) {
	m := metrics.New()

	denied := middleware.RateLimit(stubLimiter{res: ratelimit.Result{RetryAfter: 1500 * time.Millisecond}}, m, logging.Discard())(okHandler)
	rec := serve(t, denied, nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "2" {
		t.Errorf("expected Retry-After 2, got %q", got)
	}
	if !strings.Contains(rec.Body.String(), "Too many requests from this IP") {
		t.Errorf("unexpected body: %q", rec.Body.String())
	}

	failOpen := middleware.RateLimit(stubLimiter{err: errors.New("redis down")}, m, logging.Discard())(okHandler)
	if rec := serve(t, failOpen, nil); rec.Code != http.StatusOK {
		t.Errorf("expected limiter errors to let requests through, got %d", rec.Code)
	}
}

func TestRateLimit_MemoryBackend(t *testing.T) {
	l := ratelimit.NewMemoryLimiter(ratelimit.Config{Requests: 2, Window: time.Hour}, nil)
	h := middleware.RateLimit(l, nil, logging.Discard())(okHandler)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "203.0.113.7:5555"
		codes = append(codes, serve(t, h, req).Code)
	}

	want := []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}
	for i := range want {
		if codes[i] != want[i] {
			t.Errorf("request %d: expected %d, got %d", i, want[i], codes[i])
		}
	}
}

func TestRateLimit_ForwardedHeadersNeedTrust(t *testing.T) {
	for _, tt := range []struct {
		trusted bool
		want    []int
	}{
		{false, []int{http.StatusOK, http.StatusTooManyRequests, http.StatusTooManyRequests}},
		{true, []int{http.StatusOK, http.StatusOK, http.StatusOK}},
	} {
		l := ratelimit.NewMemoryLimiter(ratelimit.Config{Requests: 1, Window: time.Hour}, nil)
		h := middleware.RealIP(tt.trusted)(middleware.RateLimit(l, nil, logging.Discard())(okHandler))

		for i, spoofed := range []string{"198.51.100.1", "198.51.100.2", "198.51.100.3"} {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = "203.0.113.7:5555"
			req.Header.Set("X-Forwarded-For", spoofed)
			if got := serve(t, h, req).Code; got != tt.want[i] {
				t.Errorf("trusted=%v request %d: expected %d, got %d", tt.trusted, i, tt.want[i], got)
			}
		}
	}
}

func TestRequestLogger_PassesThrough(t *testing.T) {
	h := middleware.RequestLogger(logging.Discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	if rec := serve(t, h, nil); rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
}
