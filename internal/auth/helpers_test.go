package auth_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/natours/natours-backend/internal/auth"
	"github.com/natours/natours-backend/internal/config"
	"github.com/natours/natours-backend/internal/logging"
	"github.com/natours/natours-backend/internal/mailer"
	"github.com/natours/natours-backend/internal/metrics"
	"github.com/natours/natours-backend/internal/users"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "test-secret-0123456789abcdef012345"

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type sentMail struct {
	kind string
	to   mailer.Recipient
	url  string
}

type fakeMailer struct {
	mu       sync.Mutex
	sent     []sentMail
	resetErr error
	welcErr  error
}

func (f *fakeMailer) SendWelcome(_ context.Context, to mailer.Recipient, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.welcErr != nil {
		return f.welcErr
	}
	f.sent = append(f.sent, sentMail{kind: "welcome", to: to, url: url})
	return nil
}

func (f *fakeMailer) SendPasswordReset(_ context.Context, to mailer.Recipient, url string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.resetErr != nil {
		return f.resetErr
	}
	f.sent = append(f.sent, sentMail{kind: "reset", to: to, url: url})
	return nil
}

func (f *fakeMailer) last(kind string) (sentMail, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.sent) - 1; i >= 0; i-- {
		if f.sent[i].kind == kind {
			return f.sent[i], true
		}
	}
	return sentMail{}, false
}

type fixture struct {
	clock  *clock
	mail   *fakeMailer
	store  *users.MemoryStore
	module *auth.Module
}

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret:         testSecret,
		JWTExpiresIn:      90 * 24 * time.Hour,
		CookieExpiresDays: 90,
		ResetTokenTTL:     10 * time.Minute,
		BcryptCost:        bcrypt.MinCost,
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	c := newClock()
	mail := &fakeMailer{}
	hasher := auth.BcryptHasher{Cost: bcrypt.MinCost}
	store := users.NewMemoryStore(users.NewPipeline(hasher, c.Now))

	m := auth.New(store, hasher, auth.Options{
		Auth:    testAuthConfig(),
		Mailer:  mail,
		Metrics: metrics.New(),
		Log:     logging.Discard(),
		Now:     c.Now,
	})
	return &fixture{clock: c, mail: mail, store: store, module: m}
}

// signup creates an account through the service and returns its session.
func (f *fixture) signup(t *testing.T, name, email, password string) *auth.Session {
	t.Helper()
	sess, err := f.module.Service.Signup(context.Background(), auth.SignupInput{
		Name: name, Email: email, Password: password, PasswordConfirm: password,
	}, "http://localhost/me")
	require.NoError(t, err)
	return sess
}

func (f *fixture) setRole(t *testing.T, id string, role users.Role) {
	t.Helper()
	_, err := f.store.UpdateRole(context.Background(), id, role)
	require.NoError(t, err)
}
