package auth

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/natours/natours-backend/internal/config"
	"github.com/natours/natours-backend/internal/mailer"
	"github.com/natours/natours-backend/internal/metrics"
	"github.com/natours/natours-backend/internal/users"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Module is the wired auth stack.
type Module struct {
	Store   users.Store
	Tokens  *Tokens
	Gate    *Gate
	Service *Service
	Handler *Handler
}

// Options are the collaborators New needs besides the store.
type Options struct {
	Auth    config.AuthConfig
	Mailer  mailer.Mailer
	Metrics *metrics.Metrics
	Log     logrus.FieldLogger
	Now     func() time.Time
}

// Init migrates the users table and wires the module on top of gdb.
func Init(gdb *gorm.DB, opts Options) (*Module, error) {
	if err := users.Migrate(gdb); err != nil {
		return nil, err
	}
	hasher := BcryptHasher{Cost: opts.Auth.BcryptCost}
	store := users.NewGormStore(gdb, users.NewPipeline(hasher, opts.Now))
	return New(store, hasher, opts), nil
}

func New(store users.Store, hasher PasswordHasher, opts Options) *Module {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	tokens := NewTokens(TokenConfig{Secret: opts.Auth.JWTSecret, TTL: opts.Auth.JWTExpiresIn}, opts.Now)
	svc := NewService(Deps{
		Store:    store,
		Hasher:   hasher,
		Tokens:   tokens,
		Mailer:   opts.Mailer,
		Metrics:  opts.Metrics,
		Log:      opts.Log,
		ResetTTL: opts.Auth.ResetTokenTTL,
		Now:      opts.Now,
	})
	h := NewHandler(svc, opts.Auth.CookieTTL(), BasePath, opts.Log)
	h.now = opts.Now

	return &Module{
		Store:   store,
		Tokens:  tokens,
		Gate:    NewGate(tokens, store),
		Service: svc,
		Handler: h,
	}
}

func (m *Module) Routes() chi.Router {
	return SetupRoutes(m.Handler, m.Gate)
}
