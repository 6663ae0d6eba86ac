package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/natours/natours-backend/internal/apperr"
	"github.com/natours/natours-backend/internal/mailer"
	"github.com/natours/natours-backend/internal/metrics"
	"github.com/natours/natours-backend/internal/users"
	"github.com/sirupsen/logrus"
)

const (
	msgMissingCredentials = "Please provide email and password"
	msgBadCredentials     = "Incorrect email or password"
	msgMissingEmail       = "Please provide your email address"
	msgNoSuchEmail        = "There is no user with that email address."
	msgDeliveryFailed     = "There was an error sending the email. Try again later!"
	msgResetInvalid       = "Token is invalid or has expired"
	msgWrongPassword      = "Your current password is wrong."
	msgNotForPasswords    = "This route is not for password updates. Please use /updateMyPassword."
	msgDuplicateEmail     = "Duplicate field value: email. Please use another value!"
	msgNoUser             = "No user found with that ID"

	DefaultResetTTL = 10 * time.Minute
)

// PasswordHasher hashes new passwords and checks presented ones.
type PasswordHasher interface {
	users.Hasher
	Verify(plain, hash string) bool
}

// Session is what a successful signup, login or password change hands back.
type Session struct {
	Token string
	User  *users.User
}

type SignupInput struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
}

// UpdateMeInput lists every field a client might send; only Name and Email
// are accepted.
type UpdateMeInput struct {
	Name            *string `json:"name"`
	Email           *string `json:"email"`
	Password        *string `json:"password"`
	PasswordConfirm *string `json:"passwordConfirm"`
}

type Deps struct {
	Store    users.Store
	Hasher   PasswordHasher
	Tokens   *Tokens
	Mailer   mailer.Mailer
	Metrics  *metrics.Metrics
	Log      logrus.FieldLogger
	ResetTTL time.Duration
	Now      func() time.Time
}

type Service struct {
	store    users.Store
	hasher   PasswordHasher
	tokens   *Tokens
	mailer   mailer.Mailer
	metrics  *metrics.Metrics
	log      logrus.FieldLogger
	resetTTL time.Duration
	now      func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

func NewService(d Deps) *Service {
	if d.ResetTTL <= 0 {
		d.ResetTTL = DefaultResetTTL
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Service{
		store:    d.Store,
		hasher:   d.Hasher,
		tokens:   d.Tokens,
		mailer:   d.Mailer,
		metrics:  d.Metrics,
		log:      d.Log,
		resetTTL: d.ResetTTL,
		now:      d.Now,
	}
}

func (s *Service) Signup(ctx context.Context, in SignupInput, welcomeURL string) (sess *Session, err error) {
	defer func() { s.metrics.AuthEvent("signup", err) }()

	u := &users.User{Name: in.Name, Email: in.Email}
	u.SetPassword(in.Password, in.PasswordConfirm)

	if err := s.store.Create(ctx, u); err != nil {
		return nil, storeErr(err)
	}
	log := s.log.WithField("user_id", u.ID)
	log.Info("user signed up")

	if err := s.mailer.SendWelcome(ctx, recipient(u), welcomeURL); err != nil {
		log.WithError(err).Warn("welcome email failed")
	}
	return s.session(u)
}

// Login answers the same error for an unknown email and a wrong password.
func (s *Service) Login(ctx context.Context, email, password string) (sess *Session, err error) {
	defer func() { s.metrics.AuthEvent("login", err) }()

	if email == "" || password == "" {
		return nil, apperr.Validation(msgMissingCredentials)
	}

	u, err := s.store.FindByEmail(ctx, email, users.WithPassword())
	if errors.Is(err, users.ErrNotFound) {
		// keep response time close to a real mismatch
		s.hasher.Verify(password, s.dummy())
		return nil, apperr.NotAuthenticated(msgBadCredentials)
	}
	if err != nil {
		return nil, err
	}
	if !s.hasher.Verify(password, u.Password) {
		s.log.WithField("user_id", u.ID).Info("login rejected")
		return nil, apperr.NotAuthenticated(msgBadCredentials)
	}

	return s.session(u)
}

// RequestReset stores the hash of a fresh reset secret and mails the secret.
// When the mail cannot be sent the stored hash is cleared again.
func (s *Service) RequestReset(ctx context.Context, email, resetURLBase string) (err error) {
	defer func() { s.metrics.AuthEvent("reset_request", err) }()

	if email == "" {
		return apperr.Validation(msgMissingEmail)
	}
	u, err := s.store.FindByEmail(ctx, email)
	if errors.Is(err, users.ErrNotFound) {
		return apperr.NotFound(msgNoSuchEmail)
	}
	if err != nil {
		return err
	}

	plain, hash, err := NewResetToken()
	if err != nil {
		return err
	}
	expires := s.now().Add(s.resetTTL)
	if err := s.store.SetResetToken(ctx, u.ID, &hash, &expires); err != nil {
		return storeErr(err)
	}

	log := s.log.WithField("user_id", u.ID)
	if err := s.mailer.SendPasswordReset(ctx, recipient(u), resetURLBase+plain, s.resetTTL); err != nil {
		if rbErr := s.store.SetResetToken(context.WithoutCancel(ctx), u.ID, nil, nil); rbErr != nil {
			log.WithError(rbErr).Error("could not clear reset token after failed delivery")
		}
		return apperr.Wrap(apperr.ErrDelivery, msgDeliveryFailed, err)
	}

	log.Info("password reset requested")
	return nil
}

// PerformReset sets a new password for the holder of a valid reset secret and
// logs them in.
func (s *Service) PerformReset(ctx context.Context, secret, password, confirm string) (sess *Session, err error) {
	defer func() { s.metrics.AuthEvent("reset", err) }()

	u, err := s.store.FindByResetToken(ctx, HashResetToken(secret), s.now())
	if errors.Is(err, users.ErrNotFound) {
		return nil, apperr.Validation(msgResetInvalid)
	}
	if err != nil {
		return nil, err
	}

	u.SetPassword(password, confirm)
	u.ClearResetToken()
	if err := s.store.Save(ctx, u); err != nil {
		return nil, storeErr(err)
	}

	s.log.WithField("user_id", u.ID).Info("password reset")
	return s.session(u)
}

func (s *Service) ChangePassword(ctx context.Context, userID, current, password, confirm string) (sess *Session, err error) {
	defer func() { s.metrics.AuthEvent("password_change", err) }()

	u, err := s.store.FindByID(ctx, userID, users.WithPassword())
	if errors.Is(err, users.ErrNotFound) {
		return nil, apperr.NotAuthenticated(msgUserGone)
	}
	if err != nil {
		return nil, err
	}
	if !s.hasher.Verify(current, u.Password) {
		return nil, apperr.NotAuthenticated(msgWrongPassword)
	}

	u.SetPassword(password, confirm)
	if err := s.store.Save(ctx, u); err != nil {
		return nil, storeErr(err)
	}

	s.log.WithField("user_id", u.ID).Info("password changed")
	return s.session(u)
}

func (s *Service) UpdateMe(ctx context.Context, userID string, in UpdateMeInput) (*users.User, error) {
	if in.Password != nil || in.PasswordConfirm != nil {
		return nil, apperr.Validation(msgNotForPasswords)
	}
	u, err := s.store.UpdateProfile(ctx, userID, users.ProfileUpdate{Name: in.Name, Email: in.Email})
	if err != nil {
		return nil, storeErr(err)
	}
	return u, nil
}

func (s *Service) DeleteMe(ctx context.Context, userID string) error {
	if err := s.store.Deactivate(ctx, userID); err != nil {
		return storeErr(err)
	}
	s.log.WithField("user_id", userID).Info("user deactivated")
	return nil
}

func (s *Service) GetUser(ctx context.Context, id string) (*users.User, error) {
	u, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, storeErr(err)
	}
	return u, nil
}

func (s *Service) ListUsers(ctx context.Context, page users.Page) ([]users.User, error) {
	return s.store.FindActiveUsers(ctx, page)
}

func (s *Service) UpdateUserRole(ctx context.Context, id string, role users.Role) (*users.User, error) {
	u, err := s.store.UpdateRole(ctx, id, role)
	if err != nil {
		return nil, storeErr(err)
	}
	s.log.WithFields(logrus.Fields{"user_id": id, "role": role}).Info("role updated")
	return u, nil
}

func (s *Service) session(u *users.User) (*Session, error) {
	token, err := s.tokens.Issue(u.ID)
	if err != nil {
		return nil, fmt.Errorf("issue token for %s: %w", u.ID, err)
	}
	return &Session{Token: token, User: u}, nil
}

func (s *Service) dummy() string {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.hasher.Hash("not-a-real-password")
	})
	return s.dummyHash
}

func recipient(u *users.User) mailer.Recipient {
	return mailer.Recipient{Name: u.Name, Email: u.Email}
}

func storeErr(err error) error {
	switch {
	case errors.Is(err, users.ErrNotFound):
		return apperr.Wrap(apperr.ErrNotFound, msgNoUser, err)
	case errors.Is(err, users.ErrDuplicateEmail):
		return apperr.Wrap(apperr.ErrConflict, msgDuplicateEmail, err)
	default:
		return err
	}
}
