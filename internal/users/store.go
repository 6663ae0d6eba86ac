package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	ErrNotFound       = errors.New("user not found")
	ErrDuplicateEmail = errors.New("email already in use")
)

const uniqueViolation = "23505"

// Store is the persistence boundary for user accounts. Lookups only ever see
// active users.
type Store interface {
	Create(ctx context.Context, u *User) error
	Save(ctx context.Context, u *User) error
	FindByID(ctx context.Context, id string, opts ...FindOption) (*User, error)
	FindByEmail(ctx context.Context, email string, opts ...FindOption) (*User, error)
	FindByResetToken(ctx context.Context, hash string, now time.Time) (*User, error)
	SetResetToken(ctx context.Context, id string, hash *string, expires *time.Time) error
	UpdateProfile(ctx context.Context, id string, upd ProfileUpdate) (*User, error)
	UpdateRole(ctx context.Context, id string, role Role) (*User, error)
	Deactivate(ctx context.Context, id string) error
	FindActiveUsers(ctx context.Context, page Page) ([]User, error)
}

type findOptions struct {
	withPassword bool
}

type FindOption func(*findOptions)

// WithPassword loads the password hash, which is left out by default.
func WithPassword() FindOption {
	return func(o *findOptions) { o.withPassword = true }
}

// ProfileUpdate carries the self-service fields. Nil means unchanged.
type ProfileUpdate struct {
	Name  *string
	Email *string
}

type Page struct {
	Limit  int
	Offset int
}

const (
	DefaultPageSize = 100
	maxPageSize     = 500
)

func (p Page) normalized() Page {
	if p.Limit <= 0 {
		p.Limit = DefaultPageSize
	}
	if p.Limit > maxPageSize {
		p.Limit = maxPageSize
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

type GormStore struct {
	db       *gorm.DB
	pipeline *Pipeline
}

func NewGormStore(db *gorm.DB, pipeline *Pipeline) *GormStore {
	return &GormStore{db: db, pipeline: pipeline}
}

func (s *GormStore) active(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Model(&User{}).Where("active = ?", true)
}

func (s *GormStore) Create(ctx context.Context, u *User) error {
	if err := s.pipeline.BeforeCreate(u); err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Create(u).Error; err != nil {
		return translate(err)
	}
	return nil
}

// Save writes the mutable columns of an existing user. The password columns are
// only written when a new password was staged with SetPassword, the reset
// columns only after ClearResetToken.
func (s *GormStore) Save(ctx context.Context, u *User) error {
	rehash := u.passwordModified
	if err := s.pipeline.BeforeSave(u); err != nil {
		return err
	}

	cols := []string{"name", "email", "photo", "role", "updated_at"}
	if rehash {
		cols = append(cols, "password", "password_changed_at")
	}
	if u.resetCleared {
		cols = append(cols, "password_reset_token", "password_reset_expires")
	}

	res := s.db.WithContext(ctx).Model(u).Select(cols).Updates(u)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	u.resetCleared = false
	return nil
}

func (s *GormStore) FindByID(ctx context.Context, id string, opts ...FindOption) (*User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	return s.first(s.scoped(ctx, opts).Where("id = ?", id))
}

func (s *GormStore) FindByEmail(ctx context.Context, email string, opts ...FindOption) (*User, error) {
	return s.first(s.scoped(ctx, opts).Where("email = ?", NormalizeEmail(email)))
}

// FindByResetToken returns the user holding hash whose reset window is still
// open at now.
func (s *GormStore) FindByResetToken(ctx context.Context, hash string, now time.Time) (*User, error) {
	q := s.scoped(ctx, nil).
		Where("password_reset_token = ?", hash).
		Where("password_reset_expires > ?", now)
	return s.first(q)
}

// SetResetToken writes or clears the reset columns without running validation.
func (s *GormStore) SetResetToken(ctx context.Context, id string, hash *string, expires *time.Time) error {
	res := s.db.WithContext(ctx).Model(&User{}).Where("id = ?", id).Updates(map[string]any{
		"password_reset_token":   hash,
		"password_reset_expires": expires,
	})
	if res.Error != nil {
		return fmt.Errorf("set reset token: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) UpdateProfile(ctx context.Context, id string, upd ProfileUpdate) (*User, error) {
	u, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if upd.Name != nil {
		u.Name = *upd.Name
	}
	if upd.Email != nil {
		u.Email = *upd.Email
	}
	if err := s.pipeline.ValidateProfile(u.Name, u.Email); err != nil {
		return nil, err
	}
	if err := s.Save(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *GormStore) UpdateRole(ctx context.Context, id string, role Role) (*User, error) {
	if err := s.pipeline.ValidateRole(role); err != nil {
		return nil, err
	}
	u, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	u.Role = role
	if err := s.Save(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Deactivate soft-deletes a user. The row stays but every lookup skips it.
func (s *GormStore) Deactivate(ctx context.Context, id string) error {
	res := s.active(ctx).Where("id = ?", id).Update("active", false)
	if res.Error != nil {
		return fmt.Errorf("deactivate user: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) FindActiveUsers(ctx context.Context, page Page) ([]User, error) {
	page = page.normalized()

	var out []User
	err := s.active(ctx).
		Select(publicColumns).
		Order("created_at").
		Limit(page.Limit).
		Offset(page.Offset).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return out, nil
}

func (s *GormStore) scoped(ctx context.Context, opts []FindOption) *gorm.DB {
	var o findOptions
	for _, opt := range opts {
		opt(&o)
	}
	q := s.active(ctx)
	if !o.withPassword {
		q = q.Select(publicColumns)
	}
	return q
}

func (s *GormStore) first(q *gorm.DB) (*User, error) {
	var u User
	if err := q.Take(&u).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func translate(err error) error {
	var pgErr *pgconn.PgError
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicateEmail
	case errors.As(err, &pgErr) && pgErr.Code == uniqueViolation:
		return ErrDuplicateEmail
	default:
		return err
	}
}
