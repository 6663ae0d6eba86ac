package users

import (
	"context"
	"slices"
	"sync"
	"time"
)

// MemoryStore is a Store kept in process memory. It runs the same write
// pipeline as GormStore and backs handler tests and local tooling.
type MemoryStore struct {
	pipeline *Pipeline

	mu   sync.Mutex
	rows map[string]User
}

func NewMemoryStore(pipeline *Pipeline) *MemoryStore {
	return &MemoryStore{pipeline: pipeline, rows: make(map[string]User)}
}

func (s *MemoryStore) Create(_ context.Context, u *User) error {
	if err := s.pipeline.BeforeCreate(u); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.emailTaken(u.Email, "") {
		return ErrDuplicateEmail
	}
	if _, ok := s.rows[u.ID]; ok {
		return ErrDuplicateEmail
	}
	s.rows[u.ID] = *u
	return nil
}

func (s *MemoryStore) Save(_ context.Context, u *User) error {
	rehash := u.passwordModified
	if err := s.pipeline.BeforeSave(u); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[u.ID]
	if !ok {
		return ErrNotFound
	}
	if s.emailTaken(u.Email, u.ID) {
		return ErrDuplicateEmail
	}

	row.Name, row.Email, row.Photo, row.Role = u.Name, u.Email, u.Photo, u.Role
	row.UpdatedAt = u.UpdatedAt
	if rehash {
		row.Password = u.Password
		row.PasswordChangedAt = u.PasswordChangedAt
	}
	if u.resetCleared {
		row.PasswordResetToken, row.PasswordResetExpires = nil, nil
		u.resetCleared = false
	}
	s.rows[u.ID] = row
	return nil
}

func (s *MemoryStore) FindByID(_ context.Context, id string, opts ...FindOption) (*User, error) {
	return s.find(opts, func(u User) bool { return u.ID == id })
}

func (s *MemoryStore) FindByEmail(_ context.Context, email string, opts ...FindOption) (*User, error) {
	email = NormalizeEmail(email)
	return s.find(opts, func(u User) bool { return u.Email == email })
}

func (s *MemoryStore) FindByResetToken(_ context.Context, hash string, now time.Time) (*User, error) {
	return s.find(nil, func(u User) bool {
		return u.PasswordResetToken != nil && *u.PasswordResetToken == hash &&
			u.PasswordResetExpires != nil && u.PasswordResetExpires.After(now)
	})
}

func (s *MemoryStore) SetResetToken(_ context.Context, id string, hash *string, expires *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok {
		return ErrNotFound
	}
	row.PasswordResetToken, row.PasswordResetExpires = hash, expires
	s.rows[id] = row
	return nil
}

func (s *MemoryStore) UpdateProfile(ctx context.Context, id string, upd ProfileUpdate) (*User, error) {
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

func (s *MemoryStore) UpdateRole(ctx context.Context, id string, role Role) (*User, error) {
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

func (s *MemoryStore) Deactivate(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok || !row.Active {
		return ErrNotFound
	}
	row.Active = false
	s.rows[id] = row
	return nil
}

func (s *MemoryStore) FindActiveUsers(_ context.Context, page Page) ([]User, error) {
	page = page.normalized()

	s.mu.Lock()
	var out []User
	for _, u := range s.rows {
		if u.Active {
			u.Password = ""
			out = append(out, u)
		}
	}
	s.mu.Unlock()

	slices.SortFunc(out, func(a, b User) int { return a.CreatedAt.Compare(b.CreatedAt) })
	if page.Offset >= len(out) {
		return nil, nil
	}
	out = out[page.Offset:]
	if len(out) > page.Limit {
		out = out[:page.Limit]
	}
	return out, nil
}

// Row returns the stored record as is, inactive rows and password hash included.
func (s *MemoryStore) Row(id string) (User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.rows[id]
	return u, ok
}

func (s *MemoryStore) find(opts []FindOption, match func(User) bool) (*User, error) {
	var o findOptions
	for _, opt := range opts {
		opt(&o)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.rows {
		if !u.Active || !match(u) {
			continue
		}
		if !o.withPassword {
			u.Password = ""
		}
		return &u, nil
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) emailTaken(email, exceptID string) bool {
	for id, u := range s.rows {
		if id != exceptID && u.Email == email {
			return true
		}
	}
	return false
}
