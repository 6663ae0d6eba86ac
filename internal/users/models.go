package users

import (
	"time"
)

const DefaultPhoto = "default.jpg"

// User is an account record. Password holds the bcrypt hash once the write
// pipeline has run; the plaintext only lives in memory between SetPassword and
// the next Create/Save.
type User struct {
	ID                   string     `gorm:"type:uuid;primaryKey" json:"id"`
	Name                 string     `gorm:"not null" json:"name"`
	Email                string     `gorm:"uniqueIndex;not null" json:"email"`
	Photo                string     `gorm:"not null;default:'default.jpg'" json:"photo"`
	Role                 Role       `gorm:"type:varchar(16);not null;default:'user'" json:"role"`
	Password             string     `gorm:"not null" json:"-"`
	PasswordConfirm      string     `gorm:"-" json:"-"`
	PasswordChangedAt    *time.Time `json:"-"`
	PasswordResetToken   *string    `gorm:"index" json:"-"`
	PasswordResetExpires *time.Time `json:"-"`
	Active               bool       `gorm:"not null;default:true" json:"-"`
	CreatedAt            time.Time  `json:"createdAt"`
	UpdatedAt            time.Time  `json:"-"`

	passwordModified bool
	resetCleared     bool
}

func (User) TableName() string { return "app_auth.users" }

// publicColumns is every column except the password hash.
var publicColumns = []string{
	"id", "name", "email", "photo", "role",
	"password_changed_at", "password_reset_token", "password_reset_expires",
	"active", "created_at", "updated_at",
}

// SetPassword stages a new plaintext password and its confirmation. The next
// Save hashes it and stamps PasswordChangedAt.
func (u *User) SetPassword(password, confirm string) {
	u.Password = password
	u.PasswordConfirm = confirm
	u.passwordModified = true
}

// PasswordModified reports whether a staged password is waiting to be hashed.
func (u *User) PasswordModified() bool { return u.passwordModified }

// ClearResetToken drops any outstanding reset secret. Save only writes the
// reset columns after this was called; SetResetToken owns them otherwise.
func (u *User) ClearResetToken() {
	u.PasswordResetToken = nil
	u.PasswordResetExpires = nil
	u.resetCleared = true
}

// ChangedPasswordAfter reports whether the password changed after a token issued
// at issuedAt. Comparison is at millisecond precision.
func (u *User) ChangedPasswordAfter(issuedAt time.Time) bool {
	if u.PasswordChangedAt == nil {
		return false
	}
	return issuedAt.UnixMilli() < u.PasswordChangedAt.UnixMilli()
}
