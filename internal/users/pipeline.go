package users

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/natours/natours-backend/internal/apperr"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Hasher turns a plaintext password into a storable hash.
type Hasher interface {
	Hash(plain string) (string, error)
}

// Pipeline holds the steps that run before a user row is written. The store
// calls it explicitly on every Create and Save.
type Pipeline struct {
	hasher   Hasher
	now      func() time.Time
	validate *validator.Validate
}

func NewPipeline(h Hasher, now func() time.Time) *Pipeline {
	if now == nil {
		now = time.Now
	}
	v := validator.New()
	// bcrypt reads at most 72 bytes, so the limit is on bytes, not characters.
	_ = v.RegisterValidation("pwbytes", func(fl validator.FieldLevel) bool {
		return len(fl.Field().String()) <= MaxPasswordBytes
	})
	return &Pipeline{hasher: h, now: now, validate: v}
}

const MaxPasswordBytes = 72

type profileFields struct {
	Name  string `validate:"required,max=100"`
	Email string `validate:"required,email"`
}

type roleField struct {
	Role Role `validate:"oneof=user guide lead-guide admin"`
}

type passwordFields struct {
	Password        string `validate:"required,min=8,pwbytes"`
	PasswordConfirm string `validate:"required,eqfield=Password"`
}

var fieldMessages = map[string]string{
	"Name.required":            "Please tell us your name!",
	"Name.max":                 "A name must have at most 100 characters",
	"Email.required":           "Please provide your email",
	"Email.email":              "Please provide a valid email",
	"Role.oneof":               "Role is either: user, guide, lead-guide, admin",
	"Password.required":        "Please provide a password",
	"Password.min":             "A password must have at least 8 characters",
	"Password.pwbytes":         "A password must be at most 72 bytes long",
	"PasswordConfirm.required": "Please confirm your password",
	"PasswordConfirm.eqfield":  "Passwords are not the same!",
}

// BeforeCreate prepares a brand-new user: normalises and validates every field,
// hashes the password, drops the confirmation and stamps identity and timestamps.
func (p *Pipeline) BeforeCreate(u *User) error {
	normalize(u)
	if u.Role == "" {
		u.Role = RoleUser
	}
	if u.Photo == "" {
		u.Photo = DefaultPhoto
	}

	if err := p.check(profileOf(u), roleField{u.Role}, passwordOf(u)); err != nil {
		return err
	}
	if err := p.hashPassword(u); err != nil {
		return err
	}

	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := p.now()
	u.Active = true
	u.CreatedAt = now
	u.UpdatedAt = now
	return nil
}

// BeforeSave prepares an existing user. The password is only re-hashed when it
// was staged through SetPassword; an untouched hash is left alone.
func (p *Pipeline) BeforeSave(u *User) error {
	normalize(u)
	u.UpdatedAt = p.now()

	if !u.passwordModified {
		return p.check(profileOf(u), roleField{u.Role})
	}
	if err := p.check(profileOf(u), roleField{u.Role}, passwordOf(u)); err != nil {
		return err
	}
	if err := p.hashPassword(u); err != nil {
		return err
	}

	changed := u.UpdatedAt
	u.PasswordChangedAt = &changed
	return nil
}

// ValidateProfile checks the name and email of a partial profile update.
func (p *Pipeline) ValidateProfile(name, email string) error {
	return p.check(profileFields{Name: strings.TrimSpace(name), Email: NormalizeEmail(email)})
}

func (p *Pipeline) ValidateRole(role Role) error {
	return p.check(roleField{role})
}

func (p *Pipeline) hashPassword(u *User) error {
	hash, err := p.hasher.Hash(u.Password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	u.Password = hash
	u.PasswordConfirm = ""
	u.passwordModified = false
	return nil
}

func (p *Pipeline) check(structs ...any) error {
	var msgs []string
	for _, s := range structs {
		err := p.validate.Struct(s)
		if err == nil {
			continue
		}
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("validate user: %w", err)
		}
		for _, fe := range verrs {
			msg, ok := fieldMessages[fe.Field()+"."+fe.Tag()]
			if !ok {
				msg = fmt.Sprintf("Invalid %s", strings.ToLower(fe.Field()))
			}
			msgs = append(msgs, msg)
		}
	}
	if len(msgs) == 0 {
		return nil
	}
	return apperr.Validation("Invalid input data. " + strings.Join(msgs, ". "))
}

func profileOf(u *User) profileFields {
	return profileFields{Name: u.Name, Email: u.Email}
}

func passwordOf(u *User) passwordFields {
	return passwordFields{Password: u.Password, PasswordConfirm: u.PasswordConfirm}
}

func normalize(u *User) {
	u.Name = strings.TrimSpace(u.Name)
	u.Email = NormalizeEmail(u.Email)
}

// NormalizeEmail trims and lowercases an address. Emails are stored and looked up
// in this form only.
func NormalizeEmail(email string) string {
	// A Caser keeps state, so each call gets its own.
	return cases.Lower(language.Und).String(strings.TrimSpace(email))
}
