package seeds

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
	"github.com/lib/pq"
	"github.com/natours/natours-backend/internal/users"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const DefaultUsersFile = "internal/seeds/data/users.yaml"

// SeedUser is one entry of the users fixture file.
type SeedUser struct {
	Name     string     `yaml:"name"`
	Email    string     `yaml:"email"`
	Role     users.Role `yaml:"role"`
	Photo    string     `yaml:"photo"`
	Password string     `yaml:"password"`
}

type seedFile struct {
	Users []SeedUser `yaml:"users"`
}

func LoadUsers(path string) ([]SeedUser, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read %s: %w", path, err)
	}
	var f seedFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return f.Users, nil
}

// SeedUsers creates every fixture user that does not exist yet. Rows go
// through the store, so passwords are hashed like any signup.
func SeedUsers(ctx context.Context, store users.Store, list []SeedUser, log logrus.FieldLogger) (int, error) {
	created := 0
	for _, su := range list {
		_, err := store.FindByEmail(ctx, su.Email)
		if err == nil {
			log.WithField("email", su.Email).Info("user exists, skipping")
			continue
		}
		if !errors.Is(err, users.ErrNotFound) {
			return created, fmt.Errorf("lookup %s: %w", su.Email, err)
		}

		u := &users.User{Name: su.Name, Email: su.Email, Role: su.Role, Photo: su.Photo}
		u.SetPassword(su.Password, su.Password)
		if err := store.Create(ctx, u); err != nil {
			return created, fmt.Errorf("failed to create user %s: %w", su.Email, err)
		}
		created++
	}

	log.WithField("count", created).Info("seeded users")
	return created, nil
}

// DeleteUsers hard-deletes the fixture users, inactive ones included.
func DeleteUsers(ctx context.Context, gdb *gorm.DB, list []SeedUser, log logrus.FieldLogger) (int64, error) {
	emails := make([]string, 0, len(list))
	for _, su := range list {
		emails = append(emails, users.NormalizeEmail(su.Email))
	}

	res := gdb.WithContext(ctx).Where("email = ANY(?)", pq.Array(emails)).Delete(&users.User{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete seeded users: %w", res.Error)
	}
	log.WithField("count", res.RowsAffected).Info("deleted seeded users")
	return res.RowsAffected, nil
}
