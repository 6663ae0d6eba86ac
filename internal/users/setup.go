package users

import (
	"fmt"

	"github.com/natours/natours-backend/internal/db"
	"gorm.io/gorm"
)

const Schema = "app_auth"

// Migrate creates the auth schema and brings the users table up to date.
func Migrate(gdb *gorm.DB) error {
	if err := db.EnsureSchema(gdb, Schema); err != nil {
		return fmt.Errorf("ensure schema %s: %w", Schema, err)
	}
	if err := gdb.AutoMigrate(&User{}); err != nil {
		return fmt.Errorf("auto-migrate users: %w", err)
	}
	return nil
}
