package main

import (
	"context"
	"flag"
	"os"

	"github.com/natours/natours-backend/internal/auth"
	"github.com/natours/natours-backend/internal/config"
	"github.com/natours/natours-backend/internal/db"
	"github.com/natours/natours-backend/internal/logging"
	"github.com/natours/natours-backend/internal/seeds"
	"github.com/natours/natours-backend/internal/users"
)

func main() {
	file := flag.String("file", seeds.DefaultUsersFile, "YAML file with the users to seed")
	del := flag.Bool("delete", false, "remove the seeded users instead of creating them")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logging.New("info", "text", os.Stderr).WithError(err).Fatal("Invalid configuration")
	}
	log := logging.New(cfg.Log.Level, "text", os.Stderr)

	list, err := seeds.LoadUsers(*file)
	if err != nil {
		log.WithError(err).Fatal("Seeding failed")
	}

	gdb, err := db.Connect(cfg.Database, log)
	if err != nil {
		log.WithError(err).Fatal("Seeding failed")
	}
	if err := users.Migrate(gdb); err != nil {
		log.WithError(err).Fatal("Seeding failed")
	}

	ctx := context.Background()
	if *del {
		if _, err := seeds.DeleteUsers(ctx, gdb, list, log); err != nil {
			log.WithError(err).Fatal("Deleting seed data failed")
		}
		return
	}

	store := users.NewGormStore(gdb, users.NewPipeline(auth.BcryptHasher{Cost: cfg.Auth.BcryptCost}, nil))
	if _, err := seeds.SeedUsers(ctx, store, list, log); err != nil {
		log.WithError(err).Fatal("Seeding failed")
	}
}
