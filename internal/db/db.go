package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/natours/natours-backend/internal/config"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Connect opens the pgx-backed pool described by cfg and wraps it in gorm.
func Connect(cfg config.DatabaseConfig, log *logrus.Logger) (*gorm.DB, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}

	sqlDB, err := sql.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	gdb, err := Open(sqlDB, log, cfg.SlowThreshold)
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	log.Info("Connected to database")
	return gdb, nil
}

// Open wraps an existing connection pool. Tests hand in a sqlmock connection here.
func Open(conn *sql.DB, log *logrus.Logger, slowThreshold time.Duration) (*gorm.DB, error) {
	// SQL goes through logrus so slow queries land next to request logs.
	lg := logger.New(
		log,
		logger.Config{
			SlowThreshold:             slowThreshold,
			LogLevel:                  gormLevel(log.GetLevel()),
			IgnoreRecordNotFoundError: true,
			ParameterizedQueries:      true,
		},
	)

	return gorm.Open(postgres.New(postgres.Config{Conn: conn}), &gorm.Config{
		Logger:                 lg,
		TranslateError:         true,
		SkipDefaultTransaction: true,
	})
}

func gormLevel(l logrus.Level) logger.LogLevel {
	switch {
	case l >= logrus.DebugLevel:
		return logger.Info
	case l >= logrus.WarnLevel:
		return logger.Warn
	default:
		return logger.Error
	}
}
