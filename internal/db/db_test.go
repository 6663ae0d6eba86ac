package db

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/natours/natours-backend/internal/config"
	"github.com/natours/natours-backend/internal/logging"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"
)

func TestEnsureSchema_QuotesName(t *testing.T) {
	conn, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer conn.Close()

	gdb, err := Open(conn, logging.Discard(), time.Second)
	require.NoError(t, err)

	mock.ExpectExec(`CREATE SCHEMA IF NOT EXISTS "app_auth"`).WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, EnsureSchema(gdb, "app_auth"))

	mock.ExpectExec(`CREATE SCHEMA IF NOT EXISTS "odd""name"`).WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, EnsureSchema(gdb, `odd"name`))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConnect_RequiresURL(t *testing.T) {
	_, err := Connect(config.DatabaseConfig{}, logging.Discard())
	assert.ErrorContains(t, err, "DATABASE_URL")
}

func TestGormLevel(t *testing.T) {
	assert.Equal(t, logger.Info, gormLevel(logrus.DebugLevel))
	assert.Equal(t, logger.Warn, gormLevel(logrus.InfoLevel))
	assert.Equal(t, logger.Warn, gormLevel(logrus.WarnLevel))
	assert.Equal(t, logger.Error, gormLevel(logrus.ErrorLevel))
}
