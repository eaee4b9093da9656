package database

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormlogger "gorm.io/gorm/logger"
)

func TestOpenGorm_SQLiteInMemory(t *testing.T) {
	db, err := OpenGorm(context.Background(), GormConfig{
		Dialect: DialectSQLite,
		DSN:     "file::memory:",
	}, discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = CloseGorm(db) })

	var one int
	require.NoError(t, db.Raw("SELECT 1").Scan(&one).Error)
	assert.Equal(t, 1, one)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)
}

func TestOpenGorm_UnsupportedDialect(t *testing.T) {
	_, err := OpenGorm(context.Background(), GormConfig{Dialect: "mysql"}, discardLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unsupported gorm dialect "mysql"`)
}

func TestNewGormLogger_WritesThroughSlog(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(slog.NewJSONHandler(&buf, nil))

	gl := NewGormLogger(l, 0)
	gl.Warn(context.Background(), "slow sql on %s", "addresses")

	assert.Contains(t, buf.String(), "slow sql on addresses")
	assert.Contains(t, buf.String(), `"level":"WARN"`)
}

func TestNewGormLogger_NilLoggerDiscards(t *testing.T) {
	assert.Equal(t, gormlogger.Discard, NewGormLogger(nil, 0))
}
