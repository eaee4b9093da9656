package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Gorm dialect names accepted by OpenGorm.
const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
)

// GormConfig configures an ORM connection.
type GormConfig struct {
	Dialect string // DialectSQLite or DialectPostgres
	DSN     string // file path (or "file::memory:?cache=shared") for SQLite, URL for Postgres

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	SlowThreshold   time.Duration
}

// OpenGorm opens a gorm connection for the configured dialect, routes gorm's
// own logging into l at warn level, and verifies the connection with a ping.
// Postgres pings are retried with the same backoff as NewPostgresPool.
func OpenGorm(ctx context.Context, cfg GormConfig, l *slog.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Dialect {
	case DialectSQLite:
		dialector = sqlite.Open(cfg.DSN)
	case DialectPostgres:
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported gorm dialect %q", cfg.Dialect)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:  NewGormLogger(l, cfg.SlowThreshold),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Dialect, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}

	maxOpen := cfg.MaxOpenConns
	if cfg.Dialect == DialectSQLite {
		// SQLite allows a single writer; one connection avoids "database is locked".
		maxOpen = 1
	}
	if maxOpen > 0 {
		sqlDB.SetMaxOpenConns(maxOpen)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	ping := func() error { return sqlDB.PingContext(ctx) }
	if cfg.Dialect == DialectPostgres {
		err = withRetry(ctx, "connect to postgres", l, ping)
	} else {
		err = ping()
	}
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping %s: %w", cfg.Dialect, err)
	}

	return db, nil
}

// NewGormLogger adapts l to gorm's logger interface. Record-not-found is not
// treated as an error because repositories map it to a 404.
func NewGormLogger(l *slog.Logger, slowThreshold time.Duration) gormlogger.Interface {
	if l == nil {
		return gormlogger.Discard
	}
	return gormlogger.New(
		slog.NewLogLogger(l.Handler(), slog.LevelWarn),
		gormlogger.Config{
			SlowThreshold:             slowThreshold,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}

// CloseGorm closes the connection pool underneath db.
func CloseGorm(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
