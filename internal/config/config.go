package config

import (
	"fmt"
	"slices"
	"time"

	pkgconfig "github.com/utafrali/AddressBook/pkg/config"
	"github.com/utafrali/AddressBook/pkg/database"
)

// Storage drivers accepted in DB_DRIVER.
const (
	DriverSQLite       = "sqlite"
	DriverPostgres     = "postgres"
	DriverGormPostgres = "gorm-postgres"
	DriverMemory       = "memory"
)

// Config holds all configuration for the address book service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort             int `env:"HTTP_PORT" envDefault:"8080"`
	HTTPReadTimeoutSecs  int `env:"HTTP_READ_TIMEOUT_SECONDS" envDefault:"15"`
	HTTPWriteTimeoutSecs int `env:"HTTP_WRITE_TIMEOUT_SECONDS" envDefault:"15"`
	ShutdownTimeoutSecs  int `env:"SHUTDOWN_TIMEOUT_SECONDS" envDefault:"10"`

	// Storage
	DBDriver   string `env:"DB_DRIVER" envDefault:"sqlite"`
	SQLitePath string `env:"SQLITE_PATH" envDefault:"./addresses.db"`

	// PostgreSQL (postgres and gorm-postgres drivers)
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"addressbook"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"addressbook"`
	PostgresDB   string `env:"POSTGRES_DB" envDefault:"addressbook"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	// Database pool
	DBMaxConns            int32 `env:"DB_MAX_CONNS" envDefault:"10"`
	DBMinConns            int32 `env:"DB_MIN_CONNS" envDefault:"2"`
	DBMaxConnLifetimeMins int   `env:"DB_MAX_CONN_LIFETIME_MINUTES" envDefault:"60"`
	DBMaxConnIdleTimeMins int   `env:"DB_MAX_CONN_IDLE_TIME_MINUTES" envDefault:"30"`

	// Redis read cache
	RedisEnabled  bool   `env:"REDIS_ENABLED" envDefault:"false"`
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	CacheTTLSecs  int    `env:"CACHE_TTL_SECONDS" envDefault:"300"`

	// Kafka change events
	KafkaEnabled bool     `env:"KAFKA_ENABLED" envDefault:"false"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// Bearer auth on mutating routes; disabled when empty.
	AuthJWTSecret string `env:"AUTH_JWT_SECRET"`
	AuthIssuer    string `env:"AUTH_ISSUER" envDefault:"addressbook"`

	// Per-client rate limit on the API; 0 disables it.
	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS" envDefault:"50"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST" envDefault:"100"`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`
	OTELInsecure   bool    `env:"OTEL_EXPORTER_OTLP_INSECURE" envDefault:"true"`

	// Pprof debug endpoints (IP allowlist in CIDR notation)
	PprofAllowedCIDRs []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"127.0.0.0/8,::1/128" envSeparator:","`

	// Slow query logging
	SlowQueryThresholdMs int `env:"LOG_SLOW_QUERY_MS" envDefault:"500"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load addressbook config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	drivers := []string{DriverSQLite, DriverPostgres, DriverGormPostgres, DriverMemory}
	if !slices.Contains(drivers, c.DBDriver) {
		return fmt.Errorf("DB_DRIVER must be one of %v, got %q", drivers, c.DBDriver)
	}
	if c.DBDriver == DriverSQLite && c.SQLitePath == "" {
		return fmt.Errorf("SQLITE_PATH is required for the sqlite driver")
	}
	if c.usesPostgres() {
		if c.PostgresHost == "" {
			return fmt.Errorf("POSTGRES_HOST is required")
		}
		if c.PostgresUser == "" {
			return fmt.Errorf("POSTGRES_USER is required")
		}
	}
	if c.RedisEnabled && c.RedisAddr == "" {
		return fmt.Errorf("REDIS_ADDR is required when REDIS_ENABLED is true")
	}
	if c.CacheTTLSecs <= 0 {
		return fmt.Errorf("CACHE_TTL_SECONDS must be > 0, got %d", c.CacheTTLSecs)
	}
	if c.KafkaEnabled && len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
	}
	if c.RateLimitRPS < 0 || c.RateLimitBurst < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be >= 0")
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1.0 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate)
	}
	if c.Environment == "production" && c.AuthJWTSecret != "" && len(c.AuthJWTSecret) < 32 {
		return fmt.Errorf("AUTH_JWT_SECRET must be at least 32 characters in production")
	}
	return nil
}

func (c *Config) usesPostgres() bool {
	return c.DBDriver == DriverPostgres || c.DBDriver == DriverGormPostgres
}

// AuthEnabled reports whether mutating routes require a bearer token.
func (c *Config) AuthEnabled() bool {
	return c.AuthJWTSecret != ""
}

// PostgresConfig returns the pool configuration for the postgres drivers.
func (c *Config) PostgresConfig() database.PostgresConfig {
	return database.PostgresConfig{
		Host:            c.PostgresHost,
		Port:            c.PostgresPort,
		User:            c.PostgresUser,
		Password:        c.PostgresPass,
		DBName:          c.PostgresDB,
		SSLMode:         c.PostgresSSL,
		MaxConns:        c.DBMaxConns,
		MinConns:        c.DBMinConns,
		MaxConnLifetime: time.Duration(c.DBMaxConnLifetimeMins) * time.Minute,
		MaxConnIdleTime: time.Duration(c.DBMaxConnIdleTimeMins) * time.Minute,
	}
}

// GormConfig returns the ORM configuration for the sqlite and gorm-postgres drivers.
func (c *Config) GormConfig() database.GormConfig {
	cfg := database.GormConfig{
		MaxOpenConns:    int(c.DBMaxConns),
		MaxIdleConns:    int(c.DBMinConns),
		ConnMaxLifetime: time.Duration(c.DBMaxConnLifetimeMins) * time.Minute,
		SlowThreshold:   c.SlowQueryThreshold(),
	}
	if c.DBDriver == DriverGormPostgres {
		pg := c.PostgresConfig()
		cfg.Dialect = database.DialectPostgres
		cfg.DSN = pg.DSN()
	} else {
		cfg.Dialect = database.DialectSQLite
		cfg.DSN = c.SQLitePath
	}
	return cfg
}

// RedisConfig returns the cache client configuration.
func (c *Config) RedisConfig() database.RedisConfig {
	cfg := database.DefaultRedisConfig()
	cfg.Addr = c.RedisAddr
	cfg.Password = c.RedisPassword
	cfg.DB = c.RedisDB
	return cfg
}

// CacheTTL returns the read cache entry lifetime.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSecs) * time.Second
}

// SlowQueryThreshold returns the slow query logging threshold; zero disables it.
func (c *Config) SlowQueryThreshold() time.Duration {
	return time.Duration(c.SlowQueryThresholdMs) * time.Millisecond
}

// ShutdownTimeout returns the budget for draining in-flight HTTP requests.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSecs) * time.Second
}
