package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/utafrali/AddressBook/internal/auth"
	"github.com/utafrali/AddressBook/internal/cache"
	"github.com/utafrali/AddressBook/internal/config"
	"github.com/utafrali/AddressBook/internal/event"
	handler "github.com/utafrali/AddressBook/internal/handler/http"
	"github.com/utafrali/AddressBook/internal/repository"
	"github.com/utafrali/AddressBook/internal/repository/memory"
	"github.com/utafrali/AddressBook/internal/repository/orm"
	"github.com/utafrali/AddressBook/internal/repository/postgres"
	"github.com/utafrali/AddressBook/internal/service"
	"github.com/utafrali/AddressBook/migrations"
	"github.com/utafrali/AddressBook/pkg/database"
	"github.com/utafrali/AddressBook/pkg/health"
	pkgkafka "github.com/utafrali/AddressBook/pkg/kafka"
	"github.com/utafrali/AddressBook/pkg/middleware"
	"github.com/utafrali/AddressBook/pkg/tracing"
)

const (
	serviceName    = "addressbook"
	serviceVersion = "0.1.0"
)

// App wires together all dependencies and runs the address book service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	gormDB         *gorm.DB
	redis          *redis.Client
	producer       *pkgkafka.Producer
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
// Redis and Kafka are optional: when enabled but unreachable the service
// starts without them.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: serviceVersion,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Insecure:       cfg.OTELInsecure,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	a.tracerShutdown = tracerShutdown

	if cfg.SlowQueryThresholdMs > 0 {
		database.SetSlowQueryLogging(cfg.SlowQueryThreshold(), logger)
	}

	healthHandler := health.NewHandler()

	repo, err := a.openStore(ctx, healthHandler)
	if err != nil {
		_ = a.tracerShutdown(context.Background())
		return nil, err
	}

	if cfg.RedisEnabled {
		client, err := database.NewRedisClient(ctx, cfg.RedisConfig(), logger)
		if err != nil {
			logger.Warn("redis unavailable, continuing without read cache",
				slog.String("addr", cfg.RedisAddr),
				slog.String("error", err.Error()),
			)
		} else {
			a.redis = client
			repo = cache.NewAddressRepository(repo, client, cfg.CacheTTL(), logger)
			healthHandler.RegisterNonCritical("redis", func(ctx context.Context) error {
				return client.Ping(ctx).Err()
			})
			logger.Info("redis read cache enabled",
				slog.String("addr", cfg.RedisAddr),
				slog.Duration("ttl", cfg.CacheTTL()),
			)
		}
	}

	var publisher event.Publisher = event.NoopPublisher{}
	if cfg.KafkaEnabled {
		producer := pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		if err := pingKafkaWithRetry(ctx, producer, logger); err != nil {
			logger.Warn("kafka producer ping failed after retries, continuing in degraded mode",
				slog.String("error", err.Error()),
			)
		} else {
			logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
		}
		a.producer = producer
		publisher = event.NewProducer(producer, logger)
		healthHandler.RegisterNonCritical("kafka", producer.Ping)
	}

	addressService := service.NewAddressService(repo, publisher, logger)

	routerCfg := handler.RouterConfig{
		ServiceName: serviceName,
		CORS: middleware.CORSConfig{
			AllowedOrigins: cfg.CORSAllowedOrigins,
			ExposedHeaders: []string{middleware.CorrelationIDHeader, "Location"},
			Environment:    cfg.Environment,
		},
		PprofCIDRs:     cfg.PprofAllowedCIDRs,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
	}
	if cfg.AuthEnabled() {
		routerCfg.TokenValidator = auth.NewJWTManager(cfg.AuthJWTSecret, cfg.AuthIssuer).Validator()
		logger.Info("bearer auth enabled on mutating routes")
	}

	router := handler.NewRouter(addressService, healthHandler, logger, routerCfg)

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       time.Duration(cfg.HTTPReadTimeoutSecs) * time.Second,
		WriteTimeout:      time.Duration(cfg.HTTPWriteTimeoutSecs) * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return a, nil
}

// openStore connects the configured storage driver, prepares its schema and
// registers it as a critical readiness check.
func (a *App) openStore(ctx context.Context, healthHandler *health.Handler) (repository.AddressRepository, error) {
	cfg, logger := a.cfg, a.logger

	var repo repository.AddressRepository
	switch cfg.DBDriver {
	case config.DriverPostgres:
		pgCfg := cfg.PostgresConfig()
		pool, err := database.NewPostgresPool(ctx, &pgCfg, logger)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		logger.Info("connected to PostgreSQL",
			slog.String("host", cfg.PostgresHost),
			slog.Int("port", cfg.PostgresPort),
			slog.String("database", cfg.PostgresDB),
		)
		if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, pool, serviceName); err != nil {
			logger.Warn("pool metrics not registered", slog.String("error", err.Error()))
		}

		if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
			pool.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		logger.Info("database migrations completed")

		a.pool = pool
		repo = postgres.NewAddressRepository(pool)

	case config.DriverSQLite, config.DriverGormPostgres:
		gormCfg := cfg.GormConfig()
		db, err := database.OpenGorm(ctx, gormCfg, logger)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", cfg.DBDriver, err)
		}
		ormRepo := orm.NewAddressRepository(db, gormCfg.Dialect)
		if err := ormRepo.Migrate(ctx); err != nil {
			_ = database.CloseGorm(db)
			return nil, err
		}
		logger.Info("database ready",
			slog.String("driver", cfg.DBDriver),
			slog.String("dialect", gormCfg.Dialect),
		)

		a.gormDB = db
		repo = ormRepo

	case config.DriverMemory:
		logger.Warn("using in-memory store, data is lost on restart")
		repo = memory.NewAddressRepository()

	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}

	healthHandler.RegisterCritical("database", repo.Ping)
	return repo, nil
}

// Handler returns the root HTTP handler.
func (a *App) Handler() http.Handler {
	return a.httpServer.Handler
}

// Run starts the HTTP server, then blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
			slog.String("driver", a.cfg.DBDriver),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		_ = a.Shutdown()
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components in order: HTTP server, tracer,
// Kafka producer, Redis, then the database.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	// 1. Drain in-flight HTTP requests.
	httpCtx, httpCancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout())
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	// 2. Flush pending spans after HTTP drain so in-flight request spans are captured.
	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if a.gormDB != nil {
		if err := database.CloseGorm(a.gormDB); err != nil {
			a.logger.Error("database close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

// pingKafkaWithRetry attempts to ping the Kafka producer with exponential
// backoff (3 attempts, 1s/2s/4s with ±25% jitter).
func pingKafkaWithRetry(ctx context.Context, producer *pkgkafka.Producer, logger *slog.Logger) error {
	const attempts = 3
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if lastErr = producer.Ping(ctx); lastErr == nil {
			return nil
		}
		if attempt == attempts-1 {
			break
		}
		base := time.Duration(1<<uint(attempt)) * time.Second
		jitter := time.Duration(float64(base) * 0.25 * (2*rand.Float64() - 1)) // #nosec G404 -- non-cryptographic jitter for retry backoff
		wait := base + jitter
		logger.Warn("kafka producer ping failed, retrying",
			slog.Int("attempt", attempt+1),
			slog.Int("max_attempts", attempts),
			slog.Duration("backoff", wait),
			slog.String("error", lastErr.Error()),
		)
		select {
		case <-ctx.Done():
			return fmt.Errorf("kafka ping: context canceled during retry: %w", ctx.Err())
		case <-time.After(wait):
		}
	}
	return fmt.Errorf("kafka producer ping failed after %d attempts: %w", attempts, lastErr)
}
