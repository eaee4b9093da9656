// @title           Address Book API
// @version         1.0
// @description     CRUD and proximity search over named geographic addresses.
// @BasePath        /api/v1

// @securityDefinitions.apikey BearerAuth
// @in                         header
// @name                       Authorization
// @description                "Bearer <token>"; required on mutating routes when AUTH_JWT_SECRET is set.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/utafrali/AddressBook/internal/app"
	"github.com/utafrali/AddressBook/internal/config"
	"github.com/utafrali/AddressBook/pkg/logger"
)

func main() {
	// Load configuration from environment variables.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log := logger.New("addressbook", cfg.LogLevel)
	slog.SetDefault(log)
	log.Info("starting address book service",
		slog.String("environment", cfg.Environment),
		slog.Int("http_port", cfg.HTTPPort),
		slog.String("db_driver", cfg.DBDriver),
		slog.Bool("auth_enabled", cfg.AuthEnabled()),
	)

	application, err := app.NewApp(cfg, log)
	if err != nil {
		log.Error("failed to initialize application", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Create a context that is cancelled on SIGINT or SIGTERM.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := application.Run(ctx); err != nil {
		log.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log.Info("address book service stopped")
}
