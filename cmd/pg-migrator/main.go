package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"thirdcoast.systems/vodarchive/internal/application"
	"thirdcoast.systems/vodarchive/internal/catalog"
	"thirdcoast.systems/vodarchive/internal/config"
	"thirdcoast.systems/vodarchive/internal/logging"
)

func main() {
	startupCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	conf, err := config.LoadConfig(startupCtx)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if _, err := logging.Setup(logging.Options{Level: conf.LogLevel, Format: conf.LogFormat}); err != nil {
		slog.Error("failed to configure logging", "error", err)
		os.Exit(1)
	}

	slog.Info("starting catalog migrator")
	if conf.DatabaseDSN == "" {
		slog.Error("VODARCHIVE_DATABASE_DSN is not set")
		os.Exit(1)
	}

	pool, err := application.OpenDBPoolWithRetry(startupCtx, *conf)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := catalog.Migrate(startupCtx, pool); err != nil {
		slog.Error("failed to run PostgreSQL migrations", "error", err)
		os.Exit(1)
	}

	slog.Info("catalog migrations completed successfully")
}
