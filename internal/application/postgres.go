// Package application wires long-lived process dependencies.
package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sethvargo/go-retry"

	"thirdcoast.systems/vodarchive/internal/config"
)

var dbOpenBackoffBase = 1 * time.Second

// OpenDBPoolWithRetry connects to the catalog database and pings it, backing
// off on a Fibonacci schedule for up to DatabaseRetries attempts.
func OpenDBPoolWithRetry(ctx context.Context, conf config.Config) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(conf.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}

	attempts := max(conf.DatabaseRetries, 1)
	b := retry.WithMaxRetries(uint64(attempts-1), retry.NewFibonacci(dbOpenBackoffBase))

	slog.Info("connecting to database", "host", cfg.ConnConfig.Host)
	var pool *pgxpool.Pool
	err = retry.Do(ctx, b, func(ctx context.Context) error {
		p, err := pgxpool.NewWithConfig(ctx, cfg)
		if err != nil {
			slog.Warn("database connect failed", "host", cfg.ConnConfig.Host, "error", err)
			return retry.RetryableError(err)
		}

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := p.Ping(pingCtx); err != nil {
			p.Close()
			slog.Warn("database ping failed", "host", cfg.ConnConfig.Host, "error", err)
			return retry.RetryableError(err)
		}
		pool = p
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", attempts, err)
	}

	slog.Info("connected to database", "host", cfg.ConnConfig.Host)
	return pool, nil
}
