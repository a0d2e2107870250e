package catalog

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed sql/migrations/*.sql
var embedMigrations embed.FS

const migrationsDir = "sql/migrations"

// Migrate brings the schema to the latest version, or to GOOSE_UP_TO /
// GOOSE_DOWN_TO when set.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	goose.SetBaseFS(embedMigrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}

	stdDB := stdlib.OpenDBFromPool(pool)
	defer stdDB.Close()

	current, err := goose.GetDBVersionContext(ctx, stdDB)
	if err != nil {
		return err
	}

	migrations, err := goose.CollectMigrations(migrationsDir, 0, goose.MaxVersion)
	if err != nil {
		return err
	}
	for _, m := range migrations {
		slog.Info("catalog migration", "source", m.Source, "version", m.Version, "applied", m.Version <= current)
	}

	if down, ok := os.LookupEnv("GOOSE_DOWN_TO"); ok {
		target, err := strconv.ParseInt(down, 10, 64)
		if err != nil {
			return fmt.Errorf("parse GOOSE_DOWN_TO: %w", err)
		}
		return goose.DownToContext(ctx, stdDB, migrationsDir, target)
	}

	target := int64(goose.MaxVersion)
	if up, ok := os.LookupEnv("GOOSE_UP_TO"); ok {
		if target, err = strconv.ParseInt(up, 10, 64); err != nil {
			return fmt.Errorf("parse GOOSE_UP_TO: %w", err)
		}
	}
	return goose.UpToContext(ctx, stdDB, migrationsDir, target)
}
