package postgres

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/tern/v2/migrate"
	"github.com/pscheid92/pixelboard/internal/adapter/metrics"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

const versionTable = "public.schema_version"

// Connect opens a pool and verifies it with a ping. A non-nil dbm attaches the query tracer.
func Connect(ctx context.Context, databaseURL string, dbm *metrics.DBMetrics) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	if dbm != nil {
		poolCfg.ConnConfig.Tracer = NewMetricsTracer(dbm)
	}

	slog.Info("database SSL mode", "sslmode", extractSSLMode(databaseURL))

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	slog.Info("database connected", "min_conns", poolCfg.MinConns, "max_conns", poolCfg.MaxConns)
	return pool, nil
}

func extractSSLMode(databaseURL string) string {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return "unknown"
	}
	mode := strings.ToLower(u.Query().Get("sslmode"))
	if mode == "" {
		return "prefer (default)"
	}
	return mode
}

const (
	// migrationLockID is "pixelb" in ASCII hex.
	migrationLockID             = 0x706978656c62
	migrationLockReleaseTimeout = 5 * time.Second
)

// LatestVersion migrates to the newest embedded migration.
const LatestVersion int32 = -1

// RunMigrationsWithLock migrates to the latest version while holding an advisory lock so
// concurrently starting instances don't race.
func RunMigrationsWithLock(ctx context.Context, pool *pgxpool.Pool) error {
	return MigrateWithLock(ctx, pool, LatestVersion)
}

// MigrateWithLock moves the schema to target, up or down. LatestVersion means newest.
func MigrateWithLock(ctx context.Context, pool *pgxpool.Pool, target int32) error {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection for migration: %w", err)
	}
	defer conn.Release()

	release, err := migrationLock(ctx, conn.Conn(), migrationLockReleaseTimeout)
	if err != nil {
		return err
	}
	defer release()

	migrator, err := newMigrator(ctx, conn.Conn())
	if err != nil {
		return err
	}

	current, err := migrator.GetCurrentVersion(ctx)
	if err != nil {
		slog.Debug("could not get current schema version (likely fresh database)", "error", err)
	} else {
		slog.Info("current schema version", "version", current)
	}

	if target == LatestVersion {
		err = migrator.Migrate(ctx)
	} else {
		err = migrator.MigrateTo(ctx, target)
	}
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// MigrationStatus reports the applied and newest available schema versions.
func MigrationStatus(ctx context.Context, pool *pgxpool.Pool) (current int32, latest int32, err error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Release()

	migrator, err := newMigrator(ctx, conn.Conn())
	if err != nil {
		return 0, 0, err
	}
	current, err = migrator.GetCurrentVersion(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return current, int32(len(migrator.Migrations)), nil
}

func newMigrator(ctx context.Context, conn *pgx.Conn) (*migrate.Migrator, error) {
	migrationFS, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations: %w", err)
	}

	migrator, err := migrate.NewMigrator(ctx, conn, versionTable)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}
	if err := migrator.LoadMigrations(migrationFS); err != nil {
		return nil, fmt.Errorf("failed to load migrations: %w", err)
	}
	return migrator, nil
}

func migrationLock(ctx context.Context, conn *pgx.Conn, releaseTimeout time.Duration) (func(), error) {
	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", migrationLockID); err != nil {
		return func() {}, fmt.Errorf("failed to acquire migration lock: %w", err)
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
		defer cancel()

		if _, err := conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", migrationLockID); err != nil {
			slog.Error("failed to release migration lock", "error", err)
		}
	}, nil
}
