package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net/url"
	"os"
	"time"

	"github.com/pscheid92/pixelboard/internal/adapter/postgres"
	"github.com/pscheid92/pixelboard/internal/platform/logging"
)

func main() {
	var (
		databaseURL = flag.String("database", os.Getenv("DATABASE_URL"), "Postgres URL (or set DATABASE_URL env)")
		target      = flag.Int("target", int(postgres.LatestVersion), "schema version to migrate to; -1 for the newest")
		status      = flag.Bool("status", false, "print the current and newest schema version and exit")
		verbose     = flag.Bool("verbose", false, "verbose logging")
	)
	flag.Parse()

	if *databaseURL == "" {
		log.Fatal("Database URL required (--database or DATABASE_URL env)")
	}

	level := "info"
	if *verbose {
		level = "debug"
	}
	slog.SetDefault(logging.New(os.Stdout, level, "text"))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := postgres.Connect(ctx, *databaseURL, nil)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()
	slog.Info("Connected to database", "url", sanitizeURL(*databaseURL))

	if *status {
		current, latest, err := postgres.MigrationStatus(ctx, pool)
		if err != nil {
			log.Fatalf("Failed to read migration status: %v", err)
		}
		slog.Info("Schema version", "current", current, "latest", latest, "pending", latest-current)
		return
	}

	if err := postgres.MigrateWithLock(ctx, pool, int32(*target)); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	current, _, err := postgres.MigrationStatus(ctx, pool)
	if err != nil {
		log.Fatalf("Failed to read migration status: %v", err)
	}
	slog.Info("Migration complete", "version", current)
}

// sanitizeURL hides the password in logs.
func sanitizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid>"
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}
