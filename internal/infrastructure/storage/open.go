package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	pingAttempts = 5
	pingBackoff  = 2 * time.Second
)

// Open connects to the configured backend and migrates the schema.
// driver is "postgres" or "sqlite".
func Open(ctx context.Context, driver, dsn string, logger *slog.Logger) (*Store, error) {
	switch driver {
	case DriverPostgres:
		return openPostgres(ctx, dsn, logger)
	case DriverSQLite:
		return openSQLite(dsn, logger)
	default:
		return nil, fmt.Errorf("unknown database driver %q", driver)
	}
}

// openPostgres retries the initial ping so the service survives starting
// before its database does.
func openPostgres(ctx context.Context, dsn string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	var pingErr error
	for attempt := 1; attempt <= pingAttempts; attempt++ {
		pingErr = db.PingContext(ctx)
		if pingErr == nil {
			break
		}
		if logger != nil {
			logger.Warn("postgres not ready", "attempt", attempt, "error", pingErr)
		}
		select {
		case <-ctx.Done():
			db.Close()
			return nil, ctx.Err()
		case <-time.After(pingBackoff):
		}
	}
	if pingErr != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", pingErr)
	}

	return New(db, DriverPostgres, logger)
}

func openSQLite(dsn string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Concurrent writers deadlock the file-based driver otherwise.
	db.SetMaxOpenConns(1)
	return New(db, DriverSQLite, logger)
}
