package postgres

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq" // postgres driver

	"bastion/internal/platform/config"
)

// Open creates a connection pool from the provided configuration and
// verifies connectivity with a ping.
func Open(ctx context.Context, cfg config.PostgresConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}
	return db, nil
}
