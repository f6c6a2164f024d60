package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect opens a connection pool for dbURL and checks that the server answers.
func Connect(ctx context.Context, dbURL string) (*pgxpool.Pool, error) {
	if dbURL == "" {
		return nil, fmt.Errorf("database url not set")
	}

	config, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}
	return pool, nil
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS dart_finstate_cache (
	corp_code   TEXT        NOT NULL,
	bsns_year   INTEGER     NOT NULL,
	reprt_code  TEXT        NOT NULL,
	data        JSONB       NOT NULL,
	fetched_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (corp_code, bsns_year, reprt_code)
)`

// EnsureSchema creates the cache table if it does not exist.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create cache table: %w", err)
	}
	return nil
}
