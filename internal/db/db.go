// Package db provides PostgreSQL access for users and per-user state documents.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB wraps a PostgreSQL connection pool
type DB struct {
	pool *pgxpool.Pool
}

// ConnectOptions tunes the connection retry.
type ConnectOptions struct {
	// MaxElapsed bounds the total time spent retrying. Zero means a single attempt.
	MaxElapsed time.Duration
}

// Connect establishes a connection pool to the database
func Connect(ctx context.Context, databaseURL string) (*DB, error) {
	return ConnectWithRetry(ctx, databaseURL, ConnectOptions{})
}

// ConnectWithRetry establishes a connection pool, retrying the initial ping with
// exponential backoff. Useful when the server starts alongside the database container.
func ConnectWithRetry(ctx context.Context, databaseURL string, opts ConnectOptions) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid database url: %w", err)
	}

	connect := func() (*pgxpool.Pool, error) {
		pool, err := pgxpool.NewWithConfig(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		// Verify connection
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}
		return pool, nil
	}

	if opts.MaxElapsed <= 0 {
		pool, err := connect()
		if err != nil {
			return nil, err
		}
		return &DB{pool: pool}, nil
	}

	pool, err := backoff.Retry(ctx, connect,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(opts.MaxElapsed),
	)
	if err != nil {
		return nil, err
	}
	return &DB{pool: pool}, nil
}

// Ping checks the connection, for health checks.
func (db *DB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

// Close closes the connection pool
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}
