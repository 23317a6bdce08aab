// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TradeJournal Contributors

// Package store owns the PostgreSQL connection pool and schema migrations
// for the postgres credential backend.
package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// PoolOptions tunes OpenPool.
type PoolOptions struct {
	// MaxConns caps the pool size. Zero keeps the pgxpool default.
	MaxConns int32
	// PingAttempts is how many times the initial ping is tried. Zero means 5.
	PingAttempts uint64
	// PingBackoff is the first retry delay; later delays double. Zero means 200ms.
	PingBackoff time.Duration
}

// pinger is the part of *pgxpool.Pool used to probe readiness.
type pinger interface {
	Ping(ctx context.Context) error
}

// OpenPool connects to databaseURL and waits until the server answers a
// ping, retrying with exponential backoff. The pool is closed on failure.
func OpenPool(ctx context.Context, databaseURL string, opts PoolOptions) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, oops.Code("DB_CONFIG_INVALID").With("operation", "parse database url").Wrap(err)
	}
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "create pool").Wrap(err)
	}
	if err := waitReady(ctx, pool, opts); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func waitReady(ctx context.Context, p pinger, opts PoolOptions) error {
	attempts := opts.PingAttempts
	if attempts == 0 {
		attempts = 5
	}
	base := opts.PingBackoff
	if base <= 0 {
		base = 200 * time.Millisecond
	}

	// WithMaxRetries counts retries, not attempts.
	backoff := retry.WithMaxRetries(attempts-1, retry.NewExponential(base))
	try := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		try++
		if err := p.Ping(ctx); err != nil {
			slog.DebugContext(ctx, "database not ready", "attempt", try, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").
			With("operation", "ping database").
			With("attempts", try).
			Wrap(err)
	}
	return nil
}
