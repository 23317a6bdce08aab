// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TradeJournal Contributors

// Package postgres implements auth.CredentialStore and auth.TokenStore on
// PostgreSQL. The schema lives in internal/store/migrations.
package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// poolIface is the subset of *pgxpool.Pool the repositories use. pgxmock
// satisfies it in unit tests.
type poolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}
