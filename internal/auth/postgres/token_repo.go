// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TradeJournal Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/tradejournal/tradejournal/internal/auth"
)

// TokenRepository implements auth.TokenStore using PostgreSQL. user_id is the
// primary key of the tokens table, so Issue replaces the previous token in a
// single upsert.
type TokenRepository struct {
	pool poolIface
	now  func() time.Time
}

// NewTokenRepository creates a new TokenRepository.
func NewTokenRepository(pool poolIface) *TokenRepository {
	return &TokenRepository{pool: pool, now: time.Now}
}

// WithClock overrides the issue timestamp source.
func (r *TokenRepository) WithClock(now func() time.Time) *TokenRepository {
	r.now = now
	return r
}

// Issue stores a fresh token for userID, replacing any existing one.
func (r *TokenRepository) Issue(ctx context.Context, userID string) (*auth.Token, error) {
	token, err := auth.NewToken(userID, r.now())
	if err != nil {
		return nil, err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO tokens (user_id, token, issued_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET token = EXCLUDED.token, issued_at = EXCLUDED.issued_at
	`, token.UserID, token.Value, token.IssuedAt)
	if err != nil {
		return nil, oops.Code("TOKEN_ISSUE_FAILED").
			With("operation", "upsert token").
			With("user_id", userID).
			Wrap(err)
	}
	return token, nil
}

// Verify reports whether token is live.
func (r *TokenRepository) Verify(ctx context.Context, token string) (bool, error) {
	_, err := r.Lookup(ctx, token)
	if errors.Is(err, auth.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Lookup retrieves a live token.
func (r *TokenRepository) Lookup(ctx context.Context, token string) (*auth.Token, error) {
	if token == "" {
		return nil, oops.Code("TOKEN_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	var t auth.Token
	err := r.pool.QueryRow(ctx, `
		SELECT user_id, token, issued_at FROM tokens WHERE token = $1
	`, token).Scan(&t.UserID, &t.Value, &t.IssuedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("TOKEN_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("TOKEN_QUERY_FAILED").With("operation", "lookup token").Wrap(err)
	}
	t.IssuedAt = t.IssuedAt.UTC()
	return &t, nil
}

// Revoke deletes token and reports whether it existed.
func (r *TokenRepository) Revoke(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM tokens WHERE token = $1`, token)
	if err != nil {
		return false, oops.Code("TOKEN_REVOKE_FAILED").With("operation", "delete token").Wrap(err)
	}
	return tag.RowsAffected() > 0, nil
}

// RevokeByUser deletes the token held by userID.
func (r *TokenRepository) RevokeByUser(ctx context.Context, userID string) (bool, error) {
	if userID == "" {
		return false, nil
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM tokens WHERE user_id = $1`, userID)
	if err != nil {
		return false, oops.Code("TOKEN_REVOKE_FAILED").
			With("operation", "delete user token").
			With("user_id", userID).
			Wrap(err)
	}
	return tag.RowsAffected() > 0, nil
}

var _ auth.TokenStore = (*TokenRepository)(nil)
