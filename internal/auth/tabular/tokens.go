// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TradeJournal Contributors

package tabular

import (
	"context"
	"errors"
	"time"

	"github.com/samber/oops"

	"github.com/tradejournal/tradejournal/internal/auth"
	"github.com/tradejournal/tradejournal/internal/rowstore"
)

// TokenTable is the name of the token table.
const TokenTable = "tokens"

// Token table columns.
const (
	colUserID   = "userId"
	colToken    = "token"
	colIssuedAt = "issuedAt"
)

// TokenColumns lists the token table columns in sheet order.
var TokenColumns = []string{colUserID, colToken, colIssuedAt}

// TokenStore implements auth.TokenStore over a rowstore table.
//
// The table offers no atomic check-and-set, so writes for one user are
// serialized in process: Issue deletes and appends under the user's lock.
type TokenStore struct {
	table rowstore.Table
	locks *auth.KeyedMutex
	now   func() time.Time
}

// TokenStoreOption configures a TokenStore.
type TokenStoreOption func(*TokenStore)

// WithClock overrides the issue timestamp source.
func WithClock(now func() time.Time) TokenStoreOption {
	return func(s *TokenStore) { s.now = now }
}

// WithLocks shares a KeyedMutex with other writers of the same table.
func WithLocks(locks *auth.KeyedMutex) TokenStoreOption {
	return func(s *TokenStore) { s.locks = locks }
}

// NewTokenStore creates a token store over table.
func NewTokenStore(table rowstore.Table, opts ...TokenStoreOption) *TokenStore {
	s := &TokenStore{table: table, locks: auth.NewKeyedMutex(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue implements auth.TokenStore.
func (s *TokenStore) Issue(ctx context.Context, userID string) (*auth.Token, error) {
	token, err := auth.NewToken(userID, s.now())
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	if _, err := s.table.Delete(ctx, rowstore.Key{Column: colUserID, Value: userID}); err != nil {
		return nil, oops.With("operation", "delete previous token").With("user_id", userID).Wrap(err)
	}
	if err := s.table.Append(ctx, rowstore.Row{
		colUserID:   token.UserID,
		colToken:    token.Value,
		colIssuedAt: token.IssuedAt.Format(time.RFC3339Nano),
	}); err != nil {
		return nil, oops.With("operation", "append token").With("user_id", userID).Wrap(err)
	}
	return token, nil
}

// Verify implements auth.TokenStore.
func (s *TokenStore) Verify(ctx context.Context, token string) (bool, error) {
	_, err := s.Lookup(ctx, token)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, auth.ErrNotFound) {
		return false, nil
	}
	return false, err
}

// Lookup implements auth.TokenStore.
func (s *TokenStore) Lookup(ctx context.Context, token string) (*auth.Token, error) {
	if token == "" {
		return nil, oops.Code("TOKEN_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	rows, err := s.table.Scan(ctx)
	if err != nil {
		return nil, oops.With("operation", "lookup token").With("table", s.table.Name()).Wrap(err)
	}
	for _, r := range rows {
		if r[colToken] != token {
			continue
		}
		issuedAt, _ := time.Parse(time.RFC3339Nano, r[colIssuedAt]) //nolint:errcheck // zero time for hand-edited rows
		return &auth.Token{UserID: r[colUserID], Value: r[colToken], IssuedAt: issuedAt}, nil
	}
	return nil, oops.Code("TOKEN_NOT_FOUND").Wrap(auth.ErrNotFound)
}

// Revoke implements auth.TokenStore.
func (s *TokenStore) Revoke(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	n, err := s.table.Delete(ctx, rowstore.Key{Column: colToken, Value: token})
	if err != nil {
		return false, oops.With("operation", "revoke token").Wrap(err)
	}
	return n > 0, nil
}

// RevokeByUser implements auth.TokenStore.
func (s *TokenStore) RevokeByUser(ctx context.Context, userID string) (bool, error) {
	if userID == "" {
		return false, nil
	}
	unlock := s.locks.Lock(userID)
	defer unlock()

	n, err := s.table.Delete(ctx, rowstore.Key{Column: colUserID, Value: userID})
	if err != nil {
		return false, oops.With("operation", "revoke user tokens").With("user_id", userID).Wrap(err)
	}
	return n > 0, nil
}

var _ auth.TokenStore = (*TokenStore)(nil)
