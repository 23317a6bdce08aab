// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TradeJournal Contributors

package auth

import (
	"context"
	"crypto/rand"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Token is an opaque session credential. Tokens do not expire; they are
// revoked on logout or replaced by the next login of the same user.
type Token struct {
	UserID   string
	Value    string
	IssuedAt time.Time
}

// NewToken creates a token for userID. The value is a random ULID followed by
// the user ID so that stored tokens can be traced back to their owner.
func NewToken(userID string, now time.Time) (*Token, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, oops.Code("TOKEN_INVALID_USER").Errorf("user ID cannot be empty")
	}
	id, err := ulid.New(ulid.Timestamp(now), rand.Reader)
	if err != nil {
		return nil, oops.Code("TOKEN_GENERATE_FAILED").With("user_id", userID).Wrap(err)
	}
	return &Token{
		UserID:   userID,
		Value:    id.String() + userID,
		IssuedAt: now.UTC(),
	}, nil
}

// Session pairs a verified token with its user for one request.
type Session struct {
	Token *Token
	User  *User
}

// UserID returns the authenticated user's employee ID.
func (s *Session) UserID() string {
	if s == nil || s.User == nil {
		return ""
	}
	return s.User.EmployeeID
}

// TokenStore manages session tokens. Implementations keep at most one token
// per user: Issue replaces any previous token atomically with respect to
// other Issue calls for the same user.
type TokenStore interface {
	// Issue creates a new token for userID, revoking any existing one.
	Issue(ctx context.Context, userID string) (*Token, error)

	// Verify reports whether token is live.
	Verify(ctx context.Context, token string) (bool, error)

	// Revoke deletes token. Returns false if it was not live.
	Revoke(ctx context.Context, token string) (bool, error)

	// RevokeByUser deletes the token held by userID. Returns false if there was none.
	RevokeByUser(ctx context.Context, userID string) (bool, error)

	// Lookup returns the live token record. Returns ErrNotFound if absent.
	Lookup(ctx context.Context, token string) (*Token, error)
}
