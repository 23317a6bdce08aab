// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TradeJournal Contributors

package auth

import (
	"context"
	"errors"
	"slices"

	"github.com/gobwas/glob"
	"github.com/samber/oops"
)

// DefaultPublicActions are the actions reachable without a session token.
// Changing a password must stay public: a user with a pending rotation has no token.
var DefaultPublicActions = []string{"login", "logout", "resetPassword", "changePassword"}

// SessionActions report on the caller's own session. They always authenticate,
// even when an allow-list pattern matches them.
var SessionActions = []string{"session", "verifyAccount"}

// AccessGate authenticates bearer tokens and authorizes account access.
type AccessGate struct {
	tokens    TokenStore
	creds     CredentialStore
	adminRole Role
	public    []publicAction
	recorder  Recorder
}

type publicAction struct {
	pattern string
	glob    glob.Glob
}

// GateOption configures an AccessGate.
type GateOption func(*AccessGate)

// WithAdminRole overrides the role that bypasses ownership checks.
func WithAdminRole(r Role) GateOption {
	return func(g *AccessGate) {
		if r != "" {
			g.adminRole = r
		}
	}
}

// WithGateRecorder sets the recorder for gate decisions.
func WithGateRecorder(r Recorder) GateOption {
	return func(g *AccessGate) { g.recorder = r }
}

// NewAccessGate creates a gate. publicActions are glob patterns with '.' as
// the segment separator (e.g. "report.*"); nil selects DefaultPublicActions.
//
// Returns error if any pattern fails to compile.
func NewAccessGate(tokens TokenStore, creds CredentialStore, publicActions []string, opts ...GateOption) (*AccessGate, error) {
	if tokens == nil {
		return nil, oops.Code("AUTH_GATE_INVALID").Errorf("token store is required")
	}
	if creds == nil {
		return nil, oops.Code("AUTH_GATE_INVALID").Errorf("credential store is required")
	}
	if publicActions == nil {
		publicActions = DefaultPublicActions
	}

	public := make([]publicAction, 0, len(publicActions))
	for _, p := range publicActions {
		g, err := glob.Compile(p, '.')
		if err != nil {
			return nil, oops.Code("AUTH_INVALID_ACTION_PATTERN").
				With("pattern", p).
				Wrap(err)
		}
		public = append(public, publicAction{pattern: p, glob: g})
	}

	gate := &AccessGate{
		tokens:    tokens,
		creds:     creds,
		adminRole: RoleAdmin,
		public:    public,
	}
	for _, opt := range opts {
		opt(gate)
	}
	return gate, nil
}

// ValidatePublicActions compiles patterns and rejects any that would match one
// of SessionActions.
func ValidatePublicActions(patterns []string) error {
	for _, p := range patterns {
		g, err := glob.Compile(p, '.')
		if err != nil {
			return oops.Code("AUTH_INVALID_ACTION_PATTERN").With("pattern", p).Wrap(err)
		}
		for _, action := range SessionActions {
			if g.Match(action) {
				return oops.Code("AUTH_INVALID_ACTION_PATTERN").
					With("pattern", p).
					With("action", action).
					Errorf("pattern %q exempts %q, which needs a session", p, action)
			}
		}
	}
	return nil
}

// IsPublic reports whether action may run without authentication. Session
// actions are never public.
func (g *AccessGate) IsPublic(action string) bool {
	if slices.Contains(SessionActions, action) {
		return false
	}
	for _, p := range g.public {
		if p.glob.Match(action) {
			return true
		}
	}
	return false
}

// PublicActions returns the configured allow-list patterns.
func (g *AccessGate) PublicActions() []string {
	out := make([]string, len(g.public))
	for i, p := range g.public {
		out[i] = p.pattern
	}
	return out
}

// AuthenticateRequest resolves token to a session. Missing or unknown tokens,
// and tokens whose owner no longer exists or is inactive, are unauthorized.
func (g *AccessGate) AuthenticateRequest(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		g.record("unauthorized")
		return nil, errUnauthorized("session token is required")
	}

	record, err := g.tokens.Lookup(ctx, token)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			g.record("unauthorized")
			return nil, errUnauthorized("invalid session token")
		}
		g.record("error")
		return nil, storageError("lookup token", err)
	}

	user, err := g.creds.FindByEmployeeID(ctx, record.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			g.record("unauthorized")
			return nil, errUnauthorized("session user no longer exists")
		}
		g.record("error")
		return nil, storageError("find session user", err)
	}
	if !user.IsActive() {
		g.record("unauthorized")
		return nil, errUnauthorized("session user is inactive")
	}

	return &Session{Token: record, User: user}, nil
}

// VerifyAccountAccess authenticates token and requires the user to own
// accountID or hold the admin role. Account IDs are employee IDs.
func (g *AccessGate) VerifyAccountAccess(ctx context.Context, token, accountID string) (*Session, error) {
	session, err := g.AuthenticateRequest(ctx, token)
	if err != nil {
		return nil, err
	}
	if session.User.HasRole(g.adminRole) || session.User.EmployeeID == accountID {
		g.record("granted")
		return session, nil
	}
	g.record("forbidden")
	return nil, oops.Code(CodeForbidden).
		With("user_id", session.User.EmployeeID).
		With("account_id", accountID).
		Errorf("access to account denied")
}

// Authorize gates one action. Account-scoped requests (non-empty accountID)
// always need account access. Otherwise public actions pass with a nil session
// and the rest need a valid token.
func (g *AccessGate) Authorize(ctx context.Context, action, token, accountID string) (*Session, error) {
	if accountID != "" {
		return g.VerifyAccountAccess(ctx, token, accountID)
	}
	if g.IsPublic(action) {
		g.record("public")
		return nil, nil
	}
	session, err := g.AuthenticateRequest(ctx, token)
	if err != nil {
		return nil, err
	}
	g.record("granted")
	return session, nil
}

func (g *AccessGate) record(decision string) {
	if g.recorder != nil {
		g.recorder.RecordAuthEvent("gate", decision)
	}
}
