// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TradeJournal Contributors

package auth_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tradejournal/tradejournal/internal/auth"
	"github.com/tradejournal/tradejournal/internal/auth/tabular"
)

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) NotifyPasswordReset(ctx context.Context, notice auth.PasswordResetNotice) error {
	args := m.Called(ctx, notice)
	return args.Error(0)
}

type mockRecorder struct {
	mock.Mock
}

func (m *mockRecorder) RecordAuthEvent(operation, outcome string) {
	m.Called(operation, outcome)
}

// countingRecorder tallies outcomes without expectations.
type countingRecorder struct {
	mu     sync.Mutex
	counts map[string]int
}

func (r *countingRecorder) RecordAuthEvent(operation, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.counts == nil {
		r.counts = make(map[string]int)
	}
	r.counts[operation+"/"+outcome]++
}

func (r *countingRecorder) count(operation, outcome string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[operation+"/"+outcome]
}

// failingCredentials fails every lookup with err.
type failingCredentials struct {
	auth.CredentialStore
	err error
}

func (f failingCredentials) FindByIdentifier(context.Context, string) (*auth.User, error) {
	return nil, f.err
}

func (f failingCredentials) FindByEmail(context.Context, string) (*auth.User, error) {
	return nil, f.err
}

func (f failingCredentials) FindByEmployeeID(context.Context, string) (*auth.User, error) {
	return nil, f.err
}

// failingTokens fails every call with err.
type failingTokens struct {
	auth.TokenStore
	err error
}

func (f failingTokens) Issue(context.Context, string) (*auth.Token, error) { return nil, f.err }

func (f failingTokens) Revoke(context.Context, string) (bool, error) { return false, f.err }

func (f failingTokens) Lookup(context.Context, string) (*auth.Token, error) { return nil, f.err }

type fixture struct {
	svc      *auth.Service
	creds    *tabular.CredentialStore
	tokens   *tabular.TokenStore
	hasher   *auth.Hasher
	notifier *mockNotifier
}

// newFixture seeds:
//   - E001 active user, password "correctpw"
//   - E002 inactive user, password "correctpw"
//   - A001 active admin, password "adminpass"
//   - E003 active user with the derived default password ("e003E003")
func newFixture(t *testing.T, opts ...auth.ServiceOption) *fixture {
	t.Helper()

	creds, tokens := tabular.NewMemory()
	hasher := auth.NewHasher("")
	ctx := context.Background()

	seed := []*auth.User{
		{EmployeeID: "E001", FullName: "Ada Trader", Email: "e001@co.com", Role: auth.RoleUser, Status: auth.StatusActive, PasswordHash: hasher.Hash("correctpw")},
		{EmployeeID: "E002", FullName: "Gone Trader", Email: "e002@co.com", Role: auth.RoleUser, Status: auth.StatusInactive, PasswordHash: hasher.Hash("correctpw")},
		{EmployeeID: "A001", FullName: "Desk Admin", Email: "admin@co.com", Role: auth.RoleAdmin, Status: auth.StatusActive, PasswordHash: hasher.Hash("adminpass")},
		{EmployeeID: "E003", FullName: "New Trader", Email: "e003@co.com", Role: auth.RoleUser, Status: auth.StatusActive, PasswordHash: hasher.DerivePassword("e003@co.com", "E003")},
	}
	for _, u := range seed {
		require.NoError(t, creds.Create(ctx, u))
	}

	notifier := &mockNotifier{}
	t.Cleanup(func() { notifier.AssertExpectations(t) })

	all := append([]auth.ServiceOption{auth.WithNotifier(notifier)}, opts...)
	svc, err := auth.NewAuthService(creds, tokens, hasher, all...)
	require.NoError(t, err)

	return &fixture{svc: svc, creds: creds, tokens: tokens, hasher: hasher, notifier: notifier}
}
