// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TradeJournal Contributors

package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradejournal/tradejournal/internal/api"
	"github.com/tradejournal/tradejournal/internal/auth"
	"github.com/tradejournal/tradejournal/internal/auth/tabular"
)

type fixture struct {
	handler  *api.Handler
	server   *httptest.Server
	creds    auth.CredentialStore
	hasher   *auth.Hasher
	recorder *requestCounter
}

type requestCounter struct {
	mu     sync.Mutex
	counts map[string]int
}

func (c *requestCounter) RecordRequest(action, status string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts == nil {
		c.counts = make(map[string]int)
	}
	c.counts[action+"/"+status]++
}

func (c *requestCounter) count(action, status string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[action+"/"+status]
}

type failingNotifier struct{}

func (failingNotifier) NotifyPasswordReset(context.Context, auth.PasswordResetNotice) error {
	return errors.New("smtp relay down")
}

// brokenCredentials fails every identifier lookup.
type brokenCredentials struct {
	auth.CredentialStore
}

func (brokenCredentials) FindByIdentifier(context.Context, string) (*auth.User, error) {
	return nil, errors.New("sheet quota exceeded: tab Users")
}

type fixtureOptions struct {
	creds         func(auth.CredentialStore) auth.CredentialStore
	notifier      auth.Notifier
	publicActions []string
}

func newFixture(t *testing.T, fo fixtureOptions) *fixture {
	t.Helper()
	ctx := context.Background()
	hasher := auth.NewHasher(auth.DefaultBootstrapPassword)
	memCreds, tokens := tabular.NewMemory()

	for _, seed := range []struct {
		id, email string
		role      auth.Role
	}{
		{"E100", "jane.doe@co.com", auth.RoleUser},
		{"E200", "sam.lee@co.com", auth.RoleUser},
		{"A001", "ops@co.com", auth.RoleAdmin},
	} {
		u, err := auth.NewUser(seed.id, "Trader "+seed.id, seed.email, seed.role, hasher.DerivePassword(seed.email, seed.id))
		require.NoError(t, err)
		require.NoError(t, memCreds.Create(ctx, u))
	}

	var creds auth.CredentialStore = memCreds
	if fo.creds != nil {
		creds = fo.creds(memCreds)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	svcOpts := []auth.ServiceOption{auth.WithLogger(logger)}
	if fo.notifier != nil {
		svcOpts = append(svcOpts, auth.WithNotifier(fo.notifier))
	}
	svc, err := auth.NewAuthService(creds, tokens, hasher, svcOpts...)
	require.NoError(t, err)
	public := auth.DefaultPublicActions
	if fo.publicActions != nil {
		public = fo.publicActions
	}
	gate, err := auth.NewAccessGate(tokens, creds, public)
	require.NoError(t, err)

	recorder := &requestCounter{}
	h, err := api.NewHandler(svc, gate, api.WithLogger(logger), api.WithRequestRecorder(recorder))
	require.NoError(t, err)

	srv := httptest.NewServer(h.Routes())
	t.Cleanup(srv.Close)
	return &fixture{handler: h, server: srv, creds: memCreds, hasher: hasher, recorder: recorder}
}

func (f *fixture) call(t *testing.T, req api.Request) api.Envelope {
	t.Helper()
	body, err := json.Marshal(req)
	require.NoError(t, err)
	resp, err := http.Post(f.server.URL+api.Path, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var env api.Envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return env
}

func (f *fixture) login(t *testing.T, identifier, password string) string {
	t.Helper()
	env := f.call(t, api.Request{Action: api.ActionLogin, Identifier: identifier, Password: password})
	require.Equal(t, api.StatusSuccess, env.Status, env.Message)
	require.NotEmpty(t, env.Token)
	return env.Token
}

func TestNewHandler_RequiresCollaborators(t *testing.T) {
	_, err := api.NewHandler(nil, nil)
	require.Error(t, err)
}

func TestHandler_Login(t *testing.T) {
	f := newFixture(t, fixtureOptions{})

	t.Run("success returns token and user without hash", func(t *testing.T) {
		resp, err := http.Post(f.server.URL+api.Path, "application/json",
			strings.NewReader(`{"action":"login","identifier":"JANE.DOE@co.com","password":"jane.doeE100"}`))
		require.NoError(t, err)
		defer resp.Body.Close()
		raw, err := io.ReadAll(resp.Body)
		require.NoError(t, err)

		assert.NotContains(t, string(raw), "passwordHash")
		assert.NotContains(t, string(raw), f.hasher.DerivePassword("jane.doe@co.com", "E100"))

		var env api.Envelope
		require.NoError(t, json.Unmarshal(raw, &env))
		assert.Equal(t, api.StatusSuccess, env.Status)
		assert.True(t, strings.HasSuffix(env.Token, "E100"))
		require.NotNil(t, env.User)
		assert.Equal(t, "E100", env.User.EmployeeID)
		assert.Equal(t, "user", env.User.Role)
	})

	t.Run("wrong password", func(t *testing.T) {
		env := f.call(t, api.Request{Action: api.ActionLogin, Identifier: "E100", Password: "nope"})
		assert.Equal(t, api.StatusError, env.Status)
		assert.Equal(t, api.CodeInvalidCredentials, env.Code)
		assert.Empty(t, env.Token)
	})

	t.Run("unknown and inactive look the same", func(t *testing.T) {
		require.NoError(t, f.creds.SetStatus(context.Background(), "E200", auth.StatusInactive))

		unknown := f.call(t, api.Request{Action: api.ActionLogin, Identifier: "E999", Password: "whatever1"})
		inactive := f.call(t, api.Request{Action: api.ActionLogin, Identifier: "E200", Password: "sam.leeE200"})
		assert.Equal(t, unknown, inactive)
	})
}

func TestHandler_ResetThenForcedChange(t *testing.T) {
	f := newFixture(t, fixtureOptions{})

	env := f.call(t, api.Request{Action: api.ActionResetPassword, Email: "jane.doe@co.com"})
	require.Equal(t, api.StatusSuccess, env.Status)

	unknown := f.call(t, api.Request{Action: api.ActionResetPassword, Email: "ghost@co.com"})
	assert.Equal(t, env, unknown, "unknown emails must not be distinguishable")

	env = f.call(t, api.Request{Action: api.ActionLogin, Identifier: "E100", Password: auth.DefaultBootstrapPassword})
	require.Equal(t, api.StatusPasswordChangeRequired, env.Status)
	assert.Empty(t, env.Token)
	require.NotNil(t, env.User)
	assert.True(t, env.User.RequirePasswordChange)

	env = f.call(t, api.Request{
		Action:          api.ActionChangePassword,
		EmployeeID:      "E100",
		CurrentPassword: auth.DefaultBootstrapPassword,
		NewPassword:     "short",
		ConfirmPassword: "short",
	})
	assert.Equal(t, api.StatusValidationError, env.Status)
	assert.Equal(t, api.CodeValidationError, env.Code)
	assert.Equal(t, "newPassword", env.Field)

	env = f.call(t, api.Request{
		Action:          api.ActionChangePassword,
		EmployeeID:      "E100",
		CurrentPassword: auth.DefaultBootstrapPassword,
		NewPassword:     "Quarterly-Close-9",
		ConfirmPassword: "Quarterly-Close-9",
	})
	require.Equal(t, api.StatusSuccess, env.Status, env.Message)

	f.login(t, "E100", "Quarterly-Close-9")
}

func TestHandler_ResetNotificationFailureIsWarning(t *testing.T) {
	f := newFixture(t, fixtureOptions{notifier: failingNotifier{}})

	env := f.call(t, api.Request{Action: api.ActionResetPassword, Email: "sam.lee@co.com"})
	assert.Equal(t, api.StatusWarning, env.Status)
	assert.Equal(t, api.CodeNotifyFailed, env.Code)
	assert.NotContains(t, env.Message, "smtp")
}

func TestHandler_SessionAndLogout(t *testing.T) {
	f := newFixture(t, fixtureOptions{})

	env := f.call(t, api.Request{Action: api.ActionSession})
	assert.Equal(t, api.CodeUnauthorized, env.Code)

	token := f.login(t, "E100", "jane.doeE100")
	env = f.call(t, api.Request{Action: api.ActionSession, Token: token})
	require.Equal(t, api.StatusSuccess, env.Status)
	assert.Equal(t, "E100", env.User.EmployeeID)

	env = f.call(t, api.Request{Action: api.ActionLogout, Token: token})
	assert.Equal(t, api.StatusSuccess, env.Status)

	env = f.call(t, api.Request{Action: api.ActionLogout, Token: token})
	assert.Equal(t, api.StatusError, env.Status)
	assert.Equal(t, api.CodeUnauthorized, env.Code)

	env = f.call(t, api.Request{Action: api.ActionSession, Token: token})
	assert.Equal(t, api.CodeUnauthorized, env.Code)
}

func TestHandler_VerifyAccount(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	userToken := f.login(t, "E100", "jane.doeE100")
	adminToken := f.login(t, "ops@co.com", "opsA001")

	tests := []struct {
		name       string
		token      string
		accountID  string
		wantStatus string
		wantCode   string
	}{
		{name: "own account", token: userToken, accountID: "E100", wantStatus: api.StatusSuccess},
		{name: "other account", token: userToken, accountID: "E200", wantStatus: api.StatusError, wantCode: api.CodeForbidden},
		{name: "admin on any account", token: adminToken, accountID: "E200", wantStatus: api.StatusSuccess},
		{name: "missing account", token: userToken, wantStatus: api.StatusValidationError, wantCode: api.CodeValidationError},
		{name: "no token", accountID: "E100", wantStatus: api.StatusError, wantCode: api.CodeUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := f.call(t, api.Request{Action: api.ActionVerifyAccount, Token: tt.token, AccountID: tt.accountID})
			assert.Equal(t, tt.wantStatus, env.Status)
			assert.Equal(t, tt.wantCode, env.Code)
		})
	}
}

func TestHandler_UnknownAction(t *testing.T) {
	f := newFixture(t, fixtureOptions{})

	env := f.call(t, api.Request{Action: "deleteEverything"})
	assert.Equal(t, api.StatusError, env.Status)
	assert.Equal(t, api.CodeUnknownAction, env.Code)
	assert.Equal(t, 1, f.recorder.count("unknown", api.StatusError))
}

func TestHandler_StorageFailureIsOpaque(t *testing.T) {
	f := newFixture(t, fixtureOptions{
		creds: func(c auth.CredentialStore) auth.CredentialStore { return brokenCredentials{c} },
	})

	env := f.call(t, api.Request{Action: api.ActionLogin, Identifier: "E100", Password: "jane.doeE100"})
	assert.Equal(t, api.StatusError, env.Status)
	assert.Equal(t, api.CodeInternalError, env.Code)
	assert.NotContains(t, env.Message, "quota")
	assert.Equal(t, 1, f.recorder.count(api.ActionLogin, api.StatusError))
}

func TestHandler_TransportErrors(t *testing.T) {
	f := newFixture(t, fixtureOptions{})

	t.Run("method not allowed", func(t *testing.T) {
		resp, err := http.Get(f.server.URL + api.Path)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
		assert.Equal(t, http.MethodPost, resp.Header.Get("Allow"))
	})

	t.Run("malformed body", func(t *testing.T) {
		resp, err := http.Post(f.server.URL+api.Path, "application/json", strings.NewReader("{not json"))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		var env api.Envelope
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
		assert.Equal(t, api.CodeBadRequest, env.Code)
		assert.Equal(t, 1, f.recorder.count("invalid", api.StatusError))
	})
}

func TestHandler_WildcardAllowListStillNeedsSession(t *testing.T) {
	f := newFixture(t, fixtureOptions{publicActions: []string{"*"}})
	ctx := context.Background()

	tests := []struct {
		name string
		req  api.Request
	}{
		{name: "session", req: api.Request{Action: api.ActionSession}},
		{name: "verifyAccount", req: api.Request{Action: api.ActionVerifyAccount, AccountID: "E100"}},
		{name: "verifyAccount without accountId", req: api.Request{Action: api.ActionVerifyAccount}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var env api.Envelope
			require.NotPanics(t, func() { env = f.handler.Dispatch(ctx, &tt.req) })
			assert.Equal(t, api.StatusError, env.Status)
			assert.Equal(t, api.CodeUnauthorized, env.Code)
		})
	}

	t.Run("a valid session is still served", func(t *testing.T) {
		token := f.login(t, "E100", "jane.doeE100")
		env := f.call(t, api.Request{Action: api.ActionVerifyAccount, Token: token, AccountID: "E100"})
		assert.Equal(t, api.StatusSuccess, env.Status, env.Message)
		require.NotNil(t, env.User)
		assert.Equal(t, "E100", env.User.EmployeeID)
	})
}
