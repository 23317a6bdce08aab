// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TradeJournal Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/samber/oops"
)

// DefaultMinPasswordLength is the shortest password ChangePassword accepts.
const DefaultMinPasswordLength = 8

// Recorder receives auth outcomes, typically for metrics.
type Recorder interface {
	RecordAuthEvent(operation, outcome string)
}

// LoginOutcome is the result state of a successful credential check.
type LoginOutcome string

// Login outcomes.
const (
	LoginAuthenticated          LoginOutcome = "authenticated"
	LoginPasswordChangeRequired LoginOutcome = "password_change_required"
)

// LoginResult describes a successful credential check. Token is nil when the
// user must change their password first.
type LoginResult struct {
	Outcome LoginOutcome
	User    *User
	Token   *Token
}

// ChangePasswordRequest carries the inputs of a forced or voluntary password change.
type ChangePasswordRequest struct {
	EmployeeID      string
	CurrentPassword string
	NewPassword     string
	ConfirmPassword string
}

// Service provides authentication operations.
type Service struct {
	creds    CredentialStore
	tokens   TokenStore
	hasher   *Hasher
	notifier Notifier
	recorder Recorder
	logger   *slog.Logger
	locks    *KeyedMutex
	minLen   int
}

// ServiceOption configures optional Service collaborators.
type ServiceOption func(*Service)

// WithNotifier sets the notifier used to deliver temporary passwords.
func WithNotifier(n Notifier) ServiceOption {
	return func(s *Service) { s.notifier = n }
}

// WithRecorder sets the outcome recorder.
func WithRecorder(r Recorder) ServiceOption {
	return func(s *Service) { s.recorder = r }
}

// WithLogger sets the logger used for best-effort failures.
func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

// WithMinPasswordLength overrides DefaultMinPasswordLength. Values below 1 are ignored.
func WithMinPasswordLength(n int) ServiceOption {
	return func(s *Service) {
		if n > 0 {
			s.minLen = n
		}
	}
}

// NewAuthService creates a new Service.
func NewAuthService(creds CredentialStore, tokens TokenStore, hasher *Hasher, opts ...ServiceOption) (*Service, error) {
	if creds == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("credential store is required")
	}
	if tokens == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("token store is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("hasher is required")
	}

	s := &Service{
		creds:  creds,
		tokens: tokens,
		hasher: hasher,
		locks:  NewKeyedMutex(),
		minLen: DefaultMinPasswordLength,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s, nil
}

// Hasher returns the hasher the service verifies against.
func (s *Service) Hasher() *Hasher {
	return s.hasher
}

// Login checks credentials and, unless a password change is pending, issues a
// token. Unknown identifiers, inactive accounts and wrong passwords fail the
// same way from the caller's point of view; inactive accounts carry their own
// code for logging.
func (s *Service) Login(ctx context.Context, identifier, password string) (*LoginResult, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		s.record("login", "invalid_credentials")
		return nil, errInvalidCredentials()
	}

	user, err := s.creds.FindByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.record("login", "invalid_credentials")
			return nil, errInvalidCredentials()
		}
		s.record("login", "error")
		return nil, storageError("find user by identifier", err)
	}

	if !user.IsActive() {
		s.record("login", "inactive")
		return nil, oops.Code(CodeAccountInactive).
			With("employee_id", user.EmployeeID).
			Errorf("account is inactive")
	}

	if !s.hasher.Verify(password, user, true) {
		s.record("login", "invalid_credentials")
		return nil, errInvalidCredentials()
	}

	if user.RequirePasswordChange {
		s.record("login", "password_change_required")
		return &LoginResult{Outcome: LoginPasswordChangeRequired, User: user}, nil
	}

	token, err := s.tokens.Issue(ctx, user.EmployeeID)
	if err != nil {
		s.record("login", "error")
		return nil, storageError("issue token", err)
	}

	s.record("login", "success")
	return &LoginResult{Outcome: LoginAuthenticated, User: user, Token: token}, nil
}

// Logout revokes token. A token that is not live is reported as unauthorized.
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		s.record("logout", "unauthorized")
		return errUnauthorized("session token is required")
	}

	revoked, err := s.tokens.Revoke(ctx, token)
	if err != nil {
		s.record("logout", "error")
		return storageError("revoke token", err)
	}
	if !revoked {
		s.record("logout", "unauthorized")
		return errUnauthorized("session not found")
	}

	s.record("logout", "success")
	return nil
}

// ChangePassword verifies the current (possibly temporary) password, validates
// the new one and stores its digest, clearing the rotation flags. Changes for
// the same employee are serialized.
func (s *Service) ChangePassword(ctx context.Context, req ChangePasswordRequest) error {
	employeeID := strings.TrimSpace(req.EmployeeID)
	if employeeID == "" {
		s.record("change_password", "validation_error")
		return errValidation("employeeId", "employee ID is required")
	}

	unlock := s.locks.Lock(employeeID)
	defer unlock()

	user, err := s.creds.FindByEmployeeID(ctx, employeeID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.record("change_password", "invalid_credentials")
			return errInvalidCredentials()
		}
		s.record("change_password", "error")
		return storageError("find user by employee id", err)
	}
	if !user.IsActive() {
		s.record("change_password", "inactive")
		return oops.Code(CodeAccountInactive).
			With("employee_id", user.EmployeeID).
			Errorf("account is inactive")
	}

	if !s.hasher.Verify(req.CurrentPassword, user, true) {
		s.record("change_password", "invalid_credentials")
		return oops.Code(CodeInvalidCredentials).
			With("field", "currentPassword").
			Errorf("current password is incorrect")
	}

	if err := s.validateNewPassword(req); err != nil {
		s.record("change_password", "validation_error")
		return err
	}

	if err := s.creds.SetPassword(ctx, user.EmployeeID, s.hasher.Hash(req.NewPassword), false, false); err != nil {
		s.record("change_password", "error")
		return storageError("set password", err)
	}

	s.record("change_password", "success")
	return nil
}

func (s *Service) validateNewPassword(req ChangePasswordRequest) error {
	if req.NewPassword != req.ConfirmPassword {
		return errValidation("confirmPassword", "new password and confirmation do not match")
	}
	if utf8.RuneCountInString(req.NewPassword) < s.minLen {
		return oops.Code(CodeValidation).
			With("field", "newPassword").
			With("min", s.minLen).
			Errorf("new password must be at least %d characters", s.minLen)
	}
	if req.NewPassword == req.CurrentPassword {
		return errValidation("newPassword", "new password must differ from the current password")
	}
	if s.hasher.IsBootstrap(req.NewPassword) {
		return errValidation("newPassword", "new password cannot be the temporary password")
	}
	return nil
}

func (s *Service) record(operation, outcome string) {
	if s.recorder != nil {
		s.recorder.RecordAuthEvent(operation, outcome)
	}
}
