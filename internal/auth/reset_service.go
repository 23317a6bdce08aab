// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TradeJournal Contributors

package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/samber/oops"
)

// PasswordResetNotice is handed to a Notifier after a reset. It carries the
// temporary password in clear; notifiers must not log it.
type PasswordResetNotice struct {
	EmployeeID        string
	FullName          string
	Email             string
	TemporaryPassword string
}

// Notifier delivers a temporary password to its owner.
type Notifier interface {
	NotifyPasswordReset(ctx context.Context, notice PasswordResetNotice) error
}

// ResetResult describes a completed reset request. Changed is false when the
// email matched no active account; callers must not reveal that distinction.
// NotifyErr is set when the password was reset but delivery failed.
type ResetResult struct {
	Changed   bool
	NotifyErr error
}

// ResetPassword replaces the password of the account owning email with the
// temporary password and requires a change at next login. Unknown and
// inactive emails succeed without touching storage.
func (s *Service) ResetPassword(ctx context.Context, email string) (*ResetResult, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		s.record("reset_password", "validation_error")
		return nil, errValidation("email", "email is required")
	}

	user, err := s.creds.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.record("reset_password", "unknown")
			return &ResetResult{}, nil
		}
		s.record("reset_password", "error")
		return nil, storageError("find user by email", err)
	}
	if !user.IsActive() {
		s.logger.DebugContext(ctx, "password reset requested for inactive account",
			"employee_id", user.EmployeeID)
		s.record("reset_password", "unknown")
		return &ResetResult{}, nil
	}

	if err := s.setTemporaryPassword(ctx, user.EmployeeID); err != nil {
		s.record("reset_password", "error")
		return nil, err
	}

	result := &ResetResult{Changed: true}
	if s.notifier == nil {
		s.record("reset_password", "success")
		return result, nil
	}

	notice := PasswordResetNotice{
		EmployeeID:        user.EmployeeID,
		FullName:          user.FullName,
		Email:             user.Email,
		TemporaryPassword: s.hasher.BootstrapPassword(),
	}
	if err := s.notifier.NotifyPasswordReset(ctx, notice); err != nil {
		s.logger.WarnContext(ctx, "password reset notification failed",
			"operation", "notify_password_reset",
			"employee_id", user.EmployeeID,
			"error", err)
		result.NotifyErr = oops.Code(CodeNotifyFailed).
			With("employee_id", user.EmployeeID).
			Wrap(err)
		s.record("reset_password", "warning")
		return result, nil
	}

	s.record("reset_password", "success")
	return result, nil
}

func (s *Service) setTemporaryPassword(ctx context.Context, employeeID string) error {
	unlock := s.locks.Lock(employeeID)
	defer unlock()

	if err := s.creds.SetPassword(ctx, employeeID, s.hasher.BootstrapHash(), true, true); err != nil {
		return storageError("set temporary password", err)
	}
	return nil
}
