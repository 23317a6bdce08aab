// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TradeJournal Contributors

package auth

import (
	"errors"

	"github.com/samber/oops"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// Error codes surfaced by the auth package.
const (
	CodeInvalidCredentials = "AUTH_INVALID_CREDENTIALS"
	CodeAccountInactive    = "AUTH_ACCOUNT_INACTIVE"
	CodeValidation         = "AUTH_VALIDATION"
	CodeUnauthorized       = "AUTH_UNAUTHORIZED"
	CodeForbidden          = "AUTH_FORBIDDEN"
	CodeStorage            = "AUTH_STORAGE"
	CodeUserExists         = "AUTH_USER_EXISTS"
	CodeUserNotFound       = "AUTH_USER_NOT_FOUND"
	CodeNotifyFailed       = "AUTH_NOTIFY_FAILED"
)

// errInvalidCredentials never says whether the identifier or the password was wrong.
func errInvalidCredentials() error {
	return oops.Code(CodeInvalidCredentials).Errorf("invalid employee ID, email, or password")
}

func errValidation(field, msg string) error {
	return oops.Code(CodeValidation).With("field", field).Errorf("%s", msg)
}

func errUnauthorized(msg string) error {
	return oops.Code(CodeUnauthorized).Errorf("%s", msg)
}

// storageError wraps a persistence failure.
func storageError(operation string, err error) error {
	return oops.Code(CodeStorage).With("operation", operation).Wrap(err)
}

// UserNotFound wraps ErrNotFound for a missing employee ID. Store
// implementations use it so callers can rely on errors.Is(err, ErrNotFound).
func UserNotFound(employeeID string) error {
	return oops.Code(CodeUserNotFound).With("employee_id", employeeID).Wrap(ErrNotFound)
}

// UserExists reports a provisioning conflict on employee ID or email.
func UserExists(employeeID, email string) error {
	return oops.Code(CodeUserExists).
		With("employee_id", employeeID).
		With("email", email).
		Errorf("user already exists")
}
