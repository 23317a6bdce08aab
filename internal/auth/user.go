// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TradeJournal Contributors

package auth

import (
	"context"
	"strings"

	"github.com/samber/oops"
)

// Role names a user's permission level. Admins bypass account-ownership checks.
type Role string

// Known roles.
const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Status is the account state. Only active accounts may log in.
type Status int

// Account states as stored in the user table.
const (
	StatusInactive Status = 0
	StatusActive   Status = 1
)

// User is an employee's credential record.
type User struct {
	EmployeeID            string
	FullName              string
	Email                 string
	Role                  Role
	Status                Status
	PasswordHash          string
	RequirePasswordChange bool
	IsTemporaryPassword   bool
}

// IsActive reports whether the account may log in.
func (u *User) IsActive() bool {
	return u != nil && u.Status == StatusActive
}

// HasRole reports whether the user holds role r.
func (u *User) HasRole(r Role) bool {
	return u != nil && strings.EqualFold(string(u.Role), string(r))
}

// NewUser creates an active user with validated identifiers.
func NewUser(employeeID, fullName, email string, role Role, passwordHash string) (*User, error) {
	employeeID = strings.TrimSpace(employeeID)
	email = strings.TrimSpace(email)

	if employeeID == "" {
		return nil, oops.Code("AUTH_INVALID_USER").With("field", "employeeId").Errorf("employee ID cannot be empty")
	}
	if strings.ContainsAny(employeeID, " \t\n@") {
		return nil, oops.Code("AUTH_INVALID_USER").
			With("field", "employeeId").
			With("employee_id", employeeID).
			Errorf("employee ID cannot contain whitespace or '@'")
	}
	if at := strings.IndexByte(email, '@'); at <= 0 || at == len(email)-1 {
		return nil, oops.Code("AUTH_INVALID_USER").
			With("field", "email").
			With("email", email).
			Errorf("email must look like local@domain")
	}
	if role == "" {
		role = RoleUser
	}
	if passwordHash == "" {
		return nil, oops.Code("AUTH_INVALID_USER").With("field", "passwordHash").Errorf("password hash cannot be empty")
	}

	return &User{
		EmployeeID:   employeeID,
		FullName:     strings.TrimSpace(fullName),
		Email:        email,
		Role:         role,
		Status:       StatusActive,
		PasswordHash: passwordHash,
	}, nil
}

// LocalPart returns the part of email before the first '@', or the whole
// string when there is none.
func LocalPart(email string) string {
	if at := strings.IndexByte(email, '@'); at >= 0 {
		return email[:at]
	}
	return email
}

// SameEmail compares addresses case-insensitively, ignoring surrounding space.
func SameEmail(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// CredentialStore manages user credential records.
//
// Lookups prefer active records: the first active match wins, and the first
// inactive match is returned only when no active record matches. Absence is
// reported with an error wrapping ErrNotFound.
type CredentialStore interface {
	// FindByIdentifier matches either the employee ID or the email.
	FindByIdentifier(ctx context.Context, identifier string) (*User, error)

	// FindByEmail matches the email (case-insensitive).
	FindByEmail(ctx context.Context, email string) (*User, error)

	// FindByEmployeeID matches the employee ID exactly.
	FindByEmployeeID(ctx context.Context, employeeID string) (*User, error)

	// SetPassword replaces the password hash and rotation flags.
	SetPassword(ctx context.Context, employeeID, passwordHash string, requireChange, isTemporary bool) error

	// SetStatus activates or deactivates an account.
	SetStatus(ctx context.Context, employeeID string, status Status) error

	// Create stores a new user. Returns an AUTH_USER_EXISTS error when the
	// employee ID or email is taken.
	Create(ctx context.Context, user *User) error

	// List returns every user in storage order.
	List(ctx context.Context) ([]*User, error)
}
