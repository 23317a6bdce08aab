// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TradeJournal Contributors

package tabular

import (
	"context"
	"strconv"
	"strings"

	"github.com/samber/oops"

	"github.com/tradejournal/tradejournal/internal/auth"
	"github.com/tradejournal/tradejournal/internal/rowstore"
)

// UserTable is the name of the credential table.
const UserTable = "user"

// User table columns.
const (
	colEmployeeID    = "employeeId"
	colFullName      = "fullName"
	colEmail         = "email"
	colRole          = "role"
	colStatus        = "status"
	colPasswordHash  = "passwordHash"
	colRequireChange = "requirePasswordChange"
	colIsTemporary   = "isTemporaryPassword"
)

// UserColumns lists the credential table columns in sheet order.
var UserColumns = []string{
	colEmployeeID, colFullName, colEmail, colRole,
	colStatus, colPasswordHash, colRequireChange, colIsTemporary,
}

// CredentialStore implements auth.CredentialStore over a rowstore table.
type CredentialStore struct {
	table rowstore.Table
}

// NewCredentialStore creates a credential store over table.
func NewCredentialStore(table rowstore.Table) *CredentialStore {
	return &CredentialStore{table: table}
}

// FindByIdentifier implements auth.CredentialStore.
func (s *CredentialStore) FindByIdentifier(ctx context.Context, identifier string) (*auth.User, error) {
	identifier = strings.TrimSpace(identifier)
	return s.find(ctx, "find by identifier", identifier, func(r rowstore.Row) bool {
		return r[colEmployeeID] == identifier || auth.SameEmail(r[colEmail], identifier)
	})
}

// FindByEmail implements auth.CredentialStore.
func (s *CredentialStore) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	return s.find(ctx, "find by email", email, func(r rowstore.Row) bool {
		return auth.SameEmail(r[colEmail], email)
	})
}

// FindByEmployeeID implements auth.CredentialStore.
func (s *CredentialStore) FindByEmployeeID(ctx context.Context, employeeID string) (*auth.User, error) {
	employeeID = strings.TrimSpace(employeeID)
	return s.find(ctx, "find by employee id", employeeID, func(r rowstore.Row) bool {
		return r[colEmployeeID] == employeeID
	})
}

// find scans the table; the first active match wins, else the first inactive one.
func (s *CredentialStore) find(ctx context.Context, operation, key string, match func(rowstore.Row) bool) (*auth.User, error) {
	if key == "" {
		return nil, oops.Code(auth.CodeUserNotFound).Wrap(auth.ErrNotFound)
	}

	rows, err := s.table.Scan(ctx)
	if err != nil {
		return nil, oops.With("operation", operation).With("table", s.table.Name()).Wrap(err)
	}

	var inactive *auth.User
	for _, r := range rows {
		if !match(r) {
			continue
		}
		u := decodeUser(r)
		if u.IsActive() {
			return u, nil
		}
		if inactive == nil {
			inactive = u
		}
	}
	if inactive != nil {
		return inactive, nil
	}
	return nil, oops.Code(auth.CodeUserNotFound).With("key", key).Wrap(auth.ErrNotFound)
}

// SetPassword implements auth.CredentialStore. Every row carrying employeeID
// is updated so duplicates cannot diverge.
func (s *CredentialStore) SetPassword(ctx context.Context, employeeID, passwordHash string, requireChange, isTemporary bool) error {
	n, err := s.table.Update(ctx, rowstore.Key{Column: colEmployeeID, Value: employeeID}, rowstore.Row{
		colPasswordHash:  passwordHash,
		colRequireChange: strconv.FormatBool(requireChange),
		colIsTemporary:   strconv.FormatBool(isTemporary),
	})
	if err != nil {
		return oops.With("operation", "set password").With("employee_id", employeeID).Wrap(err)
	}
	if n == 0 {
		return auth.UserNotFound(employeeID)
	}
	return nil
}

// SetStatus implements auth.CredentialStore.
func (s *CredentialStore) SetStatus(ctx context.Context, employeeID string, status auth.Status) error {
	n, err := s.table.Update(ctx, rowstore.Key{Column: colEmployeeID, Value: employeeID}, rowstore.Row{
		colStatus: strconv.Itoa(int(status)),
	})
	if err != nil {
		return oops.With("operation", "set status").With("employee_id", employeeID).Wrap(err)
	}
	if n == 0 {
		return auth.UserNotFound(employeeID)
	}
	return nil
}

// Create implements auth.CredentialStore. The uniqueness check and the append
// are separate table calls; concurrent provisioning of the same user is not
// prevented.
func (s *CredentialStore) Create(ctx context.Context, user *auth.User) error {
	rows, err := s.table.Scan(ctx)
	if err != nil {
		return oops.With("operation", "create user").With("table", s.table.Name()).Wrap(err)
	}
	for _, r := range rows {
		if r[colEmployeeID] == user.EmployeeID || auth.SameEmail(r[colEmail], user.Email) {
			return auth.UserExists(user.EmployeeID, user.Email)
		}
	}
	if err := s.table.Append(ctx, encodeUser(user)); err != nil {
		return oops.With("operation", "create user").With("employee_id", user.EmployeeID).Wrap(err)
	}
	return nil
}

// List implements auth.CredentialStore.
func (s *CredentialStore) List(ctx context.Context) ([]*auth.User, error) {
	rows, err := s.table.Scan(ctx)
	if err != nil {
		return nil, oops.With("operation", "list users").With("table", s.table.Name()).Wrap(err)
	}
	users := make([]*auth.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, decodeUser(r))
	}
	return users, nil
}

func decodeUser(r rowstore.Row) *auth.User {
	status := auth.StatusInactive
	if n, err := strconv.Atoi(strings.TrimSpace(r[colStatus])); err == nil && n == int(auth.StatusActive) {
		status = auth.StatusActive
	}
	return &auth.User{
		EmployeeID:            r[colEmployeeID],
		FullName:              r[colFullName],
		Email:                 r[colEmail],
		Role:                  auth.Role(strings.TrimSpace(r[colRole])),
		Status:                status,
		PasswordHash:          strings.TrimSpace(r[colPasswordHash]),
		RequirePasswordChange: parseFlag(r[colRequireChange]),
		IsTemporaryPassword:   parseFlag(r[colIsTemporary]),
	}
}

func encodeUser(u *auth.User) rowstore.Row {
	return rowstore.Row{
		colEmployeeID:    u.EmployeeID,
		colFullName:      u.FullName,
		colEmail:         u.Email,
		colRole:          string(u.Role),
		colStatus:        strconv.Itoa(int(u.Status)),
		colPasswordHash:  u.PasswordHash,
		colRequireChange: strconv.FormatBool(u.RequirePasswordChange),
		colIsTemporary:   strconv.FormatBool(u.IsTemporaryPassword),
	}
}

// parseFlag reads a boolean cell; anything unparseable is false.
func parseFlag(v string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	return err == nil && b
}

var _ auth.CredentialStore = (*CredentialStore)(nil)
