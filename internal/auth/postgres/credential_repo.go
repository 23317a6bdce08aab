// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TradeJournal Contributors

package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"github.com/tradejournal/tradejournal/internal/auth"
)

const userColumns = `employee_id, full_name, email, role, status, password_hash,
	require_password_change, is_temporary_password`

// Active rows sort first; ties keep insertion order.
const preferActive = `ORDER BY (status = 1) DESC, created_at, employee_id LIMIT 1`

// CredentialRepository implements auth.CredentialStore using PostgreSQL.
type CredentialRepository struct {
	pool poolIface
}

// NewCredentialRepository creates a new CredentialRepository.
func NewCredentialRepository(pool poolIface) *CredentialRepository {
	return &CredentialRepository{pool: pool}
}

// FindByIdentifier matches the employee ID exactly or the email case-insensitively.
func (r *CredentialRepository) FindByIdentifier(ctx context.Context, identifier string) (*auth.User, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, oops.Code(auth.CodeUserNotFound).Wrap(auth.ErrNotFound)
	}
	row := r.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE employee_id = $1 OR lower(email) = lower($1)
		`+preferActive, identifier)
	return r.scanOne(row, "find user by identifier", identifier)
}

// FindByEmail retrieves a user by email, ignoring case.
func (r *CredentialRepository) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, oops.Code(auth.CodeUserNotFound).Wrap(auth.ErrNotFound)
	}
	row := r.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE lower(email) = lower($1)
		`+preferActive, email)
	return r.scanOne(row, "find user by email", email)
}

// FindByEmployeeID retrieves a user by employee ID.
func (r *CredentialRepository) FindByEmployeeID(ctx context.Context, employeeID string) (*auth.User, error) {
	employeeID = strings.TrimSpace(employeeID)
	if employeeID == "" {
		return nil, oops.Code(auth.CodeUserNotFound).Wrap(auth.ErrNotFound)
	}
	row := r.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE employee_id = $1
		`+preferActive, employeeID)
	return r.scanOne(row, "find user by employee id", employeeID)
}

func (r *CredentialRepository) scanOne(row pgx.Row, operation, key string) (*auth.User, error) {
	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code(auth.CodeUserNotFound).With("key", key).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_QUERY_FAILED").With("operation", operation).Wrap(err)
	}
	return u, nil
}

// SetPassword replaces the stored hash and both password flags.
func (r *CredentialRepository) SetPassword(ctx context.Context, employeeID, passwordHash string, requireChange, isTemporary bool) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE users
		SET password_hash = $2, require_password_change = $3, is_temporary_password = $4, updated_at = now()
		WHERE employee_id = $1
	`, employeeID, passwordHash, requireChange, isTemporary)
	if err != nil {
		return oops.Code("USER_UPDATE_FAILED").
			With("operation", "set password").
			With("employee_id", employeeID).
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return auth.UserNotFound(employeeID)
	}
	return nil
}

// SetStatus activates or deactivates a user.
func (r *CredentialRepository) SetStatus(ctx context.Context, employeeID string, status auth.Status) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE users SET status = $2, updated_at = now() WHERE employee_id = $1
	`, employeeID, int16(status))
	if err != nil {
		return oops.Code("USER_UPDATE_FAILED").
			With("operation", "set status").
			With("employee_id", employeeID).
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return auth.UserNotFound(employeeID)
	}
	return nil
}

// Create inserts a user. Duplicate employee IDs and emails are rejected by
// the table's unique indexes.
func (r *CredentialRepository) Create(ctx context.Context, user *auth.User) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		user.EmployeeID,
		user.FullName,
		user.Email,
		string(user.Role),
		int16(user.Status),
		user.PasswordHash,
		user.RequirePasswordChange,
		user.IsTemporaryPassword,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return auth.UserExists(user.EmployeeID, user.Email)
		}
		return oops.Code("USER_CREATE_FAILED").
			With("operation", "insert user").
			With("employee_id", user.EmployeeID).
			Wrap(err)
	}
	return nil
}

// List returns every user ordered by employee ID.
func (r *CredentialRepository) List(ctx context.Context) ([]*auth.User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY employee_id`)
	if err != nil {
		return nil, oops.Code("USER_QUERY_FAILED").With("operation", "list users").Wrap(err)
	}
	defer rows.Close()

	var users []*auth.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, oops.Code("USER_SCAN_FAILED").With("operation", "scan user row").Wrap(err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("USER_QUERY_FAILED").With("operation", "iterate users").Wrap(err)
	}
	return users, nil
}

func scanUser(row pgx.Row) (*auth.User, error) {
	var (
		u      auth.User
		role   string
		status int16
	)
	if err := row.Scan(
		&u.EmployeeID,
		&u.FullName,
		&u.Email,
		&role,
		&status,
		&u.PasswordHash,
		&u.RequirePasswordChange,
		&u.IsTemporaryPassword,
	); err != nil {
		return nil, err //nolint:wrapcheck // callers wrap with operation context
	}
	u.Role = auth.Role(role)
	if status == int16(auth.StatusActive) {
		u.Status = auth.StatusActive
	}
	return &u, nil
}

var _ auth.CredentialStore = (*CredentialRepository)(nil)
