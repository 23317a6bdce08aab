// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TradeJournal Contributors

package api

import (
	"github.com/samber/oops"

	"github.com/tradejournal/tradejournal/internal/auth"
	"github.com/tradejournal/tradejournal/pkg/errutil"
)

// Envelope statuses.
const (
	StatusSuccess                = "success"
	StatusError                  = "error"
	StatusPasswordChangeRequired = "password_change_required"
	StatusValidationError        = "validation_error"
	StatusWarning                = "warning"
)

// Public error codes. Internal oops codes never leave the process.
const (
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeValidationError    = "VALIDATION_ERROR"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeForbidden          = "FORBIDDEN"
	CodeInternalError      = "INTERNAL_ERROR"
	CodeUnknownAction      = "UNKNOWN_ACTION"
	CodeBadRequest         = "BAD_REQUEST"
	CodeNotifyFailed       = "NOTIFY_FAILED"
)

// Envelope is the uniform response body.
type Envelope struct {
	Status  string    `json:"status"`
	Message string    `json:"message"`
	Code    string    `json:"code,omitempty"`
	Field   string    `json:"field,omitempty"`
	User    *UserView `json:"user,omitempty"`
	Token   string    `json:"token,omitempty"`
}

// UserView is the client-visible part of a user record.
type UserView struct {
	EmployeeID            string `json:"employeeId"`
	FullName              string `json:"fullName"`
	Email                 string `json:"email"`
	Role                  string `json:"role"`
	RequirePasswordChange bool   `json:"requirePasswordChange"`
}

func viewOf(u *auth.User) *UserView {
	if u == nil {
		return nil
	}
	return &UserView{
		EmployeeID:            u.EmployeeID,
		FullName:              u.FullName,
		Email:                 u.Email,
		Role:                  string(u.Role),
		RequirePasswordChange: u.RequirePasswordChange,
	}
}

func success(message string) Envelope {
	return Envelope{Status: StatusSuccess, Message: message}
}

func failure(code, message string) Envelope {
	return Envelope{Status: StatusError, Code: code, Message: message}
}

// Render maps an error from the auth layer to an envelope. The second result
// reports whether the error is internal and should be logged.
func Render(err error) (Envelope, bool) {
	switch errutil.Code(err) {
	case auth.CodeInvalidCredentials, auth.CodeAccountInactive:
		return failure(CodeInvalidCredentials, "Invalid employee ID, email, or password."), false
	case auth.CodeValidation:
		env := Envelope{Status: StatusValidationError, Code: CodeValidationError, Message: err.Error()}
		if oopsErr, ok := oops.AsOops(err); ok {
			if field, ok := oopsErr.Context()["field"].(string); ok {
				env.Field = field
			}
		}
		return env, false
	case auth.CodeUnauthorized:
		return failure(CodeUnauthorized, "Authentication required."), false
	case auth.CodeForbidden:
		return failure(CodeForbidden, "You do not have access to this account."), false
	default:
		return failure(CodeInternalError, "An internal error occurred. Please try again later."), true
	}
}
