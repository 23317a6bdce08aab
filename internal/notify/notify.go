// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TradeJournal Contributors

// Package notify delivers password reset notices to users.
package notify

import (
	"context"
	"errors"
	"log/slog"

	"github.com/tradejournal/tradejournal/internal/auth"
)

// ErrPermanent marks a delivery failure that retrying cannot fix.
var ErrPermanent = errors.New("permanent delivery failure")

// Log writes reset notices to a logger. The temporary password is never logged.
type Log struct {
	logger *slog.Logger
}

// NewLog creates a Log notifier. A nil logger uses slog.Default.
func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger}
}

// NotifyPasswordReset implements auth.Notifier.
func (l *Log) NotifyPasswordReset(ctx context.Context, notice auth.PasswordResetNotice) error {
	l.logger.InfoContext(ctx, "password reset notice",
		"employee_id", notice.EmployeeID,
		"email", notice.Email)
	return nil
}

var (
	_ auth.Notifier = (*Log)(nil)
	_ auth.Notifier = (*Webhook)(nil)
	_ auth.Notifier = (*Retrying)(nil)
)
