// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TradeJournal Contributors

package notify

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/tradejournal/tradejournal/internal/auth"
)

// Retrying retries a notifier with exponential backoff. Errors wrapping
// ErrPermanent are returned without retrying.
type Retrying struct {
	next     auth.Notifier
	attempts uint64
	base     time.Duration
	logger   *slog.Logger
}

// DefaultBackoff is the first retry delay when none is given.
const DefaultBackoff = 500 * time.Millisecond

// NewRetrying wraps next. attempts below 1 are treated as 1; a non-positive
// base uses DefaultBackoff.
func NewRetrying(next auth.Notifier, attempts int, base time.Duration, logger *slog.Logger) *Retrying {
	if attempts < 1 {
		attempts = 1
	}
	if base <= 0 {
		base = DefaultBackoff
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retrying{next: next, attempts: uint64(attempts), base: base, logger: logger}
}

// NotifyPasswordReset implements auth.Notifier.
func (r *Retrying) NotifyPasswordReset(ctx context.Context, notice auth.PasswordResetNotice) error {
	backoff := retry.WithMaxRetries(r.attempts-1, retry.NewExponential(r.base))
	attempt := 0
	//nolint:wrapcheck // the wrapped notifier's error is returned unchanged
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := r.next.NotifyPasswordReset(ctx, notice)
		if err == nil || errors.Is(err, ErrPermanent) {
			return err
		}
		r.logger.DebugContext(ctx, "notification attempt failed",
			"employee_id", notice.EmployeeID,
			"attempt", attempt,
			"error", err)
		return retry.RetryableError(err)
	})
}
