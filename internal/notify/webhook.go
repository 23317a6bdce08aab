// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TradeJournal Contributors

package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/samber/oops"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tradejournal/tradejournal/internal/auth"
)

// EventPasswordReset is the event name carried by reset payloads.
const EventPasswordReset = "password_reset"

// Payload is the JSON body posted for each notice.
type Payload struct {
	Event             string    `json:"event"`
	EmployeeID        string    `json:"employeeId"`
	FullName          string    `json:"fullName"`
	Email             string    `json:"email"`
	TemporaryPassword string    `json:"temporaryPassword"`
	SentAt            time.Time `json:"sentAt"`
}

// Webhook posts reset notices to an HTTP endpoint, typically a mail relay.
type Webhook struct {
	url    string
	client *http.Client
	now    func() time.Time
}

// WebhookOption configures a Webhook.
type WebhookOption func(*Webhook)

// WithHTTPClient replaces the default client, which times out after 10s and
// propagates the caller's trace context.
func WithHTTPClient(c *http.Client) WebhookOption {
	return func(w *Webhook) { w.client = c }
}

// NewWebhook creates a notifier posting to url.
func NewWebhook(url string, opts ...WebhookOption) *Webhook {
	w := &Webhook{
		url:    url,
		client: &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// NotifyPasswordReset implements auth.Notifier. 4xx responses wrap
// ErrPermanent; transport errors and other non-2xx responses do not.
func (w *Webhook) NotifyPasswordReset(ctx context.Context, notice auth.PasswordResetNotice) error {
	body, err := json.Marshal(Payload{
		Event:             EventPasswordReset,
		EmployeeID:        notice.EmployeeID,
		FullName:          notice.FullName,
		Email:             notice.Email,
		TemporaryPassword: notice.TemporaryPassword,
		SentAt:            w.now().UTC(),
	})
	if err != nil {
		return oops.Code("NOTIFY_ENCODE_FAILED").Wrap(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return oops.Code("NOTIFY_REQUEST_INVALID").With("url", w.url).Wrapf(ErrPermanent, "build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return oops.Code("NOTIFY_SEND_FAILED").
			With("employee_id", notice.EmployeeID).
			Wrap(err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10)) //nolint:errcheck // drain for connection reuse

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests:
		return oops.Code("NOTIFY_REJECTED").
			With("status", resp.StatusCode).
			With("employee_id", notice.EmployeeID).
			Wrap(ErrPermanent)
	default:
		return oops.Code("NOTIFY_SEND_FAILED").
			With("status", resp.StatusCode).
			With("employee_id", notice.EmployeeID).
			Errorf("webhook returned %s", resp.Status)
	}
}
