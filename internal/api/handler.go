// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TradeJournal Contributors

// Package api exposes the auth core as a single JSON action endpoint. Every
// response, including failures, is an Envelope.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tradejournal/tradejournal/internal/auth"
	"github.com/tradejournal/tradejournal/pkg/errutil"
)

// Path is where the handler is mounted.
const Path = "/api"

const maxBodyBytes = 64 << 10

// Actions.
const (
	ActionLogin          = "login"
	ActionLogout         = "logout"
	ActionChangePassword = "changePassword"
	ActionResetPassword  = "resetPassword"
	ActionSession        = "session"
	ActionVerifyAccount  = "verifyAccount"
)

// Request is the body of every call. Fields beyond Action, Token and
// AccountID are read only by the actions that need them.
type Request struct {
	Action    string `json:"action"`
	Token     string `json:"token,omitempty"`
	AccountID string `json:"accountId,omitempty"`

	Identifier string `json:"identifier,omitempty"`
	Password   string `json:"password,omitempty"`

	EmployeeID      string `json:"employeeId,omitempty"`
	CurrentPassword string `json:"currentPassword,omitempty"`
	NewPassword     string `json:"newPassword,omitempty"`
	ConfirmPassword string `json:"confirmPassword,omitempty"`

	Email string `json:"email,omitempty"`
}

// RequestRecorder counts handled requests.
type RequestRecorder interface {
	RecordRequest(action, status string)
}

type actionFunc func(ctx context.Context, req *Request, session *auth.Session) (Envelope, error)

// Handler serves POST /api.
type Handler struct {
	svc      *auth.Service
	gate     *auth.AccessGate
	logger   *slog.Logger
	recorder RequestRecorder
	actions  map[string]actionFunc
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the logger for internal failures.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) { h.logger = l }
}

// WithRequestRecorder sets the request counter.
func WithRequestRecorder(r RequestRecorder) Option {
	return func(h *Handler) { h.recorder = r }
}

// NewHandler creates a Handler.
func NewHandler(svc *auth.Service, gate *auth.AccessGate, opts ...Option) (*Handler, error) {
	if svc == nil || gate == nil {
		return nil, oops.Code("API_HANDLER_INVALID").Errorf("auth service and access gate are required")
	}
	h := &Handler{
		svc:    svc,
		gate:   gate,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.actions = map[string]actionFunc{
		ActionLogin:          h.login,
		ActionLogout:         h.logout,
		ActionChangePassword: h.changePassword,
		ActionResetPassword:  h.resetPassword,
		ActionSession:        h.session,
		ActionVerifyAccount:  h.verifyAccount,
	}
	return h, nil
}

// Routes returns a mux with the handler mounted at Path.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(Path, h)
	return mux
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		h.write(w, http.StatusMethodNotAllowed, "", failure(CodeBadRequest, "Only POST is supported."))
		return
	}

	var req Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		h.write(w, http.StatusBadRequest, "", failure(CodeBadRequest, "Request body must be a JSON object."))
		return
	}
	req.Action = strings.TrimSpace(req.Action)

	ctx := r.Context()
	span := trace.SpanFromContext(ctx)
	span.SetName("api." + req.Action)
	span.SetAttributes(attribute.String("tradejournal.action", req.Action))

	env := h.Dispatch(ctx, &req)
	span.SetAttributes(attribute.String("tradejournal.status", env.Status))
	if env.Code == CodeInternalError {
		span.SetStatus(codes.Error, env.Code)
	}
	h.write(w, http.StatusOK, req.Action, env)
}

// Dispatch runs one request through the access gate and its action.
func (h *Handler) Dispatch(ctx context.Context, req *Request) Envelope {
	action, ok := h.actions[req.Action]
	if !ok {
		return failure(CodeUnknownAction, "Unknown action.")
	}

	session, err := h.gate.Authorize(ctx, req.Action, req.Token, req.AccountID)
	if err != nil {
		return h.render(ctx, req.Action, err)
	}
	env, err := action(ctx, req, session)
	if err != nil {
		return h.render(ctx, req.Action, err)
	}
	return env
}

func (h *Handler) render(ctx context.Context, action string, err error) Envelope {
	env, internal := Render(err)
	if internal {
		errutil.LogError(h.logger, "request failed", err, "action", action)
	} else {
		h.logger.DebugContext(ctx, "request rejected",
			"action", action,
			"code", errutil.Code(err))
	}
	return env
}

func (h *Handler) write(w http.ResponseWriter, status int, action string, env Envelope) {
	if h.recorder != nil {
		if action == "" {
			action = "invalid"
		} else if _, known := h.actions[action]; !known {
			action = "unknown"
		}
		h.recorder.RecordRequest(action, env.Status)
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(env); err != nil {
		h.logger.Warn("write response failed", "operation", "encode envelope", "error", err)
	}
}

func (h *Handler) login(ctx context.Context, req *Request, _ *auth.Session) (Envelope, error) {
	res, err := h.svc.Login(ctx, req.Identifier, req.Password)
	if err != nil {
		return Envelope{}, err
	}
	if res.Outcome == auth.LoginPasswordChangeRequired {
		return Envelope{
			Status:  StatusPasswordChangeRequired,
			Message: "Password change required before signing in.",
			User:    viewOf(res.User),
		}, nil
	}
	env := success("Login successful.")
	env.User = viewOf(res.User)
	env.Token = res.Token.Value
	return env, nil
}

func (h *Handler) logout(ctx context.Context, req *Request, _ *auth.Session) (Envelope, error) {
	if err := h.svc.Logout(ctx, req.Token); err != nil {
		return Envelope{}, err
	}
	return success("Logged out."), nil
}

func (h *Handler) changePassword(ctx context.Context, req *Request, _ *auth.Session) (Envelope, error) {
	err := h.svc.ChangePassword(ctx, auth.ChangePasswordRequest{
		EmployeeID:      req.EmployeeID,
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		return Envelope{}, err
	}
	return success("Password changed. Please sign in with your new password."), nil
}

func (h *Handler) resetPassword(ctx context.Context, req *Request, _ *auth.Session) (Envelope, error) {
	res, err := h.svc.ResetPassword(ctx, req.Email)
	if err != nil {
		return Envelope{}, err
	}
	if res.NotifyErr != nil {
		return Envelope{
			Status:  StatusWarning,
			Code:    CodeNotifyFailed,
			Message: "Password was reset but the notification could not be delivered. Contact an administrator.",
		}, nil
	}
	return success("If the email is registered, a temporary password has been sent."), nil
}

// errNoSession guards actions that read the session if the gate let the
// request through without one.
func errNoSession() error {
	return oops.Code(auth.CodeUnauthorized).Errorf("session token is required")
}

func (h *Handler) session(_ context.Context, _ *Request, session *auth.Session) (Envelope, error) {
	if session == nil {
		return Envelope{}, errNoSession()
	}
	env := success("Session is valid.")
	env.User = viewOf(session.User)
	return env, nil
}

func (h *Handler) verifyAccount(_ context.Context, req *Request, session *auth.Session) (Envelope, error) {
	if req.AccountID == "" {
		return Envelope{
			Status:  StatusValidationError,
			Code:    CodeValidationError,
			Field:   "accountId",
			Message: "accountId is required",
		}, nil
	}
	if session == nil {
		return Envelope{}, errNoSession()
	}
	env := success("Access granted.")
	env.User = viewOf(session.User)
	return env, nil
}
