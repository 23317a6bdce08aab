// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TradeJournal Contributors

package errutil_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradejournal/tradejournal/pkg/errutil"
)

func TestCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "oops error with code", err: oops.Code("AUTH_FORBIDDEN").Errorf("nope"), want: "AUTH_FORBIDDEN"},
		{name: "wrapped oops error", err: oops.With("operation", "x").Wrap(oops.Code("AUTH_STORAGE").Errorf("down")), want: "AUTH_STORAGE"},
		{name: "oops error without code", err: oops.Errorf("plain"), want: ""},
		{name: "standard error", err: errors.New("standard"), want: ""},
		{name: "nil", err: nil, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errutil.Code(tt.err))
		})
	}
}

func TestHasCode(t *testing.T) {
	err := oops.Code("AUTH_VALIDATION").Errorf("bad input")
	assert.True(t, errutil.HasCode(err, "AUTH_VALIDATION"))
	assert.False(t, errutil.HasCode(err, "AUTH_FORBIDDEN"))
	assert.False(t, errutil.HasCode(nil, ""))
}

func TestLogError_WithOopsError(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	err := oops.Code("AUTH_STORAGE").
		With("operation", "scan users").
		Errorf("connection refused")

	errutil.LogError(logger, "login failed", err, "action", "login")

	var logEntry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &logEntry))
	assert.Equal(t, "ERROR", logEntry["level"])
	assert.Equal(t, "login failed", logEntry["msg"])
	assert.Equal(t, "AUTH_STORAGE", logEntry["code"])
	assert.Equal(t, "login", logEntry["action"])
	assert.Contains(t, logEntry["context"], "operation")
}

func TestLogError_WithStandardError(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	errutil.LogError(logger, "operation failed", errors.New("standard error"))

	var logEntry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &logEntry))
	assert.Equal(t, "ERROR", logEntry["level"])
	assert.Contains(t, logEntry["error"], "standard error")
	assert.NotContains(t, logEntry, "code")
}
