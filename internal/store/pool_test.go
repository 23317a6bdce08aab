// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TradeJournal Contributors

package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradejournal/tradejournal/pkg/errutil"
)

type flakyPinger struct {
	failures int
	calls    int
}

func (p *flakyPinger) Ping(context.Context) error {
	p.calls++
	if p.calls <= p.failures {
		return errors.New("connection refused")
	}
	return nil
}

func TestWaitReady(t *testing.T) {
	opts := PoolOptions{PingAttempts: 3, PingBackoff: time.Millisecond}

	t.Run("succeeds after transient failures", func(t *testing.T) {
		p := &flakyPinger{failures: 2}
		require.NoError(t, waitReady(context.Background(), p, opts))
		assert.Equal(t, 3, p.calls)
	})

	t.Run("gives up after the configured attempts", func(t *testing.T) {
		p := &flakyPinger{failures: 10}
		err := waitReady(context.Background(), p, opts)
		errutil.AssertErrorCode(t, err, "DB_CONNECT_FAILED")
		errutil.AssertErrorContext(t, err, "attempts", 3)
		assert.Equal(t, 3, p.calls)
	})

	t.Run("stops when the context is done", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		p := &flakyPinger{failures: 10}
		err := waitReady(ctx, p, PoolOptions{PingAttempts: 5, PingBackoff: time.Hour})
		require.Error(t, err)
		assert.LessOrEqual(t, p.calls, 1)
	})
}

func TestOpenPool_InvalidURL(t *testing.T) {
	_, err := OpenPool(context.Background(), "postgres://%zz", PoolOptions{})
	errutil.AssertErrorCode(t, err, "DB_CONFIG_INVALID")
}
