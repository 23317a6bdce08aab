// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TradeJournal Contributors

package main

import (
	"context"
	"net"
	"path/filepath"
	"time"

	"github.com/samber/oops"

	"github.com/tradejournal/tradejournal/internal/auth"
	"github.com/tradejournal/tradejournal/internal/auth/postgres"
	"github.com/tradejournal/tradejournal/internal/auth/tabular"
	"github.com/tradejournal/tradejournal/internal/config"
	"github.com/tradejournal/tradejournal/internal/observability"
	"github.com/tradejournal/tradejournal/internal/rowstore"
	"github.com/tradejournal/tradejournal/internal/store"
	"github.com/tradejournal/tradejournal/internal/xdg"
)

// Backend bundles the stores of one storage backend.
type Backend struct {
	Creds  auth.CredentialStore
	Tokens auth.TokenStore
	// Ready reports whether storage is reachable.
	Ready func() bool
	// Close releases connections. Never nil.
	Close func()
}

// BackendOpener opens the backend selected by cfg.
type BackendOpener func(ctx context.Context, cfg *config.Config) (*Backend, error)

// ServeDeps contains injectable dependencies for the serve command.
// All fields with nil values will use their default implementations.
type ServeDeps struct {
	// BackendOpener opens credential and token storage.
	// Default: openBackend
	BackendOpener BackendOpener

	// ObservabilityServerFactory creates an observability server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer

	// ListenerFactory creates the API listener.
	// Default: net.Listen
	ListenerFactory func(network, address string) (net.Listener, error)
}

// ObservabilityServer interface wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *observability.Metrics
}

const readyProbeTimeout = 2 * time.Second

// openBackend is the default BackendOpener.
func openBackend(ctx context.Context, cfg *config.Config) (*Backend, error) {
	always := func() bool { return true }

	switch cfg.Backend {
	case config.BackendMemory:
		creds, tokens := tabular.NewMemory()
		return &Backend{Creds: creds, Tokens: tokens, Ready: always, Close: func() {}}, nil

	case config.BackendFile:
		if err := xdg.EnsureDir(filepath.Dir(cfg.DataFile)); err != nil {
			return nil, oops.Code("BACKEND_OPEN_FAILED").With("backend", cfg.Backend).Wrap(err)
		}
		f, err := rowstore.OpenFile(cfg.DataFile)
		if err != nil {
			return nil, oops.Code("BACKEND_OPEN_FAILED").With("backend", cfg.Backend).Wrap(err)
		}
		creds, tokens := tabular.NewFile(f)
		return &Backend{Creds: creds, Tokens: tokens, Ready: always, Close: func() {}}, nil

	case config.BackendPostgres:
		pool, err := store.OpenPool(ctx, cfg.DatabaseURL, store.PoolOptions{})
		if err != nil {
			return nil, oops.Code("BACKEND_OPEN_FAILED").With("backend", cfg.Backend).Wrap(err)
		}
		return &Backend{
			Creds:  postgres.NewCredentialRepository(pool),
			Tokens: postgres.NewTokenRepository(pool),
			Ready: func() bool {
				pingCtx, cancel := context.WithTimeout(context.Background(), readyProbeTimeout)
				defer cancel()
				return pool.Ping(pingCtx) == nil
			},
			Close: pool.Close,
		}, nil
	}
	return nil, oops.Code("CONFIG_INVALID").With("key", "backend").Errorf("unknown backend %q", cfg.Backend)
}
