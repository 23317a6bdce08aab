// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TradeJournal Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tradejournal/tradejournal/internal/api"
	"github.com/tradejournal/tradejournal/internal/auth"
	"github.com/tradejournal/tradejournal/internal/config"
	"github.com/tradejournal/tradejournal/internal/logging"
	"github.com/tradejournal/tradejournal/internal/notify"
	"github.com/tradejournal/tradejournal/internal/observability"
)

const (
	serviceName     = "tradejournal"
	shutdownTimeout = 5 * time.Second
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API and observability servers",
		Long: `Start the JSON action API and, unless metrics-addr is empty, the
metrics and health server. SIGINT or SIGTERM shuts both down gracefully.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServeWithDeps(ctx, cfg, cmd, nil)
		},
	}
}

// runServeWithDeps serves until ctx is cancelled or a server fails.
// If deps is nil, default implementations are used.
func runServeWithDeps(ctx context.Context, cfg *config.Config, cmd *cobra.Command, deps *ServeDeps) error {
	if deps == nil {
		deps = &ServeDeps{}
	}
	if deps.BackendOpener == nil {
		deps.BackendOpener = openBackend
	}
	if deps.ObservabilityServerFactory == nil {
		deps.ObservabilityServerFactory = func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer {
			return observability.NewServer(addr, readinessChecker)
		}
	}
	if deps.ListenerFactory == nil {
		deps.ListenerFactory = net.Listen
	}

	logger, err := setupLogging(cfg)
	if err != nil {
		return err
	}
	logger.Info("starting api",
		"backend", cfg.Backend,
		"http_addr", cfg.HTTPAddr,
		"log_format", cfg.LogFormat,
	)

	backend, err := deps.BackendOpener(ctx, cfg)
	if err != nil {
		return oops.With("operation", "open backend").Wrap(err)
	}
	defer backend.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var listening atomic.Bool
	var obsServer ObservabilityServer
	var metrics *observability.Metrics
	if cfg.MetricsAddr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.MetricsAddr, func() bool {
			return listening.Load() && backend.Ready()
		})
		obsErrChan, err := obsServer.Start()
		if err != nil {
			return oops.With("operation", "start observability server").Wrap(err)
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
		metrics = obsServer.Metrics()
		logger.Info("observability server started", "addr", obsServer.Addr())
	}

	handler, err := buildHandler(cfg, backend, metrics, logger)
	if err != nil {
		stopObservability(obsServer)
		return err
	}

	listener, err := deps.ListenerFactory("tcp", cfg.HTTPAddr)
	if err != nil {
		stopObservability(obsServer)
		return oops.Code("API_LISTEN_FAILED").With("addr", cfg.HTTPAddr).Wrap(err)
	}
	httpServer := &http.Server{
		Handler:           otelhttp.NewHandler(handler.Routes(), serviceName),
		ReadHeaderTimeout: 5 * time.Second,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}
	apiErrChan := make(chan error, 1)
	go func() {
		if serveErr := httpServer.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			apiErrChan <- serveErr
		}
		close(apiErrChan)
	}()
	listening.Store(true)

	cmd.Println("TradeJournal API started")
	logger.Info("api ready", "addr", listener.Addr().String())

	var serveErr error
	select {
	case err, ok := <-apiErrChan:
		if ok {
			serveErr = oops.Code("API_SERVE_FAILED").Wrap(err)
		}
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}

	listening.Store(false)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("error stopping api server", "error", err)
	}
	if obsServer != nil {
		if err := obsServer.Stop(shutdownCtx); err != nil {
			logger.Warn("error stopping observability server", "error", err)
		}
	}

	logger.Info("shutdown complete")
	return serveErr
}

// buildHandler wires the auth core for one backend.
func buildHandler(cfg *config.Config, backend *Backend, metrics *observability.Metrics, logger *slog.Logger) (*api.Handler, error) {
	hasher := auth.NewHasher(cfg.BootstrapPassword)
	svc, err := auth.NewAuthService(backend.Creds, backend.Tokens, hasher,
		auth.WithNotifier(buildNotifier(cfg, logger)),
		auth.WithRecorder(metrics),
		auth.WithLogger(logger),
		auth.WithMinPasswordLength(cfg.MinPasswordLength),
	)
	if err != nil {
		return nil, oops.With("operation", "create auth service").Wrap(err)
	}
	gate, err := auth.NewAccessGate(backend.Tokens, backend.Creds, cfg.PublicActions,
		auth.WithAdminRole(auth.Role(cfg.AdminRole)),
		auth.WithGateRecorder(metrics),
	)
	if err != nil {
		return nil, oops.With("operation", "create access gate").Wrap(err)
	}
	return api.NewHandler(svc, gate,
		api.WithLogger(logger),
		api.WithRequestRecorder(metrics),
	)
}

// buildNotifier logs reset notices unless a webhook is configured, in which
// case delivery is retried.
func buildNotifier(cfg *config.Config, logger *slog.Logger) auth.Notifier {
	if cfg.NotifyWebhookURL == "" {
		return notify.NewLog(logger)
	}
	return notify.NewRetrying(notify.NewWebhook(cfg.NotifyWebhookURL), cfg.NotifyAttempts, notify.DefaultBackoff, logger)
}

// setupLogging installs the default logger described by cfg.
func setupLogging(cfg *config.Config) (*slog.Logger, error) {
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, oops.Code("CONFIG_INVALID").With("key", "log-level").Wrap(err)
	}
	return logging.SetDefault(logging.Options{
		Service: serviceName,
		Version: version,
		Format:  cfg.LogFormat,
		Level:   level,
	}), nil
}

func stopObservability(s ObservabilityServer) {
	if s == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		slog.Warn("failed to stop observability server during cleanup", "error", err)
	}
}

// monitorServerErrors cancels ctx when a server reports an error. It exits
// when the channel closes or ctx is done.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
