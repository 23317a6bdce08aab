// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TradeJournal Contributors

// Package config loads the immutable process configuration. Values come from
// command-line flags layered over an optional YAML file layered over the flag
// defaults.
package config

import (
	"os"
	"slices"
	"strings"

	koanfyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/tradejournal/tradejournal/internal/auth"
	"github.com/tradejournal/tradejournal/internal/logging"
	"github.com/tradejournal/tradejournal/internal/xdg"
)

// Storage backends.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendPostgres = "postgres"
)

// Defaults.
const (
	DefaultBackend        = BackendMemory
	DefaultHTTPAddr       = "127.0.0.1:8080"
	DefaultMetricsAddr    = "127.0.0.1:9100"
	DefaultLogFormat      = "json"
	DefaultLogLevel       = "info"
	DefaultAdminRole      = string(auth.RoleAdmin)
	DefaultNotifyAttempts = 3
)

// Config is read once at startup and never mutated afterwards.
type Config struct {
	Backend           string   `koanf:"backend" json:"backend,omitempty" jsonschema:"enum=memory,enum=file,enum=postgres,description=credential and token storage backend"`
	DatabaseURL       string   `koanf:"database-url" json:"database-url,omitempty" jsonschema:"description=PostgreSQL URL; DATABASE_URL is used when unset"`
	DataFile          string   `koanf:"data-file" json:"data-file,omitempty" jsonschema:"description=YAML table file for the file backend; defaults under XDG_DATA_HOME"`
	HTTPAddr          string   `koanf:"http-addr" json:"http-addr,omitempty"`
	MetricsAddr       string   `koanf:"metrics-addr" json:"metrics-addr,omitempty" jsonschema:"description=metrics and health listen address; empty disables"`
	LogFormat         string   `koanf:"log-format" json:"log-format,omitempty" jsonschema:"enum=json,enum=text"`
	LogLevel          string   `koanf:"log-level" json:"log-level,omitempty" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
	BootstrapPassword string   `koanf:"bootstrap-password" json:"bootstrap-password,omitempty" jsonschema:"minLength=1"`
	MinPasswordLength int      `koanf:"min-password-length" json:"min-password-length,omitempty" jsonschema:"minimum=1"`
	AdminRole         string   `koanf:"admin-role" json:"admin-role,omitempty" jsonschema:"minLength=1"`
	PublicActions     []string `koanf:"public-actions" json:"public-actions,omitempty" jsonschema:"description=actions served without a session token; glob patterns allowed"`
	NotifyWebhookURL  string   `koanf:"notify-webhook-url" json:"notify-webhook-url,omitempty" jsonschema:"description=endpoint receiving password reset notices; empty logs them instead"`
	NotifyAttempts    int      `koanf:"notify-attempts" json:"notify-attempts,omitempty" jsonschema:"minimum=1"`
}

// RegisterFlags adds one flag per configuration key to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("backend", DefaultBackend, "storage backend (memory, file or postgres)")
	fs.String("database-url", "", "PostgreSQL URL (default: $DATABASE_URL)")
	fs.String("data-file", "", "table file for the file backend (default: XDG_DATA_HOME/tradejournal/tables.yaml)")
	fs.String("http-addr", DefaultHTTPAddr, "API listen address")
	fs.String("metrics-addr", DefaultMetricsAddr, "metrics/health listen address (empty = disabled)")
	fs.String("log-format", DefaultLogFormat, "log format (json or text)")
	fs.String("log-level", DefaultLogLevel, "log level (debug, info, warn or error)")
	fs.String("bootstrap-password", auth.DefaultBootstrapPassword, "temporary password assigned on reset")
	fs.Int("min-password-length", auth.DefaultMinPasswordLength, "minimum length of a new password")
	fs.String("admin-role", DefaultAdminRole, "role allowed to access every account")
	fs.StringSlice("public-actions", auth.DefaultPublicActions, "actions that need no session token")
	fs.String("notify-webhook-url", "", "webhook for password reset notices (empty = log only)")
	fs.Int("notify-attempts", DefaultNotifyAttempts, "delivery attempts per reset notice")
}

// Load builds the configuration from the YAML file at path (optional) and
// the flags in fs. A nil fs means defaults only. The result is validated.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	if fs == nil {
		fs = pflag.NewFlagSet("config", pflag.ContinueOnError)
		RegisterFlags(fs)
	}

	k := koanf.New(".")
	if path != "" {
		data, err := os.ReadFile(path) //nolint:gosec // operator-supplied config path
		if err != nil {
			return nil, oops.Code("CONFIG_READ_FAILED").With("path", path).Wrap(err)
		}
		if err := ValidateDocument(data); err != nil {
			return nil, oops.Code("CONFIG_INVALID").With("path", path).Wrap(err)
		}
		if err := k.Load(file.Provider(path), koanfyaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_READ_FAILED").With("path", path).Wrap(err)
		}
	}
	// Changed flags override the file; unchanged flags only fill gaps.
	if err := k.Load(posflag.Provider(fs, ".", k), nil); err != nil {
		return nil, oops.Code("CONFIG_READ_FAILED").With("operation", "load flags").Wrap(err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_INVALID").With("operation", "decode config").Wrap(err)
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if cfg.Backend == BackendFile && cfg.DataFile == "" {
		if path, err := xdg.DataFile(); err == nil {
			cfg.DataFile = path
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field rules that the schema cannot express.
func (c *Config) Validate() error {
	invalid := func(key, format string, args ...any) error {
		return oops.Code("CONFIG_INVALID").With("key", key).Errorf(format, args...)
	}

	switch c.Backend {
	case BackendMemory:
	case BackendFile:
		if c.DataFile == "" {
			return invalid("data-file", "data-file is required for the file backend")
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return invalid("database-url", "database-url or DATABASE_URL is required for the postgres backend")
		}
	default:
		return invalid("backend", "backend must be memory, file or postgres, got %q", c.Backend)
	}

	if c.HTTPAddr == "" {
		return invalid("http-addr", "http-addr is required")
	}
	if !logging.ValidFormat(c.LogFormat) {
		return invalid("log-format", "log-format must be 'json' or 'text', got %q", c.LogFormat)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return invalid("log-level", "log-level must be debug, info, warn or error, got %q", c.LogLevel)
	}
	if c.BootstrapPassword == "" {
		return invalid("bootstrap-password", "bootstrap-password cannot be empty")
	}
	if c.MinPasswordLength < 1 {
		return invalid("min-password-length", "min-password-length must be at least 1")
	}
	if strings.TrimSpace(c.AdminRole) == "" {
		return invalid("admin-role", "admin-role cannot be empty")
	}
	if slices.Contains(c.PublicActions, "") {
		return invalid("public-actions", "public-actions cannot contain an empty action")
	}
	if err := auth.ValidatePublicActions(c.PublicActions); err != nil {
		return invalid("public-actions", "public-actions: %v", err)
	}
	if c.NotifyAttempts < 1 {
		return invalid("notify-attempts", "notify-attempts must be at least 1")
	}
	return nil
}
