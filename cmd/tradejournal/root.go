// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TradeJournal Contributors

package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/tradejournal/tradejournal/internal/config"
	"github.com/tradejournal/tradejournal/internal/xdg"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the TradeJournal CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tradejournal",
		Short: "TradeJournal - trading journal authentication service",
		Long: `TradeJournal authenticates employees against the credential table,
issues session tokens and gates access to trading accounts.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewUserCmd())
	cmd.AddCommand(NewConfigCmd())

	return cmd
}

// loadConfig reads the --config file, or the XDG config file when it exists,
// layered under the command's flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	return config.Load(resolveConfigFile(), cmd.Flags())
}

func resolveConfigFile() string {
	if configFile != "" {
		return configFile
	}
	path, err := xdg.ConfigFile()
	if err != nil {
		return ""
	}
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}
