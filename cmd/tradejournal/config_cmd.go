// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TradeJournal Contributors

package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/tradejournal/tradejournal/internal/config"
)

// NewConfigCmd creates the config command group.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and check configuration files",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema of the config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			schema, err := config.Schema()
			if err != nil {
				return err
			}
			cmd.Println(string(schema))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate [FILE]",
		Short: "Validate a config file against the schema and cross-field rules",
		Long: `Validate FILE, or the --config file when FILE is omitted. The document
is checked against the schema, then merged with the flags and checked as a
whole.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configFile
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				return oops.Code("CONFIG_INVALID").Errorf("no config file given; pass FILE or --config")
			}
			cfg, err := config.Load(path, cmd.Flags())
			if err != nil {
				return err
			}
			cmd.Printf("%s is valid (backend: %s)\n", path, cfg.Backend)
			return nil
		},
	})

	return cmd
}
