// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Taskdeck Contributors

package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/taskdeck/taskdeck/internal/config"
)

// NewConfigCmd creates the config subcommand, which prints the
// effective configuration after all sources are merged.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `Resolve defaults, the --config file, and flags, then print the
resulting configuration as YAML.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configFile, cmd.Flags())
			if err != nil {
				return err
			}

			out, err := yaml.Marshal(cfg)
			if err != nil {
				return oops.Code("CONFIG_MARSHAL_FAILED").Wrap(err)
			}

			cmd.Print(string(out))
			return nil
		},
	}

	config.RegisterFlags(cmd.Flags())

	return cmd
}
