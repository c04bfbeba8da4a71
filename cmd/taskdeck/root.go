// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Taskdeck Contributors

package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the Taskdeck CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "taskdeck",
		Short: "Taskdeck - a multi-user task tracking API",
		Long: `Taskdeck is a session-authenticated task tracking service.
It serves an HTTP/JSON API backed by PostgreSQL where each user
manages their own set of tasks.`,
	}

	// Global flag for config file path
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	// Add subcommands
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewConfigCmd())

	return cmd
}
