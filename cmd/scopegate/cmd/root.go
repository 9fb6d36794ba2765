// Package cmd provides the CLI commands for Scopegate.
package cmd

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/scopegate/scopegate/internal/config"
	"github.com/scopegate/scopegate/internal/ctxkey"
)

var cfgFile string
var snapshotFile string

var rootCmd = &cobra.Command{
	Use:   "scopegate",
	Short: "Scopegate - Hierarchical Access & Policy Resolution Engine",
	Long: `Scopegate resolves access decisions and usage policies over a workspace
hierarchy: organizations, groups, spaces, areas, and resources.

It answers four questions for a principal:
  - What role, if any, do they hold on a space, area, or resource?
  - Which resources can they see at all?
  - Which models and tiers are available to them?
  - Does a proposed request pass the aggregated guardrails?

Quick start:
  1. Create a snapshot fixture: snapshot.yaml
  2. Run: scopegate resolve space user-1 space-1 --snapshot snapshot.yaml

Configuration:
  Config is loaded from scopegate.yaml in the current directory,
  $HOME/.scopegate/, or /etc/scopegate/.

  Environment variables can override config values with the SCOPEGATE_ prefix.
  Example: SCOPEGATE_SNAPSHOT_FILE=/etc/scopegate/snapshot.yaml

Commands:
  resolve     Resolve space, area, or resource access for a principal
  policy      Print the aggregated guardrail policy for a principal
  model       Check model availability and allowed tiers
  validate    Validate a proposed request end to end
  version     Print version information`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// One correlation ID per invocation; every audit record emitted
		// below shares it.
		cmd.SetContext(ctxkey.WithRequestID(cmd.Context(), uuid.New().String()))
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./scopegate.yaml)")
	rootCmd.PersistentFlags().StringVar(&snapshotFile, "snapshot", "", "snapshot fixture file (overrides snapshot.file from config)")
}

func initConfig() {
	config.InitViper(cfgFile)
}
