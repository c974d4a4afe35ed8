// Package main is the entry point for the statekit CLI.
//
// statekit is primarily a library. The CLI runs YAML scenarios against a
// store so behaviour can be explored and checked without writing Go.
//
// Usage:
//
//	statekit run -c scenario.yaml      # Run a scenario and print its journal
//	statekit validate -c scenario.yaml # Validate a scenario
//	statekit version                   # Show version info
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information - set at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd is the base command when called without subcommands.
var rootCmd = &cobra.Command{
	Use:   "statekit",
	Short: "Run observable state container scenarios",
	Long: `statekit drives an observable state container and its async actions
from a YAML scenario and prints everything that was observed.

Quick start:
  1. Create a scenario file (scenario.yaml)
  2. Run: statekit run -c scenario.yaml

Example scenario:
  initial_state:
    count: 0
  subscribers:
    - name: view
  actions:
    - name: save
      delay: 50ms
      result: saved
  steps:
    - set: {count: 1}
    - call: save`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// Cobra already prints the error, just exit with code 1
		os.Exit(1)
	}
}

func main() {
	Execute()
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this statekit binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "statekit %s\n", version)
		fmt.Fprintf(cmd.OutOrStdout(), "  commit: %s\n", commit)
		fmt.Fprintf(cmd.OutOrStdout(), "  built:  %s\n", date)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
