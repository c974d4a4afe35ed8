package main

import (
	"fmt"

	"github.com/jpalmerr/statekit/config"
	"github.com/spf13/cobra"
)

// validateCmd validates a scenario file without running it.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a scenario file",
	Long: `Validate a statekit scenario file without running it.

This command parses the YAML, expands environment variables, and validates
all steps and references. It's useful for CI pipelines.

Exit codes:
  0 - Scenario is valid
  1 - Scenario is invalid (error details printed to stderr)

Example:
  statekit validate -c scenario.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringP("config", "c", "", "path to scenario file (required)")
	_ = validateCmd.MarkFlagRequired("config")
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	sc, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid scenario: %w", err)
	}

	// count steps per operation, in first-seen order
	var order []string
	counts := make(map[string]int)
	for _, st := range sc.Steps {
		op := st.Op()
		if counts[op] == 0 {
			order = append(order, op)
		}
		counts[op]++
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Scenario is valid!\n")
	if sc.Name != "" {
		fmt.Fprintf(out, "  Name:          %s\n", sc.Name)
	}
	fmt.Fprintf(out, "  State keys:    %d\n", len(sc.InitialState))
	fmt.Fprintf(out, "  Subscribers:   %d\n", len(sc.Subscribers))
	fmt.Fprintf(out, "  Actions:       %d\n", len(sc.Actions))
	fmt.Fprintf(out, "  Steps:         %d\n", len(sc.Steps))
	for _, op := range order {
		fmt.Fprintf(out, "    %-12s %d\n", op, counts[op])
	}

	return nil
}
