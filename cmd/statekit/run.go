package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/jpalmerr/statekit/config"
	"github.com/jpalmerr/statekit/internal/journal"
	"github.com/jpalmerr/statekit/internal/scenario"
	"github.com/spf13/cobra"
)

// newLogger creates a JSON logger for CLI use.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}

// runCmd runs a scenario and prints its journal.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a scenario",
	Long: `Run a statekit scenario.

The command will:
  - Load and validate the scenario from the specified YAML file
  - Build the store, subscribers and actions it describes
  - Execute every step, waiting for background calls at the end
  - Print every journal entry as one JSON object per line on stdout

With --follow, entries are printed as they are recorded instead of after the
run. With --kind, only entries of that kind (state, event, status, result,
step) are printed.

Logs are written to stderr. The run stops early on Ctrl+C or SIGTERM.

Example:
  statekit run -c scenario.yaml
  statekit run -c scenario.yaml --follow
  statekit run -c scenario.yaml --kind status --verbose`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("config", "c", "", "path to scenario file (required)")
	runCmd.Flags().BoolP("verbose", "v", false, "log dispatches and status transitions")
	runCmd.Flags().BoolP("follow", "f", false, "print entries as they are recorded")
	runCmd.Flags().StringP("kind", "k", "", "only print entries of this kind")
	_ = runCmd.MarkFlagRequired("config")
}

func runRun(cmd *cobra.Command, args []string) error {
	verbose, _ := cmd.Flags().GetBool("verbose")
	follow, _ := cmd.Flags().GetBool("follow")
	kindFlag, _ := cmd.Flags().GetString("kind")
	logger := newLogger(cmd.ErrOrStderr(), verbose)

	kind := journal.Kind(kindFlag)
	if kind != "" && !kind.Valid() {
		return fmt.Errorf("unknown entry kind %q", kindFlag)
	}

	configFile, _ := cmd.Flags().GetString("config")
	sc, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load scenario: %w", err)
	}

	j := journal.NewMemoryJournal()
	runner, err := scenario.NewRunner(sc, j, logger)
	if err != nil {
		return fmt.Errorf("failed to build scenario: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var runErr, writeErr error
	if follow {
		runErr, writeErr = followRun(ctx, cmd.OutOrStdout(), j, runner, kind)
	} else {
		runErr = runner.Run(ctx)
		// print whatever was recorded, even for an interrupted run
		entries := j.Entries()
		if kind != "" {
			entries = j.Filter(kind)
		}
		writeErr = writeEntries(cmd.OutOrStdout(), entries)
	}
	if writeErr != nil {
		return fmt.Errorf("failed to write journal: %w", writeErr)
	}
	if runErr != nil {
		return fmt.Errorf("scenario failed: %w", runErr)
	}
	return nil
}

// followRun runs the scenario while streaming entries from a journal
// subscription. Entries a full subscription buffer dropped are written after
// the run, so every recorded entry is printed exactly once.
func followRun(ctx context.Context, w io.Writer, j *journal.MemoryJournal, runner *scenario.Runner, kind journal.Kind) (runErr, writeErr error) {
	ch := j.Subscribe()
	printed := make(map[int64]bool)
	enc := json.NewEncoder(w)
	write := func(e journal.Entry) {
		if printed[e.Seq] {
			return
		}
		printed[e.Seq] = true
		if writeErr != nil || (kind != "" && e.Kind != kind) {
			return
		}
		writeErr = enc.Encode(e)
	}

	done := make(chan error, 1)
	go func() { done <- runner.Run(ctx) }()

	for {
		select {
		case e := <-ch:
			write(e)
		case runErr = <-done:
			j.Unsubscribe(ch)
			for e := range ch {
				write(e)
			}
			for _, e := range j.Entries() {
				write(e)
			}
			return runErr, writeErr
		}
	}
}

// writeEntries writes entries as JSON lines.
func writeEntries(w io.Writer, entries []journal.Entry) error {
	enc := json.NewEncoder(w)
	for _, e := range entries {
		if err := enc.Encode(e); err != nil {
			return err
		}
	}
	return nil
}
