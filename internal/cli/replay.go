package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hollowdata/gridstate/internal/harness"
	"github.com/hollowdata/gridstate/internal/query"
)

// ReplayResult is the JSON payload for a single scenario replay.
type ReplayResult struct {
	Scenario string               `json:"scenario"`
	Pass     bool                 `json:"pass"`
	Trace    []harness.TraceEvent `json:"trace"`
	Errors   []string             `json:"errors,omitempty"`
	Final    query.State          `json:"final_state"`
	Pending  int                  `json:"pending,omitempty"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay <scenario.yaml | scenarios-dir>",
		Short: "Replay YAML scenarios against the engine",
		Long: `Replay a scenario file and print the delivery trace, or run every
scenario in a directory as a suite.

Scenarios dispatch command batches and advance virtual time; the trace
records each change and select delivery in order. Assertions in the
scenario are evaluated after the last step.

Exit codes:
  0 - Scenario(s) passed
  1 - One or more scenarios failed their assertions
  2 - Command error (path missing, malformed scenario)

Examples:
  gridstate replay ./scenarios/page_reset.yaml
  gridstate replay ./scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runReplay(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	info, err := os.Stat(path)
	if err != nil {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenario path not found: %s", path))
	}

	if info.IsDir() {
		return replayDir(formatter, path)
	}
	return replayFile(formatter, path)
}

func replayFile(formatter *OutputFormatter, path string) error {
	scenario, err := harness.LoadScenarioWithBasePath(path, filepath.Dir(path))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}

	formatter.VerboseLog("Running scenario %q (%d step(s))", scenario.Name, len(scenario.Steps))

	result, err := harness.Run(scenario)
	if err != nil {
		return WrapExitError(ExitCommandError, "scenario execution failed", err)
	}

	if formatter.Format == "json" {
		resp := CLIResponse{Status: "ok", Data: ReplayResult{
			Scenario: scenario.Name,
			Pass:     result.Pass,
			Trace:    result.Trace,
			Errors:   result.Errors,
			Final:    result.Final,
			Pending:  result.Pending,
		}}
		if !result.Pass {
			resp.Status = "error"
			resp.Error = &CLIError{
				Code:    "E_SCENARIO_FAILED",
				Message: fmt.Sprintf("%d assertion(s) failed", len(result.Errors)),
			}
		}
		if err := formatter.encode(resp); err != nil {
			return err
		}
		if !result.Pass {
			return NewExitError(ExitFailure, fmt.Sprintf("scenario %q failed", scenario.Name))
		}
		return nil
	}

	w := formatter.Writer
	fmt.Fprintf(w, "Scenario: %s\n", scenario.Name)
	for _, event := range result.Trace {
		fmt.Fprintf(w, "  [%d] %s\n", event.Seq, event)
	}
	if len(result.Trace) == 0 {
		fmt.Fprintln(w, "  (no deliveries)")
	}
	if result.Pending > 0 {
		fmt.Fprintf(w, "  %d debounce timer(s) still pending\n", result.Pending)
	}

	if !result.Pass {
		fmt.Fprintf(w, "✗ %s\n", scenario.Name)
		for _, e := range result.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %q failed", scenario.Name))
	}

	fmt.Fprintf(w, "✓ %s (%d deliveries)\n", scenario.Name, len(result.Trace))
	return nil
}

func replayDir(formatter *OutputFormatter, dir string) error {
	suite, err := harness.RunDir(dir)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to run scenario suite", err)
	}

	if formatter.Format == "json" {
		resp := CLIResponse{Status: "ok", Data: suite}
		if !suite.Pass() {
			resp.Status = "error"
			resp.Error = &CLIError{
				Code:    "E_SUITE_FAILED",
				Message: fmt.Sprintf("%d scenario(s) failed", suite.Failed),
			}
		}
		if err := formatter.encode(resp); err != nil {
			return err
		}
		if !suite.Pass() {
			return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", suite.Failed))
		}
		return nil
	}

	w := formatter.Writer
	for _, failure := range suite.Failures {
		fmt.Fprintf(w, "✗ %s (%s)\n", failure.Scenario, failure.Path)
		fmt.Fprintf(w, "  %s\n", failure.Error)
	}

	fmt.Fprintf(w, "\nSuite: %d passed, %d failed, %d total\n", suite.Passed, suite.Failed, suite.TotalScenarios)

	if !suite.Pass() {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", suite.Failed))
	}

	fmt.Fprintln(w, "✓ All scenarios passed")
	return nil
}
