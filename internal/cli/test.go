package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/uispec/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update bool   // regenerate golden files
	Golden string // golden directory
	Filter string // scenario filter (glob pattern)
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Path   string   `json:"path"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// TestResult holds the overall test result.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
	GoldenDir string           `json:"golden_dir,omitempty"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run YAML scenarios against the engine",
		Long: `Run every YAML scenario under a directory. Each scenario streams
patches into a fresh session, performs its steps, and checks its
assertions. The session is journaled and replayed to confirm the tree
is reproducible.

When a golden directory exists (by default <scenarios-dir>/golden), each
scenario's snapshot is compared against <name>.golden. --update writes
the snapshots instead.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  uispec test ./scenarios
  uispec test ./scenarios --filter "checkout_*"
  uispec test ./scenarios --update
  uispec test ./scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Golden, "golden", "", "golden directory (default <scenarios-dir>/golden)")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by name glob")

	return cmd
}

func runTests(opts *TestOptions, dir string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(opts.RootOptions, cmd)

	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("scenarios directory not found: %s", dir), nil)
	}

	goldenDir := resolveGoldenDir(dir, opts.Golden, opts.Update)
	if goldenDir != "" {
		formatter.VerboseLog("Golden directory: %s", goldenDir)
	}

	outcomes, err := harness.RunSuite(ctx, dir, harness.SuiteOptions{
		GoldenDir: goldenDir,
		Update:    opts.Update,
		Filter:    opts.Filter,
	})
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeScanError, "failed to run scenarios", err)
	}

	result := TestResult{
		Scenarios: make([]ScenarioResult, 0, len(outcomes)),
		Total:     len(outcomes),
		GoldenDir: goldenDir,
	}
	for _, o := range outcomes {
		sr := scenarioResult(o, dir, formatter.Verbose)
		result.Scenarios = append(result.Scenarios, sr)
		if sr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
		if !formatter.JSON() {
			printScenario(formatter, sr, opts.Update && goldenDir != "")
		}
	}

	if formatter.JSON() {
		return outputTestJSON(formatter, result)
	}
	return outputTestText(formatter, result)
}

// resolveGoldenDir picks the golden directory: the flag, else
// <dir>/golden when it exists or is about to be written.
func resolveGoldenDir(dir, flag string, update bool) string {
	if flag != "" {
		return flag
	}
	candidate := filepath.Join(dir, "golden")
	if update {
		return candidate
	}
	if info, err := os.Stat(candidate); err == nil && info.IsDir() {
		return candidate
	}
	return ""
}

// scenarioResult summarises an outcome. Golden diffs are shown only with
// verbose output.
func scenarioResult(o harness.Outcome, dir string, verbose bool) ScenarioResult {
	name := o.Name
	if name == "" {
		name = filepath.Base(o.Path)
	}
	rel, err := filepath.Rel(dir, o.Path)
	if err != nil {
		rel = o.Path
	}
	sr := ScenarioResult{Name: name, Path: rel, Pass: o.Passed()}
	switch {
	case errors.Is(o.Err, harness.ErrGoldenMismatch) && !verbose:
		sr.Errors = append(sr.Errors, "golden file mismatch (run with --update to regenerate)")
	case o.Err != nil:
		sr.Errors = append(sr.Errors, o.Err.Error())
	}
	if o.Result != nil {
		sr.Errors = append(sr.Errors, o.Result.Errors...)
	}
	return sr
}

func printScenario(formatter *OutputFormatter, sr ScenarioResult, updated bool) {
	w := formatter.Writer
	switch {
	case sr.Pass && updated:
		fmt.Fprintf(w, "OK %s (golden updated)\n", sr.Name)
	case sr.Pass:
		fmt.Fprintf(w, "OK %s\n", sr.Name)
	default:
		fmt.Fprintf(w, "FAIL %s\n", sr.Name)
		for _, e := range sr.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}
}

// outputTestJSON outputs the test result as JSON.
func outputTestJSON(formatter *OutputFormatter, result TestResult) error {
	var cliErr *CLIError
	if result.Failed > 0 {
		cliErr = &CLIError{
			Code:    ErrCodeTestsFailed,
			Message: fmt.Sprintf("%d scenario(s) failed", result.Failed),
		}
	}
	if err := formatter.Report(result, cliErr); err != nil {
		return err
	}
	if cliErr != nil {
		// Test failures = exit code 1
		return NewExitError(ExitFailure, fmt.Sprintf("%s: %s", cliErr.Code, cliErr.Message))
	}
	return nil
}

// outputTestText outputs the test summary as text.
func outputTestText(formatter *OutputFormatter, result TestResult) error {
	w := formatter.Writer

	if result.Total == 0 {
		fmt.Fprintln(w, "No scenarios found.")
		return nil
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Test Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)

	if result.Failed > 0 {
		// Test failures = exit code 1
		return NewExitError(ExitFailure, fmt.Sprintf("%s: %d scenario(s) failed", ErrCodeTestsFailed, result.Failed))
	}

	fmt.Fprintln(w, "OK All scenarios passed")
	return nil
}
