package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/uispec/internal/catalog"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid      bool              `json:"valid"`
	Catalog    string            `json:"catalog,omitempty"`
	Strict     bool              `json:"strict"`
	Components []string          `json:"components,omitempty"`
	Actions    []string          `json:"actions,omitempty"`
	Errors     []ValidationIssue `json:"errors,omitempty"`
}

// ValidationIssue is one catalog error with its source position.
type ValidationIssue struct {
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <catalog-dir>",
		Short: "Compile a component catalog and report errors",
		Long: `Compile the CUE catalog package in a directory.

Checks that the package loads and builds, that it declares a top-level
catalog field, and that every component props schema and action params
schema is a struct. Nothing is rendered.

Exit codes:
  0 - Catalog is valid
  1 - Catalog is invalid
  2 - Command error (directory not found, no CUE files)

Examples:
  uispec validate ./catalog
  uispec validate ./catalog --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, dir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	if files, err := catalog.FindCUEFiles(dir); err == nil {
		formatter.VerboseLog("Found %d CUE file(s) in %s", len(files), dir)
	}

	cat, err := catalog.Load(dir)
	if err != nil {
		return outputValidationError(formatter, err)
	}
	return outputValidateSuccess(formatter, cat)
}

// issueFor converts a Load error into a ValidationIssue.
func issueFor(err error) (ValidationIssue, int) {
	code, ce := catalogErrorCode(err)
	if ce == nil {
		return ValidationIssue{Code: code, Message: err.Error()}, ExitFailure
	}
	issue := ValidationIssue{Code: code, Field: ce.Field, Message: ce.Message}
	if ce.Pos.IsValid() {
		issue.File = ce.Pos.Filename()
		issue.Line = ce.Pos.Line()
		issue.Column = ce.Pos.Column()
	}
	return issue, exitCodeForField(ce.Field)
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, cat *catalog.Catalog) error {
	result := ValidationResult{
		Valid:      true,
		Catalog:    cat.Name,
		Strict:     cat.Strict,
		Components: cat.ComponentNames(),
		Actions:    cat.ActionNames(),
	}
	if formatter.JSON() {
		return formatter.Success(result)
	}

	w := formatter.Writer
	name := cat.Name
	if name == "" {
		name = "catalog"
	}
	fmt.Fprintf(w, "OK %s: %d component(s), %d action(s)\n", name, len(result.Components), len(result.Actions))
	if formatter.Verbose {
		for _, c := range result.Components {
			fmt.Fprintf(w, "  component %s\n", c)
		}
		for _, a := range result.Actions {
			fmt.Fprintf(w, "  action %s\n", a)
		}
	}
	return nil
}

// outputValidationError outputs a catalog error. Missing directories and
// empty packages are command errors; everything else is a failed catalog.
func outputValidationError(formatter *OutputFormatter, err error) error {
	issue, exitCode := issueFor(err)

	if exitCode == ExitCommandError {
		_ = formatter.Error(issue.Code, issue.Message, nil)
		return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", issue.Code, issue.Message))
	}

	if formatter.JSON() {
		result := ValidationResult{Valid: false, Errors: []ValidationIssue{issue}}
		if err := formatter.Report(result, &CLIError{Code: issue.Code, Message: issue.Message}); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("%s: validation failed", issue.Code))
	}

	w := formatter.Writer
	fmt.Fprintln(w, "FAIL catalog invalid")
	fmt.Fprintln(w)
	if issue.Line > 0 {
		fmt.Fprintf(w, "%s:%d:%d\n", issue.File, issue.Line, issue.Column)
	}
	if issue.Field != "" {
		fmt.Fprintf(w, "  %s: %s: %s\n", issue.Code, issue.Field, issue.Message)
	} else {
		fmt.Fprintf(w, "  %s: %s\n", issue.Code, issue.Message)
	}

	return NewExitError(ExitFailure, fmt.Sprintf("%s: validation failed", issue.Code))
}
