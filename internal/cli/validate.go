package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue/token"
	"github.com/spf13/cobra"

	"github.com/hollowdata/gridstate/internal/schema"
)

// ValidationIssue is one definition problem, JSON-shaped for --format json.
type ValidationIssue struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
}

// DefinitionSummary describes one validated grid.
type DefinitionSummary struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid       bool                `json:"valid"`
	Definitions []DefinitionSummary `json:"definitions,omitempty"`
	Errors      []ValidationIssue   `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <definitions>",
		Short: "Validate CUE column definitions",
		Long: `Validate grid column definitions without running anything.

Loads every .cue file in the directory (a file path validates its
directory), compiles each grid under the top-level "grid" struct, and
reports schema problems: missing keys, duplicate columns, bad filter
kinds, non-integer debounce.

Exit codes:
  0 - All definitions valid
  1 - One or more definitions invalid
  2 - Command error (directory missing, no CUE files)

Examples:
  gridstate validate ./grids
  gridstate validate ./grids/people.cue --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	dir := path
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		dir = filepath.Dir(path)
	}

	defs, loadErrors := schema.LoadDir(dir, schema.LoadModeCollectAll)
	formatter.VerboseLog("Loaded %d grid definition(s) from %s", len(defs), dir)

	summaries := make([]DefinitionSummary, 0, len(defs))
	for _, def := range defs {
		summaries = append(summaries, DefinitionSummary{
			Name:    def.Name,
			Columns: def.Columns.Keys(),
		})
	}

	if len(loadErrors) > 0 {
		return outputValidationFailure(formatter, summaries, loadErrors)
	}

	return outputValidateSuccess(formatter, summaries)
}

// environmentError reports whether a load error code means the input could
// not be read at all, as opposed to definitions that failed validation.
func environmentError(code string) bool {
	switch code {
	case schema.ErrCodeNotFound, schema.ErrCodeScanError, schema.ErrCodeNoFiles:
		return true
	}
	return false
}

func lineOf(pos token.Pos) int {
	if pos.IsValid() {
		return pos.Line()
	}
	return 0
}

func outputValidateSuccess(formatter *OutputFormatter, defs []DefinitionSummary) error {
	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true, Definitions: defs})
	}

	fmt.Fprintf(formatter.Writer, "✓ %d grid definition(s) valid\n", len(defs))
	for _, def := range defs {
		fmt.Fprintf(formatter.Writer, "  %s: %d column(s)\n", def.Name, len(def.Columns))
	}
	return nil
}

func outputValidationFailure(formatter *OutputFormatter, defs []DefinitionSummary, loadErrors []error) error {
	issues := make([]ValidationIssue, 0, len(loadErrors))
	commandLevel := false
	for _, err := range loadErrors {
		var loadErr *schema.LoadError
		if errors.As(err, &loadErr) {
			issues = append(issues, ValidationIssue{
				Code:    loadErr.Code,
				Message: loadErr.Message,
				Line:    lineOf(loadErr.Pos),
			})
			if environmentError(loadErr.Code) {
				commandLevel = true
			}
			continue
		}
		issues = append(issues, ValidationIssue{Code: schema.ErrCodeGeneric, Message: err.Error()})
	}

	exitCode := ExitFailure
	if commandLevel {
		exitCode = ExitCommandError
	}

	if formatter.Format == "json" {
		resp := CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Definitions: defs, Errors: issues},
			Error:  &CLIError{Code: issues[0].Code, Message: issues[0].Message},
		}
		if err := formatter.encode(resp); err != nil {
			return err
		}
		return NewExitError(exitCode, fmt.Sprintf("validation failed with %d error(s)", len(issues)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, issue := range issues {
		if issue.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", issue.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", issue.Code, issue.Message)
	}

	return NewExitError(exitCode, fmt.Sprintf("validation failed with %d error(s)", len(issues)))
}
