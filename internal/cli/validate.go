package cli

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/spf13/cobra"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid   bool           `json:"valid"`
	Options map[string]any `json:"options,omitempty"`
	Error   *CLIError      `json:"error,omitempty"`
	Line    int            `json:"line,omitempty"`
	Column  int            `json:"column,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <options.cue>",
		Short: "Validate an options file against the schema",
		Long: `Validate a CUE options file against the built-in schema and print
the resolved options, defaults included.

Errors report the offending field with its file position.

Examples:
  blockjit validate ./fast.cue
  blockjit validate ./fast.cue --format json`,
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
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	options, err := LoadOptions(path)
	if err != nil {
		var le *LoadError
		if !errors.As(err, &le) || le.Code != ErrCodeConfig {
			return loadFailure(formatter, err)
		}
		return outputValidationError(formatter, le)
	}

	resolved := options.Map()
	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true, Options: resolved})
	}

	fmt.Fprintf(formatter.Writer, "✓ %s is valid\n\n", path)
	for _, k := range slices.Sorted(maps.Keys(resolved)) {
		fmt.Fprintf(formatter.Writer, "  %s: %v\n", k, resolved[k])
	}
	return nil
}

func outputValidationError(f *OutputFormatter, le *LoadError) error {
	if f.Format == "json" {
		result := ValidationResult{
			Error: &CLIError{Code: le.Code, Message: le.Message},
		}
		if le.Pos.IsValid() {
			result.Line = le.Pos.Line()
			result.Column = le.Pos.Column()
		}
		if err := f.encode(CLIResponse{Status: "error", Data: result, Error: result.Error}); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(f.Writer, "✗ Validation failed")
		fmt.Fprintln(f.Writer)
		fmt.Fprintf(f.Writer, "  %s\n", le.Error())
	}
	return WrapExitError(ExitFailure, "validation failed", le)
}
