package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/blockjit/internal/compiler"
	"github.com/roach88/blockjit/internal/config"
	"github.com/roach88/blockjit/internal/harness"
	"github.com/roach88/blockjit/internal/ir"
	"github.com/roach88/blockjit/internal/library"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Config string // options file path
}

// CompiledScript is one hat script in JSON output.
type CompiledScript struct {
	Target    string                    `json:"target"`
	TopBlock  string                    `json:"top_block"`
	Error     *CLIError                 `json:"error,omitempty"`
	Hash      string                    `json:"hash,omitempty"`
	IR        map[string]any            `json:"ir,omitempty"`
	Units     []CompiledUnit            `json:"units,omitempty"`
	Recursion []compiler.RecursionGroup `json:"recursion,omitempty"`
}

// CompiledUnit is one lowered entry script or procedure variant.
type CompiledUnit struct {
	Name    string `json:"name"`
	Variant string `json:"variant,omitempty"`
	Yields  bool   `json:"yields"`
	Source  string `json:"source"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <project.yaml>",
		Short: "Compile every hat script of a project",
		Long: `Compile every hat script of a project without running it.

Text output prints each script's lowered units and any recursive
procedure groups. JSON output adds the intermediate representation.

Scripts that opt out with a "tw nocompile" comment are reported but do
not fail the command.

Exit codes:
  0 - Every script compiled
  1 - One or more scripts failed to compile
  2 - Command error (project or options could not be loaded)

Examples:
  blockjit compile ./game.yaml
  blockjit compile ./game.yaml --config ./fast.cue --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Config, "config", "", "path to CUE options file")

	return cmd
}

func runCompile(opts *CompileOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	project, err := LoadProject(path)
	if err != nil {
		return loadFailure(formatter, err)
	}
	options, err := LoadOptions(opts.Config)
	if err != nil {
		return loadFailure(formatter, err)
	}

	listings := harness.ListProject(newCompiler(options), project)
	formatter.VerboseLog("Compiled %d script(s) from %s", len(listings), path)

	failed := 0
	for _, l := range listings {
		if l.Err != nil && !compiler.IsDisabled(l.Err) {
			failed++
		}
	}

	if formatter.Format == "json" {
		scripts := make([]CompiledScript, len(listings))
		for i, l := range listings {
			scripts[i] = compiledScript(l)
		}
		if failed > 0 {
			if err := formatter.encode(CLIResponse{
				Status: "error",
				Data:   scripts,
				Error:  &CLIError{Code: ErrCodeCompile, Message: fmt.Sprintf("%d script(s) failed to compile", failed)},
			}); err != nil {
				return err
			}
		} else if err := formatter.Success(scripts); err != nil {
			return err
		}
	} else {
		fmt.Fprint(formatter.Writer, harness.FormatListings(listings))
		if failed == 0 {
			fmt.Fprintf(formatter.Writer, "✓ Compiled %d script(s)\n", len(listings))
		}
	}

	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d script(s) failed to compile", failed))
	}
	return nil
}

func newCompiler(opts config.Options) *compiler.Compiler {
	return compiler.New(library.NewRegistry(), compiler.WithOptions(opts.CompilerOptions()))
}

func compiledScript(l compiler.Listing) CompiledScript {
	s := CompiledScript{Target: l.Target, TopBlock: l.TopBlock}
	if l.Err != nil {
		s.Error = &CLIError{Code: ErrCodeCompile, Message: l.Err.Error()}
		var ce *compiler.CompileError
		if errors.As(l.Err, &ce) {
			s.Error.Code = ce.Code
		}
		return s
	}
	s.IR = ir.DumpRepresentation(l.Representation)
	if hash, err := ir.RepresentationHash(l.Representation); err == nil {
		s.Hash = hash
	}
	s.Recursion = l.Recursion
	for _, u := range l.Units {
		s.Units = append(s.Units, CompiledUnit{
			Name:    u.Name,
			Variant: u.Variant,
			Yields:  u.Yields,
			Source:  u.Source,
		})
	}
	return s
}
