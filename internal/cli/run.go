package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/blockjit/internal/engine"
	"github.com/roach88/blockjit/internal/harness"
	"github.com/roach88/blockjit/internal/ir"
	"github.com/roach88/blockjit/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Config   string
	Database string
	Ticks    int

	// RunIDs allows overriding the run ID generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDs engine.IDGenerator
}

// RunResult is the outcome of a run.
type RunResult struct {
	RunID   string                  `json:"run_id,omitempty"`
	Ticks   int                     `json:"ticks"`
	Targets map[string]TargetValues `json:"targets"`
}

// TargetValues are the final values of one target, as strings.
type TargetValues struct {
	Speech    string              `json:"speech,omitempty"`
	Variables map[string]string   `json:"variables"`
	Lists     map[string][]string `json:"lists,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <project.yaml>",
		Short: "Click the green flag and run a project",
		Long: `Click the green flag and run a project, then print the final value of
every variable.

With --ticks N the scheduler steps at most N ticks and stops early once
nothing is left to run. With --ticks 0 it runs in real time at the
configured frame rate until interrupted.

With --db every thread event and compile outcome is journaled to SQLite
under a new run ID.

Examples:
  blockjit run ./game.yaml
  blockjit run ./game.yaml --ticks 0 --config ./fast.cue
  blockjit run ./game.yaml --db ./journal.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProject(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Config, "config", "", "path to CUE options file")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (optional)")
	cmd.Flags().IntVar(&opts.Ticks, "ticks", harness.DefaultTicks, "maximum ticks to step (0 runs in real time)")

	return cmd
}

func runProject(opts *RunOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	if opts.Ticks < 0 {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "--ticks must be non-negative", nil)
	}

	project, err := LoadProject(path)
	if err != nil {
		return loadFailure(formatter, err)
	}
	options, err := LoadOptions(opts.Config)
	if err != nil {
		return loadFailure(formatter, err)
	}

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	comp := newCompiler(options)
	engineOpts := options.EngineOptions()

	var runID string
	if opts.Database != "" {
		st, err := store.Open(opts.Database)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				slog.Error("error closing database", "error", closeErr)
			}
		}()

		journal, clock, err := startRun(ctx, st, opts, path, options.Map())
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to record run", err)
		}
		runID = journal.RunID()
		engineOpts = append(engineOpts, engine.WithJournal(journal), engine.WithClock(clock))
		formatter.VerboseLog("Journaling run %s to %s", runID, opts.Database)
	}

	eng := engine.New(project, comp.Registry(), comp, engineOpts...)
	defer eng.Close()

	started := eng.GreenFlag()
	slog.Info("green flag", "project", path, "threads", len(started))

	ticks, err := step(ctx, eng, opts.Ticks)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeGeneric, "engine error", err)
	}

	result := RunResult{RunID: runID, Ticks: ticks, Targets: targetValues(harness.SnapshotState(project))}
	if formatter.Format == "json" {
		return formatter.encode(CLIResponse{Status: "ok", Data: result, RunID: runID})
	}
	outputRunText(formatter, result)
	return nil
}

// startRun records a new run and returns its journal, with the logical
// clock continuing after the last journaled seq.
func startRun(ctx context.Context, st *store.Store, opts *RunOptions, project string, options map[string]any) (*store.Journal, *engine.Clock, error) {
	last, err := st.LastSeq(ctx)
	if err != nil {
		return nil, nil, err
	}

	ids := opts.RunIDs
	if ids == nil {
		ids = engine.UUIDv7Generator{}
	}
	run, err := store.NewRun(ids.Generate(), project, options, last+1)
	if err != nil {
		return nil, nil, err
	}
	if err := st.WriteRun(ctx, run); err != nil {
		return nil, nil, err
	}
	return store.NewJournal(ctx, st, run.ID), engine.NewClockAt(last + 1), nil
}

// step runs ticks ticks, or in real time until interrupted when ticks is
// zero. It returns the number of ticks stepped.
func step(ctx context.Context, eng *engine.Engine, ticks int) (int, error) {
	if ticks > 0 {
		return eng.RunTicks(ticks), nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	err := eng.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return eng.Ticks(), err
	}
	return eng.Ticks(), nil
}

func targetValues(state map[string]*harness.TargetState) map[string]TargetValues {
	out := make(map[string]TargetValues, len(state))
	for name, ts := range state {
		tv := TargetValues{
			Speech:    ts.Speech,
			Variables: make(map[string]string, len(ts.Variables)),
		}
		for n, v := range ts.Variables {
			tv.Variables[n] = ir.ToString(v)
		}
		if len(ts.Lists) > 0 {
			tv.Lists = make(map[string][]string, len(ts.Lists))
			for n, items := range ts.Lists {
				strs := make([]string, len(items))
				for i, item := range items {
					strs[i] = ir.ToString(item)
				}
				tv.Lists[n] = strs
			}
		}
		out[name] = tv
	}
	return out
}

func outputRunText(f *OutputFormatter, r RunResult) {
	w := f.Writer
	if r.RunID != "" {
		fmt.Fprintf(w, "Run %s\n", r.RunID)
	}
	fmt.Fprintf(w, "Stepped %d tick(s)\n", r.Ticks)

	for _, name := range slices.Sorted(maps.Keys(r.Targets)) {
		tv := r.Targets[name]
		fmt.Fprintf(w, "\n%s:\n", name)
		if tv.Speech != "" {
			fmt.Fprintf(w, "  says %q\n", tv.Speech)
		}
		for _, n := range slices.Sorted(maps.Keys(tv.Variables)) {
			fmt.Fprintf(w, "  %s = %s\n", n, tv.Variables[n])
		}
		for _, n := range slices.Sorted(maps.Keys(tv.Lists)) {
			fmt.Fprintf(w, "  %s = %v\n", n, tv.Lists[n])
		}
	}
}
