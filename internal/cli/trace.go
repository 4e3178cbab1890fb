package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/blockjit/internal/engine"
	"github.com/roach88/blockjit/internal/harness"
	"github.com/roach88/blockjit/internal/ir"
	"github.com/roach88/blockjit/internal/queryir"
	"github.com/roach88/blockjit/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	RunID    string // optional, defaults to the latest run
	Target   string   // optional filter
	Where    []string // field=value terms, ANDed
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	RunID    string               `json:"run_id"`
	Project  string               `json:"project"`
	Options  json.RawMessage      `json:"options"`
	Timeline []harness.TraceEvent `json:"timeline"`
	Stats    TraceStats           `json:"stats"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	TotalEvents    int            `json:"total_events"`
	Threads        int            `json:"threads"`
	Done           int            `json:"done"`
	Failed         int            `json:"failed"`
	CompileErrors  int            `json:"compile_errors"`
	Suspensions    map[string]int `json:"suspensions"`
	AllThreadsDone bool           `json:"all_threads_done"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show the journal of a run",
		Long: `Show the journaled events of a run in seq order.

The output includes:
- Timeline: thread events (started, suspended, done, failed) and compile
  outcomes in the order they happened
- Stats: counts per kind and suspensions per thread

Without --run the most recent run is shown.

--where takes field=value terms over the journal columns (run_id, seq,
thread_id, target, top_block, kind, detail for thread events; ok, code,
message for compile outcomes). Comma-separated values match any of them.
Terms are ANDed; events whose table lacks a named column are left out.

Examples:
  blockjit trace --db ./journal.db
  blockjit trace --db ./journal.db --run 0190f1c2-...
  blockjit trace --db ./journal.db --target Cat --format json
  blockjit trace --db ./journal.db --where kind=suspended,done
  blockjit trace --db ./journal.db --where ok=false`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run ID to show (default: latest)")
	cmd.Flags().StringVar(&opts.Target, "target", "", "filter to one target")
	cmd.Flags().StringArrayVar(&opts.Where, "where", nil, "filter events by field=value (repeatable)")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	st, err := store.Open(opts.Database)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to open database", err)
	}
	defer st.Close()

	run, err := findRun(ctx, st, opts.RunID)
	if errors.Is(err, store.ErrRunNotFound) {
		return formatter.Fail(ExitCommandError, ErrCodeRunNotFound, "no such run", err)
	}
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to read run", err)
	}

	filter, err := traceFilter(opts)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeInvalidFilter, "invalid --where", err)
	}
	trace, err := harness.QueryTrace(ctx, st, run.ID, filter)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to read trace", err)
	}
	suspensions, err := st.CountSuspensions(ctx, run.ID)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to count suspensions", err)
	}

	result := TraceResult{
		RunID:    run.ID,
		Project:  run.Project,
		Options:  json.RawMessage(run.Options),
		Timeline: trace,
	}
	result.Stats = calculateTraceStats(result.Timeline, suspensions)

	if formatter.Format == "json" {
		return formatter.encode(CLIResponse{Status: "ok", Data: result, RunID: run.ID})
	}
	outputTraceText(formatter, result)
	return nil
}

func findRun(ctx context.Context, st *store.Store, id string) (store.Run, error) {
	if id == "" {
		return st.LatestRun(ctx)
	}
	return st.ReadRun(ctx, id)
}

// traceFilter combines --target and --where into one predicate and
// checks it against the journal columns.
func traceFilter(opts *TraceOptions) (queryir.Predicate, error) {
	where, err := queryir.ParseFilter(opts.Where)
	if err != nil {
		return nil, err
	}
	var target queryir.Predicate
	if opts.Target != "" {
		target = &queryir.Equals{Field: "target", Value: ir.String(opts.Target)}
	}
	filter := queryir.Where(target, where)

	threadErrs := queryir.ValidatePredicate(queryir.TableThreadEvents, filter)
	if len(threadErrs) > 0 && len(queryir.ValidatePredicate(queryir.TableCompiles, filter)) > 0 {
		return nil, threadErrs[0]
	}
	return filter, nil
}

// calculateTraceStats counts the timeline. A thread that failed to
// compile is journaled as failed without being started.
func calculateTraceStats(timeline []harness.TraceEvent, suspensions map[string]int) TraceStats {
	stats := TraceStats{
		TotalEvents: len(timeline),
		Suspensions: map[string]int{},
	}
	threads := map[string]bool{}
	for _, ev := range timeline {
		switch ev.Kind {
		case string(engine.EventStarted):
			threads[ev.ThreadID] = true
		case string(engine.EventDone):
			stats.Done++
		case string(engine.EventFailed):
			threads[ev.ThreadID] = true
			stats.Failed++
		case harness.KindCompileFailed:
			stats.CompileErrors++
		}
	}
	for id := range threads {
		if n, ok := suspensions[id]; ok {
			stats.Suspensions[id] = n
		}
	}
	stats.Threads = len(threads)
	stats.AllThreadsDone = stats.Done+stats.Failed == stats.Threads
	return stats
}

func outputTraceText(f *OutputFormatter, r TraceResult) {
	w := f.Writer
	fmt.Fprintf(w, "Run %s (%s)\n", r.RunID, r.Project)
	fmt.Fprintf(w, "Options: %s\n\n", string(r.Options))

	if len(r.Timeline) == 0 {
		fmt.Fprintln(w, "No events.")
		return
	}

	fmt.Fprintln(w, "Timeline:")
	for _, ev := range r.Timeline {
		line := fmt.Sprintf("  [%d] %-14s %s/%s", ev.Seq, ev.Kind, ev.Target, ev.TopBlock)
		if ev.ThreadID != "" {
			line += " " + ev.ThreadID
		}
		if ev.Code != "" {
			line += " " + ev.Code
		}
		if ev.Detail != "" {
			line += ": " + ev.Detail
		}
		fmt.Fprintln(w, line)
	}

	s := r.Stats
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Stats: %d event(s), %d thread(s), %d done, %d failed, %d compile error(s)\n",
		s.TotalEvents, s.Threads, s.Done, s.Failed, s.CompileErrors)
	for _, id := range slices.Sorted(maps.Keys(s.Suspensions)) {
		fmt.Fprintf(w, "  %s suspended %d time(s)\n", id, s.Suspensions[id])
	}
	if s.AllThreadsDone {
		fmt.Fprintln(w, "✓ All threads finished")
	} else {
		fmt.Fprintln(w, "⏳ Threads still running at the end of the run")
	}
}
