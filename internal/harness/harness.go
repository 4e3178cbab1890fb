package harness

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/roach88/blockjit/internal/blocks"
	"github.com/roach88/blockjit/internal/codegen"
	"github.com/roach88/blockjit/internal/compiler"
	"github.com/roach88/blockjit/internal/config"
	"github.com/roach88/blockjit/internal/engine"
	"github.com/roach88/blockjit/internal/library"
	"github.com/roach88/blockjit/internal/queryir"
	"github.com/roach88/blockjit/internal/store"
	"github.com/roach88/blockjit/internal/testutil"
)

// defaultSeed keeps random blocks deterministic unless the scenario's
// options pick a seed.
const defaultSeed = 1

// Harness holds everything one scenario run needs.
type Harness struct {
	project  *blocks.Project
	store    *store.Store
	journal  *store.Journal
	compiler *compiler.Compiler
	engine   *engine.Engine
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory journal for isolation. The wall
// clock steps 1ms per read and thread ids are sequential, so the trace is
// identical across runs.
//
// Execution flow:
// 1. Load the project and options
// 2. Open an in-memory journal and record the run
// 3. Click the green flag and step until idle or out of ticks
// 4. Read the trace back from the journal and check the assertions
func Run(scenario *Scenario) (*Result, error) {
	ctx := context.Background()

	h, err := newHarness(ctx, scenario)
	if err != nil {
		return nil, err
	}
	defer h.close()

	h.engine.GreenFlag()
	ticks := scenario.Ticks
	if ticks == 0 {
		ticks = DefaultTicks
	}

	result := NewResult()
	result.RunID = h.journal.RunID()
	result.Ticks = h.engine.RunTicks(ticks)
	result.State = SnapshotState(h.project)

	trace, err := ReadTrace(ctx, h.store, h.journal.RunID())
	if err != nil {
		return nil, err
	}
	result.Trace = trace

	for i, a := range scenario.Assertions {
		if err := checkAssertion(result, a); err != nil {
			result.AddError(fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return result, nil
}

func newHarness(ctx context.Context, s *Scenario) (*Harness, error) {
	project, err := loadProject(s)
	if err != nil {
		return nil, err
	}

	opts, err := scenarioOptions(s)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	run, err := store.NewRun("scenario-"+s.Name, s.Name, opts.Map(), 0)
	if err != nil {
		st.Close()
		return nil, err
	}
	if err := st.WriteRun(ctx, run); err != nil {
		st.Close()
		return nil, err
	}
	journal := store.NewJournal(ctx, st, run.ID)

	comp := newCompiler(opts)
	reg := comp.Registry()
	engineOpts := append([]engine.Option{
		engine.WithTimeSource(testutil.NewSteppingClock(time.Millisecond)),
		engine.WithIDGenerator(engine.NewSequentialGenerator("thread")),
		engine.WithJournal(journal),
		engine.WithRandSeed(defaultSeed),
	}, opts.EngineOptions()...)

	return &Harness{
		project:  project,
		store:    st,
		journal:  journal,
		compiler: comp,
		engine:   engine.New(project, reg, comp, engineOpts...),
	}, nil
}

// newCompiler uses a fresh name pool, so generated names in listings do
// not depend on what else compiled in the process.
func newCompiler(opts config.Options) *compiler.Compiler {
	return compiler.New(library.NewRegistry(),
		compiler.WithOptions(opts.CompilerOptions()),
		compiler.WithNames(codegen.NewNames()),
	)
}

func scenarioOptions(s *Scenario) (config.Options, error) {
	if s.Options == "" {
		return config.Default(), nil
	}
	opts, err := config.Parse([]byte(s.Options), s.Name+".options.cue")
	if err != nil {
		return config.Options{}, fmt.Errorf("scenario options: %w", err)
	}
	return opts, nil
}

func (h *Harness) close() {
	h.engine.Close()
	h.store.Close()
}

func loadProject(s *Scenario) (*blocks.Project, error) {
	var (
		p   *blocks.Project
		err error
	)
	if s.ProjectFile != "" {
		p, err = blocks.LoadProject(s.ProjectFile)
	} else {
		p, err = blocks.DecodeProject(strings.NewReader(s.Project))
	}
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", s.Name, err)
	}
	return p, nil
}

// ReadTrace merges the thread and compile events of a journaled run by seq.
func ReadTrace(ctx context.Context, st *store.Store, runID string) ([]TraceEvent, error) {
	return QueryTrace(ctx, st, runID, nil)
}

// QueryTrace is ReadTrace restricted to the events that satisfy filter.
// A table whose columns cannot answer the filter contributes nothing, so
// kind=suspended keeps only thread events and ok=false keeps only
// compile outcomes. A filter neither table can answer is an error.
func QueryTrace(ctx context.Context, st *store.Store, runID string, filter queryir.Predicate) ([]TraceEvent, error) {
	threadErrs := queryir.ValidatePredicate(queryir.TableThreadEvents, filter)
	compileErrs := queryir.ValidatePredicate(queryir.TableCompiles, filter)
	if len(threadErrs) > 0 && len(compileErrs) > 0 {
		return nil, fmt.Errorf("invalid filter: %w", threadErrs[0])
	}

	var threads []engine.ThreadEvent
	var compiles []engine.CompileEvent
	var err error
	if len(threadErrs) == 0 {
		if threads, err = st.QueryThreadEvents(ctx, runID, filter); err != nil {
			return nil, err
		}
	}
	if len(compileErrs) == 0 {
		if compiles, err = st.QueryCompiles(ctx, runID, filter); err != nil {
			return nil, err
		}
	}

	trace := make([]TraceEvent, 0, len(threads)+len(compiles))
	for _, ev := range threads {
		trace = append(trace, TraceEvent{
			Seq:      ev.Seq,
			Kind:     string(ev.Kind),
			Target:   ev.Target,
			TopBlock: ev.TopBlock,
			ThreadID: ev.ThreadID,
			Detail:   ev.Detail,
		})
	}
	for _, ev := range compiles {
		te := TraceEvent{
			Seq:      ev.Seq,
			Kind:     KindCompiled,
			Target:   ev.Target,
			TopBlock: ev.TopBlock,
		}
		if !ev.OK {
			te.Kind = KindCompileFailed
			te.Code = ev.Code
			te.Detail = ev.Message
		}
		trace = append(trace, te)
	}
	sort.Slice(trace, func(i, j int) bool { return trace[i].Seq < trace[j].Seq })
	return trace, nil
}
