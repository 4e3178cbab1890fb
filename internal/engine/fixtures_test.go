package engine

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/blockjit/internal/blocks"
	"github.com/roach88/blockjit/internal/testutil"
)

// scriptFunc is a hand-written script body used in place of compiled code.
type scriptFunc func(x *Exec)

// stubCompiler serves hand-written scripts keyed by top block id.
type stubCompiler struct {
	scripts map[string]scriptFunc
	procs   map[string]scriptFunc
	err     error
	calls   int
}

func (c *stubCompiler) Compile(th *Thread) (*Program, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	body, ok := c.scripts[th.TopBlock]
	if !ok {
		return nil, fmt.Errorf("no script at %s", th.TopBlock)
	}
	l := th.Engine().Loader()
	entry, err := l.Load(scriptFragment("factory_"+th.TopBlock, body))
	if err != nil {
		return nil, err
	}
	procs := make(map[string]*Unit, len(c.procs))
	for variant, fn := range c.procs {
		u, err := l.Load(scriptFragment("gen_"+variant, fn))
		if err != nil {
			return nil, err
		}
		u.Variant = variant
		procs[variant] = u
	}
	return &Program{TopBlockID: th.TopBlock, Entry: entry, Procedures: procs}, nil
}

func scriptFragment(name string, fn scriptFunc) *Fragment {
	return &Fragment{
		Name:   name,
		Yields: true,
		Body: func(x *Exec) Flow {
			fn(x)
			return FlowReturn
		},
	}
}

// stubLibrary is a Library over plain maps.
type stubLibrary struct {
	prims map[string]Primitive
	hats  map[string]HatInfo
	edge  []string
}

func newStubLibrary() *stubLibrary {
	return &stubLibrary{
		prims: map[string]Primitive{},
		hats: map[string]HatInfo{
			HatGreenFlag:    {RestartExistingThreads: true},
			HatBroadcast:    {RestartExistingThreads: true},
			HatStartAsClone: {},
		},
	}
}

func (l *stubLibrary) Primitive(opcode string) (Primitive, bool) {
	p, ok := l.prims[opcode]
	return p, ok
}

func (l *stubLibrary) Hat(opcode string) (HatInfo, bool) {
	h, ok := l.hats[opcode]
	return h, ok
}

func (l *stubLibrary) EdgeActivatedHats() []string { return l.edge }

// memJournal keeps journaled events in memory.
type memJournal struct {
	threads  []ThreadEvent
	compiles []CompileEvent
}

func (j *memJournal) RecordThread(ev ThreadEvent) error {
	j.threads = append(j.threads, ev)
	return nil
}

func (j *memJournal) RecordCompile(ev CompileEvent) error {
	j.compiles = append(j.compiles, ev)
	return nil
}

func (j *memJournal) kinds(threadID string) []EventKind {
	var out []EventKind
	for _, ev := range j.threads {
		if ev.ThreadID == threadID {
			out = append(out, ev.Kind)
		}
	}
	return out
}

const testProject = `
sprites:
  - name: Cat
    blocks:
      flag:
        opcode: event_whenflagclicked
        top_level: true
      recv:
        opcode: event_whenbroadcastreceived
        top_level: true
        fields: {BROADCAST_OPTION: {value: Go}}
      clone:
        opcode: control_start_as_clone
        top_level: true
      edge:
        opcode: test_whenedge
        top_level: true
`

type rig struct {
	engine   *Engine
	compiler *stubCompiler
	library  *stubLibrary
	journal  *memJournal
	clock    *testutil.SteppingClock
	project  *blocks.Project
	cat      *blocks.Target
}

// newRig builds an engine over testProject with a stepping clock that
// moves 1ms per read, sequential thread ids and an in-memory journal.
func newRig(t *testing.T, opts ...Option) *rig {
	t.Helper()
	p := testutil.Project(t, testProject)
	r := &rig{
		compiler: &stubCompiler{scripts: map[string]scriptFunc{}, procs: map[string]scriptFunc{}},
		library:  newStubLibrary(),
		journal:  &memJournal{},
		clock:    testutil.NewSteppingClock(time.Millisecond),
		project:  p,
		cat:      testutil.Sprite(t, p, "Cat"),
	}
	base := []Option{
		WithTimeSource(r.clock),
		WithIDGenerator(NewSequentialGenerator("thread")),
		WithJournal(r.journal),
		WithRandSeed(7),
	}
	r.engine = New(p, r.library, r.compiler, append(base, opts...)...)
	return r
}

func (r *rig) start(t *testing.T, top string, fn scriptFunc) *Thread {
	t.Helper()
	r.compiler.scripts[top] = fn
	th := r.engine.StartThread(r.cat, top, false)
	require.False(t, th.Done(), "thread for %s did not start", top)
	return th
}
