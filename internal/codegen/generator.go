package codegen

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/roach88/blockjit/internal/blocks"
	"github.com/roach88/blockjit/internal/engine"
	"github.com/roach88/blockjit/internal/ir"
)

// InputLowerer lowers one expression opcode.
type InputLowerer func(g *Generator, in *ir.Input) Expr

// StackLowerer lowers one statement opcode. It writes its listing lines
// through g and returns the statement.
type StackLowerer func(g *Generator, b *ir.StackBlock) engine.Stmt

// Lowerers is the table of registered lowerings. Opcodes without one fall
// back to the generator's core set.
type Lowerers interface {
	InputLowerer(op ir.InputOpcode) (InputLowerer, bool)
	StackLowerer(op ir.StackOpcode) (StackLowerer, bool)
}

// Frame describes the statement sequence being lowered.
type Frame struct {
	// IsLoop is set for the body of a loop.
	IsLoop bool
	// IsLastBlock is set while the last statement of the sequence is
	// lowered.
	IsLastBlock bool
}

// Option configures Lower.
type Option func(*Generator)

// WithNames draws unit names from names instead of DefaultNames.
func WithNames(names *Names) Option {
	return func(g *Generator) {
		g.names = names
	}
}

// Generator lowers one unit. It is not safe for concurrent use.
type Generator struct {
	script   *ir.Script
	rep      *ir.Representation
	lowerers Lowerers
	names    *Names

	isWarp      bool
	isProcedure bool
	warpTimer   bool
	isInHat     bool

	frames []*Frame

	locals     *Pool
	setupPool  *Pool
	setupNames map[string]string
	setupSlots map[string]int
	setup      []engine.SetupFunc
	setupSrc   []string

	helpers    []string
	helperSeen map[string]bool

	body  strings.Builder
	depth int
}

func newGenerator(script *ir.Script, rep *ir.Representation, lowerers Lowerers) *Generator {
	return &Generator{
		script:      script,
		rep:         rep,
		lowerers:    lowerers,
		names:       DefaultNames,
		isWarp:      script.IsWarp,
		isProcedure: script.IsProcedure,
		warpTimer:   script.WarpTimer,
		locals:      NewPool("a"),
		setupPool:   NewPool("b"),
		setupNames:  make(map[string]string),
		setupSlots:  make(map[string]int),
		helperSeen:  make(map[string]bool),
	}
}

// Lower lowers script into a fragment ready for the engine's loader. rep
// supplies the procedures script may call.
func Lower(script *ir.Script, rep *ir.Representation, lowerers Lowerers, opts ...Option) (frag *engine.Fragment, err error) {
	g := newGenerator(script, rep, lowerers)
	for _, opt := range opts {
		opt(g)
	}

	defer func() {
		if r := recover(); r != nil {
			b, ok := r.(bailout)
			if !ok {
				panic(r)
			}
			b.err.Unit = g.unitLabel()
			frag, err = nil, b.err
		}
	}()

	return g.compile(), nil
}

func (g *Generator) unitLabel() string {
	if g.isProcedure {
		return g.script.ProcedureVariant
	}
	return g.script.TopBlockID
}

func (g *Generator) compile() *engine.Fragment {
	g.depth = 1
	var body engine.Stmt
	if g.script.Stack != nil {
		body = g.DescendStack(g.script.Stack, &Frame{})
	}
	end := g.StopScript()

	run := func(x *engine.Exec) engine.Flow {
		if body != nil && body(x) == engine.FlowReturn {
			return engine.FlowReturn
		}
		return end(x)
	}

	factory := g.names.Factory.Next()
	name := g.scriptName()
	slog.Debug("lowered unit",
		"factory", factory,
		"name", name,
		"yields", g.script.Yields,
		"helpers", g.helpers,
	)

	fragName := factory
	if g.isProcedure {
		fragName = name
	}
	return &engine.Fragment{
		Name:    fragName,
		Variant: g.script.ProcedureVariant,
		Yields:  g.script.Yields,
		Arity:   len(g.script.Arguments),
		Helpers: g.helpers,
		Setup:   g.setup,
		Body:    run,
		Source:  g.listing(factory, name),
	}
}

func (g *Generator) scriptName() string {
	var name string
	if g.script.Yields {
		name = g.names.Generator.Next()
	} else {
		name = g.names.Function.Next()
	}
	if g.isProcedure {
		name += "_" + ir.SimplifyProcCode(g.script.ProcedureCode)
	}
	return name
}

func (g *Generator) listing(factory, name string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s(thread) {\n", factory)
	for _, line := range g.setupSrc {
		b.WriteString("  " + line + "\n")
	}
	kind := "function"
	if g.script.Yields {
		kind = "function*"
	}
	params := make([]string, len(g.script.Arguments))
	for i := range params {
		params[i] = fmt.Sprintf("p%d", i)
	}
	fmt.Fprintf(&b, "  return %s %s (%s) {\n", kind, name, strings.Join(params, ","))
	b.WriteString(g.body.String())
	b.WriteString("  };\n}\n")
	return b.String()
}

// =============================================================================
// Accessors
// =============================================================================

// Script returns the unit being lowered.
func (g *Generator) Script() *ir.Script { return g.script }

// Representation returns the compiled representation the unit belongs to.
func (g *Generator) Representation() *ir.Representation { return g.rep }

// IsWarp reports whether the code being lowered runs without screen
// refresh.
func (g *Generator) IsWarp() bool { return g.isWarp }

// SetWarp changes the warp flag for the code lowered next and returns the
// previous value.
func (g *Generator) SetWarp(on bool) bool {
	prev := g.isWarp
	g.isWarp = on
	return prev
}

// IsInHat reports whether a hat condition is being lowered.
func (g *Generator) IsInHat() bool { return g.isInHat }

// Fail aborts lowering of the unit.
func (g *Generator) Fail(code, format string, args ...any) {
	panic(bailout{err: &LowerError{Code: code, Message: fmt.Sprintf(format, args...)}})
}

// =============================================================================
// Listing and names
// =============================================================================

// Line appends one line to the listing at the current indentation.
func (g *Generator) Line(format string, args ...any) {
	g.body.WriteString(strings.Repeat("  ", g.depth+1))
	fmt.Fprintf(&g.body, format, args...)
	g.body.WriteByte('\n')
}

// Indent increases the listing indentation.
func (g *Generator) Indent() { g.depth++ }

// Dedent decreases the listing indentation.
func (g *Generator) Dedent() { g.depth-- }

// Local returns a fresh local name.
func (g *Generator) Local() string { return g.locals.Next() }

// UseHelper records that the unit calls the named runtime helper.
func (g *Generator) UseHelper(name string) {
	if g.helperSeen[name] {
		return
	}
	g.helperSeen[name] = true
	g.helpers = append(g.helpers, name)
}

// EvaluateOnce binds a per-thread setup value described by src and
// returns its name and slot. Repeated requests for the same src share one
// slot.
func (g *Generator) EvaluateOnce(src string, fn engine.SetupFunc) (name string, slot int) {
	if name, ok := g.setupNames[src]; ok {
		return name, g.setupSlots[src]
	}
	name = g.setupPool.Next()
	slot = len(g.setup)
	g.setupNames[src] = name
	g.setupSlots[src] = slot
	g.setup = append(g.setup, fn)
	g.setupSrc = append(g.setupSrc, fmt.Sprintf("const %s = %s;", name, src))
	return name, slot
}

// VarRef is a variable bound as a setup value.
type VarRef struct {
	Name string
	slot int
}

// Get returns the variable's storage on x's thread.
func (r VarRef) Get(x *engine.Exec) *blocks.Variable {
	return x.Variable(r.slot)
}

// ReferenceVariable binds v for the unit.
func (g *Generator) ReferenceVariable(v *ir.Variable) VarRef {
	if v == nil {
		g.Fail(ErrCodeInvariant, "missing variable reference")
	}
	owner := "target"
	if v.Scope == ir.ScopeStage {
		owner = "stage"
	}
	src := fmt.Sprintf("%s.variables[%s]", owner, StringLiteral(v.ID))
	ref := *v
	name, slot := g.EvaluateOnce(src, func(th *engine.Thread) any {
		return resolveVariable(th, &ref)
	})
	return VarRef{Name: name, slot: slot}
}

func resolveVariable(th *engine.Thread, v *ir.Variable) *blocks.Variable {
	t := th.Target
	if v.Scope == ir.ScopeStage {
		t = th.Engine().Stage()
	}
	if found, ok := t.LookupVariableByID(v.ID); ok {
		return found
	}
	slog.Warn("variable missing at thread setup, creating it",
		"target", t.Name,
		"variable", v.Name,
		"id", v.ID,
	)
	return t.CreateVariable(v.ID, v.Name, blocks.VariableScalar)
}

// =============================================================================
// Frames
// =============================================================================

func (g *Generator) pushFrame(f *Frame) { g.frames = append(g.frames, f) }

func (g *Generator) popFrame() { g.frames = g.frames[:len(g.frames)-1] }

// IsLastBlockInLoop reports whether the statement being lowered is the
// last thing a loop body runs before its next iteration.
func (g *Generator) IsLastBlockInLoop() bool {
	for i := len(g.frames) - 1; i >= 0; i-- {
		f := g.frames[i]
		if !f.IsLastBlock {
			return false
		}
		if f.IsLoop {
			return true
		}
	}
	return false
}

// =============================================================================
// Suspension
// =============================================================================

func suspend(x *engine.Exec) { x.Yield() }

// yielded checks that the unit may suspend.
func (g *Generator) yielded() {
	if !g.script.Yields {
		g.Fail(ErrCodeInvariant, "Script yielded but is not marked as yielding.")
	}
}

// Yielded marks a suspension point emitted by a registered lowering.
func (g *Generator) Yielded() { g.yielded() }

// YieldNotWarp suspends unless the code runs in warp mode.
func (g *Generator) YieldNotWarp() Action {
	if g.isWarp {
		return nil
	}
	g.Line("yield;")
	g.yielded()
	return suspend
}

// YieldStuckOrNotWarp suspends unless the code runs in warp mode, in which
// case it suspends only once the tick looks stuck.
func (g *Generator) YieldStuckOrNotWarp() Action {
	if g.isWarp {
		g.Line("if (isStuck()) yield;")
		g.yielded()
		g.UseHelper(engine.HelperIsStuck)
		return func(x *engine.Exec) {
			if x.Helpers().IsStuck(x) {
				x.Yield()
			}
		}
	}
	g.Line("yield;")
	g.yielded()
	return suspend
}

// YieldLoop is the suspension at the end of a loop iteration.
func (g *Generator) YieldLoop() Action {
	if g.warpTimer {
		return g.YieldStuckOrNotWarp()
	}
	return g.YieldNotWarp()
}

// Retire ends the thread. Inside a procedure the thread also suspends so
// that the scheduler, not the calling unit, sees it finish.
func (g *Generator) Retire() engine.Stmt {
	g.UseHelper(engine.HelperRetire)
	if g.isProcedure {
		g.Line("retire(); yield;")
		return func(x *engine.Exec) engine.Flow {
			x.Helpers().Retire(x)
			x.Yield()
			return engine.FlowReturn
		}
	}
	g.Line("retire(); return;")
	return func(x *engine.Exec) engine.Flow {
		x.Helpers().Retire(x)
		return engine.FlowReturn
	}
}

// StopScript leaves the unit: a procedure returns the empty string and a
// script retires its thread.
func (g *Generator) StopScript() engine.Stmt {
	if g.isProcedure {
		g.Line(`return "";`)
		return func(x *engine.Exec) engine.Flow {
			x.Ret = ir.String("")
			return engine.FlowReturn
		}
	}
	return g.Retire()
}

// StopScriptAndReturn returns v from a procedure, or retires the thread of
// a script.
func (g *Generator) StopScriptAndReturn(v Expr) engine.Stmt {
	if g.isProcedure {
		g.Line("return %s;", v.Src)
		eval := v.Eval
		return func(x *engine.Exec) engine.Flow {
			x.Ret = eval(x)
			return engine.FlowReturn
		}
	}
	return g.Retire()
}

// =============================================================================
// Descent
// =============================================================================

// Input lowers an expression. Foldable literal arithmetic is folded
// first.
func (g *Generator) Input(in *ir.Input) Expr {
	if in == nil {
		g.Fail(ErrCodeInvariant, "missing input node")
	}
	if folded, ok := Fold(in); ok {
		in = folded
	}
	if g.lowerers != nil {
		if lower, ok := g.lowerers.InputLowerer(in.Opcode); ok {
			return lower(g, in)
		}
	}
	return g.coreInput(in)
}

// DescendStack lowers a statement sequence inside frame f.
func (g *Generator) DescendStack(s *ir.Stack, f *Frame) engine.Stmt {
	g.pushFrame(f)
	defer g.popFrame()

	stmts := make([]engine.Stmt, 0, len(s.Blocks))
	for i, b := range s.Blocks {
		f.IsLastBlock = i == len(s.Blocks)-1
		stmts = append(stmts, g.descendStackedBlock(b))
	}
	return sequence(stmts)
}

// Substack lowers s as a nested block with its own indentation.
func (g *Generator) Substack(s *ir.Stack, f *Frame) engine.Stmt {
	g.Indent()
	defer g.Dedent()
	return g.DescendStack(s, f)
}

func (g *Generator) descendStackedBlock(b *ir.StackBlock) engine.Stmt {
	if g.lowerers != nil {
		if lower, ok := g.lowerers.StackLowerer(b.Opcode); ok {
			return lower(g, b)
		}
	}
	return g.coreStack(b)
}

func next(*engine.Exec) engine.Flow { return engine.FlowNext }

func sequence(stmts []engine.Stmt) engine.Stmt {
	switch len(stmts) {
	case 0:
		return next
	case 1:
		return stmts[0]
	}
	return func(x *engine.Exec) engine.Flow {
		for _, s := range stmts {
			if f := s(x); f != engine.FlowNext {
				return f
			}
		}
		return engine.FlowNext
	}
}
