package compiler

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/roach88/blockjit/internal/codegen"
	"github.com/roach88/blockjit/internal/engine"
	"github.com/roach88/blockjit/internal/ir"
)

// Options are the compiler settings that do not come from the script.
type Options struct {
	// WarpTimer enables stuck detection in every warp loop, as if each
	// script carried the "tw stuck" directive.
	WarpTimer bool
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithOptions sets the compiler options.
func WithOptions(o Options) Option {
	return func(c *Compiler) { c.opts = o }
}

// WithNames draws generated unit names from names.
func WithNames(names *codegen.Names) Option {
	return func(c *Compiler) { c.names = names }
}

// Compiler compiles the script a thread starts at. It implements
// engine.Compiler.
//
// Programs, and compile failures, are cached on the target's container
// by top block, so every clone of a sprite shares them.
type Compiler struct {
	reg   *Registry
	opts  Options
	names *codegen.Names
}

// New creates a compiler over a frozen registry.
func New(reg *Registry, opts ...Option) *Compiler {
	if !reg.Frozen() {
		panic("compiler: registry must be frozen before compiling")
	}
	c := &Compiler{reg: reg, names: codegen.DefaultNames}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Registry returns the registry c compiles with.
func (c *Compiler) Registry() *Registry { return c.reg }

// cacheKey separates editor clicks from regular starts: they build hats
// and lone reporters differently.
func cacheKey(th *engine.Thread) string {
	if th.StackClick {
		return th.TopBlock + "#click"
	}
	return th.TopBlock
}

// Compile implements engine.Compiler.
func (c *Compiler) Compile(th *engine.Thread) (*engine.Program, error) {
	container := th.Target.Container()
	key := cacheKey(th)
	if cached, ok := container.CachedProgram(key); ok {
		switch v := cached.(type) {
		case *engine.Program:
			return v, nil
		case error:
			return nil, v
		}
	}

	prog, err := c.compile(th)
	if err != nil {
		container.StoreProgram(key, err)
		return nil, err
	}
	container.StoreProgram(key, prog)
	return prog, nil
}

// BuildContext returns the build context for a thread.
func (c *Compiler) BuildContext(th *engine.Thread) BuildContext {
	e := th.Engine()
	return BuildContext{
		Target:     th.Target,
		Stage:      e.Stage(),
		Assets:     e.Project().AssetNames(),
		StackClick: th.StackClick,
		WarpTimer:  c.opts.WarpTimer,
	}
}

// Representation builds and checks the IR of the script th starts at.
func (c *Compiler) Representation(th *engine.Thread) (*ir.Representation, error) {
	rep, err := Generate(c.reg, c.BuildContext(th), th.TopBlock)
	if err != nil {
		return nil, err
	}
	if errs := ValidateRepresentation(rep); len(errs) > 0 {
		for _, verr := range errs {
			slog.Error("invalid representation", "top_block", th.TopBlock, "error", verr)
		}
		return nil, &CompileError{
			Code:    ErrCodeInvariant,
			Message: fmt.Sprintf("representation failed validation: %v", errs[0]),
			BlockID: th.TopBlock,
		}
	}
	return rep, nil
}

func (c *Compiler) compile(th *engine.Thread) (*engine.Program, error) {
	rep, err := c.Representation(th)
	if err != nil {
		return nil, err
	}
	for _, g := range AnalyzeRecursion(rep) {
		slog.Debug("recursive procedures", "top_block", th.TopBlock, "variants", g.Variants, "self", g.Self)
	}

	loader := th.Engine().Loader()
	entry, err := c.lowerUnit(loader, rep.Entry, rep, th.TopBlock)
	if err != nil {
		return nil, err
	}
	prog := &engine.Program{
		TopBlockID:    th.TopBlock,
		Entry:         entry,
		Procedures:    make(map[string]*engine.Unit, len(rep.Procedures)),
		ExecutableHat: rep.Entry.ExecutableHat,
	}
	for _, variant := range slices.Sorted(maps.Keys(rep.Procedures)) {
		u, err := c.lowerUnit(loader, rep.Procedures[variant], rep, th.TopBlock)
		if err != nil {
			return nil, err
		}
		prog.Procedures[variant] = u
	}

	slog.Debug("compiled script",
		"target", th.Target.Name,
		"top_block", th.TopBlock,
		"procedures", len(prog.Procedures),
		"yields", rep.Entry.Yields,
	)
	return prog, nil
}

// Lower lowers one unit of rep into a fragment.
func (c *Compiler) Lower(script *ir.Script, rep *ir.Representation) (*engine.Fragment, error) {
	frag, err := codegen.Lower(script, rep, c.reg, codegen.WithNames(c.names))
	if err != nil {
		var le *codegen.LowerError
		if errors.As(err, &le) {
			return nil, fromLowerError(le, script.TopBlockID, script.ProcedureVariant)
		}
		return nil, err
	}
	return frag, nil
}

func (c *Compiler) lowerUnit(loader *engine.Loader, script *ir.Script, rep *ir.Representation, topBlock string) (*engine.Unit, error) {
	frag, err := c.Lower(script, rep)
	if err != nil {
		return nil, err
	}
	u, err := loader.Load(frag)
	if err != nil {
		return nil, &CompileError{
			Code:    ErrCodeLoad,
			Message: err.Error(),
			BlockID: topBlock,
			Variant: script.ProcedureVariant,
			err:     err,
		}
	}
	return u, nil
}
