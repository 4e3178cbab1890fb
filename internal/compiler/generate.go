package compiler

import (
	"log/slog"
	"slices"

	"github.com/roach88/blockjit/internal/ir"
)

// generator builds the IR of an entry script and of every procedure
// variant it reaches. Procedure IR is shared through the container's
// variant cache, so clones and sibling scripts build each variant once.
type generator struct {
	reg *Registry
	ctx BuildContext

	// pending and compiling are worklists in discovery order.
	pending    []string
	compiling  map[string]bool
	procedures map[string]*ir.Script

	analyzing []string
}

func newGenerator(reg *Registry, ctx BuildContext) *generator {
	return &generator{
		reg:        reg,
		ctx:        ctx,
		compiling:  make(map[string]bool),
		procedures: make(map[string]*ir.Script),
	}
}

// Generate builds the representation of the script at topBlockID.
func Generate(reg *Registry, ctx BuildContext, topBlockID string) (*ir.Representation, error) {
	return newGenerator(reg, ctx).generate(topBlockID)
}

func (g *generator) addDependencies(variants []string) {
	for _, v := range variants {
		if _, done := g.procedures[v]; done {
			continue
		}
		if g.compiling[v] {
			continue
		}
		g.compiling[v] = true
		g.pending = append(g.pending, v)
	}
}

func (g *generator) generate(topBlockID string) (*ir.Representation, error) {
	entry, err := NewScriptBuilder(g.reg, g.ctx).Generate(topBlockID)
	if err != nil {
		return nil, err
	}
	g.addDependencies(entry.DependedProcedures)

	container := g.ctx.Target.Container()
	for len(g.pending) > 0 {
		batch := g.pending
		g.pending = nil
		for _, variant := range batch {
			if cached, ok := container.ProcedureIR(variant); ok {
				g.procedures[variant] = cached
				g.addDependencies(cached.DependedProcedures)
				continue
			}
			proc, err := g.generateProcedure(variant)
			if err != nil {
				return nil, err
			}
			g.procedures[variant] = proc
			container.StoreProcedureIR(variant, proc)
			g.addDependencies(proc.DependedProcedures)
		}
	}

	passes := 1
	for g.analyzeScript(entry) {
		passes++
	}
	slog.Debug("suspension analysis converged",
		"top_block", topBlockID,
		"procedures", len(g.procedures),
		"passes", passes,
	)

	return &ir.Representation{Entry: entry, Procedures: g.procedures}, nil
}

func (g *generator) generateProcedure(variant string) (*ir.Script, error) {
	b := NewScriptBuilder(g.reg, g.ctx)
	if err := b.SetProcedureVariant(variant); err != nil {
		return nil, err
	}
	definition := b.container.ProcedureDefinition(b.script.ProcedureCode)
	return b.Generate(definition)
}

// analyzeScript marks script as suspending when a procedure it calls may
// suspend, analyzing callees first. Procedures already on the analysis
// path are not entered again, so recursion terminates; the caller repeats
// the analysis until nothing changes.
func (g *generator) analyzeScript(script *ir.Script) bool {
	changed := false
	for _, variant := range script.DependedProcedures {
		proc, ok := g.procedures[variant]
		if !ok {
			continue
		}
		if !slices.Contains(g.analyzing, variant) {
			g.analyzing = append(g.analyzing, variant)
			if g.analyzeScript(proc) {
				changed = true
			}
			g.analyzing = g.analyzing[:len(g.analyzing)-1]
		}
		if proc.Yields && !script.Yields {
			script.Yields = true
			changed = true
		}
	}
	return changed
}
