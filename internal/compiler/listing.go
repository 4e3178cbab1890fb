package compiler

import (
	"slices"

	"github.com/roach88/blockjit/internal/blocks"
	"github.com/roach88/blockjit/internal/engine"
	"github.com/roach88/blockjit/internal/ir"
)

// Listing is one hat script of a target lowered without running it: the
// entry unit first, then every procedure it reaches by variant.
type Listing struct {
	Target         string
	TopBlock       string
	Representation *ir.Representation
	Units          []*engine.Fragment
	Recursion      []RecursionGroup

	// Err is the compile error of the script, if any. Units are empty
	// when it is set.
	Err error
}

// ListTarget lowers every hat script of target, in top block order.
// Failures are reported per script and do not stop the others.
func (c *Compiler) ListTarget(project *blocks.Project, target *blocks.Target) []Listing {
	ctx := BuildContext{
		Target:    target,
		Stage:     project.Stage,
		Assets:    project.AssetNames(),
		WarpTimer: c.opts.WarpTimer,
	}

	var out []Listing
	container := target.Container()
	for _, top := range container.TopBlocks() {
		blk := container.Block(top)
		if _, ok := c.reg.Hat(blk.Opcode); !ok {
			continue
		}
		out = append(out, c.list(ctx, top))
	}
	return out
}

func (c *Compiler) list(ctx BuildContext, top string) Listing {
	l := Listing{Target: ctx.Target.Name, TopBlock: top}

	rep, err := Generate(c.reg, ctx, top)
	if err != nil {
		l.Err = err
		return l
	}
	if errs := ValidateRepresentation(rep); len(errs) > 0 {
		l.Err = &CompileError{Code: ErrCodeInvariant, Message: errs[0].Error(), BlockID: top}
		return l
	}
	l.Representation = rep
	l.Recursion = AnalyzeRecursion(rep)

	entry, err := c.Lower(rep.Entry, rep)
	if err != nil {
		l.Err = err
		return l
	}
	units := []*engine.Fragment{entry}

	variants := make([]string, 0, len(rep.Procedures))
	for v, proc := range rep.Procedures {
		if proc != nil && proc.Stack != nil {
			variants = append(variants, v)
		}
	}
	slices.Sort(variants)
	for _, v := range variants {
		frag, err := c.Lower(rep.Procedures[v], rep)
		if err != nil {
			l.Err = err
			return l
		}
		units = append(units, frag)
	}
	l.Units = units
	return l
}
