package codegen

import (
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"

	"github.com/roach88/blockjit/internal/blocks"
	"github.com/roach88/blockjit/internal/engine"
	"github.com/roach88/blockjit/internal/ir"
)

// Operand names of compatibility nodes.
const (
	CompatOpcode    = "opcode"
	CompatID        = "id"
	CompatInputs    = "inputs"
	CompatFields    = "fields"
	CompatBlockType = "blockType"
	CompatSubstacks = "substacks"
)

type compiledCompatCall struct {
	src string
	run func(x *engine.Exec, branch *engine.BranchInfo) ir.Value
}

// compatCall lowers one call into the compatibility bridge. Inputs are
// evaluated in name order and fields are passed as strings.
func (g *Generator) compatCall(args ir.Args, useFlags bool, branchName string) compiledCompatCall {
	opcode := args.String(CompatOpcode)
	blockID := args.String(CompatID)
	inputs, _ := args[CompatInputs].(map[string]*ir.Input)
	fields, _ := args[CompatFields].(map[string]string)

	var src strings.Builder
	src.WriteString("yield* executeInCompatibilityLayer({")

	names := make([]string, 0, len(inputs))
	for name := range inputs {
		names = append(names, name)
	}
	slices.Sort(names)
	evals := make([]func(*engine.Exec) ir.Value, len(names))
	for i, name := range names {
		e := g.Input(inputs[name])
		evals[i] = e.Eval
		fmt.Fprintf(&src, "%s:%s,", StringLiteral(name), e.Src)
	}

	fieldNames := make([]string, 0, len(fields))
	for name := range fields {
		fieldNames = append(fieldNames, name)
	}
	slices.Sort(fieldNames)
	fieldValues := make([]ir.Value, len(fieldNames))
	for i, name := range fieldNames {
		fieldValues[i] = ir.String(fields[name])
		fmt.Fprintf(&src, "%s:%s,", StringLiteral(name), StringLiteral(fields[name]))
	}

	primName, slot := g.EvaluateOnce(
		fmt.Sprintf("runtime.getOpcodeFunction(%s)", StringLiteral(opcode)),
		func(th *engine.Thread) any { return lookupPrimitive(th, opcode) },
	)
	warp := g.isWarp
	fmt.Fprintf(&src, "}, %s, %t, %t, %s, %s)", primName, warp, useFlags, StringLiteral(blockID), branchName)

	g.UseHelper(engine.HelperCallCompat)
	return compiledCompatCall{
		src: src.String(),
		run: func(x *engine.Exec, branch *engine.BranchInfo) ir.Value {
			values := make(map[string]ir.Value, len(evals)+len(fieldValues))
			for i, eval := range evals {
				values[names[i]] = eval(x)
			}
			for i, v := range fieldValues {
				values[fieldNames[i]] = v
			}
			return x.Helpers().CallCompat(x, &engine.CompatCall{
				Opcode:    opcode,
				Primitive: x.Slot(slot).(engine.Primitive),
				Args:      values,
				Warp:      warp,
				UseFlags:  useFlags,
				BlockID:   blockID,
				Branch:    branch,
			})
		},
	}
}

func lookupPrimitive(th *engine.Thread, opcode string) engine.Primitive {
	if p, ok := th.Engine().Library().Primitive(opcode); ok && p != nil {
		return p
	}
	slog.Warn("no primitive for compatibility block", "opcode", opcode, "thread", th.ID)
	return func(map[string]ir.Value, *engine.BlockUtility) any { return nil }
}

// compatStack lowers a statement run through the bridge. Commands and hats
// are a single call. Conditionals and loops call the primitive, run the
// branch it started, and call it again while it asks to loop.
//
// A block that is last in a loop body and resumed from a promise restarts
// the loop instead of suspending a second time.
func (g *Generator) compatStack(b *ir.StackBlock) engine.Stmt {
	args := b.Args
	isLastInLoop := g.IsLastBlockInLoop()

	shape, _ := args[CompatBlockType].(blocks.Shape)
	var stmt engine.Stmt
	switch shape {
	case blocks.ShapeCommand, blocks.ShapeHat:
		call := g.compatCall(args, isLastInLoop, "null")
		g.Line("%s;", call.src)
		stmt = func(x *engine.Exec) engine.Flow {
			call.run(x, nil)
			return engine.FlowNext
		}
	case blocks.ShapeConditional, blocks.ShapeLoop:
		stmt = g.compatBranches(args, shape == blocks.ShapeLoop)
	default:
		g.Fail(ErrCodeUnknownStack, "Unknown block type: %s", shape)
	}

	if !isLastInLoop {
		return stmt
	}
	g.Line("if (hasResumedFromPromise) {hasResumedFromPromise = false;continue;}")
	return func(x *engine.Exec) engine.Flow {
		if f := stmt(x); f != engine.FlowNext {
			return f
		}
		if x.Thread.HasResumedFromPromise {
			x.Thread.HasResumedFromPromise = false
			return engine.FlowContinue
		}
		return engine.FlowNext
	}
}

func (g *Generator) compatBranches(args ir.Args, isLoop bool) engine.Stmt {
	branchName := g.Local()
	g.Line("const %s = createBranchInfo(%t);", branchName, isLoop)
	call := g.compatCall(args, false, branchName)
	g.Line("while (%s.branch = +(%s)) {", branchName, call.src)
	g.Indent()
	g.Line("switch (%s.branch) {", branchName)

	substacks, _ := args[CompatSubstacks].(map[int]*ir.Stack)
	indexes := make([]int, 0, len(substacks))
	for i := range substacks {
		indexes = append(indexes, i)
	}
	slices.Sort(indexes)
	branches := make(map[int]engine.Stmt, len(substacks))
	for _, i := range indexes {
		g.Line("case %d: {", i)
		branches[i] = g.Substack(substacks[i], &Frame{})
		g.Indent()
		g.Line("break;")
		g.Dedent()
		g.Line("}")
	}
	g.Line("}")
	g.Line("if (%s.onEnd[0]) yield %s.onEnd.shift()(%s);", branchName, branchName, branchName)
	g.Line("if (!%s.isLoop) break;", branchName)
	yield := g.YieldLoop()
	g.Dedent()
	g.Line("}")

	return func(x *engine.Exec) engine.Flow {
		info := engine.NewBranchInfo(isLoop)
		for {
			n := ir.ToNumberOrNaN(call.run(x, info))
			if n == 0 || math.IsNaN(n) {
				return engine.FlowNext
			}
			info.Branch = int(n)
			if run, ok := branches[info.Branch]; ok {
				switch run(x) {
				case engine.FlowReturn:
					return engine.FlowReturn
				case engine.FlowContinue:
					continue
				}
			}
			if len(info.OnEnd) > 0 {
				fn := info.OnEnd[0]
				info.OnEnd = info.OnEnd[1:]
				fn(info)
				x.Yield()
			}
			if !info.IsLoop {
				return engine.FlowNext
			}
			yield.Run(x)
		}
	}
}

// =============================================================================
// Hats
// =============================================================================

// hatEdge starts an edge-activated hat script: the script only continues
// when the condition went from false to true since the last check.
func (g *Generator) hatEdge(args ir.Args) engine.Stmt {
	g.isInHat = true
	defer func() { g.isInHat = false }()

	g.Line("{")
	g.Indent()
	cond := g.Input(args.Input("condition"))
	id := args.String("id")
	g.Line("const resolvedValue = %s;", cond.Src)
	g.Line("const id = %s;", StringLiteral(id))
	g.Line("const hasOldEdgeValue = target.hasEdgeActivatedValue(id);")
	g.Line("const oldEdgeValue = target.updateEdgeActivatedValue(id, resolvedValue);")
	g.Line("const edgeWasActivated = hasOldEdgeValue ? (!oldEdgeValue && resolvedValue) : resolvedValue;")
	g.Line("if (!edgeWasActivated) {")
	g.Indent()
	retire := g.Retire()
	g.Dedent()
	g.Line("}")
	g.Line("yield;")
	g.Dedent()
	g.Line("}")

	value := cond.Bool()
	return func(x *engine.Exec) engine.Flow {
		v := value(x)
		t := x.Target()
		hadOld := t.HasEdgeValue(id)
		old := t.UpdateEdgeValue(id, v)
		activated := v
		if hadOld {
			activated = !old && v
		}
		if !activated {
			return retire(x)
		}
		x.Yield()
		return engine.FlowNext
	}
}

// hatPredicate starts a hat whose script only continues while the
// condition holds.
func (g *Generator) hatPredicate(args ir.Args) engine.Stmt {
	g.isInHat = true
	defer func() { g.isInHat = false }()

	cond := g.Input(args.Input("condition"))
	g.Line("if (!%s) {", cond.Src)
	g.Indent()
	retire := g.Retire()
	g.Dedent()
	g.Line("}")
	g.Line("yield;")

	value := cond.Bool()
	return func(x *engine.Exec) engine.Flow {
		if !value(x) {
			return retire(x)
		}
		x.Yield()
		return engine.FlowNext
	}
}
