package codegen

import (
	"fmt"
	"strings"

	"github.com/roach88/blockjit/internal/engine"
	"github.com/roach88/blockjit/internal/ir"
)

// Operand names of procedure call nodes.
const (
	ProcedureCode      = "code"
	ProcedureVariant   = "variant"
	ProcedureArguments = "arguments"
)

type procedureCall struct {
	variant string
	target  *ir.Script
	args    []Expr
	// recursive is set for a call to the unit's own procedure outside warp
	// mode. Such calls suspend first so that recursion cannot starve the
	// scheduler.
	recursive bool
}

func (g *Generator) resolveProcedureCall(args ir.Args) procedureCall {
	code := args.String(ProcedureCode)
	variant := args.String(ProcedureVariant)
	var target *ir.Script
	if g.rep != nil {
		target = g.rep.Procedures[variant]
	}
	if target == nil {
		g.Fail(ErrCodeInvariant, "procedure %s was called but never compiled", variant)
	}
	return procedureCall{
		variant:   variant,
		target:    target,
		recursive: !g.isWarp && code == g.script.ProcedureCode,
	}
}

func (g *Generator) lowerArguments(args ir.Args) ([]Expr, string) {
	inputs := args.Inputs(ProcedureArguments)
	exprs := make([]Expr, len(inputs))
	srcs := make([]string, len(inputs))
	for i, in := range inputs {
		exprs[i] = g.Input(in)
		srcs[i] = exprs[i].Src
	}
	return exprs, strings.Join(srcs, ",")
}

func evalArguments(x *engine.Exec, exprs []Expr) []ir.Value {
	values := make([]ir.Value, len(exprs))
	for i, e := range exprs {
		values[i] = e.Eval(x)
	}
	return values
}

func procedureReference(variant string) string {
	return fmt.Sprintf("thread.procedures[%s]", StringLiteral(variant))
}

// procedureCallStack lowers a procedure call used as a statement. Calls
// to procedures with no body are dropped.
func (g *Generator) procedureCallStack(args ir.Args) engine.Stmt {
	call := g.resolveProcedureCall(args)
	if call.target.Stack == nil {
		return next
	}

	var pre Action
	if call.recursive {
		pre = g.YieldNotWarp()
	}
	prefix := ""
	if call.target.Yields {
		prefix = "yield* "
		if !g.script.Yields {
			g.Fail(ErrCodeInvariant, "Script uses yielding procedure but is not marked as yielding.")
		}
	}
	exprs, joined := g.lowerArguments(args)
	g.Line("%s%s(%s);", prefix, procedureReference(call.variant), joined)

	variant := call.variant
	return func(x *engine.Exec) engine.Flow {
		pre.Run(x)
		x.Call(variant, evalArguments(x, exprs))
		return engine.FlowNext
	}
}

// procedureCallInput lowers a procedure call used as a reporter. A
// recursive call, or any call inside a hat condition, evaluates its
// arguments, suspends once and only then calls.
func (g *Generator) procedureCallInput(args ir.Args) Expr {
	call := g.resolveProcedureCall(args)
	if call.target.Stack == nil {
		return Const(`""`, ir.String(""))
	}

	exprs, joined := g.lowerArguments(args)
	ref := procedureReference(call.variant)
	variant := call.variant

	if call.recursive || g.isInHat {
		helper := "yieldThenCall"
		if call.target.Yields {
			helper = "yieldThenCallGenerator"
		}
		g.yielded()
		return Expr{
			Src: fmt.Sprintf("(yield* %s(%s, %s))", helper, ref, joined),
			Eval: func(x *engine.Exec) ir.Value {
				values := evalArguments(x, exprs)
				x.Yield()
				return x.Call(variant, values)
			},
		}
	}

	src := fmt.Sprintf("%s(%s)", ref, joined)
	if call.target.Yields {
		if !g.script.Yields {
			g.Fail(ErrCodeInvariant, "Script uses yielding procedure but is not marked as yielding.")
		}
		src = fmt.Sprintf("(yield* %s)", src)
	}
	return Expr{
		Src: src,
		Eval: func(x *engine.Exec) ir.Value {
			return x.Call(variant, evalArguments(x, exprs))
		},
	}
}
