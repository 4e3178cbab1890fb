package codegen

import (
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/roach88/blockjit/internal/engine"
	"github.com/roach88/blockjit/internal/ir"
)

func (g *Generator) coreInput(in *ir.Input) Expr {
	args := in.Args
	switch in.Opcode {
	case ir.InputNop:
		return Const(`""`, ir.String(""))

	case ir.InputConstant:
		return g.constant(in)

	case ir.InputCastBoolean:
		t := g.Input(args.Input("target"))
		return BoolExpr(fmt.Sprintf("toBoolean(%s)", t.Src), t.Bool())

	case ir.InputCastNumber:
		return g.castNumber(args.Input("target"))

	case ir.InputCastNumberOrNaN:
		t := g.Input(args.Input("target"))
		return NumberExpr(fmt.Sprintf("(+%s)", t.Src), t.Number())

	case ir.InputCastNumberIndex:
		t := g.Input(args.Input("target").ToType(ir.TypeNumberOrNaN))
		n := t.Number()
		return NumberExpr(fmt.Sprintf("(%s | 0)", t.Src), func(x *engine.Exec) float64 {
			return ir.ToInt32(n(x))
		})

	case ir.InputCastString:
		t := g.Input(args.Input("target"))
		return TextExpr(fmt.Sprintf(`("" + %s)`, t.Src), t.Text())

	case ir.InputCastColor:
		t := g.Input(args.Input("target"))
		g.UseHelper(engine.HelperColorToList)
		eval := t.Eval
		return Expr{
			Src: fmt.Sprintf("colorToList(%s)", t.Src),
			Eval: func(x *engine.Exec) ir.Value {
				return x.Helpers().ColorToList(eval(x))
			},
		}

	case ir.InputCompat:
		call := g.compatCall(args, false, "null")
		return Expr{
			Src:  "(" + call.src + ")",
			Eval: func(x *engine.Exec) ir.Value { return call.run(x, nil) },
		}

	case ir.InputProcedureCall:
		return g.procedureCallInput(args)

	case ir.InputProcedureArg:
		i := args.Int("index")
		return Expr{
			Src:  fmt.Sprintf("p%d", i),
			Eval: func(x *engine.Exec) ir.Value { return x.Arg(i) },
		}

	case ir.InputProcedureBoolArg:
		i := args.Int("index")
		return BoolExpr(fmt.Sprintf("toBoolean(p%d)", i), func(x *engine.Exec) bool {
			return ir.ToBoolean(x.Arg(i))
		})
	}

	slog.Warn("unknown input", "opcode", in.Opcode)
	g.Fail(ErrCodeUnknownInput, "Unknown input: %s", in.Opcode)
	return Expr{}
}

// castNumber picks the cheapest coercion the target's type allows. The
// result is never NaN and never negative zero.
func (g *Generator) castNumber(target *ir.Input) Expr {
	if target.IsAlwaysType(ir.TypeBooleanInterpretable) {
		b := g.Input(target.ToType(ir.TypeBoolean))
		f := b.Bool()
		return NumberExpr(fmt.Sprintf("(+%s)", b.Src), func(x *engine.Exec) float64 {
			if f(x) {
				return 1
			}
			return 0
		})
	}
	t := g.Input(target)
	n := t.Number()
	src := fmt.Sprintf("(+%s || 0)", t.Src)
	if target.IsAlwaysType(ir.TypeNumberOrNaN) {
		src = fmt.Sprintf("(%s || 0)", t.Src)
	}
	return NumberExpr(src, func(x *engine.Exec) float64 {
		f := n(x)
		if f == 0 || math.IsNaN(f) {
			return 0
		}
		return f
	})
}

// constant renders a literal. The value must have the representation its
// type promises.
func (g *Generator) constant(in *ir.Input) Expr {
	v, ok := in.Constant()
	if !ok {
		g.Fail(ErrCodeConstant, "constant has no value")
	}
	switch {
	case in.IsAlwaysType(ir.TypeNumberOrNaN):
		n, ok := v.(ir.Number)
		if !ok {
			g.Fail(ErrCodeConstant, "'%s' type constant had %T value. Expected number.", in.Type, v)
		}
		return Const(NumberLiteral(float64(n)), n)
	case in.IsAlwaysType(ir.TypeBoolean):
		b, ok := v.(ir.Bool)
		if !ok {
			g.Fail(ErrCodeConstant, "'%s' type constant had %T value. Expected boolean.", in.Type, v)
		}
		return Const(fmt.Sprint(bool(b)), b)
	case in.IsAlwaysType(ir.TypeColor):
		c, ok := v.(ir.Color)
		if !ok {
			g.Fail(ErrCodeConstant, "'%s' type constant was not a color.", in.Type)
		}
		parts := make([]string, 3)
		for i, f := range c {
			parts[i] = NumberLiteral(f)
		}
		return Const("["+strings.Join(parts, ",")+"]", c)
	case in.IsSometimesType(ir.TypeString):
		s := ir.ToString(v)
		return Const(StringLiteral(s), ir.String(s))
	}
	g.Fail(ErrCodeConstant, "Unknown constant input type '%s'.", in.Type)
	return Expr{}
}
