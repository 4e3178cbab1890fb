package codegen

import (
	"math"
	"strconv"

	"github.com/roach88/blockjit/internal/engine"
	"github.com/roach88/blockjit/internal/ir"
)

// Expr is a lowered expression: its listing text and its evaluator.
type Expr struct {
	Src  string
	Eval func(x *engine.Exec) ir.Value
}

// Action is a side effect with no control flow, such as a suspension. A
// nil Action does nothing.
type Action func(x *engine.Exec)

// Run performs a, if there is anything to perform.
func (a Action) Run(x *engine.Exec) {
	if a != nil {
		a(x)
	}
}

// Const is an expression that always evaluates to v.
func Const(src string, v ir.Value) Expr {
	return Expr{Src: src, Eval: func(*engine.Exec) ir.Value { return v }}
}

// NumberExpr wraps a float evaluator.
func NumberExpr(src string, f func(x *engine.Exec) float64) Expr {
	return Expr{Src: src, Eval: func(x *engine.Exec) ir.Value { return ir.Number(f(x)) }}
}

// BoolExpr wraps a boolean evaluator.
func BoolExpr(src string, f func(x *engine.Exec) bool) Expr {
	return Expr{Src: src, Eval: func(x *engine.Exec) ir.Value { return ir.Bool(f(x)) }}
}

// TextExpr wraps a string evaluator.
func TextExpr(src string, f func(x *engine.Exec) string) Expr {
	return Expr{Src: src, Eval: func(x *engine.Exec) ir.Value { return ir.String(f(x)) }}
}

// Number reads e as a float. Values that are already numbers pass
// through; anything else is read the way unary plus reads it.
func (e Expr) Number() func(x *engine.Exec) float64 {
	eval := e.Eval
	return func(x *engine.Exec) float64 {
		v := eval(x)
		if n, ok := v.(ir.Number); ok {
			return float64(n)
		}
		return ir.ToNumberOrNaN(v)
	}
}

// Bool reads e as a boolean.
func (e Expr) Bool() func(x *engine.Exec) bool {
	eval := e.Eval
	return func(x *engine.Exec) bool {
		v := eval(x)
		if b, ok := v.(ir.Bool); ok {
			return bool(b)
		}
		return ir.ToBoolean(v)
	}
}

// Text reads e as a string.
func (e Expr) Text() func(x *engine.Exec) string {
	eval := e.Eval
	return func(x *engine.Exec) string {
		v := eval(x)
		if s, ok := v.(ir.String); ok {
			return string(s)
		}
		return ir.ToString(v)
	}
}

// NumberLiteral renders f the way the listing shows number constants.
func NumberLiteral(f float64) string {
	if f == 0 && math.Signbit(f) {
		return "-0"
	}
	return ir.FormatNumber(f)
}

// StringLiteral quotes s for the listing.
func StringLiteral(s string) string {
	return strconv.Quote(s)
}
