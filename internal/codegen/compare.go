package codegen

import (
	"fmt"

	"github.com/roach88/blockjit/internal/engine"
	"github.com/roach88/blockjit/internal/ir"
)

// Comparisons pick the cheapest form the operand types allow. Each tier
// must give the same answer as the runtime comparison helpers for every
// value the types admit.

const numberOrNaNInterpretable = ir.TypeNumberInterpretable | ir.TypeNumberNaN

// isSafeInputForEqualsOptimization reports whether in is a constant that
// can always be compared to other as a number. Zero is unsafe when other
// may be blank or boolean text, since "" reads as 0 but does not equal it,
// or NaN, which the number cast turns into 0.
func isSafeInputForEqualsOptimization(in, other *ir.Input) bool {
	v, ok := in.Constant()
	if !ok {
		return false
	}
	if !in.IsAlwaysType(ir.TypeNumber) && !in.IsAlwaysType(ir.TypeStringNum) {
		return false
	}
	if other.IsSometimesType(ir.TypeStringNaN | ir.TypeBooleanInterpretable | ir.TypeNumberNaN) {
		return ir.ToNumberOrNaN(v) != 0
	}
	return true
}

func neverNumeric(left, right *ir.Input) bool {
	return !left.IsSometimesType(ir.TypeNumberInterpretable) || !right.IsSometimesType(ir.TypeNumberInterpretable)
}

type numberCompare func(a, b float64) bool

func (g *Generator) numeric(left, right *ir.Input, lt, rt ir.Type, op string, negate bool, cmp numberCompare) Expr {
	l := g.Input(left.ToType(lt))
	r := g.Input(right.ToType(rt))
	src := fmt.Sprintf("(%s %s %s)", l.Src, op, r.Src)
	if negate {
		src = "!" + src
	}
	a, b := l.Number(), r.Number()
	return BoolExpr(src, func(x *engine.Exec) bool {
		return cmp(a(x), b(x)) != negate
	})
}

func (g *Generator) textual(left, right *ir.Input, op string, cmp func(a, b string) bool) Expr {
	l := g.Input(left.ToType(ir.TypeString))
	r := g.Input(right.ToType(ir.TypeString))
	a, b := l.Text(), r.Text()
	return BoolExpr(
		fmt.Sprintf("(%s.toLowerCase() %s %s.toLowerCase())", l.Src, op, r.Src),
		func(x *engine.Exec) bool { return cmp(ir.Lower(a(x)), ir.Lower(b(x))) },
	)
}

func (g *Generator) fallback(left, right *ir.Input, helper string, negate bool, pick func(h *engine.Helpers) func(a, b ir.Value) bool) Expr {
	l := g.Input(left)
	r := g.Input(right)
	g.UseHelper(helper)
	src := fmt.Sprintf("%s(%s, %s)", helper, l.Src, r.Src)
	if negate {
		src = "!" + src
	}
	a, b := l.Eval, r.Eval
	return BoolExpr(src, func(x *engine.Exec) bool {
		return pick(x.Helpers())(a(x), b(x)) != negate
	})
}

func pickEqual(h *engine.Helpers) func(a, b ir.Value) bool       { return h.CompareEqual }
func pickGreaterThan(h *engine.Helpers) func(a, b ir.Value) bool { return h.CompareGreaterThan }
func pickLessThan(h *engine.Helpers) func(a, b ir.Value) bool    { return h.CompareLessThan }

// Equals lowers left = right.
func (g *Generator) Equals(left, right *ir.Input) Expr {
	eq := func(a, b float64) bool { return a == b }
	if left.IsAlwaysType(ir.TypeNumberInterpretable) && right.IsAlwaysType(ir.TypeNumberInterpretable) {
		return g.numeric(left, right, ir.TypeNumber, ir.TypeNumber, "===", false, eq)
	}
	if isSafeInputForEqualsOptimization(left, right) || isSafeInputForEqualsOptimization(right, left) {
		return g.numeric(left, right, ir.TypeNumber, ir.TypeNumber, "===", false, eq)
	}
	if neverNumeric(left, right) {
		return g.textual(left, right, "===", func(a, b string) bool { return a == b })
	}
	return g.fallback(left, right, engine.HelperCompareEqual, false, pickEqual)
}

// GreaterThan lowers left > right.
func (g *Generator) GreaterThan(left, right *ir.Input) Expr {
	if left.IsAlwaysType(ir.TypeNumberInterpretable) && right.IsAlwaysType(numberOrNaNInterpretable) {
		return g.numeric(left, right, ir.TypeNumber, ir.TypeNumberOrNaN, ">", false,
			func(a, b float64) bool { return a > b })
	}
	if left.IsAlwaysType(numberOrNaNInterpretable) && right.IsAlwaysType(ir.TypeNumberInterpretable) {
		return g.numeric(left, right, ir.TypeNumberOrNaN, ir.TypeNumber, "<=", true,
			func(a, b float64) bool { return a <= b })
	}
	if neverNumeric(left, right) {
		return g.textual(left, right, ">", func(a, b string) bool { return a > b })
	}
	return g.fallback(left, right, engine.HelperCompareGreaterThan, false, pickGreaterThan)
}

// LessThan lowers left < right.
func (g *Generator) LessThan(left, right *ir.Input) Expr {
	if left.IsAlwaysType(numberOrNaNInterpretable) && right.IsAlwaysType(ir.TypeNumberInterpretable) {
		return g.numeric(left, right, ir.TypeNumberOrNaN, ir.TypeNumber, "<", false,
			func(a, b float64) bool { return a < b })
	}
	if left.IsAlwaysType(ir.TypeNumberInterpretable) && right.IsAlwaysType(numberOrNaNInterpretable) {
		return g.numeric(left, right, ir.TypeNumber, ir.TypeNumberOrNaN, ">=", true,
			func(a, b float64) bool { return a >= b })
	}
	if neverNumeric(left, right) {
		return g.textual(left, right, "<", func(a, b string) bool { return a < b })
	}
	return g.fallback(left, right, engine.HelperCompareLessThan, false, pickLessThan)
}

// GreaterOrEqual lowers left >= right as the negation of left < right.
func (g *Generator) GreaterOrEqual(left, right *ir.Input) Expr {
	if left.IsAlwaysType(ir.TypeNumberInterpretable) && right.IsAlwaysType(numberOrNaNInterpretable) {
		return g.numeric(left, right, ir.TypeNumber, ir.TypeNumberOrNaN, ">=", false,
			func(a, b float64) bool { return a >= b })
	}
	if left.IsAlwaysType(numberOrNaNInterpretable) && right.IsAlwaysType(ir.TypeNumberInterpretable) {
		return g.numeric(left, right, ir.TypeNumberOrNaN, ir.TypeNumber, "<", true,
			func(a, b float64) bool { return a < b })
	}
	if neverNumeric(left, right) {
		return g.textual(left, right, ">=", func(a, b string) bool { return a >= b })
	}
	return g.fallback(left, right, engine.HelperCompareLessThan, true, pickLessThan)
}

// LessOrEqual lowers left <= right as the negation of left > right.
func (g *Generator) LessOrEqual(left, right *ir.Input) Expr {
	if left.IsAlwaysType(numberOrNaNInterpretable) && right.IsAlwaysType(ir.TypeNumberInterpretable) {
		return g.numeric(left, right, ir.TypeNumberOrNaN, ir.TypeNumber, "<=", false,
			func(a, b float64) bool { return a <= b })
	}
	if left.IsAlwaysType(ir.TypeNumberInterpretable) && right.IsAlwaysType(numberOrNaNInterpretable) {
		return g.numeric(left, right, ir.TypeNumber, ir.TypeNumberOrNaN, ">", true,
			func(a, b float64) bool { return a > b })
	}
	if neverNumeric(left, right) {
		return g.textual(left, right, "<=", func(a, b string) bool { return a <= b })
	}
	return g.fallback(left, right, engine.HelperCompareGreaterThan, true, pickGreaterThan)
}
