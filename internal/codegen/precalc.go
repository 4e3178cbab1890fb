package codegen

import (
	"github.com/roach88/blockjit/internal/ir"
)

// Foldable operator opcodes. Their operands are named "left" and "right".
const (
	OpJoin     ir.InputOpcode = "operator.join"
	OpAdd      ir.InputOpcode = "operator.add"
	OpSubtract ir.InputOpcode = "operator.subtract"
	OpMultiply ir.InputOpcode = "operator.multiply"
	OpDivide   ir.InputOpcode = "operator.divide"
	OpExponent ir.InputOpcode = "operator.exponent"
)

var arithmetic = map[ir.InputOpcode]func(a, b float64) float64{
	OpAdd:      func(a, b float64) float64 { return a + b },
	OpSubtract: func(a, b float64) float64 { return a - b },
	OpMultiply: func(a, b float64) float64 { return a * b },
	OpDivide:   func(a, b float64) float64 { return a / b },
	OpExponent: ir.Pow,
}

// Precalc evaluates op over two constant operands. It reports false when
// op is not foldable or either operand is not a constant. Text that does
// not read as a number makes the result NaN.
func Precalc(op ir.InputOpcode, left, right *ir.Input) (*ir.Input, bool) {
	a, ok := left.Constant()
	if !ok {
		return nil, false
	}
	b, ok := right.Constant()
	if !ok {
		return nil, false
	}
	if op == OpJoin {
		return ir.NewConstant(ir.String(ir.ToString(a) + ir.ToString(b))), true
	}
	fn, ok := arithmetic[op]
	if !ok {
		return nil, false
	}
	return ir.NewConstant(ir.Number(fn(ir.ToNumberOrNaN(a), ir.ToNumberOrNaN(b)))), true
}

func isFoldable(op ir.InputOpcode) bool {
	_, ok := arithmetic[op]
	return ok || op == OpJoin
}

func isCast(op ir.InputOpcode) bool {
	switch op {
	case ir.InputCastBoolean, ir.InputCastNumber, ir.InputCastNumberIndex,
		ir.InputCastNumberOrNaN, ir.InputCastString, ir.InputCastColor:
		return true
	}
	return false
}

// Fold reduces a chain of foldable operators, and casts over them, whose
// leaves are all constants. The input is never modified.
func Fold(in *ir.Input) (*ir.Input, bool) {
	switch {
	case in == nil:
		return nil, false
	case isFoldable(in.Opcode):
		left, right := in.Args.Input("left"), in.Args.Input("right")
		if left == nil || right == nil {
			return nil, false
		}
		if f, ok := Fold(left); ok {
			left = f
		}
		if f, ok := Fold(right); ok {
			right = f
		}
		return Precalc(in.Opcode, left, right)
	case isCast(in.Opcode):
		target, ok := Fold(in.Args.Input("target"))
		if !ok {
			return nil, false
		}
		return target.ToType(in.Type), true
	}
	return nil, false
}
