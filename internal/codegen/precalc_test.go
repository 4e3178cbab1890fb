package codegen

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/blockjit/internal/ir"
)

func str(s string) *ir.Input { return ir.NewConstant(ir.String(s)) }
func num(f float64) *ir.Input { return ir.NewConstant(ir.Number(f)) }
func operator(op ir.InputOpcode, l, r *ir.Input) *ir.Input {
	return ir.NewInput(op, ir.TypeAny, ir.Args{"left": l, "right": r}, false)
}

func TestPrecalc_Values(t *testing.T) {
	tests := []struct {
		name  string
		op    ir.InputOpcode
		left  *ir.Input
		right *ir.Input
		want  ir.Value
	}{
		{"add", OpAdd, num(2), num(3), ir.Number(5)},
		{"join", OpJoin, str("a"), str("b"), ir.String("ab")},
		{"join numbers", OpJoin, num(1), num(2), ir.String("12")},
		{"multiply numeric text", OpMultiply, str("2"), str("3"), ir.Number(6)},
		{"divide by zero", OpDivide, num(1), num(0), ir.Number(math.Inf(1))},
		{"exponent", OpExponent, num(2), num(10), ir.Number(1024)},
		{"blank text is zero", OpAdd, str(""), num(4), ir.Number(4)},
		{"padded text", OpSubtract, str(" 7 "), num(2), ir.Number(5)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Precalc(tt.op, tt.left, tt.right)
			require.True(t, ok)
			v, ok := got.Constant()
			require.True(t, ok)
			assert.Equal(t, tt.want, v)
		})
	}
}

func TestPrecalc_NaNIsPreserved(t *testing.T) {
	got, ok := Precalc(OpSubtract, str("x"), num(1))
	require.True(t, ok)

	v, _ := got.Constant()
	n, isNum := v.(ir.Number)
	require.True(t, isNum, "result should stay a number")
	assert.True(t, math.IsNaN(float64(n)))
	assert.Equal(t, ir.TypeNumberNaN, got.Type)
}

func TestPrecalc_DefersNonConstants(t *testing.T) {
	arg := ir.NewInput(ir.InputProcedureArg, ir.TypeAny, ir.Args{"index": 0}, false)

	_, ok := Precalc(OpAdd, arg, num(1))
	assert.False(t, ok)

	_, ok = Precalc("operator.mod", num(5), num(2))
	assert.False(t, ok, "only the listed operators fold")
}

func TestFold_Chains(t *testing.T) {
	// ((1 + 2) * 4) joined with "x"
	sum := operator(OpAdd, num(1), num(2))
	product := operator(OpMultiply, sum, num(4))
	joined := operator(OpJoin, product.ToType(ir.TypeString), str("x"))

	got, ok := Fold(joined)
	require.True(t, ok)
	v, _ := got.Constant()
	assert.Equal(t, ir.String("12x"), v)

	// The original nodes are untouched.
	assert.Equal(t, OpAdd, sum.Opcode)
	assert.Equal(t, OpJoin, joined.Opcode)
}

func TestFold_StopsAtRuntimeValues(t *testing.T) {
	arg := ir.NewInput(ir.InputProcedureArg, ir.TypeAny, ir.Args{"index": 0}, false)
	_, ok := Fold(operator(OpAdd, operator(OpAdd, num(1), num(2)), arg))
	assert.False(t, ok)
}

func TestLower_FoldsBeforeLowering(t *testing.T) {
	g := newGenerator(&ir.Script{TopBlockID: "top"}, nil, nil)

	e := g.Input(operator(OpDivide, num(1), num(0)))
	assert.Equal(t, "Infinity", e.Src)
	assert.Equal(t, ir.Number(math.Inf(1)), e.Eval(nil))

	e = g.Input(operator(OpSubtract, str("x"), num(1)))
	assert.Equal(t, "NaN", e.Src)
}
