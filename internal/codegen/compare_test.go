package codegen

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/blockjit/internal/engine"
	"github.com/roach88/blockjit/internal/ir"
)

func TestEquals_ZeroIsNotEmptyText(t *testing.T) {
	g := newGenerator(&ir.Script{}, nil, nil)

	e := g.Equals(num(0), str(""))
	assert.Equal(t, `("0".toLowerCase() === "".toLowerCase())`, e.Src)
	assert.Equal(t, ir.Bool(false), e.Eval(nil))

	e = g.Equals(str(""), num(0))
	assert.Equal(t, ir.Bool(false), e.Eval(nil))
}

func TestEquals_Tiers(t *testing.T) {
	tests := []struct {
		name  string
		left  *ir.Input
		right *ir.Input
		src   string
	}{
		{"both numeric", num(1), str("1.0"), "(1 === 1)"},
		{"safe constant", num(5), argument(0), "(5 === (+p0 || 0))"},
		{"zero against anything", num(0), argument(0), "compareEqual(0, p0)"},
		{"never numeric", str("apple"), argument(0), `("apple".toLowerCase() === ("" + p0).toLowerCase())`},
		{"unknown", argument(0), argument(1), "compareEqual(p0, p1)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newGenerator(&ir.Script{}, nil, nil)
			assert.Equal(t, tt.src, g.Equals(tt.left, tt.right).Src)
		})
	}
}

func TestOrdering_Tiers(t *testing.T) {
	nan := num(math.NaN())
	type lowerFn func(g *Generator, l, r *ir.Input) Expr
	gt := (*Generator).GreaterThan
	lt := (*Generator).LessThan
	ge := (*Generator).GreaterOrEqual
	le := (*Generator).LessOrEqual

	tests := []struct {
		name  string
		lower lowerFn
		left  *ir.Input
		right *ir.Input
		src   string
		want  bool
	}{
		{"gt numbers", gt, num(3), num(2), "(3 > 2)", true},
		{"gt NaN left", gt, nan, num(2), "!(NaN <= 2)", true},
		{"gt text", gt, str("b"), str("A"), `("b".toLowerCase() > "A".toLowerCase())`, true},
		{"lt numbers", lt, num(2), num(3), "(2 < 3)", true},
		{"lt NaN right", lt, num(2), nan, "!(2 >= NaN)", true},
		{"ge numbers", ge, num(3), num(3), "(3 >= 3)", true},
		{"ge NaN right", ge, num(3), nan, "(3 >= NaN)", false},
		{"ge NaN left", ge, nan, num(3), "!(NaN < 3)", true},
		{"ge text", ge, str("apple"), str("Apple"), `("apple".toLowerCase() >= "Apple".toLowerCase())`, true},
		{"le numbers", le, num(2), num(3), "(2 <= 3)", true},
		{"le NaN left", le, nan, num(3), "(NaN <= 3)", false},
		{"le NaN right", le, num(3), nan, "!(3 > NaN)", true},
		{"le text", le, str("b"), str("a"), `("b".toLowerCase() <= "a".toLowerCase())`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newGenerator(&ir.Script{}, nil, nil)
			e := tt.lower(g, tt.left, tt.right)
			assert.Equal(t, tt.src, e.Src)
			assert.Equal(t, ir.Bool(tt.want), e.Eval(nil))
		})
	}
}

func TestOrdering_FallbackNegatesHelpers(t *testing.T) {
	g := newGenerator(&ir.Script{}, nil, nil)

	assert.Equal(t, "!compareLessThan(p0, p1)", g.GreaterOrEqual(argument(0), argument(1)).Src)
	assert.Equal(t, "!compareGreaterThan(p0, p1)", g.LessOrEqual(argument(0), argument(1)).Src)
	assert.Equal(t, []string{engine.HelperCompareLessThan, engine.HelperCompareGreaterThan}, g.helpers)
}

// The inline tiers must agree with the runtime helpers wherever they apply.
func TestOrdering_AgreesWithRuntime(t *testing.T) {
	values := []ir.Value{
		ir.Number(-1), ir.Number(0), ir.Number(2.5), ir.Number(math.Inf(1)), ir.Number(math.NaN()),
		ir.String("10"), ir.String("abc"), ir.String("ABD"), ir.String(""),
	}
	for _, a := range values {
		for _, b := range values {
			g := newGenerator(&ir.Script{}, nil, nil)
			l, r := ir.NewConstant(a), ir.NewConstant(b)

			if e := g.Equals(l, r); e.Src[0] != 'c' {
				assert.Equal(t, ir.Bool(engine.CompareEqual(a, b)), e.Eval(nil), "%v = %v", a, b)
			}
			if e := g.GreaterThan(l, r); e.Src[0] != 'c' {
				assert.Equal(t, ir.Bool(engine.CompareGreaterThan(a, b)), e.Eval(nil), "%v > %v", a, b)
			}
			if e := g.LessThan(l, r); e.Src[0] != 'c' {
				assert.Equal(t, ir.Bool(engine.CompareLessThan(a, b)), e.Eval(nil), "%v < %v", a, b)
			}
		}
	}
}
