package engine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/blockjit/internal/blocks"
	"github.com/roach88/blockjit/internal/ir"
)

func TestCompareEqual(t *testing.T) {
	nan := ir.Number(math.NaN())
	tests := []struct {
		name string
		a, b ir.Value
		want bool
	}{
		{"numbers", ir.Number(1), ir.Number(1), true},
		{"number and numeric text", ir.Number(1), ir.String("1.0"), true},
		{"zero is not empty text", ir.Number(0), ir.String(""), false},
		{"empty text is not zero", ir.String(""), ir.Number(0), false},
		{"blank text is not zero", ir.String(" "), ir.Number(0), false},
		{"tab reads as zero", ir.String("\t"), ir.Number(0), true},
		{"text ignores case", ir.String("Apple"), ir.String("aPPLE"), true},
		{"NaN equals NaN", nan, nan, true},
		{"NaN equals its text", nan, ir.String("NaN"), true},
		{"bool and text", ir.Bool(true), ir.String("true"), true},
		{"bool and one", ir.Bool(true), ir.Number(1), true},
		{"empty strings", ir.String(""), ir.String(""), true},
		{"distinct text", ir.String("a"), ir.String("b"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CompareEqual(tt.a, tt.b))
		})
	}
}

func TestCompareOrdering(t *testing.T) {
	tests := []struct {
		name        string
		a, b        ir.Value
		greater     bool
		less        bool
	}{
		{"numbers", ir.Number(10), ir.Number(9), true, false},
		{"numeric text", ir.String("10"), ir.String("9"), true, false},
		{"text is case-insensitive", ir.String("a"), ir.String("B"), false, true},
		{"empty text sorts as text", ir.String(""), ir.Number(1), false, true},
		{"equal numbers", ir.Number(2), ir.String("2"), false, false},
		{"infinity", ir.String("Infinity"), ir.Number(1e308), true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.greater, CompareGreaterThan(tt.a, tt.b), ">")
			assert.Equal(t, tt.less, CompareLessThan(tt.a, tt.b), "<")
		})
	}
}

func TestTan(t *testing.T) {
	assert.True(t, math.IsInf(Tan(90), 1))
	assert.True(t, math.IsInf(Tan(-270), 1))
	assert.True(t, math.IsInf(Tan(270), -1))
	assert.True(t, math.IsInf(Tan(-90), -1))
	assert.Equal(t, 1.0, Tan(45))
	assert.Equal(t, 0.0, Tan(180)+0)
}

func TestLimitPrecision(t *testing.T) {
	assert.Equal(t, 1.0, LimitPrecision(0.9999999999))
	assert.Equal(t, 0.5, LimitPrecision(0.5))
	assert.Equal(t, -3.0, LimitPrecision(-3.0000000001))
}

// =============================================================================
// Lists
// =============================================================================

func listExec(t *testing.T) *Exec {
	t.Helper()
	r := newRig(t)
	return &Exec{Thread: newThread(r.engine, "t", r.cat, "top", false)}
}

func listOf(items ...ir.Value) *blocks.Variable {
	return &blocks.Variable{Name: "L", Type: blocks.VariableList, List: items}
}

func TestListIndex(t *testing.T) {
	x := listExec(t)
	tests := []struct {
		name string
		idx  ir.Value
		want int
	}{
		{"first", ir.Number(1), 0},
		{"truncated", ir.Number(2.9), 1},
		{"zero", ir.Number(0), -1},
		{"past end", ir.Number(4), -1},
		{"last", ir.String("last"), 2},
		{"numeric text", ir.String("3"), 2},
		{"junk", ir.String("x"), -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ListIndex(x, tt.idx, 3))
		})
	}

	i := ListIndex(x, ir.String("random"), 3)
	assert.GreaterOrEqual(t, i, 0)
	assert.Less(t, i, 3)
	assert.Equal(t, -1, ListIndex(x, ir.String("any"), 0))
}

func TestListMutation(t *testing.T) {
	x := listExec(t)
	l := listOf(ir.String("a"), ir.String("b"))

	listInsert(x, l, ir.Number(3), ir.String("c"))
	listInsert(x, l, ir.Number(1), ir.String("z"))
	assert.Equal(t, []ir.Value{ir.String("z"), ir.String("a"), ir.String("b"), ir.String("c")}, l.List)

	listReplace(x, l, ir.String("last"), ir.String("d"))
	listDelete(x, l, ir.Number(2))
	assert.Equal(t, []ir.Value{ir.String("z"), ir.String("b"), ir.String("d")}, l.List)

	listInsert(x, l, ir.Number(9), ir.String("nope"))
	assert.Len(t, l.List, 3)

	assert.Equal(t, ir.String("b"), listGet(x, l.List, ir.Number(2)))
	assert.Equal(t, ir.String(""), listGet(x, l.List, ir.Number(9)))

	listDelete(x, l, ir.String("all"))
	assert.Empty(t, l.List)
}

func TestListSearch(t *testing.T) {
	l := listOf(ir.String("Apple"), ir.Number(2), ir.String("2"))

	assert.True(t, ListContains(l, ir.String("apple")))
	assert.False(t, ListContains(l, ir.String("pear")))
	assert.Equal(t, 2.0, ListIndexOf(l, ir.String("2")))
	assert.Equal(t, 0.0, ListIndexOf(l, ir.String("")))
}

func TestListContents(t *testing.T) {
	assert.Equal(t, "abc", ListContents(listOf(ir.String("a"), ir.String("b"), ir.String("c"))))
	assert.Equal(t, "1 22 3", ListContents(listOf(ir.Number(1), ir.Number(22), ir.Number(3))))
	assert.Equal(t, "é!", ListContents(listOf(ir.String("é"), ir.String("!"))))
	assert.Equal(t, "", ListContents(listOf()))
}

func TestRandom_SeededAndInRange(t *testing.T) {
	x := listExec(t)
	for i := 0; i < 200; i++ {
		n := randomInt(x, 1, 6)
		require.GreaterOrEqual(t, n, 1.0)
		require.LessOrEqual(t, n, 6.0)
		require.Equal(t, math.Floor(n), n)

		f := randomFloat(x, 0.5, 1.5)
		require.GreaterOrEqual(t, f, 0.5)
		require.Less(t, f, 1.5)
	}
}
