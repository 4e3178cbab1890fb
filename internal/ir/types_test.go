package ir

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Lattice constants
// =============================================================================

func TestType_ExclusiveSubsetsAreDisjoint(t *testing.T) {
	exclusive := []Type{
		TypeNumberPosInf, TypeNumberPosInt, TypeNumberPosFract, TypeNumberZero,
		TypeNumberNegZero, TypeNumberNegInt, TypeNumberNegFract, TypeNumberNegInf,
		TypeNumberNaN, TypeStringNum, TypeStringNaN, TypeStringBoolean,
		TypeBoolean, TypeColor,
	}
	var seen Type
	for _, e := range exclusive {
		assert.False(t, seen.Overlaps(e), "subset %s overlaps an earlier one", e)
		seen |= e
	}
}

func TestType_NamedUnions(t *testing.T) {
	assert.True(t, TypeNumberPosReal.Has(TypeNumber))
	assert.True(t, TypeNumberInt.Has(TypeNumberIndex))
	assert.True(t, TypeNumber.Has(TypeNumberOrNaN))
	assert.False(t, TypeNumberNaN.Has(TypeNumber))
	assert.True(t, TypeStringNum.Has(TypeNumberInterpretable))
	assert.False(t, TypeStringNaN.Has(TypeNumberInterpretable))
	assert.True(t, TypeBoolean.Has(TypeBooleanInterpretable))
	assert.False(t, TypeColor.Overlaps(TypeAny))
}

func TestType_EmptyIsNeverContained(t *testing.T) {
	assert.False(t, Type(0).Has(TypeAny))
}

func TestNumberType(t *testing.T) {
	tests := []struct {
		in   float64
		want Type
	}{
		{3, TypeNumberPosInt},
		{0.5, TypeNumberPosFract},
		{0, TypeNumberZero},
		{math.Copysign(0, -1), TypeNumberNegZero},
		{-4, TypeNumberNegInt},
		{-0.25, TypeNumberNegFract},
		{math.Inf(1), TypeNumberPosInf},
		{math.Inf(-1), TypeNumberNegInf},
		{math.NaN(), TypeNumberNaN},
	}
	for _, tt := range tests {
		t.Run(tt.want.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, NumberType(tt.in))
		})
	}
}

func TestType_String(t *testing.T) {
	assert.Equal(t, "ANY", TypeAny.String())
	assert.Equal(t, "NUMBER", TypeNumber.String())
	assert.Equal(t, "POS_INT|ZERO", (TypeNumberPosInt | TypeNumberZero).String())
	assert.Equal(t, "STRING|BOOLEAN", (TypeString | TypeBoolean).String())
	assert.Equal(t, "NONE", Type(0).String())
}

// =============================================================================
// Soundness
// =============================================================================

// latticeSamples covers constants of every representation plus opaque
// nodes of every named type.
func latticeSamples() []*Input {
	samples := []*Input{
		NewConstant(Number(0)),
		NewConstant(Number(math.Copysign(0, -1))),
		NewConstant(Number(7)),
		NewConstant(Number(-2.5)),
		NewConstant(Number(math.Inf(1))),
		NewConstant(Number(math.NaN())),
		NewConstant(String("")),
		NewConstant(String("12")),
		NewConstant(String(" 4 ")),
		NewConstant(String("hello")),
		NewConstant(String("true")),
		NewConstant(String("#ff8800")),
		NewConstant(Bool(true)),
		NewConstant(Bool(false)),
		NewConstant(Color{1, 2, 3}),
	}
	for _, typ := range []Type{
		TypeAny, TypeNumber, TypeNumberOrNaN, TypeNumberIndex, TypeNumberNaN,
		TypeString, TypeStringNum, TypeBooleanInterpretable, TypeBoolean,
		TypeColor, TypeNumberPosInt | TypeStringNaN,
	} {
		samples = append(samples, NewInput("test.opaque", typ, nil, false))
	}
	return samples
}

func TestLattice_AlwaysImpliesSometimes(t *testing.T) {
	for _, in := range latticeSamples() {
		for _, target := range append(CastTargets(), TypeNumberInterpretable, TypeStringNaN, TypeAny) {
			if in.IsAlwaysType(target) {
				assert.True(t, in.IsSometimesType(target), "%s always %s but not sometimes", in.Type, target)
			}
		}
	}
}

func TestLattice_ToTypeIsSoundAndIdempotent(t *testing.T) {
	for _, in := range latticeSamples() {
		for _, target := range CastTargets() {
			cast := in.ToType(target)
			require.NotNil(t, cast)
			assert.True(t, cast.IsAlwaysType(target), "%s -> %s gave %s", in.Type, target, cast.Type)
			assert.Same(t, cast, cast.ToType(target), "%s -> %s not idempotent", in.Type, target)
		}
	}
}

func TestLattice_ToTypeNeverMutatesSource(t *testing.T) {
	in := NewInput("test.opaque", TypeAny, nil, true)
	cast := in.ToType(TypeNumber)
	assert.NotSame(t, in, cast)
	assert.Equal(t, TypeAny, in.Type)
	assert.Equal(t, InputCastNumber, cast.Opcode)
	assert.Same(t, in, cast.Args.Input("target"))
	assert.True(t, cast.Yields, "a cast inherits the suspension bit of its operand")
}
