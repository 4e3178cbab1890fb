package ir

import (
	"math"
	"strings"
)

// Type is a possibility-space bitmask: each set bit is a representation
// the value might have at runtime. A type is always a superset of what can
// happen, so optimizations may rely on a bit being absent but never on a
// bit being present.
type Type uint32

// Exclusive subsets.
const (
	TypeNumberPosInf   Type = 0x001
	TypeNumberPosInt   Type = 0x002
	TypeNumberPosFract Type = 0x004
	TypeNumberZero     Type = 0x008
	TypeNumberNegZero  Type = 0x010
	TypeNumberNegInt   Type = 0x020
	TypeNumberNegFract Type = 0x040
	TypeNumberNegInf   Type = 0x080
	TypeNumberNaN      Type = 0x100

	TypeStringNum     Type = 0x200
	TypeStringNaN     Type = 0x400
	TypeStringBoolean Type = 0x800

	TypeBoolean Type = 0x1000
	TypeColor   Type = 0x2000
)

// Named unions.
const (
	TypeNumberPosReal Type = TypeNumberPosInt | TypeNumberPosFract
	TypeNumberNegReal Type = TypeNumberNegInt | TypeNumberNegFract
	TypeNumberAnyZero Type = TypeNumberZero | TypeNumberNegZero
	TypeNumberInf     Type = TypeNumberPosInf | TypeNumberNegInf
	TypeNumberPos     Type = TypeNumberPosReal | TypeNumberPosInf
	TypeNumberNeg     Type = TypeNumberNegReal | TypeNumberNegInf
	TypeNumberWhole   Type = TypeNumberPosInt | TypeNumberZero
	TypeNumberInt     Type = TypeNumberPosInt | TypeNumberAnyZero | TypeNumberNegInt
	TypeNumberIndex   Type = TypeNumberInt | TypeNumberInf | TypeNumberNaN
	TypeNumberFract   Type = TypeNumberPosFract | TypeNumberNegFract
	TypeNumberReal    Type = TypeNumberPosReal | TypeNumberAnyZero | TypeNumberNegReal
	TypeNumber        Type = TypeNumberReal | TypeNumberInf
	TypeNumberOrNaN   Type = TypeNumber | TypeNumberNaN

	// TypeNumberInterpretable holds every value whose numeric reading is
	// the same whether it is compared as a number or coerced first.
	TypeNumberInterpretable Type = TypeNumber | TypeStringNum | TypeBoolean

	TypeString               Type = TypeStringNum | TypeStringNaN | TypeStringBoolean
	TypeBooleanInterpretable Type = TypeBoolean | TypeStringBoolean

	TypeAny Type = TypeNumberOrNaN | TypeString | TypeBoolean
)

// NumberType returns the narrowest lattice type of f.
func NumberType(f float64) Type {
	switch {
	case math.IsNaN(f):
		return TypeNumberNaN
	case f == 0:
		if math.Signbit(f) {
			return TypeNumberNegZero
		}
		return TypeNumberZero
	case math.IsInf(f, 1):
		return TypeNumberPosInf
	case math.IsInf(f, -1):
		return TypeNumberNegInf
	case f > 0:
		if f == math.Trunc(f) {
			return TypeNumberPosInt
		}
		return TypeNumberPosFract
	default:
		if f == math.Trunc(f) {
			return TypeNumberNegInt
		}
		return TypeNumberNegFract
	}
}

// Has reports whether every possibility of t is also a possibility of u.
// The empty type is never contained so that "always" implies "sometimes".
func (t Type) Has(u Type) bool {
	return t != 0 && t&^u == 0
}

// Overlaps reports whether t and u share any possibility.
func (t Type) Overlaps(u Type) bool {
	return t&u != 0
}

var typeNames = []struct {
	t    Type
	name string
}{
	{TypeAny, "ANY"},
	{TypeNumberOrNaN, "NUMBER_OR_NAN"},
	{TypeNumber, "NUMBER"},
	{TypeString, "STRING"},
	{TypeNumberPosInf, "POS_INF"},
	{TypeNumberPosInt, "POS_INT"},
	{TypeNumberPosFract, "POS_FRACT"},
	{TypeNumberZero, "ZERO"},
	{TypeNumberNegZero, "NEG_ZERO"},
	{TypeNumberNegInt, "NEG_INT"},
	{TypeNumberNegFract, "NEG_FRACT"},
	{TypeNumberNegInf, "NEG_INF"},
	{TypeNumberNaN, "NAN"},
	{TypeStringNum, "STRING_NUM"},
	{TypeStringNaN, "STRING_NAN"},
	{TypeStringBoolean, "STRING_BOOLEAN"},
	{TypeBoolean, "BOOLEAN"},
	{TypeColor, "COLOR"},
}

// String renders t as a union of the largest named subsets.
func (t Type) String() string {
	if t == 0 {
		return "NONE"
	}
	var parts []string
	rest := t
	for _, n := range typeNames {
		if rest&n.t == n.t {
			parts = append(parts, n.name)
			rest &^= n.t
		}
	}
	return strings.Join(parts, "|")
}
