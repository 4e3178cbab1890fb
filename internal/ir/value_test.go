package ir

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

// =============================================================================
// ParseNumber
// =============================================================================

func TestParseNumber_Grammar(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"", 0},
		{"   ", 0},
		{"42", 42},
		{" 42 ", 42},
		{"\t7\n", 7},
		{"-3.5", -3.5},
		{"+3", 3},
		{".5", 0.5},
		{"5.", 5},
		{"1e3", 1000},
		{"1E-2", 0.01},
		{"0x1f", 31},
		{"0b101", 5},
		{"0o17", 15},
		{"Infinity", math.Inf(1)},
		{"-Infinity", math.Inf(-1)},
		{"1e400", math.Inf(1)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseNumber(tt.in))
		})
	}
}

func TestParseNumber_Invalid(t *testing.T) {
	for _, in := range []string{"x", "1x", "-0x10", "infinity", "1e", ".", "--1", "1 2", "NaN"} {
		t.Run(in, func(t *testing.T) {
			assert.True(t, math.IsNaN(ParseNumber(in)), "expected NaN for %q", in)
		})
	}
}

func TestParseNumber_NegativeZero(t *testing.T) {
	z := ParseNumber("-0")
	assert.Equal(t, 0.0, z)
	assert.True(t, math.Signbit(z))
}

// =============================================================================
// FormatNumber
// =============================================================================

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0"},
		{math.Copysign(0, -1), "0"},
		{5, "5"},
		{-5, "-5"},
		{0.1, "0.1"},
		{1.5, "1.5"},
		{123456789, "123456789"},
		{1e21, "1e+21"},
		{1e20, "100000000000000000000"},
		{0.000001, "0.000001"},
		{1e-7, "1e-7"},
		{1.25e-7, "1.25e-7"},
		{math.NaN(), "NaN"},
		{math.Inf(1), "Infinity"},
		{math.Inf(-1), "-Infinity"},
		{math.Nextafter(0.3, 1), "0.30000000000000004"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatNumber(tt.in))
		})
	}
}

// =============================================================================
// Coercions
// =============================================================================

func TestToBoolean(t *testing.T) {
	falsy := []Value{String(""), String("0"), String("false"), String("FALSE"), Bool(false), Number(0), Number(math.NaN()), nil}
	for _, v := range falsy {
		assert.False(t, ToBoolean(v), "%#v", v)
	}
	truthy := []Value{String("a"), String("00"), String(" "), String("true"), Bool(true), Number(-1), Number(math.Inf(1)), Color{}}
	for _, v := range truthy {
		assert.True(t, ToBoolean(v), "%#v", v)
	}
}

func TestToNumber_NaNBecomesZero(t *testing.T) {
	assert.Equal(t, 0.0, ToNumber(String("abc")))
	assert.True(t, math.IsNaN(ToNumberOrNaN(String("abc"))))
	assert.Equal(t, 1.0, ToNumber(Bool(true)))
	assert.Equal(t, 12.0, ToNumber(String(" 12 ")))
}

func TestToString(t *testing.T) {
	assert.Equal(t, "", ToString(nil))
	assert.Equal(t, "true", ToString(Bool(true)))
	assert.Equal(t, "2.5", ToString(Number(2.5)))
	assert.Equal(t, "255,0,16", ToString(Color{255, 0, 16}))
}

func TestToRGB(t *testing.T) {
	assert.Equal(t, Color{255, 0, 0}, ToRGB(String("#ff0000")))
	assert.Equal(t, Color{0x11, 0x22, 0x33}, ToRGB(String("#123")))
	assert.Equal(t, Color{0, 0, 0}, ToRGB(String("#zzz")))
	assert.Equal(t, Color{0, 0xff, 0}, ToRGB(Number(0x00ff00)))
}

// =============================================================================
// Compare
// =============================================================================

func TestCompare(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
		sign int
	}{
		{"numbers", Number(1), Number(2), -1},
		{"numeric strings", String("10"), String("9"), 1},
		{"case insensitive", String("ABC"), String("abc"), 0},
		{"zero vs empty", Number(0), String(""), 1},
		{"empty vs zero", String(""), Number(0), -1},
		{"whitespace vs zero", String(" "), Number(0), -1},
		{"infinities", Number(math.Inf(1)), Number(math.Inf(1)), 0},
		{"bool vs number", Bool(true), Number(1), 0},
		{"nan strings", String("nan"), Number(math.NaN()), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compare(tt.a, tt.b)
			switch tt.sign {
			case -1:
				assert.Less(t, got, 0.0)
			case 1:
				assert.Greater(t, got, 0.0)
			default:
				assert.Equal(t, 0.0, got)
			}
		})
	}
}

func TestLower(t *testing.T) {
	assert.Equal(t, "hello", Lower("HeLLo"))
	assert.Equal(t, "ärger", Lower("ÄRGER"))
	assert.Equal(t, "plain", Lower("plain"))
}

// =============================================================================
// Arithmetic helpers
// =============================================================================

func TestPow_HostSemantics(t *testing.T) {
	assert.True(t, math.IsNaN(Pow(1, math.Inf(1))))
	assert.True(t, math.IsNaN(Pow(-1, math.Inf(-1))))
	assert.True(t, math.IsNaN(Pow(1, math.NaN())))
	assert.Equal(t, 1.0, Pow(math.NaN(), 0))
	assert.Equal(t, 8.0, Pow(2, 3))
}

func TestMod_Floored(t *testing.T) {
	assert.Equal(t, 1.0, Mod(7, 3))
	assert.Equal(t, 2.0, Mod(-7, 3))
	assert.Equal(t, -2.0, Mod(7, -3))
	assert.True(t, math.IsNaN(Mod(1, 0)))
}

func TestRound(t *testing.T) {
	assert.Equal(t, 3.0, Round(2.5))
	assert.Equal(t, -2.0, Round(-2.5))
	assert.Equal(t, 2.0, Round(2.4))
	assert.True(t, math.Signbit(Round(-0.3)))
}
