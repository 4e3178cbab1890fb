package ir

import "math"

// Pow is exponentiation with host semantics. It differs from math.Pow only
// where the host yields NaN: a base of ±1 with an infinite exponent, and a
// NaN exponent with any base.
func Pow(x, y float64) float64 {
	if math.IsNaN(y) {
		return math.NaN()
	}
	if math.IsInf(y, 0) && (x == 1 || x == -1) {
		return math.NaN()
	}
	return math.Pow(x, y)
}

// Rem is the truncated remainder operator.
func Rem(x, y float64) float64 {
	return math.Mod(x, y)
}

// Mod is the floored modulo used by the mod block: the result takes the
// sign of the divisor.
func Mod(x, y float64) float64 {
	r := math.Mod(x, y)
	if r/y < 0 {
		r += y
	}
	return r
}

// Round rounds half up, toward positive infinity.
func Round(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	r := math.Floor(x)
	if x-r >= 0.5 {
		r++
	}
	if r == 0 && math.Signbit(x) {
		return math.Copysign(0, -1)
	}
	return r
}
