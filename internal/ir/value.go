package ir

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Value is a sealed interface over the runtime value representations.
// Only Number, String, Bool and Color implement it. A nil Value means the
// producer returned nothing (for example a command primitive).
type Value interface {
	value() // Sealed
}

// Number is a double-precision numeric value. NaN, -0 and the infinities
// are all representable and distinguished by the type lattice.
type Number float64

func (Number) value() {}

// String is a text value.
type String string

func (String) value() {}

// Bool is a boolean value.
type Bool bool

func (Bool) value() {}

// Color is an RGB triple with channels in 0..255.
type Color [3]float64

func (Color) value() {}

// ToNumber coerces v to a number the way the block library does:
// unparseable input becomes 0, never NaN.
func ToNumber(v Value) float64 {
	n := ToNumberOrNaN(v)
	if math.IsNaN(n) {
		return 0
	}
	return n
}

// ToNumberOrNaN is unary plus: strings parse with the host grammar and
// anything unparseable is NaN.
func ToNumberOrNaN(v Value) float64 {
	switch x := v.(type) {
	case Number:
		return float64(x)
	case Bool:
		if x {
			return 1
		}
		return 0
	case String:
		return ParseNumber(string(x))
	default:
		return math.NaN()
	}
}

// ToBoolean reports the truthiness of v. Only the empty string, "0",
// "false" in any case, false, zero and NaN are false.
func ToBoolean(v Value) bool {
	switch x := v.(type) {
	case Bool:
		return bool(x)
	case String:
		s := string(x)
		if s == "" || s == "0" {
			return false
		}
		return !strings.EqualFold(s, "false")
	case Number:
		f := float64(x)
		return f != 0 && !math.IsNaN(f)
	case Color:
		return true
	default:
		return false
	}
}

// ToString renders v as text.
func ToString(v Value) string {
	switch x := v.(type) {
	case String:
		return string(x)
	case Number:
		return FormatNumber(float64(x))
	case Bool:
		if x {
			return "true"
		}
		return "false"
	case Color:
		return FormatNumber(x[0]) + "," + FormatNumber(x[1]) + "," + FormatNumber(x[2])
	default:
		return ""
	}
}

// ToRGB converts v to a color. Strings are read as #rgb or #rrggbb,
// numbers as packed 0xRRGGBB.
func ToRGB(v Value) Color {
	switch x := v.(type) {
	case Color:
		return x
	case String:
		s := string(x)
		if strings.HasPrefix(s, "#") {
			if c, ok := hexToRGB(s[1:]); ok {
				return c
			}
			return Color{}
		}
	}
	n := uint32(int64(ToNumber(v)))
	return Color{float64((n >> 16) & 0xff), float64((n >> 8) & 0xff), float64(n & 0xff)}
}

func hexToRGB(h string) (Color, bool) {
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	if len(h) != 6 {
		return Color{}, false
	}
	n, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return Color{}, false
	}
	return Color{float64(n >> 16 & 0xff), float64(n >> 8 & 0xff), float64(n & 0xff)}, true
}

// IsWhiteSpace reports whether v is a string made only of whitespace.
func IsWhiteSpace(v Value) bool {
	if v == nil {
		return true
	}
	s, ok := v.(String)
	return ok && trimSpace(string(s)) == ""
}

// Compare orders two values: numerically when both parse as numbers,
// otherwise case-insensitively as strings. The sign of the result is the
// ordering.
func Compare(a, b Value) float64 {
	n1 := ToNumberOrNaN(a)
	n2 := ToNumberOrNaN(b)
	if n1 == 0 && IsWhiteSpace(a) {
		n1 = math.NaN()
	} else if n2 == 0 && IsWhiteSpace(b) {
		n2 = math.NaN()
	}
	if math.IsNaN(n1) || math.IsNaN(n2) {
		s1 := Lower(ToString(a))
		s2 := Lower(ToString(b))
		switch {
		case s1 < s2:
			return -1
		case s1 > s2:
			return 1
		}
		return 0
	}
	if (math.IsInf(n1, 1) && math.IsInf(n2, 1)) || (math.IsInf(n1, -1) && math.IsInf(n2, -1)) {
		return 0
	}
	return n1 - n2
}

// Lower lowercases s with Unicode default casing rules.
func Lower(s string) string {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 0x80 || ('A' <= c && c <= 'Z') {
			return cases.Lower(language.Und).String(s)
		}
	}
	return s
}

// FormatNumber renders f the way the host prints numbers: integers without
// an exponent up to 1e21, shortest round-trip digits otherwise.
func FormatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		return "0"
	}

	s := strconv.FormatFloat(f, 'e', -1, 64)
	neg := false
	if s[0] == '-' {
		neg = true
		s = s[1:]
	}
	mant, expStr, _ := strings.Cut(s, "e")
	exp, _ := strconv.Atoi(expStr)
	digits := strings.Replace(mant, ".", "", 1)
	k := len(digits)
	n := exp + 1

	var out string
	switch {
	case k <= n && n <= 21:
		out = digits + strings.Repeat("0", n-k)
	case 0 < n && n <= 21:
		out = digits[:n] + "." + digits[n:]
	case -6 < n && n <= 0:
		out = "0." + strings.Repeat("0", -n) + digits
	default:
		e := n - 1
		sign := "+"
		if e < 0 {
			sign = "-"
			e = -e
		}
		if k == 1 {
			out = digits + "e" + sign + strconv.Itoa(e)
		} else {
			out = digits[:1] + "." + digits[1:] + "e" + sign + strconv.Itoa(e)
		}
	}
	if neg {
		out = "-" + out
	}
	return out
}

// ParseNumber parses s with the host's string-to-number grammar. Leading
// and trailing whitespace is ignored, an empty string is 0, and anything
// else that is not a decimal literal, Infinity, or an unsigned 0x/0o/0b
// literal is NaN.
func ParseNumber(s string) float64 {
	s = trimSpace(s)
	if s == "" {
		return 0
	}
	if len(s) > 2 && s[0] == '0' {
		switch s[1] {
		case 'x', 'X':
			return parseRadix(s[2:], 16)
		case 'o', 'O':
			return parseRadix(s[2:], 8)
		case 'b', 'B':
			return parseRadix(s[2:], 2)
		}
	}

	body := s
	sign := 1.0
	if body[0] == '+' || body[0] == '-' {
		if body[0] == '-' {
			sign = -1
		}
		body = body[1:]
	}
	if body == "Infinity" {
		return math.Inf(int(sign))
	}
	if !isDecimalLiteral(body) {
		return math.NaN()
	}
	f, err := strconv.ParseFloat(body, 64)
	if err != nil {
		// Out of range still carries ±Inf or 0, which is what the host yields.
		if !errors.Is(err, strconv.ErrRange) {
			return math.NaN()
		}
	}
	return sign * f
}

func parseRadix(digits string, base int) float64 {
	if digits == "" {
		return math.NaN()
	}
	var f float64
	for _, r := range digits {
		d := digitValue(r)
		if d < 0 || d >= base {
			return math.NaN()
		}
		f = f*float64(base) + float64(d)
	}
	return f
}

func digitValue(r rune) int {
	switch {
	case '0' <= r && r <= '9':
		return int(r - '0')
	case 'a' <= r && r <= 'z':
		return int(r-'a') + 10
	case 'A' <= r && r <= 'Z':
		return int(r-'A') + 10
	}
	return -1
}

// isDecimalLiteral accepts digits with an optional fraction and exponent.
// At least one mantissa digit is required.
func isDecimalLiteral(s string) bool {
	i := 0
	mantissa := 0
	for i < len(s) && isDigit(s[i]) {
		i++
		mantissa++
	}
	if i < len(s) && s[i] == '.' {
		i++
		for i < len(s) && isDigit(s[i]) {
			i++
			mantissa++
		}
	}
	if mantissa == 0 {
		return false
	}
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		i++
		if i < len(s) && (s[i] == '+' || s[i] == '-') {
			i++
		}
		exp := 0
		for i < len(s) && isDigit(s[i]) {
			i++
			exp++
		}
		if exp == 0 {
			return false
		}
	}
	return i == len(s)
}

func isDigit(c byte) bool { return '0' <= c && c <= '9' }

func trimSpace(s string) string {
	return strings.TrimFunc(s, isHostSpace)
}

// isHostSpace matches the host's whitespace and line terminator set.
func isHostSpace(r rune) bool {
	switch r {
	case '\t', '\n', '\v', '\f', '\r', ' ', 0xa0, 0xfeff, 0x2028, 0x2029:
		return true
	}
	return unicode.Is(unicode.Zs, r)
}
