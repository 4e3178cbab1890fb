package engine

import (
	"math"
	"strings"

	"github.com/roach88/blockjit/internal/blocks"
	"github.com/roach88/blockjit/internal/ir"
)

// Helper names referenced by generated code.
const (
	HelperCompareEqual       = "compareEqual"
	HelperCompareGreaterThan = "compareGreaterThan"
	HelperCompareLessThan    = "compareLessThan"
	HelperRandomInt          = "randomInt"
	HelperRandomFloat        = "randomFloat"
	HelperTimer              = "timer"
	HelperListGet            = "listGet"
	HelperListReplace        = "listReplace"
	HelperListInsert         = "listInsert"
	HelperListDelete         = "listDelete"
	HelperListContains       = "listContains"
	HelperListIndexOf        = "listIndexOf"
	HelperListContents       = "listContents"
	HelperColorToList        = "colorToList"
	HelperMod                = "mod"
	HelperTan                = "tan"
	HelperLimitPrecision     = "limitPrecision"
	HelperStartHats          = "startHats"
	HelperWaitThreads        = "waitThreads"
	HelperRetire             = "retire"
	HelperIsStuck            = "isStuck"
	HelperCallCompat         = "executeInCompatibilityLayer"
)

// Helpers is the fixed table of runtime helpers generated code may call.
// A nil field is an unbound helper: the loader rejects any unit naming it.
type Helpers struct {
	CompareEqual       func(a, b ir.Value) bool
	CompareGreaterThan func(a, b ir.Value) bool
	CompareLessThan    func(a, b ir.Value) bool
	RandomInt          func(x *Exec, low, high float64) float64
	RandomFloat        func(x *Exec, low, high float64) float64
	Timer              func(x *Exec) *Timer
	ListGet            func(x *Exec, list []ir.Value, idx ir.Value) ir.Value
	ListReplace        func(x *Exec, list *blocks.Variable, idx, v ir.Value)
	ListInsert         func(x *Exec, list *blocks.Variable, idx, v ir.Value)
	ListDelete         func(x *Exec, list *blocks.Variable, idx ir.Value)
	ListContains       func(list *blocks.Variable, item ir.Value) bool
	ListIndexOf        func(list *blocks.Variable, item ir.Value) float64
	ListContents       func(list *blocks.Variable) string
	ColorToList        func(v ir.Value) ir.Color
	Mod                func(n, m float64) float64
	Tan                func(deg float64) float64
	LimitPrecision     func(f float64) float64
	StartHats          func(x *Exec, opcode string, fields map[string]string) []*Thread
	WaitThreads        func(x *Exec, threads []*Thread)
	Retire             func(x *Exec)
	IsStuck            func(x *Exec) bool
	CallCompat         func(x *Exec, call *CompatCall) ir.Value
}

// DefaultHelpers returns a table with every helper bound.
func DefaultHelpers() *Helpers {
	return &Helpers{
		CompareEqual:       CompareEqual,
		CompareGreaterThan: CompareGreaterThan,
		CompareLessThan:    CompareLessThan,
		RandomInt:          randomInt,
		RandomFloat:        randomFloat,
		Timer:              func(x *Exec) *Timer { return x.Engine().NewTimer() },
		ListGet:            listGet,
		ListReplace:        listReplace,
		ListInsert:         listInsert,
		ListDelete:         listDelete,
		ListContains:       ListContains,
		ListIndexOf:        ListIndexOf,
		ListContents:       ListContents,
		ColorToList:        ir.ToRGB,
		Mod:                ir.Mod,
		Tan:                Tan,
		LimitPrecision:     LimitPrecision,
		StartHats: func(x *Exec, opcode string, fields map[string]string) []*Thread {
			return x.Engine().StartHats(opcode, fields, nil)
		},
		WaitThreads: (*Exec).WaitThreads,
		Retire:      func(x *Exec) { x.Engine().RetireThread(x.Thread) },
		IsStuck:     (*Exec).IsStuck,
		CallCompat:  (*Exec).CallCompat,
	}
}

// Has reports whether the helper called name exists and is bound.
func (h *Helpers) Has(name string) bool {
	if h == nil {
		return false
	}
	switch name {
	case HelperCompareEqual:
		return h.CompareEqual != nil
	case HelperCompareGreaterThan:
		return h.CompareGreaterThan != nil
	case HelperCompareLessThan:
		return h.CompareLessThan != nil
	case HelperRandomInt:
		return h.RandomInt != nil
	case HelperRandomFloat:
		return h.RandomFloat != nil
	case HelperTimer:
		return h.Timer != nil
	case HelperListGet:
		return h.ListGet != nil
	case HelperListReplace:
		return h.ListReplace != nil
	case HelperListInsert:
		return h.ListInsert != nil
	case HelperListDelete:
		return h.ListDelete != nil
	case HelperListContains:
		return h.ListContains != nil
	case HelperListIndexOf:
		return h.ListIndexOf != nil
	case HelperListContents:
		return h.ListContents != nil
	case HelperColorToList:
		return h.ColorToList != nil
	case HelperMod:
		return h.Mod != nil
	case HelperTan:
		return h.Tan != nil
	case HelperLimitPrecision:
		return h.LimitPrecision != nil
	case HelperStartHats:
		return h.StartHats != nil
	case HelperWaitThreads:
		return h.WaitThreads != nil
	case HelperRetire:
		return h.Retire != nil
	case HelperIsStuck:
		return h.IsStuck != nil
	case HelperCallCompat:
		return h.CallCompat != nil
	}
	return false
}

// =============================================================================
// Comparison
// =============================================================================

// isNotActuallyZero reports whether v coerced to 0 only because it is a
// string with no '0' and no tab in it, such as "" or " ".
func isNotActuallyZero(v ir.Value) bool {
	s, ok := v.(ir.String)
	if !ok {
		return false
	}
	return !strings.ContainsAny(string(s), "0\t")
}

func strictEqual(a, b ir.Value) bool {
	switch x := a.(type) {
	case ir.Number:
		y, ok := b.(ir.Number)
		return ok && x == y
	case ir.String:
		y, ok := b.(ir.String)
		return ok && x == y
	case ir.Bool:
		y, ok := b.(ir.Bool)
		return ok && x == y
	case nil:
		return b == nil
	}
	return false
}

func lowerText(v ir.Value) string {
	return ir.Lower(ir.ToString(v))
}

// CompareEqual is the = block. Two non-NaN numbers or identical values
// compare directly; otherwise both sides are read as numbers unless either
// is not numeric (or is blank text), in which case they are compared as
// case-insensitive strings.
func CompareEqual(a, b ir.Value) bool {
	x, xn := a.(ir.Number)
	y, yn := b.(ir.Number)
	if xn && yn && !math.IsNaN(float64(x)) && !math.IsNaN(float64(y)) {
		return x == y
	}
	if strictEqual(a, b) {
		return true
	}
	n1 := ir.ToNumberOrNaN(a)
	if math.IsNaN(n1) || (n1 == 0 && isNotActuallyZero(a)) {
		return lowerText(a) == lowerText(b)
	}
	n2 := ir.ToNumberOrNaN(b)
	if math.IsNaN(n2) || (n2 == 0 && isNotActuallyZero(b)) {
		return lowerText(a) == lowerText(b)
	}
	return n1 == n2
}

// CompareGreaterThan is the > block.
func CompareGreaterThan(a, b ir.Value) bool {
	x, xn := a.(ir.Number)
	y, yn := b.(ir.Number)
	if xn && yn && !math.IsNaN(float64(x)) {
		return x > y
	}
	n1, n2, textual := compareOperands(a, b)
	if textual {
		return lowerText(a) > lowerText(b)
	}
	return n1 > n2
}

// CompareLessThan is the < block.
func CompareLessThan(a, b ir.Value) bool {
	x, xn := a.(ir.Number)
	y, yn := b.(ir.Number)
	if xn && yn && !math.IsNaN(float64(y)) {
		return x < y
	}
	n1, n2, textual := compareOperands(a, b)
	if textual {
		return lowerText(a) < lowerText(b)
	}
	return n1 < n2
}

// compareOperands reads both sides as numbers for an ordering comparison.
// Only the first blank operand is demoted to text.
func compareOperands(a, b ir.Value) (n1, n2 float64, textual bool) {
	n1 = ir.ToNumberOrNaN(a)
	n2 = ir.ToNumberOrNaN(b)
	if n1 == 0 && isNotActuallyZero(a) {
		n1 = math.NaN()
	} else if n2 == 0 && isNotActuallyZero(b) {
		n2 = math.NaN()
	}
	return n1, n2, math.IsNaN(n1) || math.IsNaN(n2)
}

// =============================================================================
// Math
// =============================================================================

func randomInt(x *Exec, low, high float64) float64 {
	return low + math.Floor(x.Engine().random()*((high+1)-low))
}

func randomFloat(x *Exec, low, high float64) float64 {
	return x.Engine().random()*(high-low) + low
}

// Tan is the degree tangent of the math block. Angles whose tangent is
// infinite return an exact infinity; other results are rounded to ten
// decimal places.
func Tan(deg float64) float64 {
	switch math.Mod(deg, 360) {
	case -270, 90:
		return math.Inf(1)
	case -90, 270:
		return math.Inf(-1)
	}
	return math.Round(math.Tan(math.Pi*deg/180)*1e10) / 1e10
}

// LimitPrecision snaps values within 1e-9 of an integer to that integer.
func LimitPrecision(f float64) float64 {
	r := math.Round(f)
	if math.Abs(f-r) < 1e-9 {
		return r
	}
	return f
}

// =============================================================================
// Lists
// =============================================================================

// ListIndex converts a 1-based list index into a 0-based slice index for a
// list of the given length. "last", "random" and "any" are understood;
// anything out of range is -1.
func ListIndex(x *Exec, idx ir.Value, length int) int {
	if n, ok := idx.(ir.Number); ok {
		i := int(ir.ToInt32(float64(n)))
		if i < 1 || i > length {
			return -1
		}
		return i - 1
	}
	switch ir.ToString(idx) {
	case "last":
		return length - 1
	case "random", "any":
		if length > 0 {
			return int(x.Engine().random() * float64(length))
		}
		return -1
	}
	i := int(ir.ToInt32(ir.ToNumber(idx)))
	if i < 1 || i > length {
		return -1
	}
	return i - 1
}

func listGet(x *Exec, list []ir.Value, idx ir.Value) ir.Value {
	i := ListIndex(x, idx, len(list))
	if i == -1 {
		return ir.String("")
	}
	return list[i]
}

func listReplace(x *Exec, list *blocks.Variable, idx, v ir.Value) {
	i := ListIndex(x, idx, len(list.List))
	if i == -1 {
		return
	}
	list.List[i] = v
}

func listInsert(x *Exec, list *blocks.Variable, idx, v ir.Value) {
	i := ListIndex(x, idx, len(list.List)+1)
	if i == -1 {
		return
	}
	list.List = append(list.List, nil)
	copy(list.List[i+1:], list.List[i:])
	list.List[i] = v
}

func listDelete(x *Exec, list *blocks.Variable, idx ir.Value) {
	if s, ok := idx.(ir.String); ok && s == "all" {
		list.List = []ir.Value{}
		return
	}
	i := ListIndex(x, idx, len(list.List))
	if i == -1 {
		return
	}
	list.List = append(list.List[:i], list.List[i+1:]...)
}

// ListContains reports whether any item equals item under CompareEqual.
func ListContains(list *blocks.Variable, item ir.Value) bool {
	for _, v := range list.List {
		if CompareEqual(v, item) {
			return true
		}
	}
	return false
}

// ListIndexOf returns the 1-based position of the first item equal to
// item, or 0.
func ListIndexOf(list *blocks.Variable, item ir.Value) float64 {
	for i, v := range list.List {
		if CompareEqual(v, item) {
			return float64(i + 1)
		}
	}
	return 0
}

// ListContents joins the items with spaces, or with nothing when every
// item is a single character.
func ListContents(list *blocks.Variable) string {
	parts := make([]string, len(list.List))
	sep := ""
	for i, v := range list.List {
		parts[i] = ir.ToString(v)
		if len([]rune(parts[i])) != 1 {
			sep = " "
		}
	}
	return strings.Join(parts, sep)
}
