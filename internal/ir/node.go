package ir

import (
	"fmt"
	"math"
	"regexp"
	"strings"
)

// InputOpcode identifies an expression node kind. The core set is declared
// here; block libraries add their own as "category.name".
type InputOpcode string

// StackOpcode identifies a statement node kind.
type StackOpcode string

// Core input opcodes.
const (
	InputNop              InputOpcode = "noop"
	InputConstant         InputOpcode = "constant"
	InputCastNumber       InputOpcode = "cast.toNumber"
	InputCastNumberIndex  InputOpcode = "cast.toInteger"
	InputCastNumberOrNaN  InputOpcode = "cast.toNumberOrNaN"
	InputCastString       InputOpcode = "cast.toString"
	InputCastBoolean      InputOpcode = "cast.toBoolean"
	InputCastColor        InputOpcode = "cast.toColor"
	InputCompat           InputOpcode = "compat"
	InputProcedureCall    InputOpcode = "procedures.call"
	InputProcedureArg     InputOpcode = "procedures.argument"
	InputProcedureBoolArg InputOpcode = "procedures.argumentBoolean"
)

// Core stack opcodes.
const (
	StackNop              StackOpcode = "noop"
	StackCompat           StackOpcode = "compat"
	StackHatEdge          StackOpcode = "hat.edge"
	StackHatPredicate     StackOpcode = "hat.predicate"
	StackVisualReport     StackOpcode = "visualReport"
	StackDebugger         StackOpcode = "tw.debugger"
	StackProcedureCall    StackOpcode = "procedures.call"
	StackProcedureReturn  StackOpcode = "procedures.return"
	StackIfElse           StackOpcode = "control.if"
	StackWhile            StackOpcode = "control.while"
	StackFor              StackOpcode = "control.for"
	StackRepeat           StackOpcode = "control.repeat"
	StackStopAll          StackOpcode = "control.stopAll"
	StackStopOthers       StackOpcode = "control.stopOthers"
	StackStopScript       StackOpcode = "control.stopScript"
	StackWait             StackOpcode = "control.wait"
	StackWaitUntil        StackOpcode = "control.waitUntil"
	StackAllAtOnce        StackOpcode = "control.allAtOnce"
	StackCloneCreate      StackOpcode = "control.createClone"
	StackCloneDelete      StackOpcode = "control.deleteClone"
	StackCounterClear     StackOpcode = "control.counterClear"
	StackCounterIncr      StackOpcode = "control.counterIncr"
	StackListAdd          StackOpcode = "list.add"
	StackListInsert       StackOpcode = "list.insert"
	StackListReplace      StackOpcode = "list.replace"
	StackListDeleteAll    StackOpcode = "list.deleteAll"
	StackListDelete       StackOpcode = "list.delete"
	StackListShow         StackOpcode = "list.show"
	StackListHide         StackOpcode = "list.hide"
	StackVarSet           StackOpcode = "var.set"
	StackVarShow          StackOpcode = "var.show"
	StackVarHide          StackOpcode = "var.hide"
	StackBroadcast        StackOpcode = "event.broadcast"
	StackBroadcastAndWait StackOpcode = "event.broadcastAndWait"
	StackTimerReset       StackOpcode = "timer.reset"
)

// Args is the operand record of a node, keyed by operand name. Values are
// *Input, *Stack, *Variable, map[int]*Stack, []*Input, Value or plain Go
// scalars. An Args is never mutated once its node is built.
type Args map[string]any

// Input returns the named child expression, or nil.
func (a Args) Input(name string) *Input {
	in, _ := a[name].(*Input)
	return in
}

// Stack returns the named branch. A missing branch is an empty stack.
func (a Args) Stack(name string) *Stack {
	if s, ok := a[name].(*Stack); ok && s != nil {
		return s
	}
	return &Stack{}
}

// Variable returns the named variable reference, or nil.
func (a Args) Variable(name string) *Variable {
	v, _ := a[name].(*Variable)
	return v
}

// String returns the named string operand.
func (a Args) String(name string) string {
	s, _ := a[name].(string)
	return s
}

// Bool returns the named boolean operand.
func (a Args) Bool(name string) bool {
	b, _ := a[name].(bool)
	return b
}

// Int returns the named integer operand.
func (a Args) Int(name string) int {
	i, _ := a[name].(int)
	return i
}

// Inputs returns the named positional expression list.
func (a Args) Inputs(name string) []*Input {
	in, _ := a[name].([]*Input)
	return in
}

// Value returns the named literal operand.
func (a Args) Value(name string) Value {
	v, _ := a[name].(Value)
	return v
}

// Input is an expression node.
type Input struct {
	Opcode InputOpcode
	Type   Type
	Args   Args
	Yields bool
}

// NewInput builds an expression node. A zero type is widened to ANY so
// every node has at least one possibility.
func NewInput(op InputOpcode, t Type, args Args, yields bool) *Input {
	if t == 0 {
		t = TypeAny
	}
	if args == nil {
		args = Args{}
	}
	return &Input{Opcode: op, Type: t, Args: args, Yields: yields}
}

// NewConstant builds a constant node typed from its value.
func NewConstant(v Value) *Input {
	return NewInput(InputConstant, ConstantType(v), Args{"value": v}, false)
}

// ConstantType returns the lattice type of a literal value.
func ConstantType(v Value) Type {
	switch x := v.(type) {
	case Number:
		return NumberType(float64(x))
	case Bool:
		return TypeBoolean
	case Color:
		return TypeColor
	case String:
		s := string(x)
		if !math.IsNaN(ParseNumber(s)) && (trimSpace(s) != "" || strings.Contains(s, "\t")) {
			return TypeStringNum
		}
		if s == "true" || s == "false" {
			return TypeStringBoolean
		}
		return TypeStringNaN
	}
	return TypeAny
}

// ClassifyConstant turns raw literal text into a constant node. Text that
// round-trips as a number becomes a number; other numeric-looking text stays
// a STRING_NUM string. With preserve set, the text is kept verbatim (asset
// names such as a costume called "3").
func ClassifyConstant(raw string, preserve bool) *Input {
	num := ParseNumber(raw)
	if !math.IsNaN(num) && (trimSpace(raw) != "" || strings.Contains(raw, "\t")) {
		if !preserve && FormatNumber(num) == raw {
			return NewInput(InputConstant, NumberType(num), Args{"value": Number(num)}, false)
		}
		return NewInput(InputConstant, TypeStringNum, Args{"value": String(raw)}, false)
	}
	if !preserve && (raw == "true" || raw == "false") {
		return NewInput(InputConstant, TypeStringBoolean, Args{"value": String(raw)}, false)
	}
	return NewInput(InputConstant, TypeStringNaN, Args{"value": String(raw)}, false)
}

// Constant returns the literal value of a constant node.
func (in *Input) Constant() (Value, bool) {
	if in == nil || in.Opcode != InputConstant {
		return nil, false
	}
	v, ok := in.Args["value"].(Value)
	return v, ok
}

// IsConstant reports whether in is a constant equal to v after converting
// both sides to text, the way literal menu values are compared.
func (in *Input) IsConstant(v Value) bool {
	c, ok := in.Constant()
	if !ok {
		return false
	}
	return ToString(c) == ToString(v)
}

// IsAlwaysType reports whether every possibility of in is within t.
func (in *Input) IsAlwaysType(t Type) bool {
	return in.Type.Has(t)
}

// IsSometimesType reports whether any possibility of in is within t.
func (in *Input) IsSometimesType(t Type) bool {
	return in.Type.Overlaps(t)
}

var castOpcodes = map[Type]InputOpcode{
	TypeBoolean:     InputCastBoolean,
	TypeNumber:      InputCastNumber,
	TypeNumberIndex: InputCastNumberIndex,
	TypeNumberOrNaN: InputCastNumberOrNaN,
	TypeString:      InputCastString,
	TypeColor:       InputCastColor,
}

// CastTargets lists the types ToType can convert into.
func CastTargets() []Type {
	return []Type{TypeBoolean, TypeNumber, TypeNumberIndex, TypeNumberOrNaN, TypeString, TypeColor}
}

// ToType returns a node whose type is within t. Nodes already within t are
// returned as is, constants are converted now, and anything else is wrapped
// in a cast node. Targets outside CastTargets return the receiver.
func (in *Input) ToType(t Type) *Input {
	op, ok := castOpcodes[t]
	if !ok {
		return in
	}
	if in.IsAlwaysType(t) {
		return in
	}
	if c, ok := in.Constant(); ok {
		v := castConstant(c, in.Type, op)
		ct := ConstantType(v)
		if op == InputCastString {
			ct &= TypeString
		}
		return NewInput(InputConstant, ct, Args{"value": v}, false)
	}
	return NewInput(op, t, Args{"target": in}, in.Yields)
}

func castConstant(v Value, from Type, op InputOpcode) Value {
	switch op {
	case InputCastBoolean:
		return Bool(ToBoolean(v))
	case InputCastNumber:
		if from.Has(TypeBooleanInterpretable) {
			return boolNumber(ToBoolean(v))
		}
		return Number(ToNumber(v))
	case InputCastNumberIndex:
		return Number(ToInt32(ToNumberOrNaN(v)))
	case InputCastNumberOrNaN:
		return Number(ToNumberOrNaN(v))
	case InputCastString:
		return String(ToString(v))
	case InputCastColor:
		return ToRGB(v)
	}
	return v
}

func boolNumber(b bool) Number {
	if b {
		return 1
	}
	return 0
}

// ToInt32 truncates f the way a bitwise-or with zero does: NaN and the
// infinities become 0 and the result wraps to 32 bits.
func ToInt32(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return float64(int32(uint32(int64(math.Trunc(math.Mod(f, 1<<32))))))
}

// StackBlock is a statement node.
type StackBlock struct {
	Opcode StackOpcode
	Args   Args
	Yields bool
}

// NewStackBlock builds a statement node.
func NewStackBlock(op StackOpcode, args Args, yields bool) *StackBlock {
	if args == nil {
		args = Args{}
	}
	return &StackBlock{Opcode: op, Args: args, Yields: yields}
}

// Stack is an ordered statement sequence. The empty stack is valid.
type Stack struct {
	Blocks []*StackBlock
}

// Scope says which target owns a variable.
type Scope string

const (
	ScopeTarget Scope = "target"
	ScopeStage  Scope = "stage"
)

// Variable is a resolved variable or list reference.
type Variable struct {
	Scope   Scope  `json:"scope"`
	ID      string `json:"id"`
	Name    string `json:"name"`
	IsCloud bool   `json:"is_cloud,omitempty"`
}

// Script is one compiled unit: the entry script or one procedure variant.
type Script struct {
	TopBlockID         string
	Stack              *Stack // nil for an empty procedure
	IsProcedure        bool
	ProcedureCode      string
	ProcedureVariant   string
	Arguments          []string
	IsWarp             bool
	WarpTimer          bool
	Yields             bool
	ExecutableHat      bool
	DependedProcedures []string
}

// DependsOn records a call to variant, once.
func (s *Script) DependsOn(variant string) {
	for _, v := range s.DependedProcedures {
		if v == variant {
			return
		}
	}
	s.DependedProcedures = append(s.DependedProcedures, variant)
}

// Representation is an entry script plus every procedure variant it
// reaches, keyed by variant.
type Representation struct {
	Entry      *Script
	Procedures map[string]*Script
}

// Variant prefixes.
const (
	VariantWarp    = "W"
	VariantNonWarp = "Z"
)

// Variant returns the cache and call key for a procedure compiled with or
// without warp.
func Variant(code string, warp bool) string {
	if warp {
		return VariantWarp + code
	}
	return VariantNonWarp + code
}

// ParseVariant splits a variant key into its signature code and warp flag.
func ParseVariant(variant string) (code string, warp bool, err error) {
	if variant == "" {
		return "", false, fmt.Errorf("empty procedure variant")
	}
	switch variant[:1] {
	case VariantWarp:
		return variant[1:], true, nil
	case VariantNonWarp:
		return variant[1:], false, nil
	}
	return "", false, fmt.Errorf("invalid procedure variant %q", variant)
}

var (
	argPlaceholder = regexp.MustCompile(`%\w`)
	unsafeChars    = regexp.MustCompile(`[^a-zA-Z0-9]`)
)

// SimplifyProcCode turns a signature into a short identifier suffix.
func SimplifyProcCode(code string) string {
	s := argPlaceholder.ReplaceAllString(code, "")
	s = unsafeChars.ReplaceAllString(s, "_")
	if len(s) > 20 {
		s = s[:20]
	}
	return s
}
