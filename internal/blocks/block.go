package blocks

import (
	"fmt"
	"sort"
)

// Shape is the closed set of block shapes a block library can declare.
// The compiler resolves an opcode's shape once and uses it to pick between
// compiled lowerings and the compatibility bridge.
type Shape int

const (
	ShapeCommand Shape = iota
	ShapeConditional
	ShapeLoop
	ShapeHat
	ShapeReporter
	ShapeBoolean
	ShapeInline
	ShapeEvent
	ShapeArray
	ShapeObject
)

var shapeNames = [...]string{
	ShapeCommand:     "command",
	ShapeConditional: "conditional",
	ShapeLoop:        "loop",
	ShapeHat:         "hat",
	ShapeReporter:    "reporter",
	ShapeBoolean:     "boolean",
	ShapeInline:      "inline",
	ShapeEvent:       "event",
	ShapeArray:       "array",
	ShapeObject:      "object",
}

func (s Shape) String() string {
	if s < 0 || int(s) >= len(shapeNames) {
		return fmt.Sprintf("Shape(%d)", int(s))
	}
	return shapeNames[s]
}

// ParseShape is the inverse of Shape.String.
func ParseShape(name string) (Shape, error) {
	for i, n := range shapeNames {
		if n == name {
			return Shape(i), nil
		}
	}
	return 0, fmt.Errorf("unknown block shape %q", name)
}

// IsStatement reports whether blocks of this shape can appear in a stack.
func (s Shape) IsStatement() bool {
	return s == ShapeCommand || s == ShapeConditional || s == ShapeLoop
}

// IsExpression reports whether blocks of this shape can appear as an input.
func (s Shape) IsExpression() bool {
	switch s {
	case ShapeReporter, ShapeBoolean, ShapeInline, ShapeArray, ShapeObject:
		return true
	}
	return false
}

// HasBranches reports whether blocks of this shape own substacks.
func (s Shape) HasBranches() bool {
	return s == ShapeConditional || s == ShapeLoop || s == ShapeInline
}

// Block is one node of the block graph.
type Block struct {
	// ID is filled from the containing map key when decoded.
	ID string `yaml:"-"`

	Opcode   string `yaml:"opcode"`
	Next     string `yaml:"next,omitempty"`
	Parent   string `yaml:"parent,omitempty"`
	TopLevel bool   `yaml:"top_level,omitempty"`
	Shadow   bool   `yaml:"shadow,omitempty"`

	// Inputs maps an input name to the id of the block plugged into it.
	Inputs map[string]string `yaml:"inputs,omitempty"`

	// Fields maps a field name to its literal value.
	Fields map[string]Field `yaml:"fields,omitempty"`

	Mutation *Mutation `yaml:"mutation,omitempty"`

	// Comment is the id of a comment attached to this block.
	Comment string `yaml:"comment,omitempty"`
}

// Field is a literal slot on a block. Variable and list fields carry the
// variable id alongside its display name.
type Field struct {
	ID    string `yaml:"id,omitempty"`
	Value string `yaml:"value"`
}

// Mutation carries procedure prototype and call metadata.
type Mutation struct {
	ProcCode         string   `yaml:"proccode"`
	ArgumentIDs      []string `yaml:"argument_ids,omitempty"`
	ArgumentNames    []string `yaml:"argument_names,omitempty"`
	ArgumentDefaults []string `yaml:"argument_defaults,omitempty"`
	Warp             bool     `yaml:"warp,omitempty"`
	Return           bool     `yaml:"return,omitempty"`
}

// Input returns the id of the block plugged into the named input.
func (b *Block) Input(name string) (string, bool) {
	id, ok := b.Inputs[name]
	return id, ok && id != ""
}

// HasInput reports whether the named input is present, even if empty.
func (b *Block) HasInput(name string) bool {
	_, ok := b.Inputs[name]
	return ok
}

// Field returns the named field.
func (b *Block) Field(name string) (Field, bool) {
	f, ok := b.Fields[name]
	return f, ok
}

// FieldValue returns the value of the named field, or "".
func (b *Block) FieldValue(name string) string {
	return b.Fields[name].Value
}

// InputNames returns the input names in sorted order.
func (b *Block) InputNames() []string {
	return sortedKeys(b.Inputs)
}

// FieldNames returns the field names in sorted order.
func (b *Block) FieldNames() []string {
	return sortedKeys(b.Fields)
}

// ProcCode returns the procedure signature of a call or prototype block.
func (b *Block) ProcCode() string {
	if b.Mutation == nil {
		return ""
	}
	return b.Mutation.ProcCode
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
