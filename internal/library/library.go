package library

import (
	"github.com/roach88/blockjit/internal/compiler"
	"github.com/roach88/blockjit/internal/ir"
)

// NewRegistry returns a frozen registry holding the whole default
// library.
func NewRegistry() *compiler.Registry {
	r := compiler.NewRegistry()
	Register(r)
	return r.Freeze()
}

// Register adds the default library to r. Callers that add their own
// blocks register them after this and freeze r themselves.
func Register(r *compiler.Registry) {
	registerControl(r)
	registerOperators(r)
	registerData(r)
	registerProcedures(r)
	registerEvents(r)
	registerSensing(r)
	registerLiterals(r)
	registerStrings(r)
	registerCompat(r)
}

// binary builds a two-operand node from the named inputs of the site's
// block, converting both operands to t unless t is zero.
func binary(b *compiler.ScriptBuilder, site compiler.Site, left, right string, t ir.Type) *ir.Input {
	l := b.DescendInputOf(site.Block, left, false)
	r := b.DescendInputOf(site.Block, right, false)
	if t != 0 {
		l, r = l.ToType(t), r.ToType(t)
	}
	return site.Node(ir.Args{"left": l, "right": r})
}

// usesOpcode reports whether in, or anything under it, has opcode op.
func usesOpcode(in *ir.Input, op ir.InputOpcode) bool {
	if in == nil {
		return false
	}
	if in.Opcode == op {
		return true
	}
	for _, arg := range in.Args {
		switch v := arg.(type) {
		case *ir.Input:
			if usesOpcode(v, op) {
				return true
			}
		case []*ir.Input:
			for _, child := range v {
				if usesOpcode(child, op) {
					return true
				}
			}
		case map[string]*ir.Input:
			for _, child := range v {
				if usesOpcode(child, op) {
					return true
				}
			}
		}
	}
	return false
}
