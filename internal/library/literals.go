package library

import (
	"github.com/roach88/blockjit/internal/compiler"
	"github.com/roach88/blockjit/internal/ir"
)

// registerLiterals registers the shadow blocks that hold typed-in values.
// Each builds a constant; a colour is always kept as text.
func registerLiterals(r *compiler.Registry) {
	literal := func(field string, preserve bool) compiler.InputBuilder {
		return func(b *compiler.ScriptBuilder, site compiler.Site) *ir.Input {
			return b.Constant(site.Block.FieldValue(field), preserve || site.Preserve)
		}
	}

	r.RegisterInput(compiler.InputRegistration{
		Type:  ir.TypeAny,
		Build: literal("NUM", false),
	}, "math_angle", "math_integer", "math_number", "math_positive_number", "math_whole_number")

	r.RegisterInput(compiler.InputRegistration{
		Type:  ir.TypeAny,
		Build: literal("TEXT", false),
	}, "text")

	r.RegisterInput(compiler.InputRegistration{
		Type:  ir.TypeAny,
		Build: literal("COLOUR", true),
	}, "colour_picker")
}
