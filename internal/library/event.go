package library

import (
	"github.com/roach88/blockjit/internal/blocks"
	"github.com/roach88/blockjit/internal/compiler"
	"github.com/roach88/blockjit/internal/engine"
	"github.com/roach88/blockjit/internal/ir"
)

const inputBroadcast = "BROADCAST_INPUT"

func registerEvents(r *compiler.Registry) {
	r.RegisterStack(compiler.StackRegistration{
		Opcode: ir.StackBroadcast,
		Build: func(b *compiler.ScriptBuilder, site compiler.Site) *ir.StackBlock {
			return site.Statement(ir.Args{
				"broadcast": b.DescendInputOf(site.Block, inputBroadcast, false).ToType(ir.TypeString),
			})
		},
	}, "event_broadcast")

	r.RegisterStack(compiler.StackRegistration{
		Opcode: ir.StackBroadcastAndWait,
		Yields: true,
		Build: func(b *compiler.ScriptBuilder, site compiler.Site) *ir.StackBlock {
			return site.Statement(ir.Args{
				"broadcast": b.DescendInputOf(site.Block, inputBroadcast, false).ToType(ir.TypeString),
			})
		},
	}, "event_broadcastandwait")

	// The broadcast menu is the message's current name, resolved when the
	// script compiles.
	r.RegisterInput(compiler.InputRegistration{
		Type: ir.TypeString,
		Build: func(b *compiler.ScriptBuilder, site compiler.Site) *ir.Input {
			f, _ := site.Block.Field(engine.FieldBroadcast)
			return b.ConstantValue(ir.String(broadcastName(b, f)))
		},
	}, "event_broadcast_menu")
}

// broadcastName finds the message a menu field names, by id and then by
// name, on the building target and then on the stage. An unknown message
// is "".
func broadcastName(b *compiler.ScriptBuilder, f blocks.Field) string {
	for _, t := range []*blocks.Target{b.Target(), b.Stage()} {
		if t == nil {
			continue
		}
		if v, ok := t.LookupVariableByID(f.ID); ok && v.Type == blocks.VariableBroadcast {
			return v.Name
		}
		if v, ok := t.LookupVariableByNameAndType(f.Value, blocks.VariableBroadcast); ok {
			return v.Name
		}
	}
	return ""
}
