package library

import (
	"fmt"

	"github.com/roach88/blockjit/internal/codegen"
	"github.com/roach88/blockjit/internal/compiler"
	"github.com/roach88/blockjit/internal/engine"
	"github.com/roach88/blockjit/internal/ir"
)

// OpParameter reads a thread parameter by name. Argument reporters used
// outside a procedure that declares them fall back to it.
const OpParameter ir.InputOpcode = "procedures.parameter"

// debuggerProcCode is the signature of the debugger pseudo-procedure.
const debuggerProcCode = "tw:debugger;"

func registerProcedures(r *compiler.Registry) {
	r.RegisterStack(compiler.StackRegistration{
		Opcode:  ir.StackProcedureCall,
		Dynamic: true,
		Build: func(b *compiler.ScriptBuilder, site compiler.Site) *ir.StackBlock {
			blk := site.Block
			if blk.Mutation != nil && blk.Mutation.Return {
				if node := b.VisualReport(blk); node != nil {
					return node
				}
			}
			if blk.ProcCode() == debuggerProcCode {
				return ir.NewStackBlock(ir.StackDebugger, nil, false)
			}
			args, ok := b.ProcedureCall(blk)
			if !ok {
				return ir.NewStackBlock(ir.StackNop, nil, false)
			}
			return site.Statement(args)
		},
	}, "procedures_call")

	r.RegisterInput(compiler.InputRegistration{
		Opcode:  ir.InputProcedureCall,
		Type:    ir.TypeAny,
		Dynamic: true,
		Build: func(b *compiler.ScriptBuilder, site compiler.Site) *ir.Input {
			args, ok := b.ProcedureCall(site.Block)
			if !ok {
				return ir.NewInput(ir.InputNop, ir.TypeAny, nil, false)
			}
			return site.Node(args)
		},
	}, "procedures_call")

	r.RegisterStack(compiler.StackRegistration{
		Opcode: ir.StackProcedureReturn,
		Build: func(b *compiler.ScriptBuilder, site compiler.Site) *ir.StackBlock {
			return site.Statement(ir.Args{"value": b.DescendInputOf(site.Block, "VALUE", false)})
		},
	}, "procedures_return")

	r.RegisterInput(compiler.InputRegistration{
		Opcode:  ir.InputProcedureArg,
		Type:    ir.TypeAny,
		Dynamic: true,
		Build: func(b *compiler.ScriptBuilder, site compiler.Site) *ir.Input {
			name := site.Block.FieldValue("VALUE")
			index := b.ArgumentIndex(name)
			if index == -1 {
				return ir.NewInput(OpParameter, ir.TypeAny, ir.Args{"name": name}, false)
			}
			return site.Node(ir.Args{"index": index})
		},
	}, "argument_reporter_string_number")
	r.LowerInput(OpParameter, func(_ *codegen.Generator, in *ir.Input) codegen.Expr {
		name := in.Args.String("name")
		return codegen.Expr{
			Src: fmt.Sprintf("(thread.getParam(%s) ?? 0)", codegen.StringLiteral(name)),
			Eval: func(x *engine.Exec) ir.Value {
				if v, ok := x.Thread.Param(name); ok {
					return v
				}
				return ir.Number(0)
			},
		}
	})

	// A boolean reporter with no matching parameter reads as 0, except for
	// the two names projects use to detect that they are compiled.
	r.RegisterInput(compiler.InputRegistration{
		Opcode:  ir.InputProcedureBoolArg,
		Type:    ir.TypeBoolean,
		Dynamic: true,
		Build: func(b *compiler.ScriptBuilder, site compiler.Site) *ir.Input {
			name := site.Block.FieldValue("VALUE")
			index := b.ArgumentIndex(name)
			if index == -1 {
				switch ir.Lower(name) {
				case "is compiled?", "is unsandboxed?":
					return b.ConstantValue(ir.Bool(true)).ToType(ir.TypeBoolean)
				}
				return b.ConstantValue(ir.Number(0))
			}
			return site.Node(ir.Args{"index": index})
		},
	}, "argument_reporter_boolean")
}
