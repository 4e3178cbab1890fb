package library

import (
	"github.com/roach88/blockjit/internal/blocks"
	"github.com/roach88/blockjit/internal/codegen"
	"github.com/roach88/blockjit/internal/compiler"
	"github.com/roach88/blockjit/internal/engine"
	"github.com/roach88/blockjit/internal/ir"
)

// Control IR opcodes not in the core set.
const (
	OpCounter ir.InputOpcode = "control.get_counter"
)

// Stop options of control_stop.
const (
	StopAll           = "all"
	StopOthersSprite  = "other scripts in sprite"
	StopOthersStage   = "other scripts in stage"
	StopThisScript    = "this script"
	fieldStopOption   = "STOP_OPTION"
	inputCloneOption  = "CLONE_OPTION"
	inputCondition    = "CONDITION"
	inputSubstack     = "SUBSTACK"
	inputSubstackElse = "SUBSTACK2"
)

func registerControl(r *compiler.Registry) {
	r.RegisterStack(compiler.StackRegistration{
		Opcode: ir.StackIfElse,
		Build: func(b *compiler.ScriptBuilder, site compiler.Site) *ir.StackBlock {
			return site.Statement(ir.Args{
				"condition": b.DescendInputOf(site.Block, inputCondition, false).ToType(ir.TypeBoolean),
				"whenTrue":  b.DescendSubstack(site.Block, inputSubstack),
				"whenFalse": &ir.Stack{},
			})
		},
	}, "control_if")

	r.RegisterStack(compiler.StackRegistration{
		Opcode: ir.StackIfElse,
		Build: func(b *compiler.ScriptBuilder, site compiler.Site) *ir.StackBlock {
			return site.Statement(ir.Args{
				"condition": b.DescendInputOf(site.Block, inputCondition, false).ToType(ir.TypeBoolean),
				"whenTrue":  b.DescendSubstack(site.Block, inputSubstack),
				"whenFalse": b.DescendSubstack(site.Block, inputSubstackElse),
			})
		},
	}, "control_if_else")

	r.RegisterStack(compiler.StackRegistration{
		Opcode:  ir.StackRepeat,
		Dynamic: true,
		Build: func(b *compiler.ScriptBuilder, site compiler.Site) *ir.StackBlock {
			site.Yields = b.AnalyzeLoop()
			return site.Statement(ir.Args{
				"times": b.DescendInputOf(site.Block, "TIMES", false).ToType(ir.TypeNumber),
				"do":    b.DescendSubstack(site.Block, inputSubstack),
			})
		},
	}, "control_repeat")

	// "repeat until" is a while loop over the negated condition. A
	// condition reading the project timer gets stuck detection even in
	// warp mode, or a warp loop waiting on the timer would never end.
	r.RegisterStack(compiler.StackRegistration{
		Opcode:  ir.StackWhile,
		Dynamic: true,
		Build: func(b *compiler.ScriptBuilder, site compiler.Site) *ir.StackBlock {
			cond := b.DescendInputOf(site.Block, inputCondition, false)
			needsWarpTimer := usesOpcode(cond, OpTimer)
			site.Yields = b.AnalyzeLoop() || needsWarpTimer
			return site.Statement(ir.Args{
				"condition": ir.NewInput(OpNot, ir.TypeBoolean, ir.Args{"operand": cond}, cond.Yields),
				"do":        b.DescendSubstack(site.Block, inputSubstack),
				"warpTimer": needsWarpTimer,
			})
		},
	}, "control_repeat_until")

	r.RegisterStack(compiler.StackRegistration{
		Opcode:  ir.StackWhile,
		Dynamic: true,
		Build: func(b *compiler.ScriptBuilder, site compiler.Site) *ir.StackBlock {
			site.Yields = b.AnalyzeLoop()
			return site.Statement(ir.Args{
				"condition": b.DescendInputOf(site.Block, inputCondition, false).ToType(ir.TypeBoolean),
				"do":        b.DescendSubstack(site.Block, inputSubstack),
				"warpTimer": false,
			})
		},
	}, "control_while")

	r.RegisterStack(compiler.StackRegistration{
		Opcode:  ir.StackWhile,
		Dynamic: true,
		Build: func(b *compiler.ScriptBuilder, site compiler.Site) *ir.StackBlock {
			site.Yields = b.AnalyzeLoop()
			return site.Statement(ir.Args{
				"condition": ir.NewConstant(ir.Bool(true)),
				"do":        b.DescendSubstack(site.Block, inputSubstack),
			})
		},
	}, "control_forever")

	r.RegisterStack(compiler.StackRegistration{
		Opcode:  ir.StackFor,
		Dynamic: true,
		Build: func(b *compiler.ScriptBuilder, site compiler.Site) *ir.StackBlock {
			site.Yields = b.AnalyzeLoop()
			return site.Statement(ir.Args{
				"variable": b.Variable(site.Block, fieldVariable, blocks.VariableScalar),
				"count":    b.DescendInputOf(site.Block, "VALUE", false).ToType(ir.TypeNumber),
				"do":       b.DescendSubstack(site.Block, inputSubstack),
			})
		},
	}, "control_for_each")

	r.RegisterStack(compiler.StackRegistration{
		Opcode: ir.StackWait,
		Yields: true,
		Build: func(b *compiler.ScriptBuilder, site compiler.Site) *ir.StackBlock {
			return site.Statement(ir.Args{
				"seconds": b.DescendInputOf(site.Block, "DURATION", false).ToType(ir.TypeNumber),
			})
		},
	}, "control_wait")

	r.RegisterStack(compiler.StackRegistration{
		Opcode: ir.StackWaitUntil,
		Yields: true,
		Build: func(b *compiler.ScriptBuilder, site compiler.Site) *ir.StackBlock {
			return site.Statement(ir.Args{
				"condition": b.DescendInputOf(site.Block, inputCondition, false).ToType(ir.TypeBoolean),
			})
		},
	}, "control_wait_until")

	r.RegisterStack(compiler.StackRegistration{
		Dynamic: true,
		Build:   buildStop,
	}, "control_stop")

	r.RegisterStack(compiler.StackRegistration{
		Opcode: ir.StackAllAtOnce,
		Build: func(b *compiler.ScriptBuilder, site compiler.Site) *ir.StackBlock {
			return site.Statement(ir.Args{"stack": b.DescendSubstack(site.Block, inputSubstack)})
		},
	}, "control_all_at_once")

	r.RegisterStack(compiler.StackRegistration{
		Opcode: ir.StackCloneCreate,
		Build: func(b *compiler.ScriptBuilder, site compiler.Site) *ir.StackBlock {
			return site.Statement(ir.Args{
				"target": b.DescendInputOf(site.Block, inputCloneOption, false).ToType(ir.TypeString),
			})
		},
	}, "control_create_clone_of")

	r.RegisterStack(compiler.StackRegistration{
		Opcode: ir.StackCloneDelete,
		Yields: true,
		Build: func(_ *compiler.ScriptBuilder, site compiler.Site) *ir.StackBlock {
			return site.Statement(nil)
		},
	}, "control_delete_this_clone")

	r.RegisterStack(compiler.StackRegistration{
		Opcode: ir.StackCounterClear,
		Build: func(_ *compiler.ScriptBuilder, site compiler.Site) *ir.StackBlock {
			return site.Statement(nil)
		},
	}, "control_clear_counter")

	r.RegisterStack(compiler.StackRegistration{
		Opcode: ir.StackCounterIncr,
		Build: func(_ *compiler.ScriptBuilder, site compiler.Site) *ir.StackBlock {
			return site.Statement(nil)
		},
	}, "control_incr_counter")

	r.RegisterInput(compiler.InputRegistration{
		Opcode: OpCounter,
		Type:   ir.TypeNumberPosInt | ir.TypeNumberZero,
		Build: func(_ *compiler.ScriptBuilder, site compiler.Site) *ir.Input {
			return site.Node(nil)
		},
		Lower: func(g *codegen.Generator, _ *ir.Input) codegen.Expr {
			return codegen.NumberExpr("runtime.ext_scratch3_control._counter", func(x *engine.Exec) float64 {
				return float64(x.Engine().Counter())
			})
		},
	}, "control_get_counter")
}

func buildStop(_ *compiler.ScriptBuilder, site compiler.Site) *ir.StackBlock {
	switch site.Block.FieldValue(fieldStopOption) {
	case StopAll:
		return ir.NewStackBlock(ir.StackStopAll, nil, true)
	case StopOthersSprite, StopOthersStage:
		return ir.NewStackBlock(ir.StackStopOthers, nil, false)
	case StopThisScript:
		return ir.NewStackBlock(ir.StackStopScript, nil, false)
	default:
		return ir.NewStackBlock(ir.StackNop, nil, false)
	}
}
