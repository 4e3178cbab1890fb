package codegen

import (
	"log/slog"
	"math"

	"github.com/roach88/blockjit/internal/engine"
	"github.com/roach88/blockjit/internal/ir"
)

func (g *Generator) coreStack(b *ir.StackBlock) engine.Stmt {
	args := b.Args
	switch b.Opcode {
	case ir.StackNop:
		return next

	case ir.StackCompat:
		return g.compatStack(b)

	case ir.StackHatEdge:
		return g.hatEdge(args)
	case ir.StackHatPredicate:
		return g.hatPredicate(args)

	case ir.StackVisualReport:
		return g.visualReport(args)
	case ir.StackDebugger:
		g.Line("debugger;")
		return next

	case ir.StackProcedureCall:
		return g.procedureCallStack(args)
	case ir.StackProcedureReturn:
		return g.StopScriptAndReturn(g.Input(args.Input("value")))

	case ir.StackIfElse:
		return g.ifElse(args)
	case ir.StackWhile:
		return g.while(args)
	case ir.StackFor:
		return g.forEach(args)
	case ir.StackRepeat:
		return g.repeat(args)
	case ir.StackWait:
		return g.wait(args)
	case ir.StackWaitUntil:
		return g.waitUntil(args)
	case ir.StackAllAtOnce:
		prev := g.SetWarp(true)
		body := g.DescendStack(args.Stack("stack"), &Frame{})
		g.SetWarp(prev)
		return body

	case ir.StackStopAll:
		g.Line("runtime.stopAll();")
		retire := g.Retire()
		return func(x *engine.Exec) engine.Flow {
			x.Engine().StopAll()
			return retire(x)
		}
	case ir.StackStopOthers:
		g.Line("runtime.stopForTarget(target, thread);")
		return func(x *engine.Exec) engine.Flow {
			x.Engine().StopForTarget(x.Target(), x.Thread)
			return engine.FlowNext
		}
	case ir.StackStopScript:
		return g.StopScript()

	case ir.StackCloneCreate:
		return g.createClone(args)
	case ir.StackCloneDelete:
		return g.deleteClone()

	case ir.StackCounterClear:
		g.Line("runtime.ext_scratch3_control._counter = 0;")
		return func(x *engine.Exec) engine.Flow {
			x.Engine().ClearCounter()
			return engine.FlowNext
		}
	case ir.StackCounterIncr:
		g.Line("runtime.ext_scratch3_control._counter++;")
		return func(x *engine.Exec) engine.Flow {
			x.Engine().IncrCounter()
			return engine.FlowNext
		}
	case ir.StackTimerReset:
		g.Line("runtime.ioDevices.clock.resetProjectTimer();")
		return func(x *engine.Exec) engine.Flow {
			x.Engine().ResetProjectTimer()
			return engine.FlowNext
		}

	case ir.StackBroadcast, ir.StackBroadcastAndWait:
		return g.broadcast(args, b.Opcode == ir.StackBroadcastAndWait)

	case ir.StackListAdd, ir.StackListDelete, ir.StackListDeleteAll, ir.StackListInsert,
		ir.StackListReplace, ir.StackListShow, ir.StackListHide:
		return g.listStack(b)

	case ir.StackVarSet:
		return g.setVariable(args)
	case ir.StackVarShow, ir.StackVarHide:
		visible := b.Opcode == ir.StackVarShow
		v := args.Variable("variable")
		ref := g.ReferenceVariable(v)
		g.Line("runtime.monitorBlocks.changeBlock({ id: %s, element: \"checkbox\", value: %t }, runtime);", StringLiteral(v.ID), visible)
		return func(x *engine.Exec) engine.Flow {
			ref.Get(x).Visible = visible
			return engine.FlowNext
		}
	}

	slog.Warn("unknown stacked block", "opcode", b.Opcode)
	g.Fail(ErrCodeUnknownStack, "Unknown stacked block: %s", b.Opcode)
	return nil
}

// =============================================================================
// Control
// =============================================================================

func (g *Generator) ifElse(args ir.Args) engine.Stmt {
	cond := g.Input(args.Input("condition"))
	g.Line("if (%s) {", cond.Src)
	whenTrue := g.Substack(args.Stack("whenTrue"), &Frame{})
	whenFalse := next
	if elseStack := args.Stack("whenFalse"); len(elseStack.Blocks) > 0 {
		g.Line("} else {")
		whenFalse = g.Substack(elseStack, &Frame{})
	}
	g.Line("}")

	test := cond.Bool()
	return func(x *engine.Exec) engine.Flow {
		if test(x) {
			return whenTrue(x)
		}
		return whenFalse(x)
	}
}

// loopStep runs one loop body and reports how the loop continues. done is
// set when the unit returns from inside the body.
func loopStep(body engine.Stmt, x *engine.Exec) (skipYield, done bool) {
	switch body(x) {
	case engine.FlowReturn:
		return false, true
	case engine.FlowContinue:
		return true, false
	}
	return false, false
}

func (g *Generator) while(args ir.Args) engine.Stmt {
	cond := g.Input(args.Input("condition"))
	g.Line("while (%s) {", cond.Src)
	body := g.Substack(args.Stack("do"), &Frame{IsLoop: true})
	g.Indent()
	var yield Action
	if args.Bool("warpTimer") {
		yield = g.YieldStuckOrNotWarp()
	} else {
		yield = g.YieldLoop()
	}
	g.Dedent()
	g.Line("}")

	test := cond.Bool()
	return func(x *engine.Exec) engine.Flow {
		for test(x) {
			skip, done := loopStep(body, x)
			if done {
				return engine.FlowReturn
			}
			if !skip {
				yield.Run(x)
			}
		}
		return engine.FlowNext
	}
}

func (g *Generator) forEach(args ir.Args) engine.Stmt {
	index := g.Local()
	count := g.Input(args.Input("count"))
	ref := g.ReferenceVariable(args.Variable("variable"))
	g.Line("var %s = 0; while (%s < %s) { %s++; %s.value = %s;", index, index, count.Src, index, ref.Name, index)
	body := g.Substack(args.Stack("do"), &Frame{IsLoop: true})
	g.Indent()
	yield := g.YieldLoop()
	g.Dedent()
	g.Line("}")

	limit := count.Number()
	return func(x *engine.Exec) engine.Flow {
		i := 0.0
		for i < limit(x) {
			i++
			ref.Get(x).Value = ir.Number(i)
			skip, done := loopStep(body, x)
			if done {
				return engine.FlowReturn
			}
			if !skip {
				yield.Run(x)
			}
		}
		return engine.FlowNext
	}
}

func (g *Generator) repeat(args ir.Args) engine.Stmt {
	i := g.Local()
	times := g.Input(args.Input("times"))
	g.Line("for (var %s = %s; %s >= 0.5; %s--) {", i, times.Src, i, i)
	body := g.Substack(args.Stack("do"), &Frame{IsLoop: true})
	g.Indent()
	yield := g.YieldLoop()
	g.Dedent()
	g.Line("}")

	count := times.Number()
	return func(x *engine.Exec) engine.Flow {
		for n := count(x); n >= 0.5; n-- {
			skip, done := loopStep(body, x)
			if done {
				return engine.FlowReturn
			}
			if !skip {
				yield.Run(x)
			}
		}
		return engine.FlowNext
	}
}

// wait always suspends at least once outside warp mode, even for zero
// seconds, and then until the thread's timer has run out.
func (g *Generator) wait(args ir.Args) engine.Stmt {
	duration := g.Local()
	secs := g.Input(args.Input("seconds"))
	g.UseHelper(engine.HelperTimer)
	g.Line("thread.timer = timer();")
	g.Line("var %s = Math.max(0, 1000 * %s);", duration, secs.Src)
	g.Line("runtime.requestRedraw();")
	first := g.YieldNotWarp()
	g.Line("while (thread.timer.timeElapsed() < %s) {", duration)
	g.Indent()
	again := g.YieldStuckOrNotWarp()
	g.Dedent()
	g.Line("}")
	g.Line("thread.timer = null;")

	seconds := secs.Number()
	return func(x *engine.Exec) engine.Flow {
		th := x.Thread
		th.Timer = x.Helpers().Timer(x)
		ms := math.Max(0, 1000*seconds(x))
		x.Engine().RequestRedraw()
		first.Run(x)
		for th.Timer.TimeElapsed() < ms {
			again.Run(x)
		}
		th.Timer = nil
		return engine.FlowNext
	}
}

func (g *Generator) waitUntil(args ir.Args) engine.Stmt {
	cond := g.Input(args.Input("condition"))
	g.Line("while (!%s) {", cond.Src)
	g.Indent()
	yield := g.YieldStuckOrNotWarp()
	g.Dedent()
	g.Line("}")

	test := cond.Bool()
	return func(x *engine.Exec) engine.Flow {
		for !test(x) {
			yield.Run(x)
		}
		return engine.FlowNext
	}
}

func (g *Generator) createClone(args ir.Args) engine.Stmt {
	option := g.Input(args.Input("target"))
	g.Line("runtime.ext_scratch3_control._createClone(%s, target);", option.Src)
	name := option.Text()
	return func(x *engine.Exec) engine.Flow {
		if _, err := x.Engine().CreateCloneOf(name(x), x.Target()); err != nil {
			slog.Debug("clone not created", "thread", x.Thread.ID, "error", err)
		}
		return engine.FlowNext
	}
}

func (g *Generator) deleteClone() engine.Stmt {
	g.Line("if (!target.isOriginal) {")
	g.Indent()
	g.Line("runtime.disposeTarget(target);")
	g.Line("runtime.stopForTarget(target);")
	retire := g.Retire()
	g.Dedent()
	g.Line("}")
	return func(x *engine.Exec) engine.Flow {
		t := x.Target()
		if t.IsOriginal {
			return engine.FlowNext
		}
		e := x.Engine()
		e.DisposeTarget(t)
		e.StopForTarget(t, nil)
		return retire(x)
	}
}

// =============================================================================
// Events and reports
// =============================================================================

func (g *Generator) broadcast(args ir.Args, wait bool) engine.Stmt {
	msg := g.Input(args.Input("broadcast"))
	g.UseHelper(engine.HelperStartHats)
	start := `startHats("event_whenbroadcastreceived", { BROADCAST_OPTION: ` + msg.Src + ` })`
	name := msg.Text()
	if !wait {
		g.Line("%s;", start)
		return func(x *engine.Exec) engine.Flow {
			x.Helpers().StartHats(x, engine.HatBroadcast, map[string]string{engine.FieldBroadcast: name(x)})
			return engine.FlowNext
		}
	}
	g.UseHelper(engine.HelperWaitThreads)
	g.Line("yield* waitThreads(%s);", start)
	g.yielded()
	return func(x *engine.Exec) engine.Flow {
		h := x.Helpers()
		started := h.StartHats(x, engine.HatBroadcast, map[string]string{engine.FieldBroadcast: name(x)})
		h.WaitThreads(x, started)
		return engine.FlowNext
	}
}

// visualReport shows the value of a clicked reporter. Reporters that
// produce nothing are not reported.
func (g *Generator) visualReport(args ir.Args) engine.Stmt {
	value := g.Local()
	in := g.Input(args.Input("input"))
	topBlock := g.script.TopBlockID
	g.Line("const %s = %s; if (%s !== undefined) runtime.visualReport(%s, %s);", value, in.Src, value, StringLiteral(topBlock), value)
	eval := in.Eval
	return func(x *engine.Exec) engine.Flow {
		if v := eval(x); v != nil {
			x.Engine().VisualReport(topBlock, v)
		}
		return engine.FlowNext
	}
}

// =============================================================================
// Variables and lists
// =============================================================================

func (g *Generator) setVariable(args ir.Args) engine.Stmt {
	v := args.Variable("variable")
	ref := g.ReferenceVariable(v)
	value := g.Input(args.Input("value"))
	g.Line("%s.value = %s;", ref.Name, value.Src)
	eval := value.Eval
	if !v.IsCloud {
		return func(x *engine.Exec) engine.Flow {
			ref.Get(x).Value = eval(x)
			return engine.FlowNext
		}
	}
	g.Line("runtime.ioDevices.cloud.requestUpdateVariable(%s, %s.value);", StringLiteral(v.Name), ref.Name)
	name := v.Name
	return func(x *engine.Exec) engine.Flow {
		storage := ref.Get(x)
		storage.Value = eval(x)
		x.Engine().CloudUpdate(name, storage.Value)
		return engine.FlowNext
	}
}

func (g *Generator) listStack(b *ir.StackBlock) engine.Stmt {
	args := b.Args
	list := args.Variable("list")
	ref := g.ReferenceVariable(list)

	switch b.Opcode {
	case ir.StackListAdd:
		item := g.Input(args.Input("item"))
		g.Line("%s.value.push(%s);", ref.Name, item.Src)
		eval := item.Eval
		return func(x *engine.Exec) engine.Flow {
			l := ref.Get(x)
			l.List = append(l.List, eval(x))
			return engine.FlowNext
		}

	case ir.StackListDelete:
		index := args.Input("index")
		if index.IsConstant(ir.String("last")) {
			g.Line("%s.value.pop();", ref.Name)
			return func(x *engine.Exec) engine.Flow {
				l := ref.Get(x)
				if n := len(l.List); n > 0 {
					l.List = l.List[:n-1]
				}
				return engine.FlowNext
			}
		}
		if index.IsConstant(ir.Number(1)) {
			g.Line("%s.value.shift();", ref.Name)
			return func(x *engine.Exec) engine.Flow {
				l := ref.Get(x)
				if len(l.List) > 0 {
					l.List = l.List[1:]
				}
				return engine.FlowNext
			}
		}
		idx := g.Input(index)
		g.UseHelper(engine.HelperListDelete)
		g.Line("listDelete(%s, %s);", ref.Name, idx.Src)
		eval := idx.Eval
		return func(x *engine.Exec) engine.Flow {
			x.Helpers().ListDelete(x, ref.Get(x), eval(x))
			return engine.FlowNext
		}

	case ir.StackListDeleteAll:
		g.Line("%s.value = [];", ref.Name)
		return func(x *engine.Exec) engine.Flow {
			ref.Get(x).List = []ir.Value{}
			return engine.FlowNext
		}

	case ir.StackListInsert:
		index := args.Input("index")
		item := g.Input(args.Input("item"))
		evalItem := item.Eval
		if index.IsConstant(ir.Number(1)) {
			g.Line("%s.value.unshift(%s);", ref.Name, item.Src)
			return func(x *engine.Exec) engine.Flow {
				l := ref.Get(x)
				l.List = append([]ir.Value{evalItem(x)}, l.List...)
				return engine.FlowNext
			}
		}
		idx := g.Input(index)
		g.UseHelper(engine.HelperListInsert)
		g.Line("listInsert(%s, %s, %s);", ref.Name, idx.Src, item.Src)
		evalIdx := idx.Eval
		return func(x *engine.Exec) engine.Flow {
			i := evalIdx(x)
			x.Helpers().ListInsert(x, ref.Get(x), i, evalItem(x))
			return engine.FlowNext
		}

	case ir.StackListReplace:
		idx := g.Input(args.Input("index"))
		item := g.Input(args.Input("item"))
		g.UseHelper(engine.HelperListReplace)
		g.Line("listReplace(%s, %s, %s);", ref.Name, idx.Src, item.Src)
		evalIdx, evalItem := idx.Eval, item.Eval
		return func(x *engine.Exec) engine.Flow {
			i := evalIdx(x)
			x.Helpers().ListReplace(x, ref.Get(x), i, evalItem(x))
			return engine.FlowNext
		}
	}

	visible := b.Opcode == ir.StackListShow
	g.Line("runtime.monitorBlocks.changeBlock({ id: %s, element: \"checkbox\", value: %t }, runtime);", StringLiteral(list.ID), visible)
	return func(x *engine.Exec) engine.Flow {
		ref.Get(x).Visible = visible
		return engine.FlowNext
	}
}
