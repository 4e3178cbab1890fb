package engine

import (
	"fmt"
	"log/slog"

	"github.com/roach88/blockjit/internal/blocks"
	"github.com/roach88/blockjit/internal/ir"
)

// Primitive is a block implementation that runs outside the compiler
// through the compatibility bridge. It returns nil, an ir.Value, or a
// *Promise to be waited on. A primitive may also change the thread status
// through util (Yield, YieldTick) to ask to be run again.
type Primitive func(args map[string]ir.Value, util *BlockUtility) any

// HatInfo describes how a hat opcode is started.
type HatInfo struct {
	// EdgeActivated hats are polled every tick and fire on a false to
	// true transition of their predicate.
	EdgeActivated bool
	// RestartExistingThreads restarts a script already running from this
	// hat instead of leaving it alone.
	RestartExistingThreads bool
}

// Library is the engine's view of the block library.
type Library interface {
	Primitive(opcode string) (Primitive, bool)
	Hat(opcode string) (HatInfo, bool)
	EdgeActivatedHats() []string
}

// BranchInfo carries state across the repeated calls of a
// compatibility-layer conditional or loop block.
type BranchInfo struct {
	DefaultIsLoop bool
	IsLoop        bool
	Branch        int
	StackFrame    map[string]any
	OnEnd         []func(*BranchInfo)
}

// NewBranchInfo creates the branch state for one execution of a branching
// compatibility block.
func NewBranchInfo(isLoop bool) *BranchInfo {
	return &BranchInfo{
		DefaultIsLoop: isLoop,
		StackFrame:    make(map[string]any),
	}
}

// CompatCall is one invocation of a primitive through the bridge.
type CompatCall struct {
	Opcode    string
	Primitive Primitive
	Args      map[string]ir.Value
	// Warp is true when the calling script runs without screen refresh.
	Warp bool
	// UseFlags marks the call as the last block in a loop, so a resumption
	// from a promise is reported through Thread.HasResumedFromPromise.
	UseFlags bool
	BlockID  string
	Branch   *BranchInfo
}

// BlockUtility is the API a primitive sees.
type BlockUtility struct {
	thread     *Thread
	blockID    string
	stackFrame map[string]any
	branch     *BranchInfo
	started    *startedBranch
}

type startedBranch struct {
	branch int
	isLoop bool
}

// Thread returns the calling thread.
func (u *BlockUtility) Thread() *Thread { return u.thread }

// Engine returns the engine.
func (u *BlockUtility) Engine() *Engine { return u.thread.engine }

// Target returns the target the calling thread runs on.
func (u *BlockUtility) Target() *blocks.Target { return u.thread.Target }

// BlockID returns the id of the block being executed.
func (u *BlockUtility) BlockID() string { return u.blockID }

// StackFrame returns per-execution scratch state. It persists across the
// re-executions of one block and, for branching blocks, across branches.
func (u *BlockUtility) StackFrame() map[string]any { return u.stackFrame }

// StartBranch asks the compiled caller to run substack n next. isLoop
// makes the caller call the primitive again once the branch finishes.
func (u *BlockUtility) StartBranch(n int, isLoop bool) {
	u.started = &startedBranch{branch: n, isLoop: isLoop}
}

// OnBranchEnd registers fn to run after the started branch finishes.
func (u *BlockUtility) OnBranchEnd(fn func(*BranchInfo)) {
	if u.branch != nil {
		u.branch.OnEnd = append(u.branch.OnEnd, fn)
	}
}

// Yield asks for the block to be executed again, this tick if time allows.
func (u *BlockUtility) Yield() { u.thread.setStatus(StatusYield) }

// YieldTick asks for the block to be executed again next tick.
func (u *BlockUtility) YieldTick() { u.thread.setStatus(StatusYieldTick) }

// Retire ends the calling thread.
func (u *BlockUtility) Retire() { u.thread.engine.RetireThread(u.thread) }

// StartHats starts the scripts under hats of opcode whose fields match.
func (u *BlockUtility) StartHats(opcode string, fields map[string]string) []*Thread {
	return u.thread.engine.StartHats(opcode, fields, nil)
}

// TimerElapsed returns milliseconds since the stack timer was started, and
// false if it has not been started yet in this stack frame.
func (u *BlockUtility) TimerElapsed() (float64, bool) {
	t, ok := u.stackFrame["timer"].(*Timer)
	if !ok {
		return 0, false
	}
	return t.TimeElapsed(), true
}

// StartStackTimer starts the stack-frame timer used by waiting primitives.
func (u *BlockUtility) StartStackTimer() {
	u.stackFrame["timer"] = u.thread.engine.NewTimer()
}

// primitivePanic wraps a panic raised inside a primitive.
type primitivePanic struct {
	opcode string
	value  any
}

func (p primitivePanic) String() string {
	return fmt.Sprintf("%s: %v", p.opcode, p.value)
}

// invoke runs the primitive once with fresh utility state.
func (c *CompatCall) invoke(th *Thread, stackFrame map[string]any) (ret any, util *BlockUtility) {
	util = &BlockUtility{
		thread:     th,
		blockID:    c.BlockID,
		stackFrame: stackFrame,
		branch:     c.Branch,
	}
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(unwind); ok {
				panic(r)
			}
			panic(primitivePanic{opcode: c.Opcode, value: r})
		}
	}()
	return c.Primitive(c.Args, util), util
}

// CallCompat runs a primitive through the compatibility bridge.
//
// A returned promise parks the thread until it settles. A primitive that
// leaves the thread in YIELD or YIELD_TICK is executed again with the same
// arguments after the thread is resumed; in warp mode a YIELD only
// suspends when the tick is stuck. For a branching block the branch the
// primitive started is returned as the value and BranchInfo.IsLoop says
// whether to call it again afterwards.
func (x *Exec) CallCompat(c *CompatCall) ir.Value {
	th := x.Thread
	stackFrame := map[string]any{}
	if c.Branch != nil {
		stackFrame = c.Branch.StackFrame
	}

	var util *BlockUtility
	finish := func(v ir.Value) ir.Value {
		if c.Branch == nil {
			return v
		}
		if v == nil && util != nil && util.started != nil {
			c.Branch.IsLoop = util.started.isLoop
			return ir.Number(util.started.branch)
		}
		c.Branch.IsLoop = c.Branch.DefaultIsLoop
		return v
	}

	var ret any
	ret, util = c.invoke(th, stackFrame)
	if p, ok := ret.(*Promise); ok {
		v := finish(x.WaitPromise(p))
		if c.UseFlags {
			th.HasResumedFromPromise = true
		}
		return v
	}
	if th.status == StatusPromiseWait || th.status == StatusDone {
		x.Yield()
		return ir.String("")
	}

	for th.status == StatusYield || th.status == StatusYieldTick {
		if th.status == StatusYield {
			th.setStatus(StatusRunning)
			if !c.Warp || x.IsStuck() {
				x.Yield()
			}
		} else {
			x.Yield()
		}

		ret, util = c.invoke(th, stackFrame)
		if p, ok := ret.(*Promise); ok {
			v := finish(x.WaitPromise(p))
			if c.UseFlags {
				th.HasResumedFromPromise = true
			}
			return v
		}
		if th.status == StatusPromiseWait || th.status == StatusDone {
			x.Yield()
			return finish(ir.String(""))
		}
	}

	return finish(compatValue(c.Opcode, ret))
}

func compatValue(opcode string, ret any) ir.Value {
	switch v := ret.(type) {
	case nil:
		return nil
	case ir.Value:
		return v
	case string:
		return ir.String(v)
	case float64:
		return ir.Number(v)
	case int:
		return ir.Number(float64(v))
	case bool:
		return ir.Bool(v)
	}
	slog.Warn("primitive returned an unsupported value",
		"opcode", opcode,
		"type", fmt.Sprintf("%T", ret),
	)
	return ir.String(fmt.Sprint(ret))
}
