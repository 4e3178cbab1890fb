package engine

import (
	"log/slog"

	"github.com/roach88/blockjit/internal/blocks"
	"github.com/roach88/blockjit/internal/ir"
)

// Exec is the activation of one unit on one thread: the entry script or a
// single procedure call. Lowered statements and expressions receive it.
type Exec struct {
	Thread *Thread
	Unit   *Unit
	// Slots holds the thread's setup values for Unit.
	Slots []any
	// Args holds procedure arguments p0..pN.
	Args []ir.Value
	// Ret is the value a procedure returns.
	Ret ir.Value
}

// Engine returns the engine running the thread.
func (x *Exec) Engine() *Engine { return x.Thread.engine }

// Target returns the target the thread runs on.
func (x *Exec) Target() *blocks.Target { return x.Thread.Target }

// Stage returns the project's stage target.
func (x *Exec) Stage() *blocks.Target { return x.Thread.engine.Stage() }

// Helpers returns the helper table the unit was loaded with.
func (x *Exec) Helpers() *Helpers { return x.Unit.helpers }

// Arg returns argument i, or 0 if the caller passed fewer.
func (x *Exec) Arg(i int) ir.Value {
	if i < len(x.Args) {
		return x.Args[i]
	}
	return ir.Number(0)
}

// Slot returns setup value i.
func (x *Exec) Slot(i int) any { return x.Slots[i] }

// Variable returns setup value i as variable storage.
func (x *Exec) Variable(i int) *blocks.Variable { return x.Slots[i].(*blocks.Variable) }

// Yield suspends the thread until the scheduler resumes it.
func (x *Exec) Yield() {
	x.Thread.suspend()
}

// IsStuck reports whether the current tick has run past the stuck budget.
// The clock is only sampled every few calls.
func (x *Exec) IsStuck() bool {
	return x.Thread.engine.IsStuck()
}

// Call runs procedure variant with args on the same thread and returns its
// result. A missing variant returns the empty string.
func (x *Exec) Call(variant string, args []ir.Value) ir.Value {
	u, ok := x.Thread.Program.Procedures[variant]
	if !ok || u == nil {
		return procedureResult
	}
	callee := x.Thread.newExec(u, args)
	u.Invoke(callee)
	if callee.Ret == nil {
		return procedureResult
	}
	return callee.Ret
}

// WaitPromise parks the thread until p settles and returns its value. A
// rejection is logged and its message becomes the value.
func (x *Exec) WaitPromise(p *Promise) ir.Value {
	th := x.Thread
	th.setStatus(StatusPromiseWait)
	th.promise = p
	th.settled = nil
	e := th.engine
	if !p.onSettle(func() { e.queue.Enqueue(settlement{thread: th, promise: p}) }) {
		th.applySettlement(p)
	}
	x.Yield()
	v := th.settled
	th.settled = nil
	return v
}

// applySettlement wakes th if it is still waiting on p.
func (th *Thread) applySettlement(p *Promise) {
	if th.status != StatusPromiseWait || th.promise != p {
		return
	}
	v, err, _ := p.Result()
	if err != nil {
		slog.Warn("promise rejected in compatibility layer",
			"thread", th.ID,
			"top_block", th.TopBlock,
			"error", err,
		)
		v = ir.String(err.Error())
	}
	th.settled = v
	th.promise = nil
	th.setStatus(StatusRunning)
}

// WaitThreads suspends until none of threads is still running. When all
// of them are themselves waiting the caller gives up the rest of the tick.
func (x *Exec) WaitThreads(threads []*Thread) {
	th := x.Thread
	e := th.engine
	for {
		anyRunning := false
		for _, t := range threads {
			if e.isActive(t) {
				anyRunning = true
				break
			}
		}
		if !anyRunning {
			return
		}
		allWaiting := true
		for _, t := range threads {
			if !isWaiting(t) {
				allWaiting = false
				break
			}
		}
		if allWaiting {
			th.setStatus(StatusYieldTick)
		}
		x.Yield()
	}
}

func isWaiting(t *Thread) bool {
	return t.status == StatusPromiseWait || t.status == StatusYieldTick
}
