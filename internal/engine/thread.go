package engine

import (
	"fmt"
	"iter"
	"log/slog"

	"github.com/roach88/blockjit/internal/blocks"
	"github.com/roach88/blockjit/internal/ir"
)

// unwind is panicked inside a thread's coroutine to abandon the script once
// the thread has been retired while suspended.
type unwind struct{}

// Thread is one running script on one target.
//
// A thread whose program yields runs as a coroutine (iter.Pull): Poll
// resumes it and returns at its next suspension. Procedure calls run on
// the same coroutine, so a suspension inside a nested call suspends the
// whole thread.
//
// INVARIANTS:
//   - status only changes through setStatus (see Status.CanTransition)
//   - once DONE a thread is never resumed again
type Thread struct {
	ID         string
	Target     *blocks.Target
	TopBlock   string
	StackClick bool
	Program    *Program

	// Timer is the timer of the running wait block, if any.
	Timer *Timer

	// HasResumedFromPromise is set when a compatibility block that is last
	// in a loop resumed from a promise; the loop then restarts its body
	// instead of yielding again.
	HasResumedFromPromise bool

	engine      *Engine
	status      Status
	promise     *Promise
	settled     ir.Value
	slots       map[*Unit][]any
	params      map[string]ir.Value
	next        func() (Suspension, bool)
	stop        func()
	yield       func(Suspension) bool
	suspensions int
	err         error
	// detached threads were replaced by a restart and are no longer in
	// the engine's thread list.
	detached bool
}

func newThread(e *Engine, id string, target *blocks.Target, topBlock string, stackClick bool) *Thread {
	return &Thread{
		ID:         id,
		Target:     target,
		TopBlock:   topBlock,
		StackClick: stackClick,
		engine:     e,
		slots:      make(map[*Unit][]any),
	}
}

// Status returns the scheduling state.
func (th *Thread) Status() Status { return th.status }

// Engine returns the engine that owns th.
func (th *Thread) Engine() *Engine { return th.engine }

// Suspensions counts how many times the thread handed control back.
func (th *Thread) Suspensions() int { return th.suspensions }

// Err returns the runtime error that ended the thread, if any.
func (th *Thread) Err() error { return th.err }

// Done reports whether the thread has finished.
func (th *Thread) Done() bool { return th.status == StatusDone }

// Param returns a thread parameter set by whoever started the thread.
func (th *Thread) Param(name string) (ir.Value, bool) {
	v, ok := th.params[name]
	return v, ok
}

// SetParam sets a thread parameter.
func (th *Thread) SetParam(name string, v ir.Value) {
	if th.params == nil {
		th.params = make(map[string]ir.Value)
	}
	th.params[name] = v
}

// setStatus moves th to next, panicking on a transition the status machine
// does not allow. DONE is terminal: later requests are ignored.
func (th *Thread) setStatus(next Status) {
	if th.status == StatusDone {
		return
	}
	if !th.status.CanTransition(next) {
		panic(fmt.Sprintf("invalid thread status transition %s -> %s", th.status, next))
	}
	th.status = next
}

// SetStatus is the entry point used by primitives through BlockUtility.
func (th *Thread) SetStatus(next Status) {
	th.setStatus(next)
}

// retire marks th DONE. A thread parked on a promise is first woken, so
// the promise-wait state is only ever left through RUNNING.
func (th *Thread) retire() {
	switch th.status {
	case StatusDone:
		return
	case StatusPromiseWait:
		th.promise = nil
		th.setStatus(StatusRunning)
	}
	th.setStatus(StatusDone)
}

// slotsFor returns th's setup values for u, computing them on first use.
func (th *Thread) slotsFor(u *Unit) []any {
	if len(u.setup) == 0 {
		return nil
	}
	if s, ok := th.slots[u]; ok {
		return s
	}
	s := make([]any, len(u.setup))
	for i, f := range u.setup {
		s[i] = f(th)
	}
	th.slots[u] = s
	return s
}

func (th *Thread) newExec(u *Unit, args []ir.Value) *Exec {
	return &Exec{Thread: th, Unit: u, Slots: th.slotsFor(u), Args: args}
}

// Poll resumes the thread until it suspends or finishes. It reports false
// once the thread is done.
func (th *Thread) Poll() (Suspension, bool) {
	if th.status == StatusDone {
		return Suspension{Reason: ReasonDone}, false
	}
	if th.next == nil {
		th.next, th.stop = iter.Pull(th.body)
	}
	s, ok := th.next()
	if !ok {
		th.release()
		return Suspension{Reason: ReasonDone}, false
	}
	return s, true
}

// release stops the coroutine. A suspended body unwinds and its deferred
// cleanup runs before release returns.
func (th *Thread) release() {
	if th.stop != nil {
		th.stop()
		th.stop = nil
		th.next = nil
	}
}

// body is the coroutine: it runs the entry unit to completion.
func (th *Thread) body(yield func(Suspension) bool) {
	th.yield = yield
	defer func() {
		th.yield = nil
		if r := recover(); r != nil {
			if _, ok := r.(unwind); !ok {
				th.fail(r)
			}
		}
		th.retire()
	}()
	if th.Program == nil || th.Program.Entry == nil {
		return
	}
	x := th.newExec(th.Program.Entry, nil)
	th.Program.Entry.Invoke(x)
}

func (th *Thread) fail(r any) {
	code := ErrCodeRoutinePanic
	if pe, ok := r.(primitivePanic); ok {
		code = ErrCodePrimitivePanic
		r = pe.value
	}
	th.err = &RuntimeError{
		Code:     code,
		Message:  fmt.Sprint(r),
		ThreadID: th.ID,
		TopBlock: th.TopBlock,
	}
	slog.Error("thread failed",
		"thread", th.ID,
		"top_block", th.TopBlock,
		"error", th.err,
	)
}

// suspend hands control to the scheduler. It returns once the thread is
// resumed and unwinds the coroutine if the thread was retired meanwhile.
func (th *Thread) suspend() {
	if th.yield == nil {
		panic("thread suspended outside its coroutine")
	}
	th.suspensions++
	s := Suspension{Reason: reasonFor(th), Promise: th.promise}
	if !th.yield(s) {
		panic(unwind{})
	}
	if th.status == StatusDone {
		panic(unwind{})
	}
}
