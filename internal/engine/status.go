package engine

import "fmt"

// Status is the scheduling state of a thread.
type Status int

const (
	// StatusRunning threads are stepped every pass of a tick.
	StatusRunning Status = iota
	// StatusPromiseWait threads are parked until a promise settles.
	StatusPromiseWait
	// StatusYield threads asked to be resumed in the same tick if budget allows.
	StatusYield
	// StatusYieldTick threads are not resumed until the next tick.
	StatusYieldTick
	// StatusDone threads are removed at the end of the pass.
	StatusDone
)

func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "RUNNING"
	case StatusPromiseWait:
		return "PROMISE_WAIT"
	case StatusYield:
		return "YIELD"
	case StatusYieldTick:
		return "YIELD_TICK"
	case StatusDone:
		return "DONE"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// CanTransition reports whether a thread may move from s to next.
//
// INVARIANTS:
//   - RUNNING may move anywhere
//   - YIELD and YIELD_TICK only return to RUNNING or finish
//   - PROMISE_WAIT only returns to RUNNING; retiring a waiting thread is
//     recorded separately and applied once it resumes
//   - DONE is terminal
func (s Status) CanTransition(next Status) bool {
	if s == next {
		return true
	}
	switch s {
	case StatusRunning:
		return true
	case StatusYield, StatusYieldTick:
		return next == StatusRunning || next == StatusDone
	case StatusPromiseWait:
		return next == StatusRunning
	}
	return false
}

// Reason says why a thread handed control back to the scheduler.
type Reason int

const (
	ReasonYield Reason = iota
	ReasonYieldTick
	ReasonPromiseWait
	ReasonDone
)

func (r Reason) String() string {
	switch r {
	case ReasonYield:
		return "yield"
	case ReasonYieldTick:
		return "yield_tick"
	case ReasonPromiseWait:
		return "promise_wait"
	case ReasonDone:
		return "done"
	}
	return fmt.Sprintf("Reason(%d)", int(r))
}

// Suspension is the outcome of one resumption of a thread.
type Suspension struct {
	Reason  Reason
	Promise *Promise
}

func reasonFor(th *Thread) Reason {
	switch th.status {
	case StatusYieldTick:
		return ReasonYieldTick
	case StatusPromiseWait:
		return ReasonPromiseWait
	case StatusDone:
		return ReasonDone
	}
	return ReasonYield
}
