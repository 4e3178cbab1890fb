// Package engine runs compiled block scripts.
//
// The engine is a cooperative scheduler: every script runs as a Thread,
// and threads hand control back at well-defined points (yields, waits,
// promise waits). Nothing is preempted.
//
// ARCHITECTURE:
//
// Single-Goroutine Tick Loop:
// Step runs one tick on the caller's goroutine. A tick polls the
// edge-activated hats and then resumes threads in passes, in the order
// they were started, until no thread is running, the work budget is
// spent, or a redraw was requested outside turbo mode.
//
// Tick Flow:
//  1. Pending promise settlements are applied (queue.go)
//  2. Tick time is sampled; timers read it and not the wall clock
//  3. Edge-activated hat scripts are started
//  4. Threads are stepped pass by pass; finished threads are reaped
//
// Threads as coroutines:
// A thread's program runs inside iter.Pull. Suspending is a yield of the
// coroutine; procedure calls run on the same coroutine, so a yield deep in
// a call chain suspends the whole thread. Retiring a suspended thread
// unwinds its coroutine.
//
// Compatibility bridge:
// Blocks without a lowering run as primitives (bridge.go). A primitive
// can return a *Promise, in which case the thread is parked in
// PROMISE_WAIT, or ask to be re-run by setting YIELD or YIELD_TICK.
//
// CRITICAL PATTERNS:
//
// Logical Clock:
// Journal events are stamped with Clock.Next(). Wall-clock time is only
// used for tick budgets, timers and stuck detection, and comes from the
// configured TimeSource so tests can drive it.
//
// Deterministic Scheduling:
// Threads step in start order and hats start in reverse target order.
// With WithRandSeed and a fake TimeSource a run is reproducible.
package engine
