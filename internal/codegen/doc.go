// Package codegen lowers IR scripts into closures the engine can run.
//
// Every expression becomes an Expr (a listing fragment plus an evaluator)
// and every statement an engine.Stmt. The generator also keeps a textual
// listing of what it produced, in a JavaScript-like notation, which is
// what golden tests and `blockjit compile` print.
//
// ARCHITECTURE:
//
// One Generator per unit:
// Lower creates a Generator for one script or procedure variant. The
// generator tracks frames (is the current statement the last one of a loop
// body?), the warp and stuck-detection flags, the per-unit name pools for
// locals (a0, a1, ...) and setup values (b0, b1, ...), and which runtime
// helpers the unit calls.
//
// Registered lowerings first:
// An opcode with a lowering in the Lowerers table is lowered by it. The
// core opcodes (casts, constants, control flow, lists, variables,
// procedure calls, compatibility calls and hats) are handled here.
//
// Setup values:
// Variable references and primitive lookups are resolved once per thread
// through engine.SetupFunc and read back from Exec.Slots.
//
// CRITICAL PATTERNS:
//
// Suspension Invariant:
// Every suspension point that may run checks that the unit is marked as
// yielding. A violation means the IR builder's fix-point is wrong and is
// reported as E_INVARIANT, which is never recovered.
//
// Bailout:
// Deep lowering failures panic with a private bailout value. Lower
// recovers it and returns a *LowerError; nothing panics across the
// package boundary.
package codegen
