// Package compiler turns block scripts into programs the engine can run.
//
// ARCHITECTURE:
//
// Registry:
// The block library registers, per block opcode, a builder producing IR
// and optionally a lowering for the IR opcode it produces. It also lists
// bridge primitives, hats and extension block shapes. The registry is
// frozen before the first compile and implements both codegen.Lowerers
// and engine.Library.
//
// ScriptBuilder:
// One builder per script or procedure variant walks the block graph from
// the top block. For every block it tries, in order, a registered builder,
// the compatibility bridge, a literal menu, and (for editor clicks only) a
// visual report. Variables are resolved once per builder and created on
// the target when missing.
//
// Generator:
// Builds the entry script, then procedure variants in discovery order
// until no new dependency appears. Procedure IR is cached per container.
// A fix-point pass then marks every caller of a suspending procedure as
// suspending.
//
// Compiler:
// Builds and validates the representation, lowers each unit with the
// codegen package and loads it through the engine's loader. The outcome,
// success or failure, is cached on the container by top block.
//
// CRITICAL PATTERNS:
//
// Suspension Fix-Point:
// A non-warp procedure calling its own signature suspends; so does a hat
// script with a guard and any script using the bridge. After all variants
// are built, suspension flows from callees to callers until nothing
// changes. Mutual recursion is handled by never re-entering a variant
// already on the analysis path.
//
// Bailout:
// Build failures deep in the descent panic with a private bailout value
// recovered in ScriptBuilder.Generate. Nothing panics across the package
// boundary except registering into a frozen registry.
//
// Directives:
// The comment on a top block may carry "tw nocompile" (the script fails
// with E_DISABLED) or "tw stuck" (warp loops check the stuck budget).
package compiler
