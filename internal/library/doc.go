// Package library is the default block library: compiled control,
// operator, data, procedure, event, sensing and literal blocks, the blocks
// always routed through the compatibility bridge, and the primitives and
// hats the engine needs to run them.
//
// ARCHITECTURE:
//
// Each category registers, per block opcode, a builder that produces IR
// through a compiler.ScriptBuilder. Blocks that lower to one of the core
// IR statements (if, loops, waits, lists, variables, broadcasts) only
// build; the code generator already knows how to lower those. Expressions
// the core does not know (arithmetic, comparisons, list reads, sensing)
// also register their lowering.
//
// CRITICAL PATTERNS:
//
// Dynamic Registrations:
// Blocks whose IR opcode depends on a field (mathop, current time, stop)
// or on their operands (random) are registered as dynamic. Their builder
// picks the opcode and type, and every opcode they can produce has its
// lowering registered separately with LowerInput.
//
// Fast Paths:
// Lowerings inspect operand types first. A list read whose index is
// always numeric indexes the list directly; "item (last)" reads the last
// element; only an index of unknown type calls the listGet helper.
package library
