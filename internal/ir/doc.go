// Package ir provides the intermediate representation shared by the block
// compiler, the code generator and the runtime.
//
// The package holds runtime values and their coercions, the possibility-space
// type lattice, and the immutable IR node types. All other internal packages
// import ir; ir imports nothing internal.
//
// Key design constraints:
//   - IR nodes are immutable once built; ToType returns a new node
//   - A node's Type is a superset of its runtime possibilities, never a subset
//   - Coercions follow the host numeric grammar (see ParseNumber)
//   - Procedure variants are keyed "W"+code (warp) or "Z"+code
package ir
