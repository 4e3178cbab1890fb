// Package blocks models the block graph a script is compiled from.
//
// A Container owns the blocks of one sprite (shared by the sprite and all of
// its clones) together with the caches the compiler keeps per container:
// procedure parameters, IR for procedure variants, and compiled programs by
// top block. A Target is one running instance of a sprite or the stage and
// owns variable storage.
//
// CRITICAL: Clones share their sprite's Container by reference. Variable
// storage is per Target, so a variable created on one instance must be
// created on every instance (see Target.CreateVariable).
//
// INVARIANTS:
//   - Block ids are unique within a Container
//   - Caches are cleared together by Container.Invalidate
//   - Iteration over blocks, inputs, fields and variables is in sorted key
//     order so compiled output is deterministic
package blocks
