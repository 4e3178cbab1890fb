// Package store provides the SQLite-backed run journal.
//
// The journal is append-only:
//   - Runs: one row per run of a project, with the options it used
//   - Thread events: started, suspended, done and failed per thread
//   - Compiles: the outcome of compiling each started script
//
// # Critical Patterns
//
// Logical Time:
//   - All ordering uses seq INTEGER from the engine's logical clock,
//     NEVER timestamps
//   - A new run continues the clock from LastSeq, so seq is unique across
//     the whole journal
//
// Deterministic Query Results:
//   - Every query orders by seq (runs by started_seq, then id COLLATE BINARY ASC)
//
// Filtered Reads:
//   - QueryThreadEvents and QueryCompiles take a queryir.Predicate;
//     querysql turns it into SQL with every value bound as a parameter
//
// Idempotent Writes:
//   - Rewriting a run or an event with the same key is a no-op
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Events must belong to a journaled run
package store
