// Package harness runs block projects from YAML scenarios and checks the
// outcome.
//
// A scenario names a project (inline or by file), optional CUE options,
// a tick budget and a list of assertions:
//
//	name: counter
//	project_file: ../projects/counter.yaml
//	ticks: 50
//	assertions:
//	  - type: variable
//	    target: Counter
//	    name: count
//	    equals: 3
//
// # Assertion Types
//
//   - variable: a variable of an original target has a value
//   - list: a list holds exactly the given items
//   - said: the target's speech bubble shows a text
//   - suspensions: threads of a script yielded a number of times
//   - done: every thread started at a script finished
//   - compile_error: a script failed to compile with a code
//   - trace_count: the trace holds a number of events of a kind
//
// Values compare by their string form, so equals: 3 matches the number 3
// and the string "3".
//
// # Critical Patterns
//
// Determinism:
//   - The wall clock steps 1ms per read, never real time
//   - Thread ids are sequential ("thread-1", "thread-2", ...)
//   - Random blocks use a fixed seed unless the options set rand_seed
//   - Each scenario gets a fresh compiler name pool
//
// Isolation:
//   - Every run journals into its own in-memory store
//   - The trace is read back from the journal, ordered by seq
//
// Golden files live in testdata/golden and are refreshed with -update.
package harness
