// Package queryir provides the filter representation for journal queries.
//
// A query selects fixed columns from one journal table and narrows the
// rows with a predicate:
//
//	[--where flags] → [Query IR] → [SQL Backend] → rows
//
// The IR is deliberately small:
//   - Select(from, filter, columns) over thread_events or compiles
//   - Predicates: Equals, OneOf, And
//   - Literal values are ir.Value (String, Number, Bool)
//
// # Sealed Interfaces
//
// Query and Predicate are sealed with marker methods so backends can
// switch over every case:
//
//	switch p := pred.(type) {
//	case *Equals:
//	case *OneOf:
//	case *And:
//	}
//
// # Critical Patterns
//
// Schema Checking:
//   - Validate rejects unknown tables and columns before any SQL is built,
//     so a filter naming thread_id is an error against compiles
//   - Column names come from Columns, never from user text
//
// Determinism:
//   - Every compiled query orders by seq; backends must not drop it
package queryir
