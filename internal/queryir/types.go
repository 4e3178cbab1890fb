package queryir

import "github.com/roach88/blockjit/internal/ir"

// Table is a journal table a query can read.
type Table string

const (
	TableThreadEvents Table = "thread_events"
	TableCompiles     Table = "compiles"
)

// Columns lists the filterable columns of each table.
var Columns = map[Table][]string{
	TableThreadEvents: {"run_id", "seq", "thread_id", "target", "top_block", "kind", "detail"},
	TableCompiles:     {"run_id", "seq", "target", "top_block", "ok", "code", "message"},
}

// Query is an abstract journal query.
//
// This is a sealed interface - only types in this package implement it.
type Query interface {
	queryNode()
}

// Predicate is a row filter.
//
// This is a sealed interface - only types in this package implement it.
type Predicate interface {
	predicateNode()
}

// Select reads Columns from one table, keeping rows that satisfy Filter.
//
// Semantics:
//
//	SELECT <columns> FROM <from> WHERE <filter> ORDER BY seq
//
// Example:
//
//	&Select{
//	  From:    TableThreadEvents,
//	  Filter:  &And{Predicates: []Predicate{
//	    &Equals{Field: "run_id", Value: ir.String("run-1")},
//	    &Equals{Field: "kind", Value: ir.String("suspended")},
//	  }},
//	  Columns: []string{"seq", "thread_id"},
//	}
type Select struct {
	From    Table
	Filter  Predicate // nil keeps every row
	Columns []string  // in scan order; must be non-empty
}

func (*Select) queryNode() {}

// Equals holds when Field equals Value.
type Equals struct {
	Field string
	Value ir.Value
}

func (*Equals) predicateNode() {}

// OneOf holds when Field equals any of Values. An empty OneOf never holds.
type OneOf struct {
	Field  string
	Values []ir.Value
}

func (*OneOf) predicateNode() {}

// And holds when every predicate holds. An empty And always holds.
type And struct {
	Predicates []Predicate
}

func (*And) predicateNode() {}

// Where builds the conjunction of preds, dropping nils. It returns nil
// when nothing is left and the single predicate when only one is.
func Where(preds ...Predicate) Predicate {
	var kept []Predicate
	for _, p := range preds {
		if p != nil {
			kept = append(kept, p)
		}
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	}
	return &And{Predicates: kept}
}
