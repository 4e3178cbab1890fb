package queryir

import (
	"fmt"
	"slices"

	"github.com/roach88/blockjit/internal/ir"
)

// ValidationError is one problem found in a query.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks a query against the journal schema. It returns every
// problem found, or nil.
//
// Validate is a pure function with no side effects.
func Validate(q Query) []ValidationError {
	v := &validator{}
	v.validateQuery(q)
	return v.errs
}

// ValidatePredicate checks a predicate against the columns of table.
func ValidatePredicate(table Table, p Predicate) []ValidationError {
	v := &validator{}
	if _, ok := Columns[table]; !ok {
		v.add("", "unknown table %q", table)
		return v.errs
	}
	v.validatePredicate(table, p)
	return v.errs
}

type validator struct {
	errs []ValidationError
}

func (v *validator) add(field, format string, args ...any) {
	v.errs = append(v.errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
}

func (v *validator) validateQuery(q Query) {
	switch query := q.(type) {
	case *Select:
		if query == nil {
			v.add("", "nil query")
			return
		}
		v.validateSelect(query)
	case nil:
		v.add("", "nil query")
	default:
		v.add("", "unknown query type %T", q)
	}
}

func (v *validator) validateSelect(sel *Select) {
	cols, ok := Columns[sel.From]
	if !ok {
		v.add("", "unknown table %q", sel.From)
		return
	}
	if len(sel.Columns) == 0 {
		v.add("", "no columns selected")
	}
	for _, c := range sel.Columns {
		if !slices.Contains(cols, c) {
			v.add(c, "no such column in %s", sel.From)
		}
	}
	v.validatePredicate(sel.From, sel.Filter)
}

func (v *validator) validatePredicate(table Table, p Predicate) {
	switch pred := p.(type) {
	case nil:
	case *Equals:
		v.validateField(table, pred.Field)
		v.validateValue(pred.Field, pred.Value)
	case *OneOf:
		v.validateField(table, pred.Field)
		for _, val := range pred.Values {
			v.validateValue(pred.Field, val)
		}
	case *And:
		for _, sub := range pred.Predicates {
			v.validatePredicate(table, sub)
		}
	default:
		v.add("", "unknown predicate type %T", p)
	}
}

func (v *validator) validateField(table Table, field string) {
	if !slices.Contains(Columns[table], field) {
		v.add(field, "no such column in %s", table)
	}
}

// validateValue accepts the values a journal column can hold.
func (v *validator) validateValue(field string, val ir.Value) {
	switch val.(type) {
	case ir.String, ir.Number, ir.Bool:
	case nil:
		v.add(field, "missing value")
	default:
		v.add(field, "value of type %T cannot be compared", val)
	}
}
