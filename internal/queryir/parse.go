package queryir

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/blockjit/internal/ir"
)

// ParseFilter builds a predicate from field=value terms, as given on the
// command line. A comma-separated value matches any of its parts. seq is
// read as a number and ok as a boolean; everything else is text.
//
// Example:
//
//	ParseFilter([]string{"kind=suspended,done", "target=Cat"})
//
// is kind IN ('suspended', 'done') AND target = 'Cat'. No terms gives a
// nil predicate.
func ParseFilter(terms []string) (Predicate, error) {
	preds := make([]Predicate, 0, len(terms))
	for _, term := range terms {
		field, raw, ok := strings.Cut(term, "=")
		field = strings.TrimSpace(field)
		if !ok || field == "" {
			return nil, fmt.Errorf("filter %q: want field=value", term)
		}

		parts := strings.Split(raw, ",")
		values := make([]ir.Value, len(parts))
		for i, part := range parts {
			v, err := parseValue(field, part)
			if err != nil {
				return nil, fmt.Errorf("filter %q: %w", term, err)
			}
			values[i] = v
		}

		if len(values) == 1 {
			preds = append(preds, &Equals{Field: field, Value: values[0]})
		} else {
			preds = append(preds, &OneOf{Field: field, Values: values})
		}
	}
	return Where(preds...), nil
}

func parseValue(field, raw string) (ir.Value, error) {
	switch field {
	case "seq":
		n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("seq must be an integer")
		}
		return ir.Number(n), nil
	case "ok":
		b, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("ok must be true or false")
		}
		return ir.Bool(b), nil
	}
	return ir.String(raw), nil
}
