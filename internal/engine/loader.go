package engine

import (
	"log/slog"
	"slices"

	"github.com/roach88/blockjit/internal/ir"
)

// Flow tells the enclosing statement sequence how to continue.
type Flow int

const (
	// FlowNext runs the following statement.
	FlowNext Flow = iota
	// FlowContinue skips to the next iteration of the innermost loop.
	FlowContinue
	// FlowReturn leaves the unit; Exec.Ret holds the result.
	FlowReturn
)

// Stmt is one lowered statement.
type Stmt func(x *Exec) Flow

// SetupFunc computes a per-thread value bound once when a thread first
// enters a unit, such as a resolved variable reference.
type SetupFunc func(th *Thread) any

// Fragment is the output of the code generator for one script or
// procedure variant, before it is bound to a helper table.
type Fragment struct {
	// Name is the generated name: factoryN for an entry script,
	// funN_code or genN_code for a procedure.
	Name    string
	Variant string
	Yields  bool
	Arity   int
	// Helpers names every runtime helper the body calls.
	Helpers []string
	Setup   []SetupFunc
	Body    Stmt
	// Source is the textual listing of Body.
	Source string
}

// Unit is a loaded fragment: its helper references are known to resolve.
type Unit struct {
	Name    string
	Variant string
	Yields  bool
	Arity   int
	Source  string
	Helpers []string

	body    Stmt
	setup   []SetupFunc
	helpers *Helpers
}

// Invoke runs the unit body on x.
func (u *Unit) Invoke(x *Exec) {
	u.body(x)
}

// Program is a compiled script: the entry unit plus every procedure
// variant it can reach, keyed by variant.
type Program struct {
	TopBlockID    string
	Entry         *Unit
	Procedures    map[string]*Unit
	ExecutableHat bool
}

// Loader binds fragments to a helper table.
type Loader struct {
	helpers *Helpers
}

// NewLoader creates a loader over h.
func NewLoader(h *Helpers) *Loader {
	return &Loader{helpers: h}
}

// Helpers returns the table units are bound to.
func (l *Loader) Helpers() *Helpers {
	return l.helpers
}

// Load checks that every helper f references is bound and returns the unit.
// A fragment naming an unknown or unbound helper is rejected with a
// *LoadError, and the offending listing is logged.
func (l *Loader) Load(f *Fragment) (*Unit, error) {
	var missing []string
	for _, name := range f.Helpers {
		if !l.helpers.Has(name) {
			missing = append(missing, name)
		}
	}
	if f.Body == nil || len(missing) > 0 {
		err := &LoadError{Unit: f.Name, Missing: missing, Source: f.Source}
		slog.Error("unable to load compiled unit",
			"unit", f.Name,
			"missing", missing,
			"source", f.Source,
		)
		return nil, err
	}
	return &Unit{
		Name:    f.Name,
		Variant: f.Variant,
		Yields:  f.Yields,
		Arity:   f.Arity,
		Source:  f.Source,
		Helpers: slices.Clone(f.Helpers),
		body:    f.Body,
		setup:   f.Setup,
		helpers: l.helpers,
	}, nil
}

// procedureResult is what a procedure returns when it runs off its end.
var procedureResult ir.Value = ir.String("")
