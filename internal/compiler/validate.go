package compiler

import (
	"fmt"
	"maps"
	"slices"

	"github.com/roach88/blockjit/internal/codegen"
	"github.com/roach88/blockjit/internal/ir"
)

// Validation error codes (E100-E199)
const (
	// Representation errors (E100-E109)
	ErrMissingEntry     = "E100" // representation has no entry script
	ErrMissingProcedure = "E101" // a script depends on a variant that was not built
	ErrVariantMismatch  = "E102" // procedure keyed under a different variant
	ErrNotProcedure     = "E103" // procedure table holds an entry script

	// Suspension errors (E110-E119)
	ErrYieldNotPropagated = "E110" // caller of a suspending procedure does not suspend
	ErrRecursionNotMarked = "E111" // non-warp self call without suspension

	// Node errors (E120-E129)
	ErrEmptyOpcode   = "E120" // node without an opcode
	ErrUndeclaredDep = "E121" // call node to a variant the script does not depend on
)

// ValidationError is one inconsistency in a built representation.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// ValidateRepresentation checks the invariants the code generator relies
// on. Returns all errors found (does not fail-fast).
func ValidateRepresentation(rep *ir.Representation) []ValidationError {
	if rep == nil || rep.Entry == nil {
		return []ValidationError{{
			Field:   "entry",
			Message: "representation has no entry script",
			Code:    ErrMissingEntry,
		}}
	}

	var errs []ValidationError
	errs = append(errs, validateScript("entry", rep.Entry, rep)...)
	for _, variant := range slices.Sorted(maps.Keys(rep.Procedures)) {
		proc := rep.Procedures[variant]
		field := fmt.Sprintf("procedures[%s]", variant)
		if !proc.IsProcedure {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: "procedure table holds a non-procedure script",
				Code:    ErrNotProcedure,
			})
		}
		if proc.ProcedureVariant != variant {
			errs = append(errs, ValidationError{
				Field:   field + ".variant",
				Message: fmt.Sprintf("script is variant %q", proc.ProcedureVariant),
				Code:    ErrVariantMismatch,
			})
		}
		errs = append(errs, validateScript(field, proc, rep)...)
	}
	return errs
}

func validateScript(field string, s *ir.Script, rep *ir.Representation) []ValidationError {
	var errs []ValidationError

	for i, variant := range s.DependedProcedures {
		callee, ok := rep.Procedures[variant]
		if !ok {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("%s.depended[%d]", field, i),
				Message: fmt.Sprintf("procedure %s was never built", variant),
				Code:    ErrMissingProcedure,
			})
			continue
		}
		if callee.Yields && !s.Yields {
			errs = append(errs, ValidationError{
				Field:   field + ".yields",
				Message: fmt.Sprintf("calls suspending procedure %s but does not suspend", variant),
				Code:    ErrYieldNotPropagated,
			})
		}
		if s.IsProcedure && !s.IsWarp && callee.ProcedureCode == s.ProcedureCode && !s.Yields {
			errs = append(errs, ValidationError{
				Field:   field + ".yields",
				Message: "calls itself without warp but does not suspend",
				Code:    ErrRecursionNotMarked,
			})
		}
	}

	declared := make(map[string]bool, len(s.DependedProcedures))
	for _, v := range s.DependedProcedures {
		declared[v] = true
	}
	walkStack(s.Stack, field+".stack", func(path string, b *ir.StackBlock) {
		if b.Opcode == "" {
			errs = append(errs, ValidationError{Field: path, Message: "statement has no opcode", Code: ErrEmptyOpcode})
		}
		if b.Opcode == ir.StackProcedureCall {
			if v := b.Args.String(codegen.ProcedureVariant); !declared[v] {
				errs = append(errs, ValidationError{
					Field:   path,
					Message: fmt.Sprintf("call to %s is not a declared dependency", v),
					Code:    ErrUndeclaredDep,
				})
			}
		}
	}, func(path string, in *ir.Input) {
		if in.Opcode == "" {
			errs = append(errs, ValidationError{Field: path, Message: "input has no opcode", Code: ErrEmptyOpcode})
		}
		if in.Opcode == ir.InputProcedureCall {
			if v := in.Args.String(codegen.ProcedureVariant); !declared[v] {
				errs = append(errs, ValidationError{
					Field:   path,
					Message: fmt.Sprintf("call to %s is not a declared dependency", v),
					Code:    ErrUndeclaredDep,
				})
			}
		}
	})
	return errs
}

// walkStack visits every statement and input under s in program order.
func walkStack(s *ir.Stack, path string, onStack func(string, *ir.StackBlock), onInput func(string, *ir.Input)) {
	if s == nil {
		return
	}
	for i, b := range s.Blocks {
		p := fmt.Sprintf("%s[%d]", path, i)
		onStack(p, b)
		walkArgs(b.Args, p, onStack, onInput)
	}
}

func walkInput(in *ir.Input, path string, onStack func(string, *ir.StackBlock), onInput func(string, *ir.Input)) {
	if in == nil {
		return
	}
	onInput(path, in)
	walkArgs(in.Args, path, onStack, onInput)
}

func walkArgs(args ir.Args, path string, onStack func(string, *ir.StackBlock), onInput func(string, *ir.Input)) {
	for _, name := range slices.Sorted(maps.Keys(args)) {
		p := path + "." + name
		switch v := args[name].(type) {
		case *ir.Input:
			walkInput(v, p, onStack, onInput)
		case *ir.Stack:
			walkStack(v, p, onStack, onInput)
		case []*ir.Input:
			for i, in := range v {
				walkInput(in, fmt.Sprintf("%s[%d]", p, i), onStack, onInput)
			}
		case map[string]*ir.Input:
			for _, k := range slices.Sorted(maps.Keys(v)) {
				walkInput(v[k], p+"."+k, onStack, onInput)
			}
		case map[int]*ir.Stack:
			for i := 1; i <= len(v); i++ {
				walkStack(v[i], fmt.Sprintf("%s[%d]", p, i), onStack, onInput)
			}
		}
	}
}
