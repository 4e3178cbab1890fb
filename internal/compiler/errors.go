package compiler

import (
	"errors"
	"fmt"

	"github.com/roach88/blockjit/internal/codegen"
)

// Compile error codes.
const (
	ErrCodeTopBlock     = "E_TOP_BLOCK"
	ErrCodeProcedure    = "E_PROCEDURE"
	ErrCodeUnknownInput = codegen.ErrCodeUnknownInput
	ErrCodeUnknownStack = codegen.ErrCodeUnknownStack
	ErrCodeDisabled     = "E_DISABLED"
	ErrCodeConstant     = codegen.ErrCodeConstant
	// ErrCodeInvariant marks a contradiction between the IR builder and
	// the code generator. It is a compiler bug, never a script problem.
	ErrCodeInvariant = codegen.ErrCodeInvariant
	// ErrCodeLoad marks a unit the engine's loader rejected.
	ErrCodeLoad = "E_LOAD"
)

// CompileError is a failure to compile one script.
type CompileError struct {
	Code    string
	Message string
	// BlockID is the top block of the script being compiled.
	BlockID string
	// Variant is set when the failure is inside a procedure variant.
	Variant string

	err error
}

// Error implements the error interface.
func (e *CompileError) Error() string {
	where := e.BlockID
	if e.Variant != "" {
		where = fmt.Sprintf("%s (procedure %s)", e.BlockID, e.Variant)
	}
	if where == "" {
		return fmt.Sprintf("[%s] %s", e.Code, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, where, e.Message)
}

// ErrorCode returns the stable code.
func (e *CompileError) ErrorCode() string { return e.Code }

// Unwrap returns the lowering or loading error behind e, if any.
func (e *CompileError) Unwrap() error { return e.err }

// IsFatal reports whether err is an internal inconsistency that must not
// be hidden behind an interpreter fallback.
func IsFatal(err error) bool {
	var ce *CompileError
	if !errors.As(err, &ce) {
		return false
	}
	return ce.Code == ErrCodeInvariant || ce.Code == ErrCodeLoad
}

// IsDisabled reports whether err comes from a script that opted out of
// compilation.
func IsDisabled(err error) bool {
	var ce *CompileError
	return errors.As(err, &ce) && ce.Code == ErrCodeDisabled
}

// fromLowerError converts a code generator failure.
func fromLowerError(le *codegen.LowerError, topBlock, variant string) *CompileError {
	return &CompileError{
		Code:    le.Code,
		Message: le.Message,
		BlockID: topBlock,
		Variant: variant,
		err:     le,
	}
}

// bailout carries a CompileError up through a deep descent of the block
// graph. It never crosses the package boundary.
type bailout struct {
	err *CompileError
}
