package codegen

import (
	"errors"
	"fmt"
)

// Error codes for lowering failures.
const (
	// ErrCodeInvariant means the IR contradicts itself, such as a yield in
	// a unit not marked as yielding. It is a compiler bug.
	ErrCodeInvariant    = "E_INVARIANT"
	ErrCodeConstant     = "E_CONSTANT"
	ErrCodeUnknownInput = "E_UNKNOWN_INPUT"
	ErrCodeUnknownStack = "E_UNKNOWN_STACK"
)

// LowerError is a failure to lower one unit.
type LowerError struct {
	Code    string
	Message string
	// Unit is the script or procedure variant being lowered.
	Unit string
}

// Error implements the error interface.
func (e *LowerError) Error() string {
	if e.Unit != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Unit, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// ErrorCode returns the stable code.
func (e *LowerError) ErrorCode() string { return e.Code }

// IsInvariantError reports whether err is a lowering invariant violation.
func IsInvariantError(err error) bool {
	var le *LowerError
	return errors.As(err, &le) && le.Code == ErrCodeInvariant
}

// bailout carries a LowerError up through a deep descent.
type bailout struct {
	err *LowerError
}
