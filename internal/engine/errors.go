package engine

import (
	"errors"
	"fmt"
	"strings"
)

// RuntimeError represents a failure while stepping a thread.
//
// Runtime errors include:
//   - Primitive panic: a compatibility-layer primitive panicked
//   - Routine panic: lowered code panicked (an internal invariant broke)
//
// The thread that raised the error is retired; the rest of the project
// keeps running.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// ThreadID identifies the failed thread.
	ThreadID string

	// TopBlock is the top block of the failed script.
	TopBlock string
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodePrimitivePanic indicates a primitive panicked.
	ErrCodePrimitivePanic RuntimeErrorCode = "E_PRIMITIVE_PANIC"

	// ErrCodeRoutinePanic indicates compiled code panicked.
	ErrCodeRoutinePanic RuntimeErrorCode = "E_ROUTINE_PANIC"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.ThreadID != "" {
		return fmt.Sprintf("%s: %s (thread=%s, top_block=%s)", e.Code, e.Message, e.ThreadID, e.TopBlock)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsPrimitivePanic returns true if the error came from a primitive.
// Uses errors.As to handle wrapped errors.
func IsPrimitivePanic(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodePrimitivePanic
	}
	return false
}

// LoadError is returned by the loader when a fragment cannot be bound:
// its body is missing or it names helpers the table does not provide.
type LoadError struct {
	Unit    string
	Missing []string
	Source  string
}

// Error implements the error interface.
func (e *LoadError) Error() string {
	if len(e.Missing) == 0 {
		return fmt.Sprintf("unable to load %s: no body", e.Unit)
	}
	return fmt.Sprintf("unable to load %s: unbound helpers %s", e.Unit, strings.Join(e.Missing, ", "))
}

// IsLoadError returns true if the error is a LoadError.
func IsLoadError(err error) bool {
	var le *LoadError
	return errors.As(err, &le)
}
