package engine

import (
	"errors"
	"fmt"
)

// DefaultMaxClones is the default number of clones allowed at once.
const DefaultMaxClones = 300

// CloneQuota tracks live clones and enforces a maximum.
//
// Clones that create clones grow exponentially; the quota keeps a runaway
// project from exhausting memory. Disposing a clone returns its slot.
type CloneQuota struct {
	max     int
	current int
}

// NewCloneQuota creates a quota with the given limit.
func NewCloneQuota(max int) *CloneQuota {
	if max <= 0 {
		max = DefaultMaxClones
	}
	return &CloneQuota{max: max}
}

// Acquire reserves a slot for a clone of sprite.
//
// Returns CloneLimitError if every slot is taken.
func (q *CloneQuota) Acquire(sprite string) error {
	if q.current >= q.max {
		return &CloneLimitError{Sprite: sprite, Clones: q.current, Limit: q.max}
	}
	q.current++
	return nil
}

// Release frees a slot.
func (q *CloneQuota) Release() {
	if q.current > 0 {
		q.current--
	}
}

// Reset frees every slot.
func (q *CloneQuota) Reset() {
	q.current = 0
}

// Current returns the number of live clones.
func (q *CloneQuota) Current() int {
	return q.current
}

// Max returns the limit.
func (q *CloneQuota) Max() int {
	return q.max
}

// CloneLimitError is returned when a clone cannot be created because the
// quota is exhausted. The creating script keeps running.
type CloneLimitError struct {
	Sprite string // The sprite that tried to clone
	Clones int    // Live clones at the time
	Limit  int    // Maximum allowed clones
}

// Error implements the error interface.
func (e *CloneLimitError) Error() string {
	return fmt.Sprintf("cannot clone %s: %d clones >= %d limit", e.Sprite, e.Clones, e.Limit)
}

// IsCloneLimitError returns true if the error is a CloneLimitError.
// Uses errors.As to handle wrapped errors.
func IsCloneLimitError(err error) bool {
	var ce *CloneLimitError
	return errors.As(err, &ce)
}
