package codegen

import (
	"fmt"
	"sync/atomic"
)

// Pool hands out prefix0, prefix1, ... and never repeats a name.
//
// Thread-safety: Next is safe for concurrent use.
type Pool struct {
	prefix string
	n      atomic.Int64
}

// NewPool creates a pool for prefix.
func NewPool(prefix string) *Pool {
	return &Pool{prefix: prefix}
}

// Next returns the next unused name.
func (p *Pool) Next() string {
	return fmt.Sprintf("%s%d", p.prefix, p.n.Add(1)-1)
}

// Names are the pools for generated unit names. They are shared by every
// compile in the process so listings never reuse a name.
type Names struct {
	Factory   *Pool
	Function  *Pool
	Generator *Pool
}

// NewNames creates fresh pools. Tests use their own so that listings are
// stable.
func NewNames() *Names {
	return &Names{
		Factory:   NewPool("factory"),
		Function:  NewPool("fun"),
		Generator: NewPool("gen"),
	}
}

// DefaultNames is used when Lower is not given WithNames.
var DefaultNames = NewNames()
