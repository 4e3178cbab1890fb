package engine

import (
	"sync"

	"github.com/roach88/blockjit/internal/ir"
)

// Promise is the eventual result of an asynchronous primitive. A primitive
// returns a *Promise instead of a value and settles it later, from any
// goroutine. The first Resolve or Reject wins; later calls are ignored.
type Promise struct {
	mu      sync.Mutex
	settled bool
	value   ir.Value
	err     error
	waiters []func()
}

// NewPromise returns a pending promise.
func NewPromise() *Promise {
	return &Promise{}
}

// Resolved returns a promise already fulfilled with v.
func Resolved(v ir.Value) *Promise {
	return &Promise{settled: true, value: v}
}

// Rejected returns a promise already rejected with err.
func Rejected(err error) *Promise {
	return &Promise{settled: true, err: err}
}

// Resolve fulfills the promise with v.
func (p *Promise) Resolve(v ir.Value) {
	p.settle(v, nil)
}

// Reject rejects the promise with err.
func (p *Promise) Reject(err error) {
	p.settle(nil, err)
}

func (p *Promise) settle(v ir.Value, err error) {
	p.mu.Lock()
	if p.settled {
		p.mu.Unlock()
		return
	}
	p.settled = true
	p.value = v
	p.err = err
	waiters := p.waiters
	p.waiters = nil
	p.mu.Unlock()

	for _, fn := range waiters {
		fn()
	}
}

// Result returns the settled value or error. ok is false while pending.
func (p *Promise) Result() (v ir.Value, err error, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.value, p.err, p.settled
}

// Settled reports whether the promise has been resolved or rejected.
func (p *Promise) Settled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.settled
}

// onSettle runs fn once the promise settles. It reports false, without
// registering fn, if the promise has already settled.
func (p *Promise) onSettle(fn func()) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.settled {
		return false
	}
	p.waiters = append(p.waiters, fn)
	return true
}
