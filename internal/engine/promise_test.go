package engine

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/blockjit/internal/ir"
)

func TestPromise_FirstSettlementWins(t *testing.T) {
	p := NewPromise()
	assert.False(t, p.Settled())

	p.Resolve(ir.Number(1))
	p.Reject(errors.New("late"))
	p.Resolve(ir.Number(2))

	v, err, ok := p.Result()
	require.True(t, ok)
	assert.NoError(t, err)
	assert.Equal(t, ir.Number(1), v)
}

func TestPromise_WaitersRunOnSettle(t *testing.T) {
	p := NewPromise()
	calls := 0
	require.True(t, p.onSettle(func() { calls++ }))
	require.True(t, p.onSettle(func() { calls++ }))

	p.Reject(errors.New("nope"))
	assert.Equal(t, 2, calls)
	assert.False(t, p.onSettle(func() { calls++ }), "settled promises do not register waiters")
	assert.Equal(t, 2, calls)
}

func TestPromise_ConcurrentResolve(t *testing.T) {
	p := NewPromise()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			p.Resolve(ir.Number(float64(n)))
		}(i)
	}
	wg.Wait()
	_, _, ok := p.Result()
	assert.True(t, ok)
}

// =============================================================================
// Threads waiting on promises
// =============================================================================

func compatReturning(ret any) *CompatCall {
	return &CompatCall{
		Opcode:    "test_async",
		Primitive: func(map[string]ir.Value, *BlockUtility) any { return ret },
	}
}

func TestWaitPromise_AlreadySettledResumesSameTick(t *testing.T) {
	r := newRig(t)
	var got ir.Value
	th := r.start(t, "s", func(x *Exec) {
		got = x.CallCompat(compatReturning(Resolved(ir.String("ok"))))
	})

	r.engine.Step()

	assert.True(t, th.Done())
	assert.Equal(t, ir.String("ok"), got)
	assert.Equal(t, 1, th.Suspensions(), "the wait still suspends once")
}

func TestWaitPromise_SettledFromAnotherGoroutine(t *testing.T) {
	r := newRig(t)
	p := NewPromise()
	var got ir.Value
	th := r.start(t, "s", func(x *Exec) {
		got = x.CallCompat(compatReturning(p))
	})

	r.engine.Step()
	assert.Equal(t, StatusPromiseWait, th.Status())

	r.engine.Step()
	assert.Equal(t, StatusPromiseWait, th.Status(), "still parked without a settlement")

	done := make(chan struct{})
	go func() {
		p.Resolve(ir.Number(42))
		close(done)
	}()
	<-done

	r.engine.Step()
	assert.True(t, th.Done())
	assert.Equal(t, ir.Number(42), got)
}

func TestWaitPromise_RejectionBecomesMessage(t *testing.T) {
	r := newRig(t)
	p := NewPromise()
	var got ir.Value
	th := r.start(t, "s", func(x *Exec) {
		got = x.CallCompat(compatReturning(p))
	})

	r.engine.Step()
	p.Reject(errors.New("network down"))
	r.engine.Step()

	assert.True(t, th.Done())
	assert.NoError(t, th.Err(), "a rejection does not fail the thread")
	assert.Equal(t, ir.String("network down"), got)
}

func TestWaitPromise_RetiredWhileWaiting(t *testing.T) {
	r := newRig(t)
	p := NewPromise()
	reached := false
	th := r.start(t, "s", func(x *Exec) {
		x.CallCompat(compatReturning(p))
		reached = true
	})

	r.engine.Step()
	require.Equal(t, StatusPromiseWait, th.Status())

	r.engine.StopAll()
	assert.True(t, th.Done())
	assert.Empty(t, r.engine.Threads())

	p.Resolve(ir.Number(1))
	r.engine.Step()
	assert.False(t, reached, "a retired thread never resumes")
}

func TestWaitPromise_UseFlagsMarksResumption(t *testing.T) {
	r := newRig(t)
	th := r.start(t, "s", func(x *Exec) {
		c := compatReturning(Resolved(nil))
		c.UseFlags = true
		x.CallCompat(c)
	})

	r.engine.Step()
	assert.True(t, th.HasResumedFromPromise)
}
