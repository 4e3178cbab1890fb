package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/blockjit/internal/ir"
)

// yieldingPrimitive asks to be run again n times before returning "x".
func yieldingPrimitive(n int, tick bool, calls *int) Primitive {
	return func(_ map[string]ir.Value, util *BlockUtility) any {
		*calls++
		if *calls <= n {
			if tick {
				util.YieldTick()
			} else {
				util.Yield()
			}
			return nil
		}
		return "x"
	}
}

func TestCallCompat_YieldReexecutes(t *testing.T) {
	r := newRig(t)
	calls := 0
	var got ir.Value
	th := r.start(t, "s", func(x *Exec) {
		got = x.CallCompat(&CompatCall{Opcode: "test_yield", Primitive: yieldingPrimitive(2, false, &calls)})
	})

	r.engine.Step()

	assert.True(t, th.Done())
	assert.Equal(t, 3, calls)
	assert.Equal(t, 2, th.Suspensions())
	assert.Equal(t, ir.String("x"), got)
}

func TestCallCompat_WarpYieldDoesNotSuspend(t *testing.T) {
	r := newRig(t)
	calls := 0
	th := r.start(t, "s", func(x *Exec) {
		x.CallCompat(&CompatCall{Opcode: "test_yield", Warp: true, Primitive: yieldingPrimitive(2, false, &calls)})
	})

	r.engine.Step()

	assert.True(t, th.Done())
	assert.Equal(t, 3, calls)
	assert.Zero(t, th.Suspensions())
}

func TestCallCompat_YieldTickWaitsForNextTick(t *testing.T) {
	r := newRig(t)
	calls := 0
	th := r.start(t, "s", func(x *Exec) {
		x.CallCompat(&CompatCall{Opcode: "test_tick", Warp: true, Primitive: yieldingPrimitive(2, true, &calls)})
	})

	r.engine.Step()
	assert.Equal(t, 1, calls)
	assert.Equal(t, StatusYieldTick, th.Status())

	r.engine.Step()
	assert.Equal(t, 2, calls)

	r.engine.Step()
	assert.Equal(t, 3, calls)
	assert.True(t, th.Done())
	assert.Equal(t, 2, th.Suspensions(), "warp does not skip a tick yield")
}

func TestCallCompat_StartBranch(t *testing.T) {
	r := newRig(t)
	branch := NewBranchInfo(false)
	var got ir.Value
	r.start(t, "s", func(x *Exec) {
		got = x.CallCompat(&CompatCall{
			Opcode: "test_if",
			Branch: branch,
			Primitive: func(_ map[string]ir.Value, util *BlockUtility) any {
				util.StackFrame()["seen"] = true
				util.StartBranch(2, true)
				return nil
			},
		})
	})

	r.engine.Step()

	assert.Equal(t, ir.Number(2), got)
	assert.True(t, branch.IsLoop)
	assert.Equal(t, true, branch.StackFrame["seen"])
}

func TestCallCompat_NoBranchKeepsDefaultLoop(t *testing.T) {
	r := newRig(t)
	branch := NewBranchInfo(true)
	branch.IsLoop = false
	var got ir.Value
	r.start(t, "s", func(x *Exec) {
		got = x.CallCompat(&CompatCall{
			Opcode:    "test_loop",
			Branch:    branch,
			Primitive: func(map[string]ir.Value, *BlockUtility) any { return nil },
		})
	})

	r.engine.Step()

	assert.Nil(t, got)
	assert.True(t, branch.IsLoop)
}

func TestCallCompat_ConvertsReturnValues(t *testing.T) {
	tests := []struct {
		name string
		ret  any
		want ir.Value
	}{
		{"nil", nil, nil},
		{"string", "hi", ir.String("hi")},
		{"float", 1.5, ir.Number(1.5)},
		{"int", 3, ir.Number(3)},
		{"bool", true, ir.Bool(true)},
		{"value", ir.Number(7), ir.Number(7)},
		{"other", []int{1}, ir.String("[1]")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, compatValue("test", tt.ret))
		})
	}
}

func TestCallCompat_PassesArguments(t *testing.T) {
	r := newRig(t)
	var seen map[string]ir.Value
	var block string
	r.start(t, "s", func(x *Exec) {
		x.CallCompat(&CompatCall{
			Opcode:  "test_args",
			BlockID: "b1",
			Args:    map[string]ir.Value{"MESSAGE": ir.String("hello")},
			Primitive: func(args map[string]ir.Value, util *BlockUtility) any {
				seen = args
				block = util.BlockID()
				return nil
			},
		})
	})

	r.engine.Step()

	assert.Equal(t, ir.String("hello"), seen["MESSAGE"])
	assert.Equal(t, "b1", block)
}

func TestCallCompat_PrimitivePanicFailsOnlyItsThread(t *testing.T) {
	r := newRig(t)
	bad := r.start(t, "bad", func(x *Exec) {
		x.CallCompat(&CompatCall{
			Opcode:    "test_boom",
			Primitive: func(map[string]ir.Value, *BlockUtility) any { panic("boom") },
		})
	})
	finished := false
	good := r.start(t, "good", func(x *Exec) { finished = true })

	r.engine.Step()

	require.True(t, bad.Done())
	assert.True(t, IsPrimitivePanic(bad.Err()))
	assert.Contains(t, bad.Err().Error(), "boom")
	assert.True(t, good.Done())
	assert.NoError(t, good.Err())
	assert.True(t, finished)
	assert.Equal(t, []EventKind{EventStarted, EventFailed}, r.journal.kinds(bad.ID))
}

func TestCallCompat_RetireFromPrimitive(t *testing.T) {
	r := newRig(t)
	after := false
	th := r.start(t, "s", func(x *Exec) {
		x.CallCompat(&CompatCall{
			Opcode: "test_stop",
			Primitive: func(_ map[string]ir.Value, util *BlockUtility) any {
				util.Retire()
				return nil
			},
		})
		after = true
	})

	r.engine.Step()

	assert.True(t, th.Done())
	assert.False(t, after)
	assert.Empty(t, r.engine.Threads())
}

func TestBlockUtility_StackTimer(t *testing.T) {
	r := newRig(t)
	var elapsed []float64
	calls := 0
	r.start(t, "s", func(x *Exec) {
		x.CallCompat(&CompatCall{
			Opcode: "test_wait",
			Primitive: func(_ map[string]ir.Value, util *BlockUtility) any {
				calls++
				ms, ok := util.TimerElapsed()
				if !ok {
					util.StartStackTimer()
					util.YieldTick()
					return nil
				}
				elapsed = append(elapsed, ms)
				if calls < 3 {
					util.YieldTick()
				}
				return nil
			},
		})
	})

	r.engine.RunTicks(5)

	require.Len(t, elapsed, 2)
	assert.Greater(t, elapsed[0], 0.0)
	assert.Greater(t, elapsed[1], elapsed[0])
}
