package library_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/blockjit/internal/ir"
)

func TestTimer_CountsFromGreenFlag(t *testing.T) {
	got := eval(t, nil, block("expr", "sensing_timer"))
	assert.Greater(t, ir.ToNumber(got), 0.0)
	assert.Less(t, ir.ToNumber(got), 1.0)
}

func TestResetTimer(t *testing.T) {
	doc := sprite([]string{"before: {name: before}", "after: {name: after}"},
		block("flag", "event_whenflagclicked", "top_level: true", "next: wait"),
		block("wait", "control_wait", inputs("DURATION", "secs"), "next: s1"),
		num("secs", "0.1"),
		setTo("s1", "before", "t1", "reset"),
		block("t1", "sensing_timer"),
		block("reset", "sensing_resettimer", "next: s2"),
		setTo("s2", "after", "t2"),
		block("t2", "sensing_timer"),
	)
	r := newRig(t, doc)
	r.run(t, 200)

	before := ir.ToNumber(r.variable(t, "before").Value)
	after := ir.ToNumber(r.variable(t, "after").Value)
	assert.GreaterOrEqual(t, before, 0.1)
	assert.Less(t, after, before)
}

func TestCurrent(t *testing.T) {
	tests := []struct {
		menu string
		want ir.Value
	}{
		{menu: "YEAR", want: ir.Number(2024)},
		{menu: "MONTH", want: ir.Number(1)},
		{menu: "DATE", want: ir.Number(1)},
		{menu: "DAYOFWEEK", want: ir.Number(2)},
		{menu: "HOUR", want: ir.Number(0)},
		{menu: "bogus", want: ir.Number(0)},
	}
	for _, tt := range tests {
		t.Run(tt.menu, func(t *testing.T) {
			got := eval(t, nil, block("expr", "sensing_current", fields("CURRENTMENU", tt.menu)))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDaysSince2000(t *testing.T) {
	got := eval(t, nil, block("expr", "sensing_dayssince2000"))
	// 2000-01-01 to 2024-01-01 is 8766 days.
	assert.InDelta(t, 8766.0, ir.ToNumber(got), 0.01)
}
