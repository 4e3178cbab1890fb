package library_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/blockjit/internal/ir"
)

// broadcastProject declares the message "go" on the stage. field is the
// rendered BROADCAST_OPTION field of the sender's menu.
func broadcastProject(field, sender string) string {
	return `
stage:
  variables:
    msg1: {name: go, type: broadcast_msg}
sprites:
  - name: Sprite1
    variables:
      got: {name: got, value: 0}
      after: {name: after, value: 0}
    blocks:
      flag: {opcode: event_whenflagclicked, top_level: true, next: send}
      send: {opcode: ` + sender + `, inputs: {BROADCAST_INPUT: menu}, next: mark}
      menu: {opcode: event_broadcast_menu, shadow: true, fields: {BROADCAST_OPTION: ` + field + `}}
      mark: {opcode: data_setvariableto, fields: {VARIABLE: {id: after, value: after}}, inputs: {VALUE: gotv}}
      gotv: {opcode: data_variable, fields: {VARIABLE: {id: got, value: got}}}
      recv: {opcode: event_whenbroadcastreceived, top_level: true, fields: {BROADCAST_OPTION: {value: GO}}, next: wait}
      wait: {opcode: control_wait, inputs: {DURATION: secs}, next: inc}
      secs: {opcode: math_number, shadow: true, fields: {NUM: {value: "0.05"}}}
      inc: {opcode: data_changevariableby, fields: {VARIABLE: {id: got, value: got}}, inputs: {VALUE: one}}
      one: {opcode: math_number, shadow: true, fields: {NUM: {value: "1"}}}
`
}

func TestBroadcastMenu_ResolvesMessageName(t *testing.T) {
	tests := []struct {
		name  string
		field string
		want  string
	}{
		{name: "by id", field: "{id: msg1, value: stale}", want: "go"},
		{name: "by name", field: "{value: go}", want: "go"},
		{name: "unknown", field: "{id: nope, value: nope}", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRig(t, broadcastProject(tt.field, "event_broadcast"))
			frag := r.fragment(t, "flag")
			assert.Contains(t, frag.Source, `"`+tt.want+`"`)
		})
	}
}

func TestBroadcast_StartsReceivers(t *testing.T) {
	r := newRig(t, broadcastProject("{id: msg1, value: go}", "event_broadcast"))
	r.run(t, 200)

	assert.Equal(t, ir.Number(1), r.variable(t, "got").Value)
	assert.Equal(t, ir.Number(0), r.variable(t, "after").Value, "sender did not wait")
}

func TestBroadcastAndWait_WaitsForReceivers(t *testing.T) {
	r := newRig(t, broadcastProject("{id: msg1, value: go}", "event_broadcastandwait"))
	threads := r.run(t, 200)

	require.NotEmpty(t, threads)
	assert.Equal(t, ir.Number(1), r.variable(t, "got").Value)
	assert.Equal(t, ir.Number(1), r.variable(t, "after").Value, "sender resumed after the receiver finished")
}
