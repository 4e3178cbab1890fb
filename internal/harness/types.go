package harness

import (
	"github.com/roach88/blockjit/internal/blocks"
	"github.com/roach88/blockjit/internal/ir"
)

// TraceEvent is one journaled event of a run: a thread event or a
// compile outcome.
type TraceEvent struct {
	Seq      int64  `json:"seq"`
	Kind     string `json:"kind"`
	Target   string `json:"target"`
	TopBlock string `json:"top_block"`
	ThreadID string `json:"thread_id,omitempty"`
	Detail   string `json:"detail,omitempty"`
	Code     string `json:"code,omitempty"`
}

// KindCompiled and KindCompileFailed are the trace kinds of compile
// outcomes; thread events use engine.EventKind.
const (
	KindCompiled      = "compiled"
	KindCompileFailed = "compile_failed"
)

// TargetState is the final state of one original target.
type TargetState struct {
	Speech    string                `json:"speech,omitempty"`
	Variables map[string]ir.Value   `json:"variables"`
	Lists     map[string][]ir.Value `json:"lists"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass indicates overall test success.
	Pass bool `json:"pass"`

	// RunID is the journal run the trace was read from.
	RunID string `json:"run_id"`

	// Ticks is the number of ticks stepped.
	Ticks int `json:"ticks"`

	// Trace contains every journaled event in seq order.
	Trace []TraceEvent `json:"trace"`

	// State is keyed by target name.
	State map[string]*TargetState `json:"state"`

	// Errors contains assertion failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		State:  make(map[string]*TargetState),
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// SnapshotState captures the variables and lists of every original target.
func SnapshotState(p *blocks.Project) map[string]*TargetState {
	state := make(map[string]*TargetState)
	for _, t := range p.Targets {
		if !t.IsOriginal {
			continue
		}
		ts := &TargetState{
			Speech:    t.Speech,
			Variables: make(map[string]ir.Value),
			Lists:     make(map[string][]ir.Value),
		}
		for _, v := range t.Variables {
			switch v.Type {
			case blocks.VariableList:
				ts.Lists[v.Name] = append([]ir.Value{}, v.List...)
			case blocks.VariableScalar:
				ts.Variables[v.Name] = v.Value
			}
		}
		state[t.Name] = ts
	}
	return state
}
