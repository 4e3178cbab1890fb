package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/blockjit/internal/engine"
	"github.com/roach88/blockjit/internal/ir"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
}

func (e *AssertionError) Error() string {
	return fmt.Sprintf("%s: expected %s, got %s", e.Type, e.Expected, e.Actual)
}

func checkAssertion(r *Result, a Assertion) error {
	switch a.Type {
	case AssertVariable:
		return assertVariable(r, a)
	case AssertList:
		return assertList(r, a)
	case AssertSaid:
		return assertSaid(r, a)
	case AssertSuspensions:
		return assertCount(r, a, string(engine.EventSuspended))
	case AssertTraceCount:
		return assertCount(r, a, a.Kind)
	case AssertDone:
		return assertDone(r, a)
	case AssertCompileError:
		return assertCompileError(r, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func targetState(r *Result, name string) (*TargetState, error) {
	ts, ok := r.State[name]
	if !ok {
		return nil, fmt.Errorf("no target %q", name)
	}
	return ts, nil
}

func assertVariable(r *Result, a Assertion) error {
	ts, err := targetState(r, a.Target)
	if err != nil {
		return err
	}
	v, ok := ts.Variables[a.Name]
	if !ok {
		return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("variable %s.%s", a.Target, a.Name), Actual: "no such variable"}
	}
	want := expectedText(a.Equals)
	if got := ir.ToString(v); got != want {
		return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("%s.%s = %q", a.Target, a.Name, want), Actual: fmt.Sprintf("%q", got)}
	}
	return nil
}

func assertList(r *Result, a Assertion) error {
	ts, err := targetState(r, a.Target)
	if err != nil {
		return err
	}
	items, ok := ts.Lists[a.Name]
	if !ok {
		return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("list %s.%s", a.Target, a.Name), Actual: "no such list"}
	}
	want := make([]string, len(a.Items))
	for i, item := range a.Items {
		want[i] = expectedText(item)
	}
	got := make([]string, len(items))
	for i, item := range items {
		got[i] = ir.ToString(item)
	}
	if strings.Join(want, "\x00") != strings.Join(got, "\x00") || len(want) != len(got) {
		return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("%q", want), Actual: fmt.Sprintf("%q", got)}
	}
	return nil
}

func assertSaid(r *Result, a Assertion) error {
	ts, err := targetState(r, a.Target)
	if err != nil {
		return err
	}
	if ts.Speech != a.Text {
		return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("%q", a.Text), Actual: fmt.Sprintf("%q", ts.Speech)}
	}
	return nil
}

// assertCount counts kind events, at TopBlock if one is given.
func assertCount(r *Result, a Assertion, kind string) error {
	n := 0
	for _, ev := range r.Trace {
		if ev.Kind == kind && (a.TopBlock == "" || ev.TopBlock == a.TopBlock) {
			n++
		}
	}
	if n != a.Count {
		return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("%d %s events", a.Count, kind), Actual: fmt.Sprintf("%d", n)}
	}
	return nil
}

// assertDone requires at least one thread at TopBlock, and every one of
// them to have finished without failing.
func assertDone(r *Result, a Assertion) error {
	started := map[string]bool{}
	for _, ev := range r.Trace {
		if ev.TopBlock != a.TopBlock || ev.ThreadID == "" {
			continue
		}
		switch engine.EventKind(ev.Kind) {
		case engine.EventStarted:
			started[ev.ThreadID] = true
		case engine.EventDone:
			delete(started, ev.ThreadID)
		case engine.EventFailed:
			return &AssertionError{Type: a.Type, Expected: "thread " + ev.ThreadID + " done", Actual: "failed: " + ev.Detail}
		}
	}
	if !hasKind(r.Trace, a.TopBlock, string(engine.EventDone)) {
		return &AssertionError{Type: a.Type, Expected: "a finished thread at " + a.TopBlock, Actual: "none"}
	}
	if len(started) > 0 {
		return &AssertionError{Type: a.Type, Expected: "every thread at " + a.TopBlock + " done", Actual: fmt.Sprintf("%d still running", len(started))}
	}
	return nil
}

func assertCompileError(r *Result, a Assertion) error {
	for _, ev := range r.Trace {
		if ev.Kind == KindCompileFailed && ev.TopBlock == a.TopBlock {
			if ev.Code != a.Code {
				return &AssertionError{Type: a.Type, Expected: a.Code, Actual: ev.Code}
			}
			return nil
		}
	}
	return &AssertionError{Type: a.Type, Expected: a.Code, Actual: "no compile failure at " + a.TopBlock}
}

func hasKind(trace []TraceEvent, topBlock, kind string) bool {
	for _, ev := range trace {
		if ev.TopBlock == topBlock && ev.Kind == kind {
			return true
		}
	}
	return false
}

// expectedText renders a YAML scalar the way the engine renders values:
// numbers in their shortest form, everything else as text.
func expectedText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case int:
		return ir.FormatNumber(float64(x))
	case float64:
		return ir.FormatNumber(x)
	case bool:
		return fmt.Sprint(x)
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}
