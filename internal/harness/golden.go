package harness

import (
	"fmt"
	"slices"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/blockjit/internal/blocks"
	"github.com/roach88/blockjit/internal/compiler"
	"github.com/roach88/blockjit/internal/ir"
)

// snapshot converts a result to the plain tree canonical JSON accepts.
func snapshot(name string, r *Result) map[string]any {
	trace := make([]any, len(r.Trace))
	for i, ev := range r.Trace {
		m := map[string]any{
			"seq":       int(ev.Seq),
			"kind":      ev.Kind,
			"target":    ev.Target,
			"top_block": ev.TopBlock,
		}
		if ev.ThreadID != "" {
			m["thread_id"] = ev.ThreadID
		}
		if ev.Detail != "" {
			m["detail"] = ev.Detail
		}
		if ev.Code != "" {
			m["code"] = ev.Code
		}
		trace[i] = m
	}

	state := make(map[string]any, len(r.State))
	for target, ts := range r.State {
		vars := make(map[string]any, len(ts.Variables))
		for n, v := range ts.Variables {
			vars[n] = ir.ToString(v)
		}
		lists := make(map[string]any, len(ts.Lists))
		for n, items := range ts.Lists {
			out := make([]any, len(items))
			for i, item := range items {
				out[i] = ir.ToString(item)
			}
			lists[n] = out
		}
		state[target] = map[string]any{
			"speech":    ts.Speech,
			"variables": vars,
			"lists":     lists,
		}
	}

	return map[string]any{
		"scenario_name": name,
		"ticks":         r.Ticks,
		"trace":         trace,
		"state":         state,
	}
}

// MarshalResult returns the canonical JSON snapshot of a result.
func MarshalResult(name string, r *Result) ([]byte, error) {
	return ir.MarshalCanonical(snapshot(name, r))
}

func newGoldie(t *testing.T, opts []goldie.Option) *goldie.Goldie {
	return goldie.New(t, append([]goldie.Option{
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	}, opts...)...)
}

// RunWithGolden executes a scenario and compares its trace and final
// state against testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario, opts ...goldie.Option) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	data, err := MarshalResult(scenario.Name, result)
	if err != nil {
		return nil, err
	}
	newGoldie(t, opts).Assert(t, scenario.Name, data)
	return result, nil
}

// FormatListings renders listings as text: one header per script, then
// each unit's name and listing.
func FormatListings(listings []compiler.Listing) string {
	var b strings.Builder
	for _, l := range listings {
		fmt.Fprintf(&b, "== %s/%s\n", l.Target, l.TopBlock)
		if l.Err != nil {
			fmt.Fprintf(&b, "error: %v\n", l.Err)
			continue
		}
		for _, g := range l.Recursion {
			fmt.Fprintf(&b, "recursion: %s\n", g.Message)
		}
		for _, u := range l.Units {
			header := u.Name
			if u.Variant != "" {
				header += " " + u.Variant
			}
			if u.Yields {
				header += " (yields)"
			}
			fmt.Fprintf(&b, "-- %s\n%s\n", header, strings.TrimRight(u.Source, "\n"))
		}
	}
	return b.String()
}

// ListProject lowers every hat script of every original target, stage
// first and sprites by name.
func ListProject(c *compiler.Compiler, p *blocks.Project) []compiler.Listing {
	targets := slices.Clone(p.Targets)
	slices.SortStableFunc(targets, func(a, b *blocks.Target) int {
		if a.IsStage != b.IsStage {
			if a.IsStage {
				return -1
			}
			return 1
		}
		return strings.Compare(a.Name, b.Name)
	})

	var out []compiler.Listing
	for _, t := range targets {
		if t.IsOriginal {
			out = append(out, c.ListTarget(p, t)...)
		}
	}
	return out
}

// ListingWithGolden compares the listings of a scenario's project against
// testdata/golden/{scenario.Name}_listing.golden.
func ListingWithGolden(t *testing.T, scenario *Scenario, opts ...goldie.Option) error {
	t.Helper()

	project, err := loadProject(scenario)
	if err != nil {
		return err
	}
	cfg, err := scenarioOptions(scenario)
	if err != nil {
		return err
	}
	c := newCompiler(cfg)
	newGoldie(t, opts).Assert(t, scenario.Name+"_listing", []byte(FormatListings(ListProject(c, project))))
	return nil
}
