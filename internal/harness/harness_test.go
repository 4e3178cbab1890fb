package harness

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/blockjit/internal/config"
	"github.com/roach88/blockjit/internal/engine"
)

// =============================================================================
// Scenario files
// =============================================================================

func TestScenarios(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			s, err := LoadScenario(path)
			require.NoError(t, err)

			result, err := Run(s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestLoadScenario_ResolvesProjectFile(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/counter.yaml")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("testdata", "projects", "counter.yaml"), s.ProjectFile)
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{name: "missing name", src: "project: x\n", want: "name is required"},
		{name: "no project", src: "name: a\n", want: "exactly one of project and project_file"},
		{name: "both projects", src: "name: a\nproject: x\nproject_file: y\n", want: "exactly one of project and project_file"},
		{name: "unknown field", src: "name: a\nproject: x\nassertion: []\n", want: "failed to parse YAML"},
		{name: "unknown assertion", src: "name: a\nproject: x\nassertions: [{type: vibes}]\n", want: `unknown assertion type "vibes"`},
		{name: "variable without target", src: "name: a\nproject: x\nassertions: [{type: variable, name: x}]\n", want: "target and name are required"},
		{name: "negative count", src: "name: a\nproject: x\nassertions: [{type: suspensions, top_block: f, count: -1}]\n", want: "count must be non-negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.src))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

// =============================================================================
// Run
// =============================================================================

const sayProject = `
sprites:
  - name: Cat
    variables:
      x: {name: x, value: 0}
    blocks:
      flag: {opcode: event_whenflagclicked, top_level: true, next: say}
      say: {opcode: looks_say, inputs: {MESSAGE: msg}, next: set}
      msg: {opcode: text, shadow: true, fields: {TEXT: {value: "meow"}}}
      set: {opcode: data_setvariableto, fields: {VARIABLE: {id: x, value: x}}, inputs: {VALUE: v}}
      v: {opcode: math_number, shadow: true, fields: {NUM: {value: "2.5"}}}
`

func TestRun_TraceComesFromJournal(t *testing.T) {
	result, err := Run(&Scenario{Name: "say", Project: sayProject})
	require.NoError(t, err)

	require.NotEmpty(t, result.Trace)
	assert.Equal(t, "scenario-say", result.RunID)
	assert.Equal(t, KindCompiled, result.Trace[0].Kind)

	var kinds []string
	for _, ev := range result.Trace {
		kinds = append(kinds, ev.Kind)
	}
	assert.Equal(t, []string{KindCompiled, string(engine.EventStarted), string(engine.EventDone)}, kinds)
	assert.Equal(t, "thread-1", result.Trace[1].ThreadID)

	cat := result.State["Cat"]
	require.NotNil(t, cat)
	assert.Equal(t, "meow", cat.Speech)
}

func TestRun_FailedAssertions(t *testing.T) {
	s := &Scenario{
		Name:    "say",
		Project: sayProject,
		Assertions: []Assertion{
			{Type: AssertVariable, Target: "Cat", Name: "x", Equals: 2.5},
			{Type: AssertVariable, Target: "Cat", Name: "x", Equals: 3},
			{Type: AssertVariable, Target: "Dog", Name: "x", Equals: 3},
			{Type: AssertSaid, Target: "Cat", Text: "woof"},
			{Type: AssertSuspensions, TopBlock: "flag", Count: 1},
			{Type: AssertCompileError, TopBlock: "flag", Code: "E_DISABLED"},
		},
	}
	result, err := Run(s)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 5)
	assert.True(t, strings.HasPrefix(result.Errors[0], "assertions[1]:"))
	assert.Contains(t, result.Errors[1], `no target "Dog"`)
	assert.Contains(t, result.Errors[2], `"woof"`)
}

func TestRun_BadOptions(t *testing.T) {
	_, err := Run(&Scenario{Name: "bad", Project: sayProject, Options: "frame_rate: -1\n"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scenario options")
}

func TestRun_BadProject(t *testing.T) {
	_, err := Run(&Scenario{Name: "bad", Project: "sprites: [{name: ''}]\n"})
	require.Error(t, err)
}

// =============================================================================
// Golden snapshots
// =============================================================================

// The snapshot is written on the first run and must match on the second:
// the trace, state and listings do not depend on wall time or on what
// compiled earlier in the process.
func TestRunWithGolden_Deterministic(t *testing.T) {
	dir := t.TempDir()
	s, err := LoadScenario("testdata/scenarios/countdown.yaml")
	require.NoError(t, err)

	first, err := Run(s)
	require.NoError(t, err)
	data, err := MarshalResult(s.Name, first)
	require.NoError(t, err)
	g := goldie.New(t, goldie.WithFixtureDir(dir), goldie.WithNameSuffix(".golden"))
	require.NoError(t, g.Update(t, s.Name, data))

	_, err = RunWithGolden(t, s, goldie.WithFixtureDir(dir))
	require.NoError(t, err)
}

func TestListingWithGolden_Deterministic(t *testing.T) {
	dir := t.TempDir()
	s, err := LoadScenario("testdata/scenarios/countdown.yaml")
	require.NoError(t, err)

	project, err := loadProject(s)
	require.NoError(t, err)
	text := FormatListings(ListProject(newCompiler(mustOptions(t, s)), project))
	assert.Contains(t, text, "== Sprite1/flag")
	assert.Contains(t, text, "recursion:")
	assert.Contains(t, text, "(yields)")

	require.NoError(t, os.WriteFile(filepath.Join(dir, s.Name+"_listing.golden"), []byte(text), 0o644))
	require.NoError(t, ListingWithGolden(t, s, goldie.WithFixtureDir(dir)))
}

func TestFormatListings_CompileError(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/nocompile.yaml")
	require.NoError(t, err)
	project, err := loadProject(s)
	require.NoError(t, err)

	text := FormatListings(ListProject(newCompiler(mustOptions(t, s)), project))
	assert.Contains(t, text, "== Sprite1/flag\nerror: ")
}

func mustOptions(t *testing.T, s *Scenario) config.Options {
	t.Helper()
	opts, err := scenarioOptions(s)
	require.NoError(t, err)
	return opts
}
