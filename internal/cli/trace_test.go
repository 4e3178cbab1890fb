package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/blockjit/internal/engine"
	"github.com/roach88/blockjit/internal/harness"
)

// journaled runs the counter project twice into a fresh journal and
// returns the database path. The runs are run-1 and run-2.
func journaled(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := writeFile(t, dir, "counter.yaml", counterProject)
	dbPath := filepath.Join(dir, "journal.db")

	opts := &RunOptions{
		RootOptions: &RootOptions{Format: "text"},
		Database:    dbPath,
		Ticks:       50,
		RunIDs:      engine.NewSequentialGenerator("run"),
	}
	for range 2 {
		_, err := runWith(t, opts, path)
		require.NoError(t, err)
	}
	return dbPath
}

func TestTrace_LatestRunByDefault(t *testing.T) {
	dbPath := journaled(t)

	out, err := execute(t, "trace", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Run run-2 ")
	assert.Contains(t, out, "compiled")
	assert.Contains(t, out, "started")
	assert.Contains(t, out, "Counter/flag")
	assert.Contains(t, out, "✓ All threads finished")
}

func TestTrace_JSON(t *testing.T) {
	dbPath := journaled(t)

	out, err := execute(t, "--format", "json", "trace", "--db", dbPath, "--run", "run-1")
	require.NoError(t, err)

	var resp struct {
		Status string      `json:"status"`
		RunID  string      `json:"run_id"`
		Data   TraceResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "run-1", resp.RunID)

	stats := resp.Data.Stats
	assert.Equal(t, 1, stats.Threads)
	assert.Equal(t, 1, stats.Done)
	assert.True(t, stats.AllThreadsDone)
	require.Len(t, stats.Suspensions, 1)
	for _, n := range stats.Suspensions {
		assert.GreaterOrEqual(t, n, 3, "the repeat loop yields each iteration")
	}

	require.NotEmpty(t, resp.Data.Timeline)
	assert.Equal(t, harness.KindCompiled, resp.Data.Timeline[0].Kind)
	for i := 1; i < len(resp.Data.Timeline); i++ {
		assert.Less(t, resp.Data.Timeline[i-1].Seq, resp.Data.Timeline[i].Seq)
	}

	var options map[string]any
	require.NoError(t, json.Unmarshal(resp.Data.Options, &options))
	assert.Equal(t, float64(30), options["frame_rate"])
}

func TestTrace_TargetFilter(t *testing.T) {
	dbPath := journaled(t)

	out, err := execute(t, "trace", "--db", dbPath, "--target", "Stage")
	require.NoError(t, err)
	assert.Contains(t, out, "No events.")
}

func TestTrace_UnknownRun(t *testing.T) {
	dbPath := journaled(t)

	out, err := execute(t, "trace", "--db", dbPath, "--run", "nope")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, ErrCodeRunNotFound)
}

func TestTrace_EmptyJournal(t *testing.T) {
	out, err := execute(t, "trace", "--db", filepath.Join(t.TempDir(), "empty.db"))
	require.Error(t, err)
	assert.Contains(t, out, ErrCodeRunNotFound)
}

func TestTrace_RequiresDB(t *testing.T) {
	_, err := execute(t, "trace")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}

func TestCalculateTraceStats_CompileFailure(t *testing.T) {
	timeline := []harness.TraceEvent{
		{Seq: 1, Kind: harness.KindCompileFailed, Target: "Cat", TopBlock: "flag", Code: "E_DISABLED"},
		{Seq: 2, Kind: string(engine.EventFailed), Target: "Cat", TopBlock: "flag", ThreadID: "t1"},
	}
	stats := calculateTraceStats(timeline, map[string]int{})
	assert.Equal(t, 1, stats.Threads)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 1, stats.CompileErrors)
	assert.True(t, stats.AllThreadsDone)
}

func traceJSON(t *testing.T, args ...string) TraceResult {
	t.Helper()
	out, err := execute(t, append([]string{"--format", "json", "trace"}, args...)...)
	require.NoError(t, err, out)

	var resp struct {
		Data TraceResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	return resp.Data
}

func TestTrace_WhereKind(t *testing.T) {
	dbPath := journaled(t)

	data := traceJSON(t, "--db", dbPath, "--where", "kind=suspended")
	require.NotEmpty(t, data.Timeline)
	for _, ev := range data.Timeline {
		assert.Equal(t, string(engine.EventSuspended), ev.Kind)
	}
}

func TestTrace_WhereCompileColumnsKeepOnlyCompiles(t *testing.T) {
	dbPath := journaled(t)

	data := traceJSON(t, "--db", dbPath, "--where", "ok=true")
	require.Len(t, data.Timeline, 1)
	assert.Equal(t, harness.KindCompiled, data.Timeline[0].Kind)

	data = traceJSON(t, "--db", dbPath, "--where", "ok=false")
	assert.Empty(t, data.Timeline)
}

func TestTrace_WhereCombinesWithTarget(t *testing.T) {
	dbPath := journaled(t)

	data := traceJSON(t, "--db", dbPath, "--target", "Counter", "--where", "kind=started,done")
	require.Len(t, data.Timeline, 2)
	assert.Equal(t, string(engine.EventStarted), data.Timeline[0].Kind)
	assert.Equal(t, string(engine.EventDone), data.Timeline[1].Kind)
	assert.True(t, data.Stats.AllThreadsDone)
}

func TestTrace_WhereInvalid(t *testing.T) {
	dbPath := journaled(t)

	tests := []struct {
		name string
		term string
	}{
		{name: "unknown column", term: "colour=red"},
		{name: "malformed term", term: "kind"},
		{name: "columns from both tables", term: "kind=done"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := []string{"trace", "--db", dbPath, "--where", tt.term}
			if tt.name == "columns from both tables" {
				args = append(args, "--where", "ok=true")
			}
			out, err := execute(t, args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, out, ErrCodeInvalidFilter)
		})
	}
}
