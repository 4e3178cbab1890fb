package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/blockjit/internal/engine"
	"github.com/roach88/blockjit/internal/store"
)

// runWith runs a project through runProject with a fixed run ID
// generator, which flags cannot set.
func runWith(t *testing.T, opts *RunOptions, path string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewRunCommand(opts.RootOptions)
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	err := runProject(opts, path, cmd)
	return buf.String(), err
}

func TestRun_PrintsFinalState(t *testing.T) {
	path := writeFile(t, t.TempDir(), "counter.yaml", counterProject)

	out, err := execute(t, "run", path, "--ticks", "50")
	require.NoError(t, err)
	assert.Contains(t, out, "Counter:\n")
	assert.Contains(t, out, `says "done"`)
	assert.Contains(t, out, "count = 3")
	assert.Contains(t, out, "log = [1 2 3]")
	assert.NotContains(t, out, "Run ", "no journal without --db")
}

func TestRun_JSON(t *testing.T) {
	path := writeFile(t, t.TempDir(), "counter.yaml", counterProject)

	out, err := execute(t, "--format", "json", "run", path, "--ticks", "50")
	require.NoError(t, err)

	var resp struct {
		Status string    `json:"status"`
		Data   RunResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Less(t, resp.Data.Ticks, 50, "stops once idle")
	assert.Equal(t, "3", resp.Data.Targets["Counter"].Variables["count"])
	assert.Equal(t, []string{"1", "2", "3"}, resp.Data.Targets["Counter"].Lists["log"])
}

func TestRun_JournalsEachRun(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "counter.yaml", counterProject)
	dbPath := filepath.Join(dir, "journal.db")

	opts := &RunOptions{
		RootOptions: &RootOptions{Format: "text"},
		Database:    dbPath,
		Ticks:       50,
		RunIDs:      engine.NewSequentialGenerator("run"),
	}
	out, err := runWith(t, opts, path)
	require.NoError(t, err)
	assert.Contains(t, out, "Run run-1\n")

	_, err = runWith(t, opts, path)
	require.NoError(t, err)

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()
	ctx := context.Background()

	runs, err := st.ReadRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-1", runs[0].ID)
	assert.Equal(t, "run-2", runs[1].ID)
	assert.Equal(t, path, runs[0].Project)

	first, err := st.ReadThreadEvents(ctx, "run-1")
	require.NoError(t, err)
	require.NotEmpty(t, first)
	second, err := st.ReadThreadEvents(ctx, "run-2")
	require.NoError(t, err)
	require.NotEmpty(t, second)
	assert.Greater(t, runs[1].StartedSeq, first[len(first)-1].Seq, "the clock continues across runs")
	assert.Greater(t, second[0].Seq, runs[1].StartedSeq)
}

func TestRun_NegativeTicks(t *testing.T) {
	path := writeFile(t, t.TempDir(), "counter.yaml", counterProject)

	_, err := execute(t, "run", path, "--ticks", "-1")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRun_MissingProject(t *testing.T) {
	_, err := execute(t, "run", filepath.Join(t.TempDir(), "none.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRun_RealTimeStopsOnCancel(t *testing.T) {
	path := writeFile(t, t.TempDir(), "counter.yaml", counterProject)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"run", path, "--ticks", "0"})
	require.NoError(t, cmd.ExecuteContext(ctx))
	assert.Contains(t, buf.String(), "Counter:\n")
}
