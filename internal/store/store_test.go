package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/blockjit/internal/engine"
	"github.com/roach88/blockjit/internal/ir"
	"github.com/roach88/blockjit/internal/queryir"
)

// createTestStore opens a fresh store in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func writeTestRun(t *testing.T, s *Store, id string, seq int64) Run {
	t.Helper()
	run, err := NewRun(id, "game.yaml", map[string]any{"turbo": false, "frame_rate": 30}, seq)
	require.NoError(t, err)
	require.NoError(t, s.WriteRun(context.Background(), run))
	return run
}

// =============================================================================
// Open
// =============================================================================

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err, "database file was not created")
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	for i := 0; i < 3; i++ {
		s, err := Open(path)
		require.NoError(t, err, "iteration %d", i)
		require.NoError(t, s.Close())
	}
}

func TestOpen_Pragmas(t *testing.T) {
	s := createTestStore(t)
	tests := []struct {
		name string
		want string
	}{
		{name: "journal_mode", want: "wal"},
		{name: "foreign_keys", want: "1"},
		{name: "busy_timeout", want: "5000"},
		{name: "user_version", want: "1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.pragma(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOpen_BadPath(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing", "dir", "journal.db"))
	assert.Error(t, err)
}

// =============================================================================
// Runs
// =============================================================================

func TestWriteRun_CanonicalOptions(t *testing.T) {
	s := createTestStore(t)
	writeTestRun(t, s, "run-1", 0)

	got, err := s.ReadRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, "game.yaml", got.Project)
	assert.Equal(t, `{"frame_rate":30,"turbo":false}`, got.Options)
}

func TestWriteRun_Idempotent(t *testing.T) {
	s := createTestStore(t)
	writeTestRun(t, s, "run-1", 0)
	writeTestRun(t, s, "run-1", 0)

	runs, err := s.ReadRuns(context.Background())
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestReadRun_NotFound(t *testing.T) {
	s := createTestStore(t)
	_, err := s.ReadRun(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrRunNotFound)

	_, err = s.LatestRun(context.Background())
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestReadRuns_OrderedByStart(t *testing.T) {
	s := createTestStore(t)
	writeTestRun(t, s, "b", 10)
	writeTestRun(t, s, "a", 20)
	writeTestRun(t, s, "c", 0)

	runs, err := s.ReadRuns(context.Background())
	require.NoError(t, err)
	var ids []string
	for _, r := range runs {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"c", "b", "a"}, ids)

	latest, err := s.LatestRun(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a", latest.ID)
}

func TestReadRuns_TiesBreakOnBinaryID(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	writeTestRun(t, s, "b", 5)
	writeTestRun(t, s, "B", 5)
	writeTestRun(t, s, "a", 5)

	runs, err := s.ReadRuns(ctx)
	require.NoError(t, err)
	var ids []string
	for _, r := range runs {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"B", "a", "b"}, ids, "uppercase sorts first under BINARY")

	latest, err := s.LatestRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, "b", latest.ID)
}

func TestCountSuspensions_PerThread(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	writeTestRun(t, s, "run-1", 0)
	writeTestRun(t, s, "run-2", 20)

	for _, ev := range []engine.ThreadEvent{
		{Seq: 1, ThreadID: "t2", Target: "Cat", TopBlock: "flag", Kind: engine.EventSuspended},
		{Seq: 2, ThreadID: "t1", Target: "Cat", TopBlock: "key", Kind: engine.EventSuspended},
		{Seq: 3, ThreadID: "t2", Target: "Cat", TopBlock: "flag", Kind: engine.EventSuspended},
		{Seq: 4, ThreadID: "t1", Target: "Cat", TopBlock: "key", Kind: engine.EventDone},
		{Seq: 5, ThreadID: "t3", Target: "Cat", TopBlock: "loop", Kind: engine.EventStarted},
	} {
		require.NoError(t, s.WriteThreadEvent(ctx, "run-1", ev))
	}
	require.NoError(t, s.WriteThreadEvent(ctx, "run-2", engine.ThreadEvent{
		Seq: 21, ThreadID: "t1", Target: "Cat", TopBlock: "key", Kind: engine.EventSuspended,
	}))

	counts, err := s.CountSuspensions(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"t1": 1, "t2": 2}, counts)

	counts, err = s.CountSuspensions(ctx, "ghost")
	require.NoError(t, err)
	assert.Empty(t, counts)
}

// =============================================================================
// Events
// =============================================================================

func TestJournal_RecordsInSeqOrder(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	writeTestRun(t, s, "run-1", 0)
	j := NewJournal(ctx, s, "run-1")

	events := []engine.ThreadEvent{
		{Seq: 3, ThreadID: "t1", Target: "Sprite1", TopBlock: "flag", Kind: engine.EventSuspended},
		{Seq: 1, ThreadID: "t1", Target: "Sprite1", TopBlock: "flag", Kind: engine.EventStarted},
		{Seq: 4, ThreadID: "t1", Target: "Sprite1", TopBlock: "flag", Kind: engine.EventSuspended},
		{Seq: 5, ThreadID: "t1", Target: "Sprite1", TopBlock: "flag", Kind: engine.EventDone},
	}
	for _, ev := range events {
		require.NoError(t, j.RecordThread(ev))
	}
	require.NoError(t, j.RecordCompile(engine.CompileEvent{Seq: 2, Target: "Sprite1", TopBlock: "flag", OK: true}))

	got, err := s.ReadThreadEvents(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, engine.EventStarted, got[0].Kind)
	assert.Equal(t, engine.EventDone, got[3].Kind)
	for i := 1; i < len(got); i++ {
		assert.Less(t, got[i-1].Seq, got[i].Seq)
	}

	compiles, err := s.ReadCompiles(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, compiles, 1)
	assert.True(t, compiles[0].OK)

	counts, err := s.CountSuspensions(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"t1": 2}, counts)

	last, err := s.LastSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), last)
}

func TestWriteCompile_Failure(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	writeTestRun(t, s, "run-1", 0)

	require.NoError(t, s.WriteCompile(ctx, "run-1", engine.CompileEvent{
		Seq: 1, Target: "Sprite1", TopBlock: "flag", Code: "E_DISABLED", Message: "compilation disabled",
	}))

	got, err := s.ReadCompiles(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.False(t, got[0].OK)
	assert.Equal(t, "E_DISABLED", got[0].Code)
}

func TestWriteThreadEvent_UnknownRun(t *testing.T) {
	s := createTestStore(t)
	err := s.WriteThreadEvent(context.Background(), "ghost", engine.ThreadEvent{Seq: 1, Kind: engine.EventStarted})
	assert.Error(t, err, "foreign key rejects events without a run")
}

func TestLastSeq_EmptyJournal(t *testing.T) {
	s := createTestStore(t)
	last, err := s.LastSeq(context.Background())
	require.NoError(t, err)
	assert.Zero(t, last)
}

// =============================================================================
// Queries
// =============================================================================

func TestQueryThreadEvents_Filters(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	writeTestRun(t, s, "run-1", 0)
	writeTestRun(t, s, "run-2", 10)

	for _, ev := range []engine.ThreadEvent{
		{Seq: 1, ThreadID: "t1", Target: "Cat", TopBlock: "flag", Kind: engine.EventStarted},
		{Seq: 2, ThreadID: "t2", Target: "Dog", TopBlock: "flag", Kind: engine.EventStarted},
		{Seq: 3, ThreadID: "t1", Target: "Cat", TopBlock: "flag", Kind: engine.EventSuspended, Detail: "yield"},
		{Seq: 4, ThreadID: "t2", Target: "Dog", TopBlock: "flag", Kind: engine.EventDone},
		{Seq: 5, ThreadID: "t1", Target: "Cat", TopBlock: "flag", Kind: engine.EventDone},
	} {
		require.NoError(t, s.WriteThreadEvent(ctx, "run-1", ev))
	}
	require.NoError(t, s.WriteThreadEvent(ctx, "run-2", engine.ThreadEvent{
		Seq: 11, ThreadID: "t1", Target: "Cat", TopBlock: "flag", Kind: engine.EventStarted,
	}))

	tests := []struct {
		name   string
		filter queryir.Predicate
		seqs   []int64
	}{
		{name: "nil filter keeps the run", filter: nil, seqs: []int64{1, 2, 3, 4, 5}},
		{
			name:   "equals",
			filter: &queryir.Equals{Field: "target", Value: ir.String("Dog")},
			seqs:   []int64{2, 4},
		},
		{
			name:   "one of",
			filter: &queryir.OneOf{Field: "kind", Values: []ir.Value{ir.String("suspended"), ir.String("done")}},
			seqs:   []int64{3, 4, 5},
		},
		{
			name: "and",
			filter: queryir.Where(
				&queryir.Equals{Field: "thread_id", Value: ir.String("t1")},
				&queryir.Equals{Field: "kind", Value: ir.String("done")},
			),
			seqs: []int64{5},
		},
		{
			name:   "numeric seq",
			filter: &queryir.Equals{Field: "seq", Value: ir.Number(3)},
			seqs:   []int64{3},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.QueryThreadEvents(ctx, "run-1", tt.filter)
			require.NoError(t, err)
			seqs := []int64{}
			for _, ev := range got {
				seqs = append(seqs, ev.Seq)
			}
			assert.Equal(t, tt.seqs, seqs)
		})
	}
}

func TestQueryCompiles_FiltersOnOutcome(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	writeTestRun(t, s, "run-1", 0)

	require.NoError(t, s.WriteCompile(ctx, "run-1", engine.CompileEvent{Seq: 1, Target: "Cat", TopBlock: "flag", OK: true}))
	require.NoError(t, s.WriteCompile(ctx, "run-1", engine.CompileEvent{
		Seq: 2, Target: "Cat", TopBlock: "key", Code: "E_UNKNOWN_STACK", Message: "unknown opcode",
	}))

	failed, err := s.QueryCompiles(ctx, "run-1", &queryir.Equals{Field: "ok", Value: ir.Bool(false)})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "key", failed[0].TopBlock)

	ok, err := s.QueryCompiles(ctx, "run-1", &queryir.Equals{Field: "ok", Value: ir.Bool(true)})
	require.NoError(t, err)
	require.Len(t, ok, 1)
	assert.Equal(t, "flag", ok[0].TopBlock)
}

func TestQueryThreadEvents_RejectsUnknownColumn(t *testing.T) {
	s := createTestStore(t)
	writeTestRun(t, s, "run-1", 0)

	_, err := s.QueryThreadEvents(context.Background(), "run-1", &queryir.Equals{Field: "ok", Value: ir.Bool(true)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ok: no such column in thread_events")
}
