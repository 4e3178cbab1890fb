package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/blockjit/internal/engine"
	"github.com/roach88/blockjit/internal/ir"
	"github.com/roach88/blockjit/internal/queryir"
	"github.com/roach88/blockjit/internal/querysql"
)

// ErrRunNotFound is returned by ReadRun for an unknown id.
var ErrRunNotFound = errors.New("run not found")

// ReadRuns returns every run, oldest first.
// Ordering: ORDER BY started_seq ASC, id COLLATE BINARY ASC
func (s *Store) ReadRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project, options, started_seq
		FROM runs
		ORDER BY started_seq ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("read runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Project, &r.Options, &r.StartedSeq); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadRun returns the run with id, or ErrRunNotFound.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	var r Run
	err := s.db.QueryRowContext(ctx, `
		SELECT id, project, options, started_seq FROM runs WHERE id = ?
	`, id).Scan(&r.ID, &r.Project, &r.Options, &r.StartedSeq)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("read run %s: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("read run %s: %w", id, err)
	}
	return r, nil
}

// LatestRun returns the most recently started run, or ErrRunNotFound if
// the journal is empty.
func (s *Store) LatestRun(ctx context.Context) (Run, error) {
	var r Run
	err := s.db.QueryRowContext(ctx, `
		SELECT id, project, options, started_seq FROM runs
		ORDER BY started_seq DESC, id COLLATE BINARY DESC
		LIMIT 1
	`).Scan(&r.ID, &r.Project, &r.Options, &r.StartedSeq)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("latest run: %w", ErrRunNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("latest run: %w", err)
	}
	return r, nil
}

// ReadThreadEvents returns the thread events of a run in seq order.
func (s *Store) ReadThreadEvents(ctx context.Context, runID string) ([]engine.ThreadEvent, error) {
	return s.QueryThreadEvents(ctx, runID, nil)
}

// QueryThreadEvents returns the thread events of a run that satisfy
// filter, in seq order. A nil filter keeps every event.
func (s *Store) QueryThreadEvents(ctx context.Context, runID string, filter queryir.Predicate) ([]engine.ThreadEvent, error) {
	query, params, err := querysql.Compile(&queryir.Select{
		From:    queryir.TableThreadEvents,
		Filter:  queryir.Where(&queryir.Equals{Field: "run_id", Value: ir.String(runID)}, filter),
		Columns: []string{"seq", "thread_id", "target", "top_block", "kind", "detail"},
	})
	if err != nil {
		return nil, fmt.Errorf("read thread events: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("read thread events: %w", err)
	}
	defer rows.Close()

	var events []engine.ThreadEvent
	for rows.Next() {
		var ev engine.ThreadEvent
		var kind string
		if err := rows.Scan(&ev.Seq, &ev.ThreadID, &ev.Target, &ev.TopBlock, &kind, &ev.Detail); err != nil {
			return nil, fmt.Errorf("scan thread event: %w", err)
		}
		ev.Kind = engine.EventKind(kind)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate thread events: %w", err)
	}
	return events, nil
}

// ReadCompiles returns the compile outcomes of a run in seq order.
func (s *Store) ReadCompiles(ctx context.Context, runID string) ([]engine.CompileEvent, error) {
	return s.QueryCompiles(ctx, runID, nil)
}

// QueryCompiles returns the compile outcomes of a run that satisfy
// filter, in seq order. A nil filter keeps every outcome.
func (s *Store) QueryCompiles(ctx context.Context, runID string, filter queryir.Predicate) ([]engine.CompileEvent, error) {
	query, params, err := querysql.Compile(&queryir.Select{
		From:    queryir.TableCompiles,
		Filter:  queryir.Where(&queryir.Equals{Field: "run_id", Value: ir.String(runID)}, filter),
		Columns: []string{"seq", "target", "top_block", "ok", "code", "message"},
	})
	if err != nil {
		return nil, fmt.Errorf("read compiles: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("read compiles: %w", err)
	}
	defer rows.Close()

	var events []engine.CompileEvent
	for rows.Next() {
		var ev engine.CompileEvent
		if err := rows.Scan(&ev.Seq, &ev.Target, &ev.TopBlock, &ev.OK, &ev.Code, &ev.Message); err != nil {
			return nil, fmt.Errorf("scan compile: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate compiles: %w", err)
	}
	return events, nil
}

// CountSuspensions returns how many times each thread of a run
// suspended, keyed by thread id.
func (s *Store) CountSuspensions(ctx context.Context, runID string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT thread_id, COUNT(*)
		FROM thread_events
		WHERE run_id = ? AND kind = ?
		GROUP BY thread_id
		ORDER BY thread_id COLLATE BINARY ASC
	`, runID, string(engine.EventSuspended))
	if err != nil {
		return nil, fmt.Errorf("count suspensions: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("scan suspension count: %w", err)
		}
		counts[id] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate suspension counts: %w", err)
	}
	return counts, nil
}

// LastSeq returns the largest seq in the journal, or 0 when it is empty.
// A new run continues the logical clock from here.
func (s *Store) LastSeq(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(seq) FROM (
			SELECT started_seq AS seq FROM runs
			UNION ALL SELECT seq FROM thread_events
			UNION ALL SELECT seq FROM compiles
		)
	`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("last seq: %w", err)
	}
	return seq.Int64, nil
}
