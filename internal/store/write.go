package store

import (
	"context"
	"fmt"

	"github.com/roach88/blockjit/internal/engine"
	"github.com/roach88/blockjit/internal/ir"
)

// Run is one journaled run of a project.
type Run struct {
	ID      string
	Project string

	// Options is the canonical JSON of the options the run used.
	Options string

	// StartedSeq is the logical clock reading when the run began. Every
	// event of the run has a larger seq.
	StartedSeq int64
}

// NewRun builds a run record, serialising options to canonical JSON.
func NewRun(id, project string, options any, startedSeq int64) (Run, error) {
	opts, err := marshalOptions(options)
	if err != nil {
		return Run{}, fmt.Errorf("new run: %w", err)
	}
	return Run{ID: id, Project: project, Options: opts, StartedSeq: startedSeq}, nil
}

// WriteRun inserts a run. Writing the same id twice is a no-op.
func (s *Store) WriteRun(ctx context.Context, run Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, project, options, started_seq)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, run.ID, run.Project, run.Options, run.StartedSeq)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	return nil
}

// WriteThreadEvent appends a thread event to run. The run must exist.
func (s *Store) WriteThreadEvent(ctx context.Context, runID string, ev engine.ThreadEvent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO thread_events (run_id, seq, thread_id, target, top_block, kind, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`, runID, ev.Seq, ev.ThreadID, ev.Target, ev.TopBlock, string(ev.Kind), ev.Detail)
	if err != nil {
		return fmt.Errorf("write thread event: %w", err)
	}
	return nil
}

// WriteCompile appends a compile outcome to run. The run must exist.
func (s *Store) WriteCompile(ctx context.Context, runID string, ev engine.CompileEvent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO compiles (run_id, seq, target, top_block, ok, code, message)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`, runID, ev.Seq, ev.Target, ev.TopBlock, ev.OK, ev.Code, ev.Message)
	if err != nil {
		return fmt.Errorf("write compile: %w", err)
	}
	return nil
}

func marshalOptions(options any) (string, error) {
	if options == nil {
		return "{}", nil
	}
	data, err := ir.MarshalCanonical(options)
	if err != nil {
		return "", fmt.Errorf("marshal options: %w", err)
	}
	return string(data), nil
}
