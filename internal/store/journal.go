package store

import (
	"context"

	"github.com/roach88/blockjit/internal/engine"
)

// Journal records the events of one run. It implements engine.Journal.
type Journal struct {
	store *Store
	runID string
	ctx   context.Context
}

// NewJournal returns a journal writing to run in s. ctx bounds every
// write; the run must already have been written.
func NewJournal(ctx context.Context, s *Store, runID string) *Journal {
	return &Journal{store: s, runID: runID, ctx: ctx}
}

// RunID returns the run the journal writes to.
func (j *Journal) RunID() string { return j.runID }

// RecordThread implements engine.Journal.
func (j *Journal) RecordThread(ev engine.ThreadEvent) error {
	return j.store.WriteThreadEvent(j.ctx, j.runID, ev)
}

// RecordCompile implements engine.Journal.
func (j *Journal) RecordCompile(ev engine.CompileEvent) error {
	return j.store.WriteCompile(j.ctx, j.runID, ev)
}

var _ engine.Journal = (*Journal)(nil)
