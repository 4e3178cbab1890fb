package engine

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/roach88/blockjit/internal/blocks"
	"github.com/roach88/blockjit/internal/ir"
)

// Hat opcodes the engine starts itself.
const (
	HatGreenFlag      = "event_whenflagclicked"
	HatBroadcast      = "event_whenbroadcastreceived"
	HatStartAsClone   = "control_start_as_clone"
	FieldBroadcast    = "BROADCAST_OPTION"
	CloneOptionMyself = "_myself_"
)

// Scheduler defaults.
const (
	DefaultFrameRate    = 30
	DefaultWorkFraction = 0.75
)

// Compiler turns the script a thread starts at into a program.
type Compiler interface {
	Compile(th *Thread) (*Program, error)
}

// coded is implemented by errors that carry a stable code.
type coded interface {
	ErrorCode() string
}

// Report is a value reported by clicking a lone reporter block.
type Report struct {
	BlockID string
	Value   ir.Value
}

// Engine is the cooperative scheduler.
//
// A tick polls edge-activated hats and then steps threads in passes: each
// pass resumes every runnable thread once, in start order. Passes repeat
// while some thread is still running, the tick's work budget is not spent,
// and, outside turbo mode, no redraw has been requested.
//
// CRITICAL: Threads, targets and variables are only touched by the
// goroutine calling Step or Run. Promise settlement is the one operation
// safe from any goroutine; it is queued and applied by the scheduler.
//
// INVARIANTS:
//   - threads are stepped in the order they were started
//   - a YIELD_TICK thread is resumed at most once per tick, in the
//     first pass
//   - finished threads are removed at the end of the pass they finish in
type Engine struct {
	project  *blocks.Project
	library  Library
	compiler Compiler
	helpers  *Helpers
	loader   *Loader
	journal  Journal
	clock    *Clock
	time     TimeSource
	ids      IDGenerator
	queue    *settleQueue
	stuck    *StuckDetector
	clones   *CloneQuota
	rng      *rand.Rand
	cloud    func(name string, v ir.Value)

	threads []*Thread
	current *Thread
	reports []Report

	frameRate     int
	workFraction  float64
	turbo         bool
	stuckInterval int
	stuckBudget   time.Duration
	maxClones     int
	seed          uint64

	start           time.Time
	tickStart       time.Time
	currentMSecs    float64
	timerStart      float64
	redrawRequested bool
	stepping        bool
	counter         int
	ticks           int
}

// Option configures an Engine.
type Option func(*Engine)

// WithFrameRate sets the ticks per second of Run and the tick budget.
func WithFrameRate(fps int) Option {
	return func(e *Engine) {
		if fps > 0 {
			e.frameRate = fps
		}
	}
}

// WithWorkFraction sets the share of a frame a tick may spend stepping.
func WithWorkFraction(f float64) Option {
	return func(e *Engine) {
		if f > 0 {
			e.workFraction = f
		}
	}
}

// WithTurbo makes ticks ignore redraw requests.
func WithTurbo(on bool) Option {
	return func(e *Engine) {
		e.turbo = on
	}
}

// WithStuckPolicy sets how often and after how long a warp loop is stuck.
func WithStuckPolicy(interval int, budget time.Duration) Option {
	return func(e *Engine) {
		e.stuckInterval = interval
		e.stuckBudget = budget
	}
}

// WithMaxClones sets the clone quota.
func WithMaxClones(n int) Option {
	return func(e *Engine) {
		e.maxClones = n
	}
}

// WithTimeSource replaces the wall clock.
func WithTimeSource(ts TimeSource) Option {
	return func(e *Engine) {
		e.time = ts
	}
}

// WithIDGenerator sets the generator for thread and clone ids.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) {
		e.ids = g
	}
}

// WithJournal records thread and compile events.
func WithJournal(j Journal) Option {
	return func(e *Engine) {
		e.journal = j
	}
}

// WithClock continues journal sequence numbers from an existing clock.
func WithClock(c *Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithHelpers replaces the helper table.
func WithHelpers(h *Helpers) Option {
	return func(e *Engine) {
		e.helpers = h
	}
}

// WithRandSeed makes random blocks deterministic.
func WithRandSeed(seed uint64) Option {
	return func(e *Engine) {
		e.seed = seed
	}
}

// WithCloudHandler receives updates to cloud variables.
func WithCloudHandler(fn func(name string, v ir.Value)) Option {
	return func(e *Engine) {
		e.cloud = fn
	}
}

// New creates an engine for project. The library supplies primitives and
// hat metadata; the compiler builds a program for every started thread.
func New(project *blocks.Project, library Library, compiler Compiler, opts ...Option) *Engine {
	e := &Engine{
		project:      project,
		library:      library,
		compiler:     compiler,
		clock:        NewClock(),
		time:         WallClock{},
		ids:          UUIDv7Generator{},
		queue:        newSettleQueue(),
		frameRate:    DefaultFrameRate,
		workFraction: DefaultWorkFraction,
		maxClones:    DefaultMaxClones,
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.helpers == nil {
		e.helpers = DefaultHelpers()
	}
	e.loader = NewLoader(e.helpers)
	e.stuck = NewStuckDetector(e.stuckInterval, e.stuckBudget)
	e.clones = NewCloneQuota(e.maxClones)
	if e.seed != 0 {
		e.rng = rand.New(rand.NewPCG(e.seed, e.seed))
	} else {
		e.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	e.start = e.time.Now()
	e.tickStart = e.start
	return e
}

// Project returns the project being run.
func (e *Engine) Project() *blocks.Project { return e.project }

// Stage returns the stage target.
func (e *Engine) Stage() *blocks.Target { return e.project.Stage }

// Loader returns the loader compiled units are bound with.
func (e *Engine) Loader() *Loader { return e.loader }

// Library returns the block library.
func (e *Engine) Library() Library { return e.library }

// Clock returns the logical journal clock.
func (e *Engine) Clock() *Clock { return e.clock }

// Threads returns the live threads in step order.
func (e *Engine) Threads() []*Thread { return slices.Clone(e.threads) }

// Ticks returns the number of completed ticks.
func (e *Engine) Ticks() int { return e.ticks }

// Reports returns values reported by stack-clicked reporters.
func (e *Engine) Reports() []Report { return slices.Clone(e.reports) }

// CurrentMSecs is the time of the current tick in milliseconds since the
// engine was created.
func (e *Engine) CurrentMSecs() float64 { return e.currentMSecs }

// Now reads the engine's time source.
func (e *Engine) Now() time.Time { return e.time.Now() }

// RequestRedraw ends the tick after the current pass, outside turbo mode.
func (e *Engine) RequestRedraw() { e.redrawRequested = true }

// SetTurbo switches turbo mode.
func (e *Engine) SetTurbo(on bool) { e.turbo = on }

// IsStuck reports whether the current tick has run past the stuck budget.
func (e *Engine) IsStuck() bool {
	return e.stuck.Check(func() time.Duration { return e.time.Now().Sub(e.tickStart) })
}

func (e *Engine) random() float64 { return e.rng.Float64() }

// Random returns a uniform value in [0, 1) from the engine's source.
func (e *Engine) Random() float64 { return e.random() }

// ProjectTimer returns seconds since the project timer was reset.
func (e *Engine) ProjectTimer() float64 {
	return (e.currentMSecs - e.timerStart) / 1000
}

// ResetProjectTimer restarts the project timer.
func (e *Engine) ResetProjectTimer() {
	e.timerStart = e.currentMSecs
}

// Counter returns the control counter.
func (e *Engine) Counter() int { return e.counter }

// IncrCounter increments the control counter.
func (e *Engine) IncrCounter() { e.counter++ }

// ClearCounter resets the control counter.
func (e *Engine) ClearCounter() { e.counter = 0 }

// CloudUpdate forwards a cloud variable change.
func (e *Engine) CloudUpdate(name string, v ir.Value) {
	slog.Debug("cloud variable updated", "name", name, "value", ir.ToString(v))
	if e.cloud != nil {
		e.cloud(name, v)
	}
}

// VisualReport records the value of a stack-clicked reporter.
func (e *Engine) VisualReport(blockID string, v ir.Value) {
	e.reports = append(e.reports, Report{BlockID: blockID, Value: v})
}

// =============================================================================
// Threads
// =============================================================================

// StartThread compiles the script at topBlock on target and queues it. A
// script that fails to compile is logged and journaled, and the returned
// thread is already done.
func (e *Engine) StartThread(target *blocks.Target, topBlock string, stackClick bool) *Thread {
	th := newThread(e, e.ids.Generate(), target, topBlock, stackClick)
	prog, err := e.compiler.Compile(th)
	e.recordCompile(th, err)
	if err != nil {
		slog.Warn("script failed to compile",
			"target", target.Name,
			"top_block", topBlock,
			"error", err,
		)
		th.err = err
		th.retire()
		e.recordThread(th, EventFailed, err.Error())
		return th
	}
	th.Program = prog
	e.threads = append(e.threads, th)
	e.recordThread(th, EventStarted, "")
	return th
}

// RetireThread ends th. It is removed from the thread list at the end of
// the current pass, or immediately when no tick is running.
func (e *Engine) RetireThread(th *Thread) {
	th.retire()
	if !e.stepping {
		e.reap()
	}
}

// StopForTarget retires every thread running on target except keep.
func (e *Engine) StopForTarget(target *blocks.Target, keep *Thread) {
	for _, th := range e.threads {
		if th.Target == target && th != keep {
			th.retire()
		}
	}
	if !e.stepping {
		e.reap()
	}
}

// StopAll retires every thread and disposes every clone.
func (e *Engine) StopAll() {
	for _, th := range e.threads {
		th.retire()
	}
	for _, t := range slices.Clone(e.project.Targets) {
		if !t.IsOriginal {
			e.DisposeTarget(t)
		}
	}
	if !e.stepping {
		e.reap()
	}
}

// isActive reports whether th is still scheduled.
func (e *Engine) isActive(th *Thread) bool {
	return !th.Done() && !th.detached
}

func (e *Engine) findThread(target *blocks.Target, topBlock string) *Thread {
	for _, th := range e.threads {
		if th.Target == target && th.TopBlock == topBlock && !th.StackClick && !th.Done() {
			return th
		}
	}
	return nil
}

// restartThread replaces old, in place, by a fresh thread for the same
// script.
func (e *Engine) restartThread(old *Thread) *Thread {
	i := slices.Index(e.threads, old)
	th := newThread(e, e.ids.Generate(), old.Target, old.TopBlock, false)
	th.Program = old.Program
	old.retire()
	old.detached = true
	e.recordThread(old, EventDone, "restarted")
	if old != e.current {
		old.release()
	}
	if i >= 0 {
		e.threads[i] = th
	} else {
		e.threads = append(e.threads, th)
	}
	e.recordThread(th, EventStarted, "restart")
	return th
}

// StartHats starts every script under a hat of opcode whose fields match.
// Matching is case-insensitive. If only is non-nil just that target is
// searched. Scripts already running are restarted or left alone as the
// hat's metadata says.
func (e *Engine) StartHats(opcode string, fields map[string]string, only *blocks.Target) []*Thread {
	info, ok := e.library.Hat(opcode)
	if !ok {
		return nil
	}
	targets := []*blocks.Target{only}
	if only == nil {
		targets = slices.Clone(e.project.Targets)
		slices.Reverse(targets)
	}

	var started []*Thread
	for _, target := range targets {
		c := target.Container()
		for _, top := range c.TopBlocksByOpcode(opcode) {
			if !fieldsMatch(c.Block(top), fields) {
				continue
			}
			if existing := e.findThread(target, top); existing != nil {
				if info.RestartExistingThreads {
					started = append(started, e.restartThread(existing))
				}
				continue
			}
			th := e.StartThread(target, top, false)
			if !th.Done() {
				started = append(started, th)
			}
		}
	}
	return started
}

func fieldsMatch(b *blocks.Block, fields map[string]string) bool {
	if b == nil {
		return false
	}
	for name, want := range fields {
		if ir.Lower(b.FieldValue(name)) != ir.Lower(want) {
			return false
		}
	}
	return true
}

// Broadcast starts the receivers of message.
func (e *Engine) Broadcast(message string) []*Thread {
	return e.StartHats(HatBroadcast, map[string]string{FieldBroadcast: message}, nil)
}

// GreenFlag stops everything, resets the project timer and starts the
// green flag scripts.
func (e *Engine) GreenFlag() []*Thread {
	e.StopAll()
	e.ResetProjectTimer()
	return e.StartHats(HatGreenFlag, nil, nil)
}

// =============================================================================
// Clones
// =============================================================================

// CreateCloneOf clones the sprite named option, or caller for "_myself_".
// The stage cannot be cloned; an unknown name creates nothing.
func (e *Engine) CreateCloneOf(option string, caller *blocks.Target) (*blocks.Target, error) {
	source := caller
	if option != CloneOptionMyself {
		t, ok := e.project.TargetByName(option)
		if !ok {
			return nil, nil
		}
		source = t
	}
	if source == nil || source.IsStage {
		return nil, nil
	}
	return e.CreateClone(source)
}

// CreateClone clones source, places it after source in execution order and
// starts its "when I start as a clone" scripts.
func (e *Engine) CreateClone(source *blocks.Target) (*blocks.Target, error) {
	if err := e.clones.Acquire(source.Name); err != nil {
		slog.Debug("clone limit reached", "sprite", source.Name, "error", err)
		return nil, err
	}
	clone := source.Clone(e.ids.Generate())
	targets := e.project.Targets
	i := slices.Index(targets, source)
	e.project.Targets = slices.Insert(targets, i+1, clone)
	e.StartHats(HatStartAsClone, nil, clone)
	return clone, nil
}

// DisposeTarget removes a clone from the project. Originals are kept.
func (e *Engine) DisposeTarget(t *blocks.Target) {
	if t.IsOriginal {
		return
	}
	i := slices.Index(e.project.Targets, t)
	if i < 0 {
		return
	}
	e.project.Targets = slices.Delete(e.project.Targets, i, i+1)
	t.Dispose()
	e.clones.Release()
}

// =============================================================================
// Scheduling
// =============================================================================

// Step runs one tick.
func (e *Engine) Step() {
	e.drainSettlements()
	e.tickStart = e.time.Now()
	e.currentMSecs = float64(e.tickStart.Sub(e.start)) / float64(time.Millisecond)
	e.redrawRequested = false

	for _, opcode := range e.library.EdgeActivatedHats() {
		e.StartHats(opcode, nil, nil)
	}

	e.stepThreads()
	e.ticks++
}

func (e *Engine) workTime() time.Duration {
	return time.Duration(float64(time.Second) / float64(e.frameRate) * e.workFraction)
}

func (e *Engine) stepThreads() {
	e.stepping = true
	defer func() { e.stepping = false }()

	budget := e.workTime()
	numActive := -1
	ranFirstTick := false
	for len(e.threads) > 0 &&
		numActive != 0 &&
		e.time.Now().Sub(e.tickStart) < budget &&
		(e.turbo || !e.redrawRequested) {
		numActive = 0
		stopped := false
		// The list may grow while stepping; new threads run in this pass.
		for i := 0; i < len(e.threads); i++ {
			th := e.threads[i]
			if th.Done() {
				stopped = true
				continue
			}
			if th.status == StatusYieldTick && !ranFirstTick {
				th.setStatus(StatusRunning)
			}
			if th.status == StatusRunning || th.status == StatusYield {
				e.stepThread(th)
			}
			if th.status == StatusRunning {
				numActive++
			}
			if th.Done() {
				stopped = true
			}
		}
		ranFirstTick = true
		if stopped {
			e.reap()
		}
	}
}

func (e *Engine) stepThread(th *Thread) {
	e.current = th
	s, ok := th.Poll()
	e.current = nil
	if th.detached && th.Done() {
		th.release()
		return
	}
	if ok && !th.Done() {
		e.recordThread(th, EventSuspended, s.Reason.String())
	}
}

// reap removes finished threads and releases their coroutines.
func (e *Engine) reap() {
	kept := e.threads[:0]
	for _, th := range e.threads {
		if !th.Done() {
			kept = append(kept, th)
			continue
		}
		th.release()
		if th.err != nil {
			e.recordThread(th, EventFailed, th.err.Error())
		} else {
			e.recordThread(th, EventDone, "")
		}
	}
	clear(e.threads[len(kept):])
	e.threads = kept
}

func (e *Engine) drainSettlements() {
	for {
		s, ok := e.queue.TryDequeue()
		if !ok {
			return
		}
		s.thread.applySettlement(s.promise)
	}
}

// Idle reports whether nothing can happen without outside input: no
// threads, no pending settlements and no edge-activated hat scripts.
func (e *Engine) Idle() bool {
	if len(e.threads) > 0 || e.queue.Len() > 0 {
		return false
	}
	for _, opcode := range e.library.EdgeActivatedHats() {
		for _, t := range e.project.Targets {
			if len(t.Container().TopBlocksByOpcode(opcode)) > 0 {
				return false
			}
		}
	}
	return true
}

// RunTicks steps up to n ticks, stopping early once the engine is idle.
// It returns the number of ticks run.
func (e *Engine) RunTicks(n int) int {
	for i := 0; i < n; i++ {
		if e.Idle() {
			return i
		}
		e.Step()
	}
	return n
}

// Run steps one tick per frame until ctx is cancelled or the engine is
// closed. Promise settlements are applied as soon as they arrive.
//
// CRITICAL: Must be called from exactly ONE goroutine.
func (e *Engine) Run(ctx context.Context) error {
	slog.Info("engine starting", "frame_rate", e.frameRate, "turbo", e.turbo)

	ticker := time.NewTicker(time.Second / time.Duration(e.frameRate))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("engine stopping", "reason", ctx.Err())
			return ctx.Err()
		case <-ticker.C:
			e.Step()
		case _, ok := <-e.queue.Wait():
			if !ok {
				slog.Info("engine closed")
				return nil
			}
			e.drainSettlements()
		}
	}
}

// Close stops every thread and makes Run return.
func (e *Engine) Close() {
	e.StopAll()
	e.queue.Close()
}

// =============================================================================
// Journal
// =============================================================================

func (e *Engine) recordThread(th *Thread, kind EventKind, detail string) {
	if e.journal == nil {
		return
	}
	ev := ThreadEvent{
		Seq:      e.clock.Next(),
		ThreadID: th.ID,
		Target:   th.Target.Name,
		TopBlock: th.TopBlock,
		Kind:     kind,
		Detail:   detail,
	}
	if err := e.journal.RecordThread(ev); err != nil {
		slog.Warn("journal write failed", "thread", th.ID, "kind", kind, "error", err)
	}
}

func (e *Engine) recordCompile(th *Thread, err error) {
	if e.journal == nil {
		return
	}
	ev := CompileEvent{
		Seq:      e.clock.Next(),
		Target:   th.Target.Name,
		TopBlock: th.TopBlock,
		OK:       err == nil,
	}
	if err != nil {
		ev.Message = err.Error()
		var ce coded
		if errors.As(err, &ce) {
			ev.Code = ce.ErrorCode()
		}
	}
	if jerr := e.journal.RecordCompile(ev); jerr != nil {
		slog.Warn("journal write failed", "top_block", th.TopBlock, "error", jerr)
	}
}
