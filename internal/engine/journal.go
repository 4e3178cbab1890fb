package engine

// EventKind names a journaled thread event.
type EventKind string

const (
	EventStarted   EventKind = "started"
	EventSuspended EventKind = "suspended"
	EventDone      EventKind = "done"
	EventFailed    EventKind = "failed"
)

// ThreadEvent is one journaled change in a thread's life.
type ThreadEvent struct {
	Seq      int64
	ThreadID string
	Target   string
	TopBlock string
	Kind     EventKind
	Detail   string
}

// CompileEvent records the outcome of compiling one script.
type CompileEvent struct {
	Seq      int64
	Target   string
	TopBlock string
	OK       bool
	Code     string
	Message  string
}

// Journal receives engine events. Implementations must not call back into
// the engine.
type Journal interface {
	RecordThread(ev ThreadEvent) error
	RecordCompile(ev CompileEvent) error
}
