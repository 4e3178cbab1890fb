package engine

// Timer measures elapsed milliseconds against the engine's tick time, so
// it only advances between ticks.
type Timer struct {
	now   func() float64
	start float64
}

// NewTimer returns a started timer.
func (e *Engine) NewTimer() *Timer {
	t := &Timer{now: e.CurrentMSecs}
	t.Start()
	return t
}

// Start restarts the timer.
func (t *Timer) Start() {
	t.start = t.now()
}

// TimeElapsed returns milliseconds since Start.
func (t *Timer) TimeElapsed() float64 {
	return t.now() - t.start
}
