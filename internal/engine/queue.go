package engine

import "sync"

// settlement records that a promise a thread is parked on has settled.
type settlement struct {
	thread  *Thread
	promise *Promise
}

// settleQueue is a thread-safe FIFO of promise settlements.
//
// Promises may be resolved from any goroutine (a primitive's background
// work, a timer, a test). The scheduler owns every thread, so settlements
// are handed over through this queue and applied at the start of the next
// tick or as soon as Run wakes up.
//
// The queue uses a channel for signaling so Run can wait on it together
// with the frame ticker and the context.
type settleQueue struct {
	mu      sync.Mutex
	entries []settlement
	closed  bool
	signal  chan struct{} // Signals availability (buffered, size 1)
}

func newSettleQueue() *settleQueue {
	return &settleQueue{
		entries: make([]settlement, 0, 16),
		signal:  make(chan struct{}, 1),
	}
}

// Enqueue adds a settlement to the back of the queue.
// Thread-safe: may be called from any goroutine.
// Returns false if the queue is closed.
func (q *settleQueue) Enqueue(s settlement) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.entries = append(q.entries, s)

	// Non-blocking: the buffer of 1 coalesces multiple signals
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue removes the front settlement without blocking.
func (q *settleQueue) TryDequeue() (settlement, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) == 0 {
		return settlement{}, false
	}

	s := q.entries[0]

	// CRITICAL: Nil out the slot so the backing array does not keep finished
	// threads and their programs alive.
	q.entries[0] = settlement{}

	if len(q.entries) == 1 {
		q.entries = q.entries[:0]
	} else {
		q.entries = q.entries[1:]
	}

	return s, true
}

// Wait returns a channel that signals when settlements may be available.
func (q *settleQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *settleQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Close stops accepting settlements and wakes any waiter.
func (q *settleQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}
