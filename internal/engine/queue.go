package engine

import "sync"

// frameQueue is a thread-safe FIFO of raw stream frames awaiting apply.
//
// Producers (a transport goroutine, a test) enqueue frames while the
// stream's Run loop dequeues them one at a time, which is what keeps patch
// application in arrival order.
//
// The signal channel lets Run wait on the queue and a context in one
// select, so cancellation never hangs behind an empty queue.
type frameQueue struct {
	mu     sync.Mutex
	frames [][]byte
	closed bool
	signal chan struct{} // buffered, size 1
}

func newFrameQueue() *frameQueue {
	return &frameQueue{
		frames: make([][]byte, 0, 64),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue appends a frame. Returns false if the queue is closed.
func (q *frameQueue) Enqueue(frame []byte) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.frames = append(q.frames, frame)

	// Non-blocking: the buffer of 1 coalesces signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue removes the front frame without blocking.
func (q *frameQueue) TryDequeue() ([]byte, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.frames) == 0 {
		return nil, false
	}
	f := q.frames[0]
	q.frames[0] = nil // release the frame's backing array
	if len(q.frames) == 1 {
		q.frames = q.frames[:0]
	} else {
		q.frames = q.frames[1:]
	}
	return f, true
}

// Wait returns a channel that signals when frames may be available.
func (q *frameQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the number of queued frames.
func (q *frameQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.frames)
}

// Drained reports whether the queue is closed and empty.
func (q *frameQueue) Drained() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed && len(q.frames) == 0
}

// Discard drops every queued frame and returns how many were dropped.
func (q *frameQueue) Discard() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.frames)
	clear(q.frames)
	q.frames = q.frames[:0]
	return n
}

// Close marks the end of input and wakes any waiter.
func (q *frameQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
