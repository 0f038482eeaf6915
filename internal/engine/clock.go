package engine

import "sync/atomic"

// Clock numbers the patches of a stream and the invocations of a
// dispatcher. Seq values are strictly increasing, so the journal orders
// patches by seq and replay applies them in that order.
//
// Clock is safe for concurrent use, though a stream only calls Next from
// its single apply path.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock whose first Next returns 1.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock positioned at start. Resuming a journaled
// session starts the clock at the last applied seq.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last sequence number handed out.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}

// Reset repositions the clock so the next call to Next returns seq+1.
func (c *Clock) Reset(seq int64) {
	c.seq.Store(seq)
}
