package engine

import "sync/atomic"

// Clock issues strictly increasing timestamps for order and trade
// construction. It is a counter, not a wall-clock reading: two orders
// created within the same microsecond still receive distinct, ordered
// values. Tests can construct their own Clock to get deterministic,
// seedable sequences instead of depending on ambient time.
type Clock struct {
	next atomic.Int64
}

// NewClock returns a Clock starting at start (the next call to Next
// returns start+1).
func NewClock(start int64) *Clock {
	c := &Clock{}
	c.next.Store(start)
	return c
}

// Next returns the next value in the monotonic sequence.
func (c *Clock) Next() int64 {
	return c.next.Add(1)
}

// Current returns the last value issued without advancing the sequence.
func (c *Clock) Current() int64 {
	return c.next.Load()
}
