package client

import (
	"time"

	"lukechampine.com/frand"
)

const (
	DefaultBackoffMin = 500 * time.Millisecond
	DefaultBackoffMax = time.Minute
)

// Backoff produces reconnect delays that double from Min up to Max, with
// uniform jitter so a set of sessions dropped by the same outage does not
// hammer the relay back in lockstep.
type Backoff struct {
	Min, Max time.Duration
	attempt  int
}

// Next returns the delay before the next reconnect attempt and advances
// the schedule. The returned value is drawn uniformly from [d/2, d) where
// d is the current exponential step.
func (b *Backoff) Next() time.Duration {
	min, max := b.Min, b.Max
	if min <= 0 {
		min = DefaultBackoffMin
	}
	if max <= 0 {
		max = DefaultBackoffMax
	}
	d := min << b.attempt
	if d <= 0 || d > max {
		d = max
	} else {
		b.attempt++
	}
	half := d / 2
	if half < 1 {
		half = 1
	}
	return half + time.Duration(frand.Intn(int(half)))
}

// Reset rewinds the schedule after a successful connection.
func (b *Backoff) Reset() { b.attempt = 0 }
