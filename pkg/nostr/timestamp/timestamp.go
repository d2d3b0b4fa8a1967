// Package timestamp is the unix-seconds time of an event according to its
// creator. Never trust a timestamp.
package timestamp

import (
	"time"
)

// T is a unix timestamp in seconds.
type T int64

// Now returns the current unix timestamp of the system clock.
func Now() T {
	return T(time.Now().Unix())
}

// U64 returns the timestamp as a uint64 for index key encoding.
func (t T) U64() uint64 { return uint64(t) }

func (t T) I64() int64 { return int64(t) }

// Time converts a timestamp to a time.Time.
func (t T) Time() time.Time {
	return time.Unix(int64(t), 0)
}

// FromTime returns a T from a time.Time.
func FromTime(t time.Time) T {
	return T(t.Unix())
}

func (t *T) Clone() (c *T) {
	if t == nil {
		return
	}
	v := *t
	return &v
}
