// Package filters is a list of filters, matched disjunctively: an event
// matches the list if it matches any one filter in it. This is the form that
// travels in a REQ envelope.
package filters

import (
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/event"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/filter"
)

// T is a list of filter.T.
type T []*filter.T

// Match reports whether the event matches any filter in the list.
func (f T) Match(ev *event.T) bool {
	for _, ff := range f {
		if ff.Matches(ev) {
			return true
		}
	}
	return false
}

func (f T) Clone() (c T) {
	c = make(T, len(f))
	for i := range f {
		c[i] = f[i].Clone()
	}
	return
}

func (f T) String() (s string) {
	s += "["
	for i := range f {
		if i > 0 {
			s += ","
		}
		s += f[i].String()
	}
	s += "]"
	return
}
