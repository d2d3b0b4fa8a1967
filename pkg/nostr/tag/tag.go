// Package tag is a list of strings with a literal ordering.
//
// Not a set, there can be repeating elements.
package tag

import (
	"strings"

	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/escape"
)

// The tag position meanings so they are clear when reading.
const (
	Key = iota
	Value
	Relay
)

// T is a single tag: an ordered list of strings.
type T []string

// StartsWith checks a tag has the same initial set of elements.
//
// The last element is treated specially in that it is considered to match if
// the candidate has the same initial substring as its corresponding element.
func (t T) StartsWith(prefix []string) bool {
	prefixLen := len(prefix)
	if prefixLen > len(t) {
		return false
	}
	// check initial elements for equality
	for i := 0; i < prefixLen-1; i++ {
		if prefix[i] != t[i] {
			return false
		}
	}
	// check last element just for a prefix
	return strings.HasPrefix(t[prefixLen-1], prefix[prefixLen-1])
}

// GetKey returns the first element of the tag.
func (t T) GetKey() string {
	if len(t) > Key {
		return t[Key]
	}
	return ""
}

// GetValue returns the second element of the tag.
func (t T) GetValue() string {
	if len(t) > Value {
		return t[Value]
	}
	return ""
}

// Contains reports whether s is present in the tag.
func (t T) Contains(s string) bool {
	for i := range t {
		if t[i] == s {
			return true
		}
	}
	return false
}

func (t T) Equals(t1 T) bool {
	if len(t) != len(t1) {
		return false
	}
	for i := range t {
		if t[i] != t1[i] {
			return false
		}
	}
	return true
}

func (t T) Clone() (c T) {
	c = make(T, len(t))
	copy(c, t)
	return
}

// MarshalTo appends the JSON form of the tag to dst. String escaping is as
// in RFC8259, matching the canonical event serialization.
func (t T) MarshalTo(dst []byte) []byte {
	dst = append(dst, '[')
	for i, s := range t {
		if i > 0 {
			dst = append(dst, ',')
		}
		dst = escape.String(dst, s)
	}
	dst = append(dst, ']')
	return dst
}

func (t T) String() string {
	return string(t.MarshalTo(nil))
}
