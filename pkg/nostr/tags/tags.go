// Package tags is a list of tag - lists of string elements with ordering
// and no uniqueness constraint (not a set).
package tags

import (
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/tag"
)

// T is a list of tag.T.
type T []tag.T

// GetFirst gets the first tag in tags that matches the prefix, see
// [tag.T.StartsWith].
func (t T) GetFirst(tagPrefix []string) *tag.T {
	for _, v := range t {
		if v.StartsWith(tagPrefix) {
			return &v
		}
	}
	return nil
}

// GetAll gets all the tags that match the prefix.
func (t T) GetAll(tagPrefix ...string) T {
	result := make(T, 0, len(t))
	for _, v := range t {
		if v.StartsWith(tagPrefix) {
			result = append(result, v)
		}
	}
	return result
}

// ContainsAny returns true if any of the strings given in values matches the
// value element of any tag with the given key.
func (t T) ContainsAny(tagName string, values ...string) bool {
	for _, v := range t {
		if len(v) < 2 {
			continue
		}
		if v.GetKey() != tagName {
			continue
		}
		for _, candidate := range values {
			if v.GetValue() == candidate {
				return true
			}
		}
	}
	return false
}

func (t T) Equals(t1 T) bool {
	if len(t) != len(t1) {
		return false
	}
	for i := range t {
		if !t[i].Equals(t1[i]) {
			return false
		}
	}
	return true
}

func (t T) Clone() (c T) {
	c = make(T, len(t))
	for i := range t {
		c[i] = t[i].Clone()
	}
	return
}

// MarshalTo appends the JSON encoded form of T as [][]string to dst. String
// escaping is as described in RFC8259.
func (t T) MarshalTo(dst []byte) []byte {
	dst = append(dst, '[')
	for i, tt := range t {
		if i > 0 {
			dst = append(dst, ',')
		}
		dst = tt.MarshalTo(dst)
	}
	dst = append(dst, ']')
	return dst
}

func (t T) String() string {
	return string(t.MarshalTo(nil))
}
