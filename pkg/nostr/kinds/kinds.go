// Package kinds is an ordered list of event kinds, as found in filters.
package kinds

import (
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/kind"
)

// T is a list of kind.T, as used in the kinds field of a filter.
type T []kind.T

func (k T) Contains(s kind.T) bool {
	for i := range k {
		if k[i] == s {
			return true
		}
	}
	return false
}

func (k T) Equals(k1 T) bool {
	if len(k) != len(k1) {
		return false
	}
	for i := range k {
		if k[i] != k1[i] {
			return false
		}
	}
	return true
}

func (k T) Clone() (c T) {
	c = make(T, len(k))
	copy(c, k)
	return
}

// ToIntSlice exports for the CLI and for index key generation.
func (k T) ToIntSlice() (is []int) {
	is = make([]int, len(k))
	for i := range k {
		is[i] = int(k[i])
	}
	return
}
