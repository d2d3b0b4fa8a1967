// Package subscriptionid is the caller-chosen identifier that correlates
// REQ, EVENT, EOSE, CLOSE and CLOSED envelopes for one subscription.
package subscriptionid

// T is a subscription identifier. The protocol limits it to 64 characters.
type T string

func (si T) String() string { return string(si) }

// Valid reports whether the id fits in the protocol limit and is non-empty.
func (si T) Valid() bool {
	return len(si) > 0 && len(si) <= 64
}
