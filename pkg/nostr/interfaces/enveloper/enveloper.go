// Package enveloper is the interface all wire envelopes implement. It lives
// in its own package so the envelope packages and the message processor can
// both import it without a cycle.
package enveloper

// I is a tagged wire message.
type I interface {
	// Label returns the envelope tag, the first element of the wire array.
	Label() string
	MarshalJSON() ([]byte, error)
	UnmarshalJSON(b []byte) error
}
