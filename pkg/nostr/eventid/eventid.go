// Package eventid is the event fingerprint: the SHA256 hash of the canonical
// serialization of an event, encoded as 64 hexadecimal characters. It is the
// primary key of an event everywhere in the engine.
package eventid

import (
	"encoding/hex"
	"fmt"
)

// T is the hexadecimal fingerprint of an event.
type T string

func (ei T) String() string { return string(ei) }

func (ei T) Bytes() (b []byte) {
	var err error
	if b, err = hex.DecodeString(string(ei)); err != nil {
		return nil
	}
	return
}

// Valid reports whether the id is 64 characters of well formed hex.
func (ei T) Valid() bool {
	if len(ei) != 64 {
		return false
	}
	_, err := hex.DecodeString(string(ei))
	return err == nil
}

// New wraps a string in an eventid.T after validating it.
func New(s string) (ei T, err error) {
	ei = T(s)
	if !ei.Valid() {
		return "", fmt.Errorf("invalid event ID '%s'", s)
	}
	return
}
