// Package envelopes turns raw wire messages into typed envelopes. Unknown
// labels are not an error for the caller to fail on: relays are free to
// send extensions we don't speak, so ParseMessage returns nil for them.
package envelopes

import (
	"bytes"

	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/envelopes/closedenvelope"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/envelopes/closeenvelope"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/envelopes/eoseenvelope"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/envelopes/eventenvelope"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/envelopes/noticeenvelope"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/envelopes/okenvelope"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/envelopes/reqenvelope"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/interfaces/enveloper"
)

// ParseMessage sniffs the label of a wire message and unmarshals it into
// the matching envelope type. Returns nil for unknown labels and for
// messages that fail to decode; the connection stays up either way.
func ParseMessage(message []byte) enveloper.I {
	firstComma := bytes.Index(message, []byte{','})
	if firstComma == -1 {
		return nil
	}
	label := message[0:firstComma]

	var v enveloper.I
	switch {
	case bytes.Contains(label, []byte("EVENT")):
		v = &eventenvelope.T{}
	case bytes.Contains(label, []byte("REQ")):
		v = &reqenvelope.T{}
	case bytes.Contains(label, []byte("NOTICE")):
		v = &noticeenvelope.T{}
	case bytes.Contains(label, []byte("EOSE")):
		v = &eoseenvelope.T{}
	case bytes.Contains(label, []byte("OK")):
		v = &okenvelope.T{}
	case bytes.Contains(label, []byte("CLOSED")):
		v = &closedenvelope.T{}
	case bytes.Contains(label, []byte("CLOSE")):
		v = &closeenvelope.T{}
	default:
		return nil
	}

	if err := v.UnmarshalJSON(message); err != nil {
		return nil
	}
	return v
}
