// Package event is the primary datatype of nostr: the immutable, signed,
// content-addressed record that relays store and forward.
package event

import (
	"fmt"
	"os"

	"github.com/Hubmakerlabs/aggregatr/pkg/hex"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/escape"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/eventid"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/kind"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/tag"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/tags"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/timestamp"
	"github.com/Hubmakerlabs/aggregatr/pkg/slog"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/mailru/easyjson/jwriter"
	"github.com/minio/sha256-simd"
	"github.com/tidwall/gjson"
)

var log, chk = slog.New(os.Stderr)

// T is the event record. The ID is the SHA256 hash of the canonical
// serialization of the other fields except Sig, and Sig is a BIP-340
// signature over that hash by PubKey. Once accepted an event is never
// mutated.
type T struct {
	// ID is the SHA256 hash of the canonical encoding of the event.
	ID eventid.T `json:"id"`
	// PubKey is the public key of the event creator in hexadecimal format.
	PubKey string `json:"pubkey"`
	// CreatedAt is the UNIX timestamp of the event according to the event
	// creator (never trust a timestamp!)
	CreatedAt timestamp.T `json:"created_at"`
	// Kind is the nostr protocol code for the type of event.
	Kind kind.T `json:"kind"`
	// Tags are a list of tags, which are lists of strings.
	Tags tags.T `json:"tags"`
	// Content is an arbitrary string, interpreted per Kind.
	Content string `json:"content"`
	// Sig is the signature on the ID hash that validates as coming from the
	// PubKey.
	Sig string `json:"sig"`
}

// C is a channel that carries events.
type C chan *T

// Ascending is a slice of events that sorts in ascending chronological order.
type Ascending []*T

func (ev Ascending) Len() int           { return len(ev) }
func (ev Ascending) Less(i, j int) bool { return ev[i].CreatedAt < ev[j].CreatedAt }
func (ev Ascending) Swap(i, j int)      { ev[i], ev[j] = ev[j], ev[i] }

// Descending sorts a slice of events in reverse chronological order (newest
// first).
type Descending []*T

func (ev Descending) Len() int           { return len(ev) }
func (ev Descending) Less(i, j int) bool { return ev[i].CreatedAt > ev[j].CreatedAt }
func (ev Descending) Swap(i, j int)      { ev[i], ev[j] = ev[j], ev[i] }

func Hash(in []byte) (out []byte) {
	h := sha256.Sum256(in)
	return h[:]
}

// Serialize outputs the canonical form that is hashed to produce the ID and
// that the signature signs:
//
//	[0,"pubkey",created_at,kind,tags,"content"]
//
// String escaping must be byte-exact per RFC8259 or ids will not reproduce.
func (ev *T) Serialize() []byte {
	dst := make([]byte, 0, 256+len(ev.Content))
	dst = append(dst, []byte(fmt.Sprintf("[0,\"%s\",%d,%d,",
		ev.PubKey, ev.CreatedAt, ev.Kind))...)
	dst = ev.Tags.MarshalTo(dst)
	dst = append(dst, ',')
	dst = escape.String(dst, ev.Content)
	dst = append(dst, ']')
	return dst
}

// GetIDBytes returns the raw SHA256 hash of the canonical form of the event.
func (ev *T) GetIDBytes() []byte { return Hash(ev.Serialize()) }

// GetID serializes and returns the event fingerprint.
func (ev *T) GetID() eventid.T {
	return eventid.T(hex.Enc(ev.GetIDBytes()))
}

// CheckID recomputes the fingerprint and reports whether the ID field
// matches it.
func (ev *T) CheckID() bool { return ev.GetID() == ev.ID }

// CheckSignature checks if the signature is valid for the id (which is a
// hash of the serialized event content). Returns an error if the signature
// itself is malformed.
func (ev *T) CheckSignature() (valid bool, err error) {
	var pkBytes []byte
	if pkBytes, err = hex.Dec(ev.PubKey); chk.D(err) {
		return false, log.E.Err("event pubkey '%s' is invalid hex: %w",
			ev.PubKey, err)
	}
	var pk *btcec.PublicKey
	if pk, err = schnorr.ParsePubKey(pkBytes); chk.D(err) {
		return false, log.E.Err("event has invalid pubkey '%s': %w",
			ev.PubKey, err)
	}
	var sigBytes []byte
	if sigBytes, err = hex.Dec(ev.Sig); chk.D(err) {
		return false, log.E.Err("signature '%s' is invalid hex: %w",
			ev.Sig, err)
	}
	var sig *schnorr.Signature
	if sig, err = schnorr.ParseSignature(sigBytes); chk.D(err) {
		return false, log.E.Err("failed to parse signature: %w", err)
	}
	return sig.Verify(ev.GetIDBytes(), pk), nil
}

// Sign signs an event with a given secret key encoded in hexadecimal,
// filling in ID, PubKey and Sig.
func (ev *T) Sign(skStr string) (err error) {
	var skBytes []byte
	if skBytes, err = hex.Dec(skStr); chk.D(err) {
		return log.E.Err("sign called with invalid secret key: %w", err)
	}
	if len(skBytes) != 32 {
		return log.E.Err("invalid secret key length, 32 required, got %d",
			len(skBytes))
	}
	if ev.Tags == nil {
		ev.Tags = make(tags.T, 0)
	}
	sk, pk := btcec.PrivKeyFromBytes(skBytes)
	ev.PubKey = hex.Enc(schnorr.SerializePubKey(pk))
	id := ev.GetIDBytes()
	var sig *schnorr.Signature
	if sig, err = schnorr.Sign(sk, id); chk.D(err) {
		return
	}
	ev.ID = eventid.T(hex.Enc(id))
	ev.Sig = hex.Enc(sig.Serialize())
	return
}

// MarshalWrite writes the wire JSON object form of the event into a jwriter.
func (ev *T) MarshalWrite(w *jwriter.Writer) {
	w.RawString(`{"id":`)
	w.Raw(escape.String(nil, ev.ID.String()), nil)
	w.RawString(`,"pubkey":`)
	w.Raw(escape.String(nil, ev.PubKey), nil)
	w.RawString(fmt.Sprintf(`,"created_at":%d,"kind":%d,"tags":`,
		ev.CreatedAt, ev.Kind))
	w.Raw(ev.Tags.MarshalTo(nil), nil)
	w.RawString(`,"content":`)
	w.Raw(escape.String(nil, ev.Content), nil)
	w.RawString(`,"sig":`)
	w.Raw(escape.String(nil, ev.Sig), nil)
	w.RawString(`}`)
}

func (ev *T) MarshalJSON() (b []byte, err error) {
	w := jwriter.Writer{}
	ev.MarshalWrite(&w)
	return w.BuildBytes()
}

func (ev *T) UnmarshalJSON(b []byte) (err error) {
	r := gjson.ParseBytes(b)
	if !r.IsObject() {
		return fmt.Errorf("event is not a JSON object: %s", b)
	}
	return ev.fromResult(r)
}

// FromResult populates an event from an already parsed gjson result, used by
// the envelope decoders so the message is only parsed once.
func (ev *T) FromResult(r gjson.Result) (err error) {
	if !r.IsObject() {
		return fmt.Errorf("event is not a JSON object: %s", r.Raw)
	}
	return ev.fromResult(r)
}

func (ev *T) fromResult(r gjson.Result) (err error) {
	ev.ID = eventid.T(r.Get("id").Str)
	ev.PubKey = r.Get("pubkey").Str
	ev.CreatedAt = timestamp.T(r.Get("created_at").Int())
	ev.Kind = kind.T(r.Get("kind").Int())
	ev.Content = r.Get("content").Str
	ev.Sig = r.Get("sig").Str
	ev.Tags = ev.Tags[:0]
	for _, tr := range r.Get("tags").Array() {
		if !tr.IsArray() {
			return fmt.Errorf("tag is not an array: %s", tr.Raw)
		}
		var t tag.T
		for _, el := range tr.Array() {
			t = append(t, el.Str)
		}
		ev.Tags = append(ev.Tags, t)
	}
	return
}

// String returns the wire JSON form of the event.
func (ev *T) String() string {
	b, _ := ev.MarshalJSON()
	return string(b)
}
