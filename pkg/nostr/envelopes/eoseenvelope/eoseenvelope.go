// Package eoseenvelope is the EOSE wire envelope: a relay signalling the
// end of stored events for a subscription. Events after this point are live.
package eoseenvelope

import (
	"fmt"

	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/escape"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/interfaces/enveloper"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/subscriptionid"
	"github.com/mailru/easyjson/jwriter"
	"github.com/tidwall/gjson"
)

var _ enveloper.I = (*T)(nil)

type T struct {
	Sub subscriptionid.T
}

func (T) Label() string { return "EOSE" }

func (env *T) UnmarshalJSON(data []byte) error {
	r := gjson.ParseBytes(data)
	arr := r.Array()
	if len(arr) < 2 {
		return fmt.Errorf("failed to decode EOSE envelope")
	}
	env.Sub = subscriptionid.T(arr[1].Str)
	return nil
}

func (env *T) MarshalJSON() ([]byte, error) {
	w := jwriter.Writer{}
	w.RawString(`["EOSE",`)
	w.Raw(escape.String(nil, env.Sub.String()), nil)
	w.RawString(`]`)
	return w.BuildBytes()
}
