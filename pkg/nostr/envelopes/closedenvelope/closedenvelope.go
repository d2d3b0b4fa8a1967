// Package closedenvelope is the CLOSED wire envelope: a relay terminating a
// subscription from its side, with a machine readable reason.
package closedenvelope

import (
	"encoding/json"
	"fmt"

	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/escape"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/interfaces/enveloper"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/subscriptionid"
	"github.com/mailru/easyjson/jwriter"
	"github.com/tidwall/gjson"
)

var _ enveloper.I = (*T)(nil)

type T struct {
	ID     subscriptionid.T
	Reason string
}

func (T) Label() string { return "CLOSED" }

func (env *T) UnmarshalJSON(data []byte) error {
	r := gjson.ParseBytes(data)
	arr := r.Array()
	if len(arr) < 3 {
		return fmt.Errorf("failed to decode CLOSED envelope")
	}
	env.ID = subscriptionid.T(arr[1].Str)
	env.Reason = arr[2].Str
	return nil
}

func (env *T) MarshalJSON() ([]byte, error) {
	w := jwriter.Writer{}
	w.RawString(`["CLOSED",`)
	w.Raw(escape.String(nil, env.ID.String()), nil)
	w.RawString(`,`)
	w.Raw(json.Marshal(env.Reason))
	w.RawString(`]`)
	return w.BuildBytes()
}
