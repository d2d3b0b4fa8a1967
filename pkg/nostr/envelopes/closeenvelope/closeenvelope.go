// Package closeenvelope is the CLOSE wire envelope: a client withdrawing a
// subscription.
package closeenvelope

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
	ID subscriptionid.T
}

func New(id subscriptionid.T) *T { return &T{ID: id} }

func (T) Label() string { return "CLOSE" }

func (env *T) UnmarshalJSON(data []byte) error {
	r := gjson.ParseBytes(data)
	arr := r.Array()
	if len(arr) < 2 {
		return fmt.Errorf("failed to decode CLOSE envelope")
	}
	env.ID = subscriptionid.T(arr[1].Str)
	return nil
}

func (env *T) MarshalJSON() ([]byte, error) {
	w := jwriter.Writer{}
	w.RawString(`["CLOSE",`)
	w.Raw(escape.String(nil, env.ID.String()), nil)
	w.RawString(`]`)
	return w.BuildBytes()
}
