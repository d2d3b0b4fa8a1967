// Package eventenvelope is the EVENT wire envelope. With a subscription id
// it is a relay delivering a stored or live event for that subscription;
// without one it is a client publishing an event.
package eventenvelope

import (
	"fmt"

	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/escape"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/event"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/interfaces/enveloper"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/subscriptionid"
	"github.com/mailru/easyjson/jwriter"
	"github.com/tidwall/gjson"
)

var _ enveloper.I = (*T)(nil)

type T struct {
	SubscriptionID subscriptionid.T
	Event          *event.T
}

func (T) Label() string { return "EVENT" }

func (env *T) UnmarshalJSON(data []byte) error {
	r := gjson.ParseBytes(data)
	arr := r.Array()
	switch len(arr) {
	case 2:
		env.Event = &event.T{}
		return env.Event.FromResult(arr[1])
	case 3:
		env.SubscriptionID = subscriptionid.T(arr[1].Str)
		env.Event = &event.T{}
		return env.Event.FromResult(arr[2])
	default:
		return fmt.Errorf("failed to decode EVENT envelope")
	}
}

func (env *T) MarshalJSON() ([]byte, error) {
	w := jwriter.Writer{}
	w.RawString(`["EVENT",`)
	if env.SubscriptionID != "" {
		w.Raw(escape.String(nil, env.SubscriptionID.String()), nil)
		w.RawString(`,`)
	}
	env.Event.MarshalWrite(&w)
	w.RawString(`]`)
	return w.BuildBytes()
}

func (env *T) String() string {
	b, _ := env.MarshalJSON()
	return string(b)
}
