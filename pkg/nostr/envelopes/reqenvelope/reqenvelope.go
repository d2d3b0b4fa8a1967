// Package reqenvelope is the REQ wire envelope: a client requesting a
// subscription with one or more filters.
package reqenvelope

import (
	"fmt"

	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/escape"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/filter"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/filters"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/interfaces/enveloper"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/subscriptionid"
	"github.com/mailru/easyjson/jwriter"
	"github.com/tidwall/gjson"
)

var _ enveloper.I = (*T)(nil)

type T struct {
	SubscriptionID subscriptionid.T
	Filters        filters.T
}

func (T) Label() string { return "REQ" }

func (env *T) UnmarshalJSON(data []byte) error {
	r := gjson.ParseBytes(data)
	arr := r.Array()
	if len(arr) < 3 {
		return fmt.Errorf("failed to decode REQ envelope: missing filters")
	}
	env.SubscriptionID = subscriptionid.T(arr[1].Str)
	env.Filters = make(filters.T, 0, len(arr)-2)
	for i := 2; i < len(arr); i++ {
		f := &filter.T{}
		if err := f.FromResult(arr[i]); err != nil {
			return fmt.Errorf("%w -- on filter %d", err, i-2)
		}
		env.Filters = append(env.Filters, f)
	}
	return nil
}

func (env *T) MarshalJSON() ([]byte, error) {
	w := jwriter.Writer{}
	w.RawString(`["REQ",`)
	w.Raw(escape.String(nil, env.SubscriptionID.String()), nil)
	for _, f := range env.Filters {
		w.RawString(`,`)
		f.MarshalWrite(&w)
	}
	w.RawString(`]`)
	return w.BuildBytes()
}
