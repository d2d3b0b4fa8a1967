// Package okenvelope is the OK wire envelope: a relay's accept/reject
// verdict on a published event.
package okenvelope

import (
	"encoding/json"
	"fmt"

	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/eventid"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/interfaces/enveloper"
	"github.com/mailru/easyjson/jwriter"
	"github.com/tidwall/gjson"
)

var _ enveloper.I = (*T)(nil)

type T struct {
	ID     eventid.T
	OK     bool
	Reason string
}

func (T) Label() string { return "OK" }

func (env *T) UnmarshalJSON(data []byte) error {
	r := gjson.ParseBytes(data)
	arr := r.Array()
	if len(arr) < 4 {
		return fmt.Errorf("failed to decode OK envelope: missing fields")
	}
	env.ID = eventid.T(arr[1].Str)
	env.OK = arr[2].Raw == "true"
	env.Reason = arr[3].Str
	return nil
}

func (env *T) MarshalJSON() ([]byte, error) {
	w := jwriter.Writer{}
	w.RawString(`["OK","` + env.ID.String() + `",`)
	if env.OK {
		w.RawString("true")
	} else {
		w.RawString("false")
	}
	w.RawString(`,`)
	w.Raw(json.Marshal(env.Reason))
	w.RawString(`]`)
	return w.BuildBytes()
}
