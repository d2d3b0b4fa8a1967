// Package noticeenvelope is the NOTICE wire envelope: a human readable
// message from a relay.
package noticeenvelope

import (
	"encoding/json"
	"fmt"

	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/interfaces/enveloper"
	"github.com/mailru/easyjson/jwriter"
	"github.com/tidwall/gjson"
)

var _ enveloper.I = (*T)(nil)

type T struct {
	Text string
}

func (T) Label() string { return "NOTICE" }

func (env *T) UnmarshalJSON(data []byte) error {
	r := gjson.ParseBytes(data)
	arr := r.Array()
	if len(arr) < 2 {
		return fmt.Errorf("failed to decode NOTICE envelope")
	}
	env.Text = arr[1].Str
	return nil
}

func (env *T) MarshalJSON() ([]byte, error) {
	w := jwriter.Writer{}
	w.RawString(`["NOTICE",`)
	w.Raw(json.Marshal(env.Text))
	w.RawString(`]`)
	return w.BuildBytes()
}
