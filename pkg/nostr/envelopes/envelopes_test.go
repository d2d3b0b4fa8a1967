package envelopes

import (
	"encoding/json"
	"testing"

	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/envelopes/closedenvelope"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/envelopes/closeenvelope"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/envelopes/eoseenvelope"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/envelopes/eventenvelope"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/envelopes/noticeenvelope"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/envelopes/okenvelope"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/envelopes/reqenvelope"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/filter"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/filters"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/subscriptionid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEvent(t *testing.T) {
	raw := `["EVENT","sub1",{"id":"dc90c95f09947507c1044e8f48bcf6350aa6bff1507dd4acfc755b9239b5c962","pubkey":"3bf0c63fcb93463407af97a5e5ee64fa883d107ef9e558472c4eb9aaaefa459d","created_at":1644271588,"kind":1,"tags":[],"content":"hello","sig":"230e9d8f0ddaf7eb70b5f7741ccfa37e87a455c9a469282e3464e2052d3192cd63a167e196e381ef9d7e69e9ea43af2443b839974dc85d8aaab9efe1d9296524"}]`
	env := ParseMessage([]byte(raw))
	require.NotNil(t, env)
	ev, ok := env.(*eventenvelope.T)
	require.True(t, ok)
	assert.Equal(t, "sub1", ev.SubscriptionID.String())
	assert.Equal(t, "hello", ev.Event.Content)
	assert.Equal(t,
		"dc90c95f09947507c1044e8f48bcf6350aa6bff1507dd4acfc755b9239b5c962",
		ev.Event.ID.String())
}

func TestParseReq(t *testing.T) {
	raw := `["REQ","feed",{"kinds":[1,7],"limit":10},{"authors":["3bf0c63fcb93463407af97a5e5ee64fa883d107ef9e558472c4eb9aaaefa459d"]}]`
	env := ParseMessage([]byte(raw))
	require.NotNil(t, env)
	req, ok := env.(*reqenvelope.T)
	require.True(t, ok)
	assert.Equal(t, "feed", req.SubscriptionID.String())
	require.Len(t, req.Filters, 2)
	assert.Equal(t, 10, req.Filters[0].Limit)
	require.Len(t, req.Filters[1].Authors, 1)
}

func TestParseEose(t *testing.T) {
	env := ParseMessage([]byte(`["EOSE","feed"]`))
	require.NotNil(t, env)
	eose, ok := env.(*eoseenvelope.T)
	require.True(t, ok)
	assert.Equal(t, "feed", eose.Sub.String())
}

func TestParseClosed(t *testing.T) {
	env := ParseMessage([]byte(`["CLOSED","feed","rate-limited: slow down"]`))
	require.NotNil(t, env)
	closed, ok := env.(*closedenvelope.T)
	require.True(t, ok)
	assert.Equal(t, "feed", closed.ID.String())
	assert.Equal(t, "rate-limited: slow down", closed.Reason)
}

func TestParseOk(t *testing.T) {
	env := ParseMessage([]byte(`["OK","dc90c95f09947507c1044e8f48bcf6350aa6bff1507dd4acfc755b9239b5c962",false,"pow: difficulty too low"]`))
	require.NotNil(t, env)
	okEnv, ok := env.(*okenvelope.T)
	require.True(t, ok)
	assert.False(t, okEnv.OK)
	assert.Equal(t, "pow: difficulty too low", okEnv.Reason)
}

func TestParseNotice(t *testing.T) {
	env := ParseMessage([]byte(`["NOTICE","restricted"]`))
	require.NotNil(t, env)
	notice, ok := env.(*noticeenvelope.T)
	require.True(t, ok)
	assert.Equal(t, "restricted", notice.Text)
}

func TestParseUnknownAndGarbage(t *testing.T) {
	assert.Nil(t, ParseMessage([]byte(`["AUTH","challenge"]`)))
	assert.Nil(t, ParseMessage([]byte(`not json at all`)))
	assert.Nil(t, ParseMessage([]byte(`["EOSE"]`)))
}

func TestSubscriptionIDEscaping(t *testing.T) {
	// quotes and backslashes are legal in an id and must survive the wire
	id := subscriptionid.T(`my"sub\`)

	b, err := (&reqenvelope.T{
		SubscriptionID: id,
		Filters:        filters.T{&filter.T{}},
	}).MarshalJSON()
	require.NoError(t, err)
	require.True(t, json.Valid(b), "%s", b)
	req, ok := ParseMessage(b).(*reqenvelope.T)
	require.True(t, ok, "%s", b)
	assert.Equal(t, id, req.SubscriptionID)

	b, err = closeenvelope.New(id).MarshalJSON()
	require.NoError(t, err)
	require.True(t, json.Valid(b), "%s", b)
	cl, ok := ParseMessage(b).(*closeenvelope.T)
	require.True(t, ok, "%s", b)
	assert.Equal(t, id, cl.ID)

	b, err = (&eoseenvelope.T{Sub: id}).MarshalJSON()
	require.NoError(t, err)
	require.True(t, json.Valid(b), "%s", b)
	eose, ok := ParseMessage(b).(*eoseenvelope.T)
	require.True(t, ok, "%s", b)
	assert.Equal(t, id, eose.Sub)

	b, err = (&closedenvelope.T{ID: id, Reason: "done"}).MarshalJSON()
	require.NoError(t, err)
	require.True(t, json.Valid(b), "%s", b)
	closed, ok := ParseMessage(b).(*closedenvelope.T)
	require.True(t, ok, "%s", b)
	assert.Equal(t, id, closed.ID)

	raw := `["EVENT","sub1",{"id":"dc90c95f09947507c1044e8f48bcf6350aa6bff1507dd4acfc755b9239b5c962","pubkey":"3bf0c63fcb93463407af97a5e5ee64fa883d107ef9e558472c4eb9aaaefa459d","created_at":1644271588,"kind":1,"tags":[],"content":"hello","sig":"230e9d8f0ddaf7eb70b5f7741ccfa37e87a455c9a469282e3464e2052d3192cd63a167e196e381ef9d7e69e9ea43af2443b839974dc85d8aaab9efe1d9296524"}]`
	ev, ok := ParseMessage([]byte(raw)).(*eventenvelope.T)
	require.True(t, ok)
	ev.SubscriptionID = id
	b, err = ev.MarshalJSON()
	require.NoError(t, err)
	require.True(t, json.Valid(b), "%s", b)
	back, ok := ParseMessage(b).(*eventenvelope.T)
	require.True(t, ok, "%s", b)
	assert.Equal(t, id, back.SubscriptionID)
	assert.Equal(t, ev.Event.ID, back.Event.ID)
}

func TestRoundTrips(t *testing.T) {
	for _, raw := range []string{
		`["EOSE","feed"]`,
		`["CLOSED","feed","reason"]`,
		`["NOTICE","a \"quoted\" notice"]`,
		`["OK","dc90c95f09947507c1044e8f48bcf6350aa6bff1507dd4acfc755b9239b5c962",true,""]`,
	} {
		env := ParseMessage([]byte(raw))
		require.NotNil(t, env, raw)
		b, err := env.MarshalJSON()
		require.NoError(t, err)
		assert.Equal(t, raw, string(b))
	}
}
