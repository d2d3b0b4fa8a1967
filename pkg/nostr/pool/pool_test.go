package pool

import (
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Hubmakerlabs/aggregatr/pkg/context"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/client"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/envelopes"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/envelopes/closeenvelope"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/envelopes/eoseenvelope"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/envelopes/eventenvelope"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/envelopes/okenvelope"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/envelopes/reqenvelope"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/event"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/eventid"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/eventstore"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/filter"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/filters"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/ingest"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/keys"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/kind"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/normalize"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/registry"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/subscriptionid"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/tags"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/timestamp"
	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testRelay is a minimal in-process relay: serves stored events on REQ,
// acks EVENT with OK and rebroadcasts it to matching subscriptions.
type testRelay struct {
	srv *httptest.Server

	mx     sync.Mutex
	stored []*event.T
	conns  map[*relayConn]struct{}
	closes []string

	// holdEose suppresses EOSE so subscriptions never complete here.
	holdEose bool
	// dropAfterFirstEvent kills the socket mid-stream after one stored
	// event, simulating a relay dying before EOSE.
	dropAfterFirstEvent bool
}

type relayConn struct {
	net.Conn
	wmx  sync.Mutex
	subs map[string]filters.T
}

func (rc *relayConn) send(b []byte) {
	rc.wmx.Lock()
	defer rc.wmx.Unlock()
	_ = wsutil.WriteServerText(rc.Conn, b)
}

func newTestRelay(t *testing.T, stored ...*event.T) *testRelay {
	r := &testRelay{
		stored: stored,
		conns:  map[*relayConn]struct{}{},
	}
	r.srv = httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, req *http.Request) {
			conn, _, _, err := ws.UpgradeHTTP(req, w)
			if err != nil {
				return
			}
			rc := &relayConn{Conn: conn, subs: map[string]filters.T{}}
			r.mx.Lock()
			r.conns[rc] = struct{}{}
			r.mx.Unlock()
			go r.serve(rc)
		}))
	t.Cleanup(r.srv.Close)
	return r
}

func (r *testRelay) URL() string {
	return "ws://" + strings.TrimPrefix(r.srv.URL, "http://")
}

func (r *testRelay) closeReceived() []string {
	r.mx.Lock()
	defer r.mx.Unlock()
	return append([]string(nil), r.closes...)
}

func (r *testRelay) serve(rc *relayConn) {
	defer func() {
		r.mx.Lock()
		delete(r.conns, rc)
		r.mx.Unlock()
		rc.Conn.Close()
	}()
	for {
		msg, err := wsutil.ReadClientText(rc.Conn)
		if err != nil {
			return
		}
		env := envelopes.ParseMessage(msg)
		switch e := env.(type) {
		case *reqenvelope.T:
			r.mx.Lock()
			rc.subs[e.SubscriptionID.String()] = e.Filters
			stored := append([]*event.T(nil), r.stored...)
			r.mx.Unlock()
			for _, ev := range stored {
				if !e.Filters.Match(ev) {
					continue
				}
				b, _ := (&eventenvelope.T{
					SubscriptionID: e.SubscriptionID,
					Event:          ev,
				}).MarshalJSON()
				rc.send(b)
				if r.dropAfterFirstEvent {
					return
				}
			}
			if !r.holdEose {
				b, _ := (&eoseenvelope.T{Sub: e.SubscriptionID}).MarshalJSON()
				rc.send(b)
			}
		case *eventenvelope.T:
			r.mx.Lock()
			r.stored = append(r.stored, e.Event)
			conns := make([]*relayConn, 0, len(r.conns))
			for c := range r.conns {
				conns = append(conns, c)
			}
			r.mx.Unlock()
			b, _ := (&okenvelope.T{ID: e.Event.ID, OK: true}).MarshalJSON()
			rc.send(b)
			for _, c := range conns {
				r.mx.Lock()
				subs := make(map[string]filters.T, len(c.subs))
				for id, ff := range c.subs {
					subs[id] = ff
				}
				r.mx.Unlock()
				for id, ff := range subs {
					if !ff.Match(e.Event) {
						continue
					}
					eb, _ := (&eventenvelope.T{
						SubscriptionID: subscriptionid.T(id),
						Event:          e.Event,
					}).MarshalJSON()
					c.send(eb)
				}
			}
		case *closeenvelope.T:
			r.mx.Lock()
			delete(rc.subs, e.ID.String())
			r.closes = append(r.closes, e.ID.String())
			r.mx.Unlock()
		}
	}
}

// memStore mirrors the badger contract in memory to keep these tests off
// the disk.
type memStore struct {
	mx  sync.Mutex
	evs map[string]*event.T
}

func newMemStore() *memStore { return &memStore{evs: map[string]*event.T{}} }

func (m *memStore) Init() error { return nil }
func (m *memStore) Close()      {}

func (m *memStore) SaveEvent(c context.T, ev *event.T) error {
	m.mx.Lock()
	defer m.mx.Unlock()
	if _, ok := m.evs[ev.ID.String()]; ok {
		return eventstore.ErrDupEvent
	}
	m.evs[ev.ID.String()] = ev
	return nil
}

func (m *memStore) Exists(c context.T, id eventid.T) (bool, error) {
	m.mx.Lock()
	defer m.mx.Unlock()
	_, ok := m.evs[id.String()]
	return ok, nil
}

func (m *memStore) QueryEvents(c context.T, f *filter.T) ([]*event.T,
	error) {

	m.mx.Lock()
	defer m.mx.Unlock()
	var out []*event.T
	for _, ev := range m.evs {
		if f == nil || f.Matches(ev) {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (m *memStore) CountEvents(c context.T, f *filter.T) (int, error) {
	evs, err := m.QueryEvents(c, f)
	return len(evs), err
}

func signedNote(t *testing.T, content string) *event.T {
	t.Helper()
	sk := keys.GeneratePrivateKey()
	ev := &event.T{
		CreatedAt: timestamp.Now(),
		Kind:      kind.TextNote,
		Tags:      tags.T{},
		Content:   content,
	}
	require.NoError(t, ev.Sign(sk))
	return ev
}

type engine struct {
	reg  *registry.R
	pipe *ingest.P
	pool *P
}

func newEngine(t *testing.T, cfg *Config, store *memStore) *engine {
	t.Helper()
	c, cancel := context.Cancel(context.Bg())
	reg := registry.New()
	pipe, err := ingest.New(c, store, reg, 64)
	require.NoError(t, err)
	p := New(c, reg, pipe, cfg)
	t.Cleanup(func() {
		p.Close()
		cancel()
	})
	return &engine{reg: reg, pipe: pipe, pool: p}
}

func waitConnected(t *testing.T, p *P, n int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		connected := 0
		p.relays.Range(func(_ string, cl *client.T) bool {
			if cl.Status() == client.Connected {
				connected++
			}
			return true
		})
		if connected >= n {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("%d relays never connected", n)
}

func collect(t *testing.T, s *registry.Subscription, n int,
	wait time.Duration) (got []*event.T) {

	t.Helper()
	timer := time.NewTimer(wait)
	defer timer.Stop()
	for {
		select {
		case ev, open := <-s.Events:
			if !open {
				return
			}
			got = append(got, ev)
			if len(got) >= n {
				return
			}
		case <-timer.C:
			return
		}
	}
}

func TestDedupAcrossRelays(t *testing.T) {
	ev := signedNote(t, "the same note everywhere")
	a := newTestRelay(t, ev)
	b := newTestRelay(t, ev)
	eng := newEngine(t, &Config{SubTimeout: 5 * time.Second}, newMemStore())
	require.NoError(t, eng.pool.AddRelay(a.URL()))
	require.NoError(t, eng.pool.AddRelay(b.URL()))
	waitConnected(t, eng.pool, 2)

	sub, err := eng.pool.Subscribe("dedup", filters.T{&filter.T{}})
	require.NoError(t, err)

	got := collect(t, sub, 2, time.Second)
	require.Len(t, got, 1, "the same event must be delivered exactly once")
	assert.Equal(t, ev.ID, got[0].ID)

	select {
	case <-sub.Done:
	case <-time.After(3 * time.Second):
		t.Fatal("subscription never completed")
	}
}

func TestReplayToLateRelay(t *testing.T) {
	early := signedNote(t, "from the first relay")
	late := signedNote(t, "from the late relay")
	a := newTestRelay(t, early)
	b := newTestRelay(t, late)
	eng := newEngine(t, &Config{SubTimeout: 5 * time.Second}, newMemStore())
	require.NoError(t, eng.pool.AddRelay(a.URL()))
	waitConnected(t, eng.pool, 1)

	sub, err := eng.pool.Subscribe("replay", filters.T{&filter.T{}})
	require.NoError(t, err)
	got := collect(t, sub, 1, 2*time.Second)
	require.Len(t, got, 1)
	assert.Equal(t, early.ID, got[0].ID)

	// the relay added after Subscribe must receive the REQ via replay
	require.NoError(t, eng.pool.AddRelay(b.URL()))
	got = collect(t, sub, 1, 3*time.Second)
	require.Len(t, got, 1)
	assert.Equal(t, late.ID, got[0].ID)
}

func TestEoseTimeoutMarksFailed(t *testing.T) {
	served := signedNote(t, "mid-stream casualty")
	a := newTestRelay(t, served)
	b := newTestRelay(t)
	b.holdEose = true
	eng := newEngine(t, &Config{SubTimeout: 500 * time.Millisecond},
		newMemStore())
	require.NoError(t, eng.pool.AddRelay(a.URL()))
	require.NoError(t, eng.pool.AddRelay(b.URL()))
	waitConnected(t, eng.pool, 2)

	sub, err := eng.pool.Subscribe("timeout", filters.T{&filter.T{}})
	require.NoError(t, err)
	got := collect(t, sub, 1, 2*time.Second)
	require.Len(t, got, 1)

	// a completes with EOSE, b never answers: the timer must fail b so
	// completion is not starved
	select {
	case <-sub.Done:
	case <-time.After(3 * time.Second):
		t.Fatal("completion starved by a silent relay")
	}
	st, ok := sub.RelayState(normalize.URL(b.URL()))
	require.True(t, ok)
	assert.Equal(t, registry.Failed, st)
}

func TestPublishRoundTrip(t *testing.T) {
	a := newTestRelay(t)
	b := newTestRelay(t)
	eng := newEngine(t, &Config{
		SubTimeout:     5 * time.Second,
		PublishTimeout: 3 * time.Second,
	}, newMemStore())
	require.NoError(t, eng.pool.AddRelay(a.URL()))
	require.NoError(t, eng.pool.AddRelay(b.URL()))
	waitConnected(t, eng.pool, 2)

	sub, err := eng.pool.Subscribe("own", filters.T{&filter.T{}})
	require.NoError(t, err)
	// both relays are empty, completion happens immediately
	<-sub.Done

	ev := signedNote(t, "my own note")
	results := eng.pool.Publish(context.Bg(), ev)
	require.Len(t, results, 2)
	for _, res := range results {
		assert.True(t, res.Accepted, "%s: %s", res.Relay, res.Reason)
	}

	// the local commit delivers it once; relay echoes hit the dedup path
	got := collect(t, sub, 2, time.Second)
	require.Len(t, got, 1, "published event must come back exactly once")
	assert.Equal(t, ev.ID, got[0].ID)
}

func TestUnsubscribeIdempotent(t *testing.T) {
	a := newTestRelay(t)
	eng := newEngine(t, &Config{SubTimeout: 5 * time.Second}, newMemStore())
	require.NoError(t, eng.pool.AddRelay(a.URL()))
	waitConnected(t, eng.pool, 1)

	sub, err := eng.pool.Subscribe("gone", filters.T{&filter.T{}})
	require.NoError(t, err)
	eng.pool.Unsubscribe("gone")
	eng.pool.Unsubscribe("gone") // second call is a no-op

	select {
	case _, open := <-sub.Events:
		assert.False(t, open, "Events must close after unsubscribe")
	case <-time.After(2 * time.Second):
		t.Fatal("Events never closed")
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(a.closeReceived()) >= 1 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	closes := a.closeReceived()
	require.NotEmpty(t, closes, "relay never saw the CLOSE")
	assert.Equal(t, "gone", closes[0])

	// the id is free for reuse
	_, err = eng.pool.Subscribe("gone", filters.T{&filter.T{}})
	assert.NoError(t, err)
}

func TestCloseUnblocksIdleSessions(t *testing.T) {
	a := newTestRelay(t)
	b := newTestRelay(t)
	eng := newEngine(t, &Config{SubTimeout: 5 * time.Second}, newMemStore())
	require.NoError(t, eng.pool.AddRelay(a.URL()))
	require.NoError(t, eng.pool.AddRelay(b.URL()))
	waitConnected(t, eng.pool, 2)

	// both sessions sit in their read loops with nothing inbound; Close
	// must still get them back
	done := make(chan struct{})
	go func() {
		eng.pool.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Close hung on idle sessions")
	}
}

func TestDuplicateSubscriptionID(t *testing.T) {
	eng := newEngine(t, nil, newMemStore())
	_, err := eng.pool.Subscribe("twice", filters.T{&filter.T{}})
	require.NoError(t, err)
	_, err = eng.pool.Subscribe("twice", filters.T{&filter.T{}})
	assert.ErrorIs(t, err, registry.ErrDuplicateID)
}

func TestMidStreamDisconnectFailsRelay(t *testing.T) {
	one := signedNote(t, "one")
	two := signedNote(t, "two")
	a := newTestRelay(t, one, two)
	a.dropAfterFirstEvent = true
	eng := newEngine(t, &Config{
		SubTimeout: 500 * time.Millisecond,
		Backoff: client.Backoff{
			Min: 5 * time.Second,
			Max: 10 * time.Second,
		},
	}, newMemStore())
	require.NoError(t, eng.pool.AddRelay(a.URL()))
	waitConnected(t, eng.pool, 1)

	sub, err := eng.pool.Subscribe("dropped", filters.T{&filter.T{}})
	require.NoError(t, err)

	got := collect(t, sub, 1, 2*time.Second)
	require.Len(t, got, 1, "the event before the drop must still land")

	// no EOSE ever came, the timer fails the relay and completes the sub
	select {
	case <-sub.Done:
	case <-time.After(3 * time.Second):
		t.Fatal("dead relay starved completion")
	}
	st, ok := sub.RelayState(normalize.URL(a.URL()))
	require.True(t, ok)
	assert.Equal(t, registry.Failed, st)
}
