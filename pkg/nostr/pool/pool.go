// Package pool owns the set of relay sessions and is the only place that
// knows there is more than one relay. It fans subscriptions and publishes
// out to every connected relay, replays live subscriptions to relays that
// connect later, routes inbound events into the ingest pipeline, and
// keeps per-relay subscription progress in the registry.
package pool

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/Hubmakerlabs/aggregatr/pkg/context"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/client"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/envelopes/closedenvelope"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/envelopes/eoseenvelope"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/envelopes/eventenvelope"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/event"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/filters"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/ingest"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/normalize"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/registry"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/subscriptionid"
	"github.com/Hubmakerlabs/aggregatr/pkg/slog"
	"github.com/fiatjaf/generic-ristretto/z"
	"github.com/puzpuzpuz/xsync/v2"
)

var log, chk = slog.New(os.Stderr)

const (
	DefaultSubTimeout = 10 * time.Second
	maxLocks          = 50
)

// LocalSource is the source tag for events entering the pipeline through
// Publish rather than off the wire.
const LocalSource = "local"

// namedMutexPool serializes AddRelay per normalized URL without one
// mutex per relay.
var namedMutexPool = make([]sync.Mutex, maxLocks)

func namedLock(name string) (unlock func()) {
	idx := z.MemHashString(name) % maxLocks
	namedMutexPool[idx].Lock()
	return namedMutexPool[idx].Unlock
}

type Config struct {
	// SubTimeout bounds how long a relay may sit on a subscription
	// without EOSE or CLOSED before it is marked Failed for it.
	SubTimeout time.Duration
	// PublishTimeout bounds the wait for each relay's OK verdict.
	PublishTimeout time.Duration
	// InboxSize is the per-relay inbound envelope buffer.
	InboxSize int
	// Backoff is the reconnect schedule handed to every session.
	Backoff client.Backoff
}

func (cfg *Config) withDefaults() Config {
	out := Config{}
	if cfg != nil {
		out = *cfg
	}
	if out.SubTimeout <= 0 {
		out.SubTimeout = DefaultSubTimeout
	}
	if out.PublishTimeout <= 0 {
		out.PublishTimeout = client.DefaultPublishTimeout
	}
	return out
}

// PublishResult is one relay's verdict on a published event.
type PublishResult struct {
	Relay    string
	Accepted bool
	Reason   string
}

type P struct {
	Ctx    context.T
	cancel context.F
	cfg    Config
	reg    *registry.R
	pipe   *ingest.P
	relays *xsync.MapOf[string, *client.T]
	wg     sync.WaitGroup
}

func New(c context.T, reg *registry.R, pipe *ingest.P, cfg *Config) (p *P) {
	ctx, cancel := context.Cancel(c)
	return &P{
		Ctx:    ctx,
		cancel: cancel,
		cfg:    cfg.withDefaults(),
		reg:    reg,
		pipe:   pipe,
		relays: xsync.NewMapOf[*client.T](),
	}
}

// AddRelay starts a session to the relay and keeps it alive until
// RemoveRelay or Close. Adding a relay that is already in the pool is a
// no-op.
func (p *P) AddRelay(url string) (err error) {
	nm := normalize.URL(url)
	if nm == "" {
		return fmt.Errorf("invalid relay url %q", url)
	}
	defer namedLock(nm)()
	if _, ok := p.relays.Load(nm); ok {
		return nil
	}
	cl := client.New(p.Ctx, nm, p.cfg.InboxSize, p.cfg.Backoff)
	p.relays.Store(nm, cl)
	p.wg.Add(3)
	go func() {
		defer p.wg.Done()
		cl.Run()
	}()
	go func() {
		defer p.wg.Done()
		p.watchStatus(cl)
	}()
	go func() {
		defer p.wg.Done()
		p.drainInbox(cl)
	}()
	return nil
}

// RemoveRelay closes the relay's session. Events already ingested stay;
// subscriptions that were still in flight on it are marked Failed so
// their completion is not starved.
func (p *P) RemoveRelay(url string) {
	nm := normalize.URL(url)
	cl, ok := p.relays.LoadAndDelete(nm)
	if !ok {
		return
	}
	cl.Close()
	p.reg.Range(func(s *registry.Subscription) bool {
		if st, seen := s.RelayState(nm); seen && !st.Terminal() {
			s.MarkRelay(nm, registry.Failed)
		}
		return true
	})
}

// Relays lists the pool's normalized relay URLs.
func (p *P) Relays() (urls []string) {
	p.relays.Range(func(url string, _ *client.T) bool {
		urls = append(urls, url)
		return true
	})
	return
}

// Subscribe registers the subscription and broadcasts its REQ to every
// connected relay. Relays that connect later get it through replay.
func (p *P) Subscribe(id subscriptionid.T, ff filters.T) (
	s *registry.Subscription, err error) {

	if s, err = p.reg.Register(id, ff); err != nil {
		return nil, err
	}
	p.relays.Range(func(url string, cl *client.T) bool {
		if cl.Status() == client.Connected {
			p.request(s, cl)
		}
		return true
	})
	return s, nil
}

// Unsubscribe withdraws the subscription, stopping delivery at once and
// telling the relays best-effort in the background. Idempotent.
func (p *P) Unsubscribe(id subscriptionid.T) {
	if _, ok := p.reg.Get(id); !ok {
		return
	}
	p.reg.Unregister(id)
	p.relays.Range(func(url string, cl *client.T) bool {
		if cl.Status() == client.Connected {
			go func(cl *client.T) {
				chk.D(cl.SendClose(id))
			}(cl)
		}
		return true
	})
}

// Publish commits the event locally through the ingest pipeline, sends it
// to every connected relay and gathers their verdicts. The local commit
// means the relays echoing the event back later lands on the dedup path.
func (p *P) Publish(c context.T, ev *event.T) (results []PublishResult) {
	p.pipe.Submit(ev, LocalSource)
	var mx sync.Mutex
	var wg sync.WaitGroup
	p.relays.Range(func(url string, cl *client.T) bool {
		if cl.Status() != client.Connected {
			mx.Lock()
			results = append(results, PublishResult{
				Relay:  url,
				Reason: "not connected",
			})
			mx.Unlock()
			return true
		}
		wg.Add(1)
		go func(url string, cl *client.T) {
			defer wg.Done()
			ctx, cancel := context.Timeout(c, p.cfg.PublishTimeout)
			defer cancel()
			err := cl.Publish(ctx, ev)
			res := PublishResult{Relay: url, Accepted: err == nil}
			if err != nil {
				res.Reason = err.Error()
			}
			mx.Lock()
			results = append(results, res)
			mx.Unlock()
		}(url, cl)
		return true
	})
	wg.Wait()
	return
}

// Close shuts the pool down: every session closes and the monitors drain.
func (p *P) Close() {
	p.cancel()
	p.wg.Wait()
}

// request sends one subscription's REQ to one relay and arms its EOSE
// timer. Terminal relays are re-requested for live continuity but their
// completion state is left alone.
func (p *P) request(s *registry.Subscription, cl *client.T) {
	if err := cl.SendReq(s.ID, s.Filters); chk.D(err) {
		return
	}
	if st, seen := s.RelayState(cl.URL); seen && st.Terminal() {
		return
	}
	s.MarkRelay(cl.URL, registry.Requested)
	p.armEoseTimer(s, cl.URL)
}

// armEoseTimer marks the relay Failed for the subscription if it has not
// produced EOSE or CLOSED within SubTimeout. Firing after the relay went
// terminal is a no-op.
func (p *P) armEoseTimer(s *registry.Subscription, url string) {
	time.AfterFunc(p.cfg.SubTimeout, func() {
		if st, seen := s.RelayState(url); seen && !st.Terminal() {
			log.D.F("{%s} no EOSE for %s within %v, marking failed",
				url, s.ID, p.cfg.SubTimeout)
			s.MarkRelay(url, registry.Failed)
		}
	})
}

// watchStatus reacts to session lifecycle transitions. Every transition
// to Connected, first or after an outage, replays all live
// subscriptions to that relay.
func (p *P) watchStatus(cl *client.T) {
	for st := range cl.StatusC {
		if st != client.Connected {
			continue
		}
		p.reg.Range(func(s *registry.Subscription) bool {
			p.request(s, cl)
			return true
		})
	}
}

// drainInbox routes one session's inbound envelopes. The Submit call
// blocks when the pipeline intake is full, which stalls only this
// relay's read loop.
func (p *P) drainInbox(cl *client.T) {
	for env := range cl.Inbox {
		switch e := env.(type) {
		case *eventenvelope.T:
			s, ok := p.reg.Get(e.SubscriptionID)
			if !ok || e.Event == nil {
				continue
			}
			if !s.Filters.Match(e.Event) {
				log.D.F("{%s} event %s does not match %s, dropping",
					cl.URL, e.Event.ID, s.ID)
				continue
			}
			if st, seen := s.RelayState(cl.URL); seen &&
				st == registry.Requested {

				s.MarkRelay(cl.URL, registry.Streaming)
			}
			p.pipe.Submit(e.Event, cl.URL)
		case *eoseenvelope.T:
			p.reg.MarkRelayState(e.Sub, cl.URL, registry.Eose)
		case *closedenvelope.T:
			log.D.F("{%s} closed %s: %s", cl.URL, e.ID, e.Reason)
			p.reg.MarkRelayState(e.ID, cl.URL, registry.Closed)
		}
	}
}
