// Package registry tracks live aggregated subscriptions: which ids exist,
// what each relay has contributed so far, and delivery of committed events
// to the consumers, exactly once per commit and in commit order.
package registry

import (
	"errors"

	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/event"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/filters"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/subscriptionid"
	"github.com/puzpuzpuz/xsync/v2"
)

// ErrDuplicateID is returned by Register when the id is already live.
var ErrDuplicateID = errors.New("subscription id already registered")

// ErrInvalidID is returned by Register for ids outside 1..64 characters.
var ErrInvalidID = errors.New("invalid subscription id")

type R struct {
	subs *xsync.MapOf[string, *Subscription]
}

func New() (r *R) {
	return &R{subs: xsync.NewMapOf[*Subscription]()}
}

// Register creates a live subscription under a caller-chosen id and
// starts its delivery goroutine.
func (r *R) Register(id subscriptionid.T, ff filters.T) (s *Subscription,
	err error) {

	if !id.Valid() {
		return nil, ErrInvalidID
	}
	s = newSubscription(id, ff)
	if _, loaded := r.subs.LoadOrStore(id.String(), s); loaded {
		return nil, ErrDuplicateID
	}
	go s.dispatch()
	return s, nil
}

// Unregister removes a subscription and stops its delivery. Idempotent:
// unknown ids are a no-op.
func (r *R) Unregister(id subscriptionid.T) {
	if s, ok := r.subs.LoadAndDelete(id.String()); ok {
		s.stop()
	}
}

// Get returns the live subscription for id, if any.
func (r *R) Get(id subscriptionid.T) (s *Subscription, ok bool) {
	return r.subs.Load(id.String())
}

// Range calls fn for every live subscription until fn returns false.
func (r *R) Range(fn func(s *Subscription) bool) {
	r.subs.Range(func(_ string, s *Subscription) bool { return fn(s) })
}

// Notify delivers a committed event to every live subscription whose
// filters match. Call sites serialize on the ingest worker, which is what
// makes delivery order equal commit order.
func (r *R) Notify(ev *event.T) {
	r.subs.Range(func(_ string, s *Subscription) bool {
		if s.Filters.Match(ev) {
			s.enqueue(ev)
		}
		return true
	})
}

// MarkRelayState records per-relay progress for a subscription. Unknown
// ids are ignored, the subscription may have been withdrawn meanwhile.
func (r *R) MarkRelayState(id subscriptionid.T, relay string,
	st RelayState) {

	if s, ok := r.subs.Load(id.String()); ok {
		s.MarkRelay(relay, st)
	}
}

// IsComplete reports whether the subscription has heard a terminal state
// from every relay that accepted it. Unknown ids report false.
func (r *R) IsComplete(id subscriptionid.T) bool {
	s, ok := r.subs.Load(id.String())
	return ok && s.IsComplete()
}
