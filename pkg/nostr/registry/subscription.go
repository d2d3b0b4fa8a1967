package registry

import (
	"sync"

	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/event"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/filters"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/subscriptionid"
	"github.com/Hubmakerlabs/aggregatr/pkg/qu"
)

// RelayState is the progress of one subscription on one relay. States at
// Eose and beyond are terminal for completion accounting.
type RelayState int

const (
	// Requested means the REQ was sent and nothing has come back yet.
	Requested RelayState = iota
	// Streaming means at least one stored event arrived, EOSE has not.
	Streaming
	// Eose means the relay signalled the end of its stored events.
	Eose
	// Closed means the relay terminated the subscription from its side.
	Closed
	// Failed means the relay timed out, violated the protocol or was
	// removed before reaching Eose.
	Failed
)

func (s RelayState) Terminal() bool { return s >= Eose }

func (s RelayState) String() string {
	switch s {
	case Requested:
		return "requested"
	case Streaming:
		return "streaming"
	case Eose:
		return "eose"
	case Closed:
		return "closed"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Subscription is one live aggregated subscription. Events delivers
// committed matches in commit order and closes after Unregister once the
// last buffered event is out. Done closes when every relay that accepted
// the subscription has reached a terminal state.
type Subscription struct {
	ID      subscriptionid.T
	Filters filters.T

	Events chan *event.T
	Done   qu.C

	mx       sync.Mutex
	relays   map[string]RelayState
	pending  []*event.T
	wake     qu.C
	quit     qu.C
	dead     bool
	doneOnce sync.Once
}

func newSubscription(id subscriptionid.T, ff filters.T) (s *Subscription) {
	return &Subscription{
		ID:      id,
		Filters: ff,
		Events:  make(chan *event.T, 16),
		Done:    qu.T(),
		wake:    qu.Ts(1),
		quit:    qu.T(),
		relays:  make(map[string]RelayState),
	}
}

// dispatch is the delivery goroutine: it drains the pending buffer into
// Events in FIFO order so that a slow consumer never blocks the caller
// of enqueue, only its own subscription.
func (s *Subscription) dispatch() {
	for {
		s.mx.Lock()
		var ev *event.T
		if len(s.pending) > 0 {
			ev = s.pending[0]
			s.pending = s.pending[1:]
		} else if s.dead {
			s.mx.Unlock()
			close(s.Events)
			return
		}
		s.mx.Unlock()
		if ev == nil {
			select {
			case <-s.wake:
			case <-s.quit:
				// drain whatever was buffered before the quit, then exit
				// through the dead branch above
			}
			continue
		}
		select {
		case s.Events <- ev:
		case <-s.quit:
			s.mx.Lock()
			s.dead = true
			s.pending = nil
			s.mx.Unlock()
			close(s.Events)
			return
		}
	}
}

// enqueue hands a committed event to the delivery goroutine. Events
// arriving after Unregister are discarded.
func (s *Subscription) enqueue(ev *event.T) {
	s.mx.Lock()
	if s.dead {
		s.mx.Unlock()
		return
	}
	s.pending = append(s.pending, ev)
	s.mx.Unlock()
	s.wake.Signal()
}

// stop ends delivery. Safe to call more than once.
func (s *Subscription) stop() {
	s.mx.Lock()
	if s.dead {
		s.mx.Unlock()
		return
	}
	s.dead = true
	s.pending = nil
	s.mx.Unlock()
	s.quit.Q()
	s.signalDone()
}

func (s *Subscription) signalDone() { s.doneOnce.Do(func() { s.Done.Q() }) }

// MarkRelay records progress on one relay, enforcing the no-downgrade
// rule: once a relay is terminal for this subscription, an attempt to
// move it back to Requested or Streaming marks it Failed instead.
// Returns the state that actually took effect.
func (s *Subscription) MarkRelay(relay string, st RelayState) RelayState {
	s.mx.Lock()
	cur, seen := s.relays[relay]
	if seen && cur.Terminal() && !st.Terminal() {
		st = Failed
	}
	s.relays[relay] = st
	complete := s.complete()
	s.mx.Unlock()
	if complete {
		s.signalDone()
	}
	return st
}

// RelayState reports the recorded state of one relay, if any.
func (s *Subscription) RelayState(relay string) (st RelayState, ok bool) {
	s.mx.Lock()
	defer s.mx.Unlock()
	st, ok = s.relays[relay]
	return
}

// complete is true when at least one relay accepted the subscription and
// all of them are terminal. Callers hold s.mx.
func (s *Subscription) complete() bool {
	if len(s.relays) == 0 {
		return false
	}
	for _, st := range s.relays {
		if !st.Terminal() {
			return false
		}
	}
	return true
}

// IsComplete reports whether every accepting relay is terminal.
func (s *Subscription) IsComplete() bool {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.complete()
}
