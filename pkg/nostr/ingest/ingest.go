// Package ingest is the verify/dedup/commit pipeline between the relay
// pool and the event store. Every inbound event passes through here
// exactly once: recompute the id, verify the signature, consult the
// seen-cache, then the store's insert-if-absent decides who was first.
// A single worker serializes commits, which is what makes delivery order
// equal commit order for every subscriber.
package ingest

import (
	"errors"
	"os"

	"github.com/Hubmakerlabs/aggregatr/pkg/context"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/event"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/eventstore"
	"github.com/Hubmakerlabs/aggregatr/pkg/qu"
	"github.com/Hubmakerlabs/aggregatr/pkg/slog"
	ristretto "github.com/fiatjaf/generic-ristretto"
	"github.com/puzpuzpuz/xsync/v2"
)

var log, chk = slog.New(os.Stderr)

const DefaultIntakeDepth = 512

// Ticket is one inbound event and the relay it arrived from.
type Ticket struct {
	Event  *event.T
	Source string
}

// Notifier receives each freshly committed event, once, in commit order.
type Notifier interface {
	Notify(ev *event.T)
}

type P struct {
	Ctx      context.T
	store    eventstore.Store
	notifier Notifier
	intake   chan Ticket
	// seen maps event id to the relay that delivered it first. Lossy by
	// design, the store is the authority; this only skips store round
	// trips for hot duplicates.
	seen *ristretto.Cache[string, string]
	dups *xsync.MapOf[string, *xsync.Counter]
	done qu.C
}

func New(c context.T, store eventstore.Store, n Notifier,
	intakeDepth int) (p *P, err error) {

	if intakeDepth <= 0 {
		intakeDepth = DefaultIntakeDepth
	}
	var seen *ristretto.Cache[string, string]
	if seen, err = ristretto.NewCache(&ristretto.Config[string, string]{
		NumCounters: 1 << 20,
		MaxCost:     1 << 16,
		BufferItems: 64,
	}); chk.E(err) {
		return nil, err
	}
	p = &P{
		Ctx:      c,
		store:    store,
		notifier: n,
		intake:   make(chan Ticket, intakeDepth),
		seen:     seen,
		dups:     xsync.NewMapOf[*xsync.Counter](),
		done:     qu.T(),
	}
	go p.run()
	return p, nil
}

// Submit queues an event for ingestion. Blocks when the intake is full,
// pushing backpressure onto the caller's read loop. Returns false only
// when the pipeline is shutting down.
func (p *P) Submit(ev *event.T, source string) bool {
	select {
	case p.intake <- Ticket{Event: ev, Source: source}:
		return true
	case <-p.Ctx.Done():
		return false
	}
}

// Done closes when the worker has exited after context cancellation.
func (p *P) Done() qu.C { return p.done }

// Duplicates reports how many redundant copies a relay has delivered.
func (p *P) Duplicates(relay string) int64 {
	if c, ok := p.dups.Load(relay); ok {
		return c.Value()
	}
	return 0
}

// FirstSeen reports which relay delivered an event first, as far as the
// cache remembers.
func (p *P) FirstSeen(id string) (relay string, ok bool) {
	return p.seen.Get(id)
}

func (p *P) run() {
	defer p.done.Q()
	for {
		select {
		case t := <-p.intake:
			p.process(t)
		case <-p.Ctx.Done():
			return
		}
	}
}

func (p *P) process(t Ticket) {
	ev := t.Event
	if ev == nil {
		return
	}
	if !ev.CheckID() {
		log.D.F("{%s} event id mismatch, dropping %s", t.Source, ev.ID)
		return
	}
	if ok, err := ev.CheckSignature(); !ok {
		log.D.F("{%s} bad signature on %s: %v", t.Source, ev.ID, err)
		return
	}
	id := ev.ID.String()
	if _, found := p.seen.Get(id); found {
		p.countDup(t.Source)
		return
	}
	err := p.store.SaveEvent(p.Ctx, ev)
	switch {
	case err == nil:
		p.seen.Set(id, t.Source, 1)
		if p.notifier != nil {
			p.notifier.Notify(ev)
		}
	case errors.Is(err, eventstore.ErrDupEvent):
		p.countDup(t.Source)
	default:
		log.E.F("{%s} store rejected %s: %v", t.Source, id, err)
	}
}

func (p *P) countDup(relay string) {
	c, _ := p.dups.LoadOrCompute(relay, xsync.NewCounter)
	c.Inc()
}
