// Package app wires the aggregation engine together: config, badger event
// store, ingest pipeline, subscription registry and relay pool, behind a
// façade that makes the many relays look like one.
package app

import (
	"os"
	"time"

	"github.com/Hubmakerlabs/aggregatr/pkg/context"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/client"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/event"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/eventstore"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/eventstore/badger"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/filter"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/filters"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/ingest"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/pool"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/registry"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/subscriptionid"
	"github.com/Hubmakerlabs/aggregatr/pkg/slog"
)

var log, chk = slog.New(os.Stderr)

// Client is the application-facing engine handle. Everything behind it
// deals with relay multiplicity; nothing in front of it has to.
type Client struct {
	Ctx      context.T
	cancel   context.F
	Config   *Config
	Store    eventstore.Store
	Registry *registry.R
	Pipeline *ingest.P
	Pool     *pool.P
}

// New builds the engine: opens the store at dbPath, starts the pipeline
// and the pool, and adds the configured relays.
func New(c context.T, cfg *Config, dbPath string) (cl *Client, err error) {
	ctx, cancel := context.Cancel(c)
	store := badger.GetBackend(ctx, dbPath, 0)
	if err = store.Init(); chk.E(err) {
		cancel()
		return nil, err
	}
	reg := registry.New()
	var pipe *ingest.P
	if pipe, err = ingest.New(ctx, store, reg,
		cfg.IntakeDepth); chk.E(err) {

		store.Close()
		cancel()
		return nil, err
	}
	p := pool.New(ctx, reg, pipe, &pool.Config{
		SubTimeout: time.Duration(cfg.SubTimeout) * time.Second,
		InboxSize:  cfg.InboxSize,
		Backoff: client.Backoff{
			Min: time.Duration(cfg.BackoffMin) * time.Millisecond,
			Max: time.Duration(cfg.BackoffMax) * time.Millisecond,
		},
	})
	cl = &Client{
		Ctx:      ctx,
		cancel:   cancel,
		Config:   cfg,
		Store:    store,
		Registry: reg,
		Pipeline: pipe,
		Pool:     p,
	}
	for _, url := range cfg.Relays {
		if err = p.AddRelay(url); chk.E(err) {
			log.W.F("skipping relay %q: %v", url, err)
		}
	}
	return cl, nil
}

// Subscribe opens an aggregated subscription under a caller-chosen id.
func (cl *Client) Subscribe(id subscriptionid.T, ff filters.T) (
	s *registry.Subscription, err error) {

	return cl.Pool.Subscribe(id, ff)
}

// Unsubscribe withdraws an aggregated subscription. Idempotent.
func (cl *Client) Unsubscribe(id subscriptionid.T) {
	cl.Pool.Unsubscribe(id)
}

// Publish signs nothing: the event must already carry a valid id and
// signature. Returns each relay's verdict.
func (cl *Client) Publish(c context.T, ev *event.T) []pool.PublishResult {
	return cl.Pool.Publish(c, ev)
}

// QueryLocal answers from the local store only, no network round trips.
func (cl *Client) QueryLocal(c context.T, f *filter.T) ([]*event.T, error) {
	return cl.Store.QueryEvents(c, f)
}

// Shutdown stops the pool, withdraws every live subscription so their
// Events channels close, drains the pipeline and closes the store, in
// that order.
func (cl *Client) Shutdown() {
	cl.Pool.Close()
	cl.Registry.Range(func(s *registry.Subscription) bool {
		cl.Registry.Unregister(s.ID)
		return true
	})
	cl.cancel()
	<-cl.Pipeline.Done()
	cl.Store.Close()
}
