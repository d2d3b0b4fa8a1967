// Package eventstore defines the storage abstraction the aggregation engine
// commits verified events into. The store is the single arbiter of
// first-sight: SaveEvent is insert-if-absent, and ErrDupEvent from it is
// the signal that some other copy won the race.
package eventstore

import (
	"errors"

	"github.com/Hubmakerlabs/aggregatr/pkg/context"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/event"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/eventid"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/filter"
)

// ErrDupEvent is returned by SaveEvent when the event id is already
// committed. Callers treat it as "not first", not as a failure.
var ErrDupEvent = errors.New("duplicate: event already stored")

type Store interface {
	// Init opens the store and must be called before any other method.
	Init() error
	// Close releases the store's resources.
	Close()
	// SaveEvent commits an event if and only if its id is absent,
	// returning ErrDupEvent otherwise. Atomic with respect to concurrent
	// saves of the same id.
	SaveEvent(c context.T, ev *event.T) error
	// Exists reports whether an event id is committed.
	Exists(c context.T, id eventid.T) (bool, error)
	// QueryEvents returns committed events matching the filter, newest
	// first, honoring the filter's limit when it is positive.
	QueryEvents(c context.T, f *filter.T) ([]*event.T, error)
	// CountEvents counts committed events matching the filter, ignoring
	// the filter's limit.
	CountEvents(c context.T, f *filter.T) (int, error)
}
