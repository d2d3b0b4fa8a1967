package badger

import (
	"sort"

	"github.com/Hubmakerlabs/aggregatr/pkg/context"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/event"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/filter"
	"github.com/dgraph-io/badger/v4"
)

// QueryEvents scans the event keyspace and returns matches newest first.
// The scan is a full prefix walk; the store holds one client's aggregated
// view, not a relay's archive, so this stays cheap enough.
func (b *Backend) QueryEvents(c context.T, f *filter.T) (evs []*event.T,
	err error) {

	err = b.DB.View(func(txn *badger.Txn) (err error) {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = eventPrefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(eventPrefix); it.ValidForPrefix(eventPrefix); it.Next() {
			select {
			case <-c.Done():
				return c.Err()
			default:
			}
			err = it.Item().Value(func(val []byte) (err error) {
				ev := &event.T{}
				if err = ev.UnmarshalJSON(val); chk.E(err) {
					// a corrupt record should not fail the whole query
					return nil
				}
				if f == nil || f.Matches(ev) {
					evs = append(evs, ev)
				}
				return nil
			})
			if chk.E(err) {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Sort(event.Descending(evs))
	if f != nil && f.Limit > 0 && len(evs) > f.Limit {
		evs = evs[:f.Limit]
	}
	return evs, nil
}
