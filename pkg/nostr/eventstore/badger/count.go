package badger

import (
	"github.com/Hubmakerlabs/aggregatr/pkg/context"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/event"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/filter"
	"github.com/dgraph-io/badger/v4"
)

// CountEvents counts matches without materializing them. The filter's
// limit is ignored, a count is a count.
func (b *Backend) CountEvents(c context.T, f *filter.T) (count int,
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
					return nil
				}
				if f == nil || f.Matches(ev) {
					count++
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
		return 0, err
	}
	return count, nil
}
