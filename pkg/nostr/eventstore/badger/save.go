package badger

import (
	"github.com/Hubmakerlabs/aggregatr/pkg/context"
	"github.com/Hubmakerlabs/aggregatr/pkg/hex"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/event"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/eventid"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/eventstore"
	"github.com/dgraph-io/badger/v4"
)

// SaveEvent commits the event under its id unless the id is already
// present. The existence check and the write share one transaction, so
// exactly one of any set of racing saves for an id can succeed.
func (b *Backend) SaveEvent(c context.T, ev *event.T) (err error) {
	var id []byte
	if id, err = hex.Dec(ev.ID.String()); chk.E(err) {
		return err
	}
	var payload []byte
	if payload, err = ev.MarshalJSON(); chk.E(err) {
		return err
	}
	key := eventKey(id)
	return b.DB.Update(func(txn *badger.Txn) (err error) {
		if _, err = txn.Get(key); err == nil {
			return eventstore.ErrDupEvent
		}
		if err != badger.ErrKeyNotFound {
			return err
		}
		return txn.Set(key, payload)
	})
}

func (b *Backend) Exists(c context.T, id eventid.T) (has bool, err error) {
	var idb []byte
	if idb, err = hex.Dec(id.String()); chk.E(err) {
		return false, err
	}
	err = b.DB.View(func(txn *badger.Txn) (err error) {
		_, err = txn.Get(eventKey(idb))
		return
	})
	switch err {
	case nil:
		return true, nil
	case badger.ErrKeyNotFound:
		return false, nil
	default:
		return false, err
	}
}
