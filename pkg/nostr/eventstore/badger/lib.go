// Package badger is the on-disk event store backend. Events are keyed by
// their 32 byte id, which makes SaveEvent a natural insert-if-absent and
// the whole store self-deduplicating.
package badger

import (
	"os"

	"github.com/Hubmakerlabs/aggregatr/pkg/context"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/eventstore"
	"github.com/Hubmakerlabs/aggregatr/pkg/slog"
	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
)

var log, chk = slog.New(os.Stderr)

var _ eventstore.Store = (*Backend)(nil)

// eventPrefix namespaces event records so other record types can share the
// keyspace later.
var eventPrefix = []byte{'e'}

// DefaultBlockCacheSize is used when the caller does not size the cache.
// Badger requires a block cache whenever compression is on.
const DefaultBlockCacheSize = 16 << 20

type Backend struct {
	Ctx  context.T
	Path string
	// BlockCacheSize is passed through to badger, in bytes.
	BlockCacheSize int
	*badger.DB
}

func GetBackend(c context.T, path string, blockCacheSize int) (b *Backend) {
	return &Backend{
		Ctx:            c,
		Path:           path,
		BlockCacheSize: blockCacheSize,
	}
}

func (b *Backend) Init() (err error) {
	log.I.Ln("opening badger event store at", b.Path)
	if b.BlockCacheSize <= 0 {
		b.BlockCacheSize = DefaultBlockCacheSize
	}
	opts := badger.DefaultOptions(b.Path)
	opts.BlockCacheSize = int64(b.BlockCacheSize)
	opts.CompactL0OnClose = true
	opts.Compression = options.ZSTD
	opts.Logger = nil
	if b.DB, err = badger.Open(opts); chk.E(err) {
		return err
	}
	return nil
}

func (b *Backend) Close() { _ = b.DB.Close() }

func eventKey(id []byte) (key []byte) {
	key = make([]byte, 0, len(eventPrefix)+len(id))
	key = append(key, eventPrefix...)
	return append(key, id...)
}
