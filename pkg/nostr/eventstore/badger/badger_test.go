package badger

import (
	"testing"

	"github.com/Hubmakerlabs/aggregatr/pkg/context"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/event"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/eventstore"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/filter"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/keys"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/kind"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/kinds"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/tags"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/timestamp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBackend(t *testing.T) (*Backend, context.T) {
	t.Helper()
	c, cancel := context.Cancel(context.Bg())
	b := GetBackend(c, t.TempDir(), 0)
	require.NoError(t, b.Init())
	t.Cleanup(func() {
		cancel()
		b.Close()
	})
	return b, c
}

func signedEvent(t *testing.T, sk, content string, ts timestamp.T,
	k kind.T) *event.T {

	t.Helper()
	ev := &event.T{
		CreatedAt: ts,
		Kind:      k,
		Tags:      tags.T{},
		Content:   content,
	}
	require.NoError(t, ev.Sign(sk))
	return ev
}

func TestInitDefaultsBlockCache(t *testing.T) {
	c, cancel := context.Cancel(context.Bg())
	defer cancel()
	// compression is on, so opening with an unsized cache must still work
	b := GetBackend(c, t.TempDir(), 0)
	require.NoError(t, b.Init())
	defer b.Close()
	assert.Equal(t, DefaultBlockCacheSize, b.BlockCacheSize)
}

func TestSaveEventDedup(t *testing.T) {
	b, c := testBackend(t)
	sk := keys.GeneratePrivateKey()
	ev := signedEvent(t, sk, "first sight", timestamp.Now(), kind.TextNote)

	require.NoError(t, b.SaveEvent(c, ev))
	err := b.SaveEvent(c, ev)
	assert.ErrorIs(t, err, eventstore.ErrDupEvent)

	has, err := b.Exists(c, ev.ID)
	require.NoError(t, err)
	assert.True(t, has)
}

func TestQueryEventsOrderAndLimit(t *testing.T) {
	b, c := testBackend(t)
	sk := keys.GeneratePrivateKey()
	base := timestamp.Now()
	for i := 0; i < 5; i++ {
		ev := signedEvent(t, sk, "note", base+timestamp.T(i), kind.TextNote)
		require.NoError(t, b.SaveEvent(c, ev))
	}

	evs, err := b.QueryEvents(c, &filter.T{
		Kinds: kinds.T{kind.TextNote},
		Limit: 3,
	})
	require.NoError(t, err)
	require.Len(t, evs, 3)
	// newest first
	assert.Equal(t, base+4, evs[0].CreatedAt)
	assert.Equal(t, base+2, evs[2].CreatedAt)
}

func TestQueryEventsFilterMismatch(t *testing.T) {
	b, c := testBackend(t)
	sk := keys.GeneratePrivateKey()
	ev := signedEvent(t, sk, "meta", timestamp.Now(), kind.ProfileMetadata)
	require.NoError(t, b.SaveEvent(c, ev))

	evs, err := b.QueryEvents(c, &filter.T{Kinds: kinds.T{kind.TextNote}})
	require.NoError(t, err)
	assert.Empty(t, evs)

	evs, err = b.QueryEvents(c, &filter.T{})
	require.NoError(t, err)
	assert.Len(t, evs, 1)
	assert.Equal(t, ev.ID, evs[0].ID)
}

func TestSurvivesReopen(t *testing.T) {
	c, cancel := context.Cancel(context.Bg())
	defer cancel()
	path := t.TempDir()
	b := GetBackend(c, path, 0)
	require.NoError(t, b.Init())
	sk := keys.GeneratePrivateKey()
	ev := signedEvent(t, sk, "durable", timestamp.Now(), kind.TextNote)
	require.NoError(t, b.SaveEvent(c, ev))
	b.Close()

	b2 := GetBackend(c, path, 0)
	require.NoError(t, b2.Init())
	defer b2.Close()
	has, err := b2.Exists(c, ev.ID)
	require.NoError(t, err)
	assert.True(t, has)
}
