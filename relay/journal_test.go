package relay

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryJournalAppendReplay(t *testing.T) {
	j := NewMemoryJournal()
	ctx := context.Background()

	require.NoError(t, j.Append(ctx, "doc-1", Entry{Seq: 1, Actor: "a", Frame: []byte("one")}))
	require.NoError(t, j.Append(ctx, "doc-1", Entry{Seq: 2, Actor: "b", Frame: []byte("two")}))
	require.NoError(t, j.Append(ctx, "doc-2", Entry{Seq: 3, Actor: "a", Frame: []byte("other")}))

	entries, err := j.Replay(ctx, "doc-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, []byte("one"), entries[0].Frame)
	assert.Equal(t, []byte("two"), entries[1].Frame)
	assert.Equal(t, "b", entries[1].Actor)

	// Unknown documents replay empty without error.
	entries, err = j.Replay(ctx, "doc-404")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestMemoryJournalCopiesFrames(t *testing.T) {
	j := NewMemoryJournal()
	ctx := context.Background()

	frame := []byte("mutable")
	require.NoError(t, j.Append(ctx, "doc", Entry{Seq: 1, Frame: frame}))
	frame[0] = 'X'

	entries, err := j.Replay(ctx, "doc")
	require.NoError(t, err)
	assert.Equal(t, []byte("mutable"), entries[0].Frame)
}

func TestRedisJournalAppendReplay(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	j := NewRedisJournal(client)
	ctx := context.Background()

	require.NoError(t, j.Append(ctx, "doc-1", Entry{Seq: 10, Actor: "a", Frame: []byte(`{"ops":[]}`)}))
	require.NoError(t, j.Append(ctx, "doc-1", Entry{Seq: 11, Actor: "b", Frame: []byte(`{"ops":[1]}`)}))

	entries, err := j.Replay(ctx, "doc-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(10), entries[0].Seq)
	assert.Equal(t, "a", entries[0].Actor)
	assert.Equal(t, []byte(`{"ops":[]}`), entries[0].Frame)
	assert.Equal(t, int64(11), entries[1].Seq)

	entries, err = j.Replay(ctx, "doc-empty")
	require.NoError(t, err)
	assert.Empty(t, entries)
}
