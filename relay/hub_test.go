package relay

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	hub, err := NewHub(NewMemoryJournal(), 1, nil)
	require.NoError(t, err)
	return hub
}

func newTestSession(actor string) *session {
	return &session{actor: actor, send: make(chan []byte, 1024)}
}

func drainSession(s *session) [][]byte {
	var out [][]byte
	for {
		select {
		case frame := <-s.send:
			out = append(out, frame)
		default:
			return out
		}
	}
}

func TestJoinSplitsHistoryFromLiveFrames(t *testing.T) {
	hub := newTestHub(t)
	ctx := context.Background()

	author := newTestSession("author")
	_, err := hub.Join(ctx, "notes", author)
	require.NoError(t, err)

	early := []byte("early")
	require.NoError(t, hub.Relay(ctx, "notes", author, early))

	// A frame relayed before the join arrives through history.
	joiner := newTestSession("joiner")
	history, err := hub.Join(ctx, "notes", joiner)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, early, history[0].Frame)
	assert.Empty(t, drainSession(joiner))

	// A frame relayed after the join arrives through the queue.
	late := []byte("late")
	require.NoError(t, hub.Relay(ctx, "notes", author, late))
	assert.Equal(t, [][]byte{late}, drainSession(joiner))
}

// A join racing a stream of relays must hand the session every frame exactly
// once, split between the replayed history and the send queue.
func TestJoinDuringRelayStreamMissesNothing(t *testing.T) {
	const frames = 200

	hub := newTestHub(t)
	ctx := context.Background()

	author := newTestSession("author")
	_, err := hub.Join(ctx, "notes", author)
	require.NoError(t, err)

	joiner := newTestSession("joiner")
	var history []Entry
	var joinErr error
	joined := make(chan struct{})
	go func() {
		defer close(joined)
		history, joinErr = hub.Join(ctx, "notes", joiner)
	}()

	for i := 0; i < frames; i++ {
		require.NoError(t, hub.Relay(ctx, "notes", author, []byte{byte(i)}))
	}
	<-joined
	require.NoError(t, joinErr)

	seen := make(map[byte]int)
	for _, entry := range history {
		seen[entry.Frame[0]]++
	}
	for _, frame := range drainSession(joiner) {
		seen[frame[0]]++
	}

	require.Len(t, seen, frames)
	for i := 0; i < frames; i++ {
		assert.Equal(t, 1, seen[byte(i)], "frame %d", i)
	}
}
