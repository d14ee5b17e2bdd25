package modeldb

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"collabdoc/common"
)

// captureSender records outgoing frames instead of sending them anywhere.
type captureSender struct {
	mu     sync.Mutex
	frames [][]byte
}

func (s *captureSender) Send(frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(frame))
	copy(cp, frame)
	s.frames = append(s.frames, cp)
	return nil
}

// take returns and clears the captured frames.
func (s *captureSender) take() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.frames
	s.frames = nil
	return out
}

// newReadyDB builds a database that already completed its first sync, with
// any bootstrap-time frames drained from the sender.
func newReadyDB(t *testing.T, opts ...Option) (*ModelDB, *captureSender) {
	t.Helper()
	db := NewModelDB(opts...)
	sender := &captureSender{}
	db.Handle().Connect(sender)
	require.NoError(t, db.Handle().ApplyRemote(nil))
	sender.take()
	return db, sender
}

// deliver applies every captured frame from one replica to another.
func deliver(t *testing.T, frames [][]byte, to *ModelDB) {
	t.Helper()
	for _, frame := range frames {
		require.NoError(t, to.Handle().ApplyRemote(frame))
	}
}

// testActors returns a deterministic actor pair; the first sorts lower.
// Pinning the actors lets a test choose which replica loses stamp ties.
func testActors(t *testing.T) (common.ActorID, common.ActorID) {
	t.Helper()
	lower, err := common.ParseActorID("00000000-0000-0000-0000-00000000000a")
	require.NoError(t, err)
	higher, err := common.ParseActorID("ffffffff-ffff-ffff-ffff-ffffffffffff")
	require.NoError(t, err)
	return lower, higher
}

// syncPair builds two databases sharing one document. The first replica
// bootstraps from the empty frame; the second replays the first's history,
// the way a late joiner replays the relay journal, so both bind to the same
// root containers. The returned pump ships pending frames both ways until
// neither side has any.
func syncPair(t *testing.T) (*ModelDB, *ModelDB, func()) {
	t.Helper()
	return syncPairWith(t, nil, nil)
}

// syncPairWith is syncPair with per-replica construction options.
func syncPairWith(t *testing.T, optsA, optsB []Option) (*ModelDB, *ModelDB, func()) {
	t.Helper()
	dbA := NewModelDB(optsA...)
	senderA := &captureSender{}
	dbA.Handle().Connect(senderA)
	require.NoError(t, dbA.Handle().ApplyRemote(nil))

	dbB := NewModelDB(optsB...)
	senderB := &captureSender{}
	dbB.Handle().Connect(senderB)
	deliver(t, senderA.take(), dbB)
	require.True(t, dbB.Handle().Ready())

	pump := func() {
		for {
			framesA := senderA.take()
			framesB := senderB.take()
			if len(framesA) == 0 && len(framesB) == 0 {
				return
			}
			deliver(t, framesA, dbB)
			deliver(t, framesB, dbA)
		}
	}
	pump()
	return dbA, dbB, pump
}
