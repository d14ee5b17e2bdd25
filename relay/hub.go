package relay

import (
	"context"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	sessionSendBuffer = 64
	writeTimeout      = 10 * time.Second
)

// session is one connected client on one document.
type session struct {
	actor string
	conn  *websocket.Conn
	send  chan []byte
	once  sync.Once
}

func (s *session) close() {
	s.once.Do(func() { close(s.send) })
}

// writePump drains the session's send queue onto the socket. One writer
// per connection; gorilla permits a single concurrent writer.
func (s *session) writePump(logger *zap.Logger) {
	for frame := range s.send {
		_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := s.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
			logger.Debug("session write failed", zap.String("actor", s.actor), zap.Error(err))
			_ = s.conn.Close()
			return
		}
	}
	_ = s.conn.Close()
}

// Hub relays operation frames between the replicas of each document. The
// relay assigns every inbound frame a monotonic sequence, journals it, and
// fans it out to every other session on the same document. The author is
// excluded: replicas apply their own operations synchronously and an echo
// would re-announce them.
type Hub struct {
	journal Journal
	seq     *snowflake.Node
	logger  *zap.Logger

	mu   sync.Mutex
	docs map[string]map[*session]struct{}
}

// NewHub creates a hub journaling into journal. nodeID distinguishes relay
// instances sharing a journal.
func NewHub(journal Journal, nodeID int64, logger *zap.Logger) (*Hub, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	seq, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create sequence node")
	}
	return &Hub{
		journal: journal,
		seq:     seq,
		logger:  logger,
		docs:    make(map[string]map[*session]struct{}),
	}, nil
}

// Join registers a session on a document and returns the journaled history
// it must be bootstrapped from. The replay snapshot and the membership
// change happen under one lock, the same lock Relay holds from journal
// append through fan-out: every frame is either in the returned history or
// queued to the session, never lost in between and never both.
func (h *Hub) Join(ctx context.Context, doc string, s *session) ([]Entry, error) {
	h.mu.Lock()
	history, err := h.journal.Replay(ctx, doc)
	if err != nil {
		h.mu.Unlock()
		return nil, errors.Wrap(err, "journal replay failed")
	}
	sessions, ok := h.docs[doc]
	if !ok {
		sessions = make(map[*session]struct{})
		h.docs[doc] = sessions
	}
	sessions[s] = struct{}{}
	count := len(sessions)
	h.mu.Unlock()

	h.logger.Info("session joined",
		zap.String("doc", doc), zap.String("actor", s.actor), zap.Int("sessions", count))
	return history, nil
}

// Leave removes a session from a document.
func (h *Hub) Leave(doc string, s *session) {
	h.mu.Lock()
	if sessions, ok := h.docs[doc]; ok {
		delete(sessions, s)
		if len(sessions) == 0 {
			delete(h.docs, doc)
		}
	}
	h.mu.Unlock()

	s.close()
	h.logger.Info("session left", zap.String("doc", doc), zap.String("actor", s.actor))
}

// Relay journals one inbound frame and fans it out to every other session
// on the document. Append and fan-out stay under the lock so a concurrent
// Join cannot observe the frame in the journal and also miss the fan-out.
// A session too slow to drain its queue is dropped rather than allowed to
// stall the document.
func (h *Hub) Relay(ctx context.Context, doc string, from *session, frame []byte) error {
	entry := Entry{
		Seq:   h.seq.Generate().Int64(),
		Actor: from.actor,
		Frame: frame,
	}

	h.mu.Lock()
	if err := h.journal.Append(ctx, doc, entry); err != nil {
		h.mu.Unlock()
		return err
	}

	var stalled []*session
	for s := range h.docs[doc] {
		if s == from {
			continue
		}
		select {
		case s.send <- frame:
		default:
			stalled = append(stalled, s)
		}
	}
	for _, s := range stalled {
		delete(h.docs[doc], s)
	}
	h.mu.Unlock()

	for _, s := range stalled {
		h.logger.Warn("dropping stalled session",
			zap.String("doc", doc), zap.String("actor", s.actor))
		s.close()
	}
	return nil
}

// Sessions returns the number of sessions on a document.
func (h *Hub) Sessions(doc string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.docs[doc])
}
