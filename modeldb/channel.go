package modeldb

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"collabdoc/common"
)

// Channel is the duplex replication link between one DocHandle and the
// relay. Frames written before the socket opens are buffered and sent as a
// single combined frame once the dial completes, preserving order.
type Channel struct {
	serverURL string
	docPath   string
	handle    *DocHandle
	logger    *zap.Logger

	mu      sync.Mutex
	conn    *websocket.Conn
	open    bool
	closed  bool
	pending [][]byte

	done chan struct{}
}

// NewChannel builds a channel for the document at docPath on the relay at
// serverURL (a ws:// or wss:// base URL). The channel attaches itself as
// the handle's sender; call Connect to dial.
func NewChannel(serverURL, docPath string, handle *DocHandle, logger *zap.Logger) *Channel {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Channel{
		serverURL: serverURL,
		docPath:   docPath,
		handle:    handle,
		logger:    logger.With(zap.String("doc", docPath)),
		done:      make(chan struct{}),
	}
	handle.Connect(c)
	return c
}

// Connect dials the relay and starts the read loop. Buffered frames are
// combined into one frame and flushed first.
func (c *Channel) Connect(ctx context.Context) error {
	endpoint := fmt.Sprintf("%s/docs/%s/ws?actor=%s",
		c.serverURL, url.PathEscape(c.docPath), c.handle.Actor())

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return errors.Wrapf(err, "failed to dial relay at %s", endpoint)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = conn.Close()
		return common.ErrNotConnected
	}
	c.conn = conn
	c.open = true
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()

	c.logger.Info("replication channel open", zap.String("endpoint", endpoint))

	if len(pending) > 0 {
		combined := bytes.Join(pending, []byte{'\n'})
		if err := c.writeFrame(combined); err != nil {
			return errors.Wrap(err, "failed to flush buffered batches")
		}
		c.logger.Debug("flushed buffered batches", zap.Int("count", len(pending)))
	}

	go c.readLoop()
	return nil
}

// Send queues or transmits one outgoing frame.
func (c *Channel) Send(frame []byte) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return common.ErrNotConnected
	}
	if !c.open {
		c.pending = append(c.pending, frame)
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()
	return c.writeFrame(frame)
}

func (c *Channel) writeFrame(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return common.ErrNotConnected
	}
	return c.conn.WriteMessage(websocket.BinaryMessage, frame)
}

// readLoop feeds inbound frames, including the relay's empty bootstrap
// frame, into the handle. A frame the handle rejects is fatal to the
// channel; no later frame from it may be applied.
func (c *Channel) readLoop() {
	defer close(c.done)
	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Warn("replication channel read failed", zap.Error(err))
			}
			return
		}
		if err := c.handle.ApplyRemote(frame); err != nil {
			c.logger.Error("stopping channel after rejected inbound batch", zap.Error(err))
			_ = c.Close()
			return
		}
	}
}

// Done returns a channel closed when the read loop exits.
func (c *Channel) Done() <-chan struct{} {
	return c.done
}

// Close shuts the channel down. Further sends fail with ErrNotConnected.
func (c *Channel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return conn.Close()
}
