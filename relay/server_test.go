package relay

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRelay(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	hub, err := NewHub(NewMemoryJournal(), 1, nil)
	require.NoError(t, err)
	srv := httptest.NewServer(NewServer(hub, nil).Handler())
	t.Cleanup(srv.Close)
	return hub, srv
}

func dialDoc(t *testing.T, srv *httptest.Server, doc, actor string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/docs/" + doc + "/ws?actor=" + actor
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) []byte {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, frame, err := conn.ReadMessage()
	require.NoError(t, err)
	return frame
}

func TestConnectReceivesEmptyBootstrap(t *testing.T) {
	_, srv := newTestRelay(t)
	conn := dialDoc(t, srv, "notes", "actor-a")

	// A fresh document bootstraps with just the empty frame.
	assert.Empty(t, readFrame(t, conn))
}

func TestFanOutExcludesAuthor(t *testing.T) {
	_, srv := newTestRelay(t)
	author := dialDoc(t, srv, "notes", "actor-a")
	peer := dialDoc(t, srv, "notes", "actor-b")
	readFrame(t, author)
	readFrame(t, peer)

	payload := []byte(`{"id":{"seq":1},"ops":[]}`)
	require.NoError(t, author.WriteMessage(websocket.BinaryMessage, payload))

	// The peer receives the frame.
	assert.Equal(t, payload, readFrame(t, peer))

	// The author receives nothing back.
	require.NoError(t, author.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err := author.ReadMessage()
	assert.Error(t, err)
}

func TestLateJoinerReplaysJournal(t *testing.T) {
	hub, srv := newTestRelay(t)
	author := dialDoc(t, srv, "notes", "actor-a")
	readFrame(t, author)

	first := []byte(`{"id":{"seq":1},"ops":[]}`)
	second := []byte(`{"id":{"seq":2},"ops":[]}`)
	require.NoError(t, author.WriteMessage(websocket.BinaryMessage, first))
	require.NoError(t, author.WriteMessage(websocket.BinaryMessage, second))

	// Wait for the relay to journal both frames.
	require.Eventually(t, func() bool {
		entries, err := hub.journal.Replay(context.Background(), "notes")
		return err == nil && len(entries) == 2
	}, time.Second, 10*time.Millisecond)

	late := dialDoc(t, srv, "notes", "actor-c")
	assert.Equal(t, first, readFrame(t, late))
	assert.Equal(t, second, readFrame(t, late))
	assert.Empty(t, readFrame(t, late))
}

func TestDocumentsAreIsolated(t *testing.T) {
	_, srv := newTestRelay(t)
	notes := dialDoc(t, srv, "notes", "actor-a")
	board := dialDoc(t, srv, "board", "actor-b")
	readFrame(t, notes)
	readFrame(t, board)

	require.NoError(t, notes.WriteMessage(websocket.BinaryMessage, []byte(`{"ops":[]}`)))

	require.NoError(t, board.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err := board.ReadMessage()
	assert.Error(t, err, "frames must not cross documents")
}

func TestSessionCountTracksJoins(t *testing.T) {
	hub, srv := newTestRelay(t)

	conn := dialDoc(t, srv, "notes", "actor-a")
	readFrame(t, conn)
	require.Eventually(t, func() bool { return hub.Sessions("notes") == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.Sessions("notes") == 0 }, time.Second, 10*time.Millisecond)
}

func TestHealthEndpoint(t *testing.T) {
	_, srv := newTestRelay(t)
	resp, err := srv.Client().Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, 200, resp.StatusCode)
}
