package relay

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Server exposes the relay over HTTP: one websocket endpoint per document
// plus a health check. On connect a client receives the document's full
// journaled history followed by an empty bootstrap frame; everything after
// that is live fan-out.
type Server struct {
	hub      *Hub
	router   *mux.Router
	upgrader websocket.Upgrader
	logger   *zap.Logger

	httpServer *http.Server
}

// NewServer creates a relay server on the given hub.
func NewServer(hub *Hub, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		hub:    hub,
		router: mux.NewRouter(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: logger,
	}
	s.router.HandleFunc("/docs/{doc}/ws", s.handleDocSocket)
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	return s
}

// Handler returns the HTTP handler, for mounting or test servers.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until the context is canceled, then drains.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("relay listening", zap.String("addr", addr))
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "relay server failed")
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "relay shutdown failed")
		}
		return nil
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleDocSocket upgrades the connection, bootstraps the client from the
// journal, and relays its frames until it disconnects.
func (s *Server) handleDocSocket(w http.ResponseWriter, r *http.Request) {
	doc := mux.Vars(r)["doc"]
	actor := r.URL.Query().Get("actor")
	logger := s.logger.With(zap.String("doc", doc), zap.String("actor", actor))

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	sess := &session{
		actor: actor,
		conn:  conn,
		send:  make(chan []byte, sessionSendBuffer),
	}

	// Joining before the bootstrap writes closes the window where a frame
	// relayed mid-replay reaches nobody: anything not in the returned
	// history is already queued on the session, and the queue drains only
	// once the write pump starts after the bootstrap.
	history, err := s.hub.Join(r.Context(), doc, sess)
	if err != nil {
		logger.Error("journal replay failed", zap.Error(err))
		_ = conn.Close()
		return
	}
	defer s.hub.Leave(doc, sess)

	for _, entry := range history {
		if err := conn.WriteMessage(websocket.BinaryMessage, entry.Frame); err != nil {
			logger.Warn("bootstrap write failed", zap.Error(err))
			_ = conn.Close()
			return
		}
	}
	// The empty frame marks the end of bootstrap; it is what flips a fresh
	// replica to ready even when the history is empty.
	if err := conn.WriteMessage(websocket.BinaryMessage, []byte{}); err != nil {
		logger.Warn("bootstrap write failed", zap.Error(err))
		_ = conn.Close()
		return
	}

	go sess.writePump(s.logger)

	for {
		msgType, frame, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn("session read failed", zap.Error(err))
			}
			return
		}
		if msgType != websocket.BinaryMessage && msgType != websocket.TextMessage {
			continue
		}
		if err := s.hub.Relay(r.Context(), doc, sess, frame); err != nil {
			logger.Error("relay failed", zap.Error(err))
			return
		}
	}
}
