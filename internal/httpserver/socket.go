package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/blackmichael/onchain-posts/internal/controller"
)

const (
	outboxSize   = 32
	writeTimeout = 5 * time.Second
)

// handleSocket binds one controller session to a WebSocket connection:
// a reader loop dispatching actions and a writer goroutine draining events.
func (s *Server) handleSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := make(controller.ChanSink, outboxSize)
	session := controller.NewSession(uuid.NewString(), s.deps, out, s.logger)
	logger := s.logger.With("session", session.ID())
	logger.Info("session opened", "remote", r.RemoteAddr)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-out:
				_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := conn.WriteJSON(ev); err != nil {
					if !errors.Is(err, websocket.ErrCloseSent) {
						logger.Warn("websocket write failed", "error", err)
					}
					cancel()
					return
				}
			}
		}
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("websocket read failed", "error", err)
			}
			break
		}
		var action controller.Action
		if err := json.Unmarshal(msg, &action); err != nil {
			logger.Warn("ignoring malformed action", "error", err)
			continue
		}
		session.Dispatch(ctx, action)
	}

	cancel()
	session.Wait()
	<-writerDone
	logger.Info("session closed", "account", session.Account())
}
