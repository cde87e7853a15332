package broadcast

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// NewUpgrader returns a websocket upgrader that accepts any origin when
// allowAll is set; otherwise gorilla's same-origin check applies.
func NewUpgrader(allowAll bool) *websocket.Upgrader {
	u := &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
	if allowAll {
		u.CheckOrigin = func(r *http.Request) bool { return true }
	}
	return u
}

// Serve pumps sub's queue to conn and hands every inbound message to
// onMessage until either side closes. It blocks and always removes sub and
// closes conn before returning.
func (h *Hub) Serve(conn *websocket.Conn, sub *Subscriber, onMessage func(Message)) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.writePump(conn, sub)
	}()

	h.readPump(conn, sub, onMessage)
	h.Remove(sub)
	<-done
	conn.Close()
}

func (h *Hub) readPump(conn *websocket.Conn, sub *Subscriber, onMessage func(Message)) {
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("Observer connection closed unexpectedly",
					zap.String("subscriber_id", sub.ID.String()),
					zap.Error(err),
				)
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			h.logger.Warn("Ignoring malformed observer message",
				zap.String("subscriber_id", sub.ID.String()),
				zap.Error(err),
			)
			continue
		}
		onMessage(msg)
	}
}

func (h *Hub) writePump(conn *websocket.Conn, sub *Subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-sub.Messages():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				// Unblock the read pump so the subscriber is removed.
				conn.Close()
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				conn.Close()
				return
			}
		}
	}
}
