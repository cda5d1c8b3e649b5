// README: Session WebSocket: pushes current-trip and history changes to connected clients.
package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"routetrip/internal/session"
)

const (
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 20 * time.Second
	wsWriteWait  = 10 * time.Second
)

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

type sessionMessage struct {
	Type  string          `json:"type"`
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value,omitempty"`
	At    time.Time       `json:"at"`
}

type SessionHandler struct {
	store session.Store
	keys  []string
}

func NewSessionHandler(store session.Store) *SessionHandler {
	return &SessionHandler{store: store, keys: []string{session.KeyCurrentTrip, session.KeyTripHistory}}
}

// Stream sends one snapshot per watched key, then every change until the client goes away.
func (h *SessionHandler) Stream(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	merged := make(chan session.Change, 32)
	for _, key := range h.keys {
		ch, cancel := h.store.Subscribe(key)
		defer cancel()
		go func() {
			for change := range ch {
				select {
				case merged <- change:
				default:
					log.Printf("[session] ws client too slow, dropped %s change", change.Key)
				}
			}
		}()
	}

	ctx := c.Request.Context()
	for _, key := range h.keys {
		value, ok, err := h.store.Get(ctx, key)
		if err != nil {
			log.Printf("[session] snapshot %s: %v", key, err)
			return
		}
		msg := sessionMessage{Type: "snapshot", Key: key, At: time.Now()}
		if ok {
			msg.Value = json.RawMessage(value)
		}
		if err := writeWS(conn, msg); err != nil {
			return
		}
	}

	// Reader only drains control frames and notices the close.
	closed := make(chan struct{})
	conn.SetReadLimit(1 << 10)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error { return conn.SetReadDeadline(time.Now().Add(wsPongWait)) })
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-closed:
			return
		case <-ctx.Done():
			return
		case change := <-merged:
			msg := sessionMessage{Type: "change", Key: change.Key, At: change.At}
			if change.Value != nil {
				msg.Value = json.RawMessage(change.Value)
			}
			if err := writeWS(conn, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func writeWS(conn *websocket.Conn, v any) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteJSON(v)
}
