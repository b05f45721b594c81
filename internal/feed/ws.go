package feed

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/photofolio/internal/db"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Message types sent to WebSocket clients.
const (
	MessageSnapshot = "snapshot"
	MessageError    = "error"
)

// Message is one frame pushed to a WebSocket client.
type Message struct {
	Type    string     `json:"type"`
	Photos  []db.Photo `json:"photos,omitempty"`
	Message string     `json:"message,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// client holds a single pending frame; a newer frame replaces an unsent one.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

// ServeWS upgrades the request and streams snapshots for query until the peer goes away.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, query Query) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{conn: conn, send: make(chan []byte, 1)}
	sub := h.Subscribe(query, Handler{
		OnSnapshot: func(photos []db.Photo) {
			if photos == nil {
				photos = []db.Photo{}
			}
			c.push(h.encode(Message{Type: MessageSnapshot, Photos: photos}))
		},
		OnError: func(err error) {
			c.push(h.encode(Message{Type: MessageError, Message: "Failed to load photos."}))
		},
	})

	go c.writePump(sub)
	c.readPump(sub)
}

func (h *Hub) encode(msg Message) []byte {
	raw, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("encode feed message", zap.Error(err))
		return []byte(`{"type":"error","message":"encode failed"}`)
	}
	return raw
}

func (c *client) push(frame []byte) {
	for {
		select {
		case c.send <- frame:
			return
		default:
		}
		select {
		case <-c.send:
		default:
		}
	}
}

// readPump only handles control frames; any read error ends the subscription.
func (c *client) readPump(sub *Subscription) {
	defer func() {
		sub.Cancel()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writePump(sub *Subscription) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-sub.Done():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case frame := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				sub.Cancel()
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				sub.Cancel()
				return
			}
		}
	}
}
