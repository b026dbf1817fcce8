package websocket

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 50 * time.Second
	maxMessageSize = 512
	sendBuffer     = 32
)

type Client struct {
	conn *websocket.Conn
	send chan []byte
}

// OriginChecker decides whether a browser origin may open a progress stream.
type OriginChecker func(origin string) bool

// AllowOrigins accepts the listed origins; "*" accepts any.
func AllowOrigins(origins []string) OriginChecker {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return func(origin string) bool {
		return origin == "" || allowed["*"] || allowed[origin]
	}
}

// ServeWS upgrades the request and streams progress events to the operator
// until the connection drops. Clients only listen; inbound frames are
// discarded.
func ServeWS(w http.ResponseWriter, r *http.Request, hub *Hub, operatorID string, checkOrigin OriginChecker) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			if checkOrigin == nil {
				return true
			}
			return checkOrigin(r.Header.Get("Origin"))
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	client := &Client{
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}
	hub.Register(operatorID, client)
	go client.writePump(hub, operatorID)
	client.readPump(hub, operatorID)
}

func (c *Client) readPump(hub *Hub, operatorID string) {
	defer func() {
		hub.Unregister(operatorID, c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Client) writePump(hub *Hub, operatorID string) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		hub.Unregister(operatorID, c)
		_ = c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
