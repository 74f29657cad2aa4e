// internal/websocket/client.go
package websocket

import (
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second    // Time allowed to write a message to the peer.
	pongWait       = 60 * time.Second    // Time allowed to read the next pong message from the peer.
	pingPeriod     = (pongWait * 9) / 10 // Send pings to peer with this period. Must be less than pongWait.
	maxMessageSize = 512                 // Maximum message size allowed from peer.
)

// Client is a middleman between one dashboard websocket and the hub.
type Client struct {
	Hub     *Hub
	Conn    *websocket.Conn
	Send    chan []byte // Buffered channel of outbound messages.
	Log     *slog.Logger
	initial []byte
	version uint64 // newest state version queued to Send; owned by the hub
}

func NewClient(hub *Hub, conn *websocket.Conn, log *slog.Logger) *Client {
	return &Client{
		Hub:  hub,
		Conn: conn,
		Send: make(chan []byte, 256),
		Log:  log.With(slog.String("component", "ws-client"), slog.String("remote", conn.RemoteAddr().String())),
	}
}

func (c *Client) remote() string {
	if c.Conn == nil {
		return "test"
	}
	return c.Conn.RemoteAddr().String()
}

// ReadPump drains the connection so control frames (close, pong) are
// processed. Dashboards are read-only; any data frame is ignored.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.unregister <- c
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error { c.Conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Log.Warn("read error", slog.Any("error", err))
			}
			return
		}
	}
}

// WritePump pumps messages from the hub to the websocket connection. Each
// message goes out as its own frame so clients can parse frames as JSON.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.Log.Warn("write error", slog.Any("error", err))
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Log.Warn("ping error", slog.Any("error", err))
				return
			}
		}
	}
}
