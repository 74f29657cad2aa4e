// internal/websocket/hub.go
package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
)

// Message types sent to dashboard clients.
const (
	TypeState = "state"
	TypeAlert = "alert"
)

// ClientCounter is notified as dashboard clients come and go.
type ClientCounter interface {
	ClientConnected()
	ClientDisconnected()
}

// outbound is one encoded message. version orders state messages; alerts
// carry zero and always go out.
type outbound struct {
	version uint64
	data    []byte
}

// Hub maintains the set of active clients and broadcasts messages.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan outbound // Channel for messages to broadcast
	register   chan *Client // Channel for registering clients
	unregister chan *Client // Channel for unregistering clients
	counter    ClientCounter
	log        *slog.Logger
}

func NewHub(counter ClientCounter, log *slog.Logger) *Hub {
	return &Hub{
		broadcast:  make(chan outbound, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		counter:    counter,
		log:        log.With(slog.String("component", "ws-hub")),
	}
}

// Run owns the client set until ctx is cancelled, then closes every
// client's send channel.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				h.drop(client)
			}
			return

		case client := <-h.register:
			h.clients[client] = true
			if h.counter != nil {
				h.counter.ClientConnected()
			}
			h.log.Info("client registered", slog.String("remote", client.remote()))
			if client.initial != nil {
				client.Send <- client.initial
				client.initial = nil
			}

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.drop(client)
				h.log.Info("client unregistered", slog.String("remote", client.remote()))
			}

		case message := <-h.broadcast:
			for client := range h.clients {
				if message.version != 0 {
					if message.version <= client.version {
						// queued before the client's initial state was taken
						continue
					}
					client.version = message.version
				}
				select {
				case client.Send <- message.data:
				default:
					// Assume client is blocked or gone, unregister
					h.log.Warn("client send buffer full, removing", slog.String("remote", client.remote()))
					h.drop(client)
				}
			}
		}
	}
}

func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	close(client.Send)
	if h.counter != nil {
		h.counter.ClientDisconnected()
	}
}

// RegisterClient hands a new client to the hub. initial, when non-nil, is
// queued as the client's first message so it never misses the state that
// existed before it joined; version is the state version it encodes. State
// broadcasts at or below that version are not sent to the client.
func (h *Hub) RegisterClient(client *Client, version uint64, initial []byte) {
	client.initial = initial
	client.version = version
	h.register <- client
}

// BroadcastState sends a state view of the given version to every client.
// Clients only ever see state versions increase.
func (h *Hub) BroadcastState(version uint64, state interface{}) {
	h.send(TypeState, version, state)
}

// BroadcastAlert sends an alert message to all clients
func (h *Hub) BroadcastAlert(alert interface{}) {
	h.send(TypeAlert, 0, alert)
}

// Encode wraps a payload in the envelope used on the dashboard socket.
func Encode(kind string, payload interface{}) ([]byte, error) {
	return json.Marshal(map[string]interface{}{"type": kind, "payload": payload})
}

func (h *Hub) send(kind string, version uint64, payload interface{}) {
	messageBytes, err := Encode(kind, payload)
	if err != nil {
		h.log.Error("marshal broadcast", slog.String("type", kind), slog.Any("error", err))
		return
	}
	select {
	case h.broadcast <- outbound{version: version, data: messageBytes}:
	default:
		h.log.Warn("broadcast queue full, dropping message", slog.String("type", kind))
	}
}
