package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/yuin/goldmark"
)

// BroadcastMessage is the frame sent to overlay clients. HTML carries
// the markdown-rendered body when Text is set, so simple overlays can
// inject it directly.
type BroadcastMessage struct {
	Category string          `json:"category"`
	Text     string          `json:"text,omitempty"`
	HTML     string          `json:"html,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

// Hub fans messages out to websocket clients grouped by topic. Clients
// that cannot keep up are dropped rather than blocking the broadcast.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*hubClient]bool // topic -> clients

	upgrader websocket.Upgrader
	markdown goldmark.Markdown
}

type hubClient struct {
	conn *websocket.Conn
	send chan []byte
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]map[*hubClient]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Overlay pages are served from arbitrary origins (OBS etc.)
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		markdown: goldmark.New(),
	}
}

// ServeWS upgrades the request and subscribes the client to topic until
// it disconnects.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, topic string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := &hubClient{conn: conn, send: make(chan []byte, 64)}

	h.mu.Lock()
	if h.clients[topic] == nil {
		h.clients[topic] = make(map[*hubClient]bool)
	}
	h.clients[topic][client] = true
	h.mu.Unlock()
	wsClientsActive.Add(1)

	slog.Debug("websocket client connected", "topic", topic)

	go h.writeLoop(client)
	h.readLoop(client, topic)
}

// readLoop drains incoming frames until the connection dies. Clients
// are listen-only; anything they send is discarded.
func (h *Hub) readLoop(client *hubClient, topic string) {
	defer func() {
		h.remove(topic, client)
		client.conn.Close()
	}()
	client.conn.SetReadLimit(4096)
	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(client *hubClient) {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		client.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-client.send:
			if !ok {
				client.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			client.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := client.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) remove(topic string, client *hubClient) {
	h.mu.Lock()
	if set, ok := h.clients[topic]; ok {
		if set[client] {
			delete(set, client)
			close(client.send)
			wsClientsActive.Add(-1)
		}
		if len(set) == 0 {
			delete(h.clients, topic)
		}
	}
	h.mu.Unlock()
}

// Broadcast sends msg to every client on topic and reports how many
// received it. When msg.Text is set and HTML is not, the text is
// rendered from markdown.
func (h *Hub) Broadcast(ctx context.Context, topic string, msg BroadcastMessage) int {
	if msg.HTML == "" && msg.Text != "" {
		msg.HTML = h.renderHTML(msg.Text)
	}

	data, err := json.Marshal(msg)
	if err != nil {
		LoggerFromContext(ctx).Error("broadcast marshal failed", "error", err)
		return 0
	}

	h.mu.RLock()
	set := h.clients[topic]
	targets := make([]*hubClient, 0, len(set))
	for client := range set {
		targets = append(targets, client)
	}
	h.mu.RUnlock()

	sent := 0
	for _, client := range targets {
		select {
		case client.send <- data:
			sent++
		default:
			// Slow client, drop it
			broadcastsDropped.Add(1)
			h.remove(topic, client)
			client.conn.Close()
		}
	}

	broadcastsTotal.Add(1)
	LoggerFromContext(ctx).Debug("broadcast sent", "topic", topic, "category", msg.Category, "clients", sent)
	return sent
}

// ClientCount returns the number of clients subscribed to topic.
func (h *Hub) ClientCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[topic])
}

func (h *Hub) renderHTML(text string) string {
	var buf bytes.Buffer
	if err := h.markdown.Convert([]byte(text), &buf); err != nil {
		return ""
	}
	return buf.String()
}
