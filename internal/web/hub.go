package web

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/atomic"

	"github.com/justinsane/ClassicRides/internal/pipeline"
)

const (
	clientSendBuffer = 64
	writeWait        = 10 * time.Second
	pongWait         = 60 * time.Second
	pingPeriod       = (pongWait * 9) / 10
)

// Client is one WebSocket subscriber to pipeline events.
type Client struct {
	ID     string
	Conn   *websocket.Conn
	Send   chan []byte
	hub    *EventHub
	closed atomic.Bool
}

// EventHub fans pipeline events out to connected WebSocket clients. It
// implements pipeline.EventSink; publishing never blocks a generation
// run — events to slow clients are dropped.
type EventHub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	events     chan pipeline.Event
	mu         sync.RWMutex
}

func NewEventHub() *EventHub {
	return &EventHub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client, 16),
		unregister: make(chan *Client, 16),
		events:     make(chan pipeline.Event, 256),
	}
}

// Publish queues an event for broadcast. Implements pipeline.EventSink.
func (h *EventHub) Publish(evt pipeline.Event) {
	select {
	case h.events <- evt:
	default:
		slog.Warn("event hub buffer full, dropping event", "type", evt.Type)
	}
}

// Run drives the hub's event loop until ctx is cancelled.
func (h *EventHub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case evt := <-h.events:
			h.broadcast(evt)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *EventHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *EventHub) addClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client.ID] = client
	slog.Info("event client connected", "id", client.ID, "total", len(h.clients))

	go client.writePump()
	go client.readPump()
}

func (h *EventHub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ID]; ok {
		delete(h.clients, client.ID)
		if client.closed.CompareAndSwap(false, true) {
			close(client.Send)
		}
		slog.Info("event client disconnected", "id", client.ID, "total", len(h.clients))
	}
}

func (h *EventHub) broadcast(evt pipeline.Event) {
	data, err := json.Marshal(evt)
	if err != nil {
		slog.Error("failed to marshal event", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		select {
		case client.Send <- data:
		default:
			// Client send buffer full, skip.
			slog.Warn("event client send buffer full", "id", client.ID)
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards inbound frames; the stream is one-directional. It
// exists to notice disconnects and keep the pong deadline fresh.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(512)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			return
		}
	}
}

func newClientID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return hex.EncodeToString([]byte(time.Now().String()))[:16]
	}
	return hex.EncodeToString(b)
}
