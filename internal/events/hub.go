// Package events fans recorder events out to WebSocket clients. Components
// publish JSON events through the Hub and every connected client receives
// them in real time. The hub also handles ping/pong keepalives so stale
// connections get cleaned up automatically.
package events

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	pingInterval = 20 * time.Second
	readTimeout  = 60 * time.Second
	writeTimeout = 3 * time.Second
)

// Hub manages WebSocket client connections and fans out published messages
// to all of them. It is safe for concurrent use; register, unregister, and
// publish all go through channels.
type Hub struct {
	clients    map[*websocket.Conn]struct{}
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	publish    chan []byte
	done       chan struct{} // closed when Run returns
	upgrader   websocket.Upgrader

	count   atomic.Int64
	dropped atomic.Int64
}

// NewHub allocates a hub with buffered channels.
// Call Run in a goroutine to start the event loop.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]struct{}),
		register:   make(chan *websocket.Conn, 16),
		unregister: make(chan *websocket.Conn, 16),
		publish:    make(chan []byte, 256),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Run processes registrations, unregistrations, publishes, and keepalive
// pings in a single select loop. It closes all clients when ctx is cancelled.
func (h *Hub) Run(ctx context.Context) error {
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			close(h.done)
			for c := range h.clients {
				h.drop(c)
			}
			// Registrations that were queued but never picked up.
			for {
				select {
				case c := <-h.register:
					_ = c.Close()
				default:
					return nil
				}
			}

		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.count.Store(int64(len(h.clients)))

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				h.drop(c)
			}

		case msg := <-h.publish:
			for c := range h.clients {
				_ = c.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
					h.drop(c)
				}
			}

		case <-ping.C:
			for c := range h.clients {
				_ = c.SetWriteDeadline(time.Now().Add(2 * time.Second))
				if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
					h.drop(c)
				}
			}
		}
	}
}

func (h *Hub) drop(c *websocket.Conn) {
	delete(h.clients, c)
	h.count.Store(int64(len(h.clients)))
	_ = c.Close()
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int { return int(h.count.Load()) }

// Dropped returns how many events were discarded because the queue was full.
func (h *Hub) Dropped() int64 { return h.dropped.Load() }

// Handler returns an http.Handler that upgrades incoming requests to
// WebSocket connections and registers them with the hub.
func (h *Hub) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade has already written an error response.
			return
		}
		if !h.hand(h.register, conn) {
			return
		}

		go func() {
			defer h.hand(h.unregister, conn)
			_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
			conn.SetPongHandler(func(string) error {
				_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
				return nil
			})

			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	})
}

// hand passes c to the event loop on ch. Once the hub has stopped it
// closes c instead and reports false.
func (h *Hub) hand(ch chan<- *websocket.Conn, c *websocket.Conn) bool {
	select {
	case <-h.done:
		_ = c.Close()
		return false
	default:
	}
	select {
	case ch <- c:
		return true
	case <-h.done:
		_ = c.Close()
		return false
	}
}

// Publish marshals v to JSON and queues it for delivery to all connected
// clients. If the queue is full the message is dropped rather than
// blocking the caller.
func (h *Hub) Publish(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	select {
	case h.publish <- b:
	default:
		h.dropped.Add(1)
	}
}
