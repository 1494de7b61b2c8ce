package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/JonMunkholm/editgrid/internal/table"
)

// Event types sent on the change feed.
const (
	// EventState carries a fresh controller snapshot.
	EventState = "state"
	// EventData signals that committed rows changed.
	EventData = "data"
	// EventReload signals that the rows were replaced from the data source.
	EventReload = "reload"
)

// Event is one change feed message.
type Event struct {
	Type  string       `json:"type"`
	Table string       `json:"table"`
	State *table.State `json:"state,omitempty"`
}

// HubConfig tunes the websocket change feed.
type HubConfig struct {
	SendBuffer   int
	PongWait     time.Duration
	PingInterval time.Duration
	WriteWait    time.Duration
	Logger       *slog.Logger
}

func (c HubConfig) withDefaults() HubConfig {
	if c.SendBuffer <= 0 {
		c.SendBuffer = 16
	}
	if c.PongWait <= 0 {
		c.PongWait = 60 * time.Second
	}
	if c.PingInterval <= 0 || c.PingInterval >= c.PongWait {
		c.PingInterval = (c.PongWait * 9) / 10
	}
	if c.WriteWait <= 0 {
		c.WriteWait = 10 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// Hub maintains the set of active clients and fans table events out to the
// clients subscribed to that table.
type Hub struct {
	cfg HubConfig
	log *slog.Logger

	// Registered clients.
	clients map[*Client]bool
	mu      sync.RWMutex

	broadcast  chan Event
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
}

// NewHub creates a hub. Call Run to start delivering events.
func NewHub(cfg HubConfig) *Hub {
	cfg = cfg.withDefaults()
	return &Hub{
		cfg:        cfg,
		log:        cfg.Logger.With("component", "hub"),
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Event, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run delivers events until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.log.Debug("client connected", "table", client.table)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()

		case event := <-h.broadcast:
			msg, err := json.Marshal(event)
			if err != nil {
				h.log.Error("encode event", "type", event.Type, "error", err)
				continue
			}
			h.mu.Lock()
			for client := range h.clients {
				if client.table != event.Table {
					continue
				}
				select {
				case client.send <- msg:
				default:
					// too slow to keep up
					delete(h.clients, client)
					close(client.send)
					h.log.Warn("dropped slow client", "table", client.table)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Publish queues e for delivery. Events are dropped when the queue is full
// or the hub has stopped.
func (h *Hub) Publish(e Event) {
	select {
	case h.broadcast <- e:
	case <-h.done:
	default:
		h.log.Warn("event queue full, dropping event", "table", e.Table, "type", e.Type)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) add(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) remove(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}
