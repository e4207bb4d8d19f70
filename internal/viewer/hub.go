package viewer

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Hub fans encoded frames out to connected viewers. Clients that cannot
// keep up lose frames instead of stalling the tick loop.
type Hub struct {
	mu         sync.RWMutex
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	done       chan struct{}
	log        *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client, 64),
		unregister: make(chan *Client, 64),
		broadcast:  make(chan []byte, 4),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Run processes register, unregister and broadcast until ctx is done, then
// closes every client's send queue.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()
			h.log.Info("viewer connected", zap.String("addr", c.remoteAddr))

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			h.log.Info("viewer disconnected", zap.String("addr", c.remoteAddr), zap.Int("dropped_frames", c.dropped))

		case msg := <-h.broadcast:
			h.mu.RLock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					c.dropped++
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Broadcast encodes f and queues it for every client. It never blocks;
// when the hub is behind, the frame is dropped.
func (h *Hub) Broadcast(f *Frame) error {
	data, err := EncodeFrame(f)
	if err != nil {
		return err
	}
	select {
	case h.broadcast <- data:
	default:
	}
	return nil
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

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
