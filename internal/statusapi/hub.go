package statusapi

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	broadcastBuffer = 64
	clientWriteWait = 5 * time.Second
)

// Hub fans monitor events out to websocket clients. Broadcast never
// blocks the caller: a full queue drops the message, a slow or dead
// client is closed and forgotten on its first failed write.
type Hub struct {
	logger  *slog.Logger
	metrics *Metrics

	mu      sync.RWMutex
	clients map[*websocket.Conn]bool

	broadcast chan any
	done      chan struct{}
	runOnce   sync.Once
	closeOnce sync.Once
}

func NewHub(logger *slog.Logger, metrics *Metrics) *Hub {
	if logger == nil {
		logger = slog.Default().With("component", "statusapi")
	}

	return &Hub{
		logger:    logger,
		metrics:   metrics,
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan any, broadcastBuffer),
		done:      make(chan struct{}),
	}
}

// Broadcast queues a message for every connected client.
func (h *Hub) Broadcast(message any) {
	select {
	case h.broadcast <- message:
	case <-h.done:
	default:
		h.logger.Debug("websocket broadcast queue full, dropping message")
	}
}

// Run delivers queued messages until Close. Intended as a goroutine.
// Exactly one delivery loop ever runs: a second Run call returns
// immediately, so delivery order toward each client stays the broadcast
// order and no two loops write the same connection concurrently.
func (h *Hub) Run() {
	h.runOnce.Do(h.run)
}

func (h *Hub) run() {
	for {
		select {
		case <-h.done:
			return
		case message := <-h.broadcast:
			h.deliver(message)
		}
	}
}

func (h *Hub) deliver(message any) {
	h.mu.RLock()
	clients := make([]*websocket.Conn, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		_ = client.SetWriteDeadline(time.Now().Add(clientWriteWait))
		if err := client.WriteJSON(message); err != nil {
			h.logger.Debug("websocket write failed, dropping client", "error", err)
			h.remove(client)
		}
	}
}

// Close stops delivery and disconnects every client.
func (h *Hub) Close() {
	h.closeOnce.Do(func() {
		close(h.done)

		h.mu.Lock()
		for client := range h.clients {
			_ = client.Close()
		}
		h.clients = make(map[*websocket.Conn]bool)
		h.mu.Unlock()
	})
}

func (h *Hub) add(client *websocket.Conn) {
	h.mu.Lock()
	h.clients[client] = true
	total := len(h.clients)
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.WSClientConnected()
	}
	h.logger.Debug("websocket client connected", "total", total)
}

func (h *Hub) remove(client *websocket.Conn) {
	h.mu.Lock()
	_, present := h.clients[client]
	if present {
		delete(h.clients, client)
	}
	total := len(h.clients)
	h.mu.Unlock()

	if !present {
		return
	}
	_ = client.Close()
	if h.metrics != nil {
		h.metrics.WSClientDisconnected()
	}
	h.logger.Debug("websocket client disconnected", "total", total)
}

func (h *Hub) clientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients)
}
