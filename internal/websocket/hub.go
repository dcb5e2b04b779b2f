package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"tenderdash/internal/infrastructure"
	"tenderdash/pkg/contracts/events"
)

type outbound struct {
	eventType string
	payload   []byte
}

// Hub maintains the set of active clients and broadcasts messages to them.
// All client bookkeeping happens on the Run goroutine.
type Hub struct {
	clients map[*Client]struct{}

	broadcast  chan outbound
	register   chan *Client
	unregister chan *Client

	mu      sync.RWMutex
	count   int
	running bool

	logger  *slog.Logger
	metrics *HubMetrics
	now     func() time.Time

	quit chan struct{}
	done chan struct{}
}

// NewHub creates a Hub. A nil metrics records nothing.
func NewHub(logger *slog.Logger, metrics *HubMetrics) *Hub {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	if metrics == nil {
		metrics = NoopHubMetrics()
	}

	return &Hub{
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan outbound, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger.With(slog.String("component", "websocket.hub")),
		metrics:    metrics,
		now:        time.Now,
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start runs the hub loop in a goroutine. Calling it again is a no-op.
func (h *Hub) Start() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		return
	}
	h.running = true
	go h.Run()
}

// Stop ends the hub loop and closes every client. Calling it again is a no-op.
func (h *Hub) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.running = false
	h.mu.Unlock()

	close(h.quit)
	<-h.done
}

// Run is the hub loop. Use Start instead of calling it directly.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.quit:
			for client := range h.clients {
				h.remove(client, "shutdown")
			}
			h.logger.Info("Hub shutting down")
			return

		case client := <-h.register:
			h.clients[client] = struct{}{}
			h.setCount()

			ctx := client.context()
			h.metrics.recordConnect(ctx)
			h.logger.InfoContext(ctx, "Client registered",
				slog.Int("total_clients", len(h.clients)),
				slog.String("client_id", client.id),
				slog.String("remote_addr", client.remoteAddr))

			hello, err := h.encode(events.TypeConnection, events.ConnectionData{
				Status:   "connected",
				Message:  "Connected to tender dashboard updates",
				ClientID: client.id,
			}, client.traceID)
			if err == nil {
				select {
				case client.send <- hello:
				default:
					h.logger.WarnContext(ctx, "Failed to send connection message - client buffer full")
				}
			}

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.remove(client, "normal")
			}

		case msg := <-h.broadcast:
			delivered, dropped := 0, 0
			for client := range h.clients {
				select {
				case client.send <- msg.payload:
					delivered++
				default:
					dropped++
					h.logger.WarnContext(client.context(), "Client send buffer full, disconnecting",
						slog.String("client_id", client.id))
					h.remove(client, "slow_consumer")
				}
			}

			h.metrics.recordBroadcast(context.Background(), msg.eventType, delivered, dropped)
			h.logger.Debug("Broadcast sent",
				slog.String("type", msg.eventType),
				slog.Int("delivered", delivered),
				slog.Int("dropped", dropped),
				slog.Int("payload_size", len(msg.payload)))
		}
	}
}

func (h *Hub) remove(client *Client, reason string) {
	delete(h.clients, client)
	close(client.send)
	h.setCount()

	ctx := client.context()
	duration := time.Since(client.connectedAt)
	h.metrics.recordDisconnect(ctx, duration, reason)
	h.logger.InfoContext(ctx, "Client unregistered",
		slog.String("client_id", client.id),
		slog.String("reason", reason),
		slog.Int("total_clients", len(h.clients)),
		slog.Duration("connection_duration", duration))
}

func (h *Hub) setCount() {
	h.mu.Lock()
	h.count = len(h.clients)
	h.mu.Unlock()
}

func (h *Hub) encode(messageType string, data interface{}, traceID string) ([]byte, error) {
	payload, err := json.Marshal(events.NewMessage(messageType, data, h.now(), traceID))
	if err != nil {
		h.logger.Error("Error marshaling message",
			slog.String("message_type", messageType),
			slog.String("error", err.Error()))
	}
	return payload, err
}

// Broadcast sends an event to every connected client. It returns without
// sending once the hub is stopped.
func (h *Hub) Broadcast(messageType string, data interface{}) {
	payload, err := h.encode(messageType, data, "")
	if err != nil {
		return
	}
	select {
	case h.broadcast <- outbound{eventType: messageType, payload: payload}:
	case <-h.quit:
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.quit:
		close(client.send)
	}
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.quit:
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}
