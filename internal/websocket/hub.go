package websocket

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"integralq/internal/infrastructure"
	"integralq/pkg/contracts/events"
)

const (
	defaultPingPeriod = 54 * time.Second
	defaultPongWait   = 60 * time.Second
	broadcastBuffer   = 256
	clientBuffer      = 256
)

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithKeepalive sets the ping period and pong deadline for new clients. The
// ping period is clamped below the pong wait.
func WithKeepalive(pingPeriod, pongWait time.Duration) HubOption {
	return func(h *Hub) {
		if pongWait > 0 {
			h.pongWait = pongWait
		}
		if pingPeriod > 0 {
			h.pingPeriod = pingPeriod
		}
		if h.pingPeriod >= h.pongWait {
			h.pingPeriod = h.pongWait * 9 / 10
		}
	}
}

// Stats are cumulative hub counters.
type Stats struct {
	ActiveClients    int   `json:"active_clients"`
	TotalConnections int64 `json:"total_connections"`
	MessagesSent     int64 `json:"messages_sent"`
	MessagesDropped  int64 `json:"messages_dropped"`
}

// envelope is a queued message. runID is empty for messages every client
// receives.
type envelope struct {
	runID string
	to    *Client
	msg   []byte
}

// Hub maintains the set of active clients and broadcasts messages to them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan envelope
	direct     chan envelope
	register   chan *Client
	unregister chan *Client

	mu      sync.RWMutex
	logger  *slog.Logger
	stats   Stats
	running bool
	quit    chan struct{}
	done    chan struct{}

	pingPeriod time.Duration
	pongWait   time.Duration
}

// NewHub creates a stopped hub. Call Start before registering clients.
func NewHub(logger *slog.Logger, opts ...HubOption) *Hub {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	h := &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan envelope, broadcastBuffer),
		direct:     make(chan envelope, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger.With(slog.String("component", "websocket.hub")),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
		pingPeriod: defaultPingPeriod,
		pongWait:   defaultPongWait,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Start runs the hub loop in a goroutine. It is idempotent.
func (h *Hub) Start() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		return
	}
	h.running = true
	go h.run()
}

// Stop ends the hub loop and closes every client's send channel.
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

// Running reports whether the hub loop is active.
func (h *Hub) Running() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.running
}

func (h *Hub) run() {
	defer close(h.done)
	for {
		select {
		case <-h.quit:
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.stats.ActiveClients = 0
			h.mu.Unlock()
			h.logger.Info("hub stopped")
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.stats.TotalConnections++
			h.stats.ActiveClients = len(h.clients)
			count := h.stats.ActiveClients
			h.mu.Unlock()

			ctx := infrastructure.WithTraceID(context.Background(), c.traceID)
			h.logger.InfoContext(ctx, "client registered",
				slog.String("client_id", c.id),
				slog.String("remote_addr", c.remoteAddr),
				slog.Int("total_clients", count))

			if msg, err := encode(context.Background(), events.MessageTypeConnect, map[string]string{
				"status":    "connected",
				"client_id": c.id,
			}); err == nil {
				select {
				case c.send <- msg:
				default:
				}
			}

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				h.stats.ActiveClients = len(h.clients)
				h.mu.Unlock()
				h.logger.Info("client unregistered",
					slog.String("client_id", c.id),
					slog.Duration("connection_duration", time.Since(c.connectedAt)))
			} else {
				h.mu.Unlock()
			}

		case env := <-h.direct:
			h.mu.Lock()
			if h.clients[env.to] {
				select {
				case env.to.send <- env.msg:
					h.stats.MessagesSent++
				default:
					h.stats.MessagesDropped++
				}
			}
			h.mu.Unlock()

		case env := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				if !c.wants(env.runID) {
					continue
				}
				select {
				case c.send <- env.msg:
					h.stats.MessagesSent++
				default:
					// Slow consumer; drop it rather than stall the pipeline.
					close(c.send)
					delete(h.clients, c)
					h.stats.MessagesDropped++
					h.logger.Warn("client send buffer full, disconnecting",
						slog.String("client_id", c.id))
				}
			}
			h.stats.ActiveClients = len(h.clients)
			h.mu.Unlock()
		}
	}
}

// Register adds a client. It blocks until the hub loop accepts it.
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.quit:
	}
}

// Unregister removes a client and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.quit:
	}
}

// Publish encodes data as a message of the given type and queues it for all
// clients. Messages are dropped when the hub is stopped or its queue is full.
func (h *Hub) Publish(ctx context.Context, t events.MessageType, data any) {
	h.PublishRun(ctx, "", t, data)
}

// PublishRun queues a message about one run. Clients subscribed to other
// runs do not receive it.
func (h *Hub) PublishRun(ctx context.Context, runID string, t events.MessageType, data any) {
	msg, err := encode(ctx, t, data)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to marshal message",
			slog.String("message_type", string(t)),
			slog.String("error", err.Error()))
		return
	}
	if !h.Running() {
		return
	}
	select {
	case h.broadcast <- envelope{runID: runID, msg: msg}:
	default:
		h.mu.Lock()
		h.stats.MessagesDropped++
		h.mu.Unlock()
		h.logger.WarnContext(ctx, "broadcast queue full, dropping message",
			slog.String("message_type", string(t)),
			slog.String("run_id", runID))
	}
}

// sendTo queues msg for a single registered client.
func (h *Hub) sendTo(c *Client, msg []byte) {
	select {
	case h.direct <- envelope{to: c, msg: msg}:
	case <-h.quit:
	default:
		h.logger.Warn("direct queue full, dropping reply", slog.String("client_id", c.id))
	}
}

// ReportProgress broadcasts a pipeline snapshot to clients following its run.
func (h *Hub) ReportProgress(s events.AnalysisSnapshot) {
	h.PublishRun(context.Background(), s.RunID, events.MessageTypeAnalysisSnapshot, s)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stats returns a copy of the hub counters.
func (h *Hub) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.stats
}

func encode(ctx context.Context, t events.MessageType, data any) ([]byte, error) {
	return json.Marshal(events.WebSocketMessage{
		BaseMessage: events.BaseMessage{
			ID:        uuid.NewString(),
			Type:      t,
			Timestamp: time.Now().UTC(),
			TraceID:   infrastructure.GetTraceID(ctx),
		},
		Data: data,
	})
}
