package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"integralq/internal/infrastructure"
	"integralq/pkg/contracts/events"
)

const (
	writeWait = 10 * time.Second
	// Client frames are small control messages.
	maxMessageSize = 1024
	maxRunsPerConn = 32
)

// Client is one browser connection. It receives every run until it
// subscribes to specific run IDs.
type Client struct {
	hub  *Hub
	conn Connection
	send chan []byte

	id          string
	traceID     string
	remoteAddr  string
	connectedAt time.Time
	logger      *slog.Logger

	subMu sync.RWMutex
	runs  map[string]struct{}
}

// NewClient wraps conn for hub. traceID ties the client's log lines to the
// upgrade request.
func NewClient(hub *Hub, conn Connection, traceID string) *Client {
	id := uuid.NewString()
	return &Client{
		hub:         hub,
		conn:        conn,
		send:        make(chan []byte, clientBuffer),
		id:          id,
		traceID:     traceID,
		remoteAddr:  conn.RemoteAddr(),
		connectedAt: time.Now(),
		logger: hub.logger.With(
			slog.String("component", "websocket.client"),
			slog.String("client_id", id)),
		runs: make(map[string]struct{}),
	}
}

// ID returns the client identifier.
func (c *Client) ID() string { return c.id }

func (c *Client) ctx() context.Context {
	return infrastructure.WithTraceID(context.Background(), c.traceID)
}

// wants reports whether a message about runID should reach this client.
func (c *Client) wants(runID string) bool {
	if runID == "" {
		return true
	}
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	if len(c.runs) == 0 {
		return true
	}
	_, ok := c.runs[runID]
	return ok
}

// Subscriptions returns the run IDs the client follows.
func (c *Client) Subscriptions() []string {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	out := make([]string, 0, len(c.runs))
	for id := range c.runs {
		out = append(out, id)
	}
	return out
}

// handle applies one client message. A non-nil return is sent back as an
// error message; the connection stays open.
func (c *Client) handle(raw []byte) *events.ErrorMessage {
	var m events.ClientMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return &events.ErrorMessage{Code: "INVALID_MESSAGE", Message: "message must be a JSON object with a type"}
	}

	switch m.Type {
	case events.MessageTypeHeartbeat:
		c.conn.SetReadDeadline(time.Now().Add(c.hub.pongWait))
	case events.MessageTypeSubscribe, events.MessageTypeUnsubscribe:
		if m.RunID == "" {
			return &events.ErrorMessage{Code: "MISSING_RUN_ID", Message: string(m.Type) + " requires run_id"}
		}
		c.subMu.Lock()
		defer c.subMu.Unlock()
		if m.Type == events.MessageTypeUnsubscribe {
			delete(c.runs, m.RunID)
			return nil
		}
		if len(c.runs) >= maxRunsPerConn {
			return &events.ErrorMessage{Code: "TOO_MANY_SUBSCRIPTIONS", Message: "unsubscribe from a run first"}
		}
		c.runs[m.RunID] = struct{}{}
		c.logger.DebugContext(c.ctx(), "client subscribed", slog.String("run_id", m.RunID))
	default:
		return &events.ErrorMessage{Code: "UNKNOWN_TYPE", Message: "unsupported message type " + string(m.Type)}
	}
	return nil
}

// reply queues a message for this client only.
func (c *Client) reply(t events.MessageType, data any) {
	msg, err := encode(c.ctx(), t, data)
	if err != nil {
		return
	}
	c.hub.sendTo(c, msg)
}

// ReadPump processes inbound frames until the connection fails, then
// unregisters the client.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.hub.pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.hub.pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.WarnContext(c.ctx(), "unexpected websocket close",
					slog.String("error", err.Error()))
			}
			return
		}
		if e := c.handle(message); e != nil {
			c.logger.DebugContext(c.ctx(), "rejected client message",
				slog.String("code", e.Code))
			c.reply(events.MessageTypeError, e)
		}
	}
}

// WritePump sends queued messages and keepalive pings until the hub closes
// the send channel or a write fails.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.hub.pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.WarnContext(c.ctx(), "websocket write failed",
					slog.String("error", err.Error()))
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.DebugContext(c.ctx(), "ping failed",
					slog.String("error", err.Error()))
				return
			}
		}
	}
}
