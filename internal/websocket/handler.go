package websocket

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"integralq/internal/infrastructure"
)

// Handler upgrades HTTP requests and attaches the connection to a hub.
type Handler struct {
	hub      *Hub
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewHandler allows origins listed in allowedOrigins; "*" allows any. A
// request without an Origin header is same-origin and always accepted.
func NewHandler(hub *Hub, allowedOrigins []string, readBuffer, writeBuffer int) *Handler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	h := &Handler{hub: hub, logger: hub.logger}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  readBuffer,
		WriteBufferSize: writeBuffer,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || allowed["*"] || allowed[origin] {
				return true
			}
			h.logger.WarnContext(r.Context(), "websocket origin not allowed",
				slog.String("origin", origin))
			return false
		},
	}
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.hub.Running() {
		http.Error(w, "websocket hub is not running", http.StatusServiceUnavailable)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		h.logger.WarnContext(r.Context(), "websocket upgrade failed",
			slog.String("error", err.Error()))
		return
	}

	client := NewClient(h.hub, gorillaConn{conn}, infrastructure.GetTraceID(r.Context()))
	h.hub.Register(client)
	go client.WritePump()
	go client.ReadPump()
}
