// Package websocket streams pipeline progress to browser clients.
//
// The Hub fans analysis snapshots out to connected clients. A client gets
// every run until it sends {"type":"subscribe","run_id":...}; from then on
// only the runs it follows reach it. The Hub satisfies
// pipeline.ProgressReporter, so the analysis service hands it straight to a
// pipeline run.
package websocket

import (
	"time"

	"github.com/gorilla/websocket"
)

// Connection is the subset of *websocket.Conn the client pumps use.
type Connection interface {
	WriteMessage(messageType int, data []byte) error
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetReadLimit(limit int64)
	SetPongHandler(h func(string) error)
	RemoteAddr() string
}

// gorillaConn adapts *websocket.Conn to Connection.
type gorillaConn struct {
	*websocket.Conn
}

func (c gorillaConn) RemoteAddr() string {
	if addr := c.Conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}
