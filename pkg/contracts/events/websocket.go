// Package events contains the WebSocket message contracts for analysis progress.
package events

import (
	"time"
)

// MessageType defines the type of WebSocket message
type MessageType string

const (
	// MessageTypeAnalysisSnapshot carries the full step list of one analysis run.
	MessageTypeAnalysisSnapshot MessageType = "analysis:snapshot"

	// MessageTypeAnalysisComplete is sent once the report is stored.
	MessageTypeAnalysisComplete MessageType = "analysis:complete"

	MessageTypeConnect MessageType = "connect"
	MessageTypeError   MessageType = "error"

	// Client to server.
	MessageTypeHeartbeat   MessageType = "heartbeat"
	MessageTypeSubscribe   MessageType = "subscribe"
	MessageTypeUnsubscribe MessageType = "unsubscribe"
)

// ClientMessage is what browsers send. A client with no subscriptions
// receives every run; after subscribing it only receives the runs it named.
type ClientMessage struct {
	Type  MessageType `json:"type"`
	RunID string      `json:"run_id,omitempty"`
}

// BaseMessage represents the base structure for all WebSocket messages
type BaseMessage struct {
	ID        string      `json:"id,omitempty"`
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	TraceID   string      `json:"trace_id,omitempty"`
}

// WebSocketMessage represents a complete WebSocket message
type WebSocketMessage struct {
	BaseMessage
	Data interface{} `json:"data,omitempty"`
}

// AnalysisSnapshot reports the progress of one pipeline run.
type AnalysisSnapshot struct {
	RunID       string         `json:"run_id"`
	Status      string         `json:"status"` // running|completed|failed
	Progress    int            `json:"progress"`
	CurrentStep string         `json:"current_step"`
	Steps       []StepSnapshot `json:"steps"`
	StartedAt   time.Time      `json:"started_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	Error       string         `json:"error,omitempty"`
}

// StepSnapshot represents the state of a single step
type StepSnapshot struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Status   string `json:"status"`
	Message  string `json:"message,omitempty"`
	Duration int64  `json:"duration_ms,omitempty"`
}

// ErrorMessage is sent when a client message cannot be handled.
type ErrorMessage struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
