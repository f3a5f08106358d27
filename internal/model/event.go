package model

import (
	"time"
)

// EventType names a server-sent event on a live conversation stream.
type EventType string

const (
	EventTypeConnected EventType = "connected"
	EventTypeMessage   EventType = "message"
	EventTypeHeartbeat EventType = "heartbeat"
	EventTypeError     EventType = "error"
)

// StreamEvent is the envelope written to websocket clients.
type StreamEvent struct {
	Type      EventType       `json:"type"`
	Connected *ConnectedEvent `json:"connected,omitempty"`
	Message   *Message        `json:"message,omitempty"`
	Error     *ErrorEvent     `json:"error,omitempty"`
}

// ConnectedEvent is sent once when a live stream opens.
type ConnectedEvent struct {
	ConversationID string `json:"conversation_id"`
	// Degraded is true when realtime delivery is unavailable and the client
	// should fall back to polling the message list.
	Degraded bool `json:"degraded,omitempty"`
}

// ErrorEvent represents an error event.
type ErrorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HeartbeatEvent represents a heartbeat event.
type HeartbeatEvent struct {
	Timestamp time.Time `json:"timestamp"`
}
