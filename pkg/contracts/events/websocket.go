// Package events defines the wire contract of the progress WebSocket. The
// server only pushes; clients never send commands, so every type here flows
// server to browser.
package events

import (
	"time"
)

// MessageType defines the type of a WebSocket message
type MessageType string

const (
	// MessageTypeConnection greets a client right after it registers.
	MessageTypeConnection MessageType = "connection"

	// MessageTypeRunSnapshot carries the complete state of one pipeline
	// run. Every progress change rebroadcasts the full snapshot, so a
	// client that misses frames still converges on the latest state.
	MessageTypeRunSnapshot MessageType = "run:snapshot"

	// MessageTypeError reports a pipeline failure outside any run snapshot.
	MessageTypeError MessageType = "error"
)

// Message is the envelope every frame shares. Run snapshots carry the whole
// run state in Data; other types may add subtype and action for routing.
type Message struct {
	Type      MessageType `json:"type"`
	Subtype   string      `json:"subtype,omitempty"`
	Action    string      `json:"action,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp string      `json:"timestamp"`
	TraceID   string      `json:"trace_id,omitempty"`
}

// NewMessage stamps an envelope of the given type.
func NewMessage(t MessageType, data interface{}) Message {
	return Message{
		Type:      t,
		Data:      data,
		Timestamp: time.Now().Format(time.RFC3339),
	}
}

// ConnectionPayload is the data of a connection greeting.
type ConnectionPayload struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	ClientID string `json:"client_id"`
}

// ErrorPayload is the data of an error frame.
type ErrorPayload struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	Details     string `json:"details,omitempty"`
	Step        string `json:"step,omitempty"`
	Recoverable bool   `json:"recoverable"`
}
