package models

// Event types pushed over websocket connections.
const (
	EventMessage  = "message"
	EventSnapshot = "snapshot"
	EventPresence = "presence"
	EventError    = "error"
	EventAck      = "ack"
)

// ErrorBody describes a failed inbound frame.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Event is the outbound websocket envelope.
type Event struct {
	Type     string         `json:"type"`
	Message  *Message       `json:"message,omitempty"`
	Messages []Message      `json:"messages,omitempty"`
	Presence *PresenceEvent `json:"presence,omitempty"`
	Error    *ErrorBody     `json:"error,omitempty"`
	Ref      string         `json:"ref,omitempty"`
}
