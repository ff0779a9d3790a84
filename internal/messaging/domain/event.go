package domain

import (
	"encoding/json"
	"time"
)

// Event realtime event name
type Event string

const (
	// EventMessageNew a message was sent to a thread
	EventMessageNew Event = "message:new"
	// EventThreadParticipants the participant set of a thread changed
	EventThreadParticipants Event = "thread:participants"
	// EventMessageRead a participant read a message
	EventMessageRead Event = "message:read"
	// EventTyping a participant is typing
	EventTyping Event = "typing"

	// EventJoin client asks to join its user room
	EventJoin Event = "join"
	// EventError server reply to a rejected client frame
	EventError Event = "error"
)

// Envelope wire frame on the socket and on the redis channel
type Envelope struct {
	Room    string `json:"room,omitempty"`
	Event   Event  `json:"event"`
	Payload any    `json:"payload"`
}

// RawEnvelope Envelope with the payload left undecoded
type RawEnvelope struct {
	Room    string          `json:"room,omitempty"`
	Event   Event           `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// MessageNewPayload payload of message:new
type MessageNewPayload struct {
	ThreadID string      `json:"threadId"`
	Message  MessageView `json:"message"`
}

// ParticipantsPayload payload of thread:participants
type ParticipantsPayload struct {
	ThreadID       string   `json:"threadId"`
	ParticipantIDs []string `json:"participantIds"`
}

// MessageReadPayload payload of message:read
type MessageReadPayload struct {
	ThreadID  string    `json:"threadId"`
	MessageID string    `json:"messageId"`
	User      UserRef   `json:"user"`
	ReadAt    time.Time `json:"readAt"`
}

// TypingPayload payload of typing
type TypingPayload struct {
	ThreadID string `json:"threadId"`
	UserID   string `json:"userId"`
	Name     string `json:"name"`
}

// JoinPayload payload of a client join frame
type JoinPayload struct {
	UserID string `json:"userId"`
}

// ErrorPayload payload of an error frame
type ErrorPayload struct {
	Error string `json:"error"`
}
