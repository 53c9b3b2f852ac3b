// Package event defines the push-channel frame envelope and a typed
// publish/subscribe bus that fans inbound frames out to listeners.
package event

import (
	"encoding/json"

	"github.com/boardsync/boardsync/internal/model"
)

// Inbound event categories delivered by the server.
const (
	EventConnected      = "connected"
	EventAck            = "ack"
	EventNewMessage     = "new_message"
	EventNewConversation = "new_conversation"
	EventUserTyping     = "user_typing"
	EventUserStopTyping = "user_stop_typing"
	EventNotification   = "notification"
)

// Outbound event names emitted by the client.
const (
	EventSendMessage      = "send_message"
	EventJoinConversation = "join_conversation"
	EventTypingStart      = "typing_start"
	EventTypingStop       = "typing_stop"
)

// Frame is the wire envelope for every message on the push channel. ID is
// set on request/acknowledge exchanges to correlate the ack with its
// request; fire-and-forget frames leave it empty.
type Frame struct {
	Event   string          `json:"event"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// SendRequest is the payload of a send_message frame.
type SendRequest struct {
	ConversationID string `json:"conversationId"`
	Content        string `json:"content"`
}

// SendAck is the payload of the server's ack frame for a send_message
// request. Message is set only on success.
type SendAck struct {
	Success bool           `json:"success"`
	Message *model.Message `json:"message,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// ConversationRef is the payload of join_conversation, typing_start and
// typing_stop frames.
type ConversationRef struct {
	ConversationID string `json:"conversationId"`
}
