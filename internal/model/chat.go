package model

import "time"

// Message is a chat message as persisted by the server. Identity is always
// server-assigned; clients never mint message ids.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// Conversation is referenced client-side by id only; membership and
// last-activity metadata are maintained server-side.
type Conversation struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Participants  []string  `json:"participants"`
	LastMessageAt time.Time `json:"last_message_at"`
}

// TypingSignal is a purely transient presence indicator. It has no identity
// and is never stored; it exists only on the wire.
type TypingSignal struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
}
