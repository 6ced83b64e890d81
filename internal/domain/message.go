package domain

import "time"

// Message is a single chat message in a conversation timeline.
// ID is empty for optimistic local messages the server has not acknowledged yet.
type Message struct {
	ID             string    `json:"id,omitempty"`
	LocalID        string    `json:"localId,omitempty"`
	SenderID       string    `json:"senderId"`
	Body           string    `json:"body"`
	SentAt         time.Time `json:"sentAt"`
	ConversationID string    `json:"conversationId,omitempty"`
}

// Optimistic reports whether the message is a local echo still waiting for a
// server-assigned ID.
func (m Message) Optimistic() bool {
	return m.ID == ""
}

// SameContent reports whether two messages carry the same logical payload,
// ignoring IDs and timestamps.
func (m Message) SameContent(o Message) bool {
	return m.SenderID == o.SenderID &&
		m.Body == o.Body &&
		m.ConversationID == o.ConversationID
}
