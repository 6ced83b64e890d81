package channel

import (
	"encoding/json"
	"time"

	"github.com/soyeahso/parley/internal/domain"
)

// FrameTypeEvent is the only frame type on the push channel.
const FrameTypeEvent = "event"

// Event names on the wire.
const (
	JoinEvent           = "join"
	SendMessageEvent    = "send_message"
	TypingEvent         = "typing"
	ReceiveMessageEvent = "receive_message"
	UserTypingEvent     = "user_typing"
	UserStatusEvent     = "user_status"
)

// Frame is the envelope for every websocket message.
type Frame struct {
	Type    string          `json:"type"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Seq     int64           `json:"seq,omitempty"`
}

// NewEvent creates an event frame.
func NewEvent(event string, payload any, seq int64) (Frame, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, err
	}
	return Frame{
		Type:    FrameTypeEvent,
		Event:   event,
		Payload: raw,
		Seq:     seq,
	}, nil
}

// JoinPayload announces the connecting user so the backend can route to it.
type JoinPayload struct {
	UserID string `json:"userId" validate:"required"`
}

// SendMessagePayload is emitted for every outbound chat message.
type SendMessagePayload struct {
	To             string    `json:"to" validate:"required"`
	ConversationID string    `json:"conversationId" validate:"required"`
	Message        string    `json:"message" validate:"required"`
	Timestamp      time.Time `json:"timestamp"`
	From           string    `json:"from" validate:"required"`
}

// TypingPayload tells the peer whether we are composing.
type TypingPayload struct {
	To       string `json:"to" validate:"required"`
	IsTyping bool   `json:"isTyping"`
}

// ReceiveMessagePayload is pushed by the backend for a live message.
type ReceiveMessagePayload struct {
	ID             string    `json:"id,omitempty"`
	From           string    `json:"from" validate:"required"`
	ConversationID string    `json:"conversationId,omitempty"`
	Message        string    `json:"message"`
	Timestamp      time.Time `json:"timestamp"`
}

// ToMessage converts the payload into the core message shape. A missing
// timestamp is replaced with the receive time.
func (p ReceiveMessagePayload) ToMessage(receivedAt time.Time) domain.Message {
	ts := p.Timestamp
	if ts.IsZero() {
		ts = receivedAt
	}
	return domain.Message{
		ID:             p.ID,
		SenderID:       p.From,
		Body:           p.Message,
		SentAt:         ts,
		ConversationID: p.ConversationID,
	}
}

// UserTypingPayload reports a remote user's typing state.
type UserTypingPayload struct {
	UserID   string `json:"userId" validate:"required"`
	IsTyping bool   `json:"isTyping"`
}

// UserStatusPayload reports a remote user's online state.
type UserStatusPayload struct {
	UserID   string `json:"userId" validate:"required"`
	IsOnline bool   `json:"isOnline"`
}
