package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/soyeahso/parley/internal/domain"
)

// Ref is a reference to another document that the backend may send either as
// a bare id string or as an embedded object carrying _id (or id).
type Ref json.RawMessage

// UnmarshalJSON keeps the raw bytes for later resolution.
func (r *Ref) UnmarshalJSON(data []byte) error {
	*r = append((*r)[:0], data...)
	return nil
}

// MarshalJSON writes the raw bytes back.
func (r Ref) MarshalJSON() ([]byte, error) {
	if len(r) == 0 {
		return []byte("null"), nil
	}
	return r, nil
}

// ID extracts the referenced id. Compound records yield their _id or id
// field; strings are used directly.
func (r Ref) ID() (string, error) {
	raw := bytes.TrimSpace(r)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", fmt.Errorf("empty reference")
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	case '{':
		var obj struct {
			MongoID string `json:"_id"`
			ID      string `json:"id"`
		}
		if err := json.Unmarshal(raw, &obj); err != nil {
			return "", err
		}
		if obj.MongoID != "" {
			return obj.MongoID, nil
		}
		if obj.ID != "" {
			return obj.ID, nil
		}
		return "", fmt.Errorf("reference object has no id")
	default:
		return "", fmt.Errorf("unsupported reference %s", raw)
	}
}

// docID accepts both _id and id, preferring _id.
type docID struct {
	MongoID string `json:"_id,omitempty"`
	ID      string `json:"id,omitempty"`
}

// Key returns whichever id the backend filled in.
func (d docID) Key() string {
	if d.MongoID != "" {
		return d.MongoID
	}
	return d.ID
}

// Conversation is the body of POST /chat/conversation.
type Conversation struct {
	docID
	Participants []Ref `json:"participants"`
}

// Message is one element of GET /chat/messages/{conversationId}.
type Message struct {
	docID
	Sender         Ref       `json:"sender"`
	Text           string    `json:"text"`
	CreatedAt      time.Time `json:"createdAt"`
	ConversationID string    `json:"conversationId,omitempty"`
}

// User is a profile as returned by the auth endpoints.
type User struct {
	docID
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	IsOnline bool   `json:"isOnline"`
}

// Identity converts the profile into the core identity shape.
func (u User) Identity() domain.UserIdentity {
	return domain.UserIdentity{ID: u.Key(), Name: u.Name, Online: u.IsOnline}
}

// Error is a non-2xx response from the backend.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return fmt.Sprintf("api error (%d): %s", e.Status, e.Message)
}
