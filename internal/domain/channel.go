package domain

// PresenceState tracks what we know about the peer of an open conversation.
type PresenceState struct {
	Typing bool `json:"isTyping"`
	Online bool `json:"isOnline"`
}
