package domain

// UserIdentity is supplied by the authentication collaborator and treated as
// read-only input.
type UserIdentity struct {
	ID     string `json:"id"`
	Name   string `json:"name,omitempty"`
	Online bool   `json:"isOnline,omitempty"`
}

// ConversationHandle binds two participants to one message thread.
type ConversationHandle struct {
	ID           string    `json:"id"`
	Participants [2]string `json:"participants"`
}

// Includes reports whether userID is one of the two participants.
func (h ConversationHandle) Includes(userID string) bool {
	return userID != "" && (h.Participants[0] == userID || h.Participants[1] == userID)
}

// Other returns the participant that is not userID.
func (h ConversationHandle) Other(userID string) string {
	if h.Participants[0] == userID {
		return h.Participants[1]
	}
	return h.Participants[0]
}
