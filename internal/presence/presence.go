// Package presence tracks the typing and online state of one peer.
package presence

import (
	"sync"

	"github.com/soyeahso/parley/internal/domain"
)

// Signal holds the last-known presence of the bound peer. Each facet is
// last-write-wins and is only changed by events naming the peer. Typing
// never times out on its own; the peer must send an explicit stop.
type Signal struct {
	peerID string

	mu    sync.RWMutex
	state domain.PresenceState
}

// New binds a Signal to peerID. The initial online flag usually comes from
// the peer's profile.
func New(peerID string, online bool) *Signal {
	return &Signal{peerID: peerID, state: domain.PresenceState{Online: online}}
}

// PeerID returns the bound peer.
func (s *Signal) PeerID() string { return s.peerID }

// SetTyping applies a typing event. It reports whether the state changed.
func (s *Signal) SetTyping(peerID string, typing bool) bool {
	if peerID != s.peerID {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Typing == typing {
		return false
	}
	s.state.Typing = typing
	return true
}

// SetOnline applies a status event. It reports whether the state changed.
func (s *Signal) SetOnline(peerID string, online bool) bool {
	if peerID != s.peerID {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Online == online {
		return false
	}
	s.state.Online = online
	return true
}

// State returns the current presence.
func (s *Signal) State() domain.PresenceState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Reset clears typing and keeps the last-known online flag.
func (s *Signal) Reset() domain.PresenceState {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Typing = false
	return s.state
}
