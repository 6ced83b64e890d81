// Package channel implements the long-lived push channel a conversation
// session uses to exchange live messages and typing signals with the backend.
package channel

import (
	"context"
	"errors"

	"github.com/soyeahso/parley/internal/domain"
)

var (
	ErrClosed       = errors.New("channel closed")
	ErrNotOpen      = errors.New("channel not opened")
	ErrAlreadyOpen  = errors.New("channel already opened")
	ErrDisconnected = errors.New("channel disconnected")
	ErrQueueFull    = errors.New("channel send queue full")
)

// SendPolicy decides what Send does while the connection is down.
type SendPolicy string

const (
	// PolicyQueue buffers frames and flushes them in order after Reconnect.
	PolicyQueue SendPolicy = "queue"
	// PolicyReject fails the send with ErrDisconnected.
	PolicyReject SendPolicy = "reject"
)

// Kind classifies inbound channel events.
type Kind int

const (
	KindPeerMessage Kind = iota + 1
	KindPeerTyping
	KindPeerStatus
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindPeerMessage:
		return "peerMessage"
	case KindPeerTyping:
		return "peerTyping"
	case KindPeerStatus:
		return "peerStatus"
	case KindError:
		return "channelError"
	default:
		return "unknown"
	}
}

// Event is delivered to the registered Handler for every inbound frame the
// channel understands, and once per connection loss.
type Event struct {
	Kind    Kind
	Message domain.Message // KindPeerMessage
	PeerID  string         // KindPeerTyping, KindPeerStatus
	Typing  bool           // KindPeerTyping
	Online  bool           // KindPeerStatus
	Err     error          // KindError
}

// Handler receives channel events. It is called from the channel's read
// goroutine and must not call back into Close.
type Handler func(Event)

// Channel is the contract a conversation session consumes.
type Channel interface {
	// Open connects and announces the user to the backend (join).
	Open(ctx context.Context, user domain.UserIdentity) error

	// Send emits a named event. Behavior while disconnected follows the
	// configured SendPolicy.
	Send(ctx context.Context, event string, payload any) error

	// OnEvent registers the inbound handler. A nil handler detaches.
	OnEvent(h Handler)

	// Reconnect re-dials and re-joins after a connection loss.
	Reconnect(ctx context.Context) error

	// Connected reports whether a live connection is currently held.
	Connected() bool

	// Close releases the connection. Further sends fail with ErrClosed.
	Close() error
}
