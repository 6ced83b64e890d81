package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotReady is returned when a send is attempted before the conversation
	// handle has been resolved.
	ErrNotReady = errors.New("conversation not ready")

	// ErrUseAfterClose is returned by any session operation after Close.
	ErrUseAfterClose = errors.New("conversation session closed")

	// ErrEmptyMessage is returned when the message body is blank.
	ErrEmptyMessage = errors.New("message body is empty")
)

// ChannelError is a connection-level failure of the push channel. It is
// reported upward and never fatal to the session.
type ChannelError struct {
	Op  string
	Err error
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("channel %s: %v", e.Op, e.Err)
}

func (e *ChannelError) Unwrap() error { return e.Err }

// ResolutionFailedError means no conversation handle could be obtained for the
// peer. Sends stay blocked until a retry succeeds.
type ResolutionFailedError struct {
	PeerID string
	Err    error
}

func (e *ResolutionFailedError) Error() string {
	return fmt.Sprintf("resolving conversation with %s: %v", e.PeerID, e.Err)
}

func (e *ResolutionFailedError) Unwrap() error { return e.Err }

// HistoryLoadFailedError means the persisted history could not be fetched.
// The session degrades to a live-only timeline.
type HistoryLoadFailedError struct {
	ConversationID string
	Err            error
}

func (e *HistoryLoadFailedError) Error() string {
	return fmt.Sprintf("loading history for %s: %v", e.ConversationID, e.Err)
}

func (e *HistoryLoadFailedError) Unwrap() error { return e.Err }
