package session

// State is a ConversationSession lifecycle state.
type State int

const (
	Idle State = iota
	Connecting
	Resolving
	Ready
	ResolutionFailed
	Closed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Connecting:
		return "connecting"
	case Resolving:
		return "resolving"
	case Ready:
		return "ready"
	case ResolutionFailed:
		return "resolution_failed"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}
