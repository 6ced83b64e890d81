// Package timeline merges persisted history and live messages of one
// conversation into a single ordered, de-duplicated sequence.
package timeline

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/soyeahso/parley/internal/domain"
)

// DefaultReconcileWindow bounds how far apart an optimistic entry and its
// server echo may be in sentAt and still be merged.
const DefaultReconcileWindow = 30 * time.Second

// ErrSeeded is returned by Seed after the timeline has left the pre-seed phase.
var ErrSeeded = errors.New("timeline already seeded")

// Outcome reports what AppendLive did with a message.
type Outcome int

const (
	Appended Outcome = iota + 1
	Duplicate
	Promoted
	Rejected
)

func (o Outcome) String() string {
	switch o {
	case Appended:
		return "appended"
	case Duplicate:
		return "duplicate"
	case Promoted:
		return "promoted"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Options binds a timeline to one conversation.
type Options struct {
	ConversationID  string
	PeerID          string
	ReconcileWindow time.Duration
}

// Timeline is safe for concurrent use.
//
// Before Seed, live messages are buffered in sentAt order (arrival order on
// ties). Seed folds the buffer into the history. After Seed (or Abandon),
// live messages are appended at the end.
type Timeline struct {
	opts Options

	mu      sync.RWMutex
	entries []domain.Message
	ids     map[string]struct{}
	seeded  bool
}

// New creates an empty, unseeded timeline.
func New(opts Options) *Timeline {
	if opts.ReconcileWindow <= 0 {
		opts.ReconcileWindow = DefaultReconcileWindow
	}
	return &Timeline{opts: opts, ids: make(map[string]struct{})}
}

// Seed replaces the sequence with history sorted by sentAt, with every live
// message received so far folded in. Pre-seed live messages count as having
// arrived before the history, so they come first among equal timestamps.
// Buffered optimistic entries that match a history record are promoted to it.
func (t *Timeline) Seed(history []domain.Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.seeded {
		return ErrSeeded
	}

	hist := make([]domain.Message, 0, len(history))
	histIDs := make(map[string]struct{}, len(history))
	for _, m := range history {
		if m.ID == "" {
			continue
		}
		if _, dup := histIDs[m.ID]; dup {
			continue
		}
		histIDs[m.ID] = struct{}{}
		hist = append(hist, m)
	}
	sort.SliceStable(hist, func(i, j int) bool { return hist[i].SentAt.Before(hist[j].SentAt) })

	claimed := make([]bool, len(hist))
	buffered := lo.Filter(t.entries, func(b domain.Message, _ int) bool {
		if b.ID != "" {
			_, dup := histIDs[b.ID]
			return !dup
		}
		for i := range hist {
			if !claimed[i] && hist[i].LocalID == "" && t.matches(b, hist[i]) {
				claimed[i] = true
				hist[i].LocalID = b.LocalID
				return false
			}
		}
		return true
	})

	merged := append(buffered, hist...)
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].SentAt.Before(merged[j].SentAt) })

	t.entries = merged
	t.ids = make(map[string]struct{}, len(merged))
	for _, m := range merged {
		if m.ID != "" {
			t.ids[m.ID] = struct{}{}
		}
	}
	t.seeded = true
	return nil
}

// Bind sets the conversation the timeline belongs to once it is known.
// Until then only messages from the peer are accepted. Buffered entries
// without a conversation id are stamped with it.
func (t *Timeline) Bind(conversationID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.opts.ConversationID = conversationID
	for i := range t.entries {
		if t.entries[i].ConversationID == "" {
			t.entries[i].ConversationID = conversationID
		}
	}
}

// Abandon ends the pre-seed phase without history. Buffered messages stay
// and later live messages append.
func (t *Timeline) Abandon() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seeded = true
}

// AppendLive adds a live or locally produced message.
func (t *Timeline) AppendLive(m domain.Message) Outcome {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.acceptsLocked(m) {
		return Rejected
	}
	if m.ConversationID == "" {
		m.ConversationID = t.opts.ConversationID
	}

	if m.ID != "" {
		if _, dup := t.ids[m.ID]; dup {
			return Duplicate
		}
		if _, i, ok := lo.FindIndexOf(t.entries, func(e domain.Message) bool {
			return e.Optimistic() && t.matches(e, m)
		}); ok {
			t.entries[i].ID = m.ID
			t.ids[m.ID] = struct{}{}
			return Promoted
		}
		t.ids[m.ID] = struct{}{}
	}

	if t.seeded {
		t.entries = append(t.entries, m)
		return Appended
	}

	// Pre-seed: keep the buffer sorted, after any equal timestamps.
	i := sort.Search(len(t.entries), func(i int) bool { return t.entries[i].SentAt.After(m.SentAt) })
	t.entries = append(t.entries, domain.Message{})
	copy(t.entries[i+1:], t.entries[i:])
	t.entries[i] = m
	return Appended
}

// Remove drops the optimistic entry with localID. It reports whether an
// entry was removed; promoted entries are not removable.
func (t *Timeline) Remove(localID string) bool {
	if localID == "" {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	_, i, ok := lo.FindIndexOf(t.entries, func(e domain.Message) bool {
		return e.Optimistic() && e.LocalID == localID
	})
	if !ok {
		return false
	}
	t.entries = append(t.entries[:i], t.entries[i+1:]...)
	return true
}

// Messages returns a copy of the current sequence.
func (t *Timeline) Messages() []domain.Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]domain.Message, len(t.entries))
	copy(out, t.entries)
	return out
}

// Len returns the number of entries.
func (t *Timeline) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Seeded reports whether the pre-seed phase is over.
func (t *Timeline) Seeded() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.seeded
}

func (t *Timeline) acceptsLocked(m domain.Message) bool {
	if t.opts.ConversationID != "" && m.ConversationID == t.opts.ConversationID {
		return true
	}
	return m.SenderID == t.opts.PeerID
}

func (t *Timeline) matches(optimistic, echo domain.Message) bool {
	if !optimistic.SameContent(echo) {
		return false
	}
	d := echo.SentAt.Sub(optimistic.SentAt)
	if d < 0 {
		d = -d
	}
	return d <= t.opts.ReconcileWindow
}
