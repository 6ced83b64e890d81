// Package hooks dispatches conversation session lifecycle notifications.
package hooks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/soyeahso/parley/internal/logging"
)

// Event names emitted by a conversation session.
const (
	EventSessionStart    = "session_start"
	EventStateChanged    = "state_changed"
	EventMessageReceived = "message_received"
	EventMessageSending  = "message_sending"
	EventTimelineSeeded  = "timeline_seeded"
	EventHistoryFailed   = "history_failed"
	EventPresenceChanged = "presence_changed"
	EventChannelError    = "channel_error"
	EventSessionEnd      = "session_end"

	// AnyEvent registers a handler for every event.
	AnyEvent = "*"
)

// AllEvents lists all known hook event names.
var AllEvents = []string{
	EventSessionStart,
	EventStateChanged,
	EventMessageReceived,
	EventMessageSending,
	EventTimelineSeeded,
	EventHistoryFailed,
	EventPresenceChanged,
	EventChannelError,
	EventSessionEnd,
}

// Known reports whether event is one of AllEvents.
func Known(event string) bool {
	return lo.Contains(AllEvents, event)
}

// Payload carries event data to hook handlers.
type Payload struct {
	Event   string         `json:"event"`
	Session string         `json:"session,omitempty"`
	At      time.Time      `json:"at"`
	Data    map[string]any `json:"data,omitempty"`
}

// Handler is a function that handles a hook event.
// Returning an error logs the failure but does not stop processing.
type Handler func(ctx context.Context, p Payload) error

// Manager manages hook registrations and dispatches events.
type Manager struct {
	mu       sync.RWMutex
	handlers map[string][]namedHandler
	log      *logging.Logger
	now      func() time.Time
}

type namedHandler struct {
	name    string
	handler Handler
}

// NewManager creates a hook manager.
func NewManager(log *logging.Logger) *Manager {
	return &Manager{
		handlers: make(map[string][]namedHandler),
		log:      log.Sub("hooks"),
		now:      time.Now,
	}
}

// On registers a handler for the given event, or for every event when event
// is AnyEvent. The name identifies the handler for Off and logging.
func (m *Manager) On(event, name string, handler Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[event] = append(m.handlers[event], namedHandler{name: name, handler: handler})
	m.log.Debug().Str("event", event).Str("handler", name).Msg("hook registered")
}

// Off removes all handlers with the given name from the event.
func (m *Manager) Off(event, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.handlers[event] = lo.Reject(m.handlers[event], func(h namedHandler, _ int) bool {
		return h.name == name
	})
}

// snapshot returns the handlers for event followed by the wildcard handlers.
func (m *Manager) snapshot(event string) []namedHandler {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]namedHandler, 0, len(m.handlers[event])+len(m.handlers[AnyEvent]))
	out = append(out, m.handlers[event]...)
	if event != AnyEvent {
		out = append(out, m.handlers[AnyEvent]...)
	}
	return out
}

func (m *Manager) payload(event, session string, data map[string]any) Payload {
	return Payload{Event: event, Session: session, At: m.now(), Data: data}
}

// Emit dispatches an event to all registered handlers synchronously.
// Handlers are called in registration order, specific handlers before
// wildcard ones. Errors are logged but do not stop subsequent handlers.
func (m *Manager) Emit(ctx context.Context, event, session string, data map[string]any) {
	handlers := m.snapshot(event)
	if len(handlers) == 0 {
		return
	}

	p := m.payload(event, session, data)
	for _, h := range handlers {
		if err := h.handler(ctx, p); err != nil {
			m.log.Warn().
				Err(err).
				Str("event", event).
				Str("session", session).
				Str("handler", h.name).
				Msg("hook handler error")
		}
	}
}

// EmitAsync dispatches an event to all registered handlers concurrently.
// Returns immediately; handler errors are logged.
func (m *Manager) EmitAsync(ctx context.Context, event, session string, data map[string]any) {
	handlers := m.snapshot(event)
	if len(handlers) == 0 {
		return
	}

	p := m.payload(event, session, data)
	for _, h := range handlers {
		go func(h namedHandler) {
			if err := h.handler(ctx, p); err != nil {
				m.log.Warn().
					Err(err).
					Str("event", event).
					Str("handler", h.name).
					Msg("async hook handler error")
			}
		}(h)
	}
}

// Count returns the number of handlers registered for an event.
func (m *Manager) Count(event string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.handlers[event])
}

// Events returns the sorted events that have at least one handler.
func (m *Manager) Events() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	events := lo.Filter(lo.Keys(m.handlers), func(e string, _ int) bool {
		return len(m.handlers[e]) > 0
	})
	sort.Strings(events)
	return events
}
