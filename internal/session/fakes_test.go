package session

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/soyeahso/parley/internal/channel"
	"github.com/soyeahso/parley/internal/domain"
	"github.com/soyeahso/parley/internal/hooks"
)

type sentFrame struct {
	event   string
	payload any
}

// fakeChannel records every call the session makes.
type fakeChannel struct {
	mu      sync.Mutex
	handler channel.Handler
	calls   []string
	sent    []sentFrame
	openErr error
	sendErr error
}

func (f *fakeChannel) Open(_ context.Context, user domain.UserIdentity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "open:"+user.ID)
	return f.openErr
}

func (f *fakeChannel) Send(_ context.Context, event string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, sentFrame{event, payload})
	return nil
}

func (f *fakeChannel) OnEvent(h channel.Handler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if h == nil {
		f.calls = append(f.calls, "detach")
	} else {
		f.calls = append(f.calls, "attach")
	}
	f.handler = h
}

func (f *fakeChannel) Reconnect(context.Context) error { return nil }

func (f *fakeChannel) Connected() bool { return true }

func (f *fakeChannel) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "close")
	return nil
}

func (f *fakeChannel) deliver(e channel.Event) {
	f.mu.Lock()
	h := f.handler
	f.mu.Unlock()
	if h != nil {
		h(e)
	}
}

func (f *fakeChannel) setSendErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sendErr = err
}

func (f *fakeChannel) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeChannel) frames(event string) []any {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []any
	for _, s := range f.sent {
		if s.event == event {
			out = append(out, s.payload)
		}
	}
	return out
}

func (f *fakeChannel) typingSignals() []bool {
	var out []bool
	for _, p := range f.frames(channel.TypingEvent) {
		out = append(out, p.(channel.TypingPayload).IsTyping)
	}
	return out
}

type fakeResolver struct {
	calls atomic.Int32
	fn    func(ctx context.Context, peerID string) (domain.ConversationHandle, error)
}

func (f *fakeResolver) Resolve(ctx context.Context, peerID string) (domain.ConversationHandle, error) {
	f.calls.Add(1)
	return f.fn(ctx, peerID)
}

type fakeHistory struct {
	calls atomic.Int32
	fn    func(ctx context.Context, conversationID string) ([]domain.Message, error)
}

func (f *fakeHistory) Load(ctx context.Context, conversationID string) ([]domain.Message, error) {
	f.calls.Add(1)
	return f.fn(ctx, conversationID)
}

// recorder collects every hook emission.
type recorder struct {
	mu       sync.Mutex
	payloads []hooks.Payload
}

func record(m *hooks.Manager) *recorder {
	r := &recorder{}
	m.On(hooks.AnyEvent, "recorder", func(_ context.Context, p hooks.Payload) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.payloads = append(r.payloads, p)
		return nil
	})
	return r
}

func (r *recorder) events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.payloads))
	for i, p := range r.payloads {
		out[i] = p.Event
	}
	return out
}

func (r *recorder) find(event string) []hooks.Payload {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []hooks.Payload
	for _, p := range r.payloads {
		if p.Event == event {
			out = append(out, p)
		}
	}
	return out
}

// states returns the "to" side of every state_changed emission.
func (r *recorder) states() []string {
	var out []string
	for _, p := range r.find(hooks.EventStateChanged) {
		out = append(out, p.Data["to"].(string))
	}
	return out
}
