// Package session orchestrates one open conversation: it opens the push
// channel, resolves the conversation handle, seeds the timeline from history
// and gates outbound sends on the resolved handle.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/soyeahso/parley/internal/channel"
	"github.com/soyeahso/parley/internal/domain"
	"github.com/soyeahso/parley/internal/hooks"
	"github.com/soyeahso/parley/internal/logging"
	"github.com/soyeahso/parley/internal/presence"
	"github.com/soyeahso/parley/internal/timeline"
)

var (
	// ErrAlreadyOpen is returned by Open on a session that left Idle.
	ErrAlreadyOpen = errors.New("session already opened")

	// ErrNotOpen is returned by operations that need Open first.
	ErrNotOpen = errors.New("session not opened")

	// ErrNotRetryable is returned by Retry outside ResolutionFailed.
	ErrNotRetryable = errors.New("session is not in a failed resolution state")
)

// Resolver obtains the conversation handle for a peer.
type Resolver interface {
	Resolve(ctx context.Context, peerID string) (domain.ConversationHandle, error)
}

// HistoryLoader fetches the persisted messages of a conversation.
type HistoryLoader interface {
	Load(ctx context.Context, conversationID string) ([]domain.Message, error)
}

// Options wires a Session to its collaborators.
type Options struct {
	Self     domain.UserIdentity
	Peer     domain.UserIdentity
	Channel  channel.Channel
	Resolver Resolver
	History  HistoryLoader
	Hooks    *hooks.Manager // optional

	ReconcileWindow time.Duration
	Now             func() time.Time
}

// Session is a ConversationSession. Create one per open chat and Close it
// when the chat goes away; a closed session cannot be reused.
type Session struct {
	id    string
	opts  Options
	log   *logging.Logger
	hooks *hooks.Manager

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	state     State
	attempt   uint64
	handle    *domain.ConversationHandle
	timeline  *timeline.Timeline
	presence  *presence.Signal
	composing bool
	lastErr   error
}

// notice is a hook emission deferred until the session lock is released.
type notice struct {
	event string
	data  map[string]any
}

// New creates an Idle session.
func New(opts Options, log *logging.Logger) *Session {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Hooks == nil {
		opts.Hooks = hooks.NewManager(log)
	}
	id := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		id:     id,
		opts:   opts,
		log:    log.Sub("session").With("session", id),
		hooks:  opts.Hooks,
		ctx:    ctx,
		cancel: cancel,
	}
}

// ID returns the session's unique id.
func (s *Session) ID() string { return s.id }

// Hooks returns the manager lifecycle notifications are sent through.
func (s *Session) Hooks() *hooks.Manager { return s.hooks }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Handle returns the resolved conversation handle, if any.
func (s *Session) Handle() (domain.ConversationHandle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handle == nil {
		return domain.ConversationHandle{}, false
	}
	return *s.handle, true
}

// Messages returns the current timeline. It is nil before Open and after Close.
func (s *Session) Messages() []domain.Message {
	s.mu.Lock()
	tl := s.timeline
	s.mu.Unlock()
	if tl == nil {
		return nil
	}
	return tl.Messages()
}

// Presence returns what is known about the peer.
func (s *Session) Presence() domain.PresenceState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.presence == nil {
		return domain.PresenceState{Online: s.opts.Peer.Online}
	}
	return s.presence.State()
}

// Err returns the last resolution failure, cleared by a successful resolve.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Wait blocks until background resolution and history work has finished.
func (s *Session) Wait() {
	s.wg.Wait()
}

// Open moves the session from Idle through Connecting into Resolving. A
// failure to open the channel is reported as a channel_error notification
// and does not stop resolution.
func (s *Session) Open(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case Closed:
		s.mu.Unlock()
		return domain.ErrUseAfterClose
	case Idle:
	default:
		s.mu.Unlock()
		return ErrAlreadyOpen
	}
	s.timeline = timeline.New(timeline.Options{
		PeerID:          s.opts.Peer.ID,
		ReconcileWindow: s.opts.ReconcileWindow,
	})
	s.presence = presence.New(s.opts.Peer.ID, s.opts.Peer.Online)
	notes := []notice{
		{hooks.EventSessionStart, map[string]any{"self": s.opts.Self.ID, "peer": s.opts.Peer.ID}},
		s.transitionLocked(Connecting, nil),
	}
	s.mu.Unlock()
	s.emit(notes...)

	s.opts.Channel.OnEvent(s.onChannelEvent)
	if err := s.opts.Channel.Open(ctx, s.opts.Self); err != nil {
		s.log.Warn().Err(err).Msg("channel open failed")
		s.emit(channelErrorNotice(err))
	}

	s.mu.Lock()
	if s.state == Closed {
		s.mu.Unlock()
		return domain.ErrUseAfterClose
	}
	note, attempt := s.beginResolveLocked()
	s.mu.Unlock()
	s.emit(note)
	s.spawn(attempt)
	return nil
}

// Retry re-enters Resolving after a failed resolution.
func (s *Session) Retry() error {
	s.mu.Lock()
	switch s.state {
	case Closed:
		s.mu.Unlock()
		return domain.ErrUseAfterClose
	case ResolutionFailed:
	default:
		s.mu.Unlock()
		return ErrNotRetryable
	}
	note, attempt := s.beginResolveLocked()
	s.mu.Unlock()
	s.emit(note)
	s.spawn(attempt)
	return nil
}

func (s *Session) beginResolveLocked() (notice, uint64) {
	s.attempt++
	return s.transitionLocked(Resolving, nil), s.attempt
}

func (s *Session) spawn(attempt uint64) {
	s.wg.Add(1)
	go s.resolve(attempt)
}

// resolve runs one resolution attempt and, on success, the history load.
// Completions for a superseded attempt or a closed session are dropped.
func (s *Session) resolve(attempt uint64) {
	defer s.wg.Done()

	h, err := s.opts.Resolver.Resolve(s.ctx, s.opts.Peer.ID)

	s.mu.Lock()
	if !s.currentLocked(attempt) {
		s.mu.Unlock()
		s.log.Debug().Uint64("attempt", attempt).Msg("dropping stale resolution")
		return
	}
	if err != nil {
		s.lastErr = err
		note := s.transitionLocked(ResolutionFailed, err)
		s.mu.Unlock()
		s.log.Warn().Err(err).Str("peer", s.opts.Peer.ID).Msg("conversation resolution failed")
		s.emit(note)
		return
	}
	s.lastErr = nil
	s.handle = &h
	s.timeline.Bind(h.ID)
	note := s.transitionLocked(Ready, nil)
	s.mu.Unlock()

	s.log.Info().Str("conversation", h.ID).Str("peer", s.opts.Peer.ID).Msg("conversation ready")
	s.emit(note)

	msgs, err := s.opts.History.Load(s.ctx, h.ID)

	s.mu.Lock()
	if !s.currentLocked(attempt) {
		s.mu.Unlock()
		s.log.Debug().Uint64("attempt", attempt).Msg("dropping stale history")
		return
	}
	tl := s.timeline
	if err != nil {
		tl.Abandon()
		s.mu.Unlock()
		s.log.Warn().Err(err).Str("conversation", h.ID).Msg("history unavailable, continuing live-only")
		s.emit(notice{hooks.EventHistoryFailed, map[string]any{"conversation": h.ID, "error": err.Error()}})
		return
	}
	seedErr := tl.Seed(msgs)
	s.mu.Unlock()

	if seedErr != nil {
		s.log.Warn().Err(seedErr).Msg("timeline seed skipped")
		return
	}
	s.emit(notice{hooks.EventTimelineSeeded, map[string]any{
		"conversation": h.ID,
		"history":      len(msgs),
		"total":        tl.Len(),
	}})
}

func (s *Session) currentLocked(attempt uint64) bool {
	return s.state != Closed && attempt == s.attempt
}

// SendMessage appends body optimistically and sends it to the peer. It fails
// with domain.ErrNotReady unless the conversation is resolved. If the
// channel rejects the frame the optimistic entry is rolled back.
func (s *Session) SendMessage(ctx context.Context, body string) (domain.Message, error) {
	s.mu.Lock()
	if s.state == Closed {
		s.mu.Unlock()
		return domain.Message{}, domain.ErrUseAfterClose
	}
	if s.state != Ready {
		s.mu.Unlock()
		return domain.Message{}, domain.ErrNotReady
	}
	if strings.TrimSpace(body) == "" {
		s.mu.Unlock()
		return domain.Message{}, domain.ErrEmptyMessage
	}

	m := domain.Message{
		LocalID:        uuid.NewString(),
		SenderID:       s.opts.Self.ID,
		Body:           body,
		SentAt:         s.opts.Now(),
		ConversationID: s.handle.ID,
	}
	tl := s.timeline
	tl.AppendLive(m)
	s.mu.Unlock()

	s.emit(notice{hooks.EventMessageSending, map[string]any{
		"localId":      m.LocalID,
		"conversation": m.ConversationID,
		"body":         m.Body,
	}})

	err := s.opts.Channel.Send(ctx, channel.SendMessageEvent, channel.SendMessagePayload{
		To:             s.opts.Peer.ID,
		ConversationID: m.ConversationID,
		Message:        m.Body,
		Timestamp:      m.SentAt,
		From:           m.SenderID,
	})
	if err != nil {
		tl.Remove(m.LocalID)
		s.log.Warn().Err(err).Str("localId", m.LocalID).Msg("send failed, rolled back")
		return domain.Message{}, asChannelError("send", err)
	}

	s.mu.Lock()
	s.composing = false
	s.mu.Unlock()

	if err := s.sendTyping(ctx, false); err != nil {
		s.log.Debug().Err(err).Msg("typing stop after send failed")
	}
	return m, nil
}

// InputChanged reports the compose box contents. Typing signals are sent on
// edges only: true when text first becomes non-empty, false when it is
// cleared.
func (s *Session) InputChanged(ctx context.Context, text string) error {
	s.mu.Lock()
	switch s.state {
	case Closed:
		s.mu.Unlock()
		return domain.ErrUseAfterClose
	case Idle:
		s.mu.Unlock()
		return ErrNotOpen
	}

	was := s.composing
	var signal, typing bool
	switch {
	case text != "" && !was:
		s.composing, signal, typing = true, true, true
	case text == "" && was:
		s.composing, signal, typing = false, true, false
	}
	s.mu.Unlock()

	if !signal {
		return nil
	}
	if err := s.sendTyping(ctx, typing); err != nil {
		s.mu.Lock()
		if s.state != Closed {
			s.composing = was
		}
		s.mu.Unlock()
		return asChannelError("typing", err)
	}
	return nil
}

func (s *Session) sendTyping(ctx context.Context, typing bool) error {
	return s.opts.Channel.Send(ctx, channel.TypingEvent, channel.TypingPayload{
		To:       s.opts.Peer.ID,
		IsTyping: typing,
	})
}

// Close detaches listeners, closes the channel and discards the handle and
// timeline. Any later call, including a second Close, returns
// domain.ErrUseAfterClose.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.state == Closed {
		s.mu.Unlock()
		return domain.ErrUseAfterClose
	}
	note := s.transitionLocked(Closed, nil)
	s.cancel()
	s.mu.Unlock()

	s.opts.Channel.OnEvent(nil)
	closeErr := s.opts.Channel.Close()

	s.mu.Lock()
	s.handle = nil
	s.timeline = nil
	s.composing = false
	if s.presence != nil {
		s.presence.Reset()
	}
	s.mu.Unlock()

	s.log.Info().Msg("session closed")
	s.emit(note, notice{hooks.EventSessionEnd, map[string]any{"peer": s.opts.Peer.ID}})

	if closeErr != nil {
		return asChannelError("close", closeErr)
	}
	return nil
}

// onChannelEvent runs on the channel's read goroutine.
func (s *Session) onChannelEvent(e channel.Event) {
	s.mu.Lock()
	if s.state == Closed || s.timeline == nil {
		s.mu.Unlock()
		return
	}

	var notes []notice
	switch e.Kind {
	case channel.KindPeerMessage:
		out := s.timeline.AppendLive(e.Message)
		if out == timeline.Appended || out == timeline.Promoted {
			notes = append(notes, notice{hooks.EventMessageReceived, map[string]any{
				"id":      e.Message.ID,
				"from":    e.Message.SenderID,
				"body":    e.Message.Body,
				"sentAt":  e.Message.SentAt,
				"outcome": out.String(),
			}})
		} else {
			s.log.Debug().Str("id", e.Message.ID).Str("outcome", out.String()).Msg("live message ignored")
		}

	case channel.KindPeerTyping:
		if s.presence.SetTyping(e.PeerID, e.Typing) {
			notes = append(notes, s.presenceNoticeLocked())
		}

	case channel.KindPeerStatus:
		if s.presence.SetOnline(e.PeerID, e.Online) {
			notes = append(notes, s.presenceNoticeLocked())
		}

	case channel.KindError:
		notes = append(notes, channelErrorNotice(e.Err))
	}
	s.mu.Unlock()

	s.emit(notes...)
}

func (s *Session) presenceNoticeLocked() notice {
	st := s.presence.State()
	return notice{hooks.EventPresenceChanged, map[string]any{
		"peer":     s.opts.Peer.ID,
		"isTyping": st.Typing,
		"isOnline": st.Online,
	}}
}

func (s *Session) transitionLocked(to State, err error) notice {
	from := s.state
	s.state = to
	data := map[string]any{"from": from.String(), "to": to.String()}
	if err != nil {
		data["error"] = err.Error()
	}
	s.log.Debug().Str("from", from.String()).Str("to", to.String()).Msg("state changed")
	return notice{hooks.EventStateChanged, data}
}

func (s *Session) emit(notes ...notice) {
	for _, n := range notes {
		s.hooks.Emit(context.WithoutCancel(s.ctx), n.event, s.id, n.data)
	}
}

func channelErrorNotice(err error) notice {
	return notice{hooks.EventChannelError, map[string]any{"error": err.Error()}}
}

func asChannelError(op string, err error) error {
	var chErr *domain.ChannelError
	if errors.As(err, &chErr) {
		return err
	}
	return &domain.ChannelError{Op: op, Err: err}
}
