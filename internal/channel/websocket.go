package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"golang.org/x/oauth2"

	"github.com/soyeahso/parley/internal/domain"
	"github.com/soyeahso/parley/internal/logging"
)

// Options configures a WSChannel.
type Options struct {
	URL              string
	Tokens           oauth2.TokenSource // optional; attached as Authorization on dial
	SendPolicy       SendPolicy
	QueueSize        int
	PingInterval     time.Duration // 0 disables keepalive
	WriteTimeout     time.Duration
	HandshakeTimeout time.Duration
}

// WSChannel is a Channel over a single gorilla/websocket connection.
type WSChannel struct {
	opts     Options
	dialer   *websocket.Dialer
	validate *validator.Validate
	log      *logging.Logger
	now      func() time.Time

	mu      sync.Mutex
	conn    *websocket.Conn
	stop    chan struct{} // closes the keepalive loop of the current conn
	user    domain.UserIdentity
	handler Handler
	queue   []Frame
	seq     int64
	opened  bool
	closed  bool
}

// NewWebSocket creates an unopened websocket channel.
func NewWebSocket(opts Options, log *logging.Logger) *WSChannel {
	if opts.SendPolicy == "" {
		opts.SendPolicy = PolicyQueue
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	if opts.HandshakeTimeout == 0 {
		opts.HandshakeTimeout = 10 * time.Second
	}
	return &WSChannel{
		opts: opts,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: opts.HandshakeTimeout,
			ReadBufferSize:   4096,
			WriteBufferSize:  4096,
		},
		validate: validator.New(),
		log:      log.Sub("channel"),
		now:      time.Now,
	}
}

// OnEvent registers the inbound handler. A nil handler detaches.
func (c *WSChannel) OnEvent(h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = h
}

// Connected reports whether a live connection is held.
func (c *WSChannel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Pending returns the number of frames waiting for a connection.
func (c *WSChannel) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// Open dials the backend and sends the join directive for user.
func (c *WSChannel) Open(ctx context.Context, user domain.UserIdentity) error {
	if user.ID == "" {
		return fmt.Errorf("channel open: user id is required")
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.opened {
		c.mu.Unlock()
		return ErrAlreadyOpen
	}
	c.opened = true
	c.user = user
	c.mu.Unlock()

	return c.connect(ctx)
}

// Reconnect re-dials after a connection loss. It is a no-op while connected.
func (c *WSChannel) Reconnect(ctx context.Context) error {
	c.mu.Lock()
	switch {
	case c.closed:
		c.mu.Unlock()
		return ErrClosed
	case !c.opened:
		c.mu.Unlock()
		return ErrNotOpen
	case c.conn != nil:
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	return c.connect(ctx)
}

func (c *WSChannel) connect(ctx context.Context) error {
	header := http.Header{}
	if c.opts.Tokens != nil {
		tok, err := c.opts.Tokens.Token()
		if err != nil {
			return &domain.ChannelError{Op: "token", Err: err}
		}
		header.Set("Authorization", tok.Type()+" "+tok.AccessToken)
	}

	conn, _, err := c.dialer.DialContext(ctx, c.opts.URL, header)
	if err != nil {
		return &domain.ChannelError{Op: "dial", Err: err}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		conn.Close()
		return ErrClosed
	}

	join, err := c.frameLocked(JoinEvent, JoinPayload{UserID: c.user.ID})
	if err != nil {
		conn.Close()
		return err
	}
	if err := c.writeLocked(conn, join); err != nil {
		conn.Close()
		return &domain.ChannelError{Op: "join", Err: err}
	}

	c.conn = conn
	c.stop = make(chan struct{})
	c.armReadDeadline(conn)
	go c.readLoop(conn)
	if c.opts.PingInterval > 0 {
		go c.keepalive(conn, c.stop)
	}

	c.log.Info().
		Str("url", c.opts.URL).
		Str("user", c.user.ID).
		Int("queued", len(c.queue)).
		Msg("channel connected")

	return c.flushLocked()
}

// flushLocked writes queued frames in order. On failure the connection is
// dropped and the unsent frames stay queued.
func (c *WSChannel) flushLocked() error {
	for len(c.queue) > 0 {
		if err := c.writeLocked(c.conn, c.queue[0]); err != nil {
			c.dropLocked()
			return &domain.ChannelError{Op: "flush", Err: err}
		}
		c.queue = c.queue[1:]
	}
	c.queue = nil
	return nil
}

// Send emits a named event with payload.
func (c *WSChannel) Send(ctx context.Context, event string, payload any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}

	f, err := c.frameLocked(event, payload)
	if err != nil {
		return err
	}

	if c.conn == nil {
		switch c.opts.SendPolicy {
		case PolicyReject:
			return &domain.ChannelError{Op: "send", Err: ErrDisconnected}
		default:
			if len(c.queue) >= c.opts.QueueSize {
				return &domain.ChannelError{Op: "send", Err: ErrQueueFull}
			}
			c.queue = append(c.queue, f)
			c.log.Debug().Str("event", event).Int("queued", len(c.queue)).Msg("queued frame while disconnected")
			return nil
		}
	}

	if err := c.writeLocked(c.conn, f); err != nil {
		c.dropLocked()
		return &domain.ChannelError{Op: "send", Err: err}
	}
	return nil
}

// Close releases the connection. It is safe to call more than once.
func (c *WSChannel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.handler = nil
	c.queue = nil
	conn := c.conn
	c.conn = nil
	if c.stop != nil {
		close(c.stop)
		c.stop = nil
	}
	c.mu.Unlock()

	if conn == nil {
		return nil
	}

	c.log.Info().Str("user", c.user.ID).Msg("closing channel")
	deadline := c.now().Add(c.opts.WriteTimeout)
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	return conn.Close()
}

func (c *WSChannel) frameLocked(event string, payload any) (Frame, error) {
	c.seq++
	f, err := NewEvent(event, payload, c.seq)
	if err != nil {
		return Frame{}, fmt.Errorf("encoding %s: %w", event, err)
	}
	return f, nil
}

func (c *WSChannel) writeLocked(conn *websocket.Conn, f Frame) error {
	if err := conn.SetWriteDeadline(c.now().Add(c.opts.WriteTimeout)); err != nil {
		return err
	}
	return conn.WriteJSON(f)
}

// dropLocked forgets the current connection without notifying the handler.
func (c *WSChannel) dropLocked() {
	if c.stop != nil {
		close(c.stop)
		c.stop = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

func (c *WSChannel) armReadDeadline(conn *websocket.Conn) {
	if c.opts.PingInterval <= 0 {
		return
	}
	wait := c.opts.PingInterval + c.opts.WriteTimeout
	conn.SetReadDeadline(c.now().Add(wait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(c.now().Add(wait))
	})
}

func (c *WSChannel) keepalive(conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			deadline := c.now().Add(c.opts.WriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				c.log.Debug().Err(err).Msg("ping failed")
				return
			}
		}
	}
}

// readLoop decodes frames from conn until it fails. A failure on the current
// connection that was not caused by Close is reported once as KindError.
func (c *WSChannel) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			current := c.conn == conn
			if current {
				c.dropLocked()
			}
			closed := c.closed
			h := c.handler
			c.mu.Unlock()

			if current && !closed {
				c.log.Warn().Err(err).Msg("channel connection lost")
				if h != nil {
					h(Event{Kind: KindError, Err: &domain.ChannelError{Op: "read", Err: err}})
				}
			}
			return
		}

		evt, ok := c.decode(data)
		if !ok {
			continue
		}

		c.mu.Lock()
		h := c.handler
		c.mu.Unlock()
		if h != nil {
			h(evt)
		}
	}
}

func (c *WSChannel) decode(data []byte) (Event, bool) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		c.log.Warn().Err(err).Msg("invalid frame")
		return Event{}, false
	}

	switch f.Event {
	case ReceiveMessageEvent:
		var p ReceiveMessagePayload
		if !c.unmarshal(f, &p) {
			return Event{}, false
		}
		return Event{Kind: KindPeerMessage, Message: p.ToMessage(c.now())}, true

	case UserTypingEvent:
		var p UserTypingPayload
		if !c.unmarshal(f, &p) {
			return Event{}, false
		}
		return Event{Kind: KindPeerTyping, PeerID: p.UserID, Typing: p.IsTyping}, true

	case UserStatusEvent:
		var p UserStatusPayload
		if !c.unmarshal(f, &p) {
			return Event{}, false
		}
		return Event{Kind: KindPeerStatus, PeerID: p.UserID, Online: p.IsOnline}, true

	default:
		c.log.Debug().Str("event", f.Event).Msg("ignoring unknown event")
		return Event{}, false
	}
}

func (c *WSChannel) unmarshal(f Frame, target any) bool {
	if err := json.Unmarshal(f.Payload, target); err != nil {
		c.log.Warn().Err(err).Str("event", f.Event).Msg("invalid payload")
		return false
	}
	if err := c.validate.Struct(target); err != nil {
		c.log.Warn().Err(err).Str("event", f.Event).Msg("payload failed validation")
		return false
	}
	return true
}
