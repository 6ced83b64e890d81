package hooks

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/parley/internal/logging"
)

func testManager() *Manager {
	m := NewManager(logging.Nop())
	m.now = func() time.Time { return time.Unix(100, 0) }
	return m
}

func noop(context.Context, Payload) error { return nil }

func TestOnAndEmit(t *testing.T) {
	m := testManager()

	var got Payload
	m.On(EventSessionStart, "test", func(_ context.Context, p Payload) error {
		got = p
		return nil
	})

	m.Emit(context.Background(), EventSessionStart, "s1", map[string]any{"peer": "bob"})
	assert.Equal(t, EventSessionStart, got.Event)
	assert.Equal(t, "s1", got.Session)
	assert.Equal(t, time.Unix(100, 0), got.At)
	assert.Equal(t, "bob", got.Data["peer"])
}

func TestEmitOrderSpecificThenWildcard(t *testing.T) {
	m := testManager()

	var order []string
	m.On(AnyEvent, "any", func(_ context.Context, _ Payload) error {
		order = append(order, "any")
		return nil
	})
	m.On(EventMessageReceived, "first", func(_ context.Context, _ Payload) error {
		order = append(order, "first")
		return nil
	})
	m.On(EventMessageReceived, "second", func(_ context.Context, _ Payload) error {
		order = append(order, "second")
		return nil
	})

	m.Emit(context.Background(), EventMessageReceived, "", nil)
	assert.Equal(t, []string{"first", "second", "any"}, order)

	order = nil
	m.Emit(context.Background(), EventSessionEnd, "", nil)
	assert.Equal(t, []string{"any"}, order)
}

func TestEmitHandlerErrorContinues(t *testing.T) {
	m := testManager()

	var secondCalled bool
	m.On(EventChannelError, "failing", func(_ context.Context, _ Payload) error {
		return errors.New("handler broke")
	})
	m.On(EventChannelError, "second", func(_ context.Context, _ Payload) error {
		secondCalled = true
		return nil
	})

	m.Emit(context.Background(), EventChannelError, "s1", nil)
	assert.True(t, secondCalled)
}

func TestEmitNoHandlers(t *testing.T) {
	m := testManager()
	assert.NotPanics(t, func() {
		m.Emit(context.Background(), EventSessionEnd, "s1", nil)
	})
}

func TestOff(t *testing.T) {
	m := testManager()

	var removed, kept int
	m.On(EventStateChanged, "remove-me", func(_ context.Context, _ Payload) error {
		removed++
		return nil
	})
	m.On(EventStateChanged, "keep-me", func(_ context.Context, _ Payload) error {
		kept++
		return nil
	})

	m.Emit(context.Background(), EventStateChanged, "", nil)
	m.Off(EventStateChanged, "remove-me")
	m.Emit(context.Background(), EventStateChanged, "", nil)

	assert.Equal(t, 1, removed)
	assert.Equal(t, 2, kept)
}

func TestEmitAsync(t *testing.T) {
	m := testManager()

	var count atomic.Int32
	var wg sync.WaitGroup
	wg.Add(2)

	for _, name := range []string{"async1", "async2"} {
		m.On(EventMessageSending, name, func(_ context.Context, _ Payload) error {
			count.Add(1)
			wg.Done()
			return nil
		})
	}

	m.EmitAsync(context.Background(), EventMessageSending, "s1", nil)

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("async handlers did not complete in time")
	}

	assert.Equal(t, int32(2), count.Load())
}

func TestCountAndEvents(t *testing.T) {
	m := testManager()
	assert.Equal(t, 0, m.Count(EventTimelineSeeded))

	m.On(EventTimelineSeeded, "h1", noop)
	m.On(EventTimelineSeeded, "h2", noop)
	m.On(EventHistoryFailed, "h3", noop)
	assert.Equal(t, 2, m.Count(EventTimelineSeeded))

	assert.Equal(t, []string{EventHistoryFailed, EventTimelineSeeded}, m.Events())

	m.Off(EventHistoryFailed, "h3")
	assert.Equal(t, []string{EventTimelineSeeded}, m.Events())
}

func TestKnown(t *testing.T) {
	require.NotEmpty(t, AllEvents)
	for _, e := range AllEvents {
		assert.True(t, Known(e), e)
	}
	assert.False(t, Known("gateway_start"))
	assert.False(t, Known(AnyEvent))
}
