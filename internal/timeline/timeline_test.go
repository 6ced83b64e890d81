package timeline

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/parley/internal/domain"
)

var t0 = time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)

func at(sec int) time.Time { return t0.Add(time.Duration(sec) * time.Second) }

func newTimeline() *Timeline {
	return New(Options{ConversationID: "c123", PeerID: "bob"})
}

func peerMsg(id string, sec int, body string) domain.Message {
	return domain.Message{ID: id, SenderID: "bob", Body: body, SentAt: at(sec), ConversationID: "c123"}
}

func ownMsg(localID string, sec int, body string) domain.Message {
	return domain.Message{LocalID: localID, SenderID: "alice", Body: body, SentAt: at(sec), ConversationID: "c123"}
}

func ids(msgs []domain.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		if m.ID != "" {
			out[i] = m.ID
		} else {
			out[i] = "local:" + m.LocalID
		}
	}
	return out
}

func assertOrdered(t *testing.T, msgs []domain.Message) {
	t.Helper()
	for i := 1; i < len(msgs); i++ {
		assert.False(t, msgs[i].SentAt.Before(msgs[i-1].SentAt), "entry %d out of order", i)
	}
}

func TestNewDefaults(t *testing.T) {
	tl := newTimeline()
	assert.Equal(t, DefaultReconcileWindow, tl.opts.ReconcileWindow)
	assert.Zero(t, tl.Len())
	assert.False(t, tl.Seeded())
}

func TestAppendLiveDistinctIDs(t *testing.T) {
	tl := newTimeline()
	require.NoError(t, tl.Seed(nil))

	for i := 0; i < 20; i++ {
		assert.Equal(t, Appended, tl.AppendLive(peerMsg(fmt.Sprintf("m%d", i), i, "x")))
	}
	// Redeliveries are ignored.
	for i := 0; i < 20; i += 3 {
		assert.Equal(t, Duplicate, tl.AppendLive(peerMsg(fmt.Sprintf("m%d", i), i, "x")))
	}

	msgs := tl.Messages()
	require.Len(t, msgs, 20)
	seen := map[string]bool{}
	for _, m := range msgs {
		assert.False(t, seen[m.ID], "duplicate %s", m.ID)
		seen[m.ID] = true
	}
	assertOrdered(t, msgs)
}

func TestPreSeedBufferKeptInOrder(t *testing.T) {
	tl := newTimeline()

	tl.AppendLive(peerMsg("b", 5, "later"))
	tl.AppendLive(peerMsg("a", 1, "earlier"))
	tl.AppendLive(peerMsg("c", 5, "tie"))

	assert.Equal(t, []string{"a", "b", "c"}, ids(tl.Messages()))
}

func TestSeedFoldsBufferedLive(t *testing.T) {
	tl := newTimeline()

	// m3 arrives on the live channel before history resolves.
	require.Equal(t, Appended, tl.AppendLive(peerMsg("m3", 2, "three")))

	require.NoError(t, tl.Seed([]domain.Message{
		peerMsg("m2", 1, "two"),
		{ID: "m1", SenderID: "alice", Body: "one", SentAt: at(0), ConversationID: "c123"},
	}))

	assert.Equal(t, []string{"m1", "m2", "m3"}, ids(tl.Messages()))
	assert.True(t, tl.Seeded())
}

func TestSeedDedupsBufferedAgainstHistory(t *testing.T) {
	tl := newTimeline()
	tl.AppendLive(peerMsg("m2", 1, "two"))

	require.NoError(t, tl.Seed([]domain.Message{
		peerMsg("m1", 0, "one"),
		peerMsg("m2", 1, "two"),
		peerMsg("m2", 1, "two"),
	}))

	assert.Equal(t, []string{"m1", "m2"}, ids(tl.Messages()))
	assert.Equal(t, Duplicate, tl.AppendLive(peerMsg("m2", 1, "two")))
	assert.Equal(t, Duplicate, tl.AppendLive(peerMsg("m1", 0, "one")))
}

func TestSeedTiesPreferArrivalOrder(t *testing.T) {
	tl := newTimeline()
	tl.AppendLive(peerMsg("live", 3, "x"))

	require.NoError(t, tl.Seed([]domain.Message{
		peerMsg("h2", 3, "y"),
		peerMsg("h1", 3, "z"),
	}))

	// Live arrived before history; history keeps its own order among ties.
	assert.Equal(t, []string{"live", "h2", "h1"}, ids(tl.Messages()))
}

func TestSeedSortsUnorderedHistory(t *testing.T) {
	tl := newTimeline()
	require.NoError(t, tl.Seed([]domain.Message{
		peerMsg("c", 9, ""),
		peerMsg("a", 1, ""),
		peerMsg("b", 4, ""),
	}))
	msgs := tl.Messages()
	assert.Equal(t, []string{"a", "b", "c"}, ids(msgs))
	assertOrdered(t, msgs)
}

func TestSeedOnce(t *testing.T) {
	tl := newTimeline()
	require.NoError(t, tl.Seed([]domain.Message{peerMsg("m1", 0, "")}))
	assert.ErrorIs(t, tl.Seed([]domain.Message{peerMsg("m9", 0, "")}), ErrSeeded)
	assert.Equal(t, []string{"m1"}, ids(tl.Messages()))
}

func TestSeedSkipsHistoryWithoutID(t *testing.T) {
	tl := newTimeline()
	require.NoError(t, tl.Seed([]domain.Message{peerMsg("", 0, "ghost"), peerMsg("m1", 1, "")}))
	assert.Equal(t, []string{"m1"}, ids(tl.Messages()))
}

func TestLiveAfterSeedAppendsAtEnd(t *testing.T) {
	tl := newTimeline()
	require.NoError(t, tl.Seed([]domain.Message{peerMsg("m1", 10, ""), peerMsg("m2", 20, "")}))

	// A late-arriving message with an older timestamp is not reordered into the middle.
	assert.Equal(t, Appended, tl.AppendLive(peerMsg("m0", 5, "")))
	assert.Equal(t, []string{"m1", "m2", "m0"}, ids(tl.Messages()))
}

func TestAbandon(t *testing.T) {
	tl := newTimeline()
	tl.AppendLive(peerMsg("m5", 5, ""))
	tl.Abandon()

	assert.True(t, tl.Seeded())
	tl.AppendLive(peerMsg("m1", 1, ""))
	assert.Equal(t, []string{"m5", "m1"}, ids(tl.Messages()))
	assert.ErrorIs(t, tl.Seed(nil), ErrSeeded)
}

func TestRejectsForeignMessages(t *testing.T) {
	tl := newTimeline()
	tl.Abandon()

	foreign := domain.Message{ID: "x", SenderID: "carol", Body: "hi", SentAt: at(0), ConversationID: "c999"}
	assert.Equal(t, Rejected, tl.AppendLive(foreign))

	// From the peer but tagged with another conversation is still accepted.
	fromPeer := domain.Message{ID: "y", SenderID: "bob", Body: "hi", SentAt: at(1), ConversationID: "c999"}
	assert.Equal(t, Appended, tl.AppendLive(fromPeer))

	// Missing conversation id from the peer is filled in.
	bare := domain.Message{ID: "z", SenderID: "bob", Body: "yo", SentAt: at(2)}
	assert.Equal(t, Appended, tl.AppendLive(bare))

	msgs := tl.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "c123", msgs[1].ConversationID)
}

func TestOptimisticPromotedByEcho(t *testing.T) {
	tl := newTimeline()
	require.NoError(t, tl.Seed(nil))

	assert.Equal(t, Appended, tl.AppendLive(ownMsg("l1", 0, "hi")))
	assert.Equal(t, Appended, tl.AppendLive(peerMsg("m1", 1, "hello")))

	echo := domain.Message{ID: "s1", SenderID: "alice", Body: "hi", SentAt: at(2), ConversationID: "c123"}
	assert.Equal(t, Promoted, tl.AppendLive(echo))

	msgs := tl.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "s1", msgs[0].ID)
	assert.Equal(t, "l1", msgs[0].LocalID)
	assert.Equal(t, at(0), msgs[0].SentAt)

	assert.Equal(t, Duplicate, tl.AppendLive(echo))
}

func TestOptimisticPromotionOldestWins(t *testing.T) {
	tl := newTimeline()
	require.NoError(t, tl.Seed(nil))

	tl.AppendLive(ownMsg("l1", 0, "ok"))
	tl.AppendLive(ownMsg("l2", 1, "ok"))

	tl.AppendLive(domain.Message{ID: "s1", SenderID: "alice", Body: "ok", SentAt: at(1), ConversationID: "c123"})
	tl.AppendLive(domain.Message{ID: "s2", SenderID: "alice", Body: "ok", SentAt: at(2), ConversationID: "c123"})

	msgs := tl.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "s1", msgs[0].ID)
	assert.Equal(t, "l1", msgs[0].LocalID)
	assert.Equal(t, "s2", msgs[1].ID)
	assert.Equal(t, "l2", msgs[1].LocalID)
}

func TestOptimisticOutsideWindowNotPromoted(t *testing.T) {
	tl := New(Options{ConversationID: "c123", PeerID: "bob", ReconcileWindow: time.Second})
	require.NoError(t, tl.Seed(nil))

	tl.AppendLive(ownMsg("l1", 0, "hi"))
	out := tl.AppendLive(domain.Message{ID: "s1", SenderID: "alice", Body: "hi", SentAt: at(60), ConversationID: "c123"})

	assert.Equal(t, Appended, out)
	assert.Equal(t, []string{"local:l1", "s1"}, ids(tl.Messages()))
}

func TestSeedPromotesBufferedOptimistic(t *testing.T) {
	tl := newTimeline()
	tl.AppendLive(ownMsg("l1", 5, "sent early"))

	require.NoError(t, tl.Seed([]domain.Message{
		peerMsg("m1", 0, "one"),
		{ID: "s1", SenderID: "alice", Body: "sent early", SentAt: at(6), ConversationID: "c123"},
	}))

	msgs := tl.Messages()
	assert.Equal(t, []string{"m1", "s1"}, ids(msgs))
	assert.Equal(t, "l1", msgs[1].LocalID)
	assert.False(t, tl.Remove("l1"))
}

func TestRemove(t *testing.T) {
	tl := newTimeline()
	require.NoError(t, tl.Seed([]domain.Message{peerMsg("m1", 0, "")}))

	tl.AppendLive(ownMsg("l1", 1, "oops"))
	require.Equal(t, 2, tl.Len())

	assert.True(t, tl.Remove("l1"))
	assert.False(t, tl.Remove("l1"))
	assert.False(t, tl.Remove(""))
	assert.Equal(t, []string{"m1"}, ids(tl.Messages()))
}

func TestMessagesReturnsCopy(t *testing.T) {
	tl := newTimeline()
	tl.AppendLive(peerMsg("m1", 0, "orig"))

	msgs := tl.Messages()
	msgs[0].Body = "changed"
	assert.Equal(t, "orig", tl.Messages()[0].Body)
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "appended", Appended.String())
	assert.Equal(t, "duplicate", Duplicate.String())
	assert.Equal(t, "promoted", Promoted.String())
	assert.Equal(t, "rejected", Rejected.String())
	assert.Equal(t, "unknown", Outcome(0).String())
}

func TestBindBeforeResolution(t *testing.T) {
	tl := New(Options{PeerID: "bob"})

	// Unbound: only the peer is accepted, even with an empty conversation id.
	assert.Equal(t, Rejected, tl.AppendLive(domain.Message{ID: "x", SenderID: "carol", SentAt: at(0)}))
	assert.Equal(t, Appended, tl.AppendLive(domain.Message{ID: "m1", SenderID: "bob", SentAt: at(1)}))

	tl.Bind("c123")
	assert.Equal(t, "c123", tl.Messages()[0].ConversationID)

	own := ownMsg("l1", 2, "hi")
	assert.Equal(t, Appended, tl.AppendLive(own))
	assert.Equal(t, 2, tl.Len())
}
