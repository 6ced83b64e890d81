package history

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/parley/internal/api"
	"github.com/soyeahso/parley/internal/domain"
	"github.com/soyeahso/parley/internal/logging"
)

type sourceFunc func(ctx context.Context, id string) ([]api.Message, error)

func (f sourceFunc) Messages(ctx context.Context, id string) ([]api.Message, error) {
	return f(ctx, id)
}

func decode(t *testing.T, raw string) []api.Message {
	t.Helper()
	var msgs []api.Message
	require.NoError(t, json.Unmarshal([]byte(raw), &msgs))
	return msgs
}

func TestLoadNormalizesSender(t *testing.T) {
	records := decode(t, `[
		{"_id":"m1","sender":{"_id":"alice","name":"Alice"},"text":"hi","createdAt":"2026-01-02T10:00:00Z"},
		{"_id":"m2","sender":"bob","text":"hello","createdAt":"2026-01-02T10:00:01Z"}
	]`)
	l := New(sourceFunc(func(_ context.Context, id string) ([]api.Message, error) {
		assert.Equal(t, "c123", id)
		return records, nil
	}), logging.Nop())

	msgs, err := l.Load(context.Background(), "c123")
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	assert.Equal(t, "m1", msgs[0].ID)
	assert.Equal(t, "alice", msgs[0].SenderID)
	assert.Equal(t, "hi", msgs[0].Body)
	assert.Equal(t, "c123", msgs[0].ConversationID)
	assert.Equal(t, "bob", msgs[1].SenderID)
}

func TestLoadSortsStablyBySentAt(t *testing.T) {
	records := decode(t, `[
		{"_id":"late","sender":"a","text":"3","createdAt":"2026-01-02T10:00:09Z"},
		{"_id":"tie1","sender":"a","text":"1","createdAt":"2026-01-02T10:00:00Z"},
		{"_id":"tie2","sender":"b","text":"2","createdAt":"2026-01-02T10:00:00Z"}
	]`)
	l := New(sourceFunc(func(context.Context, string) ([]api.Message, error) {
		return records, nil
	}), logging.Nop())

	msgs, err := l.Load(context.Background(), "c1")
	require.NoError(t, err)

	ids := make([]string, len(msgs))
	for i, m := range msgs {
		ids[i] = m.ID
	}
	assert.Equal(t, []string{"tie1", "tie2", "late"}, ids)
}

func TestLoadEmpty(t *testing.T) {
	l := New(sourceFunc(func(context.Context, string) ([]api.Message, error) {
		return nil, nil
	}), logging.Nop())

	msgs, err := l.Load(context.Background(), "c1")
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestLoadFailure(t *testing.T) {
	cause := errors.New("connection reset")
	l := New(sourceFunc(func(context.Context, string) ([]api.Message, error) {
		return nil, cause
	}), logging.Nop())

	_, err := l.Load(context.Background(), "c1")
	var hf *domain.HistoryLoadFailedError
	require.True(t, errors.As(err, &hf))
	assert.Equal(t, "c1", hf.ConversationID)
	assert.ErrorIs(t, err, cause)
}

func TestLoadBadRecord(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"missing id", `[{"sender":"a","text":"x","createdAt":"2026-01-02T10:00:00Z"}]`},
		{"sender without id", `[{"_id":"m1","sender":{"name":"A"},"text":"x","createdAt":"2026-01-02T10:00:00Z"}]`},
		{"null sender", `[{"_id":"m1","sender":null,"text":"x","createdAt":"2026-01-02T10:00:00Z"}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records := decode(t, tt.raw)
			l := New(sourceFunc(func(context.Context, string) ([]api.Message, error) {
				return records, nil
			}), logging.Nop())

			_, err := l.Load(context.Background(), "c1")
			var hf *domain.HistoryLoadFailedError
			assert.True(t, errors.As(err, &hf))
		})
	}
}
