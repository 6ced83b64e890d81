// Package history loads the persisted messages of a conversation.
package history

import (
	"context"
	"fmt"
	"sort"

	"github.com/soyeahso/parley/internal/api"
	"github.com/soyeahso/parley/internal/domain"
	"github.com/soyeahso/parley/internal/logging"
)

// Source returns the raw persisted messages of a conversation.
type Source interface {
	Messages(ctx context.Context, conversationID string) ([]api.Message, error)
}

// Loader normalizes a Source's records into domain messages.
type Loader struct {
	src Source
	log *logging.Logger
}

// New creates a Loader.
func New(src Source, log *logging.Logger) *Loader {
	return &Loader{src: src, log: log.Sub("history")}
}

// Load fetches the history of conversationID ordered by sentAt. Records with
// equal timestamps keep server order.
func (l *Loader) Load(ctx context.Context, conversationID string) ([]domain.Message, error) {
	raw, err := l.src.Messages(ctx, conversationID)
	if err != nil {
		return nil, &domain.HistoryLoadFailedError{ConversationID: conversationID, Err: err}
	}

	msgs := make([]domain.Message, 0, len(raw))
	for i, r := range raw {
		m, err := normalize(r, conversationID)
		if err != nil {
			return nil, &domain.HistoryLoadFailedError{
				ConversationID: conversationID,
				Err:            fmt.Errorf("record %d: %w", i, err),
			}
		}
		msgs = append(msgs, m)
	}

	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].SentAt.Before(msgs[j].SentAt)
	})

	l.log.Debug().Str("conversation", conversationID).Int("count", len(msgs)).Msg("history loaded")
	return msgs, nil
}

func normalize(r api.Message, conversationID string) (domain.Message, error) {
	if r.Key() == "" {
		return domain.Message{}, fmt.Errorf("message has no id")
	}
	sender, err := r.Sender.ID()
	if err != nil {
		return domain.Message{}, fmt.Errorf("message %s sender: %w", r.Key(), err)
	}
	conv := r.ConversationID
	if conv == "" {
		conv = conversationID
	}
	return domain.Message{
		ID:             r.Key(),
		SenderID:       sender,
		Body:           r.Text,
		SentAt:         r.CreatedAt,
		ConversationID: conv,
	}, nil
}
