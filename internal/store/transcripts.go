package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/soyeahso/parley/internal/domain"
)

// timeFormat is fixed-width so stored timestamps sort lexically.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// ErrNotFound is returned when no transcript exists for a conversation.
var ErrNotFound = errors.New("transcript not found")

// TranscriptSummary describes one archived conversation.
type TranscriptSummary struct {
	ConversationID string    `json:"conversationId"`
	SelfID         string    `json:"selfId,omitempty"`
	PeerID         string    `json:"peerId"`
	SavedAt        time.Time `json:"savedAt"`
	Messages       int       `json:"messages"`
}

// SearchHit is one archived message matching a full-text query.
type SearchHit struct {
	ConversationID string    `json:"conversationId"`
	MessageID      string    `json:"messageId,omitempty"`
	SenderID       string    `json:"senderId"`
	Body           string    `json:"body"`
	SentAt         time.Time `json:"sentAt"`
	Rank           float64   `json:"rank"`
}

// SaveTranscript replaces the archived transcript of h with msgs, in order.
func (db *DB) SaveTranscript(h domain.ConversationHandle, selfID string, msgs []domain.Message) error {
	if h.ID == "" {
		return fmt.Errorf("conversation id is required")
	}
	peerID := h.Other(selfID)

	tx, err := db.sql.Begin()
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM transcript_messages WHERE conversation_id = ?`, h.ID); err != nil {
		return fmt.Errorf("clearing transcript %s: %w", h.ID, err)
	}

	_, err = tx.Exec(
		`INSERT INTO transcripts (conversation_id, self_id, peer_id, saved_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(conversation_id) DO UPDATE SET
		   self_id = excluded.self_id,
		   peer_id = excluded.peer_id,
		   saved_at = excluded.saved_at`,
		h.ID, selfID, peerID, db.now().UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("saving transcript %s: %w", h.ID, err)
	}

	stmt, err := tx.Prepare(
		`INSERT INTO transcript_messages (conversation_id, position, message_id, sender_id, body, sent_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, m := range msgs {
		if _, err := stmt.Exec(h.ID, i, m.ID, m.SenderID, m.Body, m.SentAt.UTC().Format(timeFormat)); err != nil {
			return fmt.Errorf("saving message %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}

	db.log.Debug().Str("conversation", h.ID).Int("messages", len(msgs)).Msg("transcript saved")
	return nil
}

// ListTranscripts returns every archived conversation, most recent first.
func (db *DB) ListTranscripts() ([]TranscriptSummary, error) {
	rows, err := db.sql.Query(
		`SELECT t.conversation_id, t.self_id, t.peer_id, t.saved_at, COUNT(m.id)
		 FROM transcripts t
		 LEFT JOIN transcript_messages m ON m.conversation_id = t.conversation_id
		 GROUP BY t.conversation_id
		 ORDER BY t.saved_at DESC, t.conversation_id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TranscriptSummary
	for rows.Next() {
		var s TranscriptSummary
		var savedAt string
		if err := rows.Scan(&s.ConversationID, &s.SelfID, &s.PeerID, &savedAt, &s.Messages); err != nil {
			return nil, err
		}
		s.SavedAt, _ = time.Parse(timeFormat, savedAt)
		out = append(out, s)
	}
	return out, rows.Err()
}

// Transcript returns the archived messages of conversationID in their saved
// order.
func (db *DB) Transcript(conversationID string) ([]domain.Message, error) {
	var exists int
	err := db.sql.QueryRow(`SELECT 1 FROM transcripts WHERE conversation_id = ?`, conversationID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := db.sql.Query(
		`SELECT message_id, sender_id, body, sent_at
		 FROM transcript_messages WHERE conversation_id = ? ORDER BY position`, conversationID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	msgs := []domain.Message{}
	for rows.Next() {
		m := domain.Message{ConversationID: conversationID}
		var sentAt string
		if err := rows.Scan(&m.ID, &m.SenderID, &m.Body, &sentAt); err != nil {
			return nil, err
		}
		m.SentAt, _ = time.Parse(timeFormat, sentAt)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// Search finds archived messages matching an FTS5 query, best match first.
// Limit of 0 defaults to 20.
func (db *DB) Search(query string, limit int) ([]SearchHit, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := db.sql.Query(
		`SELECT m.conversation_id, m.message_id, m.sender_id, m.body, m.sent_at, rank
		 FROM transcript_fts
		 JOIN transcript_messages m ON m.id = transcript_fts.rowid
		 WHERE transcript_fts MATCH ?
		 ORDER BY rank
		 LIMIT ?`,
		query, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []SearchHit
	for rows.Next() {
		var h SearchHit
		var sentAt string
		if err := rows.Scan(&h.ConversationID, &h.MessageID, &h.SenderID, &h.Body, &sentAt, &h.Rank); err != nil {
			return nil, err
		}
		h.SentAt, _ = time.Parse(timeFormat, sentAt)
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// DeleteTranscript removes an archived conversation.
func (db *DB) DeleteTranscript(conversationID string) error {
	tx, err := db.sql.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM transcript_messages WHERE conversation_id = ?`, conversationID); err != nil {
		return err
	}
	res, err := tx.Exec(`DELETE FROM transcripts WHERE conversation_id = ?`, conversationID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}
