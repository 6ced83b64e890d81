package store

// migration represents a single schema migration.
type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered list of all schema migrations.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create transcripts",
		SQL: `
			CREATE TABLE transcripts (
				conversation_id TEXT PRIMARY KEY,
				self_id         TEXT NOT NULL DEFAULT '',
				peer_id         TEXT NOT NULL,
				saved_at        TEXT NOT NULL
			);

			CREATE INDEX idx_transcripts_peer ON transcripts (peer_id);

			CREATE TABLE transcript_messages (
				id              INTEGER PRIMARY KEY AUTOINCREMENT,
				conversation_id TEXT NOT NULL REFERENCES transcripts(conversation_id) ON DELETE CASCADE,
				position        INTEGER NOT NULL,
				message_id      TEXT NOT NULL DEFAULT '',
				sender_id       TEXT NOT NULL,
				body            TEXT NOT NULL,
				sent_at         TEXT NOT NULL
			);

			CREATE INDEX idx_transcript_messages_conv ON transcript_messages (conversation_id, position);
		`,
	},
	{
		Version: 2,
		Name:    "full-text search over transcript bodies",
		SQL: `
			CREATE VIRTUAL TABLE transcript_fts USING fts5(
				body,
				content='transcript_messages',
				content_rowid='id'
			);

			CREATE TRIGGER transcript_messages_ai AFTER INSERT ON transcript_messages BEGIN
				INSERT INTO transcript_fts(rowid, body) VALUES (new.id, new.body);
			END;

			CREATE TRIGGER transcript_messages_ad AFTER DELETE ON transcript_messages BEGIN
				INSERT INTO transcript_fts(transcript_fts, rowid, body) VALUES ('delete', old.id, old.body);
			END;
		`,
	},
}
