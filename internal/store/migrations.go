package store

import "fmt"

// migrate creates all tables if they don't exist.
func (s *SQLiteStore) migrate() error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS contacts (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			is_group   INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id         TEXT PRIMARY KEY,
			chat_id    TEXT NOT NULL REFERENCES contacts(id),
			sender_id  TEXT,
			content    TEXT,
			timestamp  TIMESTAMP NOT NULL,
			is_deleted INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_chat ON messages(chat_id, timestamp)`,
		`CREATE TABLE IF NOT EXISTS views (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			criteria   TEXT NOT NULL,
			context    TEXT NOT NULL DEFAULT '',
			keywords   TEXT NOT NULL DEFAULT '[]',
			concepts   TEXT NOT NULL DEFAULT '[]',
			is_live    INTEGER NOT NULL DEFAULT 1,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS view_messages (
			id                  TEXT PRIMARY KEY,
			view_id             TEXT NOT NULL REFERENCES views(id) ON DELETE CASCADE,
			original_message_id TEXT NOT NULL,
			source_chat_id      TEXT NOT NULL,
			source_contact_name TEXT NOT NULL,
			source_chat_name    TEXT,
			is_from_group       INTEGER NOT NULL DEFAULT 0,
			relevance_score     REAL,
			added_at            TIMESTAMP NOT NULL,
			UNIQUE (view_id, original_message_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_view_messages_view ON view_messages(view_id, added_at)`,
	}

	for _, stmt := range ddl {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("creating schema: %w", err)
		}
	}
	return nil
}
