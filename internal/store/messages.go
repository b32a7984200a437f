package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// AddContact inserts a contact (person or group chat).
func (s *SQLiteStore) AddContact(ctx context.Context, c *Contact) error {
	if c.ID == "" || c.Name == "" {
		return fmt.Errorf("contact id and name are required")
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO contacts (id, name, is_group, created_at) VALUES (?, ?, ?, ?)`,
		c.ID, c.Name, boolToInt(c.IsGroup), c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting contact: %w", err)
	}
	return nil
}

// AddMessage inserts a message into the corpus.
func (s *SQLiteStore) AddMessage(ctx context.Context, m *Message) error {
	if m.ID == "" || m.ChatID == "" {
		return fmt.Errorf("message id and chat id are required")
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}
	var senderID sql.NullString
	if m.SenderID != "" {
		senderID = sql.NullString{String: m.SenderID, Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, chat_id, sender_id, content, timestamp) VALUES (?, ?, ?, ?, ?)`,
		m.ID, m.ChatID, senderID, m.Content, m.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("inserting message: %w", err)
	}
	return nil
}

const messageContextSelect = `
	SELECT m.id, m.chat_id, COALESCE(m.sender_id, ''), COALESCE(m.content, ''), m.timestamp,
	       CASE
	         WHEN m.sender_id IS NULL OR m.sender_id = '' THEN 'Me'
	         ELSE COALESCE(sender.name, c.name)
	       END AS contact_name,
	       c.name AS chat_name,
	       c.is_group
	FROM messages m
	JOIN contacts c ON c.id = m.chat_id
	LEFT JOIN contacts sender ON sender.id = m.sender_id
	WHERE m.is_deleted = 0`

// MessagesWithContext returns every non-deleted message with its resolved
// sender and chat names, ordered by timestamp. This is the corpus the view
// engine analyzes.
func (s *SQLiteStore) MessagesWithContext(ctx context.Context) ([]MessageWithContext, error) {
	rows, err := s.db.QueryContext(ctx, messageContextSelect+" ORDER BY m.timestamp ASC")
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var messages []MessageWithContext
	for rows.Next() {
		var m MessageWithContext
		var isGroup int
		if err := rows.Scan(&m.ID, &m.ChatID, &m.SenderID, &m.Content, &m.Timestamp,
			&m.ContactName, &m.ChatName, &isGroup); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		m.IsGroup = isGroup != 0
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// GetMessageWithContext returns one non-deleted message with provenance.
func (s *SQLiteStore) GetMessageWithContext(ctx context.Context, id string) (*MessageWithContext, error) {
	var m MessageWithContext
	var isGroup int
	err := s.db.QueryRowContext(ctx, messageContextSelect+" AND m.id = ?", id).
		Scan(&m.ID, &m.ChatID, &m.SenderID, &m.Content, &m.Timestamp,
			&m.ContactName, &m.ChatName, &isGroup)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying message %s: %w", id, err)
	}
	m.IsGroup = isGroup != 0
	return &m, nil
}

// CountMessages returns the number of non-deleted messages in the corpus.
func (s *SQLiteStore) CountMessages(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM messages WHERE is_deleted = 0").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting messages: %w", err)
	}
	return count, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
