// Package store provides the SQLite storage layer for Viewscope.
//
// All data lives in a single SQLite database file, including:
// - The message corpus (contacts/chats and messages) with provenance joins
// - Dynamic views and their member records (view_messages)
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// DefaultDBPath is the default database location.
const DefaultDBPath = "~/.viewscope/viewscope.db"

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Contact is a person or group chat identity. Chats are keyed by contact:
// a direct chat's id is the contact's id, a group chat's id is the group's.
type Contact struct {
	ID        string
	Name      string
	IsGroup   bool
	CreatedAt time.Time
}

// Message is one message in the corpus.
type Message struct {
	ID        string
	ChatID    string
	SenderID  string // empty = sent by the local user
	Content   string
	Timestamp time.Time
}

// MessageWithContext is a message annotated with display provenance resolved
// at read time: who sent it and which chat it belongs to.
type MessageWithContext struct {
	Message
	ContactName string // sender display name; "Me" for local-user messages
	ChatName    string
	IsGroup     bool
}

// View is a named, live-updating collection of messages matching free-text
// criteria. Keywords and concepts are persisted as JSON arrays.
type View struct {
	ID           string
	Name         string
	Criteria     string // immutable after creation
	Context      string
	Keywords     []string
	Concepts     []string
	IsLive       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
	MessageCount int // populated on reads, not stored
}

// ViewMessage links one message to one view, with the relevance score and a
// snapshot of provenance taken at match time. It never owns the message.
type ViewMessage struct {
	ID                string
	ViewID            string
	OriginalMessageID string
	SourceChatID      string
	SourceContactName string
	SourceChatName    *string // set only for group-chat matches
	IsFromGroup       bool
	RelevanceScore    *float64 // nil for keyword-fallback matches without a score
	AddedAt           time.Time
}

// Store defines the storage interface consumed by the view engine.
type Store interface {
	// Corpus
	AddContact(ctx context.Context, c *Contact) error
	AddMessage(ctx context.Context, m *Message) error
	MessagesWithContext(ctx context.Context) ([]MessageWithContext, error)
	GetMessageWithContext(ctx context.Context, id string) (*MessageWithContext, error)
	CountMessages(ctx context.Context) (int64, error)

	// Views
	CreateViewWithMessages(ctx context.Context, v *View, members []*ViewMessage) error
	GetView(ctx context.Context, id string) (*View, error)
	ListViews(ctx context.Context) ([]*View, error)
	ListLiveViews(ctx context.Context) ([]*View, error)
	UpdateView(ctx context.Context, id string, upd ViewUpdate) (*View, error)
	DeleteView(ctx context.Context, id string) error
	DeleteAllViews(ctx context.Context) error

	// View membership
	AddViewMessage(ctx context.Context, vm *ViewMessage) (bool, error)
	IsMessageInView(ctx context.Context, viewID, messageID string) (bool, error)
	ViewMessages(ctx context.Context, viewID string) ([]*ViewMessage, error)

	Close() error
}

// ViewUpdate describes a partial view update. Nil fields are left unchanged.
type ViewUpdate struct {
	Name   *string
	IsLive *bool
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// StoreConfig holds configuration for NewStore.
type StoreConfig struct {
	DBPath string
}

// NewStore creates a new SQLite-backed Store.
// Pass ":memory:" for in-memory databases (testing).
func NewStore(cfg StoreConfig) (Store, error) {
	if cfg.DBPath == "" {
		cfg.DBPath = expandPath(DefaultDBPath)
	}

	if cfg.DBPath != ":memory:" {
		dir := filepath.Dir(cfg.DBPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Cascade delete of view_messages depends on foreign_keys being ON.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}

	s := &SQLiteStore{db: db, dbPath: cfg.DBPath}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// expandPath expands ~ to home directory.
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
