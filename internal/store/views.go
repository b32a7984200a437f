package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// CreateViewWithMessages persists a view and its initial member batch in one
// transaction: either the view and every member land, or nothing does.
// UpdatedAt is bumped exactly once for the whole batch.
func (s *SQLiteStore) CreateViewWithMessages(ctx context.Context, v *View, members []*ViewMessage) error {
	if v.ID == "" {
		return fmt.Errorf("view id is required")
	}
	if strings.TrimSpace(v.Criteria) == "" {
		return fmt.Errorf("view criteria cannot be empty")
	}

	now := time.Now().UTC()
	if v.CreatedAt.IsZero() {
		v.CreatedAt = now
	}
	v.UpdatedAt = v.CreatedAt

	keywords, err := encodeStrings(v.Keywords)
	if err != nil {
		return fmt.Errorf("encoding keywords: %w", err)
	}
	concepts, err := encodeStrings(v.Concepts)
	if err != nil {
		return fmt.Errorf("encoding concepts: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO views (id, name, criteria, context, keywords, concepts, is_live, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.Name, v.Criteria, v.Context, keywords, concepts, boolToInt(v.IsLive), v.CreatedAt, v.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting view: %w", err)
	}

	for _, vm := range members {
		if vm.AddedAt.IsZero() {
			vm.AddedAt = now
		}
		vm.ViewID = v.ID
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO view_messages
			 (id, view_id, original_message_id, source_chat_id, source_contact_name, source_chat_name, is_from_group, relevance_score, added_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			vm.ID, vm.ViewID, vm.OriginalMessageID, vm.SourceChatID, vm.SourceContactName,
			vm.SourceChatName, boolToInt(vm.IsFromGroup), vm.RelevanceScore, vm.AddedAt,
		); err != nil {
			return fmt.Errorf("inserting view message %s: %w", vm.OriginalMessageID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing view creation: %w", err)
	}

	v.MessageCount = len(members)
	return nil
}

const viewSelect = `
	SELECT v.id, v.name, v.criteria, v.context, v.keywords, v.concepts, v.is_live,
	       v.created_at, v.updated_at,
	       (SELECT COUNT(*) FROM view_messages vm WHERE vm.view_id = v.id) AS message_count
	FROM views v`

// GetView returns a single view with its live message count.
func (s *SQLiteStore) GetView(ctx context.Context, id string) (*View, error) {
	v, err := scanView(s.db.QueryRowContext(ctx, viewSelect+" WHERE v.id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying view %s: %w", id, err)
	}
	return v, nil
}

// ListViews returns all views with message counts, newest first.
func (s *SQLiteStore) ListViews(ctx context.Context) ([]*View, error) {
	return s.listViews(ctx, viewSelect+" ORDER BY v.created_at DESC")
}

// ListLiveViews returns views with the live flag set; every new message is
// checked against these.
func (s *SQLiteStore) ListLiveViews(ctx context.Context) ([]*View, error) {
	return s.listViews(ctx, viewSelect+" WHERE v.is_live = 1 ORDER BY v.created_at DESC")
}

func (s *SQLiteStore) listViews(ctx context.Context, query string) ([]*View, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing views: %w", err)
	}
	defer rows.Close()

	var views []*View
	for rows.Next() {
		v, err := scanView(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning view: %w", err)
		}
		views = append(views, v)
	}
	return views, rows.Err()
}

// UpdateView applies a partial update (rename, live-flag toggle) and returns
// the updated view. Criteria is immutable and cannot be updated.
func (s *SQLiteStore) UpdateView(ctx context.Context, id string, upd ViewUpdate) (*View, error) {
	sets := []string{"updated_at = ?"}
	args := []any{time.Now().UTC()}

	if upd.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *upd.Name)
	}
	if upd.IsLive != nil {
		sets = append(sets, "is_live = ?")
		args = append(args, boolToInt(*upd.IsLive))
	}
	args = append(args, id)

	result, err := s.db.ExecContext(ctx,
		"UPDATE views SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return nil, fmt.Errorf("updating view: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return nil, ErrNotFound
	}
	return s.GetView(ctx, id)
}

// DeleteView removes a view; its view_messages cascade away with it.
func (s *SQLiteStore) DeleteView(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM views WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting view: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteAllViews removes every view and, by cascade, every membership record.
func (s *SQLiteStore) DeleteAllViews(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM views"); err != nil {
		return fmt.Errorf("deleting all views: %w", err)
	}
	return nil
}

// AddViewMessage inserts a membership record for the live path. The
// (view_id, original_message_id) unique index makes duplicate concurrent
// checks harmless: the second insert is ignored and reported as false. The
// owning view's updated_at is bumped only when a row was actually inserted.
func (s *SQLiteStore) AddViewMessage(ctx context.Context, vm *ViewMessage) (bool, error) {
	if vm.AddedAt.IsZero() {
		vm.AddedAt = time.Now().UTC()
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO view_messages
		 (id, view_id, original_message_id, source_chat_id, source_contact_name, source_chat_name, is_from_group, relevance_score, added_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		vm.ID, vm.ViewID, vm.OriginalMessageID, vm.SourceChatID, vm.SourceContactName,
		vm.SourceChatName, boolToInt(vm.IsFromGroup), vm.RelevanceScore, vm.AddedAt,
	)
	if err != nil {
		return false, fmt.Errorf("inserting view message: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking insert result: %w", err)
	}
	if rows == 0 {
		return false, nil
	}

	if _, err := s.db.ExecContext(ctx,
		"UPDATE views SET updated_at = ? WHERE id = ?", vm.AddedAt, vm.ViewID); err != nil {
		return true, fmt.Errorf("bumping view updated_at: %w", err)
	}
	return true, nil
}

// IsMessageInView reports whether a message is already a member of a view.
func (s *SQLiteStore) IsMessageInView(ctx context.Context, viewID, messageID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		"SELECT 1 FROM view_messages WHERE view_id = ? AND original_message_id = ?",
		viewID, messageID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking view membership: %w", err)
	}
	return true, nil
}

// ViewMessages returns a view's membership records ordered by when they were
// added.
func (s *SQLiteStore) ViewMessages(ctx context.Context, viewID string) ([]*ViewMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, view_id, original_message_id, source_chat_id, source_contact_name,
		        source_chat_name, is_from_group, relevance_score, added_at
		 FROM view_messages WHERE view_id = ? ORDER BY added_at ASC, id ASC`, viewID)
	if err != nil {
		return nil, fmt.Errorf("querying view messages: %w", err)
	}
	defer rows.Close()

	var members []*ViewMessage
	for rows.Next() {
		var vm ViewMessage
		var chatName sql.NullString
		var score sql.NullFloat64
		var isGroup int
		if err := rows.Scan(&vm.ID, &vm.ViewID, &vm.OriginalMessageID, &vm.SourceChatID,
			&vm.SourceContactName, &chatName, &isGroup, &score, &vm.AddedAt); err != nil {
			return nil, fmt.Errorf("scanning view message: %w", err)
		}
		if chatName.Valid {
			vm.SourceChatName = &chatName.String
		}
		if score.Valid {
			vm.RelevanceScore = &score.Float64
		}
		vm.IsFromGroup = isGroup != 0
		members = append(members, &vm)
	}
	return members, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanView(row rowScanner) (*View, error) {
	var v View
	var keywords, concepts string
	var isLive int
	if err := row.Scan(&v.ID, &v.Name, &v.Criteria, &v.Context, &keywords, &concepts,
		&isLive, &v.CreatedAt, &v.UpdatedAt, &v.MessageCount); err != nil {
		return nil, err
	}
	v.IsLive = isLive != 0
	var err error
	if v.Keywords, err = decodeStrings(keywords); err != nil {
		return nil, fmt.Errorf("decoding keywords: %w", err)
	}
	if v.Concepts, err = decodeStrings(concepts); err != nil {
		return nil, fmt.Errorf("decoding concepts: %w", err)
	}
	return &v, nil
}

func encodeStrings(in []string) (string, error) {
	if in == nil {
		in = []string{}
	}
	b, err := json.Marshal(in)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeStrings(in string) ([]string, error) {
	if in == "" {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(in), &out); err != nil {
		return nil, err
	}
	return out, nil
}
