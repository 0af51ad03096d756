// internal/storage/replies.go
package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"acornbox/internal/model"
)

const replyColumns = `id, message_id, author_id, body, is_read, created_at`

// inboxColumns selects a reply joined as r with its message joined as m.
const inboxColumns = `r.id, r.message_id, r.author_id, r.body, r.is_read, r.created_at,
	m.body AS message_body, m.anonymous_token AS message_anonymous_token`

// InsertReply persists r unread, filling ID and CreatedAt. A dangling
// message_id yields ErrNotFound.
func (s *Storage) InsertReply(ctx context.Context, r *model.Reply) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	r.Read = false
	r.CreatedAt = s.timestamp()

	query := s.DB.Rebind(`
		INSERT INTO replies (id, message_id, author_id, body, is_read, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	_, err := s.DB.ExecContext(ctx, query, r.ID, r.MessageID, r.AuthorID, r.Body, r.Read, r.CreatedAt)
	if err != nil {
		if s.isForeignKeyViolation(err) {
			return ErrNotFound
		}
		return fmt.Errorf("insert reply: %w", err)
	}
	return nil
}

// ListRepliesByAuthor returns one newest-first page of replies written by
// authorID and the author's total reply count. Each reply carries the body
// and anonymous token of the message it answers.
func (s *Storage) ListRepliesByAuthor(ctx context.Context, authorID string, limit, offset int) ([]model.Reply, int, error) {
	return s.listReplies(ctx, `r.author_id = ?`, []any{authorID}, limit, offset)
}

// ListRepliesToOwner returns one newest-first page of replies posted
// against any message owned by ownerID, and their total count.
func (s *Storage) ListRepliesToOwner(ctx context.Context, ownerID string, limit, offset int) ([]model.Reply, int, error) {
	return s.listReplies(ctx, `r.message_id IN (`+ownedMessageIDs+`)`, []any{ownerID}, limit, offset)
}

func (s *Storage) listReplies(ctx context.Context, where string, args []any, limit, offset int) ([]model.Reply, int, error) {
	var total int
	countQuery := s.DB.Rebind(`SELECT COUNT(*) FROM replies r WHERE ` + where)
	if err := s.DB.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count replies: %w", err)
	}
	if total == 0 {
		return nil, 0, nil
	}

	replies := []model.Reply{}
	query := s.DB.Rebind(`
		SELECT ` + inboxColumns + `
		FROM replies r
		JOIN messages m ON m.id = r.message_id
		WHERE ` + where + `
		ORDER BY r.created_at DESC, r.id DESC
		LIMIT ? OFFSET ?
	`)
	pageArgs := append(append([]any{}, args...), limit, offset)
	if err := s.DB.SelectContext(ctx, &replies, query, pageArgs...); err != nil {
		return nil, 0, fmt.Errorf("list replies: %w", err)
	}
	return replies, total, nil
}

// MarkRepliesRead flips is_read to true for exactly the given ids and
// reports how many rows changed. Rows already read are left untouched.
func (s *Storage) MarkRepliesRead(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query, args, err := sqlx.In(`UPDATE replies SET is_read = ? WHERE is_read = ? AND id IN (?)`, true, false, ids)
	if err != nil {
		return 0, fmt.Errorf("build mark read: %w", err)
	}
	res, err := s.DB.ExecContext(ctx, s.DB.Rebind(query), args...)
	if err != nil {
		return 0, fmt.Errorf("mark replies read: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark replies read: %w", err)
	}
	return n, nil
}

func (s *Storage) CountUnreadToOwner(ctx context.Context, ownerID string) (int, error) {
	var n int
	query := s.DB.Rebind(`SELECT COUNT(*) FROM replies WHERE is_read = ? AND message_id IN (` + ownedMessageIDs + `)`)
	if err := s.DB.GetContext(ctx, &n, query, false, ownerID); err != nil {
		return 0, fmt.Errorf("count unread replies: %w", err)
	}
	return n, nil
}

// GetReply is used by tests and by callers that need the persisted read flag.
func (s *Storage) GetReply(ctx context.Context, id uuid.UUID) (*model.Reply, error) {
	var r model.Reply
	query := s.DB.Rebind(`SELECT ` + replyColumns + ` FROM replies WHERE id = ?`)
	if err := s.DB.GetContext(ctx, &r, query, id); err != nil {
		if isNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get reply: %w", err)
	}
	return &r, nil
}
