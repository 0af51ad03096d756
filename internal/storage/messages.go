// internal/storage/messages.go
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"acornbox/internal/model"
)

const messageColumns = `id, owner_id, body, anonymous_token, status, allow_replies, claimed_by, claimed_at, created_at`

// ownedMessageIDs selects the ids of every message owned by one principal.
// Reply queries embed it to scope the received inbox.
const ownedMessageIDs = `SELECT id FROM messages WHERE owner_id = ?`

// pickAttempts bounds how often PickAvailable redraws when the available
// pool shrinks between the count and the fetch.
const pickAttempts = 3

// InsertMessage persists m in the available state, filling ID and CreatedAt.
// A clash on anonymous_token yields ErrDuplicateToken.
func (s *Storage) InsertMessage(ctx context.Context, m *model.Message) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	m.Status = model.StatusAvailable
	m.ClaimedBy = nil
	m.ClaimedAt = nil
	m.CreatedAt = s.timestamp()

	query := s.DB.Rebind(`
		INSERT INTO messages (id, owner_id, body, anonymous_token, status, allow_replies, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	_, err := s.DB.ExecContext(ctx, query,
		m.ID, m.OwnerID, m.Body, m.AnonymousToken, string(m.Status), m.AllowReplies, m.CreatedAt)
	if err != nil {
		if s.isUniqueViolation(err) {
			return ErrDuplicateToken
		}
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (s *Storage) GetMessage(ctx context.Context, id uuid.UUID) (*model.Message, error) {
	var m model.Message
	query := s.DB.Rebind(`SELECT ` + messageColumns + ` FROM messages WHERE id = ?`)
	if err := s.DB.GetContext(ctx, &m, query, id); err != nil {
		if isNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get message: %w", err)
	}
	return &m, nil
}

// ClaimMessage moves an available message to claimed in a single
// conditional UPDATE. Of any number of concurrent callers, across
// processes, at most one sees a row come back; the rest get
// ErrPreconditionFailed together with the current row, or ErrNotFound
// for an unknown id.
func (s *Storage) ClaimMessage(ctx context.Context, id uuid.UUID, claimant string) (*model.Message, error) {
	query := s.DB.Rebind(`
		UPDATE messages
		SET status = ?, claimed_by = ?, claimed_at = ?
		WHERE id = ? AND status = ?
		RETURNING ` + messageColumns)

	var m model.Message
	err := s.DB.GetContext(ctx, &m, query,
		string(model.StatusClaimed), claimant, s.timestamp(), id, string(model.StatusAvailable))
	if err == nil {
		return &m, nil
	}
	if !isNoRows(err) {
		return nil, fmt.Errorf("claim message: %w", err)
	}

	// Nothing matched. Claimed and retired are terminal, so reading now is
	// enough to tell a lost race from an unknown id.
	current, err := s.GetMessage(ctx, id)
	if err != nil {
		return nil, err
	}
	return current, ErrPreconditionFailed
}

// RetireMessage moves an available message owned by ownerID to retired.
// It returns the current row alongside ErrPreconditionFailed when the
// message exists but the transition was refused, so the caller can tell
// a foreign owner from a terminal status.
func (s *Storage) RetireMessage(ctx context.Context, id uuid.UUID, ownerID string) (*model.Message, error) {
	query := s.DB.Rebind(`
		UPDATE messages
		SET status = ?
		WHERE id = ? AND owner_id = ? AND status = ?
		RETURNING ` + messageColumns)

	var m model.Message
	err := s.DB.GetContext(ctx, &m, query,
		string(model.StatusRetired), id, ownerID, string(model.StatusAvailable))
	if err == nil {
		return &m, nil
	}
	if !isNoRows(err) {
		return nil, fmt.Errorf("retire message: %w", err)
	}

	current, err := s.GetMessage(ctx, id)
	if err != nil {
		return nil, err
	}
	return current, ErrPreconditionFailed
}

func (s *Storage) CountAvailable(ctx context.Context) (int, error) {
	var n int
	query := s.DB.Rebind(`SELECT COUNT(*) FROM messages WHERE status = ?`)
	if err := s.DB.GetContext(ctx, &n, query, string(model.StatusAvailable)); err != nil {
		return 0, fmt.Errorf("count available: %w", err)
	}
	return n, nil
}

// AvailableAt returns the available message at offset in id order.
func (s *Storage) AvailableAt(ctx context.Context, offset int) (*model.Message, error) {
	var m model.Message
	query := s.DB.Rebind(`
		SELECT ` + messageColumns + `
		FROM messages
		WHERE status = ?
		ORDER BY id
		LIMIT 1 OFFSET ?
	`)
	if err := s.DB.GetContext(ctx, &m, query, string(model.StatusAvailable), offset); err != nil {
		if isNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("fetch available: %w", err)
	}
	return &m, nil
}

// PickAvailable draws one available message uniformly at random without
// loading the pool: count, draw an offset, fetch that row. Nothing is
// mutated; a concurrent claim may still win the picked message.
func (s *Storage) PickAvailable(ctx context.Context) (*model.Message, error) {
	for attempt := 0; attempt < pickAttempts; attempt++ {
		n, err := s.CountAvailable(ctx)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, ErrNotFound
		}

		m, err := s.AvailableAt(ctx, s.Intn(n))
		if errors.Is(err, ErrNotFound) {
			continue
		}
		return m, err
	}
	return nil, ErrNotFound
}

// ListMessagesByOwner returns one newest-first page of ownerID's messages
// and the owner's total message count.
func (s *Storage) ListMessagesByOwner(ctx context.Context, ownerID string, limit, offset int) ([]model.Message, int, error) {
	var total int
	countQuery := s.DB.Rebind(`SELECT COUNT(*) FROM messages WHERE owner_id = ?`)
	if err := s.DB.GetContext(ctx, &total, countQuery, ownerID); err != nil {
		return nil, 0, fmt.Errorf("count owned messages: %w", err)
	}
	if total == 0 {
		return nil, 0, nil
	}

	messages := []model.Message{}
	query := s.DB.Rebind(`
		SELECT ` + messageColumns + `
		FROM messages
		WHERE owner_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`)
	if err := s.DB.SelectContext(ctx, &messages, query, ownerID, limit, offset); err != nil {
		return nil, 0, fmt.Errorf("list owned messages: %w", err)
	}
	return messages, total, nil
}
