// internal/manager/manager.go
package manager

import (
	"context"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"acornbox/internal/apperr"
	"acornbox/internal/logger"
	"acornbox/internal/messaging"
	"acornbox/internal/model"
)

// MessageStore is the persistence the box manager needs. storage.Storage
// satisfies it.
type MessageStore interface {
	InsertMessage(ctx context.Context, m *model.Message) error
	GetMessage(ctx context.Context, id uuid.UUID) (*model.Message, error)
	ClaimMessage(ctx context.Context, id uuid.UUID, claimant string) (*model.Message, error)
	RetireMessage(ctx context.Context, id uuid.UUID, ownerID string) (*model.Message, error)
	PickAvailable(ctx context.Context) (*model.Message, error)
	ListMessagesByOwner(ctx context.Context, ownerID string, limit, offset int) ([]model.Message, int, error)
}

// ReplyStore is the persistence the reply manager needs.
type ReplyStore interface {
	GetMessage(ctx context.Context, id uuid.UUID) (*model.Message, error)
	InsertReply(ctx context.Context, r *model.Reply) error
	ListRepliesByAuthor(ctx context.Context, authorID string, limit, offset int) ([]model.Reply, int, error)
	ListRepliesToOwner(ctx context.Context, ownerID string, limit, offset int) ([]model.Reply, int, error)
	MarkRepliesRead(ctx context.Context, ids []uuid.UUID) (int64, error)
	CountUnreadToOwner(ctx context.Context, ownerID string) (int, error)
}

func requirePrincipal(principal string) error {
	if principal == "" {
		return apperr.Permission("authenticated principal required")
	}
	return nil
}

// validateBody rejects blank bodies and bodies longer than max characters.
func validateBody(kind, body string, max int) error {
	if strings.TrimSpace(body) == "" {
		return apperr.Validation("%s body must not be empty", kind)
	}
	if n := utf8.RuneCountInString(body); n > max {
		return apperr.Validation("%s body is %d characters, limit is %d", kind, n, max)
	}
	return nil
}

func validatePage(page, limit int) error {
	if page < 1 {
		return apperr.Validation("page must be at least 1")
	}
	if limit < 1 {
		return apperr.Validation("limit must be at least 1")
	}
	// The row offset (page-1)*limit must fit in an int.
	if page-1 > math.MaxInt/limit {
		return apperr.Validation("page %d is out of range", page)
	}
	return nil
}

// publish emits ev after a committed write. The write stands whether or
// not the broker accepts the event.
func publish(ctx context.Context, events messaging.Publisher, ev messaging.Event) {
	if err := events.PublishEvent(context.WithoutCancel(ctx), ev); err != nil {
		logger.Warn("event publish failed", "type", ev.Type, "message_id", ev.MessageID, "err", err)
	}
}
