// internal/manager/reply_manager.go
package manager

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"acornbox/internal/apperr"
	"acornbox/internal/messaging"
	"acornbox/internal/metrics"
	"acornbox/internal/model"
	"acornbox/internal/storage"
)

// ReplyManager writes replies and serves the sent and received inboxes.
type ReplyManager struct {
	store  ReplyStore
	events messaging.Publisher
}

func NewReplyManager(store ReplyStore, events messaging.Publisher) *ReplyManager {
	if events == nil {
		events = messaging.Discard{}
	}
	return &ReplyManager{store: store, events: events}
}

// CreateReply stores an unread reply against messageID. The message's
// allowReplies flag is the only gate; its claim status is not consulted.
func (rm *ReplyManager) CreateReply(ctx context.Context, messageID uuid.UUID, author, body string) (*model.Reply, error) {
	if err := requirePrincipal(author); err != nil {
		return nil, err
	}

	m, err := rm.store.GetMessage(ctx, messageID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.NotFound("message %s not found", messageID)
	}
	if err != nil {
		return nil, fmt.Errorf("load message: %w", err)
	}
	if !m.AllowReplies {
		return nil, apperr.Permission("message %s does not allow replies", messageID)
	}
	if err := validateBody("reply", body, model.MaxReplyBodyLen); err != nil {
		return nil, err
	}

	r := &model.Reply{
		MessageID:             messageID,
		AuthorID:              author,
		Body:                  body,
		MessageBody:           m.Body,
		MessageAnonymousToken: m.AnonymousToken,
	}
	err = rm.store.InsertReply(ctx, r)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.NotFound("message %s not found", messageID)
	}
	if err != nil {
		return nil, fmt.Errorf("create reply: %w", err)
	}

	metrics.RepliesCreated.Inc()
	ev := messaging.NewEvent(messaging.EventReplyCreated, messageID, author)
	ev.ReplyID = &r.ID
	publish(ctx, rm.events, ev)
	return r, nil
}

// ListSent returns the replies author has written, newest first.
func (rm *ReplyManager) ListSent(ctx context.Context, author string, page, limit int) (model.Page[model.Reply], error) {
	if err := requirePrincipal(author); err != nil {
		return model.Page[model.Reply]{}, err
	}
	if err := validatePage(page, limit); err != nil {
		return model.Page[model.Reply]{}, err
	}

	items, total, err := rm.store.ListRepliesByAuthor(ctx, author, limit, model.Offset(page, limit))
	if err != nil {
		return model.Page[model.Reply]{}, fmt.Errorf("list sent replies: %w", err)
	}
	return model.NewPage(items, page, limit, total), nil
}

// ListReceived returns one page of replies to owner's messages and marks
// exactly the replies on that page read. Replies outside the page, including
// ones that arrive while this runs, keep their read flag.
func (rm *ReplyManager) ListReceived(ctx context.Context, owner string, page, limit int) (model.Page[model.Reply], error) {
	if err := requirePrincipal(owner); err != nil {
		return model.Page[model.Reply]{}, err
	}
	if err := validatePage(page, limit); err != nil {
		return model.Page[model.Reply]{}, err
	}

	items, total, err := rm.store.ListRepliesToOwner(ctx, owner, limit, model.Offset(page, limit))
	if err != nil {
		return model.Page[model.Reply]{}, fmt.Errorf("list received replies: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(items))
	for _, r := range items {
		ids = append(ids, r.ID)
	}
	flipped, err := rm.store.MarkRepliesRead(ctx, ids)
	if err != nil {
		return model.Page[model.Reply]{}, fmt.Errorf("mark received replies read: %w", err)
	}
	metrics.InboxMarkedRead.Add(float64(flipped))

	for i := range items {
		items[i].Read = true
	}
	return model.NewPage(items, page, limit, total), nil
}

// CountUnread reports how many replies to owner's messages are unread.
func (rm *ReplyManager) CountUnread(ctx context.Context, owner string) (int, error) {
	if err := requirePrincipal(owner); err != nil {
		return 0, err
	}
	n, err := rm.store.CountUnreadToOwner(ctx, owner)
	if err != nil {
		return 0, fmt.Errorf("count unread replies: %w", err)
	}
	return n, nil
}
