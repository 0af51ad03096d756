// internal/messaging/event.go
package messaging

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventMessageCreated EventType = "message.created"
	EventMessageClaimed EventType = "message.claimed"
	EventMessageRetired EventType = "message.retired"
	EventReplyCreated   EventType = "reply.created"
)

// Event is published after a write has been committed. It never carries
// message or reply bodies.
type Event struct {
	ID         uuid.UUID  `json:"id"`
	Type       EventType  `json:"type"`
	MessageID  uuid.UUID  `json:"messageId"`
	ReplyID    *uuid.UUID `json:"replyId,omitempty"`
	Principal  string     `json:"principal"`
	OccurredAt time.Time  `json:"occurredAt"`
}

func NewEvent(typ EventType, messageID uuid.UUID, principal string) Event {
	return Event{
		ID:         uuid.New(),
		Type:       typ,
		MessageID:  messageID,
		Principal:  principal,
		OccurredAt: time.Now().UTC(),
	}
}

type Publisher interface {
	PublishEvent(ctx context.Context, ev Event) error
}

// Discard drops every event. It is used when no broker is configured.
type Discard struct{}

func (Discard) PublishEvent(context.Context, Event) error { return nil }
