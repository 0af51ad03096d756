package api

import (
	"time"

	"github.com/google/uuid"

	"acornbox/internal/model"
)

// MessageView is a message as shown to one principal. Only the owner sees
// ownerId; everyone else knows the message by its anonymous token.
type MessageView struct {
	ID             uuid.UUID    `json:"id"`
	OwnerID        string       `json:"ownerId,omitempty"`
	Body           string       `json:"body"`
	AnonymousToken string       `json:"anonymousToken"`
	Status         model.Status `json:"status"`
	AllowReplies   bool         `json:"allowReplies"`
	ClaimedBy      *string      `json:"claimedBy,omitempty"`
	ClaimedAt      *time.Time   `json:"claimedAt,omitempty"`
	CreatedAt      time.Time    `json:"createdAt"`
}

func presentMessage(m *model.Message, viewer string) MessageView {
	v := MessageView{
		ID:             m.ID,
		Body:           m.Body,
		AnonymousToken: m.AnonymousToken,
		Status:         m.Status,
		AllowReplies:   m.AllowReplies,
		ClaimedBy:      m.ClaimedBy,
		ClaimedAt:      m.ClaimedAt,
		CreatedAt:      m.CreatedAt,
	}
	if m.OwnedBy(viewer) {
		v.OwnerID = m.OwnerID
	}
	return v
}

type CreateMessageRequest struct {
	Body         string `json:"body"`
	AllowReplies *bool  `json:"allowReplies,omitempty"`
}

type CreateReplyRequest struct {
	MessageID uuid.UUID `json:"messageId"`
	Body      string    `json:"body"`
}

type UnreadResponse struct {
	Unread int `json:"unread"`
}

// MessagePage and ReplyPage name the generic page shapes for the API docs.
type MessagePage = model.Page[MessageView]

type ReplyPage = model.Page[model.Reply]
