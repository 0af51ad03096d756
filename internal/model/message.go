// internal/model/message.go
package model

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusAvailable Status = "available"
	StatusClaimed   Status = "claimed"
	StatusRetired   Status = "retired"
)

const (
	MaxMessageBodyLen = 1000
	MaxReplyBodyLen   = 500
)

// Message is a sealed anonymous box. ClaimedBy and ClaimedAt are set
// exactly when Status is StatusClaimed.
type Message struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	OwnerID        string     `db:"owner_id" json:"ownerId,omitempty"`
	Body           string     `db:"body" json:"body"`
	AnonymousToken string     `db:"anonymous_token" json:"anonymousToken"`
	Status         Status     `db:"status" json:"status"`
	AllowReplies   bool       `db:"allow_replies" json:"allowReplies"`
	ClaimedBy      *string    `db:"claimed_by" json:"claimedBy,omitempty"`
	ClaimedAt      *time.Time `db:"claimed_at" json:"claimedAt,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"createdAt"`
}

func (m *Message) OwnedBy(principal string) bool {
	return m.OwnerID == principal
}
