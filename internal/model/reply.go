// internal/model/reply.go
package model

import (
	"time"

	"github.com/google/uuid"
)

type Reply struct {
	ID        uuid.UUID `db:"id" json:"id"`
	MessageID uuid.UUID `db:"message_id" json:"messageId"`
	AuthorID  string    `db:"author_id" json:"authorId"`
	Body      string    `db:"body" json:"body"`
	Read      bool      `db:"is_read" json:"read"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`

	// Context of the message replied to. Filled by the inbox listings.
	MessageBody           string `db:"message_body" json:"messageBody,omitempty"`
	MessageAnonymousToken string `db:"message_anonymous_token" json:"messageAnonymousToken,omitempty"`
}
