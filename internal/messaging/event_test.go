package messaging

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventJSONOmitsEmptyReply(t *testing.T) {
	msgID := uuid.New()
	ev := NewEvent(EventMessageClaimed, msgID, "claimant")

	raw, err := json.Marshal(ev)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "message.claimed", decoded["type"])
	assert.Equal(t, msgID.String(), decoded["messageId"])
	assert.Equal(t, "claimant", decoded["principal"])
	assert.NotContains(t, decoded, "replyId")
}

func TestDiscardPublisher(t *testing.T) {
	var p Publisher = Discard{}
	assert.NoError(t, p.PublishEvent(context.Background(), NewEvent(EventReplyCreated, uuid.New(), "x")))
}

func TestCloseWithoutConnection(t *testing.T) {
	assert.NoError(t, (&RabbitClient{}).Close())
}
