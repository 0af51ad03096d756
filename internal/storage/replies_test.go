package storage

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"acornbox/internal/model"
)

func insertReply(t *testing.T, s *Storage, messageID uuid.UUID, author string) *model.Reply {
	t.Helper()
	r := &model.Reply{MessageID: messageID, AuthorID: author, Body: "reply from " + author}
	require.NoError(t, s.InsertReply(context.Background(), r))
	return r
}

func TestInsertReplyDanglingMessage(t *testing.T) {
	s := newTestStorage(t)

	r := &model.Reply{MessageID: uuid.New(), AuthorID: "a", Body: "hello"}
	assert.ErrorIs(t, s.InsertReply(context.Background(), r), ErrNotFound)
}

func TestListRepliesByAuthor(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	m := insertMessage(t, s, "owner", true)

	first := insertReply(t, s, m.ID, "alice")
	insertReply(t, s, m.ID, "bob")
	second := insertReply(t, s, m.ID, "alice")

	replies, total, err := s.ListRepliesByAuthor(ctx, "alice", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, replies, 2)
	assert.Equal(t, second.ID, replies[0].ID)
	assert.Equal(t, first.ID, replies[1].ID)
	assert.False(t, replies[0].Read)
	for _, r := range replies {
		assert.Equal(t, m.Body, r.MessageBody)
		assert.Equal(t, m.AnonymousToken, r.MessageAnonymousToken)
	}
}

func TestListRepliesToOwnerSpansOwnedMessages(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	m1 := insertMessage(t, s, "owner", true)
	m2 := insertMessage(t, s, "owner", true)
	foreign := insertMessage(t, s, "someone", true)

	r1 := insertReply(t, s, m1.ID, "a")
	insertReply(t, s, foreign.ID, "b")
	r2 := insertReply(t, s, m2.ID, "c")

	replies, total, err := s.ListRepliesToOwner(ctx, "owner", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, replies, 2)
	assert.Equal(t, r2.ID, replies[0].ID)
	assert.Equal(t, r1.ID, replies[1].ID)

	// Each reply names the message it answers.
	assert.Equal(t, m2.Body, replies[0].MessageBody)
	assert.Equal(t, m2.AnonymousToken, replies[0].MessageAnonymousToken)
	assert.Equal(t, m1.Body, replies[1].MessageBody)
	assert.Equal(t, m1.AnonymousToken, replies[1].MessageAnonymousToken)
}

func TestMarkRepliesReadOnlyTouchesGivenIDs(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	m := insertMessage(t, s, "owner", true)

	a := insertReply(t, s, m.ID, "a")
	b := insertReply(t, s, m.ID, "b")
	c := insertReply(t, s, m.ID, "c")

	n, err := s.MarkRepliesRead(ctx, []uuid.UUID{a.ID, c.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	n, err = s.MarkRepliesRead(ctx, []uuid.UUID{a.ID, c.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)

	for id, want := range map[uuid.UUID]bool{a.ID: true, b.ID: false, c.ID: true} {
		got, err := s.GetReply(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, got.Read, id)
	}

	unread, err := s.CountUnreadToOwner(ctx, "owner")
	require.NoError(t, err)
	assert.Equal(t, 1, unread)

	n, err = s.MarkRepliesRead(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}
