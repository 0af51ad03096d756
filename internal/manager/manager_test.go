package manager

import (
	"context"
	"math"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"acornbox/internal/apperr"
	"acornbox/internal/messaging"
	"acornbox/internal/metrics"
	"acornbox/internal/model"
	"acornbox/internal/storage"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []messaging.Event
}

func (p *recordingPublisher) PublishEvent(_ context.Context, ev messaging.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) types() []messaging.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]messaging.EventType, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

type fixture struct {
	store   *storage.Storage
	boxes   *BoxManager
	replies *ReplyManager
	events  *recordingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s, err := storage.NewStorage(storage.DriverSQLite, filepath.Join(t.TempDir(), "acorn.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	var mu sync.Mutex
	clock := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	s.Now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		clock = clock.Add(time.Second)
		return clock
	}

	events := &recordingPublisher{}
	return &fixture{
		store:   s,
		boxes:   NewBoxManager(s, events, 5),
		replies: NewReplyManager(s, events),
		events:  events,
	}
}

func (f *fixture) message(t *testing.T, owner string, allowReplies bool) *model.Message {
	t.Helper()
	m, err := f.boxes.CreateMessage(context.Background(), owner, "a sealed note", allowReplies)
	require.NoError(t, err)
	return m
}

func TestCreateMessage(t *testing.T) {
	f := newFixture(t)

	m, err := f.boxes.CreateMessage(context.Background(), "owner", "hello there", true)
	require.NoError(t, err)
	assert.Equal(t, model.StatusAvailable, m.Status)
	assert.Equal(t, "owner", m.OwnerID)
	assert.True(t, strings.HasPrefix(m.AnonymousToken, "anon_"))
	assert.Nil(t, m.ClaimedBy)
	assert.Equal(t, []messaging.EventType{messaging.EventMessageCreated}, f.events.types())
}

func TestCreateMessageValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.boxes.CreateMessage(ctx, "owner", "", true)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.boxes.CreateMessage(ctx, "owner", "   \n\t", true)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.boxes.CreateMessage(ctx, "owner", strings.Repeat("x", model.MaxMessageBodyLen+1), true)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	// The limit counts characters, not bytes.
	_, err = f.boxes.CreateMessage(ctx, "owner", strings.Repeat("橡", model.MaxMessageBodyLen), true)
	assert.NoError(t, err)

	_, err = f.boxes.CreateMessage(ctx, "", "body", true)
	assert.ErrorIs(t, err, apperr.ErrPermission)
}

func TestCreateMessageRetriesTokenCollision(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.boxes.NewToken = func() string { return "anon_taken" }
	f.message(t, "first", true)

	var calls int
	f.boxes.NewToken = func() string {
		calls++
		if calls < 3 {
			return "anon_taken"
		}
		return "anon_fresh"
	}
	m, err := f.boxes.CreateMessage(ctx, "second", "body", true)
	require.NoError(t, err)
	assert.Equal(t, "anon_fresh", m.AnonymousToken)
	assert.Equal(t, 3, calls)
}

func TestCreateMessageTokenExhaustion(t *testing.T) {
	f := newFixture(t)
	f.boxes.NewToken = func() string { return "anon_taken" }
	f.message(t, "first", true)

	_, err := f.boxes.CreateMessage(context.Background(), "second", "body", true)
	assert.ErrorIs(t, err, apperr.ErrIntegrity)
	assert.ErrorIs(t, err, storage.ErrDuplicateToken)
}

func TestPickRandom(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.boxes.PickRandom(ctx)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	a := f.message(t, "x", true)
	b := f.message(t, "x", true)
	_, err = f.boxes.Claim(ctx, a.ID, "y")
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		got, err := f.boxes.PickRandom(ctx)
		require.NoError(t, err)
		assert.Equal(t, b.ID, got.ID)
	}
}

func TestClaim(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.message(t, "owner", true)

	claimed, err := f.boxes.Claim(ctx, m.ID, "claimant")
	require.NoError(t, err)
	assert.Equal(t, model.StatusClaimed, claimed.Status)
	require.NotNil(t, claimed.ClaimedBy)
	assert.Equal(t, "claimant", *claimed.ClaimedBy)
	assert.NotNil(t, claimed.ClaimedAt)

	for _, who := range []string{"claimant", "other"} {
		_, err = f.boxes.Claim(ctx, m.ID, who)
		assert.ErrorIs(t, err, apperr.ErrConflict)
	}

	_, err = f.boxes.Claim(ctx, uuid.New(), "claimant")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	assert.Equal(t, []messaging.EventType{
		messaging.EventMessageCreated,
		messaging.EventMessageClaimed,
	}, f.events.types())
}

func TestClaimConcurrentExactlyOneWinner(t *testing.T) {
	f := newFixture(t)
	m := f.message(t, "owner", true)

	const n = 25
	results := make(chan error, n)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := f.boxes.Claim(context.Background(), m.ID, uuid.NewString())
			results <- err
		}()
	}
	close(start)
	wg.Wait()
	close(results)

	var wins, conflicts int
	for err := range results {
		switch {
		case err == nil:
			wins++
		case apperr.KindOf(err) == apperr.KindConflict:
			conflicts++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, n-1, conflicts)
}

func TestClaimRetiredMessageConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.message(t, "owner", true)

	_, err := f.boxes.Retire(ctx, m.ID, "owner")
	require.NoError(t, err)

	_, err = f.boxes.Claim(ctx, m.ID, "late")
	assert.ErrorIs(t, err, apperr.ErrConflict)
	assert.ErrorContains(t, err, "retired")
}

func TestRetire(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.message(t, "owner", true)

	_, err := f.boxes.Retire(ctx, m.ID, "stranger")
	assert.ErrorIs(t, err, apperr.ErrPermission)

	retired, err := f.boxes.Retire(ctx, m.ID, "owner")
	require.NoError(t, err)
	assert.Equal(t, model.StatusRetired, retired.Status)

	_, err = f.boxes.Retire(ctx, m.ID, "owner")
	assert.ErrorIs(t, err, apperr.ErrConflict)

	claimed := f.message(t, "owner", true)
	_, err = f.boxes.Claim(ctx, claimed.ID, "someone")
	require.NoError(t, err)
	_, err = f.boxes.Retire(ctx, claimed.ID, "owner")
	assert.ErrorIs(t, err, apperr.ErrConflict)

	_, err = f.boxes.Retire(ctx, uuid.New(), "owner")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestListOwnedPagination(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := 0; i < 7; i++ {
		f.message(t, "me", true)
	}
	f.message(t, "you", true)

	page, err := f.boxes.ListOwned(ctx, "me", 2, 3)
	require.NoError(t, err)
	assert.Equal(t, 7, page.Total)
	assert.Equal(t, 3, page.TotalPages)
	assert.Equal(t, 2, page.Page)
	assert.LessOrEqual(t, len(page.Items), 3)
	require.Len(t, page.Items, 3)
	for i := 1; i < len(page.Items); i++ {
		assert.True(t, page.Items[i-1].CreatedAt.After(page.Items[i].CreatedAt))
	}

	empty, err := f.boxes.ListOwned(ctx, "me", 9, 3)
	require.NoError(t, err)
	assert.Empty(t, empty.Items)
	assert.Equal(t, 7, empty.Total)

	_, err = f.boxes.ListOwned(ctx, "me", 0, 3)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = f.boxes.ListOwned(ctx, "me", 1, 0)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestListOwnedPageOffsetOverflow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.message(t, "me", true)

	_, err := f.boxes.ListOwned(ctx, "me", math.MaxInt/10+2, 10)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	// The largest page whose offset still fits is simply past the end.
	last, err := f.boxes.ListOwned(ctx, "me", math.MaxInt/10+1, 10)
	require.NoError(t, err)
	assert.Empty(t, last.Items)
	assert.Equal(t, 1, last.Total)
}

func TestClaimOutcomeMetrics(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.message(t, "owner", true)

	won := testutil.ToFloat64(metrics.ClaimsTotal.WithLabelValues("won"))
	conflict := testutil.ToFloat64(metrics.ClaimsTotal.WithLabelValues("conflict"))
	notFound := testutil.ToFloat64(metrics.ClaimsTotal.WithLabelValues("not_found"))

	_, err := f.boxes.Claim(ctx, m.ID, "first")
	require.NoError(t, err)
	_, err = f.boxes.Claim(ctx, m.ID, "second")
	require.Error(t, err)
	_, err = f.boxes.Claim(ctx, uuid.New(), "third")
	require.Error(t, err)

	assert.Equal(t, won+1, testutil.ToFloat64(metrics.ClaimsTotal.WithLabelValues("won")))
	assert.Equal(t, conflict+1, testutil.ToFloat64(metrics.ClaimsTotal.WithLabelValues("conflict")))
	assert.Equal(t, notFound+1, testutil.ToFloat64(metrics.ClaimsTotal.WithLabelValues("not_found")))
}

func TestPickAndCreateMetrics(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	empty := testutil.ToFloat64(metrics.PicksTotal.WithLabelValues("empty"))
	found := testutil.ToFloat64(metrics.PicksTotal.WithLabelValues("found"))
	created := testutil.ToFloat64(metrics.MessagesCreated)

	_, err := f.boxes.PickRandom(ctx)
	require.Error(t, err)
	f.message(t, "owner", true)
	_, err = f.boxes.PickRandom(ctx)
	require.NoError(t, err)

	assert.Equal(t, empty+1, testutil.ToFloat64(metrics.PicksTotal.WithLabelValues("empty")))
	assert.Equal(t, found+1, testutil.ToFloat64(metrics.PicksTotal.WithLabelValues("found")))
	assert.Equal(t, created+1, testutil.ToFloat64(metrics.MessagesCreated))
}

func TestStorageFailureIsSurfacedAsInternal(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Close())

	_, err := f.boxes.Claim(context.Background(), uuid.New(), "x")
	require.Error(t, err)
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
}
