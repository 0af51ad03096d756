// internal/manager/box_manager.go
package manager

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"acornbox/internal/apperr"
	"acornbox/internal/messaging"
	"acornbox/internal/metrics"
	"acornbox/internal/model"
	"acornbox/internal/storage"
)

const defaultTokenAttempts = 5

// BoxManager owns the message lifecycle: creation, random discovery, the
// single-winner claim, retirement and the owner's listing.
type BoxManager struct {
	store         MessageStore
	events        messaging.Publisher
	tokenAttempts int

	// NewToken generates anonymous token candidates.
	NewToken func() string
}

func NewBoxManager(store MessageStore, events messaging.Publisher, tokenAttempts int) *BoxManager {
	if events == nil {
		events = messaging.Discard{}
	}
	if tokenAttempts <= 0 {
		tokenAttempts = defaultTokenAttempts
	}
	return &BoxManager{
		store:         store,
		events:        events,
		tokenAttempts: tokenAttempts,
		NewToken:      newAnonymousToken,
	}
}

func newAnonymousToken() string {
	return "anon_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// CreateMessage seals a new available message for owner. Token collisions
// are retried with a fresh candidate up to the configured attempt count.
func (bm *BoxManager) CreateMessage(ctx context.Context, owner, body string, allowReplies bool) (*model.Message, error) {
	if err := requirePrincipal(owner); err != nil {
		return nil, err
	}
	if err := validateBody("message", body, model.MaxMessageBodyLen); err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt < bm.tokenAttempts; attempt++ {
		m := &model.Message{
			OwnerID:        owner,
			Body:           body,
			AnonymousToken: bm.NewToken(),
			AllowReplies:   allowReplies,
		}
		err := bm.store.InsertMessage(ctx, m)
		if errors.Is(err, storage.ErrDuplicateToken) {
			lastErr = err
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("create message: %w", err)
		}

		metrics.MessagesCreated.Inc()
		publish(ctx, bm.events, messaging.NewEvent(messaging.EventMessageCreated, m.ID, owner))
		return m, nil
	}
	return nil, apperr.Integrity(lastErr, "anonymous token generation exhausted after %d attempts", bm.tokenAttempts)
}

func (bm *BoxManager) GetMessage(ctx context.Context, id uuid.UUID) (*model.Message, error) {
	m, err := bm.store.GetMessage(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.NotFound("message %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	return m, nil
}

// PickRandom returns one available message chosen uniformly. The result is
// advisory: a concurrent claim may take it before the caller does.
func (bm *BoxManager) PickRandom(ctx context.Context) (*model.Message, error) {
	m, err := bm.store.PickAvailable(ctx)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		metrics.PicksTotal.WithLabelValues("empty").Inc()
		return nil, apperr.NotFound("no available messages")
	case err != nil:
		metrics.PicksTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("pick message: %w", err)
	}
	metrics.PicksTotal.WithLabelValues("found").Inc()
	return m, nil
}

// Claim attempts the available -> claimed transition for claimant. Exactly
// one caller wins; everyone else gets a Conflict.
func (bm *BoxManager) Claim(ctx context.Context, id uuid.UUID, claimant string) (*model.Message, error) {
	if err := requirePrincipal(claimant); err != nil {
		return nil, err
	}

	m, err := bm.store.ClaimMessage(ctx, id, claimant)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		metrics.ClaimsTotal.WithLabelValues("not_found").Inc()
		return nil, apperr.NotFound("message %s not found", id)
	case errors.Is(err, storage.ErrPreconditionFailed):
		metrics.ClaimsTotal.WithLabelValues("conflict").Inc()
		if m != nil && m.Status == model.StatusRetired {
			return nil, apperr.Conflict("message %s has been retired", id)
		}
		return nil, apperr.Conflict("message %s already claimed", id)
	case err != nil:
		metrics.ClaimsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("claim message: %w", err)
	}

	metrics.ClaimsTotal.WithLabelValues("won").Inc()
	publish(ctx, bm.events, messaging.NewEvent(messaging.EventMessageClaimed, m.ID, claimant))
	return m, nil
}

// Retire moves an available message to the terminal retired state. Only
// the owner may retire, and only while nobody has claimed it.
func (bm *BoxManager) Retire(ctx context.Context, id uuid.UUID, owner string) (*model.Message, error) {
	if err := requirePrincipal(owner); err != nil {
		return nil, err
	}

	m, err := bm.store.RetireMessage(ctx, id, owner)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return nil, apperr.NotFound("message %s not found", id)
	case errors.Is(err, storage.ErrPreconditionFailed):
		if m == nil || !m.OwnedBy(owner) {
			return nil, apperr.Permission("only the owner may retire message %s", id)
		}
		return nil, apperr.Conflict("message %s is %s", id, m.Status)
	case err != nil:
		return nil, fmt.Errorf("retire message: %w", err)
	}

	publish(ctx, bm.events, messaging.NewEvent(messaging.EventMessageRetired, m.ID, owner))
	return m, nil
}

// ListOwned returns owner's messages newest first.
func (bm *BoxManager) ListOwned(ctx context.Context, owner string, page, limit int) (model.Page[model.Message], error) {
	if err := requirePrincipal(owner); err != nil {
		return model.Page[model.Message]{}, err
	}
	if err := validatePage(page, limit); err != nil {
		return model.Page[model.Message]{}, err
	}

	items, total, err := bm.store.ListMessagesByOwner(ctx, owner, limit, model.Offset(page, limit))
	if err != nil {
		return model.Page[model.Message]{}, fmt.Errorf("list owned messages: %w", err)
	}
	return model.NewPage(items, page, limit, total), nil
}
