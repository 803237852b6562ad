package waitlist_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evently/internal/domain"
	"evently/internal/notify"
	"evently/internal/notify/notifytest"
	"evently/internal/store"
	"evently/internal/store/memstore"
	"evently/internal/waitlist"
)

func soldOutEvent() domain.Event {
	return domain.Event{
		ID:                uuid.New(),
		TotalCapacity:     10,
		AvailableCapacity: 0,
		Price:             decimal.NewFromInt(20),
		IsActive:          true,
	}
}

func TestJoin_AssignsDensePositionsInOrder(t *testing.T) {
	ms := memstore.New()
	event := soldOutEvent()
	ms.SeedEvent(event)
	c := waitlist.New(time.Hour, notifytest.New())

	users := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	var entries []*domain.Waitlist
	for _, u := range users {
		var entry *domain.Waitlist
		err := ms.WithTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
			e, err := c.Join(ctx, tx, u, event.ID, 2)
			entry = e
			return err
		})
		require.NoError(t, err)
		entries = append(entries, entry)
	}

	assert.Equal(t, 1, entries[0].Position)
	assert.Equal(t, 2, entries[1].Position)
	assert.Equal(t, 3, entries[2].Position)
}

func TestJoin_RejectsDuplicateAndWhenNotSoldOut(t *testing.T) {
	ms := memstore.New()
	event := soldOutEvent()
	ms.SeedEvent(event)
	c := waitlist.New(time.Hour, notifytest.New())
	user := uuid.New()

	err := ms.WithTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		_, err := c.Join(ctx, tx, user, event.ID, 2)
		return err
	})
	require.NoError(t, err)

	err = ms.WithTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		_, err := c.Join(ctx, tx, user, event.ID, 1)
		return err
	})
	assert.ErrorIs(t, err, domain.ErrAlreadyOnWaitlist)

	available := soldOutEvent()
	available.AvailableCapacity = 5
	ms.SeedEvent(available)
	err = ms.WithTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		_, err := c.Join(ctx, tx, uuid.New(), available.ID, 2)
		return err
	})
	assert.ErrorIs(t, err, domain.ErrEventNotSoldOut)
}

// TestLeave_CompactsPositionsOfEntriesBehind covers the dense-position
// invariant: leaving from the middle must shift every later entry down by
// one, with no gaps.
func TestLeave_CompactsPositionsOfEntriesBehind(t *testing.T) {
	ms := memstore.New()
	event := soldOutEvent()
	ms.SeedEvent(event)
	c := waitlist.New(time.Hour, notifytest.New())

	users := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	var entries []*domain.Waitlist
	for _, u := range users {
		var entry *domain.Waitlist
		err := ms.WithTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
			e, err := c.Join(ctx, tx, u, event.ID, 1)
			entry = e
			return err
		})
		require.NoError(t, err)
		entries = append(entries, entry)
	}

	err := ms.WithTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		left, err := c.Leave(ctx, tx, users[0], event.ID)
		assert.True(t, left)
		return err
	})
	require.NoError(t, err)

	remaining, err := ms.ListActiveWaitlistOrdered(context.Background(), event.ID)
	require.NoError(t, err)
	require.Len(t, remaining, 2)
	byUser := map[uuid.UUID]int{}
	for _, w := range remaining {
		byUser[w.UserID] = w.Position
	}
	assert.Equal(t, 1, byUser[entries[1].UserID])
	assert.Equal(t, 2, byUser[entries[2].UserID])
}

// TestOfferCapacity_StrictHeadOfLineFairness asserts a blocking head entry
// (requesting more than what's available) is never leap-frogged by a
// later, smaller entry — the walk stops cold at the first entry it can't
// satisfy.
func TestOfferCapacity_StrictHeadOfLineFairness(t *testing.T) {
	ms := memstore.New()
	event := soldOutEvent()
	ms.SeedEvent(event)
	c := waitlist.New(time.Hour, notifytest.New())

	bigUser, smallUser := uuid.New(), uuid.New()
	err := ms.WithTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		if _, err := c.Join(ctx, tx, bigUser, event.ID, 5); err != nil {
			return err
		}
		_, err := c.Join(ctx, tx, smallUser, event.ID, 1)
		return err
	})
	require.NoError(t, err)

	var notified []domain.Waitlist
	err = ms.WithTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		n, err := c.OfferCapacity(ctx, tx, event.ID, 2)
		notified = n
		return err
	})
	require.NoError(t, err)
	assert.Empty(t, notified, "head entry requesting 5 must block offers even though 2 would satisfy the second entry")
}

func TestOfferCapacity_NotifiesInOrderUntilCapacityExhausted(t *testing.T) {
	ms := memstore.New()
	event := soldOutEvent()
	ms.SeedEvent(event)
	rec := notifytest.New()
	c := waitlist.New(time.Hour, rec)

	u1, u2, u3 := uuid.New(), uuid.New(), uuid.New()
	err := ms.WithTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		if _, err := c.Join(ctx, tx, u1, event.ID, 2); err != nil {
			return err
		}
		if _, err := c.Join(ctx, tx, u2, event.ID, 2); err != nil {
			return err
		}
		_, err := c.Join(ctx, tx, u3, event.ID, 2)
		return err
	})
	require.NoError(t, err)

	var notified []domain.Waitlist
	err = ms.WithTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		n, err := c.OfferCapacity(ctx, tx, event.ID, 4)
		notified = n
		return err
	})
	require.NoError(t, err)
	require.Len(t, notified, 2)
	assert.Equal(t, u1, notified[0].UserID)
	assert.Equal(t, u2, notified[1].UserID)
	assert.Equal(t, domain.WaitlistNotified, notified[0].Status)
	assert.Equal(t, 2, rec.CountOfType(notify.IntentWaitlistAvailability))
}

// TestExpireNotifications_RequeuesToTailSilently asserts a stale NOTIFIED
// entry goes back to ACTIVE at the new tail position, without a fresh
// notification being published.
func TestExpireNotifications_RequeuesToTailSilently(t *testing.T) {
	ms := memstore.New()
	event := soldOutEvent()
	ms.SeedEvent(event)
	rec := notifytest.New()
	c := waitlist.New(time.Hour, rec)

	u1, u2 := uuid.New(), uuid.New()
	err := ms.WithTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		if _, err := c.Join(ctx, tx, u1, event.ID, 1); err != nil {
			return err
		}
		_, err := c.Join(ctx, tx, u2, event.ID, 1)
		return err
	})
	require.NoError(t, err)

	err = ms.WithTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		_, err := c.OfferCapacity(ctx, tx, event.ID, 1)
		return err
	})
	require.NoError(t, err)
	require.Equal(t, 1, rec.CountOfType(notify.IntentWaitlistAvailability))

	cutoff := time.Now().UTC().Add(time.Second)
	var expired int
	err = ms.WithTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		n, err := c.ExpireNotifications(ctx, tx, cutoff)
		expired = n
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 1, expired)
	assert.Len(t, rec.Intents(), 1, "requeue on expiry must not publish a second notification")
}
