package capacity_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evently/internal/capacity"
	"evently/internal/domain"
	"evently/internal/store"
	"evently/internal/store/memstore"
)

func seedEvent(ms *memstore.MemStore, available, total int) domain.Event {
	e := domain.Event{
		ID:                uuid.New(),
		TotalCapacity:     total,
		AvailableCapacity: available,
		Price:             decimal.NewFromInt(10),
		IsActive:          true,
		Version:           0,
	}
	ms.SeedEvent(e)
	return e
}

func TestReserve_SingleAttemptOnStaleVersion(t *testing.T) {
	ms := memstore.New()
	event := seedEvent(ms, 5, 10)
	ctl := capacity.New(capacity.DefaultRetryConfig())

	err := ms.WithTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		_, err := ctl.Reserve(ctx, tx, event.ID, 2, event.Version+1)
		return err
	})

	require.Error(t, err)
	assert.Equal(t, domain.ErrStaleVersion, err, "Reserve must not retry internally on a stale version")

	refreshed, getErr := ms.GetEvent(context.Background(), event.ID)
	require.NoError(t, getErr)
	assert.Equal(t, 5, refreshed.AvailableCapacity, "a rejected CAS must leave capacity untouched")
}

func TestReserve_SucceedsAndDecrementsAvailability(t *testing.T) {
	ms := memstore.New()
	event := seedEvent(ms, 5, 10)
	ctl := capacity.New(capacity.DefaultRetryConfig())

	err := ms.WithTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		_, err := ctl.Reserve(ctx, tx, event.ID, 2, event.Version)
		return err
	})
	require.NoError(t, err)

	refreshed, err := ms.GetEvent(context.Background(), event.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, refreshed.AvailableCapacity)
	assert.Equal(t, event.Version+1, refreshed.Version)
}

// staleTx wraps a store.Tx and forces CompareAndUpdateEventCapacity to
// report ErrStaleVersion on its first N calls, to drive Restore's internal
// retry loop without a real concurrent writer.
type staleTx struct {
	store.Tx
	failuresLeft int
}

func (s *staleTx) CompareAndUpdateEventCapacity(ctx context.Context, eventID uuid.UUID, expectedVersion, delta int) (*domain.Event, error) {
	if s.failuresLeft > 0 {
		s.failuresLeft--
		return nil, domain.ErrStaleVersion
	}
	return s.Tx.CompareAndUpdateEventCapacity(ctx, eventID, expectedVersion, delta)
}

func TestRestore_RetriesUntilSuccessWithinBudget(t *testing.T) {
	ms := memstore.New()
	event := seedEvent(ms, 5, 10)
	ctl := capacity.New(capacity.RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond})

	err := ms.WithTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		wrapped := &staleTx{Tx: tx, failuresLeft: 2}
		return ctl.Restore(ctx, wrapped, event.ID, 3)
	})
	require.NoError(t, err)

	refreshed, err := ms.GetEvent(context.Background(), event.ID)
	require.NoError(t, err)
	assert.Equal(t, 8, refreshed.AvailableCapacity, "restore must still land once a fresh version is read")
}

func TestRestore_ExhaustsRetriesAndReturnsRetryableStaleVersion(t *testing.T) {
	ms := memstore.New()
	event := seedEvent(ms, 5, 10)
	ctl := capacity.New(capacity.RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond})

	err := ms.WithTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		wrapped := &staleTx{Tx: tx, failuresLeft: 100}
		return ctl.Restore(ctx, wrapped, event.ID, 3)
	})

	require.Error(t, err)
	assert.Equal(t, domain.KindConcurrency, domain.KindOf(err))
	assert.True(t, domain.IsRetryable(err), "exhausted restore must still be reported as retryable by the caller")

	refreshed, getErr := ms.GetEvent(context.Background(), event.ID)
	require.NoError(t, getErr)
	assert.Equal(t, 5, refreshed.AvailableCapacity, "no partial restore must have landed")
}
