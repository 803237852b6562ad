package seats_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evently/internal/domain"
	"evently/internal/seats"
	"evently/internal/store"
	"evently/internal/store/memstore"
)

func seedSeat(ms *memstore.MemStore, eventID uuid.UUID, status domain.SeatStatus) domain.Seat {
	s := domain.Seat{
		ID:      uuid.New(),
		EventID: eventID,
		Section: "A", Row: "1", Number: "1",
		Price:  decimal.NewFromInt(50),
		Status: status,
	}
	ms.SeedSeat(s)
	return s
}

func TestHoldGroup_AllOrNothing(t *testing.T) {
	ms := memstore.New()
	eventID := uuid.New()
	s1 := seedSeat(ms, eventID, domain.SeatAvailable)
	s2 := seedSeat(ms, eventID, domain.SeatAvailable)
	heldByOther := seedSeat(ms, eventID, domain.SeatHeld)

	ctrl := seats.New(15 * time.Minute, nil)

	err := ms.WithTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		_, err := ctrl.HoldGroup(ctx, tx, eventID, []uuid.UUID{s1.ID, s2.ID, heldByOther.ID})
		return err
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSeatNotAvailable)
	assert.Equal(t, domain.SeatAvailable, ms.Seat(s1.ID).Status, "s1 must be unchanged")
	assert.Equal(t, domain.SeatAvailable, ms.Seat(s2.ID).Status, "s2 must be unchanged")
}

func TestHoldGroup_ThenBook_ThenReleaseBooked(t *testing.T) {
	ms := memstore.New()
	eventID := uuid.New()
	s1 := seedSeat(ms, eventID, domain.SeatAvailable)
	s2 := seedSeat(ms, eventID, domain.SeatAvailable)
	ctrl := seats.New(15 * time.Minute, nil)
	bookingID := uuid.New()

	err := ms.WithTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		_, err := ctrl.HoldGroup(ctx, tx, eventID, []uuid.UUID{s1.ID, s2.ID})
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, domain.SeatHeld, ms.Seat(s1.ID).Status)

	err = ms.WithTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		_, err := ctrl.BookHeldOrAvailable(ctx, tx, eventID, bookingID, []uuid.UUID{s1.ID, s2.ID})
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, domain.SeatBooked, ms.Seat(s1.ID).Status)

	err = ms.WithTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		return ctrl.ReleaseBooked(ctx, tx, eventID, bookingID)
	})
	require.NoError(t, err)
	assert.Equal(t, domain.SeatAvailable, ms.Seat(s1.ID).Status)
	assert.Equal(t, domain.SeatAvailable, ms.Seat(s2.ID).Status)
}

func TestReleaseHeld_IgnoresNonHeldSeats(t *testing.T) {
	ms := memstore.New()
	eventID := uuid.New()
	held := seedSeat(ms, eventID, domain.SeatHeld)
	available := seedSeat(ms, eventID, domain.SeatAvailable)
	ctrl := seats.New(15 * time.Minute, nil)

	err := ms.WithTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		return ctrl.ReleaseHeld(ctx, tx, eventID, []uuid.UUID{held.ID, available.ID})
	})
	require.NoError(t, err)
	assert.Equal(t, domain.SeatAvailable, ms.Seat(held.ID).Status)
	assert.Equal(t, domain.SeatAvailable, ms.Seat(available.ID).Status)
}

func TestSweepExpiredHolds(t *testing.T) {
	ms := memstore.New()
	eventID := uuid.New()
	stale := seedSeat(ms, eventID, domain.SeatHeld)
	old := time.Now().Add(-time.Hour)
	stale.HeldAt = &old
	ms.SeedSeat(stale)

	ctrl := seats.New(15 * time.Minute, nil)
	var swept int
	err := ms.WithTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		n, err := ctrl.SweepExpiredHolds(ctx, tx, time.Now())
		swept = n
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 1, swept)
	assert.Equal(t, domain.SeatAvailable, ms.Seat(stale.ID).Status)
}
