package booking_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evently/internal/booking"
	"evently/internal/capacity"
	"evently/internal/domain"
	"evently/internal/notify/notifytest"
	"evently/internal/seats"
	"evently/internal/store"
	"evently/internal/store/memstore"
	"evently/internal/waitlist"
)

// noopLock is a lock.Service fake that always grants immediately. Tests
// exercise the engine's correctness guarantees, which never depend on the
// lock (the store's version CAS is the sole guarantor).
type noopLock struct{}

func (noopLock) Acquire(ctx context.Context, key string, ttl, wait time.Duration) (string, error) {
	return "tok", nil
}
func (noopLock) Release(ctx context.Context, key, token string) error { return nil }

func newEngine(t *testing.T, holdTimeout time.Duration) (*booking.Engine, *memstore.MemStore, *notifytest.Recorder) {
	t.Helper()
	st := memstore.New()
	rec := notifytest.New()
	cap := capacity.New(capacity.DefaultRetryConfig())
	seatCtl := seats.New(holdTimeout, nil)
	wl := waitlist.New(time.Hour, rec)
	cfg := booking.DefaultConfig()
	cfg.HoldTimeout = holdTimeout
	cfg.MaxQuantity = 10
	eng := booking.New(st, cap, seatCtl, wl, noopLock{}, rec, cfg, nil)
	return eng, st, rec
}

func seedEvent(t *testing.T, st *memstore.MemStore, capacity_, total int, hasSeats bool) domain.Event {
	t.Helper()
	e := domain.Event{
		ID:                uuid.New(),
		Name:              "Test Event",
		Venue:             "Test Venue",
		EventDate:         time.Now().UTC().Add(30 * 24 * time.Hour),
		TotalCapacity:     total,
		AvailableCapacity: capacity_,
		Price:             decimal.NewFromInt(50),
		HasSeatSelection:  hasSeats,
		Version:           0,
		IsActive:          true,
		OrganizerID:       uuid.New(),
	}
	st.SeedEvent(e)
	return e
}

func TestCreate_ReservesCapacityAndCreatesPendingBooking(t *testing.T) {
	eng, st, _ := newEngine(t, 15*time.Minute)
	event := seedEvent(t, st, 10, 10, false)
	userID := uuid.New()

	b, err := eng.Create(context.Background(), userID, event.ID, 3, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingPending, b.Status)
	assert.Equal(t, decimal.NewFromInt(150), b.TotalAmount)
	assert.NotEmpty(t, b.ReferenceCode)

	updated := st.Event(event.ID)
	assert.Equal(t, 7, updated.AvailableCapacity)
	assert.Equal(t, 1, updated.Version)
}

func TestCreate_RejectsInvalidQuantity(t *testing.T) {
	eng, st, _ := newEngine(t, 15*time.Minute)
	event := seedEvent(t, st, 10, 10, false)

	_, err := eng.Create(context.Background(), uuid.New(), event.ID, 0, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	_, err = eng.Create(context.Background(), uuid.New(), event.ID, 999, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
}

func TestCreate_RejectsWhenInsufficientCapacity(t *testing.T) {
	eng, st, _ := newEngine(t, 15*time.Minute)
	event := seedEvent(t, st, 2, 10, false)

	_, err := eng.Create(context.Background(), uuid.New(), event.ID, 5, nil)
	assert.ErrorIs(t, err, domain.ErrInsufficientCapacity)
}

// TestCreate_NeverOversells races N concurrent Create calls for 1 ticket
// each against an event with capacity for only half of them, asserting
// exactly capacity bookings succeed — the core no-oversell guarantee.
func TestCreate_NeverOversells(t *testing.T) {
	eng, st, _ := newEngine(t, 15*time.Minute)
	event := seedEvent(t, st, 5, 5, false)

	const racers = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := eng.Create(context.Background(), uuid.New(), event.ID, 1, nil)
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, successes)
	assert.Equal(t, 0, st.Event(event.ID).AvailableCapacity)
}

func TestConfirm_TransitionsPendingToConfirmed(t *testing.T) {
	eng, st, rec := newEngine(t, 15*time.Minute)
	event := seedEvent(t, st, 10, 10, false)
	b, err := eng.Create(context.Background(), uuid.New(), event.ID, 2, nil)
	require.NoError(t, err)

	ref := "pay_123"
	confirmed, err := eng.Confirm(context.Background(), b.ID, &ref)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingConfirmed, confirmed.Status)
	assert.Nil(t, confirmed.ExpiresAt)
	assert.Equal(t, 1, rec.CountOfType("BOOKING_CONFIRMATION"))
}

func TestConfirm_RejectsAfterHoldExpiry(t *testing.T) {
	eng, st, _ := newEngine(t, 10*time.Millisecond)
	event := seedEvent(t, st, 10, 10, false)
	b, err := eng.Create(context.Background(), uuid.New(), event.ID, 1, nil)
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	_, err = eng.Confirm(context.Background(), b.ID, nil)
	assert.ErrorIs(t, err, domain.ErrBookingExpired)
}

func TestConfirm_RejectsNonPendingBooking(t *testing.T) {
	eng, st, _ := newEngine(t, 15*time.Minute)
	event := seedEvent(t, st, 10, 10, false)
	b, err := eng.Create(context.Background(), uuid.New(), event.ID, 1, nil)
	require.NoError(t, err)
	_, err = eng.Confirm(context.Background(), b.ID, nil)
	require.NoError(t, err)

	_, err = eng.Confirm(context.Background(), b.ID, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidBookingState)
}

func TestCancel_RestoresCapacityAndNotifiesWaitlist(t *testing.T) {
	eng, st, rec := newEngine(t, 15*time.Minute)
	event := seedEvent(t, st, 1, 1, false)

	// Sell out the event.
	b, err := eng.Create(context.Background(), uuid.New(), event.ID, 1, nil)
	require.NoError(t, err)
	_, err = eng.Confirm(context.Background(), b.ID, nil)
	require.NoError(t, err)

	// A second user joins the waitlist directly against the store, since
	// the event is now sold out.
	err = st.WithTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		return tx.CreateWaitlist(ctx, &domain.Waitlist{
			ID: uuid.New(), UserID: uuid.New(), EventID: event.ID,
			RequestedQuantity: 1, Position: 1, Status: domain.WaitlistActive,
		})
	})
	require.NoError(t, err)

	_, refund, err := eng.Cancel(context.Background(), b.ID, nil)
	require.NoError(t, err)
	assert.True(t, refund.GreaterThan(decimal.Zero))
	assert.Equal(t, 1, st.Event(event.ID).AvailableCapacity)
	assert.Equal(t, 1, rec.CountOfType("BOOKING_CANCELLATION"))
	assert.Equal(t, 1, rec.CountOfType("WAITLIST_AVAILABILITY"))
}

func TestCancel_RejectsAlreadyCancelled(t *testing.T) {
	eng, st, _ := newEngine(t, 15*time.Minute)
	event := seedEvent(t, st, 10, 10, false)
	b, err := eng.Create(context.Background(), uuid.New(), event.ID, 1, nil)
	require.NoError(t, err)

	_, _, err = eng.Cancel(context.Background(), b.ID, nil)
	require.NoError(t, err)

	_, _, err = eng.Cancel(context.Background(), b.ID, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidBookingState)
}

func TestExpire_TerminatesStalePendingBookingOnly(t *testing.T) {
	eng, st, _ := newEngine(t, 10*time.Millisecond)
	event := seedEvent(t, st, 10, 10, false)
	b, err := eng.Create(context.Background(), uuid.New(), event.ID, 2, nil)
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	expired, err := eng.Expire(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingExpired, expired.Status)
	assert.Equal(t, 10, st.Event(event.ID).AvailableCapacity)

	// Expiring an already-terminal booking is a no-op, not an error.
	again, err := eng.Expire(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingExpired, again.Status)
}

func TestCreate_SeatSelectionHoldsExactSeatsAndComputesPriceFromSeats(t *testing.T) {
	eng, st, _ := newEngine(t, 15*time.Minute)
	event := seedEvent(t, st, 10, 10, true)
	s1 := domain.Seat{ID: uuid.New(), EventID: event.ID, Section: "A", Row: "1", Number: "1", Price: decimal.NewFromInt(75), Status: domain.SeatAvailable}
	s2 := domain.Seat{ID: uuid.New(), EventID: event.ID, Section: "A", Row: "1", Number: "2", Price: decimal.NewFromInt(75), Status: domain.SeatAvailable}
	st.SeedSeat(s1)
	st.SeedSeat(s2)

	b, err := eng.Create(context.Background(), uuid.New(), event.ID, 2, []uuid.UUID{s1.ID, s2.ID})
	require.NoError(t, err)
	assert.Equal(t, decimal.NewFromInt(150), b.TotalAmount)
	assert.Equal(t, domain.SeatHeld, st.Seat(s1.ID).Status)
	assert.Equal(t, domain.SeatHeld, st.Seat(s2.ID).Status)
}

func TestCreate_RejectsSeatSelectionWhenEventDoesNotSupportIt(t *testing.T) {
	eng, st, _ := newEngine(t, 15*time.Minute)
	event := seedEvent(t, st, 10, 10, false)
	_, err := eng.Create(context.Background(), uuid.New(), event.ID, 1, []uuid.UUID{uuid.New()})
	assert.ErrorIs(t, err, domain.ErrSeatSelectionUnsupported)
}

func TestGenerateReceipt_IncludesSeatLabelsForSeatBookings(t *testing.T) {
	eng, st, _ := newEngine(t, 15*time.Minute)
	event := seedEvent(t, st, 10, 10, true)
	s1 := domain.Seat{ID: uuid.New(), EventID: event.ID, Section: "A", Row: "1", Number: "1", Price: decimal.NewFromInt(75), Status: domain.SeatAvailable}
	st.SeedSeat(s1)

	b, err := eng.Create(context.Background(), uuid.New(), event.ID, 1, []uuid.UUID{s1.ID})
	require.NoError(t, err)
	_, err = eng.Confirm(context.Background(), b.ID, nil)
	require.NoError(t, err)

	receipt, err := eng.GenerateReceipt(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"A-11"}, receipt.Seats)
	assert.Equal(t, event.Name, receipt.EventName)
}

func TestSearchUserBookings_FiltersByStatus(t *testing.T) {
	eng, st, _ := newEngine(t, 15*time.Minute)
	event := seedEvent(t, st, 10, 10, false)
	userID := uuid.New()
	b1, err := eng.Create(context.Background(), userID, event.ID, 1, nil)
	require.NoError(t, err)
	_, err = eng.Create(context.Background(), userID, event.ID, 1, nil)
	require.NoError(t, err)

	_, err = eng.Confirm(context.Background(), b1.ID, nil)
	require.NoError(t, err)

	confirmed := domain.BookingConfirmed
	bookings, total, err := eng.SearchUserBookings(context.Background(), userID, &confirmed, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, bookings, 1)
	assert.Equal(t, b1.ID, bookings[0].ID)
}

func TestGetCategorizedBookings_BucketsByStatusAndEventDate(t *testing.T) {
	eng, st, _ := newEngine(t, 15*time.Minute)
	event := seedEvent(t, st, 10, 10, false)
	userID := uuid.New()

	pending, err := eng.Create(context.Background(), userID, event.ID, 1, nil)
	require.NoError(t, err)

	confirmedB, err := eng.Create(context.Background(), userID, event.ID, 1, nil)
	require.NoError(t, err)
	_, err = eng.Confirm(context.Background(), confirmedB.ID, nil)
	require.NoError(t, err)

	cancelledB, err := eng.Create(context.Background(), userID, event.ID, 1, nil)
	require.NoError(t, err)
	_, _, err = eng.Cancel(context.Background(), cancelledB.ID, nil)
	require.NoError(t, err)

	cat, err := eng.GetCategorizedBookings(context.Background(), userID)
	require.NoError(t, err)
	assert.Len(t, cat.Pending, 1)
	assert.Equal(t, pending.ID, cat.Pending[0].ID)
	assert.Len(t, cat.Upcoming, 1)
	assert.Len(t, cat.Cancelled, 1)
	assert.Len(t, cat.Past, 0)
}
