package scheduler_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evently/internal/booking"
	"evently/internal/capacity"
	"evently/internal/domain"
	"evently/internal/lock"
	"evently/internal/notify/notifytest"
	"evently/internal/pricing"
	"evently/internal/scheduler"
	"evently/internal/seats"
	"evently/internal/store/memstore"
	"evently/internal/waitlist"
)

type noopLock struct{}

func (noopLock) Acquire(ctx context.Context, key string, ttl, wait time.Duration) (string, error) {
	return "tok", nil
}
func (noopLock) Release(ctx context.Context, key, token string) error { return nil }

var _ lock.Service = noopLock{}

func newHarness(t *testing.T, holdTimeout time.Duration) (*memstore.MemStore, *booking.Engine, *seats.Controller, *waitlist.Coordinator) {
	t.Helper()
	st := memstore.New()
	rec := notifytest.New()
	cap := capacity.New(capacity.DefaultRetryConfig())
	seatCtl := seats.New(holdTimeout, nil)
	wl := waitlist.New(time.Hour, rec)
	cfg := booking.DefaultConfig()
	cfg.HoldTimeout = holdTimeout
	eng := booking.New(st, cap, seatCtl, wl, noopLock{}, rec, cfg, nil)
	return st, eng, seatCtl, wl
}

func seedEvent(st *memstore.MemStore, price decimal.Decimal, total, available int, eventDate time.Time) domain.Event {
	e := domain.Event{
		ID: uuid.New(), Name: "E", Venue: "V", EventDate: eventDate,
		TotalCapacity: total, AvailableCapacity: available, Price: price,
		Version: 0, IsActive: true, OrganizerID: uuid.New(),
	}
	st.SeedEvent(e)
	return e
}

func TestScheduler_StartRegistersAllJobsWithoutError(t *testing.T) {
	st, eng, seatCtl, wl := newHarness(t, 15*time.Minute)
	cfg := scheduler.DefaultConfig()
	cfg.ExpireBookingsCron = "@every 1h"
	cfg.SweepSeatHoldsCron = "@every 1h"
	cfg.ExpireWaitlistCron = "@every 1h"
	cfg.PriceTickCron = "@every 1h"

	sched := scheduler.New(st, eng, seatCtl, wl, pricing.DefaultConfig(), cfg, nil)
	require.NoError(t, sched.Start())
	<-sched.Stop().Done()
}

// TestScheduler_ExpireBookingsSweepsStaleHolds starts a scheduler whose
// ExpireBookings job runs every tick and confirms a stale PENDING booking
// is expired (capacity restored) without any direct call into the
// scheduler's unexported job methods — only the public lifecycle.
func TestScheduler_ExpireBookingsSweepsStaleHolds(t *testing.T) {
	st, eng, seatCtl, wl := newHarness(t, 10*time.Millisecond)
	event := seedEvent(st, decimal.NewFromInt(50), 10, 10, time.Now().UTC().Add(48*time.Hour))

	b, err := eng.Create(context.Background(), uuid.New(), event.ID, 3, nil)
	require.NoError(t, err)
	require.Equal(t, 7, st.Event(event.ID).AvailableCapacity)

	cfg := scheduler.DefaultConfig()
	cfg.ExpireBookingsCron = "@every 20ms"
	cfg.SweepSeatHoldsCron = "@every 1h"
	cfg.ExpireWaitlistCron = "@every 1h"
	cfg.PriceTickCron = "@every 1h"
	sched := scheduler.New(st, eng, seatCtl, wl, pricing.DefaultConfig(), cfg, nil)
	require.NoError(t, sched.Start())
	defer func() { <-sched.Stop().Done() }()

	require.Eventually(t, func() bool {
		return st.Booking(b.ID).Status == domain.BookingExpired
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, 10, st.Event(event.ID).AvailableCapacity)
}

// TestScheduler_SweepSeatHoldsReleasesStaleHolds exercises the
// SweepSeatHolds job the same way: only through Start, never reaching
// into the unexported sweep method.
func TestScheduler_SweepSeatHoldsReleasesStaleHolds(t *testing.T) {
	st, eng, seatCtl, wl := newHarness(t, 10*time.Millisecond)
	event := seedEvent(st, decimal.NewFromInt(50), 10, 10, time.Now().UTC().Add(48*time.Hour))
	seat := domain.Seat{ID: uuid.New(), EventID: event.ID, Section: "A", Row: "1", Number: "1", Price: decimal.NewFromInt(10), Status: domain.SeatAvailable}
	st.SeedSeat(seat)

	// Hand-craft a seat hold the way seats.Controller.HoldGroup would,
	// bypassing the Engine so only SweepExpiredHolds is exercised.
	past := time.Now().UTC().Add(-time.Hour)
	groupID := uuid.New()
	heldSeat := seat
	heldSeat.Status = domain.SeatHeld
	heldSeat.HoldGroup = &groupID
	heldSeat.HeldAt = &past
	st.SeedSeat(heldSeat)

	cfg := scheduler.DefaultConfig()
	cfg.ExpireBookingsCron = "@every 1h"
	cfg.SweepSeatHoldsCron = "@every 20ms"
	cfg.ExpireWaitlistCron = "@every 1h"
	cfg.PriceTickCron = "@every 1h"
	sched := scheduler.New(st, eng, seatCtl, wl, pricing.DefaultConfig(), cfg, nil)
	require.NoError(t, sched.Start())
	defer func() { <-sched.Stop().Done() }()

	require.Eventually(t, func() bool {
		return st.Seat(seat.ID).Status == domain.SeatAvailable
	}, time.Second, 10*time.Millisecond)
}

func TestPriceTick_FormulaClearsGateOnNearSelloutLastMinuteEvent(t *testing.T) {
	basePrice := decimal.NewFromInt(100)
	cfg := pricing.DefaultConfig()
	in := pricing.Input{
		BasePrice: basePrice, TotalCapacity: 100, AvailableCapacity: 2,
		EventDate: time.Now().UTC().Add(12 * time.Hour), Now: time.Now().UTC(),
	}
	newPrice := pricing.Evaluate(in, cfg)
	delta := pricing.PercentDelta(basePrice, newPrice)
	assert.True(t, delta >= 1.0, "fixture should clear the scheduler's persistence gate")
}

// TestScheduler_PriceTickPersistsAboveGate starts a scheduler against an
// event whose demand/time conditions guarantee a >=1% price move and
// confirms the event's stored price changes after a tick.
func TestScheduler_PriceTickPersistsAboveGate(t *testing.T) {
	st, eng, seatCtl, wl := newHarness(t, 15*time.Minute)
	basePrice := decimal.NewFromInt(100)
	event := seedEvent(st, basePrice, 100, 2, time.Now().UTC().Add(12*time.Hour))

	cfg := scheduler.DefaultConfig()
	cfg.ExpireBookingsCron = "@every 1h"
	cfg.SweepSeatHoldsCron = "@every 1h"
	cfg.ExpireWaitlistCron = "@every 1h"
	cfg.PriceTickCron = "@every 20ms"
	sched := scheduler.New(st, eng, seatCtl, wl, pricing.DefaultConfig(), cfg, nil)
	require.NoError(t, sched.Start())
	defer func() { <-sched.Stop().Done() }()

	require.Eventually(t, func() bool {
		return !st.Event(event.ID).Price.Equal(basePrice)
	}, time.Second, 10*time.Millisecond)
}
