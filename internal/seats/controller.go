// Package seats implements atomic state transitions on sets of seats,
// always within a Store transaction. State is held in Postgres; Redis
// backs only the LockService and a read-through seat-map cache, never the
// system of record (this generalizes the teacher's redis_atomic.go, which
// used Redis as the primary seat-hold ledger).
package seats

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"evently/internal/domain"
	"evently/internal/store"
)

type Controller struct {
	holdTTL time.Duration
	cache   *MapCache // optional; nil disables seat-map cache invalidation
}

// New builds a SeatController with the given default hold TTL, used by
// SweepExpiredHolds to find stale HELD rows. cache may be nil, in which
// case every state transition below skips cache invalidation.
func New(holdTTL time.Duration, cache *MapCache) *Controller {
	return &Controller{holdTTL: holdTTL, cache: cache}
}

// invalidate drops the cached seat map for eventID, best-effort. Called
// after every committed state transition below; a failed invalidation
// just means the next read serves a stale map until the TTL expires —
// HoldGroup/BookHeldOrAvailable always re-validate seat rows against
// Postgres regardless, so this never causes an incorrect booking.
func (c *Controller) invalidate(ctx context.Context, eventID uuid.UUID) {
	if c.cache == nil {
		return
	}
	_ = c.cache.Invalidate(ctx, eventID)
}

// sortedIDs returns ids sorted so multi-seat updates lock rows in a
// consistent order, avoiding deadlocks between concurrent partial-overlap
// holds on the same seats.
func sortedIDs(ids []uuid.UUID) []uuid.UUID {
	out := append([]uuid.UUID(nil), ids...)
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// HoldGroup transitions every seat in seatIDs from AVAILABLE to HELD,
// recording a shared hold-group id and timestamp. All-or-nothing: if any
// seat fails its precondition, no seat in the set changes.
func (c *Controller) HoldGroup(ctx context.Context, tx store.Tx, eventID uuid.UUID, seatIDs []uuid.UUID) ([]domain.Seat, error) {
	ids := sortedIDs(seatIDs)
	seats, err := tx.GetSeatsByIDs(ctx, eventID, ids)
	if err != nil {
		return nil, err
	}
	if len(seats) != len(ids) {
		return nil, domain.WithDetail(domain.ErrSeatNotAvailable, "unknown seat id in request")
	}

	now := time.Now().UTC()
	groupID := uuid.New()
	for i := range seats {
		if seats[i].Status != domain.SeatAvailable {
			return nil, domain.WithSeatConflict(seats[i].ID.String(), seats[i].Status)
		}
	}
	for i := range seats {
		seats[i].Status = domain.SeatHeld
		seats[i].HoldGroup = &groupID
		seats[i].HeldAt = &now
	}
	if err := tx.UpdateSeats(ctx, seats); err != nil {
		return nil, err
	}
	c.invalidate(ctx, eventID)
	return seats, nil
}

// BookHeldOrAvailable transitions each seat (AVAILABLE or HELD) to BOOKED
// and writes its SeatBooking row. Used both for seat-selection bookings
// created directly against AVAILABLE seats and for confirming a prior
// HoldGroup.
func (c *Controller) BookHeldOrAvailable(ctx context.Context, tx store.Tx, eventID, bookingID uuid.UUID, seatIDs []uuid.UUID) ([]domain.Seat, error) {
	ids := sortedIDs(seatIDs)
	seats, err := tx.GetSeatsByIDs(ctx, eventID, ids)
	if err != nil {
		return nil, err
	}
	if len(seats) != len(ids) {
		return nil, domain.WithDetail(domain.ErrSeatNotAvailable, "unknown seat id in request")
	}
	for i := range seats {
		if seats[i].Status != domain.SeatAvailable && seats[i].Status != domain.SeatHeld {
			return nil, domain.WithSeatConflict(seats[i].ID.String(), seats[i].Status)
		}
	}

	bindings := make([]domain.SeatBooking, 0, len(seats))
	for i := range seats {
		seats[i].Status = domain.SeatBooked
		seats[i].HoldGroup = nil
		seats[i].HeldAt = nil
		bindings = append(bindings, domain.SeatBooking{
			BookingID: bookingID,
			SeatID:    seats[i].ID,
			Price:     seats[i].Price,
		})
	}
	if err := tx.UpdateSeats(ctx, seats); err != nil {
		return nil, err
	}
	if err := tx.CreateSeatBookings(ctx, bindings); err != nil {
		return nil, err
	}
	c.invalidate(ctx, eventID)
	return seats, nil
}

// ReleaseHeld transitions HELD seats back to AVAILABLE, silently ignoring
// any seat that is not currently HELD.
func (c *Controller) ReleaseHeld(ctx context.Context, tx store.Tx, eventID uuid.UUID, seatIDs []uuid.UUID) error {
	ids := sortedIDs(seatIDs)
	seats, err := tx.GetSeatsByIDs(ctx, eventID, ids)
	if err != nil {
		return err
	}
	var toUpdate []domain.Seat
	for _, s := range seats {
		if s.Status == domain.SeatHeld {
			s.Status = domain.SeatAvailable
			s.HoldGroup = nil
			s.HeldAt = nil
			toUpdate = append(toUpdate, s)
		}
	}
	if err := tx.UpdateSeats(ctx, toUpdate); err != nil {
		return err
	}
	c.invalidate(ctx, eventID)
	return nil
}

// ReleaseBooked transitions every seat bound to bookingID back to
// AVAILABLE and deletes its SeatBooking rows.
func (c *Controller) ReleaseBooked(ctx context.Context, tx store.Tx, eventID, bookingID uuid.UUID) error {
	bindings, err := tx.GetSeatBookingsByBooking(ctx, bookingID)
	if err != nil {
		return err
	}
	if len(bindings) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, 0, len(bindings))
	for _, b := range bindings {
		ids = append(ids, b.SeatID)
	}
	seats, err := tx.GetSeatsByIDs(ctx, eventID, sortedIDs(ids))
	if err != nil {
		return err
	}
	for i := range seats {
		seats[i].Status = domain.SeatAvailable
		seats[i].HoldGroup = nil
		seats[i].HeldAt = nil
	}
	if err := tx.UpdateSeats(ctx, seats); err != nil {
		return err
	}
	if err := tx.DeleteSeatBookingsByBooking(ctx, bookingID); err != nil {
		return err
	}
	c.invalidate(ctx, eventID)
	return nil
}

// SweepExpiredHolds transitions every seat held longer than the
// controller's hold TTL back to AVAILABLE, returning the count swept.
func (c *Controller) SweepExpiredHolds(ctx context.Context, tx store.Tx, now time.Time) (int, error) {
	cutoff := now.Add(-c.holdTTL)
	stale, err := tx.ListHeldSeatsOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	for i := range stale {
		stale[i].Status = domain.SeatAvailable
		stale[i].HoldGroup = nil
		stale[i].HeldAt = nil
	}
	if err := tx.UpdateSeats(ctx, stale); err != nil {
		return 0, err
	}
	seen := make(map[uuid.UUID]bool)
	for _, s := range stale {
		if !seen[s.EventID] {
			seen[s.EventID] = true
			c.invalidate(ctx, s.EventID)
		}
	}
	return len(stale), nil
}
