// Package store provides transactional persistence for every entity in
// internal/domain, plus the version-CAS primitive the capacity controller
// relies on for no-oversell guarantees.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"evently/internal/domain"
)

// Tx is the set of entity-scoped read/write primitives available inside a
// single transaction (or, for read-only callers, against the pool directly).
type Tx interface {
	GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error)

	CreateEvent(ctx context.Context, e *domain.Event) error
	GetEvent(ctx context.Context, id uuid.UUID) (*domain.Event, error)
	UpdateEvent(ctx context.Context, e *domain.Event) error
	ListEvents(ctx context.Context, offset, limit int) ([]domain.Event, int64, error)
	// CompareAndUpdateEventCapacity applies delta (negative reserves,
	// positive restores — Reserve passes a negative delta and Restore a
	// positive one; see internal/capacity) to
	// availableCapacity only if the stored version equals expectedVersion
	// and the result stays within [0, totalCapacity]. Returns the
	// refreshed row on success. On mismatch it distinguishes
	// ErrStaleVersion from ErrInsufficientCapacity by rereading the row.
	CompareAndUpdateEventCapacity(ctx context.Context, eventID uuid.UUID, expectedVersion int, delta int) (*domain.Event, error)
	ListActiveFutureEvents(ctx context.Context, now time.Time) ([]domain.Event, error)

	GetSeatsByIDs(ctx context.Context, eventID uuid.UUID, seatIDs []uuid.UUID) ([]domain.Seat, error)
	ListSeatsByEvent(ctx context.Context, eventID uuid.UUID) ([]domain.Seat, error)
	UpdateSeats(ctx context.Context, seats []domain.Seat) error
	ListHeldSeatsOlderThan(ctx context.Context, cutoff time.Time) ([]domain.Seat, error)
	CreateSeatBookings(ctx context.Context, sb []domain.SeatBooking) error
	GetSeatBookingsByBooking(ctx context.Context, bookingID uuid.UUID) ([]domain.SeatBooking, error)
	DeleteSeatBookingsByBooking(ctx context.Context, bookingID uuid.UUID) error

	CreateBooking(ctx context.Context, b *domain.Booking) error
	GetBooking(ctx context.Context, id uuid.UUID) (*domain.Booking, error)
	UpdateBooking(ctx context.Context, b *domain.Booking) error
	ListExpiredBookings(ctx context.Context, now time.Time, limit int) ([]domain.Booking, error)
	CountRecentBookings(ctx context.Context, eventID uuid.UUID, since, until time.Time) (int64, error)
	ListBookingsByUser(ctx context.Context, userID uuid.UUID, statusFilter *domain.BookingStatus, offset, limit int) ([]domain.Booking, int64, error)

	AppendHistory(ctx context.Context, h *domain.BookingHistory) error
	ListHistoryByBooking(ctx context.Context, bookingID uuid.UUID) ([]domain.BookingHistory, error)

	CreateWaitlist(ctx context.Context, w *domain.Waitlist) error
	GetWaitlist(ctx context.Context, id uuid.UUID) (*domain.Waitlist, error)
	GetNonTerminalWaitlistByUserEvent(ctx context.Context, userID, eventID uuid.UUID) (*domain.Waitlist, error)
	MaxWaitlistPosition(ctx context.Context, eventID uuid.UUID) (int, error)
	ListActiveWaitlistOrdered(ctx context.Context, eventID uuid.UUID) ([]domain.Waitlist, error)
	UpdateWaitlist(ctx context.Context, w *domain.Waitlist) error
	DeleteWaitlist(ctx context.Context, id uuid.UUID) error
	DecrementWaitlistPositionsAbove(ctx context.Context, eventID uuid.UUID, position int) error
	ListStaleNotifiedWaitlist(ctx context.Context, cutoff time.Time) ([]domain.Waitlist, error)
	CountWaitlist(ctx context.Context, eventID uuid.UUID) (active, notified, converted int64, err error)
}

// Store opens transactions and also exposes Tx directly for read-only use
// outside a transaction (e.g. the Scheduler's list-then-dispatch sweeps).
type Store interface {
	Tx
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
