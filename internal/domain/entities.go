// Package domain holds the entities and pure types shared by every core
// component (store, locking, capacity, seats, booking, waitlist, pricing).
// Nothing in this package performs I/O.
package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// UUIDList is a jsonb-backed array of ids, used for Booking.SeatIDs. This
// follows the teacher's JSONMap Scanner/Valuer idiom (internal/waitlist's
// jsonb preferences column) specialized to a UUID slice.
type UUIDList []uuid.UUID

func (l UUIDList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	return json.Marshal(l)
}

func (l *UUIDList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}
	b, ok := value.([]byte)
	if !ok {
		return errors.New("UUIDList.Scan: expected []byte")
	}
	return json.Unmarshal(b, l)
}

func (UUIDList) GormDataType() string { return "jsonb" }

// SeatStatus is the lifecycle state of a single seat.
type SeatStatus string

const (
	SeatAvailable SeatStatus = "AVAILABLE"
	SeatHeld      SeatStatus = "HELD"
	SeatBooked    SeatStatus = "BOOKED"
	SeatBlocked   SeatStatus = "BLOCKED"
)

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	BookingPending   BookingStatus = "PENDING"
	BookingConfirmed BookingStatus = "CONFIRMED"
	BookingCancelled BookingStatus = "CANCELLED"
	BookingExpired   BookingStatus = "EXPIRED"
)

// IsTerminal reports whether the booking has left PENDING; a CONFIRMED
// booking can still move to CANCELLED.
func (s BookingStatus) IsTerminal() bool {
	return s == BookingConfirmed || s == BookingCancelled || s == BookingExpired
}

// WaitlistStatus is the lifecycle state of a waitlist entry.
type WaitlistStatus string

const (
	WaitlistActive    WaitlistStatus = "ACTIVE"
	WaitlistNotified  WaitlistStatus = "NOTIFIED"
	WaitlistExpired   WaitlistStatus = "EXPIRED"
	WaitlistConverted WaitlistStatus = "CONVERTED"
)

// IsTerminal reports whether the waitlist entry can no longer transition.
func (s WaitlistStatus) IsTerminal() bool {
	return s == WaitlistConverted
}

// IsNonTerminal reports whether the entry still occupies a FIFO position.
// No code path leaves an entry EXPIRED: the scheduler's sweep moves a
// stale NOTIFIED entry straight back to ACTIVE at the tail.
func (s WaitlistStatus) IsNonTerminal() bool {
	return s == WaitlistActive || s == WaitlistNotified
}

// HistoryAction is the kind of transition recorded in BookingHistory.
type HistoryAction string

const (
	HistoryCreated   HistoryAction = "CREATED"
	HistoryConfirmed HistoryAction = "CONFIRMED"
	HistoryCancelled HistoryAction = "CANCELLED"
	HistoryExpired   HistoryAction = "EXPIRED"
	HistoryModified  HistoryAction = "MODIFIED"
)

// User owns bookings and waitlist entries. Immutable from the engine's
// perspective except for admin activation.
type User struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	Email        string    `gorm:"uniqueIndex;not null"`
	PasswordHash string    `gorm:"not null"`
	FirstName    string    `gorm:"not null"`
	LastName     string    `gorm:"not null"`
	IsAdmin      bool      `gorm:"not null;default:false"`
	IsActive     bool      `gorm:"not null;default:true"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (User) TableName() string { return "users" }

// Event is a bounded inventory of tickets, optionally with assigned seating.
type Event struct {
	ID                uuid.UUID       `gorm:"type:uuid;primaryKey"`
	Name              string          `gorm:"not null;index"`
	Description       string          `gorm:""`
	Venue             string          `gorm:"not null"`
	EventDate         time.Time       `gorm:"not null;index"`
	TotalCapacity     int             `gorm:"not null;check:total_capacity > 0"`
	AvailableCapacity int             `gorm:"not null;check:available_capacity >= 0"`
	Price             decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	HasSeatSelection  bool            `gorm:"not null;default:false"`
	Version           int             `gorm:"not null;default:0"`
	IsActive          bool            `gorm:"not null;default:true;index"`
	OrganizerID       uuid.UUID       `gorm:"type:uuid;not null"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (Event) TableName() string { return "events" }

// Seat is an individually addressable unit of inventory for venues with
// assigned seating. Uniqueness: (EventID, Section, Row, Number).
type Seat struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey"`
	EventID   uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_seat_location"`
	Section   string          `gorm:"not null;uniqueIndex:idx_seat_location"`
	Row       string          `gorm:"not null;uniqueIndex:idx_seat_location"`
	Number    string          `gorm:"not null;uniqueIndex:idx_seat_location"`
	Price     decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Status    SeatStatus      `gorm:"type:varchar(20);not null;default:'AVAILABLE';index"`
	HoldGroup *uuid.UUID      `gorm:"type:uuid"`
	HeldAt    *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Seat) TableName() string { return "seats" }

// Booking is a reservation of quantity (or specific seats) against an event.
type Booking struct {
	ID                 uuid.UUID       `gorm:"type:uuid;primaryKey"`
	ReferenceCode       string          `gorm:"uniqueIndex;not null"`
	UserID              uuid.UUID       `gorm:"type:uuid;not null;index"`
	EventID             uuid.UUID       `gorm:"type:uuid;not null;index"`
	Quantity            int             `gorm:"not null;check:quantity > 0"`
	SeatIDs             UUIDList        `gorm:"type:jsonb"`
	TotalAmount         decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Status              BookingStatus   `gorm:"type:varchar(20);not null;index"`
	ExpiresAt           *time.Time      `gorm:"index"`
	PaymentReference    *string
	CancellationReason  *string
	ConfirmedAt         *time.Time
	CancelledAt         *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

func (Booking) TableName() string { return "bookings" }

// SeatBooking binds a seat to a booking for seat-selection events. Unique
// (BookingID, SeatID).
type SeatBooking struct {
	BookingID uuid.UUID       `gorm:"type:uuid;primaryKey"`
	SeatID    uuid.UUID       `gorm:"type:uuid;primaryKey"`
	Price     decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	CreatedAt time.Time
}

func (SeatBooking) TableName() string { return "seat_bookings" }

// Waitlist is a per-event FIFO entry awaiting freed capacity. At most one
// non-terminal entry exists per (UserID, EventID); positions are dense and
// gap-free over non-terminal entries, see WaitlistCoordinator.
type Waitlist struct {
	ID                uuid.UUID      `gorm:"type:uuid;primaryKey"`
	UserID            uuid.UUID      `gorm:"type:uuid;not null;index"`
	EventID           uuid.UUID      `gorm:"type:uuid;not null;index"`
	RequestedQuantity int            `gorm:"not null;check:requested_quantity > 0"`
	Position          int            `gorm:"not null;index"`
	Status            WaitlistStatus `gorm:"type:varchar(20);not null;index"`
	NotifiedAt        *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (Waitlist) TableName() string { return "waitlist" }

// BookingHistory is an append-only audit log. Rows are never mutated once
// written.
type BookingHistory struct {
	ID          uuid.UUID     `gorm:"type:uuid;primaryKey"`
	BookingID   uuid.UUID     `gorm:"type:uuid;not null;index"`
	Action      HistoryAction `gorm:"type:varchar(20);not null"`
	Details     string
	PerformedBy *uuid.UUID `gorm:"type:uuid"`
	CreatedAt   time.Time
}

func (BookingHistory) TableName() string { return "booking_history" }
