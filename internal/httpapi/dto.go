package httpapi

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/google/uuid"

	"evently/internal/domain"
)

// createBookingRequest is the payload for POST /bookings. SeatIDs is
// omitted entirely for quantity-only events; when present its length must
// equal Quantity (enforced by the engine, not here).
type createBookingRequest struct {
	EventID  uuid.UUID   `json:"event_id" binding:"required"`
	Quantity int         `json:"quantity" binding:"required,min=1"`
	SeatIDs  []uuid.UUID `json:"seat_ids,omitempty"`
}

type confirmBookingRequest struct {
	PaymentReference *string `json:"payment_reference,omitempty"`
}

type cancelBookingRequest struct {
	Reason *string `json:"reason,omitempty"`
}

type joinWaitlistRequest struct {
	EventID  uuid.UUID `json:"event_id" binding:"required"`
	Quantity int       `json:"quantity" binding:"required,min=1"`
}

// holdSeatsRequest is the payload for POST /events/:eventId/seats/hold.
// HoldDurationMinutes must fall in [1,60] (enforced by the engine).
type holdSeatsRequest struct {
	SeatIDs             []uuid.UUID `json:"seat_ids" binding:"required,min=1"`
	HoldDurationMinutes int         `json:"hold_duration_minutes" binding:"required"`
}

type holdSeatsResponse struct {
	HeldSeatIDs []uuid.UUID `json:"held_seat_ids"`
	ExpiresAt   time.Time   `json:"expires_at"`
}

type releaseHeldSeatsRequest struct {
	SeatIDs []uuid.UUID `json:"seat_ids" binding:"required,min=1"`
}

type releaseHeldSeatsResponse struct {
	ReleasedCount int `json:"released_count"`
}

// bookingResponse is the wire shape for a booking, decoupled from
// domain.Booking so the JSON contract doesn't drift with storage columns.
type bookingResponse struct {
	ID                 uuid.UUID       `json:"id"`
	ReferenceCode      string          `json:"reference_code"`
	EventID            uuid.UUID       `json:"event_id"`
	Quantity           int             `json:"quantity"`
	SeatIDs            []uuid.UUID     `json:"seat_ids,omitempty"`
	TotalAmount        decimal.Decimal `json:"total_amount"`
	Status             domain.BookingStatus `json:"status"`
	ExpiresAt          *time.Time      `json:"expires_at,omitempty"`
	PaymentReference   *string         `json:"payment_reference,omitempty"`
	CancellationReason *string         `json:"cancellation_reason,omitempty"`
	ConfirmedAt        *time.Time      `json:"confirmed_at,omitempty"`
	CancelledAt        *time.Time      `json:"cancelled_at,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
}

func toBookingResponse(b *domain.Booking) bookingResponse {
	return bookingResponse{
		ID:                 b.ID,
		ReferenceCode:       b.ReferenceCode,
		EventID:             b.EventID,
		Quantity:            b.Quantity,
		SeatIDs:             []uuid.UUID(b.SeatIDs),
		TotalAmount:         b.TotalAmount,
		Status:              b.Status,
		ExpiresAt:           b.ExpiresAt,
		PaymentReference:    b.PaymentReference,
		CancellationReason:  b.CancellationReason,
		ConfirmedAt:         b.ConfirmedAt,
		CancelledAt:         b.CancelledAt,
		CreatedAt:           b.CreatedAt,
	}
}

type cancelBookingResponse struct {
	Booking bookingResponse `json:"booking"`
	Refund  decimal.Decimal `json:"refund_amount"`
}

type waitlistResponse struct {
	ID                uuid.UUID            `json:"id"`
	EventID           uuid.UUID            `json:"event_id"`
	RequestedQuantity int                  `json:"requested_quantity"`
	Position          int                  `json:"position"`
	Status            domain.WaitlistStatus `json:"status"`
	CreatedAt         time.Time            `json:"created_at"`
}

func toWaitlistResponse(w *domain.Waitlist) waitlistResponse {
	return waitlistResponse{
		ID:                w.ID,
		EventID:           w.EventID,
		RequestedQuantity: w.RequestedQuantity,
		Position:          w.Position,
		Status:            w.Status,
		CreatedAt:         w.CreatedAt,
	}
}
