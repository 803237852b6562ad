package booking

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"evently/internal/domain"
)

// Receipt is the read model behind GET /bookings/{id}/receipt (SPEC_FULL
// §10.2), assembled from a booking, its event, and (for seat-selection
// bookings) the seats actually bound to it.
type Receipt struct {
	BookingID     uuid.UUID       `json:"booking_id"`
	ReferenceCode string          `json:"reference_code"`
	EventName     string          `json:"event_name"`
	Venue         string          `json:"venue"`
	EventDate     string          `json:"event_date"`
	Quantity      int             `json:"quantity"`
	Seats         []string        `json:"seats,omitempty"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Status        domain.BookingStatus `json:"status"`
	IssuedAt      string          `json:"issued_at"`
}

// GenerateReceipt assembles a printable receipt for a CONFIRMED or
// PENDING booking. Adapted from the teacher's booking-detail projection,
// extended with the seat labels bound to the booking.
func (e *Engine) GenerateReceipt(ctx context.Context, bookingID uuid.UUID) (*Receipt, error) {
	b, err := e.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	event, err := e.store.GetEvent(ctx, b.EventID)
	if err != nil {
		return nil, err
	}

	var seatLabels []string
	if len(b.SeatIDs) > 0 {
		bindings, err := e.store.GetSeatBookingsByBooking(ctx, b.ID)
		if err != nil {
			return nil, err
		}
		if len(bindings) > 0 {
			ids := make([]uuid.UUID, 0, len(bindings))
			for _, bd := range bindings {
				ids = append(ids, bd.SeatID)
			}
			seats, err := e.store.GetSeatsByIDs(ctx, b.EventID, ids)
			if err != nil {
				return nil, err
			}
			for _, s := range seats {
				seatLabels = append(seatLabels, s.Section+"-"+s.Row+s.Number)
			}
		}
	}

	return &Receipt{
		BookingID:     b.ID,
		ReferenceCode: b.ReferenceCode,
		EventName:     event.Name,
		Venue:         event.Venue,
		EventDate:     event.EventDate.Format("2006-01-02T15:04:05Z07:00"),
		Quantity:      b.Quantity,
		Seats:         seatLabels,
		TotalAmount:   b.TotalAmount,
		Status:        b.Status,
		IssuedAt:      nowRFC3339(),
	}, nil
}

// SearchUserBookings lists a user's bookings, optionally filtered by
// status, with offset/limit pagination (SPEC_FULL §10.3). Grounded on the
// teacher's bookings.GetUserBookings pagination shape.
func (e *Engine) SearchUserBookings(ctx context.Context, userID uuid.UUID, status *domain.BookingStatus, offset, limit int) ([]domain.Booking, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return e.store.ListBookingsByUser(ctx, userID, status, offset, limit)
}

// CategorizedBookings buckets a user's bookings by lifecycle phase, used
// by the "My Bookings" upcoming/past/cancelled tabs (SPEC_FULL §10.3).
type CategorizedBookings struct {
	Upcoming  []domain.Booking `json:"upcoming"`  // CONFIRMED, event in the future
	Pending   []domain.Booking `json:"pending"`   // PENDING, whether or not its hold has expired
	Past      []domain.Booking `json:"past"`      // CONFIRMED, event already happened
	Cancelled []domain.Booking `json:"cancelled"` // CANCELLED or EXPIRED
}

// GetCategorizedBookings fetches every non-paginated booking for a user
// (capped at a generous page size) and buckets it by status/event-date.
func (e *Engine) GetCategorizedBookings(ctx context.Context, userID uuid.UUID) (*CategorizedBookings, error) {
	bookings, _, err := e.store.ListBookingsByUser(ctx, userID, nil, 0, 500)
	if err != nil {
		return nil, err
	}

	out := &CategorizedBookings{}
	for _, b := range bookings {
		switch b.Status {
		case domain.BookingPending:
			out.Pending = append(out.Pending, b)
		case domain.BookingCancelled, domain.BookingExpired:
			out.Cancelled = append(out.Cancelled, b)
		case domain.BookingConfirmed:
			event, err := e.store.GetEvent(ctx, b.EventID)
			if err != nil {
				return nil, err
			}
			if event.EventDate.After(nowUTC()) {
				out.Upcoming = append(out.Upcoming, b)
			} else {
				out.Past = append(out.Past, b)
			}
		}
	}
	return out, nil
}
