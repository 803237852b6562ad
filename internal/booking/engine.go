// Package booking implements the BookingEngine: the central orchestrator
// for Create/Confirm/Cancel/Expire, coordinating CapacityController,
// SeatController, LockService and WaitlistCoordinator inside a single
// Store transaction per operation, with an explicit optimistic-retry loop
// around Create (spec §4.4, §9's "decorator-based retry -> explicit
// retry loop" redesign flag).
//
// Adapted from the shape of the teacher's internal/bookings/service.go
// (lock-then-transact orchestration, booking reference generation) fused
// with original_source/services/booking_service.py's validation order,
// retry-on-concurrency loop, and confirm/cancel/expire procedures, and
// internal/cancellation/service.go's fee/refund calculation (simplified to
// the time-to-event tiers SPEC_FULL §10 calls for).
package booking

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"
	mrand "math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"evently/internal/capacity"
	"evently/internal/domain"
	"evently/internal/lock"
	"evently/internal/notify"
	"evently/internal/seats"
	"evently/internal/store"
	"evently/internal/waitlist"
)

// Config bounds the engine's validation and retry behavior, per spec §6.5.
type Config struct {
	HoldTimeout time.Duration // bookingHoldTimeoutMinutes: how long a PENDING booking reserves inventory
	MaxQuantity int
	LockTTL     time.Duration
	LockWait    time.Duration
	Retry       capacity.RetryConfig
}

func DefaultConfig() Config {
	return Config{
		HoldTimeout: 15 * time.Minute,
		MaxQuantity: 10,
		LockTTL:     30 * time.Second,
		LockWait:    2 * time.Second,
		Retry:       capacity.DefaultRetryConfig(),
	}
}

// Engine is the BookingEngine.
type Engine struct {
	store     store.Store
	capacity  *capacity.Controller
	seats     *seats.Controller
	waitlist  *waitlist.Coordinator
	lock      lock.Service
	publisher notify.Publisher
	cfg       Config
	log       *slog.Logger
}

func New(st store.Store, cap *capacity.Controller, seatCtl *seats.Controller, wl *waitlist.Coordinator, lockSvc lock.Service, publisher notify.Publisher, cfg Config, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{store: st, capacity: cap, seats: seatCtl, waitlist: wl, lock: lockSvc, publisher: publisher, cfg: cfg, log: log}
}

// Create books quantity tickets (or, if seatIDs is non-empty, those exact
// seats) for userID against eventID. See spec §4.4.1.
func (e *Engine) Create(ctx context.Context, userID, eventID uuid.UUID, quantity int, seatIDs []uuid.UUID) (*domain.Booking, error) {
	if len(seatIDs) > 0 && len(seatIDs) != quantity {
		return nil, domain.WithDetail(domain.ErrInvalidQuantity, "seatIds length must equal quantity")
	}

	var booking *domain.Booking
	key := lock.BookingKey(eventID.String(), userID.String())
	err := lock.WithLock(ctx, e.lock, key, e.cfg.LockTTL, e.cfg.LockWait, func(ctx context.Context) error {
		b, err := e.createWithRetry(ctx, userID, eventID, quantity, seatIDs)
		if err != nil {
			return err
		}
		booking = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return booking, nil
}

// createWithRetry wraps createOnce in the documented retry policy: up to
// Retry.MaxAttempts attempts, exponential backoff with jitter, retrying
// only StaleVersion and transient (non-BOOKED) seat conflicts.
func (e *Engine) createWithRetry(ctx context.Context, userID, eventID uuid.UUID, quantity int, seatIDs []uuid.UUID) (*domain.Booking, error) {
	retry := e.cfg.Retry
	if retry.MaxAttempts <= 0 {
		retry = capacity.DefaultRetryConfig()
	}

	var lastErr error
	for attempt := 0; attempt < retry.MaxAttempts; attempt++ {
		b, err := e.createOnce(ctx, userID, eventID, quantity, seatIDs)
		if err == nil {
			return b, nil
		}
		if !domain.IsRetryable(err) {
			return nil, err
		}
		lastErr = err
		e.log.WarnContext(ctx, "booking create retrying after concurrency conflict",
			slog.Int("attempt", attempt+1), slog.String("error", err.Error()))
		if attempt+1 >= retry.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, domain.Wrap(domain.ErrServiceUnavailable, ctx.Err())
		case <-time.After(jitteredBackoff(retry, attempt)):
		}
	}
	return nil, domain.Wrap(domain.WithRetryAfter(domain.ErrStaleVersion, time.Second), lastErr)
}

func (e *Engine) createOnce(ctx context.Context, userID, eventID uuid.UUID, quantity int, seatIDs []uuid.UUID) (*domain.Booking, error) {
	var result *domain.Booking
	err := e.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		event, err := tx.GetEvent(ctx, eventID)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		if !event.IsActive {
			return domain.ErrEventInactive
		}
		if !event.EventDate.After(now) {
			return domain.WithDetail(domain.ErrEventInactive, "event has already occurred")
		}
		if len(seatIDs) > 0 && !event.HasSeatSelection {
			return domain.ErrSeatSelectionUnsupported
		}
		if quantity < 1 || quantity > e.cfg.MaxQuantity {
			return domain.ErrInvalidQuantity
		}

		var totalAmount decimal.Decimal
		assignedSeatIDs := seatIDs
		switch {
		case len(seatIDs) > 0:
			held, err := e.seats.HoldGroup(ctx, tx, eventID, seatIDs)
			if err != nil {
				return err
			}
			totalAmount = sumSeatPrices(held)
		case event.HasSeatSelection:
			// Bulk auto-assignment: the caller asked for quantity seats
			// without naming them. bulk_booking:{eventId} only cuts down
			// wasted retries between racers converging on the same
			// lexicographically-first seats — HoldGroup's per-seat
			// AVAILABLE precondition is the actual guarantor (spec §9
			// open question: lexicographic-adjacency only, no contiguous
			// seat-map solver).
			var held []domain.Seat
			lockErr := lock.WithLock(ctx, e.lock, lock.BulkBookingKey(eventID.String()), e.cfg.LockTTL, e.cfg.LockWait, func(ctx context.Context) error {
				picked, err := pickLexicographicSeats(ctx, tx, eventID, quantity)
				if err != nil {
					return err
				}
				h, err := e.seats.HoldGroup(ctx, tx, eventID, picked)
				if err != nil {
					return err
				}
				held = h
				return nil
			})
			if lockErr != nil {
				return lockErr
			}
			totalAmount = sumSeatPrices(held)
			assignedSeatIDs = seatIDsOf(held)
		default:
			if _, err := e.capacity.Reserve(ctx, tx, eventID, quantity, event.Version); err != nil {
				return err
			}
			totalAmount = event.Price.Mul(decimal.NewFromInt(int64(quantity)))
		}

		expiresAt := now.Add(e.cfg.HoldTimeout)
		booking := &domain.Booking{
			ID:            uuid.New(),
			ReferenceCode: generateReference(),
			UserID:        userID,
			EventID:       eventID,
			Quantity:      quantity,
			SeatIDs:       domain.UUIDList(assignedSeatIDs),
			TotalAmount:   totalAmount,
			Status:        domain.BookingPending,
			ExpiresAt:     &expiresAt,
		}
		if err := tx.CreateBooking(ctx, booking); err != nil {
			return err
		}
		if err := tx.AppendHistory(ctx, &domain.BookingHistory{
			ID: uuid.New(), BookingID: booking.ID, Action: domain.HistoryCreated,
		}); err != nil {
			return err
		}
		result = booking
		return nil
	})
	return result, err
}

// Confirm transitions a PENDING booking to CONFIRMED. See spec §4.4.2.
func (e *Engine) Confirm(ctx context.Context, bookingID uuid.UUID, paymentReference *string) (*domain.Booking, error) {
	var result *domain.Booking
	err := e.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		b, err := tx.GetBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		if b.Status != domain.BookingPending {
			return domain.WithDetail(domain.ErrInvalidBookingState, string(b.Status))
		}
		now := time.Now().UTC()
		// now == expiresAt is REJECTED (spec §8 boundary behavior), so the
		// success condition is strictly now < expiresAt.
		if b.ExpiresAt == nil || !now.Before(*b.ExpiresAt) {
			return domain.ErrBookingExpired
		}

		if len(b.SeatIDs) > 0 {
			if _, err := e.seats.BookHeldOrAvailable(ctx, tx, b.EventID, b.ID, b.SeatIDs); err != nil {
				return err
			}
		}

		b.Status = domain.BookingConfirmed
		b.ExpiresAt = nil
		b.PaymentReference = paymentReference
		b.ConfirmedAt = &now
		if err := tx.UpdateBooking(ctx, b); err != nil {
			return err
		}

		details := ""
		if paymentReference != nil {
			details = fmt.Sprintf("payment_reference=%s", *paymentReference)
		}
		if err := tx.AppendHistory(ctx, &domain.BookingHistory{
			ID: uuid.New(), BookingID: b.ID, Action: domain.HistoryConfirmed, Details: details,
		}); err != nil {
			return err
		}
		result = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.emit(ctx, notify.BookingConfirmation(result.ID))
	return result, nil
}

// Cancel transitions a PENDING or CONFIRMED booking to CANCELLED, frees
// its inventory, and hands the freed quantity to the waitlist. See spec
// §4.4.3. Returns the cancelled booking and the computed refund amount.
func (e *Engine) Cancel(ctx context.Context, bookingID uuid.UUID, reason *string) (*domain.Booking, decimal.Decimal, error) {
	return e.terminate(ctx, bookingID, reason, domain.BookingCancelled)
}

// Expire transitions a PENDING booking to EXPIRED. Identical to Cancel
// except for the terminal status, the history action, and that no
// user-visible cancellation notification is emitted (spec §4.4.4).
// Idempotent: expiring a booking that is no longer PENDING is a no-op.
func (e *Engine) Expire(ctx context.Context, bookingID uuid.UUID) (*domain.Booking, error) {
	b, err := e.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.Status != domain.BookingPending {
		return b, nil
	}
	result, _, err := e.terminate(ctx, bookingID, nil, domain.BookingExpired)
	return result, err
}

func (e *Engine) terminate(ctx context.Context, bookingID uuid.UUID, reason *string, terminal domain.BookingStatus) (*domain.Booking, decimal.Decimal, error) {
	var result *domain.Booking
	var refund decimal.Decimal

	err := e.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		b, err := tx.GetBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		switch terminal {
		case domain.BookingCancelled:
			if b.Status != domain.BookingPending && b.Status != domain.BookingConfirmed {
				return domain.WithDetail(domain.ErrInvalidBookingState, string(b.Status))
			}
		case domain.BookingExpired:
			if b.Status != domain.BookingPending {
				return domain.WithDetail(domain.ErrInvalidBookingState, string(b.Status))
			}
		}

		if len(b.SeatIDs) > 0 {
			if b.Status == domain.BookingConfirmed {
				if err := e.seats.ReleaseBooked(ctx, tx, b.EventID, b.ID); err != nil {
					return err
				}
			} else {
				if err := e.seats.ReleaseHeld(ctx, tx, b.EventID, b.SeatIDs); err != nil {
					return err
				}
			}
		} else {
			if err := e.capacity.Restore(ctx, tx, b.EventID, b.Quantity); err != nil {
				return err
			}
		}

		if terminal == domain.BookingCancelled {
			event, err := tx.GetEvent(ctx, b.EventID)
			if err != nil {
				return err
			}
			refund = refundAmount(b.TotalAmount, event.EventDate, time.Now().UTC())
		}

		now := time.Now().UTC()
		b.Status = terminal
		b.ExpiresAt = nil
		if terminal == domain.BookingCancelled {
			b.CancellationReason = reason
			b.CancelledAt = &now
		}
		if err := tx.UpdateBooking(ctx, b); err != nil {
			return err
		}

		action := domain.HistoryExpired
		details := ""
		if terminal == domain.BookingCancelled {
			action = domain.HistoryCancelled
			if reason != nil {
				details = *reason
			}
		}
		if err := tx.AppendHistory(ctx, &domain.BookingHistory{
			ID: uuid.New(), BookingID: b.ID, Action: action, Details: details,
		}); err != nil {
			return err
		}

		if _, err := e.waitlist.OfferCapacity(ctx, tx, b.EventID, b.Quantity); err != nil {
			return err
		}

		result = b
		return nil
	})
	if err != nil {
		return nil, decimal.Zero, err
	}

	if terminal == domain.BookingCancelled {
		e.emit(ctx, notify.BookingCancellation(result.ID))
	}
	return result, refund, nil
}

// emit publishes a notification intent, logging (not surfacing) any
// publish failure — delivery is at-least-once, fire-and-forget, and must
// never affect the outcome of the booking operation that already
// committed (spec §6.4).
func (e *Engine) emit(ctx context.Context, intent notify.Intent) {
	if e.publisher == nil {
		return
	}
	if err := e.publisher.Publish(ctx, intent); err != nil {
		e.log.WarnContext(ctx, "notification publish failed", slog.String("type", string(intent.Type)), slog.String("error", err.Error()))
	}
}

// GetBooking is a read-only lookup, used by the receipt/search helpers and
// the HTTP adapter.
func (e *Engine) GetBooking(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	return e.store.GetBooking(ctx, id)
}

// GetWaitlistStats reports queue composition for an event (SPEC_FULL
// §10.4), read directly against the store without a transaction.
func (e *Engine) GetWaitlistStats(ctx context.Context, eventID uuid.UUID) (waitlist.Stats, error) {
	return e.waitlist.Stats(ctx, e.store, eventID)
}

// JoinWaitlist enqueues userID for quantity tickets against eventID at the
// tail of the FIFO queue. See spec §4.5.1.
func (e *Engine) JoinWaitlist(ctx context.Context, userID, eventID uuid.UUID, quantity int) (*domain.Waitlist, error) {
	var result *domain.Waitlist
	err := e.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		w, err := e.waitlist.Join(ctx, tx, userID, eventID, quantity)
		if err != nil {
			return err
		}
		result = w
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// LeaveWaitlist removes userID's non-terminal waitlist entry for eventID,
// compacting the positions behind it. See spec §4.5.4.
func (e *Engine) LeaveWaitlist(ctx context.Context, userID, eventID uuid.UUID) (bool, error) {
	var left bool
	err := e.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		ok, err := e.waitlist.Leave(ctx, tx, userID, eventID)
		if err != nil {
			return err
		}
		left = ok
		return nil
	})
	if err != nil {
		return false, err
	}
	return left, nil
}

// pickLexicographicSeats returns the first quantity AVAILABLE seat ids for
// eventID in section/row/number order (store.Tx.ListSeatsByEvent's sort),
// used by the bulk-booking auto-assignment path.
func pickLexicographicSeats(ctx context.Context, tx store.Tx, eventID uuid.UUID, quantity int) ([]uuid.UUID, error) {
	all, err := tx.ListSeatsByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, quantity)
	for _, s := range all {
		if s.Status == domain.SeatAvailable {
			ids = append(ids, s.ID)
			if len(ids) == quantity {
				return ids, nil
			}
		}
	}
	return nil, domain.WithDetail(domain.ErrSeatNotAvailable, "insufficient available seats for auto-assignment")
}

func seatIDsOf(seats []domain.Seat) []uuid.UUID {
	ids := make([]uuid.UUID, len(seats))
	for i := range seats {
		ids[i] = seats[i].ID
	}
	return ids
}

// minHoldDuration and maxHoldDuration bound the request-scoped hold
// duration accepted by HoldSeats (spec §6.1: holdDurationMinutes∈[1,60]).
const (
	minHoldDuration = time.Minute
	maxHoldDuration = 60 * time.Minute
)

// HoldSeats places an independent hold on seatIDs for holdDuration,
// outside of booking creation — the first-class hold-then-release
// workflow from spec §6.1, distinct from Create's own fixed-TTL hold on
// its seat-selection path. The seat map's cache is invalidated by
// SeatController itself; the returned expiresAt is advisory; the actual
// release still happens on the Scheduler's SweepSeatHolds cadence against
// SeatController's own configured hold TTL, not this request's duration.
func (e *Engine) HoldSeats(ctx context.Context, eventID uuid.UUID, seatIDs []uuid.UUID, holdDuration time.Duration) ([]uuid.UUID, time.Time, error) {
	if holdDuration < minHoldDuration || holdDuration > maxHoldDuration {
		return nil, time.Time{}, domain.WithDetail(domain.ErrInvalidQuantity, "holdDurationMinutes must be between 1 and 60")
	}
	if len(seatIDs) == 0 {
		return nil, time.Time{}, domain.WithDetail(domain.ErrInvalidQuantity, "seatIds must not be empty")
	}

	var heldIDs []uuid.UUID
	err := e.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		held, err := e.seats.HoldGroup(ctx, tx, eventID, seatIDs)
		if err != nil {
			return err
		}
		heldIDs = seatIDsOf(held)
		return nil
	})
	if err != nil {
		return nil, time.Time{}, err
	}
	return heldIDs, time.Now().UTC().Add(holdDuration), nil
}

// ReleaseHeldSeats releases a prior independent HoldSeats hold on seatIDs,
// returning the count of seats that were actually HELD (and so released).
// Seats not currently HELD are silently ignored, per SeatController.ReleaseHeld.
func (e *Engine) ReleaseHeldSeats(ctx context.Context, eventID uuid.UUID, seatIDs []uuid.UUID) (int, error) {
	var released int
	err := e.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		before, err := tx.GetSeatsByIDs(ctx, eventID, seatIDs)
		if err != nil {
			return err
		}
		for _, s := range before {
			if s.Status == domain.SeatHeld {
				released++
			}
		}
		return e.seats.ReleaseHeld(ctx, tx, eventID, seatIDs)
	})
	if err != nil {
		return 0, err
	}
	return released, nil
}

func sumSeatPrices(seats []domain.Seat) decimal.Decimal {
	total := decimal.Zero
	for _, s := range seats {
		total = total.Add(s.Price)
	}
	return total
}

// refundAmount applies the time-to-event cancellation fee rates (SPEC_FULL
// §10.5): the closer to the event, the higher the forfeited fraction.
// Adapted from internal/cancellation's configurable FeeType/FeeAmount
// policy, simplified to frozen tiers since the core has no cancellation
// policy entity of its own.
func refundAmount(totalAmount decimal.Decimal, eventDate, now time.Time) decimal.Decimal {
	daysUntil := eventDate.Sub(now).Hours() / 24
	var feeRate decimal.Decimal
	switch {
	case daysUntil >= 7:
		feeRate = decimal.Zero
	case daysUntil >= 1:
		feeRate = decimal.NewFromFloat(0.25)
	default:
		feeRate = decimal.NewFromFloat(0.50)
	}
	fee := totalAmount.Mul(feeRate)
	refund := totalAmount.Sub(fee)
	if refund.IsNegative() {
		refund = decimal.Zero
	}
	return refund.Round(2)
}

// generateReference builds a human-facing booking reference
// (EVT-YYYYMMDD-XXXXXX), used on receipts. Cosmetic only — never an
// identifier the engine relies on for lookups. Adapted from the teacher's
// generateBookingReference, using crypto/rand throughout instead of
// seeding math/rand.
func generateReference() string {
	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	suffix := make([]byte, 6)
	for i := range suffix {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
		if err != nil {
			// crypto/rand failure is a fatal environment condition; fall
			// back to a non-crypto source rather than panic, since the
			// reference is cosmetic and never used for authorization.
			suffix[i] = alphabet[mrand.IntN(len(alphabet))]
			continue
		}
		suffix[i] = alphabet[n.Int64()]
	}
	return fmt.Sprintf("EVT-%s-%s", time.Now().UTC().Format("20060102"), string(suffix))
}

func jitteredBackoff(cfg capacity.RetryConfig, attempt int) time.Duration {
	d := cfg.BaseDelay << attempt
	if d > cfg.MaxDelay {
		d = cfg.MaxDelay
	}
	jitter := 0.5 + mrand.Float64()*0.5
	return time.Duration(float64(d) * jitter)
}
