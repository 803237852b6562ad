package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind classifies failures so callers can decide whether to retry,
// surface directly, or log as fatal. See the error handling design: each
// kind maps to exactly one remediation posture.
type ErrorKind string

const (
	KindValidation   ErrorKind = "VALIDATION"
	KindNotFound     ErrorKind = "NOT_FOUND"
	KindBusinessState ErrorKind = "BUSINESS_STATE"
	KindInventory    ErrorKind = "INVENTORY"
	KindConcurrency  ErrorKind = "CONCURRENCY"
	KindExternal     ErrorKind = "EXTERNAL"
	KindFatal        ErrorKind = "FATAL"
)

// Error is the engine's single error type. Authorization failures are
// reported as Kind NotFound to avoid existence leaks, per the error
// handling design.
type Error struct {
	Kind       ErrorKind
	Code       string
	Message    string
	RetryAfter time.Duration
	Err        error
	Detail     interface{}
}

// SeatConflict is the Detail attached to ErrSeatNotAvailable, carrying the
// conflicting seat and its status so callers (BookingEngine.Create's retry
// loop) can distinguish a transient conflict (seat still HELD, may free up)
// from a definitive one (seat already BOOKED).
type SeatConflict struct {
	SeatID        string
	CurrentStatus SeatStatus
}

// WithSeatConflict returns a copy of ErrSeatNotAvailable annotated with the
// offending seat id and its current status.
func WithSeatConflict(seatID string, status SeatStatus) *Error {
	cp := *ErrSeatNotAvailable
	cp.Message = fmt.Sprintf("%s: %s (%s)", cp.Message, seatID, status)
	cp.Detail = SeatConflict{SeatID: seatID, CurrentStatus: status}
	return &cp
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is supports errors.Is matching on Code, ignoring Message/Err.
func (e *Error) Is(target error) bool {
	var te *Error
	if !errors.As(target, &te) {
		return false
	}
	return te.Code == e.Code
}

func newErr(kind ErrorKind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

func wrapErr(kind ErrorKind, code, msg string, err error) *Error {
	return &Error{Kind: kind, Code: code, Message: msg, Err: err}
}

// Sentinel errors identified by Code; construct with the With* helpers
// below when a dynamic identifier needs to travel with the error.
var (
	ErrUserNotFound            = newErr(KindNotFound, "USER_NOT_FOUND", "user not found")
	ErrEventNotFound           = newErr(KindNotFound, "EVENT_NOT_FOUND", "event not found")
	ErrEventInactive           = newErr(KindBusinessState, "EVENT_INACTIVE", "event is not active")
	ErrEventHasBookings        = newErr(KindBusinessState, "EVENT_HAS_BOOKINGS", "event has confirmed bookings")
	ErrInvalidQuantity         = newErr(KindValidation, "INVALID_QUANTITY", "quantity is out of the allowed range")
	ErrSeatSelectionUnsupported = newErr(KindValidation, "SEAT_SELECTION_UNSUPPORTED", "event does not support seat selection")
	ErrSeatNotAvailable        = newErr(KindInventory, "SEAT_NOT_AVAILABLE", "one or more seats are not available")
	ErrSeatHoldExpired         = newErr(KindInventory, "SEAT_HOLD_EXPIRED", "seat hold has expired")
	ErrInsufficientCapacity    = newErr(KindInventory, "INSUFFICIENT_CAPACITY", "insufficient available capacity")
	ErrBookingNotFound         = newErr(KindNotFound, "BOOKING_NOT_FOUND", "booking not found")
	ErrWaitlistNotFound        = newErr(KindNotFound, "WAITLIST_NOT_FOUND", "waitlist entry not found")
	ErrInvalidBookingState     = newErr(KindBusinessState, "INVALID_BOOKING_STATE", "booking is not in the required state")
	ErrBookingExpired          = newErr(KindBusinessState, "BOOKING_EXPIRED", "booking hold has expired")
	ErrEventNotSoldOut         = newErr(KindBusinessState, "EVENT_NOT_SOLD_OUT", "event still has available capacity")
	ErrAlreadyOnWaitlist       = newErr(KindBusinessState, "ALREADY_ON_WAITLIST", "user already has a non-terminal waitlist entry")
	ErrStaleVersion            = newErr(KindConcurrency, "STALE_VERSION", "event version changed concurrently")
	ErrCapacityUnderflow       = newErr(KindConcurrency, "CAPACITY_UNDERFLOW", "capacity delta would violate bounds")
	ErrLockTimeout             = newErr(KindConcurrency, "LOCK_TIMEOUT", "could not acquire lock before deadline")
	ErrServiceUnavailable      = newErr(KindExternal, "SERVICE_UNAVAILABLE", "dependent service temporarily unavailable")
	ErrInternal                = newErr(KindFatal, "INTERNAL", "internal invariant violation")
)

// WithDetail returns a copy of a sentinel error with a human-readable
// detail message appended (e.g. the offending seat id).
func WithDetail(base *Error, detail string) *Error {
	cp := *base
	cp.Message = fmt.Sprintf("%s: %s", cp.Message, detail)
	return &cp
}

// WithRetryAfter returns a copy annotated with a suggested retry delay,
// used when surfacing Concurrency/External errors after retry exhaustion.
func WithRetryAfter(base *Error, d time.Duration) *Error {
	cp := *base
	cp.RetryAfter = d
	return &cp
}

// Wrap attaches an underlying cause to a sentinel error, used when a
// Store/lock failure must retain its original error for logging.
func Wrap(base *Error, cause error) *Error {
	cp := *base
	cp.Err = cause
	return &cp
}

// KindOf extracts the ErrorKind from err, defaulting to Fatal for errors
// that are not of type *Error — those are programmer errors that escaped
// classification and must not be silently treated as retryable.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindFatal
}

// IsRetryable reports whether the engine's own retry loop should attempt
// the operation again without surfacing the error to the caller. A seat
// conflict is retryable only when the conflicting seat is still HELD (may
// free up when its hold expires) — a BOOKED seat is a definitive conflict.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) && e.Code == ErrSeatNotAvailable.Code {
		if sc, ok := e.Detail.(SeatConflict); ok {
			return sc.CurrentStatus != SeatBooked
		}
		return false
	}
	switch KindOf(err) {
	case KindConcurrency:
		return true
	default:
		return false
	}
}
