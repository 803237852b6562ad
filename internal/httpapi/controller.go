// Package httpapi is the HTTP surface over the BookingEngine (bookings,
// waitlist, seat holds and the seat map) built for this domain — replacing the teacher's
// internal/bookings + internal/cancellation + internal/notifications
// controllers, which spoke a different booking data model entirely.
//
// Grounded on the teacher's internal/bookings/controller.go for request
// shape, JWT-derived user extraction, and the response.RespondJSON
// envelope; error translation switches on domain.Error.Kind instead of
// string-matching err.Error(), since every engine error is now typed.
package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"evently/internal/booking"
	"evently/internal/domain"
	"evently/internal/seats"
	"evently/internal/shared/utils/response"
	"evently/internal/store"
)

// Controller exposes the BookingEngine over HTTP.
type Controller struct {
	engine    *booking.Engine
	store     store.Store
	seatCache *seats.MapCache // optional; nil falls back to a direct store read
	validator *validator.Validate
}

func NewController(engine *booking.Engine, st store.Store, seatCache *seats.MapCache) *Controller {
	return &Controller{engine: engine, store: st, seatCache: seatCache, validator: validator.New()}
}

func userIDFromContext(c *gin.Context) (uuid.UUID, bool) {
	raw, exists := c.Get("user_id")
	if !exists {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw.(string))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func (ctl *Controller) respondEngineErr(c *gin.Context, err error) {
	response.RespondJSON(c, "error", statusFor(err), err.Error(), nil, gin.H{"code": codeFor(err)})
}

// CreateBooking handles POST /bookings.
func (ctl *Controller) CreateBooking(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		response.RespondJSON(c, "error", http.StatusUnauthorized, "user not authenticated", nil, nil)
		return
	}

	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "invalid request body", nil, err.Error())
		return
	}

	b, err := ctl.engine.Create(c.Request.Context(), userID, req.EventID, req.Quantity, req.SeatIDs)
	if err != nil {
		ctl.respondEngineErr(c, err)
		return
	}
	response.RespondJSON(c, "success", http.StatusCreated, "booking created", toBookingResponse(b), nil)
}

// ConfirmBooking handles POST /bookings/:id/confirm.
func (ctl *Controller) ConfirmBooking(c *gin.Context) {
	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "invalid booking id", nil, nil)
		return
	}
	var req confirmBookingRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.RespondJSON(c, "error", http.StatusBadRequest, "invalid request body", nil, err.Error())
			return
		}
	}

	b, err := ctl.engine.Confirm(c.Request.Context(), bookingID, req.PaymentReference)
	if err != nil {
		ctl.respondEngineErr(c, err)
		return
	}
	response.RespondJSON(c, "success", http.StatusOK, "booking confirmed", toBookingResponse(b), nil)
}

// CancelBooking handles POST /bookings/:id/cancel.
func (ctl *Controller) CancelBooking(c *gin.Context) {
	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "invalid booking id", nil, nil)
		return
	}
	var req cancelBookingRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.RespondJSON(c, "error", http.StatusBadRequest, "invalid request body", nil, err.Error())
			return
		}
	}

	b, refund, err := ctl.engine.Cancel(c.Request.Context(), bookingID, req.Reason)
	if err != nil {
		ctl.respondEngineErr(c, err)
		return
	}
	response.RespondJSON(c, "success", http.StatusOK, "booking cancelled",
		cancelBookingResponse{Booking: toBookingResponse(b), Refund: refund}, nil)
}

// GetBooking handles GET /bookings/:id.
func (ctl *Controller) GetBooking(c *gin.Context) {
	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "invalid booking id", nil, nil)
		return
	}
	b, err := ctl.engine.GetBooking(c.Request.Context(), bookingID)
	if err != nil {
		ctl.respondEngineErr(c, err)
		return
	}
	response.RespondJSON(c, "success", http.StatusOK, "booking retrieved", toBookingResponse(b), nil)
}

// GetReceipt handles GET /bookings/:id/receipt.
func (ctl *Controller) GetReceipt(c *gin.Context) {
	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "invalid booking id", nil, nil)
		return
	}
	receipt, err := ctl.engine.GenerateReceipt(c.Request.Context(), bookingID)
	if err != nil {
		ctl.respondEngineErr(c, err)
		return
	}
	response.RespondJSON(c, "success", http.StatusOK, "receipt generated", receipt, nil)
}

// GetUserBookings handles GET /users/bookings?status=&offset=&limit=
func (ctl *Controller) GetUserBookings(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		response.RespondJSON(c, "error", http.StatusUnauthorized, "user not authenticated", nil, nil)
		return
	}

	var statusFilter *domain.BookingStatus
	if raw := c.Query("status"); raw != "" {
		s := domain.BookingStatus(raw)
		statusFilter = &s
	}
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	bookings, total, err := ctl.engine.SearchUserBookings(c.Request.Context(), userID, statusFilter, offset, limit)
	if err != nil {
		ctl.respondEngineErr(c, err)
		return
	}
	out := make([]bookingResponse, 0, len(bookings))
	for i := range bookings {
		out = append(out, toBookingResponse(&bookings[i]))
	}
	response.RespondJSON(c, "success", http.StatusOK, "bookings retrieved",
		gin.H{"bookings": out, "total": total, "offset": offset, "limit": limit}, nil)
}

// GetCategorizedBookings handles GET /users/bookings/categorized.
func (ctl *Controller) GetCategorizedBookings(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		response.RespondJSON(c, "error", http.StatusUnauthorized, "user not authenticated", nil, nil)
		return
	}
	categorized, err := ctl.engine.GetCategorizedBookings(c.Request.Context(), userID)
	if err != nil {
		ctl.respondEngineErr(c, err)
		return
	}
	response.RespondJSON(c, "success", http.StatusOK, "categorized bookings retrieved", categorized, nil)
}

// JoinWaitlist handles POST /waitlist.
func (ctl *Controller) JoinWaitlist(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		response.RespondJSON(c, "error", http.StatusUnauthorized, "user not authenticated", nil, nil)
		return
	}
	var req joinWaitlistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "invalid request body", nil, err.Error())
		return
	}
	w, err := ctl.engine.JoinWaitlist(c.Request.Context(), userID, req.EventID, req.Quantity)
	if err != nil {
		ctl.respondEngineErr(c, err)
		return
	}
	response.RespondJSON(c, "success", http.StatusCreated, "joined waitlist", toWaitlistResponse(w), nil)
}

// LeaveWaitlist handles DELETE /waitlist/:eventId.
func (ctl *Controller) LeaveWaitlist(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		response.RespondJSON(c, "error", http.StatusUnauthorized, "user not authenticated", nil, nil)
		return
	}
	eventID, err := uuid.Parse(c.Param("eventId"))
	if err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "invalid event id", nil, nil)
		return
	}
	left, err := ctl.engine.LeaveWaitlist(c.Request.Context(), userID, eventID)
	if err != nil {
		ctl.respondEngineErr(c, err)
		return
	}
	if !left {
		response.RespondJSON(c, "error", http.StatusNotFound, "no active waitlist entry for this event", nil, nil)
		return
	}
	response.RespondJSON(c, "success", http.StatusOK, "left waitlist", nil, nil)
}

// GetWaitlistStats handles GET /events/:eventId/waitlist/stats.
func (ctl *Controller) GetWaitlistStats(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("eventId"))
	if err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "invalid event id", nil, nil)
		return
	}
	stats, err := ctl.engine.GetWaitlistStats(c.Request.Context(), eventID)
	if err != nil {
		ctl.respondEngineErr(c, err)
		return
	}
	response.RespondJSON(c, "success", http.StatusOK, "waitlist stats retrieved", stats, nil)
}

// HoldSeats handles POST /events/:eventId/seats/hold. See spec §6.1
// HoldSeats: an independent hold-then-release workflow, distinct from the
// implicit hold taken by CreateBooking's own seat-selection path.
func (ctl *Controller) HoldSeats(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("eventId"))
	if err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "invalid event id", nil, nil)
		return
	}
	var req holdSeatsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "invalid request body", nil, err.Error())
		return
	}

	heldSeatIDs, expiresAt, err := ctl.engine.HoldSeats(c.Request.Context(), eventID, req.SeatIDs, time.Duration(req.HoldDurationMinutes)*time.Minute)
	if err != nil {
		ctl.respondEngineErr(c, err)
		return
	}
	response.RespondJSON(c, "success", http.StatusOK, "seats held",
		holdSeatsResponse{HeldSeatIDs: heldSeatIDs, ExpiresAt: expiresAt}, nil)
}

// ReleaseHeldSeats handles POST /events/:eventId/seats/release.
func (ctl *Controller) ReleaseHeldSeats(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("eventId"))
	if err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "invalid event id", nil, nil)
		return
	}
	var req releaseHeldSeatsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "invalid request body", nil, err.Error())
		return
	}

	released, err := ctl.engine.ReleaseHeldSeats(c.Request.Context(), eventID, req.SeatIDs)
	if err != nil {
		ctl.respondEngineErr(c, err)
		return
	}
	response.RespondJSON(c, "success", http.StatusOK, "seats released",
		releaseHeldSeatsResponse{ReleasedCount: released}, nil)
}

// GetSeatMap handles GET /events/:eventId/seats. Reads through seatCache
// when configured; a miss or absent cache falls back to Postgres, which
// stays the system of record — HoldGroup/BookHeldOrAvailable always
// re-validate seat rows inside a transaction regardless of what this
// endpoint served.
func (ctl *Controller) GetSeatMap(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("eventId"))
	if err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "invalid event id", nil, nil)
		return
	}

	if ctl.seatCache != nil {
		var cached []domain.Seat
		if ok, err := ctl.seatCache.Get(c.Request.Context(), eventID, &cached); err == nil && ok {
			response.RespondJSON(c, "success", http.StatusOK, "seat map retrieved", cached, nil)
			return
		}
	}

	seatList, err := ctl.store.ListSeatsByEvent(c.Request.Context(), eventID)
	if err != nil {
		ctl.respondEngineErr(c, err)
		return
	}
	if ctl.seatCache != nil {
		_ = ctl.seatCache.Set(c.Request.Context(), eventID, seatList)
	}
	response.RespondJSON(c, "success", http.StatusOK, "seat map retrieved", seatList, nil)
}
