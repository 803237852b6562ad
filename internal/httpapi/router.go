package httpapi

import (
	"evently/internal/shared/middleware"

	"github.com/gin-gonic/gin"
)

// SetupRoutes registers the booking/waitlist surface, grounded on the
// teacher's bookings.SetupBookingRoutes route grouping and auth middleware
// stacking.
func SetupRoutes(rg *gin.RouterGroup, ctl *Controller) {
	bookings := rg.Group("/bookings")
	bookings.Use(middleware.JWTAuth(), middleware.RequireRoles("USER", "ADMIN"))
	{
		bookings.POST("", ctl.CreateBooking)
		bookings.GET("/:id", ctl.GetBooking)
		bookings.GET("/:id/receipt", ctl.GetReceipt)
		bookings.POST("/:id/confirm", ctl.ConfirmBooking)
		bookings.POST("/:id/cancel", ctl.CancelBooking)
	}

	users := rg.Group("/users")
	users.Use(middleware.JWTAuth(), middleware.RequireRoles("USER", "ADMIN"))
	{
		users.GET("/bookings", ctl.GetUserBookings)
		users.GET("/bookings/categorized", ctl.GetCategorizedBookings)
	}

	waitlist := rg.Group("/waitlist")
	waitlist.Use(middleware.JWTAuth(), middleware.RequireRoles("USER", "ADMIN"))
	{
		waitlist.POST("", ctl.JoinWaitlist)
		waitlist.DELETE("/:eventId", ctl.LeaveWaitlist)
	}

	rg.GET("/events/:eventId/waitlist/stats", ctl.GetWaitlistStats)
	rg.GET("/events/:eventId/seats", ctl.GetSeatMap)

	eventSeats := rg.Group("/events/:eventId/seats")
	eventSeats.Use(middleware.JWTAuth(), middleware.RequireRoles("USER", "ADMIN"))
	{
		eventSeats.POST("/hold", ctl.HoldSeats)
		eventSeats.POST("/release", ctl.ReleaseHeldSeats)
	}
}
