package events

import (
	"evently/internal/shared/middleware"

	"github.com/gin-gonic/gin"
)

// SetupEventRoutes configures the public browse surface and the
// admin-only create/update/deactivate surface, grounded on the teacher's
// public-vs-admin route grouping.
func SetupEventRoutes(rg *gin.RouterGroup, ctl *Controller) {
	public := rg.Group("/events")
	{
		public.GET("", ctl.GetAllEvents)
		public.GET("/upcoming", ctl.GetUpcomingEvents)
		public.GET("/:eventId", ctl.GetEvent)
	}

	admin := rg.Group("/admin/events")
	admin.Use(middleware.JWTAuth(), middleware.RequireAdmin())
	{
		admin.POST("", ctl.CreateEvent)
		admin.PUT("/:eventId", ctl.UpdateEvent)
		admin.DELETE("/:eventId", ctl.DeactivateEvent)
	}
}
