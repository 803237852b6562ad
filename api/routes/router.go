// Package routes wires the concurrency engine's HTTP surfaces together:
// auth (kept from the teacher as-is), the admin event catalog, and the
// booking/waitlist adapter, under one versioned API base path.
package routes

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"evently/internal/auth"
	"evently/internal/booking"
	"evently/internal/events"
	"evently/internal/httpapi"
	"evently/internal/notify"
	"evently/internal/seats"
	"evently/internal/shared/config"
	"evently/internal/shared/database"
	"evently/internal/store"
)

// Router holds the dependencies SetupRoutes needs to mount every group.
type Router struct {
	config       *config.Config
	db           *database.DB
	store        store.Store
	engine       *booking.Engine
	eventService *events.Service
	publisher    notify.Publisher
	seatCache    *seats.MapCache
}

func NewRouter(cfg *config.Config, db *database.DB, st store.Store, engine *booking.Engine, eventService *events.Service, publisher notify.Publisher, seatCache *seats.MapCache) *Router {
	return &Router{config: cfg, db: db, store: st, engine: engine, eventService: eventService, publisher: publisher, seatCache: seatCache}
}

// SetupRoutes configures all application routes.
func (r *Router) SetupRoutes(ginEngine *gin.Engine) {
	r.setupHealthRoutes(ginEngine)

	api := ginEngine.Group(r.config.GetAPIBasePath())
	{
		r.setupAuthRoutes(api)

		eventController := events.NewController(r.eventService)
		events.SetupEventRoutes(api, eventController)

		bookingController := httpapi.NewController(r.engine, r.store, r.seatCache)
		httpapi.SetupRoutes(api, bookingController)
	}
}

func (r *Router) setupHealthRoutes(engine *gin.Engine) {
	engine.GET("/health", func(c *gin.Context) {
		if err := r.db.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":    "unhealthy",
				"error":     err.Error(),
				"timestamp": time.Now(),
				"service":   "evently-backend",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
			"service":   "evently-backend",
		})
	})

	engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong", "version": r.config.APIVersion})
	})

	engine.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "operational",
			"api_version": r.config.APIVersion,
			"timestamp":   time.Now(),
		})
	})
}

func (r *Router) setupAuthRoutes(rg *gin.RouterGroup) {
	authRepo := auth.NewRepository(r.db.GetPostgreSQL())
	authService := auth.NewService(authRepo, r.config)
	authController := auth.NewController(authService)
	authRouter := auth.NewRouter(authController)
	authRouter.SetupRoutes(rg)
}
