package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"evently/api/routes"
	"evently/internal/booking"
	"evently/internal/capacity"
	"evently/internal/events"
	"evently/internal/lock"
	"evently/internal/mail"
	"evently/internal/notify"
	"evently/internal/pricing"
	"evently/internal/scheduler"
	"evently/internal/seats"
	"evently/internal/shared/config"
	"evently/internal/shared/database"
	"evently/internal/store"
	"evently/internal/waitlist"
	"evently/pkg/logger"
	"evently/pkg/ratelimit"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// noopPublisher discards notification intents. Used when Kafka is not
// reachable at startup so the booking/waitlist core still has a
// non-nil Publisher to call — delivery is best-effort everywhere else
// in this codebase, and a broker outage must never block a commit.
type noopPublisher struct{ log *slog.Logger }

func (p noopPublisher) Publish(ctx context.Context, intent notify.Intent) error {
	p.log.WarnContext(ctx, "notification dropped: no publisher configured", slog.String("type", string(intent.Type)))
	return nil
}

func main() {
	appLogger := logger.GetDefault()

	if err := godotenv.Load(); err != nil {
		if os.Getenv("GIN_MODE") == "release" || os.Getenv("DOCKER_CONTAINER") == "true" {
			appLogger.Info("Production environment: using container environment variables")
		} else {
			appLogger.Info("No .env file found, using system environment variables")
		}
	} else {
		appLogger.Info("Development environment: loaded .env file")
	}

	cfg := config.Load()
	gin.SetMode(cfg.GinMode)

	db, err := database.InitDB(cfg)
	if err != nil {
		appLogger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	if err := database.Migrate(db.GetPostgreSQL()); err != nil {
		appLogger.Error("failed to migrate database", slog.Any("error", err))
		os.Exit(1)
	}

	st := store.New(db.GetPostgreSQL())
	lockSvc := lock.New(db.GetRedisClient())

	var publisher notify.Publisher
	kafkaPublisher, err := notify.NewKafkaPublisher(notify.DefaultKafkaConfig(), appLogger.Logger)
	if err != nil {
		appLogger.Error("failed to initialize kafka publisher, notifications will be dropped", slog.Any("error", err))
		publisher = noopPublisher{log: appLogger.Logger}
	} else {
		publisher = kafkaPublisher
		defer kafkaPublisher.Close()
	}

	capCtl := capacity.New(capacity.DefaultRetryConfig())
	seatCache := seats.NewMapCache(db.GetRedisClient(), cfg.Redis.CacheTTL)
	seatCtl := seats.New(cfg.Redis.SeatHoldTTL, seatCache)

	// WaitlistCoordinator's notify window and the Scheduler's
	// ExpireWaitlistCron sweep must agree on the same window.
	waitlistWindow := time.Duration(cfg.Scheduler.WaitlistNotificationTimeoutHours) * time.Hour
	wl := waitlist.New(waitlistWindow, publisher)

	bookingCfg := booking.DefaultConfig()
	bookingCfg.HoldTimeout = time.Duration(cfg.Booking.HoldTimeoutMinutes) * time.Minute
	bookingCfg.MaxQuantity = cfg.Booking.MaxQuantity
	bookingCfg.LockTTL = cfg.Lock.DefaultTTL
	bookingCfg.LockWait = cfg.Booking.LockWait
	bookingCfg.Retry = capacity.RetryConfig{
		MaxAttempts: cfg.Booking.RetryMaxAttempts,
		BaseDelay:   cfg.Booking.RetryBaseDelay,
		MaxDelay:    cfg.Booking.RetryMaxDelay,
	}
	bookingEngine := booking.New(st, capCtl, seatCtl, wl, lockSvc, publisher, bookingCfg, appLogger.Logger)
	eventService := events.NewService(st, publisher, appLogger.Logger)

	pricingCfg := pricing.Config{
		LowThreshold:  cfg.Pricing.LowThreshold,
		HighThreshold: cfg.Pricing.HighThreshold,
		MaxIncrease:   cfg.Pricing.MaxIncrease,
		MaxDecrease:   cfg.Pricing.MaxDecrease,
	}
	schedCfg := scheduler.DefaultConfig()
	schedCfg.ExpireBookingsCron = cfg.Scheduler.ExpireBookingsCron
	schedCfg.SweepSeatHoldsCron = cfg.Scheduler.SweepSeatHoldsCron
	schedCfg.ExpireWaitlistCron = cfg.Scheduler.ExpireWaitlistCron
	schedCfg.PriceTickCron = cfg.Scheduler.PriceTickCron
	schedCfg.WaitlistNotifyWindow = waitlistWindow
	schedCfg.PriceTickPercentGate = cfg.Scheduler.PriceTickPercentGate
	schedCfg.ExpireBookingsBatch = cfg.Scheduler.ExpireBookingsBatch

	sched := scheduler.New(st, bookingEngine, seatCtl, wl, pricingCfg, schedCfg, appLogger.Logger)
	if err := sched.Start(); err != nil {
		appLogger.Error("failed to start scheduler", slog.Any("error", err))
		os.Exit(1)
	}
	defer sched.Stop()

	mailCtx, mailCancel := context.WithCancel(context.Background())
	defer mailCancel()
	if mailer, mailConsumer, err := startMailConsumer(mailCtx, st, appLogger.Logger); err != nil {
		appLogger.Error("failed to start mail consumer, emails will not be delivered", slog.Any("error", err))
	} else {
		_ = mailer
		defer mailConsumer.Close()
	}

	var rateLimiter *ratelimit.RateLimiter
	if cfg.RateLimit.Enabled {
		rateLimiter = ratelimit.NewRateLimiter(db.GetRedisClient(), &ratelimit.Config{
			Enabled:                 cfg.RateLimit.Enabled,
			WindowDuration:          cfg.RateLimit.WindowDuration,
			DefaultRequests:         cfg.RateLimit.DefaultRequests,
			PublicRequests:          cfg.RateLimit.PublicRequests,
			AuthRequests:            cfg.RateLimit.AuthRequests,
			BookingRequests:         cfg.RateLimit.BookingRequests,
			AdminRequests:           cfg.RateLimit.AdminRequests,
			AnalyticsRequests:       cfg.RateLimit.AnalyticsRequests,
			WhitelistedIPs:          cfg.RateLimit.WhitelistedIPs,
		})
		appLogger.Info("Rate limiter initialized",
			slog.Bool("enabled", cfg.RateLimit.Enabled),
			slog.Duration("window", cfg.RateLimit.WindowDuration))
	} else {
		appLogger.Info("Rate limiting disabled")
	}

	ginEngine := setupEngine(cfg, db, st, bookingEngine, eventService, publisher, seatCache, rateLimiter, appLogger)

	srv := &http.Server{
		Addr:           cfg.GetServerAddress(),
		Handler:        ginEngine,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		MaxHeaderBytes: cfg.MaxHeaderBytes,
	}

	go func() {
		appLogger.Info("🚀 Server running",
			slog.String("address", cfg.GetServerAddress()),
			slog.String("health_check", fmt.Sprintf("http://localhost:%s/health", cfg.Port)),
			slog.String("api_status", fmt.Sprintf("http://localhost:%s%s/status", cfg.Port, cfg.GetAPIBasePath())),
			slog.String("version", cfg.APIVersion),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("Server failed", slog.Any("error", err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Forced shutdown", slog.Any("error", err))
	}

	appLogger.Info("Server exited gracefully")
}

func startMailConsumer(ctx context.Context, st store.Store, log *slog.Logger) (*mail.Mailer, *mail.Consumer, error) {
	mailer := mail.NewMailer(mail.ConfigFromEnv())
	consumer, err := mail.NewConsumer(mail.DefaultConsumerConfig(), mailer, st, log)
	if err != nil {
		return nil, nil, err
	}
	go func() {
		if err := consumer.Run(ctx); err != nil {
			log.Error("mail consumer stopped", slog.Any("error", err))
		}
	}()
	return mailer, consumer, nil
}

func setupEngine(cfg *config.Config, db *database.DB, st store.Store, bookingEngine *booking.Engine, eventService *events.Service, publisher notify.Publisher, seatCache *seats.MapCache, rateLimiter *ratelimit.RateLimiter, appLogger *logger.Logger) *gin.Engine {
	ginEngine := gin.New()

	ginEngine.Use(RequestLoggerMiddleware(appLogger), gin.Recovery())

	ginEngine.Use(cors.New(cors.Config{
		AllowOriginFunc:  func(origin string) bool { return true },
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-RateLimit-*"},
		ExposeHeaders:    []string{"Content-Length", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	if rateLimiter != nil {
		ginEngine.Use(ratelimit.Middleware(rateLimiter))
	}

	appRouter := routes.NewRouter(cfg, db, st, bookingEngine, eventService, publisher, seatCache)
	appRouter.SetupRoutes(ginEngine)

	return ginEngine
}

func RequestLoggerMiddleware(l *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)
		l.LogHTTPRequest(c, duration)
	}
}
