package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/trailhead/tour-booking-backend/internal/config"
	"github.com/trailhead/tour-booking-backend/internal/database"
	"github.com/trailhead/tour-booking-backend/internal/handlers"
	"github.com/trailhead/tour-booking-backend/internal/middleware"
	"github.com/trailhead/tour-booking-backend/internal/notifier"
	"github.com/trailhead/tour-booking-backend/internal/services"
	"github.com/trailhead/tour-booking-backend/pkg/jwt"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	logger.Info("Starting Trailhead Tour Booking Backend")
	logger.Infof("Version: %s, Build Time: %s", version, buildTime)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	// Set log level
	logLevel, err := logrus.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		logger.Warn("Invalid log level, using INFO")
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Set Gin mode
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// Initialize database connection
	logger.Info("Connecting to database...")
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("Failed to ping database: %v", err)
	}
	logger.Info("Database connection established")

	// Initialize the membership event publisher
	var eventNotifier notifier.Notifier
	if cfg.Notifier.URL != "" {
		amqpNotifier, err := notifier.NewAMQPNotifier(cfg.Notifier, logger)
		if err != nil {
			logger.Fatalf("Failed to connect to message broker: %v", err)
		}
		eventNotifier = amqpNotifier
		logger.Info("Message broker connection established")
	} else {
		eventNotifier = notifier.NopNotifier{}
		logger.Warn("RABBITMQ_URL not set, membership events disabled")
	}
	defer eventNotifier.Close()

	// Initialize repositories
	tourRepo := database.NewTourRepository(db)
	bookingRepo := database.NewBookingRepository(db)
	cancelRepo := database.NewCancellationRepository(db)
	paymentRepo := database.NewPaymentRepository(db)

	// Initialize services
	logger.Info("Initializing services...")
	jwtService := jwt.NewService(cfg.JWT.Secret, cfg.JWT.TokenExpiry)
	stripeService := services.NewStripeService(&cfg.Payment, logger)
	if !stripeService.IsConfigured() {
		logger.Warn("Stripe credentials not set, checkout endpoints will refuse requests")
	}

	availabilityService := services.NewAvailabilityService(tourRepo, bookingRepo, logger)
	bookingService := services.NewBookingService(bookingRepo, tourRepo, cancelRepo, eventNotifier, logger)
	cancellationService := services.NewCancellationService(cancelRepo, bookingRepo, eventNotifier, logger)
	paymentService := services.NewPaymentService(paymentRepo, bookingRepo, tourRepo, stripeService, eventNotifier, logger)

	// Initialize handlers
	bookingHandler := handlers.NewBookingHandler(bookingService, logger)
	adminBookingHandler := handlers.NewAdminBookingHandler(bookingService, logger)
	cancellationHandler := handlers.NewCancellationHandler(cancellationService, logger)
	paymentHandler := handlers.NewPaymentHandler(paymentService, logger)
	availabilityHandler := handlers.NewAvailabilityHandler(availabilityService, logger)

	// Setup router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Health check
	router.GET("/health", healthCheckHandler(db))

	// API routes
	v1 := router.Group("/api/v1")
	{
		// Public tour routes
		tours := v1.Group("/tours")
		{
			tours.GET("/:id/availability", availabilityHandler.GetTourAvailability)
		}

		// Participant booking routes (protected)
		bookings := v1.Group("/bookings")
		bookings.Use(middleware.AuthMiddleware(jwtService))
		{
			bookings.POST("", bookingHandler.CreateBooking)
			bookings.GET("/my", bookingHandler.ListMyBookings)
			bookings.GET("/tour/:tourId/status", bookingHandler.TourBookingStatus)
			bookings.GET("/:id/equipment", bookingHandler.GetBookingEquipment)
			bookings.PUT("/:id/equipment", bookingHandler.UpdateEquipment)
			bookings.DELETE("/:id", bookingHandler.DeleteBooking)
			bookings.POST("/:id/cancel-request", cancellationHandler.CreateCancelRequest)
		}

		// Payment routes
		payments := v1.Group("/payments")
		{
			// Webhook is authenticated by signature, not JWT
			payments.POST("/webhook", paymentHandler.HandleWebhook)

			paymentsProtected := payments.Group("")
			paymentsProtected.Use(middleware.AuthMiddleware(jwtService))
			{
				paymentsProtected.POST("/checkout-session", paymentHandler.CreateCheckoutSession)
				paymentsProtected.POST("/confirm", paymentHandler.ConfirmPayment)
				paymentsProtected.GET("/booking/:id", paymentHandler.GetPaymentStatus)
			}
		}

		// Admin routes
		admin := v1.Group("/admin")
		admin.Use(middleware.AuthMiddleware(jwtService))
		admin.Use(middleware.RequireRole("admin"))
		{
			admin.GET("/bookings", adminBookingHandler.ListBookings)
			admin.GET("/bookings/tour/:tourId", adminBookingHandler.ListTourBookings)
			admin.GET("/bookings/user/:userId", adminBookingHandler.ListUserBookings)
			admin.PUT("/bookings/:id/status", adminBookingHandler.UpdateBookingStatus)
			admin.DELETE("/bookings/:id", adminBookingHandler.DeleteBooking)
			admin.GET("/cancel-requests", cancellationHandler.ListCancelRequests)
			admin.PUT("/cancel-requests/:id", cancellationHandler.ResolveCancelRequest)
		}
	}

	// HTTP server with timeouts
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Infof("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited successfully")
}

// requestLogger middleware for logging HTTP requests
func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		fields := logrus.Fields{
			"status":     c.Writer.Status(),
			"method":     c.Request.Method,
			"path":       path,
			"query":      query,
			"ip":         c.ClientIP(),
			"latency_ms": latency.Milliseconds(),
		}

		entry := logger.WithFields(fields)
		status := c.Writer.Status()
		switch {
		case status >= 500:
			entry.Error("Request completed with server error")
		case status >= 400:
			entry.Warn("Request completed with client error")
		default:
			entry.Info("Request completed successfully")
		}
	}
}

// healthCheckHandler returns a health check endpoint
func healthCheckHandler(db database.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"database": "unhealthy",
				"error":    err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"database":  "healthy",
			"version":   version,
			"timestamp": time.Now().Unix(),
		})
	}
}
