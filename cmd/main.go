package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"returns-service/internal/clients"
	"returns-service/internal/config"
	"returns-service/internal/handlers"
	"returns-service/internal/metrics"
	"returns-service/internal/middleware"
	"returns-service/internal/models"
	"returns-service/internal/repository"
	"returns-service/internal/services"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Structured logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	if level, err := logrus.ParseLevel(cfg.App.LogLevel); err == nil {
		logger.SetLevel(level)
	}

	// Initialize database
	db, err := initDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// Auto-migrate database schema
	if err := migrateDatabase(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	// Initialize Redis client (optional - graceful degradation if Redis unavailable)
	var redisClient *redis.Client
	if cfg.App.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.App.RedisURL)
		if err != nil {
			log.Printf("Warning: Failed to parse Redis URL: %v", err)
			log.Println("Continuing without stats caching...")
		} else {
			redisClient = redis.NewClient(opt)

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := redisClient.Ping(ctx).Err(); err != nil {
				log.Printf("Warning: Failed to connect to Redis: %v", err)
				log.Println("Continuing without stats caching...")
				redisClient = nil
			} else {
				log.Println("✓ Connected to Redis for stats caching")
			}
		}
	} else {
		log.Println("REDIS_URL not configured, stats caching disabled")
	}

	// Initialize store and cache
	returnStore := repository.NewReturnRepository(db)
	statsCache := repository.NewStatsCache(redisClient, cfg.App.StatsCacheTTL)

	// Initialize collaborator clients
	callTimeout := cfg.Collaborators.CallTimeout
	orderClient := clients.NewOrderClient(cfg.Collaborators.OrdersServiceURL, callTimeout)
	paymentClient := clients.NewPaymentClient(cfg.Collaborators.PaymentServiceURL, callTimeout)
	shippingClient := clients.NewShippingClient(cfg.Collaborators.ShippingServiceURL, callTimeout)
	notificationClient := clients.NewNotificationClient(cfg.Collaborators.NotificationServiceURL, callTimeout)
	log.Println("✓ Collaborator clients initialized (orders, payment, shipping, notification)")

	// Initialize Prometheus metrics
	serviceMetrics := metrics.New()
	log.Println("✓ Prometheus metrics initialized")

	// Initialize orchestrator
	calculator := services.NewRefundCalculator(services.DefaultDeductionRates())
	returnService := services.NewReturnService(
		returnStore,
		calculator,
		orderClient,
		paymentClient,
		shippingClient,
		notificationClient,
		statsCache,
		logger,
		callTimeout,
	)
	returnService.SetTransitionObserver(serviceMetrics)

	// Initialize handlers
	returnHandler := handlers.NewReturnHandlers(returnService, logger)

	// Setup router
	router := setupRouter(cfg, returnHandler, serviceMetrics, logger)

	// Graceful shutdown handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down Returns Service...")

		if redisClient != nil {
			_ = redisClient.Close()
			log.Println("✓ Redis client closed")
		}

		log.Println("Returns service stopped")
		os.Exit(0)
	}()

	// Start server
	log.Printf("Starting Returns Service on %s", cfg.GetServerAddress())
	if err := router.Run(cfg.GetServerAddress()); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// initDatabase initializes the database connection
func initDatabase(cfg *config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.GetDatabaseDSN()), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	// Get underlying sql.DB to configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// Configure connection pool
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)

	return db, nil
}

// migrateDatabase runs database migrations
func migrateDatabase(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Return{},
		&models.ReturnItem{},
		&models.ReturnTimeline{},
	)
}

// setupRouter configures the Gin router with middleware and routes
func setupRouter(cfg *config.Config, returnHandler *handlers.ReturnHandlers, serviceMetrics *metrics.Metrics, logger *logrus.Logger) *gin.Engine {
	// Set Gin mode
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()

	// Setup middleware
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.SetupCORS())
	router.Use(serviceMetrics.Middleware())

	// Health check endpoints
	router.GET("/health", returnHandler.HealthCheck)
	router.GET("/ready", returnHandler.HealthCheck)
	router.GET("/metrics", metrics.Handler())

	// API routes - require tenant ID for multi-tenant data isolation
	api := router.Group("/api/v1")
	api.Use(middleware.RequireTenantID())
	{
		returns := api.Group("/returns")
		{
			// Read operations
			returns.GET("", returnHandler.ListReturns)
			returns.GET("/stats", returnHandler.GetReturnStats)
			returns.GET("/rma/:rma", returnHandler.GetReturnByRMA)
			returns.GET("/:id", returnHandler.GetReturn)

			// Create operations
			returns.POST("", returnHandler.CreateReturn)

			// Review operations
			returns.POST("/:id/approve", returnHandler.ApproveReturn)
			returns.POST("/:id/reject", returnHandler.RejectReturn)
			returns.POST("/:id/cancel", returnHandler.CancelReturn)

			// Processing operations
			returns.POST("/:id/shipping-label", returnHandler.GenerateShippingLabel)
			returns.POST("/:id/received", returnHandler.MarkReceived)
			returns.POST("/:id/refund", returnHandler.ProcessRefund)
		}
	}

	return router
}
