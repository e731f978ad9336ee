package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pos-service/internal/auth"
	"pos-service/internal/cart"
	"pos-service/internal/checkout"
	"pos-service/internal/config"
	"pos-service/internal/connectivity"
	"pos-service/internal/database"
	"pos-service/internal/domain"
	"pos-service/internal/events"
	"pos-service/internal/handlers"
	"pos-service/internal/inventory"
	"pos-service/internal/remote"
	"pos-service/internal/reports"
	"pos-service/internal/storage"
	"pos-service/internal/syncqueue"
	"pos-service/pkg/logger"
	"pos-service/pkg/middleware"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "pos-service/docs" // Import docs for Swagger
)

// simulatedLatency is how long each call to the simulated backend takes
const simulatedLatency = 300 * time.Millisecond

// @title           POS Service API
// @version         1.0
// @description     API de caja para tiendas de abarrotes: carrito, cobro, inventario y sincronización offline con el servidor central
// @termsOfService  http://swagger.io/terms/

// @contact.name   API Support
// @contact.email  carlosand_01@hotmail.com

// @license.name  Apache 2.0
// @license.url   http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:8080
// @BasePath  /api/v1

// @schemes   http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token. Example: "Bearer eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."
func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	appLogger := logger.New(cfg.Environment, cfg.LogLevel)
	defer appLogger.Sync()

	appLogger.Info("🚀 Starting POS Service",
		zap.String("environment", cfg.Environment),
		zap.String("port", cfg.Port),
	)

	appLogger.Info("🔐 JWT Configuration",
		zap.Int("secret_length", len(cfg.JWTSecret)),
		zap.Duration("token_expiry", cfg.JWTExpiry()),
		zap.Int("cashiers", len(cfg.CashierUsers)),
	)

	// Initialize SQLite record store
	appLogger.Info("🔧 Initializing SQLite database...", zap.String("path", cfg.SQLitePath))
	db, err := database.NewSingleWriterDB(cfg, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()
	appLogger.Info("✅ SQLite database initialized successfully")

	// Key-value backend for the sync queue, held cart and idempotency cache
	kv, backend, closeKV := newKeyValueStore(cfg, db, appLogger)
	defer closeKV()

	bus := events.NewBus(appLogger)

	// Remote backend transport
	client, closeClient := newRemoteClient(cfg, appLogger)
	defer closeClient()

	monitor := connectivity.NewMonitor(cfg.StartOnline, client, bus, appLogger)

	appLogger.Info("🔧 Initializing sync queue...")
	ctx := context.Background()
	queue, err := syncqueue.New(ctx, kv, syncqueue.HandlersFor(client), monitor, bus, syncqueue.Options{
		MaxAttempts: cfg.SyncMaxAttempts,
		RetryDelay:  cfg.SyncRetryDelay(),
		Retention:   cfg.SyncRetention(),
	}, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize sync queue", zap.Error(err))
	}
	monitor.SetDrainer(queue)
	queue.OnOutcome(checkout.SyncStatusHook(db, appLogger))
	appLogger.Info("✅ Sync queue initialized successfully",
		zap.Int("pending", queue.Stats().Total),
		zap.Bool("online", monitor.IsOnline()),
	)

	// Point of sale services
	cartEngine := cart.NewEngine(cart.Options{
		TaxRate:            cfg.TaxRate,
		MaxQuantityPerLine: cfg.MaxQuantityPerLine,
		MaxDiscountPercent: cfg.MaxDiscountPercent,
	}, bus, kv, appLogger)
	orchestrator := checkout.NewOrchestrator(cartEngine, db, queue, bus, appLogger)
	orchestrator.AddReceiptHook(checkout.ReceiptHookFunc(func(ctx context.Context, sale *domain.Sale) error {
		appLogger.Info("🧾 Receipt ready",
			zap.String("receipt", sale.ReceiptNumber),
			zap.String("total", sale.Total.StringFixed(2)),
			zap.String("change", sale.Change.StringFixed(2)),
		)
		return nil
	}))
	inventoryService := inventory.NewService(db, queue, cfg.LowStockThreshold, appLogger)
	reportService := reports.NewService(db, queue, cfg.Location(), appLogger)

	// Set Gin mode
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize router
	router := gin.New()

	// CORS middleware (must be first to handle preflight requests)
	router.Use(middleware.CORSMiddleware())

	router.Use(middleware.RecoveryHandler(appLogger))
	router.Use(logger.GinMiddleware(appLogger))

	// Request ID middleware (must be early in the chain)
	router.Use(middleware.RequestIDMiddleware(appLogger))

	// Error handler middleware
	router.Use(middleware.ErrorHandler(appLogger))

	// Initialize request ID store for idempotency
	appLogger.Info("🔧 Initializing request ID store for idempotency...", zap.String("backend", backend))
	var requestIDStore middleware.RequestIDStore
	if backend == "memory" {
		memoryStore := middleware.NewInMemoryRequestIDStore()
		defer memoryStore.Close()
		requestIDStore = memoryStore
	} else {
		requestIDStore = middleware.NewKVRequestIDStore(kv)
	}
	appLogger.Info("✅ Request ID store initialized successfully")

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Initialize JWT manager
	appLogger.Info("🔧 Initializing JWT manager...")
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTExpiry(), appLogger)
	authHandler := auth.NewAuthHandler(jwtManager, cfg.CashierUsers, appLogger)
	appLogger.Info("✅ JWT manager initialized successfully")

	// Initialize handlers
	appLogger.Info("🔧 Initializing handlers...")
	cartHandler := handlers.NewCartHandler(cartEngine, inventoryService, appLogger)
	checkoutHandler := handlers.NewCheckoutHandler(orchestrator, db, appLogger)
	inventoryHandler := handlers.NewInventoryHandler(inventoryService, appLogger)
	syncHandler := handlers.NewSyncHandler(queue, monitor, bus, appLogger)
	reportHandler := handlers.NewReportHandler(reportService, appLogger)
	backupHandler := handlers.NewBackupHandler(db, appLogger)
	monitoringHandler := handlers.NewMonitoringHandler(db, db, queue, monitor, backend, appLogger)
	appLogger.Info("✅ Handlers initialized successfully")

	// API routes
	v1 := router.Group("/api/v1")
	{
		// Health check endpoint (public)
		v1.GET("/health", monitoringHandler.Health)

		// Auth endpoints (public)
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/login", authHandler.Login)
		}

		// Protected endpoints (require JWT authentication)
		protected := v1.Group("")
		protected.Use(middleware.AuthMiddleware(jwtManager, appLogger))
		// Idempotency middleware (for write operations)
		protected.Use(middleware.IdempotencyMiddleware(requestIDStore, appLogger, cfg.IdempotencyTTL()))
		{
			cartGroup := protected.Group("/cart")
			{
				cartGroup.GET("", cartHandler.GetCart)
				cartGroup.DELETE("", cartHandler.Clear)
				cartGroup.POST("/items", cartHandler.AddItem)
				cartGroup.PUT("/items/:productId", cartHandler.SetQuantity)
				cartGroup.DELETE("/items/:productId", cartHandler.RemoveItem)
				cartGroup.POST("/discount", cartHandler.PreviewDiscount)
				cartGroup.POST("/hold", cartHandler.Hold)
				cartGroup.POST("/restore", cartHandler.Restore)
				cartGroup.GET("/stats", cartHandler.Stats)
			}

			protected.POST("/checkout", checkoutHandler.Checkout)
			protected.GET("/sales/:id", checkoutHandler.GetSale)

			products := protected.Group("/products")
			{
				products.POST("", inventoryHandler.CreateProduct)
				products.GET("", inventoryHandler.ListProducts)
				products.GET("/barcode/:barcode", inventoryHandler.GetProductByBarcode)
				products.GET("/:id", inventoryHandler.GetProduct)
				products.PUT("/:id", inventoryHandler.UpdateProduct)
				products.DELETE("/:id", inventoryHandler.DeleteProduct)
				products.POST("/:id/stock-in", inventoryHandler.StockIn)
				products.POST("/:id/stock-out", inventoryHandler.StockOut)
			}

			inventoryGroup := protected.Group("/inventory")
			{
				inventoryGroup.GET("/low-stock", inventoryHandler.LowStock)
				inventoryGroup.GET("/expiring", inventoryHandler.Expiring)
				inventoryGroup.GET("/value", inventoryHandler.Value)
				inventoryGroup.GET("/movements", inventoryHandler.Movements)
				inventoryGroup.POST("/stock-take", inventoryHandler.StockTake)
				inventoryGroup.POST("/prices", inventoryHandler.BulkPrices)
			}

			customers := protected.Group("/customers")
			{
				customers.POST("", inventoryHandler.RegisterCustomer)
				customers.GET("", inventoryHandler.ListCustomers)
				customers.GET("/:id", inventoryHandler.GetCustomer)
				customers.GET("/:id/sales", checkoutHandler.CustomerSales)
			}

			syncGroup := protected.Group("/sync")
			{
				syncGroup.GET("/status", syncHandler.Status)
				syncGroup.POST("/force", syncHandler.Force)
				syncGroup.POST("/cleanup", syncHandler.Cleanup)
			}

			connectivityGroup := protected.Group("/connectivity")
			{
				connectivityGroup.GET("", syncHandler.GetConnectivity)
				connectivityGroup.PUT("", syncHandler.SetConnectivity)
				connectivityGroup.POST("/check", syncHandler.CheckConnectivity)
			}

			reportsGroup := protected.Group("/reports")
			{
				reportsGroup.GET("/daily", reportHandler.Daily)
				reportsGroup.GET("/daily/export", reportHandler.Export)
				reportsGroup.POST("/daily/submit", reportHandler.Submit)
				reportsGroup.GET("/best-sellers", reportHandler.BestSellers)
			}

			protected.GET("/backup", backupHandler.Export)
			protected.POST("/backup", backupHandler.Restore)

			protected.GET("/events", syncHandler.Events)
			protected.GET("/monitoring/stats", monitoringHandler.GetStats)
		}
	}

	// Background maintenance
	backgroundCtx, stopBackground := context.WithCancel(ctx)
	defer stopBackground()
	go runCleanup(backgroundCtx, queue, cfg, appLogger)
	go runConnectivityChecks(backgroundCtx, monitor, cfg, appLogger)

	// Start server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		appLogger.Info("Starting POS service",
			zap.String("port", cfg.Port),
			zap.String("environment", cfg.Environment),
			zap.String("kv_backend", backend),
			zap.String("remote_transport", cfg.RemoteTransport),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")
	stopBackground()

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Server forced to shutdown", zap.Error(err))
	}

	// Wait for in-flight drains so nothing is half delivered
	queue.Close()
	appLogger.Info("Server exited", zap.Int("pending_sync", queue.Stats().Total))
}

// newKeyValueStore picks the backend named by QUEUE_BACKEND. Redis falls back
// to SQLite when it cannot be reached.
func newKeyValueStore(cfg *config.Config, db *database.SingleWriterDB, appLogger *zap.Logger) (storage.KeyValueStore, string, func()) {
	switch cfg.QueueBackend {
	case "redis":
		appLogger.Info("🔧 Initializing Redis key-value store...")
		redisStore, err := storage.NewRedisStore(cfg, appLogger)
		if err != nil {
			appLogger.Warn("⚠️  Redis unavailable, falling back to SQLite", zap.Error(err))
			return db, "sqlite", func() {}
		}
		appLogger.Info("✅ Redis key-value store initialized successfully")
		return redisStore, "redis", func() { redisStore.Close() }
	case "memory":
		appLogger.Warn("⚠️  Using in-memory key-value store, pending sync actions are lost on restart")
		return storage.NewMemoryStore(), "memory", func() {}
	default:
		return db, "sqlite", func() {}
	}
}

// newRemoteClient builds the backend transport. Kafka falls back to the
// simulated backend when the brokers cannot be reached.
func newRemoteClient(cfg *config.Config, appLogger *zap.Logger) (remote.Client, func()) {
	if cfg.RemoteTransport == "kafka" {
		appLogger.Info("📡 Kafka Configuration",
			zap.Strings("brokers", cfg.KafkaBrokers),
			zap.String("topic_sales", cfg.KafkaTopicSales),
			zap.String("topic_customers", cfg.KafkaTopicCustomers),
			zap.String("topic_products", cfg.KafkaTopicProducts),
			zap.String("topic_reports", cfg.KafkaTopicReports),
			zap.String("client_id", cfg.KafkaClientID),
			zap.String("acks", cfg.KafkaAcks),
			zap.Int("retries", cfg.KafkaRetries),
		)
		kafkaClient, err := remote.NewKafkaClient(cfg, appLogger)
		if err == nil {
			appLogger.Info("✅ Kafka remote client initialized successfully")
			return kafkaClient, func() { kafkaClient.Close() }
		}
		appLogger.Warn("⚠️  Kafka unavailable, using simulated backend", zap.Error(err))
	}
	appLogger.Info("🧪 Using simulated backend",
		zap.Duration("latency", simulatedLatency),
		zap.Float64("failure_rate", cfg.SimulatedFailureRate),
	)
	return remote.NewSimulatedClient(simulatedLatency, cfg.SimulatedFailureRate, appLogger), func() {}
}

func runCleanup(ctx context.Context, queue *syncqueue.Queue, cfg *config.Config, appLogger *zap.Logger) {
	if cfg.SyncCleanupInterval <= 0 {
		return
	}
	ticker := time.NewTicker(time.Duration(cfg.SyncCleanupInterval) * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := queue.CleanupOldData(ctx)
			if err != nil {
				appLogger.Error("Sync queue cleanup failed", zap.Error(err))
				continue
			}
			if removed > 0 {
				appLogger.Info("🧹 Sync queue cleanup", zap.Int("removed", removed))
			}
		}
	}
}

func runConnectivityChecks(ctx context.Context, monitor *connectivity.Monitor, cfg *config.Config, appLogger *zap.Logger) {
	if cfg.ConnectivityCheckSec <= 0 {
		return
	}
	ticker := time.NewTicker(time.Duration(cfg.ConnectivityCheckSec) * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			checkCtx, cancel := context.WithTimeout(ctx, cfg.RemoteTimeout())
			if _, err := monitor.Check(checkCtx); err != nil {
				appLogger.Debug("Backend probe failed", zap.Error(err))
			}
			cancel()
		}
	}
}
