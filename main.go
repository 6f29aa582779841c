package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"marketplace-server/config"
	"marketplace-server/database"
	"marketplace-server/jobs"
	"marketplace-server/middleware"
	"marketplace-server/repository"
	"marketplace-server/routes"
	"marketplace-server/services"
	"marketplace-server/utils"
	ws "marketplace-server/websocket"
)

// openStore returns the store selected by STORE_DRIVER together with its close function.
func openStore(cfg *config.Config, logger *zap.Logger) (repository.Store, repository.Seeder, func() error, error) {
	switch cfg.Database.Driver {
	case "memory":
		if cfg.IsProduction() {
			return nil, nil, nil, errors.New("STORE_DRIVER=memory is for tests and demos only")
		}
		logger.Warn("using in-memory store for tests and demos, data is lost on restart")
		mem := repository.NewMemoryStore()
		return mem, mem, func() error { return nil }, nil
	case "postgres":
		db, err := database.Open(cfg.Database, logger)
		if err != nil {
			return nil, nil, nil, err
		}
		gormStore := repository.NewGormStore(db)
		return gormStore, gormStore, func() error { return database.Close(db) }, nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.Database.Driver)
	}
}

// newRouter builds the engine and its global middleware. CORS runs first so rejections from
// later middleware still carry CORS headers.
func newRouter(cfg *config.Config, rateLimiter *middleware.RateLimiter, logger *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	// Disable automatic redirects for trailing slashes
	router.RedirectTrailingSlash = false
	router.RedirectFixedPath = false

	router.Use(middleware.CORSMiddleware(cfg.CORS.AllowedOrigins))
	router.Use(middleware.SecurityHeadersMiddleware())
	router.Use(middleware.InputValidationMiddleware())
	router.Use(rateLimiter.Middleware(logger.Named("ratelimit")))
	router.Use(middleware.AuditLogMiddleware(logger.Named("audit")))
	return router
}

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	// Load configuration
	cfg := config.Load()

	logger, err := utils.NewLogger(cfg.IsProduction())
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize store
	store, seeder, closeStore, err := openStore(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize store", zap.Error(err))
	}
	defer closeStore() //nolint:errcheck

	if cfg.SeedDemo {
		if err := seedDemoData(ctx, seeder, logger); err != nil {
			logger.Fatal("failed to seed demo data", zap.Error(err))
		}
	}

	// Notification hub
	hub := ws.NewHub(logger.Named("ws"))
	go hub.Run(ctx)

	// Services
	notifications := services.NewNotificationService(store, hub, logger.Named("notifications"))
	chat := services.NewChatService(store, logger.Named("chat"))
	dispatcher := services.NewDispatcher(notifications, chat, logger.Named("events"))
	tokens := utils.NewTokenIssuer(cfg.JWT.Secret, cfg.TokenExpiry())

	handlers := &routes.Handlers{
		Auth:          services.NewAuthService(store, tokens, logger.Named("auth")),
		Bookings:      services.NewBookingService(store, dispatcher, logger.Named("bookings")),
		Contracts:     services.NewContractService(store, dispatcher, logger.Named("contracts")),
		Payments:      services.NewPaymentService(store, dispatcher, logger.Named("payments")),
		Notifications: notifications,
		Hub:           hub,
		Authenticator: middleware.NewAuthenticator(tokens, store, logger.Named("auth")),
		Logger:        logger.Named("http"),
	}
	if cfg.Cloudinary.URL != "" {
		storage, err := services.NewCloudinaryStorage(cfg.Cloudinary.URL, cfg.Cloudinary.Folder, logger.Named("storage"))
		if err != nil {
			logger.Fatal("failed to initialize cloudinary", zap.Error(err))
		}
		handlers.Storage = storage
	} else {
		logger.Warn("CLOUDINARY_URL not set, payment proof uploads are disabled")
	}

	// Set Gin mode
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	router := newRouter(cfg, rateLimiter, logger)
	routes.RegisterRoutes(router, handlers)

	// Background jobs
	auditJob := jobs.NewTimeRecordAuditJob(store, cfg.Jobs.TimeRecordAuditInterval, logger)
	auditJob.Start()
	defer auditJob.Stop()

	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed := rateLimiter.Cleanup(30 * time.Minute); removed > 0 {
					logger.Debug("rate limiters pruned", zap.Int("removed", removed))
				}
			}
		}
	}()

	server := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("port", cfg.Server.Port), zap.String("store", cfg.Database.Driver))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
