package main

import (
	"context"
	"database/sql"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/orienta-app/orienta/internal/config"
	"github.com/orienta-app/orienta/internal/handlers"
	"github.com/orienta-app/orienta/internal/middleware"
	"github.com/orienta-app/orienta/internal/repository"
	"github.com/orienta-app/orienta/internal/services/cache"
	"github.com/orienta-app/orienta/internal/services/payment"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := repository.Open(cfg)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := repository.Migrate(ctx, db); err != nil {
		cancel()
		log.Fatalf("Failed to migrate database: %v", err)
	}
	cancel()

	catalogCache, err := cache.New(cfg.RedisURL, cfg.CacheTTL, logger)
	if err != nil {
		// A cold cache only costs latency; keep serving from Postgres.
		logger.Warn("running without cache", "error", err)
		catalogCache = nil
	}
	defer catalogCache.Close()

	router := setupRouter(cfg, db, catalogCache, logger)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Graceful shutdown
	go func() {
		logger.Info("server listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server Shutdown:", err)
	}

	logger.Info("server exiting")
}

func setupRouter(cfg *config.Config, db *sql.DB, catalogCache *cache.Cache, logger *slog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	// Middleware
	router.Use(middleware.CORS())
	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS)
	limiter.StartCleanup()
	limited := limiter.Middleware()

	// Repositories
	users := repository.NewUserRepository(db)
	programs := repository.NewProgramRepository(db)
	ledger := repository.NewLedgerRepository(db)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Payment webhook. Deliberately not rate limited: the provider signs and
	// retries deliveries, and dropping one with a 429 loses a credit.
	verifier := payment.NewVerifier(cfg.WebhookSecret, cfg.WebhookTolerance)
	processor := payment.NewProcessor(users, ledger, logger)
	webhookHandler := handlers.NewWebhookHandler(verifier, processor, logger)
	router.POST("/webhook", webhookHandler.Receive)

	// Accounts
	authHandler := handlers.NewAuthHandler(users, ledger, cfg, logger)
	router.POST("/auth/signup", limited, authHandler.Signup)
	router.POST("/auth/login", limited, authHandler.Login)

	programHandler := handlers.NewProgramHandler(programs, ledger, catalogCache, logger)
	tokenHandler := handlers.NewTokenHandler(ledger, logger)

	api := router.Group("/api/v1")
	api.Use(limited)
	{
		// Public catalog; detail reveals notes only for unlockers
		api.GET("/programs", programHandler.List)
		api.GET("/programs/:id", middleware.OptionalAuth(cfg), programHandler.Get)

		// Account-scoped routes
		authed := api.Group("")
		authed.Use(middleware.Auth(cfg))
		{
			authed.POST("/programs/:id/unlock", programHandler.Unlock)
			authed.GET("/tokens", tokenHandler.Balance)
			authed.GET("/unlocks", tokenHandler.Unlocks)
			authed.GET("/me", authHandler.Me)
		}
	}

	return router
}
