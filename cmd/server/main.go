package main

import (
	"context"                           // context package is needed for Redis operations
	"log"                               // log package is needed for logging
	"mining_wallet/internal/api"        // Custom package for API handlers
	"mining_wallet/internal/config"     // Custom package for configuration
	"mining_wallet/internal/ledger"     // Custom package for the ledger service
	"mining_wallet/internal/middleware" // Custom package for middleware

	// For loading .env files
	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logrus for structured logging
	"gorm.io/driver/mysql"         // MySQL driver for GORM
	"gorm.io/gorm"                 // GORM ORM library
)

// Main function to set up and run the server
func main() {
	cfg := config.LoadConfig() // Load configuration

	// Setup logger
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	// Setup Data Source Name (DSN) and connect to the database
	dsn := cfg.DBUser + ":" + cfg.DBPassword + "@tcp(" + cfg.DBHost + ":" + cfg.DBPort + ")/" + cfg.DBName + "?parseTime=true"
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		logrus.Fatalf("failed to connect to DB: %v", err) // Fatal error if DB connection fails
	}

	// Setup Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr, // Redis server address
		Password: cfg.RedisPass, // Redis password
		DB:       cfg.RedisDB,   // Redis database number
	})

	// Test Redis connection
	_, err = redisClient.Ping(context.Background()).Result()
	if err != nil {
		logrus.Fatalf("failed to connect to Redis: %v", err)
	}

	// The ledger service owns every balance and accrual mutation
	svc := ledger.NewService(db)

	// Set Mode to Release if in production
	if cfg.IsProd {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup Gin
	r := gin.Default() // Gin router instance

	// Set trusted proxies for Gin
	if err := r.SetTrustedProxies([]string{"127.0.0.1"}); err != nil {
		logrus.Fatalf("failed to set trusted proxies: %v", err)
	}

	// Auth routes
	r.POST("/register", api.RegisterHandler(svc))         // Registration endpoint
	r.POST("/login", api.LoginHandler(db, cfg.JWTSecret)) // Login endpoint
	r.GET("/r/:code", api.ReferralEntryHandler())         // Referral link entry point

	// Public product catalog
	r.GET("/products", api.ListProductsHandler(db, redisClient)) // Active catalog endpoint
	r.GET("/products/:slug", api.GetProductHandler(db))          // Single product endpoint

	// Wallet routes (protected by JWT)
	walletGroup := r.Group("/wallet")
	// Protect wallet routes with JWT middleware
	walletGroup.Use(middleware.JWTAuthMiddleware(cfg.JWTSecret))
	walletGroup.GET("", api.GetWalletHandler(db, svc, redisClient))                     // Balance view endpoint
	walletGroup.POST("/recharge", api.RechargeHandler(svc, redisClient))                // Recharge endpoint
	walletGroup.POST("/topup", api.TopupHandler(svc, redisClient))                      // Top-up endpoint
	walletGroup.POST("/exchange", api.ExchangeHandler(svc, redisClient))                // Buy/sell endpoint
	walletGroup.POST("/claim", api.ClaimBonusHandler(svc, redisClient))                 // Daily bonus endpoint
	walletGroup.GET("/transactions", api.GetTransactionHistoryHandler(db, redisClient)) // Transaction history endpoint

	// Mining routes (protected by JWT)
	miningGroup := r.Group("/mining")
	miningGroup.Use(middleware.JWTAuthMiddleware(cfg.JWTSecret))
	miningGroup.POST("/buy/:slug", api.BuyProductHandler(svc, redisClient)) // Purchase endpoint
	miningGroup.GET("", api.ListMiningHandler(svc))                         // Purchases with fresh accrual
	miningGroup.POST("/accrue/:id", api.AccrueHandler(db, svc))             // Single-purchase accrual refresh
	miningGroup.POST("/claim", api.ClaimMiningHandler(svc, redisClient))    // Mining claim endpoint

	// Profile route (protected by JWT)
	r.GET("/profile", middleware.JWTAuthMiddleware(cfg.JWTSecret), api.ProfileHandler(db, svc))

	// Admin routes (protected, admin only)
	adminGroup := r.Group("/admin")
	// Protect admin routes with JWT and AdminOnly middleware
	adminGroup.Use(middleware.JWTAuthMiddleware(cfg.JWTSecret), middleware.AdminOnlyMiddleware(db))
	adminGroup.GET("/users", api.ListUsersHandler(db, redisClient))               // List users endpoint
	adminGroup.GET("/transactions", api.ListTransactionsHandler(db, redisClient)) // List transactions endpoint

	log.Println("Server running on " + cfg.AppPort) // Log server start
	r.Run(":" + cfg.AppPort)                        // Start the server on port cfg.AppPort
}
