package api

import (
	"context"                       // Context for Redis operations
	"mining_wallet/internal/domain" // Importing domain models
	"mining_wallet/internal/ledger" // Ledger service
	"net/http"                      // HTTP status codes
	"strconv"                       // String conversion
	"time"                          // Current time for accrual

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"gorm.io/gorm"                 // GORM ORM library
)

// BuyProductHandler purchases a mining product; earnings start accruing
// immediately
func BuyProductHandler(svc *ledger.Service, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Get userID from context
		userID, exists := c.Get("userID")
		// Check if userID exists in context
		if !exists {
			// If not, return unauthorized
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		slug := c.Param("slug") // Product slug from the URL
		// Purchase through the ledger
		purchase, err := svc.PurchaseProduct(userID.(uint), slug, time.Now().UTC())
		if ledgerErrorResponse(c, err) {
			return
		}
		invalidateUserCache(context.Background(), rdb, userID.(uint)) // Drop stale cached views
		// Return the new purchase
		c.JSON(http.StatusCreated, gin.H{"message": "Product purchased, mining started", "purchase": purchase})
	}
}

// ListMiningHandler refreshes accrual and returns the user's purchases with
// their current unclaimed earnings
func ListMiningHandler(svc *ledger.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Get userID from context
		userID, exists := c.Get("userID")
		// Check if userID exists in context
		if !exists {
			// If not, return unauthorized
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		// Bring every purchase's accrued value up to now before displaying
		if err := svc.AccrueAll(userID.(uint), time.Now().UTC()); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update earnings"})
			return
		}
		// Fetch the refreshed purchases
		purchases, err := svc.PurchasesWithProducts(userID.(uint))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch purchases"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"purchases": purchases})
	}
}

// AccrueHandler refreshes a single purchase's unclaimed earnings
func AccrueHandler(db *gorm.DB, svc *ledger.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Get userID from context
		userID, exists := c.Get("userID")
		// Check if userID exists in context
		if !exists {
			// If not, return unauthorized
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		// Parse the purchase ID from the URL
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid purchase ID"})
			return
		}
		var purchase domain.Purchase
		// The purchase must belong to the caller
		if err := db.Where("id = ? AND user_id = ?", id, userID).First(&purchase).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Purchase not found"})
			return
		}
		// Bring the accrued value up to now
		accrued, err := svc.Accrue(purchase.ID, time.Now().UTC())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update earnings"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"purchase_id": purchase.ID, "accrued": accrued})
	}
}

// ClaimMiningHandler converts all accrued earnings into balance
func ClaimMiningHandler(svc *ledger.Service, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Get userID from context
		userID, exists := c.Get("userID")
		// Check if userID exists in context
		if !exists {
			// If not, return unauthorized
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		// Claim through the ledger; zero accrued is a quiet no-op
		total, err := svc.ClaimMining(userID.(uint))
		if ledgerErrorResponse(c, err) {
			return
		}
		if total > 0 {
			invalidateUserCache(context.Background(), rdb, userID.(uint)) // Drop stale cached views
		}
		// Return the total claimed, possibly zero
		c.JSON(http.StatusOK, gin.H{"message": "Mining earnings claimed", "claimed": total})
	}
}
