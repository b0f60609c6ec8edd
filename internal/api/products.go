package api

import (
	"context"                       // Context for Redis operations
	"mining_wallet/internal/domain" // Importing domain models
	"mining_wallet/internal/utils"  // Utility functions
	"net/http"                      // HTTP status codes
	"time"                          // Time durations

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"gorm.io/gorm"                 // GORM ORM library
)

// ListProductsHandler returns the active product catalog. The catalog is
// static reference data, so it is cached aggressively.
func ListProductsHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := context.Background()   // Context for Redis operations
		cacheKey := "products:active" // One key for the whole catalog
		var products []domain.Product // Slice to hold products
		// Try to get the catalog from cache
		found, err := utils.GetCache(ctx, rdb, cacheKey, &products)
		if err == nil && found {
			c.JSON(http.StatusOK, gin.H{"products": products, "cached": true})
			return
		}
		// Fetch active products from the database
		if err := db.Where("active = ?", true).Find(&products).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch products"})
			return
		}
		_ = utils.SetCache(ctx, rdb, cacheKey, products, 5*time.Minute) // Catalog changes rarely
		c.JSON(http.StatusOK, gin.H{"products": products, "cached": false})
	}
}

// GetProductHandler returns a single active product by slug
func GetProductHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		slug := c.Param("slug") // Product slug from the URL
		var product domain.Product
		// Only active products are visible
		if err := db.Where("slug = ? AND active = ?", slug, true).First(&product).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"product": product})
	}
}
