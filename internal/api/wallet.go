package api

import (
	"context"                       // Context for Redis operations
	"errors"                        // Error inspection
	"mining_wallet/internal/domain" // Importing domain models
	"mining_wallet/internal/ledger" // Ledger service
	"mining_wallet/internal/utils"  // Utility functions
	"net/http"                      // HTTP status codes
	"strconv"                       // String conversion
	"time"                          // Time durations

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"gorm.io/gorm"                 // GORM ORM library
)

// AmountRequest carries a single positive amount
type AmountRequest struct {
	Amount float64 `json:"amount" binding:"required,gt=0"` // Amount must be positive
}

// ExchangeRequest carries a buy or sell action with its amount
type ExchangeRequest struct {
	Action string  `json:"action" binding:"required"`      // "buy" or "sell"
	Amount float64 `json:"amount" binding:"required,gt=0"` // Amount must be positive
}

// invalidateUserCache drops the cached balance view and every cached
// transaction-history page for a user after a balance mutation
func invalidateUserCache(ctx context.Context, rdb *redis.Client, userID uint) {
	id := strconv.Itoa(int(userID))                                   // User ID as string
	_ = utils.DeleteCache(ctx, rdb, "balance:user:"+id)               // Invalidate balance cache
	_ = utils.DeleteCacheByPrefix(ctx, rdb, "txhistory:user:"+id+":") // Invalidate history pages
}

// ledgerErrorResponse maps ledger errors to HTTP responses. Returns true
// when the error was handled.
func ledgerErrorResponse(c *gin.Context, err error) bool {
	var tooSoon *ledger.ClaimTooSoonError
	switch {
	case err == nil:
		return false
	case errors.Is(err, ledger.ErrInvalidAmount):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid amount"})
	case errors.Is(err, ledger.ErrInsufficientFunds):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Insufficient balance"})
	case errors.Is(err, ledger.ErrInvalidAction):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid action"})
	case errors.Is(err, ledger.ErrProductNotFound), errors.Is(err, ledger.ErrInactiveProduct):
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
	case errors.As(err, &tooSoon):
		// Too early for another daily claim; tell the caller how long to wait
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":             "Claim not available yet",
			"remaining_seconds": int(tooSoon.Remaining.Seconds()), // Wait before retrying
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Operation failed"})
	}
	return true
}

// GetWalletHandler returns the authenticated user's balance, referral info
// and most recent ledger entries
func GetWalletHandler(db *gorm.DB, svc *ledger.Service, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Get userID from context
		userID, exists := c.Get("userID")
		// Check if userID exists in context
		if !exists {
			// If not, return unauthorized
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		ctx := context.Background()                                    // Context for Redis operations
		cacheKey := "balance:user:" + strconv.Itoa(int(userID.(uint))) // Cache key for the balance view
		var cached WalletResponse                                      // Struct to hold cached data
		found, err := utils.GetCache(ctx, rdb, cacheKey, &cached)      // Try to get from cache
		// If found in cache, return it
		if err == nil && found {
			c.JSON(http.StatusOK, gin.H{"wallet": cached, "cached": true})
			return
		}
		var user domain.User // Fetch user from database
		if err := db.First(&user, userID).Error; err != nil {
			// Return not found if the user vanished
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		// Last few ledger entries for the balance view
		recent, err := svc.RecentTransactions(user.ID, 10)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch transactions"})
			return
		}
		resp := WalletResponse{
			Balance:      user.Balance,      // Current balance
			ReferralCode: user.ReferralCode, // Own referral code to share
			LastClaimAt:  user.LastClaimAt,  // Last daily claim
			Recent:       recent,            // Newest transactions
		}
		_ = utils.SetCache(ctx, rdb, cacheKey, resp, 60*time.Second) // Cache the view for 60 seconds
		c.JSON(http.StatusOK, gin.H{"wallet": resp, "cached": false})
	}
}

// WalletResponse is the balance view returned to the user
type WalletResponse struct {
	Balance      float64              `json:"balance"`                 // Current balance
	ReferralCode string               `json:"referral_code"`           // Own referral code
	LastClaimAt  *time.Time           `json:"last_claim_at,omitempty"` // Last daily claim, if any
	Recent       []domain.Transaction `json:"recent_transactions"`     // Newest ledger entries
}

// RechargeHandler credits a simulated mobile recharge to the balance
func RechargeHandler(svc *ledger.Service, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Get userID from context
		userID, exists := c.Get("userID")
		// Check if userID exists in context
		if !exists {
			// If not, return unauthorized
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		var req AmountRequest // Bind JSON request to struct
		// Validate request
		if err := c.ShouldBindJSON(&req); err != nil || req.Amount <= 0 {
			// If invalid, return bad request
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid amount"})
			return
		}
		// Credit through the ledger
		balance, err := svc.Credit(userID.(uint), req.Amount, "recharge", "Mobile recharge (demo credit)")
		if ledgerErrorResponse(c, err) {
			return
		}
		invalidateUserCache(context.Background(), rdb, userID.(uint)) // Drop stale cached views
		// Return the new balance
		c.JSON(http.StatusOK, gin.H{"message": "Recharge successful", "balance": balance})
	}
}

// TopupHandler spends balance on a simulated diamond top-up
func TopupHandler(svc *ledger.Service, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Get userID from context
		userID, exists := c.Get("userID")
		// Check if userID exists in context
		if !exists {
			// If not, return unauthorized
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		var req AmountRequest // Bind JSON request to struct
		// Validate request
		if err := c.ShouldBindJSON(&req); err != nil || req.Amount <= 0 {
			// If invalid, return bad request
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid amount"})
			return
		}
		// Debit through the ledger
		balance, err := svc.Debit(userID.(uint), req.Amount, "topup", "Diamond top-up (demo spend)")
		if ledgerErrorResponse(c, err) {
			return
		}
		invalidateUserCache(context.Background(), rdb, userID.(uint)) // Drop stale cached views
		// Return the new balance
		c.JSON(http.StatusOK, gin.H{"message": "Top-up successful", "balance": balance})
	}
}

// ExchangeHandler buys or sells dollars against the balance
func ExchangeHandler(svc *ledger.Service, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Get userID from context
		userID, exists := c.Get("userID")
		// Check if userID exists in context
		if !exists {
			// If not, return unauthorized
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		var req ExchangeRequest // Bind JSON request to struct
		// Validate request
		if err := c.ShouldBindJSON(&req); err != nil || req.Amount <= 0 {
			// If invalid, return bad request
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		// Run the exchange through the ledger
		balance, err := svc.Exchange(userID.(uint), req.Action, req.Amount)
		if ledgerErrorResponse(c, err) {
			return
		}
		invalidateUserCache(context.Background(), rdb, userID.(uint)) // Drop stale cached views
		// Return the new balance
		c.JSON(http.StatusOK, gin.H{"message": "Exchange successful", "balance": balance})
	}
}

// ClaimBonusHandler pays out the daily bonus, once per 24 hours
func ClaimBonusHandler(svc *ledger.Service, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Get userID from context
		userID, exists := c.Get("userID")
		// Check if userID exists in context
		if !exists {
			// If not, return unauthorized
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		// Claim through the ledger; the referral payout rides along atomically
		bonus, err := svc.ClaimDailyBonus(userID.(uint), time.Now().UTC())
		if ledgerErrorResponse(c, err) {
			return
		}
		// The referrer's cached balance may be stale too, but it expires on
		// its own TTL; only the claimer is invalidated eagerly
		invalidateUserCache(context.Background(), rdb, userID.(uint))
		// Return the credited bonus
		c.JSON(http.StatusOK, gin.H{"message": "Daily bonus claimed", "bonus": bonus})
	}
}

// GetTransactionHistoryHandler returns the user's ledger entries, paginated
func GetTransactionHistoryHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Get userID from context
		userID, exists := c.Get("userID")
		// Check if userID exists in context
		if !exists {
			// If not, return unauthorized
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		page := 1      // Default page
		pageSize := 20 // Default page size
		// If page exists in query
		if p := c.Query("page"); p != "" {
			// Convert page to integer
			if v, err := strconv.Atoi(p); err == nil && v > 0 {
				page = v // Set page if valid
			}
		}
		// If page_size exists in query
		if ps := c.Query("page_size"); ps != "" {
			// Convert page_size to integer
			if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
				pageSize = v // Set page size if valid
			}
		}
		offset := (page - 1) * pageSize // Calculate offset
		// Redis cache key
		cacheKey := "txhistory:user:" + strconv.Itoa(int(userID.(uint))) + ":page:" + strconv.Itoa(page) + ":size:" + strconv.Itoa(pageSize)
		ctx := context.Background() // Context for Redis operations
		var cached struct {
			Transactions []domain.Transaction `json:"transactions"` // List of transactions
			Page         int                  `json:"page"`         // Current page
			PageSize     int                  `json:"page_size"`    // Page size
			Total        int64                `json:"total"`        // Total transactions
			TotalPages   int                  `json:"total_pages"`  // Total pages
		}
		// Try to get from cache
		found, err := utils.GetCache(ctx, rdb, cacheKey, &cached)
		// If found in cache, return it
		if err == nil && found {
			c.JSON(http.StatusOK, gin.H{
				"transactions": cached.Transactions, // Cached transactions
				"page":         cached.Page,         // Current page
				"page_size":    cached.PageSize,     // Page size
				"total":        cached.Total,        // Total transactions
				"total_pages":  cached.TotalPages,   // Total pages
				"cached":       true,
			})
			return
		}
		var total int64 // Total count of transactions
		// Count total transactions for pagination
		if err := db.Model(&domain.Transaction{}).
			Where("user_id = ?", userID).
			Count(&total).Error; err != nil {
			// If counting fails, return error
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count transactions"})
			return
		}
		var transactions []domain.Transaction // Slice to hold transactions
		// Fetch paginated transactions
		if err := db.Where("user_id = ?", userID).
			Order("created_at desc").
			Offset(offset).
			Limit(pageSize).
			Find(&transactions).Error; err != nil {
			// If fetching fails, return error
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch transactions"})
			return
		}
		// Calculate total pages
		totalPages := (int(total) + pageSize - 1) / pageSize
		resp := gin.H{
			"transactions": transactions, // List of transactions
			"page":         page,         // Current page
			"page_size":    pageSize,     // Page size
			"total":        total,        // Total transactions
			"total_pages":  totalPages,   // Total pages
			"cached":       false,        // Not from cache
		}
		// Cache the result for 60 seconds
		_ = utils.SetCache(ctx, rdb, cacheKey, resp, 60*time.Second)
		c.JSON(http.StatusOK, resp) // Return transaction history
	}
}

// ProfileHandler returns the user's referral code, referral count and
// registration date
func ProfileHandler(db *gorm.DB, svc *ledger.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Get userID from context
		userID, exists := c.Get("userID")
		// Check if userID exists in context
		if !exists {
			// If not, return unauthorized
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		var user domain.User // Fetch user from database
		if err := db.First(&user, userID).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		// Count users still carrying this referral code
		refs, err := svc.ReferralCount(user.ReferralCode)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count referrals"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"username":       user.Username,     // Username
			"referral_code":  user.ReferralCode, // Code to share
			"referral_count": refs,              // Pending referrals
			"member_since":   user.CreatedAt,    // Registration date
		})
	}
}
