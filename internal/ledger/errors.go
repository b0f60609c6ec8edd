package ledger

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors returned by the ledger service. Handlers map these to
// HTTP status codes; none of them leaves partial state behind.
var (
	ErrInvalidAmount     = errors.New("amount must be positive")       // Non-positive amount supplied
	ErrInsufficientFunds = errors.New("insufficient balance")          // Debit exceeds current balance
	ErrInvalidAction     = errors.New("unknown exchange action")       // Exchange action is neither buy nor sell
	ErrProductNotFound   = errors.New("product not found")             // No product with the given slug
	ErrInactiveProduct   = errors.New("product is no longer for sale") // Product exists but is deactivated
	ErrDuplicateUsername = errors.New("username already exists")       // Registration conflict
)

// ClaimTooSoonError is returned when a daily bonus is requested before the
// 24h window has elapsed. Remaining is the wait until the next claim.
type ClaimTooSoonError struct {
	Remaining time.Duration // Time left until the claim is allowed again
}

// Error implements the error interface
func (e *ClaimTooSoonError) Error() string {
	return fmt.Sprintf("next claim available in %s", e.Remaining.Round(time.Second))
}
