package domain

import "time"

// Purchase Model. One row per product bought; accrued holds earnings not
// yet claimed into the owner's balance.
type Purchase struct {
	ID          uint       `gorm:"primaryKey"`     // Primary key
	UserID      uint       `gorm:"index;not null"` // Foreign key to User
	ProductID   uint       `gorm:"not null"`       // Foreign key to Product
	Product     Product    // Product relation, preloaded for rate lookups
	PurchasedAt time.Time  // Timestamp of purchase
	LastMinedAt *time.Time // High-water mark of accrual; purchased_at is used when unset
	Accrued     float64    `gorm:"not null;default:0"` // Unclaimed earnings, never negative
}
