package domain

import "time"

// User Model
type User struct {
	ID           uint       `gorm:"primaryKey"`              // Primary key
	Username     string     `gorm:"size:50;unique;not null"` // Unique username
	Password     string     `gorm:"size:255;not null"`       // Hashed password
	Role         string     `gorm:"default:user"`            // Role: user or admin
	Balance      float64    `gorm:"not null;default:0"`      // Spendable balance, never negative
	ReferralCode string     `gorm:"size:12;unique;not null"` // Short code handed out in referral links
	ReferredBy   *string    `gorm:"size:12"`                 // Referral code used at registration; cleared after first bonus payout
	LastClaimAt  *time.Time // Timestamp of the last daily bonus claim
	CreatedAt    time.Time  // Timestamp of registration
}
