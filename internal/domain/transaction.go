package domain

import "time"

// Transaction Model. Rows are append-only: the sum of a user's amounts
// always equals their current balance.
type Transaction struct {
	ID        uint      `gorm:"primaryKey"`       // Primary key
	UserID    uint      `gorm:"index;not null"`   // Foreign key to User
	Type      string    `gorm:"size:30;not null"` // recharge, topup, buy, sell, bonus, buy_product, mining
	Amount    float64   // Signed amount: credits positive, debits negative
	Details   string    `gorm:"type:text"` // Free-text description
	CreatedAt time.Time // Timestamp of creation
}
