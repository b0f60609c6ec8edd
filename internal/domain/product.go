package domain

// Product Model. Static catalog data seeded by cmd/migrate.
type Product struct {
	ID          uint    `gorm:"primaryKey"`               // Primary key
	Name        string  `gorm:"size:120;not null"`        // Display name
	Slug        string  `gorm:"size:140;unique;not null"` // Unique URL slug
	Price       float64 `gorm:"not null"`                 // Purchase price
	HourlyRate  float64 `gorm:"not null"`                 // Earnings accrued per hour of ownership
	Active      bool    `gorm:"default:true"`             // Inactive products cannot be bought
	Description string  `gorm:"type:text"`                // Marketing copy
}
