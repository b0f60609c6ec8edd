package db

import (
	"mining_wallet/internal/domain" // Importing domain models

	"github.com/sirupsen/logrus"

	"gorm.io/driver/mysql" // MySQL driver for GORM
	"gorm.io/gorm"         // GORM ORM library
)

// Migrate performs automatic migration for the database schema and seeds
// the product catalog
func Migrate(dsn string) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{}) // Open a connection to the database
	if err != nil {
		logrus.Fatalf("failed to connect database: %v", err) // Log fatal error if connection fails
	}
	// AutoMigrate will create tables, missing foreign keys, constraints, columns and indexes
	err = db.AutoMigrate(&domain.User{}, &domain.Transaction{}, &domain.Product{}, &domain.Purchase{})
	if err != nil {
		logrus.Fatalf("migration failed: %v", err) // Log fatal error if migration fails
	}
	if err := SeedProducts(db); err != nil {
		logrus.Fatalf("seeding failed: %v", err) // Log fatal error if seeding fails
	}
	logrus.Info("Migration completed.") // Log successful migration
}

// SeedProducts inserts the mining product catalog when it is empty
func SeedProducts(db *gorm.DB) error {
	var count int64
	if err := db.Model(&domain.Product{}).Count(&count).Error; err != nil {
		return err
	}
	// Catalog already seeded
	if count > 0 {
		return nil
	}
	products := []domain.Product{
		{Name: "Starter Rig", Slug: "starter-rig", Price: 100.0, HourlyRate: 0.02, Active: true, Description: "Entry mining product. Earns 0.02 per hour."},
		{Name: "Pro Miner", Slug: "pro-miner", Price: 250.0, HourlyRate: 0.06, Active: true, Description: "Mid-tier mining. Earns 0.06 per hour."},
		{Name: "Mega Farm", Slug: "mega-farm", Price: 500.0, HourlyRate: 0.14, Active: true, Description: "High yield. Earns 0.14 per hour."},
	}
	return db.Create(&products).Error
}
