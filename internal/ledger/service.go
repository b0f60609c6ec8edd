package ledger

import (
	"errors"                        // Error inspection
	"mining_wallet/internal/domain" // Importing domain models
	"time"                          // Timestamps and durations

	"github.com/sirupsen/logrus" // Logging library
	"gorm.io/gorm"               // GORM ORM library
	"gorm.io/gorm/clause"        // Row locking clauses
)

// Fixed bonus amounts and the daily claim window
const (
	DailyBonus    = 5.0            // Credited on every successful daily claim
	ReferralBonus = 1.0            // Credited to the referrer once, at the referred user's first claim
	ClaimInterval = 24 * time.Hour // Minimum gap between daily claims
)

// Service owns every mutation of User.Balance and Purchase.Accrued and the
// append-only transaction log behind them. Each operation runs as a single
// database transaction with the affected rows locked for update, so
// concurrent claims on the same user cannot double-pay.
type Service struct {
	db *gorm.DB // Underlying store
}

// NewService creates a ledger service on top of the given database handle
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// lockForUpdate applies SELECT ... FOR UPDATE where the dialect supports
// it. SQLite rejects the clause and serializes writers on its own.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// Register creates a user with a zero balance and a fresh referral code.
// The password must already be hashed by the caller. referredBy carries the
// referral code the new user signed up with, if any.
func (s *Service) Register(username, passwordHash, referralCode string, referredBy *string) (*domain.User, error) {
	user := domain.User{
		Username:     username,     // Unique username
		Password:     passwordHash, // Already hashed
		Balance:      0,            // Users start empty
		ReferralCode: referralCode, // Code handed out in referral links
		ReferredBy:   referredBy,   // Consumed at the first daily claim
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		// Pre-check the username so the conflict surfaces as a typed error
		if err := tx.Model(&domain.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrDuplicateUsername
		}
		return tx.Create(&user).Error
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Credit adds amount to the user's balance and records a positive
// transaction. Returns the new balance.
func (s *Service) Credit(userID uint, amount float64, kind, details string) (float64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	var balance float64
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var user domain.User
		// Lock the user row for the duration of the transaction
		if err := lockForUpdate(tx).First(&user, userID).Error; err != nil {
			return err
		}
		// Apply the credit
		if err := tx.Model(&user).Update("balance", gorm.Expr("balance + ?", amount)).Error; err != nil {
			return err
		}
		// Append the ledger entry
		t := domain.Transaction{UserID: user.ID, Type: kind, Amount: amount, Details: details}
		if err := tx.Create(&t).Error; err != nil {
			return err
		}
		balance = user.Balance + amount
		return nil
	})
	if err != nil {
		return 0, err
	}
	// Log the successful credit
	logrus.WithFields(logrus.Fields{
		"user_id": userID, // User ID
		"amount":  amount, // Credited amount
		"type":    kind,   // Transaction type
	}).Info("Balance credited")
	return balance, nil
}

// Debit subtracts amount from the user's balance and records a negative
// transaction. Fails without touching the balance when funds are short.
func (s *Service) Debit(userID uint, amount float64, kind, details string) (float64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	var balance float64
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var user domain.User
		// Lock the user row so the balance check and update are one unit
		if err := lockForUpdate(tx).First(&user, userID).Error; err != nil {
			return err
		}
		// The balance may never go negative
		if user.Balance < amount {
			return ErrInsufficientFunds
		}
		// Apply the debit
		if err := tx.Model(&user).Update("balance", gorm.Expr("balance - ?", amount)).Error; err != nil {
			return err
		}
		// Ledger entries store debits as negative amounts
		t := domain.Transaction{UserID: user.ID, Type: kind, Amount: -amount, Details: details}
		if err := tx.Create(&t).Error; err != nil {
			return err
		}
		balance = user.Balance - amount
		return nil
	})
	if err != nil {
		return 0, err
	}
	// Log the successful debit
	logrus.WithFields(logrus.Fields{
		"user_id": userID, // User ID
		"amount":  amount, // Debited amount
		"type":    kind,   // Transaction type
	}).Info("Balance debited")
	return balance, nil
}

// Exchange performs a buy (debit) or sell (credit) of the given amount
func (s *Service) Exchange(userID uint, action string, amount float64) (float64, error) {
	switch action {
	case "buy":
		return s.Debit(userID, amount, "buy", "Bought dollars (demo)")
	case "sell":
		return s.Credit(userID, amount, "sell", "Sold dollars (demo)")
	default:
		return 0, ErrInvalidAction
	}
}

// ClaimDailyBonus credits the fixed daily bonus once every 24 hours. On the
// referred user's first claim the referrer is credited a one-time bonus and
// the referral link is consumed. Everything commits atomically: the bonus,
// both transactions, the referral payout and the timestamp update either all
// apply or none do.
func (s *Service) ClaimDailyBonus(userID uint, now time.Time) (float64, error) {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var user domain.User
		// Lock the claiming user's row
		if err := lockForUpdate(tx).First(&user, userID).Error; err != nil {
			return err
		}
		// Enforce the 24h window against the stored timestamp
		if user.LastClaimAt != nil {
			if since := now.Sub(*user.LastClaimAt); since < ClaimInterval {
				return &ClaimTooSoonError{Remaining: ClaimInterval - since}
			}
		}
		// Credit the bonus and advance the claim timestamp together
		updates := map[string]any{
			"balance":       gorm.Expr("balance + ?", DailyBonus), // Bonus credit
			"last_claim_at": now,                                  // Start of the next window
		}
		if err := tx.Model(&user).Updates(updates).Error; err != nil {
			return err
		}
		// Append the bonus ledger entry
		t := domain.Transaction{UserID: user.ID, Type: "bonus", Amount: DailyBonus, Details: "Daily claim bonus"}
		if err := tx.Create(&t).Error; err != nil {
			return err
		}
		// One-time referral payout, consumed on the first claim
		if user.ReferredBy != nil {
			var referrer domain.User
			err := lockForUpdate(tx).Where("referral_code = ?", *user.ReferredBy).First(&referrer).Error
			switch {
			case err == nil:
				// Credit the referrer and record it
				if err := tx.Model(&referrer).Update("balance", gorm.Expr("balance + ?", ReferralBonus)).Error; err != nil {
					return err
				}
				rt := domain.Transaction{UserID: referrer.ID, Type: "bonus", Amount: ReferralBonus, Details: "Referral bonus from " + user.Username}
				if err := tx.Create(&rt).Error; err != nil {
					return err
				}
			case errors.Is(err, gorm.ErrRecordNotFound):
				// Dangling code: skip the payout but still consume the link
				logrus.WithFields(logrus.Fields{
					"user_id":       user.ID,          // Claiming user
					"referral_code": *user.ReferredBy, // Code that resolved to nobody
				}).Warn("Referral code did not resolve, discarding")
			default:
				return err
			}
			// Clear referred_by so the payout can never fire twice
			if err := tx.Model(&user).Update("referred_by", nil).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	// Log the successful claim
	logrus.WithFields(logrus.Fields{
		"user_id": userID,     // User ID
		"amount":  DailyBonus, // Bonus credited
		"type":    "bonus",    // Transaction type
	}).Info("Daily bonus claimed")
	return DailyBonus, nil
}

// PurchaseProduct debits the product price and starts a new mining purchase
// with nothing accrued yet
func (s *Service) PurchaseProduct(userID uint, slug string, now time.Time) (*domain.Purchase, error) {
	var purchase domain.Purchase
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var product domain.Product
		// Resolve the product by slug
		if err := tx.Where("slug = ?", slug).First(&product).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrProductNotFound
			}
			return err
		}
		// Deactivated products stay visible in history but cannot be bought
		if !product.Active {
			return ErrInactiveProduct
		}
		var user domain.User
		// Lock the buyer's row for the balance check
		if err := lockForUpdate(tx).First(&user, userID).Error; err != nil {
			return err
		}
		if user.Balance < product.Price {
			return ErrInsufficientFunds
		}
		// Debit the price
		if err := tx.Model(&user).Update("balance", gorm.Expr("balance - ?", product.Price)).Error; err != nil {
			return err
		}
		// Ledger entry for the purchase
		t := domain.Transaction{UserID: user.ID, Type: "buy_product", Amount: -product.Price, Details: "Bought " + product.Name}
		if err := tx.Create(&t).Error; err != nil {
			return err
		}
		// The purchase starts mining immediately with zero accrued
		purchase = domain.Purchase{
			UserID:      user.ID,    // Owner
			ProductID:   product.ID, // Product bought
			PurchasedAt: now,        // Purchase time
			LastMinedAt: &now,       // Accrual starts now
			Accrued:     0,          // Nothing earned yet
		}
		if err := tx.Create(&purchase).Error; err != nil {
			return err
		}
		purchase.Product = product
		return nil
	})
	if err != nil {
		return nil, err
	}
	// Log the purchase
	logrus.WithFields(logrus.Fields{
		"user_id": userID,                 // User ID
		"product": slug,                   // Product slug
		"price":   purchase.Product.Price, // Price paid
		"type":    "buy_product",          // Transaction type
	}).Info("Product purchased")
	return &purchase, nil
}

// Accrue brings one purchase's unclaimed earnings up to date. Earnings grow
// by hourly_rate for every elapsed hour since the last accrual (or the
// purchase itself when none has happened). Calling it twice at the same
// instant is a no-op.
func (s *Service) Accrue(purchaseID uint, now time.Time) (float64, error) {
	var accrued float64
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var p domain.Purchase
		// Lock the purchase row; the product is only read for its rate
		if err := lockForUpdate(tx).Preload("Product").First(&p, purchaseID).Error; err != nil {
			return err
		}
		if err := accrueLocked(tx, &p, now); err != nil {
			return err
		}
		accrued = p.Accrued
		return nil
	})
	if err != nil {
		return 0, err
	}
	return accrued, nil
}

// AccrueAll refreshes the accrued earnings of every purchase the user owns.
// Called before any read that displays accrual so the numbers are current.
func (s *Service) AccrueAll(userID uint, now time.Time) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var purchases []domain.Purchase
		// Lock all of the user's purchases at once
		if err := lockForUpdate(tx).Preload("Product").Where("user_id = ?", userID).Find(&purchases).Error; err != nil {
			return err
		}
		for i := range purchases {
			if err := accrueLocked(tx, &purchases[i], now); err != nil {
				return err
			}
		}
		return nil
	})
}

// accrueLocked applies elapsed-time accrual to a purchase already locked by
// the enclosing transaction
func accrueLocked(tx *gorm.DB, p *domain.Purchase, now time.Time) error {
	last := p.PurchasedAt
	if p.LastMinedAt != nil {
		last = *p.LastMinedAt
	}
	hours := now.Sub(last).Hours()
	// Nothing to do at zero elapsed time or under clock skew
	if hours <= 0 {
		return nil
	}
	p.Accrued += p.Product.HourlyRate * hours
	p.LastMinedAt = &now
	return tx.Model(p).Updates(map[string]any{
		"accrued":       p.Accrued, // Updated unclaimed earnings
		"last_mined_at": now,       // New accrual high-water mark
	}).Error
}

// ClaimMining converts all accrued earnings into balance as one aggregated
// ledger entry. When nothing has accrued it is a strict no-op: no credit and
// no zero-amount transaction.
func (s *Service) ClaimMining(userID uint) (float64, error) {
	var total float64
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var purchases []domain.Purchase
		// Lock the purchases so a concurrent claim cannot pay twice
		if err := lockForUpdate(tx).Where("user_id = ?", userID).Find(&purchases).Error; err != nil {
			return err
		}
		for i := range purchases {
			if purchases[i].Accrued > 0 {
				total += purchases[i].Accrued
				if err := tx.Model(&purchases[i]).Update("accrued", 0).Error; err != nil {
					return err
				}
			}
		}
		if total == 0 {
			return nil
		}
		var user domain.User
		// Lock the user row and credit the aggregate
		if err := lockForUpdate(tx).First(&user, userID).Error; err != nil {
			return err
		}
		if err := tx.Model(&user).Update("balance", gorm.Expr("balance + ?", total)).Error; err != nil {
			return err
		}
		t := domain.Transaction{UserID: user.ID, Type: "mining", Amount: total, Details: "Claimed mining earnings"}
		return tx.Create(&t).Error
	})
	if err != nil {
		return 0, err
	}
	if total > 0 {
		// Log the payout
		logrus.WithFields(logrus.Fields{
			"user_id": userID,   // User ID
			"amount":  total,    // Total claimed
			"type":    "mining", // Transaction type
		}).Info("Mining earnings claimed")
	}
	return total, nil
}

// RecentTransactions returns the user's newest ledger entries, most recent
// first
func (s *Service) RecentTransactions(userID uint, limit int) ([]domain.Transaction, error) {
	var txs []domain.Transaction
	err := s.db.Where("user_id = ?", userID).Order("created_at desc").Limit(limit).Find(&txs).Error
	return txs, err
}

// PurchasesWithProducts returns the user's purchases with product data loaded
func (s *Service) PurchasesWithProducts(userID uint) ([]domain.Purchase, error) {
	var purchases []domain.Purchase
	err := s.db.Preload("Product").Where("user_id = ?", userID).Find(&purchases).Error
	return purchases, err
}

// ReferralCount counts users who signed up with the given referral code and
// have not yet claimed (referred_by is cleared at the first claim)
func (s *Service) ReferralCount(code string) (int64, error) {
	var count int64
	err := s.db.Model(&domain.User{}).Where("referred_by = ?", code).Count(&count).Error
	return count, err
}
