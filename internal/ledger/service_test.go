package ledger

import (
	"mining_wallet/internal/domain"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestService opens an in-memory store with the full schema
func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	// A single connection keeps every session on the same in-memory database
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&domain.User{}, &domain.Transaction{}, &domain.Product{}, &domain.Purchase{}))
	return NewService(db), db
}

// createUser inserts a user directly, bypassing registration
func createUser(t *testing.T, db *gorm.DB, username, code string, balance float64, referredBy *string) *domain.User {
	t.Helper()
	user := domain.User{
		Username:     username,
		Password:     "x",
		Balance:      balance,
		ReferralCode: code,
		ReferredBy:   referredBy,
	}
	require.NoError(t, db.Create(&user).Error)
	return &user
}

// createProduct inserts a catalog entry
func createProduct(t *testing.T, db *gorm.DB, name, slug string, price, rate float64, active bool) *domain.Product {
	t.Helper()
	p := domain.Product{Name: name, Slug: slug, Price: price, HourlyRate: rate, Active: active}
	require.NoError(t, db.Create(&p).Error)
	return &p
}

// ledgerSum adds up every transaction amount for a user
func ledgerSum(t *testing.T, db *gorm.DB, userID uint) float64 {
	t.Helper()
	var sum float64
	require.NoError(t, db.Model(&domain.Transaction{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&sum).Error)
	return sum
}

// txCount counts a user's transactions
func txCount(t *testing.T, db *gorm.DB, userID uint) int64 {
	t.Helper()
	var count int64
	require.NoError(t, db.Model(&domain.Transaction{}).Where("user_id = ?", userID).Count(&count).Error)
	return count
}

// reload fetches the latest user state
func reload(t *testing.T, db *gorm.DB, userID uint) *domain.User {
	t.Helper()
	var user domain.User
	require.NoError(t, db.First(&user, userID).Error)
	return &user
}

func TestRegister(t *testing.T) {
	svc, db := newTestService(t)

	ref := "REFCODE1"
	user, err := svc.Register("alice", "hash", "ALICE123", &ref)
	require.NoError(t, err)
	assert.Equal(t, 0.0, user.Balance)
	assert.Equal(t, "ALICE123", user.ReferralCode)
	require.NotNil(t, user.ReferredBy)
	assert.Equal(t, "REFCODE1", *user.ReferredBy)

	// Same username again conflicts
	_, err = svc.Register("alice", "hash", "OTHER456", nil)
	assert.ErrorIs(t, err, ErrDuplicateUsername)

	// Nothing was half-written for the failed registration
	var count int64
	require.NoError(t, db.Model(&domain.User{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestCreditDebit(t *testing.T) {
	svc, db := newTestService(t)
	user := createUser(t, db, "bob", "BOB11111", 0, nil)

	balance, err := svc.Credit(user.ID, 100, "recharge", "test credit")
	require.NoError(t, err)
	assert.Equal(t, 100.0, balance)

	balance, err = svc.Debit(user.ID, 40, "topup", "test debit")
	require.NoError(t, err)
	assert.Equal(t, 60.0, balance)

	// The ledger entries sum to the balance, with the debit stored negative
	assert.Equal(t, 60.0, reload(t, db, user.ID).Balance)
	assert.Equal(t, 60.0, ledgerSum(t, db, user.ID))

	var debit domain.Transaction
	require.NoError(t, db.Where("user_id = ? AND type = ?", user.ID, "topup").First(&debit).Error)
	assert.Equal(t, -40.0, debit.Amount)
}

func TestCreditRejectsNonPositiveAmount(t *testing.T) {
	svc, db := newTestService(t)
	user := createUser(t, db, "bob", "BOB11111", 0, nil)

	for _, amount := range []float64{0, -5} {
		_, err := svc.Credit(user.ID, amount, "recharge", "bad")
		assert.ErrorIs(t, err, ErrInvalidAmount)
		_, err = svc.Debit(user.ID, amount, "topup", "bad")
		assert.ErrorIs(t, err, ErrInvalidAmount)
	}
	assert.EqualValues(t, 0, txCount(t, db, user.ID))
}

func TestDebitInsufficientFunds(t *testing.T) {
	svc, db := newTestService(t)
	user := createUser(t, db, "bob", "BOB11111", 30, nil)

	_, err := svc.Debit(user.ID, 50, "topup", "too much")
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	// Balance untouched, no ledger entry appended
	assert.Equal(t, 30.0, reload(t, db, user.ID).Balance)
	assert.EqualValues(t, 0, txCount(t, db, user.ID))
}

func TestLedgerSumMatchesBalance(t *testing.T) {
	svc, db := newTestService(t)
	user := createUser(t, db, "bob", "BOB11111", 0, nil)

	ops := []struct {
		credit bool
		amount float64
	}{
		{true, 50}, {true, 25.5}, {false, 10}, {true, 4.5}, {false, 60}, {false, 5},
	}
	for _, op := range ops {
		var err error
		if op.credit {
			_, err = svc.Credit(user.ID, op.amount, "recharge", "seq")
		} else {
			_, err = svc.Debit(user.ID, op.amount, "topup", "seq")
		}
		require.NoError(t, err)
	}

	balance := reload(t, db, user.ID).Balance
	assert.InDelta(t, 5.0, balance, 1e-9)
	assert.InDelta(t, balance, ledgerSum(t, db, user.ID), 1e-9)
	assert.GreaterOrEqual(t, balance, 0.0)
}

func TestExchange(t *testing.T) {
	svc, db := newTestService(t)
	user := createUser(t, db, "bob", "BOB11111", 20, nil)

	// Sell credits
	balance, err := svc.Exchange(user.ID, "sell", 10)
	require.NoError(t, err)
	assert.Equal(t, 30.0, balance)

	// Buy debits, and needs funds
	balance, err = svc.Exchange(user.ID, "buy", 25)
	require.NoError(t, err)
	assert.Equal(t, 5.0, balance)

	_, err = svc.Exchange(user.ID, "buy", 100)
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	_, err = svc.Exchange(user.ID, "hold", 10)
	assert.ErrorIs(t, err, ErrInvalidAction)
}

func TestClaimDailyBonusWindow(t *testing.T) {
	svc, db := newTestService(t)
	user := createUser(t, db, "bob", "BOB11111", 0, nil)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	bonus, err := svc.ClaimDailyBonus(user.ID, now)
	require.NoError(t, err)
	assert.Equal(t, DailyBonus, bonus)
	assert.Equal(t, DailyBonus, reload(t, db, user.ID).Balance)

	// One hour later the claim is rejected with the remaining wait
	_, err = svc.ClaimDailyBonus(user.ID, now.Add(time.Hour))
	var tooSoon *ClaimTooSoonError
	require.ErrorAs(t, err, &tooSoon)
	assert.Equal(t, 23*time.Hour, tooSoon.Remaining)

	// Balance and ledger untouched by the rejected claim
	assert.Equal(t, DailyBonus, reload(t, db, user.ID).Balance)
	assert.EqualValues(t, 1, txCount(t, db, user.ID))

	// A full day later it succeeds again
	_, err = svc.ClaimDailyBonus(user.ID, now.Add(ClaimInterval))
	require.NoError(t, err)
	assert.Equal(t, 2*DailyBonus, reload(t, db, user.ID).Balance)
}

func TestReferralBonusFiresOnce(t *testing.T) {
	svc, db := newTestService(t)
	referrer := createUser(t, db, "ref", "REF00001", 0, nil)
	code := referrer.ReferralCode
	referred := createUser(t, db, "newbie", "NEW00001", 0, &code)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	_, err := svc.ClaimDailyBonus(referred.ID, now)
	require.NoError(t, err)

	// Referrer got the one-time bonus with its own ledger entry
	assert.Equal(t, ReferralBonus, reload(t, db, referrer.ID).Balance)
	assert.EqualValues(t, 1, txCount(t, db, referrer.ID))

	// The link is consumed on the first claim
	assert.Nil(t, reload(t, db, referred.ID).ReferredBy)

	// Later claims never pay the referrer again
	_, err = svc.ClaimDailyBonus(referred.ID, now.Add(25*time.Hour))
	require.NoError(t, err)
	_, err = svc.ClaimDailyBonus(referred.ID, now.Add(50*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, ReferralBonus, reload(t, db, referrer.ID).Balance)
	assert.EqualValues(t, 1, txCount(t, db, referrer.ID))
}

func TestReferralCodeUnresolvable(t *testing.T) {
	svc, db := newTestService(t)
	dangling := "GONE0000"
	user := createUser(t, db, "bob", "BOB11111", 0, &dangling)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// The claim still succeeds and the dead link is discarded
	bonus, err := svc.ClaimDailyBonus(user.ID, now)
	require.NoError(t, err)
	assert.Equal(t, DailyBonus, bonus)
	assert.Nil(t, reload(t, db, user.ID).ReferredBy)
	assert.EqualValues(t, 1, txCount(t, db, user.ID))
}

func TestPurchaseProduct(t *testing.T) {
	svc, db := newTestService(t)
	createProduct(t, db, "Starter Rig", "starter-rig", 100, 0.02, true)
	createProduct(t, db, "Retired Rig", "retired-rig", 50, 0.01, false)
	user := createUser(t, db, "bob", "BOB11111", 100, nil)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	purchase, err := svc.PurchaseProduct(user.ID, "starter-rig", now)
	require.NoError(t, err)
	assert.Equal(t, 0.0, purchase.Accrued)
	assert.Equal(t, now, purchase.PurchasedAt)
	require.NotNil(t, purchase.LastMinedAt)
	assert.Equal(t, now, *purchase.LastMinedAt)
	assert.Equal(t, 0.0, reload(t, db, user.ID).Balance)

	// Broke now: any further purchase fails
	_, err = svc.PurchaseProduct(user.ID, "starter-rig", now)
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	_, err = svc.PurchaseProduct(user.ID, "no-such-rig", now)
	assert.ErrorIs(t, err, ErrProductNotFound)

	_, err = svc.PurchaseProduct(user.ID, "retired-rig", now)
	assert.ErrorIs(t, err, ErrInactiveProduct)
}

func TestAccrue(t *testing.T) {
	svc, db := newTestService(t)
	createProduct(t, db, "Starter Rig", "starter-rig", 100, 0.02, true)
	user := createUser(t, db, "bob", "BOB11111", 100, nil)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	purchase, err := svc.PurchaseProduct(user.ID, "starter-rig", base)
	require.NoError(t, err)

	// 150 minutes at 0.02/hour accrues exactly 0.05
	accrued, err := svc.Accrue(purchase.ID, base.Add(150*time.Minute))
	require.NoError(t, err)
	assert.InDelta(t, 0.05, accrued, 1e-9)

	// Same timestamp again is a no-op
	accrued, err = svc.Accrue(purchase.ID, base.Add(150*time.Minute))
	require.NoError(t, err)
	assert.InDelta(t, 0.05, accrued, 1e-9)

	// Accrual only covers the time since the last call
	accrued, err = svc.Accrue(purchase.ID, base.Add(300*time.Minute))
	require.NoError(t, err)
	assert.InDelta(t, 0.1, accrued, 1e-9)

	// A timestamp in the past changes nothing
	accrued, err = svc.Accrue(purchase.ID, base.Add(200*time.Minute))
	require.NoError(t, err)
	assert.InDelta(t, 0.1, accrued, 1e-9)
}

func TestAccrueAll(t *testing.T) {
	svc, db := newTestService(t)
	createProduct(t, db, "Starter Rig", "starter-rig", 100, 0.02, true)
	createProduct(t, db, "Pro Miner", "pro-miner", 250, 0.06, true)
	user := createUser(t, db, "bob", "BOB11111", 350, nil)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	_, err := svc.PurchaseProduct(user.ID, "starter-rig", base)
	require.NoError(t, err)
	_, err = svc.PurchaseProduct(user.ID, "pro-miner", base)
	require.NoError(t, err)

	require.NoError(t, svc.AccrueAll(user.ID, base.Add(time.Hour)))

	purchases, err := svc.PurchasesWithProducts(user.ID)
	require.NoError(t, err)
	require.Len(t, purchases, 2)
	total := purchases[0].Accrued + purchases[1].Accrued
	assert.InDelta(t, 0.08, total, 1e-9)
}

func TestClaimMining(t *testing.T) {
	svc, db := newTestService(t)
	createProduct(t, db, "Starter Rig", "starter-rig", 100, 0.02, true)
	user := createUser(t, db, "bob", "BOB11111", 100, nil)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	purchase, err := svc.PurchaseProduct(user.ID, "starter-rig", base)
	require.NoError(t, err)
	_, err = svc.Accrue(purchase.ID, base.Add(150*time.Minute))
	require.NoError(t, err)

	countBefore := txCount(t, db, user.ID)

	// The claim credits exactly what accrued and resets the purchase
	total, err := svc.ClaimMining(user.ID)
	require.NoError(t, err)
	assert.InDelta(t, 0.05, total, 1e-9)
	assert.InDelta(t, 0.05, reload(t, db, user.ID).Balance, 1e-9)

	var p domain.Purchase
	require.NoError(t, db.First(&p, purchase.ID).Error)
	assert.Equal(t, 0.0, p.Accrued)

	// One aggregated mining entry was appended
	assert.Equal(t, countBefore+1, txCount(t, db, user.ID))

	// A second claim with nothing accrued is a strict no-op
	total, err = svc.ClaimMining(user.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.0, total)
	assert.Equal(t, countBefore+1, txCount(t, db, user.ID))
	assert.InDelta(t, 0.05, reload(t, db, user.ID).Balance, 1e-9)
}

func TestClaimMiningNoPurchases(t *testing.T) {
	svc, db := newTestService(t)
	user := createUser(t, db, "bob", "BOB11111", 10, nil)

	total, err := svc.ClaimMining(user.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.0, total)
	assert.EqualValues(t, 0, txCount(t, db, user.ID))
	assert.Equal(t, 10.0, reload(t, db, user.ID).Balance)
}
