package credits

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Jazys/instagen-sub000/internal/models"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Service owns every mutation of the per-user credit balance: consumption,
// the monthly reset, and payment reconciliation. Request handlers never
// touch the quota tables directly.
type Service struct {
	db       *gorm.DB
	baseline int64

	provisionGroup singleflight.Group

	// now is swapped out in tests to cross reset boundaries.
	now func() time.Time
}

func NewService(db *gorm.DB, baseline int64) *Service {
	if baseline <= 0 {
		baseline = models.DefaultCreditsBaseline
	}
	return &Service{
		db:       db,
		baseline: baseline,
		now:      time.Now,
	}
}

// AutoMigrate runs database migrations for the credit tables
func (s *Service) AutoMigrate() error {
	return s.db.AutoMigrate(
		&models.UserQuota{},
		&models.UsageRecord{},
		&models.PaymentEvent{},
		&models.CreditPackage{},
	)
}

// Baseline returns the configured monthly allowance.
func (s *Service) Baseline() int64 {
	return s.baseline
}

// nextMonthStart returns the first instant of the month after t, in UTC.
// Billing cycles align to calendar months.
func nextMonthStart(t time.Time) time.Time {
	year, month, _ := t.UTC().Date()
	return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
}

// GetQuota returns the caller's quota, provisioning it at the baseline on
// first read and applying the lazy monthly reset if the cycle boundary has
// passed.
func (s *Service) GetQuota(ctx context.Context, userID string) (*models.UserQuota, error) {
	if userID == "" {
		return nil, models.NewValidationError("user id is required", nil)
	}

	var quota models.UserQuota
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&quota).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// Collapse concurrent first reads into a single provisioning write.
		if _, err, _ := s.provisionGroup.Do(userID, func() (any, error) {
			_, provErr := s.Provision(ctx, userID)
			return nil, provErr
		}); err != nil {
			return nil, err
		}
		err = s.db.WithContext(ctx).Where("user_id = ?", userID).First(&quota).Error
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user quota: %w", err)
	}

	if quota.NextResetAt.After(s.now()) {
		return &quota, nil
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		_, resetErr := s.applyReset(tx, &quota)
		return resetErr
	})
	if err != nil {
		return nil, err
	}

	return &quota, nil
}

// Provision creates the quota row at the baseline allowance and writes the
// signup grant to the ledger. Returns false without error when the account
// already exists, so it is safe under duplicate webhook delivery.
func (s *Service) Provision(ctx context.Context, userID string) (bool, error) {
	if userID == "" {
		return false, models.NewValidationError("user id is required", nil)
	}

	created := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		created, err = s.ensureQuota(tx, userID)
		return err
	})
	if err != nil {
		return false, err
	}
	return created, nil
}

// ensureQuota inserts the quota row if missing. The conflict clause makes
// racing provisioners a no-op; only the winning insert writes the signup
// grant record.
func (s *Service) ensureQuota(tx *gorm.DB, userID string) (bool, error) {
	now := s.now()
	quota := models.UserQuota{
		UserID:           userID,
		CreditsRemaining: s.baseline,
		LastResetAt:      now,
		NextResetAt:      nextMonthStart(now),
	}

	res := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(&quota)
	if res.Error != nil {
		return false, fmt.Errorf("failed to provision user quota: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return false, nil
	}

	record := models.UsageRecord{
		UserID:                userID,
		ActionType:            models.ActionSignupGrant,
		CreditsUsed:           -s.baseline,
		CreditsRemainingAfter: s.baseline,
	}
	if err := tx.Create(&record).Error; err != nil {
		return false, fmt.Errorf("failed to record signup grant: %w", err)
	}

	return true, nil
}

// applyReset performs the lazy monthly reset for quota if its boundary has
// passed. The guarded UPDATE ensures only one request per cycle performs
// the reset; losers reload the already-reset row. quota is updated in place.
func (s *Service) applyReset(tx *gorm.DB, quota *models.UserQuota) (bool, error) {
	now := s.now()
	if quota.NextResetAt.After(now) {
		return false, nil
	}

	// The caller's copy may predate a commit that happened between its
	// read and this transaction; the reset record's signed delta must come
	// from the live balance.
	if err := tx.Where("user_id = ?", quota.UserID).First(quota).Error; err != nil {
		return false, fmt.Errorf("failed to reload user quota: %w", err)
	}
	if quota.NextResetAt.After(now) {
		return false, nil
	}

	next := nextMonthStart(now)
	res := tx.Model(&models.UserQuota{}).
		Where("user_id = ? AND next_reset_at <= ?", quota.UserID, now).
		Updates(map[string]any{
			"credits_remaining": s.baseline,
			"last_reset_at":     now,
			"next_reset_at":     next,
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to reset user quota: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		// Another request already reset this cycle.
		if err := tx.Where("user_id = ?", quota.UserID).First(quota).Error; err != nil {
			return false, fmt.Errorf("failed to reload user quota: %w", err)
		}
		return false, nil
	}

	record := models.UsageRecord{
		UserID:                quota.UserID,
		ActionType:            models.ActionMonthlyReset,
		CreditsUsed:           quota.CreditsRemaining - s.baseline,
		CreditsRemainingAfter: s.baseline,
	}
	if err := tx.Create(&record).Error; err != nil {
		return false, fmt.Errorf("failed to record monthly reset: %w", err)
	}

	quota.CreditsRemaining = s.baseline
	quota.LastResetAt = now
	quota.NextResetAt = next
	return true, nil
}

// Consume atomically deducts cost from the caller's balance and appends the
// ledger record in the same transaction. Insufficient balance is reported
// as a structured result, not an error; the guarded decrement keeps the
// balance non-negative under any interleaving of concurrent calls.
func (s *Service) Consume(ctx context.Context, userID, actionType string, cost int64) (*models.ConsumeResult, error) {
	if userID == "" {
		return nil, models.NewValidationError("user id is required", nil)
	}
	if actionType == "" {
		return nil, models.NewValidationError("action type is required", nil)
	}
	if cost <= 0 {
		return nil, models.NewValidationError("cost must be a positive integer", nil)
	}

	var result models.ConsumeResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var quota models.UserQuota
		err := tx.Where("user_id = ?", userID).First(&quota).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Unprovisioned accounts behave as zero balance.
			result = models.ConsumeResult{CreditsRemaining: 0, CreditsRequired: cost}
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to get user quota: %w", err)
		}

		if _, err := s.applyReset(tx, &quota); err != nil {
			return err
		}

		res := tx.Model(&models.UserQuota{}).
			Where("user_id = ? AND credits_remaining >= ?", userID, cost).
			Update("credits_remaining", gorm.Expr("credits_remaining - ?", cost))
		if res.Error != nil {
			return fmt.Errorf("failed to deduct credits: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			if err := tx.Where("user_id = ?", userID).First(&quota).Error; err != nil {
				return fmt.Errorf("failed to reload user quota: %w", err)
			}
			result = models.ConsumeResult{CreditsRemaining: quota.CreditsRemaining, CreditsRequired: cost}
			return nil
		}

		if err := tx.Where("user_id = ?", userID).First(&quota).Error; err != nil {
			return fmt.Errorf("failed to reload user quota: %w", err)
		}

		record := models.UsageRecord{
			UserID:                userID,
			ActionType:            actionType,
			CreditsUsed:           cost,
			CreditsRemainingAfter: quota.CreditsRemaining,
		}
		if err := tx.Create(&record).Error; err != nil {
			return fmt.Errorf("failed to record usage: %w", err)
		}

		result = models.ConsumeResult{Success: true, CreditsRemaining: quota.CreditsRemaining}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &result, nil
}

// Reconcile credits a completed external payment exactly once. The payment
// event insert is the dedup guard: if a row for paymentID already exists the
// call returns applied=false with no mutation, so the webhook and the
// client-polling path can both invoke it in any order, any number of times.
func (s *Service) Reconcile(ctx context.Context, paymentID, userID string, creditsGranted int64) (bool, error) {
	if paymentID == "" {
		return false, models.NewValidationError("payment id is required", nil)
	}
	if userID == "" {
		return false, models.NewValidationError("user id is required", nil)
	}
	if creditsGranted <= 0 {
		return false, models.NewValidationError("credits granted must be a positive integer", nil)
	}

	applied := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		event := models.PaymentEvent{
			PaymentID:      paymentID,
			UserID:         userID,
			CreditsGranted: creditsGranted,
			ProcessedAt:    s.now(),
		}
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "payment_id"}},
			DoNothing: true,
		}).Create(&event)
		if res.Error != nil {
			return fmt.Errorf("failed to record payment event: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			// Already applied by the other delivery path.
			return nil
		}

		// A purchase may land before the account's first balance read.
		if _, err := s.ensureQuota(tx, userID); err != nil {
			return err
		}

		if err := s.grant(tx, userID, models.ActionCreditPurchase, creditsGranted); err != nil {
			return err
		}

		applied = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}

// Refund compensates a consumption whose downstream action failed after the
// deduction committed, keeping the ledger causally complete.
func (s *Service) Refund(ctx context.Context, userID, actionType string, amount int64) error {
	if userID == "" {
		return models.NewValidationError("user id is required", nil)
	}
	if amount <= 0 {
		return models.NewValidationError("refund amount must be a positive integer", nil)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.grant(tx, userID, actionType, amount)
	})
}

// grant increments the balance and appends the matching ledger record.
// Must run inside a transaction.
func (s *Service) grant(tx *gorm.DB, userID, actionType string, amount int64) error {
	res := tx.Model(&models.UserQuota{}).
		Where("user_id = ?", userID).
		Update("credits_remaining", gorm.Expr("credits_remaining + ?", amount))
	if res.Error != nil {
		return fmt.Errorf("failed to add credits: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("user quota not found for %s", userID)
	}

	var quota models.UserQuota
	if err := tx.Where("user_id = ?", userID).First(&quota).Error; err != nil {
		return fmt.Errorf("failed to reload user quota: %w", err)
	}

	record := models.UsageRecord{
		UserID:                userID,
		ActionType:            actionType,
		CreditsUsed:           -amount,
		CreditsRemainingAfter: quota.CreditsRemaining,
	}
	if err := tx.Create(&record).Error; err != nil {
		return fmt.Errorf("failed to record credit grant: %w", err)
	}
	return nil
}

// GetUsageHistory returns the caller's ledger, most recent first.
func (s *Service) GetUsageHistory(ctx context.Context, userID string, limit, offset int) ([]models.UsageRecord, error) {
	if limit <= 0 {
		limit = models.DefaultUsageHistoryLimit
	}
	if limit > models.MaxUsageHistoryLimit {
		limit = models.MaxUsageHistoryLimit
	}

	var records []models.UsageRecord
	query := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit)
	if offset > 0 {
		query = query.Offset(offset)
	}

	if err := query.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to get usage history: %w", err)
	}
	return records, nil
}

// GetPackage looks up a purchasable credit package.
func (s *Service) GetPackage(ctx context.Context, id uint) (*models.CreditPackage, error) {
	var pkg models.CreditPackage
	err := s.db.WithContext(ctx).First(&pkg, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.NewNotFoundError("credit package not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get credit package: %w", err)
	}
	return &pkg, nil
}

// ListPackages returns all purchasable credit packages.
func (s *Service) ListPackages(ctx context.Context) ([]models.CreditPackage, error) {
	var packages []models.CreditPackage
	if err := s.db.WithContext(ctx).Order("price_cents ASC").Find(&packages).Error; err != nil {
		return nil, fmt.Errorf("failed to list credit packages: %w", err)
	}
	return packages, nil
}
