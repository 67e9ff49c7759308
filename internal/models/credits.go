package models

import "time"

// Well-known action types recorded in the usage ledger. ActionType is a
// free-form tag; these are the ones the service itself writes.
const (
	ActionSignupGrant    = "signup_grant"
	ActionMonthlyReset   = "monthly_reset"
	ActionCreditPurchase = "credit_purchase"
	ActionGeneration     = "image_generation"
	ActionRefund         = "generation_refund"
)

// UserQuota is the per-user credit balance and billing-cycle window.
// credits_remaining never goes negative after a committed transition.
type UserQuota struct {
	ID               uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID           string    `gorm:"uniqueIndex;not null;size:255" json:"user_id"`
	CreditsRemaining int64     `gorm:"not null;default:0" json:"credits_remaining"`
	LastResetAt      time.Time `gorm:"not null" json:"last_reset_at"`
	NextResetAt      time.Time `gorm:"not null;index" json:"next_reset_at"`
	CreatedAt        time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// UsageRecord is an append-only ledger entry for every balance-affecting
// transition. CreditsUsed is signed: positive for consumption, negative for
// grants. CreditsRemainingAfter equals the balance immediately after the
// transition that wrote this record.
type UsageRecord struct {
	ID                    uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID                string    `gorm:"not null;index;size:255" json:"user_id"`
	ActionType            string    `gorm:"not null;size:100" json:"action_type"`
	CreditsUsed           int64     `gorm:"not null" json:"credits_used"`
	CreditsRemainingAfter int64     `gorm:"not null" json:"credits_remaining_after"`
	CreatedAt             time.Time `gorm:"not null;autoCreateTime;index" json:"created_at"`
}

// PaymentEvent deduplicates external payment notifications. The unique index
// on payment_id guarantees at most one committed grant per external payment,
// no matter how many times the webhook or polling path delivers it.
type PaymentEvent struct {
	ID             uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	PaymentID      string    `gorm:"uniqueIndex;not null;size:255" json:"payment_id"`
	UserID         string    `gorm:"not null;index;size:255" json:"user_id"`
	CreditsGranted int64     `gorm:"not null" json:"credits_granted"`
	ProcessedAt    time.Time `gorm:"not null" json:"processed_at"`
	CreatedAt      time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
}

// CreditPackage is a purchasable credit bundle backed by a Stripe price.
type CreditPackage struct {
	ID            uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name          string    `gorm:"not null;size:100" json:"name"`
	Description   string    `gorm:"type:text;default:''" json:"description,omitempty"`
	Credits       int64     `gorm:"not null" json:"credits"`
	PriceCents    int64     `gorm:"not null" json:"price_cents"`
	Currency      string    `gorm:"size:3;default:'USD'" json:"currency"`
	StripePriceID string    `gorm:"uniqueIndex;not null;size:100" json:"stripe_price_id"`
	CreatedAt     time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// ConsumeResult is the structured outcome of a consumption attempt.
// Insufficient balance is an expected business condition, so it is reported
// here rather than as an error.
type ConsumeResult struct {
	Success          bool  `json:"success"`
	CreditsRemaining int64 `json:"credits_remaining"`
	CreditsRequired  int64 `json:"credits_required,omitempty"`
}
