package billing

import (
	"context"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/Jazys/instagen-sub000/internal/models"
	"github.com/Jazys/instagen-sub000/internal/services/credits"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/webhook"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testWebhookSecret = "whsec_test_secret"

func newTestServices(t *testing.T) (*StripeService, *credits.Service) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	creditsService := credits.NewService(db, 100)
	require.NoError(t, creditsService.AutoMigrate())

	stripeService := NewStripeService(models.StripeConfig{
		SecretKey:     "sk_test_key",
		WebhookSecret: testWebhookSecret,
	}, creditsService)

	return stripeService, creditsService
}

func signedPayload(t *testing.T, payload string, secret string) string {
	t.Helper()
	ts := time.Now()
	sig := webhook.ComputeSignature(ts, []byte(payload), secret)
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(sig))
}

func checkoutCompletedPayload(paymentStatus string) string {
	return fmt.Sprintf(`{
		"id": "evt_test_1",
		"api_version": %q,
		"type": "checkout.session.completed",
		"data": {
			"object": {
				"id": "cs_test_1",
				"object": "checkout.session",
				"payment_status": %q,
				"payment_intent": "pi_test_123",
				"metadata": {
					"user_id": "user_1",
					"package_id": "1",
					"credits": "50"
				}
			}
		}
	}`, stripe.APIVersion, paymentStatus)
}

func TestHandleWebhookGrantsOnce(t *testing.T) {
	stripeService, creditsService := newTestServices(t)
	ctx := context.Background()

	payload := checkoutCompletedPayload("paid")
	header := signedPayload(t, payload, testWebhookSecret)

	applied, err := stripeService.HandleWebhook(ctx, []byte(payload), header)
	require.NoError(t, err)
	assert.True(t, applied)

	quota, err := creditsService.GetQuota(ctx, "user_1")
	require.NoError(t, err)
	assert.Equal(t, int64(150), quota.CreditsRemaining)

	// Stripe retries deliveries; the duplicate must not grant again.
	header = signedPayload(t, payload, testWebhookSecret)
	applied, err = stripeService.HandleWebhook(ctx, []byte(payload), header)
	require.NoError(t, err)
	assert.False(t, applied)

	quota, err = creditsService.GetQuota(ctx, "user_1")
	require.NoError(t, err)
	assert.Equal(t, int64(150), quota.CreditsRemaining)
}

func TestHandleWebhookRejectsBadSignature(t *testing.T) {
	stripeService, creditsService := newTestServices(t)
	ctx := context.Background()

	payload := checkoutCompletedPayload("paid")
	header := signedPayload(t, payload, "whsec_wrong_secret")

	_, err := stripeService.HandleWebhook(ctx, []byte(payload), header)
	require.ErrorIs(t, err, ErrSignatureVerification)

	// Nothing was granted.
	quota, err := creditsService.GetQuota(ctx, "user_1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), quota.CreditsRemaining)
}

func TestHandleWebhookIgnoresUnpaidSession(t *testing.T) {
	stripeService, creditsService := newTestServices(t)
	ctx := context.Background()

	payload := checkoutCompletedPayload("unpaid")
	header := signedPayload(t, payload, testWebhookSecret)

	applied, err := stripeService.HandleWebhook(ctx, []byte(payload), header)
	require.NoError(t, err)
	assert.False(t, applied)

	quota, err := creditsService.GetQuota(ctx, "user_1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), quota.CreditsRemaining)
}

func TestHandleWebhookIgnoresUnrelatedEvents(t *testing.T) {
	stripeService, _ := newTestServices(t)
	ctx := context.Background()

	payload := fmt.Sprintf(`{"id":"evt_test_2","api_version":%q,"type":"customer.created","data":{"object":{}}}`, stripe.APIVersion)
	header := signedPayload(t, payload, testWebhookSecret)

	applied, err := stripeService.HandleWebhook(ctx, []byte(payload), header)
	require.NoError(t, err)
	assert.False(t, applied)
}

func TestReconcileSessionValidatesMetadata(t *testing.T) {
	stripeService, _ := newTestServices(t)
	ctx := context.Background()

	// Missing user id.
	_, err := stripeService.reconcileSession(ctx, &stripe.CheckoutSession{
		ID:       "cs_bad_1",
		Metadata: map[string]string{"credits": "50"},
	}, "")
	require.Error(t, err)

	// Non-numeric credits.
	_, err = stripeService.reconcileSession(ctx, &stripe.CheckoutSession{
		ID:       "cs_bad_2",
		Metadata: map[string]string{"user_id": "user_1", "credits": "lots"},
	}, "")
	require.Error(t, err)

	// Session for another user on the polling path.
	_, err = stripeService.reconcileSession(ctx, &stripe.CheckoutSession{
		ID:       "cs_bad_3",
		Metadata: map[string]string{"user_id": "user_2", "credits": "50"},
	}, "user_1")
	require.ErrorIs(t, err, ErrPaymentMismatch)
}

func TestReconcileSessionFallsBackToSessionID(t *testing.T) {
	stripeService, creditsService := newTestServices(t)
	ctx := context.Background()

	applied, err := stripeService.reconcileSession(ctx, &stripe.CheckoutSession{
		ID:       "cs_no_intent",
		Metadata: map[string]string{"user_id": "user_1", "credits": "10"},
	}, "")
	require.NoError(t, err)
	assert.True(t, applied)

	// Same session again dedupes on the session id.
	applied, err = stripeService.reconcileSession(ctx, &stripe.CheckoutSession{
		ID:       "cs_no_intent",
		Metadata: map[string]string{"user_id": "user_1", "credits": "10"},
	}, "")
	require.NoError(t, err)
	assert.False(t, applied)

	quota, err := creditsService.GetQuota(ctx, "user_1")
	require.NoError(t, err)
	assert.Equal(t, int64(110), quota.CreditsRemaining)
}
