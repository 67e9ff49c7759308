package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/Jazys/instagen-sub000/internal/models"
	"github.com/Jazys/instagen-sub000/internal/services/credits"
	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/checkout/session"
	"github.com/stripe/stripe-go/v81/webhook"
)

var (
	// ErrSignatureVerification marks webhook payloads whose signature does
	// not match the shared secret. No reconciliation is attempted.
	ErrSignatureVerification = errors.New("webhook signature verification failed")
	// ErrPaymentNotCompleted marks manual reconciliation attempts for
	// payments the processor has not confirmed as paid.
	ErrPaymentNotCompleted = errors.New("payment not completed")
	// ErrPaymentMismatch marks reconciliation attempts against a payment
	// that belongs to a different user.
	ErrPaymentMismatch = errors.New("payment does not belong to caller")
)

type StripeService struct {
	secretKey      string
	webhookSecret  string
	creditsService *credits.Service
}

func NewStripeService(cfg models.StripeConfig, creditsService *credits.Service) *StripeService {
	stripe.Key = cfg.SecretKey

	return &StripeService{
		secretKey:      cfg.SecretKey,
		webhookSecret:  cfg.WebhookSecret,
		creditsService: creditsService,
	}
}

// CreateCheckoutParams contains parameters for creating a checkout session
type CreateCheckoutParams struct {
	UserID        string
	Package       *models.CreditPackage
	SuccessURL    string
	CancelURL     string
	CustomerEmail string
}

// CreateCheckoutSession creates a Stripe checkout session for purchasing a
// credit package. The session metadata carries everything reconciliation
// needs; the credit amount comes from the package, never from the client.
func (s *StripeService) CreateCheckoutSession(ctx context.Context, params CreateCheckoutParams) (*stripe.CheckoutSession, error) {
	sessionParams := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(params.Package.StripePriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(params.SuccessURL),
		CancelURL:  stripe.String(params.CancelURL),
		Metadata: map[string]string{
			"user_id":    params.UserID,
			"package_id": strconv.FormatUint(uint64(params.Package.ID), 10),
			"credits":    strconv.FormatInt(params.Package.Credits, 10),
		},
	}

	if params.CustomerEmail != "" {
		sessionParams.CustomerEmail = stripe.String(params.CustomerEmail)
	}

	sess, err := session.New(sessionParams)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	return sess, nil
}

// HandleWebhook verifies and processes a Stripe webhook delivery. Returns
// whether a credit grant was applied; duplicate deliveries return false
// without error.
func (s *StripeService) HandleWebhook(ctx context.Context, payload []byte, signature string) (bool, error) {
	event, err := webhook.ConstructEvent(payload, signature, s.webhookSecret)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrSignatureVerification, err)
	}

	switch event.Type {
	case "checkout.session.completed":
		return s.handleCheckoutSessionCompleted(ctx, event)
	case "payment_intent.payment_failed":
		fiberlog.Warnf("Stripe payment failed: %s", event.ID)
		return false, nil
	default:
		// Ignore other event types
		return false, nil
	}
}

func (s *StripeService) handleCheckoutSessionCompleted(ctx context.Context, event stripe.Event) (bool, error) {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return false, fmt.Errorf("failed to parse checkout session: %w", err)
	}

	// Checkout can complete asynchronously; only a paid session grants.
	if sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		fiberlog.Infof("Ignoring unpaid checkout session %s (status %s)", sess.ID, sess.PaymentStatus)
		return false, nil
	}

	return s.reconcileSession(ctx, &sess, "")
}

// VerifyAndReconcile is the client-polling fallback: it re-fetches the
// checkout session from Stripe and applies the grant only when the
// processor confirms the payment. Racing with the webhook path is safe;
// whichever lands second is a no-op.
func (s *StripeService) VerifyAndReconcile(ctx context.Context, sessionID, userID string) (bool, error) {
	sess, err := session.Get(sessionID, &stripe.CheckoutSessionParams{
		Params: stripe.Params{Context: ctx},
	})
	if err != nil {
		return false, fmt.Errorf("failed to fetch checkout session: %w", err)
	}

	if sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		return false, fmt.Errorf("%w: session %s has status %s", ErrPaymentNotCompleted, sessionID, sess.PaymentStatus)
	}

	return s.reconcileSession(ctx, sess, userID)
}

// reconcileSession extracts the grant from session metadata and hands it to
// the idempotent reconciliation protocol. expectedUserID is enforced on the
// client-initiated path; the webhook path passes it empty because the
// signature already authenticates the processor.
func (s *StripeService) reconcileSession(ctx context.Context, sess *stripe.CheckoutSession, expectedUserID string) (bool, error) {
	userID := sess.Metadata["user_id"]
	grantedCredits, err := strconv.ParseInt(sess.Metadata["credits"], 10, 64)
	if err != nil {
		return false, fmt.Errorf("failed to parse credits metadata: %w", err)
	}
	if userID == "" || grantedCredits <= 0 {
		return false, fmt.Errorf("invalid checkout session metadata for session %s", sess.ID)
	}
	if expectedUserID != "" && userID != expectedUserID {
		return false, ErrPaymentMismatch
	}

	// The payment intent id is the natural idempotency key shared by the
	// webhook and polling paths; the session id covers edge cases where the
	// intent is absent.
	paymentID := sess.ID
	if sess.PaymentIntent != nil && sess.PaymentIntent.ID != "" {
		paymentID = sess.PaymentIntent.ID
	}

	applied, err := s.creditsService.Reconcile(ctx, paymentID, userID, grantedCredits)
	if err != nil {
		return false, fmt.Errorf("failed to reconcile payment %s: %w", paymentID, err)
	}
	if !applied {
		fiberlog.Infof("Payment %s already reconciled, skipping", paymentID)
	}
	return applied, nil
}
