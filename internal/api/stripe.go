package api

import (
	"errors"

	"github.com/Jazys/instagen-sub000/internal/models"
	"github.com/Jazys/instagen-sub000/internal/services/auth"
	"github.com/Jazys/instagen-sub000/internal/services/billing"
	"github.com/Jazys/instagen-sub000/internal/services/credits"
	"github.com/gofiber/fiber/v2"
)

type StripeHandler struct {
	stripeService  *billing.StripeService
	creditsService *credits.Service
	config         models.StripeConfig
}

func NewStripeHandler(stripeService *billing.StripeService, creditsService *credits.Service, config models.StripeConfig) *StripeHandler {
	return &StripeHandler{
		stripeService:  stripeService,
		creditsService: creditsService,
		config:         config,
	}
}

// CreateCheckoutSessionRequest represents the request body for creating a checkout session
type CreateCheckoutSessionRequest struct {
	PackageID     uint   `json:"package_id"`
	CustomerEmail string `json:"customer_email,omitempty"`
	SuccessURL    string `json:"success_url,omitempty"`
	CancelURL     string `json:"cancel_url,omitempty"`
}

// CreateCheckoutSessionResponse represents the response for checkout session creation
type CreateCheckoutSessionResponse struct {
	SessionID   string `json:"session_id"`
	CheckoutURL string `json:"checkout_url"`
	Credits     int64  `json:"credits"`
}

// CreateCheckoutSession creates a Stripe checkout session for purchasing a
// credit package. The granted amount comes from the package definition, not
// the request.
func (h *StripeHandler) CreateCheckoutSession(c *fiber.Ctx) error {
	userID, ok := auth.GetUserID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
		})
	}

	var req CreateCheckoutSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.PackageID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "package_id is required",
		})
	}

	pkg, err := h.creditsService.GetPackage(c.Context(), req.PackageID)
	if err != nil {
		return respondError(c, err)
	}

	successURL := h.config.SuccessURL
	if req.SuccessURL != "" {
		successURL = req.SuccessURL
	}
	cancelURL := h.config.CancelURL
	if req.CancelURL != "" {
		cancelURL = req.CancelURL
	}
	if successURL == "" || cancelURL == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "success_url and cancel_url are required",
		})
	}

	sess, err := h.stripeService.CreateCheckoutSession(c.Context(), billing.CreateCheckoutParams{
		UserID:        userID,
		Package:       pkg,
		SuccessURL:    successURL,
		CancelURL:     cancelURL,
		CustomerEmail: req.CustomerEmail,
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create checkout session",
		})
	}

	return c.JSON(CreateCheckoutSessionResponse{
		SessionID:   sess.ID,
		CheckoutURL: sess.URL,
		Credits:     pkg.Credits,
	})
}

// HandleWebhook processes Stripe webhook events. Unverified payloads are
// rejected before any reconciliation is attempted.
func (h *StripeHandler) HandleWebhook(c *fiber.Ctx) error {
	payload := c.Body()

	signature := c.Get("Stripe-Signature")
	if signature == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Missing Stripe-Signature header",
		})
	}

	applied, err := h.stripeService.HandleWebhook(c.Context(), payload, signature)
	if err != nil {
		if errors.Is(err, billing.ErrSignatureVerification) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid webhook signature",
			})
		}
		// Returning 5xx makes Stripe retry; reconciliation is idempotent.
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to process webhook",
		})
	}

	return c.JSON(fiber.Map{
		"received": true,
		"applied":  applied,
	})
}

// ReconcileRequest represents the manual reconciliation request body
type ReconcileRequest struct {
	SessionID string `json:"session_id"`
}

// Reconcile is the client-polling fallback: it re-verifies the payment with
// Stripe before applying, and is a no-op when the webhook already landed.
func (h *StripeHandler) Reconcile(c *fiber.Ctx) error {
	userID, ok := auth.GetUserID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
		})
	}

	var req ReconcileRequest
	if err := c.BodyParser(&req); err != nil || req.SessionID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "session_id is required",
		})
	}

	applied, err := h.stripeService.VerifyAndReconcile(c.Context(), req.SessionID, userID)
	if err != nil {
		switch {
		case errors.Is(err, billing.ErrPaymentNotCompleted):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "Payment has not completed",
			})
		case errors.Is(err, billing.ErrPaymentMismatch):
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Payment does not belong to the authenticated user",
			})
		default:
			return respondError(c, err)
		}
	}

	return c.JSON(fiber.Map{
		"applied": applied,
	})
}
