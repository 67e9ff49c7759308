package api

import (
	"time"

	"github.com/Jazys/instagen-sub000/internal/models"
	"github.com/Jazys/instagen-sub000/internal/services/auth"
	"github.com/Jazys/instagen-sub000/internal/services/credits"
	"github.com/Jazys/instagen-sub000/internal/services/generation"
	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
)

// GenerateHandler is the authenticated gateway in front of the image model:
// it charges credits, forwards the prompt, and refunds when the model call
// fails after the charge committed.
type GenerateHandler struct {
	creditsService *credits.Service
	client         *generation.Client
	rateLimiter    *generation.RateLimiter
	worker         *generation.Worker
	config         *models.GenerationConfig
}

func NewGenerateHandler(
	creditsService *credits.Service,
	client *generation.Client,
	rateLimiter *generation.RateLimiter,
	worker *generation.Worker,
	config *models.GenerationConfig,
) *GenerateHandler {
	return &GenerateHandler{
		creditsService: creditsService,
		client:         client,
		rateLimiter:    rateLimiter,
		worker:         worker,
		config:         config,
	}
}

func (h *GenerateHandler) Generate(c *fiber.Ctx) error {
	userID, ok := auth.GetUserID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
		})
	}

	var req models.GenerateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.Prompt == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "prompt is required",
		})
	}

	actionType := req.ActionType
	if actionType == "" {
		actionType = models.ActionGeneration
	}

	if !h.rateLimiter.Allow(c.Context(), userID) {
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"error": "Too many generation requests, slow down",
		})
	}

	requestID := uuid.New().String()
	cost := h.config.CostFor(actionType)
	start := time.Now()

	result, err := h.creditsService.Consume(c.Context(), userID, actionType, cost)
	if err != nil {
		return respondError(c, err)
	}
	if !result.Success {
		h.submitRecord(userID, requestID, actionType, 0, fiber.StatusPaymentRequired, start, "insufficient credits")
		return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{
			"error":             "Insufficient credits",
			"credits_remaining": result.CreditsRemaining,
			"credits_required":  result.CreditsRequired,
		})
	}

	out, err := h.client.Generate(c.Context(), req)
	if err != nil {
		// The charge committed but the action did not happen; put the
		// credits back so the ledger matches what the user received.
		if refundErr := h.creditsService.Refund(c.Context(), userID, models.ActionRefund, cost); refundErr != nil {
			fiberlog.Errorf("[%s] Failed to refund %d credits for %s: %v", requestID, cost, userID, refundErr)
		}
		h.submitRecord(userID, requestID, actionType, cost, fiber.StatusBadGateway, start, err.Error())
		return respondError(c, err)
	}

	h.submitRecord(userID, requestID, actionType, cost, fiber.StatusOK, start, "")

	return c.JSON(models.GenerateResponse{
		RequestID:        requestID,
		ImageURL:         out.ImageURL,
		ImageBase64:      out.ImageBase64,
		CreditsRemaining: result.CreditsRemaining,
	})
}

// GetHistory returns the caller's recent generation telemetry.
func (h *GenerateHandler) GetHistory(c *fiber.Ctx) error {
	userID, ok := auth.GetUserID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
		})
	}

	records, err := h.worker.Recorder().GetRecent(c.Context(), userID, parseLimit(c.Query("limit"), 20))
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"generations": records,
	})
}

func (h *GenerateHandler) submitRecord(userID, requestID, actionType string, cost int64, status int, start time.Time, errMsg string) {
	h.worker.Submit(models.RecordGenerationParams{
		UserID:         userID,
		RequestID:      requestID,
		ActionType:     actionType,
		CreditsCharged: cost,
		StatusCode:     status,
		LatencyMs:      int(time.Since(start).Milliseconds()),
		ErrorMessage:   errMsg,
	})
}
