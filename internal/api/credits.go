package api

import (
	"strconv"
	"time"

	"github.com/Jazys/instagen-sub000/internal/models"
	"github.com/Jazys/instagen-sub000/internal/services/auth"
	"github.com/Jazys/instagen-sub000/internal/services/credits"
	"github.com/gofiber/fiber/v2"
)

type CreditsHandler struct {
	creditsService *credits.Service
}

func NewCreditsHandler(creditsService *credits.Service) *CreditsHandler {
	return &CreditsHandler{
		creditsService: creditsService,
	}
}

// GetBalanceResponse represents the response for balance queries
type GetBalanceResponse struct {
	CreditsRemaining int64                `json:"credits_remaining"`
	LastResetAt      time.Time            `json:"last_reset_at"`
	NextResetAt      time.Time            `json:"next_reset_at"`
	RecentUsage      []models.UsageRecord `json:"recent_usage,omitempty"`
}

// GetBalance returns the caller's balance and billing-cycle window,
// optionally with the most recent ledger entries.
func (h *CreditsHandler) GetBalance(c *fiber.Ctx) error {
	userID, ok := auth.GetUserID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
		})
	}

	quota, err := h.creditsService.GetQuota(c.Context(), userID)
	if err != nil {
		return respondError(c, err)
	}

	response := GetBalanceResponse{
		CreditsRemaining: quota.CreditsRemaining,
		LastResetAt:      quota.LastResetAt,
		NextResetAt:      quota.NextResetAt,
	}

	if c.QueryBool("include_usage") {
		limit := parseLimit(c.Query("limit"), models.DefaultUsageHistoryLimit)
		usage, err := h.creditsService.GetUsageHistory(c.Context(), userID, limit, 0)
		if err != nil {
			return respondError(c, err)
		}
		response.RecentUsage = usage
	}

	return c.JSON(response)
}

// ConsumeRequest represents the request body for consuming credits
type ConsumeRequest struct {
	ActionType string `json:"action_type"`
	Cost       int64  `json:"cost"`
}

// Consume deducts credits for a billable action. Insufficient balance maps
// to 402 with the current and required amounts.
func (h *CreditsHandler) Consume(c *fiber.Ctx) error {
	userID, ok := auth.GetUserID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
		})
	}

	var req ConsumeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.ActionType == "" || req.Cost <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "action_type and a positive cost are required",
		})
	}

	result, err := h.creditsService.Consume(c.Context(), userID, req.ActionType, req.Cost)
	if err != nil {
		return respondError(c, err)
	}

	if !result.Success {
		return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{
			"error":             "Insufficient credits",
			"credits_remaining": result.CreditsRemaining,
			"credits_required":  result.CreditsRequired,
		})
	}

	return c.JSON(result)
}

// GetUsageHistoryResponse represents a page of the usage ledger
type GetUsageHistoryResponse struct {
	Usage  []models.UsageRecord `json:"usage"`
	Limit  int                  `json:"limit"`
	Offset int                  `json:"offset"`
}

// GetUsage returns a page of the caller's usage ledger, most recent first.
func (h *CreditsHandler) GetUsage(c *fiber.Ctx) error {
	userID, ok := auth.GetUserID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
		})
	}

	limit := parseLimit(c.Query("limit"), models.DefaultUsageHistoryLimit)
	offset := 0
	if offsetStr := c.Query("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			offset = o
		}
	}

	usage, err := h.creditsService.GetUsageHistory(c.Context(), userID, limit, offset)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(GetUsageHistoryResponse{
		Usage:  usage,
		Limit:  limit,
		Offset: offset,
	})
}

// GetPackages returns all purchasable credit packages.
func (h *CreditsHandler) GetPackages(c *fiber.Ctx) error {
	packages, err := h.creditsService.ListPackages(c.Context())
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"packages": packages,
	})
}

func parseLimit(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	l, err := strconv.Atoi(raw)
	if err != nil || l <= 0 {
		return fallback
	}
	if l > models.MaxUsageHistoryLimit {
		return models.MaxUsageHistoryLimit
	}
	return l
}
