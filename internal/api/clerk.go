package api

import (
	"encoding/json"

	"github.com/Jazys/instagen-sub000/internal/services/credits"
	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
	svix "github.com/svix/svix-webhooks/go"
)

// ClerkWebhookHandler provisions credit accounts when the identity provider
// reports a new user.
type ClerkWebhookHandler struct {
	webhookSecret  string
	creditsService *credits.Service
}

func NewClerkWebhookHandler(webhookSecret string, creditsService *credits.Service) *ClerkWebhookHandler {
	return &ClerkWebhookHandler{
		webhookSecret:  webhookSecret,
		creditsService: creditsService,
	}
}

type ClerkWebhookEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type ClerkUserData struct {
	ID string `json:"id"`
}

func (h *ClerkWebhookHandler) HandleWebhook(c *fiber.Ctx) error {
	payload := c.Body()

	headers := make(map[string][]string)
	c.Request().Header.VisitAll(func(key, value []byte) {
		headers[string(key)] = []string{string(value)}
	})

	wh, err := svix.NewWebhook(h.webhookSecret)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to initialize webhook verifier",
		})
	}

	if err := wh.Verify(payload, headers); err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid webhook signature",
		})
	}

	var event ClerkWebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid JSON payload",
		})
	}

	switch event.Type {
	case "user.created":
		if err := h.handleUserCreated(c, event.Data); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to process user.created event",
			})
		}
	}

	return c.JSON(fiber.Map{
		"received": true,
	})
}

func (h *ClerkWebhookHandler) handleUserCreated(c *fiber.Ctx, data json.RawMessage) error {
	var userData ClerkUserData
	if err := json.Unmarshal(data, &userData); err != nil {
		return err
	}
	if userData.ID == "" {
		return nil
	}

	created, err := h.creditsService.Provision(c.Context(), userData.ID)
	if err != nil {
		return err
	}
	if created {
		fiberlog.Infof("Provisioned credit account for new user %s", userData.ID)
	}
	return nil
}
