package middleware

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/Jazys/instagen-sub000/internal/services/auth"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticProvider struct {
	userID string
}

func (p *staticProvider) Authenticate(_ context.Context, token string) (string, error) {
	if token != "valid-token" {
		return "", errors.New("unknown token")
	}
	return p.userID, nil
}

func (p *staticProvider) Name() string { return "static" }

func newTestApp(provider auth.Provider) *fiber.App {
	app := fiber.New()
	mw := NewAuthMiddleware(provider, nil)
	app.Use(mw.RequireAuth())
	app.Get("/v1/whoami", func(c *fiber.Ctx) error {
		userID, ok := auth.GetUserID(c)
		if !ok {
			return c.SendStatus(fiber.StatusInternalServerError)
		}
		return c.SendString(userID)
	})
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	return app
}

func TestRequireAuthRejectsMissingToken(t *testing.T) {
	app := newTestApp(&staticProvider{userID: "user_1"})

	req := httptest.NewRequest("GET", "/v1/whoami", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestRequireAuthRejectsInvalidToken(t *testing.T) {
	app := newTestApp(&staticProvider{userID: "user_1"})

	req := httptest.NewRequest("GET", "/v1/whoami", nil)
	req.Header.Set("Authorization", "Bearer wrong-token")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestRequireAuthAttachesIdentity(t *testing.T) {
	app := newTestApp(&staticProvider{userID: "user_1"})

	req := httptest.NewRequest("GET", "/v1/whoami", nil)
	req.Header.Set("Authorization", "Bearer valid-token")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := make([]byte, 32)
	n, _ := resp.Body.Read(body)
	assert.Equal(t, "user_1", string(body[:n]))
}

func TestRequireAuthSkipsHealthAndWebhooks(t *testing.T) {
	app := newTestApp(&staticProvider{userID: "user_1"})

	req := httptest.NewRequest("GET", "/health", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestRequireAuthAcceptsRawTokenHeader(t *testing.T) {
	app := newTestApp(&staticProvider{userID: "user_1"})

	// Some clients send the credential without the Bearer prefix.
	req := httptest.NewRequest("GET", "/v1/whoami", nil)
	req.Header.Set("Authorization", "valid-token")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
