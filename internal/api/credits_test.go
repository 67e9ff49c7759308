package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/Jazys/instagen-sub000/internal/services/auth"
	"github.com/Jazys/instagen-sub000/internal/services/credits"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newCreditsApp(t *testing.T, userID string) (*fiber.App, *credits.Service) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	svc := credits.NewService(db, 100)
	require.NoError(t, svc.AutoMigrate())

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		auth.SetContext(c, &auth.Context{UserID: userID, Provider: "test"})
		return c.Next()
	})

	h := NewCreditsHandler(svc)
	app.Get("/v1/credits/balance", h.GetBalance)
	app.Post("/v1/credits/consume", h.Consume)
	app.Get("/v1/credits/usage", h.GetUsage)
	app.Get("/v1/credits/packages", h.GetPackages)

	return app, svc
}

func TestGetBalanceProvisionsNewUser(t *testing.T) {
	app, _ := newCreditsApp(t, "user_1")

	req := httptest.NewRequest("GET", "/v1/credits/balance", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body GetBalanceResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, int64(100), body.CreditsRemaining)
	assert.True(t, body.NextResetAt.After(body.LastResetAt))
	assert.Empty(t, body.RecentUsage)
}

func TestGetBalanceWithUsage(t *testing.T) {
	app, _ := newCreditsApp(t, "user_1")

	req := httptest.NewRequest("GET", "/v1/credits/balance?include_usage=true", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body GetBalanceResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.RecentUsage, 1)
	assert.Equal(t, "signup_grant", body.RecentUsage[0].ActionType)
}

func TestConsumeEndpoint(t *testing.T) {
	app, _ := newCreditsApp(t, "user_1")

	payload, _ := json.Marshal(ConsumeRequest{ActionType: "image_generation", Cost: 40})
	req := httptest.NewRequest("POST", "/v1/credits/consume", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		Success          bool  `json:"success"`
		CreditsRemaining int64 `json:"credits_remaining"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.True(t, body.Success)
	assert.Equal(t, int64(60), body.CreditsRemaining)
}

func TestConsumeEndpointInsufficientBalance(t *testing.T) {
	app, svc := newCreditsApp(t, "user_1")

	// Exhaust the allowance first.
	_, err := svc.Provision(context.Background(), "user_1")
	require.NoError(t, err)
	result, err := svc.Consume(context.Background(), "user_1", "image_generation", 100)
	require.NoError(t, err)
	require.True(t, result.Success)

	payload, _ := json.Marshal(ConsumeRequest{ActionType: "image_generation", Cost: 5})
	req := httptest.NewRequest("POST", "/v1/credits/consume", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusPaymentRequired, resp.StatusCode)

	var body struct {
		Error            string `json:"error"`
		CreditsRemaining int64  `json:"credits_remaining"`
		CreditsRequired  int64  `json:"credits_required"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, int64(0), body.CreditsRemaining)
	assert.Equal(t, int64(5), body.CreditsRequired)
}

func TestConsumeEndpointValidation(t *testing.T) {
	app, _ := newCreditsApp(t, "user_1")

	for _, payload := range []string{
		`{}`,
		`{"action_type":"image_generation"}`,
		`{"action_type":"image_generation","cost":-1}`,
		`{"cost":5}`,
	} {
		req := httptest.NewRequest("POST", "/v1/credits/consume", bytes.NewReader([]byte(payload)))
		req.Header.Set("Content-Type", "application/json")

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode, "payload: %s", payload)
	}
}

func TestGetUsagePaging(t *testing.T) {
	app, svc := newCreditsApp(t, "user_1")

	_, err := svc.Provision(context.Background(), "user_1")
	require.NoError(t, err)
	for i := 0; i < 12; i++ {
		_, err := svc.Consume(context.Background(), "user_1", "image_generation", 1)
		require.NoError(t, err)
	}

	req := httptest.NewRequest("GET", "/v1/credits/usage?limit=5&offset=5", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body GetUsageHistoryResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Len(t, body.Usage, 5)
	assert.Equal(t, 5, body.Limit)
	assert.Equal(t, 5, body.Offset)
}
