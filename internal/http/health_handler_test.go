package http_test

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internalhttp "pagebeacon/internal/http"
	"pagebeacon/internal/storage"
	"pagebeacon/internal/testsupport"
)

func healthApp(store storage.DocumentStore) *fiber.App {
	handler := &internalhttp.HealthHandler{
		Store:    store,
		StatsKey: "stats",
		Logger:   testsupport.NewTestLogger(),
	}
	app := fiber.New()
	app.Get("/health", handler.Index)
	return app
}

func TestHealthOK(t *testing.T) {
	app := healthApp(storage.NewInMemoryStore())

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var health internalhttp.HealthStatus
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "ok", health.StoreStatus, "an absent stats document is still healthy")
	assert.False(t, health.Timestamp.IsZero())
}

func TestHealthDegradedOnStoreFailure(t *testing.T) {
	store := storage.NewInMemoryStore()
	store.FailGets = assert.AnError
	app := healthApp(store)

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var health internalhttp.HealthStatus
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "degraded", health.Status)
	assert.Equal(t, "error", health.StoreStatus)
}
