// Package http holds the internal HTTP handlers that are not part of the
// public beacon API.
package http

import (
	"errors"
	"time"

	"log/slog"

	"github.com/gofiber/fiber/v2"

	"pagebeacon/internal/storage"
)

// HealthStatus represents the health check response
type HealthStatus struct {
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	StoreStatus string    `json:"store_status"`
}

// HealthHandler reports process liveness and document-store reachability.
type HealthHandler struct {
	Store    storage.DocumentStore
	StatsKey string
	Logger   *slog.Logger
}

// Index handles the health check endpoint. An absent stats document is
// healthy; only a failing store read degrades the status.
func (h *HealthHandler) Index(c *fiber.Ctx) error {
	storeStatus := "ok"

	if _, err := h.Store.Get(c.Context(), h.StatsKey); err != nil && !errors.Is(err, storage.ErrNotFound) {
		storeStatus = "error"
		h.Logger.Error("Document store unreachable", slog.Any("error", err))
	}

	health := HealthStatus{
		Status:      "ok",
		Timestamp:   time.Now().UTC(),
		StoreStatus: storeStatus,
	}
	if storeStatus != "ok" {
		health.Status = "degraded"
	}

	return c.JSON(health)
}
