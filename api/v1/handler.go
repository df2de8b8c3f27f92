// Package v1 exposes the public beacon API: the pageview ingest endpoint
// and the aggregate stats endpoint.
package v1

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"pagebeacon/internal/events"
	"pagebeacon/internal/pkg/geoip"
	"pagebeacon/internal/stats"
)

const errMethodNotAllowed = "Method not allowed"

// Handler carries the collaborators of the public API endpoints.
type Handler struct {
	Aggregator *stats.Aggregator
	Engine     *stats.Engine
	Geo        *geoip.Resolver
	Logger     *slog.Logger
}

// NewHandler wires the public API handler.
func NewHandler(aggregator *stats.Aggregator, engine *stats.Engine, geo *geoip.Resolver, logger *slog.Logger) *Handler {
	return &Handler{
		Aggregator: aggregator,
		Engine:     engine,
		Geo:        geo,
		Logger:     logger,
	}
}

// CollectPageview ingests one beacon event. Only POST is accepted; the
// body is parsed tolerantly, so malformed JSON degrades to a default
// pageview instead of being rejected.
func (h *Handler) CollectPageview(c *fiber.Ctx) error {
	if c.Method() != fiber.MethodPost {
		return c.Status(http.StatusMethodNotAllowed).JSON(fiber.Map{
			"error": errMethodNotAllowed,
		})
	}

	userAgent := c.Get("User-Agent")
	clientIP := getClientIP(c)

	input := events.NormalizeInput{
		Payload:   events.ParsePayload(c.Body()),
		UserAgent: userAgent,
		ClientIP:  clientIP,
		Geo:       h.Geo.Lookup(clientIP),
		Now:       time.Now().UTC(),
	}
	event := events.Normalize(input)

	result, err := h.Aggregator.Ingest(c.Context(), event)
	if err != nil {
		h.Logger.Error("Failed to ingest event",
			slog.String("path", event.Path),
			slog.Any("error", err))
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to record event",
			"code":  "STORAGE_ERROR",
		})
	}

	return c.JSON(result)
}

// Stats serves the aggregate summary for the requested range. Any method
// is accepted; the endpoint is read-only.
func (h *Handler) Stats(c *fiber.Ctx) error {
	spec := stats.ParseRange(c.Query("range"))

	summary, err := h.Engine.Query(c.Context(), spec)
	if err != nil {
		h.Logger.Error("Failed to query stats", slog.Any("error", err))
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load stats",
			"code":  "STORAGE_ERROR",
		})
	}

	return c.JSON(summary)
}
