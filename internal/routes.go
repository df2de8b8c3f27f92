package internal

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	v1 "pagebeacon/api/v1"
	internalhttp "pagebeacon/internal/http"
	"pagebeacon/internal/pkg/geoip"
	"pagebeacon/internal/stats"
	"pagebeacon/internal/storage"
)

// publicCORSConfig is the standard CORS configuration for the public
// endpoints. Beacons post cross-origin from the tracked site, so the
// setup is permissive.
var publicCORSConfig = cors.Config{
	AllowOrigins: "*",
	AllowMethods: "POST,GET,OPTIONS",
	AllowHeaders: "Origin, Content-Type, Accept, Referrer, User-Agent",
}

// RouteDeps carries the collaborators the routes need.
type RouteDeps struct {
	Aggregator *stats.Aggregator
	Engine     *stats.Engine
	Geo        *geoip.Resolver
	Store      storage.DocumentStore
	StatsKey   string
	Logger     *slog.Logger
}

// MountAppRoutes mounts all application routes.
func MountAppRoutes(app *fiber.App, deps RouteDeps) {
	handler := v1.NewHandler(deps.Aggregator, deps.Engine, deps.Geo, deps.Logger)
	health := &internalhttp.HealthHandler{
		Store:    deps.Store,
		StatsKey: deps.StatsKey,
		Logger:   deps.Logger,
	}

	api := app.Group("/api/v1", cors.New(publicCORSConfig))
	// The ingest endpoint answers every method itself so non-POST calls
	// get the documented 405 JSON body; the stats endpoint is read-only
	// and accepts any method.
	api.All("/pageview", handler.CollectPageview)
	api.All("/stats", handler.Stats)

	app.Get("/health", health.Index)
}
