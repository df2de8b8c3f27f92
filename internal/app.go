// Package internal contains core application functionality
package internal

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"pagebeacon/internal/config"
	"pagebeacon/internal/logging"
	"pagebeacon/internal/pkg/geoip"
	"pagebeacon/internal/stats"
	"pagebeacon/internal/storage"
)

// Application bundles the process-wide collaborators: configuration,
// logger, document store, geo resolver and the HTTP server.
type Application struct {
	Config *config.Config
	Logger *slog.Logger
	Store  storage.DocumentStore
	Geo    *geoip.Resolver
	Server *fiber.App
}

// NewApp creates a new application instance with default settings
func NewApp() (*Application, error) {
	cfg := config.GetConfig()
	return NewAppWithConfig(cfg)
}

// NewAppWithConfig creates a new application with the provided config
func NewAppWithConfig(cfg *config.Config) (*Application, error) {
	logger := logging.NewLogger(cfg)

	store, err := NewStore(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize document store: %w", err)
	}

	geo := geoip.NewResolver(cfg.GeoDBPath, logger)

	aggregator := stats.NewAggregator(store, cfg.StatsKey, cfg.RetentionDays, logger, nil)
	engine := stats.NewEngine(store, cfg.StatsKey, nil)

	server := fiber.New(fiber.Config{
		AppName:               cfg.AppName,
		DisableStartupMessage: cfg.IsProduction(),
	})
	MountAppRoutes(server, RouteDeps{
		Aggregator: aggregator,
		Engine:     engine,
		Geo:        geo,
		Store:      store,
		StatsKey:   cfg.StatsKey,
		Logger:     logger,
	})

	return &Application{
		Config: cfg,
		Logger: logger,
		Store:  store,
		Geo:    geo,
		Server: server,
	}, nil
}

// NewStore builds the configured document store backend.
func NewStore(cfg *config.Config, logger *slog.Logger) (storage.DocumentStore, error) {
	switch cfg.StoreBackend {
	case config.SQLiteStore:
		return storage.NewSQLiteStore(cfg.GetDatabasePath(), logger)
	case config.RedisStore:
		return storage.NewRedisStore(context.Background(), cfg.RedisAddr, cfg.RedisDB)
	case config.MemoryStore:
		return storage.NewInMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend: %s", cfg.StoreBackend)
	}
}

// Start runs the HTTP server; it blocks until the server stops.
func (a *Application) Start() error {
	a.Logger.Info("Starting server",
		slog.String("port", a.Config.AppPort),
		slog.String("environment", a.Config.Environment),
		slog.String("store", a.Config.StoreBackend))
	return a.Server.Listen(":" + a.Config.AppPort)
}

// Shutdown stops the HTTP server and releases the store and geo reader.
func (a *Application) Shutdown(ctx context.Context) error {
	if err := a.Server.ShutdownWithContext(ctx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	if err := a.Store.Close(); err != nil {
		a.Logger.Warn("Failed to close document store", slog.Any("error", err))
	}
	if err := a.Geo.Close(); err != nil {
		a.Logger.Warn("Failed to close geo resolver", slog.Any("error", err))
	}
	return nil
}
