// Package internal wires the collector's components into a runnable
// application.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"

	v1 "pagetally/api/v1"
	"pagetally/internal/config"
	"pagetally/internal/database"
	"pagetally/internal/events"
	"pagetally/internal/filecache"
	"pagetally/internal/jobs"
	"pagetally/internal/logging"
	"pagetally/internal/pkg/geoip"
	"pagetally/internal/pkg/user_agent"
	"pagetally/internal/sessions"
	"pagetally/internal/stats"
	"pagetally/internal/timeframe"
	"pagetally/internal/websites"
)

// geoReloadInterval is how often the GeoLite file is checked for updates.
const geoReloadInterval = 10 * time.Minute

// Application holds the HTTP server and the components behind it.
type Application struct {
	Config    *config.Config
	Logger    *slog.Logger
	DBManager *database.DBManager
	Server    *fiber.App
	Handler   *v1.Handler
	Store     *sessions.Store

	scheduler *jobs.Scheduler
	geo       *geoip.Service
	closers   []io.Closer
}

// NewApp creates a new application from the environment configuration.
func NewApp() (*Application, error) {
	return NewAppWithConfig(config.GetConfig())
}

// NewAppWithConfig creates a new application with the provided config.
func NewAppWithConfig(cfg *config.Config) (*Application, error) {
	logger := logging.NewLogger(cfg)
	user_agent.InitLogger(logger)

	if err := os.MkdirAll(cfg.DataDirectory, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	if err := os.MkdirAll(cfg.DatabasePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	dbManager := database.NewDBManager(cfg, logger)
	if err := dbManager.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	db := dbManager.GetConnection()

	clock := &timeframe.DefaultTimeProvider{}
	cache := filecache.New(cfg.GetCacheTTL(), clock, logger)
	store := sessions.NewStore(cfg.DataDirectory, cache, clock, logger)
	index := sessions.NewIndex(cfg.GetSessionTimeout())
	ingestor := events.NewIngestor(store, index, websites.NewRegistry(db, logger), clock, cfg.SessionSalt, logger)

	app := &Application{
		Config:    cfg,
		Logger:    logger,
		DBManager: dbManager,
		Store:     store,
		scheduler: jobs.NewScheduler(logger),
	}

	locator := app.newLocator()
	geo, err := geoip.NewService(locator, cfg.GetGeoCacheTTL(), 0, logger)
	if err != nil {
		return nil, err
	}
	app.geo = geo
	if reloadable, ok := locator.(jobs.Reloadable); ok {
		app.scheduler.Add("geo-reload", geoReloadInterval, jobs.NewGeoReloadJob(reloadable, geo.Purge, logger))
	}

	app.scheduler.Add("session-sweep", cfg.GetSweepInterval(), jobs.NewSweepJob(ingestor, logger))
	app.scheduler.Add("cache-cleanup", cfg.GetJobInterval(), jobs.NewCleanupJob(cfg.DataDirectory, cfg.GetCacheTTL(), clock, logger))

	app.Handler = &v1.Handler{
		Ingestor:   ingestor,
		Aggregator: stats.NewAggregator(store, cache, geo, nil, clock, logger),
		Store:      store,
		DB:         db,
		Ranges:     timeframe.NewParser(clock),
		AdminKey:   cfg.AdminAPIKey,
		Logger:     logger,
	}

	app.Server = fiber.New(fiber.Config{
		AppName:               cfg.AppName,
		BodyLimit:             cfg.BeaconMaxBodySize,
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          30 * time.Second,
		IdleTimeout:           60 * time.Second,
	})
	MountRoutes(app.Server, cfg, app.Handler)

	return app, nil
}

// newLocator picks the geolocation backend named by the configuration.
func (a *Application) newLocator() geoip.Locator {
	switch a.Config.GeoProvider {
	case config.GeoProviderMaxMind:
		locator := geoip.NewMaxMindLocator(a.Config.GeoDBPath, a.Logger)
		a.closers = append(a.closers, locator)
		return locator
	case config.GeoProviderIPAPI:
		return geoip.NewHTTPLocator(a.Config.GeoAPIURL, a.Config.GeoRequestsPerMinute, a.Logger)
	default:
		return geoip.NoopLocator{}
	}
}

// StartAsync starts the background jobs and begins serving in a goroutine.
func (a *Application) StartAsync() error {
	if err := a.scheduler.Start(); err != nil {
		return fmt.Errorf("failed to start jobs: %w", err)
	}

	addr := ":" + a.Config.AppPort
	go func() {
		a.Logger.Info("Listening", slog.String("addr", addr), slog.String("environment", a.Config.Environment))
		if err := a.Server.Listen(addr); err != nil {
			a.Logger.Error("Server stopped", slog.Any("error", err))
		}
	}()
	return nil
}

// Shutdown stops accepting requests, waits for in-flight ones, then stops
// the jobs and releases the database and geolocation resources.
func (a *Application) Shutdown(ctx context.Context) error {
	var errs []error
	if err := a.Server.ShutdownWithContext(ctx); err != nil {
		errs = append(errs, fmt.Errorf("server: %w", err))
	}
	a.scheduler.Stop()
	a.geo.Close()
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := a.DBManager.CheckpointWAL("TRUNCATE"); err != nil {
		a.Logger.Warn("Failed to checkpoint WAL on shutdown", slog.Any("error", err))
	}
	if db := a.DBManager.GetConnection(); db != nil {
		if sqlDB, err := db.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				errs = append(errs, fmt.Errorf("database: %w", err))
			}
		}
	}
	return errors.Join(errs...)
}
