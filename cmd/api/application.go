package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"planner.onebusaway.org/internal/app"
	"planner.onebusaway.org/internal/appconf"
	"planner.onebusaway.org/internal/cache"
	"planner.onebusaway.org/internal/gtfs"
	"planner.onebusaway.org/internal/logging"
	"planner.onebusaway.org/internal/metrics"
)

// buildApplication loads the timetable and connects the optional journey
// cache. The caller owns shutting both down through closeApplication.
func buildApplication(ctx context.Context, cfg appconf.Config, logger *slog.Logger, collector *metrics.Collector) (*app.Application, error) {
	gtfsConfig := gtfs.ConfigFromApp(cfg)
	gtfsConfig.Logger = logger

	// The updaters may report before InitGTFSManager returns.
	var current atomic.Pointer[gtfs.Manager]
	gtfsConfig.OnReload = func(kind string, err error, elapsed time.Duration) {
		collector.ObserveReload(kind, err, elapsed)
		if manager := current.Load(); err == nil && manager != nil {
			observeGeneration(collector, manager.Generation())
		}
	}

	manager, err := gtfs.InitGTFSManager(ctx, gtfsConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize GTFS manager: %w", err)
	}
	current.Store(manager)
	observeGeneration(collector, manager.Generation())

	application := &app.Application{
		Config:      cfg,
		GtfsConfig:  gtfsConfig,
		Logger:      logger,
		GtfsManager: manager,
		Metrics:     collector,
	}

	if cfg.Cache.Enabled() {
		journeyCache, err := cache.New(ctx, cfg.Cache, logger)
		if err != nil {
			// Planning works without the cache.
			logging.LogError(logger, "journey cache disabled", err,
				slog.String("redis_addr", cfg.Cache.RedisAddr))
		} else {
			application.Cache = journeyCache
		}
	}
	return application, nil
}

func observeGeneration(collector *metrics.Collector, g *gtfs.Generation) {
	if g == nil {
		return
	}
	stats := g.Dataset.Stats()
	collector.SetGeneration(g.Version, g.Disruptions, stats.StopPoints, stats.VehicleJourneys)
}

func closeApplication(application *app.Application) {
	if application.GtfsManager != nil {
		application.GtfsManager.Shutdown()
	}
	if application.Cache != nil {
		logging.SafeCloseWithLogging(application.Cache, application.Logger, "journey_cache")
	}
}
