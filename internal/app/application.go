package app

import (
	"log/slog"
	"time"

	"planner.onebusaway.org/internal/appconf"
	"planner.onebusaway.org/internal/cache"
	"planner.onebusaway.org/internal/gtfs"
	"planner.onebusaway.org/internal/metrics"
)

// Application holds the dependencies shared by the HTTP handlers, helpers
// and middleware. Cache and Metrics may be nil.
type Application struct {
	Config      appconf.Config
	GtfsConfig  gtfs.Config
	Logger      *slog.Logger
	GtfsManager *gtfs.Manager
	Cache       *cache.JourneyCache
	Metrics     *metrics.Collector
	// Clock overrides time.Now in tests.
	Clock func() time.Time
}

func (app *Application) Now() time.Time {
	if app.Clock != nil {
		return app.Clock()
	}
	return time.Now()
}
