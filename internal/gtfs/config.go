package gtfs

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"planner.onebusaway.org/internal/appconf"
)

// Config drives loading and refreshing of the planner's dataset.
type Config struct {
	GtfsURL                 string
	TripUpdatesURLs         []string
	RealTimeAuthHeaderKey   string
	RealTimeAuthHeaderValue string
	// StaticRefreshInterval of zero disables periodic reloads. Local files
	// are never reloaded in the background.
	StaticRefreshInterval   time.Duration
	RealtimeRefreshInterval time.Duration
	Build                   BuildOptions
	Env                     appconf.Environment
	Verbose                 bool

	HTTPClient *http.Client
	Logger     *slog.Logger
	// OnReload is called after every static or realtime refresh attempt.
	OnReload func(kind string, err error, elapsed time.Duration)
	// Now is used to pick the service day of trip updates without a start
	// date.
	Now func() time.Time
}

// BuildOptions tune the conversion of a static feed.
type BuildOptions struct {
	// Days caps the production period; zero keeps the whole calendar.
	Days int
	// WalkingSpeed in meters per second.
	WalkingSpeed float64
	// ProximityRadius in meters; zero disables proximity connections.
	ProximityRadius float64
	// DefaultTransfer in seconds, used for same-stop connections.
	DefaultTransfer int32
}

func DefaultBuildOptions() BuildOptions {
	return BuildOptions{WalkingSpeed: 1.12, ProximityRadius: 300, DefaultTransfer: 120}
}

// ConfigFromApp maps the application configuration onto a manager Config.
func ConfigFromApp(cfg appconf.Config) Config {
	return Config{
		GtfsURL:                 cfg.Gtfs.StaticURL,
		TripUpdatesURLs:         cfg.Gtfs.TripUpdatesURLs,
		RealTimeAuthHeaderKey:   cfg.Gtfs.AuthHeaderKey,
		RealTimeAuthHeaderValue: cfg.Gtfs.AuthHeaderValue,
		StaticRefreshInterval:   cfg.Gtfs.ReloadInterval.Std(),
		RealtimeRefreshInterval: cfg.Gtfs.RealtimeInterval.Std(),
		Build: BuildOptions{
			Days:            cfg.Gtfs.Days,
			WalkingSpeed:    cfg.Gtfs.WalkingSpeed,
			ProximityRadius: cfg.Gtfs.ProximityRadius,
			DefaultTransfer: int32(cfg.Gtfs.DefaultTransfer.Std() / time.Second),
		},
		Env:     cfg.Env,
		Verbose: cfg.Env == appconf.Development,
	}
}

func (config Config) realTimeDataEnabled() bool {
	return len(config.TripUpdatesURLs) > 0
}

func (config Config) isLocalFile() bool {
	return !strings.HasPrefix(config.GtfsURL, "http://") && !strings.HasPrefix(config.GtfsURL, "https://")
}

func (config Config) headers() map[string]string {
	headers := map[string]string{}
	if config.RealTimeAuthHeaderKey != "" && config.RealTimeAuthHeaderValue != "" {
		headers[config.RealTimeAuthHeaderKey] = config.RealTimeAuthHeaderValue
	}
	return headers
}

func (config Config) client() *http.Client {
	if config.HTTPClient != nil {
		return config.HTTPClient
	}
	return &http.Client{Timeout: 60 * time.Second}
}

func (config Config) logger() *slog.Logger {
	if config.Logger != nil {
		return config.Logger
	}
	return slog.Default()
}

func (config Config) now() time.Time {
	if config.Now != nil {
		return config.Now()
	}
	return time.Now()
}
