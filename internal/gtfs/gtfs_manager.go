package gtfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	gtfsrtpb "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"

	"planner.onebusaway.org/internal/disruption"
	"planner.onebusaway.org/internal/logging"
	"planner.onebusaway.org/internal/raptor"
	"planner.onebusaway.org/internal/schedule"
)

const (
	ReloadStatic   = "static"
	ReloadRealtime = "realtime"
)

var ErrNotLoaded = errors.New("no dataset loaded")

// Generation is one immutable view of the network. Searches hold on to the
// generation they started with while newer ones are published.
type Generation struct {
	Version uint64
	// Base is the theoretical timetable as loaded from the static feed.
	Base *schedule.Dataset
	// Dataset is Base with the current disruptions applied.
	Dataset     *schedule.Dataset
	Planner     *raptor.Planner
	Agencies    []Agency
	Sequences   Sequences
	Skipped     int
	Disruptions int
	LoadedAt    time.Time
	RealtimeAt  time.Time
}

// Manager owns the current Generation and refreshes it in the background.
type Manager struct {
	config  Config
	current atomic.Pointer[Generation]
	version atomic.Uint64

	// reloadMutex serializes refreshes; readers never take it.
	reloadMutex sync.Mutex
	static      *Feed
	lastFeeds   []*gtfsrtpb.FeedMessage

	shutdownChan chan struct{}
	wg           sync.WaitGroup
	shutdownOnce sync.Once
}

// InitGTFSManager loads the static feed and the first round of trip updates,
// then starts the periodic updaters.
func InitGTFSManager(ctx context.Context, config Config) (*Manager, error) {
	manager := &Manager{
		config:       config,
		shutdownChan: make(chan struct{}),
	}
	if err := manager.Reload(ctx); err != nil {
		return nil, err
	}

	if !config.isLocalFile() && config.StaticRefreshInterval > 0 {
		manager.wg.Add(1)
		go manager.updateStaticGTFSPeriodically()
	}

	if config.realTimeDataEnabled() {
		if err := manager.RefreshRealtime(ctx); err != nil {
			logging.LogError(manager.logger("gtfs_realtime_updater"), "initial trip updates load failed", err)
		}
		if config.RealtimeRefreshInterval > 0 {
			manager.wg.Add(1)
			go manager.updateGTFSRealtimePeriodically()
		}
	}
	return manager, nil
}

// NewManagerFromDataset serves a dataset built in memory. Nothing is
// refreshed in the background.
func NewManagerFromDataset(ds *schedule.Dataset, config Config) *Manager {
	manager := &Manager{
		config:       config,
		shutdownChan: make(chan struct{}),
		static:       &Feed{Dataset: ds, Sequences: Sequences{}},
	}
	manager.publish(manager.static, ds, 0, config.now(), time.Time{})
	return manager
}

// Shutdown stops the background updaters and waits for them to return.
func (manager *Manager) Shutdown() {
	manager.shutdownOnce.Do(func() {
		close(manager.shutdownChan)
		manager.wg.Wait()
	})
}

// Generation returns the current generation, or nil before the first load.
func (manager *Manager) Generation() *Generation {
	return manager.current.Load()
}

func (manager *Manager) Dataset() *schedule.Dataset {
	if g := manager.current.Load(); g != nil {
		return g.Dataset
	}
	return nil
}

func (manager *Manager) Planner() *raptor.Planner {
	if g := manager.current.Load(); g != nil {
		return g.Planner
	}
	return nil
}

func (manager *Manager) logger(component string) *slog.Logger {
	return logging.Component(manager.config.logger(), component)
}

func (manager *Manager) notify(kind string, err error, started time.Time) {
	if manager.config.OnReload != nil {
		manager.config.OnReload(kind, err, time.Since(started))
	}
}

func (manager *Manager) publish(feed *Feed, ds *schedule.Dataset, disruptions int, loadedAt, realtimeAt time.Time) *Generation {
	g := &Generation{
		Version:     manager.version.Add(1),
		Base:        feed.Dataset,
		Dataset:     ds,
		Planner:     raptor.NewPlanner(ds),
		Agencies:    feed.Agencies,
		Sequences:   feed.Sequences,
		Skipped:     len(feed.Skipped),
		Disruptions: disruptions,
		LoadedAt:    loadedAt,
		RealtimeAt:  realtimeAt,
	}
	manager.current.Store(g)
	return g
}

// Reload fetches the static feed again and re-applies the last trip
// updates to it. On failure the current generation stays in place.
func (manager *Manager) Reload(ctx context.Context) (err error) {
	started := time.Now()
	defer func() { manager.notify(ReloadStatic, err, started) }()
	logger := manager.logger("gtfs_static_updater")

	manager.reloadMutex.Lock()
	defer manager.reloadMutex.Unlock()

	feed, err := LoadStatic(ctx, manager.config)
	if err != nil {
		logging.LogError(logger, "static reload failed", err, slog.String("source", manager.config.GtfsURL))
		return err
	}
	manager.static = feed

	now := manager.config.now()
	realtimeAt := time.Time{}
	if prev := manager.current.Load(); prev != nil {
		realtimeAt = prev.RealtimeAt
	}
	ds, count := manager.applyFeeds(feed, manager.lastFeeds, now, logger)
	g := manager.publish(feed, ds, count, now, realtimeAt)

	logging.LogOperation(logger, "static_reload_complete",
		slog.Uint64("version", g.Version),
		slog.Int("vehicle_journeys", len(ds.VehicleJourneys)),
		slog.Int("skipped_trips", g.Skipped),
		slog.Duration("duration", time.Since(started)))
	return nil
}

// RefreshRealtime fetches every trip updates feed and publishes a new
// generation with their disruptions. A feed that fails keeps its previous
// contents.
func (manager *Manager) RefreshRealtime(ctx context.Context) (err error) {
	started := time.Now()
	defer func() { manager.notify(ReloadRealtime, err, started) }()
	logger := manager.logger("gtfs_realtime_updater")

	if !manager.config.realTimeDataEnabled() {
		return nil
	}
	feeds, fetchErr := loadRealtimeFeeds(ctx, manager.config, logger)
	if feeds == nil {
		return fetchErr
	}
	if fetchErr != nil {
		logging.LogError(logger, "some trip updates feeds failed", fetchErr)
	}

	manager.reloadMutex.Lock()
	defer manager.reloadMutex.Unlock()

	if manager.static == nil {
		return ErrNotLoaded
	}
	merged := make([]*gtfsrtpb.FeedMessage, len(feeds))
	for i, f := range feeds {
		switch {
		case f != nil:
			merged[i] = f
		case i < len(manager.lastFeeds):
			merged[i] = manager.lastFeeds[i]
		}
	}
	manager.lastFeeds = merged

	now := manager.config.now()
	loadedAt := now
	if prev := manager.current.Load(); prev != nil {
		loadedAt = prev.LoadedAt
	}
	ds, count := manager.applyFeeds(manager.static, merged, now, logger)
	g := manager.publish(manager.static, ds, count, loadedAt, now)

	logging.LogOperation(logger, "realtime_refresh_complete",
		slog.Uint64("version", g.Version),
		slog.Int("disruptions", count),
		slog.Duration("duration", time.Since(started)))
	return fetchErr
}

// ApplyFeed publishes a generation with the disruptions of feed alone. It is
// used to replay a stored trip updates message.
func (manager *Manager) ApplyFeed(feed *gtfsrtpb.FeedMessage) error {
	manager.reloadMutex.Lock()
	defer manager.reloadMutex.Unlock()
	if manager.static == nil {
		return ErrNotLoaded
	}
	manager.lastFeeds = []*gtfsrtpb.FeedMessage{feed}
	now := manager.config.now()
	loadedAt := now
	if prev := manager.current.Load(); prev != nil {
		loadedAt = prev.LoadedAt
	}
	ds, count := manager.applyFeeds(manager.static, manager.lastFeeds, now, manager.logger("gtfs_realtime_updater"))
	manager.publish(manager.static, ds, count, loadedAt, now)
	return nil
}

// applyFeeds derives the realtime dataset. Disruptions that do not apply are
// logged and dropped; if none can be applied the base dataset is returned.
func (manager *Manager) applyFeeds(feed *Feed, feeds []*gtfsrtpb.FeedMessage, now time.Time, logger *slog.Logger) (*schedule.Dataset, int) {
	var items []disruption.Disruption
	for _, f := range feeds {
		if f == nil {
			continue
		}
		found, err := DisruptionsFromFeed(feed.Dataset, feed.Sequences, f, now)
		if err != nil && manager.config.Verbose {
			logger.Debug("unmatched trip updates", slog.String("error", err.Error()))
		}
		items = append(items, found...)
	}
	if len(items) == 0 {
		return feed.Dataset, 0
	}
	ds, err := disruption.Apply(feed.Dataset, items)
	if ds == nil {
		logging.LogError(logger, "could not apply disruptions", err)
		return feed.Dataset, 0
	}
	if err != nil {
		logger.Warn("some disruptions were skipped", slog.String("error", err.Error()))
	}
	return ds, len(items)
}

func (manager *Manager) updateStaticGTFSPeriodically() {
	defer manager.wg.Done()
	logger := manager.logger("gtfs_static_updater")

	ticker := time.NewTicker(manager.config.StaticRefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			ctx = logging.WithLogger(ctx, logger)
			logging.LogOperation(logger, "updating_gtfs_static_data")
			_ = manager.Reload(ctx)
			cancel()
		case <-manager.shutdownChan:
			logging.LogOperation(logger, "shutting_down_static_updates")
			return
		}
	}
}

func (manager *Manager) updateGTFSRealtimePeriodically() {
	defer manager.wg.Done()
	logger := manager.logger("gtfs_realtime_updater")

	ticker := time.NewTicker(manager.config.RealtimeRefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			ctx = logging.WithLogger(ctx, logger)
			if err := manager.RefreshRealtime(ctx); err != nil {
				logging.LogError(logger, "trip updates refresh failed", err)
			}
			cancel()
		case <-manager.shutdownChan:
			logging.LogOperation(logger, "shutting_down_realtime_updates")
			return
		}
	}
}

// Stats summarizes the current generation.
type Stats struct {
	schedule.Stats
	Version      uint64    `json:"version"`
	Source       string    `json:"source"`
	LocalFile    bool      `json:"localFile"`
	LoadedAt     time.Time `json:"loadedAt"`
	RealtimeAt   time.Time `json:"realtimeAt,omitempty"`
	Disruptions  int       `json:"disruptions"`
	SkippedTrips int       `json:"skippedTrips"`
	Agencies     int       `json:"agencies"`
}

func (manager *Manager) Stats() (Stats, error) {
	g := manager.current.Load()
	if g == nil {
		return Stats{}, ErrNotLoaded
	}
	return Stats{
		Stats:        g.Dataset.Stats(),
		Version:      g.Version,
		Source:       manager.config.GtfsURL,
		LocalFile:    manager.config.isLocalFile(),
		LoadedAt:     g.LoadedAt,
		RealtimeAt:   g.RealtimeAt,
		Disruptions:  g.Disruptions,
		SkippedTrips: g.Skipped,
		Agencies:     len(g.Agencies),
	}, nil
}

// PrintStatistics writes a human readable summary to w.
func (manager *Manager) PrintStatistics(w io.Writer) error {
	s, err := manager.Stats()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "Source: %s (Local File: %v)\nVersion: %d\nLast Updated: %s\n"+
		"Days: %d\nStop Areas: %d\nStop Points: %d\nLines: %d\nRoutes: %d\n"+
		"Journey Patterns: %d\nVehicle Journeys: %d\nConnections: %d\nSkipped Trips: %d\nDisruptions: %d\n",
		s.Source, s.LocalFile, s.Version, s.LoadedAt.Format(time.RFC3339),
		s.Days, s.StopAreas, s.StopPoints, s.Lines, s.Routes,
		s.JourneyPatterns, s.VehicleJourneys, s.Connections, s.SkippedTrips, s.Disruptions)
	return err
}
