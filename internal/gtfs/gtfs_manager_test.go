package gtfs

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	gtfsrtpb "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"

	"planner.onebusaway.org/internal/appconf"
	"planner.onebusaway.org/internal/calendar"
	"planner.onebusaway.org/internal/disruption"
	"planner.onebusaway.org/internal/raptor"
	"planner.onebusaway.org/internal/schedule"
)

func testConfig(t *testing.T) Config {
	return Config{
		GtfsURL: writeFeed(t, sampleFeed()),
		Build:   DefaultBuildOptions(),
		Env:     appconf.Test,
		Logger:  discard,
		Now:     func() time.Time { return monday8(t) },
	}
}

// realtimeServer serves whatever message is currently stored in feed.
func realtimeServer(t *testing.T, feed *atomic.Pointer[gtfsrtpb.FeedMessage]) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := proto.Marshal(feed.Load())
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write(body)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestManagerLoadsLocalFeed(t *testing.T) {
	manager, err := InitGTFSManager(context.Background(), testConfig(t))
	require.NoError(t, err)
	defer manager.Shutdown()

	g := manager.Generation()
	require.NotNil(t, g)
	assert.Equal(t, uint64(1), g.Version)
	assert.Same(t, g.Base, g.Dataset)
	assert.Same(t, g.Dataset, manager.Dataset())
	assert.Same(t, g.Planner, manager.Planner())
	assert.Equal(t, 1, g.Skipped)
	assert.Len(t, g.Agencies, 1)

	stats, err := manager.Stats()
	require.NoError(t, err)
	assert.Equal(t, 4, stats.VehicleJourneys)
	assert.True(t, stats.LocalFile)

	var buf bytes.Buffer
	require.NoError(t, manager.PrintStatistics(&buf))
	assert.Contains(t, buf.String(), "Vehicle Journeys: 4")
	assert.Contains(t, buf.String(), "Skipped Trips: 1")
}

func TestManagerRegionBounds(t *testing.T) {
	manager, err := InitGTFSManager(context.Background(), testConfig(t))
	require.NoError(t, err)
	defer manager.Shutdown()

	lat, lon, latSpan, lonSpan := manager.Generation().RegionBounds()
	assert.InDelta(t, 47.61005, lat, 1e-6)
	assert.InDelta(t, -122.3301, lon, 1e-6)
	assert.InDelta(t, 0.0199, latSpan, 1e-6)
	assert.InDelta(t, 0.0002, lonSpan, 1e-6)
}

func TestManagerFailsOnMissingFeed(t *testing.T) {
	config := testConfig(t)
	config.GtfsURL = filepath.Join(t.TempDir(), "absent.zip")

	var kinds []string
	config.OnReload = func(kind string, err error, _ time.Duration) {
		assert.Error(t, err)
		kinds = append(kinds, kind)
	}
	_, err := InitGTFSManager(context.Background(), config)
	assert.Error(t, err)
	assert.Equal(t, []string{ReloadStatic}, kinds)
}

func TestManagerAppliesTripUpdates(t *testing.T) {
	var current atomic.Pointer[gtfsrtpb.FeedMessage]
	current.Store(feedMessage(tripUpdate("e1", "T1", "20240108", gtfsrtpb.TripDescriptor_SCHEDULED,
		&gtfsrtpb.TripUpdate_StopTimeUpdate{
			StopSequence: proto.Uint32(2),
			Arrival:      &gtfsrtpb.TripUpdate_StopTimeEvent{Delay: proto.Int32(300)},
		})))
	server := realtimeServer(t, &current)

	config := testConfig(t)
	config.TripUpdatesURLs = []string{server.URL}
	var reloads sync.Map
	config.OnReload = func(kind string, err error, _ time.Duration) {
		assert.NoError(t, err)
		n, _ := reloads.LoadOrStore(kind, new(atomic.Int32))
		n.(*atomic.Int32).Add(1)
	}

	manager, err := InitGTFSManager(context.Background(), config)
	require.NoError(t, err)
	defer manager.Shutdown()

	g := manager.Generation()
	assert.Equal(t, uint64(2), g.Version)
	assert.Equal(t, 1, g.Disruptions)
	assert.NotSame(t, g.Base, g.Dataset)
	late, ok := g.Dataset.VehicleJourneyByID(disruption.RealtimeID("T1", 7))
	require.True(t, ok)
	assert.Equal(t, int32(8*3600+15*60), g.Dataset.VehicleJourneys[late].StopTimes[1].Arrival)
	_, ok = g.Base.VehicleJourneyByID(disruption.RealtimeID("T1", 7))
	assert.False(t, ok)

	// Planning at the realtime level rides the late copy.
	s1, _ := g.Dataset.StopPointByID("S1")
	s3, _ := g.Dataset.StopPointByID("S3")
	req := raptor.NewRequest(
		map[schedule.StopPointIdx]int32{s1: 0},
		map[schedule.StopPointIdx]int32{s3: 0},
		calendar.NewDateTime(7, 7*3600+50*60).Pack(),
	)
	req.Level = schedule.RealTime
	res, err := g.Planner.Compute(context.Background(), req)
	require.NoError(t, err)
	require.NotEmpty(t, res.Journeys)
	assert.Equal(t, calendar.NewDateTime(7, 8*3600+15*60), res.Journeys[0].Arrival)

	// A static reload keeps the last trip updates.
	require.NoError(t, manager.Reload(context.Background()))
	g = manager.Generation()
	assert.Equal(t, uint64(3), g.Version)
	assert.Equal(t, 1, g.Disruptions)

	// The feed clears: the next refresh publishes the plain timetable.
	current.Store(feedMessage())
	require.NoError(t, manager.RefreshRealtime(context.Background()))
	g = manager.Generation()
	assert.Equal(t, 0, g.Disruptions)
	assert.Same(t, g.Base, g.Dataset)

	static, _ := reloads.Load(ReloadStatic)
	realtime, _ := reloads.Load(ReloadRealtime)
	assert.Equal(t, int32(2), static.(*atomic.Int32).Load())
	assert.Equal(t, int32(2), realtime.(*atomic.Int32).Load())
}

func TestManagerKeepsLastFeedWhenFetchFails(t *testing.T) {
	var fail atomic.Bool
	var current atomic.Pointer[gtfsrtpb.FeedMessage]
	current.Store(feedMessage(tripUpdate("e1", "T1", "20240108", gtfsrtpb.TripDescriptor_CANCELED)))
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		body, _ := proto.Marshal(current.Load())
		_, _ = w.Write(body)
	}))
	defer server.Close()

	config := testConfig(t)
	config.TripUpdatesURLs = []string{server.URL}
	manager, err := InitGTFSManager(context.Background(), config)
	require.NoError(t, err)
	defer manager.Shutdown()
	require.Equal(t, 1, manager.Generation().Disruptions)

	fail.Store(true)
	assert.Error(t, manager.RefreshRealtime(context.Background()))
	g := manager.Generation()
	assert.Equal(t, 1, g.Disruptions)
	t1, _ := g.Dataset.VehicleJourneyByID("T1")
	assert.False(t, g.Dataset.IsActive(t1, schedule.Adapted, 7))
	assert.True(t, g.Dataset.IsActive(t1, schedule.Base, 7))
}

func TestManagerApplyFeed(t *testing.T) {
	ds := loadSample(t, DefaultBuildOptions()).Dataset
	manager := NewManagerFromDataset(ds, testConfig(t))
	defer manager.Shutdown()
	assert.Equal(t, uint64(1), manager.Generation().Version)

	require.NoError(t, manager.ApplyFeed(feedMessage(tripUpdate("e1", "T2", "20240108", gtfsrtpb.TripDescriptor_CANCELED))))
	g := manager.Generation()
	assert.Equal(t, uint64(2), g.Version)
	assert.Equal(t, 1, g.Disruptions)
	t2, _ := g.Dataset.VehicleJourneyByID("T2")
	assert.False(t, g.Dataset.IsActive(t2, schedule.RealTime, 7))
}

func TestManagerApplyFeedKeepsValidUpdatesBesideABrokenTrip(t *testing.T) {
	ds := loadSample(t, DefaultBuildOptions()).Dataset
	manager := NewManagerFromDataset(ds, testConfig(t))
	defer manager.Shutdown()

	loc := seattle(t)
	broken := tripUpdate("e2", "X1", "20240108", gtfsrtpb.TripDescriptor_ADDED,
		&gtfsrtpb.TripUpdate_StopTimeUpdate{
			StopId:    proto.String("S1"),
			Departure: &gtfsrtpb.TripUpdate_StopTimeEvent{Time: proto.Int64(time.Date(2024, 1, 8, 10, 0, 0, 0, loc).Unix())},
		},
		&gtfsrtpb.TripUpdate_StopTimeUpdate{
			StopId:  proto.String("S5"),
			Arrival: &gtfsrtpb.TripUpdate_StopTimeEvent{Time: proto.Int64(time.Date(2024, 1, 8, 9, 30, 0, 0, loc).Unix())},
		},
	)
	broken.TripUpdate.Trip.RouteId = proto.String("R2")

	require.NoError(t, manager.ApplyFeed(feedMessage(
		tripUpdate("e1", "T2", "20240108", gtfsrtpb.TripDescriptor_CANCELED),
		broken,
	)))
	g := manager.Generation()
	t2, _ := g.Dataset.VehicleJourneyByID("T2")
	assert.False(t, g.Dataset.IsActive(t2, schedule.RealTime, 7), "the cancellation is applied")
	_, ok := g.Dataset.VehicleJourneyByID(disruption.RealtimeID("X1", 7))
	assert.False(t, ok)
}

func TestManagerConcurrentReadsDuringRefresh(t *testing.T) {
	var current atomic.Pointer[gtfsrtpb.FeedMessage]
	current.Store(feedMessage(tripUpdate("e1", "T1", "20240108", gtfsrtpb.TripDescriptor_CANCELED)))
	server := realtimeServer(t, &current)

	config := testConfig(t)
	config.TripUpdatesURLs = []string{server.URL}
	manager, err := InitGTFSManager(context.Background(), config)
	require.NoError(t, err)
	defer manager.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ctx.Err() == nil {
				g := manager.Generation()
				s1, _ := g.Dataset.StopPointByID("S1")
				s3, _ := g.Dataset.StopPointByID("S3")
				req := raptor.NewRequest(
					map[schedule.StopPointIdx]int32{s1: 0},
					map[schedule.StopPointIdx]int32{s3: 0},
					calendar.NewDateTime(7, 7*3600).Pack(),
				)
				_, err := g.Planner.Compute(ctx, req)
				assert.NoError(t, err)
			}
		}()
	}
	for i := 0; i < 5; i++ {
		assert.NoError(t, manager.RefreshRealtime(context.Background()))
	}
	cancel()
	wg.Wait()
	assert.Equal(t, uint64(7), manager.Generation().Version)
}

func TestManagerShutdown(t *testing.T) {
	var current atomic.Pointer[gtfsrtpb.FeedMessage]
	current.Store(feedMessage())
	server := realtimeServer(t, &current)

	config := testConfig(t)
	config.TripUpdatesURLs = []string{server.URL}
	config.RealtimeRefreshInterval = 10 * time.Millisecond
	manager, err := InitGTFSManager(context.Background(), config)
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		manager.Shutdown()
		manager.Shutdown()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Shutdown took too long")
	}
}
