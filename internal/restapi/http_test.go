package restapi

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"planner.onebusaway.org/internal/app"
	"planner.onebusaway.org/internal/appconf"
	"planner.onebusaway.org/internal/calendar"
	"planner.onebusaway.org/internal/gtfs"
	"planner.onebusaway.org/internal/logging"
	"planner.onebusaway.org/internal/models"
	"planner.onebusaway.org/internal/schedule"
)

const testDays = 3

var testDayZero = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

func hm(h, m int32) int32 { return h*3600 + m*60 }

// millis is the epoch time of h:m on the first day of the test dataset.
func millis(h, m int) int64 {
	return testDayZero.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute).UnixMilli()
}

// testDataset is a small network in Seattle. Line 1 runs S1 to S3 and back
// as one block; line 2 leaves S4, a short walk from S3, for Hill Top.
func testDataset(t *testing.T) *schedule.Dataset {
	t.Helper()
	everyDay, err := calendar.FromDays(testDays, 0, 1, 2)
	require.NoError(t, err)

	call := func(stop string, secs int32) schedule.StopTimeSpec {
		return schedule.StopTimeSpec{StopPoint: stop, Arrival: secs, Departure: secs}
	}

	ds, err := schedule.NewBuilder(testDays).
		SetCalendar(testDayZero, time.UTC).
		SetDefaultTransfer(60).
		AddStopArea(schedule.StopAreaSpec{ID: "STA", Name: "Central Station", Lat: 47.6, Lon: -122.33, Wheelchair: true}).
		AddStopPoint(schedule.StopPointSpec{ID: "S1", Name: "Central North", StopArea: "STA", Lat: 47.6001, Lon: -122.3301, Wheelchair: true, Zone: "z1"}).
		AddStopPoint(schedule.StopPointSpec{ID: "S2", Name: "Central South", StopArea: "STA", Lat: 47.6002, Lon: -122.3302, Zone: "z1"}).
		AddStopPoint(schedule.StopPointSpec{ID: "S3", Name: "Pine St", Lat: 47.61, Lon: -122.33}).
		AddStopPoint(schedule.StopPointSpec{ID: "S4", Name: "Pine St Annex", Lat: 47.6105, Lon: -122.33}).
		AddStopPoint(schedule.StopPointSpec{ID: "S5", Name: "Hill Top", Lat: 47.62, Lon: -122.33}).
		AddLine(schedule.LineSpec{ID: "L1", Name: "Downtown", Code: "1", Network: "A", Mode: "bus"}).
		AddLine(schedule.LineSpec{ID: "L2", Name: "Hill Tram", Code: "2", Network: "A", Mode: "tram"}).
		AddRoute(schedule.RouteSpec{ID: "R1", Name: "Downtown", Line: "L1"}).
		AddRoute(schedule.RouteSpec{ID: "R2", Name: "Hill Tram", Line: "L2"}).
		AddVehicleJourney(schedule.VehicleJourneySpec{
			ID: "T1", Route: "R1", Validity: everyDay, BlockID: "B1", Headsign: "North", Wheelchair: true,
			StopTimes: []schedule.StopTimeSpec{call("S1", hm(8, 0)), call("S3", hm(8, 10))},
		}).
		AddVehicleJourney(schedule.VehicleJourneySpec{
			ID: "T2", Route: "R1", Validity: everyDay, BlockID: "B1", Headsign: "South", Wheelchair: true,
			StopTimes: []schedule.StopTimeSpec{call("S3", hm(8, 15)), call("S1", hm(8, 25))},
		}).
		AddVehicleJourney(schedule.VehicleJourneySpec{
			ID: "T3", Route: "R2", Validity: everyDay, Headsign: "Hill",
			StopTimes: []schedule.StopTimeSpec{call("S4", hm(8, 20)), call("S5", hm(8, 30))},
		}).
		AddConnection("S3", "S4", 180).
		LinkStayIn("T1", "T2").
		Build()
	require.NoError(t, err)
	return ds
}

func testConfig() appconf.Config {
	cfg := appconf.Default()
	cfg.Env = appconf.Test
	cfg.EnvName = appconf.Test.String()
	cfg.ApiKeys = []string{"TEST"}
	cfg.RateLimit = -1
	return cfg
}

// createTestApi creates a new restAPI instance serving the test dataset,
// with the clock set to 07:50 on its first day.
func createTestApi(t *testing.T) *RestAPI {
	t.Helper()
	logger := logging.NewStructuredLogger(io.Discard, slog.LevelInfo)
	gtfsConfig := gtfs.Config{Logger: logger, Env: appconf.Test}
	gtfsManager := gtfs.NewManagerFromDataset(testDataset(t), gtfsConfig)
	t.Cleanup(gtfsManager.Shutdown)

	application := &app.Application{
		Config:      testConfig(),
		GtfsConfig:  gtfsConfig,
		Logger:      logger,
		GtfsManager: gtfsManager,
		Clock: func() time.Time {
			return testDayZero.Add(7*time.Hour + 50*time.Minute)
		},
	}

	api := NewRestAPI(application)
	t.Cleanup(api.Shutdown)
	return api
}

// serveAndRetrieveEndpoint sets up a test server, makes a request to the specified endpoint, and returns the response
// and decoded model.
func serveAndRetrieveEndpoint(t *testing.T, endpoint string) (*RestAPI, *http.Response, models.ResponseModel) {
	api := createTestApi(t)
	resp, model := serveApiAndRetrieveEndpoint(t, api, endpoint)
	return api, resp, model
}

func serveApiAndRetrieveEndpoint(t *testing.T, api *RestAPI, endpoint string) (*http.Response, models.ResponseModel) {
	t.Helper()
	server := httptest.NewServer(api.Handler())
	defer server.Close()
	resp, err := http.Get(server.URL + endpoint)
	require.NoError(t, err)
	return resp, decodeResponse(t, resp)
}

func postApiAndRetrieveEndpoint(t *testing.T, api *RestAPI, endpoint, body string) (*http.Response, models.ResponseModel) {
	t.Helper()
	server := httptest.NewServer(api.Handler())
	defer server.Close()
	resp, err := http.Post(server.URL+endpoint, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	return resp, decodeResponse(t, resp)
}

func decodeResponse(t *testing.T, resp *http.Response) models.ResponseModel {
	t.Helper()
	defer logging.SafeCloseWithLogging(resp.Body,
		slog.Default().With(slog.String("component", "test")),
		"http_response_body")

	var response models.ResponseModel
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&response))
	return response
}

// fieldErrorsOf decodes the fieldErrors of a 400 response.
func fieldErrorsOf(t *testing.T, api *RestAPI, endpoint string) (int, map[string][]string) {
	t.Helper()
	server := httptest.NewServer(api.Handler())
	defer server.Close()
	resp, err := http.Get(server.URL + endpoint)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var body struct {
		FieldErrors map[string][]string `json:"fieldErrors"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body.FieldErrors
}

func entryOf(t *testing.T, model models.ResponseModel) map[string]interface{} {
	t.Helper()
	data, ok := model.Data.(map[string]interface{})
	require.True(t, ok, "data should be an object")
	entry, ok := data["entry"].(map[string]interface{})
	require.True(t, ok, "entry should be an object")
	return entry
}

func referencesOf(t *testing.T, model models.ResponseModel) map[string]interface{} {
	t.Helper()
	data, ok := model.Data.(map[string]interface{})
	require.True(t, ok, "data should be an object")
	refs, ok := data["references"].(map[string]interface{})
	require.True(t, ok, "references should be an object")
	return refs
}

// idsOf collects the "id" field of a list of objects.
func idsOf(t *testing.T, list interface{}) []string {
	t.Helper()
	items, ok := list.([]interface{})
	require.True(t, ok, "expected a list, got %T", list)
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.(map[string]interface{})["id"].(string))
	}
	return ids
}
