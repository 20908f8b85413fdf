package restapi

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"planner.onebusaway.org/internal/gtfs"
	"planner.onebusaway.org/internal/metrics"
)

func TestCurrentTimeHandler(t *testing.T) {
	_, resp, model := serveAndRetrieveEndpoint(t, "/api/where/current-time.json?key=TEST")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	entry := entryOf(t, model)
	assert.Equal(t, float64(millis(7, 50)), entry["time"])
	assert.Equal(t, "2024-01-01T07:50:00Z", entry["readableTime"])
	assert.Equal(t, float64(0), entry["serviceDay"])
}

func TestCurrentTimeHandlerWithoutDataset(t *testing.T) {
	api := createTestApi(t)
	api.GtfsManager = nil

	resp, model := serveApiAndRetrieveEndpoint(t, api, "/api/where/current-time.json?key=TEST")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(-1), entryOf(t, model)["serviceDay"])
}

func TestDatasetHandler(t *testing.T) {
	_, resp, model := serveAndRetrieveEndpoint(t, "/api/where/dataset.json?key=TEST")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	entry := entryOf(t, model)
	assert.Equal(t, float64(1), entry["version"])
	assert.Equal(t, "2024-01-01", entry["startDate"])
	assert.Equal(t, "2024-01-03", entry["endDate"])
	assert.Equal(t, "UTC", entry["timezone"])
	assert.Equal(t, float64(5), entry["stopPoints"])
	assert.Equal(t, float64(2), entry["lines"])
	assert.Equal(t, float64(3), entry["vehicleJourneys"])
	assert.Equal(t, float64(0), entry["disruptions"])
	assert.NotContains(t, entry, "realtimeAt")
}

func TestVehicleJourneyHandler(t *testing.T) {
	_, resp, model := serveAndRetrieveEndpoint(t, "/api/where/vehicle-journey/T3.json?key=TEST")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	entry := entryOf(t, model)
	assert.Equal(t, "T3", entry["id"])
	assert.Equal(t, "R2", entry["routeId"])
	assert.Equal(t, "Hill", entry["headsign"])
	assert.NotContains(t, entry, "frequency")

	stopTimes := entry["stopTimes"].([]interface{})
	require.Len(t, stopTimes, 2)
	first := stopTimes[0].(map[string]interface{})
	assert.Equal(t, "S4", first["stopId"])
	assert.Equal(t, float64(hm(8, 20)), first["departureTime"])
	assert.Equal(t, true, first["pickup"])

	refs := referencesOf(t, model)
	assert.Equal(t, []string{"R2"}, idsOf(t, refs["routes"]))
	assert.ElementsMatch(t, []string{"S4", "S5"}, idsOf(t, refs["stops"]))

	api := createTestApi(t)
	resp, _ = serveApiAndRetrieveEndpoint(t, api, "/api/where/vehicle-journey/T9?key=TEST")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	api := createTestApi(t)
	api.Metrics = metrics.NewCollector()

	server := httptest.NewServer(api.Handler())
	defer server.Close()

	resp, err := http.Get(server.URL + "/api/where/current-time.json?key=TEST")
	require.NoError(t, err)
	_ = resp.Body.Close()

	resp, err = http.Get(server.URL + "/metrics")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "go_goroutines")
	assert.Contains(t, string(body), `code="2xx"`)
}

func TestUnknownRoute(t *testing.T) {
	api := createTestApi(t)
	server := httptest.NewServer(api.Handler())
	defer server.Close()

	resp, err := http.Get(server.URL + "/api/where/agency/1.json?key=TEST")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(RequestIDHeader))
}

func TestHandlerMounts(t *testing.T) {
	api := createTestApi(t)
	server := httptest.NewServer(api.Handler(func(router *httprouter.Router) {
		router.HandlerFunc(http.MethodGet, "/extra", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		})
	}))
	defer server.Close()

	resp, err := http.Get(server.URL + "/extra")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusTeapot, resp.StatusCode)
}

func TestPlanJourneys(t *testing.T) {
	api := createTestApi(t)

	entry, refs, fieldErrors, err := api.PlanJourneys(context.Background(), url.Values{
		"from": {"S1"}, "to": {"S5"},
	})
	require.NoError(t, err)
	require.Empty(t, fieldErrors)
	require.Len(t, entry.Journeys, 1)
	assert.Equal(t, millis(8, 30), entry.Journeys[0].ArrivalTime)
	assert.NotEmpty(t, refs.Stops)

	_, _, fieldErrors, err = api.PlanJourneys(context.Background(), url.Values{"from": {"S1"}})
	require.NoError(t, err)
	assert.Contains(t, fieldErrors, "to")

	api.GtfsManager = nil
	_, _, _, err = api.PlanJourneys(context.Background(), url.Values{})
	assert.ErrorIs(t, err, gtfs.ErrNotLoaded)
}
