package restapi

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlockHandler(t *testing.T) {
	api := createTestApi(t)

	for _, id := range []string{"T1", "T2", "B1"} {
		t.Run(id, func(t *testing.T) {
			resp, model := serveApiAndRetrieveEndpoint(t, api, "/api/where/block/"+id+".json?key=TEST")
			require.Equal(t, http.StatusOK, resp.StatusCode)

			entry := entryOf(t, model)
			assert.Equal(t, "B1", entry["id"])
			trips := entry["trips"].([]interface{})
			require.Len(t, trips, 2)

			first := trips[0].(map[string]interface{})
			assert.Equal(t, "T1", first["vehicleJourneyId"])
			assert.Equal(t, "S1", first["firstStopId"])
			assert.Equal(t, "S3", first["lastStopId"])
			assert.Equal(t, float64(hm(8, 0)), first["departureTime"])
			assert.Equal(t, float64(hm(8, 10)), first["arrivalTime"])
			assert.Equal(t, float64(0), first["layoverTime"])

			second := trips[1].(map[string]interface{})
			assert.Equal(t, "T2", second["vehicleJourneyId"])
			assert.Equal(t, float64(hm(8, 15)), second["departureTime"])
			assert.Equal(t, float64(300), second["layoverTime"])

			refs := referencesOf(t, model)
			assert.ElementsMatch(t, []string{"T1", "T2"}, idsOf(t, refs["vehicleJourneys"]))
			assert.ElementsMatch(t, []string{"S1", "S3"}, idsOf(t, refs["stops"]))
		})
	}
}

func TestBlockHandlerSingleJourney(t *testing.T) {
	_, resp, model := serveAndRetrieveEndpoint(t, "/api/where/block/T3?key=TEST")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	entry := entryOf(t, model)
	assert.Equal(t, "T3", entry["id"], "journeys without a block id name their own chain")
	assert.Len(t, entry["trips"], 1)
}

func TestBlockHandlerNotFound(t *testing.T) {
	_, resp, model := serveAndRetrieveEndpoint(t, "/api/where/block/B9.json?key=TEST")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, http.StatusNotFound, model.Code)
}
