package restapi

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStopHandlerRequiresValidApiKey(t *testing.T) {
	_, resp, model := serveAndRetrieveEndpoint(t, "/api/where/stop/S1.json?key=invalid")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, http.StatusUnauthorized, model.Code)
	assert.Equal(t, "permission denied", model.Text)
}

func TestStopHandlerStopPoint(t *testing.T) {
	_, resp, model := serveAndRetrieveEndpoint(t, "/api/where/stop/S1.json?key=TEST")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, http.StatusOK, model.Code)
	assert.Equal(t, "OK", model.Text)

	entry := entryOf(t, model)
	assert.Equal(t, "S1", entry["id"])
	assert.Equal(t, "stopPoint", entry["type"])
	assert.Equal(t, "Central North", entry["name"])
	assert.Equal(t, "STA", entry["parent"])
	assert.Equal(t, "z1", entry["zone"])
	assert.Equal(t, true, entry["wheelchairBoarding"])
	assert.Equal(t, 47.6001, entry["lat"])
	assert.Equal(t, -122.3301, entry["lon"])
	assert.Equal(t, []interface{}{"R1"}, entry["routeIds"])

	refs := referencesOf(t, model)
	assert.Equal(t, []string{"R1"}, idsOf(t, refs["routes"]))
	assert.Equal(t, []string{"L1"}, idsOf(t, refs["lines"]))
}

func TestStopHandlerStopArea(t *testing.T) {
	_, resp, model := serveAndRetrieveEndpoint(t, "/api/where/stop/STA?key=TEST")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	entry := entryOf(t, model)
	assert.Equal(t, "STA", entry["id"])
	assert.Equal(t, "stopArea", entry["type"])
	assert.Equal(t, []interface{}{"S1", "S2"}, entry["stopPointIds"])
	assert.Equal(t, []interface{}{"R1"}, entry["routeIds"])

	refs := referencesOf(t, model)
	assert.ElementsMatch(t, []string{"S1", "S2"}, idsOf(t, refs["stops"]))
}

func TestStopHandlerErrors(t *testing.T) {
	api := createTestApi(t)

	resp, model := serveApiAndRetrieveEndpoint(t, api, "/api/where/stop/NOPE.json?key=TEST")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, http.StatusNotFound, model.Code)

	status, fieldErrors := fieldErrorsOf(t, api, "/api/where/stop/bad%20id.json?key=TEST")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, fieldErrors, "id")
}
