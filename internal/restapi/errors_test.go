package restapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"planner.onebusaway.org/internal/app"
	"planner.onebusaway.org/internal/raptor"
)

func TestServerErrorResponse(t *testing.T) {
	api := &RestAPI{Application: &app.Application{}}

	r := httptest.NewRequest("GET", "/test", nil)
	rr := httptest.NewRecorder()
	api.serverErrorResponse(rr, r, errors.New("test server error"))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var response errorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
	assert.Equal(t, http.StatusInternalServerError, response.Code)
	assert.Equal(t, "internal server error", response.Text)
	assert.Equal(t, 2, response.Version)

	now := time.Now().UnixMilli()
	assert.InDelta(t, now, response.CurrentTime, 5000)
}

func TestValidationErrorResponse(t *testing.T) {
	api := &RestAPI{Application: &app.Application{}}

	rr := httptest.NewRecorder()
	api.validationErrorResponse(rr, httptest.NewRequest("GET", "/test", nil),
		map[string][]string{"from": {"unknown stop"}})

	assert.Equal(t, http.StatusBadRequest, rr.Code)

	var response struct {
		errorResponse
		FieldErrors map[string][]string `json:"fieldErrors"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
	assert.Equal(t, "invalid request", response.Text)
	assert.Equal(t, []string{"unknown stop"}, response.FieldErrors["from"])
}

func TestServiceUnavailableResponse(t *testing.T) {
	api := &RestAPI{Application: &app.Application{}}

	rr := httptest.NewRecorder()
	api.serviceUnavailableResponse(rr, httptest.NewRequest("GET", "/test", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), "dataset not loaded")
}

func TestPlannerFieldErrors(t *testing.T) {
	testCases := []struct {
		err   error
		field string
	}{
		{fmt.Errorf("%w: S9", raptor.ErrNoDeparture), "from"},
		{fmt.Errorf("%w: S9", raptor.ErrNoArrival), "to"},
		{fmt.Errorf("%w: L9", raptor.ErrUnknownID), "id"},
		{raptor.ErrInvalidRequest, "request"},
	}
	for _, tc := range testCases {
		t.Run(tc.field, func(t *testing.T) {
			fieldErrors, ok := plannerFieldErrors(tc.err)
			require.True(t, ok)
			assert.Contains(t, fieldErrors, tc.field)
		})
	}

	_, ok := plannerFieldErrors(errors.New("boom"))
	assert.False(t, ok)
}
