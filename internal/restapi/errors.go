package restapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"planner.onebusaway.org/internal/logging"
	"planner.onebusaway.org/internal/models"
	"planner.onebusaway.org/internal/raptor"
	"planner.onebusaway.org/internal/utils"
)

type errorResponse struct {
	Code        int    `json:"code"`
	CurrentTime int64  `json:"currentTime"`
	Text        string `json:"text"`
	Version     int    `json:"version"`
}

func (api *RestAPI) writeError(w http.ResponseWriter, r *http.Request, code int, text string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	err := json.NewEncoder(w).Encode(errorResponse{
		Code:        code,
		CurrentTime: models.ResponseCurrentTime(),
		Text:        text,
		Version:     2,
	})
	if err != nil {
		logging.LogError(logging.FromContext(r.Context()), "failed to encode error response", err)
	}
}

// invalidAPIKeyResponse sends a 401 Unauthorized response with the required format
// for invalid API key errors
func (api *RestAPI) invalidAPIKeyResponse(w http.ResponseWriter, r *http.Request) {
	api.writeError(w, r, http.StatusUnauthorized, "permission denied")
}

func (api *RestAPI) serverErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	logging.LogError(logging.FromContext(r.Context()), "request failed", err,
		slog.String("path", r.URL.Path))
	api.writeError(w, r, http.StatusInternalServerError, "internal server error")
}

func (api *RestAPI) serviceUnavailableResponse(w http.ResponseWriter, r *http.Request) {
	api.writeError(w, r, http.StatusServiceUnavailable, "dataset not loaded")
}

// validationErrorResponse sends a 400 Bad Request response with field-specific validation errors
func (api *RestAPI) validationErrorResponse(w http.ResponseWriter, r *http.Request, fieldErrors map[string][]string) {
	response := struct {
		Code        int                 `json:"code"`
		CurrentTime int64               `json:"currentTime"`
		Text        string              `json:"text"`
		Version     int                 `json:"version"`
		FieldErrors map[string][]string `json:"fieldErrors"`
	}{
		Code:        http.StatusBadRequest,
		CurrentTime: models.ResponseCurrentTime(),
		Text:        "invalid request",
		Version:     2,
		FieldErrors: fieldErrors,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		logging.LogError(logging.FromContext(r.Context()), "failed to encode validation error response", err)
	}
}

// plannerFieldErrors maps input errors returned by the planner to the query
// parameter at fault. It reports false for any other error.
func plannerFieldErrors(err error) (utils.FieldErrors, bool) {
	fieldErrors := utils.FieldErrors{}
	switch {
	case errors.Is(err, raptor.ErrNoDeparture):
		fieldErrors.Add("from", err.Error())
	case errors.Is(err, raptor.ErrNoArrival):
		fieldErrors.Add("to", err.Error())
	case errors.Is(err, raptor.ErrUnknownID):
		fieldErrors.Add("id", err.Error())
	case errors.Is(err, raptor.ErrInvalidRequest):
		fieldErrors.Add("request", err.Error())
	default:
		return nil, false
	}
	return fieldErrors, true
}
