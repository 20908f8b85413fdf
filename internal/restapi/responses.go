package restapi

import (
	"encoding/json"
	"net/http"

	"planner.onebusaway.org/internal/models"
)

func (api *RestAPI) sendResponse(w http.ResponseWriter, r *http.Request, response models.ResponseModel) {
	body, err := json.Marshal(response)
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}
	setJSONResponseType(w)
	_, _ = w.Write(append(body, '\n'))
}

func (api *RestAPI) sendNotFound(w http.ResponseWriter, r *http.Request) {
	setJSONResponseType(w)
	w.WriteHeader(http.StatusNotFound)
	response := models.NewResponse(http.StatusNotFound, nil, "resource not found")
	_ = json.NewEncoder(w).Encode(response)
}

func setJSONResponseType(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
}
