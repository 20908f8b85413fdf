package restapi

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
)

type handlerFunc func(w http.ResponseWriter, r *http.Request)

func validateAPIKey(api *RestAPI, finalHandler handlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if api.RequestHasInvalidAPIKey(r) {
			api.invalidAPIKeyResponse(w, r)
			return
		}
		finalHandler(w, r)
	})
}

// requireDataset answers 503 until the first generation is published.
func requireDataset(api *RestAPI, finalHandler handlerFunc) handlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if api.GtfsManager == nil || api.GtfsManager.Generation() == nil {
			api.serviceUnavailableResponse(w, r)
			return
		}
		finalHandler(w, r)
	}
}

func (api *RestAPI) SetRoutes(router *httprouter.Router) {
	router.Handler(http.MethodGet, "/api/plan/journeys.json", validateAPIKey(api, requireDataset(api, api.journeysHandler)))
	router.Handler(http.MethodPost, "/api/plan/batch.json", validateAPIKey(api, requireDataset(api, api.batchHandler)))
	router.Handler(http.MethodGet, "/api/where/stop/:id", validateAPIKey(api, requireDataset(api, api.stopHandler)))
	router.Handler(http.MethodGet, "/api/where/block/:id", validateAPIKey(api, requireDataset(api, api.blockHandler)))
	router.Handler(http.MethodGet, "/api/where/vehicle-journey/:id", validateAPIKey(api, requireDataset(api, api.vehicleJourneyHandler)))
	router.Handler(http.MethodGet, "/api/where/current-time.json", validateAPIKey(api, api.currentTimeHandler))
	router.Handler(http.MethodGet, "/api/where/dataset.json", validateAPIKey(api, requireDataset(api, api.datasetHandler)))

	if api.Metrics != nil {
		router.Handler(http.MethodGet, "/metrics", api.Metrics.Handler())
	}
}
