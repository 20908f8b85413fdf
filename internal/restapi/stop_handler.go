package restapi

import (
	"net/http"

	"planner.onebusaway.org/internal/models"
	"planner.onebusaway.org/internal/utils"
)

// stopHandler describes a stop point, or a stop area with its points, and
// references the routes serving it.
func (api *RestAPI) stopHandler(w http.ResponseWriter, r *http.Request) {
	queryParamID := utils.ExtractIDFromParams(r, "id")

	// Validate ID
	if err := utils.ValidateID(queryParamID); err != nil {
		fieldErrors := map[string][]string{
			"id": {err.Error()},
		}
		api.validationErrorResponse(w, r, fieldErrors)
		return
	}

	g := api.GtfsManager.Generation()
	ds := g.Dataset
	refs := newReferenceBuilder(g)

	var stopData models.Stop
	if sp, ok := ds.StopPointByID(queryParamID); ok {
		point := &ds.StopPoints[sp]
		stopData = stopPointModel(ds, point)
		for _, route := range point.Routes {
			refs.addRoute(route)
		}
	} else if area, ok := ds.StopAreaByID(queryParamID); ok {
		stopArea := &ds.StopAreas[area]
		stopData = stopAreaModel(ds, stopArea)
		for _, sp := range stopArea.StopPoints {
			refs.addStopPoint(sp)
		}
	} else {
		api.sendNotFound(w, r)
		return
	}

	response := models.NewEntryResponse(stopData, refs.references())
	api.sendResponse(w, r, response)
}
