package restapi

import (
	"net/http"

	"planner.onebusaway.org/internal/calendar"
	"planner.onebusaway.org/internal/models"
)

// currentTimeHandler reports the server time and, when a dataset is loaded,
// the matching day of its production period.
func (api *RestAPI) currentTimeHandler(w http.ResponseWriter, r *http.Request) {
	now := api.Now()
	serviceDay := -1
	if api.GtfsManager != nil {
		if ds := api.GtfsManager.Dataset(); ds != nil {
			now = now.In(ds.Location)
			if day := calendar.FromTime(now, ds.DayZero, ds.Location).Date(); day >= 0 && day < ds.Days {
				serviceDay = day
			}
		}
	}

	api.sendResponse(w, r, models.NewOKResponse(map[string]interface{}{
		"entry":      models.NewCurrentTime(now, serviceDay),
		"references": models.NewEmptyReferences(),
	}))
}
