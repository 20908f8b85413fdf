package restapi

import (
	"net/http"

	"planner.onebusaway.org/internal/models"
	"planner.onebusaway.org/internal/utils"
)

// vehicleJourneyStop is one stop time of a vehicle journey, in seconds after
// midnight of its service day.
type vehicleJourneyStop struct {
	StopID        string `json:"stopId"`
	ArrivalTime   int32  `json:"arrivalTime"`
	DepartureTime int32  `json:"departureTime"`
	Pickup        bool   `json:"pickup"`
	DropOff       bool   `json:"dropOff"`
	OnDemand      bool   `json:"onDemand,omitempty"`
}

type vehicleJourneyEntry struct {
	models.VehicleJourney
	StopTimes []vehicleJourneyStop `json:"stopTimes"`
}

func (api *RestAPI) vehicleJourneyHandler(w http.ResponseWriter, r *http.Request) {
	id := utils.ExtractIDFromParams(r, "id")
	if err := utils.ValidateID(id); err != nil {
		api.validationErrorResponse(w, r, map[string][]string{"id": {err.Error()}})
		return
	}

	g := api.GtfsManager.Generation()
	ds := g.Dataset
	idx, ok := ds.VehicleJourneyByID(id)
	if !ok {
		api.sendNotFound(w, r)
		return
	}

	vj := &ds.VehicleJourneys[idx]
	refs := newReferenceBuilder(g)
	refs.addRoute(vj.Route)

	entry := vehicleJourneyEntry{
		VehicleJourney: vehicleJourneyModel(ds, vj),
		StopTimes:      make([]vehicleJourneyStop, 0, len(vj.StopTimes)),
	}
	for _, st := range vj.StopTimes {
		refs.addStopPoint(st.StopPoint)
		entry.StopTimes = append(entry.StopTimes, vehicleJourneyStop{
			StopID:        ds.StopPoints[st.StopPoint].ID,
			ArrivalTime:   st.Arrival,
			DepartureTime: st.Departure,
			Pickup:        st.Pickup,
			DropOff:       st.DropOff,
			OnDemand:      st.ODT,
		})
	}
	api.sendResponse(w, r, models.NewEntryResponse(entry, refs.references()))
}
