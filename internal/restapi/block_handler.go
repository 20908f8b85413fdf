package restapi

import (
	"net/http"

	"planner.onebusaway.org/internal/calendar"
	"planner.onebusaway.org/internal/models"
	"planner.onebusaway.org/internal/schedule"
	"planner.onebusaway.org/internal/utils"
)

// blockHandler returns the stay-in chain of a vehicle journey. The id may
// name a vehicle journey or a GTFS block; a block resolves to the chain of
// its first journey.
func (api *RestAPI) blockHandler(w http.ResponseWriter, r *http.Request) {
	id := utils.ExtractIDFromParams(r, "id")
	if err := utils.ValidateID(id); err != nil {
		api.validationErrorResponse(w, r, map[string][]string{"id": {err.Error()}})
		return
	}

	g := api.GtfsManager.Generation()
	ds := g.Dataset
	vj, ok := ds.VehicleJourneyByID(id)
	if !ok {
		vj, ok = firstOfBlock(ds, id)
	}
	if !ok {
		api.sendNotFound(w, r)
		return
	}

	refs := newReferenceBuilder(g)
	entry := transformBlockToEntry(ds, ds.Block(vj), refs)
	api.sendResponse(w, r, models.NewEntryResponse(entry, refs.references()))
}

// firstOfBlock finds the journey with the given block id that no other
// journey precedes.
func firstOfBlock(ds *schedule.Dataset, blockID string) (schedule.VehicleJourneyIdx, bool) {
	for i := range ds.VehicleJourneys {
		vj := &ds.VehicleJourneys[i]
		if vj.BlockID == blockID && vj.Prev == schedule.NoVehicleJourney && !vj.Realtime {
			return vj.Idx, true
		}
	}
	return schedule.NoVehicleJourney, false
}

func transformBlockToEntry(ds *schedule.Dataset, chain []schedule.VehicleJourneyIdx, refs *referenceBuilder) models.BlockEntry {
	entry := models.BlockEntry{Trips: make([]models.BlockTrip, 0, len(chain))}
	if len(chain) == 0 {
		return entry
	}
	entry.ID = ds.VehicleJourneys[chain[0]].BlockID
	if entry.ID == "" {
		entry.ID = ds.VehicleJourneys[chain[0]].ID
	}

	base := calendar.NewDateTime(0, 0)
	var lastArrival calendar.DateTime
	for i, idx := range chain {
		if i > 0 {
			_, nextBase, ok := ds.StayInSuccessor(chain[i-1], base)
			if !ok {
				break
			}
			base = nextBase
		}
		vj := &ds.VehicleJourneys[idx]
		first, last := vj.StopTimes[0], vj.StopTimes[len(vj.StopTimes)-1]
		departure := base.Add(first.Departure)

		trip := models.BlockTrip{
			VehicleJourneyID: vj.ID,
			RouteID:          ds.Routes[vj.Route].ID,
			FirstStopID:      ds.StopPoints[first.StopPoint].ID,
			LastStopID:       ds.StopPoints[last.StopPoint].ID,
			DepartureTime:    int32(departure),
			ArrivalTime:      int32(base.Add(last.Arrival)),
		}
		if i > 0 {
			trip.LayoverTime = int32(departure - lastArrival)
		}
		lastArrival = base.Add(last.Arrival)

		refs.addVehicleJourney(idx)
		refs.addStopPoint(first.StopPoint)
		refs.addStopPoint(last.StopPoint)
		entry.Trips = append(entry.Trips, trip)
	}
	return entry
}
