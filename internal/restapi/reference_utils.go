package restapi

import (
	"planner.onebusaway.org/internal/gtfs"
	"planner.onebusaway.org/internal/models"
	"planner.onebusaway.org/internal/schedule"
)

// referenceBuilder collects each entity a response mentions once, in first
// mention order.
type referenceBuilder struct {
	ds       *schedule.Dataset
	agencies map[string]gtfs.Agency
	seen     map[string]bool
	refs     models.ReferencesModel
}

func newReferenceBuilder(g *gtfs.Generation) *referenceBuilder {
	agencies := make(map[string]gtfs.Agency, len(g.Agencies))
	for _, a := range g.Agencies {
		agencies[a.ID] = a
	}
	return &referenceBuilder{
		ds:       g.Dataset,
		agencies: agencies,
		seen:     map[string]bool{},
		refs:     models.NewEmptyReferences(),
	}
}

// first reports whether key has not been added before and marks it.
func (b *referenceBuilder) first(kind, id string) bool {
	key := kind + "\x00" + id
	if b.seen[key] {
		return false
	}
	b.seen[key] = true
	return true
}

func (b *referenceBuilder) addAgency(id string) {
	if id == "" || !b.first("agency", id) {
		return
	}
	if a, ok := b.agencies[id]; ok {
		b.refs.Agencies = append(b.refs.Agencies, models.NewAgencyReference(a.ID, a.Name, a.URL, a.Timezone))
	}
}

func (b *referenceBuilder) addLine(idx schedule.LineIdx) {
	line := &b.ds.Lines[idx]
	if !b.first("line", line.ID) {
		return
	}
	b.refs.Lines = append(b.refs.Lines, lineModel(b.ds, line))
	b.addAgency(line.Network)
}

func (b *referenceBuilder) addRoute(idx schedule.RouteIdx) {
	route := &b.ds.Routes[idx]
	if !b.first("route", route.ID) {
		return
	}
	b.refs.Routes = append(b.refs.Routes, routeModel(b.ds, route))
	b.addLine(route.Line)
}

func (b *referenceBuilder) addStopPoint(idx schedule.StopPointIdx) {
	sp := &b.ds.StopPoints[idx]
	if !b.first("stop", sp.ID) {
		return
	}
	b.refs.Stops = append(b.refs.Stops, stopPointModel(b.ds, sp))
	for _, r := range sp.Routes {
		b.addRoute(r)
	}
}

func (b *referenceBuilder) addVehicleJourney(idx schedule.VehicleJourneyIdx) {
	vj := &b.ds.VehicleJourneys[idx]
	if !b.first("vj", vj.ID) {
		return
	}
	b.refs.VehicleJourneys = append(b.refs.VehicleJourneys, vehicleJourneyModel(b.ds, vj))
	b.addRoute(vj.Route)
}

func (b *referenceBuilder) references() models.ReferencesModel {
	return b.refs
}

func lineModel(ds *schedule.Dataset, line *schedule.Line) models.Line {
	routeIDs := make([]string, len(line.Routes))
	for i, r := range line.Routes {
		routeIDs[i] = ds.Routes[r].ID
	}
	return models.Line{
		ID:       line.ID,
		Name:     line.Name,
		Code:     line.Code,
		Mode:     line.Mode,
		Network:  line.Network,
		RouteIDs: routeIDs,
	}
}

func routeModel(ds *schedule.Dataset, route *schedule.Route) models.Route {
	return models.Route{
		ID:     route.ID,
		Name:   route.Name,
		LineID: ds.Lines[route.Line].ID,
	}
}

func stopPointModel(ds *schedule.Dataset, sp *schedule.StopPoint) models.Stop {
	routeIDs := make([]string, len(sp.Routes))
	for i, r := range sp.Routes {
		routeIDs[i] = ds.Routes[r].ID
	}
	stop := models.Stop{
		ID:                 sp.ID,
		Type:               models.StopTypePoint,
		Name:               sp.Name,
		Lat:                sp.Lat,
		Lon:                sp.Lon,
		Zone:               sp.Zone,
		WheelchairBoarding: sp.Wheelchair,
		BikeAccepted:       sp.Bike,
		RouteIDs:           routeIDs,
	}
	if int(sp.StopArea) < len(ds.StopAreas) {
		stop.Parent = ds.StopAreas[sp.StopArea].ID
	}
	return stop
}

func stopAreaModel(ds *schedule.Dataset, area *schedule.StopArea) models.Stop {
	var routeIDs, pointIDs []string
	seen := map[schedule.RouteIdx]bool{}
	for _, p := range area.StopPoints {
		sp := &ds.StopPoints[p]
		pointIDs = append(pointIDs, sp.ID)
		for _, r := range sp.Routes {
			if !seen[r] {
				seen[r] = true
				routeIDs = append(routeIDs, ds.Routes[r].ID)
			}
		}
	}
	if routeIDs == nil {
		routeIDs = []string{}
	}
	return models.Stop{
		ID:                 area.ID,
		Type:               models.StopTypeArea,
		Name:               area.Name,
		Lat:                area.Lat,
		Lon:                area.Lon,
		WheelchairBoarding: area.Wheelchair,
		RouteIDs:           routeIDs,
		StopPointIDs:       pointIDs,
	}
}

func vehicleJourneyModel(ds *schedule.Dataset, vj *schedule.VehicleJourney) models.VehicleJourney {
	m := models.VehicleJourney{
		ID:                   vj.ID,
		RouteID:              ds.Routes[vj.Route].ID,
		Headsign:             vj.Headsign,
		BlockID:              vj.BlockID,
		WheelchairAccessible: vj.Wheelchair,
		BikesAllowed:         vj.Bike,
		Realtime:             vj.Realtime,
	}
	if vj.Kind == schedule.Frequency {
		m.Frequency = &models.Frequency{
			StartTime: vj.Window.Start,
			EndTime:   vj.Window.End,
			Headway:   vj.Window.Headway,
		}
	}
	return m
}
