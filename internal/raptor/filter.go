package raptor

import (
	"fmt"

	"planner.onebusaway.org/internal/schedule"
)

// filter is the compiled form of the accessibility, forbidden and allowed
// constraints of a request.
type filter struct {
	ds            *schedule.Dataset
	accessibility Accessibility

	forbiddenStops  map[schedule.StopPointIdx]struct{}
	forbiddenLines  map[schedule.LineIdx]struct{}
	forbiddenRoutes map[schedule.RouteIdx]struct{}
	forbiddenVJs    map[schedule.VehicleJourneyIdx]struct{}

	restricted    bool
	allowedLines  map[schedule.LineIdx]struct{}
	allowedRoutes map[schedule.RouteIdx]struct{}
	allowedVJs    map[schedule.VehicleJourneyIdx]struct{}
}

func newFilter(ds *schedule.Dataset, req *Request) (*filter, error) {
	f := &filter{
		ds:              ds,
		accessibility:   req.Accessibility,
		forbiddenStops:  map[schedule.StopPointIdx]struct{}{},
		forbiddenLines:  map[schedule.LineIdx]struct{}{},
		forbiddenRoutes: map[schedule.RouteIdx]struct{}{},
		forbiddenVJs:    map[schedule.VehicleJourneyIdx]struct{}{},
		allowedLines:    map[schedule.LineIdx]struct{}{},
		allowedRoutes:   map[schedule.RouteIdx]struct{}{},
		allowedVJs:      map[schedule.VehicleJourneyIdx]struct{}{},
	}

	for _, id := range req.ForbiddenIDs {
		refs := ds.Lookup(id)
		if len(refs) == 0 {
			return nil, fmt.Errorf("%w: forbidden id %q", ErrUnknownID, id)
		}
		for _, ref := range refs {
			switch ref.Type {
			case schedule.ObjectStopPoint:
				f.forbiddenStops[schedule.StopPointIdx(ref.Idx)] = struct{}{}
			case schedule.ObjectStopArea:
				for _, sp := range ds.StopAreas[ref.Idx].StopPoints {
					f.forbiddenStops[sp] = struct{}{}
				}
			case schedule.ObjectLine:
				f.forbiddenLines[schedule.LineIdx(ref.Idx)] = struct{}{}
			case schedule.ObjectRoute:
				f.forbiddenRoutes[schedule.RouteIdx(ref.Idx)] = struct{}{}
			case schedule.ObjectVehicleJourney:
				f.forbiddenVJs[schedule.VehicleJourneyIdx(ref.Idx)] = struct{}{}
			case schedule.ObjectNetwork:
				for _, l := range ds.NetworkLines(id) {
					f.forbiddenLines[l] = struct{}{}
				}
			}
		}
	}

	// Allowed stop ids are accepted but only transport objects restrict
	// the search.
	for _, id := range req.AllowedIDs {
		refs := ds.Lookup(id)
		if len(refs) == 0 {
			return nil, fmt.Errorf("%w: allowed id %q", ErrUnknownID, id)
		}
		for _, ref := range refs {
			switch ref.Type {
			case schedule.ObjectLine:
				f.allowedLines[schedule.LineIdx(ref.Idx)] = struct{}{}
				f.restricted = true
			case schedule.ObjectRoute:
				f.allowedRoutes[schedule.RouteIdx(ref.Idx)] = struct{}{}
				f.restricted = true
			case schedule.ObjectVehicleJourney:
				f.allowedVJs[schedule.VehicleJourneyIdx(ref.Idx)] = struct{}{}
				f.restricted = true
			case schedule.ObjectNetwork:
				for _, l := range ds.NetworkLines(id) {
					f.allowedLines[l] = struct{}{}
				}
				f.restricted = true
			}
		}
	}
	return f, nil
}

// stopForbidden reports whether sp was excluded by id.
func (f *filter) stopForbidden(sp schedule.StopPointIdx) bool {
	_, ok := f.forbiddenStops[sp]
	return ok
}

// stopUsable reports whether a traveller may board or alight at sp.
func (f *filter) stopUsable(sp schedule.StopPointIdx) bool {
	if f.stopForbidden(sp) {
		return false
	}
	stop := &f.ds.StopPoints[sp]
	if f.accessibility.Wheelchair && !stop.Wheelchair {
		return false
	}
	if f.accessibility.Bike && !stop.Bike {
		return false
	}
	return true
}

// journeyUsable reports whether vj may be ridden at all.
func (f *filter) journeyUsable(vj schedule.VehicleJourneyIdx) bool {
	j := &f.ds.VehicleJourneys[vj]
	if f.accessibility.Wheelchair && !j.Wheelchair {
		return false
	}
	if f.accessibility.Bike && !j.Bike {
		return false
	}
	line := f.ds.Routes[j.Route].Line
	if _, ok := f.forbiddenVJs[vj]; ok {
		return false
	}
	if _, ok := f.forbiddenRoutes[j.Route]; ok {
		return false
	}
	if _, ok := f.forbiddenLines[line]; ok {
		return false
	}
	if !f.restricted {
		return true
	}
	if _, ok := f.allowedVJs[vj]; ok {
		return true
	}
	if _, ok := f.allowedRoutes[j.Route]; ok {
		return true
	}
	_, ok := f.allowedLines[line]
	return ok
}
