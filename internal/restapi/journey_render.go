package restapi

import (
	"planner.onebusaway.org/internal/calendar"
	"planner.onebusaway.org/internal/gtfs"
	"planner.onebusaway.org/internal/models"
	"planner.onebusaway.org/internal/raptor"
	"planner.onebusaway.org/internal/schedule"
	"planner.onebusaway.org/internal/utils"
)

func epochMillis(ds *schedule.Dataset, dt calendar.DateTime) int64 {
	return dt.Time(ds.DayZero, ds.Location).UnixMilli()
}

// renderJourneys converts a planner result into the response entry and the
// entities it refers to.
func renderJourneys(g *gtfs.Generation, q journeyQuery, result *raptor.Result) (models.JourneysEntry, models.ReferencesModel) {
	ds := g.Dataset
	refs := newReferenceBuilder(g)

	entry := models.JourneysEntry{
		Journeys:      make([]models.Journey, 0, len(result.Journeys)),
		Truncated:     result.Truncated,
		Rounds:        result.Rounds,
		Realtime:      q.request.Level.String(),
		Clockwise:     q.request.Clockwise,
		RequestedTime: q.when.UnixMilli(),
		Generation:    g.Version,
	}
	for i := range result.Journeys {
		entry.Journeys = append(entry.Journeys, renderJourney(ds, &result.Journeys[i], refs))
	}
	return entry, refs.references()
}

func renderJourney(ds *schedule.Dataset, j *raptor.Journey, refs *referenceBuilder) models.Journey {
	out := models.Journey{
		DepartureTime: epochMillis(ds, j.Departure),
		ArrivalTime:   epochMillis(ds, j.Arrival),
		Duration:      j.Duration(),
		Transfers:     j.Transfers,
		Segments:      make([]models.Segment, 0, len(j.Segments)),
	}
	for i := range j.Segments {
		seg := &j.Segments[i]
		if seg.Type == raptor.Walking {
			out.WalkingTime += seg.Duration()
		}
		out.Segments = append(out.Segments, renderSegment(ds, seg, refs))
	}
	return out
}

func renderSegment(ds *schedule.Dataset, seg *raptor.Segment, refs *referenceBuilder) models.Segment {
	from, to := &ds.StopPoints[seg.From], &ds.StopPoints[seg.To]
	refs.addStopPoint(seg.From)
	refs.addStopPoint(seg.To)

	out := models.Segment{
		Type:          seg.Type.String(),
		FromStopID:    from.ID,
		ToStopID:      to.ID,
		DepartureTime: epochMillis(ds, seg.Departure),
		ArrivalTime:   epochMillis(ds, seg.Arrival),
		Duration:      seg.Duration(),
		OnDemand:      seg.OnDemand,
	}

	switch seg.Type {
	case raptor.Walking:
		if seg.From != seg.To {
			out.Direction = utils.CompassDirection(from.Lat, from.Lon, to.Lat, to.Lon)
		}
	case raptor.PublicTransport:
		vj := &ds.VehicleJourneys[seg.VehicleJourney]
		refs.addVehicleJourney(seg.VehicleJourney)
		out.VehicleJourneyID = vj.ID
		out.RouteID = ds.Routes[vj.Route].ID
		out.LineID = ds.LineOf(seg.VehicleJourney).ID
		out.Headsign = vj.Headsign
		out.StopTimes = renderStopTimes(ds, seg, refs)
	}
	return out
}

// renderStopTimes lists the calls of a ride. Stop times are relative to the
// instance base, which the segment departure fixes.
func renderStopTimes(ds *schedule.Dataset, seg *raptor.Segment, refs *referenceBuilder) []models.SegmentStop {
	if len(seg.StopTimes) == 0 {
		return nil
	}
	firstRef := seg.StopTimes[0]
	first := ds.VehicleJourneys[firstRef.VehicleJourney].StopTimes[firstRef.Order]
	base := seg.Departure.Add(-first.Departure)

	out := make([]models.SegmentStop, 0, len(seg.StopTimes))
	for _, ref := range seg.StopTimes {
		st := ds.VehicleJourneys[ref.VehicleJourney].StopTimes[ref.Order]
		refs.addStopPoint(st.StopPoint)
		out = append(out, models.SegmentStop{
			StopID:        ds.StopPoints[st.StopPoint].ID,
			ArrivalTime:   epochMillis(ds, base.Add(st.Arrival)),
			DepartureTime: epochMillis(ds, base.Add(st.Departure)),
		})
	}
	return out
}
