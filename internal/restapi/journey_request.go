package restapi

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"planner.onebusaway.org/internal/calendar"
	"planner.onebusaway.org/internal/models"
	"planner.onebusaway.org/internal/raptor"
	"planner.onebusaway.org/internal/schedule"
	"planner.onebusaway.org/internal/utils"
)

// journeyQuery is a parsed journeys request, ready to be computed.
type journeyQuery struct {
	request raptor.Request
	when    time.Time
	detail  string
}

// endpoint is one side of a journey query once resolved to stop points.
type endpoint struct {
	points map[schedule.StopPointIdx]int32
	// coordinate is set when the side was given as "lat,lon".
	coordinate bool
	lat, lon   float64
}

// parseCoordinate reads "lat,lon".
func parseCoordinate(value string) (float64, float64, bool) {
	latText, lonText, found := strings.Cut(value, ",")
	if !found {
		return 0, 0, false
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latText), 64)
	if err != nil || lat < -90 || lat > 90 {
		return 0, 0, false
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(lonText), 64)
	if err != nil || lon < -180 || lon > 180 {
		return 0, 0, false
	}
	return lat, lon, true
}

// resolveEndpoint turns a stop point id, a stop area id or a coordinate into
// stop points with their access durations. Coordinates reach every stop
// point within the proximity radius on foot.
func (api *RestAPI) resolveEndpoint(ds *schedule.Dataset, field, value string, fieldErrors utils.FieldErrors) endpoint {
	value = utils.SanitizeInput(value)
	if value == "" {
		fieldErrors.Add(field, "missing required field")
		return endpoint{}
	}

	if lat, lon, ok := parseCoordinate(value); ok {
		ep := endpoint{points: map[schedule.StopPointIdx]int32{}, coordinate: true, lat: lat, lon: lon}
		radius := api.Config.Gtfs.ProximityRadius
		speed := api.Config.Gtfs.WalkingSpeed
		for i := range ds.StopPoints {
			sp := &ds.StopPoints[i]
			meters := utils.Haversine(lat, lon, sp.Lat, sp.Lon)
			if meters <= radius {
				ep.points[sp.Idx] = utils.WalkingSeconds(meters, speed)
			}
		}
		if len(ep.points) == 0 {
			fieldErrors.Add(field, fmt.Sprintf("no stop point within %.0fm", radius))
		}
		return ep
	}

	if err := utils.ValidateID(value); err != nil {
		fieldErrors.Add(field, err.Error())
		return endpoint{}
	}
	stopPoints, ok := ds.StopPointsFor(value)
	if !ok {
		fieldErrors.Add(field, fmt.Sprintf("unknown stop point or stop area %q", value))
		return endpoint{}
	}
	ep := endpoint{points: make(map[schedule.StopPointIdx]int32, len(stopPoints))}
	for _, sp := range stopPoints {
		ep.points[sp] = 0
	}
	return ep
}

// durationParam reads a duration parameter as whole seconds. Absent values
// yield def.
func durationParam(params url.Values, key string, def int32, fieldErrors utils.FieldErrors) int32 {
	value := params.Get(key)
	if value == "" {
		return def
	}
	d, err := utils.ParseDuration(value)
	if err != nil || d < 0 {
		fieldErrors.Add(key, fmt.Sprintf("invalid duration %q", value))
		return def
	}
	return int32(d / time.Second)
}

// parseJourneyQuery validates the parameters of a journeys request against
// ds. Problems are collected in fieldErrors; the returned query is only
// meaningful when fieldErrors is empty.
func (api *RestAPI) parseJourneyQuery(ds *schedule.Dataset, params url.Values, fieldErrors utils.FieldErrors) journeyQuery {
	from := api.resolveEndpoint(ds, "from", params.Get("from"), fieldErrors)
	to := api.resolveEndpoint(ds, "to", params.Get("to"), fieldErrors)

	var q journeyQuery

	when, err := utils.ParseDateTime(params.Get("datetime"), ds.Location, api.Now())
	if err != nil {
		fieldErrors.Add("datetime", err.Error())
	}
	q.when = when
	dt := calendar.FromTime(when, ds.DayZero, ds.Location)
	if err == nil && (dt.Date() < 0 || dt.Date() >= ds.Days) {
		fieldErrors.Add("datetime", "outside the production period")
	}

	q.request = raptor.NewRequest(from.points, to.points, dt.Pack())
	q.request.Clockwise = utils.ParseBoolParam(params, "clockwise", true, fieldErrors)
	q.request.MaxTransfers = utils.ParseIntParam(params, "max_transfers", api.Config.Planner.MaxTransfers, fieldErrors)
	if q.request.MaxTransfers < 0 {
		fieldErrors.Add("max_transfers", "must not be negative")
	}
	defaultMax := int32(api.Config.Planner.MaxDuration.Std() / time.Second)
	q.request.MaxDuration = durationParam(params, "max_duration", defaultMax, fieldErrors)
	q.request.MaxRounds = api.Config.Planner.MaxRounds
	q.request.Accessibility = raptor.Accessibility{
		Wheelchair: utils.ParseBoolParam(params, "wheelchair", false, fieldErrors),
		Bike:       utils.ParseBoolParam(params, "bike", false, fieldErrors),
	}
	q.request.ForbiddenIDs = utils.ListParam(params, "forbidden_id")
	q.request.AllowedIDs = utils.ListParam(params, "allowed_id")

	level, err := schedule.ParseRTLevel(params.Get("realtime"))
	if err != nil {
		fieldErrors.Add("realtime", err.Error())
	}
	q.request.Level = level

	if params.Get("direct_path_duration") != "" {
		direct := durationParam(params, "direct_path_duration", 0, fieldErrors)
		q.request.DirectPathDuration = &direct
	} else if from.coordinate && to.coordinate {
		meters := utils.Haversine(from.lat, from.lon, to.lat, to.lon)
		direct := utils.WalkingSeconds(meters, api.Config.Gtfs.WalkingSpeed)
		q.request.DirectPathDuration = &direct
	}

	detail, err := models.ParseDetail(params.Get("detail"))
	if err != nil {
		fieldErrors.Add("detail", err.Error())
	}
	q.detail = detail
	return q
}
