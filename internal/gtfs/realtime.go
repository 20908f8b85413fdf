package gtfs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	gtfsrtpb "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/sourcegraph/conc/pool"
	"google.golang.org/protobuf/proto"

	"planner.onebusaway.org/internal/calendar"
	"planner.onebusaway.org/internal/disruption"
	"planner.onebusaway.org/internal/schedule"
)

var ErrNoStopTimes = errors.New("trip update carries no usable stop times")

// loadRealtimeData downloads and decodes one trip updates feed.
func loadRealtimeData(ctx context.Context, config Config, source string, logger *slog.Logger) (*gtfsrtpb.FeedMessage, error) {
	b, err := fetch(ctx, config.client(), source, false, config.headers(), logger)
	if err != nil {
		return nil, err
	}
	var feed gtfsrtpb.FeedMessage
	if err := proto.Unmarshal(b, &feed); err != nil {
		return nil, fmt.Errorf("error decoding %s: %w", source, err)
	}
	return &feed, nil
}

type fetchedFeed struct {
	index int
	url   string
	feed  *gtfsrtpb.FeedMessage
	err   error
}

// loadRealtimeFeeds fetches every configured feed in parallel. Feeds that
// fail are reported in the returned error and left nil.
func loadRealtimeFeeds(ctx context.Context, config Config, logger *slog.Logger) ([]*gtfsrtpb.FeedMessage, error) {
	p := pool.NewWithResults[fetchedFeed]().WithContext(ctx)
	for i, url := range config.TripUpdatesURLs {
		p.Go(func(ctx context.Context) (fetchedFeed, error) {
			feed, err := loadRealtimeData(ctx, config, url, logger)
			return fetchedFeed{index: i, url: url, feed: feed, err: err}, nil
		})
	}
	results, err := p.Wait()
	if err != nil {
		return nil, err
	}
	sort.Slice(results, func(i, j int) bool { return results[i].index < results[j].index })

	feeds := make([]*gtfsrtpb.FeedMessage, len(config.TripUpdatesURLs))
	var errs []error
	for _, r := range results {
		if r.err != nil {
			errs = append(errs, r.err)
			continue
		}
		feeds[r.index] = r.feed
	}
	return feeds, errors.Join(errs...)
}

// DisruptionsFromFeed turns the trip updates of feed into disruptions on ds.
// Entities that cannot be matched are reported in the returned error and
// skipped.
func DisruptionsFromFeed(ds *schedule.Dataset, sequences Sequences, feed *gtfsrtpb.FeedMessage, now time.Time) ([]disruption.Disruption, error) {
	var (
		out  []disruption.Disruption
		errs []error
	)
	for _, entity := range feed.GetEntity() {
		tu := entity.GetTripUpdate()
		if tu == nil || entity.GetIsDeleted() {
			continue
		}
		d, ok, err := tripUpdateDisruption(ds, sequences, tu, now)
		if err != nil {
			errs = append(errs, fmt.Errorf("entity %s: %w", entity.GetId(), err))
			continue
		}
		if ok {
			out = append(out, d)
		}
	}
	return out, errors.Join(errs...)
}

func tripUpdateDisruption(ds *schedule.Dataset, sequences Sequences, tu *gtfsrtpb.TripUpdate, now time.Time) (disruption.Disruption, bool, error) {
	trip := tu.GetTrip()
	tripID := trip.GetTripId()

	switch trip.GetScheduleRelationship() {
	case gtfsrtpb.TripDescriptor_ADDED:
		day, err := serviceDay(ds, trip.GetStartDate(), now)
		if err != nil {
			return disruption.Disruption{}, false, err
		}
		spec, err := addedTrip(ds, tu, day)
		if err != nil {
			return disruption.Disruption{}, false, err
		}
		return disruption.Disruption{
			Kind:           disruption.TripAdded,
			VehicleJourney: tripID,
			Day:            day,
			Level:          schedule.RealTime,
			Added:          spec,
		}, true, nil
	case gtfsrtpb.TripDescriptor_CANCELED:
		vj, day, err := matchTrip(ds, tripID, trip.GetStartDate(), now)
		if err != nil {
			return disruption.Disruption{}, false, err
		}
		return disruption.Disruption{
			Kind:           disruption.TripCancelled,
			VehicleJourney: ds.VehicleJourneys[vj].ID,
			Day:            day,
			Level:          schedule.Adapted,
		}, true, nil
	case gtfsrtpb.TripDescriptor_SCHEDULED:
		vj, day, err := matchTrip(ds, tripID, trip.GetStartDate(), now)
		if err != nil {
			return disruption.Disruption{}, false, err
		}
		if ds.VehicleJourneys[vj].Kind != schedule.Discrete {
			return disruption.Disruption{}, false, nil
		}
		updates := delays(ds, sequences, vj, day, tu)
		if len(updates) == 0 {
			return disruption.Disruption{}, false, nil
		}
		return disruption.Disruption{
			Kind:           disruption.TripDelayed,
			VehicleJourney: ds.VehicleJourneys[vj].ID,
			Day:            day,
			Level:          schedule.RealTime,
			Updates:        updates,
		}, true, nil
	}
	return disruption.Disruption{}, false, nil
}

// serviceDay resolves the day of a trip start date, or of now when the feed
// leaves it blank.
func serviceDay(ds *schedule.Dataset, startDate string, now time.Time) (int, error) {
	if startDate == "" {
		return calendar.DaysBetween(ds.DayZero, now.In(ds.Location)), nil
	}
	date, err := time.ParseInLocation("20060102", startDate, ds.Location)
	if err != nil {
		return 0, fmt.Errorf("invalid start date %q: %w", startDate, err)
	}
	return calendar.DaysBetween(ds.DayZero, date), nil
}

// matchTrip finds the journey and service day of a trip descriptor. Without
// a start date the journey running today is preferred, then the one that
// started yesterday and runs past midnight.
func matchTrip(ds *schedule.Dataset, tripID, startDate string, now time.Time) (schedule.VehicleJourneyIdx, int, error) {
	vj, ok := ds.VehicleJourneyByID(tripID)
	if !ok {
		return 0, 0, fmt.Errorf("trip %q: %w", tripID, disruption.ErrUnknownTrip)
	}
	day, err := serviceDay(ds, startDate, now)
	if err != nil {
		return 0, 0, err
	}
	if startDate == "" && !ds.IsActive(vj, schedule.Base, day) && ds.IsActive(vj, schedule.Base, day-1) {
		day--
	}
	if day < 0 || day >= ds.Days {
		return 0, 0, fmt.Errorf("trip %q day %d: %w", tripID, day, disruption.ErrInvalidDay)
	}
	return vj, day, nil
}

// delays reads the stop time updates of a scheduled trip. Updates are
// matched by stop_sequence, then by stop_id searching forward from the
// previous match.
func delays(ds *schedule.Dataset, sequences Sequences, vj schedule.VehicleJourneyIdx, day int, tu *gtfsrtpb.TripUpdate) []disruption.StopTimeUpdate {
	journey := &ds.VehicleJourneys[vj]
	var out []disruption.StopTimeUpdate
	cursor := 0
	for _, stu := range tu.GetStopTimeUpdate() {
		if stu.GetScheduleRelationship() != gtfsrtpb.TripUpdate_StopTimeUpdate_SCHEDULED {
			continue
		}
		order, ok := -1, false
		if stu.StopSequence != nil {
			order, ok = sequences.Order(journey.ID, stu.GetStopSequence())
		}
		if !ok && stu.GetStopId() != "" {
			for i := cursor; i < len(journey.StopTimes); i++ {
				if ds.StopPoints[journey.StopTimes[i].StopPoint].ID == stu.GetStopId() {
					order, ok = i, true
					break
				}
			}
		}
		if !ok {
			continue
		}
		cursor = order
		st := journey.StopTimes[order]
		arrival, hasArrival := eventDelay(ds, day, st.Arrival, stu.GetArrival())
		departure, hasDeparture := eventDelay(ds, day, st.Departure, stu.GetDeparture())
		switch {
		case !hasArrival && !hasDeparture:
			continue
		case !hasArrival:
			arrival = departure
		case !hasDeparture:
			departure = arrival
		}
		out = append(out, disruption.StopTimeUpdate{Order: order, ArrivalDelay: arrival, DepartureDelay: departure})
	}
	if len(out) == 0 && tu.Delay != nil {
		d := tu.GetDelay()
		out = append(out, disruption.StopTimeUpdate{Order: 0, ArrivalDelay: d, DepartureDelay: d})
	}
	return out
}

func eventDelay(ds *schedule.Dataset, day int, scheduled int32, ev *gtfsrtpb.TripUpdate_StopTimeEvent) (int32, bool) {
	if ev == nil {
		return 0, false
	}
	if ev.Delay != nil {
		return ev.GetDelay(), true
	}
	if ev.Time != nil {
		at := calendar.NewDateTime(day, scheduled).Time(ds.DayZero, ds.Location)
		return int32(ev.GetTime() - at.Unix()), true
	}
	return 0, false
}

// addedTrip builds the journey of an ADDED trip from absolute stop times.
func addedTrip(ds *schedule.Dataset, tu *gtfsrtpb.TripUpdate, day int) (*schedule.VehicleJourneySpec, error) {
	trip := tu.GetTrip()
	midnight := calendar.NewDateTime(day, 0)
	spec := &schedule.VehicleJourneySpec{ID: disruption.RealtimeID(trip.GetTripId(), day), Realtime: true}
	if trip.GetRouteId() != "" {
		route := fmt.Sprintf("%s:%d", trip.GetRouteId(), trip.GetDirectionId())
		if _, ok := ds.RouteByID(route); ok {
			spec.Route = route
		}
	}
	for _, stu := range tu.GetStopTimeUpdate() {
		if stu.GetScheduleRelationship() == gtfsrtpb.TripUpdate_StopTimeUpdate_SKIPPED {
			continue
		}
		if _, ok := ds.StopPointByID(stu.GetStopId()); !ok {
			return nil, fmt.Errorf("added trip %q references unknown stop %q", trip.GetTripId(), stu.GetStopId())
		}
		arrival, departure := stu.GetArrival().GetTime(), stu.GetDeparture().GetTime()
		if arrival == 0 {
			arrival = departure
		}
		if departure == 0 {
			departure = arrival
		}
		if arrival == 0 {
			return nil, fmt.Errorf("added trip %q stop %q has no time", trip.GetTripId(), stu.GetStopId())
		}
		relative := func(unix int64) int32 {
			return int32(calendar.FromTime(time.Unix(unix, 0), ds.DayZero, ds.Location) - midnight)
		}
		spec.StopTimes = append(spec.StopTimes, schedule.StopTimeSpec{
			StopPoint: stu.GetStopId(),
			Arrival:   relative(arrival),
			Departure: relative(departure),
		})
	}
	if len(spec.StopTimes) == 0 {
		return nil, fmt.Errorf("added trip %q: %w", trip.GetTripId(), ErrNoStopTimes)
	}
	return spec, nil
}
